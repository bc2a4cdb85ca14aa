package main

import (
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"devotion-go/internal/auth"
	"devotion-go/internal/config"
	"devotion-go/internal/logger"
	"devotion-go/internal/models"
	"devotion-go/internal/storage"
)

func usage() {
	fmt.Println("usage:")
	fmt.Println("  admin create-profile <name> <email> - create a profile")
	fmt.Println("  admin issue-token <email>           - print a bearer token for a profile")
	fmt.Println("  admin show-invite <email>           - show the community invite of a profile")
	fmt.Println("  admin grant-access <email>          - unlock the community without an invite")
}

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Env, cfg.LogLevel)

	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	switch os.Args[1] {
	case "create-profile":
		if len(os.Args) < 4 {
			usage()
			os.Exit(1)
		}
		createProfile(db, os.Args[2], os.Args[3])
	case "issue-token":
		issueToken(db, cfg.Auth, os.Args[2])
	case "show-invite":
		showInvite(db, os.Args[2])
	case "grant-access":
		grantAccess(db, os.Args[2])
	default:
		logger.Fatal().Str("command", os.Args[1]).Msg("unknown command")
	}
}

func findProfile(db *gorm.DB, email string) models.Profile {
	var p models.Profile
	if err := db.Where("email = ?", email).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Fatal().Str("email", email).Msg("no profile with that email")
		}
		logger.Fatal().Err(err).Msg("failed to look up profile")
	}
	return p
}

func createProfile(db *gorm.DB, name, email string) {
	p := models.Profile{Name: name, Email: email}
	if err := db.Create(&p).Error; err != nil {
		logger.Fatal().Err(err).Msg("failed to create profile")
	}
	fmt.Printf("profile %s created for %s\n", p.ID, p.Email)
}

func issueToken(db *gorm.DB, authCfg config.AuthConfig, email string) {
	p := findProfile(db, email)
	token, err := auth.GenerateToken(p.ID, p.Email, authCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to sign token")
	}
	fmt.Println(token)
}

func showInvite(db *gorm.DB, email string) {
	p := findProfile(db, email)
	var invite models.CommunityInvite
	if err := db.Where("user_id = ?", p.ID).First(&invite).Error; err != nil {
		fmt.Printf("no invite for %s: %v\n", email, err)
		return
	}
	fmt.Printf("invite %s for %s\n", invite.ID, p.DisplayName())
	fmt.Println("--------------------------------------")
	fmt.Printf("token:    %s\n", invite.InviteToken)
	fmt.Printf("accepted: %v\n", invite.IsAccepted)
	fmt.Printf("invited:  %s\n", invite.InvitedAt.Format("2006-01-02 15:04:05"))
	if invite.ExpiresAt != nil {
		fmt.Printf("expires:  %s\n", invite.ExpiresAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("access:   %v\n", p.CommunityAccess)
}

func grantAccess(db *gorm.DB, email string) {
	p := findProfile(db, email)
	if err := db.Model(&models.Profile{}).Where("id = ?", p.ID).Update("community_access", true).Error; err != nil {
		logger.Fatal().Err(err).Msg("failed to grant access")
	}
	fmt.Printf("community unlocked for %s\n", p.DisplayName())
}
