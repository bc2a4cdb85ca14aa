package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"devotion-go/internal/logger"
	"devotion-go/internal/models"
	"devotion-go/internal/storage"
)

// SharedPrayer is a prayer on the wall with its author and support count.
type SharedPrayer struct {
	models.Prayer
	AuthorName   string `json:"author_name"`
	SupportCount int    `json:"support_count"`
	Supported    bool   `json:"supported"` // by the current user
}

// PrayerWall shares prayer requests and records who is praying for them.
type PrayerWall struct {
	gw       storage.Gateway
	userID   string
	notifier Notifier
	log      zerolog.Logger
}

func NewPrayerWall(gw storage.Gateway, userID string, notifier Notifier) *PrayerWall {
	return &PrayerWall{
		gw:       gw,
		userID:   userID,
		notifier: notifier,
		log:      logger.With("prayer-wall").With().Str("user_id", userID).Logger(),
	}
}

// ShareRequest stores a prayer request. Unshared requests stay private.
func (w *PrayerWall) ShareRequest(ctx context.Context, title, content string, shared bool) (*models.Prayer, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationErr("a title is required")
	}
	p := &models.Prayer{UserID: w.userID, Title: title, Content: strings.TrimSpace(content), IsShared: shared}
	if err := w.gw.Insert(ctx, models.TablePrayers, p); err != nil {
		return nil, transportErr("share prayer", err)
	}
	return p, nil
}

// FetchShared lists shared prayers newest first, with author names and
// support counts each resolved in one batched query.
func (w *PrayerWall) FetchShared(ctx context.Context, limit int) ([]SharedPrayer, error) {
	var prayers []models.Prayer
	q := storage.Query{
		Filter: storage.Eq("is_shared", true),
		Order:  []storage.OrderBy{{Column: "created_at", Desc: true}},
		Limit:  limit,
	}
	if err := w.gw.Select(ctx, models.TablePrayers, q, &prayers); err != nil {
		return nil, transportErr("fetch shared prayers", err)
	}
	if len(prayers) == 0 {
		return []SharedPrayer{}, nil
	}

	prayerIDs := make([]string, 0, len(prayers))
	authors := make([]string, 0, len(prayers))
	for _, p := range prayers {
		prayerIDs = append(prayerIDs, p.ID)
		authors = append(authors, p.UserID)
	}

	var support []models.PrayerSupport
	if err := w.gw.Select(ctx, models.TablePrayerSupport, storage.Query{Filter: storage.In("prayer_id", prayerIDs)}, &support); err != nil {
		return nil, transportErr("fetch prayer support", err)
	}
	counts := make(map[string]int, len(prayers))
	mine := make(map[string]bool)
	for _, s := range support {
		counts[s.PrayerID]++
		if s.UserID == w.userID {
			mine[s.PrayerID] = true
		}
	}

	profiles, err := fetchProfiles(ctx, w.gw, authors)
	if err != nil {
		return nil, transportErr("fetch shared prayers", err)
	}

	out := make([]SharedPrayer, 0, len(prayers))
	for _, p := range prayers {
		sp := SharedPrayer{Prayer: p, SupportCount: counts[p.ID], Supported: mine[p.ID]}
		if author, ok := profiles[p.UserID]; ok {
			sp.AuthorName = author.DisplayName()
		}
		out = append(out, sp)
	}
	return out, nil
}

// OfferSupport records that the user prays for prayerID and notifies the
// author, unless the author is the user.
func (w *PrayerWall) OfferSupport(ctx context.Context, prayerID string) error {
	var prayers []models.Prayer
	if err := w.gw.Select(ctx, models.TablePrayers, storage.Query{Filter: storage.Eq("id", prayerID), Limit: 1}, &prayers); err != nil {
		return transportErr("offer support", err)
	}
	if len(prayers) == 0 {
		return ErrNotFound
	}
	prayer := prayers[0]

	var existing []models.PrayerSupport
	pair := storage.And(storage.Eq("prayer_id", prayerID), storage.Eq("user_id", w.userID))
	if err := w.gw.Select(ctx, models.TablePrayerSupport, storage.Query{Filter: pair, Limit: 1}, &existing); err != nil {
		return transportErr("offer support", err)
	}
	if len(existing) > 0 {
		return ErrDuplicateRelation
	}

	if err := w.gw.Insert(ctx, models.TablePrayerSupport, &models.PrayerSupport{PrayerID: prayerID, UserID: w.userID}); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return ErrDuplicateRelation
		}
		return transportErr("offer support", err)
	}

	if prayer.UserID == w.userID || w.notifier == nil {
		return nil
	}
	relatedID := prayer.ID
	if err := w.notifier.CreateNotification(ctx, prayer.UserID, models.NotificationPrayerSupport,
		"Someone is praying for you", "Someone is praying for \""+prayer.Title+"\"", &relatedID); err != nil {
		w.log.Warn().Err(err).Str("prayer_id", prayer.ID).Msg("support saved but notification failed")
	}
	return nil
}
