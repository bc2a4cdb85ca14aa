package services

import (
	"context"

	"devotion-go/internal/models"
	"devotion-go/internal/storage"
)

// ProfileSummary is the public part of a profile shown next to other users' content.
type ProfileSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Church string `json:"church"`
}

func summarize(p models.Profile) ProfileSummary {
	return ProfileSummary{ID: p.ID, Name: p.DisplayName(), Email: p.Email, Church: p.Church}
}

// fetchProfiles resolves ids with a single IN-list query. Duplicates and
// blanks are ignored; unknown ids are simply absent from the result.
func fetchProfiles(ctx context.Context, gw storage.Gateway, ids []string) (map[string]models.Profile, error) {
	seen := make(map[string]bool, len(ids))
	distinct := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		distinct = append(distinct, id)
	}
	out := make(map[string]models.Profile, len(distinct))
	if len(distinct) == 0 {
		return out, nil
	}

	var rows []models.Profile
	if err := gw.Select(ctx, models.TableProfiles, storage.Query{Filter: storage.In("id", distinct)}, &rows); err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

// fetchProfile loads one profile, returning ErrNotFound when absent.
func fetchProfile(ctx context.Context, gw storage.Gateway, filter storage.Filter) (models.Profile, error) {
	var rows []models.Profile
	if err := gw.Select(ctx, models.TableProfiles, storage.Query{Filter: filter, Limit: 1}, &rows); err != nil {
		return models.Profile{}, transportErr("fetch profile", err)
	}
	if len(rows) == 0 {
		return models.Profile{}, ErrNotFound
	}
	return rows[0], nil
}
