package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"devotion-go/internal/models"
	"devotion-go/internal/storage"
)

// ProgressKind is one of the three daily tasks.
type ProgressKind string

const (
	ProgressQuote      ProgressKind = "quote"
	ProgressPassage    ProgressKind = "passage"
	ProgressDevotional ProgressKind = "devotional"
)

// Column returns the flag column for k, or "" for an unknown kind.
func (k ProgressKind) Column() string {
	switch k {
	case ProgressQuote:
		return "quote_completed"
	case ProgressPassage:
		return "passage_completed"
	case ProgressDevotional:
		return "devotional_completed"
	}
	return ""
}

var dateKeyColumns = []string{"user_id", "date"}

// ProgressTracker records which daily tasks a user completed, one row per
// user per day keyed by the tracker's clock.
type ProgressTracker struct {
	gw       storage.Gateway
	userID   string
	listener Listener
	now      func() time.Time

	mu    sync.Mutex
	today models.DailyProgress
}

// NewProgressTracker creates a tracker. now supplies the day key; nil uses
// the local clock.
func NewProgressTracker(gw storage.Gateway, userID string, now func() time.Time, listener Listener) *ProgressTracker {
	if now == nil {
		now = time.Now
	}
	return &ProgressTracker{gw: gw, userID: userID, now: now, listener: listenerOrNop(listener)}
}

// Today returns the cached row for the current day key. It is zero-valued
// (all flags false) until something was fetched or written today.
func (p *ProgressTracker) Today() models.DailyProgress {
	date := models.DateKey(p.now())
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.today.Date != date {
		return models.DailyProgress{UserID: p.userID, Date: date}
	}
	return p.today
}

// FetchToday loads today's row from the store.
func (p *ProgressTracker) FetchToday(ctx context.Context) (models.DailyProgress, error) {
	date := models.DateKey(p.now())
	var rows []models.DailyProgress
	q := storage.Query{
		Filter: storage.And(storage.Eq("user_id", p.userID), storage.Eq("date", date)),
		Limit:  1,
	}
	if err := p.gw.Select(ctx, models.TableDailyProgress, q, &rows); err != nil {
		return models.DailyProgress{}, transportErr("fetch progress", err)
	}
	row := models.DailyProgress{UserID: p.userID, Date: date}
	if len(rows) > 0 {
		row = rows[0]
	}
	p.setToday(row)
	return row, nil
}

// UpdateProgress marks kind as completed for today. Only that flag is sent,
// so flags already set today are never cleared, and repeating the call
// leaves the row unchanged.
func (p *ProgressTracker) UpdateProgress(ctx context.Context, kind ProgressKind) (models.DailyProgress, error) {
	column := kind.Column()
	if column == "" {
		return models.DailyProgress{}, validationErr("unknown progress kind " + string(kind))
	}
	now := p.now()
	date := models.DateKey(now)
	row := map[string]any{
		"id":         uuid.New().String(),
		"user_id":    p.userID,
		"date":       date,
		"created_at": now.UTC(),
		column:       true,
	}
	if err := p.gw.Upsert(ctx, models.TableDailyProgress, row, dateKeyColumns); err != nil {
		return models.DailyProgress{}, transportErr("update progress", err)
	}

	updated, err := p.FetchToday(ctx)
	if err != nil {
		// The write succeeded; reflect it locally on top of the cached row.
		cached := p.Today()
		setFlag(&cached, kind)
		p.setToday(cached)
		return cached, nil
	}
	return updated, nil
}

// FetchProgress returns the most recent days rows, newest first.
func (p *ProgressTracker) FetchProgress(ctx context.Context, days int) ([]models.DailyProgress, error) {
	if days <= 0 {
		days = 7
	}
	var rows []models.DailyProgress
	q := storage.Query{
		Filter: storage.Eq("user_id", p.userID),
		Order:  []storage.OrderBy{{Column: "date", Desc: true}},
		Limit:  days,
	}
	if err := p.gw.Select(ctx, models.TableDailyProgress, q, &rows); err != nil {
		return nil, transportErr("fetch progress history", err)
	}
	return rows, nil
}

func (p *ProgressTracker) setToday(row models.DailyProgress) {
	p.mu.Lock()
	p.today = row
	p.mu.Unlock()
	p.listener.OnUpdate(Update{Kind: UpdateProgress, Payload: row})
}

func setFlag(row *models.DailyProgress, kind ProgressKind) {
	switch kind {
	case ProgressQuote:
		row.QuoteCompleted = true
	case ProgressPassage:
		row.PassageCompleted = true
	case ProgressDevotional:
		row.DevotionalCompleted = true
	}
}
