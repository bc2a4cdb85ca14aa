package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"devotion-go/internal/logger"
	"devotion-go/internal/models"
)

// tableModels maps every table the gateway serves to its model, so that
// map-based writes still go through the model's schema.
var tableModels = map[string]func() any{
	models.TableProfiles:         func() any { return &models.Profile{} },
	models.TableFriendships:      func() any { return &models.Friendship{} },
	models.TableMessages:         func() any { return &models.Message{} },
	models.TableNotifications:    func() any { return &models.Notification{} },
	models.TableDailyProgress:    func() any { return &models.DailyProgress{} },
	models.TableDiaryEntries:     func() any { return &models.DiaryEntry{} },
	models.TableCommunityInvites: func() any { return &models.CommunityInvite{} },
	models.TablePrayers:          func() any { return &models.Prayer{} },
	models.TablePrayerSupport:    func() any { return &models.PrayerSupport{} },
}

type gormGateway struct {
	db     *gorm.DB
	broker Broker
	now    func() time.Time
	log    zerolog.Logger
}

// NewGormGateway creates a Gateway over db that publishes every successful
// write to broker.
func NewGormGateway(db *gorm.DB, broker Broker) Gateway {
	return &gormGateway{
		db:     db,
		broker: broker,
		now:    func() time.Time { return time.Now().UTC() },
		log:    logger.With("gateway"),
	}
}

func (g *gormGateway) model(table string) (any, error) {
	newModel, ok := tableModels[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return newModel(), nil
}

func (g *gormGateway) Select(ctx context.Context, table string, q Query, dest any) error {
	if _, err := g.model(table); err != nil {
		return err
	}
	tx := g.db.WithContext(ctx).Table(table)
	if q.Filter != nil {
		cond, args := q.Filter.SQL()
		tx = tx.Where(cond, args...)
	}
	for _, o := range q.Order {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if err := tx.Find(dest).Error; err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	return nil
}

func (g *gormGateway) Insert(ctx context.Context, table string, row any) error {
	if _, err := g.model(table); err != nil {
		return err
	}
	if err := g.db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
		return translate("insert", table, err)
	}
	g.publish(ctx, EventInsert, table, row)
	return nil
}

func (g *gormGateway) Update(ctx context.Context, table string, filter Filter, patch map[string]any) (int64, error) {
	model, err := g.model(table)
	if err != nil {
		return 0, err
	}
	cond, args := filter.SQL()

	// Collect the affected ids first so every changed row gets its own event.
	var ids []string
	if err := g.db.WithContext(ctx).Model(model).Where(cond, args...).Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := g.db.WithContext(ctx).Model(model).Where(cond, args...).Where("id IN ?", ids).Updates(patch)
	if res.Error != nil {
		return 0, translate("update", table, res.Error)
	}
	for _, id := range ids {
		record := make(map[string]any, len(patch)+1)
		for k, v := range patch {
			record[k] = v
		}
		record["id"] = id
		g.publish(ctx, EventUpdate, table, record)
	}
	return res.RowsAffected, nil
}

func (g *gormGateway) Upsert(ctx context.Context, table string, row map[string]any, conflictKey []string) error {
	model, err := g.model(table)
	if err != nil {
		return err
	}
	if len(conflictKey) == 0 {
		return fmt.Errorf("upsert %s: empty conflict key", table)
	}
	generatedID, _ := row["id"].(string)
	if generatedID == "" {
		generatedID = uuid.New().String()
		row["id"] = generatedID
	}

	keyCols := make([]clause.Column, 0, len(conflictKey))
	isKey := make(map[string]bool, len(conflictKey))
	for _, k := range conflictKey {
		keyCols = append(keyCols, clause.Column{Name: k})
		isKey[k] = true
	}
	var updateCols []string
	for col := range row {
		if isKey[col] || col == "id" || col == "created_at" {
			continue
		}
		updateCols = append(updateCols, col)
	}
	sort.Strings(updateCols)

	onConflict := clause.OnConflict{Columns: keyCols}
	if len(updateCols) == 0 {
		onConflict.DoNothing = true
	} else {
		onConflict.DoUpdates = clause.AssignmentColumns(updateCols)
	}

	// Create consumes the map, so keep a copy for the event record.
	record := make(map[string]any, len(row))
	for k, v := range row {
		record[k] = v
	}
	if err := g.db.WithContext(ctx).Model(model).Clauses(onConflict).Create(row).Error; err != nil {
		return translate("upsert", table, err)
	}

	// On conflict the stored row keeps its original id.
	keyFilter := make([]Filter, 0, len(conflictKey))
	for _, k := range conflictKey {
		keyFilter = append(keyFilter, Eq(k, record[k]))
	}
	cond, args := And(keyFilter...).SQL()
	var ids []string
	if err := g.db.WithContext(ctx).Model(model).Where(cond, args...).Limit(1).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	evType := EventInsert
	if len(ids) == 1 && ids[0] != generatedID {
		evType = EventUpdate
		record["id"] = ids[0]
	}
	g.publish(ctx, evType, table, record)
	return nil
}

func (g *gormGateway) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	model, err := g.model(table)
	if err != nil {
		return 0, err
	}
	cond, args := filter.SQL()

	var ids []string
	if err := g.db.WithContext(ctx).Model(model).Where(cond, args...).Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := g.db.WithContext(ctx).Where(cond, args...).Where("id IN ?", ids).Delete(model)
	if res.Error != nil {
		return 0, fmt.Errorf("delete %s: %w", table, res.Error)
	}
	for _, id := range ids {
		g.publish(ctx, EventDelete, table, map[string]any{"id": id})
	}
	return res.RowsAffected, nil
}

func (g *gormGateway) Subscribe(ctx context.Context, sub Subscription, handler Handler) (Unsubscribe, error) {
	if _, err := g.model(sub.Table); err != nil {
		return nil, err
	}
	return g.broker.Subscribe(ctx, sub, handler)
}

// publish reports a committed write. The write already succeeded, so a
// broker failure is logged rather than returned.
func (g *gormGateway) publish(ctx context.Context, t EventType, table string, record any) {
	if g.broker == nil {
		return
	}
	raw, err := json.Marshal(record)
	if err != nil {
		g.log.Error().Err(err).Str("table", table).Msg("failed to encode change event")
		return
	}
	ev := ChangeEvent{Type: t, Table: table, Record: raw, CommitTime: g.now()}
	if err := g.broker.Publish(ctx, ev); err != nil {
		g.log.Warn().Err(err).Str("table", table).Str("event", string(t)).Msg("failed to publish change event")
	}
}

func translate(op, table string, err error) error {
	if isDuplicate(err) {
		return fmt.Errorf("%s %s: %w", op, table, ErrDuplicate)
	}
	return fmt.Errorf("%s %s: %w", op, table, err)
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
