package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"devotion-go/internal/models"
)

type recordingBroker struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (b *recordingBroker) Publish(_ context.Context, ev ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBroker) Subscribe(context.Context, Subscription, Handler) (Unsubscribe, error) {
	return func() {}, nil
}

func (b *recordingBroker) Events() []ChangeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ChangeEvent(nil), b.events...)
}

func (b *recordingBroker) Reset() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite("file:" + uuid.New().String() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, AutoMigrateTables(db))
	return db
}

func setupGateway(t *testing.T) (Gateway, *recordingBroker) {
	broker := &recordingBroker{}
	return NewGormGateway(setupTestDB(t), broker), broker
}

func TestInsertPublishesRecord(t *testing.T) {
	gw, broker := setupGateway(t)
	ctx := context.Background()

	p := &models.Profile{Name: "Ruth", Email: "ruth@example.com"}
	require.NoError(t, gw.Insert(ctx, models.TableProfiles, p))
	assert.NotEmpty(t, p.ID)

	events := broker.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventInsert, events[0].Type)
	assert.Equal(t, models.TableProfiles, events[0].Table)

	var decoded models.Profile
	require.NoError(t, events[0].Decode(&decoded))
	assert.Equal(t, p.ID, decoded.ID)
	assert.Equal(t, "ruth@example.com", decoded.Email)
}

func TestInsertDuplicate(t *testing.T) {
	gw, broker := setupGateway(t)
	ctx := context.Background()

	require.NoError(t, gw.Insert(ctx, models.TableProfiles, &models.Profile{Email: "dup@example.com"}))
	err := gw.Insert(ctx, models.TableProfiles, &models.Profile{Email: "dup@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Len(t, broker.Events(), 1, "failed writes publish nothing")
}

func TestUnknownTable(t *testing.T) {
	gw, _ := setupGateway(t)
	var rows []models.Profile
	assert.Error(t, gw.Select(context.Background(), "nope", Query{}, &rows))
	_, err := gw.Subscribe(context.Background(), Subscription{Table: "nope"}, func(context.Context, ChangeEvent) {})
	assert.Error(t, err)
}

func TestSelectFilterOrderLimit(t *testing.T) {
	gw, _ := setupGateway(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, content := range []string{"first", "second", "third"} {
		require.NoError(t, gw.Insert(ctx, models.TableMessages, &models.Message{
			SenderID: "a", ReceiverID: "b", Content: content, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, gw.Insert(ctx, models.TableMessages, &models.Message{SenderID: "c", ReceiverID: "d", Content: "other"}))

	var msgs []models.Message
	err := gw.Select(ctx, models.TableMessages, Query{
		Filter: Eq("receiver_id", "b"),
		Order:  []OrderBy{{Column: "created_at", Desc: true}},
		Limit:  2,
	}, &msgs)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "third", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)

	msgs = nil
	require.NoError(t, gw.Select(ctx, models.TableMessages, Query{Filter: In("sender_id", []string{"a", "c"})}, &msgs))
	assert.Len(t, msgs, 4)
}

func TestUpdateEmitsEventPerRow(t *testing.T) {
	gw, broker := setupGateway(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, gw.Insert(ctx, models.TableNotifications, &models.Notification{
			UserID: "u1", Type: models.NotificationMessage, Title: "hi",
		}))
	}
	require.NoError(t, gw.Insert(ctx, models.TableNotifications, &models.Notification{
		UserID: "u2", Type: models.NotificationMessage, Title: "hi",
	}))
	broker.Reset()

	n, err := gw.Update(ctx, models.TableNotifications, Eq("user_id", "u1"), map[string]any{"is_read": true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	events := broker.Events()
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, EventUpdate, ev.Type)
		fields, err := ev.Fields()
		require.NoError(t, err)
		assert.Equal(t, true, fields["is_read"])
		assert.NotEmpty(t, fields["id"])
	}

	n, err = gw.Update(ctx, models.TableNotifications, Eq("user_id", "nobody"), map[string]any{"is_read": true})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
	assert.Len(t, broker.Events(), 2)
}

func TestUpsertInsertThenUpdate(t *testing.T) {
	gw, broker := setupGateway(t)
	ctx := context.Background()
	key := []string{"user_id", "date"}

	first := map[string]any{
		"id": uuid.New().String(), "user_id": "u1", "date": "2026-03-01",
		"created_at": time.Now().UTC(), "quote_completed": true,
	}
	firstID := first["id"]
	require.NoError(t, gw.Upsert(ctx, models.TableDailyProgress, first, key))

	second := map[string]any{
		"id": uuid.New().String(), "user_id": "u1", "date": "2026-03-01",
		"created_at": time.Now().UTC(), "passage_completed": true,
	}
	require.NoError(t, gw.Upsert(ctx, models.TableDailyProgress, second, key))

	var rows []models.DailyProgress
	require.NoError(t, gw.Select(ctx, models.TableDailyProgress, Query{Filter: Eq("user_id", "u1")}, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, firstID, rows[0].ID)
	assert.True(t, rows[0].QuoteCompleted, "flags not in the patch are kept")
	assert.True(t, rows[0].PassageCompleted)
	assert.False(t, rows[0].DevotionalCompleted)

	events := broker.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventInsert, events[0].Type)
	assert.Equal(t, EventUpdate, events[1].Type)
	fields, err := events[1].Fields()
	require.NoError(t, err)
	assert.Equal(t, firstID, fields["id"])
}

func TestUpsertRequiresKey(t *testing.T) {
	gw, _ := setupGateway(t)
	err := gw.Upsert(context.Background(), models.TableDailyProgress, map[string]any{"user_id": "u1"}, nil)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	gw, broker := setupGateway(t)
	ctx := context.Background()

	f := &models.Friendship{UserID: "a", FriendID: "b"}
	require.NoError(t, gw.Insert(ctx, models.TableFriendships, f))
	broker.Reset()

	n, err := gw.Delete(ctx, models.TableFriendships, And(Eq("id", f.ID), Eq("status", "accepted")))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = gw.Delete(ctx, models.TableFriendships, Eq("id", f.ID))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	events := broker.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventDelete, events[0].Type)

	var rows []models.Friendship
	require.NoError(t, gw.Select(ctx, models.TableFriendships, Query{}, &rows))
	assert.Empty(t, rows)
}

func TestSubscriptionAccepts(t *testing.T) {
	sub := Subscription{
		Table:  models.TableMessages,
		Events: []EventType{EventInsert},
		Filter: Eq("receiver_id", "u1"),
	}
	ev := ChangeEvent{Type: EventInsert, Table: models.TableMessages, Record: []byte(`{"id":"m","receiver_id":"u1"}`)}
	assert.True(t, sub.Accepts(ev))

	ev.Type = EventUpdate
	assert.False(t, sub.Accepts(ev))

	ev = ChangeEvent{Type: EventInsert, Table: models.TableMessages, Record: []byte(`{"id":"m","receiver_id":"u2"}`)}
	assert.False(t, sub.Accepts(ev))

	ev.Table = models.TableNotifications
	ev.Record = []byte(`{"receiver_id":"u1"}`)
	assert.False(t, sub.Accepts(ev))
}
