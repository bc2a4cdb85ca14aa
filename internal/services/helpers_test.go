package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"devotion-go/internal/models"
	"devotion-go/internal/realtime"
	"devotion-go/internal/sideeffect"
	"devotion-go/internal/storage"
)

type testEnv struct {
	db *gorm.DB
	gw storage.Gateway
}

// setupEnv opens a private in-memory database behind a gateway whose writes
// are fanned out by a running MemoryBroker.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := storage.OpenSQLite("file:" + uuid.New().String() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrateTables(db))

	ctx, cancel := context.WithCancel(context.Background())
	broker := realtime.NewMemoryBroker(64)
	go broker.Run(ctx)
	t.Cleanup(cancel)

	return &testEnv{db: db, gw: storage.NewGormGateway(db, broker)}
}

func (e *testEnv) createProfile(t *testing.T, name, email string) models.Profile {
	t.Helper()
	p := models.Profile{Name: name, Email: email}
	require.NoError(t, e.db.Create(&p).Error)
	return p
}

// fixedClock is a settable clock for day keys and invite expiry.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *fixedClock { return &fixedClock{now: t} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type updateRecorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *updateRecorder) OnUpdate(u Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *updateRecorder) count(kind UpdateKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.updates {
		if u.Kind == kind {
			n++
		}
	}
	return n
}

type notifyCall struct {
	UserID string
	Type   models.NotificationType
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

func (n *fakeNotifier) CreateNotification(_ context.Context, userID string, t models.NotificationType, _, _ string, _ *string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{UserID: userID, Type: t})
	return n.err
}

type invokeCall struct {
	Function string
	Payload  any
}

type fakeInvoker struct {
	mu    sync.Mutex
	calls []invokeCall
	reply string
	err   error
}

func (f *fakeInvoker) Invoke(_ context.Context, function string, payload any, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, invokeCall{Function: function, Payload: payload})
	if f.err != nil {
		return f.err
	}
	if r, ok := out.(*sideeffect.PastoralReplyResponse); ok {
		r.Reply = f.reply
	}
	return nil
}

var errBoom = errors.New("boom")

func insertEvent(t *testing.T, table string, row any) storage.ChangeEvent {
	t.Helper()
	raw, err := json.Marshal(row)
	require.NoError(t, err)
	return storage.ChangeEvent{Type: storage.EventInsert, Table: table, Record: raw, CommitTime: time.Now().UTC()}
}
