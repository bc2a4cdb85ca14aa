package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devotion-go/internal/models"
	"devotion-go/internal/storage"
)

type recordingSink struct {
	mu      sync.Mutex
	updates map[string][]Update
}

func (s *recordingSink) PushUpdate(userID string, u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updates == nil {
		s.updates = make(map[string][]Update)
	}
	s.updates[userID] = append(s.updates[userID], u)
}

func (s *recordingSink) count(userID string, kind UpdateKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.updates[userID] {
		if u.Kind == kind {
			n++
		}
	}
	return n
}

func TestSessionManagerRefcount(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	user := env.createProfile(t, "Ann", "ann@example.com")
	m := NewSessionManager(env.gw, &fakeInvoker{}, SessionOptions{}, nil)
	defer m.Close()

	a, err := m.Acquire(ctx, user.ID)
	require.NoError(t, err)
	b, err := m.Acquire(ctx, user.ID)
	require.NoError(t, err)
	assert.Same(t, a, b)

	m.Release(user.ID)
	got, err := m.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Same(t, a, got, "one reference is still held")

	m.Release(user.ID)
	fresh, err := m.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.NotSame(t, a, fresh)

	m.Release("never-acquired")
}

func TestSessionPushesLiveUpdates(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.createProfile(t, "Alice", "alice@example.com")
	bob := env.createProfile(t, "Bob", "bob@example.com")

	sink := &recordingSink{}
	m := NewSessionManager(env.gw, &fakeInvoker{}, SessionOptions{}, sink)
	defer m.Close()

	bobSession, err := m.Acquire(ctx, bob.ID)
	require.NoError(t, err)
	aliceSession, err := m.Get(ctx, alice.ID)
	require.NoError(t, err)

	_, err = aliceSession.Social.SendFriendRequest(ctx, "bob@example.com")
	require.NoError(t, err)
	_, err = aliceSession.Conversations.SendMessage(ctx, bob.ID, "hi Bob")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return bobSession.Notifications.UnreadCount() == 1 && bobSession.Conversations.UnreadTotal() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.NotificationFriendRequest, bobSession.Notifications.Notifications()[0].Type)
	assert.Eventually(t, func() bool { return sink.count(bob.ID, UpdateNotificationAlert) == 1 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, sink.count(bob.ID, UpdateConversations), 1)

	bobSession.Conversations.Drain()
	aliceSession.Conversations.Drain()
}

func TestSessionCloseStopsSubscriptions(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	user := env.createProfile(t, "Ann", "ann@example.com")

	s := NewSession(env.gw, &fakeInvoker{}, user.ID, SessionOptions{}, nil)
	require.NoError(t, s.Start(ctx))
	s.Close()
	s.Close()

	sender := NewNotificationCenter(env.gw, "someone", nil)
	require.NoError(t, sender.CreateNotification(ctx, user.ID, models.NotificationMessage, "late", "", nil))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, s.Notifications.UnreadCount())
}

func TestSessionManagerEvictsIdleSessions(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	clock := newClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	m := NewSessionManager(env.gw, &fakeInvoker{}, SessionOptions{IdleTimeout: time.Minute, Now: clock.Now}, nil)
	defer m.Close()

	busy, err := m.Get(ctx, "busy")
	require.NoError(t, err)
	idle, err := m.Get(ctx, "idle")
	require.NoError(t, err)
	_, err = m.Acquire(ctx, "held")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	assert.Zero(t, m.evictIdle(clock.Now()))

	clock.Advance(30 * time.Second)
	again, err := m.Get(ctx, "busy")
	require.NoError(t, err)
	assert.Same(t, busy, again)

	assert.Equal(t, 1, m.evictIdle(clock.Now()))
	m.mu.Lock()
	assert.Len(t, m.sessions, 2)
	assert.NotContains(t, m.sessions, "idle")
	m.mu.Unlock()

	// The evicted session no longer listens.
	sender := NewNotificationCenter(env.gw, "someone", nil)
	require.NoError(t, sender.CreateNotification(ctx, "idle", models.NotificationMessage, "late", "", nil))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, idle.Notifications.UnreadCount())

	fresh, err := m.Get(ctx, "idle")
	require.NoError(t, err)
	assert.NotSame(t, idle, fresh)

	clock.Advance(time.Hour)
	assert.Equal(t, 2, m.evictIdle(clock.Now()), "held sessions are never evicted")
}

// slowStartGateway blocks the first conversations query of one user until
// released, so that user's session start hangs.
type slowStartGateway struct {
	storage.Gateway
	userID  string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *slowStartGateway) Select(ctx context.Context, table string, q storage.Query, dest any) error {
	if table == models.TableMessages && q.Filter != nil &&
		q.Filter.Matches(map[string]any{"sender_id": g.userID, "receiver_id": g.userID}) {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	return g.Gateway.Select(ctx, table, q, dest)
}

func TestSessionStartDoesNotBlockOtherUsers(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	gw := &slowStartGateway{Gateway: env.gw, userID: "slow", entered: make(chan struct{}), release: make(chan struct{})}
	m := NewSessionManager(gw, &fakeInvoker{}, SessionOptions{}, nil)
	defer m.Close()

	type result struct {
		s   *Session
		err error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)
	go func() {
		s, err := m.Get(ctx, "slow")
		first <- result{s, err}
	}()
	<-gw.entered
	go func() {
		s, err := m.Acquire(ctx, "slow")
		second <- result{s, err}
	}()

	done := make(chan struct{})
	go func() {
		_, err := m.Get(ctx, "fast")
		assert.NoError(t, err)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("a slow session start blocked another user")
	}

	close(gw.release)
	a, b := <-first, <-second
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.Same(t, a.s, b.s, "concurrent callers share one session")

	m.mu.Lock()
	assert.Equal(t, 1, m.sessions["slow"].refs)
	m.mu.Unlock()
}

func TestSessionManagerClosed(t *testing.T) {
	env := setupEnv(t)
	m := NewSessionManager(env.gw, &fakeInvoker{}, SessionOptions{}, nil)
	m.Close()
	_, err := m.Get(context.Background(), "anyone")
	assert.ErrorIs(t, err, ErrSessionsClosed)
}
