package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"devotion-go/internal/logger"
	"devotion-go/internal/sideeffect"
	"devotion-go/internal/storage"
)

// UpdateSink delivers view updates to a user's connected clients.
type UpdateSink interface {
	PushUpdate(userID string, u Update)
}

// DefaultSessionIdleTimeout is how long a session nobody holds survives
// without being used.
const DefaultSessionIdleTimeout = 15 * time.Minute

// ErrSessionsClosed is returned once the SessionManager has been closed.
var ErrSessionsClosed = errors.New("session manager is closed")

// SessionOptions tunes components created for a session.
type SessionOptions struct {
	InviteTTL time.Duration
	// IdleTimeout applies to sessions without Acquire references; zero uses
	// DefaultSessionIdleTimeout.
	IdleTimeout time.Duration
	// Now drives day keys, invite expiry and idle tracking; nil uses the local clock.
	Now func() time.Time
}

// Session owns one instance of every component for an authenticated user
// and the two standing subscriptions (messages and notifications addressed
// to the user).
type Session struct {
	UserID        string
	Social        *SocialGraph
	Conversations *Conversations
	Notifications *NotificationCenter
	Progress      *ProgressTracker
	Diary         *DiaryTracker
	Community     *CommunityGate
	Prayers       *PrayerWall

	cancel       context.CancelFunc
	unsubscribes []storage.Unsubscribe
	closeOnce    sync.Once
}

// NewSession wires the components for userID. listener may be nil.
func NewSession(gw storage.Gateway, invoker sideeffect.Invoker, userID string, opts SessionOptions, listener Listener) *Session {
	notifications := NewNotificationCenter(gw, userID, listener)
	return &Session{
		UserID:        userID,
		Social:        NewSocialGraph(gw, userID, notifications, listener),
		Conversations: NewConversations(gw, userID, listener),
		Notifications: notifications,
		Progress:      NewProgressTracker(gw, userID, opts.Now, listener),
		Diary:         NewDiaryTracker(gw, userID, opts.Now),
		Community:     NewCommunityGate(gw, invoker, userID, opts.InviteTTL, opts.Now, listener),
		Prayers:       NewPrayerWall(gw, userID, notifications),
	}
}

// Start opens the standing subscriptions and loads the initial views. The
// subscriptions live until Close, independent of ctx's cancellation.
func (s *Session) Start(ctx context.Context) error {
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	unsubMessages, err := s.Conversations.Subscribe(subCtx)
	if err != nil {
		cancel()
		return err
	}
	unsubNotifications, err := s.Notifications.Subscribe(subCtx)
	if err != nil {
		unsubMessages()
		cancel()
		return err
	}
	s.unsubscribes = []storage.Unsubscribe{unsubMessages, unsubNotifications}

	log := logger.Log.With().Str("user_id", s.UserID).Logger()
	if _, err := s.Conversations.FetchConversations(ctx); err != nil {
		log.Warn().Err(err).Msg("initial conversations load failed")
	}
	if _, err := s.Notifications.FetchNotifications(ctx); err != nil {
		log.Warn().Err(err).Msg("initial notifications load failed")
	}
	return nil
}

// Close tears down the subscriptions. In-flight queries are left to finish.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		for _, unsubscribe := range s.unsubscribes {
			unsubscribe()
		}
		if s.cancel != nil {
			s.cancel()
		}
	})
}

type sessionEntry struct {
	session  *Session
	refs     int
	lastUsed time.Time

	// ready is closed when Start has finished; err is its outcome.
	ready chan struct{}
	err   error
}

// SessionManager keeps one Session per user. Sessions held through Acquire
// live until their last Release; the others are evicted by Run once idle.
type SessionManager struct {
	gw      storage.Gateway
	invoker sideeffect.Invoker
	opts    SessionOptions
	sink    UpdateSink

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	closed   bool
}

func NewSessionManager(gw storage.Gateway, invoker sideeffect.Invoker, opts SessionOptions, sink UpdateSink) *SessionManager {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultSessionIdleTimeout
	}
	return &SessionManager{
		gw:       gw,
		invoker:  invoker,
		opts:     opts,
		sink:     sink,
		sessions: make(map[string]*sessionEntry),
	}
}

func (m *SessionManager) now() time.Time {
	if m.opts.Now != nil {
		return m.opts.Now()
	}
	return time.Now()
}

// Get returns the user's session, creating and starting it if needed.
func (m *SessionManager) Get(ctx context.Context, userID string) (*Session, error) {
	return m.session(ctx, userID, false)
}

// Acquire is Get plus a reference held until Release, used by long-lived
// connections such as websockets.
func (m *SessionManager) Acquire(ctx context.Context, userID string) (*Session, error) {
	return m.session(ctx, userID, true)
}

// session finds or starts the user's session. Start runs without the manager
// lock; concurrent callers for the same user wait for the first one.
func (m *SessionManager) session(ctx context.Context, userID string, hold bool) (*Session, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrSessionsClosed
		}
		e, ok := m.sessions[userID]
		if !ok {
			e = &sessionEntry{ready: make(chan struct{})}
			m.sessions[userID] = e
		}
		m.mu.Unlock()
		if !ok {
			m.start(ctx, userID, e)
		}

		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if e.err != nil {
			return nil, e.err
		}

		m.mu.Lock()
		if m.sessions[userID] != e {
			// Released or evicted since it became ready.
			m.mu.Unlock()
			continue
		}
		if hold {
			e.refs++
		}
		e.lastUsed = m.now()
		m.mu.Unlock()
		return e.session, nil
	}
}

func (m *SessionManager) start(ctx context.Context, userID string, e *sessionEntry) {
	var listener Listener
	if m.sink != nil {
		sink := m.sink
		listener = ListenerFunc(func(u Update) { sink.PushUpdate(userID, u) })
	}
	s := NewSession(m.gw, m.invoker, userID, m.opts, listener)
	err := s.Start(ctx)

	m.mu.Lock()
	current := m.sessions[userID] == e
	switch {
	case err != nil:
		if current {
			delete(m.sessions, userID)
		}
		e.err = err
	case !current:
		// Closed while starting.
		e.err = ErrSessionsClosed
	default:
		e.session = s
		e.lastUsed = m.now()
	}
	close(e.ready)
	m.mu.Unlock()

	if err == nil && !current {
		s.Close()
	}
}

// Release drops a reference taken by Acquire and closes the session when
// none remain.
func (m *SessionManager) Release(userID string) {
	m.mu.Lock()
	e, ok := m.sessions[userID]
	if !ok || e.refs == 0 {
		m.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, userID)
	m.mu.Unlock()
	e.session.Close()
}

// Run evicts idle sessions every interval until ctx ends. A non-positive
// interval sweeps once a minute.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.evictIdle(m.now()); n > 0 {
				logger.Debug().Int("sessions", n).Msg("evicted idle sessions")
			}
		}
	}
}

// evictIdle closes every started session with no references that was last
// used at least IdleTimeout before now.
func (m *SessionManager) evictIdle(now time.Time) int {
	m.mu.Lock()
	var idle []*Session
	for userID, e := range m.sessions {
		if e.session == nil || e.refs > 0 || now.Sub(e.lastUsed) < m.opts.IdleTimeout {
			continue
		}
		delete(m.sessions, userID)
		idle = append(idle, e.session)
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// Close closes every session; later Get and Acquire calls fail.
func (m *SessionManager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*sessionEntry)
	m.mu.Unlock()
	for _, e := range sessions {
		if e.session != nil {
			e.session.Close()
		}
	}
}
