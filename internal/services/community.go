package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"devotion-go/internal/logger"
	"devotion-go/internal/models"
	"devotion-go/internal/sideeffect"
	"devotion-go/internal/storage"
)

// DefaultInviteTTL is how long a community invite token stays valid.
const DefaultInviteTTL = 7 * 24 * time.Hour

// AccessState is the state of the community gate.
type AccessState string

const (
	AccessUnknown    AccessState = "unknown"
	AccessLocked     AccessState = "locked"
	AccessInviteSent AccessState = "invite_sent"
	AccessUnlocked   AccessState = "unlocked"
)

// CommunityGate gates the social features behind an emailed invite:
// Unknown resolves to Locked or Unlocked, and Locked moves through
// InviteSent to Unlocked.
type CommunityGate struct {
	gw       storage.Gateway
	invoker  sideeffect.Invoker
	userID   string
	ttl      time.Duration
	now      func() time.Time
	listener Listener
	log      zerolog.Logger

	mu    sync.Mutex
	state AccessState
}

// NewCommunityGate creates a gate in the Unknown state. A zero ttl uses
// DefaultInviteTTL and a nil now uses the wall clock.
func NewCommunityGate(gw storage.Gateway, invoker sideeffect.Invoker, userID string, ttl time.Duration, now func() time.Time, listener Listener) *CommunityGate {
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	if now == nil {
		now = time.Now
	}
	return &CommunityGate{
		gw:       gw,
		invoker:  invoker,
		userID:   userID,
		ttl:      ttl,
		now:      now,
		listener: listenerOrNop(listener),
		log:      logger.With("community-gate").With().Str("user_id", userID).Logger(),
		state:    AccessUnknown,
	}
}

// State returns the current gate state.
func (g *CommunityGate) State() AccessState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *CommunityGate) setState(s AccessState) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
	g.listener.OnUpdate(Update{Kind: UpdateCommunityAccess, Payload: s})
}

// CheckAccess resolves the state from the profile's access flag. A pending
// invite moves a locked user to InviteSent.
func (g *CommunityGate) CheckAccess(ctx context.Context) (AccessState, error) {
	profile, err := fetchProfile(ctx, g.gw, storage.Eq("id", g.userID))
	if err != nil {
		return g.State(), err
	}
	if profile.CommunityAccess {
		g.setState(AccessUnlocked)
		return AccessUnlocked, nil
	}

	state := AccessLocked
	invite, err := g.findInvite(ctx, storage.Eq("user_id", g.userID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return g.State(), err
	}
	if err == nil && !invite.IsAccepted {
		state = AccessInviteSent
	}
	g.setState(state)
	return state, nil
}

// RequestAccess issues the user's single invite and emails the token. It
// needs a resolved, still locked gate; a user who already has an invite row
// gets ErrAlreadyInvited. If delivery fails the invite is kept, the state is
// InviteSent and ErrDeliveryFailed is returned.
func (g *CommunityGate) RequestAccess(ctx context.Context) (*models.CommunityInvite, error) {
	switch g.State() {
	case AccessLocked, AccessInviteSent:
	default:
		return nil, ErrInvalidState
	}

	_, err := g.findInvite(ctx, storage.Eq("user_id", g.userID))
	switch {
	case err == nil:
		return nil, ErrAlreadyInvited
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	profile, err := fetchProfile(ctx, g.gw, storage.Eq("id", g.userID))
	if err != nil {
		return nil, err
	}

	sentAt := g.now().UTC()
	expiresAt := sentAt.Add(g.ttl)
	invite := &models.CommunityInvite{
		UserID:      g.userID,
		Email:       profile.Email,
		InviteToken: uuid.New().String(),
		InvitedAt:   sentAt,
		SentAt:      &sentAt,
		ExpiresAt:   &expiresAt,
	}
	if err := g.gw.Insert(ctx, models.TableCommunityInvites, invite); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrAlreadyInvited
		}
		return nil, transportErr("request community access", err)
	}

	payload := sideeffect.CommunityInvitePayload{Email: invite.Email, InviteToken: invite.InviteToken}
	if err := g.invoker.Invoke(ctx, sideeffect.FunctionSendCommunityInvite, payload, nil); err != nil {
		g.log.Warn().Err(err).Msg("community invite saved but email delivery failed")
		g.setState(AccessInviteSent)
		return invite, ErrDeliveryFailed
	}

	g.setState(AccessInviteSent)
	return invite, nil
}

// AcceptInvite redeems token: the invite is marked accepted and the
// profile's access flag is set, as two sequential writes.
func (g *CommunityGate) AcceptInvite(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	invite, err := g.findInvite(ctx, storage.Eq("invite_token", token))
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if invite.IsAccepted || invite.UserID != g.userID {
		return ErrInvalidToken
	}
	if invite.Expired(g.now()) {
		return ErrExpired
	}

	n, err := g.gw.Update(ctx, models.TableCommunityInvites,
		storage.And(storage.Eq("id", invite.ID), storage.Eq("is_accepted", false)),
		map[string]any{"is_accepted": true},
	)
	if err != nil {
		return transportErr("accept community invite", err)
	}
	if n == 0 {
		// Redeemed concurrently.
		return ErrInvalidToken
	}
	if _, err := g.gw.Update(ctx, models.TableProfiles, storage.Eq("id", g.userID),
		map[string]any{"community_access": true}); err != nil {
		return transportErr("unlock community access", err)
	}

	g.setState(AccessUnlocked)
	return nil
}

func (g *CommunityGate) findInvite(ctx context.Context, filter storage.Filter) (models.CommunityInvite, error) {
	var rows []models.CommunityInvite
	if err := g.gw.Select(ctx, models.TableCommunityInvites, storage.Query{Filter: filter, Limit: 1}, &rows); err != nil {
		return models.CommunityInvite{}, transportErr("fetch community invite", err)
	}
	if len(rows) == 0 {
		return models.CommunityInvite{}, ErrNotFound
	}
	return rows[0], nil
}
