package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"devotion-go/internal/logger"
	"devotion-go/internal/models"
	"devotion-go/internal/storage"
)

var validate = validator.New()

// Friend is an accepted friendship resolved to the other party's profile.
type Friend struct {
	FriendshipID string         `json:"friendship_id"`
	Profile      ProfileSummary `json:"profile"`
	Since        string         `json:"since"`
}

// FriendRequest is an inbound pending friendship with the requester's profile.
type FriendRequest struct {
	models.Friendship
	Requester ProfileSummary `json:"requester"`
}

// Notifier is the single contract through which components raise a
// notification for another user.
type Notifier interface {
	CreateNotification(ctx context.Context, userID string, t models.NotificationType, title, content string, relatedID *string) error
}

// SocialGraph owns one user's view of the friendship relation: accepted
// friends and the inbox of requests addressed to them.
type SocialGraph struct {
	gw       storage.Gateway
	userID   string
	notifier Notifier
	listener Listener
	log      zerolog.Logger

	mu      sync.Mutex
	friends []Friend
	pending []FriendRequest
}

func NewSocialGraph(gw storage.Gateway, userID string, notifier Notifier, listener Listener) *SocialGraph {
	return &SocialGraph{
		gw:       gw,
		userID:   userID,
		notifier: notifier,
		listener: listenerOrNop(listener),
		log:      logger.With("social-graph").With().Str("user_id", userID).Logger(),
	}
}

// Friends returns the last fetched friends list.
func (s *SocialGraph) Friends() []Friend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Friend(nil), s.friends...)
}

// PendingRequests returns the last fetched inbox of pending requests.
func (s *SocialGraph) PendingRequests() []FriendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FriendRequest(nil), s.pending...)
}

// FetchFriends loads accepted friendships where the user is either party.
// On failure the previous list is kept.
func (s *SocialGraph) FetchFriends(ctx context.Context) ([]Friend, error) {
	var rows []models.Friendship
	q := storage.Query{
		Filter: storage.And(
			storage.Eq("status", models.FriendshipAccepted),
			storage.Or(storage.Eq("user_id", s.userID), storage.Eq("friend_id", s.userID)),
		),
		Order: []storage.OrderBy{{Column: "created_at", Desc: true}},
	}
	if err := s.gw.Select(ctx, models.TableFriendships, q, &rows); err != nil {
		return nil, transportErr("fetch friends", err)
	}

	otherIDs := make([]string, 0, len(rows))
	for _, f := range rows {
		otherIDs = append(otherIDs, f.Other(s.userID))
	}
	profiles, err := fetchProfiles(ctx, s.gw, otherIDs)
	if err != nil {
		return nil, transportErr("fetch friends", err)
	}

	friends := make([]Friend, 0, len(rows))
	for _, f := range rows {
		p, ok := profiles[f.Other(s.userID)]
		if !ok {
			continue
		}
		friends = append(friends, Friend{
			FriendshipID: f.ID,
			Profile:      summarize(p),
			Since:        models.DateKey(f.CreatedAt),
		})
	}

	s.mu.Lock()
	s.friends = friends
	s.mu.Unlock()
	s.listener.OnUpdate(Update{Kind: UpdateFriends, Payload: friends})
	return append([]Friend(nil), friends...), nil
}

// FetchPendingRequests loads pending requests addressed to the user. Requests
// the user sent are not included.
func (s *SocialGraph) FetchPendingRequests(ctx context.Context) ([]FriendRequest, error) {
	var rows []models.Friendship
	q := storage.Query{
		Filter: storage.And(
			storage.Eq("friend_id", s.userID),
			storage.Eq("status", models.FriendshipPending),
		),
		Order: []storage.OrderBy{{Column: "created_at", Desc: true}},
	}
	if err := s.gw.Select(ctx, models.TableFriendships, q, &rows); err != nil {
		return nil, transportErr("fetch pending requests", err)
	}

	requesterIDs := make([]string, 0, len(rows))
	for _, f := range rows {
		requesterIDs = append(requesterIDs, f.UserID)
	}
	profiles, err := fetchProfiles(ctx, s.gw, requesterIDs)
	if err != nil {
		return nil, transportErr("fetch pending requests", err)
	}

	pending := make([]FriendRequest, 0, len(rows))
	for _, f := range rows {
		pending = append(pending, FriendRequest{Friendship: f, Requester: summarize(profiles[f.UserID])})
	}

	s.mu.Lock()
	s.pending = pending
	s.mu.Unlock()
	s.listener.OnUpdate(Update{Kind: UpdatePendingRequests, Payload: pending})
	return append([]FriendRequest(nil), pending...), nil
}

// SendFriendRequest creates a pending friendship to the user registered under
// email and notifies them.
func (s *SocialGraph) SendFriendRequest(ctx context.Context, email string) (*models.Friendship, error) {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, validationErr("a valid email is required")
	}

	target, err := fetchProfile(ctx, s.gw, storage.Eq("email", email))
	if err != nil {
		return nil, err
	}
	if target.ID == s.userID {
		return nil, ErrSelfReference
	}

	var existing []models.Friendship
	either := storage.Or(
		storage.And(storage.Eq("user_id", s.userID), storage.Eq("friend_id", target.ID)),
		storage.And(storage.Eq("user_id", target.ID), storage.Eq("friend_id", s.userID)),
	)
	if err := s.gw.Select(ctx, models.TableFriendships, storage.Query{Filter: either, Limit: 1}, &existing); err != nil {
		return nil, transportErr("send friend request", err)
	}
	if len(existing) > 0 {
		return nil, ErrDuplicateRelation
	}

	f := &models.Friendship{UserID: s.userID, FriendID: target.ID, Status: models.FriendshipPending}
	if err := s.gw.Insert(ctx, models.TableFriendships, f); err != nil {
		// A concurrent request for the same pair lost the race on the pair index.
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrDuplicateRelation
		}
		return nil, transportErr("send friend request", err)
	}

	if s.notifier != nil {
		relatedID := f.ID
		err := s.notifier.CreateNotification(ctx, target.ID, models.NotificationFriendRequest,
			"New friend request", "You have a new friend request", &relatedID)
		if err != nil {
			// The request itself stands; the target still sees it in their inbox.
			s.log.Warn().Err(err).Str("friend_id", target.ID).Msg("friend request saved but notification failed")
		}
	}
	return f, nil
}

// AcceptFriendRequest accepts a pending request addressed to the user and
// refreshes both lists. The requester is not notified.
func (s *SocialGraph) AcceptFriendRequest(ctx context.Context, friendshipID string) error {
	n, err := s.gw.Update(ctx, models.TableFriendships,
		storage.And(
			storage.Eq("id", friendshipID),
			storage.Eq("friend_id", s.userID),
			storage.Eq("status", models.FriendshipPending),
		),
		map[string]any{"status": models.FriendshipAccepted},
	)
	if err != nil {
		return transportErr("accept friend request", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.refresh(ctx)
	return nil
}

// RejectFriendRequest deletes a pending request addressed to the user. No
// trace is left, so the requester may ask again later.
func (s *SocialGraph) RejectFriendRequest(ctx context.Context, friendshipID string) error {
	n, err := s.gw.Delete(ctx, models.TableFriendships,
		storage.And(
			storage.Eq("id", friendshipID),
			storage.Eq("friend_id", s.userID),
			storage.Eq("status", models.FriendshipPending),
		),
	)
	if err != nil {
		return transportErr("reject friend request", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := s.FetchPendingRequests(ctx); err != nil {
		s.log.Warn().Err(err).Msg("refresh pending requests after reject")
	}
	return nil
}

// refresh reloads both lists; failures keep the previous state.
func (s *SocialGraph) refresh(ctx context.Context) {
	if _, err := s.FetchFriends(ctx); err != nil {
		s.log.Warn().Err(err).Msg("refresh friends")
	}
	if _, err := s.FetchPendingRequests(ctx); err != nil {
		s.log.Warn().Err(err).Msg("refresh pending requests")
	}
}
