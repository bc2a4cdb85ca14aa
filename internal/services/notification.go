package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"devotion-go/internal/logger"
	"devotion-go/internal/models"
	"devotion-go/internal/storage"
)

// NotificationView is a notification with the sender's display name resolved.
type NotificationView struct {
	models.Notification
	FromUserName string `json:"from_user_name,omitempty"`
}

// NotificationCenter owns one user's notification feed and unread count. It
// is also the Notifier other components use to alert someone else.
type NotificationCenter struct {
	gw       storage.Gateway
	userID   string
	listener Listener
	log      zerolog.Logger

	mu     sync.Mutex
	items  []NotificationView
	unread int
	// live holds ids merged by the subscription since the last fetch began.
	live map[string]struct{}
}

func NewNotificationCenter(gw storage.Gateway, userID string, listener Listener) *NotificationCenter {
	return &NotificationCenter{
		gw:       gw,
		userID:   userID,
		listener: listenerOrNop(listener),
		log:      logger.With("notifications").With().Str("user_id", userID).Logger(),
		live:     make(map[string]struct{}),
	}
}

// Notifications returns the local feed, newest first.
func (c *NotificationCenter) Notifications() []NotificationView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]NotificationView(nil), c.items...)
}

// UnreadCount returns the local unread counter.
func (c *NotificationCenter) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// FetchNotifications loads the feed newest first and resolves sender names in
// one batched lookup. Notifications delivered by the subscription while the
// query runs are kept. On failure the previous feed is kept.
func (c *NotificationCenter) FetchNotifications(ctx context.Context) ([]NotificationView, error) {
	c.mu.Lock()
	c.live = make(map[string]struct{})
	c.mu.Unlock()

	var rows []models.Notification
	q := storage.Query{
		Filter: storage.Eq("user_id", c.userID),
		Order:  []storage.OrderBy{{Column: "created_at", Desc: true}},
	}
	if err := c.gw.Select(ctx, models.TableNotifications, q, &rows); err != nil {
		return nil, transportErr("fetch notifications", err)
	}

	senders := make([]string, 0, len(rows))
	for _, n := range rows {
		if n.FromUserID != nil {
			senders = append(senders, *n.FromUserID)
		}
	}
	profiles, err := fetchProfiles(ctx, c.gw, senders)
	if err != nil {
		return nil, transportErr("fetch notifications", err)
	}

	items := make([]NotificationView, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, n := range rows {
		v := NotificationView{Notification: n}
		if n.FromUserID != nil {
			if p, ok := profiles[*n.FromUserID]; ok {
				v.FromUserName = p.DisplayName()
			}
		}
		seen[n.ID] = struct{}{}
		items = append(items, v)
	}

	c.mu.Lock()
	merged := false
	for _, v := range c.items {
		if _, ok := c.live[v.ID]; !ok {
			continue
		}
		if _, ok := seen[v.ID]; !ok {
			items = append(items, v)
			merged = true
		}
	}
	if merged {
		sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	}
	unread := 0
	for _, v := range items {
		if !v.IsRead {
			unread++
		}
	}
	c.items = items
	c.unread = unread
	c.mu.Unlock()
	c.publish()
	return append([]NotificationView(nil), items...), nil
}

// MarkAsRead flips one notification to read. Local state changes first and is
// not rolled back if the write fails.
func (c *NotificationCenter) MarkAsRead(ctx context.Context, id string) error {
	c.mu.Lock()
	for i := range c.items {
		if c.items[i].ID == id && !c.items[i].IsRead {
			c.items[i].IsRead = true
			c.unread--
		}
	}
	c.mu.Unlock()
	c.publish()

	_, err := c.gw.Update(ctx, models.TableNotifications,
		storage.And(storage.Eq("id", id), storage.Eq("user_id", c.userID)),
		map[string]any{"is_read": true},
	)
	if err != nil {
		return transportErr("mark notification read", err)
	}
	return nil
}

// MarkAllAsRead flips every unread notification of the user. Like MarkAsRead
// it is optimistic without rollback.
func (c *NotificationCenter) MarkAllAsRead(ctx context.Context) error {
	c.mu.Lock()
	for i := range c.items {
		c.items[i].IsRead = true
	}
	c.unread = 0
	c.mu.Unlock()
	c.publish()

	_, err := c.gw.Update(ctx, models.TableNotifications,
		storage.And(storage.Eq("user_id", c.userID), storage.Eq("is_read", false)),
		map[string]any{"is_read": true},
	)
	if err != nil {
		return transportErr("mark all notifications read", err)
	}
	return nil
}

// CreateNotification raises a notification for userID, attributed to the
// current user. The caller's own feed is not touched.
func (c *NotificationCenter) CreateNotification(ctx context.Context, userID string, t models.NotificationType, title, content string, relatedID *string) error {
	if !models.IsValidNotificationType(t) {
		return validationErr("unknown notification type " + string(t))
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(title) == "" {
		return validationErr("recipient and title are required")
	}
	from := c.userID
	n := &models.Notification{
		UserID:     userID,
		Type:       t,
		Title:      title,
		Content:    content,
		RelatedID:  relatedID,
		FromUserID: &from,
	}
	if err := c.gw.Insert(ctx, models.TableNotifications, n); err != nil {
		return transportErr("create notification", err)
	}
	return nil
}

// Subscribe starts the standing subscription for notifications addressed to
// the user. Every insert is prepended to the feed, counted as unread and
// raised as an alert.
func (c *NotificationCenter) Subscribe(ctx context.Context) (storage.Unsubscribe, error) {
	sub := storage.Subscription{
		Table:  models.TableNotifications,
		Events: []storage.EventType{storage.EventInsert},
		Filter: storage.Eq("user_id", c.userID),
	}
	unsubscribe, err := c.gw.Subscribe(ctx, sub, c.onInsert)
	if err != nil {
		return nil, transportErr("subscribe notifications", err)
	}
	return unsubscribe, nil
}

func (c *NotificationCenter) onInsert(ctx context.Context, ev storage.ChangeEvent) {
	var n models.Notification
	if err := ev.Decode(&n); err != nil {
		c.log.Warn().Err(err).Msg("skipping undecodable notification event")
		return
	}

	v := NotificationView{Notification: n}
	if n.FromUserID != nil {
		if p, err := fetchProfile(ctx, c.gw, storage.Eq("id", *n.FromUserID)); err == nil {
			v.FromUserName = p.DisplayName()
		}
	}

	c.mu.Lock()
	for _, existing := range c.items {
		if existing.ID == n.ID {
			c.mu.Unlock()
			return
		}
	}
	c.items = append([]NotificationView{v}, c.items...)
	c.live[n.ID] = struct{}{}
	if !n.IsRead {
		c.unread++
	}
	c.mu.Unlock()

	c.listener.OnUpdate(Update{Kind: UpdateNotificationAlert, Payload: v})
	c.publish()
}

func (c *NotificationCenter) publish() {
	c.mu.Lock()
	payload := struct {
		Items  []NotificationView `json:"items"`
		Unread int                `json:"unread"`
	}{append([]NotificationView(nil), c.items...), c.unread}
	c.mu.Unlock()
	c.listener.OnUpdate(Update{Kind: UpdateNotifications, Payload: payload})
}
