package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"devotion-go/internal/logger"
	"devotion-go/internal/models"
	"devotion-go/internal/storage"
)

// Conversation is derived from messages, one per correspondent.
type Conversation struct {
	PeerID          string    `json:"peer_id"`
	PeerName        string    `json:"peer_name"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadCount     int       `json:"unread_count"`
}

// Thread is the message history with the peer whose conversation is open.
type Thread struct {
	PeerID   string           `json:"peer_id"`
	Messages []models.Message `json:"messages"`
}

// Conversations aggregates one user's direct messages into per-peer
// conversations with unread counts, and tracks the open thread.
type Conversations struct {
	gw       storage.Gateway
	userID   string
	listener Listener
	now      func() time.Time
	log      zerolog.Logger

	mu            sync.Mutex
	conversations []Conversation
	openPeer      string
	thread        []models.Message

	// background tracks fire-and-forget mark-read work.
	background sync.WaitGroup
}

func NewConversations(gw storage.Gateway, userID string, listener Listener) *Conversations {
	return &Conversations{
		gw:       gw,
		userID:   userID,
		listener: listenerOrNop(listener),
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.With("conversations").With().Str("user_id", userID).Logger(),
	}
}

// Conversations returns the last computed conversation list, most recent first.
func (c *Conversations) Conversations() []Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Conversation(nil), c.conversations...)
}

// UnreadTotal sums the unread counts of all conversations.
func (c *Conversations) UnreadTotal() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, conv := range c.conversations {
		total += conv.UnreadCount
	}
	return total
}

// Thread returns the open thread.
func (c *Conversations) Thread() Thread {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Thread{PeerID: c.openPeer, Messages: append([]models.Message(nil), c.thread...)}
}

// Drain waits for outstanding background mark-read work.
func (c *Conversations) Drain() {
	c.background.Wait()
}

// FetchConversations recomputes the conversation list from every message
// touching the user. On failure the previous list is kept.
func (c *Conversations) FetchConversations(ctx context.Context) ([]Conversation, error) {
	var msgs []models.Message
	q := storage.Query{
		Filter: storage.Or(storage.Eq("sender_id", c.userID), storage.Eq("receiver_id", c.userID)),
		Order:  []storage.OrderBy{{Column: "created_at", Desc: true}},
	}
	if err := c.gw.Select(ctx, models.TableMessages, q, &msgs); err != nil {
		return nil, transportErr("fetch conversations", err)
	}

	convs := foldConversations(c.userID, msgs)

	peers := make([]string, 0, len(convs))
	for _, conv := range convs {
		peers = append(peers, conv.PeerID)
	}
	profiles, err := fetchProfiles(ctx, c.gw, peers)
	if err != nil {
		return nil, transportErr("fetch conversations", err)
	}
	for i := range convs {
		if p, ok := profiles[convs[i].PeerID]; ok {
			convs[i].PeerName = p.DisplayName()
		}
	}

	c.mu.Lock()
	c.conversations = convs
	c.mu.Unlock()
	c.listener.OnUpdate(Update{Kind: UpdateConversations, Payload: convs})
	return append([]Conversation(nil), convs...), nil
}

// foldConversations groups msgs, ordered newest first, by the other party in a
// single pass. The first message seen for a peer is its last message and is
// never overwritten; every unread message addressed to me is counted.
func foldConversations(me string, msgs []models.Message) []Conversation {
	index := make(map[string]int)
	var convs []Conversation
	for _, m := range msgs {
		peer := m.Peer(me)
		i, ok := index[peer]
		if !ok {
			i = len(convs)
			index[peer] = i
			convs = append(convs, Conversation{
				PeerID:          peer,
				LastMessage:     m.Content,
				LastMessageTime: m.CreatedAt,
			})
		}
		if m.ReceiverID == me && m.ReadAt == nil {
			convs[i].UnreadCount++
		}
	}
	return convs
}

// FetchMessages loads the history with peer, oldest first, and opens it as the
// current thread. Inbound unread messages from peer are marked read in the
// background; the returned history does not wait for that.
func (c *Conversations) FetchMessages(ctx context.Context, peerID string) ([]models.Message, error) {
	var msgs []models.Message
	q := storage.Query{
		Filter: storage.Or(
			storage.And(storage.Eq("sender_id", c.userID), storage.Eq("receiver_id", peerID)),
			storage.And(storage.Eq("sender_id", peerID), storage.Eq("receiver_id", c.userID)),
		),
		Order: []storage.OrderBy{{Column: "created_at"}},
	}
	if err := c.gw.Select(ctx, models.TableMessages, q, &msgs); err != nil {
		return nil, transportErr("fetch messages", err)
	}

	c.mu.Lock()
	c.openPeer = peerID
	c.thread = msgs
	c.mu.Unlock()
	c.publishThread()

	c.markReadAsync(ctx, peerID, "")
	return append([]models.Message(nil), msgs...), nil
}

// SendMessage stores a message to peer and refreshes the conversation list.
// The open thread is not appended to here.
func (c *Conversations) SendMessage(ctx context.Context, peerID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationErr("message content is empty")
	}
	if strings.TrimSpace(peerID) == "" {
		return nil, validationErr("receiver is required")
	}

	m := &models.Message{SenderID: c.userID, ReceiverID: peerID, Content: content}
	if err := c.gw.Insert(ctx, models.TableMessages, m); err != nil {
		return nil, transportErr("send message", err)
	}
	if _, err := c.FetchConversations(ctx); err != nil {
		c.log.Warn().Err(err).Msg("refresh conversations after send")
	}
	return m, nil
}

// CloseThread forgets the open thread.
func (c *Conversations) CloseThread() {
	c.mu.Lock()
	c.openPeer = ""
	c.thread = nil
	c.mu.Unlock()
}

// Subscribe starts the standing subscription for messages addressed to the user.
func (c *Conversations) Subscribe(ctx context.Context) (storage.Unsubscribe, error) {
	sub := storage.Subscription{
		Table:  models.TableMessages,
		Events: []storage.EventType{storage.EventInsert},
		Filter: storage.Eq("receiver_id", c.userID),
	}
	unsubscribe, err := c.gw.Subscribe(ctx, sub, c.onInsert)
	if err != nil {
		return nil, transportErr("subscribe messages", err)
	}
	return unsubscribe, nil
}

// onInsert merges an inbound message. It joins the open thread only when some
// already loaded message involves its sender, so the very first message of a
// thread that has nothing loaded is not recognized.
func (c *Conversations) onInsert(ctx context.Context, ev storage.ChangeEvent) {
	var m models.Message
	if err := ev.Decode(&m); err != nil {
		c.log.Warn().Err(err).Msg("skipping undecodable message event")
		return
	}

	appended := false
	c.mu.Lock()
	current := false
	for _, t := range c.thread {
		if t.Involves(m.SenderID) {
			current = true
			break
		}
	}
	if current && !containsMessage(c.thread, m.ID) {
		c.thread = append(c.thread, m)
		appended = true
	}
	c.mu.Unlock()

	if appended {
		c.publishThread()
		c.markReadAsync(ctx, m.SenderID, m.ID)
	}

	if _, err := c.FetchConversations(ctx); err != nil {
		c.log.Warn().Err(err).Msg("refresh conversations after inbound message")
	}
}

// markReadAsync sets read_at on the unread messages peerID sent to the user,
// or only on messageID when it is set, without blocking the caller. The
// conversation list is refreshed afterwards.
func (c *Conversations) markReadAsync(ctx context.Context, peerID, messageID string) {
	filters := []storage.Filter{
		storage.Eq("sender_id", peerID),
		storage.Eq("receiver_id", c.userID),
		storage.IsNull("read_at"),
	}
	if messageID != "" {
		filters = append(filters, storage.Eq("id", messageID))
	}
	filter := storage.And(filters...)

	ctx = context.WithoutCancel(ctx)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		readAt := c.now()
		n, err := c.gw.Update(ctx, models.TableMessages, filter, map[string]any{"read_at": readAt})
		if err != nil {
			c.log.Error().Err(err).Msg("failed to mark messages read")
			return
		}
		if n == 0 {
			return
		}
		c.markLocalRead(peerID, messageID, readAt)
		if _, err := c.FetchConversations(ctx); err != nil {
			c.log.Warn().Err(err).Msg("refresh conversations after mark read")
		}
	}()
}

// markLocalRead mirrors a finished mark-read write into the open thread. It
// is skipped when another thread was opened in the meantime.
func (c *Conversations) markLocalRead(peerID, messageID string, readAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openPeer != peerID {
		return
	}
	for i := range c.thread {
		m := &c.thread[i]
		if m.SenderID != peerID || m.ReceiverID != c.userID || m.ReadAt != nil {
			continue
		}
		if messageID != "" && m.ID != messageID {
			continue
		}
		t := readAt
		m.ReadAt = &t
	}
}

func (c *Conversations) publishThread() {
	c.listener.OnUpdate(Update{Kind: UpdateThread, Payload: c.Thread()})
}

func containsMessage(msgs []models.Message, id string) bool {
	for _, m := range msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}
