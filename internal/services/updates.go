package services

// UpdateKind names the part of a user's view that changed.
type UpdateKind string

const (
	UpdateFriends           UpdateKind = "friends"
	UpdatePendingRequests   UpdateKind = "pending_requests"
	UpdateConversations     UpdateKind = "conversations"
	UpdateThread            UpdateKind = "thread"
	UpdateNotifications     UpdateKind = "notifications"
	UpdateNotificationAlert UpdateKind = "notification_alert"
	UpdateProgress          UpdateKind = "progress"
	UpdateCommunityAccess   UpdateKind = "community_access"
)

// Update is pushed to a Listener whenever a component's local view changes.
type Update struct {
	Kind    UpdateKind `json:"kind"`
	Payload any        `json:"payload"`
}

// Listener receives view updates. Implementations must not block.
type Listener interface {
	OnUpdate(Update)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Update)

func (f ListenerFunc) OnUpdate(u Update) { f(u) }

type nopListener struct{}

func (nopListener) OnUpdate(Update) {}

func listenerOrNop(l Listener) Listener {
	if l == nil {
		return nopListener{}
	}
	return l
}
