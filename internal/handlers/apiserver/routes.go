package apiserver

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"devotion-go/internal/config"
	"devotion-go/internal/middleware"
	"devotion-go/internal/services"
	ws "devotion-go/internal/websocket"
)

// SessionStore is what the router needs from the session manager.
type SessionStore interface {
	SessionProvider
	SessionLease
}

// NewRouter builds the API router. Every route under /api/v1 requires a
// valid bearer token.
func NewRouter(cfg config.Config, sessions SessionStore, assistant *services.Assistant, hub *ws.Hub) http.Handler {
	friendHandler := NewFriendshipHandler(sessions)
	convoHandler := NewConversationHandler(sessions)
	notificationHandler := NewNotificationHandler(sessions)
	progressHandler := NewProgressHandler(sessions)
	communityHandler := NewCommunityHandler(sessions)
	prayerHandler := NewPrayerHandler(sessions)
	assistantHandler := NewAssistantHandler(assistant)
	wsHandler := NewWebSocketHandler(hub, sessions, cfg.WebSocket)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusOK, MessageResponse{Message: "ok"})
	}).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(func(next http.Handler) http.Handler {
		return middleware.AuthMiddleware(next, cfg.Auth)
	})

	apiRouter.HandleFunc("/friends", friendHandler.ListFriendsHandler).Methods(http.MethodGet)

	friendRequestRouter := apiRouter.PathPrefix("/friend-requests").Subrouter()
	friendRequestRouter.HandleFunc("", friendHandler.SendFriendRequestHandler).Methods(http.MethodPost)
	friendRequestRouter.HandleFunc("/pending", friendHandler.ListPendingRequestsHandler).Methods(http.MethodGet)
	friendRequestRouter.HandleFunc("/{requestID}/accept", friendHandler.AcceptFriendRequestHandler).Methods(http.MethodPost)
	friendRequestRouter.HandleFunc("/{requestID}/reject", friendHandler.RejectFriendRequestHandler).Methods(http.MethodPost)

	apiRouter.HandleFunc("/conversations", convoHandler.ListConversationsHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/conversations/{peerID}/messages", convoHandler.GetMessagesHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/conversations/{peerID}/messages", convoHandler.SendMessageHandler).Methods(http.MethodPost)

	apiRouter.HandleFunc("/notifications", notificationHandler.ListNotificationsHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/notifications/read-all", notificationHandler.MarkAllReadHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/notifications/{id}/read", notificationHandler.MarkReadHandler).Methods(http.MethodPost)

	apiRouter.HandleFunc("/progress", progressHandler.HistoryHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/progress/today", progressHandler.TodayHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/progress/{kind:quote|passage|devotional}", progressHandler.CompleteHandler).Methods(http.MethodPost)

	apiRouter.HandleFunc("/diary", progressHandler.ListDiaryHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/diary/today", progressHandler.GetDiaryEntryHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/diary/today", progressHandler.SaveDiaryHandler).Methods(http.MethodPut)
	apiRouter.HandleFunc("/diary/{date:[0-9]{4}-[0-9]{2}-[0-9]{2}}", progressHandler.GetDiaryEntryHandler).Methods(http.MethodGet)

	apiRouter.HandleFunc("/community/access", communityHandler.AccessHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/community/request", communityHandler.RequestHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/community/accept", communityHandler.AcceptHandler).Methods(http.MethodPost)

	apiRouter.HandleFunc("/prayers", prayerHandler.ListSharedHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/prayers", prayerHandler.ShareHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/prayers/{id}/support", prayerHandler.SupportHandler).Methods(http.MethodPost)

	apiRouter.HandleFunc("/assistant/reply", assistantHandler.ReplyHandler).Methods(http.MethodPost)

	apiRouter.HandleFunc("/ws", wsHandler.ServeWS).Methods(http.MethodGet)

	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	return handlers.CORS(corsOptions...)(r)
}
