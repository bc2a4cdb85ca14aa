package apiserver

import (
	"net/http"

	"devotion-go/internal/services"
)

// AssistantHandler proxies the pastoral chat assistant.
type AssistantHandler struct {
	assistant *services.Assistant
}

func NewAssistantHandler(assistant *services.Assistant) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

type AssistantRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type AssistantResponse struct {
	Reply string `json:"reply"`
}

// ReplyHandler handles POST /api/v1/assistant/reply
func (h *AssistantHandler) ReplyHandler(w http.ResponseWriter, r *http.Request) {
	var req AssistantRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	reply, err := h.assistant.Reply(r.Context(), req.Message)
	if err != nil {
		writeServiceError(w, err, "assistant reply")
		return
	}
	writeJSONResponse(w, http.StatusOK, AssistantResponse{Reply: reply})
}
