package apiserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"devotion-go/internal/models"
	"devotion-go/internal/services"
)

// ProgressHandler serves daily progress and diary entries.
type ProgressHandler struct {
	sessionHandler
}

func NewProgressHandler(sessions SessionProvider) *ProgressHandler {
	return &ProgressHandler{sessionHandler{sessions}}
}

// SaveDiaryPayload is the body of PUT /diary/today. Blank pairs are rejected
// by the tracker, not here.
type SaveDiaryPayload struct {
	Reflections string `json:"reflections" validate:"max=10000"`
	Gratitude   string `json:"gratitude" validate:"max=10000"`
}

// TodayHandler handles GET /api/v1/progress/today
func (h *ProgressHandler) TodayHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	row, err := s.Progress.FetchToday(r.Context())
	if err != nil {
		writeServiceError(w, err, "fetch progress")
		return
	}
	writeJSONResponse(w, http.StatusOK, row)
}

// HistoryHandler handles GET /api/v1/progress?days=N
func (h *ProgressHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	rows, err := s.Progress.FetchProgress(r.Context(), queryInt(r, "days", 7))
	if err != nil {
		writeServiceError(w, err, "fetch progress history")
		return
	}
	if rows == nil {
		rows = []models.DailyProgress{}
	}
	writeJSONResponse(w, http.StatusOK, rows)
}

// CompleteHandler handles POST /api/v1/progress/{kind}
func (h *ProgressHandler) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	row, err := s.Progress.UpdateProgress(r.Context(), services.ProgressKind(mux.Vars(r)["kind"]))
	if err != nil {
		writeServiceError(w, err, "update progress")
		return
	}
	writeJSONResponse(w, http.StatusOK, row)
}

// ListDiaryHandler handles GET /api/v1/diary?limit=N
func (h *ProgressHandler) ListDiaryHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	entries, err := s.Diary.FetchEntries(r.Context(), queryInt(r, "limit", 30))
	if err != nil {
		writeServiceError(w, err, "list diary entries")
		return
	}
	if entries == nil {
		entries = []models.DiaryEntry{}
	}
	writeJSONResponse(w, http.StatusOK, entries)
}

// GetDiaryEntryHandler handles GET /api/v1/diary/today and /api/v1/diary/{date}
func (h *ProgressHandler) GetDiaryEntryHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var (
		entry models.DiaryEntry
		err   error
	)
	if date, ok := mux.Vars(r)["date"]; ok {
		entry, err = s.Diary.EntryFor(r.Context(), date)
	} else {
		entry, err = s.Diary.Today(r.Context())
	}
	if errors.Is(err, services.ErrNotFound) {
		writeJSONError(w, "no entry for this day", http.StatusNotFound)
		return
	}
	if err != nil {
		writeServiceError(w, err, "get diary entry")
		return
	}
	writeJSONResponse(w, http.StatusOK, entry)
}

// SaveDiaryHandler handles PUT /api/v1/diary/today
func (h *ProgressHandler) SaveDiaryHandler(w http.ResponseWriter, r *http.Request) {
	var payload SaveDiaryPayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	entry, err := s.Diary.SaveEntry(r.Context(), payload.Reflections, payload.Gratitude)
	if err != nil {
		writeServiceError(w, err, "save diary entry")
		return
	}
	writeJSONResponse(w, http.StatusOK, entry)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
