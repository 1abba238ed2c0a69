package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voxilabs/voxi-core/internal/capture"
	"github.com/voxilabs/voxi-core/internal/classify"
	"github.com/voxilabs/voxi-core/internal/notes"
)

const maxBodyBytes = 64 << 10

func (h *handlers) captureState(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Session.Snapshot())
}

func (h *handlers) toggle(w http.ResponseWriter, _ *http.Request) {
	h.Session.Toggle()
	h.writeJSON(w, http.StatusAccepted, h.Session.Snapshot())
}

func (h *handlers) save(w http.ResponseWriter, r *http.Request) {
	note, err := h.Session.Save(r.Context())
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusCreated, note)
	case errors.Is(err, classify.ErrEmptyTranscript):
		h.writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, capture.ErrCaptureActive), errors.Is(err, capture.ErrSaveInProgress):
		h.writeError(w, http.StatusConflict, err)
	default:
		h.log.Error("save failed", slogError(err))
		h.writeError(w, http.StatusInternalServerError, err)
	}
}

func (h *handlers) discard(w http.ResponseWriter, _ *http.Request) {
	if err := h.Session.Discard(); err != nil {
		h.writeError(w, http.StatusConflict, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.Session.Snapshot())
}

type notesResponse struct {
	Category string       `json:"category,omitempty"`
	Notes    []notes.Note `json:"notes"`
}

func (h *handlers) listNotes(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	h.writeJSON(w, http.StatusOK, notesResponse{Category: category, Notes: h.Notes.Filter(category)})
}

type deleteRequest struct {
	Category  string `json:"category"`
	Positions []int  `json:"positions"`
}

type deleteResponse struct {
	Removed []notes.Note `json:"removed"`
}

func (h *handlers) deleteNotes(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Positions) == 0 {
		h.writeError(w, http.StatusBadRequest, errors.New("positions must not be empty"))
		return
	}
	removed, err := h.Session.DeleteNotes(req.Category, req.Positions)
	if err != nil {
		if errors.Is(err, notes.ErrPositionOutOfRange) {
			h.writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deleteResponse{Removed: removed})
}

type categoriesResponse struct {
	Categories []classify.Entry `json:"categories"`
	InUse      []string         `json:"in_use"`
}

func (h *handlers) listCategories(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, categoriesResponse{
		Categories: h.Categories.Entries(),
		InUse:      h.Notes.Categories(),
	})
}

type addCategoryRequest struct {
	Name string `json:"name"`
}

func (h *handlers) addCategory(w http.ResponseWriter, r *http.Request) {
	var req addCategoryRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	name, err := h.Session.AddCategory(req.Name)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusCreated, classify.Entry{Name: name})
	case errors.Is(err, classify.ErrEmptyCategory):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, classify.ErrDuplicateCategory):
		h.writeError(w, http.StatusConflict, err)
	default:
		h.writeError(w, http.StatusInternalServerError, err)
	}
}

func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	sessions, err := h.Journal.ListSessions(r.Context(), limit)
	if err != nil {
		h.log.Error("list sessions failed", slogError(err))
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type journalEvent struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	ActorID   string          `json:"actor_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func (h *handlers) sessionEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	stored, err := h.Journal.ListSessionEvents(r.Context(), id, limit)
	if err != nil {
		h.log.Error("list session events failed", slogError(err))
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]journalEvent, 0, len(stored))
	for _, e := range stored {
		payload := json.RawMessage(e.Payload)
		if !json.Valid(payload) {
			payload = json.RawMessage("null")
		}
		out = append(out, journalEvent{
			ID:        e.ID,
			Type:      e.Type,
			ActorID:   e.ActorID,
			Payload:   payload,
			CreatedAt: e.CreatedAt.UTC(),
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "events": out})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
