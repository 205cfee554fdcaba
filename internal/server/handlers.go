package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/veilcraft/storyroom/internal/registry"
	"github.com/veilcraft/storyroom/internal/server/sse"
)

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Service) handleState(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	snap, err := s.registry.Get(roomID)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Service) handleStop(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	snap, err := s.registry.Stop(roomID)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	s.broadcaster.Broadcast(sse.Event{Type: sse.EventEnded, RoomID: roomID, Session: snap})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Service) handleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rooms": s.registry.Rooms()})
}

func (s *Service) handleArchiveList(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotImplemented, "archive disabled")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	rows, err := s.archive.ListRecent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Archive list failed")
		writeError(w, http.StatusInternalServerError, "archive read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": rows})
}

func (s *Service) handleArchiveGet(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotImplemented, "archive disabled")
		return
	}

	roomID := chi.URLParam(r, "roomID")
	fin, err := s.archive.GetFinished(r.Context(), roomID)
	if err != nil {
		log.Error().Err(err).Str("roomId", roomID).Msg("Archive read failed")
		writeError(w, http.StatusInternalServerError, "archive read failed")
		return
	}
	if fin == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, fin)
}

func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "room not found")
	case errors.Is(err, registry.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "room already exists")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
