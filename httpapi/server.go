// Package httpapi is the read surface consumed by the administration
// and dashboard collaborator: health, hub stats, room history, presence
// counts and message search. Room CRUD itself lives outside this service.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"

	"roomcast/contract"
	"roomcast/domain"
	"roomcast/projection"
	"roomcast/search"
)

// HubStats mirrors what the Connection Registry can report.
type HubStats func() (connections, rooms int)

type Server struct {
	log          *slog.Logger
	store        contract.IMessageStore
	presence     contract.IPresence
	stats        HubStats
	activity     *projection.Activity
	index        *search.MessageIndex
	historyLimit int
}

func NewServer(log *slog.Logger, store contract.IMessageStore,
	presence contract.IPresence, stats HubStats,
	activity *projection.Activity, index *search.MessageIndex,
	historyLimit int) *Server {
	return &Server{
		log:          log,
		store:        store,
		presence:     presence,
		stats:        stats,
		activity:     activity,
		index:        index,
		historyLimit: historyLimit,
	}
}

// Register mounts the read endpoints on the provided mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /rooms/{room}/messages", s.handleHistory)
	mux.HandleFunc("GET /rooms/{room}/presence", s.handlePresence)
	mux.HandleFunc("GET /rooms/{room}/search", s.handleSearch)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	connections, rooms := s.stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"connections": connections,
		"rooms":       rooms,
		"activity":    s.activity.Snapshot(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(r.PathValue("room"))
	limit := queryInt(r, "limit", s.historyLimit)

	messages, err := s.store.Recent(room, limit)
	if err != nil {
		s.log.Error("Failed to read room history", "room", room, "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	total, err := s.store.Count(room)
	if err != nil {
		s.log.Error("Failed to count room messages", "room", room, "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	type wireMessage struct {
		ID      string    `json:"id"`
		Room    string    `json:"chatRoomId"`
		Name    string    `json:"userName"`
		Content string    `json:"content"`
		Type    string    `json:"messageType"`
		At      time.Time `json:"timestamp"`
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chatRoomId": room,
		"total":      total,
		"messages": lo.Map(messages, func(m domain.Message, _ int) wireMessage {
			return wireMessage{
				ID:      m.ID.String(),
				Room:    string(m.Room),
				Name:    m.Author,
				Content: m.Content,
				Type:    string(m.Type),
				At:      m.CreatedAt,
			}
		}),
	})
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(r.PathValue("room"))
	participants := s.presence.Participants(room)
	writeJSON(w, http.StatusOK, map[string]any{
		"chatRoomId":         room,
		"activeParticipants": s.presence.ActiveCount(room),
		"userNames": lo.Map(participants, func(p domain.Participant, _ int) string {
			return p.Name
		}),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(r.PathValue("room"))
	terms := r.URL.Query().Get("q")
	if terms == "" {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 10)

	hits, err := s.index.Search(r.Context(), room, terms, limit)
	if err != nil {
		s.log.Error("Search failed", "room", room, "error", err)
		http.Error(w, "search unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chatRoomId": room,
		"hits":       hits,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
