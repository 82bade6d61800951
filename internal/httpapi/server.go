// internal/httpapi/server.go
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/user/evinav/internal/gateway"
	"github.com/user/evinav/internal/tools"
	"github.com/user/evinav/internal/types"
)

// replyTimeout bounds how long a chat request waits for its turn to finish.
const replyTimeout = 90 * time.Second

// Server exposes the chat endpoint and a small read-only debug API.
// Chat requests are funneled through the gateway so that HTTP traffic obeys
// the same per-session serialization as every other channel.
type Server struct {
	gw          *gateway.Gateway
	sessions    types.SessionStore
	transcripts types.TranscriptStore
	total       int
	toolset     []tools.Tool
	mux         *http.ServeMux
}

// NewServer creates the HTTP API over the gateway and stores. total is the
// onboarding question count, used to derive the phase in chat responses;
// toolset is the machine's fixed tool set for the inspection API.
func NewServer(gw *gateway.Gateway, sessions types.SessionStore, transcripts types.TranscriptStore, total int, toolset []tools.Tool) *Server {
	s := &Server{
		gw:          gw,
		sessions:    sessions,
		transcripts: transcripts,
		total:       total,
		toolset:     toolset,
		mux:         http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /api/sessions", s.handleAPISessions)
	s.mux.HandleFunc("GET /api/sessions/", s.handleAPITranscript)
	s.mux.HandleFunc("GET /api/tools", s.handleAPITools)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type toolResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleAPITools lists the deterministic tool set in firing precedence order.
func (s *Server) handleAPITools(w http.ResponseWriter, r *http.Request) {
	out := make([]toolResponse, 0, len(s.toolset))
	for _, t := range s.toolset {
		out = append(out, toolResponse{Name: t.Name(), Description: t.Description()})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// chatRequest is the JSON body for POST /chat.
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Phase     string `json:"phase"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}

	sid := types.SessionID(req.SessionID)
	if sid == "" {
		sid = types.NewSessionID()
	}

	done := make(chan string, 1)
	msg := &types.InboundMessage{Source: "http", Text: req.Message}
	err := s.gw.HandleForSession(sid, msg, gateway.WithOnComplete(func(reply string) {
		done <- reply
	}))
	if err != nil {
		slog.Error("enqueue chat turn failed", "session_id", sid, "error", err)
		http.Error(w, `{"error":"service busy, try again shortly"}`, http.StatusServiceUnavailable)
		return
	}

	select {
	case reply := <-done:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{
			SessionID: string(sid),
			Reply:     reply,
			Phase:     s.phaseOf(r, sid),
		})
	case <-time.After(replyTimeout):
		http.Error(w, `{"error":"timed out waiting for reply"}`, http.StatusGatewayTimeout)
	case <-r.Context().Done():
		// Client went away; the turn still completes and persists.
	}
}

func (s *Server) phaseOf(r *http.Request, sid types.SessionID) string {
	sess, err := s.sessions.Load(r.Context(), sid)
	if err != nil || sess == nil {
		return ""
	}
	return string(sess.Phase(s.total))
}

type sessionResponse struct {
	SessionID   string `json:"session_id"`
	SessionKey  string `json:"session_key,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	RecordCount int64  `json:"record_count"`
}

func (s *Server) handleAPISessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	infos, err := s.sessions.List(ctx)
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	result := make([]sessionResponse, 0, len(infos))
	for _, info := range infos {
		count, err := s.transcripts.Count(ctx, info.ID)
		if err != nil {
			slog.Warn("count records failed", "session_id", info.ID, "error", err)
		}
		result = append(result, sessionResponse{
			SessionID:   string(info.ID),
			SessionKey:  string(info.Key),
			Status:      info.Status,
			CreatedAt:   info.CreatedAt.Format(time.RFC3339),
			UpdatedAt:   info.UpdatedAt.Format(time.RFC3339),
			RecordCount: count,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt > result[j].UpdatedAt
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleAPITranscript(w http.ResponseWriter, r *http.Request) {
	// Path: /api/sessions/{id}/transcript
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[1] != "transcript" {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	sessionID := types.SessionID(parts[0])

	limit := 200
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.transcripts.Tail(r.Context(), sessionID, limit)
	if err != nil {
		slog.Error("tail transcript failed", "session_id", sessionID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*types.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
