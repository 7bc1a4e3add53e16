package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/internal/orchestrator"
	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

const userIDHeader = "X-User-ID"

// streamWriteTimeout bounds each frame write; a client that stalls
// without closing trips it and is treated as disconnected
const streamWriteTimeout = 10 * time.Second

// Handler exposes the conversational endpoints: a synchronous message
// endpoint, a WebSocket stream with per-step progress, history reads,
// and history clearing.
type Handler struct {
	loop         *orchestrator.Loop
	sessions     *chat.Service
	streamBuffer int
	turnTimeout  time.Duration
	upgrader     websocket.Upgrader
	log          *logger.Logger
}

// NewHandler creates the chat API handler
func NewHandler(loop *orchestrator.Loop, sessions *chat.Service, streamBuffer int, turnTimeout time.Duration) *Handler {
	if turnTimeout <= 0 {
		turnTimeout = 3 * time.Minute
	}
	return &Handler{
		loop:         loop,
		sessions:     sessions,
		streamBuffer: streamBuffer,
		turnTimeout:  turnTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from the app's own origin; the
			// API itself is authenticated by the user header
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.Get().With("component", "chat_handler"),
	}
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	TurnID          string   `json:"turn_id"`
	Answer          string   `json:"answer"`
	AgentsConsulted []string `json:"agents_consulted"`
	Iterations      int      `json:"iterations"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleMessage runs one turn synchronously and returns the result
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "X-User-ID header is required"})
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.turnTimeout)
	defer cancel()

	result, err := h.loop.Run(ctx, userID, req.Message, orchestrator.Discard())
	if err != nil {
		h.writeTurnError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		TurnID:          result.TurnID.String(),
		Answer:          result.Answer,
		AgentsConsulted: result.AgentsConsulted,
		Iterations:      result.Iterations,
	})
}

// HandleStream upgrades to WebSocket and runs one turn per incoming
// message, forwarding progress events as they happen. A disconnect
// cancels the in-flight turn.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user identity is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log := h.log.With("user", userID)
	log.Info("Chat stream connected")

	for {
		var req messageRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("Chat stream read failed: %v", err)
			}
			return
		}
		if req.Message == "" {
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			_ = conn.WriteJSON(errorResponse{Error: "message is required"})
			continue
		}

		h.streamTurn(r.Context(), conn, userID, req.Message)
	}
}

// streamTurn runs one turn while forwarding its event stream. Reads are
// paused for the duration; one turn at a time per connection.
func (h *Handler) streamTurn(parent context.Context, conn *websocket.Conn, userID, message string) {
	ctx, cancel := context.WithTimeout(parent, h.turnTimeout)
	defer cancel()

	emitter := orchestrator.NewStreamEmitter(h.streamBuffer)

	go func() {
		defer emitter.Finish()
		if _, err := h.loop.Run(ctx, userID, message, emitter); err != nil {
			h.log.Warnf("Streamed turn ended with error: user=%s err=%v", userID, err)
		}
	}()

	for event := range emitter.Events() {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(event); err != nil {
			// Client gone or stalled past the write deadline: stop the
			// turn and drain what remains
			h.log.Infof("Chat stream write failed, cancelling turn: user=%s err=%v", userID, err)
			emitter.Abandon()
			cancel()
			for range emitter.Events() {
			}
			return
		}
	}
}

type historyResponse struct {
	Messages []chat.Message `json:"messages"`
}

// HandleHistory returns the user's conversation history
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "X-User-ID header is required"})
		return
	}

	msgs, err := h.sessions.History(r.Context(), userID)
	if err != nil {
		h.writeTurnError(w, err)
		return
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}

	writeJSON(w, http.StatusOK, historyResponse{Messages: msgs})
}

// HandleClear deletes the user's conversation history
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "X-User-ID header is required"})
		return
	}

	if err := h.sessions.Clear(r.Context(), userID); err != nil {
		h.writeTurnError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// writeTurnError maps internal errors onto HTTP statuses without
// leaking internals to the client
func (h *Handler) writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
	case errors.Is(err, errors.ErrContextUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "your financial context is temporarily unavailable"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "the request timed out"})
	default:
		h.log.Errorf("Chat request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "something went wrong"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
