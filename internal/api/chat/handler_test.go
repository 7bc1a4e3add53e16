package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamra34/agentic-fin-tracker/internal/adapters/ai"
	"github.com/kamra34/agentic-fin-tracker/internal/agents"
	chatapi "github.com/kamra34/agentic-fin-tracker/internal/api/chat"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/finance"
	"github.com/kamra34/agentic-fin-tracker/internal/orchestrator"
	"github.com/kamra34/agentic-fin-tracker/internal/repository/memory"
)

type stubFinanceRepo struct{}

func (stubFinanceRepo) GetProfile(ctx context.Context, userID string) (*finance.Profile, error) {
	return &finance.Profile{UserID: userID, FullName: "Test User", Currency: "SEK"}, nil
}

func (stubFinanceRepo) GetAggregates(ctx context.Context, userID string, month time.Time) (*finance.Aggregates, error) {
	return &finance.Aggregates{Month: month}, nil
}

type finishPlanner struct{}

func (finishPlanner) Decide(ctx context.Context, userMessage string, bundle *chat.ContextBundle, sofar []chat.AgentInvocation) (orchestrator.Decision, error) {
	return orchestrator.Decision{Action: orchestrator.ActionFinish, Guidance: "Hello!"}, nil
}

type stubCompleter struct{}

func (stubCompleter) Complete(ctx context.Context, msgs []ai.Message, tools []ai.ToolDefinition) (*ai.Completion, error) {
	return &ai.Completion{Content: "synthesized answer"}, nil
}

func newTestHandler(t *testing.T) (*chatapi.Handler, *chat.Service) {
	t.Helper()
	sessions := chat.NewService(memory.NewChatSessionRepository())
	loop := orchestrator.NewLoop(
		orchestrator.NewAssembler(finance.NewService(stubFinanceRepo{}), 10),
		finishPlanner{},
		agents.NewRegistry(),
		orchestrator.NewSynthesizer(stubCompleter{}, time.Second),
		sessions,
		nil,
		nil,
		orchestrator.LoopConfig{MaxIterations: 5, AgentTimeout: time.Second},
	)
	return chatapi.NewHandler(loop, sessions, 32, time.Minute), sessions
}

func TestHandleMessage(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()

	handler.HandleMessage(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TurnID          string   `json:"turn_id"`
		Answer          string   `json:"answer"`
		AgentsConsulted []string `json:"agents_consulted"`
		Iterations      int      `json:"iterations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.TurnID)
	assert.Equal(t, "Hello!", resp.Answer)
	assert.Empty(t, resp.AgentsConsulted)
	assert.Zero(t, resp.Iterations)
}

func TestHandleMessageMissingUser(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()

	handler.HandleMessage(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMessageEmptyBody(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", strings.NewReader(`{}`))
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()

	handler.HandleMessage(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMessageWrongMethod(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/message", nil)
	rec := httptest.NewRecorder()

	handler.HandleMessage(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// invokeOncePlanner consults one agent, then finishes
type invokeOncePlanner struct {
	kind agents.Kind
	done bool
}

func (p *invokeOncePlanner) Decide(ctx context.Context, userMessage string, bundle *chat.ContextBundle, sofar []chat.AgentInvocation) (orchestrator.Decision, error) {
	if p.done {
		return orchestrator.Decision{Action: orchestrator.ActionFinish}, nil
	}
	p.done = true
	return orchestrator.Decision{Action: orchestrator.ActionInvoke, Agent: p.kind, Question: userMessage}, nil
}

// blockingAgent holds until its context is cancelled
type blockingAgent struct {
	kind     agents.Kind
	released chan struct{}
}

func (a *blockingAgent) Kind() agents.Kind { return a.kind }

func (a *blockingAgent) Answer(ctx context.Context, question string, bundle *chat.ContextBundle) agents.Result {
	<-ctx.Done()
	close(a.released)
	return agents.Failed(agents.FailureTimeout, "the lookup timed out")
}

func newStreamHandler(t *testing.T, planner orchestrator.Planner, registry *agents.Registry, turnTimeout time.Duration) *chatapi.Handler {
	t.Helper()
	sessions := chat.NewService(memory.NewChatSessionRepository())
	loop := orchestrator.NewLoop(
		orchestrator.NewAssembler(finance.NewService(stubFinanceRepo{}), 10),
		planner,
		registry,
		orchestrator.NewSynthesizer(stubCompleter{}, time.Second),
		sessions,
		nil,
		nil,
		orchestrator.LoopConfig{MaxIterations: 5, AgentTimeout: 5 * time.Second},
	)
	return chatapi.NewHandler(loop, sessions, 32, turnTimeout)
}

func dialStream(t *testing.T, handler *chatapi.Handler) (*websocket.Conn, func()) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat/stream", handler.HandleStream)
	srv := httptest.NewServer(mux)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"X-User-ID": {"user-1"}})
	require.NoError(t, err)

	return conn, func() {
		_ = conn.Close()
		srv.Close()
	}
}

func TestHandleStreamDeliversOrderedEvents(t *testing.T) {
	handler := newStreamHandler(t, finishPlanner{}, agents.NewRegistry(), time.Minute)
	conn, cleanup := dialStream(t, handler)
	defer cleanup()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "hi"}))

	var first, last chat.ProgressEvent
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&last))

	assert.Equal(t, chat.EventTurnStarted, first.Type)
	assert.Equal(t, chat.EventAnswerReady, last.Type)
	require.NotNil(t, last.Result)
	assert.Equal(t, "Hello!", last.Result.Answer)
}

func TestHandleStreamDisconnectCancelsTurn(t *testing.T) {
	agent := &blockingAgent{kind: agents.KindAdvisory, released: make(chan struct{})}
	registry := agents.NewRegistry()
	registry.Register(agent)

	handler := newStreamHandler(t, &invokeOncePlanner{kind: agents.KindAdvisory}, registry, 500*time.Millisecond)
	conn, cleanup := dialStream(t, handler)
	defer cleanup()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "advise me"}))

	var started chat.ProgressEvent
	require.NoError(t, conn.ReadJSON(&started)) // turn_started
	require.NoError(t, conn.ReadJSON(&started)) // agent_started
	require.Equal(t, chat.EventAgentStarted, started.Type)

	// Drop the connection mid-turn; the turn must not outlive its deadline
	require.NoError(t, conn.Close())

	select {
	case <-agent.released:
	case <-time.After(3 * time.Second):
		t.Fatal("agent context was not cancelled after disconnect")
	}
}

func TestHandleHistoryAndClear(t *testing.T) {
	handler, sessions := newTestHandler(t)
	ctx := context.Background()
	require.NoError(t, sessions.AppendExchange(ctx, "user-1", "q", "a"))

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	handler.HandleHistory(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []chat.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Messages, 2)

	req = httptest.NewRequest(http.MethodPost, "/api/chat/clear", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec = httptest.NewRecorder()
	handler.HandleClear(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	history, err := sessions.History(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}
