package memory

import (
	"context"
	"sync"

	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
)

// ChatSessionRepository is an in-memory session store for tests and
// local development.
type ChatSessionRepository struct {
	mu       sync.RWMutex
	sessions map[string][]chat.Message
}

// NewChatSessionRepository creates an empty in-memory session store
func NewChatSessionRepository() *ChatSessionRepository {
	return &ChatSessionRepository{
		sessions: make(map[string][]chat.Message),
	}
}

// Compile-time check that we implement the interface
var _ chat.Repository = (*ChatSessionRepository)(nil)

// Append adds messages to the end of the user's history
func (r *ChatSessionRepository) Append(ctx context.Context, userID string, msgs ...chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = append(r.sessions[userID], msgs...)
	return nil
}

// History returns a copy of the user's messages in insertion order
func (r *ChatSessionRepository) History(ctx context.Context, userID string) ([]chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := r.sessions[userID]
	out := make([]chat.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Clear removes the user's history
func (r *ChatSessionRepository) Clear(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
	return nil
}
