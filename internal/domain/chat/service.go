package chat

import (
	"context"
	"sync"
	"time"

	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

// Service provides session history operations with per-user serialization.
// Appends and clears for the same user are serialized through a keyed
// lock so a clear racing an in-flight append always leaves the store in
// one of the two well-defined end states. Distinct users never contend.
type Service struct {
	repo  Repository
	locks sync.Map // userID -> *sync.Mutex
	log   *logger.Logger
}

// NewService creates a new chat session service
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		log:  logger.Get().With("component", "chat_service"),
	}
}

func (s *Service) userLock(userID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// History returns the user's full conversation history in insertion order
func (s *Service) History(ctx context.Context, userID string) ([]Message, error) {
	if userID == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "user_id is required")
	}
	return s.repo.History(ctx, userID)
}

// AppendExchange appends the user message and the assistant reply of a
// completed turn as one unit under the user's lock.
func (s *Service) AppendExchange(ctx context.Context, userID string, userText, assistantText string) error {
	if userID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "user_id is required")
	}

	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now().UTC()
	return s.repo.Append(ctx, userID,
		Message{Role: RoleUser, Text: userText, Timestamp: now},
		Message{Role: RoleAssistant, Text: assistantText, Timestamp: now.Add(time.Millisecond)},
	)
}

// Clear removes the user's entire conversation history
func (s *Service) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "user_id is required")
	}

	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.repo.Clear(ctx, userID); err != nil {
		return errors.Wrapf(err, "clear history for user %s", userID)
	}

	s.log.Infof("Cleared conversation history: user=%s", userID)
	return nil
}
