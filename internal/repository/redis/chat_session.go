package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

// ChatSessionRepository stores conversation history as a Redis list per
// user, one JSON document per message. Lists are unbounded; the context
// assembler truncates on read.
type ChatSessionRepository struct {
	rdb *redis.Client
	log *logger.Logger
}

// NewChatSessionRepository creates a Redis-backed session store
func NewChatSessionRepository(rdb *redis.Client) *ChatSessionRepository {
	return &ChatSessionRepository{
		rdb: rdb,
		log: logger.Get().With("component", "chat_session_repository"),
	}
}

// Compile-time check that we implement the interface
var _ chat.Repository = (*ChatSessionRepository)(nil)

func historyKey(userID string) string {
	return fmt.Sprintf("chat:history:%s", userID)
}

// Append pushes messages onto the end of the user's history list
func (r *ChatSessionRepository) Append(ctx context.Context, userID string, msgs ...chat.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return errors.Wrap(err, "marshal chat message")
		}
		values = append(values, data)
	}

	if err := r.rdb.RPush(ctx, historyKey(userID), values...).Err(); err != nil {
		return errors.Wrapf(err, "append history for user %s", userID)
	}
	return nil
}

// History returns the full list in insertion order
func (r *ChatSessionRepository) History(ctx context.Context, userID string) ([]chat.Message, error) {
	raw, err := r.rdb.LRange(ctx, historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "read history for user %s", userID)
	}

	msgs := make([]chat.Message, 0, len(raw))
	for _, item := range raw {
		var m chat.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			// A corrupt entry is skipped rather than poisoning the session
			r.log.Warnf("Skipping unreadable history entry for user %s: %v", userID, err)
			continue
		}
		msgs = append(msgs, m)
	}

	return msgs, nil
}

// Clear deletes the user's history list
func (r *ChatSessionRepository) Clear(ctx context.Context, userID string) error {
	if err := r.rdb.Del(ctx, historyKey(userID)).Err(); err != nil {
		return errors.Wrapf(err, "clear history for user %s", userID)
	}
	return nil
}
