package chat_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/internal/repository/memory"
	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
)

func TestAppendExchangeOrdersMessages(t *testing.T) {
	svc := chat.NewService(memory.NewChatSessionRepository())
	ctx := context.Background()

	require.NoError(t, svc.AppendExchange(ctx, "user-1", "question", "answer"))

	history, err := svc.History(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, chat.RoleUser, history[0].Role)
	assert.Equal(t, chat.RoleAssistant, history[1].Role)
	assert.True(t, history[0].Timestamp.Before(history[1].Timestamp))
}

func TestClearThenHistoryIsEmpty(t *testing.T) {
	svc := chat.NewService(memory.NewChatSessionRepository())
	ctx := context.Background()

	require.NoError(t, svc.AppendExchange(ctx, "user-1", "q", "a"))
	require.NoError(t, svc.Clear(ctx, "user-1"))

	history, err := svc.History(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUsersAreIsolated(t *testing.T) {
	svc := chat.NewService(memory.NewChatSessionRepository())
	ctx := context.Background()

	require.NoError(t, svc.AppendExchange(ctx, "user-1", "q1", "a1"))
	require.NoError(t, svc.AppendExchange(ctx, "user-2", "q2", "a2"))
	require.NoError(t, svc.Clear(ctx, "user-1"))

	h1, err := svc.History(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, h1)

	h2, err := svc.History(ctx, "user-2")
	require.NoError(t, err)
	assert.Len(t, h2, 2)
}

func TestConcurrentAppendsAreComplete(t *testing.T) {
	svc := chat.NewService(memory.NewChatSessionRepository())
	ctx := context.Background()

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = svc.AppendExchange(ctx, "user-1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		}(i)
	}
	wg.Wait()

	history, err := svc.History(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, history, turns*2)

	// Every exchange lands as an adjacent user/assistant pair
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, chat.RoleUser, history[i].Role)
		assert.Equal(t, chat.RoleAssistant, history[i+1].Role)
	}
}

func TestClearRacingAppendKeepsExchangesWhole(t *testing.T) {
	svc := chat.NewService(memory.NewChatSessionRepository())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = svc.AppendExchange(ctx, "user-1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		}(i)
		go func() {
			defer wg.Done()
			_ = svc.Clear(ctx, "user-1")
		}()
	}
	wg.Wait()

	// A clear either lands before or after a whole exchange, never
	// between the user message and the assistant reply
	history, err := svc.History(ctx, "user-1")
	require.NoError(t, err)
	require.Zero(t, len(history)%2)

	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, chat.RoleUser, history[i].Role)
		assert.Equal(t, chat.RoleAssistant, history[i+1].Role)
		assert.Equal(t, history[i].Text[1:], history[i+1].Text[1:])
	}
}

func TestEmptyUserIDRejected(t *testing.T) {
	svc := chat.NewService(memory.NewChatSessionRepository())
	ctx := context.Background()

	_, err := svc.History(ctx, "")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	err = svc.AppendExchange(ctx, "", "q", "a")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	err = svc.Clear(ctx, "")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
