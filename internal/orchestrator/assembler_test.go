package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/finance"
	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
)

func TestAssembleTruncatesHistory(t *testing.T) {
	assembler := NewAssembler(finance.NewService(&fakeFinanceRepo{}), 3)

	var history []chat.Message
	for i := 0; i < 10; i++ {
		history = append(history, chat.Message{
			Role:      chat.RoleUser,
			Text:      fmt.Sprintf("message %d", i),
			Timestamp: time.Now().UTC(),
		})
	}

	bundle, err := assembler.Assemble(context.Background(), "user-1", history)
	require.NoError(t, err)

	require.Len(t, bundle.History, 3)
	assert.Equal(t, "message 7", bundle.History[0].Text)
	assert.Equal(t, "message 9", bundle.History[2].Text)
}

func TestAssembleKeepsShortHistory(t *testing.T) {
	assembler := NewAssembler(finance.NewService(&fakeFinanceRepo{}), 10)

	history := []chat.Message{
		{Role: chat.RoleUser, Text: "only message"},
	}

	bundle, err := assembler.Assemble(context.Background(), "user-1", history)
	require.NoError(t, err)
	assert.Len(t, bundle.History, 1)
}

func TestAssemblePopulatesProfileFields(t *testing.T) {
	assembler := NewAssembler(finance.NewService(&fakeFinanceRepo{}), 10)

	bundle, err := assembler.Assemble(context.Background(), "user-1", nil)
	require.NoError(t, err)

	assert.Equal(t, "user-1", bundle.UserID)
	assert.Equal(t, "Test User", bundle.UserName)
	assert.Equal(t, "SEK", bundle.Currency)
	assert.NotEmpty(t, bundle.Digest)
	assert.False(t, bundle.AssembledAt.IsZero())
}

func TestAssembleFailureIsContextUnavailable(t *testing.T) {
	repo := &fakeFinanceRepo{profileErr: errors.ErrUnavailable}
	assembler := NewAssembler(finance.NewService(repo), 10)

	_, err := assembler.Assemble(context.Background(), "user-1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrContextUnavailable))
}
