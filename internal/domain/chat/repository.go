package chat

import "context"

// Repository defines session history storage keyed by user identity.
// History is unbounded in storage; callers truncate on read.
type Repository interface {
	// Append adds messages to the end of the user's history, in order
	Append(ctx context.Context, userID string, msgs ...Message) error

	// History returns all messages for the user in insertion order
	History(ctx context.Context, userID string) ([]Message, error)

	// Clear removes all history for the user. Destructive and immediate.
	Clear(ctx context.Context, userID string) error
}
