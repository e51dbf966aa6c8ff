// Package convo persists conversation state: turns, preference snapshots,
// and the version counter used for optimistic concurrency.
package convo

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/gradpath/advisor/internal/model"
)

// ErrNotFound is returned when a conversation ID does not exist or was
// archived.
var ErrNotFound = eris.New("convo: conversation not found")

// ErrConcurrentModification is returned when an append carries a version
// that no longer matches the stored conversation. The caller re-loads and
// retries once.
var ErrConcurrentModification = eris.New("convo: concurrent modification")

// ContextStore is the conversation persistence interface. Loads return a
// snapshot the caller owns; appends are atomic and version-checked.
type ContextStore interface {
	// Create registers a new empty conversation and returns it.
	Create(ctx context.Context) (*model.Conversation, error)

	// Load returns a snapshot of the conversation, ErrNotFound otherwise.
	Load(ctx context.Context, id string) (*model.Conversation, error)

	// Append atomically adds turns and replaces the preference snapshot,
	// provided expectedVersion still matches. On success the stored version
	// increments by one.
	Append(ctx context.Context, id string, turns []model.Turn, prefs model.Preferences, expectedVersion int) error

	// Archive marks the conversation inactive. Archived conversations are
	// retained but no longer load.
	Archive(ctx context.Context, id string) error

	Close() error
}
