package convo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gradpath/advisor/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "convo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func applicantTurn(text string) model.Turn {
	return model.Turn{
		ID:        uuid.New().String(),
		Role:      model.RoleApplicant,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

func systemTurn(text string, matches []model.MatchResult) model.Turn {
	return model.Turn{
		ID:         uuid.New().String(),
		Role:       model.RoleSystem,
		Text:       text,
		CreatedAt:  time.Now().UTC(),
		Matches:    matches,
		Confidence: 0.8,
	}
}

func TestContextStoreImplementations(t *testing.T) {
	impls := map[string]func(t *testing.T) ContextStore{
		"memory": func(t *testing.T) ContextStore { return NewMemory() },
		"sqlite": func(t *testing.T) ContextStore { return newTestSQLite(t) },
	}

	for name, build := range impls {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := build(t)

			t.Run("create and load", func(t *testing.T) {
				conv, err := store.Create(ctx)
				require.NoError(t, err)
				require.NotEmpty(t, conv.ID)
				require.Zero(t, conv.Version)

				loaded, err := store.Load(ctx, conv.ID)
				require.NoError(t, err)
				require.Equal(t, conv.ID, loaded.ID)
				require.Empty(t, loaded.Turns)
			})

			t.Run("load unknown id", func(t *testing.T) {
				_, err := store.Load(ctx, uuid.New().String())
				require.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("append bumps version and orders turns", func(t *testing.T) {
				conv, err := store.Create(ctx)
				require.NoError(t, err)

				prefs := model.Preferences{ResearchInterests: []string{"machine learning"}}
				turns := []model.Turn{
					applicantTurn("Find ML professors at Stanford"),
					systemTurn("Found 2 matches.", []model.MatchResult{{
						RecordID:   "f-chen",
						RecordType: model.RecordFaculty,
						Name:       "Alice Chen",
						Score:      0.84,
					}}),
				}
				require.NoError(t, store.Append(ctx, conv.ID, turns, prefs, 0))

				loaded, err := store.Load(ctx, conv.ID)
				require.NoError(t, err)
				require.Equal(t, 1, loaded.Version)
				require.Len(t, loaded.Turns, 2)
				require.Equal(t, model.RoleApplicant, loaded.Turns[0].Role)
				require.Equal(t, model.RoleSystem, loaded.Turns[1].Role)
				require.Equal(t, "Alice Chen", loaded.Turns[1].Matches[0].Name)
				require.Equal(t, prefs.ResearchInterests, loaded.Preferences.ResearchInterests)
			})

			t.Run("stale version rejected", func(t *testing.T) {
				conv, err := store.Create(ctx)
				require.NoError(t, err)

				require.NoError(t, store.Append(ctx, conv.ID, []model.Turn{applicantTurn("hi")}, model.Preferences{}, 0))
				err = store.Append(ctx, conv.ID, []model.Turn{applicantTurn("again")}, model.Preferences{}, 0)
				require.ErrorIs(t, err, ErrConcurrentModification)

				// retry with the fresh version succeeds
				loaded, err := store.Load(ctx, conv.ID)
				require.NoError(t, err)
				require.NoError(t, store.Append(ctx, conv.ID, []model.Turn{applicantTurn("again")}, model.Preferences{}, loaded.Version))
			})

			t.Run("append to unknown conversation", func(t *testing.T) {
				err := store.Append(ctx, uuid.New().String(), []model.Turn{applicantTurn("hi")}, model.Preferences{}, 0)
				require.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("archived conversations stop loading", func(t *testing.T) {
				conv, err := store.Create(ctx)
				require.NoError(t, err)
				require.NoError(t, store.Archive(ctx, conv.ID))

				_, err = store.Load(ctx, conv.ID)
				require.ErrorIs(t, err, ErrNotFound)
				err = store.Append(ctx, conv.ID, []model.Turn{applicantTurn("hi")}, model.Preferences{}, 0)
				require.ErrorIs(t, err, ErrNotFound)
			})
		})
	}
}

func TestSQLiteRejectedAppendLeavesNoTurns(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	conv, err := store.Create(ctx)
	require.NoError(t, err)

	err = store.Append(ctx, conv.ID, []model.Turn{applicantTurn("hi"), systemTurn("reply", nil)}, model.Preferences{}, 7)
	require.ErrorIs(t, err, ErrConcurrentModification)

	loaded, err := store.Load(ctx, conv.ID)
	require.NoError(t, err)
	require.Empty(t, loaded.Turns, "failed append must not persist partial turns")
	require.Zero(t, loaded.Version)
}
