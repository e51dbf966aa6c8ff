package records

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/gradpath/advisor/internal/model"
)

// flakyStore fails every query once failing is set.
type flakyStore struct {
	*MemoryStore
	failing bool
}

func (f *flakyStore) QueryFaculty(ctx context.Context, filter FacultyFilter) ([]model.FacultyRecord, error) {
	if f.failing {
		return nil, eris.New("records: connection refused")
	}
	return f.MemoryStore.QueryFaculty(ctx, filter)
}

func (f *flakyStore) QueryPrograms(ctx context.Context, filter ProgramFilter) ([]model.ProgramRecord, error) {
	if f.failing {
		return nil, eris.New("records: connection refused")
	}
	return f.MemoryStore.QueryPrograms(ctx, filter)
}

func TestCachedStoreServesStaleOnFailure(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{MemoryStore: NewMemory()}
	now := time.Now().UTC()
	require.NoError(t, inner.SeedFaculty(ctx, testFaculty(now)))

	cached := NewCached(inner)
	filter := FacultyFilter{Universities: []string{"stanford"}}

	recs, err := cached.QueryFaculty(ctx, filter)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.False(t, recs[0].IsStale)

	inner.failing = true

	recs, err = cached.QueryFaculty(ctx, filter)
	require.ErrorIs(t, err, ErrServedStale)
	require.Len(t, recs, 2, "cached snapshot still served")
	for _, f := range recs {
		require.True(t, f.IsStale, "served-from-cache records are flagged stale")
	}
}

func TestCachedStoreMissPropagatesError(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{MemoryStore: NewMemory(), failing: true}
	cached := NewCached(inner)

	recs, err := cached.QueryFaculty(ctx, FacultyFilter{Universities: []string{"stanford"}})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrServedStale)
	require.Nil(t, recs)
}

func TestCachedStoreEvictsOldestFilters(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{MemoryStore: NewMemory()}
	now := time.Now().UTC()
	require.NoError(t, inner.SeedFaculty(ctx, testFaculty(now)))

	cached := NewCached(inner)
	first := FacultyFilter{Universities: []string{"stanford"}}
	_, err := cached.QueryFaculty(ctx, first)
	require.NoError(t, err)

	// A full cache of newer filters pushes the first snapshot out.
	for i := 0; i < cacheEntries; i++ {
		_, err := cached.QueryFaculty(ctx, FacultyFilter{Universities: []string{"u-" + strconv.Itoa(i)}})
		require.NoError(t, err)
	}

	inner.failing = true

	_, err = cached.QueryFaculty(ctx, first)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrServedStale, "evicted snapshots are gone")

	_, err = cached.QueryFaculty(ctx, FacultyFilter{Universities: []string{"u-" + strconv.Itoa(cacheEntries-1)}})
	require.ErrorIs(t, err, ErrServedStale, "recent snapshots survive")
}

func TestCachedStoreDoesNotServeOnCancellation(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemory()}
	now := time.Now().UTC()
	require.NoError(t, inner.SeedPrograms(context.Background(), testPrograms(now)))

	cached := NewCached(inner)
	filter := ProgramFilter{Universities: []string{"mit"}}

	_, err := cached.QueryPrograms(context.Background(), filter)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inner.failing = true

	_, err = cached.QueryPrograms(ctx, filter)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrServedStale, "cancelled turns must not fall back to cache")
}
