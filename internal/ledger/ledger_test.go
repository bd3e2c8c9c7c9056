package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/movie-feaster/internal/kv"
)

func TestSetGetRating(t *testing.T) {
	ctx := context.Background()
	l := New(kv.NewMemory(), nil)

	for _, id := range []int{1, 42, 1000} {
		for v := 1; v <= 5; v++ {
			require.NoError(t, l.SetRating(ctx, id, v))
			got, err := l.GetRating(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, v, got)
			has, err := l.HasRating(ctx, id)
			require.NoError(t, err)
			assert.True(t, has)
		}
	}
}

func TestAbsentAndZero(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	l := New(store, nil)

	got, err := l.GetRating(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, got)

	require.NoError(t, l.SetRating(ctx, 7, 0))
	has, err := l.HasRating(ctx, 7)
	require.NoError(t, err)
	assert.False(t, has, "a zero rating is not a rating")

	require.NoError(t, store.Set(ctx, RatingKey(8), "garbage"))
	has, err = l.HasRating(ctx, 8)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestCountIsIndependent(t *testing.T) {
	ctx := context.Background()
	l := New(kv.NewMemory(), nil)

	require.NoError(t, l.SetRatingCount(ctx, 42, 10))
	has, err := l.HasRating(ctx, 42)
	require.NoError(t, err)
	assert.False(t, has)

	count, err := l.GetRatingCount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	require.Error(t, l.SetRatingCount(ctx, 42, -1))
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	l := New(store, nil)

	require.NoError(t, l.SetRating(ctx, 42, 4))
	require.NoError(t, l.SetRatingCount(ctx, 42, 3))
	require.NoError(t, l.SetRating(ctx, 43, 2))
	require.NoError(t, l.Clear(ctx, 42))

	has, err := l.HasRating(ctx, 42)
	require.NoError(t, err)
	assert.False(t, has)
	got, err := l.GetRating(ctx, 42)
	require.NoError(t, err)
	assert.Zero(t, got)
	_, ok, err := store.Get(ctx, CountKey(42))
	require.NoError(t, err)
	assert.False(t, ok, "count must not survive a clear")

	has, err = l.HasRating(ctx, 43)
	require.NoError(t, err)
	assert.True(t, has, "other movies are untouched")
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	l := New(store, nil)

	ids := []int{1, 2, 3, 42}
	for _, id := range ids {
		require.NoError(t, l.SetRating(ctx, id, 5))
		require.NoError(t, l.SetRatingCount(ctx, id, 1))
	}
	require.NoError(t, l.SetRatingCount(ctx, 99, 4))
	require.NoError(t, store.Set(ctx, "currentAppSessionId", "abc"))

	removed, err := l.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2*len(ids)+1, removed)

	for _, id := range ids {
		has, err := l.HasRating(ctx, id)
		require.NoError(t, err)
		assert.False(t, has)
	}
	assert.Equal(t, 1, store.Len(), "non-ledger keys survive")

	removed, err = l.ClearAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestEntries(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	l := New(store, nil)

	require.NoError(t, l.SetRating(ctx, 42, 4))
	require.NoError(t, l.SetRatingCount(ctx, 42, 2))
	require.NoError(t, l.SetRatingCount(ctx, 7, 1))
	require.NoError(t, store.Set(ctx, "movieUserRating_bogus", "3"))

	entries, err := l.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{MovieID: 7, RatingCount: 1},
		{MovieID: 42, HasRated: true, Rating: 4, RatingCount: 2},
	}, entries)
}

type failingStore struct {
	kv.Store
	err error
}

func (f failingStore) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingStore) Keys(context.Context, string) ([]string, error)  { return nil, f.err }

func TestStoreErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	l := New(failingStore{Store: kv.NewMemory(), err: boom}, nil)

	_, err := l.HasRating(ctx, 1)
	require.ErrorIs(t, err, boom)
	_, err = l.ClearAll(ctx)
	require.ErrorIs(t, err, boom)
	_, err = l.Entries(ctx)
	require.ErrorIs(t, err, boom)
}
