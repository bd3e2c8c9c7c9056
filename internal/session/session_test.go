package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/movie-feaster/internal/kv"
	"github.com/Clark-Hu/movie-feaster/internal/ledger"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		fresh     string
		stored    string
		wantReset bool
		wantID    string
	}{
		{"first run", "b", "", true, "b"},
		{"new run", "b", "a", true, "b"},
		{"same run", "a", "a", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reset, id := Decide(tt.fresh, tt.stored)
			assert.Equal(t, tt.wantReset, reset)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func fixedClock() time.Time {
	return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func TestInitializeClearsOnNewSession(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	l := ledger.New(store, nil)

	for id := 1; id <= 25; id++ {
		require.NoError(t, l.SetRating(ctx, id, 3))
		require.NoError(t, l.SetRatingCount(ctx, id, 1))
	}
	require.NoError(t, store.Set(ctx, IDKey, "old-session"))

	g := NewGuard(store, l, Options{NewID: func() string { return "new-session" }, Now: fixedClock})
	info, err := g.Initialize(ctx)
	require.NoError(t, err)

	assert.True(t, info.Reset)
	assert.Equal(t, 50, info.Cleared)
	assert.Equal(t, "new-session", info.ID)
	assert.Equal(t, "old-session", info.PreviousID)

	for id := 1; id <= 25; id++ {
		has, err := l.HasRating(ctx, id)
		require.NoError(t, err)
		assert.False(t, has)
	}

	stored, _, _ := store.Get(ctx, IDKey)
	assert.Equal(t, "new-session", stored)
	start, _, _ := store.Get(ctx, StartKey)
	assert.Equal(t, strconv.FormatInt(fixedClock().UnixMilli(), 10), start)
}

func TestInitializeFirstRun(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	g := NewGuard(store, ledger.New(store, nil), Options{})

	info, err := g.Initialize(ctx)
	require.NoError(t, err)
	assert.True(t, info.Reset)
	assert.Zero(t, info.Cleared)
	assert.NotEmpty(t, info.ID)
	assert.Empty(t, info.PreviousID)
}

func TestInitializeSameSessionIsNoop(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	l := ledger.New(store, nil)

	require.NoError(t, store.Set(ctx, IDKey, "same"))
	require.NoError(t, store.Set(ctx, StartKey, "1700000000000"))
	require.NoError(t, l.SetRating(ctx, 42, 4))

	g := NewGuard(store, l, Options{NewID: func() string { return "same" }, Now: fixedClock})
	info, err := g.Initialize(ctx)
	require.NoError(t, err)
	assert.False(t, info.Reset)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), info.StartedAt)

	has, err := l.HasRating(ctx, 42)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestInitializeRunsOnce(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	calls := 0
	var mu sync.Mutex
	g := NewGuard(store, ledger.New(store, nil), Options{NewID: func() string {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return "id-" + strconv.Itoa(calls)
	}})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = g.Initialize(ctx)
		}()
	}
	wg.Wait()

	info, err := g.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "id-1", info.ID)
	assert.Equal(t, 1, calls)
	assert.Equal(t, info, g.Info())
}

func TestInfoDuringInitialize(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	release := make(chan struct{})
	g := NewGuard(store, ledger.New(store, nil), Options{NewID: func() string {
		<-release
		return "fresh"
	}})

	done := make(chan Info)
	go func() {
		info, _ := g.Initialize(ctx)
		done <- info
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := g.Info()
			assert.True(t, got.ID == "" || got.ID == "fresh", "unexpected id %q", got.ID)
		}()
	}
	assert.Equal(t, Info{}, g.Info())
	close(release)
	wg.Wait()

	info := <-done
	assert.Equal(t, "fresh", info.ID)
	assert.Equal(t, info, g.Info())
}

type brokenClearer struct{ err error }

func (b brokenClearer) ClearAll(context.Context) (int, error) { return 0, b.err }

func TestInitializeClearFailure(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	boom := errors.New("ledger offline")

	g := NewGuard(store, brokenClearer{err: boom}, Options{})
	_, err := g.Initialize(ctx)
	require.ErrorIs(t, err, boom)

	_, ok, _ := store.Get(ctx, IDKey)
	assert.False(t, ok, "session id is persisted only after the ledger is cleared")
}
