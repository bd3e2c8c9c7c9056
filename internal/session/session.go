// Package session detects a fresh application run and resets the rating
// ledger when one starts.
package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

const (
	// IDKey stores the identifier of the session that last started.
	IDKey = "currentAppSessionId"
	// StartKey stores that session's start instant in Unix milliseconds.
	StartKey = "appStartTimestamp"
)

// Decide compares a freshly generated id with the persisted one. A missing
// or different stored id starts a new session and returns the id to persist.
func Decide(freshID, storedID string) (shouldReset bool, idToPersist string) {
	if storedID == "" || storedID != freshID {
		return true, freshID
	}
	return false, ""
}

// Info describes the session established by Initialize.
type Info struct {
	ID         string    `json:"id"`
	PreviousID string    `json:"previousId,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	Reset      bool      `json:"reset"`
	Cleared    int       `json:"cleared"`
}

// StateStore is the persisted storage the guard reads and writes.
type StateStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Clearer empties the rating ledger.
type Clearer interface {
	ClearAll(ctx context.Context) (int, error)
}

// Options tunes a Guard. Zero values use KSUIDs and the wall clock.
type Options struct {
	NewID  func() string
	Now    func() time.Time
	Logger *zap.Logger
}

// Guard runs the session check once per process.
type Guard struct {
	store  StateStore
	ledger Clearer
	newID  func() string
	now    func() time.Time
	logger *zap.Logger

	once sync.Once
	mu   sync.RWMutex
	info Info
	err  error
}

// NewGuard builds a Guard over store and ledger.
func NewGuard(store StateStore, ledger Clearer, opts Options) *Guard {
	g := &Guard{
		store:  store,
		ledger: ledger,
		newID:  opts.NewID,
		now:    opts.Now,
		logger: opts.Logger,
	}
	if g.newID == nil {
		g.newID = func() string { return ksuid.New().String() }
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	g.logger = g.logger.Named("session")
	return g
}

// Initialize performs the check on the first call and returns its outcome
// on every call.
func (g *Guard) Initialize(ctx context.Context) (Info, error) {
	g.once.Do(func() {
		info, err := g.initialize(ctx)
		g.mu.Lock()
		g.info, g.err = info, err
		g.mu.Unlock()
	})
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.info, g.err
}

// Info returns the result of Initialize, or the zero Info before it ran.
// It is safe to call while Initialize is running.
func (g *Guard) Info() Info {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.info
}

func (g *Guard) initialize(ctx context.Context) (Info, error) {
	fresh := g.newID()
	started := g.now().UTC()

	stored, _, err := g.store.Get(ctx, IDKey)
	if err != nil {
		return Info{}, fmt.Errorf("read session id: %w", err)
	}

	info := Info{ID: fresh, PreviousID: stored, StartedAt: started}

	reset, persist := Decide(fresh, stored)
	if !reset {
		info.StartedAt = g.storedStart(ctx, started)
		g.logger.Info("continuing application session", zap.String("session_id", fresh))
		return info, nil
	}

	cleared, err := g.ledger.ClearAll(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("clear ledger: %w", err)
	}
	g.logger.Info("new application session detected, clearing ratings",
		zap.String("session_id", persist),
		zap.String("previous_session_id", stored),
		zap.Int("cleared", cleared))

	if err := g.store.Set(ctx, IDKey, persist); err != nil {
		return Info{}, fmt.Errorf("persist session id: %w", err)
	}
	if err := g.store.Set(ctx, StartKey, strconv.FormatInt(started.UnixMilli(), 10)); err != nil {
		return Info{}, fmt.Errorf("persist session start: %w", err)
	}

	info.Reset = true
	info.Cleared = cleared
	return info, nil
}

func (g *Guard) storedStart(ctx context.Context, fallback time.Time) time.Time {
	raw, ok, err := g.store.Get(ctx, StartKey)
	if err != nil || !ok {
		return fallback
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return time.UnixMilli(ms).UTC()
}
