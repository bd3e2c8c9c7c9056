// Package rating runs the one-shot rating submission for a movie: a local
// pre-check, the remote call, then a ledger commit or rollback.
package rating

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-feaster/internal/detail"
	"github.com/Clark-Hu/movie-feaster/internal/domain"
)

var (
	// ErrInvalidRating is returned for star values outside 1..5.
	ErrInvalidRating = errors.New("rating: value must be between 1 and 5")
	// ErrAlreadyRated is returned when this session already rated the movie.
	ErrAlreadyRated = errors.New("rating: movie already rated in this session")
	// ErrNoSelection is returned when submit is pressed with no star selected.
	ErrNoSelection = errors.New("rating: no rating selected")
	// ErrSubmitInFlight is returned while a submit for the same movie runs.
	ErrSubmitInFlight = errors.New("rating: submit already in progress")
	// ErrSubmitFailed wraps remote failures. The ledger is rolled back and the
	// user may retry.
	ErrSubmitFailed = errors.New("rating: submit failed")
)

// State is a step of the submission state machine.
type State string

const (
	StateIdle       State = "idle"
	StateChecking   State = "checking"
	StateSubmitting State = "submitting"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled_back"
)

// Ledger is the part of the rating ledger the workflow reads and writes.
type Ledger interface {
	HasRating(ctx context.Context, movieID int) (bool, error)
	GetRating(ctx context.Context, movieID int) (int, error)
	SetRating(ctx context.Context, movieID, value int) error
	GetRatingCount(ctx context.Context, movieID int) (int, error)
	SetRatingCount(ctx context.Context, movieID, count int) error
	Clear(ctx context.Context, movieID int) error
}

// Submitter posts ratings to the catalog.
type Submitter interface {
	SubmitRating(ctx context.Context, id, rating int) error
}

// Loader refreshes a view from the catalog.
type Loader interface {
	Load(ctx context.Context, v *detail.View, isRefresh bool) error
}

// Result describes where a Submit ended.
type Result struct {
	MovieID     int   `json:"movieId"`
	State       State `json:"state"`
	Rating      int   `json:"rating"`
	RatingCount int   `json:"ratingCount"`
}

// Options tunes a Workflow.
type Options struct {
	// RefreshDelay postpones the post-commit refresh so the catalog can catch up.
	RefreshDelay time.Duration
	// RefreshTimeout bounds the detached refresh.
	RefreshTimeout time.Duration
	Logger         *zap.Logger
	// Schedule runs fn after d. Defaults to time.AfterFunc.
	Schedule func(d time.Duration, fn func())
}

// Workflow submits ratings. Submits for different movies run independently;
// submits for the same movie are serialized by an in-flight set.
type Workflow struct {
	ledger  Ledger
	catalog Submitter
	loader  Loader
	opts    Options
	logger  *zap.Logger

	mu       sync.Mutex
	inFlight map[int]struct{}
	pending  sync.WaitGroup
}

// NewWorkflow wires a Workflow.
func NewWorkflow(ledger Ledger, catalog Submitter, loader Loader, opts Options) *Workflow {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 5 * time.Second
	}
	if opts.Schedule == nil {
		opts.Schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	return &Workflow{
		ledger:   ledger,
		catalog:  catalog,
		loader:   loader,
		opts:     opts,
		logger:   opts.Logger.Named("rating"),
		inFlight: make(map[int]struct{}),
	}
}

// Select records a star click on v. Clicks on a movie already rated in this
// session are rejected and the view is re-synced with the stored rating.
func (w *Workflow) Select(ctx context.Context, v *detail.View, value int) error {
	if !domain.ValidRating(value) {
		return ErrInvalidRating
	}
	if err := w.rejectIfRated(ctx, v); err != nil {
		return err
	}
	if v.RatingSubmitting() {
		return ErrSubmitInFlight
	}
	v.Select(value)
	return nil
}

// Submit sends the selected rating for v. Rejections happen before any
// network call. On success the ledger holds the rating and an incremented
// count, and a refresh of v is scheduled; on failure the ledger entry is
// rolled back and the error wraps ErrSubmitFailed.
func (w *Workflow) Submit(ctx context.Context, v *detail.View) (Result, error) {
	id := v.MovieID()
	res := Result{MovieID: id, State: StateChecking}

	value := v.Selection()
	if value == 0 {
		res.State = StateIdle
		return res, ErrNoSelection
	}
	if !domain.ValidRating(value) {
		res.State = StateIdle
		return res, ErrInvalidRating
	}
	if !w.claim(id) {
		res.State = StateIdle
		return res, ErrSubmitInFlight
	}
	defer w.release(id)

	// Checked under the claim so a submit that just committed is seen.
	if err := w.rejectIfRated(ctx, v); err != nil {
		res.State = StateIdle
		return res, err
	}

	if !v.BeginRatingSubmit() {
		res.State = StateIdle
		return res, ErrSubmitInFlight
	}
	res.State = StateSubmitting
	res.Rating = value

	prevCount, err := w.ledger.GetRatingCount(ctx, id)
	if err != nil {
		v.RollbackRating()
		res.State = StateIdle
		return res, fmt.Errorf("read rating count: %w", err)
	}

	if err := w.catalog.SubmitRating(ctx, id, value); err != nil {
		w.rollback(ctx, v, prevCount)
		w.logger.Warn("rating submit failed, rolled back",
			zap.Int("movie_id", id), zap.Int("rating", value), zap.Error(err))
		res.State = StateRolledBack
		return res, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	count := prevCount + 1
	if err := w.commit(ctx, id, value, count); err != nil {
		w.rollback(ctx, v, prevCount)
		w.logger.Error("recording accepted rating failed, rolled back",
			zap.Int("movie_id", id), zap.Error(err))
		res.State = StateRolledBack
		return res, fmt.Errorf("record rating: %w", err)
	}

	v.CommitRating(value, count)
	res.State = StateCommitted
	res.RatingCount = count
	w.logger.Info("rating committed",
		zap.Int("movie_id", id), zap.Int("rating", value), zap.Int("count", count))

	w.scheduleRefresh(ctx, v)
	return res, nil
}

// Wait blocks until every scheduled refresh has finished.
func (w *Workflow) Wait() {
	w.pending.Wait()
}

func (w *Workflow) rejectIfRated(ctx context.Context, v *detail.View) error {
	id := v.MovieID()
	rated, err := w.ledger.HasRating(ctx, id)
	if err != nil {
		return fmt.Errorf("check ledger: %w", err)
	}
	if !rated {
		return nil
	}
	stored, err := w.ledger.GetRating(ctx, id)
	if err != nil {
		return fmt.Errorf("check ledger: %w", err)
	}
	count, err := w.ledger.GetRatingCount(ctx, id)
	if err != nil {
		return fmt.Errorf("check ledger: %w", err)
	}
	v.MarkRated(stored, count)
	return ErrAlreadyRated
}

// Both keys are written before success is reported. The catalog has already
// counted the vote, so the writes outlive a cancelled request.
func (w *Workflow) commit(ctx context.Context, id, value, count int) error {
	ctx = context.WithoutCancel(ctx)
	if err := w.ledger.SetRating(ctx, id, value); err != nil {
		return err
	}
	return w.ledger.SetRatingCount(ctx, id, count)
}

// rollback restores the ledger to its pre-submit state and re-enables the
// rating controls.
func (w *Workflow) rollback(ctx context.Context, v *detail.View, prevCount int) {
	id := v.MovieID()
	ctx = context.WithoutCancel(ctx)
	if err := w.ledger.Clear(ctx, id); err != nil {
		w.logger.Error("ledger rollback failed", zap.Int("movie_id", id), zap.Error(err))
	} else if prevCount > 0 {
		if err := w.ledger.SetRatingCount(ctx, id, prevCount); err != nil {
			w.logger.Error("restoring rating count failed", zap.Int("movie_id", id), zap.Error(err))
		}
	}
	v.RollbackRating()
}

func (w *Workflow) scheduleRefresh(ctx context.Context, v *detail.View) {
	detached := context.WithoutCancel(ctx)
	w.pending.Add(1)
	w.opts.Schedule(w.opts.RefreshDelay, func() {
		defer w.pending.Done()
		defer v.FinishRatingSubmit()

		rctx, cancel := context.WithTimeout(detached, w.opts.RefreshTimeout)
		defer cancel()
		if err := w.loader.Load(rctx, v, true); err != nil && !errors.Is(err, detail.ErrStale) {
			w.logger.Warn("post-rating refresh failed", zap.Int("movie_id", v.MovieID()), zap.Error(err))
		}
	})
}

func (w *Workflow) claim(id int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inFlight[id]; busy {
		return false
	}
	w.inFlight[id] = struct{}{}
	return true
}

func (w *Workflow) release(id int) {
	w.mu.Lock()
	delete(w.inFlight, id)
	w.mu.Unlock()
}
