// Package detail holds per-movie display state and keeps it in step with the
// catalog and the local rating ledger.
package detail

import (
	"sync"

	"github.com/Clark-Hu/movie-feaster/internal/domain"
)

// State is a point-in-time copy of a View.
type State struct {
	MovieID           int           `json:"movieId"`
	Movie             *domain.Movie `json:"movie,omitempty"`
	Loading           bool          `json:"loading"`
	Refreshing        bool          `json:"refreshing"`
	Error             string        `json:"error,omitempty"`
	HasRated          bool          `json:"hasRated"`
	UserRating        int           `json:"userRating"`
	RatingCount       int           `json:"ratingCount"`
	RatingSubmitting  bool          `json:"ratingSubmitting"`
	CommentSubmitting bool          `json:"commentSubmitting"`
	// RatingEnabled is false once the movie is rated or a rating is in flight.
	RatingEnabled bool `json:"ratingEnabled"`
}

// View is the display state of one open movie detail page. Safe for
// concurrent use.
type View struct {
	movieID int

	mu                sync.Mutex
	movie             *domain.Movie
	loading           bool
	refreshing        bool
	err               error
	hasRated          bool
	userRating        int
	ratingCount       int
	ratingSubmitting  bool
	commentSubmitting bool
	closed            bool
	loadSeq           uint64
}

// NewView returns an empty view for movieID.
func NewView(movieID int) *View {
	return &View{movieID: movieID}
}

// MovieID identifies the movie shown by the view.
func (v *View) MovieID() int { return v.movieID }

// Snapshot copies the current state.
func (v *View) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := State{
		MovieID:           v.movieID,
		Loading:           v.loading,
		Refreshing:        v.refreshing,
		HasRated:          v.hasRated,
		UserRating:        v.userRating,
		RatingCount:       v.ratingCount,
		RatingSubmitting:  v.ratingSubmitting,
		CommentSubmitting: v.commentSubmitting,
		RatingEnabled:     !v.hasRated && !v.ratingSubmitting,
	}
	if v.movie != nil {
		m := *v.movie
		s.Movie = &m
	}
	if v.err != nil {
		s.Error = v.err.Error()
	}
	return s
}

// Close marks the view as navigated away from. Later results are discarded.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
}

// Closed reports whether Close was called.
func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// Selection returns the star value currently chosen, or the stored rating
// once the movie is rated.
func (v *View) Selection() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.userRating
}

// Select records a star click.
func (v *View) Select(value int) {
	v.mu.Lock()
	v.userRating = value
	v.mu.Unlock()
}

// RatingSubmitting reports whether a rating submit is running for the view.
func (v *View) RatingSubmitting() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ratingSubmitting
}

// BeginRatingSubmit marks the movie rated and disables the controls. It
// returns false when a submit is already running.
func (v *View) BeginRatingSubmit() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ratingSubmitting {
		return false
	}
	v.hasRated = true
	v.ratingSubmitting = true
	return true
}

// CommitRating records an accepted rating. The submitting flag stays set
// until FinishRatingSubmit.
func (v *View) CommitRating(value, count int) {
	v.mu.Lock()
	v.hasRated = true
	v.userRating = value
	v.ratingCount = count
	v.mu.Unlock()
}

// RollbackRating re-enables the rating controls after a failed submit.
func (v *View) RollbackRating() {
	v.mu.Lock()
	v.hasRated = false
	v.ratingSubmitting = false
	v.mu.Unlock()
}

// FinishRatingSubmit clears the submitting flag.
func (v *View) FinishRatingSubmit() {
	v.mu.Lock()
	v.ratingSubmitting = false
	v.mu.Unlock()
}

// MarkRated aligns the view with a rating already held in the ledger.
func (v *View) MarkRated(value, count int) {
	v.mu.Lock()
	v.hasRated = true
	v.userRating = value
	v.ratingCount = count
	v.mu.Unlock()
}

// BeginComment claims the comment form. It returns false when a comment is
// already being posted.
func (v *View) BeginComment() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.commentSubmitting {
		return false
	}
	v.commentSubmitting = true
	return true
}

// EndComment releases the comment form.
func (v *View) EndComment() {
	v.mu.Lock()
	v.commentSubmitting = false
	v.mu.Unlock()
}

func (v *View) beginLoad(isRefresh bool) (uint64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, false
	}
	v.loadSeq++
	if isRefresh {
		v.refreshing = true
	} else {
		v.loading = true
		v.err = nil
	}
	return v.loadSeq, true
}

// current reports whether seq is still the latest load of an open view.
// Callers hold v.mu.
func (v *View) current(seq uint64) bool {
	return !v.closed && v.loadSeq == seq
}
