// Package ledger records, per movie, whether the current session already
// rated it, the value given and a locally tracked rating count.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-feaster/internal/kv"
)

const (
	ratingPrefix = "movieUserRating_"
	countPrefix  = "movieRatingCount_"
)

// RatingKey is the storage key of a movie's rating value.
func RatingKey(movieID int) string { return ratingPrefix + strconv.Itoa(movieID) }

// CountKey is the storage key of a movie's locally tracked rating count.
func CountKey(movieID int) string { return countPrefix + strconv.Itoa(movieID) }

// Entry is the ledger state of one movie.
type Entry struct {
	MovieID     int  `json:"movieId"`
	HasRated    bool `json:"hasRated"`
	Rating      int  `json:"rating"`
	RatingCount int  `json:"ratingCount"`
}

// Ledger is the per-session rating record on top of a kv.Store.
type Ledger struct {
	store  kv.Store
	logger *zap.Logger
}

// New wraps store. A nil logger discards output.
func New(store kv.Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, logger: logger.Named("ledger")}
}

// HasRating reports whether a non-zero rating is stored for movieID.
func (l *Ledger) HasRating(ctx context.Context, movieID int) (bool, error) {
	v, err := l.GetRating(ctx, movieID)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// GetRating returns the stored rating or 0 when absent.
func (l *Ledger) GetRating(ctx context.Context, movieID int) (int, error) {
	return l.getInt(ctx, RatingKey(movieID))
}

// SetRating stores value as is. Range checks belong to the caller.
func (l *Ledger) SetRating(ctx context.Context, movieID, value int) error {
	return l.store.Set(ctx, RatingKey(movieID), strconv.Itoa(value))
}

// GetRatingCount returns the stored count or 0 when absent.
func (l *Ledger) GetRatingCount(ctx context.Context, movieID int) (int, error) {
	return l.getInt(ctx, CountKey(movieID))
}

// SetRatingCount stores count independently of the rating value.
func (l *Ledger) SetRatingCount(ctx context.Context, movieID, count int) error {
	if count < 0 {
		return fmt.Errorf("ledger: negative rating count %d", count)
	}
	return l.store.Set(ctx, CountKey(movieID), strconv.Itoa(count))
}

// Clear removes the rating and count of one movie.
func (l *Ledger) Clear(ctx context.Context, movieID int) error {
	if err := l.store.Delete(ctx, RatingKey(movieID)); err != nil {
		return err
	}
	return l.store.Delete(ctx, CountKey(movieID))
}

// ClearAll removes every rating and count key and returns how many were deleted.
func (l *Ledger) ClearAll(ctx context.Context) (int, error) {
	removed := 0
	for _, prefix := range []string{ratingPrefix, countPrefix} {
		keys, err := l.store.Keys(ctx, prefix)
		if err != nil {
			return removed, err
		}
		for _, key := range keys {
			if err := l.store.Delete(ctx, key); err != nil {
				return removed, err
			}
			removed++
		}
	}
	l.logger.Debug("cleared ledger", zap.Int("removed", removed))
	return removed, nil
}

// Entry returns the ledger state of one movie.
func (l *Ledger) Entry(ctx context.Context, movieID int) (Entry, error) {
	rating, err := l.GetRating(ctx, movieID)
	if err != nil {
		return Entry{}, err
	}
	count, err := l.GetRatingCount(ctx, movieID)
	if err != nil {
		return Entry{}, err
	}
	return Entry{MovieID: movieID, HasRated: rating != 0, Rating: rating, RatingCount: count}, nil
}

// Entries lists every movie that has a rating or a count, ordered by id.
func (l *Ledger) Entries(ctx context.Context) ([]Entry, error) {
	seen := make(map[int]struct{})
	for _, prefix := range []string{ratingPrefix, countPrefix} {
		keys, err := l.store.Keys(ctx, prefix)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			id, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
			if err != nil {
				l.logger.Warn("skipping malformed ledger key", zap.String("key", key))
				continue
			}
			seen[id] = struct{}{}
		}
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		e, err := l.Entry(ctx, id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Unparseable values read as 0, the same as a missing key.
func (l *Ledger) getInt(ctx context.Context, key string) (int, error) {
	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		l.logger.Warn("ignoring malformed ledger value", zap.String("key", key), zap.String("value", raw))
		return 0, nil
	}
	return v, nil
}
