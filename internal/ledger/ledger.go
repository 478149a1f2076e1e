// Package ledger owns movie ratings and keeps each movie's aggregate score in
// step with them. Every rating mutation and the recomputation it triggers
// share one transaction, so the stored aggregate never reflects a stale set
// of ratings.
package ledger

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
)

// Ledger records ratings and derives movie aggregates.
type Ledger struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// New constructs a Ledger.
func New(repo *repository.Repository, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{repo: repo, logger: logger.Named("ledger")}
}

// Submission describes the outcome of Submit.
type Submission struct {
	Rating    domain.Rating
	Created   bool
	Aggregate domain.RatingAggregate
}

// Submit records the principal's score and review for a movie. An existing
// rating by the same user is overwritten in place.
func (l *Ledger) Submit(ctx context.Context, p domain.Principal, movieID int64, score int, review string) (Submission, error) {
	if !p.LoggedIn() {
		return Submission{}, domain.ErrForbidden
	}
	if !domain.ValidScore(score) {
		return Submission{}, domain.ErrInvalidScore
	}
	review = strings.TrimSpace(review)

	var out Submission
	err := l.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Movies.GetForUpdate(ctx, movieID); err != nil {
			return err
		}
		rating, created, err := tx.Ratings.Upsert(ctx, repository.RatingUpsertParams{
			UserID:  p.UserID,
			MovieID: movieID,
			Score:   score,
			Review:  review,
		})
		if err != nil {
			return err
		}
		agg, err := tx.Movies.RecomputeRating(ctx, movieID)
		if err != nil {
			return err
		}
		out = Submission{Rating: rating, Created: created, Aggregate: agg}
		return nil
	})
	if err != nil {
		return Submission{}, l.fail("submit rating", err, zap.Int64("user_id", p.UserID), zap.Int64("movie_id", movieID))
	}

	l.logger.Debug("rating recorded",
		zap.Int64("user_id", p.UserID),
		zap.Int64("movie_id", movieID),
		zap.Bool("created", out.Created),
		zap.Float64("average", out.Aggregate.Average))
	return out, nil
}

// Recompute sets a movie's aggregate to the mean of its current ratings.
func (l *Ledger) Recompute(ctx context.Context, movieID int64) (domain.RatingAggregate, error) {
	var agg domain.RatingAggregate
	err := l.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Movies.GetForUpdate(ctx, movieID); err != nil {
			return err
		}
		var err error
		agg, err = tx.Movies.RecomputeRating(ctx, movieID)
		return err
	})
	if err != nil {
		return domain.RatingAggregate{}, l.fail("recompute aggregate", err, zap.Int64("movie_id", movieID))
	}
	return agg, nil
}

// Delete removes one of the principal's own ratings and recomputes the
// movie's aggregate.
func (l *Ledger) Delete(ctx context.Context, p domain.Principal, ratingID int64) (domain.RatingAggregate, error) {
	if !p.LoggedIn() {
		return domain.RatingAggregate{}, domain.ErrForbidden
	}

	var agg domain.RatingAggregate
	err := l.repo.WithTx(ctx, func(tx *repository.Repository) error {
		rating, err := tx.Ratings.GetByID(ctx, ratingID)
		if err != nil {
			return err
		}
		if rating.UserID != p.UserID {
			return domain.ErrForbidden
		}
		// Lock the movie before touching its ratings, same order as Submit.
		_, err = tx.Movies.GetForUpdate(ctx, rating.MovieID)
		movieExists := err == nil
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if err := tx.Ratings.Delete(ctx, rating.ID); err != nil {
			return err
		}
		if !movieExists {
			return nil
		}
		agg, err = tx.Movies.RecomputeRating(ctx, rating.MovieID)
		return err
	})
	if err != nil {
		return domain.RatingAggregate{}, l.fail("delete rating", err, zap.Int64("user_id", p.UserID), zap.Int64("rating_id", ratingID))
	}
	return agg, nil
}

// MovieRatings lists a movie's ratings with their authors, newest first.
func (l *Ledger) MovieRatings(ctx context.Context, movieID int64) ([]domain.MovieReview, error) {
	reviews, err := l.repo.Ratings.ListForMovie(ctx, movieID)
	if err != nil {
		return nil, l.fail("list movie ratings", err, zap.Int64("movie_id", movieID))
	}
	return reviews, nil
}

// UserRating returns the rating a user gave a movie; ok is false when the
// user has not rated it.
func (l *Ledger) UserRating(ctx context.Context, userID, movieID int64) (domain.Rating, bool, error) {
	rating, err := l.repo.Ratings.Get(ctx, userID, movieID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Rating{}, false, nil
	}
	if err != nil {
		return domain.Rating{}, false, l.fail("get user rating", err, zap.Int64("user_id", userID), zap.Int64("movie_id", movieID))
	}
	return rating, true, nil
}

// UserRatings lists every rating by a user, newest first.
func (l *Ledger) UserRatings(ctx context.Context, userID int64) ([]domain.UserRating, error) {
	ratings, err := l.repo.Ratings.ListForUser(ctx, userID, false)
	if err != nil {
		return nil, l.fail("list user ratings", err, zap.Int64("user_id", userID))
	}
	return ratings, nil
}

// UserReviews lists the user's ratings that carry review text.
func (l *Ledger) UserReviews(ctx context.Context, userID int64) ([]domain.UserRating, error) {
	ratings, err := l.repo.Ratings.ListForUser(ctx, userID, true)
	if err != nil {
		return nil, l.fail("list user reviews", err, zap.Int64("user_id", userID))
	}
	return ratings, nil
}

// UserStats summarises a user's rating activity.
func (l *Ledger) UserStats(ctx context.Context, userID int64) (domain.UserRatingStats, error) {
	stats, err := l.repo.Ratings.StatsForUser(ctx, userID)
	if err != nil {
		return domain.UserRatingStats{}, l.fail("user rating stats", err, zap.Int64("user_id", userID))
	}
	return stats, nil
}

// fail passes business-rule errors through and converts everything else into
// a logged PersistenceError.
func (l *Ledger) fail(op string, err error, fields ...zap.Field) error {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrForbidden):
		return err
	}
	l.logger.Error(op+" failed", append(fields, zap.Error(err))...)
	return domain.Persistence(op, err)
}
