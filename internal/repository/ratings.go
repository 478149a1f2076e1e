package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

// RatingsRepository provides helpers for movie ratings.
type RatingsRepository struct {
	db Querier
}

// RatingUpsertParams captures the payload required to upsert a rating.
type RatingUpsertParams struct {
	UserID  int64
	MovieID int64
	Score   int
	Review  string
}

const ratingColumns = `r.id, r.user_id, r.movie_id, r.score, r.review, r.created_at`

// Upsert inserts or updates a rating and indicates whether it was newly
// created. Two racing first submissions for the same (user, movie) are
// resolved by the unique constraint: the later one updates the earlier row.
func (r *RatingsRepository) Upsert(ctx context.Context, params RatingUpsertParams) (domain.Rating, bool, error) {
	query := fmt.Sprintf(`
        INSERT INTO ratings AS r (user_id, movie_id, score, review)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT ON CONSTRAINT ratings_user_movie_key
        DO UPDATE SET score = EXCLUDED.score, review = EXCLUDED.review
        RETURNING %s, (r.xmax = 0) AS inserted
    `, ratingColumns)

	var rating domain.Rating
	var inserted bool
	err := r.db.QueryRow(ctx, query, params.UserID, params.MovieID, params.Score, params.Review).Scan(
		&rating.ID,
		&rating.UserID,
		&rating.MovieID,
		&rating.Score,
		&rating.Review,
		&rating.CreatedAt,
		&inserted,
	)
	if err != nil {
		return domain.Rating{}, false, err
	}
	return rating, inserted, nil
}

// GetByID retrieves a rating by its identifier.
func (r *RatingsRepository) GetByID(ctx context.Context, id int64) (domain.Rating, error) {
	query := fmt.Sprintf(`SELECT %s FROM ratings r WHERE r.id = $1`, ratingColumns)
	return notFound(scanRating(r.db.QueryRow(ctx, query, id)))
}

// Get retrieves the rating a user gave a movie.
func (r *RatingsRepository) Get(ctx context.Context, userID, movieID int64) (domain.Rating, error) {
	query := fmt.Sprintf(`SELECT %s FROM ratings r WHERE r.user_id = $1 AND r.movie_id = $2`, ratingColumns)
	return notFound(scanRating(r.db.QueryRow(ctx, query, userID, movieID)))
}

// Delete removes a single rating.
func (r *RatingsRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM ratings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteForMovie removes every rating of a movie.
func (r *RatingsRepository) DeleteForMovie(ctx context.Context, movieID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM ratings WHERE movie_id = $1`, movieID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Aggregate returns the rating average and count for a movie.
func (r *RatingsRepository) Aggregate(ctx context.Context, movieID int64) (domain.RatingAggregate, error) {
	const query = `
        SELECT COALESCE(AVG(score), 0)::float8 AS average,
               COUNT(*)::int8 AS count
        FROM ratings
        WHERE movie_id = $1
    `

	var agg domain.RatingAggregate
	err := r.db.QueryRow(ctx, query, movieID).Scan(&agg.Average, &agg.Count)
	if err != nil {
		return domain.RatingAggregate{}, fmt.Errorf("aggregate ratings: %w", err)
	}
	return agg, nil
}

// ListForMovie returns a movie's ratings with author usernames, newest first.
func (r *RatingsRepository) ListForMovie(ctx context.Context, movieID int64) ([]domain.MovieReview, error) {
	query := fmt.Sprintf(`
        SELECT %s, COALESCE(u.username, '')
        FROM ratings r
        LEFT JOIN users u ON u.id = r.user_id
        WHERE r.movie_id = $1
        ORDER BY r.created_at DESC, r.id DESC
    `, ratingColumns)

	rows, err := r.db.Query(ctx, query, movieID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (domain.MovieReview, error) {
		var mr domain.MovieReview
		err := row.Scan(&mr.ID, &mr.UserID, &mr.MovieID, &mr.Score, &mr.Review, &mr.CreatedAt, &mr.Username)
		return mr, err
	})
}

// ListForUser returns a user's ratings with movie titles, newest first. With
// reviewsOnly set, ratings without review text are skipped.
func (r *RatingsRepository) ListForUser(ctx context.Context, userID int64, reviewsOnly bool) ([]domain.UserRating, error) {
	query := fmt.Sprintf(`
        SELECT %s, m.title
        FROM ratings r
        JOIN movies m ON m.id = r.movie_id
        WHERE r.user_id = $1 AND ($2::bool = false OR r.review <> '')
        ORDER BY r.created_at DESC, r.id DESC
    `, ratingColumns)

	rows, err := r.db.Query(ctx, query, userID, reviewsOnly)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (domain.UserRating, error) {
		var ur domain.UserRating
		err := row.Scan(&ur.ID, &ur.UserID, &ur.MovieID, &ur.Score, &ur.Review, &ur.CreatedAt, &ur.MovieTitle)
		return ur, err
	})
}

// StatsForUser summarises a user's ratings.
func (r *RatingsRepository) StatsForUser(ctx context.Context, userID int64) (domain.UserRatingStats, error) {
	const query = `
        SELECT COUNT(*)::int8,
               COUNT(*) FILTER (WHERE review <> '')::int8,
               COALESCE(AVG(score), 0)::float8
        FROM ratings
        WHERE user_id = $1
    `
	var stats domain.UserRatingStats
	err := r.db.QueryRow(ctx, query, userID).Scan(&stats.Ratings, &stats.Reviews, &stats.AverageScore)
	return stats, err
}

// CountForMovie returns how many ratings reference a movie.
func (r *RatingsRepository) CountForMovie(ctx context.Context, movieID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ratings WHERE movie_id = $1`, movieID).Scan(&n)
	return n, err
}

func scanRating(row pgx.Row) (domain.Rating, error) {
	var rating domain.Rating
	err := row.Scan(&rating.ID, &rating.UserID, &rating.MovieID, &rating.Score, &rating.Review, &rating.CreatedAt)
	return rating, err
}
