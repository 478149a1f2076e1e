package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	db Querier
}

const movieColumns = `
    m.id,
    m.title,
    m.director,
    m.year,
    m.genre,
    m.description,
    m.image_url,
    m.video_url,
    m.video_type,
    m.rating,
    m.created_at
`

// MovieParams bundles the stored fields of a movie row.
type MovieParams struct {
	Title       string
	Director    string
	Year        int
	Genre       string
	Description string
	ImageURL    string
	VideoURL    string
	VideoKind   domain.VideoKind
}

// Create inserts a new movie row and returns the stored entity.
func (r *MoviesRepository) Create(ctx context.Context, params MovieParams) (domain.Movie, error) {
	query := fmt.Sprintf(`
        INSERT INTO movies AS m (title, director, year, genre, description, image_url, video_url, video_type)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING %s
    `, movieColumns)

	row := r.db.QueryRow(ctx, query, params.Title, params.Director, params.Year, params.Genre,
		params.Description, params.ImageURL, params.VideoURL, string(params.VideoKind))
	return scanMovie(row)
}

// GetByID fetches a movie by its identifier.
func (r *MoviesRepository) GetByID(ctx context.Context, id int64) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies m WHERE m.id = $1`, movieColumns)
	return notFound(scanMovie(r.db.QueryRow(ctx, query, id)))
}

// GetForUpdate fetches a movie and locks its row until the surrounding
// transaction ends. Rating writes take this lock so aggregate recomputation
// for one movie is serialized.
func (r *MoviesRepository) GetForUpdate(ctx context.Context, id int64) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies m WHERE m.id = $1 FOR UPDATE`, movieColumns)
	return notFound(scanMovie(r.db.QueryRow(ctx, query, id)))
}

// Update overwrites every stored field of a movie except its rating.
func (r *MoviesRepository) Update(ctx context.Context, id int64, params MovieParams) (domain.Movie, error) {
	query := fmt.Sprintf(`
        UPDATE movies AS m
        SET title = $2,
            director = $3,
            year = $4,
            genre = $5,
            description = $6,
            image_url = $7,
            video_url = $8,
            video_type = $9
        WHERE m.id = $1
        RETURNING %s
    `, movieColumns)

	row := r.db.QueryRow(ctx, query, id, params.Title, params.Director, params.Year, params.Genre,
		params.Description, params.ImageURL, params.VideoURL, string(params.VideoKind))
	return notFound(scanMovie(row))
}

// Delete removes the movie row only; dependents must be removed first.
func (r *MoviesRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM movies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAll returns every movie, most recent first.
func (r *MoviesRepository) ListAll(ctx context.Context) ([]domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies m ORDER BY m.created_at DESC, m.id DESC`, movieColumns)
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMovie)
}

// Search matches query as a case-insensitive substring of title, director,
// genre or description.
func (r *MoviesRepository) Search(ctx context.Context, query string) ([]domain.Movie, error) {
	pattern := "%" + escapeLike(query) + "%"
	sql := fmt.Sprintf(`
        SELECT %s FROM movies m
        WHERE m.title ILIKE $1
           OR m.director ILIKE $1
           OR m.genre ILIKE $1
           OR m.description ILIKE $1
        ORDER BY m.created_at DESC, m.id DESC
    `, movieColumns)

	rows, err := r.db.Query(ctx, sql, pattern)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMovie)
}

// ListByCategory returns movies linked to a category, most recent first.
func (r *MoviesRepository) ListByCategory(ctx context.Context, categoryID int64) ([]domain.Movie, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM movies m
        WHERE m.id IN (SELECT mc.movie_id FROM movie_categories mc WHERE mc.category_id = $1)
        ORDER BY m.created_at DESC, m.id DESC
    `, movieColumns)

	rows, err := r.db.Query(ctx, query, categoryID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMovie)
}

// Count returns the number of stored movies.
func (r *MoviesRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM movies`).Scan(&n)
	return n, err
}

// RecomputeRating sets the movie's aggregate to the mean of its current
// ratings (0 when it has none) and returns the new aggregate.
func (r *MoviesRepository) RecomputeRating(ctx context.Context, id int64) (domain.RatingAggregate, error) {
	const query = `
        WITH agg AS (
            SELECT COALESCE(AVG(score), 0)::float8 AS average, COUNT(*)::int8 AS count
            FROM ratings
            WHERE movie_id = $1
        )
        UPDATE movies
        SET rating = agg.average
        FROM agg
        WHERE movies.id = $1
        RETURNING agg.average, agg.count
    `

	var agg domain.RatingAggregate
	err := r.db.QueryRow(ctx, query, id).Scan(&agg.Average, &agg.Count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RatingAggregate{}, ErrNotFound
		}
		return domain.RatingAggregate{}, fmt.Errorf("recompute rating: %w", err)
	}
	return agg, nil
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var (
		movie     domain.Movie
		videoKind string
	)

	err := row.Scan(
		&movie.ID,
		&movie.Title,
		&movie.Director,
		&movie.Year,
		&movie.Genre,
		&movie.Description,
		&movie.ImageURL,
		&movie.VideoURL,
		&videoKind,
		&movie.Rating,
		&movie.CreatedAt,
	)
	if err != nil {
		return domain.Movie{}, err
	}
	movie.VideoKind = domain.VideoKind(videoKind)
	return movie, nil
}

func notFound[T any](v T, err error) (T, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		var zero T
		return zero, ErrNotFound
	}
	return v, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern (default escape `\`).
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
