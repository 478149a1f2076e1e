package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

// CategoriesRepository covers categories and the movie_categories join table.
type CategoriesRepository struct {
	db Querier
}

// List returns every category ordered by id.
func (r *CategoriesRepository) List(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanCategory)
}

// GetByID fetches a category by its identifier.
func (r *CategoriesRepository) GetByID(ctx context.Context, id int64) (domain.Category, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name FROM categories WHERE id = $1`, id)
	return notFound(scanCategory(row))
}

// Create inserts a category by name.
func (r *CategoriesRepository) Create(ctx context.Context, name string) (domain.Category, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id, name`, name)
	return scanCategory(row)
}

// Count returns the number of categories.
func (r *CategoriesRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n)
	return n, err
}

// IDsForMovie returns the category ids linked to a movie.
func (r *CategoriesRepository) IDsForMovie(ctx context.Context, movieID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT category_id FROM movie_categories WHERE movie_id = $1 ORDER BY id`, movieID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (int64, error) {
		var id int64
		err := row.Scan(&id)
		return id, err
	})
}

// LinkMovie associates a movie with each category id. Ids are not checked
// against the categories table.
func (r *CategoriesRepository) LinkMovie(ctx context.Context, movieID int64, categoryIDs []int64) error {
	for _, categoryID := range categoryIDs {
		if _, err := r.db.Exec(ctx, `INSERT INTO movie_categories (movie_id, category_id) VALUES ($1, $2)`, movieID, categoryID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteForMovie removes every association of a movie.
func (r *CategoriesRepository) DeleteForMovie(ctx context.Context, movieID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM movie_categories WHERE movie_id = $1`, movieID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReplaceForMovie deletes the movie's associations and inserts categoryIDs.
// Run it inside a transaction so the intermediate state is never visible.
func (r *CategoriesRepository) ReplaceForMovie(ctx context.Context, movieID int64, categoryIDs []int64) error {
	if _, err := r.DeleteForMovie(ctx, movieID); err != nil {
		return err
	}
	return r.LinkMovie(ctx, movieID, categoryIDs)
}

func scanCategory(row pgx.Row) (domain.Category, error) {
	var c domain.Category
	err := row.Scan(&c.ID, &c.Name)
	return c, err
}
