package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
)

// DefaultCategories are created on first run, in id order.
var DefaultCategories = []string{
	"Action", "Comedy", "Romance", "Sci-Fi",
	"Horror", "Drama", "Animation", "Documentary",
}

type sampleMovie struct {
	params   repository.MovieParams
	category string
}

const sampleVideoBase = "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/"

var sampleMovies = []sampleMovie{
	{repository.MovieParams{
		Title: "Inception", Director: "Christopher Nolan", Year: 2010, Genre: "Sci-Fi/Thriller",
		Description: "A thief who steals corporate secrets by entering the dreams of others.",
		ImageURL:    "https://picsum.photos/seed/inception/300/450.jpg",
		VideoURL:    sampleVideoBase + "BigBuckBunny.mp4",
	}, "Sci-Fi"},
	{repository.MovieParams{
		Title: "The Shawshank Redemption", Director: "Frank Darabont", Year: 1994, Genre: "Drama",
		Description: "A wrongly convicted man finds hope and freedom inside prison walls.",
		ImageURL:    "https://picsum.photos/seed/shawshank/300/450.jpg",
		VideoURL:    sampleVideoBase + "ElephantsDream.mp4",
	}, "Drama"},
	{repository.MovieParams{
		Title: "Titanic", Director: "James Cameron", Year: 1997, Genre: "Romance/Disaster",
		Description: "A love story aboard a luxury liner on its doomed maiden voyage.",
		ImageURL:    "https://picsum.photos/seed/titanic/300/450.jpg",
		VideoURL:    sampleVideoBase + "ForBiggerBlazes.mp4",
	}, "Romance"},
	{repository.MovieParams{
		Title: "Avatar", Director: "James Cameron", Year: 2009, Genre: "Sci-Fi/Action",
		Description: "A paraplegic marine is sent to an alien world and torn between two peoples.",
		ImageURL:    "https://picsum.photos/seed/avatar/300/450.jpg",
		VideoURL:    sampleVideoBase + "ForBiggerEscapes.mp4",
	}, "Sci-Fi"},
	{repository.MovieParams{
		Title: "Avengers: Endgame", Director: "Anthony Russo, Joe Russo", Year: 2019, Genre: "Action/Sci-Fi",
		Description: "The surviving heroes assemble for one last stand against an overwhelming threat.",
		ImageURL:    "https://picsum.photos/seed/avengers/300/450.jpg",
		VideoURL:    sampleVideoBase + "ForBiggerFun.mp4",
	}, ""},
}

// SeedOptions controls first-run seeding.
type SeedOptions struct {
	SampleMovies bool
}

// SeedResult reports how many rows Seed inserted.
type SeedResult struct {
	Categories int
	Movies     int
}

// Seed creates the default categories when none exist and, if requested,
// the sample movies when the movie table is empty. Sample movies start
// without ratings.
func (c *Catalog) Seed(ctx context.Context, opts SeedOptions) (SeedResult, error) {
	var res SeedResult
	err := c.repo.WithTx(ctx, func(tx *repository.Repository) error {
		n, err := tx.Categories.Count(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			for _, name := range DefaultCategories {
				if _, err := tx.Categories.Create(ctx, name); err != nil {
					return err
				}
				res.Categories++
			}
		}

		if !opts.SampleMovies {
			return nil
		}
		if n, err = tx.Movies.Count(ctx); err != nil || n > 0 {
			return err
		}

		categories, err := tx.Categories.List(ctx)
		if err != nil {
			return err
		}
		byName := make(map[string]int64, len(categories))
		for _, cat := range categories {
			byName[cat.Name] = cat.ID
		}

		for _, sample := range sampleMovies {
			p := sample.params
			p.VideoKind = domain.VideoExternal
			movie, err := tx.Movies.Create(ctx, p)
			if err != nil {
				return err
			}
			if id, ok := byName[sample.category]; ok {
				if err := tx.Categories.LinkMovie(ctx, movie.ID, []int64{id}); err != nil {
					return err
				}
			}
			res.Movies++
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, c.fail("seed catalog", err)
	}
	if res.Categories > 0 || res.Movies > 0 {
		c.logger.Info("catalog seeded", zap.Int("categories", res.Categories), zap.Int("movies", res.Movies))
	}
	return res, nil
}
