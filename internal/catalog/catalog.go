// Package catalog manages movies, categories and the links between them.
// Every multi-row change (create with links, edit with link replacement,
// cascading delete) runs in a single transaction.
package catalog

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
)

// Plausible release years. The first motion pictures date from the 1880s.
const (
	MinYear = 1880
	MaxYear = 2200
)

// MovieInput carries the admin-supplied fields of a movie. UploadedImage and
// UploadedVideo are storage-relative references returned by media ingestion
// and take precedence over the URL fields.
type MovieInput struct {
	Title         string
	Director      string
	Year          int
	Genre         string
	Description   string
	ImageURL      string
	VideoURL      string
	UploadedImage string
	UploadedVideo string
}

// MovieDetail is a movie together with its linked category ids.
type MovieDetail struct {
	domain.Movie
	CategoryIDs []int64
}

// Catalog is the movie catalog service.
type Catalog struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// New constructs a Catalog.
func New(repo *repository.Repository, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{repo: repo, logger: logger.Named("catalog")}
}

// PlaceholderImage returns the generated poster URL used when a movie has
// neither an uploaded image nor an image URL.
func PlaceholderImage(title string) string {
	seed := strings.ReplaceAll(title, " ", "")
	return "https://picsum.photos/seed/" + url.PathEscape(seed) + "/300/450.jpg"
}

// Validate normalises in and reports every missing required field in a
// stable order. A year outside [MinYear, MaxYear] is reported as malformed.
func Validate(in *MovieInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Director = strings.TrimSpace(in.Director)
	in.Genre = strings.TrimSpace(in.Genre)
	in.Description = strings.TrimSpace(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.VideoURL = strings.TrimSpace(in.VideoURL)

	var missing []string
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if in.Director == "" {
		missing = append(missing, "director")
	}
	if in.Year == 0 {
		missing = append(missing, "year")
	}
	if in.Genre == "" {
		missing = append(missing, "genre")
	}
	if in.Description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return &domain.ValidationError{Fields: missing}
	}
	if in.Year < MinYear || in.Year > MaxYear {
		return domain.NewValidationError("malformed fields", "year")
	}
	return nil
}

func uploadedRef(ref string) string {
	return "/" + strings.TrimPrefix(ref, "/")
}

// resolveMedia applies the image and video priority rules on top of prev,
// which is the zero Movie on create.
func resolveMedia(in MovieInput, prev domain.Movie, creating bool) (image, video string, kind domain.VideoKind) {
	image, video, kind = prev.ImageURL, prev.VideoURL, prev.VideoKind
	if creating {
		kind = domain.VideoExternal
	}

	switch {
	case in.UploadedImage != "":
		image = uploadedRef(in.UploadedImage)
	case in.ImageURL != "":
		image = in.ImageURL
	case creating:
		image = PlaceholderImage(in.Title)
	}

	switch {
	case in.UploadedVideo != "":
		video, kind = uploadedRef(in.UploadedVideo), domain.VideoUpload
	case in.VideoURL != "":
		video, kind = in.VideoURL, domain.VideoExternal
	}
	if kind == "" {
		kind = domain.VideoExternal
	}
	return image, video, kind
}

func params(in MovieInput, image, video string, kind domain.VideoKind) repository.MovieParams {
	return repository.MovieParams{
		Title:       in.Title,
		Director:    in.Director,
		Year:        in.Year,
		Genre:       in.Genre,
		Description: in.Description,
		ImageURL:    image,
		VideoURL:    video,
		VideoKind:   kind,
	}
}

// CreateMovie stores a new movie and links it to categoryIDs. Category ids
// are not checked against the categories table.
func (c *Catalog) CreateMovie(ctx context.Context, p domain.Principal, in MovieInput, categoryIDs []int64) (domain.Movie, error) {
	if !p.IsAdmin() {
		return domain.Movie{}, domain.ErrForbidden
	}
	if err := Validate(&in); err != nil {
		return domain.Movie{}, err
	}
	image, video, kind := resolveMedia(in, domain.Movie{}, true)

	var movie domain.Movie
	err := c.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		movie, err = tx.Movies.Create(ctx, params(in, image, video, kind))
		if err != nil {
			return err
		}
		return tx.Categories.LinkMovie(ctx, movie.ID, categoryIDs)
	})
	if err != nil {
		return domain.Movie{}, c.fail("create movie", err, zap.String("title", in.Title))
	}

	c.logger.Info("movie created", zap.Int64("movie_id", movie.ID), zap.String("title", movie.Title), zap.Int64s("categories", categoryIDs))
	return movie, nil
}

// MovieUpdate pairs an edited movie with the row it replaced.
type MovieUpdate struct {
	Previous domain.Movie
	Movie    domain.Movie
}

// UpdateMovie overwrites a movie's descriptive fields and replaces its
// category links. Media fields left empty keep their previous values. The
// previous row is the one locked inside the transaction, so callers can
// release media the edit replaced.
func (c *Catalog) UpdateMovie(ctx context.Context, p domain.Principal, id int64, in MovieInput, categoryIDs []int64) (MovieUpdate, error) {
	if !p.IsAdmin() {
		return MovieUpdate{}, domain.ErrForbidden
	}
	if err := Validate(&in); err != nil {
		return MovieUpdate{}, err
	}

	var res MovieUpdate
	err := c.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		if res.Previous, err = tx.Movies.GetForUpdate(ctx, id); err != nil {
			return err
		}
		image, video, kind := resolveMedia(in, res.Previous, false)
		if res.Movie, err = tx.Movies.Update(ctx, id, params(in, image, video, kind)); err != nil {
			return err
		}
		return tx.Categories.ReplaceForMovie(ctx, id, categoryIDs)
	})
	if err != nil {
		return MovieUpdate{}, c.fail("update movie", err, zap.Int64("movie_id", id))
	}

	c.logger.Info("movie updated", zap.Int64("movie_id", id), zap.Int64s("categories", categoryIDs))
	return res, nil
}

// DeleteMovie removes a movie after its ratings and category links, and
// returns the removed row so callers can release its uploaded media.
func (c *Catalog) DeleteMovie(ctx context.Context, p domain.Principal, id int64) (domain.Movie, error) {
	if !p.IsAdmin() {
		return domain.Movie{}, domain.ErrForbidden
	}

	var (
		movie          domain.Movie
		ratings, links int64
	)
	err := c.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		if movie, err = tx.Movies.GetForUpdate(ctx, id); err != nil {
			return err
		}
		if ratings, err = tx.Ratings.DeleteForMovie(ctx, id); err != nil {
			return err
		}
		if links, err = tx.Categories.DeleteForMovie(ctx, id); err != nil {
			return err
		}
		return tx.Movies.Delete(ctx, id)
	})
	if err != nil {
		return domain.Movie{}, c.fail("delete movie", err, zap.Int64("movie_id", id))
	}

	c.logger.Info("movie deleted",
		zap.Int64("movie_id", id),
		zap.Int64("ratings_removed", ratings),
		zap.Int64("links_removed", links))
	return movie, nil
}

// GetMovie returns a movie with its category ids.
func (c *Catalog) GetMovie(ctx context.Context, id int64) (MovieDetail, error) {
	movie, err := c.repo.Movies.GetByID(ctx, id)
	if err != nil {
		return MovieDetail{}, c.fail("get movie", err, zap.Int64("movie_id", id))
	}
	ids, err := c.repo.Categories.IDsForMovie(ctx, id)
	if err != nil {
		return MovieDetail{}, c.fail("get movie categories", err, zap.Int64("movie_id", id))
	}
	return MovieDetail{Movie: movie, CategoryIDs: ids}, nil
}

// Search returns movies whose title, director, genre or description contains
// query, ignoring case. An empty query is rejected.
func (c *Catalog) Search(ctx context.Context, query string) ([]domain.Movie, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewValidationError("search query is required", "query")
	}
	movies, err := c.repo.Movies.Search(ctx, query)
	if err != nil {
		return nil, c.fail("search movies", err, zap.String("query", query))
	}
	return movies, nil
}

// ListByCategory returns the category and its movies, most recent first.
func (c *Catalog) ListByCategory(ctx context.Context, categoryID int64) (domain.Category, []domain.Movie, error) {
	category, err := c.repo.Categories.GetByID(ctx, categoryID)
	if err != nil {
		return domain.Category{}, nil, c.fail("get category", err, zap.Int64("category_id", categoryID))
	}
	movies, err := c.repo.Movies.ListByCategory(ctx, categoryID)
	if err != nil {
		return domain.Category{}, nil, c.fail("list category movies", err, zap.Int64("category_id", categoryID))
	}
	return category, movies, nil
}

// ListAll returns every movie, most recent first.
func (c *Catalog) ListAll(ctx context.Context) ([]domain.Movie, error) {
	movies, err := c.repo.Movies.ListAll(ctx)
	if err != nil {
		return nil, c.fail("list movies", err)
	}
	return movies, nil
}

// Categories returns every category ordered by id.
func (c *Catalog) Categories(ctx context.Context) ([]domain.Category, error) {
	categories, err := c.repo.Categories.List(ctx)
	if err != nil {
		return nil, c.fail("list categories", err)
	}
	return categories, nil
}

func (c *Catalog) fail(op string, err error, fields ...zap.Field) error {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrForbidden), errors.As(err, &verr):
		return err
	}
	c.logger.Error(op+" failed", append(fields, zap.Error(err))...)
	return domain.Persistence(op, err)
}
