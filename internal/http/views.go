package httpserver

import (
	"time"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

type movieResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Director    string    `json:"director"`
	Year        int       `json:"year"`
	Genre       string    `json:"genre"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	VideoURL    string    `json:"videoUrl,omitempty"`
	VideoType   string    `json:"videoType"`
	Rating      float64   `json:"rating"`
	CreatedAt   time.Time `json:"createdAt"`
}

type movieListResponse struct {
	Items []movieResponse `json:"items"`
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type categoryMoviesResponse struct {
	Category categoryResponse `json:"category"`
	Items    []movieResponse  `json:"items"`
}

type reviewResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Username  string    `json:"username,omitempty"`
	MovieID   int64     `json:"movieId"`
	Title     string    `json:"movieTitle,omitempty"`
	Score     int       `json:"score"`
	Review    string    `json:"review"`
	CreatedAt time.Time `json:"createdAt"`
}

type movieDetailResponse struct {
	Movie       movieResponse    `json:"movie"`
	CategoryIDs []int64          `json:"categoryIds"`
	RatingCount int              `json:"ratingCount"`
	Ratings     []reviewResponse `json:"ratings"`
	MyRating    *reviewResponse  `json:"myRating,omitempty"`
}

type aggregateResponse struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

type ratingSubmitResponse struct {
	Rating    reviewResponse    `json:"rating"`
	Aggregate aggregateResponse `json:"aggregate"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

type profileResponse struct {
	User  userResponse  `json:"user"`
	Stats statsResponse `json:"stats"`
}

type statsResponse struct {
	Ratings      int64   `json:"ratings"`
	Reviews      int64   `json:"reviews"`
	AverageScore float64 `json:"averageScore"`
}

func toMovieResponse(movie domain.Movie) movieResponse {
	return movieResponse{
		ID:          movie.ID,
		Title:       movie.Title,
		Director:    movie.Director,
		Year:        movie.Year,
		Genre:       movie.Genre,
		Description: movie.Description,
		ImageURL:    movie.ImageURL,
		VideoURL:    movie.VideoURL,
		VideoType:   string(movie.VideoKind),
		Rating:      movie.Rating,
		CreatedAt:   movie.CreatedAt,
	}
}

func toMovieList(movies []domain.Movie) movieListResponse {
	items := make([]movieResponse, 0, len(movies))
	for _, m := range movies {
		items = append(items, toMovieResponse(m))
	}
	return movieListResponse{Items: items}
}

func toReviewResponse(r domain.Rating) reviewResponse {
	return reviewResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		MovieID:   r.MovieID,
		Score:     r.Score,
		Review:    r.Review,
		CreatedAt: r.CreatedAt,
	}
}

func toUserRatings(ratings []domain.UserRating) []reviewResponse {
	items := make([]reviewResponse, 0, len(ratings))
	for _, ur := range ratings {
		resp := toReviewResponse(ur.Rating)
		resp.Title = ur.MovieTitle
		items = append(items, resp)
	}
	return items
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}
