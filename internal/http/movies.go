package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Clark-Hu/movie-reviews/internal/auth"
	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

type ratingRequest struct {
	Score  json.Number `json:"score"`
	Review string      `json:"review"`
}

// score converts the submitted number to an integer score. Fractional or
// missing values are reported as an invalid score.
func (req ratingRequest) score() (int, error) {
	n, err := req.Score.Int64()
	if err != nil || n < domain.MinScore || n > domain.MaxScore {
		return 0, domain.ErrInvalidScore
	}
	return int(n), nil
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := s.catalog.ListAll(r.Context())
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieList(movies))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Redirect(w, r, "/movies", http.StatusSeeOther)
		return
	}
	movies, err := s.catalog.Search(r.Context(), query)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieList(movies))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.catalog.Categories(r.Context())
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	items := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		items = append(items, categoryResponse{ID: c.ID, Name: c.Name})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleCategoryMovies(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	category, movies, err := s.catalog.ListByCategory(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, categoryMoviesResponse{
		Category: categoryResponse{ID: category.ID, Name: category.Name},
		Items:    toMovieList(movies).Items,
	})
}

func (s *Server) handleMovieDetail(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	detail, err := s.catalog.GetMovie(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	reviews, err := s.ledger.MovieRatings(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	resp := movieDetailResponse{
		Movie:       toMovieResponse(detail.Movie),
		CategoryIDs: detail.CategoryIDs,
		RatingCount: len(reviews),
		Ratings:     make([]reviewResponse, 0, len(reviews)),
	}
	for _, mr := range reviews {
		item := toReviewResponse(mr.Rating)
		item.Username = mr.Username
		resp.Ratings = append(resp.Ratings, item)
	}

	if p := auth.FromContext(r.Context()); p.LoggedIn() {
		mine, ok, err := s.ledger.UserRating(r.Context(), p.UserID, id)
		if err != nil {
			s.respondDomainError(w, r, err)
			return
		}
		if ok {
			item := toReviewResponse(mine)
			item.Username = p.Username
			resp.MyRating = &item
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	movieID, err := parseIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req ratingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	score, err := req.score()
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	sub, err := s.ledger.Submit(r.Context(), auth.FromContext(r.Context()), movieID, score, req.Review)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if sub.Created {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, ratingSubmitResponse{
		Rating:    toReviewResponse(sub.Rating),
		Aggregate: aggregateResponse{Average: sub.Aggregate.Average, Count: sub.Aggregate.Count},
	})
}

func (s *Server) handleDeleteRating(w http.ResponseWriter, r *http.Request) {
	ratingID, err := parseIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	agg, err := s.ledger.Delete(r.Context(), auth.FromContext(r.Context()), ratingID)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, aggregateResponse{Average: agg.Average, Count: agg.Count})
}
