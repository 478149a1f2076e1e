package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-reviews/internal/accounts"
	"github.com/Clark-Hu/movie-reviews/internal/auth"
	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type profileUpdateRequest struct {
	Email           string `json:"email"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// startSession issues a token for u, sets the session cookie and writes the
// session body.
func (s *Server) startSession(w http.ResponseWriter, status int, u domain.User) {
	token, exp, err := s.issuer.Issue(u)
	if err != nil {
		s.logger.Error("issue session token", zap.Int64("user_id", u.ID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong, please try again")
		return
	}
	auth.SetSessionCookie(w, token, exp, !s.cfg.IsDev())
	s.respondJSON(w, status, sessionResponse{Token: token, ExpiresAt: exp, User: toUserResponse(u)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	user, err := s.accounts.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.startSession(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	user, err := s.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.startSession(w, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, !s.cfg.IsDev())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":       p.UserID,
		"username": p.Username,
		"role":     p.Role,
		"isAdmin":  p.IsAdmin(),
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	user, err := s.accounts.Profile(r.Context(), p.UserID)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	stats, err := s.ledger.UserStats(r.Context(), p.UserID)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, profileResponse{
		User: toUserResponse(user),
		Stats: statsResponse{
			Ratings:      stats.Ratings,
			Reviews:      stats.Reviews,
			AverageScore: stats.AverageScore,
		},
	})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileUpdateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	user, err := s.accounts.UpdateProfile(r.Context(), auth.FromContext(r.Context()), accounts.ProfileUpdate{
		Email:           req.Email,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleProfileRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := s.ledger.UserRatings(r.Context(), auth.FromContext(r.Context()).UserID)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": toUserRatings(ratings)})
}

func (s *Server) handleProfileReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.ledger.UserReviews(r.Context(), auth.FromContext(r.Context()).UserID)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": toUserRatings(reviews)})
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.accounts.ListUsers(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	items := make([]userResponse, 0, len(users))
	for _, u := range users {
		items = append(items, toUserResponse(u))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}
