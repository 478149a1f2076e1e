package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-reviews/internal/accounts"
	"github.com/Clark-Hu/movie-reviews/internal/auth"
	"github.com/Clark-Hu/movie-reviews/internal/catalog"
	"github.com/Clark-Hu/movie-reviews/internal/config"
	"github.com/Clark-Hu/movie-reviews/internal/ledger"
	"github.com/Clark-Hu/movie-reviews/internal/media"
	"github.com/Clark-Hu/movie-reviews/internal/store"
)

// Deps groups the services the HTTP layer orchestrates.
type Deps struct {
	Store    *store.Store
	Catalog  *catalog.Catalog
	Accounts *accounts.Service
	Ledger   *ledger.Ledger
	Issuer   *auth.Issuer
	Media    *media.Ingestor
	Logger   *zap.Logger
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg      config.Config
	store    *store.Store
	catalog  *catalog.Catalog
	accounts *accounts.Service
	ledger   *ledger.Ledger
	issuer   *auth.Issuer
	guard    *auth.Guard
	media    *media.Ingestor
	logger   *zap.Logger
	router   chi.Router
	httpSrv  *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:      cfg,
		store:    deps.Store,
		catalog:  deps.Catalog,
		accounts: deps.Accounts,
		ledger:   deps.Ledger,
		issuer:   deps.Issuer,
		media:    deps.Media,
		logger:   logger.Named("http"),
	}
	s.guard = auth.NewGuard(deps.Issuer, logger, s.respondDenied)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	s.router = r
	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/uploads/{name}", s.handleServeUpload)

	s.router.Group(func(r chi.Router) {
		r.Use(s.guard.Middleware)

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Get("/categories", s.handleListCategories)
		r.Get("/categories/{id}/movies", s.handleCategoryMovies)
		r.Get("/movies", s.handleListMovies)
		r.Get("/search", s.handleSearch)
		r.Get("/movies/{id}", s.handleMovieDetail)

		r.Group(func(r chi.Router) {
			r.Use(s.guard.RequireLogin)
			r.Get("/me", s.handleMe)
			r.Post("/movies/{id}/ratings", s.handleSubmitRating)
			r.Delete("/ratings/{id}", s.handleDeleteRating)
			r.Route("/profile", func(r chi.Router) {
				r.Get("/", s.handleGetProfile)
				r.Put("/", s.handleUpdateProfile)
				r.Get("/ratings", s.handleProfileRatings)
				r.Get("/reviews", s.handleProfileReviews)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.guard.RequireAdmin)
			r.Get("/users", s.handleAdminUsers)
			r.Route("/movies", func(r chi.Router) {
				r.Get("/", s.handleListMovies)
				r.Post("/", s.handleAdminCreateMovie)
				r.Get("/{id}", s.handleAdminGetMovie)
				r.Put("/{id}", s.handleAdminUpdateMovie)
				r.Delete("/{id}", s.handleAdminDeleteMovie)
			})
		})
	})
}

// Start boots the HTTP server asynchronously.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// requestLogger logs one line per request once the handler returns.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}
