// Package accounts registers and authenticates users and maintains their
// profiles.
package accounts

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
)

// MinPasswordLength is counted in runes.
const MinPasswordLength = 6

// First-run administrator. Operators must change the password after
// deployment.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin123"
	DefaultAdminEmail    = "admin@movie.com"
)

// Service is the account store.
type Service struct {
	repo   *repository.Repository
	logger *zap.Logger
	cost   int

	// dummyHash is compared against when the username is unknown so both
	// login failure paths do the same bcrypt work.
	dummyHash []byte
}

// New constructs a Service hashing with the given bcrypt cost.
func New(repo *repository.Repository, logger *zap.Logger, cost int) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		// Only reachable with an invalid cost, which is clamped above.
		panic(err)
	}
	return &Service{repo: repo, logger: logger.Named("accounts"), cost: cost, dummyHash: dummy}
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", domain.NewValidationError("password must be at most 72 bytes", "password")
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func weak(password string) bool {
	return utf8.RuneCountInString(password) < MinPasswordLength
}

// Register creates a user with the "user" role. A taken username is reported
// as ErrDuplicateUsername whatever the password.
func (s *Service) Register(ctx context.Context, username, password, email string) (domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return domain.User{}, domain.NewValidationError("username is required", "username")
	}

	_, err := s.repo.Users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return domain.User{}, domain.ErrDuplicateUsername
	case !errors.Is(err, repository.ErrNotFound):
		return domain.User{}, s.fail("lookup username", err, zap.String("username", username))
	}

	if weak(password) {
		return domain.User{}, domain.ErrWeakPassword
	}
	hash, err := s.hash(password)
	if err != nil {
		return domain.User{}, s.fail("hash password", err)
	}

	user, err := s.repo.Users.Create(ctx, repository.UserCreateParams{
		Username:     username,
		PasswordHash: hash,
		Email:        email,
		Role:         domain.RoleUser,
	})
	if err != nil {
		return domain.User{}, s.fail("create user", err, zap.String("username", username))
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Authenticate verifies a username and password. Unknown users and wrong
// passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)

	user, err := s.repo.Users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, s.fail("lookup user", err, zap.String("username", username))
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

// Bootstrap creates the default administrator when no users exist.
func (s *Service) Bootstrap(ctx context.Context) (bool, error) {
	n, err := s.repo.Users.Count(ctx)
	if err != nil {
		return false, s.fail("count users", err)
	}
	if n > 0 {
		return false, nil
	}

	hash, err := s.hash(DefaultAdminPassword)
	if err != nil {
		return false, s.fail("hash password", err)
	}
	_, err = s.repo.Users.Create(ctx, repository.UserCreateParams{
		Username:     DefaultAdminUsername,
		PasswordHash: hash,
		Email:        DefaultAdminEmail,
		Role:         domain.RoleAdmin,
	})
	if errors.Is(err, domain.ErrDuplicateUsername) {
		// Another instance bootstrapped concurrently.
		return false, nil
	}
	if err != nil {
		return false, s.fail("create admin", err)
	}

	s.logger.Warn("default administrator created; change its password",
		zap.String("username", DefaultAdminUsername))
	return true, nil
}

// Profile returns a user's account record.
func (s *Service) Profile(ctx context.Context, userID int64) (domain.User, error) {
	user, err := s.repo.Users.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, s.fail("get user", err, zap.Int64("user_id", userID))
	}
	return user, nil
}

// ProfileUpdate is the editable part of a profile. NewPassword is optional.
type ProfileUpdate struct {
	Email           string
	NewPassword     string
	ConfirmPassword string
}

// UpdateProfile sets the principal's email and, when NewPassword is given,
// replaces the password.
func (s *Service) UpdateProfile(ctx context.Context, p domain.Principal, upd ProfileUpdate) (domain.User, error) {
	if !p.LoggedIn() {
		return domain.User{}, domain.ErrForbidden
	}
	email := strings.TrimSpace(upd.Email)

	var hash string
	if upd.NewPassword != "" {
		if weak(upd.NewPassword) {
			return domain.User{}, domain.ErrWeakPassword
		}
		if upd.NewPassword != upd.ConfirmPassword {
			return domain.User{}, domain.NewValidationError("passwords do not match", "confirm_password")
		}
		var err error
		if hash, err = s.hash(upd.NewPassword); err != nil {
			return domain.User{}, s.fail("hash password", err)
		}
	}

	var user domain.User
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.Users.UpdateEmail(ctx, p.UserID, email); err != nil {
			return err
		}
		if hash != "" {
			if err := tx.Users.UpdatePasswordHash(ctx, p.UserID, hash); err != nil {
				return err
			}
		}
		var err error
		user, err = tx.Users.GetByID(ctx, p.UserID)
		return err
	})
	if err != nil {
		return domain.User{}, s.fail("update profile", err, zap.Int64("user_id", p.UserID))
	}

	s.logger.Info("profile updated", zap.Int64("user_id", p.UserID), zap.Bool("password_changed", hash != ""))
	return user, nil
}

// ListUsers returns every account, most recent first. Admin only.
func (s *Service) ListUsers(ctx context.Context, p domain.Principal) ([]domain.User, error) {
	if !p.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	users, err := s.repo.Users.List(ctx)
	if err != nil {
		return nil, s.fail("list users", err)
	}
	return users, nil
}

func (s *Service) fail(op string, err error, fields ...zap.Field) error {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrDuplicateUsername),
		errors.As(err, &verr):
		return err
	}
	s.logger.Error(op+" failed", append(fields, zap.Error(err))...)
	return domain.Persistence(op, err)
}
