package accounts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
	"github.com/Clark-Hu/movie-reviews/internal/testutil"
)

func newTestService(t testing.TB) *Service {
	t.Helper()
	pool := testutil.NewPool(t, "accounts_test")
	return New(repository.NewWithPool(pool), nil, bcrypt.MinCost)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.Register(ctx, "  alice ", "secret1", " alice@example.com ")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Username != "alice" || user.Email != "alice@example.com" || user.Role != domain.RoleUser {
		t.Fatalf("registered user = %+v", user)
	}
	if user.PasswordHash == "secret1" || !strings.HasPrefix(user.PasswordHash, "$2") {
		t.Fatalf("password stored without bcrypt: %q", user.PasswordHash)
	}

	got, err := svc.Authenticate(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("authenticated id = %d, want %d", got.ID, user.ID)
	}
}

func TestRegister_DuplicateRegardlessOfPassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.Register(ctx, "bob", "hunter22", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for _, password := range []string{"hunter22", "different-but-strong", "", "abc"} {
		if _, err := svc.Register(ctx, "bob", password, ""); !errors.Is(err, domain.ErrDuplicateUsername) {
			t.Errorf("Register(bob, %q) = %v, want ErrDuplicateUsername", password, err)
		}
	}
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	tests := []struct {
		name     string
		username string
		password string
		check    func(error) bool
	}{
		{"empty username", "   ", "secret1", func(err error) bool {
			var verr *domain.ValidationError
			return errors.As(err, &verr) && verr.Fields[0] == "username"
		}},
		{"short password", "carol", "12345", func(err error) bool { return errors.Is(err, domain.ErrWeakPassword) }},
		{"short multibyte password", "dave", "密码密码密", func(err error) bool { return errors.Is(err, domain.ErrWeakPassword) }},
		{"password over 72 bytes", "erin", strings.Repeat("p", 73), func(err error) bool {
			var verr *domain.ValidationError
			return errors.As(err, &verr) && verr.Fields[0] == "password"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.username, tt.password, ""); !tt.check(err) {
				t.Fatalf("Register(%q, %q) = %v", tt.username, tt.password, err)
			}
		})
	}

	if _, err := svc.Register(ctx, "frank", "密码密码密码", ""); err != nil {
		t.Fatalf("six-rune password rejected: %v", err)
	}
}

func TestRegister_LongUsernameAndEmail(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	username := strings.Repeat("u", 51)
	email := strings.Repeat("e", 120) + "@example.com"
	user, err := svc.Register(ctx, username, "secret1", email)
	if err != nil {
		t.Fatalf("Register long username: %v", err)
	}
	if user.Username != username || user.Email != email {
		t.Fatalf("registered user = %+v", user)
	}
	if _, err := svc.Authenticate(ctx, username, "secret1"); err != nil {
		t.Fatalf("Authenticate long username: %v", err)
	}

	longer := strings.Repeat("x", 200) + "@example.com"
	updated, err := svc.UpdateProfile(ctx, domain.PrincipalFor(user), ProfileUpdate{Email: longer})
	if err != nil {
		t.Fatalf("UpdateProfile long email: %v", err)
	}
	if updated.Email != longer {
		t.Fatalf("email = %q", updated.Email)
	}
}

func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.Register(ctx, "grace", "correct-horse", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, unknown := svc.Authenticate(ctx, "nobody", "correct-horse")
	_, wrong := svc.Authenticate(ctx, "grace", "battery-staple")
	if !errors.Is(unknown, domain.ErrInvalidCredentials) || !errors.Is(wrong, domain.ErrInvalidCredentials) {
		t.Fatalf("errors = (%v, %v), want ErrInvalidCredentials", unknown, wrong)
	}
	if unknown.Error() != wrong.Error() {
		t.Fatalf("messages differ: %q vs %q", unknown.Error(), wrong.Error())
	}
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	created, err := svc.Bootstrap(ctx)
	if err != nil || !created {
		t.Fatalf("Bootstrap() = %v, %v; want true", created, err)
	}
	created, err = svc.Bootstrap(ctx)
	if err != nil || created {
		t.Fatalf("second Bootstrap() = %v, %v; want false", created, err)
	}

	admin, err := svc.Authenticate(ctx, DefaultAdminUsername, DefaultAdminPassword)
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if !admin.IsAdmin() || admin.Email != DefaultAdminEmail {
		t.Fatalf("bootstrap admin = %+v", admin)
	}

	users, err := svc.ListUsers(ctx, domain.PrincipalFor(admin))
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("users = %d, want exactly one admin", len(users))
	}
}

func TestListUsersRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.Register(ctx, "heidi", "secret1", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	for _, p := range []domain.Principal{domain.Anonymous, domain.PrincipalFor(user)} {
		if _, err := svc.ListUsers(ctx, p); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("ListUsers(%+v) = %v, want ErrForbidden", p, err)
		}
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.Register(ctx, "ivan", "secret1", "old@example.com")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	p := domain.PrincipalFor(user)

	updated, err := svc.UpdateProfile(ctx, p, ProfileUpdate{Email: "new@example.com"})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Email != "new@example.com" {
		t.Fatalf("email = %q", updated.Email)
	}
	if _, err := svc.Authenticate(ctx, "ivan", "secret1"); err != nil {
		t.Fatalf("password changed without NewPassword: %v", err)
	}

	_, err = svc.UpdateProfile(ctx, p, ProfileUpdate{NewPassword: "newpass1", ConfirmPassword: "newpass2"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields[0] != "confirm_password" {
		t.Fatalf("mismatched confirmation = %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, p, ProfileUpdate{NewPassword: "abc", ConfirmPassword: "abc"}); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("weak new password = %v", err)
	}
	// Rejected updates must not have touched the email either.
	if got, _ := svc.Profile(ctx, user.ID); got.Email != "new@example.com" {
		t.Fatalf("email after rejected update = %q", got.Email)
	}

	if _, err := svc.UpdateProfile(ctx, p, ProfileUpdate{NewPassword: "newpass1", ConfirmPassword: "newpass1"}); err != nil {
		t.Fatalf("UpdateProfile password: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ivan", "secret1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ivan", "newpass1"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}

	if _, err := svc.UpdateProfile(ctx, domain.Anonymous, ProfileUpdate{}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("anonymous UpdateProfile = %v", err)
	}
	if _, err := svc.Profile(ctx, user.ID+1000); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Profile unknown = %v", err)
	}
}
