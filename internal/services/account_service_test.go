package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	domain "github.com/stitchfield/api/internal/domain"
)

func newTestAccountService(t *testing.T, users *stubUserRepository) AccountService {
	t.Helper()

	svc, err := NewAccountService(AccountServiceDeps{
		Users: users,
		HashPassword: func(password string) (string, error) {
			return "hashed:" + password, nil
		},
		VerifyPassword: func(hash, password string) error {
			if hash != "hashed:"+password {
				return errors.New("mismatch")
			}
			return nil
		},
		IssueToken: func(userID, email, role string) (string, error) {
			return fmt.Sprintf("token:%s:%s", userID, role), nil
		},
		Clock: func() time.Time {
			return time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)
		},
		IDGenerator: func() string { return "TESTULID" },
	})
	if err != nil {
		t.Fatalf("NewAccountService returned error: %v", err)
	}
	return svc
}

func TestAccountServiceRegisterPersistsHashedUser(t *testing.T) {
	users := &stubUserRepository{}
	svc := newTestAccountService(t, users)

	account, token, err := svc.Register(context.Background(), RegisterCommand{
		Email:    "  Shopper@Example.COM ",
		Password: "correct horse",
		Name:     " Kim Jiwoo ",
		Phone:    " 010-1234-5678 ",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if len(users.inserted) != 1 {
		t.Fatalf("expected one inserted user, got %d", len(users.inserted))
	}
	stored := users.inserted[0]
	if stored.ID != "usr_TESTULID" {
		t.Fatalf("unexpected user id %q", stored.ID)
	}
	if stored.Email != "shopper@example.com" {
		t.Fatalf("email not normalised: %q", stored.Email)
	}
	if stored.PasswordHash != "hashed:correct horse" {
		t.Fatalf("unexpected password hash %q", stored.PasswordHash)
	}
	if stored.Role != domain.RoleCustomer || !stored.Active {
		t.Fatalf("expected active customer, got role=%s active=%v", stored.Role, stored.Active)
	}
	if stored.Phone != "010-1234-5678" {
		t.Fatalf("phone not trimmed: %q", stored.Phone)
	}

	if account.ID != stored.ID || account.Email != stored.Email {
		t.Fatalf("account view does not match stored user: %+v", account)
	}
	if token != "token:usr_TESTULID:customer" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestAccountServiceRegisterValidation(t *testing.T) {
	cases := map[string]RegisterCommand{
		"missing email":  {Password: "longenough", Name: "A"},
		"bad email":      {Email: "not-an-email", Password: "longenough", Name: "A"},
		"short password": {Email: "a@b.com", Password: "short", Name: "A"},
		"missing name":   {Email: "a@b.com", Password: "longenough"},
	}

	svc := newTestAccountService(t, &stubUserRepository{})
	for name, cmd := range cases {
		if _, _, err := svc.Register(context.Background(), cmd); !errors.Is(err, ErrAccountInvalidInput) {
			t.Fatalf("%s: expected ErrAccountInvalidInput, got %v", name, err)
		}
	}
}

func TestAccountServiceRegisterDuplicateEmail(t *testing.T) {
	users := &stubUserRepository{
		insertFn: func(context.Context, domain.User) error {
			return errStubConflict
		},
	}
	svc := newTestAccountService(t, users)

	_, _, err := svc.Register(context.Background(), RegisterCommand{
		Email:    "taken@example.com",
		Password: "longenough",
		Name:     "B",
	})
	if !errors.Is(err, ErrAccountConflict) {
		t.Fatalf("expected ErrAccountConflict, got %v", err)
	}
}

func TestAccountServiceLoginIssuesToken(t *testing.T) {
	users := &stubUserRepository{
		findByEmailFn: func(_ context.Context, email string) (domain.User, error) {
			if email != "shopper@example.com" {
				return domain.User{}, errStubNotFound
			}
			return domain.User{
				ID:           "usr_1",
				Email:        email,
				PasswordHash: "hashed:correct horse",
				Role:         domain.RoleAdmin,
				Active:       true,
			}, nil
		},
	}
	svc := newTestAccountService(t, users)

	account, token, err := svc.Login(context.Background(), LoginCommand{
		Email:    "Shopper@Example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if account.ID != "usr_1" {
		t.Fatalf("unexpected account %+v", account)
	}
	if token != "token:usr_1:admin" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestAccountServiceLoginDoesNotRevealWhichFactorFailed(t *testing.T) {
	users := &stubUserRepository{
		findByEmailFn: func(_ context.Context, email string) (domain.User, error) {
			if email == "known@example.com" {
				return domain.User{
					ID:           "usr_1",
					Email:        email,
					PasswordHash: "hashed:real password",
					Active:       true,
				}, nil
			}
			return domain.User{}, errStubNotFound
		},
	}
	svc := newTestAccountService(t, users)

	_, _, unknownErr := svc.Login(context.Background(), LoginCommand{Email: "unknown@example.com", Password: "whatever"})
	_, _, wrongErr := svc.Login(context.Background(), LoginCommand{Email: "known@example.com", Password: "wrong"})

	if !errors.Is(unknownErr, ErrAccountUnauthorized) || !errors.Is(wrongErr, ErrAccountUnauthorized) {
		t.Fatalf("expected ErrAccountUnauthorized for both cases, got %v and %v", unknownErr, wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("error text distinguishes missing account from bad password: %q vs %q", unknownErr, wrongErr)
	}
}

func TestAccountServiceLoginDisabledAccount(t *testing.T) {
	users := &stubUserRepository{
		findByEmailFn: func(_ context.Context, email string) (domain.User, error) {
			return domain.User{
				ID:           "usr_1",
				Email:        email,
				PasswordHash: "hashed:correct horse",
				Active:       false,
			}, nil
		},
	}
	svc := newTestAccountService(t, users)

	_, _, err := svc.Login(context.Background(), LoginCommand{Email: "a@b.com", Password: "correct horse"})
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestAccountServiceCheckAccount(t *testing.T) {
	users := &stubUserRepository{
		findByIDFn: func(_ context.Context, userID string) (domain.User, error) {
			if userID != "usr_1" {
				return domain.User{}, errStubNotFound
			}
			return domain.User{ID: userID, Role: domain.RoleAdmin, Active: true}, nil
		},
	}
	svc := newTestAccountService(t, users)

	role, active, err := svc.CheckAccount(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("CheckAccount returned error: %v", err)
	}
	if role != "admin" || !active {
		t.Fatalf("unexpected check result role=%q active=%v", role, active)
	}

	if _, _, err := svc.CheckAccount(context.Background(), "usr_missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountServiceGetAccountStripsSecrets(t *testing.T) {
	created := time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC)
	users := &stubUserRepository{
		findByIDFn: func(_ context.Context, userID string) (domain.User, error) {
			return domain.User{
				ID:           userID,
				Email:        "shopper@example.com",
				PasswordHash: "hashed:secret",
				Name:         "Kim Jiwoo",
				Role:         domain.RoleCustomer,
				Active:       true,
				CreatedAt:    created,
			}, nil
		},
	}
	svc := newTestAccountService(t, users)

	account, err := svc.GetAccount(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("GetAccount returned error: %v", err)
	}
	if account.CreatedAt != created || account.Name != "Kim Jiwoo" {
		t.Fatalf("unexpected account %+v", account)
	}
	if strings.Contains(fmt.Sprintf("%+v", account), "hashed:") {
		t.Fatalf("account view leaks the password hash: %+v", account)
	}
}
