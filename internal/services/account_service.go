package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/stitchfield/api/internal/domain"
	"github.com/stitchfield/api/internal/repositories"
)

const (
	userIDPrefix      = "usr_"
	minPasswordLength = 8
)

var (
	// ErrAccountInvalidInput signals the caller provided invalid registration or login data.
	ErrAccountInvalidInput = errors.New("account: invalid input")
	// ErrAccountNotFound indicates the account could not be located.
	ErrAccountNotFound = errors.New("account: not found")
	// ErrAccountConflict indicates the email address is already registered.
	ErrAccountConflict = errors.New("account: email already registered")
	// ErrAccountUnauthorized indicates the credentials did not match.
	ErrAccountUnauthorized = errors.New("account: invalid credentials")
	// ErrAccountDisabled indicates the account exists but has been deactivated.
	ErrAccountDisabled = errors.New("account: disabled")
)

// AccountServiceDeps bundles collaborators required to construct the account service.
type AccountServiceDeps struct {
	Users          repositories.UserRepository
	HashPassword   func(password string) (string, error)
	VerifyPassword func(hash, password string) error
	IssueToken     func(userID, email, role string) (string, error)
	Clock          func() time.Time
	IDGenerator    func() string
}

type accountService struct {
	users          repositories.UserRepository
	hashPassword   func(string) (string, error)
	verifyPassword func(string, string) error
	issueToken     func(string, string, string) (string, error)
	clock          func() time.Time
	newID          func() string
}

// NewAccountService wires dependencies into a concrete AccountService implementation.
func NewAccountService(deps AccountServiceDeps) (AccountService, error) {
	if deps.Users == nil {
		return nil, errors.New("account service: user repository is required")
	}
	if deps.HashPassword == nil {
		return nil, errors.New("account service: password hasher is required")
	}
	if deps.VerifyPassword == nil {
		return nil, errors.New("account service: password verifier is required")
	}
	if deps.IssueToken == nil {
		return nil, errors.New("account service: token issuer is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &accountService{
		users:          deps.Users,
		hashPassword:   deps.HashPassword,
		verifyPassword: deps.VerifyPassword,
		issueToken:     deps.IssueToken,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *accountService) Register(ctx context.Context, cmd RegisterCommand) (Account, string, error) {
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if email == "" || !strings.Contains(email, "@") {
		return Account{}, "", fmt.Errorf("%w: a valid email is required", ErrAccountInvalidInput)
	}
	if len(cmd.Password) < minPasswordLength {
		return Account{}, "", fmt.Errorf("%w: password must be at least %d characters", ErrAccountInvalidInput, minPasswordLength)
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Account{}, "", fmt.Errorf("%w: name is required", ErrAccountInvalidInput)
	}

	hash, err := s.hashPassword(cmd.Password)
	if err != nil {
		return Account{}, "", fmt.Errorf("account: hash password: %w", err)
	}

	now := s.clock()
	user := domain.User{
		ID:           userIDPrefix + s.newID(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Phone:        strings.TrimSpace(cmd.Phone),
		Role:         domain.RoleCustomer,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Insert(ctx, user); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return Account{}, "", fmt.Errorf("%w: %s", ErrAccountConflict, email)
		}
		return Account{}, "", err
	}

	token, err := s.issueToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return Account{}, "", fmt.Errorf("account: issue token: %w", err)
	}
	return accountView(user), token, nil
}

func (s *accountService) Login(ctx context.Context, cmd LoginCommand) (Account, string, error) {
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if email == "" || cmd.Password == "" {
		return Account{}, "", fmt.Errorf("%w: email and password are required", ErrAccountInvalidInput)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			// Same error as a wrong password so lookups cannot probe for accounts.
			return Account{}, "", ErrAccountUnauthorized
		}
		return Account{}, "", err
	}

	if err := s.verifyPassword(user.PasswordHash, cmd.Password); err != nil {
		return Account{}, "", ErrAccountUnauthorized
	}
	if !user.Active {
		return Account{}, "", fmt.Errorf("%w: %s", ErrAccountDisabled, user.ID)
	}

	token, err := s.issueToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return Account{}, "", fmt.Errorf("account: issue token: %w", err)
	}
	return accountView(user), token, nil
}

func (s *accountService) GetAccount(ctx context.Context, userID string) (Account, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Account{}, fmt.Errorf("%w: user id is required", ErrAccountInvalidInput)
	}

	user, err := s.users.FindByID(ctx, uid)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, uid)
		}
		return Account{}, err
	}
	return accountView(user), nil
}

// CheckAccount reports the role and active flag for the token middleware.
func (s *accountService) CheckAccount(ctx context.Context, userID string) (string, bool, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return "", false, fmt.Errorf("%w: user id is required", ErrAccountInvalidInput)
	}

	user, err := s.users.FindByID(ctx, uid)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return "", false, fmt.Errorf("%w: %s", ErrAccountNotFound, uid)
		}
		return "", false, err
	}
	return string(user.Role), user.Active, nil
}

func accountView(user domain.User) Account {
	return Account{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Phone:     user.Phone,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}
