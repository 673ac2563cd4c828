package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/stitchfield/api/internal/domain"
	pfirestore "github.com/stitchfield/api/internal/platform/firestore"
	"github.com/stitchfield/api/internal/repositories"
)

const (
	usersCollection      = "users"
	userEmailsCollection = "userEmails"
)

type userDocument struct {
	Email        string    `firestore:"email"`
	PasswordHash string    `firestore:"passwordHash"`
	Name         string    `firestore:"name"`
	Phone        string    `firestore:"phone,omitempty"`
	Role         string    `firestore:"role"`
	Active       bool      `firestore:"active"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// userEmailDocument reserves an email address. The document ID is the
// normalised email, so duplicate registrations fail the transactional create.
type userEmailDocument struct {
	UserID    string    `firestore:"userId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// UserRepository persists account records with email reservation documents.
type UserRepository struct {
	provider *pfirestore.Provider
	users    *pfirestore.BaseRepository[userDocument]
	emails   *pfirestore.BaseRepository[userEmailDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		provider: provider,
		users:    pfirestore.NewBaseRepository[userDocument](provider, usersCollection),
		emails:   pfirestore.NewBaseRepository[userEmailDocument](provider, userEmailsCollection),
	}, nil
}

// Insert creates the user and its email reservation in one transaction. An
// email already claimed by another account surfaces as a conflict error.
func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	if r == nil || r.provider == nil {
		return errors.New("user repository not initialised")
	}
	if strings.TrimSpace(user.ID) == "" {
		return errors.New("user repository: user id is required")
	}
	email := normaliseEmail(user.Email)
	if email == "" {
		return errors.New("user repository: email is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		emailRef, err := r.emails.DocumentRef(ctx, email)
		if err != nil {
			return err
		}
		userRef, err := r.users.DocumentRef(ctx, user.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(emailRef, userEmailDocument{UserID: user.ID, CreatedAt: user.CreatedAt.UTC()}); err != nil {
			return err
		}
		return tx.Create(userRef, encodeUser(user))
	})
	if err != nil {
		return pfirestore.WrapError("users.insert", err)
	}
	return nil
}

// Update replaces the user document. Email changes are not supported; the
// stored email wins over whatever the caller passes.
func (r *UserRepository) Update(ctx context.Context, user domain.User) error {
	if r == nil || r.provider == nil {
		return errors.New("user repository not initialised")
	}
	if strings.TrimSpace(user.ID) == "" {
		return errors.New("user repository: user id is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		userRef, err := r.users.DocumentRef(ctx, user.ID)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(userRef)
		if err != nil {
			return err
		}
		var existing userDocument
		if err := snapshot.DataTo(&existing); err != nil {
			return err
		}

		doc := encodeUser(user)
		doc.Email = existing.Email
		doc.CreatedAt = existing.CreatedAt
		return tx.Set(userRef, doc)
	})
	if err != nil {
		return pfirestore.WrapError("users.update", err)
	}
	return nil
}

// FindByID loads a single user record.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if r == nil || r.users == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	doc, err := r.users.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.User{}, err
	}
	return decodeUser(doc.ID, doc.Data), nil
}

// FindByEmail resolves the email reservation and loads the account it points to.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	if r == nil || r.emails == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	reservation, err := r.emails.Get(ctx, normaliseEmail(email))
	if err != nil {
		return domain.User{}, err
	}
	return r.FindByID(ctx, reservation.Data.UserID)
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func encodeUser(user domain.User) userDocument {
	return userDocument{
		Email:        normaliseEmail(user.Email),
		PasswordHash: user.PasswordHash,
		Name:         strings.TrimSpace(user.Name),
		Phone:        strings.TrimSpace(user.Phone),
		Role:         string(user.Role),
		Active:       user.Active,
		CreatedAt:    user.CreatedAt.UTC(),
		UpdatedAt:    user.UpdatedAt.UTC(),
	}
}

func decodeUser(id string, doc userDocument) domain.User {
	return domain.User{
		ID:           id,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Name:         doc.Name,
		Phone:        doc.Phone,
		Role:         domain.UserRole(doc.Role),
		Active:       doc.Active,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

var _ repositories.UserRepository = (*UserRepository)(nil)
