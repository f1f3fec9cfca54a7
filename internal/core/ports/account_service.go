package ports

import (
	"context"

	"github.com/srsmanager/accounts-api/internal/core/domain"
)

// RegisterInput carries the fields of a self-registration request.
type RegisterInput struct {
	Email          string
	Password       string
	FirstName      string
	LastName       string
	IdempotencyKey string // optional
}

// AuthResult is returned by registration and login.
type AuthResult struct {
	Token string
	User  *domain.User
	// Replayed is true when a registration was answered from a previous
	// request carrying the same Idempotency-Key.
	Replayed bool
}

type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Authenticate(ctx context.Context, email, password string) (*AuthResult, error)
	UpdateProfile(ctx context.Context, subject string, upd domain.ProfileUpdate) (*domain.User, error)
	VerifyToken(token string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, skip, limit int) ([]*domain.User, error)
	CountActive(ctx context.Context) (int64, error)
}
