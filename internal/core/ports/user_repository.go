package ports

import (
	"context"
	"time"

	"github.com/srsmanager/accounts-api/internal/core/domain"
)

// UserRepository defines persistence operations for user accounts.
// Implementations must enforce email uniqueness with a unique index and
// report violations as domain.ErrUserExists; missing records are reported as
// domain.ErrUserNotFound.
type UserRepository interface {
	// Create inserts user and returns the stored copy with its assigned ID.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// UpdateProfile applies upd to the record identified by id and returns the result.
	UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	// List returns at most limit users after skipping skip, in ascending ID order.
	List(ctx context.Context, skip, limit int) ([]*domain.User, error)
	CountActive(ctx context.Context) (int64, error)
}

// IdempotencyStore remembers which user a registration Idempotency-Key created.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) (userID string, found bool, err error)
	Remember(ctx context.Context, key, userID string) error
}
