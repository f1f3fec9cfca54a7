package relational

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/srsmanager/accounts-api/internal/core/domain"
)

// userRecord is the persisted shape of a domain.User.
type userRecord struct {
	ID           uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	Email        string     `gorm:"column:email;size:255;not null;uniqueIndex"`
	FirstName    string     `gorm:"column:nombre;size:100;not null"`
	LastName     string     `gorm:"column:apellido;size:100;not null"`
	PasswordHash string     `gorm:"column:password_hash;size:255;not null"`
	Role         string     `gorm:"column:rol;type:varchar(32);not null;default:developer"`
	RegisteredAt time.Time  `gorm:"column:fecha_registro;not null"`
	LastLoginAt  *time.Time `gorm:"column:fecha_ultimo_login"`
	Active       bool       `gorm:"column:activo;not null"`
}

func (userRecord) TableName() string { return "usuarios" }

func toRecord(u *domain.User) userRecord {
	return userRecord{
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		RegisteredAt: u.RegisteredAt.UTC(),
		LastLoginAt:  u.LastLoginAt,
		Active:       u.Active,
	}
}

func (r userRecord) toDomain() *domain.User {
	u := &domain.User{
		ID:           strconv.FormatUint(r.ID, 10),
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		PasswordHash: r.PasswordHash,
		Role:         domain.Role(r.Role),
		RegisteredAt: r.RegisteredAt.UTC(),
		Active:       r.Active,
	}
	if r.LastLoginAt != nil {
		t := r.LastLoginAt.UTC()
		u.LastLoginAt = &t
	}
	return u
}

// UserRepository is the GORM implementation of ports.UserRepository.
type UserRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewUserRepository(db *gorm.DB, timeout time.Duration) *UserRepository {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &UserRepository{db: db, timeout: timeout}
}

func (r *UserRepository) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	return r.db.WithContext(ctx), cancel
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if !user.Role.Valid() {
		return nil, fmt.Errorf("insert user: %w", domain.ErrInvalidRole)
	}

	db, cancel := r.session(ctx)
	defer cancel()

	rec := toRecord(user)
	if err := db.Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return rec.toDomain(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	pk, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	db, cancel := r.session(ctx)
	defer cancel()

	var rec userRecord
	if err := db.First(&rec, pk).Error; err != nil {
		return nil, notFound(err, "find user by id")
	}
	return rec.toDomain(), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var rec userRecord
	if err := db.Where("email = ?", email).First(&rec).Error; err != nil {
		return nil, notFound(err, "find user by email")
	}
	return rec.toDomain(), nil
}

// UpdateProfile applies upd to the record inside a single transaction and
// returns the stored result.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.User, error) {
	pk, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	db, cancel := r.session(ctx)
	defer cancel()

	var rec userRecord
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, pk).Error; err != nil {
			return err
		}

		changes := map[string]interface{}{}
		if upd.FirstName != nil {
			changes["nombre"] = *upd.FirstName
		}
		if upd.LastName != nil {
			changes["apellido"] = *upd.LastName
		}
		if upd.Email != nil {
			changes["email"] = *upd.Email
		}
		if len(changes) == 0 {
			return nil
		}

		if err := tx.Model(&rec).Updates(changes).Error; err != nil {
			return err
		}
		return tx.First(&rec, pk).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrUserExists
		}
		return nil, notFound(err, "update user")
	}
	return rec.toDomain(), nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	pk, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return domain.ErrUserNotFound
	}

	db, cancel := r.session(ctx)
	defer cancel()

	res := db.Model(&userRecord{}).Where("id = ?", pk).Update("fecha_ultimo_login", at.UTC())
	if res.Error != nil {
		return fmt.Errorf("touch last login: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// MySQL reports changed rows, so an unchanged timestamp also yields zero.
	var n int64
	if err := db.Model(&userRecord{}).Where("id = ?", pk).Count(&n).Error; err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List returns users in ascending id order.
func (r *UserRepository) List(ctx context.Context, skip, limit int) ([]*domain.User, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var recs []userRecord
	if err := db.Order("id ASC").Offset(skip).Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]*domain.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, rec.toDomain())
	}
	return users, nil
}

func (r *UserRepository) CountActive(ctx context.Context) (int64, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var n int64
	if err := db.Model(&userRecord{}).Where("activo = ?", true).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrUserNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
