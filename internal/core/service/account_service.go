package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/srsmanager/accounts-api/internal/core/domain"
	"github.com/srsmanager/accounts-api/internal/core/ports"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// AccountService implements registration, authentication and profile
// management on top of a UserRepository.
type AccountService struct {
	repo   ports.UserRepository
	hasher ports.PasswordHasher
	tokens ports.TokenService
	idem   ports.IdempotencyStore
	log    zerolog.Logger
	now    func() time.Time
}

// NewAccountService wires the account workflows. idem may be nil, in which
// case Idempotency-Key headers are ignored.
func NewAccountService(
	repo ports.UserRepository,
	hasher ports.PasswordHasher,
	tokens ports.TokenService,
	idem ports.IdempotencyStore,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		idem:   idem,
		log:    log,
		now:    time.Now,
	}
}

// Register creates a developer account and returns a token for it.
func (s *AccountService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	if replay, err := s.replayRegistration(ctx, in); err != nil {
		return nil, err
	} else if replay != nil {
		return replay, nil
	}

	// 1. Uniqueness check; the store's unique index still arbitrates races.
	_, err := s.repo.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, domain.ErrUserExists
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("register: %w", err)
	}

	// 2. Hash.
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, domain.ErrPasswordTooLong) {
			return nil, err
		}
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	// 3. Persist.
	user, err := s.repo.Create(ctx, &domain.User{
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		Role:         domain.DefaultRole,
		RegisteredAt: s.now().UTC(),
		Active:       true,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	// 4. Token.
	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	if in.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.Remember(ctx, in.IdempotencyKey, user.ID); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to store idempotency key")
		}
	}

	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	return &ports.AuthResult{Token: token, User: user}, nil
}

// replayRegistration answers a retried registration from the idempotency
// store. Only a request identical to the one that created the account is
// replayed; anything else falls through to the normal flow. Store failures
// are logged and the request proceeds normally.
func (s *AccountService) replayRegistration(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	if in.IdempotencyKey == "" || s.idem == nil {
		return nil, nil
	}

	userID, found, err := s.idem.Lookup(ctx, in.IdempotencyKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("idempotency lookup failed, registering anyway")
		return nil, nil
	}
	if !found {
		return nil, nil
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("register: replay: %w", err)
	}
	if !sameRegistration(user, in) || !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.log.Debug().Str("user_id", user.ID).Msg("idempotency key reused with a different request, ignoring key")
		return nil, nil
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, fmt.Errorf("register: replay: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("idempotent registration replay")
	return &ports.AuthResult{Token: token, User: user, Replayed: true}, nil
}

func sameRegistration(user *domain.User, in ports.RegisterInput) bool {
	return user.Active &&
		user.Email == in.Email &&
		user.FirstName == in.FirstName &&
		user.LastName == in.LastName
}

// Authenticate checks credentials, records the login time and issues a
// token. Unknown email, inactive account and wrong password all produce
// domain.ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.log.Debug().Msg("login rejected: unknown email")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.log.Debug().Str("user_id", user.ID).Msg("login rejected: password mismatch")
		return nil, domain.ErrInvalidCredentials
	}
	if !user.Active {
		s.log.Debug().Str("user_id", user.ID).Msg("login rejected: inactive account")
		return nil, domain.ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	user.LastLoginAt = &now

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user logged in")
	return &ports.AuthResult{Token: token, User: user}, nil
}

// UpdateProfile changes name and email fields of the account whose email is
// subject, as taken from a validated token.
func (s *AccountService) UpdateProfile(ctx context.Context, subject string, upd domain.ProfileUpdate) (*domain.User, error) {
	user, err := s.repo.FindByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if upd.Empty() {
		return user, nil
	}

	if upd.Email != nil && *upd.Email != user.Email {
		if _, err := s.repo.FindByEmail(ctx, *upd.Email); err == nil {
			return nil, domain.ErrUserExists
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("update profile: %w", err)
		}
	}

	updated, err := s.repo.UpdateProfile(ctx, user.ID, upd)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.log.Info().Str("user_id", updated.ID).Msg("profile updated")
	return updated, nil
}

// VerifyToken reports whether token is currently valid.
func (s *AccountService) VerifyToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrMissingToken
	}
	if _, ok := s.tokens.Validate(token); !ok {
		return domain.ErrInvalidToken
	}
	return nil
}

func (s *AccountService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *AccountService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.repo.FindByEmail(ctx, email)
}

// List returns a page of users. Negative skip is treated as zero; limit
// defaults to 100 and is capped at 1000.
func (s *AccountService) List(ctx context.Context, skip, limit int) ([]*domain.User, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.List(ctx, skip, limit)
}

// CountActive returns the number of active accounts.
func (s *AccountService) CountActive(ctx context.Context) (int64, error) {
	return s.repo.CountActive(ctx)
}
