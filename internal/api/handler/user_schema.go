package handler

import (
	"time"

	"github.com/srsmanager/accounts-api/internal/core/domain"
)

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=255" example:"ana@example.com"`
	Password  string `json:"password" validate:"required" example:"s3cret"`
	FirstName string `json:"nombre" validate:"required,max=100" example:"Ana"`
	LastName  string `json:"apellido" validate:"required,max=100" example:"Li"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"ana@example.com"`
	Password string `json:"password" validate:"required" example:"s3cret"`
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

// updateProfileRequest only carries the fields a user may change on their
// own profile. Role and password are not accepted here. Absent fields are
// left unchanged; present ones must be non-empty.
type updateProfileRequest struct {
	FirstName *string `json:"nombre,omitempty" validate:"omitnil,min=1,max=100"`
	LastName  *string `json:"apellido,omitempty" validate:"omitnil,min=1,max=100"`
	Email     *string `json:"email,omitempty" validate:"omitnil,email,max=255"`
}

func (r updateProfileRequest) toDomain() domain.ProfileUpdate {
	return domain.ProfileUpdate{FirstName: r.FirstName, LastName: r.LastName, Email: r.Email}
}

// usuarioResponse is the public profile projection. It never carries the
// password hash.
type usuarioResponse struct {
	ID           string     `json:"id" example:"1"`
	Email        string     `json:"email" example:"ana@example.com"`
	FirstName    string     `json:"nombre" example:"Ana"`
	LastName     string     `json:"apellido" example:"Li"`
	Role         string     `json:"rol" example:"developer"`
	RegisteredAt time.Time  `json:"fechaRegistro"`
	LastLoginAt  *time.Time `json:"fechaLogin"`
	Active       bool       `json:"activo" example:"true"`
}

func toUsuarioResponse(u *domain.User) usuarioResponse {
	return usuarioResponse{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         string(u.Role),
		RegisteredAt: u.RegisteredAt,
		LastLoginAt:  u.LastLoginAt,
		Active:       u.Active,
	}
}

func toUsuarioResponses(users []*domain.User) []usuarioResponse {
	out := make([]usuarioResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUsuarioResponse(u))
	}
	return out
}

type authResponse struct {
	Token   string          `json:"token"`
	Usuario usuarioResponse `json:"usuario"`
	Message string          `json:"message" example:"Login exitoso"`
}

type verifyTokenResponse struct {
	Valid bool `json:"valid" example:"true"`
}

type countResponse struct {
	Total int64 `json:"total" example:"3"`
}

type errorResponse struct {
	Detail string `json:"detail" example:"Usuario no encontrado"`
}
