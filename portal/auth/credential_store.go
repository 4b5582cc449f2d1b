package auth

import (
	"errors"
	"fmt"
	"net/http"

	"studybuddy/portal/schema"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var (
	ErrUserNotFoundWithEmail = errors.New("no account found for given email")
	ErrInvalidCredentials    = errors.New("invalid login credentials")
	ErrGeneratingJwt         = errors.New("error generating jwt")
	ErrEmailAlreadyInUse     = errors.New("email is already in use")
)

type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// Principal is the role-tagged identity attached to authenticated requests.
// Handlers check the role they expect instead of guessing from which fields
// happen to be populated.
type Principal struct {
	Role  Role
	Id    uuid.UUID
	Name  string
	Email string
}

type LoginResult struct {
	Principal   Principal
	AccessToken string
}

type CredentialStore interface {
	AuthMiddleware(role Role) chi.Middlewares

	Login(role Role, email, password string) (LoginResult, error)

	CreateStudent(student schema.Student, password string) (uuid.UUID, error)

	CreateInstructor(instructor schema.Instructor, password string) (uuid.UUID, error)

	CreateAdmin(admin schema.Admin, password string) (uuid.UUID, error)

	ChangePassword(role Role, userId uuid.UUID, currentPassword, newPassword string) error
}

type requestContextKey string

const principalRequestContextKey requestContextKey = "principal"

func PrincipalFromContext(r *http.Request) (Principal, error) {
	principalUntyped := r.Context().Value(principalRequestContextKey)
	if principalUntyped == nil {
		return Principal{}, fmt.Errorf("principal field not found in request context")
	}
	principal, ok := principalUntyped.(Principal)
	if !ok {
		return Principal{}, fmt.Errorf("invalid value for principal field")
	}
	return principal, nil
}
