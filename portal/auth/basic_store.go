package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"studybuddy/portal/schema"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type BasicCredentialStore struct {
	jwtManager *JwtManager
	db         *gorm.DB
	auditLog   AuditLogger
}

type BasicStoreArgs struct {
	Secret        []byte
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

func NewBasicCredentialStore(db *gorm.DB, auditLog AuditLogger, args BasicStoreArgs) (CredentialStore, error) {
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(args.AdminPassword), 10)
	if err != nil {
		return nil, fmt.Errorf("error encrypting admin password: %w", err)
	}

	err = addInitialAdminToDb(db, uuid.New(), args.AdminName, args.AdminEmail, hashedPwd)
	if err != nil {
		return nil, fmt.Errorf("error adding initial admin to db: %w", err)
	}

	return &BasicCredentialStore{
		jwtManager: NewJwtManager(args.Secret),
		db:         db,
		auditLog:   auditLog,
	}, nil
}

func addInitialAdminToDb(db *gorm.DB, adminId uuid.UUID, name, email string, password []byte) error {
	admin := schema.Admin{
		Id:       adminId,
		Name:     name,
		Email:    email,
		Password: password,
	}

	return db.Transaction(func(txn *gorm.DB) error {
		var existingAdmin schema.Admin
		result := txn.Limit(1).Find(&existingAdmin, "id = ? or email = ?", adminId, email)
		if result.Error != nil {
			slog.Error("sql error checking if admin has already been added", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		if result.RowsAffected == 0 {
			result := txn.Create(&admin)
			if result.Error != nil {
				slog.Error("sql error creating initial admin", "error", result.Error)
				return schema.ErrDbAccessFailed
			}
		}
		return nil
	})
}

// account is the common slice of the per-role tables used for login and
// password checks.
type account struct {
	Id       uuid.UUID
	Name     string
	Email    string
	Password []byte
}

func tableForRole(role Role) string {
	switch role {
	case RoleStudent:
		return "students"
	case RoleInstructor:
		return "instructors"
	default:
		return "admins"
	}
}

func (store *BasicCredentialStore) findByEmail(role Role, email string) (account, error) {
	var acc account
	result := store.db.Table(tableForRole(role)).Limit(1).Find(&acc, "email = ?", email)
	if result.Error != nil {
		slog.Error("sql error looking up account by email", "role", role, "error", result.Error)
		return acc, schema.ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return acc, ErrUserNotFoundWithEmail
	}
	return acc, nil
}

func (store *BasicCredentialStore) findById(role Role, userId uuid.UUID) (account, error) {
	var acc account
	result := store.db.Table(tableForRole(role)).Limit(1).Find(&acc, "id = ?", userId)
	if result.Error != nil {
		slog.Error("sql error looking up account by id", "role", role, "user_id", userId, "error", result.Error)
		return acc, schema.ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return acc, ErrInvalidCredentials
	}
	return acc, nil
}

func (store *BasicCredentialStore) Login(role Role, email, password string) (LoginResult, error) {
	acc, err := store.findByEmail(role, email)
	if err != nil {
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword(acc.Password, []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := store.jwtManager.CreatePrincipalJwt(role, acc.Id)
	if err != nil {
		return LoginResult{}, ErrGeneratingJwt
	}

	principal := Principal{Role: role, Id: acc.Id, Name: acc.Name, Email: acc.Email}
	return LoginResult{Principal: principal, AccessToken: token}, nil
}

func (store *BasicCredentialStore) checkEmailUnused(txn *gorm.DB, role Role, email string) error {
	var existing account
	result := txn.Table(tableForRole(role)).Limit(1).Find(&existing, "email = ?", email)
	if result.Error != nil {
		slog.Error("sql error checking for existing email", "role", role, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	if result.RowsAffected != 0 {
		return ErrEmailAlreadyInUse
	}
	return nil
}

func (store *BasicCredentialStore) CreateStudent(student schema.Student, password string) (uuid.UUID, error) {
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("error encrypting password: %w", err)
	}

	student.Id = uuid.New()
	student.Password = hashedPwd

	err = store.db.Transaction(func(txn *gorm.DB) error {
		if err := store.checkEmailUnused(txn, RoleStudent, student.Email); err != nil {
			return err
		}

		result := txn.Create(&student)
		if result.Error != nil {
			slog.Error("sql error creating new student entry", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		return nil
	})

	if err != nil {
		return uuid.UUID{}, fmt.Errorf("error creating new student: %w", err)
	}

	return student.Id, nil
}

func (store *BasicCredentialStore) CreateInstructor(instructor schema.Instructor, password string) (uuid.UUID, error) {
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("error encrypting password: %w", err)
	}

	instructor.Id = uuid.New()
	instructor.Password = hashedPwd

	err = store.db.Transaction(func(txn *gorm.DB) error {
		if err := store.checkEmailUnused(txn, RoleInstructor, instructor.Email); err != nil {
			return err
		}

		result := txn.Create(&instructor)
		if result.Error != nil {
			slog.Error("sql error creating new instructor entry", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		return nil
	})

	if err != nil {
		return uuid.UUID{}, fmt.Errorf("error creating new instructor: %w", err)
	}

	return instructor.Id, nil
}

func (store *BasicCredentialStore) CreateAdmin(admin schema.Admin, password string) (uuid.UUID, error) {
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("error encrypting password: %w", err)
	}

	admin.Id = uuid.New()
	admin.Password = hashedPwd

	err = store.db.Transaction(func(txn *gorm.DB) error {
		if err := store.checkEmailUnused(txn, RoleAdmin, admin.Email); err != nil {
			return err
		}

		result := txn.Create(&admin)
		if result.Error != nil {
			slog.Error("sql error creating new admin entry", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		return nil
	})

	if err != nil {
		return uuid.UUID{}, fmt.Errorf("error creating new admin: %w", err)
	}

	return admin.Id, nil
}

func (store *BasicCredentialStore) ChangePassword(role Role, userId uuid.UUID, currentPassword, newPassword string) error {
	acc, err := store.findById(role, userId)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword(acc.Password, []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(newPassword), 10)
	if err != nil {
		return fmt.Errorf("error encrypting password: %w", err)
	}

	result := store.db.Table(tableForRole(role)).Where("id = ?", userId).Update("password", hashedPwd)
	if result.Error != nil {
		slog.Error("sql error updating password", "role", role, "user_id", userId, "error", result.Error)
		return schema.ErrDbAccessFailed
	}

	return nil
}

func (store *BasicCredentialStore) addPrincipalToContext(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			tokenRole, err := ValueFromContext(r, roleKey)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			if Role(tokenRole) != role {
				http.Error(w, fmt.Sprintf("endpoint requires a %v login", role), http.StatusUnauthorized)
				return
			}

			userId, err := ValueFromContext(r, userIdKey)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			userUUID, err := uuid.Parse(userId)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid user uuid '%v': %v", userId, err), http.StatusUnauthorized)
				return
			}

			acc, err := store.findById(role, userUUID)
			if err != nil {
				if errors.Is(err, ErrInvalidCredentials) {
					http.Error(w, fmt.Sprintf("no %v account found for token", role), http.StatusUnauthorized)
					return
				}
				http.Error(w, fmt.Sprintf("unable to load account %v: %v", userId, err), http.StatusInternalServerError)
				return
			}

			principal := Principal{Role: role, Id: acc.Id, Name: acc.Name, Email: acc.Email}

			reqCtx := context.WithValue(r.Context(), principalRequestContextKey, principal)
			next.ServeHTTP(w, r.WithContext(reqCtx))
		}

		return http.HandlerFunc(handler)
	}
}

func (store *BasicCredentialStore) AuthMiddleware(role Role) chi.Middlewares {
	return chi.Middlewares{
		store.jwtManager.Verifier(),
		store.jwtManager.Authenticator(),
		store.addPrincipalToContext(role),
		store.auditLog.Middleware,
	}
}
