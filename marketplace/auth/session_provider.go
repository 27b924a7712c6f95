package auth

import (
	"errors"
	"fmt"
	"localfarmer/marketplace/schema"
	"localfarmer/utils/logging"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 10

type SessionIdentityProvider struct {
	jwtManager   *JwtManager
	db           *gorm.DB
	auditLog     AuditLogger
	secureCookie bool
}

type SessionProviderArgs struct {
	Secret       []byte
	SessionTTL   time.Duration
	SecureCookie bool
}

func NewSessionIdentityProvider(db *gorm.DB, auditLog AuditLogger, args SessionProviderArgs) IdentityProvider {
	return &SessionIdentityProvider{
		jwtManager:   NewJwtManager(args.Secret, args.SessionTTL),
		db:           db,
		auditLog:     auditLog,
		secureCookie: args.SecureCookie,
	}
}

func (auth *SessionIdentityProvider) addUserToContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			userId, err := userIdFromClaims(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			r = withSessionUserId(r, userId)

			user, err := schema.GetUser(userId, auth.db)
			if err != nil {
				if !errors.Is(err, schema.ErrUserNotFound) {
					slog.Error("unable to load session user", "user_id", userId, "error", err, "code", logging.AUTH_LOGIN)
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, withUser(r, user))
		}

		return http.HandlerFunc(handler)
	}
}

func (auth *SessionIdentityProvider) LoadPrincipal() chi.Middlewares {
	return chi.Middlewares{auth.jwtManager.Verifier(), auth.addUserToContext()}
}

func (auth *SessionIdentityProvider) AuthMiddleware() chi.Middlewares {
	return chi.Middlewares{requireUser, auth.auditLog.Middleware}
}

func (auth *SessionIdentityProvider) PageGate() func(http.Handler) http.Handler {
	return pageGate
}

func (auth *SessionIdentityProvider) Login(phone, password string) (schema.User, error) {
	var user schema.User
	result := auth.db.Limit(1).Find(&user, "phone = ?", phone)
	if result.Error != nil {
		slog.Error("sql error looking up user by phone", "error", result.Error, "code", logging.AUTH_LOGIN)
		return schema.User{}, schema.ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return schema.User{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(user.Password, []byte(password)); err != nil {
		return schema.User{}, ErrInvalidCredentials
	}

	slog.Info("user logged in", "user_id", user.Id, "code", logging.AUTH_LOGIN)

	return user, nil
}

func (auth *SessionIdentityProvider) CreateUser(args NewUser) (schema.User, error) {
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(args.Password), bcryptCost)
	if err != nil {
		return schema.User{}, fmt.Errorf("error encrypting password: %w", err)
	}

	newUser := schema.User{
		Name:              args.Name,
		Phone:             args.Phone,
		Email:             args.Email,
		Password:          hashedPwd,
		Village:           args.Village,
		Mandal:            args.Mandal,
		District:          args.District,
		Location:          fmt.Sprintf("%v, %v, %v", args.Village, args.Mandal, args.District),
		UserType:          args.UserType,
		PreferredLanguage: args.PreferredLanguage,
		PhoneVerified:     true,
	}

	err = auth.db.Transaction(func(txn *gorm.DB) error {
		var existingUser schema.User
		result := txn.Limit(1).Find(&existingUser, "phone = ?", args.Phone)
		if result.Error != nil {
			slog.Error("sql error checking for existing phone", "error", result.Error, "code", logging.AUTH_REGISTER)
			return schema.ErrDbAccessFailed
		}
		if result.RowsAffected != 0 {
			return ErrPhoneAlreadyInUse
		}

		result = txn.Create(&newUser)
		if result.Error != nil {
			if schema.IsDuplicateKey(result.Error) {
				return ErrPhoneAlreadyInUse
			}
			slog.Error("sql error creating new user entry", "error", result.Error, "code", logging.AUTH_REGISTER)
			return schema.ErrDbAccessFailed
		}

		return nil
	})

	if err != nil {
		return schema.User{}, fmt.Errorf("error creating new user: %w", err)
	}

	slog.Info("registered new user", "user_id", newUser.Id, "code", logging.AUTH_REGISTER)

	return newUser, nil
}

func (auth *SessionIdentityProvider) IssueSession(w http.ResponseWriter, userId uint) error {
	token, err := auth.jwtManager.CreateSessionToken(userId)
	if err != nil {
		return ErrGeneratingSession
	}
	http.SetCookie(w, auth.jwtManager.SessionCookie(token, auth.secureCookie))
	return nil
}

func (auth *SessionIdentityProvider) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, ExpiredSessionCookie(auth.secureCookie))
}
