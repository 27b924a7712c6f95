package auth

import (
	"context"
	"errors"
	"localfarmer/marketplace/schema"
	"localfarmer/utils"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

var (
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrPhoneAlreadyInUse  = errors.New("Mobile number already registered")
	ErrGeneratingSession  = errors.New("error generating session")
	ErrNotAuthenticated   = errors.New("Authentication required")
)

const PageGateFlash = "Please login to access this page"

type NewUser struct {
	Name              string
	Phone             string
	Email             string
	Village           string
	Mandal            string
	District          string
	UserType          string
	PreferredLanguage string
	Password          string
}

type IdentityProvider interface {
	// LoadPrincipal resolves the session, if any, into the request context.
	// It is installed once for the whole router and never rejects a request.
	LoadPrincipal() chi.Middlewares

	// AuthMiddleware rejects anonymous api requests and audits the rest.
	AuthMiddleware() chi.Middlewares

	// PageGate redirects anonymous page requests to the landing page.
	PageGate() func(http.Handler) http.Handler

	Login(phone, password string) (schema.User, error)

	CreateUser(args NewUser) (schema.User, error)

	IssueSession(w http.ResponseWriter, userId uint) error

	ClearSession(w http.ResponseWriter)
}

type requestContextKey string

const (
	userRequestContextKey   requestContextKey = "user"
	sessionUserIdContextKey requestContextKey = "session_user_id"
)

// UserFromContext returns the authenticated user of the request.
func UserFromContext(r *http.Request) (schema.User, error) {
	user, ok := r.Context().Value(userRequestContextKey).(schema.User)
	if !ok {
		return schema.User{}, ErrNotAuthenticated
	}
	return user, nil
}

// OptionalUser is UserFromContext for routes that also serve anonymous callers.
func OptionalUser(r *http.Request) (schema.User, bool) {
	user, err := UserFromContext(r)
	return user, err == nil
}

// SessionUserId returns the user id carried by a valid session token even if
// that user no longer exists.
func SessionUserId(r *http.Request) (uint, bool) {
	id, ok := r.Context().Value(sessionUserIdContextKey).(uint)
	return id, ok
}

func withUser(r *http.Request, user schema.User) *http.Request {
	ctx := context.WithValue(r.Context(), userRequestContextKey, user)
	return r.WithContext(ctx)
}

func withSessionUserId(r *http.Request, id uint) *http.Request {
	ctx := context.WithValue(r.Context(), sessionUserIdContextKey, id)
	return r.WithContext(ctx)
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := UserFromContext(r); err != nil {
			utils.WriteError(w, ErrNotAuthenticated.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func pageGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := UserFromContext(r); err != nil {
			http.Redirect(w, r, "/?flash="+url.QueryEscape(PageGateFlash), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
