package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/shopcat/apiserver/internal/services"
	"github.com/shopcat/apiserver/internal/store"
	"github.com/shopcat/apiserver/types"
	"go.uber.org/zap"
)

// AuthHandler provides registration and bearer token endpoints.
type AuthHandler struct {
	authService *services.AuthService
	userService *services.UserService
	logger      *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, userService *services.UserService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(
	r chi.Router,
	authService *services.AuthService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
	logger *zap.Logger,
) {
	handler := NewAuthHandler(authService, userService, logger)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(authMiddleware).Post("/logout", handler.Logout)
	r.With(authMiddleware).Get("/user", handler.Me)
}

// RequireAuth resolves the bearer token and injects the user and token
// into the request context. Requests without a live token get 401.
func RequireAuth(authService *services.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := jwtauth.TokenFromHeader(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, msgUnauthenticated)
				return
			}

			user, token, err := authService.Authenticate(r.Context(), raw)
			if err != nil {
				if errors.Is(err, services.ErrUnauthenticated) {
					writeError(w, http.StatusUnauthorized, msgUnauthenticated)
					return
				}
				writeServerError(w, r, logger, err)
				return
			}

			ctx := context.WithValue(r.Context(), contextUserKey, user)
			ctx = context.WithValue(ctx, contextTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *AuthHandler) registerRules() constraints {
	return constraints{
		{field: "name", required: true, checks: []check{isString(), maxChars(255)}},
		{field: "email", required: true, checks: []check{isString(), email(), maxChars(255), unique(h.emailTaken)}},
		{field: "password", required: true, checks: []check{isString(), minChars(8), maxBytes(72), confirmed()}},
	}
}

var loginRules = constraints{
	{field: "email", required: true, checks: []check{isString(), email()}},
	{field: "password", required: true, checks: []check{isString()}},
}

func (h *AuthHandler) emailTaken(ctx context.Context, email string) (bool, error) {
	_, err := h.userService.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Register creates a new user account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	fields, err := parseRequestFields(r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	if err := h.registerRules().validate(r.Context(), fields); err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}

	user, err := h.authService.Register(r.Context(), services.RegisterInput{
		Name:     fields.get("name"),
		Email:    fields.get("email"),
		Password: fields.values["password"],
	})
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			writeValidationError(w, &ValidationError{Fields: map[string][]string{
				"email": {"The email has already been taken."},
			}})
			return
		}
		writeServerError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "User registered successfully", user)
}

// Login verifies credentials and returns a new bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	fields, err := parseRequestFields(r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	if err := loginRules.validate(r.Context(), fields); err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}

	user, token, err := h.authService.Login(r.Context(), fields.get("email"), fields.values["password"])
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeServerError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Login successful", LoginResponse{User: user, Token: token})
}

// Logout revokes the token the request was authenticated with.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthenticated)
		return
	}

	if err := h.authService.Logout(r.Context(), token.ID); err != nil {
		writeServerError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthenticated)
		return
	}

	writeSuccess(w, http.StatusOK, "User retrieved successfully", user)
}

type LoginResponse struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}
