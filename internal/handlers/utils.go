package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopcat/apiserver/types"
	"go.uber.org/zap"
)

type contextKey string

const (
	contextUserKey  contextKey = "user"
	contextTokenKey contextKey = "token"
)

const (
	msgServerError     = "Server Error"
	msgUnauthenticated = "Unauthenticated."
	msgValidation      = "Validation Error"
)

// Response is the envelope wrapped around every API response.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

func tokenFromContext(ctx context.Context) (types.AccessToken, bool) {
	token, ok := ctx.Value(contextTokenKey).(types.AccessToken)
	return token, ok
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Message: message})
}

func writeValidationError(w http.ResponseWriter, verr *ValidationError) {
	writeJSON(w, http.StatusUnprocessableEntity, Response{
		Success: false,
		Message: msgValidation,
		Data:    verr.Fields,
	})
}

// writeServerError logs err against the request and answers with a bare 500.
func writeServerError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	logger.Error("request failed",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, msgServerError)
}

// writeFailure maps validation errors to 422 and everything else to 500.
func writeFailure(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		writeValidationError(w, verr)
		return
	}
	writeServerError(w, r, logger, err)
}

func parseIDParam(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, name)))
	if err != nil || !isRowID(id) {
		return 0, false
	}
	return id, true
}

// isRowID reports whether id fits the SERIAL primary keys; anything else
// cannot name a row.
func isRowID(id int) bool {
	return id >= 1 && id <= math.MaxInt32
}

// Healthz reports that the process is serving requests.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "OK", nil)
}
