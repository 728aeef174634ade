package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"vidshare/internal/lib/logger/sl"
	"vidshare/internal/services/auth"
)

// response is the envelope every endpoint answers with.
type response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type empty struct{}

func writeJSON(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, nil, message)
}

// writeServiceError translates a service error into a status and a message
// that is safe to show. Unknown errors are logged and reported as 500.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	status, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", sl.Err(err))
	}
	writeError(w, status, message)
}

func errorStatus(err error) (int, string) {
	var verr *auth.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, verr.Message
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, auth.ErrInvalidPassword):
		return http.StatusUnauthorized, "invalid old password"
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, auth.ErrRefreshTokenRequired):
		return http.StatusUnauthorized, "refresh token is required"
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, "invalid refresh token"
	case errors.Is(err, auth.ErrRefreshTokenRevoked):
		return http.StatusUnauthorized, "refresh token is expired or revoked"
	case errors.Is(err, auth.ErrAccountNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, auth.ErrAccountExists):
		return http.StatusConflict, "user with email or username already exists"
	case errors.Is(err, auth.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "too many failed login attempts, try again later"
	}

	return http.StatusInternalServerError, "internal server error"
}
