package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"vidshare/internal/domain/models"
	"vidshare/internal/services/auth"
)

type Auth interface {
	Authenticator
	Register(ctx context.Context, in auth.RegisterInput) (models.Profile, error)
	Login(ctx context.Context, username, email, password string) (models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	DeleteAccount(ctx context.Context, userID, username, password string) error
	CurrentUser(ctx context.Context, userID string) (models.Profile, error)
	UpdateAccountDetails(ctx context.Context, userID, fullName, email string) (models.Profile, error)
}

type serverAPI struct {
	log     *slog.Logger
	auth    Auth
	cookies CookiePolicy
}

// Register mounts the account routes on mux.
func Register(mux *http.ServeMux, log *slog.Logger, auth Auth, cookies CookiePolicy) {
	s := &serverAPI{log: log, auth: auth, cookies: cookies}
	private := RequireAuth(log, auth)

	mux.HandleFunc("POST /users/register", s.register)
	mux.HandleFunc("POST /users/login", s.login)
	mux.HandleFunc("POST /users/refresh-token", s.refresh)

	mux.Handle("POST /users/logout", private(http.HandlerFunc(s.logout)))
	mux.Handle("POST /users/update-password", private(http.HandlerFunc(s.changePassword)))
	mux.Handle("POST /users/delete-account", private(http.HandlerFunc(s.deleteAccount)))
	mux.Handle("POST /users/delete-user", private(http.HandlerFunc(s.deleteAccount)))
	mux.Handle("GET /users/current-user", private(http.HandlerFunc(s.currentUser)))
	mux.Handle("GET /users/get-user", private(http.HandlerFunc(s.currentUser)))
	mux.Handle("POST /users/update-account-details", private(http.HandlerFunc(s.updateAccountDetails)))
}

type registerRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	Password   string `json:"password"`
	Avatar     string `json:"avatar"`
	CoverImage string `json:"coverImage"`
}

func (s *serverAPI) register(w http.ResponseWriter, r *http.Request) {
	const op = "http.auth.register"
	log := s.log.With(slog.String("op", op), slog.String("request_id", RequestIDFromContext(r.Context())))

	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	profile, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Username:   req.Username,
		Email:      req.Email,
		FullName:   req.FullName,
		Password:   req.Password,
		Avatar:     req.Avatar,
		CoverImage: req.CoverImage,
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	writeJSON(w, http.StatusCreated, profile, "User registered successfully")
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *serverAPI) login(w http.ResponseWriter, r *http.Request) {
	const op = "http.auth.login"
	log := s.log.With(slog.String("op", op), slog.String("request_id", RequestIDFromContext(r.Context())))

	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	session, err := s.auth.Login(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	s.cookies.set(w, session.TokenPair)
	writeJSON(w, http.StatusOK, session, "User logged in successfully")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *serverAPI) refresh(w http.ResponseWriter, r *http.Request) {
	const op = "http.auth.refresh"
	log := s.log.With(slog.String("op", op), slog.String("request_id", RequestIDFromContext(r.Context())))

	token := cookieValue(r, refreshCookie)
	if token == "" {
		var req refreshRequest
		if !decode(w, r, &req) {
			return
		}
		token = req.RefreshToken
	}

	pair, err := s.auth.Refresh(r.Context(), token)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	s.cookies.set(w, pair)
	writeJSON(w, http.StatusOK, pair, "Access token refreshed")
}

func (s *serverAPI) logout(w http.ResponseWriter, r *http.Request) {
	const op = "http.auth.logout"
	log := s.log.With(slog.String("op", op), slog.String("request_id", RequestIDFromContext(r.Context())))

	profile, _ := ProfileFromContext(r.Context())

	if err := s.auth.Logout(r.Context(), profile.ID); err != nil {
		writeServiceError(w, log, err)
		return
	}

	s.cookies.clear(w)
	writeJSON(w, http.StatusOK, empty{}, "User logged out")
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (s *serverAPI) changePassword(w http.ResponseWriter, r *http.Request) {
	const op = "http.auth.changePassword"
	log := s.log.With(slog.String("op", op), slog.String("request_id", RequestIDFromContext(r.Context())))

	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	profile, _ := ProfileFromContext(r.Context())

	if err := s.auth.ChangePassword(r.Context(), profile.ID, req.OldPassword, req.NewPassword); err != nil {
		writeServiceError(w, log, err)
		return
	}

	writeJSON(w, http.StatusOK, empty{}, "Password changed successfully")
}

type deleteAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *serverAPI) deleteAccount(w http.ResponseWriter, r *http.Request) {
	const op = "http.auth.deleteAccount"
	log := s.log.With(slog.String("op", op), slog.String("request_id", RequestIDFromContext(r.Context())))

	var req deleteAccountRequest
	if !decode(w, r, &req) {
		return
	}

	profile, _ := ProfileFromContext(r.Context())

	if err := s.auth.DeleteAccount(r.Context(), profile.ID, req.Username, req.Password); err != nil {
		writeServiceError(w, log, err)
		return
	}

	s.cookies.clear(w)
	writeJSON(w, http.StatusOK, empty{}, "User deleted successfully")
}

func (s *serverAPI) currentUser(w http.ResponseWriter, r *http.Request) {
	const op = "http.auth.currentUser"
	log := s.log.With(slog.String("op", op), slog.String("request_id", RequestIDFromContext(r.Context())))

	profile, _ := ProfileFromContext(r.Context())

	current, err := s.auth.CurrentUser(r.Context(), profile.ID)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	writeJSON(w, http.StatusOK, current, "User fetched successfully")
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (s *serverAPI) updateAccountDetails(w http.ResponseWriter, r *http.Request) {
	const op = "http.auth.updateAccountDetails"
	log := s.log.With(slog.String("op", op), slog.String("request_id", RequestIDFromContext(r.Context())))

	var req updateAccountRequest
	if !decode(w, r, &req) {
		return
	}

	profile, _ := ProfileFromContext(r.Context())

	updated, err := s.auth.UpdateAccountDetails(r.Context(), profile.ID, req.FullName, req.Email)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	writeJSON(w, http.StatusOK, updated, "Account details updated successfully")
}

// decode reads a JSON body into dst. An empty body leaves dst zeroed.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}

	writeError(w, http.StatusBadRequest, "invalid request body")
	return false
}
