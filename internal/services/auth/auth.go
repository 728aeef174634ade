package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"

	"vidshare/internal/domain/models"
	"vidshare/internal/lib/jwt"
	"vidshare/internal/lib/logger/sl"
	"vidshare/internal/lib/password"
	"vidshare/internal/lib/throttle"
	"vidshare/internal/storage"
)

// Auth is the session manager. It keeps no state between calls: the active
// refresh token stored on the account is the only record of a session.
type Auth struct {
	logger   *slog.Logger
	storage  Storage
	hasher   PasswordHasher
	access   TokenCodec
	refresh  TokenCodec
	throttle LoginThrottle

	dummyOnce sync.Once
	dummyHash []byte
}

type AccountSaver interface {
	SaveAccount(ctx context.Context, account models.Account) (models.Account, error)
}

type AccountProvider interface {
	AccountByLogin(ctx context.Context, username, email string) (models.Account, error)
	AccountByID(ctx context.Context, id string) (models.Account, error)
	Profile(ctx context.Context, id string) (models.Profile, error)
}

type SessionStore interface {
	SetRefreshToken(ctx context.Context, id, token string) error
	RotateRefreshToken(ctx context.Context, id, presented, next string) error
}

type AccountUpdater interface {
	UpdatePassword(ctx context.Context, id string, passHash []byte) error
	UpdateProfile(ctx context.Context, id, fullName, email string) (models.Profile, error)
	DeleteAccount(ctx context.Context, id string) error
}

type Storage interface {
	AccountSaver
	AccountProvider
	SessionStore
	AccountUpdater
}

type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	Compare(hash []byte, password string) error
}

type TokenCodec interface {
	Issue(claims jwt.Claims) (string, error)
	Verify(token string) (*jwt.Claims, error)
}

type LoginThrottle interface {
	Check(ctx context.Context, key string) error
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrAccountExists        = errors.New("account already exists")
	ErrAccountNotFound      = errors.New("account not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrRefreshTokenRequired = errors.New("refresh token is required")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrRefreshTokenRevoked  = errors.New("refresh token revoked")
	ErrTooManyAttempts      = errors.New("too many failed login attempts")
)

// ValidationError reports missing or malformed input. Its message is safe to
// show to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// New returns a new instance of the Auth service. throttle may be nil.
func New(
	logger *slog.Logger,
	storage Storage,
	hasher PasswordHasher,
	access TokenCodec,
	refresh TokenCodec,
	throttle LoginThrottle,
) *Auth {
	return &Auth{
		logger:   logger,
		storage:  storage,
		hasher:   hasher,
		access:   access,
		refresh:  refresh,
		throttle: throttle,
	}
}

type RegisterInput struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     string
	CoverImage string
}

func (a *Auth) Register(ctx context.Context, in RegisterInput) (models.Profile, error) {
	const op = "auth.Register"

	username := normalize(in.Username)
	email := normalize(in.Email)
	fullName := strings.TrimSpace(in.FullName)

	log := a.logger.With(
		slog.String("op", op),
		slog.String("username", username),
	)
	log.Info("register request")

	if username == "" || email == "" || fullName == "" || strings.TrimSpace(in.Password) == "" {
		return models.Profile{}, invalid("all fields are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.Profile{}, invalid("email is invalid")
	}

	passHash, err := a.hasher.Hash(in.Password)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	account, err := a.storage.SaveAccount(ctx, models.Account{
		Username:   username,
		Email:      email,
		FullName:   fullName,
		Avatar:     strings.TrimSpace(in.Avatar),
		CoverImage: strings.TrimSpace(in.CoverImage),
		PassHash:   passHash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAccountExists) {
			log.Warn("account already exists", sl.Err(err))
			return models.Profile{}, fmt.Errorf("%s: %w", op, ErrAccountExists)
		}
		log.Error("failed to save account", sl.Err(err))
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("account registered", slog.String("userID", account.ID))

	return account.Profile(), nil
}

// Login authenticates by username or email and starts a new session,
// replacing whatever session the account had before.
func (a *Auth) Login(ctx context.Context, username, email, pass string) (models.Session, error) {
	const op = "auth.Login"

	username = normalize(username)
	email = normalize(email)

	log := a.logger.With(slog.String("op", op))
	log.Info("login request", slog.String("username", username), slog.String("email", email))

	if username == "" && email == "" {
		return models.Session{}, invalid("username or email is required")
	}
	if pass == "" {
		return models.Session{}, invalid("password is required")
	}

	throttleKey := username
	if throttleKey == "" {
		throttleKey = email
	}
	if err := a.checkThrottle(ctx, log, throttleKey); err != nil {
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	account, err := a.storage.AccountByLogin(ctx, username, email)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			log.Warn("account not found", sl.Err(err))
			a.burnCompare(pass)
			return models.Session{}, fmt.Errorf("%s: %w", op, a.failLogin(ctx, log, throttleKey))
		}
		log.Error("failed to get account", sl.Err(err))
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.hasher.Compare(account.PassHash, pass); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			log.Warn("invalid password", slog.String("userID", account.ID))
			return models.Session{}, fmt.Errorf("%s: %w", op, a.failLogin(ctx, log, throttleKey))
		}
		log.Error("failed to compare password", sl.Err(err))
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	profile := account.Profile()

	pair, err := a.issuePair(profile)
	if err != nil {
		log.Error("failed to generate tokens", sl.Err(err))
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.storage.SetRefreshToken(ctx, account.ID, pair.RefreshToken); err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			log.Warn("account removed during login", sl.Err(err))
			return models.Session{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		log.Error("failed to save refresh token", sl.Err(err))
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	if a.throttle != nil {
		if err := a.throttle.Reset(ctx, throttleKey); err != nil {
			log.Warn("failed to reset login throttle", sl.Err(err))
		}
	}

	log.Info("user logged in", slog.String("userID", account.ID))

	return models.Session{TokenPair: pair, User: profile}, nil
}

// Refresh exchanges the active refresh token for a new pair (rotation). The
// presented token must verify and equal the stored one; the swap itself is a
// single conditional write, so a replayed or concurrently reused token loses.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	const op = "auth.Refresh"

	log := a.logger.With(slog.String("op", op))
	log.Info("refresh request")

	if refreshToken == "" {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrRefreshTokenRequired)
	}

	claims, err := a.refresh.Verify(refreshToken)
	if err != nil {
		log.Warn("refresh token rejected", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
	}

	log = log.With(slog.String("userID", claims.UserID))

	account, err := a.storage.AccountByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			log.Warn("refresh token for unknown account", sl.Err(err))
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
		}
		log.Error("failed to get account", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if !tokensEqual(account.RefreshToken, refreshToken) {
		log.Warn("refresh token does not match active session")
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrRefreshTokenRevoked)
	}

	pair, err := a.issuePair(account.Profile())
	if err != nil {
		log.Error("failed to generate tokens", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	err = a.storage.RotateRefreshToken(ctx, account.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrRefreshTokenMismatch):
			log.Warn("refresh token rotated concurrently", sl.Err(err))
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrRefreshTokenRevoked)
		case errors.Is(err, storage.ErrAccountNotFound):
			log.Warn("account removed during refresh", sl.Err(err))
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
		}
		log.Error("failed to rotate refresh token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("tokens refreshed")

	return pair, nil
}

// Logout drops the account's active refresh token. Access tokens already
// issued stay valid until they expire.
func (a *Auth) Logout(ctx context.Context, userID string) error {
	const op = "auth.Logout"

	log := a.logger.With(slog.String("op", op), slog.String("userID", userID))

	if err := a.storage.SetRefreshToken(ctx, userID, ""); err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			log.Warn("account not found", sl.Err(err))
			return fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}
		log.Error("failed to clear refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged out")

	return nil
}

// ChangePassword replaces the digest after re-checking the old password.
// The active session is left in place.
func (a *Auth) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	const op = "auth.ChangePassword"

	log := a.logger.With(slog.String("op", op), slog.String("userID", userID))

	if oldPassword == "" || newPassword == "" {
		return invalid("old password and new password are required")
	}

	account, err := a.storage.AccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			log.Warn("account not found", sl.Err(err))
			return fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}
		log.Error("failed to get account", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.verifyPassword(log, account, oldPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := a.hasher.Hash(newPassword)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.storage.UpdatePassword(ctx, userID, passHash); err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}
		log.Error("failed to update password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password changed")

	return nil
}

// DeleteAccount removes the account after re-verifying its password. The
// supplied username must be the authenticated account's own.
func (a *Auth) DeleteAccount(ctx context.Context, userID, username, pass string) error {
	const op = "auth.DeleteAccount"

	log := a.logger.With(slog.String("op", op), slog.String("userID", userID))

	username = normalize(username)
	if username == "" || pass == "" {
		return invalid("username and password are required")
	}

	account, err := a.storage.AccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			log.Warn("account not found", sl.Err(err))
			return fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}
		log.Error("failed to get account", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if username != account.Username {
		log.Warn("username does not match authenticated account")
		a.burnCompare(pass)
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if err := a.verifyPassword(log, account, pass); err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.storage.DeleteAccount(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}
		log.Error("failed to delete account", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("account deleted")

	return nil
}

// Authenticate verifies an access token and loads the current profile. It
// never writes. All failures collapse to ErrUnauthorized except storage faults.
func (a *Auth) Authenticate(ctx context.Context, accessToken string) (models.Profile, error) {
	const op = "auth.Authenticate"

	if accessToken == "" {
		return models.Profile{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	claims, err := a.access.Verify(accessToken)
	if err != nil {
		a.logger.Debug("access token rejected", slog.String("op", op), sl.Err(err))
		return models.Profile{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	profile, err := a.storage.Profile(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			a.logger.Debug("access token for unknown account", slog.String("op", op), slog.String("userID", claims.UserID))
			return models.Profile{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}
		a.logger.Error("failed to load profile", slog.String("op", op), sl.Err(err))
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return profile, nil
}

func (a *Auth) CurrentUser(ctx context.Context, userID string) (models.Profile, error) {
	const op = "auth.CurrentUser"

	profile, err := a.storage.Profile(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return models.Profile{}, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return profile, nil
}

// UpdateAccountDetails changes full name and/or email.
func (a *Auth) UpdateAccountDetails(ctx context.Context, userID, fullName, email string) (models.Profile, error) {
	const op = "auth.UpdateAccountDetails"

	log := a.logger.With(slog.String("op", op), slog.String("userID", userID))

	fullName = strings.TrimSpace(fullName)
	email = normalize(email)

	if fullName == "" && email == "" {
		return models.Profile{}, invalid("full name or email is required")
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return models.Profile{}, invalid("email is invalid")
		}
	}

	profile, err := a.storage.UpdateProfile(ctx, userID, fullName, email)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAccountNotFound):
			return models.Profile{}, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		case errors.Is(err, storage.ErrAccountExists):
			log.Warn("email already taken", sl.Err(err))
			return models.Profile{}, fmt.Errorf("%s: %w", op, ErrAccountExists)
		}
		log.Error("failed to update account", sl.Err(err))
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("account details updated")

	return profile, nil
}

func (a *Auth) issuePair(profile models.Profile) (models.TokenPair, error) {
	accessToken, err := a.access.Issue(jwt.AccessClaims(profile))
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("access token: %w", err)
	}

	refreshToken, err := a.refresh.Issue(jwt.RefreshClaims(profile.ID))
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("refresh token: %w", err)
	}

	return models.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (a *Auth) verifyPassword(log *slog.Logger, account models.Account, pass string) error {
	err := a.hasher.Compare(account.PassHash, pass)
	if err == nil {
		return nil
	}
	if errors.Is(err, password.ErrMismatch) {
		log.Warn("invalid password")
		return ErrInvalidPassword
	}
	log.Error("failed to compare password", sl.Err(err))
	return err
}

func (a *Auth) checkThrottle(ctx context.Context, log *slog.Logger, key string) error {
	if a.throttle == nil {
		return nil
	}

	err := a.throttle.Check(ctx, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, throttle.ErrTooManyAttempts):
		log.Warn("login throttled")
		return ErrTooManyAttempts
	}

	// Throttle backend down: keep logins working.
	log.Warn("login throttle unavailable", sl.Err(err))
	return nil
}

// failLogin records the failure and returns the error the caller reports.
func (a *Auth) failLogin(ctx context.Context, log *slog.Logger, key string) error {
	if a.throttle == nil {
		return ErrInvalidCredentials
	}

	if err := a.throttle.Fail(ctx, key); err != nil && !errors.Is(err, throttle.ErrTooManyAttempts) {
		log.Warn("failed to record login failure", sl.Err(err))
	}

	return ErrInvalidCredentials
}

// burnCompare spends one bcrypt comparison so that requests for missing
// accounts take as long as wrong-password attempts.
func (a *Auth) burnCompare(pass string) {
	a.dummyOnce.Do(func() {
		hash, err := a.hasher.Hash("vidshare-timing-equalizer")
		if err == nil {
			a.dummyHash = hash
		}
	})
	if a.dummyHash != nil {
		_ = a.hasher.Compare(a.dummyHash, pass)
	}
}

func tokensEqual(stored, presented string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
