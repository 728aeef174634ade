package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"vidshare/internal/domain/models"
	"vidshare/internal/storage"
)

type Storage struct {
	db *sql.DB
}

// New returns a new instance of the Storage. The schema is expected to be in
// place already; see Migrate.
func New(storagePath string) (*Storage, error) {
	const op = "storage.sqlite.New"

	db, err := sql.Open("sqlite3", storagePath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// One writer at a time; sqlite serializes writes anyway and this avoids
	// SQLITE_BUSY under concurrent rotations.
	db.SetMaxOpenConns(1)

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SaveAccount(ctx context.Context, account models.Account) (models.Account, error) {
	const op = "storage.sqlite.SaveAccount"

	now := time.Now().UTC().Truncate(time.Second)
	account.ID = uuid.NewString()
	account.RefreshToken = ""
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, full_name, avatar, cover_image, pass_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.Username, account.Email, account.FullName,
		account.Avatar, account.CoverImage, account.PassHash, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return models.Account{}, fmt.Errorf("%s: %w", op, storage.ErrAccountExists)
		}
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

const accountColumns = `id, username, email, full_name, avatar, cover_image, pass_hash, refresh_token, created_at, updated_at`

func scanAccount(row *sql.Row) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.FullName, &a.Avatar, &a.CoverImage,
		&a.PassHash, &a.RefreshToken, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (s *Storage) AccountByLogin(ctx context.Context, username, email string) (models.Account, error) {
	const op = "storage.sqlite.AccountByLogin"

	if username == "" && email == "" {
		return models.Account{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users
		 WHERE (? <> '' AND username = ?) OR (? <> '' AND email = ?)
		 LIMIT 1`,
		username, username, email, email,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
		}
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func (s *Storage) AccountByID(ctx context.Context, id string) (models.Account, error) {
	const op = "storage.sqlite.AccountByID"

	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
		}
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func (s *Storage) Profile(ctx context.Context, id string) (models.Profile, error) {
	const op = "storage.sqlite.Profile"

	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, full_name, avatar, cover_image, created_at, updated_at
		FROM users WHERE id = ?`, id)

	var p models.Profile
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.FullName, &p.Avatar, &p.CoverImage, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Profile{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
		}
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

func (s *Storage) SetRefreshToken(ctx context.Context, id, token string) error {
	const op = "storage.sqlite.SetRefreshToken"

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ?`,
		token, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return affectedOne(res, op)
}

// RotateRefreshToken is a compare-and-swap on the stored token.
func (s *Storage) RotateRefreshToken(ctx context.Context, id, presented, next string) error {
	const op = "storage.sqlite.RotateRefreshToken"

	if presented == "" {
		return fmt.Errorf("%s: %w", op, storage.ErrRefreshTokenMismatch)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ? AND refresh_token = ?`,
		next, time.Now().UTC(), id, presented,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	return fmt.Errorf("%s: %w", op, storage.ErrRefreshTokenMismatch)
}

func (s *Storage) UpdatePassword(ctx context.Context, id string, passHash []byte) error {
	const op = "storage.sqlite.UpdatePassword"

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET pass_hash = ?, updated_at = ? WHERE id = ?`,
		passHash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return affectedOne(res, op)
}

func (s *Storage) UpdateProfile(ctx context.Context, id, fullName, email string) (models.Profile, error) {
	const op = "storage.sqlite.UpdateProfile"

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			full_name = CASE WHEN ? <> '' THEN ? ELSE full_name END,
			email = CASE WHEN ? <> '' THEN ? ELSE email END,
			updated_at = ?
		WHERE id = ?`,
		fullName, fullName, email, email, time.Now().UTC(), id,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return models.Profile{}, fmt.Errorf("%s: %w", op, storage.ErrAccountExists)
		}
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := affectedOne(res, op); err != nil {
		return models.Profile{}, err
	}

	return s.Profile(ctx, id)
}

func (s *Storage) DeleteAccount(ctx context.Context, id string) error {
	const op = "storage.sqlite.DeleteAccount"

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return affectedOne(res, op)
}

func affectedOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}
	return nil
}
