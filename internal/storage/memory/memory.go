// Package memory is an in-process credential store. It backs tests and the
// "memory" storage driver; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidshare/internal/domain/models"
	"vidshare/internal/storage"
)

type Storage struct {
	mu       sync.Mutex
	accounts map[string]models.Account
}

func New() *Storage {
	return &Storage{accounts: make(map[string]models.Account)}
}

func (s *Storage) SaveAccount(_ context.Context, account models.Account) (models.Account, error) {
	const op = "storage.memory.SaveAccount"

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Username == account.Username || a.Email == account.Email {
			return models.Account{}, fmt.Errorf("%s: %w", op, storage.ErrAccountExists)
		}
	}

	now := time.Now().UTC()
	account.ID = uuid.NewString()
	account.CreatedAt = now
	account.UpdatedAt = now
	account.PassHash = append([]byte(nil), account.PassHash...)
	s.accounts[account.ID] = account

	return account, nil
}

// AccountByLogin returns the account whose username or email matches.
// Empty arguments never match.
func (s *Storage) AccountByLogin(_ context.Context, username, email string) (models.Account, error) {
	const op = "storage.memory.AccountByLogin"

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if (username != "" && a.Username == username) || (email != "" && a.Email == email) {
			return a, nil
		}
	}

	return models.Account{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
}

func (s *Storage) AccountByID(_ context.Context, id string) (models.Account, error) {
	const op = "storage.memory.AccountByID"

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return models.Account{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	return a, nil
}

func (s *Storage) Profile(ctx context.Context, id string) (models.Profile, error) {
	const op = "storage.memory.Profile"

	a, err := s.AccountByID(ctx, id)
	if err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return a.Profile(), nil
}

func (s *Storage) SetRefreshToken(_ context.Context, id, token string) error {
	const op = "storage.memory.SetRefreshToken"

	return s.update(id, func(a *models.Account) error {
		a.RefreshToken = token
		return nil
	}, op)
}

// RotateRefreshToken replaces the stored token only while it still equals
// presented.
func (s *Storage) RotateRefreshToken(_ context.Context, id, presented, next string) error {
	const op = "storage.memory.RotateRefreshToken"

	return s.update(id, func(a *models.Account) error {
		if presented == "" || a.RefreshToken != presented {
			return storage.ErrRefreshTokenMismatch
		}
		a.RefreshToken = next
		return nil
	}, op)
}

func (s *Storage) UpdatePassword(_ context.Context, id string, passHash []byte) error {
	const op = "storage.memory.UpdatePassword"

	return s.update(id, func(a *models.Account) error {
		a.PassHash = append([]byte(nil), passHash...)
		return nil
	}, op)
}

func (s *Storage) UpdateProfile(_ context.Context, id, fullName, email string) (models.Profile, error) {
	const op = "storage.memory.UpdateProfile"

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return models.Profile{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	if email != "" && email != a.Email {
		for otherID, other := range s.accounts {
			if otherID != id && other.Email == email {
				return models.Profile{}, fmt.Errorf("%s: %w", op, storage.ErrAccountExists)
			}
		}
		a.Email = email
	}
	if fullName != "" {
		a.FullName = fullName
	}
	a.UpdatedAt = time.Now().UTC()
	s.accounts[id] = a

	return a.Profile(), nil
}

func (s *Storage) DeleteAccount(_ context.Context, id string) error {
	const op = "storage.memory.DeleteAccount"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}
	delete(s.accounts, id)

	return nil
}

func (s *Storage) update(id string, fn func(a *models.Account) error, op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}
	if err := fn(&a); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	a.UpdatedAt = time.Now().UTC()
	s.accounts[id] = a

	return nil
}
