// Package storagetest holds the behaviour every credential store adapter
// must share. Adapter tests call Run with a constructor for a clean store.
package storagetest

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidshare/internal/domain/models"
	"vidshare/internal/storage"
)

type Store interface {
	SaveAccount(ctx context.Context, account models.Account) (models.Account, error)
	AccountByLogin(ctx context.Context, username, email string) (models.Account, error)
	AccountByID(ctx context.Context, id string) (models.Account, error)
	Profile(ctx context.Context, id string) (models.Profile, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	RotateRefreshToken(ctx context.Context, id, presented, next string) error
	UpdatePassword(ctx context.Context, id string, passHash []byte) error
	UpdateProfile(ctx context.Context, id, fullName, email string) (models.Profile, error)
	DeleteAccount(ctx context.Context, id string) error
}

// MissingID is an id no adapter will ever generate. It parses as a Mongo
// ObjectID so adapters reach the query instead of failing on the format.
const MissingID = "000000000000000000000000"

func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("SaveAndLookup", func(t *testing.T) { testSaveAndLookup(t, newStore(t)) })
	t.Run("DuplicateAccount", func(t *testing.T) { testDuplicate(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("RefreshTokenLifecycle", func(t *testing.T) { testRefreshLifecycle(t, newStore(t)) })
	t.Run("ConcurrentRotationSingleWinner", func(t *testing.T) { testConcurrentRotation(t, newStore(t)) })
	t.Run("UpdatePassword", func(t *testing.T) { testUpdatePassword(t, newStore(t)) })
	t.Run("UpdateProfile", func(t *testing.T) { testUpdateProfile(t, newStore(t)) })
	t.Run("DeleteAccount", func(t *testing.T) { testDelete(t, newStore(t)) })
}

// NewAccount returns an unsaved account with random lower-case identity fields.
func NewAccount() models.Account {
	return models.Account{
		Username: strings.ToLower(gofakeit.Username()) + gofakeit.DigitN(6),
		Email:    strings.ToLower(gofakeit.Email()),
		FullName: gofakeit.Name(),
		PassHash: []byte(gofakeit.LetterN(60)),
	}
}

func save(t *testing.T, s Store) models.Account {
	t.Helper()
	a, err := s.SaveAccount(context.Background(), NewAccount())
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)
	return a
}

func testSaveAndLookup(t *testing.T, s Store) {
	ctx := context.Background()
	in := NewAccount()

	saved, err := s.SaveAccount(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, in.Username, saved.Username)
	assert.Empty(t, saved.RefreshToken)

	byName, err := s.AccountByLogin(ctx, in.Username, "")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byName.ID)
	assert.Equal(t, in.PassHash, byName.PassHash)

	byEmail, err := s.AccountByLogin(ctx, "", in.Email)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byEmail.ID)

	byEither, err := s.AccountByLogin(ctx, "nobody-"+in.Username, in.Email)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byEither.ID)

	byID, err := s.AccountByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Email, byID.Email)
	assert.Equal(t, in.FullName, byID.FullName)

	p, err := s.Profile(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, p.ID)
	assert.Equal(t, in.Username, p.Username)
}

func testDuplicate(t *testing.T, s Store) {
	ctx := context.Background()
	first := save(t, s)

	sameName := NewAccount()
	sameName.Username = first.Username
	_, err := s.SaveAccount(ctx, sameName)
	assert.ErrorIs(t, err, storage.ErrAccountExists)

	sameEmail := NewAccount()
	sameEmail.Email = first.Email
	_, err = s.SaveAccount(ctx, sameEmail)
	assert.ErrorIs(t, err, storage.ErrAccountExists)
}

func testNotFound(t *testing.T, s Store) {
	ctx := context.Background()
	save(t, s)

	_, err := s.AccountByLogin(ctx, "ghost", "ghost@example.com")
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)

	_, err = s.AccountByLogin(ctx, "", "")
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)

	_, err = s.AccountByID(ctx, MissingID)
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)

	_, err = s.Profile(ctx, MissingID)
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)

	assert.ErrorIs(t, s.SetRefreshToken(ctx, MissingID, "t"), storage.ErrAccountNotFound)
	assert.ErrorIs(t, s.RotateRefreshToken(ctx, MissingID, "a", "b"), storage.ErrAccountNotFound)
	assert.ErrorIs(t, s.UpdatePassword(ctx, MissingID, []byte("x")), storage.ErrAccountNotFound)
	assert.ErrorIs(t, s.DeleteAccount(ctx, MissingID), storage.ErrAccountNotFound)
}

func testRefreshLifecycle(t *testing.T, s Store) {
	ctx := context.Background()
	a := save(t, s)

	// No session yet: nothing to rotate, including from the empty value.
	assert.ErrorIs(t, s.RotateRefreshToken(ctx, a.ID, "", "next"), storage.ErrRefreshTokenMismatch)

	require.NoError(t, s.SetRefreshToken(ctx, a.ID, "token-1"))
	got, err := s.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "token-1", got.RefreshToken)

	require.NoError(t, s.RotateRefreshToken(ctx, a.ID, "token-1", "token-2"))
	assert.ErrorIs(t, s.RotateRefreshToken(ctx, a.ID, "token-1", "token-3"), storage.ErrRefreshTokenMismatch)

	got, err = s.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "token-2", got.RefreshToken)

	require.NoError(t, s.SetRefreshToken(ctx, a.ID, ""))
	got, err = s.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.RefreshToken)
	assert.ErrorIs(t, s.RotateRefreshToken(ctx, a.ID, "token-2", "token-4"), storage.ErrRefreshTokenMismatch)
}

func testConcurrentRotation(t *testing.T, s Store) {
	ctx := context.Background()
	a := save(t, s)
	require.NoError(t, s.SetRefreshToken(ctx, a.ID, "current"))

	const workers = 16
	start := make(chan struct{})
	results := make(chan error, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(next string) {
			defer wg.Done()
			<-start
			results <- s.RotateRefreshToken(ctx, a.ID, "current", next)
		}(gofakeit.UUID())
	}

	close(start)
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		require.ErrorIs(t, err, storage.ErrRefreshTokenMismatch)
	}

	assert.Equal(t, 1, success)
}

func testUpdatePassword(t *testing.T, s Store) {
	ctx := context.Background()
	a := save(t, s)
	require.NoError(t, s.SetRefreshToken(ctx, a.ID, "keep-me"))

	require.NoError(t, s.UpdatePassword(ctx, a.ID, []byte("new-digest")))

	got, err := s.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("new-digest"), got.PassHash)
	assert.Equal(t, "keep-me", got.RefreshToken)
}

func testUpdateProfile(t *testing.T, s Store) {
	ctx := context.Background()
	a := save(t, s)
	other := save(t, s)

	p, err := s.UpdateProfile(ctx, a.ID, "New Name", "")
	require.NoError(t, err)
	assert.Equal(t, "New Name", p.FullName)
	assert.Equal(t, a.Email, p.Email)

	email := strings.ToLower(gofakeit.Email())
	p, err = s.UpdateProfile(ctx, a.ID, "", email)
	require.NoError(t, err)
	assert.Equal(t, "New Name", p.FullName)
	assert.Equal(t, email, p.Email)

	_, err = s.UpdateProfile(ctx, a.ID, "", other.Email)
	assert.ErrorIs(t, err, storage.ErrAccountExists)

	_, err = s.UpdateProfile(ctx, MissingID, "x", "")
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)
}

func testDelete(t *testing.T, s Store) {
	ctx := context.Background()
	a := save(t, s)

	require.NoError(t, s.DeleteAccount(ctx, a.ID))

	_, err := s.AccountByID(ctx, a.ID)
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)
	assert.ErrorIs(t, s.DeleteAccount(ctx, a.ID), storage.ErrAccountNotFound)
}
