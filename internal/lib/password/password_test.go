package password

import (
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashIsSaltedAndVerifies(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	pass := gofakeit.Password(true, true, true, false, false, 12)

	first, err := h.Hash(pass)
	require.NoError(t, err)
	second, err := h.Hash(pass)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotContains(t, string(first), pass)
	assert.NoError(t, h.Compare(first, pass))
	assert.NoError(t, h.Compare(second, pass))
}

func TestCompare_FailCases(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("secret1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		hash     []byte
		password string
		mismatch bool
	}{
		{name: "wrong password", hash: hash, password: "secret2", mismatch: true},
		{name: "empty password", hash: hash, password: "", mismatch: true},
		{name: "garbage digest", hash: []byte("not-a-bcrypt-digest"), password: "secret1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Compare(tt.hash, tt.password)
			require.Error(t, err)
			assert.Equal(t, tt.mismatch, errors.Is(err, ErrMismatch))
		})
	}
}

func TestHashRejectsEmpty(t *testing.T) {
	_, err := NewHasher(DefaultCost).Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestNewHasherClampsCost(t *testing.T) {
	assert.Equal(t, DefaultCost, NewHasher(0).cost)
	assert.Equal(t, DefaultCost, NewHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, 12, NewHasher(12).cost)
}
