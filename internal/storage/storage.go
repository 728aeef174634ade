package storage

import "errors"

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountExists        = errors.New("account already exists")
	ErrRefreshTokenMismatch = errors.New("refresh token does not match stored value")
)
