package models

import "time"

// Account is the stored credential record. One per user.
//
// RefreshToken holds the single active refresh token; an empty value means
// there is no live session for the account.
type Account struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	Avatar       string
	CoverImage   string
	PassHash     []byte `json:"-"`
	RefreshToken string `json:"-"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the projection of an account that may leave the auth service.
type Profile struct {
	ID         string    `json:"_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar,omitempty"`
	CoverImage string    `json:"coverImage,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Profile strips the password digest and refresh token.
func (a Account) Profile() Profile {
	return Profile{
		ID:         a.ID,
		Username:   a.Username,
		Email:      a.Email,
		FullName:   a.FullName,
		Avatar:     a.Avatar,
		CoverImage: a.CoverImage,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}
