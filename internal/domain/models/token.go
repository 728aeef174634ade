package models

// TokenPair is an access token and the refresh token minted alongside it.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Session is the result of a successful login.
type Session struct {
	TokenPair
	User Profile `json:"user"`
}
