package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vidshare/internal/domain/models"
)

var (
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrEmptySecret      = errors.New("signing secret is empty")
)

// Claims carried by both token kinds. Refresh tokens only set UserID.
type Claims struct {
	UserID   string `json:"uid"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// AccessClaims denormalizes the profile into access token claims.
func AccessClaims(p models.Profile) Claims {
	return Claims{
		UserID:   p.ID,
		Username: p.Username,
		Email:    p.Email,
		FullName: p.FullName,
	}
}

// RefreshClaims returns claims holding only the account id.
func RefreshClaims(userID string) Claims {
	return Claims{UserID: userID}
}

// Codec signs and verifies HS256 tokens with one secret and one lifetime.
// Access and refresh tokens use separate codecs.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL is the lifetime of tokens issued by c.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs claims, stamping iat, exp and a random jti. The jti keeps two
// tokens minted for the same account within one second distinct.
func (c *Codec) Issue(claims Claims) (string, error) {
	const op = "jwt.Issue"

	now := c.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// Verify checks signature and expiry. Every failure other than expiry is
// reported as ErrInvalidSignature.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	const op = "jwt.Verify"

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidSignature, err)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	return claims, nil
}
