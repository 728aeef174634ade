package tests

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidshare/internal/domain/models"
	"vidshare/tests/suite"
)

const passDefaultLen = 10

type session struct {
	User         models.Profile `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
}

func decodeData(t *testing.T, resp suite.Response, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Body.Data, dst))
}

func TestAliceScenario(t *testing.T) {
	ctx, st := suite.New(t)

	resp := st.Post(ctx, "/users/register", map[string]string{
		"username": "alice",
		"email":    "alice@x.com",
		"fullName": "Alice",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.Status)

	resp = st.Post(ctx, "/users/login", map[string]string{"username": "alice", "password": "secret1"})
	require.Equal(t, http.StatusOK, resp.Status)
	var login session
	decodeData(t, resp, &login)
	require.NotEmpty(t, login.AccessToken)
	require.NotEmpty(t, login.RefreshToken)
	require.NotNil(t, resp.Cookie("accessToken"))
	require.NotNil(t, resp.Cookie("refreshToken"))

	resp = st.Post(ctx, "/users/login", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.False(t, resp.Body.Success)

	resp = st.Post(ctx, "/users/refresh-token", map[string]string{"refreshToken": login.RefreshToken})
	require.Equal(t, http.StatusOK, resp.Status)
	var rotated models.TokenPair
	decodeData(t, resp, &rotated)
	require.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	resp = st.Post(ctx, "/users/refresh-token", map[string]string{"refreshToken": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.Status)

	resp = st.Post(ctx, "/users/logout", nil, suite.Bearer(rotated.AccessToken))
	require.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{}`, string(resp.Body.Data))

	resp = st.Post(ctx, "/users/refresh-token", map[string]string{"refreshToken": rotated.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
}

func TestAuthRegisterLogin(t *testing.T) {
	ctx, st := suite.New(t)

	username := "u" + gofakeit.DigitN(8)
	email := gofakeit.Email()
	pass := randomPassword()

	resp := st.Post(ctx, "/users/register", map[string]string{
		"username": username,
		"email":    email,
		"fullName": gofakeit.Name(),
		"password": pass,
	})
	require.Equal(t, http.StatusCreated, resp.Status)
	var profile models.Profile
	decodeData(t, resp, &profile)
	assert.NotEmpty(t, profile.ID)

	resp = st.Post(ctx, "/users/login", map[string]string{"email": email, "password": pass})
	require.Equal(t, http.StatusOK, resp.Status)

	loginTime := time.Now()

	var login session
	decodeData(t, resp, &login)

	tokenParsed, err := jwt.Parse(login.AccessToken, func(token *jwt.Token) (interface{}, error) {
		return []byte(st.Cfg.Tokens.Access.Secret), nil
	})
	require.NoError(t, err)

	claims, ok := tokenParsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, profile.ID, claims["uid"].(string))
	assert.Equal(t, username, claims["username"].(string))

	const deltaSeconds = 1
	assert.InDelta(t, loginTime.Add(st.Cfg.Tokens.Access.TTL).Unix(), claims["exp"].(float64), deltaSeconds)

	resp = st.Get(ctx, "/users/current-user", suite.WithCookie("accessToken", login.AccessToken))
	require.Equal(t, http.StatusOK, resp.Status)
	var current models.Profile
	decodeData(t, resp, &current)
	assert.Equal(t, profile.ID, current.ID)
}

func TestRegisterLogin_DuplicatedRegistration(t *testing.T) {
	ctx, st := suite.New(t)

	body := map[string]string{
		"username": "u" + gofakeit.DigitN(8),
		"email":    gofakeit.Email(),
		"fullName": gofakeit.Name(),
		"password": randomPassword(),
	}

	resp := st.Post(ctx, "/users/register", body)
	require.Equal(t, http.StatusCreated, resp.Status)

	resp = st.Post(ctx, "/users/register", body)
	assert.Equal(t, http.StatusConflict, resp.Status)
	assert.Contains(t, resp.Body.Message, "already exists")
}

func TestRefresh_FailCases(t *testing.T) {
	ctx, st := suite.New(t)

	tests := []struct {
		name         string
		refreshToken string
		expectedErr  string
	}{
		{
			name:         "Empty refresh token",
			refreshToken: "",
			expectedErr:  "refresh token is required",
		},
		{
			name:         "Invalid refresh token",
			refreshToken: "invalid-token-that-does-not-exist",
			expectedErr:  "invalid refresh token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := st.Post(ctx, "/users/refresh-token", map[string]string{"refreshToken": tt.refreshToken})
			require.Equal(t, http.StatusUnauthorized, resp.Status)
			require.Contains(t, resp.Body.Message, tt.expectedErr)
		})
	}
}

func TestLogin_FailCases(t *testing.T) {
	ctx, st := suite.New(t)

	username := "u" + gofakeit.DigitN(8)
	pass := randomPassword()
	resp := st.Post(ctx, "/users/register", map[string]string{
		"username": username,
		"email":    gofakeit.Email(),
		"fullName": gofakeit.Name(),
		"password": pass,
	})
	require.Equal(t, http.StatusCreated, resp.Status)

	tests := []struct {
		name           string
		username       string
		password       string
		expectedStatus int
		expectedErr    string
	}{
		{
			name:           "Login with Empty Password",
			username:       username,
			expectedStatus: http.StatusBadRequest,
			expectedErr:    "password is required",
		},
		{
			name:           "Login with Empty Username",
			password:       pass,
			expectedStatus: http.StatusBadRequest,
			expectedErr:    "username or email is required",
		},
		{
			name:           "Login with Non-Matching Password",
			username:       username,
			password:       randomPassword(),
			expectedStatus: http.StatusUnauthorized,
			expectedErr:    "invalid credentials",
		},
		{
			name:           "Login with Unknown Username",
			username:       "ghost" + gofakeit.DigitN(6),
			password:       pass,
			expectedStatus: http.StatusUnauthorized,
			expectedErr:    "invalid credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := st.Post(ctx, "/users/login", map[string]string{
				"username": tt.username,
				"password": tt.password,
			})
			require.Equal(t, tt.expectedStatus, resp.Status)
			require.Equal(t, tt.expectedErr, resp.Body.Message)
		})
	}
}

func TestConcurrentRefresh(t *testing.T) {
	ctx, st := suite.New(t)

	username := "u" + gofakeit.DigitN(8)
	pass := randomPassword()
	resp := st.Post(ctx, "/users/register", map[string]string{
		"username": username,
		"email":    gofakeit.Email(),
		"fullName": gofakeit.Name(),
		"password": pass,
	})
	require.Equal(t, http.StatusCreated, resp.Status)

	resp = st.Post(ctx, "/users/login", map[string]string{"username": username, "password": pass})
	require.Equal(t, http.StatusOK, resp.Status)
	var login session
	decodeData(t, resp, &login)

	const workers = 2
	statuses := make([]int, workers)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			statuses[i] = st.Post(ctx, "/users/refresh-token", map[string]string{"refreshToken": login.RefreshToken}).Status
		}(i)
	}
	close(start)
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusUnauthorized}, statuses)
}

func randomPassword() string {
	return gofakeit.Password(true, true, true, true, false, passDefaultLen)
}
