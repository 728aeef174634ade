package suite

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vidshare/internal/app"
	"vidshare/internal/config"
	"vidshare/internal/lib/logger/handlers/slogdiscard"
)

type Suite struct {
	*testing.T
	Cfg    *config.Config
	Server *httptest.Server
	Client *http.Client
}

// Envelope is the response body of every endpoint.
type Envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

// Response is a decoded reply.
type Response struct {
	Status  int
	Body    Envelope
	Cookies []*http.Cookie
}

func (r Response) Cookie(name string) *http.Cookie {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// New starts the full application (memory storage) behind an httptest server.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()
	t.Parallel()

	cfg := config.LoadConfig("../config/test.yaml")
	cfg.Storage.Driver = "memory"
	cfg.Throttle.Enabled = false

	application := app.New(slogdiscard.NewDiscardLogger(), cfg)
	server := httptest.NewServer(application.HTTPSrv.Handler())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	t.Cleanup(func() {
		t.Helper()
		cancel()
		server.Close()
	})

	return ctx, &Suite{
		T:      t,
		Cfg:    cfg,
		Server: server,
		Client: server.Client(),
	}
}

// Bearer authenticates a request with an Authorization header.
func Bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

// WithCookie attaches a cookie to a request.
func WithCookie(name, value string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: name, Value: value}) }
}

func (s *Suite) Post(ctx context.Context, path string, body any, opts ...func(*http.Request)) Response {
	return s.Do(ctx, http.MethodPost, path, body, opts...)
}

func (s *Suite) Get(ctx context.Context, path string, opts ...func(*http.Request)) Response {
	return s.Do(ctx, http.MethodGet, path, nil, opts...)
}

func (s *Suite) Do(ctx context.Context, method, path string, body any, opts ...func(*http.Request)) Response {
	s.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.Fatalf("failed to encode request: %v", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.Server.URL+path, &buf)
	if err != nil {
		s.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		s.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		s.Fatalf("failed to decode %s %s response: %v", method, path, err)
	}

	return Response{Status: resp.StatusCode, Body: env, Cookies: resp.Cookies()}
}
