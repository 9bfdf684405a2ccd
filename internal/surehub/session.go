package surehub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultEndpoint is the production API base URL.
const DefaultEndpoint = "https://app.api.surehub.io"

const (
	loginPath  = "/api/auth/login"
	logoutPath = "/api/auth/logout"
)

// Credentials identify the account and the installation using it.
type Credentials struct {
	Email    string
	Password string
	// DeviceID identifies this installation to the API. A random numeric
	// ID is generated when empty.
	DeviceID string
	Endpoint string
	// Extra fields are sent with the login request.
	Extra map[string]any
}

// LoginData is the payload of a successful login.
type LoginData struct {
	Token string          `json:"token"`
	Raw   json.RawMessage `json:"-"`
}

// envelope wraps every API response.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// Session authenticates requests to the API. It is safe for concurrent use.
type Session struct {
	creds     Credentials
	transport Transport
	logger    *slog.Logger

	mu    sync.RWMutex
	login *LoginData

	// logins coalesces concurrent logins into one request.
	logins singleflight.Group
}

// Option configures a Session.
type Option func(*Session)

// WithTransport replaces the default HTTP transport.
func WithTransport(t Transport) Option {
	return func(s *Session) { s.transport = t }
}

// WithLogger sets the logger used by the session.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// NewSession creates an unauthenticated session. No request is made until
// the first call.
func NewSession(creds Credentials, opts ...Option) *Session {
	if creds.Endpoint == "" {
		creds.Endpoint = DefaultEndpoint
	}
	creds.Endpoint = strings.TrimRight(creds.Endpoint, "/")
	if creds.DeviceID == "" {
		creds.DeviceID = NewDeviceID()
	}
	if creds.Extra != nil {
		extra := make(map[string]any, len(creds.Extra))
		for k, v := range creds.Extra {
			extra[k] = v
		}
		creds.Extra = extra
	}

	s := &Session{creds: creds, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.transport == nil {
		s.transport = NewHTTPTransport(TransportOptions{Logger: s.logger})
	}
	return s
}

// NewDeviceID returns a random decimal device identifier.
func NewDeviceID() string {
	return strconv.FormatInt(rand.Int64N(0x7fffffff), 10)
}

// Endpoint returns the API base URL.
func (s *Session) Endpoint() string { return s.creds.Endpoint }

// DeviceID returns the installation identifier sent at login.
func (s *Session) DeviceID() string { return s.creds.DeviceID }

// Token returns the cached bearer token, or "" when logged out.
func (s *Session) Token() string {
	if ld := s.cached(); ld != nil {
		return ld.Token
	}
	return ""
}

func (s *Session) cached() *LoginData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.login
}

// Login returns the cached login, authenticating first if there is none.
// Concurrent callers share a single login request and its outcome.
func (s *Session) Login(ctx context.Context) (*LoginData, error) {
	if ld := s.cached(); ld != nil {
		return ld, nil
	}

	// No single caller can cancel the shared login; each caller stops
	// waiting when its own context ends.
	loginCtx := context.WithoutCancel(ctx)
	ch := s.logins.DoChan("login", func() (interface{}, error) {
		// A login may have finished between the check above and DoChan.
		if ld := s.cached(); ld != nil {
			return ld, nil
		}
		ld, err := s.authenticate(loginCtx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.login = ld
		s.mu.Unlock()
		return ld, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*LoginData), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Logout ends the session on the server and clears the cached login. The
// login is cleared even when the logout call fails.
func (s *Session) Logout(ctx context.Context) error {
	if s.cached() == nil {
		return nil
	}

	_, err := s.Call(ctx, http.MethodPost, logoutPath, nil)
	s.Invalidate()
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.Info("logged out", "email", s.creds.Email)
	return nil
}

// Invalidate drops the cached login; the next call logs in again.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.login = nil
	s.mu.Unlock()
}

// invalidateToken drops the cached login only if it still holds token, so a
// login completed by another caller in the meantime is kept.
func (s *Session) invalidateToken(token string) {
	s.mu.Lock()
	if s.login != nil && s.login.Token == token {
		s.login = nil
	}
	s.mu.Unlock()
}

func (s *Session) authenticate(ctx context.Context) (*LoginData, error) {
	payload := make(map[string]any, len(s.creds.Extra)+3)
	for k, v := range s.creds.Extra {
		payload[k] = v
	}
	payload["email_address"] = s.creds.Email
	payload["password"] = s.creds.Password
	payload["device_id"] = s.creds.DeviceID

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal login payload: %w", err)
	}

	env, err := s.send(ctx, http.MethodPost, loginPath, "", body)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if env.Error != nil {
		return nil, &AuthError{Err: env.Error}
	}

	ld := &LoginData{Raw: env.Data}
	if err := json.Unmarshal(env.Data, ld); err != nil || ld.Token == "" {
		return nil, &AuthError{Err: &APIError{Message: "login response carried no token"}}
	}

	s.logger.Info("logged in", "email", s.creds.Email, "device_id", s.creds.DeviceID)
	return ld, nil
}

// Call performs an authenticated request and returns the "data" member of
// the response. When the server reports that the token could not be
// verified, the cached login is dropped and the request is retried once.
func (s *Session) Call(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload for %s: %w", path, err)
		}
		body = b
	}

	env, token, err := s.attempt(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if env.Error == nil {
		return env.Data, nil
	}
	if !isTokenExpired(env.Error) {
		return nil, &CallError{Path: path, Err: env.Error}
	}

	s.logger.Warn("token rejected, logging in again", "path", path)
	s.invalidateToken(token)

	env, _, err = s.attempt(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if env.Error != nil {
		return nil, &CallError{Path: path, Err: env.Error}
	}
	return env.Data, nil
}

// attempt logs in if needed and sends one request. It returns the token the
// request was sent with.
func (s *Session) attempt(ctx context.Context, method, path string, body []byte) (*envelope, string, error) {
	ld, err := s.Login(ctx)
	if err != nil {
		return nil, "", err
	}
	env, err := s.send(ctx, method, path, ld.Token, body)
	if err != nil {
		return nil, ld.Token, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return env, ld.Token, nil
}

func (s *Session) send(ctx context.Context, method, path, token string, body []byte) (*envelope, error) {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	s.logger.Debug("calling api", "method", method, "path", path)
	resp, err := s.transport.Do(ctx, &Request{
		Method: method,
		URL:    s.creds.Endpoint + path,
		Header: header,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.NewDecoder(bytes.NewReader(resp.Body)).Decode(&env); err != nil {
		return nil, fmt.Errorf("invalid response (status %d): %w", resp.StatusCode, err)
	}
	return &env, nil
}
