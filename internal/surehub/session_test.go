package surehub

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_LoginIsSingleFlight(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.loginDelay = 50 * time.Millisecond
	s := srv.session()

	const callers = 20
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ld, err := s.Login(context.Background())
			errs[i] = err
			if ld != nil {
				tokens[i] = ld.Token
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), srv.logins.Load(), "concurrent logins should share one request")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "token-1", tokens[i])
	}
	assert.Equal(t, "token-1", s.Token())
}

func TestSession_ConcurrentLoginFailureIsShared(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.loginDelay = 50 * time.Millisecond
	srv.loginError = "Email or password is incorrect"
	s := srv.session()

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Login(context.Background())
			var authErr *AuthError
			if errors.As(err, &authErr) {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), srv.logins.Load())
	assert.Equal(t, int32(10), failures.Load())
	assert.Empty(t, s.Token())
}

func TestSession_CancelledCallerDoesNotFailSharedLogin(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.loginDelay = 200 * time.Millisecond
	s := srv.session()

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Login(ctx)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return srv.logins.Load() == 1 }, time.Second, 5*time.Millisecond)

	secondDone := make(chan *LoginData, 1)
	go func() {
		ld, err := s.Login(context.Background())
		assert.NoError(t, err)
		secondDone <- ld
	}()

	time.Sleep(40 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	ld := <-secondDone
	require.NotNil(t, ld)
	assert.Equal(t, "token-1", ld.Token)
	assert.Equal(t, int32(1), srv.logins.Load())
	assert.Equal(t, "token-1", s.Token())
}

func TestSession_LoginSendsCredentials(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {})
	s := NewSession(Credentials{
		Email:    "owner@example.com",
		Password: "secret",
		DeviceID: "12345",
		Endpoint: srv.URL + "/",
		Extra:    map[string]any{"client_version": "1.0"},
	}, WithLogger(discardLogger()))

	ld, err := s.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", ld.Token)
	assert.JSONEq(t, `{"token":"token-1","user":{"id":1}}`, string(ld.Raw))

	body := srv.loginBody.Load().(map[string]any)
	assert.Equal(t, "owner@example.com", body["email_address"])
	assert.Equal(t, "secret", body["password"])
	assert.Equal(t, "12345", body["device_id"])
	assert.Equal(t, "1.0", body["client_version"])
}

func TestSession_LoginIsCached(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {})
	s := srv.session()

	for i := 0; i < 3; i++ {
		_, err := s.Login(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), srv.logins.Load())
}

func TestSession_LoginFailure(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no call should be made after a failed login")
	})
	srv.loginError = "Email or password is incorrect"
	s := srv.session()

	_, err := s.Call(context.Background(), http.MethodGet, "/api/pet", nil)
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Email or password is incorrect", authErr.Err.Message)
	assert.Equal(t, int32(1), srv.logins.Load())
	assert.Equal(t, int32(0), srv.requests.Load())
}

func TestSession_LoginWithoutToken(t *testing.T) {
	s := NewSession(Credentials{Endpoint: "http://surehub.test"},
		WithLogger(discardLogger()),
		WithTransport(transportFunc(func(ctx context.Context, req *Request) (*Response, error) {
			return &Response{StatusCode: 200, Body: []byte(`{"data":{"user":{}}}`)}, nil
		})))

	_, err := s.Login(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Error(), "no token")
}

func TestSession_DefaultDeviceID(t *testing.T) {
	s := NewSession(Credentials{}, WithLogger(discardLogger()))

	id := s.DeviceID()
	n, err := strconv.ParseInt(id, 10, 64)
	require.NoError(t, err, "device id should be numeric")
	assert.GreaterOrEqual(t, n, int64(0))
	assert.Less(t, n, int64(0x7fffffff))
	assert.Equal(t, id, s.DeviceID())
	assert.Equal(t, DefaultEndpoint, s.Endpoint())
}

func TestSession_CallSendsBearerAndBody(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/device/9/control", r.URL.Path)
		assert.Equal(t, "Bearer token-1", bearer(r))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"locking":1}`, string(body))
		writeData(w, map[string]any{"locking": 1})
	})
	s := srv.session()

	data, err := s.Call(context.Background(), http.MethodPut, "/api/device/9/control", map[string]int{"locking": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"locking":1}`, string(data))
}

func TestSession_CallReturnsPrimitiveData(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(w, true)
	})

	data, err := srv.session().Call(context.Background(), http.MethodGet, "/api/flag", nil)
	require.NoError(t, err)
	assert.Equal(t, "true", string(data))
}

func TestSession_CallRetriesOnceOnExpiredToken(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) == "Bearer token-1" {
			writeError(w, "Your account could not be verified")
			return
		}
		writeData(w, []map[string]any{{"id": 1}})
	})
	s := srv.session()

	data, err := s.Call(context.Background(), http.MethodGet, "/api/pet", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(data))
	assert.Equal(t, int32(2), srv.logins.Load(), "expected exactly one re-login")
	assert.Equal(t, int32(2), srv.requests.Load(), "expected exactly one retried request")
	assert.Equal(t, "token-2", s.Token())
}

func TestSession_CallRetryFailureReturnsRetryError(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) == "Bearer token-1" {
			writeError(w, "Your account could not be verified")
			return
		}
		writeError(w, "Your account could still not be verified")
	})
	s := srv.session()

	_, err := s.Call(context.Background(), http.MethodGet, "/api/pet", nil)
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "/api/pet", callErr.Path)
	assert.Equal(t, "Your account could still not be verified", callErr.Err.Message)
	assert.Equal(t, int32(2), srv.logins.Load())
	assert.Equal(t, int32(2), srv.requests.Load(), "the retry must not loop")
}

func TestSession_CallOtherErrorIsNotRetried(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Not found")
	})
	s := srv.session()

	_, err := s.Call(context.Background(), http.MethodGet, "/api/pet/99", nil)
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "/api/pet/99", callErr.Path)
	assert.Contains(t, err.Error(), "Not found")
	assert.Equal(t, int32(1), srv.requests.Load())
	assert.Equal(t, int32(1), srv.logins.Load())
	assert.Equal(t, "token-1", s.Token(), "a non-expiry error must keep the session")
}

func TestSession_CallInvalidJSON(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := srv.session().Call(context.Background(), http.MethodGet, "/api/pet", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestSession_LogoutWithoutLoginIsNoop(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("logout without a session must not call the API")
	})

	require.NoError(t, srv.session().Logout(context.Background()))
	assert.Equal(t, int32(0), srv.logins.Load())
}

func TestSession_Logout(t *testing.T) {
	var logoutCalls atomic.Int32
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == logoutPath {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer token-1", bearer(r))
			logoutCalls.Add(1)
			writeData(w, nil)
			return
		}
		writeData(w, []any{})
	})
	s := srv.session()

	_, err := s.Call(context.Background(), http.MethodGet, "/api/pet", nil)
	require.NoError(t, err)
	require.NoError(t, s.Logout(context.Background()))

	assert.Equal(t, int32(1), logoutCalls.Load())
	assert.Empty(t, s.Token())

	_, err = s.Call(context.Background(), http.MethodGet, "/api/pet", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.logins.Load(), "next call should log in again")
}

func TestSession_LogoutClearsEvenOnFailure(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "server unavailable")
	})
	s := srv.session()

	_, err := s.Login(context.Background())
	require.NoError(t, err)

	err = s.Logout(context.Background())
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Empty(t, s.Token())
}

func TestAPIError_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		message string
	}{
		{"string message", `{"message":"Token could not be verified"}`, "Token could not be verified"},
		{"list message", `{"message":["first","second"]}`, "first,second"},
		{"no message", `{"code":42}`, ""},
		{"plain string", `"boom"`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e APIError
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &e))
			assert.Equal(t, tt.message, e.Message)
			assert.Equal(t, tt.raw, e.Error())
		})
	}
}

func TestIsTokenExpired(t *testing.T) {
	assert.True(t, isTokenExpired(&APIError{Message: "Your account could not be verified"}))
	assert.False(t, isTokenExpired(&APIError{Message: "Your account could NOT BE VERIFIED"}))
	assert.False(t, isTokenExpired(&APIError{Message: "not verified"}))
	assert.False(t, isTokenExpired(nil))
}

type transportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f transportFunc) Do(ctx context.Context, req *Request) (*Response, error) { return f(ctx, req) }
