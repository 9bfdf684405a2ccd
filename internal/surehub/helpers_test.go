package surehub

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// apiServer fakes the login endpoint and hands every other request to
// handler. Each login issues token-1, token-2, ...
type apiServer struct {
	*httptest.Server
	logins   atomic.Int32
	requests atomic.Int32

	loginDelay time.Duration
	loginError string
	loginBody  atomic.Value // map[string]any
}

func newAPIServer(t *testing.T, handler http.HandlerFunc) *apiServer {
	t.Helper()
	s := &apiServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == loginPath {
			n := s.logins.Add(1)
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			s.loginBody.Store(body)
			if s.loginDelay > 0 {
				time.Sleep(s.loginDelay)
			}
			if s.loginError != "" {
				writeError(w, s.loginError)
				return
			}
			writeData(w, map[string]any{"token": fmt.Sprintf("token-%d", n), "user": map[string]any{"id": 1}})
			return
		}
		s.requests.Add(1)
		handler(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *apiServer) session() *Session {
	return NewSession(Credentials{
		Email:    "owner@example.com",
		Password: "secret",
		Endpoint: s.URL,
	}, WithLogger(discardLogger()))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": message}})
}

func bearer(r *http.Request) string {
	return r.Header.Get("Authorization")
}
