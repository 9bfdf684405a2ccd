package surehub

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupported is matched by every UnsupportedError.
	ErrUnsupported = errors.New("operation not supported")

	// ErrUnexpectedShape is returned by FetchOne when the response data is not
	// a single JSON object.
	ErrUnexpectedShape = errors.New("unexpected response shape")
)

// expiredTokenPhrase is how the API words an expired or revoked token.
const expiredTokenPhrase = "not be verified"

// APIError is the value of the "error" member of a response envelope.
type APIError struct {
	Message string
	Raw     json.RawMessage
}

// UnmarshalJSON keeps the raw payload and extracts a message when present.
// The message may be a string or a list of strings.
func (e *APIError) UnmarshalJSON(b []byte) error {
	e.Raw = append(json.RawMessage(nil), b...)
	e.Message = ""

	var obj struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(b, &obj); err != nil || len(obj.Message) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(obj.Message, &s); err == nil {
		e.Message = s
		return nil
	}
	var list []string
	if err := json.Unmarshal(obj.Message, &list); err == nil {
		e.Message = strings.Join(list, ",")
	}
	return nil
}

func (e *APIError) Error() string {
	if len(e.Raw) > 0 {
		return string(e.Raw)
	}
	return e.Message
}

// isTokenExpired reports whether the server rejected the bearer token.
// The API has no error code for this, only the message text.
func isTokenExpired(err *APIError) bool {
	return err != nil && strings.Contains(err.Message, expiredTokenPhrase)
}

// AuthError is returned when the login request is rejected.
type AuthError struct {
	Err *APIError
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// CallError is returned when an authenticated call ends with an error
// envelope, either directly or after the expired-token retry.
type CallError struct {
	Path string
	Err  *APIError
}

func (e *CallError) Error() string {
	return fmt.Sprintf("failed %s: %v", e.Path, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// UnsupportedError is returned, without touching the network, when a
// resource kind does not offer the requested operation.
type UnsupportedError struct {
	Kind string
	Op   string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Kind, e.Op)
}

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }
