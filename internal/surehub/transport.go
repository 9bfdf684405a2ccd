package surehub

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	proxy "github.com/cloudfoundry/socks5-proxy"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Request is a single call to the API.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response carries the raw body of an API response. Errors are reported
// inside the JSON envelope, so the status code is informational.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport performs API requests. Retries, TLS and timeouts are the
// transport's business; the Session only adds authentication.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TransportOptions configures an HTTPTransport.
type TransportOptions struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second, <= 0 disables limiting
	Burst     int
	HTTPProxy string
	// AllProxy tunnels connections through an SSH jump host, in the form
	// ssh+socks5://user@host:port?private-key=/path/to/key
	AllProxy string
	Logger   *slog.Logger
}

// HTTPTransport is the default Transport, backed by net/http.
type HTTPTransport struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewHTTPTransport builds a transport from opts. Invalid proxy settings are
// logged and ignored.
func NewHTTPTransport(opts TransportOptions) *HTTPTransport {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.HTTPProxy != "" {
		proxyURL, err := url.Parse(opts.HTTPProxy)
		if err != nil {
			logger.Warn("invalid proxy URL, not using a proxy", "proxy", opts.HTTPProxy, "error", err)
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	if opts.AllProxy != "" {
		if dial := socks5DialContext(opts.AllProxy, logger); dial != nil {
			transport.DialContext = dial
		}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &HTTPTransport{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		limiter: limiter,
		logger:  logger,
	}
}

// SetHTTPClient overrides the underlying client (useful for testing).
func (t *HTTPTransport) SetHTTPClient(client *http.Client) {
	t.client = client
}

// Do sends req and returns the full response body.
func (t *HTTPTransport) Do(ctx context.Context, r *Request) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range r.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	t.logger.Debug("api request",
		"request_id", requestID,
		"method", r.Method,
		"url", redactURL(req.URL),
		"status", resp.StatusCode,
		"duration", time.Since(start))

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

func redactURL(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}

// socks5DialContext creates a dial function for SSH+SOCKS5 proxy connections.
func socks5DialContext(allProxy string, logger *slog.Logger) func(ctx context.Context, network, address string) (net.Conn, error) {
	allProxy = strings.TrimPrefix(allProxy, "ssh+")

	proxyURL, err := url.Parse(allProxy)
	if err != nil {
		logger.Error("failed to parse all_proxy URL", "error", err)
		return nil
	}

	username := ""
	if proxyURL.User != nil {
		username = proxyURL.User.Username()
	}

	keyPath := proxyURL.Query().Get("private-key")
	if keyPath == "" {
		logger.Error("all_proxy is missing the private-key query parameter")
		return nil
	}
	key, err := os.ReadFile(keyPath)
	if err != nil {
		logger.Error("failed to read SSH private key", "path", keyPath, "error", err)
		return nil
	}

	socks5Proxy := proxy.NewSocks5Proxy(proxy.NewHostKey(), slog.NewLogLogger(logger.Handler(), slog.LevelDebug), time.Minute)

	var (
		dialer proxy.DialFunc
		mu     sync.Mutex
	)
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		if dialer == nil {
			d, err := socks5Proxy.Dialer(username, string(key), proxyURL.Host)
			if err != nil {
				return nil, fmt.Errorf("error creating SOCKS5 dialer: %w", err)
			}
			dialer = d
		}
		return dialer(network, address)
	}
}
