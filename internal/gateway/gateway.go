// Package gateway is the single chokepoint for API calls. It encodes JSON
// bodies, attaches credentials through an Authenticator and hands
// authentication-rejected responses back to it for refresh-and-retry.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"todo/internal/logging"
	"todo/internal/service"
)

const (
	// DefaultTimeout bounds one Request call, including a refresh-and-retry.
	DefaultTimeout = 10 * time.Second

	// RequestIDHeader carries the per-request id to the server.
	RequestIDHeader = "X-Request-ID"

	maxBodySize = 10 << 20
)

// SendFunc issues a fully prepared request.
type SendFunc func(req *http.Request) (*http.Response, error)

// Authenticator owns the credentials used by the gateway.
type Authenticator interface {
	// Authorize attaches the current access token, if any.
	Authorize(req *http.Request)

	// HandleUnauthorized is called after req was rejected with 401.
	// It refreshes the access token and retries req once via send.
	// body is the encoded payload of req, nil if none.
	HandleUnauthorized(ctx context.Context, req *http.Request, body []byte, send SendFunc) (*http.Response, error)
}

// Response is a fully read API response. Non-2xx responses are returned
// as-is so callers can inspect server error detail.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// Options configures a Gateway.
type Options struct {
	// BaseURL is prefixed to every endpoint, e.g. "http://localhost:8000/api".
	BaseURL string

	// HTTPClient defaults to a client without its own timeout.
	HTTPClient *http.Client

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	Logger *zap.Logger
}

// Gateway sends API requests.
type Gateway struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger

	mu   sync.RWMutex
	auth Authenticator
}

// New creates a Gateway.
func New(opts Options) *Gateway {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// SetAuthenticator installs the credential owner. Until set, authenticated
// requests go out without credentials and a 401 is terminal.
func (g *Gateway) SetAuthenticator(a Authenticator) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.auth = a
}

func (g *Gateway) authenticator() Authenticator {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.auth
}

// Request issues method on endpoint with body encoded as JSON.
//
// With requireAuth, the access token is attached and a 401 answer is
// handed to the Authenticator for one refresh-and-retry. If that fails the
// returned error is a SessionExpired *service.Error. A request that got no
// response at all fails with a Transport error. Any other status is
// returned as a Response with a nil error.
func (g *Gateway) Request(ctx context.Context, method, endpoint string, body any, requireAuth bool) (*Response, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reqID := uuid.NewString()
	ctx = logging.ContextWithRequestID(ctx, reqID)
	log := logging.WithRequestID(ctx, g.logger).With(
		zap.String("method", method),
		zap.String("endpoint", endpoint),
	)

	req, err := g.newRequest(ctx, method, endpoint, payload, reqID)
	if err != nil {
		return nil, err
	}

	auth := g.authenticator()
	if requireAuth && auth != nil {
		auth.Authorize(req)
	}

	start := time.Now()
	resp, err := g.send(req)
	if err != nil {
		log.Warn("request failed", zap.Error(err))
		return nil, service.Transport(err)
	}

	if resp.StatusCode == http.StatusUnauthorized && requireAuth {
		if auth == nil {
			rejected, rerr := readResponse(resp)
			if rerr != nil {
				return nil, service.SessionExpired(service.AuthRejected(resp.StatusCode, nil))
			}
			return nil, service.SessionExpired(service.AuthRejected(rejected.Status, rejected.Body))
		}
		drain(resp)
		log.Debug("access token rejected, refreshing")
		resp, err = auth.HandleUnauthorized(ctx, req, payload, g.send)
		if err != nil {
			log.Info("refresh-and-retry failed", zap.Error(err))
			return nil, err
		}
	}

	out, err := readResponse(resp)
	if err != nil {
		log.Warn("reading response failed", zap.Error(err))
		return nil, service.Transport(err)
	}
	log.Debug("request done",
		zap.Int("status", out.Status),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func (g *Gateway) newRequest(ctx context.Context, method, endpoint string, payload []byte, reqID string) (*http.Request, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)
	return req, nil
}

func (g *Gateway) send(req *http.Request) (*http.Response, error) {
	return g.client.Do(req)
}

// Rewind returns a copy of req carrying a fresh reader over body, suitable
// for re-sending after the original body was consumed.
func Rewind(ctx context.Context, req *http.Request, body []byte) *http.Request {
	retry := req.Clone(ctx)
	if body == nil {
		retry.Body = nil
		retry.GetBody = nil
		return retry
	}
	retry.Body = io.NopCloser(bytes.NewReader(body))
	retry.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	retry.ContentLength = int64(len(body))
	return retry
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.([]byte); ok {
		return raw, nil
	}
	return json.Marshal(body)
}

func readResponse(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
	}, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	resp.Body.Close()
}
