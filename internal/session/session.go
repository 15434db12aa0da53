// Package session owns the access/refresh token pair. It logs users in and
// out, attaches the bearer token to outgoing requests and performs a
// coalesced refresh-and-retry when the server rejects the access token.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"todo/internal/gateway"
	"todo/internal/service"
	"todo/internal/store"
)

// API endpoints used by the session manager.
const (
	TokenEndpoint    = "/token/"
	RefreshEndpoint  = "/token/refresh/"
	RegisterEndpoint = "/users/register/"
)

// Requester is the part of the gateway the manager uses for token calls.
type Requester interface {
	Request(ctx context.Context, method, endpoint string, body any, requireAuth bool) (*gateway.Response, error)
}

// Manager holds the token pair in memory, mirrored to the credential store.
// It implements gateway.Authenticator and oauth2.TokenSource.
type Manager struct {
	api    Requester
	creds  *store.Credentials
	logger *zap.Logger

	mu        sync.RWMutex
	token     *oauth2.Token
	user      *service.User
	onExpired []func()

	// refreshes coalesces concurrent refreshes keyed by the stale access token.
	refreshes singleflight.Group
}

// New creates a Manager and restores any persisted token pair and user.
// Unreadable persisted state is treated as logged out.
func New(api Requester, creds *store.Credentials, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{api: api, creds: creds, logger: logger}

	token, err := creds.Tokens()
	if err != nil {
		logger.Warn("discarding unreadable token", zap.Error(err))
		_ = creds.ClearTokens()
		return m
	}
	if token != nil && token.AccessToken != "" {
		m.token = token
		if user, err := creds.User(); err == nil {
			m.user = user
		}
	}
	return m
}

// OnExpired registers fn to run when the session is cleared because a
// refresh failed. fn runs without the manager lock held.
func (m *Manager) OnExpired(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpired = append(m.onExpired, fn)
}

// AccessToken returns the current access token or "".
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil {
		return ""
	}
	return m.token.AccessToken
}

// Authenticated reports whether an access token is held.
func (m *Manager) Authenticated() bool {
	return m.AccessToken() != ""
}

// Token implements oauth2.TokenSource. It returns a copy of the current pair.
func (m *Manager) Token() (*oauth2.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil || m.token.AccessToken == "" {
		return nil, service.ErrNotAuthenticated
	}
	tok := *m.token
	return &tok, nil
}

// CurrentUser returns the cached user, or nil when logged out.
func (m *Manager) CurrentUser() *service.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Login exchanges username and password for a token pair and persists it.
// On failure the stored state is left untouched.
func (m *Manager) Login(ctx context.Context, username, password string) (service.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return service.User{}, service.Validation("username", "username is required")
	}
	if password == "" {
		return service.User{}, service.Validation("password", "password is required")
	}

	resp, err := m.api.Request(ctx, http.MethodPost, TokenEndpoint, credentialsRequest{username, password}, false)
	if err != nil {
		return service.User{}, err
	}
	if !resp.OK() {
		return service.User{}, service.RequestFailed("login failed", resp.Status, resp.Body)
	}

	var data tokenResponse
	if err := resp.Decode(&data); err != nil || data.Access == "" {
		return service.User{}, service.RequestFailed("login failed", resp.Status, []byte(`{"detail":"malformed token response"}`))
	}

	token := &oauth2.Token{
		AccessToken:  data.Access,
		RefreshToken: data.Refresh,
		TokenType:    "Bearer",
		Expiry:       accessExpiry(data.Access),
	}
	user := service.User{Username: username}

	m.mu.Lock()
	m.token = token
	m.user = &user
	m.mu.Unlock()

	if err := m.creds.SaveTokens(token); err != nil {
		m.logger.Warn("persisting token failed", zap.Error(err))
	}
	if err := m.creds.SaveUser(user); err != nil {
		m.logger.Warn("persisting user failed", zap.Error(err))
	}
	m.logger.Debug("logged in", zap.String("username", username))
	return user, nil
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// Register creates an account. It does not log the user in.
// A confirm that differs from password is rejected before any request.
func (m *Manager) Register(ctx context.Context, username, email, password, confirm string) (service.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return service.User{}, service.Validation("username", "username is required")
	}
	if password == "" {
		return service.User{}, service.Validation("password", "password is required")
	}
	if password != confirm {
		return service.User{}, service.Validation("confirm_password", "passwords do not match")
	}

	body := registerRequest{Username: username, Password: password, Email: strings.TrimSpace(email)}
	resp, err := m.api.Request(ctx, http.MethodPost, RegisterEndpoint, body, false)
	if err != nil {
		return service.User{}, err
	}
	if !resp.OK() {
		return service.User{}, service.RequestFailed("registration failed", resp.Status, resp.Body)
	}

	user := service.User{Username: username, Email: body.Email}
	var created service.User
	if resp.Decode(&created) == nil && created.Username != "" {
		user = created
	}
	return user, nil
}

// Logout clears the in-memory and persisted token pair. It never fails.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.token = nil
	m.user = nil
	m.mu.Unlock()

	if err := m.creds.ClearTokens(); err != nil {
		m.logger.Warn("clearing persisted token failed", zap.Error(err))
	}
}

// Authorize attaches the current access token to req. Without a token the
// request goes out unauthenticated.
func (m *Manager) Authorize(req *http.Request) {
	tok, err := m.Token()
	if err != nil {
		return
	}
	tok.SetAuthHeader(req)
}

// HandleUnauthorized refreshes the access token req was sent with and
// retries req once with the new one. Concurrent callers holding the same
// stale token share a single refresh call.
func (m *Manager) HandleUnauthorized(ctx context.Context, req *http.Request, body []byte, send gateway.SendFunc) (*http.Response, error) {
	access, err := m.refresh(ctx, bearerToken(req))
	if err != nil {
		return nil, err
	}

	retry := gateway.Rewind(ctx, req, body)
	(&oauth2.Token{AccessToken: access, TokenType: "Bearer"}).SetAuthHeader(retry)

	resp, err := send(retry)
	if err != nil {
		return nil, service.Transport(err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		m.expire("retried request rejected")
		return nil, service.SessionExpired(service.AuthRejected(resp.StatusCode, nil))
	}
	return resp, nil
}

// refresh returns an access token newer than stale, minting one if needed.
func (m *Manager) refresh(ctx context.Context, stale string) (string, error) {
	if access, ok, err := m.currentAfter(stale); err != nil || ok {
		return access, err
	}

	v, err, shared := m.refreshes.Do(stale, func() (any, error) {
		// A flight for the same stale token may have finished between the
		// check above and joining the group.
		if access, ok, err := m.currentAfter(stale); err != nil || ok {
			return access, err
		}
		m.mu.RLock()
		tok := m.token
		m.mu.RUnlock()
		if tok == nil {
			return "", service.SessionExpired(service.ErrNotAuthenticated)
		}
		return m.doRefresh(context.WithoutCancel(ctx), tok.RefreshToken)
	})
	if err != nil {
		return "", err
	}
	m.logger.Debug("access token refreshed", zap.Bool("shared", shared))
	return v.(string), nil
}

// currentAfter reports whether the held access token already differs from
// stale. It fails when there is nothing to refresh with.
func (m *Manager) currentAfter(stale string) (string, bool, error) {
	m.mu.RLock()
	tok := m.token
	m.mu.RUnlock()

	if tok == nil {
		return "", false, service.SessionExpired(service.ErrNotAuthenticated)
	}
	if tok.RefreshToken == "" {
		m.expire("no refresh token")
		return "", false, service.SessionExpired(errors.New("no refresh token"))
	}
	if tok.AccessToken != "" && tok.AccessToken != stale {
		return tok.AccessToken, true, nil
	}
	return "", false, nil
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (m *Manager) doRefresh(ctx context.Context, refreshToken string) (string, error) {
	resp, err := m.api.Request(ctx, http.MethodPost, RefreshEndpoint, refreshRequest{refreshToken}, false)
	if err != nil {
		// Transport failures keep the token pair.
		m.logger.Warn("refresh request failed", zap.Error(err))
		return "", err
	}
	if !resp.OK() {
		m.expire("refresh rejected")
		return "", service.SessionExpired(service.RequestFailed("refresh rejected", resp.Status, resp.Body))
	}

	var data tokenResponse
	if err := resp.Decode(&data); err != nil || data.Access == "" {
		m.expire("malformed refresh response")
		return "", service.SessionExpired(errors.New("malformed refresh response"))
	}

	m.mu.Lock()
	if m.token == nil {
		// Logged out while the refresh was in flight.
		m.mu.Unlock()
		return "", service.SessionExpired(service.ErrNotAuthenticated)
	}
	next := *m.token
	next.AccessToken = data.Access
	next.Expiry = accessExpiry(data.Access)
	if data.Refresh != "" {
		next.RefreshToken = data.Refresh
	}
	m.token = &next
	m.mu.Unlock()

	if err := m.creds.SaveTokens(&next); err != nil {
		m.logger.Warn("persisting refreshed token failed", zap.Error(err))
	}
	return data.Access, nil
}

// expire clears the session after a failed refresh and notifies listeners
// once per held token pair.
func (m *Manager) expire(reason string) {
	m.mu.Lock()
	if m.token == nil {
		m.mu.Unlock()
		return
	}
	m.token = nil
	m.user = nil
	hooks := append([]func(){}, m.onExpired...)
	m.mu.Unlock()

	m.logger.Info("session expired", zap.String("reason", reason))
	if err := m.creds.ClearTokens(); err != nil {
		m.logger.Warn("clearing persisted token failed", zap.Error(err))
	}
	for _, fn := range hooks {
		fn()
	}
}

// bearerToken extracts the access token a request was sent with.
func bearerToken(req *http.Request) string {
	return strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
}

// accessExpiry reads the exp claim of a JWT access token without verifying
// it. The value is informational; a zero time means unknown.
func accessExpiry(access string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
