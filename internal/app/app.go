// Package app wires the credential store, gateway, session manager, filter
// state and list engine into one client and tracks which view is active.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"todo/internal/backend/todoapi"
	"todo/internal/config"
	"todo/internal/filter"
	"todo/internal/gateway"
	"todo/internal/listsync"
	"todo/internal/service"
	"todo/internal/session"
	"todo/internal/store"
)

// View is the surface the user is on.
type View int

const (
	// ViewAuth is the login/register surface.
	ViewAuth View = iota
	// ViewList is the task list.
	ViewList
)

func (v View) String() string {
	if v == ViewList {
		return "list"
	}
	return "auth"
}

// Options configures an App.
type Options struct {
	Config *config.Config

	// KV defaults to the bbolt file at Config.StatePath().
	KV store.KV

	HTTPClient *http.Client
	Logger     *zap.Logger

	// Service replaces the HTTP task backend, for tests.
	Service service.Service
}

// Status describes the current session.
type Status struct {
	Authenticated bool
	User          *service.User

	// Expiry is the access token expiry, zero if unknown.
	Expiry time.Time
}

// App is the task-list client.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	kv     store.KV

	session *session.Manager
	filters *filter.State
	engine  *listsync.Engine

	mu   sync.RWMutex
	view View
}

// New builds an App and restores persisted session and filter state.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	kv := opts.KV
	if kv == nil {
		if err := cfg.EnsureDir(); err != nil {
			return nil, fmt.Errorf("create config dir: %w", err)
		}
		bolt, err := store.OpenBolt(cfg.StatePath(), "")
		if err != nil {
			return nil, fmt.Errorf("open state: %w", err)
		}
		kv = bolt
	}
	creds := store.NewCredentials(kv)

	gw := gateway.New(gateway.Options{
		BaseURL:    cfg.APIURL,
		HTTPClient: opts.HTTPClient,
		Timeout:    cfg.Timeout,
		Logger:     logger.Named("gateway"),
	})
	sess := session.New(gw, creds, logger.Named("session"))
	gw.SetAuthenticator(sess)

	svc := opts.Service
	if svc == nil {
		svc = todoapi.New(gw)
	}

	filters := filter.New(creds, logger.Named("filter"))
	filters.Restore()

	a := &App{
		cfg:     cfg,
		logger:  logger,
		kv:      kv,
		session: sess,
		filters: filters,
		engine:  listsync.New(svc, filters, logger.Named("listsync")),
	}
	if sess.Authenticated() {
		a.view = ViewList
	}
	sess.OnExpired(a.sessionExpired)
	return a, nil
}

// Config returns the configuration the App was built with.
func (a *App) Config() *config.Config { return a.cfg }

// Engine returns the list engine.
func (a *App) Engine() *listsync.Engine { return a.engine }

// Filters returns the filter state.
func (a *App) Filters() *filter.State { return a.filters }

// Session returns the session manager.
func (a *App) Session() *session.Manager { return a.session }

// View returns the active view.
func (a *App) View() View {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view
}

func (a *App) setView(v View) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.view = v
}

// Authenticated reports whether a session is held.
func (a *App) Authenticated() bool {
	return a.session.Authenticated()
}

// Status returns the current session details.
func (a *App) Status() Status {
	st := Status{Authenticated: a.session.Authenticated(), User: a.session.CurrentUser()}
	if tok, err := a.session.Token(); err == nil {
		st.Expiry = tok.Expiry
	}
	return st
}

// Start loads the selected page when a session is held.
func (a *App) Start(ctx context.Context) error {
	if !a.session.Authenticated() {
		a.setView(ViewAuth)
		return nil
	}
	a.setView(ViewList)
	return a.engine.Fetch(ctx)
}

// Login authenticates and loads page 1 of the current selection.
// The returned error is the fetch error when login succeeded but the
// first page could not be loaded.
func (a *App) Login(ctx context.Context, username, password string) (service.User, error) {
	user, err := a.session.Login(ctx, username, password)
	if err != nil {
		return service.User{}, err
	}
	a.setView(ViewList)
	a.filters.SetPage(1)
	return user, a.engine.Fetch(ctx)
}

// Register creates an account. The user stays on the auth view.
func (a *App) Register(ctx context.Context, username, email, password, confirm string) (service.User, error) {
	return a.session.Register(ctx, username, email, password, confirm)
}

// Logout clears the session and the displayed list.
func (a *App) Logout() {
	a.session.Logout()
	a.engine.Reset()
	a.setView(ViewAuth)
}

func (a *App) sessionExpired() {
	a.logger.Info("session expired, returning to login")
	a.engine.Reset()
	a.setView(ViewAuth)
}

// Close flushes buffered log entries and releases the state store.
func (a *App) Close() error {
	_ = a.logger.Sync()
	return a.kv.Close()
}
