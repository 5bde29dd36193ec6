// Package session holds the client-side session and data-flow controllers
// shared by the CLI and GUI front-ends: the login/signup/dashboard view
// machine, the CSV upload pipeline that fans one result out to the summary
// and chart renderers, and the transient notice queue.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/api"
	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/state"
)

// View identifies the active authentication view.
type View string

const (
	// ViewLogin shows the credential form.
	ViewLogin View = "login"
	// ViewSignup shows the account creation form.
	ViewSignup View = "signup"
	// ViewDashboard is the authenticated workspace.
	ViewDashboard View = "dashboard"
)

// Submission and validation errors surfaced inline by the views.
var (
	// ErrBusy is returned while a previous submission of the same kind is
	// still in flight. Views disable the trigger control; this guards the
	// controller itself.
	ErrBusy = errors.New("another request is already in flight")

	// ErrInvalidCredentials is the inline message for a rejected login.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrPasswordMismatch is raised client-side before any signup request.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrSignupRejected is the inline message for a failed signup
	// (duplicate username or server error).
	ErrSignupRejected = errors.New("username already exists or server error")
)

// ClientFactory builds an api.Client carrying the given token. Controllers
// rebuild the client whenever the credential changes, so the token is always
// injected explicitly instead of living in shared mutable headers.
type ClientFactory func(token string) *api.Client

// Controller drives the three-state authentication view machine and owns
// the token lifecycle. It is safe for concurrent use.
type Controller struct {
	mu     sync.Mutex
	view   View
	client *api.Client

	tokens    state.TokenStore
	newClient ClientFactory
	logger    *slog.Logger

	loginBusy  bool
	signupBusy bool
}

// NewController creates a controller. The initial view is the dashboard when
// a token is already persisted (optimistic: freshness is not validated with
// the service), otherwise the login form.
func NewController(tokens state.TokenStore, factory ClientFactory, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		view:      ViewLogin,
		tokens:    tokens,
		newClient: factory,
		logger:    logger,
	}
	if tok, err := tokens.Token(); err == nil && tok != "" {
		c.view = ViewDashboard
		c.client = factory(tok)
		logger.Debug("restored session", "token", state.RedactToken(tok))
	} else {
		c.client = factory("")
	}
	return c
}

// CurrentView returns the active view.
func (c *Controller) CurrentView() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Client returns the api client for the current session. After login it
// carries the token; after logout it is anonymous again.
func (c *Controller) Client() *api.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// GoToSignup switches from the login form to the signup form.
func (c *Controller) GoToSignup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view == ViewLogin {
		c.view = ViewSignup
	}
}

// BackToLogin returns from the signup form to the login form.
func (c *Controller) BackToLogin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view == ViewSignup {
		c.view = ViewLogin
	}
}

// Login submits credentials. On success the token is persisted, the session
// client is rebuilt with it, and the view transitions to the dashboard. On
// failure the view is unchanged and the returned error is the inline message.
// At most one login submission may be in flight.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	c.mu.Lock()
	if c.loginBusy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.loginBusy = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loginBusy = false
		c.mu.Unlock()
	}()

	token, err := c.newClient("").Login(ctx, username, password)
	if err != nil {
		c.logger.Warn("login failed", "username", username, "error", err)
		if api.IsUnauthorized(err) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("login failed: %w", err)
	}

	// Persistence is best-effort: a storage failure must not lose the
	// session that the service just granted.
	if err := c.tokens.SetToken(token); err != nil {
		c.logger.Error("failed to persist token", "error", err)
	}

	c.mu.Lock()
	c.view = ViewDashboard
	c.client = c.newClient(token)
	c.mu.Unlock()

	c.logger.Info("logged in", "username", username, "token", state.RedactToken(token))
	return nil
}

// Signup creates an account. The confirm-password check happens client-side
// before any request. On success the view returns to the login form so the
// user can sign in; on failure it stays on signup with an inline error.
func (c *Controller) Signup(ctx context.Context, username, password, confirm string) error {
	if strings.TrimSpace(username) == "" {
		return errors.New("username is required")
	}
	if password != confirm {
		return ErrPasswordMismatch
	}

	c.mu.Lock()
	if c.signupBusy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.signupBusy = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.signupBusy = false
		c.mu.Unlock()
	}()

	if err := c.newClient("").Signup(ctx, username, password); err != nil {
		c.logger.Warn("signup failed", "username", username, "error", err)
		return ErrSignupRejected
	}

	c.mu.Lock()
	c.view = ViewLogin
	c.mu.Unlock()

	c.logger.Info("account created", "username", username)
	return nil
}

// Logout clears the persisted token and returns to the login view,
// regardless of prior state. Storage failures are logged, not surfaced.
func (c *Controller) Logout() {
	if err := c.tokens.Clear(); err != nil {
		c.logger.Error("failed to clear token", "error", err)
	}
	c.mu.Lock()
	c.view = ViewLogin
	c.client = c.newClient("")
	c.mu.Unlock()
	c.logger.Info("logged out")
}
