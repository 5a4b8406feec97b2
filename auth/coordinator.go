// Package auth owns the login, refresh, and expiry-decision protocol. It is
// the only component that mutates session credentials as a side effect of a
// network call: a successful login or refresh commits the full credential
// set atomically, any failure resets the token and tenant fields.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/nivexa/go-console-client/gateway"
	"github.com/nivexa/go-console-client/session"
	"github.com/nivexa/go-console-client/tenants"
	"github.com/nivexa/go-console-client/token"
	"github.com/nivexa/go-console-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	defaultLoginPath   = "auth/login/"
	defaultRefreshPath = "auth/refresh/"

	refreshGroupKey = "refresh"
)

// State describes the coordinator's per-session state, derived from the
// stored credentials rather than held in memory so it survives reloads.
type State string

const (
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
)

// Requester is the slice of the gateway the coordinator needs.
type Requester interface {
	Post(ctx context.Context, path string, body any, headers http.Header) gateway.Result
}

// tokenResponse is the wire shape of the login and refresh endpoints.
type tokenResponse struct {
	Access           string          `json:"access"`
	Refresh          string          `json:"refresh"`
	ExpiresIn        int64           `json:"expires_in"`
	RefreshExpiresIn int64           `json:"refresh_expires_in"`
	User             *users.Profile  `json:"user"`
	Tenant           *tenants.Tenant `json:"tenant"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Coordinator drives authenticate/refresh/clear against the backend and the
// session store. Concurrent refreshes are coalesced: all callers share one
// in-flight refresh request and observe its result.
type Coordinator struct {
	gw          Requester
	sessions    *session.Store
	refreshes   singleflight.Group
	log         zerolog.Logger
	nowTime     func() time.Time // nowTime function (injectable for testing)
	loginPath   string
	refreshPath string
}

// Option defines a function type to modify the Coordinator instance.
type Option func(*Coordinator)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Coordinator) {
		c.nowTime = nowFunc
	}
}

// WithLogger sets the logger for state-transition logging.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// WithEndpoints overrides the login and refresh paths relative to the API root.
func WithEndpoints(loginPath, refreshPath string) Option {
	return func(c *Coordinator) {
		c.loginPath = loginPath
		c.refreshPath = refreshPath
	}
}

// NewCoordinator initializes a Coordinator with required dependencies.
func NewCoordinator(gw Requester, sessions *session.Store, options ...Option) (*Coordinator, error) {
	if gw == nil {
		return nil, errors.New("[NewCoordinator] gateway is required")
	}
	if sessions == nil {
		return nil, errors.New("[NewCoordinator] sessions store is required")
	}

	coordinator := &Coordinator{
		gw:          gw,
		sessions:    sessions,
		log:         zerolog.Nop(),
		nowTime:     time.Now,
		loginPath:   defaultLoginPath,
		refreshPath: defaultRefreshPath,
	}
	for _, opt := range options {
		opt(coordinator)
	}
	return coordinator, nil
}

// Authenticate performs the login flow. Empty credentials fail locally with
// MissingCredentialsErr before any network call. A transport or server
// failure, and a success-shaped response lacking a tenant schema, both reset
// the stored token and tenant fields and report failure with the server's
// message when one was provided.
func (c *Coordinator) Authenticate(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return MissingCredentialsErr
	}

	result := c.gw.Post(ctx, c.loginPath, credentials{Username: username, Password: password}, nil)
	if err := c.commit(result); err != nil {
		c.log.Debug().Str("username", username).Err(err).Msg("authentication failed")
		return errors.Wrap(AuthenticationFailedErr, err.Error())
	}
	c.log.Info().Str("username", username).Msg("authenticated")
	return nil
}

// Refresh exchanges the stored refresh token for a new credential set. An
// absent refresh token is sent as the empty string: the backend is the
// source of truth on rejection. Concurrent callers share one request.
func (c *Coordinator) Refresh(ctx context.Context) error {
	_, err, _ := c.refreshes.Do(refreshGroupKey, func() (any, error) {
		refreshToken, err := c.sessions.RefreshToken()
		if err != nil {
			return nil, errors.Wrap(err, "[Coordinator.Refresh] sessions.RefreshToken")
		}
		result := c.gw.Post(ctx, c.refreshPath, refreshRequest{Refresh: refreshToken}, nil)
		if err := c.commit(result); err != nil {
			c.log.Debug().Err(err).Msg("refresh failed")
			return nil, errors.Wrap(RefreshFailedErr, err.Error())
		}
		c.log.Debug().Msg("refreshed credentials")
		return nil, nil
	})
	return err
}

// commit applies the tenant-presence rule and the all-or-nothing session
// write. Any failure path resets the token and tenant fields before
// returning, so a failed exchange never leaves stale credentials behind.
func (c *Coordinator) commit(result gateway.Result) error {
	if !result.Success {
		c.reset()
		if result.Error != "" {
			return errors.New(result.Error)
		}
		return errors.New("request failed")
	}

	var payload tokenResponse
	if err := result.Decode(&payload); err != nil {
		c.reset()
		return errors.Wrap(err, "decode token response")
	}

	// A transport-successful response without a resolvable tenant is an
	// authentication failure: there is no host to route follow-up calls to.
	if err := payload.Tenant.Validate(); err != nil {
		c.reset()
		return TenantUnresolvedErr
	}

	accessTTL := payload.ExpiresIn
	if accessTTL <= 0 {
		// Some backend versions omit expires_in; fall back to the JWT exp claim.
		ttl, err := token.TTLSeconds(payload.Access, c.nowTime())
		if err != nil {
			c.reset()
			return errors.Wrap(err, "resolve access token ttl")
		}
		accessTTL = ttl
	}
	refreshTTL := payload.RefreshExpiresIn
	if refreshTTL <= 0 {
		refreshTTL = accessTTL
	}

	err := c.sessions.SetAuthenticated(
		payload.Access,
		payload.Refresh,
		accessTTL,
		refreshTTL,
		payload.Tenant.SchemaName,
		payload.User,
		payload.Tenant,
	)
	return errors.Wrap(err, "commit session")
}

// reset clears token and tenant fields; a storage failure here is logged
// rather than returned so it cannot mask the auth failure being reported.
func (c *Coordinator) reset() {
	if err := c.sessions.ResetCredentials(); err != nil {
		c.log.Error().Err(err).Msg("failed to reset credentials")
	}
}

// IsAccessTokenValid reports whether the stored access token is present and
// unexpired. Pure session-store read.
func (c *Coordinator) IsAccessTokenValid() bool {
	return c.sessions.IsAccessTokenValid()
}

// SessionUsable reports whether the caller should treat the session as
// usable. An absent expiry means unusable; an unexpired token means usable;
// an expired token triggers an inline Refresh and reports its outcome. A
// false return means the caller must redirect to login. Note this does not
// cover a token that is unexpired but rejected server-side.
func (c *Coordinator) SessionUsable(ctx context.Context) bool {
	expiry, ok, err := c.sessions.AccessExpiry()
	if err != nil || !ok {
		return false
	}
	if c.nowTime().Before(expiry) {
		return true
	}
	return c.Refresh(ctx) == nil
}

// ClearSession resets the session store to defaults. No network call is made;
// there is no server-side token revocation.
func (c *Coordinator) ClearSession() error {
	if err := c.sessions.Clear(); err != nil {
		return errors.Wrap(err, "[Coordinator.ClearSession] sessions.Clear")
	}
	c.log.Info().Msg("session cleared")
	return nil
}

// State derives the current session state from the stored credentials.
func (c *Coordinator) State() State {
	if c.sessions.IsAccessTokenValid() {
		return StateAuthenticated
	}
	return StateAnonymous
}
