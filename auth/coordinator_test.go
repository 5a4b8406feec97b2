package auth_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/nivexa/go-console-client/auth"
	"github.com/nivexa/go-console-client/gateway"
	"github.com/nivexa/go-console-client/session"
	fakesessionrepo "github.com/nivexa/go-console-client/session/repofakes"
	"github.com/stretchr/testify/require"
)

const (
	testUserEmail    = "a@b.com"
	testUserPassword = "x"
	testSchema       = "acme"
	testTenantDomain = "console-api.example.com"
	testAccessToken  = "T1"
	testRefreshToken = "R1"
)

const loginResponse = `{
	"access": "T1",
	"refresh": "R1",
	"expires_in": 3600,
	"refresh_expires_in": 604800,
	"user": {"email": "a@b.com"},
	"tenant": {"schema_name": "acme", "name": "Acme"}
}`

// routingDoer answers requests by path suffix and counts calls per route.
// Safe for concurrent use.
type routingDoer struct {
	mu     sync.Mutex
	routes map[string]func() (*http.Response, error)
	calls  map[string]int
	bodies map[string][]string
	delay  time.Duration
}

func newRoutingDoer() *routingDoer {
	return &routingDoer{
		routes: make(map[string]func() (*http.Response, error)),
		calls:  make(map[string]int),
		bodies: make(map[string][]string),
	}
}

func (d *routingDoer) handle(suffix string, respond func() (*http.Response, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[suffix] = respond
}

func (d *routingDoer) callCount(suffix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[suffix]
}

func (d *routingDoer) bodiesFor(suffix string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.bodies[suffix]...)
}

func (d *routingDoer) Do(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
	}

	d.mu.Lock()
	var matched string
	var respond func() (*http.Response, error)
	for suffix, handler := range d.routes {
		if strings.HasSuffix(strings.TrimSuffix(req.URL.Path, "/"), strings.TrimSuffix(suffix, "/")) {
			matched, respond = suffix, handler
		}
	}
	if respond == nil {
		d.mu.Unlock()
		return jsonResponse(http.StatusNotFound, `{"error":"no route"}`), nil
	}
	d.calls[matched]++
	d.bodies[matched] = append(d.bodies[matched], body)
	delay := d.delay
	d.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return respond()
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type testFixture struct {
	repo        *fakesessionrepo.FakeSessionRepo
	sessions    *session.Store
	doer        *routingDoer
	gw          *gateway.Gateway
	coordinator *auth.Coordinator
	now         time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	fx := &testFixture{
		repo: fakesessionrepo.NewFakeSessionRepo(),
		doer: newRoutingDoer(),
		now:  time.Unix(1_700_000_000, 0),
	}
	nowFunc := func() time.Time { return fx.now }

	sessions, err := session.New(fx.repo, session.WithNowTime(nowFunc))
	require.NoError(t, err)
	fx.sessions = sessions

	gw, err := gateway.New(sessions, gateway.Config{
		Scheme:        "https",
		TenantDomain:  testTenantDomain,
		DefaultOrigin: "https://api.example.com",
	}, gateway.WithHTTPClient(fx.doer))
	require.NoError(t, err)
	fx.gw = gw

	coordinator, err := auth.NewCoordinator(gw, sessions, auth.WithNowTime(nowFunc))
	require.NoError(t, err)
	fx.coordinator = coordinator
	return fx
}

func (fx *testFixture) advance(d time.Duration) {
	fx.now = fx.now.Add(d)
}

func (fx *testFixture) login(t *testing.T) {
	t.Helper()
	fx.doer.handle("auth/login/", func() (*http.Response, error) {
		return jsonResponse(http.StatusOK, loginResponse), nil
	})
	require.NoError(t, fx.coordinator.Authenticate(context.Background(), testUserEmail, testUserPassword))
}

func TestNewCoordinator_Validation(t *testing.T) {
	fx := setupTestFixture(t)

	_, err := auth.NewCoordinator(nil, fx.sessions)
	require.Error(t, err)

	_, err = auth.NewCoordinator(fx.gw, nil)
	require.Error(t, err)
}

func TestAuthenticate_EmptyCredentialsNeverHitNetwork(t *testing.T) {
	fx := setupTestFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, fx.coordinator.Authenticate(ctx, "", testUserPassword), auth.MissingCredentialsErr)
	require.ErrorIs(t, fx.coordinator.Authenticate(ctx, testUserEmail, ""), auth.MissingCredentialsErr)
	require.Equal(t, 0, fx.doer.callCount("auth/login/"))
}

func TestAuthenticate_SuccessEndToEnd(t *testing.T) {
	fx := setupTestFixture(t)
	fx.login(t)

	require.Equal(t, auth.StateAuthenticated, fx.coordinator.State())
	require.True(t, fx.coordinator.IsAccessTokenValid())

	// All seven session fields committed as one group.
	snapshot := fx.repo.Snapshot()
	require.Len(t, snapshot, 7)
	require.Equal(t, testAccessToken, snapshot[session.KeyAccessToken])
	require.Equal(t, testRefreshToken, snapshot[session.KeyRefreshToken])
	require.Equal(t, testSchema, snapshot[session.KeySchemaName])

	// Gateway now targets the tenant host with the new bearer token.
	base, err := fx.gw.BaseURL()
	require.NoError(t, err)
	require.Equal(t, "https://acme.console-api.example.com/api/", base)

	fx.doer.handle("products", func() (*http.Response, error) {
		return jsonResponse(http.StatusOK, `[]`), nil
	})
	result := fx.gw.Get(context.Background(), "products", nil)
	require.True(t, result.Success)
	require.Equal(t, 1, fx.doer.callCount("products"))

	user, err := fx.sessions.UserProfile()
	require.NoError(t, err)
	require.Equal(t, testUserEmail, user.Email)

	tenant, err := fx.sessions.TenantProfile()
	require.NoError(t, err)
	require.Equal(t, testSchema, tenant.SchemaName)
}

func TestAuthenticate_MissingTenantSchemaClearsCredentials(t *testing.T) {
	fx := setupTestFixture(t)

	// Transport-successful response without a resolvable tenant.
	fx.doer.handle("auth/login/", func() (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"access":"T1","refresh":"R1","expires_in":3600,"refresh_expires_in":604800,"user":{"email":"a@b.com"},"tenant":{}}`), nil
	})

	err := fx.coordinator.Authenticate(context.Background(), testUserEmail, testUserPassword)
	require.ErrorIs(t, err, auth.AuthenticationFailedErr)
	require.Contains(t, err.Error(), "tenant")

	require.False(t, fx.coordinator.IsAccessTokenValid())
	schema, err := fx.sessions.Tenant()
	require.NoError(t, err)
	require.Equal(t, "", schema)
}

func TestAuthenticate_ServerErrorSurfacesMessage(t *testing.T) {
	fx := setupTestFixture(t)

	fx.doer.handle("auth/login/", func() (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"error":"invalid credentials"}`), nil
	})

	err := fx.coordinator.Authenticate(context.Background(), testUserEmail, "wrong")
	require.ErrorIs(t, err, auth.AuthenticationFailedErr)
	require.Contains(t, err.Error(), "invalid credentials")
	require.Equal(t, auth.StateAnonymous, fx.coordinator.State())
}

func TestRefresh(t *testing.T) {
	t.Run("replaces credential set", func(t *testing.T) {
		fx := setupTestFixture(t)
		fx.login(t)
		fx.advance(2 * time.Hour) // access token now expired
		require.False(t, fx.coordinator.IsAccessTokenValid())

		fx.doer.handle("auth/refresh/", func() (*http.Response, error) {
			return jsonResponse(http.StatusOK, strings.ReplaceAll(loginResponse, "T1", "T2")), nil
		})
		require.NoError(t, fx.coordinator.Refresh(context.Background()))

		token, err := fx.sessions.AccessToken()
		require.NoError(t, err)
		require.Equal(t, "T2", token)

		expiry, ok, err := fx.sessions.AccessExpiry()
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, expiry.After(fx.now))

		// The stored refresh token was sent in the request body.
		bodies := fx.doer.bodiesFor("auth/refresh/")
		require.Len(t, bodies, 1)
		require.JSONEq(t, `{"refresh":"R1"}`, bodies[0])
	})

	t.Run("absent refresh token is sent as empty string", func(t *testing.T) {
		fx := setupTestFixture(t)
		fx.doer.handle("auth/refresh/", func() (*http.Response, error) {
			return jsonResponse(http.StatusUnauthorized, `{"error":"token invalid"}`), nil
		})

		err := fx.coordinator.Refresh(context.Background())
		require.ErrorIs(t, err, auth.RefreshFailedErr)

		bodies := fx.doer.bodiesFor("auth/refresh/")
		require.Len(t, bodies, 1)
		require.JSONEq(t, `{"refresh":""}`, bodies[0])
	})

	t.Run("rejection clears token and tenant fields", func(t *testing.T) {
		fx := setupTestFixture(t)
		fx.login(t)
		fx.advance(2 * time.Hour)

		fx.doer.handle("auth/refresh/", func() (*http.Response, error) {
			return jsonResponse(http.StatusUnauthorized, `{"error":"token invalid"}`), nil
		})
		require.ErrorIs(t, fx.coordinator.Refresh(context.Background()), auth.RefreshFailedErr)

		require.Equal(t, auth.StateAnonymous, fx.coordinator.State())
		schema, err := fx.sessions.Tenant()
		require.NoError(t, err)
		require.Equal(t, "", schema)
	})
}

func TestSessionUsable(t *testing.T) {
	t.Run("absent expiry is unusable", func(t *testing.T) {
		fx := setupTestFixture(t)
		require.False(t, fx.coordinator.SessionUsable(context.Background()))
	})

	t.Run("unexpired token needs no refresh", func(t *testing.T) {
		fx := setupTestFixture(t)
		fx.login(t)
		require.True(t, fx.coordinator.SessionUsable(context.Background()))
		require.Equal(t, 0, fx.doer.callCount("auth/refresh/"))
	})

	t.Run("expired token refreshes inline", func(t *testing.T) {
		fx := setupTestFixture(t)
		fx.login(t)
		fx.advance(2 * time.Hour)

		fx.doer.handle("auth/refresh/", func() (*http.Response, error) {
			return jsonResponse(http.StatusOK, loginResponse), nil
		})
		require.True(t, fx.coordinator.SessionUsable(context.Background()))
		require.Equal(t, 1, fx.doer.callCount("auth/refresh/"))
	})

	t.Run("failed refresh means redirect to login", func(t *testing.T) {
		fx := setupTestFixture(t)
		fx.login(t)
		fx.advance(2 * time.Hour)

		fx.doer.handle("auth/refresh/", func() (*http.Response, error) {
			return jsonResponse(http.StatusUnauthorized, `{"error":"token invalid"}`), nil
		})
		require.False(t, fx.coordinator.SessionUsable(context.Background()))
		require.Equal(t, auth.StateAnonymous, fx.coordinator.State())
	})
}

func TestSessionUsable_ConcurrentCallersShareOneRefresh(t *testing.T) {
	fx := setupTestFixture(t)
	fx.login(t)
	fx.advance(2 * time.Hour)

	fx.doer.handle("auth/refresh/", func() (*http.Response, error) {
		return jsonResponse(http.StatusOK, loginResponse), nil
	})
	fx.doer.delay = 50 * time.Millisecond

	const callers = 8
	results := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		go func() {
			results <- fx.coordinator.SessionUsable(context.Background())
		}()
	}
	for i := 0; i < callers; i++ {
		require.True(t, <-results)
	}
	require.Equal(t, 1, fx.doer.callCount("auth/refresh/"))
}

func TestAuthenticate_ExpiryFallsBackToJWTClaim(t *testing.T) {
	fx := setupTestFixture(t)

	// Response omits expires_in; the access token carries its own exp claim.
	exp := fx.now.Add(30 * time.Minute)
	claims := jwtlib.MapClaims{"exp": float64(exp.Unix()), "sub": "user-1"}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	fx.doer.handle("auth/login/", func() (*http.Response, error) {
		body := fmt.Sprintf(`{"access":%q,"refresh":"R1","user":{"email":"a@b.com"},"tenant":{"schema_name":"acme"}}`, signed)
		return jsonResponse(http.StatusOK, body), nil
	})

	require.NoError(t, fx.coordinator.Authenticate(context.Background(), testUserEmail, testUserPassword))

	expiry, ok, err := fx.sessions.AccessExpiry()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, exp.Unix(), expiry.Unix())
}

func TestClearSession(t *testing.T) {
	fx := setupTestFixture(t)
	fx.login(t)

	require.NoError(t, fx.coordinator.ClearSession())
	require.False(t, fx.coordinator.IsAccessTokenValid())
	schema, err := fx.sessions.Tenant()
	require.NoError(t, err)
	require.Equal(t, "", schema)

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, fx.coordinator.ClearSession())
		require.Equal(t, auth.StateAnonymous, fx.coordinator.State())
	})
}
