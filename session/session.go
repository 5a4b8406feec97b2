// Package session holds the process-wide console session: bearer credentials,
// their absolute expiries, the active tenant schema, and cached user/tenant
// records. Persistence goes through an injected Repo so stores are isolated
// in tests and multiple sessions can coexist in one process.
package session

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/nivexa/go-console-client/tenants"
	"github.com/nivexa/go-console-client/users"
	"github.com/pkg/errors"
)

// Persisted key layout. Shared with the console's other screens, which store
// their own keys in the same namespace; the store never touches those.
const (
	KeyAccessToken   = "token"
	KeyRefreshToken  = "token_refresh"
	KeyAccessExpiry  = "token_expiry"
	KeyRefreshExpiry = "refresh_expiry"
	KeySchemaName    = "schema_name"
	KeyUserData      = "user_data"
	KeyTenantData    = "tenant_data"
)

// sessionKeys is every key the store owns. Clear removes exactly these.
var sessionKeys = []string{
	KeyAccessToken,
	KeyRefreshToken,
	KeyAccessExpiry,
	KeyRefreshExpiry,
	KeySchemaName,
	KeyUserData,
	KeyTenantData,
}

// credentialKeys are the token and tenant fields reset on a failed
// authenticate or refresh. Cached profiles are left for the login screen.
var credentialKeys = []string{
	KeyAccessToken,
	KeyRefreshToken,
	KeyAccessExpiry,
	KeyRefreshExpiry,
	KeySchemaName,
}

// Store provides synchronous, fallible access to the session fields. Every
// setter persists immediately; every getter reads the backend, so external
// changes (another process sharing the file or Redis hash) are observed on
// the next call.
type Store struct {
	repo    Repo
	nowTime func() time.Time // nowTime function (injectable for testing)
}

// Option defines a function type to modify the Store instance.
type Option func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// New initializes a Store backed by repo.
func New(repo Repo, options ...Option) (*Store, error) {
	if repo == nil {
		return nil, errors.New("[session.New] repo is required")
	}
	store := &Store{
		repo:    repo,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(store)
	}
	return store, nil
}

// SetCredentials stores both tokens and their absolute expiries computed as
// now + ttl. Tokens are opaque strings; no validation of their contents.
func (s *Store) SetCredentials(access, refresh string, accessTTLSeconds, refreshTTLSeconds int64) error {
	now := s.nowTime().Unix()
	err := s.repo.SetAll(map[string]string{
		KeyAccessToken:   access,
		KeyRefreshToken:  refresh,
		KeyAccessExpiry:  strconv.FormatInt(now+accessTTLSeconds, 10),
		KeyRefreshExpiry: strconv.FormatInt(now+refreshTTLSeconds, 10),
	})
	return errors.Wrap(err, "[Store.SetCredentials] repo.SetAll")
}

// SetTenant stores the tenant schema. Empty string resets to the default host.
func (s *Store) SetTenant(schema string) error {
	err := s.repo.SetAll(map[string]string{KeySchemaName: schema})
	return errors.Wrap(err, "[Store.SetTenant] repo.SetAll")
}

// SetUserProfile caches the last-known user record.
func (s *Store) SetUserProfile(profile *users.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return errors.Wrap(err, "[Store.SetUserProfile] marshal")
	}
	return errors.Wrap(s.repo.SetAll(map[string]string{KeyUserData: string(data)}), "[Store.SetUserProfile] repo.SetAll")
}

// SetTenantProfile caches the last-known tenant record.
func (s *Store) SetTenantProfile(tenant *tenants.Tenant) error {
	data, err := json.Marshal(tenant)
	if err != nil {
		return errors.Wrap(err, "[Store.SetTenantProfile] marshal")
	}
	return errors.Wrap(s.repo.SetAll(map[string]string{KeyTenantData: string(data)}), "[Store.SetTenantProfile] repo.SetAll")
}

// SetAuthenticated commits the full credential set as one group write: both
// tokens, both expiries, the tenant schema, and both cached profiles. This is
// the only way session fields change on a successful login or refresh, so a
// partially updated session is never observable.
func (s *Store) SetAuthenticated(access, refresh string, accessTTLSeconds, refreshTTLSeconds int64, schema string, user *users.Profile, tenant *tenants.Tenant) error {
	userData, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[Store.SetAuthenticated] marshal user")
	}
	tenantData, err := json.Marshal(tenant)
	if err != nil {
		return errors.Wrap(err, "[Store.SetAuthenticated] marshal tenant")
	}
	now := s.nowTime().Unix()
	err = s.repo.SetAll(map[string]string{
		KeyAccessToken:   access,
		KeyRefreshToken:  refresh,
		KeyAccessExpiry:  strconv.FormatInt(now+accessTTLSeconds, 10),
		KeyRefreshExpiry: strconv.FormatInt(now+refreshTTLSeconds, 10),
		KeySchemaName:    schema,
		KeyUserData:      string(userData),
		KeyTenantData:    string(tenantData),
	})
	return errors.Wrap(err, "[Store.SetAuthenticated] repo.SetAll")
}

// Tenant returns the active tenant schema, or the empty string when no
// tenant is resolved.
func (s *Store) Tenant() (string, error) {
	schema, _, err := s.repo.Get(KeySchemaName)
	if err != nil {
		return "", errors.Wrap(err, "[Store.Tenant] repo.Get")
	}
	return schema, nil
}

// AccessToken returns the stored access token, empty string when absent.
func (s *Store) AccessToken() (string, error) {
	token, _, err := s.repo.Get(KeyAccessToken)
	if err != nil {
		return "", errors.Wrap(err, "[Store.AccessToken] repo.Get")
	}
	return token, nil
}

// RefreshToken returns the stored refresh token, empty string when absent.
func (s *Store) RefreshToken() (string, error) {
	token, _, err := s.repo.Get(KeyRefreshToken)
	if err != nil {
		return "", errors.Wrap(err, "[Store.RefreshToken] repo.Get")
	}
	return token, nil
}

// AccessExpiry returns the absolute access-token expiry and whether one is
// stored. A stored value that does not parse counts as absent.
func (s *Store) AccessExpiry() (time.Time, bool, error) {
	raw, ok, err := s.repo.Get(KeyAccessExpiry)
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "[Store.AccessExpiry] repo.Get")
	}
	if !ok || raw == "" {
		return time.Time{}, false, nil
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(unix, 0), true, nil
}

// RefreshExpiry returns the absolute refresh-token expiry and whether one is
// stored.
func (s *Store) RefreshExpiry() (time.Time, bool, error) {
	raw, ok, err := s.repo.Get(KeyRefreshExpiry)
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "[Store.RefreshExpiry] repo.Get")
	}
	if !ok || raw == "" {
		return time.Time{}, false, nil
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(unix, 0), true, nil
}

// IsAccessTokenValid reports whether an access token is present and unexpired.
// An absent token, an absent expiry, or a storage read failure all count as
// invalid.
func (s *Store) IsAccessTokenValid() bool {
	token, err := s.AccessToken()
	if err != nil || token == "" {
		return false
	}
	expiry, ok, err := s.AccessExpiry()
	if err != nil || !ok {
		return false
	}
	return s.nowTime().Before(expiry)
}

// UserProfile returns the cached user record, nil when none is stored.
func (s *Store) UserProfile() (*users.Profile, error) {
	raw, ok, err := s.repo.Get(KeyUserData)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.UserProfile] repo.Get")
	}
	if !ok || raw == "" || raw == "null" {
		return nil, nil
	}
	var profile users.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, errors.Wrap(err, "[Store.UserProfile] unmarshal")
	}
	return &profile, nil
}

// TenantProfile returns the cached tenant record, nil when none is stored.
func (s *Store) TenantProfile() (*tenants.Tenant, error) {
	raw, ok, err := s.repo.Get(KeyTenantData)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.TenantProfile] repo.Get")
	}
	if !ok || raw == "" || raw == "null" {
		return nil, nil
	}
	var tenant tenants.Tenant
	if err := json.Unmarshal([]byte(raw), &tenant); err != nil {
		return nil, errors.Wrap(err, "[Store.TenantProfile] unmarshal")
	}
	return &tenant, nil
}

// ResetCredentials clears the token and tenant fields after a failed
// authenticate or refresh. Cached profiles are untouched.
func (s *Store) ResetCredentials() error {
	return errors.Wrap(s.repo.Delete(credentialKeys...), "[Store.ResetCredentials] repo.Delete")
}

// Clear resets every session field to its empty state, leaving no residual
// credential. Keys outside the session layout are untouched.
func (s *Store) Clear() error {
	return errors.Wrap(s.repo.Delete(sessionKeys...), "[Store.Clear] repo.Delete")
}
