// Package gateway translates logical (verb, path, body) calls into HTTP
// requests against the active tenant's API host, attaching the stored bearer
// credential and normalizing every outcome into a Result envelope.
//
// The tenant base URL is recomputed from the session store on every call, so
// switching tenant takes effect on the next request without reconstructing
// the gateway. The gateway never checks token expiry; that is the
// authentication coordinator's job, run by callers before reaching here.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nivexa/go-console-client/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const apiPrefix = "/api/"

// Doer abstracts the HTTP transport (satisfied by *http.Client).
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the host-resolution settings. With an empty tenant schema the
// gateway targets DefaultOrigin; otherwise {Scheme}://{schema}.{TenantDomain}.
type Config struct {
	Scheme        string // e.g. "https"
	TenantDomain  string // e.g. "console-api.nivexa.io"
	DefaultOrigin string // e.g. "https://api.nivexa.io"
}

// Gateway issues tenant-aware API calls. Every call is a single best-effort
// attempt: no retries, no internal timeout. Cancellation and deadlines come
// from the caller's context.
type Gateway struct {
	sessions *session.Store
	client   Doer
	config   Config
	log      zerolog.Logger
}

// Option defines a function type to modify the Gateway instance.
type Option func(*Gateway)

// WithHTTPClient overrides the transport (primarily for testing).
func WithHTTPClient(client Doer) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

// WithLogger sets the logger used for per-call debug logging.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Gateway) {
		g.log = log
	}
}

// New initializes a Gateway reading credentials and tenant from sessions.
func New(sessions *session.Store, config Config, options ...Option) (*Gateway, error) {
	if sessions == nil {
		return nil, errors.New("[gateway.New] sessions store is required")
	}
	if config.DefaultOrigin == "" {
		return nil, errors.New("[gateway.New] default origin is required")
	}
	if config.TenantDomain == "" {
		return nil, errors.New("[gateway.New] tenant domain is required")
	}
	if config.Scheme == "" {
		config.Scheme = "https"
	}

	gw := &Gateway{
		sessions: sessions,
		client:   http.DefaultClient,
		config:   config,
		log:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(gw)
	}
	return gw, nil
}

// Get issues a GET request against the tenant API root.
func (g *Gateway) Get(ctx context.Context, path string, headers http.Header) Result {
	return g.do(ctx, http.MethodGet, path, nil, "", headers)
}

// Post issues a POST with body JSON-encoded. A nil body sends no payload.
func (g *Gateway) Post(ctx context.Context, path string, body any, headers http.Header) Result {
	return g.doJSON(ctx, http.MethodPost, path, body, headers)
}

// Put issues a PUT with body JSON-encoded.
func (g *Gateway) Put(ctx context.Context, path string, body any, headers http.Header) Result {
	return g.doJSON(ctx, http.MethodPut, path, body, headers)
}

// Delete issues a DELETE request.
func (g *Gateway) Delete(ctx context.Context, path string, headers http.Header) Result {
	return g.do(ctx, http.MethodDelete, path, nil, "", headers)
}

// Upload issues a POST passing body through unmodified. contentType is the
// caller-built multipart content type carrying the boundary
// (multipart.Writer.FormDataContentType()).
func (g *Gateway) Upload(ctx context.Context, path string, body io.Reader, contentType string, headers http.Header) Result {
	return g.do(ctx, http.MethodPost, path, body, contentType, headers)
}

// BaseURL resolves the effective API root for the active tenant. Exposed so
// callers (and the CLI status screen) can show where requests will land.
func (g *Gateway) BaseURL() (string, error) {
	schema, err := g.sessions.Tenant()
	if err != nil {
		return "", errors.Wrap(err, "[Gateway.BaseURL] sessions.Tenant")
	}
	if schema == "" {
		return strings.TrimSuffix(g.config.DefaultOrigin, "/") + apiPrefix, nil
	}
	if strings.ContainsAny(schema, "./:@ ") {
		return "", errors.Errorf("[Gateway.BaseURL] invalid tenant schema %q", schema)
	}
	return g.config.Scheme + "://" + schema + "." + g.config.TenantDomain + apiPrefix, nil
}

func (g *Gateway) doJSON(ctx context.Context, method, path string, body any, headers http.Header) Result {
	if body == nil {
		return g.do(ctx, method, path, nil, "", headers)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return failure(0, "encode request body: %s", err)
	}
	return g.do(ctx, method, path, bytes.NewReader(payload), "application/json", headers)
}

func (g *Gateway) do(ctx context.Context, method, path string, body io.Reader, contentType string, headers http.Header) Result {
	started := time.Now()
	requestID := uuid.New().String()

	base, err := g.BaseURL()
	if err != nil {
		return failure(0, "resolve base url: %s", err)
	}
	url := base + strings.TrimPrefix(path, "/")

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return failure(0, "build request: %s", err)
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	// Attach the bearer credential whenever one is stored. Expiry is not
	// checked here; stale tokens are the coordinator's problem.
	token, err := g.sessions.AccessToken()
	if err != nil {
		return failure(0, "read access token: %s", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Debug().Str("request_id", requestID).Str("method", method).Str("url", url).
			Dur("elapsed", time.Since(started)).Err(err).Msg("gateway call failed")
		return failure(0, "%s", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(resp.StatusCode, "read response body: %s", err)
	}

	g.log.Debug().Str("request_id", requestID).Str("method", method).Str("url", url).
		Int("status", resp.StatusCode).Dur("elapsed", time.Since(started)).Msg("gateway call")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errMsg, message := errorMessage(resp.StatusCode, respBody)
		return Result{Success: false, Status: resp.StatusCode, Error: errMsg, Message: message}
	}

	if len(respBody) > 0 && !json.Valid(respBody) {
		return failure(resp.StatusCode, "malformed response body")
	}
	return Result{Success: true, Status: resp.StatusCode, Data: respBody}
}
