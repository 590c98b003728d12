package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultLookupPath is the well-known path on the protected hostname
// that answers which identity a credential belongs to.
const DefaultLookupPath = "/cdn-cgi/access/get-identity"

// DefaultCookieName is the cookie the lookup presents the credential in.
const DefaultCookieName = "CF_Authorization"

// DefaultLookupTimeout bounds a single identity lookup. Expiry is a
// transport failure, not a verdict.
const DefaultLookupTimeout = 5 * time.Second

// maxDocumentBytes caps how much of an identity document is read
const maxDocumentBytes = 1 << 20

// Common resolution errors
var (
	// ErrLookupRejected means the identity endpoint answered non-2xx:
	// it does not recognize the credential
	ErrLookupRejected = errors.New("identity lookup rejected")

	// ErrMalformedIdentity means the identity endpoint answered 2xx but
	// the document was unusable (undecodable, or no bound address)
	ErrMalformedIdentity = errors.New("malformed identity document")
)

// LookupRejectedError is an ErrLookupRejected carrying the upstream
// status code for diagnostics.
type LookupRejectedError struct {
	StatusCode int
}

func (e *LookupRejectedError) Error() string {
	return fmt.Sprintf("identity lookup rejected: status %d", e.StatusCode)
}

func (e *LookupRejectedError) Unwrap() error {
	return ErrLookupRejected
}

// Record is the slice of the identity document the gate cares about.
// The credential itself stays opaque; only the document describes it.
type Record struct {
	// IP is the address the credential was issued to. A document
	// without it is malformed.
	IP string `json:"ip"`

	// Email and UserUUID are decoded when present, for diagnostics
	// only. They never influence a verdict.
	Email    string `json:"email,omitempty"`
	UserUUID string `json:"user_uuid,omitempty"`
}

// Resolver resolves the identity a credential is bound to
type Resolver interface {
	// Resolve looks up the identity for the credential as presented to
	// host. Errors are classified: ErrLookupRejected (endpoint said no),
	// ErrMalformedIdentity (endpoint said yes but unusably), anything
	// else is a transport failure.
	Resolve(ctx context.Context, host, credential string) (*Record, error)
}

// HTTPResolver asks the protected hostname itself, the same way a
// browser on that host would: one GET to the lookup path with the
// credential replayed in a cookie. No retries, no caching, no redirect
// following.
type HTTPResolver struct {
	client     *http.Client
	transport  http.RoundTripper
	path       string
	cookieName string
	timeout    time.Duration
}

// HTTPResolverOption configures an HTTPResolver
type HTTPResolverOption func(*HTTPResolver)

// WithHTTPClient replaces the default client entirely. The caller then
// owns the timeout and redirect policy; without a timeout, lookups are
// unbounded.
func WithHTTPClient(client *http.Client) HTTPResolverOption {
	return func(r *HTTPResolver) {
		r.client = client
	}
}

// WithTransport swaps the wire under the default client while keeping
// its timeout and redirect policy. This is how fixture transports are
// plugged in. It has no effect on a client supplied via WithHTTPClient.
func WithTransport(rt http.RoundTripper) HTTPResolverOption {
	return func(r *HTTPResolver) {
		r.transport = rt
	}
}

// WithLookupTimeout adjusts the timeout of the resolver's own client.
// It has no effect on a client supplied via WithHTTPClient.
func WithLookupTimeout(d time.Duration) HTTPResolverOption {
	return func(r *HTTPResolver) {
		r.timeout = d
	}
}

// WithLookupPath overrides the lookup path
func WithLookupPath(path string) HTTPResolverOption {
	return func(r *HTTPResolver) {
		r.path = path
	}
}

// WithCookieName overrides the cookie the credential is presented in
func WithCookieName(name string) HTTPResolverOption {
	return func(r *HTTPResolver) {
		r.cookieName = name
	}
}

// NewHTTPResolver creates a resolver with a bounded default client
func NewHTTPResolver(opts ...HTTPResolverOption) *HTTPResolver {
	r := &HTTPResolver{
		path:       DefaultLookupPath,
		cookieName: DefaultCookieName,
		timeout:    DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = &http.Client{
			Transport: r.transport,
			Timeout:   r.timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return r
}

// Resolve implements the Resolver interface
func (r *HTTPResolver) Resolve(ctx context.Context, host, credential string) (*Record, error) {
	if host == "" {
		return nil, fmt.Errorf("host is required")
	}

	u := &url.URL{Scheme: "https", Host: host, Path: r.path}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building lookup request: %w", err)
	}
	req.Header.Set("Cookie", r.cookieName+"="+credential)

	resp, err := r.client.Do(req)
	if err != nil {
		// Timeouts land here too: transport failure, not a verdict
		return nil, fmt.Errorf("identity lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &LookupRejectedError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("reading identity document: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedIdentity, err)
	}
	if rec.IP == "" {
		return nil, fmt.Errorf("%w: document has no bound address", ErrMalformedIdentity)
	}

	return &rec, nil
}
