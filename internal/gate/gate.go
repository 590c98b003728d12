package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/edgetether/tether/internal/clock"
	"github.com/edgetether/tether/internal/identity"
)

// Input is what one evaluation sees of the incoming request. The gate
// never touches the request body.
type Input struct {
	// Host is the hostname the request was addressed to. Identity is
	// resolved against this same host.
	Host string

	// CookieHeader is the raw Cookie header value
	CookieHeader string

	// HasCookieHeader distinguishes an absent Cookie header from an
	// empty one. Both are denied, for the same reason.
	HasCookieHeader bool

	// ClientAddress is the client address as reported by the edge
	// (the CF-Connecting-IP header)
	ClientAddress string

	// Method and Path are carried for diagnostics only
	Method string
	Path   string
}

// Gate evaluates requests against the address their credential is
// bound to. It holds no state between evaluations: the same input
// yields the same verdict, and nothing is remembered across calls.
type Gate struct {
	resolver   identity.Resolver
	observer   Observer
	clock      clock.Clock
	cookieName string
}

// Option is a functional option for configuring a Gate
type Option func(*Gate)

// WithObserver sets the evaluation observer
func WithObserver(o Observer) Option {
	return func(g *Gate) {
		g.observer = o
	}
}

// WithClock sets the clock used for decision timestamps
func WithClock(c clock.Clock) Option {
	return func(g *Gate) {
		g.clock = c
	}
}

// WithCookieName overrides which cookie carries the credential
func WithCookieName(name string) Option {
	return func(g *Gate) {
		g.cookieName = name
	}
}

// New creates a gate around the given resolver
func New(resolver identity.Resolver, opts ...Option) *Gate {
	g := &Gate{
		resolver:   resolver,
		observer:   noopObserver{},
		clock:      clock.NewSystemClock(),
		cookieName: DefaultCookieName,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check evaluates one request and produces exactly one outcome: a
// Decision, or an error when the identity endpoint could not be
// reached (the caller fails closed on errors).
//
// The pipeline short-circuits at the first step that cannot advance:
// credential extraction, client address, identity resolution, then the
// address comparison. At most one identity lookup is performed.
func (g *Gate) Check(ctx context.Context, in *Input) (*Decision, error) {
	start := g.clock.Now()
	ctx, probe := g.observer.CheckStarted(ctx, in)
	defer probe.End()

	d := &Decision{
		ID:              uuid.NewString(),
		Host:            in.Host,
		ObservedAddress: in.ClientAddress,
		EvaluatedAt:     start,
	}

	deny := func(reason Reason) *Decision {
		d.Verdict = VerdictDeny
		d.Reason = reason
		d.Duration = g.clock.Now().Sub(start)
		probe.Decided(d)
		return d
	}

	// 1. Extract the credential. An absent header, an empty header, and
	// a jar without the credential cookie all end the same way.
	if !in.HasCookieHeader {
		return deny(ReasonMissingCredential), nil
	}
	token := ParseCookieHeader(in.CookieHeader).Get(g.cookieName)
	if token == "" {
		return deny(ReasonMissingCredential), nil
	}
	probe.CredentialFound()

	// 2. The edge must say who is asking before a comparison makes sense
	if in.ClientAddress == "" {
		return deny(ReasonMissingClientAddress), nil
	}

	// 3. Resolve the identity the credential is bound to. One lookup,
	// no retries.
	rec, err := g.resolver.Resolve(ctx, in.Host, token)
	if err != nil {
		probe.ResolutionFailed(err)

		var rejected *identity.LookupRejectedError
		switch {
		case errors.As(err, &rejected):
			d.UpstreamStatus = rejected.StatusCode
			return deny(ReasonLookupRejected), nil
		case errors.Is(err, identity.ErrMalformedIdentity):
			return deny(ReasonIdentityMalformed), nil
		default:
			// Transport failure: not a verdict. No Decision is
			// fabricated for it.
			return nil, fmt.Errorf("resolving identity: %w", err)
		}
	}
	probe.IdentityResolved(rec)
	d.Identity = rec
	d.BoundAddress = rec.IP

	// 4. Byte-for-byte equality. No normalization of either side.
	if rec.IP != in.ClientAddress {
		return deny(ReasonAddressMismatch), nil
	}

	d.Verdict = VerdictAdmit
	d.Duration = g.clock.Now().Sub(start)
	probe.Decided(d)
	return d, nil
}
