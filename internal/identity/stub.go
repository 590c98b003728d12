package identity

import (
	"context"
	"sync"
)

// StubResolver is a canned resolver for tests and hermetic wiring
type StubResolver struct {
	mu     sync.Mutex
	record *Record
	err    error
	calls  int

	lastHost       string
	lastCredential string
}

// NewStubResolver creates a stub that resolves every credential to a
// fixed record
func NewStubResolver() *StubResolver {
	return &StubResolver{
		record: &Record{
			IP:       "203.0.113.7",
			Email:    "user@example.com",
			UserUUID: "9c7a54c1-36bb-45b8-8e2b-7a1c0a6c8f3d",
		},
	}
}

// WithRecord configures the stub to resolve to rec
func (r *StubResolver) WithRecord(rec *Record) *StubResolver {
	r.record = rec
	return r
}

// WithError configures the stub to fail resolution with err
func (r *StubResolver) WithError(err error) *StubResolver {
	r.err = err
	return r
}

// Resolve implements the Resolver interface
func (r *StubResolver) Resolve(ctx context.Context, host, credential string) (*Record, error) {
	r.mu.Lock()
	r.calls++
	r.lastHost = host
	r.lastCredential = credential
	r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	return r.record, nil
}

// Calls returns how many lookups the stub has served
func (r *StubResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// LastLookup returns the host and credential of the most recent lookup
func (r *StubResolver) LastLookup() (host, credential string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastHost, r.lastCredential
}
