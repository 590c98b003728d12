package httpfixture

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Transport serves fixtures in place of real network round trips. A
// client built on it never dials: URLs (https included) resolve purely
// against the provider. A request no fixture matches fails the round
// trip, so a hole in the fixture set surfaces as a transport error
// instead of masquerading as a real upstream answer.
type Transport struct {
	provider Provider
}

// NewTransport creates a round tripper over the given provider
func NewTransport(provider Provider) *Transport {
	return &Transport{provider: provider}
}

// Client returns an http.Client that resolves against the fixtures
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	fixture := t.provider.For(req)
	if fixture == nil {
		return nil, fmt.Errorf("httpfixture: no fixture for %s %s", req.Method, req.URL)
	}

	if fixture.Fail != "" {
		return nil, errors.New(fixture.Fail)
	}

	if fixture.Delay != nil {
		select {
		case <-time.After(*fixture.Delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	status := fixture.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	header := make(http.Header, len(fixture.Headers))
	for key, value := range fixture.Headers {
		header.Set(key, value)
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(fixture.Body)),
		ContentLength: int64(len(fixture.Body)),
		Request:       req,
	}, nil
}
