package httpfixture

import (
	"net/http"
	"time"
)

// Fixture is a canned HTTP exchange outcome. Most fixtures describe a
// response; a fixture with Fail set simulates the round trip itself
// failing (connection refused, reset, and so on).
type Fixture struct {
	StatusCode int               `json:"status" yaml:"status"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body       string            `json:"body" yaml:"body"`

	// Delay holds the response back, honoring request cancellation.
	// Useful for exercising client timeouts.
	Delay *time.Duration `json:"delay,omitempty" yaml:"delay,omitempty"`

	// Fail, when non-empty, makes the round trip return an error with
	// this message instead of a response.
	Fail string `json:"fail,omitempty" yaml:"fail,omitempty"`
}

// Provider selects the fixture for a request, or nil when none applies
type Provider interface {
	For(req *http.Request) *Fixture
}

// Rule pairs request criteria with the fixture to serve
type Rule struct {
	Request  RequestMatch `json:"request" yaml:"request"`
	Response Fixture      `json:"response" yaml:"response"`
}

// RequestMatch is the matching side of a Rule
type RequestMatch struct {
	// Method to match; "*" or empty matches any
	Method string `json:"method" yaml:"method"`

	// URL to match, exact by default
	URL string `json:"url" yaml:"url"`

	// URLType is "exact" (default) or "pattern" (regular expression)
	URLType string `json:"url_type,omitempty" yaml:"url_type,omitempty"`

	// Headers that must all be present with these values
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Set is the file form of a fixture collection
type Set struct {
	Rules []Rule `json:"fixtures" yaml:"fixtures"`
}
