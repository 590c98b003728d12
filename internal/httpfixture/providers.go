package httpfixture

import (
	"fmt"
	"net/http"
	"regexp"
)

// RuleProvider matches requests against an ordered rule list; the
// first matching rule wins. URL patterns are compiled once, up front.
type RuleProvider struct {
	rules    []Rule
	patterns []*regexp.Regexp
}

// NewRuleProvider creates a provider from rules, compiling any URL
// patterns. A rule with an invalid pattern is a construction error,
// not a silent non-match.
func NewRuleProvider(rules []Rule) (*RuleProvider, error) {
	p := &RuleProvider{
		rules:    rules,
		patterns: make([]*regexp.Regexp, len(rules)),
	}
	for i, rule := range rules {
		if rule.Request.URLType != "pattern" {
			continue
		}
		re, err := regexp.Compile(rule.Request.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to compile fixture URL pattern %q: %w", rule.Request.URL, err)
		}
		p.patterns[i] = re
	}
	return p, nil
}

// For returns the fixture of the first matching rule
func (p *RuleProvider) For(req *http.Request) *Fixture {
	for i, rule := range p.rules {
		if p.matches(req, i, rule.Request) {
			return &p.rules[i].Response
		}
	}
	return nil
}

func (p *RuleProvider) matches(req *http.Request, i int, criteria RequestMatch) bool {
	if criteria.Method != "" && criteria.Method != "*" && req.Method != criteria.Method {
		return false
	}

	if re := p.patterns[i]; re != nil {
		if !re.MatchString(req.URL.String()) {
			return false
		}
	} else if req.URL.String() != criteria.URL {
		return false
	}

	for key, value := range criteria.Headers {
		if req.Header.Get(key) != value {
			return false
		}
	}

	return true
}

// MapProvider looks fixtures up by "METHOD URL" key
type MapProvider struct {
	fixtures map[string]*Fixture
}

// NewMapProvider creates a provider over a key-to-fixture map.
// Keys look like "GET https://app.example.com/cdn-cgi/access/get-identity".
func NewMapProvider(fixtures map[string]*Fixture) *MapProvider {
	return &MapProvider{fixtures: fixtures}
}

// For returns the fixture keyed by the request's method and URL
func (p *MapProvider) For(req *http.Request) *Fixture {
	return p.fixtures[req.Method+" "+req.URL.String()]
}

// FuncProvider answers from a function, for tests that need full control
type FuncProvider func(*http.Request) *Fixture

// For returns the function's answer for the request
func (p FuncProvider) For(req *http.Request) *Fixture {
	return p(req)
}
