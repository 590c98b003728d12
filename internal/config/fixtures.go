package config

import (
	"github.com/edgetether/tether/internal/httpfixture"
)

// BuildFixtureProvider creates an HTTP fixture provider from inline
// fixture configuration. Returns nil when none are configured (normal
// production mode).
func BuildFixtureProvider(fixtures []FixtureConfig) (httpfixture.Provider, error) {
	if len(fixtures) == 0 {
		return nil, nil
	}

	rules := make([]httpfixture.Rule, 0, len(fixtures))
	for _, f := range fixtures {
		rules = append(rules, httpfixture.Rule{
			Request: httpfixture.RequestMatch{
				Method:  f.Request.Method,
				URL:     f.Request.URL,
				URLType: f.Request.URLType,
				Headers: f.Request.Headers,
			},
			Response: httpfixture.Fixture{
				StatusCode: f.Response.StatusCode,
				Headers:    f.Response.Headers,
				Body:       f.Response.Body,
			},
		})
	}

	return httpfixture.NewRuleProvider(rules)
}
