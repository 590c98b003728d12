package probe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/edgetether/tether/internal/gate"
	"github.com/edgetether/tether/internal/identity"
)

// evaluate runs one gate check with a logging observer attached and
// returns everything it logged
func evaluate(t *testing.T, resolver identity.Resolver, observedAddress string) string {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	g := gate.New(resolver, gate.WithObserver(NewLoggingGateObserver(logger)))
	_, _ = g.Check(context.Background(), &gate.Input{
		Host:            "app.example.com",
		CookieHeader:    "CF_Authorization=tok123",
		HasCookieHeader: true,
		ClientAddress:   observedAddress,
		Method:          "GET",
		Path:            "/dashboard",
	})

	return buf.String()
}

func TestLoggingObserver_AdmittedEvaluation(t *testing.T) {
	resolver := identity.NewStubResolver().WithRecord(&identity.Record{IP: "203.0.113.7"})
	logged := evaluate(t, resolver, "203.0.113.7")

	for _, want := range []string{
		`"verdict":"admit"`,
		`"host":"app.example.com"`,
		`"decision_id"`,
		"Identity resolved",
		"Gate evaluation completed",
	} {
		if !strings.Contains(logged, want) {
			t.Errorf("log output missing %q:\n%s", want, logged)
		}
	}
}

func TestLoggingObserver_DeniedEvaluation(t *testing.T) {
	resolver := identity.NewStubResolver().WithRecord(&identity.Record{IP: "198.51.100.1"})
	logged := evaluate(t, resolver, "203.0.113.7")

	for _, want := range []string{
		`"verdict":"deny"`,
		`"reason":"address_mismatch"`,
		`"observed_address":"203.0.113.7"`,
		`"bound_address":"198.51.100.1"`,
	} {
		if !strings.Contains(logged, want) {
			t.Errorf("log output missing %q:\n%s", want, logged)
		}
	}
}

func TestLoggingObserver_ResolutionFailure(t *testing.T) {
	resolver := identity.NewStubResolver().WithError(errors.New("dial tcp: connection refused"))
	logged := evaluate(t, resolver, "203.0.113.7")

	if !strings.Contains(logged, "Identity resolution failed") {
		t.Errorf("log output missing resolution failure:\n%s", logged)
	}
	if !strings.Contains(logged, "connection refused") {
		t.Errorf("log output missing the underlying error:\n%s", logged)
	}
}

func TestLoggingObserver_NeverLogsCredential(t *testing.T) {
	cases := []struct {
		name     string
		resolver identity.Resolver
	}{
		{"admitted", identity.NewStubResolver().WithRecord(&identity.Record{IP: "203.0.113.7"})},
		{"denied", identity.NewStubResolver().WithRecord(&identity.Record{IP: "198.51.100.1"})},
		{"resolution failed", identity.NewStubResolver().WithError(errors.New("boom"))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logged := evaluate(t, tc.resolver, "203.0.113.7")
			if strings.Contains(logged, "tok123") {
				t.Errorf("credential value leaked into log output:\n%s", logged)
			}
		})
	}
}

func TestLoggingObserver_NilLoggerUsesDefault(t *testing.T) {
	// Must not panic
	observer := NewLoggingGateObserver(nil)
	_, p := observer.CheckStarted(context.Background(), &gate.Input{Host: "app.example.com"})
	p.End()
}
