package config

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/edgetether/tether/internal/gate"
	"github.com/edgetether/tether/internal/httpfixture"
	"github.com/edgetether/tether/internal/identity"
	"github.com/edgetether/tether/internal/probe"
	"github.com/edgetether/tether/internal/proxy"
	"github.com/edgetether/tether/internal/server"
	"github.com/edgetether/tether/internal/telemetry"
)

// Provider constructs all application components from configuration.
// This is the main entry point for building a configured tether
// instance. Components are built lazily and cached after first call.
type Provider struct {
	config *Config

	logger   *slog.Logger
	resolver identity.Resolver
	gate     *gate.Gate
	handler  http.Handler
}

// NewProvider creates a new provider from configuration
func NewProvider(config *Config) *Provider {
	return &Provider{
		config: config,
	}
}

// Logger returns the configured logger
func (p *Provider) Logger() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}

	var level slog.Level
	switch p.config.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if p.config.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	p.logger = slog.New(handler)
	return p.logger
}

// Resolver returns the configured identity resolver
func (p *Provider) Resolver() (identity.Resolver, error) {
	if p.resolver != nil {
		return p.resolver, nil
	}

	timeout, err := time.ParseDuration(p.config.Identity.LookupTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid identity.lookup_timeout: %w", err)
	}

	transport, err := p.lookupTransport()
	if err != nil {
		return nil, err
	}

	p.resolver = identity.NewHTTPResolver(
		identity.WithLookupPath(p.config.Identity.EndpointPath),
		identity.WithLookupTimeout(timeout),
		identity.WithCookieName(p.config.Gate.CookieName),
		identity.WithTransport(transport),
	)
	return p.resolver, nil
}

// lookupTransport picks the wire for identity lookups: canned fixtures
// when configured, otherwise an instrumented real transport
func (p *Provider) lookupTransport() (http.RoundTripper, error) {
	fixtures, err := p.fixtureProvider()
	if err != nil {
		return nil, err
	}
	if fixtures != nil {
		return httpfixture.NewTransport(fixtures), nil
	}
	return telemetry.InstrumentTransport(nil), nil
}

func (p *Provider) fixtureProvider() (httpfixture.Provider, error) {
	if dir := p.config.Identity.FixturesDir; dir != "" {
		provider, err := httpfixture.LoadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load fixtures from %s: %w", dir, err)
		}
		return provider, nil
	}
	return BuildFixtureProvider(p.config.Identity.Fixtures)
}

// Gate returns the configured gate
func (p *Provider) Gate() (*gate.Gate, error) {
	if p.gate != nil {
		return p.gate, nil
	}

	resolver, err := p.Resolver()
	if err != nil {
		return nil, err
	}

	opts := []gate.Option{
		gate.WithCookieName(p.config.Gate.CookieName),
	}
	if p.config.Observability.Observer == "logging" {
		opts = append(opts, gate.WithObserver(probe.NewLoggingGateObserver(p.Logger())))
	}

	p.gate = gate.New(resolver, opts...)
	return p.gate, nil
}

// Handler returns the gate-fronted origin handler
func (p *Provider) Handler() (http.Handler, error) {
	if p.handler != nil {
		return p.handler, nil
	}

	g, err := p.Gate()
	if err != nil {
		return nil, err
	}

	target, err := url.Parse(p.config.Origin.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid origin.url: %w", err)
	}

	upstream := proxy.NewOriginProxy(target, p.Logger())
	handler := proxy.NewHandler(g, upstream,
		proxy.WithLogger(p.Logger()),
		proxy.WithClientIPHeader(p.config.Gate.ClientIPHeader),
	)

	p.handler = telemetry.HTTPMiddleware("tether")(handler)
	return p.handler, nil
}

// ServerConfig returns the assembled server configuration
func (p *Provider) ServerConfig() (server.Config, error) {
	g, err := p.Gate()
	if err != nil {
		return server.Config{}, err
	}

	cfg := server.Config{
		HTTPPort:       p.config.Server.HTTPPort,
		GRPCPort:       p.config.Server.GRPCPort,
		AdminPort:      p.config.Server.AdminPort,
		Gate:           g,
		ClientIPHeader: p.config.Gate.ClientIPHeader,
		Logger:         p.Logger(),
	}

	if cfg.HTTPPort >= 0 {
		handler, err := p.Handler()
		if err != nil {
			return server.Config{}, err
		}
		cfg.Handler = handler
	}

	return cfg, nil
}

// TelemetryConfig returns the trace export settings
func (p *Provider) TelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Endpoint:    p.config.Observability.OTLPEndpoint,
		Insecure:    p.config.Observability.OTLPInsecure,
		SampleRatio: p.config.Observability.TraceSampleRatio,
	}
}
