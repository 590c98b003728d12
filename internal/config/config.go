package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root configuration structure for tether
type Config struct {
	// Server configuration (listener ports)
	Server ServerConfig `koanf:"server"`

	// Origin is the service the gate fronts
	Origin OriginConfig `koanf:"origin"`

	// Gate configuration (credential extraction, client address)
	Gate GateConfig `koanf:"gate"`

	// Identity configuration (lookup endpoint, timeout, fixtures)
	Identity IdentityConfig `koanf:"identity"`

	// Observability configuration (logging, tracing)
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig contains network-level server settings. A port of 0
// binds an ephemeral port; a negative port disables that listener.
type ServerConfig struct {
	// HTTPPort is the port serving guarded origin traffic
	HTTPPort int `koanf:"http_port" usage:"port serving guarded origin traffic"`

	// GRPCPort is the port for the Envoy ext_authz service
	GRPCPort int `koanf:"grpc_port" usage:"port serving the Envoy ext_authz service (-1 disables)"`

	// AdminPort is the port for health and readiness endpoints
	AdminPort int `koanf:"admin_port" usage:"port serving health endpoints (-1 disables)"`
}

// OriginConfig configures the proxied origin
type OriginConfig struct {
	// URL is the base URL guarded requests are forwarded to,
	// e.g. "http://localhost:3000"
	URL string `koanf:"url" usage:"origin base URL guarded requests are proxied to"`
}

// GateConfig configures how requests are evaluated
type GateConfig struct {
	// CookieName is the cookie carrying the access credential
	// Default: "CF_Authorization"
	CookieName string `koanf:"cookie_name" usage:"cookie carrying the access credential"`

	// ClientIPHeader is the edge header naming the client address
	// Default: "CF-Connecting-IP"
	ClientIPHeader string `koanf:"client_ip_header" usage:"edge header naming the client address"`
}

// IdentityConfig configures identity resolution
type IdentityConfig struct {
	// EndpointPath is the identity endpoint path on the request host
	// Default: "/cdn-cgi/access/get-identity"
	EndpointPath string `koanf:"endpoint_path" usage:"path of the identity endpoint on the request host"`

	// LookupTimeout bounds one identity lookup
	// Duration string like "5s"
	LookupTimeout string `koanf:"lookup_timeout" usage:"identity lookup timeout, e.g. 5s"`

	// Fixtures replace outbound identity lookups with canned responses
	// for hermetic runs
	Fixtures []FixtureConfig `koanf:"fixtures"`

	// FixturesDir loads fixture rules from every .json/.yaml/.yml file
	// in a directory, as an alternative to inline Fixtures
	FixturesDir string `koanf:"fixtures_dir" usage:"directory of fixture rule files for hermetic runs"`
}

// FixtureConfig configures one HTTP fixture rule for hermetic testing
type FixtureConfig struct {
	Request  FixtureRequest  `koanf:"request"`
	Response FixtureResponse `koanf:"response"`
}

// FixtureRequest defines request matching criteria for HTTP fixtures
type FixtureRequest struct {
	// Method is the HTTP method to match (e.g. "GET", "*" for any)
	Method string `koanf:"method"`

	// URL is the URL to match (exact or pattern based on URLType)
	URL string `koanf:"url"`

	// URLType specifies how to match the URL
	// Options: "exact" (default), "pattern" (regex)
	URLType string `koanf:"url_type"`

	// Headers are optional headers to match
	Headers map[string]string `koanf:"headers"`
}

// FixtureResponse defines the HTTP response to return for a fixture
type FixtureResponse struct {
	// StatusCode is the HTTP status code (e.g. 200, 404)
	StatusCode int `koanf:"status"`

	// Headers are optional response headers
	Headers map[string]string `koanf:"headers"`

	// Body is the response body content
	Body string `koanf:"body"`
}

// ObservabilityConfig configures logging and tracing
type ObservabilityConfig struct {
	// Observer selects the gate observer implementation
	// Options: "logging", "none"
	// Default: "logging"
	Observer string `koanf:"observer" usage:"gate observer: logging or none"`

	// LogLevel sets the log level
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `koanf:"log_level" usage:"log level: debug, info, warn, error"`

	// LogFormat sets the log format
	// Options: "json", "text"
	// Default: "json"
	LogFormat string `koanf:"log_format" usage:"log format: json or text"`

	// OTLPEndpoint is the OTLP/HTTP trace collector address as
	// host:port. Empty disables trace export.
	OTLPEndpoint string `koanf:"otlp_endpoint" usage:"OTLP/HTTP trace collector address (host:port)"`

	// OTLPInsecure exports traces over plain HTTP instead of TLS
	OTLPInsecure bool `koanf:"otlp_insecure" usage:"export traces over plain HTTP"`

	// TraceSampleRatio is the fraction of traces to sample, in (0, 1].
	// Zero means sample everything.
	TraceSampleRatio float64 `koanf:"trace_sample_ratio" usage:"fraction of traces to sample"`
}

// Defaults for unset configuration
const (
	DefaultHTTPPort  = 8080
	DefaultGRPCPort  = 9090
	DefaultAdminPort = 9091
)

// applyDefaults fills unset fields. Zero ports mean "unset" here;
// listeners are disabled with negative ports, not zero.
func (c *Config) applyDefaults() {
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = DefaultHTTPPort
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = DefaultGRPCPort
	}
	if c.Server.AdminPort == 0 {
		c.Server.AdminPort = DefaultAdminPort
	}
	if c.Gate.CookieName == "" {
		c.Gate.CookieName = "CF_Authorization"
	}
	if c.Gate.ClientIPHeader == "" {
		c.Gate.ClientIPHeader = "CF-Connecting-IP"
	}
	if c.Identity.EndpointPath == "" {
		c.Identity.EndpointPath = "/cdn-cgi/access/get-identity"
	}
	if c.Identity.LookupTimeout == "" {
		c.Identity.LookupTimeout = "5s"
	}
	if c.Observability.Observer == "" {
		c.Observability.Observer = "logging"
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = "json"
	}
}

// Validate reports configuration that cannot be served
func (c *Config) Validate() error {
	if c.Server.HTTPPort >= 0 {
		if c.Origin.URL == "" {
			return fmt.Errorf("origin.url is required when the HTTP listener is enabled")
		}
		u, err := url.Parse(c.Origin.URL)
		if err != nil {
			return fmt.Errorf("invalid origin.url: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("origin.url %q must include scheme and host", c.Origin.URL)
		}
	}

	if _, err := time.ParseDuration(c.Identity.LookupTimeout); err != nil {
		return fmt.Errorf("invalid identity.lookup_timeout: %w", err)
	}

	switch c.Observability.Observer {
	case "logging", "none":
	default:
		return fmt.Errorf("unknown observability.observer %q", c.Observability.Observer)
	}

	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown observability.log_level %q", c.Observability.LogLevel)
	}

	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown observability.log_format %q", c.Observability.LogFormat)
	}

	if len(c.Identity.Fixtures) > 0 && c.Identity.FixturesDir != "" {
		return fmt.Errorf("configure one of identity.fixtures or identity.fixtures_dir, not both")
	}

	return nil
}
