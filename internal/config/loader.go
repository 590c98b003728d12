package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// envPrefix scopes environment configuration. A key's path separator
// is a double underscore: TETHER_SERVER__HTTP_PORT -> server.http_port.
const envPrefix = "TETHER_"

// Loader assembles configuration from a file, environment variables,
// and command-line flags, in that order of increasing precedence.
type Loader struct {
	k *koanf.Koanf
}

// NewLoader creates a loader without a flag overlay. An empty path
// skips the file layer.
func NewLoader(path string) (*Loader, error) {
	return NewLoaderWithFlags(path, nil)
}

// NewLoaderWithFlags creates a loader that overlays the given flags on
// top of file and environment configuration
func NewLoaderWithFlags(path string, flags *pflag.FlagSet) (*Loader, error) {
	l := &Loader{k: koanf.New(".")}

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := l.k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, envPrefix)
			return strings.ReplaceAll(strings.ToLower(key), "__", "."), value
		},
	})
	if err := l.k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if flags != nil {
		mapping := flagMapping()
		flagProvider := posflag.ProviderWithFlag(flags, ".", l.k, func(f *pflag.Flag) (string, any) {
			path, ok := mapping[f.Name]
			if !ok {
				// Not a config flag (e.g. --config itself)
				return "", nil
			}
			return path, posflag.FlagVal(flags, f)
		})
		if err := l.k.Load(flagProvider, nil); err != nil {
			return nil, fmt.Errorf("failed to read flags: %w", err)
		}
	}

	return l, nil
}

// Get unmarshals the loaded configuration, applies defaults, and
// validates the result
func (l *Loader) Get() (*Config, error) {
	cfg := &Config{}
	if err := l.k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parserFor picks a parser by file extension
func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config file format %q", filepath.Ext(path))
	}
}
