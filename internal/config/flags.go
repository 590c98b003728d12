package config

import (
	"reflect"
	"strings"

	"github.com/spf13/pflag"
)

// flagSpec describes one registrable config leaf
type flagSpec struct {
	path  string // koanf path, e.g. "server.http_port"
	name  string // flag name, e.g. "server-http-port"
	usage string
	kind  reflect.Kind
}

// flagSpecs walks the Config struct and collects a spec per scalar
// leaf, deriving names from the koanf tags
func flagSpecs() []flagSpec {
	var specs []flagSpec
	collectSpecs(reflect.TypeOf(Config{}), "", &specs)
	return specs
}

func collectSpecs(t reflect.Type, parent string, specs *[]flagSpec) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("koanf")
		if tag == "" || tag == "-" {
			continue
		}

		path := tag
		if parent != "" {
			path = parent + "." + tag
		}

		ft := field.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}

		// Slices and maps have no flag form
		switch {
		case ft.Kind() == reflect.Struct:
			collectSpecs(ft, path, specs)
		case isScalar(ft.Kind()):
			*specs = append(*specs, flagSpec{
				path:  path,
				name:  flagName(path),
				usage: field.Tag.Get("usage"),
				kind:  ft.Kind(),
			})
		}
	}
}

func isScalar(k reflect.Kind) bool {
	switch k {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// flagName converts a config path to a flag name:
// "server.http_port" -> "server-http-port"
func flagName(path string) string {
	return strings.NewReplacer(".", "-", "_", "-").Replace(path)
}

// RegisterFlags registers a command-line flag for every scalar config
// leaf, so each key is overridable as --server-http-port etc.
func RegisterFlags(flagSet *pflag.FlagSet) {
	for _, spec := range flagSpecs() {
		if flagSet.Lookup(spec.name) != nil {
			continue
		}

		switch spec.kind {
		case reflect.String:
			flagSet.String(spec.name, "", spec.usage)
		case reflect.Bool:
			flagSet.Bool(spec.name, false, spec.usage)
		case reflect.Float32, reflect.Float64:
			flagSet.Float64(spec.name, 0, spec.usage)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			flagSet.Uint(spec.name, 0, spec.usage)
		default:
			flagSet.Int(spec.name, 0, spec.usage)
		}
	}
}

// flagMapping maps flag names back to config paths for the loader
func flagMapping() map[string]string {
	mapping := make(map[string]string)
	for _, spec := range flagSpecs() {
		mapping[spec.name] = spec.path
	}
	return mapping
}
