package httpfixture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// LoadFile loads fixture rules from a JSON or YAML file, chosen by
// extension
func LoadFile(path string) (*RuleProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}

	var set Set
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if err := yaml.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("failed to parse YAML fixtures %s: %w", path, err)
		}
	} else {
		if err := json.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("failed to parse JSON fixtures %s: %w", path, err)
		}
	}

	return NewRuleProvider(set.Rules)
}

// LoadDir loads every .json/.yaml/.yml fixture file in dir into one
// provider. Rules keep file order; files are visited in directory
// order.
func LoadDir(dir string) (*RuleProvider, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture directory: %w", err)
	}

	var rules []Rule
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		provider, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		rules = append(rules, provider.rules...)
	}

	return NewRuleProvider(rules)
}
