// Package config loads YAML configuration files with environment expansion.
//
// References take the shell forms ${NAME} and ${NAME:-fallback}; the fallback
// applies when NAME is unset or empty.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration roots that check themselves
// after decoding.
type Validator interface {
	Validate() error
}

// Load reads filename into target, expanding environment references first.
// Fields absent from the file keep the values target already holds.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	return Decode(data, target)
}

// Decode is Load for an in-memory document.
func Decode[T any](data []byte, target *T) error {
	expanded := Expand(string(data))

	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

// Expand replaces ${NAME} and ${NAME:-fallback} references with values from
// the process environment.
func Expand(s string) string {
	return os.Expand(s, func(ref string) string {
		name, fallback, hasFallback := strings.Cut(ref, ":-")
		if v := os.Getenv(name); v != "" || !hasFallback {
			return v
		}
		return fallback
	})
}
