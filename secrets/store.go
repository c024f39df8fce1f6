// Package secrets abstracts where the host keeps its credentials. The
// bridge only ever asks for string key-value pairs; it does not care
// whether they come from the environment, a file or the host's own
// secrets manager.
package secrets

import (
	"os"
	"strings"
)

// Store returns string key-value secret pairs.
type Store interface {
	Load() (map[string]string, error)
}

// StaticStore is a fixed in-memory store, mainly for tests and hosts
// that resolve secrets themselves.
type StaticStore map[string]string

// Load returns a copy of the stored pairs.
func (s StaticStore) Load() (map[string]string, error) {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

// EnvStore reads secrets from process environment variables.
type EnvStore struct {
	// Prefix, when set, restricts the store to variables with this
	// prefix. The prefix is kept in the returned keys.
	Prefix string
}

// Load returns the matching environment variables.
func (s EnvStore) Load() (map[string]string, error) {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if s.Prefix != "" && !strings.HasPrefix(k, s.Prefix) {
			continue
		}
		out[k] = v
	}
	return out, nil
}
