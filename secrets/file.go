package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileStore reads secrets from a flat YAML file of string pairs.
// Values may reference environment variables as ${env.VAR} or ${VAR}.
//
// Without Watch, the file is re-read on every Load so keys added after
// startup are picked up without a restart. With Watch, the file is
// parsed once per change and Load serves the cached result.
type FileStore struct {
	path string

	mu       sync.RWMutex
	cached   map[string]string
	watching bool
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewFileStore creates a store backed by the YAML file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the secret pairs from the file. A missing file is an
// empty store, not an error.
func (s *FileStore) Load() (map[string]string, error) {
	s.mu.RLock()
	if s.watching {
		cached := s.cached
		s.mu.RUnlock()
		out := make(map[string]string, len(cached))
		for k, v := range cached {
			out[k] = v
		}
		return out, nil
	}
	s.mu.RUnlock()

	return s.read()
}

// Reload re-reads the file and replaces the cached pairs. Parse errors
// keep the last good values.
func (s *FileStore) Reload() error {
	values, err := s.read()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cached = values
	s.mu.Unlock()
	return nil
}

// Watch starts watching the file's directory for changes and switches
// Load to the cached result. Call Close to stop watching.
func (s *FileStore) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watching {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which drops
	// per-file watches.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
	}

	values, err := s.read()
	if err != nil {
		watcher.Close()
		return err
	}

	s.cached = values
	s.watcher = watcher
	s.watching = true
	s.done = make(chan struct{})

	go s.watchLoop(watcher, s.done)
	return nil
}

// Close stops the watcher started by Watch.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.watching {
		return nil
	}
	close(s.done)
	s.watching = false
	return s.watcher.Close()
}

func (s *FileStore) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	// Debounce rapid write events from editors.
	var debounce *time.Timer
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				_ = s.Reload()
			})
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
			// Keep watching; the last good values stay served.
		}
	}
}

func (s *FileStore) read() (map[string]string, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	content = []byte(interpolateEnv(string(content)))

	var values map[string]string
	if err := yaml.Unmarshal(content, &values); err != nil {
		return nil, fmt.Errorf("failed to parse secrets file: %w", err)
	}
	if values == nil {
		values = map[string]string{}
	}
	return values, nil
}

// interpolateEnv replaces ${env.VAR} and ${VAR} with environment values.
func interpolateEnv(content string) string {
	envPattern := regexp.MustCompile(`\$\{env\.([^}]+)\}`)
	content = envPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // keep original if not found
	})

	varPattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	content = varPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := varPattern.FindStringSubmatch(match)[1]
		if strings.Contains(varName, ".") {
			return match
		}
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return content
}
