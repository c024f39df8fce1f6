package extension

import (
	"context"
	"strings"
	"sync"
)

// Extension processes lifecycle events. A returned fragment (only
// meaningful for PromptBuild) is spliced into the system prompt.
type Extension interface {
	// Name returns the extension's identifier.
	Name() string
	// Matches returns true if the extension handles this event type.
	Matches(t EventType) bool
	// Execute processes an event and optionally returns a prompt
	// fragment.
	Execute(ctx context.Context, ev Event) (string, error)
}

// baseExtension provides shared fields for extension implementations.
type baseExtension struct {
	name   string
	events []EventType
}

func (e *baseExtension) Name() string { return e.name }

func (e *baseExtension) Matches(t EventType) bool {
	for _, ev := range e.events {
		if ev == t {
			return true
		}
	}
	return false
}

// Logger is a minimal logging interface so the registry doesn't depend
// on telemetry.
type Logger interface {
	Warn(msg string, keyvals ...interface{})
}

// Registry dispatches events to registered extensions.
//
// Dispatch rules:
//  1. Extensions execute sequentially in registration order.
//  2. Failures and panics are logged and swallowed — nothing ever
//     propagates to the host.
//  3. Returned prompt fragments are concatenated in order.
//  4. A nil Registry is safe to use; Emit returns "".
type Registry struct {
	mu         sync.RWMutex
	extensions []Extension
	enabled    bool
	logger     Logger
}

// NewRegistry creates an enabled registry. Pass nil logger for silent
// operation.
func NewRegistry(logger Logger) *Registry {
	return &Registry{
		extensions: make([]Extension, 0),
		enabled:    true,
		logger:     logger,
	}
}

// Register adds an extension to the registry.
func (r *Registry) Register(e Extension) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extensions = append(r.extensions, e)
}

// SetEnabled controls whether the registry dispatches events.
func (r *Registry) SetEnabled(enabled bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

// Emit dispatches an event to all matching extensions and returns the
// concatenated prompt fragments.
func (r *Registry) Emit(ctx context.Context, ev Event) string {
	if r == nil {
		return ""
	}
	r.mu.RLock()
	if !r.enabled {
		r.mu.RUnlock()
		return ""
	}
	// Copy to avoid holding the lock during execution.
	extensions := make([]Extension, len(r.extensions))
	copy(extensions, r.extensions)
	r.mu.RUnlock()

	var fragments strings.Builder
	for _, e := range extensions {
		if !e.Matches(ev.Type) {
			continue
		}
		fragment, err := r.execute(ctx, e, ev)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("extension failed (non-fatal)",
					"extension", e.Name(),
					"event", string(ev.Type),
					"error", err,
				)
			}
			continue
		}
		fragments.WriteString(fragment)
	}
	return fragments.String()
}

// execute runs one extension, converting panics into errors.
func (r *Registry) execute(ctx context.Context, e Extension, ev Event) (fragment string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			fragment = ""
			if r.logger != nil {
				r.logger.Warn("extension panicked",
					"extension", e.Name(),
					"event", string(ev.Type),
					"panic", rec,
				)
			}
		}
	}()
	return e.Execute(ctx, ev)
}
