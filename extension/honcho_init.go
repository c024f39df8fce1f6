package extension

import (
	"context"

	"github.com/alogotron/a0-plugin-honcho/bridge"
)

// HonchoInit bootstraps the Honcho session when a conversation starts.
// If the integration is unconfigured the conversation is left
// completely untouched; any failure is logged and swallowed.
type HonchoInit struct {
	baseExtension
	bridge *bridge.Bridge
}

// NewHonchoInit creates the init extension.
func NewHonchoInit(b *bridge.Bridge) *HonchoInit {
	return &HonchoInit{
		baseExtension: baseExtension{name: "honcho-init", events: []EventType{ContextCreated}},
		bridge:        b,
	}
}

// Execute eagerly enables the integration for the new conversation.
func (e *HonchoInit) Execute(ctx context.Context, ev Event) (string, error) {
	log := e.bridge.Logger()

	if !e.bridge.IsConfigured() {
		// SDK key not set — skip without touching the conversation.
		log.Debug("honcho not configured, skipping init")
		return "", nil
	}

	if e.bridge.EnsureInitialized(ctx, ev.Conversation) {
		log.Info("honcho integration enabled",
			"session", e.bridge.SessionID(ev.Conversation))
	} else {
		log.Warn("honcho init failed (non-fatal)")
	}
	return "", nil
}
