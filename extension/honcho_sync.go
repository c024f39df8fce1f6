package extension

import (
	"context"
	"strings"

	"github.com/alogotron/a0-plugin-honcho/bridge"
)

// HonchoSync pushes each appended history message to Honcho. Payload
// extraction failures, validation failures and push failures are all
// logged and swallowed; the host's history append never fails because
// of memory sync.
type HonchoSync struct {
	baseExtension
	bridge *bridge.Bridge
}

// NewHonchoSync creates the history-sync extension.
func NewHonchoSync(b *bridge.Bridge) *HonchoSync {
	return &HonchoSync{
		baseExtension: baseExtension{name: "honcho-sync", events: []EventType{HistoryAppended}},
		bridge:        b,
	}
}

// Execute pushes the appended message to Honcho.
func (e *HonchoSync) Execute(ctx context.Context, ev Event) (string, error) {
	log := e.bridge.Logger()

	content := strings.TrimSpace(ExtractText(ev.ContentData))
	if content == "" {
		return "", nil
	}

	role := "user"
	if ev.AI {
		role = "assistant"
	}

	if e.bridge.SyncMessage(ctx, ev.Conversation, role, content) {
		log.Debug("synced history message", "role", role, "chars", len(content))
	} else {
		log.Debug("history message not synced", "role", role)
	}
	return "", nil
}
