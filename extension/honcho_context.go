package extension

import (
	"context"
	"fmt"
	"strings"

	"github.com/alogotron/a0-plugin-honcho/bridge"
)

// contextTemplate wraps the fetched user context for the system prompt.
const contextTemplate = `

# Honcho User Context
- Persistent memory about the user from previous conversations.
- Use this information to personalise responses.

<honcho_context>
%s
</honcho_context>
`

// HonchoContext injects persistent user context from Honcho into the
// system prompt. Lazy: no restart is required when secrets are added
// after startup. On any failure it contributes nothing.
type HonchoContext struct {
	baseExtension
	bridge *bridge.Bridge
}

// NewHonchoContext creates the prompt-injection extension.
func NewHonchoContext(b *bridge.Bridge) *HonchoContext {
	return &HonchoContext{
		baseExtension: baseExtension{name: "honcho-context", events: []EventType{PromptBuild}},
		bridge:        b,
	}
}

// Execute returns a system-prompt fragment with the user context, or
// the empty string.
func (e *HonchoContext) Execute(ctx context.Context, ev Event) (string, error) {
	text, ok := e.bridge.UserContext(ctx, ev.Conversation, bridge.DefaultContextTokens)
	if !ok {
		return "", nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	return fmt.Sprintf(contextTemplate, text), nil
}
