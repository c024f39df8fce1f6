// Package extension plugs the Honcho bridge into the host's agent
// lifecycle: session bootstrap on context creation, message sync on
// history append and user-context injection on prompt build.
package extension

import (
	"time"

	"github.com/alogotron/a0-plugin-honcho/bridge"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// ContextCreated fires once when the host creates a conversation.
	ContextCreated EventType = "context.created"

	// HistoryAppended fires for each message added to the history.
	HistoryAppended EventType = "history.appended"

	// PromptBuild fires while the host assembles its system prompt.
	// Extensions may contribute a prompt fragment.
	PromptBuild EventType = "prompt.build"
)

// Event carries data about a lifecycle occurrence.
type Event struct {
	Type         EventType
	Timestamp    time.Time
	Conversation bridge.Conversation

	// ContentData is the appended message payload for HistoryAppended
	// events; its shape is host-defined and possibly nested.
	ContentData interface{}

	// AI marks the appended message as agent-authored.
	AI bool
}

// NewEvent creates an event with the current timestamp.
func NewEvent(t EventType, conv bridge.Conversation) Event {
	return Event{
		Type:         t,
		Timestamp:    time.Now(),
		Conversation: conv,
	}
}
