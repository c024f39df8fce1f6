package bridge

import (
	"fmt"
	"strings"
	"unicode/utf8"

	bridgeErrors "github.com/alogotron/a0-plugin-honcho/errors"
)

// normalizeRole trims and lowercases a role and rejects anything other
// than user or assistant.
func normalizeRole(role string) (string, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != "user" && role != "assistant" {
		return "", bridgeErrors.New(bridgeErrors.CodeInvalidRole,
			fmt.Sprintf("invalid message role %q, must be user or assistant", role))
	}
	return role, nil
}

// validateContent rejects blank content and returns it trimmed.
func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", bridgeErrors.New(bridgeErrors.CodeEmptyContent, "content must not be empty")
	}
	return content, nil
}

// truncate caps s at limit bytes, backing off to a rune boundary so a
// multi-byte character is never split.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// preview returns a log-safe prefix of s.
func preview(s string) string {
	if len(s) <= logPreviewLength {
		return s
	}
	return truncate(s, logPreviewLength) + "…[truncated]"
}
