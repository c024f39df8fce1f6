package extension

import "fmt"

// maxExtractDepth bounds how far ExtractText unwraps nested payloads.
const maxExtractDepth = 10

// textKeys are probed in order on each nesting level.
var textKeys = []string{"content", "text", "message"}

// ExtractText pulls a plain-text payload out of a possibly nested
// content structure. Maps are unwrapped through the first truthy
// content/text/message key, up to maxExtractDepth levels. A map whose
// probe keys are all present-but-falsy carries no text and yields "";
// a map with no probe key at all is stringified as-is. Non-map
// terminals are returned as their string form; nil and falsy values
// become "".
func ExtractText(data interface{}) string {
	raw := data
	for depth := 0; depth < maxExtractDepth; depth++ {
		m, ok := raw.(map[string]interface{})
		if !ok {
			break
		}
		var next interface{}
		found := false
		probed := false
		for _, key := range textKeys {
			v, present := m[key]
			if !present {
				continue
			}
			probed = true
			if !isFalsy(v) {
				next = v
				found = true
				break
			}
		}
		if !found {
			if probed {
				return ""
			}
			return fmt.Sprint(m)
		}
		raw = next
	}

	if s, ok := raw.(string); ok {
		return s
	}
	if isFalsy(raw) {
		return ""
	}
	return fmt.Sprint(raw)
}

// isFalsy reports whether a payload value carries no text worth
// descending into: nil, empty string, false, zero numbers and empty
// containers all read as absent.
func isFalsy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	case map[string]interface{}:
		return len(t) == 0
	case []interface{}:
		return len(t) == 0
	default:
		return false
	}
}
