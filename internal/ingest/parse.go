package ingest

import (
	"encoding/json"
	"strings"
)

// ParseTags extracts a JSON array of strings from a provider reply. Markdown
// code fences around the array are stripped. ok is false when the reply has
// any other shape; the caller then proceeds with no tags.
func ParseTags(raw string) (tags []string, ok bool) {
	s := strings.TrimSpace(raw)
	s = stripFence(s)

	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return []string{}, false
	}
	if out == nil {
		return []string{}, false
	}
	return out, true
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an info string such as "json" on the opening fence line.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
