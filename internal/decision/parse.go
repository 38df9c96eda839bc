package decision

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNotJSON means no decision object could be recovered from the model
// output; callers should treat the raw text as a conversational reply.
var ErrNotJSON = errors.New("decision: output is not a decision object")

// ParseDecision recovers a Decision from model output. Language-model output
// is unreliable, so parsing is layered: direct JSON parse, then code-fence
// stripping, then extraction of the first balanced {...} block. The
// heuristics live here so orchestration only ever sees a parsed decision or
// ErrNotJSON.
func ParseDecision(raw string) (*Decision, error) {
	if d, ok := tryParse(raw); ok {
		return d, nil
	}

	cleaned := stripFences(raw)
	if d, ok := tryParse(cleaned); ok {
		return d, nil
	}

	if block, ok := firstBalancedObject(cleaned); ok {
		if d, ok := tryParse(block); ok {
			return d, nil
		}
	}
	return nil, ErrNotJSON
}

func tryParse(text string) (*Decision, bool) {
	var d Decision
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &d); err != nil {
		return nil, false
	}
	return &d, true
}

// stripFences removes Markdown code-fence markers and an optional leading
// language tag.
func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = strings.Trim(cleaned, "`")
	cleaned = strings.TrimSpace(cleaned)
	if rest, ok := strings.CutPrefix(cleaned, "json"); ok {
		cleaned = rest
	} else if rest, ok := strings.CutPrefix(cleaned, "JSON"); ok {
		cleaned = rest
	}
	return strings.TrimSpace(cleaned)
}

// firstBalancedObject scans for the first top-level {...} block, tracking
// brace depth and string literals so braces inside strings don't confuse the
// balance count.
func firstBalancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
