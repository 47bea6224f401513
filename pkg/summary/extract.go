package summary

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extract pulls the JSON object out of raw model output. The whole text is
// tried first; failing that, the first '{' and its balanced closing brace.
func Extract(raw string) (map[string]Value, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedOutput)
	}

	if obj, ok := parseObject(raw); ok {
		return obj, nil
	}

	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedOutput)
	}

	end := matchingBrace(raw, start)
	if end < 0 {
		return nil, fmt.Errorf("%w: unbalanced braces", ErrMalformedOutput)
	}

	if obj, ok := parseObject(raw[start : end+1]); ok {
		return obj, nil
	}
	return nil, fmt.Errorf("%w: embedded object is not valid JSON", ErrMalformedOutput)
}

func parseObject(s string) (map[string]Value, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}

	var obj map[string]Value
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// matchingBrace returns the index of the brace closing the one at start, or
// -1. Braces inside JSON strings are ignored.
func matchingBrace(s string, start int) int {
	depth := 0
	inString, escaped := false, false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
