package enrichment

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ParseCompletion extracts the JSON object from a completion. It tries, in order,
// the whole text, fenced code blocks, and the first top-level {...} span. Failure is an
// *Error of kind ErrMalformedResponse.
func ParseCompletion(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &Error{Kind: ErrMalformedResponse, Err: errors.New("empty completion")}
	}

	if obj, ok := decodeObject(text); ok {
		return obj, nil
	}

	for _, match := range fencedBlockPattern.FindAllStringSubmatch(text, -1) {
		if obj, ok := decodeObject(match[1]); ok {
			return obj, nil
		}
	}

	if span := firstBalancedObject(text); span != "" {
		if obj, ok := decodeObject(span); ok {
			return obj, nil
		}
	}

	return nil, &Error{Kind: ErrMalformedResponse, Err: errors.New("no JSON object found in completion")}
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// firstBalancedObject returns the first brace-balanced {...} span, skipping braces inside strings.
func firstBalancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
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
				return s[start : i+1]
			}
		}
	}
	return ""
}
