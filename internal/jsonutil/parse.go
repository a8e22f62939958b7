// Package jsonutil extracts JSON objects from model responses that may be
// wrapped in markdown code fences or surrounded by prose.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoObject is returned when the text contains no complete JSON object.
var ErrNoObject = errors.New("no JSON object found")

// StripFences removes a ```json ... ``` or ``` ... ``` wrapper. A missing
// closing fence is tolerated. Text without an opening fence is returned
// trimmed.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Drop the info string ("json", "JSON", ...) on the opening line.
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(strings.TrimPrefix(text, "json"), "JSON")
	}
	if end := strings.LastIndex(text, "```"); end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}

// ExtractObject returns the first balanced {...} in text. Braces inside
// string literals are ignored.
func ExtractObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unbalanced braces", ErrNoObject)
}

// ParseObject strips fences from raw, extracts the first JSON object and
// unmarshals it into T.
func ParseObject[T any](raw string) (T, error) {
	var zero T

	obj, err := ExtractObject(StripFences(raw))
	if err != nil {
		return zero, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}

	var result T
	if err := json.Unmarshal([]byte(obj), &result); err != nil {
		return zero, fmt.Errorf("invalid JSON: %w (text: %s)", err, Preview(obj, 200))
	}
	return result, nil
}

// Preview truncates s to at most n bytes for log and error messages.
func Preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
