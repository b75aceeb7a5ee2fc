package copilot

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)```")

// ErrNoJSONContent is returned when an assistant message carries no JSON object.
var ErrNoJSONContent = errors.New("copilot: no JSON object in message")

// ExtractJSONContent returns the JSON object embedded in text: the first
// fenced code block when present, otherwise the outermost braces.
func ExtractJSONContent(text string) (json.RawMessage, error) {
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		body := strings.TrimSpace(m[1])
		if json.Valid([]byte(body)) {
			return json.RawMessage(body), nil
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, ErrNoJSONContent
	}
	body := text[start : end+1]
	if !json.Valid([]byte(body)) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrNoJSONContent)
	}
	return json.RawMessage(body), nil
}

// DecodeJSONContent decodes the JSON object carried by an assistant message
// into T.
func DecodeJSONContent[T any](event *SessionEvent) (*T, error) {
	if event == nil {
		return nil, ErrNoJSONContent
	}
	raw, err := ExtractJSONContent(event.Text())
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal structured output: %w", err)
	}
	return &out, nil
}
