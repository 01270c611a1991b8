// Package assess implements the LLM-backed collaborators of an interview
// session: answer evaluation, follow-up questions and the final report.
package assess

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedOutput is returned when a model reply is not the JSON object
// the prompt asked for.
var ErrMalformedOutput = errors.New("assess: malformed model output")

// ParseJSON decodes a model reply into v. Models often wrap JSON in a
// Markdown code fence; a leading ```json or ``` line and a trailing ``` are
// stripped first.
func ParseJSON(content string, v any) error {
	s := stripFence(content)
	if s == "" {
		return fmt.Errorf("%w: empty reply", ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	return nil
}

func stripFence(content string) string {
	s := strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
