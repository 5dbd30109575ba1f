package common

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON cleans and unmarshals a JSON object from an LLM reply into T.
// Replies often wrap the object in markdown fences or surrounding prose;
// everything outside the outermost braces is discarded.
func ParseJSON[T any](response string) (T, error) {
	var zero T

	start := strings.Index(response, "{")
	if start == -1 {
		return zero, fmt.Errorf("no JSON object found in response (missing '{')")
	}
	jsonStr := response
	if end := strings.LastIndex(response, "}"); end > start {
		jsonStr = response[start : end+1]
	}

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w\nData: %s", err, jsonStr)
	}
	return result, nil
}

// Excerpt truncates s to at most max runes, marking dropped text with an
// ellipsis. Prompt budgets count characters, so multibyte text is cut on
// rune boundaries rather than bytes.
func Excerpt(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
