package ai

import (
	"encoding/json"
	"strings"
)

// bestErrorMessage digs the most useful message out of an upstream error
// payload. Providers disagree on shape, so several are tried before falling
// back to the raw body.
func bestErrorMessage(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "empty error body"
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Msg != "" {
			return envelope.Msg
		}
	}

	// Some gateways return {"error": "plain string"}.
	var stringEnvelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &stringEnvelope); err == nil && stringEnvelope.Error != "" {
		return stringEnvelope.Error
	}

	if len(trimmed) > 300 {
		trimmed = trimmed[:300]
	}
	return trimmed
}

// DecodeStructured parses a model reply that was asked to return JSON.
// Markdown fences and surrounding prose are tolerated; anything that still
// fails to parse surfaces as MalformedResponseError rather than a partial
// result.
func DecodeStructured(provider, text string, out interface{}) error {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	if jsonStr, ok := firstJSONObject(cleaned); ok {
		cleaned = jsonStr
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return &MalformedResponseError{Provider: provider, Msg: err.Error()}
	}
	return nil
}

// firstJSONObject finds the first outermost balanced {...}.
func firstJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if char == '{' {
				depth++
			} else if char == '}' {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}
