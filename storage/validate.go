// Session schema validation.
//
// Validation is a pure function returning the itemized violations rather
// than an error, so the caller decides on the empty-session fallback and
// the recovery behavior stays independently testable.

package storage

import (
	"encoding/json"
	"fmt"
)

// Violation describes one schema violation in a stored session record.
type Violation struct {
	Path    string
	Message string
}

// ValidateSession deserializes a stored record and checks it against the
// Session schema. On success the parsed session is returned with no
// violations; otherwise the violations list is non-empty and the session
// value must not be used.
func ValidateSession(data []byte) (*Session, []Violation) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, []Violation{{Path: "$", Message: fmt.Sprintf("not a JSON object: %v", err)}}
	}

	var violations []Violation
	violations = append(violations, checkStringOrNull(raw, "lastResponseId")...)
	violations = append(violations, checkHistory(raw)...)
	violations = append(violations, checkObjectOrNull(raw, "metadata")...)
	if len(violations) > 0 {
		return nil, violations
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, []Violation{{Path: "$", Message: fmt.Sprintf("decode failed: %v", err)}}
	}
	if session.ConversationHistory == nil {
		session.ConversationHistory = []Turn{}
	}
	return &session, nil
}

func checkStringOrNull(raw map[string]json.RawMessage, field string) []Violation {
	val, ok := raw[field]
	if !ok || isNull(val) {
		return nil
	}
	var s string
	if err := json.Unmarshal(val, &s); err != nil {
		return []Violation{{Path: field, Message: "expected string or null"}}
	}
	return nil
}

func checkObjectOrNull(raw map[string]json.RawMessage, field string) []Violation {
	val, ok := raw[field]
	if !ok || isNull(val) {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(val, &m); err != nil {
		return []Violation{{Path: field, Message: "expected object"}}
	}
	return nil
}

func checkHistory(raw map[string]json.RawMessage) []Violation {
	val, ok := raw["conversationHistory"]
	if !ok || isNull(val) {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(val, &entries); err != nil {
		return []Violation{{Path: "conversationHistory", Message: "expected array"}}
	}

	var violations []Violation
	for i, entry := range entries {
		var turn map[string]json.RawMessage
		if err := json.Unmarshal(entry, &turn); err != nil {
			violations = append(violations, Violation{
				Path:    fmt.Sprintf("conversationHistory[%d]", i),
				Message: "expected object",
			})
			continue
		}
		for _, field := range []string{"responseId", "input", "output"} {
			fieldVal, ok := turn[field]
			if !ok || isNull(fieldVal) {
				continue
			}
			var s string
			if err := json.Unmarshal(fieldVal, &s); err != nil {
				violations = append(violations, Violation{
					Path:    fmt.Sprintf("conversationHistory[%d].%s", i, field),
					Message: "expected string",
				})
			}
		}
	}
	return violations
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
