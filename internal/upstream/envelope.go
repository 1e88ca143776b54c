package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelope is the shape returned by the admin endpoints.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// decode normalises both response styles:
//
//	{"success": true, "data": {...}, "message": "..."}
//	{"challenges": [...]}
//
// For either style, key selects a named field inside the payload when the
// payload is an object that carries it.
func decode[T any](status int, body []byte, key string) Result[T] {
	ok := status >= 200 && status < 300
	body = bytes.TrimSpace(body)

	var fields map[string]json.RawMessage
	isObject := len(body) > 0 && body[0] == '{' && json.Unmarshal(body, &fields) == nil

	payload := json.RawMessage(body)
	if isObject {
		if _, wrapped := fields["success"]; wrapped {
			var env envelope
			if err := json.Unmarshal(body, &env); err != nil {
				return failure[T](status, fmt.Sprintf("invalid response from server: %v", err))
			}
			if !ok || !env.Success {
				return failure[T](status, firstNonEmpty(env.Message, env.Error, fallbackMessage(status)))
			}
			payload = env.Data
		} else if !ok {
			return failure[T](status, firstNonEmpty(stringField(fields, "message"), stringField(fields, "error"), fallbackMessage(status)))
		}
	} else if !ok {
		return failure[T](status, fallbackMessage(status))
	}

	payload = selectKey(payload, key)

	var value T
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return Result[T]{OK: true, Value: value, Status: status}
	}
	if err := json.Unmarshal(payload, &value); err != nil {
		return failure[T](status, fmt.Sprintf("invalid response from server: %v", err))
	}
	return Result[T]{OK: true, Value: value, Status: status}
}

func selectKey(payload json.RawMessage, key string) json.RawMessage {
	trimmed := bytes.TrimSpace(payload)
	if key == "" || len(trimmed) == 0 || trimmed[0] != '{' {
		return payload
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return payload
	}
	if inner, ok := fields[key]; ok {
		return inner
	}
	return payload
}

func stringField(fields map[string]json.RawMessage, name string) string {
	raw, ok := fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func fallbackMessage(status int) string {
	return fmt.Sprintf("request failed with status %d", status)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
