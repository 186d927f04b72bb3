package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Hardcoded replies used when a Response itself cannot be encoded.
const (
	FallbackParseError         = `{"Target":"unknown","Action":"Error","Data":"Critical JSON error"}`
	FallbackSerializationError = `{"Target":"unknown","Action":"Error","Data":"Response serialization error"}`
)

// EmptyState is the encoding of an empty state snapshot.
const EmptyState = "{}"

// DecodeMessage parses a raw message. Unknown fields are ignored; anything
// that is not a JSON object is rejected. The error text is suitable for
// returning to the sender as-is.
func DecodeMessage(data []byte) (*Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] != '{' {
		return nil, fmt.Errorf("JSON parse error: message must be a JSON object")
	}

	var msg Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}
	return &msg, nil
}

// EncodeMessage serializes a Message.
func EncodeMessage(msg *Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("message is nil")
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return b, nil
}

// EncodeResponse serializes a Response with its extension fields flattened.
func EncodeResponse(resp *Response) ([]byte, error) {
	if resp == nil {
		return nil, errors.New("response is nil")
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return b, nil
}

// DecodeResponse parses an encoded Response and validates its fixed fields.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.Action == "" {
		return nil, fmt.Errorf("response missing required field: Action")
	}
	if resp.Target == "" {
		return nil, fmt.Errorf("response missing required field: Target")
	}
	return &resp, nil
}

// EncodeState serializes a state snapshot as a JSON object.
func EncodeState(snapshot map[string]string) ([]byte, error) {
	if snapshot == nil {
		return []byte(EmptyState), nil
	}
	b, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("JSON serialization error: %w", err)
	}
	return b, nil
}

// DecodeState parses a state snapshot produced by EncodeState.
func DecodeState(data []byte) (map[string]string, error) {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}
