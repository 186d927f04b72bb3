package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Well-known response actions.
const (
	ActionError = "Error"

	// UnknownSender addresses replies to messages that carry no From.
	UnknownSender = "unknown"
)

// Message is an inbound process message. Every field is optional. From and
// Data are pointers so an explicit "" stays distinct from an absent field.
type Message struct {
	ID          string  `json:"Id,omitempty"`
	From        *string `json:"From,omitempty"`
	Owner       string  `json:"Owner,omitempty"`
	Target      string  `json:"Target,omitempty"`
	Anchor      string  `json:"Anchor,omitempty"`
	Data        *string `json:"Data,omitempty"`
	Tags        Tags    `json:"Tags,omitempty"`
	Timestamp   Text    `json:"Timestamp,omitempty"`
	BlockHeight Text    `json:"Block-Height,omitempty"`
	HashChain   string  `json:"Hash-Chain,omitempty"`
}

// Tag returns the named tag and whether it was present.
func (m *Message) Tag(name string) (string, bool) {
	if m == nil || m.Tags == nil {
		return "", false
	}
	v, ok := m.Tags[name]
	return v, ok
}

// Sender returns From, or UnknownSender when it is absent. An explicit
// empty From is returned as-is.
func (m *Message) Sender() string {
	if m == nil || m.From == nil {
		return UnknownSender
	}
	return *m.From
}

// Value returns Data and whether it was present.
func (m *Message) Value() (string, bool) {
	if m == nil || m.Data == nil {
		return "", false
	}
	return *m.Data, true
}

// Tags carries out-of-band directives such as Action and Key.
//
// It decodes from either a JSON object ({"Action":"Set"}) or the list form
// used on the wire by AO ([{"name":"Action","value":"Set"}]). In the list form
// a later duplicate name replaces an earlier one.
type Tags map[string]string

func (t *Tags) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = nil
		return nil
	}

	if b[0] == '[' {
		var list []map[string]string
		if err := json.Unmarshal(b, &list); err != nil {
			return fmt.Errorf("tags list: %w", err)
		}
		out := make(Tags, len(list))
		for i, entry := range list {
			name := firstNonEmpty(entry["name"], entry["Name"])
			if name == "" {
				return fmt.Errorf("tags[%d]: missing name", i)
			}
			out[name] = firstNonEmpty(entry["value"], entry["Value"])
		}
		*t = out
		return nil
	}

	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*t = m
	return nil
}

// Text is a string field that also accepts a bare JSON number, keeping its
// decimal text. Timestamp and Block-Height arrive in both shapes.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*t = Text(n.String())
	return nil
}

// Response is the outbound reply. Target, Action and Data are always encoded;
// Extra entries are flattened alongside them. On a name collision the fixed
// field wins and the Extra entry is dropped.
type Response struct {
	Target string
	Action string
	Data   string
	Extra  map[string]string
}

// NewResponse builds a response with an empty extension map.
func NewResponse(target, action, data string) *Response {
	return &Response{
		Target: target,
		Action: action,
		Data:   data,
		Extra:  map[string]string{},
	}
}

// ErrorResponse builds an Error-typed response.
func ErrorResponse(target, message string) *Response {
	return NewResponse(target, ActionError, message)
}

// WithField sets an extension field and returns r for chaining.
func (r *Response) WithField(key, value string) *Response {
	if r.Extra == nil {
		r.Extra = map[string]string{}
	}
	r.Extra[key] = value
	return r
}

// IsError reports whether r is an Error-typed response.
func (r *Response) IsError() bool {
	return r != nil && r.Action == ActionError
}

func (r Response) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(r.Extra)+3)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["Target"] = r.Target
	out["Action"] = r.Action
	out["Data"] = r.Data
	return json.Marshal(out)
}

func (r *Response) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*r = Response{Extra: map[string]string{}}
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			// Extension values are strings; anything else is skipped.
			continue
		}
		switch k {
		case "Target":
			r.Target = s
		case "Action":
			r.Action = s
		case "Data":
			r.Data = s
		default:
			r.Extra[k] = s
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
