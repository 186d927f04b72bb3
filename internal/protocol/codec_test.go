package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		checkFn func(t *testing.T, msg *Message)
	}{
		{
			name: "all fields",
			input: `{"Id":"m1","From":"alice","Owner":"o","Target":"p","Anchor":"a","Data":"v",
				"Tags":{"Action":"Set","Key":"k"},"Timestamp":"1700000000","Block-Height":"42","Hash-Chain":"h"}`,
			checkFn: func(t *testing.T, msg *Message) {
				data, _ := msg.Value()
				if msg.ID != "m1" || msg.Sender() != "alice" || data != "v" {
					t.Errorf("unexpected message: %+v", msg)
				}
				if msg.BlockHeight != "42" || msg.HashChain != "h" {
					t.Errorf("hyphenated fields not decoded: %+v", msg)
				}
				if v, ok := msg.Tag("Action"); !ok || v != "Set" {
					t.Errorf("Tag(Action) = %q, %v", v, ok)
				}
			},
		},
		{
			name:  "empty object",
			input: `{}`,
			checkFn: func(t *testing.T, msg *Message) {
				if msg.Sender() != UnknownSender {
					t.Errorf("Sender() = %q, want %q", msg.Sender(), UnknownSender)
				}
				if _, ok := msg.Value(); ok {
					t.Error("expected no Data")
				}
				if _, ok := msg.Tag("Action"); ok {
					t.Error("expected no Action tag")
				}
			},
		},
		{
			name:  "unknown fields ignored",
			input: `{"From":"bob","Cron":true,"Nested":{"x":1}}`,
			checkFn: func(t *testing.T, msg *Message) {
				if msg.Sender() != "bob" {
					t.Errorf("Sender() = %q", msg.Sender())
				}
			},
		},
		{
			name:  "explicit empty From and Data are present",
			input: `{"From":"","Data":""}`,
			checkFn: func(t *testing.T, msg *Message) {
				if msg.From == nil || msg.Sender() != "" {
					t.Errorf("Sender() = %q, want empty", msg.Sender())
				}
				if v, ok := msg.Value(); !ok || v != "" {
					t.Errorf("Value() = %q, %v, want empty and present", v, ok)
				}
			},
		},
		{
			name:  "null From and Data are absent",
			input: `{"From":null,"Data":null}`,
			checkFn: func(t *testing.T, msg *Message) {
				if msg.Sender() != UnknownSender {
					t.Errorf("Sender() = %q, want %q", msg.Sender(), UnknownSender)
				}
				if _, ok := msg.Value(); ok {
					t.Error("null Data must count as absent")
				}
			},
		},
		{
			name:  "tags in list form",
			input: `{"Tags":[{"name":"Action","value":"Get"},{"Name":"Key","Value":"k1"}]}`,
			checkFn: func(t *testing.T, msg *Message) {
				if v, _ := msg.Tag("Action"); v != "Get" {
					t.Errorf("Action = %q", v)
				}
				if v, _ := msg.Tag("Key"); v != "k1" {
					t.Errorf("Key = %q", v)
				}
			},
		},
		{
			name:  "numeric timestamp and height",
			input: `{"Timestamp":1700000000123,"Block-Height":1500}`,
			checkFn: func(t *testing.T, msg *Message) {
				if msg.Timestamp != "1700000000123" || msg.BlockHeight != "1500" {
					t.Errorf("Timestamp=%q BlockHeight=%q", msg.Timestamp, msg.BlockHeight)
				}
			},
		},
		{name: "malformed", input: `{"From":`, wantErr: true},
		{name: "not an object", input: `["Action"]`, wantErr: true},
		{name: "empty input", input: ``, wantErr: true},
		{name: "tag list without name", input: `{"Tags":[{"value":"x"}]}`, wantErr: true},
		{name: "non-string tag value", input: `{"Tags":{"Count":5}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !strings.HasPrefix(err.Error(), "JSON parse error: ") {
					t.Errorf("error %q lacks JSON parse error prefix", err)
				}
				return
			}
			if tt.checkFn != nil {
				tt.checkFn(t, msg)
			}
		})
	}
}

func TestEncodeResponseFlattensExtra(t *testing.T) {
	resp := NewResponse("alice", "Get-Response", "v").WithField("Key", "k")

	b, err := EncodeResponse(resp)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}

	var out map[string]string
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := map[string]string{"Target": "alice", "Action": "Get-Response", "Data": "v", "Key": "k"}
	for k, v := range want {
		if out[k] != v {
			t.Errorf("%s = %q, want %q", k, out[k], v)
		}
	}
	if len(out) != len(want) {
		t.Errorf("unexpected fields: %v", out)
	}
}

func TestEncodeResponseFixedFieldsWin(t *testing.T) {
	resp := NewResponse("alice", "Set-Response", "ok").
		WithField("Action", "Spoofed").
		WithField("Target", "mallory")

	b, err := EncodeResponse(resp)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}

	decoded, err := DecodeResponse(b)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if decoded.Action != "Set-Response" || decoded.Target != "alice" {
		t.Errorf("fixed fields overridden: %+v", decoded)
	}
	if len(decoded.Extra) != 0 {
		t.Errorf("colliding extra fields should be dropped, got %v", decoded.Extra)
	}
}

func TestEncodeResponseAlwaysHasFixedFields(t *testing.T) {
	b, err := EncodeResponse(&Response{})
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	s := string(b)
	for _, field := range []string{`"Target":""`, `"Action":""`, `"Data":""`} {
		if !strings.Contains(s, field) {
			t.Errorf("missing %s in %s", field, s)
		}
	}

	if _, err := EncodeResponse(nil); err == nil {
		t.Error("expected error for nil response")
	}
}

func TestDecodeResponse(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"Target":"a","Action":"Get-Response","Data":"v","Key":"k","Count":3}`))
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if resp.Extra["Key"] != "k" {
		t.Errorf("Extra[Key] = %q", resp.Extra["Key"])
	}
	if _, ok := resp.Extra["Count"]; ok {
		t.Error("non-string extension should be skipped")
	}

	if _, err := DecodeResponse([]byte(`{"Target":"a","Data":"v"}`)); err == nil {
		t.Error("expected error for missing Action")
	}
	if _, err := DecodeResponse([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestFallbacksDecode(t *testing.T) {
	for _, raw := range []string{FallbackParseError, FallbackSerializationError} {
		resp, err := DecodeResponse([]byte(raw))
		if err != nil {
			t.Fatalf("fallback %s does not decode: %v", raw, err)
		}
		if !resp.IsError() || resp.Target != UnknownSender {
			t.Errorf("unexpected fallback response: %+v", resp)
		}
	}
}

func TestStateRoundTrip(t *testing.T) {
	b, err := EncodeState(nil)
	if err != nil || string(b) != EmptyState {
		t.Fatalf("EncodeState(nil) = %s, %v", b, err)
	}

	b, err = EncodeState(map[string]string{"name": "Alice", "city": "New York"})
	if err != nil {
		t.Fatalf("EncodeState: %v", err)
	}
	m, err := DecodeState(b)
	if err != nil {
		t.Fatalf("DecodeState: %v", err)
	}
	if m["name"] != "Alice" || m["city"] != "New York" || len(m) != 2 {
		t.Errorf("unexpected state: %v", m)
	}

	m, err = DecodeState([]byte("null"))
	if err != nil || m == nil || len(m) != 0 {
		t.Errorf("DecodeState(null) = %v, %v", m, err)
	}
}

func TestEncodeMessage(t *testing.T) {
	from, data := "alice", ""
	b, err := EncodeMessage(&Message{From: &from, Data: &data, Tags: Tags{"Action": "Info"}})
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	msg, err := DecodeMessage(b)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if msg.Sender() != "alice" {
		t.Errorf("Sender() = %q", msg.Sender())
	}
	if v, ok := msg.Value(); !ok || v != "" {
		t.Errorf("empty Data must survive a round trip, got %q, %v", v, ok)
	}
	if v, _ := msg.Tag("Action"); v != "Info" {
		t.Errorf("Action = %q", v)
	}
	if strings.Contains(string(b), "Hash-Chain") {
		t.Errorf("empty fields should be omitted: %s", b)
	}
}
