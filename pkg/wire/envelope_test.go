package wire

import (
	"strings"
	"testing"
)

func TestRequest_Encode_FieldOrder(t *testing.T) {
	req := Request{
		Command: "menu.execute",
		Type:    TypeCommand,
		Params:  map[string]any{"menuItem": "File/Save Project"},
		ID:      "1",
	}

	data, err := req.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	want := `{"command":"menu.execute","type":"","params":{"menuItem":"File/Save Project"},"id":"1"}` + "\n"
	if string(data) != want {
		t.Errorf("Encode() = %s, want %s", data, want)
	}
}

func TestRequest_Encode_ResourceType(t *testing.T) {
	req := Request{
		Command: "scene.get_hierarchy",
		Type:    TypeResource,
		Params:  map[string]any{},
		ID:      "14",
	}

	data, err := req.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if !strings.Contains(string(data), `"type":"resource"`) {
		t.Errorf("Encode() = %s, want resource type marker", data)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("Encode() output missing newline terminator")
	}
}

func TestResponse_Encode(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want string
	}{
		{
			name: "success with result",
			resp: Response{Status: StatusSuccess, Result: map[string]any{"success": true}, ID: "1"},
			want: `{"status":"success","result":{"success":true},"id":"1"}` + "\n",
		},
		{
			name: "error with message",
			resp: Response{Status: StatusError, Message: "unknown command", ID: "2"},
			want: `{"status":"error","message":"unknown command","id":"2"}` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.resp.Encode()
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Encode() = %s, want %s", data, tt.want)
			}
		})
	}
}

func TestRegistration_Encode(t *testing.T) {
	reg := NewRegistration("editor-1", &ClientInfo{ProductName: "Demo", UnityVersion: "6000.0.32f1"})

	data, err := reg.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	want := `{"type":"registration","clientId":"editor-1","clientInfo":{"productName":"Demo","unityVersion":"6000.0.32f1"}}` + "\n"
	if string(data) != want {
		t.Errorf("Encode() = %s, want %s", data, want)
	}
}

func TestDecode_Classification(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		isRegistration bool
		hasID          bool
		isAsyncEvent   bool
	}{
		{
			name:           "registration",
			raw:            `{"type":"registration","clientId":"ed-1","clientInfo":{"productName":"Demo"}}`,
			isRegistration: true,
		},
		{
			name:  "response",
			raw:   `{"status":"success","result":{"ok":true},"id":"3"}`,
			hasID: true,
		},
		{
			name:         "async event",
			raw:          `{"type":"message","message":"compile finished"}`,
			isAsyncEvent: true,
		},
		{
			name:  "request echo",
			raw:   `{"command":"ping","type":"","id":"9"}`,
			hasID: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if got := env.IsRegistration(); got != tt.isRegistration {
				t.Errorf("IsRegistration() = %v, want %v", got, tt.isRegistration)
			}
			if got := env.HasID(); got != tt.hasID {
				t.Errorf("HasID() = %v, want %v", got, tt.hasID)
			}
			if got := env.IsAsyncEvent(); got != tt.isAsyncEvent {
				t.Errorf("IsAsyncEvent() = %v, want %v", got, tt.isAsyncEvent)
			}
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := Decode([]byte("not an object")); err == nil {
		t.Error("Decode() error = nil, want failure for malformed input")
	}
}

func TestEnvelope_IsSuccess(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"success with result", `{"status":"success","result":{"n":1},"id":"1"}`, true},
		{"success without result", `{"status":"success","id":"1"}`, false},
		{"error status", `{"status":"error","message":"boom","id":"1"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if got := env.IsSuccess(); got != tt.want {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.want)
			}
		})
	}
}
