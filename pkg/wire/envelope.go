package wire

import (
	"encoding/json"
	"fmt"
)

// Envelope type values. An empty type selects the command dispatcher; any
// value outside this set is a protocol error.
const (
	TypeCommand      = ""
	TypeResource     = "resource"
	TypeRegistration = "registration"
)

// Reserved top-level keys: command, type, params, id, status, result,
// message, clientId, clientInfo.

// Envelope is the decoded form of one wire message. It covers every shape
// that travels on the link (requests, responses, registrations, and async
// events) so receivers decode once and classify with the helpers below.
type Envelope struct {
	Command    string          `json:"command,omitempty"`
	Type       string          `json:"type,omitempty"`
	Params     map[string]any  `json:"params,omitempty"`
	ID         string          `json:"id,omitempty"`
	Status     string          `json:"status,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Message    string          `json:"message,omitempty"`
	ClientID   string          `json:"clientId,omitempty"`
	ClientInfo *ClientInfo     `json:"clientInfo,omitempty"`
}

// Decode unmarshals one framed message into an Envelope.
func Decode(raw []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("wire: decode envelope: %w", err)
	}
	return &e, nil
}

// IsRegistration reports whether this is a client-initiated identity
// rewrite message.
func (e *Envelope) IsRegistration() bool { return e.Type == TypeRegistration }

// HasID reports whether the message carries a correlation id.
func (e *Envelope) HasID() bool { return e.ID != "" }

// IsAsyncEvent reports whether the message matches no pending request and
// no registration; such objects are fanned out to subscribers verbatim.
func (e *Envelope) IsAsyncEvent() bool { return !e.IsRegistration() && !e.HasID() }

// StatusSuccess and StatusError are the two values of the response status
// field.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// IsSuccess reports whether a response envelope carries a deliverable
// result.
func (e *Envelope) IsSuccess() bool {
	return e.Status == StatusSuccess && len(e.Result) > 0
}

// Request is the bridge-to-editor request envelope. Field order is part of
// the wire contract: command, type, params, id, with all four keys always
// present on the line.
type Request struct {
	Command string         `json:"command"`
	Type    string         `json:"type"`
	Params  map[string]any `json:"params"`
	ID      string         `json:"id"`
}

// Encode marshals r and appends the trailing newline the bridge always
// transmits.
func (r Request) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("wire: encode request %s: %w", r.ID, err)
	}
	return append(data, '\n'), nil
}

// Response is the editor-to-bridge reply envelope.
type Response struct {
	Status  string `json:"status"`
	Result  any    `json:"result,omitempty"`
	Message string `json:"message,omitempty"`
	ID      string `json:"id"`
}

// Encode marshals r with a trailing newline. Receivers tolerate the
// newline-free form as well, but emitting the terminator keeps framing
// unambiguous for back-to-back replies.
func (r Response) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("wire: encode response %s: %w", r.ID, err)
	}
	return append(data, '\n'), nil
}

// Registration is the editor-to-bridge identity rewrite message.
type Registration struct {
	Type       string      `json:"type"`
	ClientID   string      `json:"clientId,omitempty"`
	ClientInfo *ClientInfo `json:"clientInfo,omitempty"`
}

// NewRegistration builds a registration message for the given identity.
func NewRegistration(clientID string, info *ClientInfo) Registration {
	return Registration{Type: TypeRegistration, ClientID: clientID, ClientInfo: info}
}

// Encode marshals r with a trailing newline.
func (r Registration) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("wire: encode registration: %w", err)
	}
	return append(data, '\n'), nil
}

// ClientInfo is the metadata block an editor supplies at registration.
// Nothing is validated; every field is an opaque display string.
type ClientInfo struct {
	ProductName     string `json:"productName,omitempty"`
	CompanyName     string `json:"companyName,omitempty"`
	UnityVersion    string `json:"unityVersion,omitempty"`
	Platform        string `json:"platform,omitempty"`
	Mode            string `json:"mode,omitempty"`
	DeviceName      string `json:"deviceName,omitempty"`
	ProjectPath     string `json:"projectPath,omitempty"`
	ProjectPathHash string `json:"projectPathHash,omitempty"`
}
