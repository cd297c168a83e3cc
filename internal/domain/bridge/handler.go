package bridge

import "encoding/json"

// ToolDefinition describes one tool a command handler exposes.
type ToolDefinition struct {
	// Description is the human-readable summary surfaced to the LLM.
	Description string

	// ParameterSchema is the tool's JSON Schema, forwarded verbatim to the
	// MCP endpoint.
	ParameterSchema json.RawMessage

	// Annotations carries optional MCP tool annotations (e.g. hints).
	Annotations map[string]any
}

// PromptProperty describes one argument of a prompt template.
type PromptProperty struct {
	Type        string
	Description string
	Required    bool
}

// PromptDefinition describes one prompt a prompt handler exposes. Rendering
// replaces every "{name}" placeholder in Template with the stringified
// argument value; unknown placeholders are left intact.
type PromptDefinition struct {
	Description string
	Template    string

	// AdditionalProperties declares the prompt's arguments. An empty map
	// means the prompt takes none.
	AdditionalProperties map[string]PromptProperty
}

// ResourceContent is one element of a resource fetch result.
type ResourceContent struct {
	URI      string `json:"uri"`
	Text     string `json:"text"`
	MIMEType string `json:"mimeType,omitempty"`
}

// ResourceResult is what a resource handler returns, forwarded verbatim to
// the MCP endpoint.
type ResourceResult struct {
	Contents []ResourceContent `json:"contents"`
}
