// Package mcpmanifest defines the documents an MCP server publishes for
// discovery and ownership proofs.
//
// A domain owner can prove control of a domain by serving a WellKnown
// document over HTTPS at:
//
//	GET https://<domain>/.well-known/mcp
//
// The document must carry a non-empty "endpoint". Unknown fields are ignored.
package mcpmanifest

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// WellKnownPath is the path of the well-known document on a domain.
const WellKnownPath = "/.well-known/mcp"

// MaxWellKnownSize bounds how much of a well-known response is read.
const MaxWellKnownSize = 64 << 10

// MCPTool describes a tool an MCP server exposes.
type MCPTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"` // JSON Schema object
}

// WellKnown is the document served at WellKnownPath.
type WellKnown struct {
	Endpoint     string    `json:"endpoint"`
	Name         string    `json:"name,omitempty"`
	Version      string    `json:"version,omitempty"`
	Description  string    `json:"description,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
	Tools        []MCPTool `json:"tools,omitempty"`
	Contact      string    `json:"contact,omitempty"`
}

// HasEndpoint reports whether the document names a non-blank endpoint.
func (w *WellKnown) HasEndpoint() bool {
	return w != nil && strings.TrimSpace(w.Endpoint) != ""
}

// URL returns the well-known document URL for domain.
func URL(domain string) string {
	return "https://" + domain + WellKnownPath
}

// Decode reads a WellKnown document from r, reading at most MaxWellKnownSize bytes.
func Decode(r io.Reader) (*WellKnown, error) {
	var doc WellKnown
	if err := json.NewDecoder(io.LimitReader(r, MaxWellKnownSize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode well-known document: %w", err)
	}
	return &doc, nil
}
