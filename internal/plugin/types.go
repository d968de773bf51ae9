// Package plugin runs external executables when letters are committed.
//
// A plugin lives in its own directory with a plugin.json manifest. It is
// started once per action, reads a Request as JSON on stdin and writes a
// Response as JSON on stdout.
package plugin

import "encoding/json"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Supports reports whether the manifest lists action.
func (m Manifest) Supports(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is sent to a plugin on stdin.
type Request struct {
	Action    string          `json:"action"`
	SessionID string          `json:"session_id"`
	Letter    string          `json:"letter"`
	Appended  string          `json:"appended"`
	Word      string          `json:"word"`
	Config    json.RawMessage `json:"config,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
