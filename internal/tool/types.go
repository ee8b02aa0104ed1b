package tool

import (
	"context"
	"strings"
)

// Separator joins a server namespace and a local tool name.
const Separator = "__"

// UnknownServer is the namespace assigned to names without a separator.
const UnknownServer = "unknown"

// BuiltinServer is the namespace of the in-process tools.
const BuiltinServer = "builtin"

// Handler executes a tool in-process and returns its text output.
type Handler func(ctx context.Context, input map[string]any) (string, error)

// Definition describes a tool. A nil Handler means the tool lives in an
// external process and is dispatched remotely.
type Definition struct {
	Server      string
	Name        string
	Description string
	InputSchema map[string]any
	Handler     Handler
}

// QualifiedName is the identifier presented to backends.
func (d Definition) QualifiedName() string {
	return QualifiedName(d.Server, d.Name)
}

// DisplayName is the human-readable identifier.
func (d Definition) DisplayName() string {
	return DisplayName(d.Server, d.Name)
}

// IsLocal reports whether the tool runs in-process.
func (d Definition) IsLocal() bool {
	return d.Handler != nil
}

// QualifiedName builds "server__name".
func QualifiedName(server, name string) string {
	return server + Separator + name
}

// DisplayName builds "server:name".
func DisplayName(server, name string) string {
	return server + ":" + name
}

// ParseQualifiedName splits on the first separator. Names without one are
// placed under UnknownServer.
// TODO: decide whether unnamespaced names should be rejected before dispatch.
func ParseQualifiedName(qualified string) (server, name string) {
	server, name, ok := strings.Cut(qualified, Separator)
	if !ok {
		return UnknownServer, qualified
	}
	return server, name
}

// Declaration is the backend-neutral description of a tool offered to a
// model. Name is always the qualified name.
type Declaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Summary is the listing entry exposed to callers.
type Summary struct {
	Server        string `json:"server"`
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"`
	Description   string `json:"description"`
}
