// Package models defines the domain types shared by the knowledge base packages.
package models

import (
	"fmt"
	"strings"
	"time"
)

// DocType names a knowledge base document type. Its value is also the name of
// the directory under the workspace root that holds documents of that type.
type DocType string

const (
	TypeMetadata      DocType = "metadata"
	TypeDebugHistory  DocType = "debug_history"
	TypeQA            DocType = "qa"
	TypeCodeIndex     DocType = "code_index"
	TypePatterns      DocType = "patterns"
	TypeCheatsheets   DocType = "cheatsheets"
	TypePlans         DocType = "plans"
	TypeMemoryAnchors DocType = "memory_anchors"

	// TypeDelta only exists as a legacy JSON schema; it has no directory.
	TypeDelta DocType = "delta"
)

// TypeInfo describes how a document type is stored and validated.
type TypeInfo struct {
	Type DocType
	// Dir is the directory under the workspace root, empty for schema-only types.
	Dir string
	// Schema is the path fragment of the "$schema" URL used by JSON entries.
	Schema string
	// Required lists the top-level fields a JSON entry of this type must carry.
	Required []string
	// ItemsKey and ItemRequired describe the repeated records of a JSON entry.
	ItemsKey     string
	ItemRequired []string
}

var typeTable = []TypeInfo{
	{Type: TypeMetadata, Dir: "metadata", Schema: "/metadata/", Required: []string{"component"}},
	{Type: TypeDebugHistory, Dir: "debug_history", Schema: "/debug/", Required: []string{"component", "entries"},
		ItemsKey: "entries", ItemRequired: []string{"id", "error", "solution", "date"}},
	{Type: TypeQA, Dir: "qa", Schema: "/qa/", Required: []string{"component", "questions"},
		ItemsKey: "questions", ItemRequired: []string{"q", "a"}},
	{Type: TypeCodeIndex, Dir: "code_index", Schema: "/code_index/", Required: []string{"component"}},
	{Type: TypePatterns, Dir: "patterns", Schema: "/pattern/", Required: []string{"component"}},
	{Type: TypeCheatsheets, Dir: "cheatsheets", Schema: "/cheatsheet/", Required: []string{"component"}},
	{Type: TypePlans, Dir: "plans"},
	{Type: TypeMemoryAnchors, Dir: "memory_anchors"},
	{Type: TypeDelta, Schema: "/delta/", Required: []string{"component", "changes"},
		ItemsKey: "changes", ItemRequired: []string{"file", "summary", "type", "date"}},
}

// KnownTypes returns the document types that own a directory, in layout order.
func KnownTypes() []DocType {
	out := make([]DocType, 0, len(typeTable))
	for _, ti := range typeTable {
		if ti.Dir != "" {
			out = append(out, ti.Type)
		}
	}
	return out
}

// KnownTypeNames is KnownTypes as plain strings.
func KnownTypeNames() []string {
	types := KnownTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// Lookup returns the table entry for t.
func Lookup(t DocType) (TypeInfo, bool) {
	for _, ti := range typeTable {
		if ti.Type == t {
			return ti, true
		}
	}
	return TypeInfo{}, false
}

// IsKnown reports whether name is a document type with its own directory.
func IsKnown(name string) bool {
	ti, ok := Lookup(DocType(name))
	return ok && ti.Dir != ""
}

// ParseType validates name against the known directory types.
func ParseType(name string) (DocType, error) {
	if !IsKnown(name) {
		return "", fmt.Errorf("unsupported type %q, expected one of: %s",
			name, strings.Join(KnownTypeNames(), ", "))
	}
	return DocType(name), nil
}

// FromSchema maps a JSON entry "$schema" URL to its type.
func FromSchema(schema string) (TypeInfo, bool) {
	for _, ti := range typeTable {
		if ti.Schema != "" && strings.Contains(schema, ti.Schema) {
			return ti, true
		}
	}
	return TypeInfo{}, false
}

// FileMeta is a lightweight description of a file under the workspace root.
type FileMeta struct {
	Path     string    `json:"path"` // slash-separated, relative to the root
	Checksum string    `json:"checksum"`
	ModTime  time.Time `json:"last_modified"`
}
