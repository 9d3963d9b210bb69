// Package node maps logical SeaweedFS node names to container identities and roles.
package node

import (
	"sort"
	"strings"
)

// Type is the closed set of cluster roles a node can have.
type Type int

const (
	TypeUnknown Type = iota
	TypeMaster
	TypeVolume
	TypeFiler
	TypeGateway
)

// String returns the lowercase role name.
func (t Type) String() string {
	switch t {
	case TypeMaster:
		return "master"
	case TypeVolume:
		return "volume"
	case TypeFiler:
		return "filer"
	case TypeGateway:
		return "gateway"
	default:
		return "unknown"
	}
}

// Known reports whether t is a classified role.
func (t Type) Known() bool {
	return t != TypeUnknown
}

// Role markers, checked in this order. "filer" goes first because filer
// containers also run the embedded S3 server and are named accordingly.
const (
	markerFiler   = "filer"
	markerMaster  = "master"
	markerVolume  = "volume"
	markerGateway = "s3"
)

// Classify derives the node role from a container or short name by
// case-insensitive substring match.
func Classify(name string) Type {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, markerFiler):
		return TypeFiler
	case strings.Contains(lower, markerMaster):
		return TypeMaster
	case strings.Contains(lower, markerVolume):
		return TypeVolume
	case strings.Contains(lower, markerGateway):
		return TypeGateway
	default:
		return TypeUnknown
	}
}

// Identity is a resolved node.
type Identity struct {
	ShortName string
	FullName  string
	Type      Type
}

// Table is a read-only mapping of short names to container names.
type Table struct {
	names map[string]string
}

// NewTable copies names into a new table.
func NewTable(names map[string]string) *Table {
	t := &Table{names: make(map[string]string, len(names))}
	for short, full := range names {
		t.names[short] = full
	}
	return t
}

// Lookup returns the container name registered for short.
func (t *Table) Lookup(short string) (string, bool) {
	if t == nil {
		return "", false
	}
	full, ok := t.names[short]
	return full, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Names returns the short names in the table, sorted.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.names))
	for short := range t.names {
		names = append(names, short)
	}
	sort.Strings(names)
	return names
}

// Merge returns a new table with other's entries taking precedence.
func (t *Table) Merge(other *Table) *Table {
	merged := NewTable(nil)
	if t != nil {
		for short, full := range t.names {
			merged.names[short] = full
		}
	}
	if other != nil {
		for short, full := range other.names {
			merged.names[short] = full
		}
	}
	return merged
}

// Resolver turns short names into identities. It holds no mutable state.
type Resolver struct {
	table *Table
}

// NewResolver creates a resolver backed by table.
func NewResolver(table *Table) *Resolver {
	return &Resolver{table: table}
}

// Resolve maps short to its container identity. Names absent from the table
// pass through unchanged, so both short and full names can be addressed.
// The role is classified from the name the caller used.
func (r *Resolver) Resolve(short string) Identity {
	full, ok := r.table.Lookup(short)
	if !ok {
		full = short
	}
	return Identity{
		ShortName: short,
		FullName:  full,
		Type:      Classify(short),
	}
}
