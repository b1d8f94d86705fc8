package binding

import (
	"sort"

	"github.com/shhac/protobind/internal/domain"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Binding is the marshalling contract for one RPC method.
type Binding struct {
	Type           domain.MethodType
	FullMethodName string // "<service full name>/<method>"
	Request        Marshaller
	Response       Marshaller
	Schema         protoreflect.MethodDescriptor
}

// Path returns the gRPC wire path, "/" + FullMethodName.
func (b Binding) Path() string {
	return "/" + b.FullMethodName
}

// Table maps full method names to bindings. It is read-only once built.
type Table struct {
	entries map[string]Binding
	keys    []string
}

func newTable(bindings []Binding) *Table {
	t := &Table{
		entries: make(map[string]Binding, len(bindings)),
		keys:    make([]string, 0, len(bindings)),
	}
	for _, b := range bindings {
		if _, dup := t.entries[b.FullMethodName]; !dup {
			t.keys = append(t.keys, b.FullMethodName)
		}
		t.entries[b.FullMethodName] = b
	}
	sort.Strings(t.keys)
	return t
}

// Get returns the binding for a full method name.
func (t *Table) Get(fullMethodName string) (Binding, bool) {
	b, ok := t.entries[fullMethodName]
	return b, ok
}

// Len returns the number of bindings.
func (t *Table) Len() int {
	return len(t.entries)
}

// Keys returns the full method names, sorted.
func (t *Table) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Range calls fn for each binding in key order until fn returns false.
func (t *Table) Range(fn func(fullMethodName string, b Binding) bool) {
	for _, k := range t.keys {
		if !fn(k, t.entries[k]) {
			return
		}
	}
}
