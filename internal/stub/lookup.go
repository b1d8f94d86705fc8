package stub

import (
	"sort"
	"sync"
)

// TypeLookup finds a type by name within a stub package.
type TypeLookup interface {
	LookupType(pkg, name string) (Shape, bool)
}

// LookupFunc adapts a function to TypeLookup.
type LookupFunc func(pkg, name string) (Shape, bool)

// LookupType calls f.
func (f LookupFunc) LookupType(pkg, name string) (Shape, bool) {
	return f(pkg, name)
}

// Catalog is a TypeLookup over an explicit set of known types. It is safe
// for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	types map[typeKey]Shape
}

// typeKey keeps package and name apart, so "a.b"+"c" and "a"+"b.c" differ.
type typeKey struct {
	pkg, name string
}

// NewCatalog returns a catalog holding the given named shapes.
func NewCatalog(shapes ...Shape) *Catalog {
	c := &Catalog{types: make(map[typeKey]Shape)}
	for _, s := range shapes {
		c.Add(s)
	}
	return c
}

// Add registers a named shape. Other kinds are ignored.
func (c *Catalog) Add(s Shape) {
	if s.Kind != Named {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[typeKey{pkg: s.Package, name: s.Name}] = s
}

// LookupType implements TypeLookup.
func (c *Catalog) LookupType(pkg, name string) (Shape, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.types[typeKey{pkg: pkg, name: name}]
	return s, ok
}

// Names returns the qualified names of every registered type, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.types))
	for _, s := range c.types {
		names = append(names, s.String())
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered types.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.types)
}

// CatalogOf returns a catalog of every named type that appears in t's
// method signatures.
func CatalogOf(t Type) *Catalog {
	c := NewCatalog()
	var walk func(s Shape)
	walk = func(s Shape) {
		c.Add(s)
		for _, e := range s.Elems {
			walk(e)
		}
	}
	for _, m := range t.Methods {
		for _, p := range m.Params {
			walk(p)
		}
		walk(m.Return)
	}
	return c
}
