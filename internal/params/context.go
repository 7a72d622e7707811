package params

import (
	"errors"
	"maps"
	"slices"
)

// Context is an immutable, layered set of named parameter values.
type Context struct {
	values map[string]any
	parent *Context
}

// New creates a root context from a flat set of values. The map is copied,
// later changes made by the caller are not observed.
func New(values map[string]any) *Context {
	return &Context{values: maps.Clone(values)}
}

// Empty returns a root context without any values.
func Empty() *Context {
	return &Context{}
}

// WithOverrides returns a child context in which the given values shadow the
// receiver's. The receiver is left untouched.
func (c *Context) WithOverrides(values map[string]any) *Context {
	return &Context{values: maps.Clone(values), parent: c}
}

// Parent returns the parent context, or nil for a root.
func (c *Context) Parent() *Context {
	if c == nil {
		return nil
	}
	return c.parent
}

// Lookup returns the value bound to name, searching from the child towards
// the root.
func (c *Context) Lookup(name string) (any, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if v, ok := cur.values[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether name is bound anywhere in the chain.
func (c *Context) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Resolve returns the values of the requested parameters. A parameter that
// is not bound falls back to its declared default; a parameter without a
// default yields a *MissingParameterError. All missing parameters are
// reported together.
func (c *Context) Resolve(params []Param) (map[string]any, error) {
	out := make(map[string]any, len(params))
	var errs []error
	for _, p := range params {
		if v, ok := c.Lookup(p.Name); ok {
			out[p.Name] = v
			continue
		}
		if p.HasDefault {
			out[p.Name] = p.Default
			continue
		}
		errs = append(errs, &MissingParameterError{Name: p.Name})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Flatten collapses the chain into a single map in which child values win.
func (c *Context) Flatten() map[string]any {
	var chain []*Context
	for cur := c; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	out := make(map[string]any)
	for i := len(chain) - 1; i >= 0; i-- {
		maps.Copy(out, chain[i].values)
	}
	return out
}

// Keys returns every bound parameter name in sorted order.
func (c *Context) Keys() []string {
	return slices.Sorted(maps.Keys(c.Flatten()))
}

// Depth returns the number of layers in the chain, 0 for a nil context.
func (c *Context) Depth() int {
	n := 0
	for cur := c; cur != nil; cur = cur.parent {
		n++
	}
	return n
}
