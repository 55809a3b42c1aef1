// Package runner contains the execution core: the variable context, the
// request executor, and the suite runner.
package runner

import (
	"os"
	"regexp"
	"sort"
)

var (
	varPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)
	envPattern = regexp.MustCompile(`\$\{([^:}]+)(?::([^}]*))?\}`)
)

// Context is the set of template variable bindings active for one execution.
//
// Environment access goes through an injected lookup function so substitution
// stays deterministic and testable; there is no hidden global variable store.
type Context struct {
	vars      map[string]string
	lookupEnv func(string) (string, bool)
}

// ContextOption configures a Context at construction.
type ContextOption func(*Context)

// WithEnvLookup replaces the process-environment lookup used by the
// ${VAR:default} syntax. The default is os.LookupEnv.
func WithEnvLookup(lookup func(string) (string, bool)) ContextOption {
	return func(c *Context) {
		c.lookupEnv = lookup
	}
}

// NewContext creates an empty variable context.
func NewContext(options ...ContextOption) *Context {
	ctx := &Context{
		vars:      make(map[string]string),
		lookupEnv: os.LookupEnv,
	}
	for _, option := range options {
		option(ctx)
	}
	return ctx
}

// WithEnviron seeds the context from KEY=VALUE pairs, typically os.Environ().
func (c *Context) WithEnviron(environ []string) *Context {
	for _, kv := range environ {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				c.vars[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return c
}

// WithVars merges suite-declared variables. Each value is resolved against
// the context as built so far, so a variable may reference earlier bindings.
// Keys are merged in sorted order to keep chained resolution deterministic.
func (c *Context) WithVars(vars map[string]string) *Context {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		c.vars[key] = c.Substitute(vars[key])
	}
	return c
}

// WithDataRow overlays one dataset row onto the context.
func (c *Context) WithDataRow(row map[string]string) *Context {
	for key, value := range row {
		c.vars[key] = value
	}
	return c
}

// WithValue binds a single key.
func (c *Context) WithValue(key, value string) *Context {
	c.vars[key] = value
	return c
}

// Get returns the binding for key, if any.
func (c *Context) Get(key string) (string, bool) {
	value, ok := c.vars[key]
	return value, ok
}

// Clone returns a fully independent copy; mutations on the clone never leak
// back into the parent.
func (c *Context) Clone() *Context {
	clone := &Context{
		vars:      make(map[string]string, len(c.vars)),
		lookupEnv: c.lookupEnv,
	}
	for key, value := range c.vars {
		clone.vars[key] = value
	}
	return clone
}

// Substitute resolves both placeholder syntaxes in text. It never fails:
// unbound {{name}} occurrences are left verbatim, braces included.
//
// The two syntaxes run as independent passes, {{var}} first and then
// ${VAR:default}, so a variable expansion may itself contain an
// environment-style placeholder that is resolved afterward, but not the
// other way around. The ordering is part of the contract.
func (c *Context) Substitute(text string) string {
	result := varPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[2 : len(match)-2]
		if value, ok := c.vars[name]; ok {
			return value
		}
		return match
	})

	result = envPattern.ReplaceAllStringFunc(result, func(match string) string {
		groups := envPattern.FindStringSubmatch(match)
		name, fallback := groups[1], groups[2]

		if value, ok := c.lookupEnv(name); ok {
			return value
		}
		if value, ok := c.vars[name]; ok {
			return value
		}
		return fallback
	})

	return result
}
