// Package schema provides a declarative builder for the JSON-schema-shaped
// parameter contracts advertised to LLM vendors. Tool authors declare each
// parameter's name, kind, and constraints explicitly; no runtime reflection
// is involved.
package schema

import (
	"encoding/json"
)

// Option configures a single parameter declaration.
type Option func(*property)

type property struct {
	def      map[string]any
	required bool
}

// Description sets the human-readable description for a parameter.
func Description(text string) Option {
	return func(p *property) { p.def["description"] = text }
}

// Required marks the parameter as required.
func Required() Option {
	return func(p *property) { p.required = true }
}

// Enum restricts a parameter to the given values.
func Enum(values ...string) Option {
	return func(p *property) { p.def["enum"] = values }
}

// Minimum sets the numeric lower bound.
func Minimum(n float64) Option {
	return func(p *property) { p.def["minimum"] = n }
}

// Maximum sets the numeric upper bound.
func Maximum(n float64) Option {
	return func(p *property) { p.def["maximum"] = n }
}

// MinLength sets the minimum string length.
func MinLength(n int) Option {
	return func(p *property) { p.def["minLength"] = n }
}

// MaxLength sets the maximum string length.
func MaxLength(n int) Option {
	return func(p *property) { p.def["maxLength"] = n }
}

// Default sets the default value recorded in the schema.
func Default(v any) Option {
	return func(p *property) { p.def["default"] = v }
}

// Builder accumulates parameter declarations for one object schema.
// The zero value is not usable; start with NewObject.
type Builder struct {
	properties map[string]any
	required   []string
}

// NewObject creates a builder for an object-typed parameter schema.
func NewObject() *Builder {
	return &Builder{properties: make(map[string]any)}
}

func (b *Builder) add(name, typ string, opts []Option) *Builder {
	p := &property{def: map[string]any{"type": typ}}
	for _, opt := range opts {
		opt(p)
	}
	b.properties[name] = p.def
	if p.required {
		b.required = append(b.required, name)
	}
	return b
}

// String declares a string parameter.
func (b *Builder) String(name string, opts ...Option) *Builder {
	return b.add(name, "string", opts)
}

// Number declares a floating-point parameter.
func (b *Builder) Number(name string, opts ...Option) *Builder {
	return b.add(name, "number", opts)
}

// Integer declares an integer parameter.
func (b *Builder) Integer(name string, opts ...Option) *Builder {
	return b.add(name, "integer", opts)
}

// Boolean declares a boolean parameter.
func (b *Builder) Boolean(name string, opts ...Option) *Builder {
	return b.add(name, "boolean", opts)
}

// Array declares an array parameter whose items have the given type
// ("string", "number", "integer", "boolean", "object").
func (b *Builder) Array(name, itemType string, opts ...Option) *Builder {
	p := &property{def: map[string]any{
		"type":  "array",
		"items": map[string]any{"type": itemType},
	}}
	for _, opt := range opts {
		opt(p)
	}
	b.properties[name] = p.def
	if p.required {
		b.required = append(b.required, name)
	}
	return b
}

// Object declares a nested object parameter built from another Builder.
func (b *Builder) Object(name string, nested *Builder, opts ...Option) *Builder {
	p := &property{def: nested.toMap()}
	for _, opt := range opts {
		opt(p)
	}
	b.properties[name] = p.def
	if p.required {
		b.required = append(b.required, name)
	}
	return b
}

func (b *Builder) toMap() map[string]any {
	m := map[string]any{
		"type":       "object",
		"properties": b.properties,
	}
	if len(b.required) > 0 {
		m["required"] = b.required
	}
	return m
}

// Build marshals the accumulated declarations into the JSON-schema object
// used verbatim in vendor tool declarations. Property order in the output is
// alphabetical (encoding/json map ordering); the required list keeps
// declaration order.
func (b *Builder) Build() json.RawMessage {
	data, err := json.Marshal(b.toMap())
	if err != nil {
		// Only reachable if a Default value is unmarshalable; declarations
		// are plain data otherwise.
		panic("schema: marshal: " + err.Error())
	}
	return data
}
