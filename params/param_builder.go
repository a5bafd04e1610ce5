// Package params declares, validates and serves the construction parameters
// of physics objects. A Set is declared once per object type; Validate turns
// raw key/values into an immutable Parameters.
package params

import "fmt"

// Kind is the value type a parameter holds after validation
type Kind int

const (
	KindFloat Kind = iota
	KindInt
	KindBool
	KindString
	KindFloats
	KindStrings
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindFloats:
		return "[]float"
	case KindStrings:
		return "[]string"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParamBuilder provides a fluent interface for declaring object parameters
type ParamBuilder struct {
	spec ParamSpec
}

// ParamSpec holds the complete declaration of one parameter
type ParamSpec struct {
	Name     string
	Kind     Kind
	Required bool
	Default  interface{}
	Doc      string

	// Coupled parameters name variables the object reads
	Coupled bool

	HasRange bool
	Min, Max float64
}

// Required declares a parameter that must be supplied
func Required(name string, kind Kind) *ParamBuilder {
	return &ParamBuilder{spec: ParamSpec{Name: name, Kind: kind, Required: true}}
}

// Optional declares a parameter that may be omitted
func Optional(name string, kind Kind) *ParamBuilder {
	return &ParamBuilder{spec: ParamSpec{Name: name, Kind: kind}}
}

// Coupled declares a parameter listing variables the object couples to
func Coupled(name string) *ParamBuilder {
	return &ParamBuilder{spec: ParamSpec{Name: name, Kind: KindStrings, Coupled: true}}
}

// Default sets the value used when an optional parameter is omitted
func (p *ParamBuilder) Default(v interface{}) *ParamBuilder {
	p.spec.Default = v
	return p
}

// Doc sets the one-line description shown by the CLI
func (p *ParamBuilder) Doc(s string) *ParamBuilder {
	p.spec.Doc = s
	return p
}

// Range bounds a numeric parameter to [lo, hi]
func (p *ParamBuilder) Range(lo, hi float64) *ParamBuilder {
	p.spec.HasRange = true
	p.spec.Min, p.spec.Max = lo, hi
	return p
}

// MustCouple marks a coupled parameter as required
func (p *ParamBuilder) MustCouple() *ParamBuilder {
	p.spec.Required = true
	return p
}

// Spec returns the built declaration
func (p *ParamBuilder) Spec() ParamSpec {
	return p.spec
}
