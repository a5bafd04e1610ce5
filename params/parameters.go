package params

import (
	"fmt"
	"sort"
)

// Parameters is the validated, immutable parameter set one object is built from
type Parameters struct {
	object string
	values map[string]interface{}
	set    *Set
}

// Object is the name of the object these parameters belong to
func (p *Parameters) Object() string { return p.object }

// Has reports whether the parameter was supplied or defaulted
func (p *Parameters) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Get returns the named parameter as T. T must match the declared kind:
// float64, int, bool, string, []float64 or []string.
func Get[T any](p *Parameters, name string) (T, error) {
	var zero T
	if _, ok := p.set.Lookup(name); !ok {
		return zero, &UnknownParameterError{Object: p.object, Param: name}
	}
	v, ok := p.values[name]
	if !ok {
		return zero, &MissingParameterError{Object: p.object, Param: name}
	}
	t, ok := v.(T)
	if !ok {
		spec, _ := p.set.Lookup(name)
		return zero, &TypeError{Object: p.object, Param: name, Want: spec.Kind, Got: v}
	}
	return t, nil
}

// MustGet is Get for parameters an object declared itself; a failure is a
// wiring defect in the object's constructor
func MustGet[T any](p *Parameters, name string) T {
	v, err := Get[T](p, name)
	if err != nil {
		panic(err)
	}
	return v
}

func (p *Parameters) Float(name string) float64 { return MustGet[float64](p, name) }
func (p *Parameters) Int(name string) int { return MustGet[int](p, name) }
func (p *Parameters) Bool(name string) bool { return MustGet[bool](p, name) }
func (p *Parameters) String(name string) string { return MustGet[string](p, name) }

func (p *Parameters) Floats(name string) []float64 {
	return append([]float64(nil), MustGet[[]float64](p, name)...)
}

// Strings returns a string list parameter, nil when an optional list was omitted
func (p *Parameters) Strings(name string) []string {
	if !p.Has(name) {
		return nil
	}
	return append([]string(nil), MustGet[[]string](p, name)...)
}

// CoupledNames returns every variable named by the coupled parameters,
// keyed by parameter name
func (p *Parameters) CoupledNames() map[string][]string {
	out := make(map[string][]string)
	for _, spec := range p.set.specs {
		if !spec.Coupled || !p.Has(spec.Name) {
			continue
		}
		out[spec.Name] = p.Strings(spec.Name)
	}
	return out
}

// Summary renders the values in key order for logs
func (p *Parameters) Summary() string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := p.object + "{"
	for i, k := range keys {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %v", k, p.values[k])
	}
	return s + "}"
}
