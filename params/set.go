package params

import (
	"fmt"
	"math"
	"sort"
)

// Set is an ordered collection of parameter declarations
type Set struct {
	specs []ParamSpec
	index map[string]int
}

func NewSet(builders ...*ParamBuilder) *Set {
	s := &Set{index: make(map[string]int)}
	return s.Add(builders...)
}

// Add appends declarations, replacing any earlier declaration of the same name
func (s *Set) Add(builders ...*ParamBuilder) *Set {
	for _, b := range builders {
		spec := b.Spec()
		if spec.Default != nil {
			v, err := coerce(spec.Kind, spec.Default)
			if err != nil {
				panic(fmt.Sprintf("parameter %q: default %v is not a %v", spec.Name, spec.Default, spec.Kind))
			}
			spec.Default = v
		}
		if i, ok := s.index[spec.Name]; ok {
			s.specs[i] = spec
			continue
		}
		s.index[spec.Name] = len(s.specs)
		s.specs = append(s.specs, spec)
	}
	return s
}

// Merge returns a new Set holding s's declarations followed by other's
func (s *Set) Merge(other *Set) *Set {
	out := NewSet()
	for _, spec := range s.specs {
		out.Add(&ParamBuilder{spec: spec})
	}
	for _, spec := range other.specs {
		out.Add(&ParamBuilder{spec: spec})
	}
	return out
}

func (s *Set) Specs() []ParamSpec {
	out := make([]ParamSpec, len(s.specs))
	copy(out, s.specs)
	return out
}

func (s *Set) Lookup(name string) (ParamSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return ParamSpec{}, false
	}
	return s.specs[i], true
}

// Validate checks raw against the declarations and returns the immutable
// parameter set for the named object. Unknown keys are rejected, required
// keys must be present, values are coerced to their declared kind.
func (s *Set) Validate(object string, raw map[string]interface{}) (*Parameters, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := s.index[k]; !ok {
			return nil, &UnknownParameterError{Object: object, Param: k}
		}
	}

	p := &Parameters{object: object, values: make(map[string]interface{}, len(s.specs)), set: s}
	for _, spec := range s.specs {
		v, ok := raw[spec.Name]
		if !ok || v == nil {
			if spec.Required {
				return nil, &MissingParameterError{Object: object, Param: spec.Name}
			}
			if spec.Default != nil {
				p.values[spec.Name] = spec.Default
			}
			continue
		}
		cv, err := coerce(spec.Kind, v)
		if err != nil {
			return nil, &TypeError{Object: object, Param: spec.Name, Want: spec.Kind, Got: v}
		}
		if spec.HasRange {
			if oor := checkRange(spec, cv); oor != nil {
				return nil, &RangeError{Object: object, Param: spec.Name, Min: spec.Min, Max: spec.Max, Got: oor.value}
			}
		}
		p.values[spec.Name] = cv
	}
	return p, nil
}

type outOfRange struct{ value float64 }

func checkRange(spec ParamSpec, v interface{}) *outOfRange {
	var xs []float64
	switch x := v.(type) {
	case float64:
		xs = []float64{x}
	case int:
		xs = []float64{float64(x)}
	case []float64:
		xs = x
	default:
		return nil
	}
	for _, x := range xs {
		if x < spec.Min || x > spec.Max {
			return &outOfRange{value: x}
		}
	}
	return nil
}

// coerce converts loosely typed input (as decoded from YAML or built in code)
// into the canonical Go type for kind
func coerce(kind Kind, v interface{}) (interface{}, error) {
	switch kind {
	case KindFloat:
		return toFloat(v)
	case KindInt:
		switch x := v.(type) {
		case int:
			return x, nil
		case int64:
			return int(x), nil
		case float64:
			if x == math.Trunc(x) {
				return int(x), nil
			}
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindFloats:
		switch x := v.(type) {
		case []float64:
			out := make([]float64, len(x))
			copy(out, x)
			return out, nil
		case []interface{}:
			out := make([]float64, len(x))
			for i, e := range x {
				f, err := toFloat(e)
				if err != nil {
					return nil, err
				}
				out[i] = f
			}
			return out, nil
		default:
			f, err := toFloat(v)
			if err != nil {
				return nil, err
			}
			return []float64{f}, nil
		}
	case KindStrings:
		switch x := v.(type) {
		case string:
			return []string{x}, nil
		case []string:
			out := make([]string, len(x))
			copy(out, x)
			return out, nil
		case []interface{}:
			out := make([]string, len(x))
			for i, e := range x {
				s, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("element %d is %T", i, e)
				}
				out[i] = s
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("cannot use %T as %v", v, kind)
}

func toFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("cannot use %T as float", v)
}
