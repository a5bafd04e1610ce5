package params

import "fmt"

type MissingParameterError struct {
	Object, Param string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("%s: missing required parameter %q", e.Object, e.Param)
}

type UnknownParameterError struct {
	Object, Param string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("%s: unknown parameter %q", e.Object, e.Param)
}

type TypeError struct {
	Object, Param string
	Want          Kind
	Got           interface{}
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: parameter %q must be %v, got %T (%v)", e.Object, e.Param, e.Want, e.Got, e.Got)
}

type RangeError struct {
	Object, Param string
	Min, Max, Got float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: parameter %q = %g outside [%g, %g]", e.Object, e.Param, e.Got, e.Min, e.Max)
}
