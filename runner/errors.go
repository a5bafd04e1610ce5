package runner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notargets/FEKernel/mesh"
)

// ErrNonFinite is wrapped by EvaluationError when an object returns NaN or Inf
var ErrNonFinite = errors.New("non-finite contribution")

// ErrNotSetUp is returned by evaluations before a successful Setup
var ErrNotSetUp = errors.New("runner: Setup has not completed")

// EvaluationError aborts an assembly pass. Qp is -1 for nodal objects, where
// Element is the node.
type EvaluationError struct {
	Object  string
	Element int
	Qp      int
	Err     error
}

func (e *EvaluationError) Error() string {
	if e.Qp < 0 {
		return fmt.Sprintf("%s: node %d: %v", e.Object, e.Element, e.Err)
	}
	return fmt.Sprintf("%s: element %d qp %d: %v", e.Object, e.Element, e.Qp, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// CycleError reports materials on a block whose properties depend on each
// other
type CycleError struct {
	Block     mesh.SubdomainID
	Materials []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("material dependency cycle on block %d: %s", e.Block, strings.Join(e.Materials, " -> "))
}
