// Package solver drives a runner to a solution: Newton iterations on the
// assembled system, wrapped in steady or time stepping loops.
package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/FEKernel/runner"
	"github.com/notargets/FEKernel/utils"
)

var (
	ErrDiverged = errors.New("solver: newton iteration did not converge")
	ErrSingular = errors.New("solver: jacobian is singular")
)

// System is what Newton iterates on
type System interface {
	EvaluateResidual(ctx context.Context, u []float64) (*runner.GlobalVector, error)
	EvaluateJacobian(ctx context.Context, u []float64) (*runner.SparseMatrix, error)
}

type Options struct {
	AbsTol        float64 `yaml:"nl_abs_tol"`
	RelTol        float64 `yaml:"nl_rel_tol"`
	MaxIterations int     `yaml:"nl_max_its"`
}

func DefaultOptions() Options {
	return Options{AbsTol: 1e-10, RelTol: 1e-8, MaxIterations: 25}
}

func (o Options) Validate() error {
	if o.AbsTol < 0 || o.RelTol < 0 {
		return fmt.Errorf("newton tolerances must be non-negative, got abs %g rel %g", o.AbsTol, o.RelTol)
	}
	if o.AbsTol == 0 && o.RelTol == 0 {
		return fmt.Errorf("newton needs an absolute or relative tolerance")
	}
	if o.MaxIterations < 1 {
		return fmt.Errorf("newton needs at least one iteration, got %d", o.MaxIterations)
	}
	return nil
}

type Result struct {
	Iterations int
	Initial    float64
	Final      float64
}

// Newton solves R(u) = 0 with a dense LU factorization of the Jacobian at
// every iteration
type Newton struct {
	Options
	log *slog.Logger
}

func NewNewton(opts Options, log *slog.Logger) *Newton {
	if log == nil {
		log = utils.Discard()
	}
	return &Newton{Options: opts, log: log}
}

// Solve iterates from u, which is updated in place. Evaluation errors are
// returned unchanged; running out of iterations gives ErrDiverged.
func (n *Newton) Solve(ctx context.Context, sys System, u []float64) (Result, error) {
	var (
		res    Result
		lu     mat.LU
		du     mat.VecDense
		factor mat.Dense
	)
	for it := 0; ; it++ {
		r, err := sys.EvaluateResidual(ctx, u)
		if err != nil {
			return res, err
		}
		norm := r.Norm()
		if it == 0 {
			res.Initial = norm
		}
		res.Final, res.Iterations = norm, it
		n.log.Log(ctx, utils.LevelTrace, "newton", "iteration", it, "residual", norm)
		if math.IsNaN(norm) {
			return res, fmt.Errorf("%w: residual is NaN", ErrDiverged)
		}
		if norm <= n.AbsTol || norm <= n.RelTol*res.Initial {
			return res, nil
		}
		if it == n.MaxIterations {
			return res, fmt.Errorf("%w after %d iterations, residual %g", ErrDiverged, it, norm)
		}

		jac, err := sys.EvaluateJacobian(ctx, u)
		if err != nil {
			return res, err
		}
		factor.CloneFrom(jac.Dense())
		lu.Factorize(&factor)
		if c := lu.Cond(); math.IsInf(c, 1) || c > 1e15 {
			return res, fmt.Errorf("%w: condition number %g", ErrSingular, c)
		}
		if err := lu.SolveVecTo(&du, false, r.VecDense()); err != nil {
			return res, fmt.Errorf("%w: %v", ErrSingular, err)
		}
		floats.AddScaled(u, -1, du.RawVector().Data)
	}
}
