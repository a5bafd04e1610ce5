package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/notargets/FEKernel/fem"
	"github.com/notargets/FEKernel/runner"
	"github.com/notargets/FEKernel/utils"
)

// ErrDtTooSmall is returned when step cutting goes below the minimum step
var ErrDtTooSmall = errors.New("solver: time step cut below minimum")

// Observer is called after each accepted step; returning an error stops the
// run
type Observer func(step int, t float64) error

// Steady solves the problem once from the runner's current solution
func Steady(ctx context.Context, r *runner.Runner, opts Options, log *slog.Logger) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	if log == nil {
		log = utils.Discard()
	}
	r.SetTimeIntegrator(fem.Steady{})
	u := append([]float64(nil), r.Solution().Current...)
	res, err := NewNewton(opts, log).Solve(ctx, r, u)
	if err != nil {
		return res, err
	}
	log.Info("steady solve converged", "iterations", res.Iterations, "residual", res.Final)
	return res, nil
}

type Transient struct {
	Start  float64 `yaml:"start_time"`
	End    float64 `yaml:"end_time"`
	Dt     float64 `yaml:"dt"`
	DtMin  float64 `yaml:"dt_min"`
	Scheme string  `yaml:"scheme"`
	Newton Options `yaml:",inline"`
}

func (tr Transient) Validate() error {
	if tr.Dt <= 0 {
		return fmt.Errorf("time step must be positive, got %g", tr.Dt)
	}
	if tr.End < tr.Start {
		return fmt.Errorf("end time %g is before start time %g", tr.End, tr.Start)
	}
	if tr.DtMin < 0 || tr.DtMin > tr.Dt {
		return fmt.Errorf("minimum time step %g must lie in [0, %g]", tr.DtMin, tr.Dt)
	}
	if _, err := fem.ParseTimeIntegrator(tr.Scheme); err != nil {
		return err
	}
	return tr.Newton.Validate()
}

// Run steps from Start to End. A step whose Newton solve fails is rejected
// and retried with half the step; the step grows back by doubling after each
// success, never beyond Dt.
func (tr Transient) Run(ctx context.Context, r *runner.Runner, log *slog.Logger, observe Observer) error {
	if err := tr.Validate(); err != nil {
		return err
	}
	if log == nil {
		log = utils.Discard()
	}
	scheme := tr.Scheme
	if scheme == "" || scheme == "steady" {
		scheme = "implicit-euler"
	}
	ti, _ := fem.ParseTimeIntegrator(scheme)
	r.SetTimeIntegrator(ti)

	newton := NewNewton(tr.Newton, log)
	t, dt := tr.Start, tr.Dt
	eps := 1e-12 * math.Max(1, math.Abs(tr.End))
	for step := 1; t < tr.End-eps; {
		h := math.Min(dt, tr.End-t)
		r.SetTime(t+h, h)
		u := append([]float64(nil), r.Solution().Current...)
		res, err := newton.Solve(ctx, r, u)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.RejectTimestep()
			dt = h / 2
			log.Warn("step failed, cutting dt", "time", t+h, "dt", dt, "err", err)
			if dt < tr.DtMin || dt == 0 {
				return fmt.Errorf("%w at t=%g: %w", ErrDtTooSmall, t, err)
			}
			continue
		}
		if err := r.AcceptTimestep(); err != nil {
			return err
		}
		t += h
		log.Info("step accepted", "step", step, "time", t, "dt", h, "iterations", res.Iterations)
		if observe != nil {
			if err := observe(step, t); err != nil {
				return err
			}
		}
		step++
		dt = math.Min(2*dt, tr.Dt)
	}
	return nil
}
