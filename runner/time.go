package runner

import (
	"context"

	"github.com/notargets/FEKernel/fem"
)

// SetTimeIntegrator selects how uDot is formed from the solution history
func (r *Runner) SetTimeIntegrator(ti fem.TimeIntegrator) {
	r.integrator = ti
}

func (r *Runner) TimeIntegrator() fem.TimeIntegrator { return r.integrator }

func (r *Runner) Time() float64 { return r.time }

func (r *Runner) Dt() float64 { return r.dt }

// SetTime sets the time and step of the next evaluations. Cached material
// values are dropped since they may depend on either.
func (r *Runner) SetTime(t, dt float64) {
	r.time, r.dt = t, dt
	if r.store != nil {
		r.store.InvalidateCache()
	}
}

// AcceptTimestep makes the current solution and material values the old
// ones. It fails with material.ErrDoubleAdvance unless an evaluation ran
// since the last accepted step.
func (r *Runner) AcceptTimestep() error {
	if !r.ready {
		return ErrNotSetUp
	}
	if err := r.store.AdvanceTimestep(); err != nil {
		return err
	}
	r.sol.Advance()
	r.dtOld = r.dt
	r.log.Debug("timestep accepted", "time", r.time, "dt", r.dt)
	if r.plan.hasAux {
		return r.prepare(context.Background())
	}
	return nil
}

// RejectTimestep restores the current solution from the last accepted step
func (r *Runner) RejectTimestep() {
	if !r.ready {
		return
	}
	r.sol.Restore()
	r.store.InvalidateCache()
	r.log.Debug("timestep rejected", "time", r.time, "dt", r.dt)
}
