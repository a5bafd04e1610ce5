package fem

import "fmt"

// TimeIntegrator supplies the coefficients of the discrete time derivative
// uDot = a0*u + a1*uOld + a2*uOlder
type TimeIntegrator interface {
	Name() string
	Coefficients(dt, dtOld float64) (a0, a1, a2 float64)
	Transient() bool
}

type Steady struct{}

func (Steady) Name() string { return "steady" }
func (Steady) Coefficients(_, _ float64) (a0, a1, a2 float64) { return 0, 0, 0 }
func (Steady) Transient() bool { return false }

type ImplicitEuler struct{}

func (ImplicitEuler) Name() string { return "implicit-euler" }
func (ImplicitEuler) Coefficients(dt, _ float64) (a0, a1, a2 float64) {
	return 1 / dt, -1 / dt, 0
}
func (ImplicitEuler) Transient() bool { return true }

// BDF2 is the variable step second order backward difference. The first
// step, with no previous step size, falls back to implicit Euler.
type BDF2 struct{}

func (BDF2) Name() string { return "bdf2" }
func (BDF2) Coefficients(dt, dtOld float64) (a0, a1, a2 float64) {
	if dtOld <= 0 {
		return ImplicitEuler{}.Coefficients(dt, 0)
	}
	w := dt / dtOld
	a0 = (1 + 2*w) / ((1 + w) * dt)
	a1 = -(1 + w) / dt
	a2 = w * w / ((1 + w) * dt)
	return
}
func (BDF2) Transient() bool { return true }

func ParseTimeIntegrator(name string) (TimeIntegrator, error) {
	switch name {
	case "", "steady":
		return Steady{}, nil
	case "implicit-euler", "euler":
		return ImplicitEuler{}, nil
	case "bdf2":
		return BDF2{}, nil
	}
	return nil, fmt.Errorf("unknown time integrator %q", name)
}
