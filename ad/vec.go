package ad

import "gonum.org/v1/gonum/spatial/r3"

// Vec is a 3-component vector of Duals, used for AD gradients
type Vec struct {
	X, Y, Z Dual
}

// ConstVec lifts a plain vector into a Vec without derivatives
func ConstVec(v r3.Vec) Vec {
	return Vec{X: Constant(v.X), Y: Constant(v.Y), Z: Constant(v.Z)}
}

// Values drops the derivatives
func (v Vec) Values() r3.Vec {
	return r3.Vec{X: v.X.V, Y: v.Y.V, Z: v.Z.V}
}

// Dot returns v·w for a plain vector w
func (v Vec) Dot(w r3.Vec) Dual {
	ds := combine(w.X, v.X.Ds, w.Y, v.Y.Ds)
	ds = combine(1, ds, w.Z, v.Z.Ds)
	return Dual{V: v.X.V*w.X + v.Y.V*w.Y + v.Z.V*w.Z, Ds: ds}
}

// DotVec returns v·w
func (v Vec) DotVec(w Vec) Dual {
	return v.X.Mul(w.X).Add(v.Y.Mul(w.Y)).Add(v.Z.Mul(w.Z))
}

// Scale returns s*v for a Dual scalar s
func (v Vec) Scale(s Dual) Vec {
	return Vec{X: v.X.Mul(s), Y: v.Y.Mul(s), Z: v.Z.Mul(s)}
}

// Add returns v + w
func (v Vec) Add(w Vec) Vec {
	return Vec{X: v.X.Add(w.X), Y: v.Y.Add(w.Y), Z: v.Z.Add(w.Z)}
}
