package fem

// Solution holds the current iterate and the two previous accepted steps
type Solution struct {
	Current, Old, Older []float64
}

func NewSolution(n int) *Solution {
	return &Solution{
		Current: make([]float64, n),
		Old:     make([]float64, n),
		Older:   make([]float64, n),
	}
}

func (s *Solution) Len() int { return len(s.Current) }

// Advance shifts the accepted current into old and old into older
func (s *Solution) Advance() {
	copy(s.Older, s.Old)
	copy(s.Old, s.Current)
}

// Restore discards the current iterate and restarts from old
func (s *Solution) Restore() {
	copy(s.Current, s.Old)
}

// Seed sets current, old and older to u
func (s *Solution) Seed(u []float64) {
	copy(s.Current, u)
	copy(s.Old, u)
	copy(s.Older, u)
}
