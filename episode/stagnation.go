package episode

// Stagnation counts ticks without fitness progress. Plateau grows by one per
// tick without improvement and ZeroSpeed by the configured jump per tick on
// which the speed readout shows zero; any other tick without improvement
// clears ZeroSpeed, and an improvement clears both.
type Stagnation struct {
	Best      float64
	Plateau   int
	ZeroSpeed int

	budget int
	jump   int
}

func NewStagnation(budget, jump int) Stagnation {
	return Stagnation{budget: budget, jump: jump}
}

// Observe records one tick and reports whether either counter is over
// budget. stalled is only called on ticks without improvement.
func (s *Stagnation) Observe(maxFitness float64, stalled func() (bool, error)) (bool, error) {
	if maxFitness > s.Best {
		s.Best = maxFitness
		s.Plateau, s.ZeroSpeed = 0, 0
		return false, nil
	}
	stopped, err := stalled()
	if err != nil {
		return false, err
	}
	if stopped {
		s.ZeroSpeed += s.jump
	} else {
		s.Plateau++
		s.ZeroSpeed = 0
	}
	return s.Stagnated(), nil
}

// Stagnated reports whether either counter is over budget.
func (s *Stagnation) Stagnated() bool {
	return s.Plateau > s.budget || s.ZeroSpeed > s.budget
}
