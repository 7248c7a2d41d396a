package neat

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Stagnation decides which species have stopped improving.
type Stagnation struct {
	Config             *StagnationConfig
	SpeciesFitnessFunc func([]float64) float64
}

func NewStagnation(config *StagnationConfig) (*Stagnation, error) {
	fn, ok := StatFunctions[strings.ToLower(config.SpeciesFitnessFunc)]
	if !ok {
		return nil, fmt.Errorf("invalid species_fitness_func in config: %s", config.SpeciesFitnessFunc)
	}
	return &Stagnation{Config: config, SpeciesFitnessFunc: fn}, nil
}

// StagnationInfo is the verdict for one species.
type StagnationInfo struct {
	SpeciesID  int
	Species    *Species
	IsStagnant bool
}

// Update recomputes species fitness, records it in the history and returns
// the species ordered from least to most fit. A species is stagnant once it
// has gone max_stagnation generations without beating its best historical
// fitness, unless it is among the species_elitism fittest species or
// removing it would leave no more than species_elitism species.
func (s *Stagnation) Update(ss *SpeciesSet, generation int) []StagnationInfo {
	data := make([]StagnationInfo, 0, len(ss.Species))
	for _, sid := range ss.SortedKeys() {
		sp := ss.Species[sid]
		prev := math.Inf(-1)
		if len(sp.FitnessHistory) > 0 {
			prev = MaxFloat(sp.FitnessHistory)
		}
		sp.Fitness = s.SpeciesFitnessFunc(sp.GetFitnesses())
		sp.FitnessHistory = append(sp.FitnessHistory, sp.Fitness)
		sp.AdjustedFitness = 0
		if sp.Fitness > prev {
			sp.LastImproved = generation
		}
		data = append(data, StagnationInfo{SpeciesID: sid, Species: sp})
	}

	sort.SliceStable(data, func(i, j int) bool {
		return data[i].Species.Fitness < data[j].Species.Fitness
	})

	nonStagnant := len(data)
	for i := range data {
		stagnantFor := generation - data[i].Species.LastImproved
		stagnant := false
		if nonStagnant > s.Config.SpeciesElitism {
			stagnant = stagnantFor >= s.Config.MaxStagnation
		}
		if len(data)-i <= s.Config.SpeciesElitism {
			stagnant = false
		}
		if stagnant {
			nonStagnant--
		}
		data[i].IsStagnant = stagnant
	}
	return data
}
