package neat

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// FitnessFunc evaluates a whole generation. It must call SetFitness on every
// genome in genomes (keyed by genome key).
type FitnessFunc func(genomes map[int]*Genome) error

// ErrCompleteExtinction is returned when every species died out and
// reset_on_extinction is disabled.
var ErrCompleteExtinction = errors.New("complete extinction")

// Population holds the state of the evolutionary process.
type Population struct {
	Config       *Config
	Population   map[int]*Genome
	SpeciesSet   *SpeciesSet
	Reproduction *Reproduction
	Stagnation   *Stagnation
	// Generation is the index of the generation that will be evaluated next.
	Generation int
	BestGenome *Genome

	reporters *ReporterSet
}

// NewPopulation creates and speciates the initial generation.
func NewPopulation(config *Config) (*Population, error) {
	stagnation, err := NewStagnation(&config.Stagnation)
	if err != nil {
		return nil, fmt.Errorf("failed to create stagnation manager: %w", err)
	}
	reporters := &ReporterSet{}
	reproduction := NewReproduction(&config.Reproduction, stagnation, reporters)
	genomes, err := reproduction.CreateNewPopulation(&config.Genome, config.Neat.PopSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create initial population: %w", err)
	}

	p := &Population{
		Config:       config,
		Population:   genomes,
		SpeciesSet:   NewSpeciesSet(&config.SpeciesSet),
		Reproduction: reproduction,
		Stagnation:   stagnation,
		reporters:    reporters,
	}
	p.SpeciesSet.Speciate(p.Population, p.Generation, p.reporters)
	return p, nil
}

// AddReporter registers r for progress notifications.
func (p *Population) AddReporter(r Reporter) {
	p.reporters.Add(r)
}

// RemoveReporter unregisters r.
func (p *Population) RemoveReporter(r Reporter) {
	p.reporters.Remove(r)
}

// RunGeneration evaluates the current generation and breeds the next one.
// It returns the winning genome when the fitness criterion reaches
// fitness_threshold, and nil otherwise.
func (p *Population) RunGeneration(fitnessFunc FitnessFunc) (*Genome, error) {
	p.reporters.StartGeneration(p.Generation)

	for _, g := range p.Population {
		g.Evaluated = false
	}
	if err := fitnessFunc(p.Population); err != nil {
		return nil, fmt.Errorf("fitness evaluation failed in generation %d: %w", p.Generation, err)
	}

	fitnesses := make([]float64, 0, len(p.Population))
	var best *Genome
	for _, k := range sortedKeys(p.Population) {
		g := p.Population[k]
		if !g.Evaluated {
			return nil, fmt.Errorf("genome %d was not assigned a fitness in generation %d", k, p.Generation)
		}
		fitnesses = append(fitnesses, g.Fitness)
		if best == nil || g.Fitness > best.Fitness {
			best = g
		}
	}
	p.reporters.PostEvaluate(p, best)

	if best != nil && (p.BestGenome == nil || best.Fitness > p.BestGenome.Fitness) {
		p.BestGenome = best.Clone()
	}

	if !p.Config.Neat.NoFitnessTermination && len(fitnesses) > 0 {
		if criterion(p.Config.Neat.FitnessCriterion)(fitnesses) >= p.Config.Neat.FitnessThreshold {
			p.reporters.FoundSolution(p, best)
			return best, nil
		}
	}

	p.Population = p.Reproduction.Reproduce(p.Config, p.SpeciesSet, p.Config.Neat.PopSize, p.Generation)

	if len(p.SpeciesSet.Species) == 0 {
		p.reporters.CompleteExtinction()
		if !p.Config.Neat.ResetOnExtinction {
			return nil, fmt.Errorf("generation %d: %w", p.Generation, ErrCompleteExtinction)
		}
		genomes, err := p.Reproduction.CreateNewPopulation(&p.Config.Genome, p.Config.Neat.PopSize)
		if err != nil {
			return nil, fmt.Errorf("failed to reset population: %w", err)
		}
		p.Population = genomes
	}

	p.SpeciesSet.Speciate(p.Population, p.Generation, p.reporters)
	p.Generation++
	p.reporters.EndGeneration(p)
	return nil, nil
}

// Run calls RunGeneration until a winner is found or n generations have
// run; n <= 0 means no limit. It returns the best genome seen.
func (p *Population) Run(fitnessFunc FitnessFunc, n int) (*Genome, error) {
	for k := 0; n <= 0 || k < n; k++ {
		winner, err := p.RunGeneration(fitnessFunc)
		if err != nil {
			return p.BestGenome, err
		}
		if winner != nil {
			return winner, nil
		}
	}
	if p.Config.Neat.NoFitnessTermination && p.BestGenome != nil {
		p.reporters.FoundSolution(p, p.BestGenome)
	}
	return p.BestGenome, nil
}

func criterion(name string) func([]float64) float64 {
	switch strings.ToLower(name) {
	case "min":
		return MinFloat
	case "mean":
		return Mean
	}
	return func(v []float64) float64 {
		if len(v) == 0 {
			return math.Inf(-1)
		}
		return MaxFloat(v)
	}
}
