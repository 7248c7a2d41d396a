package neat

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Reproduction creates genomes: the initial population and the offspring of
// each generation.
type Reproduction struct {
	Config        *ReproductionConfig
	NextGenomeKey int
	Ancestors     map[int][]int

	stagnation *Stagnation
	reporters  *ReporterSet
}

func NewReproduction(config *ReproductionConfig, stagnation *Stagnation, reporters *ReporterSet) *Reproduction {
	r := &Reproduction{
		Config:        config,
		NextGenomeKey: 1,
		Ancestors:     make(map[int][]int),
	}
	r.bind(stagnation, reporters)
	return r
}

// bind attaches the collaborators that are not part of a checkpoint.
func (r *Reproduction) bind(stagnation *Stagnation, reporters *ReporterSet) {
	if reporters == nil {
		reporters = &ReporterSet{}
	}
	r.stagnation = stagnation
	r.reporters = reporters
}

func (r *Reproduction) nextKey() int {
	k := r.NextGenomeKey
	r.NextGenomeKey++
	return k
}

// CreateNewPopulation builds popSize freshly configured genomes.
func (r *Reproduction) CreateNewPopulation(genomeConfig *GenomeConfig, popSize int) (map[int]*Genome, error) {
	genomes := make(map[int]*Genome, popSize)
	for i := 0; i < popSize; i++ {
		key := r.nextKey()
		g := NewGenome(key, genomeConfig)
		if err := g.ConfigureNew(); err != nil {
			return nil, fmt.Errorf("configure genome %d: %w", key, err)
		}
		genomes[key] = g
		r.Ancestors[key] = nil
	}
	return genomes, nil
}

// Reproduce drops stagnant species, apportions popSize offspring by adjusted
// fitness, copies elites unchanged and fills the rest by crossover and
// mutation of each species' top survival_threshold fraction. It returns an
// empty population when every species went extinct.
func (r *Reproduction) Reproduce(config *Config, ss *SpeciesSet, popSize, generation int) map[int]*Genome {
	var (
		allFitnesses []float64
		remaining    []*Species
	)
	for _, info := range r.stagnation.Update(ss, generation) {
		if info.IsStagnant {
			r.reporters.SpeciesStagnant(info.SpeciesID, info.Species)
			continue
		}
		allFitnesses = append(allFitnesses, info.Species.GetFitnesses()...)
		remaining = append(remaining, info.Species)
	}
	if len(remaining) == 0 {
		ss.Species = make(map[int]*Species)
		return make(map[int]*Genome)
	}

	minFitness := MinFloat(allFitnesses)
	fitnessRange := math.Max(1, MaxFloat(allFitnesses)-minFitness)
	adjusted := make([]float64, len(remaining))
	previousSizes := make([]int, len(remaining))
	for i, s := range remaining {
		s.AdjustedFitness = (Mean(s.GetFitnesses()) - minFitness) / fitnessRange
		adjusted[i] = s.AdjustedFitness
		previousSizes[i] = len(s.Members)
	}
	r.reporters.Info("average adjusted fitness", "value", Mean(adjusted))

	minSize := max(r.Config.MinSpeciesSize, r.Config.Elitism)
	spawnAmounts := computeSpawn(adjusted, previousSizes, popSize, minSize)

	next := make(map[int]*Genome, popSize)
	ancestors := make(map[int][]int, popSize)
	ss.Species = make(map[int]*Species, len(remaining))
	for i, s := range remaining {
		spawn := max(spawnAmounts[i], r.Config.Elitism)

		members := make([]*Genome, 0, len(s.Members))
		for _, k := range sortedKeys(s.Members) {
			members = append(members, s.Members[k])
		}
		sort.SliceStable(members, func(a, b int) bool { return members[a].Fitness > members[b].Fitness })
		s.Members = make(map[int]*Genome)
		ss.Species[s.Key] = s

		for _, elite := range members[:min(r.Config.Elitism, len(members))] {
			next[elite.Key] = elite
			ancestors[elite.Key] = nil
			spawn--
		}
		if spawn <= 0 {
			continue
		}

		cutoff := int(math.Ceil(r.Config.SurvivalThreshold * float64(len(members))))
		parents := members[:min(max(cutoff, 2), len(members))]
		for ; spawn > 0; spawn-- {
			p1 := parents[rand.Intn(len(parents))]
			p2 := parents[rand.Intn(len(parents))]
			key := r.nextKey()
			child := NewGenome(key, &config.Genome)
			child.ConfigureCrossover(p1, p2)
			child.Mutate()
			next[key] = child
			ancestors[key] = []int{p1.Key, p2.Key}
		}
	}
	r.Ancestors = ancestors
	return next
}

// computeSpawn moves each species halfway from its previous size towards its
// fitness-proportional share, then normalizes to popSize. Rounding is
// half-to-even to match neat-python.
func computeSpawn(adjusted []float64, previousSizes []int, popSize, minSize int) []int {
	sum := Sum(adjusted)
	amounts := make([]int, len(adjusted))
	for i, af := range adjusted {
		ps := previousSizes[i]
		s := float64(minSize)
		if sum > 0 {
			s = math.Max(float64(minSize), af/sum*float64(popSize))
		}
		d := (s - float64(ps)) * 0.5
		c := int(math.RoundToEven(d))
		spawn := ps
		switch {
		case c != 0:
			spawn += c
		case d > 0:
			spawn++
		case d < 0:
			spawn--
		}
		amounts[i] = spawn
	}

	total := 0
	for _, a := range amounts {
		total += a
	}
	if total <= 0 {
		for i := range amounts {
			amounts[i] = minSize
		}
		return amounts
	}
	norm := float64(popSize) / float64(total)
	for i, a := range amounts {
		amounts[i] = max(minSize, int(math.RoundToEven(float64(a)*norm)))
	}
	return amounts
}
