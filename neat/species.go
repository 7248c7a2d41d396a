package neat

import (
	"math"
	"slices"
)

// Species groups genetically similar genomes.
type Species struct {
	Key             int
	Created         int // generation the species appeared in
	LastImproved    int
	Representative  *Genome
	Members         map[int]*Genome
	Fitness         float64
	AdjustedFitness float64
	FitnessHistory  []float64
}

// NewSpecies creates an empty species first seen in generation.
func NewSpecies(key, generation int) *Species {
	return &Species{
		Key:          key,
		Created:      generation,
		LastImproved: generation,
		Members:      make(map[int]*Genome),
	}
}

// Update replaces the representative and member set.
func (s *Species) Update(representative *Genome, members map[int]*Genome) {
	s.Representative = representative
	s.Members = members
}

// GetFitnesses returns member fitness values in ascending genome key order.
func (s *Species) GetFitnesses() []float64 {
	keys := make([]int, 0, len(s.Members))
	for k := range s.Members {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = s.Members[k].Fitness
	}
	return out
}

type genomePair struct{ a, b int }

// GenomeDistanceCache memoizes symmetric genome distances within one speciation pass.
type GenomeDistanceCache struct {
	distances map[genomePair]float64
	Hits      int
	Misses    int
}

func NewGenomeDistanceCache() *GenomeDistanceCache {
	return &GenomeDistanceCache{distances: make(map[genomePair]float64)}
}

// Distance returns the cached distance or computes and stores it.
func (dc *GenomeDistanceCache) Distance(g1, g2 *Genome) float64 {
	key := genomePair{g1.Key, g2.Key}
	if key.a > key.b {
		key.a, key.b = key.b, key.a
	}
	if d, ok := dc.distances[key]; ok {
		dc.Hits++
		return d
	}
	dc.Misses++
	d := g1.Distance(g2)
	dc.distances[key] = d
	return d
}

// Values returns every distance computed so far.
func (dc *GenomeDistanceCache) Values() []float64 {
	out := make([]float64, 0, len(dc.distances))
	for _, d := range dc.distances {
		out = append(out, d)
	}
	return out
}

// SpeciesSet partitions a population into species.
type SpeciesSet struct {
	Species         map[int]*Species
	GenomeToSpecies map[int]int
	Indexer         int
	Config          *SpeciesSetConfig
}

func NewSpeciesSet(config *SpeciesSetConfig) *SpeciesSet {
	return &SpeciesSet{
		Species:         make(map[int]*Species),
		GenomeToSpecies: make(map[int]int),
		Indexer:         1,
		Config:          config,
	}
}

// SortedKeys returns the species keys in ascending order.
func (ss *SpeciesSet) SortedKeys() []int {
	keys := make([]int, 0, len(ss.Species))
	for k := range ss.Species {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Speciate assigns every genome of population to a species. Each existing
// species first claims the genome closest to its old representative; the
// remaining genomes join the closest compatible species or found a new one.
func (ss *SpeciesSet) Speciate(population map[int]*Genome, generation int, reporters *ReporterSet) {
	unspeciated := make(map[int]*Genome, len(population))
	for k, g := range population {
		unspeciated[k] = g
	}
	distances := NewGenomeDistanceCache()

	newReps := make(map[int]*Genome)
	newMembers := make(map[int][]int)
	for _, sid := range ss.SortedKeys() {
		s := ss.Species[sid]
		if s.Representative == nil || len(unspeciated) == 0 {
			continue
		}
		var closest *Genome
		best := math.Inf(1)
		for _, gid := range sortedKeys(unspeciated) {
			g := unspeciated[gid]
			if d := distances.Distance(s.Representative, g); d < best {
				best, closest = d, g
			}
		}
		newReps[sid] = closest
		newMembers[sid] = []int{closest.Key}
		delete(unspeciated, closest.Key)
	}

	for _, gid := range sortedKeys(unspeciated) {
		g := unspeciated[gid]
		target := -1
		best := math.Inf(1)
		for _, sid := range sortedKeys(newReps) {
			d := distances.Distance(newReps[sid], g)
			if d < ss.Config.CompatibilityThreshold && d < best {
				best, target = d, sid
			}
		}
		if target == -1 {
			target = ss.Indexer
			ss.Indexer++
			newReps[target] = g
		}
		newMembers[target] = append(newMembers[target], gid)
	}

	species := make(map[int]*Species, len(newReps))
	genomeToSpecies := make(map[int]int, len(population))
	for sid, rep := range newReps {
		s, ok := ss.Species[sid]
		if !ok {
			s = NewSpecies(sid, generation)
		}
		members := make(map[int]*Genome, len(newMembers[sid]))
		for _, gid := range newMembers[sid] {
			members[gid] = population[gid]
			genomeToSpecies[gid] = sid
		}
		s.Update(rep, members)
		species[sid] = s
	}
	ss.Species = species
	ss.GenomeToSpecies = genomeToSpecies

	if reporters != nil {
		if d := distances.Values(); len(d) > 0 {
			reporters.Info("genetic distance", "mean", Mean(d), "stdev", Stdev(d))
		}
	}
}

// GetSpeciesID returns the species a genome belongs to.
func (ss *SpeciesSet) GetSpeciesID(genomeID int) (int, bool) {
	sid, ok := ss.GenomeToSpecies[genomeID]
	return sid, ok
}

// GetSpecies returns the species a genome belongs to.
func (ss *SpeciesSet) GetSpecies(genomeID int) (*Species, bool) {
	sid, ok := ss.GenomeToSpecies[genomeID]
	if !ok {
		return nil, false
	}
	s, ok := ss.Species[sid]
	return s, ok
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
