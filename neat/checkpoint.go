package neat

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Checkpoints hold plain records rather than live objects so that config
// pointers and collaborators never end up in the file.

type genomeRecord struct {
	Key         int
	Nodes       map[int]*NodeGene
	Connections map[ConnectionKey]*ConnectionGene
	Fitness     float64
	Evaluated   bool
}

type speciesRecord struct {
	Key             int
	Created         int
	LastImproved    int
	Representative  genomeRecord
	Members         []int
	Fitness         float64
	AdjustedFitness float64
	FitnessHistory  []float64
}

type checkpointRecord struct {
	Generation      int
	Population      map[int]genomeRecord
	Species         []speciesRecord
	SpeciesIndexer  int
	GenomeToSpecies map[int]int
	NextGenomeKey   int
	Ancestors       map[int][]int
	BestGenome      *genomeRecord
	NextNodeKey     int
}

func newGenomeRecord(g *Genome) genomeRecord {
	return genomeRecord{
		Key:         g.Key,
		Nodes:       g.Nodes,
		Connections: g.Connections,
		Fitness:     g.Fitness,
		Evaluated:   g.Evaluated,
	}
}

func (r genomeRecord) genome(config *GenomeConfig) *Genome {
	g := NewGenome(r.Key, config)
	if r.Nodes != nil {
		g.Nodes = r.Nodes
	}
	if r.Connections != nil {
		g.Connections = r.Connections
	}
	g.Fitness = r.Fitness
	g.Evaluated = r.Evaluated
	return g
}

// SaveCheckpoint writes the population state to path as gzip-compressed gob.
// The configuration is not stored; LoadCheckpoint reads it again.
func (p *Population) SaveCheckpoint(path string) error {
	rec := checkpointRecord{
		Generation:      p.Generation,
		Population:      make(map[int]genomeRecord, len(p.Population)),
		SpeciesIndexer:  p.SpeciesSet.Indexer,
		GenomeToSpecies: p.SpeciesSet.GenomeToSpecies,
		NextGenomeKey:   p.Reproduction.NextGenomeKey,
		Ancestors:       p.Reproduction.Ancestors,
		NextNodeKey:     p.Config.Genome.NodeKeyIndex,
	}
	for k, g := range p.Population {
		rec.Population[k] = newGenomeRecord(g)
	}
	for _, sid := range p.SpeciesSet.SortedKeys() {
		s := p.SpeciesSet.Species[sid]
		sr := speciesRecord{
			Key:             s.Key,
			Created:         s.Created,
			LastImproved:    s.LastImproved,
			Members:         sortedKeys(s.Members),
			Fitness:         s.Fitness,
			AdjustedFitness: s.AdjustedFitness,
			FitnessHistory:  s.FitnessHistory,
		}
		if s.Representative != nil {
			sr.Representative = newGenomeRecord(s.Representative)
		}
		rec.Species = append(rec.Species, sr)
	}
	if p.BestGenome != nil {
		best := newGenomeRecord(p.BestGenome)
		rec.BestGenome = &best
	}
	if err := writeGob(path, rec); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint restores a population saved by SaveCheckpoint, reading the
// NEAT configuration from configPath.
func LoadCheckpoint(checkpointPath, configPath string) (*Population, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config '%s' for checkpoint: %w", configPath, err)
	}
	var rec checkpointRecord
	if err := readGob(checkpointPath, &rec); err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	gc := &config.Genome
	p := &Population{
		Config:     config,
		Population: make(map[int]*Genome, len(rec.Population)),
		SpeciesSet: NewSpeciesSet(&config.SpeciesSet),
		Generation: rec.Generation,
		reporters:  &ReporterSet{},
	}
	maxNode := -1
	for k, gr := range rec.Population {
		g := gr.genome(gc)
		p.Population[k] = g
		for nk := range g.Nodes {
			maxNode = max(maxNode, nk)
		}
	}
	gc.NodeKeyIndex = max(gc.NodeKeyIndex, rec.NextNodeKey, maxNode+1)

	for _, sr := range rec.Species {
		s := NewSpecies(sr.Key, sr.Created)
		s.LastImproved = sr.LastImproved
		s.Fitness = sr.Fitness
		s.AdjustedFitness = sr.AdjustedFitness
		s.FitnessHistory = sr.FitnessHistory
		s.Representative = sr.Representative.genome(gc)
		for _, gid := range sr.Members {
			if g, ok := p.Population[gid]; ok {
				s.Members[gid] = g
			}
		}
		p.SpeciesSet.Species[s.Key] = s
	}
	p.SpeciesSet.Indexer = max(rec.SpeciesIndexer, 1)
	if rec.GenomeToSpecies != nil {
		p.SpeciesSet.GenomeToSpecies = rec.GenomeToSpecies
	}
	if rec.BestGenome != nil {
		p.BestGenome = rec.BestGenome.genome(gc)
	}

	p.Stagnation, err = NewStagnation(&config.Stagnation)
	if err != nil {
		return nil, fmt.Errorf("failed to create stagnation manager: %w", err)
	}
	p.Reproduction = NewReproduction(&config.Reproduction, p.Stagnation, p.reporters)
	p.Reproduction.NextGenomeKey = rec.NextGenomeKey
	if rec.Ancestors != nil {
		p.Reproduction.Ancestors = rec.Ancestors
	}
	return p, nil
}

// SaveGenome writes a single genome, typically the winner, to path.
func SaveGenome(path string, g *Genome) error {
	if err := writeGob(path, newGenomeRecord(g)); err != nil {
		return fmt.Errorf("failed to save genome %d: %w", g.Key, err)
	}
	return nil
}

// LoadGenome reads a genome written by SaveGenome and binds it to config.
func LoadGenome(path string, config *GenomeConfig) (*Genome, error) {
	var rec genomeRecord
	if err := readGob(path, &rec); err != nil {
		return nil, fmt.Errorf("failed to load genome: %w", err)
	}
	g := rec.genome(config)
	for nk := range g.Nodes {
		config.NodeKeyIndex = max(config.NodeKeyIndex, nk+1)
	}
	return g, nil
}

func writeGob(path string, v any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create '%s': %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	zw := gzip.NewWriter(f)
	if err := gob.NewEncoder(zw).Encode(v); err != nil {
		return fmt.Errorf("encode '%s': %w", path, err)
	}
	return zw.Close()
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open '%s': %w", path, err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip '%s': %w", path, err)
	}
	defer zr.Close()
	if err := gob.NewDecoder(zr).Decode(v); err != nil {
		return fmt.Errorf("decode '%s': %w", path, err)
	}
	return nil
}

// Checkpointer saves the population every Interval generations and, when
// TimeInterval is set, whenever that much time has passed since the last
// save. Files are named Prefix followed by the generation just completed.
type Checkpointer struct {
	BaseReporter
	Dir          string
	Prefix       string
	Interval     int
	TimeInterval time.Duration

	logger   *log.Logger
	lastGen  int
	lastTime time.Time
	err      error
}

// NewCheckpointer creates a checkpointer writing into dir. A nil logger
// disables the save notices.
func NewCheckpointer(dir, prefix string, interval int, logger *log.Logger) *Checkpointer {
	return &Checkpointer{
		Dir:      dir,
		Prefix:   prefix,
		Interval: interval,
		logger:   logger,
		lastGen:  -1,
		lastTime: time.Now(),
	}
}

func (c *Checkpointer) EndGeneration(p *Population) {
	completed := p.Generation - 1
	due := c.Interval > 0 && completed-c.lastGen >= c.Interval
	if c.TimeInterval > 0 && time.Since(c.lastTime) >= c.TimeInterval {
		due = true
	}
	if !due {
		return
	}
	path := filepath.Join(c.Dir, c.Prefix+strconv.Itoa(completed))
	if err := p.SaveCheckpoint(path); err != nil {
		c.err = errors.Join(c.err, err)
		if c.logger != nil {
			c.logger.Error("checkpoint failed", "path", path, "err", err)
		}
		return
	}
	c.lastGen = completed
	c.lastTime = time.Now()
	if c.logger != nil {
		c.logger.Info("saved checkpoint", "path", path, "generation", completed)
	}
}

// Err reports every save failure seen so far.
func (c *Checkpointer) Err() error {
	return c.err
}

// LatestCheckpoint returns the checkpoint in dir with the highest generation
// suffix after prefix. It returns an error wrapping fs.ErrNotExist when
// there is none.
func LatestCheckpoint(dir, prefix string) (string, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, fmt.Errorf("read checkpoint dir: %w", err)
	}
	best, bestGen := "", -1
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		gen, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
		if err != nil {
			continue
		}
		if gen > bestGen {
			best, bestGen = filepath.Join(dir, name), gen
		}
	}
	if bestGen < 0 {
		return "", 0, fmt.Errorf("no checkpoint '%s*' in %s: %w", prefix, dir, fs.ErrNotExist)
	}
	return best, bestGen, nil
}
