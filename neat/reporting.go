package neat

import (
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"
)

// Reporter receives progress notifications from a Population. Embed
// BaseReporter to implement only the hooks you need.
type Reporter interface {
	StartGeneration(generation int)
	// PostEvaluate runs after the fitness function, before reproduction.
	PostEvaluate(p *Population, best *Genome)
	// EndGeneration runs once the next generation has been bred and
	// speciated; p.Generation already names the generation to come.
	EndGeneration(p *Population)
	FoundSolution(p *Population, best *Genome)
	SpeciesStagnant(speciesID int, s *Species)
	CompleteExtinction()
	Info(msg string, keyvals ...any)
}

// BaseReporter implements every Reporter hook as a no-op.
type BaseReporter struct{}

func (BaseReporter) StartGeneration(int)               {}
func (BaseReporter) PostEvaluate(*Population, *Genome) {}
func (BaseReporter) EndGeneration(*Population)         {}
func (BaseReporter) FoundSolution(*Population, *Genome) {}
func (BaseReporter) SpeciesStagnant(int, *Species)     {}
func (BaseReporter) CompleteExtinction()               {}
func (BaseReporter) Info(string, ...any)               {}

// ReporterSet fans notifications out to every registered reporter.
type ReporterSet struct {
	reporters []Reporter
}

func (rs *ReporterSet) Add(r Reporter) {
	rs.reporters = append(rs.reporters, r)
}

func (rs *ReporterSet) Remove(r Reporter) {
	rs.reporters = slices.DeleteFunc(rs.reporters, func(x Reporter) bool { return x == r })
}

func (rs *ReporterSet) StartGeneration(gen int) {
	for _, r := range rs.reporters {
		r.StartGeneration(gen)
	}
}

func (rs *ReporterSet) PostEvaluate(p *Population, best *Genome) {
	for _, r := range rs.reporters {
		r.PostEvaluate(p, best)
	}
}

func (rs *ReporterSet) EndGeneration(p *Population) {
	for _, r := range rs.reporters {
		r.EndGeneration(p)
	}
}

func (rs *ReporterSet) FoundSolution(p *Population, best *Genome) {
	for _, r := range rs.reporters {
		r.FoundSolution(p, best)
	}
}

func (rs *ReporterSet) SpeciesStagnant(sid int, s *Species) {
	for _, r := range rs.reporters {
		r.SpeciesStagnant(sid, s)
	}
}

func (rs *ReporterSet) CompleteExtinction() {
	for _, r := range rs.reporters {
		r.CompleteExtinction()
	}
}

func (rs *ReporterSet) Info(msg string, keyvals ...any) {
	for _, r := range rs.reporters {
		r.Info(msg, keyvals...)
	}
}

// StdOutReporter logs generation summaries, like neat-python's StdOutReporter.
type StdOutReporter struct {
	logger        *log.Logger
	speciesDetail bool

	generation int
	start      time.Time
	times      []time.Duration
}

// NewStdOutReporter logs through logger. A nil logger discards output.
func NewStdOutReporter(logger *log.Logger, speciesDetail bool) *StdOutReporter {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &StdOutReporter{logger: logger, speciesDetail: speciesDetail}
}

func (r *StdOutReporter) StartGeneration(gen int) {
	r.generation = gen
	r.start = time.Now()
	r.logger.Info("running generation", "generation", gen)
}

func (r *StdOutReporter) PostEvaluate(p *Population, best *Genome) {
	fitnesses := make([]float64, 0, len(p.Population))
	for _, g := range p.Population {
		fitnesses = append(fitnesses, g.Fitness)
	}
	keyvals := []any{
		"mean", Mean(fitnesses),
		"stdev", Stdev(fitnesses),
	}
	if best != nil {
		nodes, conns := best.Size()
		keyvals = append(keyvals, "best", best.Fitness, "genome", best.Key, "size", [2]int{nodes, conns})
		if sid, ok := p.SpeciesSet.GetSpeciesID(best.Key); ok {
			keyvals = append(keyvals, "species", sid)
		}
	}
	r.logger.Info("population fitness", keyvals...)
}

func (r *StdOutReporter) EndGeneration(p *Population) {
	elapsed := time.Since(r.start)
	r.times = append(r.times, elapsed)
	if len(r.times) > 10 {
		r.times = r.times[1:]
	}
	var total time.Duration
	for _, t := range r.times {
		total += t
	}

	r.logger.Info("generation complete",
		"generation", r.generation,
		"members", len(p.Population),
		"species", len(p.SpeciesSet.Species),
		"elapsed", elapsed.Round(time.Millisecond),
		"average", (total / time.Duration(len(r.times))).Round(time.Millisecond),
	)
	if !r.speciesDetail {
		return
	}
	for _, sid := range p.SpeciesSet.SortedKeys() {
		s := p.SpeciesSet.Species[sid]
		r.logger.Debug("species",
			"id", sid,
			"age", r.generation-s.Created,
			"size", len(s.Members),
			"fitness", s.Fitness,
			"adjusted", s.AdjustedFitness,
			"stagnant", r.generation-s.LastImproved,
		)
	}
}

func (r *StdOutReporter) FoundSolution(p *Population, best *Genome) {
	nodes, conns := best.Size()
	r.logger.Info("best individual meets fitness threshold",
		"generation", p.Generation, "genome", best.Key, "fitness", best.Fitness, "nodes", nodes, "connections", conns)
}

func (r *StdOutReporter) SpeciesStagnant(sid int, s *Species) {
	r.logger.Info("species removed after stagnating", "species", sid, "members", len(s.Members))
}

func (r *StdOutReporter) CompleteExtinction() {
	r.logger.Warn("all species extinct")
}

func (r *StdOutReporter) Info(msg string, keyvals ...any) {
	r.logger.Debug(msg, keyvals...)
}

// StatisticsReporter keeps per-generation fitness samples and the best genome
// of each generation.
type StatisticsReporter struct {
	BaseReporter

	MostFitGenomes []*Genome
	fitness        [][]float64
}

func NewStatisticsReporter() *StatisticsReporter {
	return &StatisticsReporter{}
}

func (r *StatisticsReporter) PostEvaluate(p *Population, best *Genome) {
	if best != nil {
		r.MostFitGenomes = append(r.MostFitGenomes, best.Clone())
	}
	fitnesses := make([]float64, 0, len(p.Population))
	for _, g := range p.Population {
		fitnesses = append(fitnesses, g.Fitness)
	}
	r.fitness = append(r.fitness, fitnesses)
}

// Generations returns how many generations have been recorded.
func (r *StatisticsReporter) Generations() int {
	return len(r.fitness)
}

// FitnessStat applies fn to the fitness samples of every recorded generation.
func (r *StatisticsReporter) FitnessStat(fn func([]float64) float64) []float64 {
	out := make([]float64, len(r.fitness))
	for i, f := range r.fitness {
		out[i] = fn(f)
	}
	return out
}

func (r *StatisticsReporter) FitnessMean() []float64 {
	return r.FitnessStat(Mean)
}

func (r *StatisticsReporter) FitnessStdev() []float64 {
	return r.FitnessStat(Stdev)
}

// BestGenome returns the fittest genome seen across all generations.
func (r *StatisticsReporter) BestGenome() *Genome {
	var best *Genome
	for _, g := range r.MostFitGenomes {
		if best == nil || g.Fitness > best.Fitness {
			best = g
		}
	}
	return best
}
