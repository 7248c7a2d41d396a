package neat

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
)

// NodeGene describes one hidden or output neuron. Input nodes have no gene;
// they are identified by the negative keys in GenomeConfig.InputKeys.
type NodeGene struct {
	Key         int
	Bias        float64
	Response    float64
	Activation  string
	Aggregation string
}

// NewNodeGene creates a node with attributes drawn from the init distributions in config.
func NewNodeGene(key int, config *GenomeConfig) *NodeGene {
	return &NodeGene{
		Key:         key,
		Bias:        initFloat(config.BiasInitMean, config.BiasInitStdev, config.BiasInitType, config.BiasMinValue, config.BiasMaxValue),
		Response:    initFloat(config.ResponseInitMean, config.ResponseInitStdev, config.ResponseInitType, config.ResponseMinValue, config.ResponseMaxValue),
		Activation:  initString(config.ActivationDefault, config.ActivationOptions),
		Aggregation: initString(config.AggregationDefault, config.AggregationOptions),
	}
}

func (ng *NodeGene) String() string {
	return fmt.Sprintf("NodeGene(key=%d, bias=%.3f, response=%.3f, activation=%s, aggregation=%s)",
		ng.Key, ng.Bias, ng.Response, ng.Activation, ng.Aggregation)
}

// Copy returns an independent copy of the gene.
func (ng *NodeGene) Copy() *NodeGene {
	c := *ng
	return &c
}

// Mutate perturbs or replaces each attribute according to the configured rates.
func (ng *NodeGene) Mutate(config *GenomeConfig) {
	ng.Bias = mutateFloat(ng.Bias, config.BiasMutateRate, config.BiasReplaceRate, config.BiasMutatePower,
		config.BiasInitMean, config.BiasInitStdev, config.BiasInitType, config.BiasMinValue, config.BiasMaxValue)
	ng.Response = mutateFloat(ng.Response, config.ResponseMutateRate, config.ResponseReplaceRate, config.ResponseMutatePower,
		config.ResponseInitMean, config.ResponseInitStdev, config.ResponseInitType, config.ResponseMinValue, config.ResponseMaxValue)
	ng.Activation = mutateString(ng.Activation, config.ActivationMutateRate, config.ActivationOptions)
	ng.Aggregation = mutateString(ng.Aggregation, config.AggregationMutateRate, config.AggregationOptions)
}

// Distance is the attribute distance between two homologous nodes.
func (ng *NodeGene) Distance(other *NodeGene, config *GenomeConfig) float64 {
	d := math.Abs(ng.Bias-other.Bias) + math.Abs(ng.Response-other.Response)
	if ng.Activation != other.Activation {
		d++
	}
	if ng.Aggregation != other.Aggregation {
		d++
	}
	return d * config.CompatibilityWeightCoefficient
}

// Crossover inherits each attribute from either parent with equal probability.
// The receiver supplies the key.
func (ng *NodeGene) Crossover(other *NodeGene) *NodeGene {
	child := ng.Copy()
	if rand.Float64() < 0.5 {
		child.Bias = other.Bias
	}
	if rand.Float64() < 0.5 {
		child.Response = other.Response
	}
	if rand.Float64() < 0.5 {
		child.Activation = other.Activation
	}
	if rand.Float64() < 0.5 {
		child.Aggregation = other.Aggregation
	}
	return child
}

// ConnectionKey identifies a connection by its endpoints. It doubles as the
// innovation identifier, as in neat-python.
type ConnectionKey struct {
	InNodeID  int
	OutNodeID int
}

// ConnectionGene is a weighted, possibly disabled, edge between two nodes.
type ConnectionGene struct {
	Key     ConnectionKey
	Weight  float64
	Enabled bool
}

// NewConnectionGene creates a connection with attributes drawn from config.
func NewConnectionGene(key ConnectionKey, config *GenomeConfig) *ConnectionGene {
	return &ConnectionGene{
		Key:     key,
		Weight:  initFloat(config.WeightInitMean, config.WeightInitStdev, config.WeightInitType, config.WeightMinValue, config.WeightMaxValue),
		Enabled: parseBoolAttribute(config.EnabledDefault),
	}
}

func (cg *ConnectionGene) String() string {
	return fmt.Sprintf("ConnectionGene(%d->%d, weight=%.3f, enabled=%t)",
		cg.Key.InNodeID, cg.Key.OutNodeID, cg.Weight, cg.Enabled)
}

// Copy returns an independent copy of the gene.
func (cg *ConnectionGene) Copy() *ConnectionGene {
	c := *cg
	return &c
}

// Mutate perturbs the weight and possibly toggles the enabled flag. In
// feed-forward genomes a disabled connection is only re-enabled when that does
// not close a cycle.
func (cg *ConnectionGene) Mutate(genome *Genome, config *GenomeConfig) {
	cg.Weight = mutateFloat(cg.Weight, config.WeightMutateRate, config.WeightReplaceRate, config.WeightMutatePower,
		config.WeightInitMean, config.WeightInitStdev, config.WeightInitType, config.WeightMinValue, config.WeightMaxValue)

	rate := config.EnabledMutateRate
	if cg.Enabled {
		rate += config.EnabledRateToFalseAdd
	} else {
		rate += config.EnabledRateToTrueAdd
	}
	if rate <= 0 || rand.Float64() >= rate {
		return
	}
	next := rand.Float64() < 0.5
	if next && !cg.Enabled && config.FeedForward && createsCycle(genome, cg.Key.InNodeID, cg.Key.OutNodeID) {
		return
	}
	cg.Enabled = next
}

// Distance is the attribute distance between two homologous connections.
func (cg *ConnectionGene) Distance(other *ConnectionGene, config *GenomeConfig) float64 {
	d := math.Abs(cg.Weight - other.Weight)
	if cg.Enabled != other.Enabled {
		d++
	}
	return d * config.CompatibilityWeightCoefficient
}

// Crossover inherits weight and enabled flag from either parent with equal probability.
func (cg *ConnectionGene) Crossover(other *ConnectionGene) *ConnectionGene {
	child := cg.Copy()
	if rand.Float64() < 0.5 {
		child.Weight = other.Weight
	}
	if rand.Float64() < 0.5 {
		child.Enabled = other.Enabled
	}
	return child
}

func initFloat(mean, stdev float64, initType string, lo, hi float64) float64 {
	if strings.ToLower(initType) == "uniform" {
		a := math.Max(lo, mean-2*stdev)
		b := math.Min(hi, mean+2*stdev)
		if b < a {
			b = a
		}
		return a + rand.Float64()*(b-a)
	}
	return clamp(rand.NormFloat64()*stdev+mean, lo, hi)
}

func mutateFloat(value, mutateRate, replaceRate, power, mean, stdev float64, initType string, lo, hi float64) float64 {
	r := rand.Float64()
	switch {
	case r < mutateRate:
		return clamp(value+rand.NormFloat64()*power, lo, hi)
	case r < mutateRate+replaceRate:
		return initFloat(mean, stdev, initType, lo, hi)
	}
	return value
}

func initString(def string, options []string) string {
	if len(options) == 0 {
		return def
	}
	switch strings.ToLower(def) {
	case "random", "none", "":
		return options[rand.Intn(len(options))]
	}
	return def
}

// mutateString picks a different option, if one exists.
func mutateString(value string, rate float64, options []string) string {
	if rate <= 0 || rand.Float64() >= rate {
		return value
	}
	others := make([]string, 0, len(options))
	for _, opt := range options {
		if opt != value {
			others = append(others, opt)
		}
	}
	if len(others) == 0 {
		return value
	}
	return others[rand.Intn(len(others))]
}
