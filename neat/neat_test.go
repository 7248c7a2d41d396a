package neat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigTemplate = `
[NEAT]
fitness_criterion      = max
fitness_threshold      = %g
pop_size               = 12
reset_on_extinction    = False

[DefaultGenome]
activation_default      = sigmoid
activation_mutate_rate  = 0.0
activation_options      = sigmoid
aggregation_default     = sum
aggregation_mutate_rate = 0.0
aggregation_options     = sum
bias_init_mean          = 0.0
bias_init_stdev         = 1.0
bias_max_value          = 30.0
bias_min_value          = -30.0
bias_mutate_power       = 0.5
bias_mutate_rate        = 0.7
bias_replace_rate       = 0.1
compatibility_disjoint_coefficient = 1.0
compatibility_weight_coefficient   = 0.5
conn_add_prob           = 0.5
conn_delete_prob        = 0.5
enabled_default         = True
enabled_mutate_rate     = 0.01
feed_forward            = %s
initial_connection      = full
node_add_prob           = 0.2
node_delete_prob        = 0.2
num_hidden              = 0
num_inputs              = 2
num_outputs             = 1
response_init_mean      = 1.0
response_init_stdev     = 0.0
response_max_value      = 30.0
response_min_value      = -30.0
response_mutate_power   = 0.0
response_mutate_rate    = 0.0
response_replace_rate   = 0.0
weight_init_mean        = 0.0
weight_init_stdev       = 1.0
weight_max_value        = 30
weight_min_value        = -30
weight_mutate_power     = 0.5
weight_mutate_rate      = 0.8
weight_replace_rate     = 0.1

[DefaultSpeciesSet]
compatibility_threshold = 3.0

[DefaultStagnation]
species_fitness_func = max
max_stagnation       = 20
species_elitism      = 2

[DefaultReproduction]
elitism            = 2
survival_threshold = 0.2
`

func testConfigText(threshold float64, feedForward bool) string {
	ff := "False"
	if feedForward {
		ff = "True"
	}
	return fmt.Sprintf(testConfigTemplate, threshold, ff)
}

func testConfig(t *testing.T, threshold float64, feedForward bool) *Config {
	t.Helper()
	config, err := ParseConfig([]byte(testConfigText(threshold, feedForward)))
	require.NoError(t, err)
	return config
}

func writeTestConfig(t *testing.T, threshold float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config-feedforward")
	require.NoError(t, os.WriteFile(path, []byte(testConfigText(threshold, true)), 0o644))
	return path
}

func TestParseConfig(t *testing.T) {
	config := testConfig(t, 3.9, true)

	assert.Equal(t, 12, config.Neat.PopSize)
	assert.Equal(t, "max", config.Neat.FitnessCriterion)
	assert.InDelta(t, 3.9, config.Neat.FitnessThreshold, 1e-12)
	assert.False(t, config.Neat.ResetOnExtinction)
	assert.True(t, config.Genome.FeedForward)
	assert.Equal(t, []string{"sigmoid"}, config.Genome.ActivationOptions)
	assert.Equal(t, []int{-1, -2}, config.Genome.InputKeys)
	assert.Equal(t, []int{0}, config.Genome.OutputKeys)
	assert.Equal(t, 1, config.Genome.NodeKeyIndex)
	assert.Equal(t, 2, config.Reproduction.Elitism)
	assert.Equal(t, 1, config.Reproduction.MinSpeciesSize, "defaulted")
	assert.Equal(t, 20, config.Stagnation.MaxStagnation)
}

func TestParseConfigRecurrent(t *testing.T) {
	config := testConfig(t, 1, false)
	assert.False(t, config.Genome.FeedForward)
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	base := testConfigText(1, true)
	tests := map[string]struct{ from, to string }{
		"pop size":    {"pop_size               = 12", "pop_size = 0"},
		"activation":  {"activation_options      = sigmoid", "activation_options = nope"},
		"criterion":   {"fitness_criterion      = max", "fitness_criterion = best"},
		"probability": {"conn_add_prob           = 0.5", "conn_add_prob = 1.5"},
		"connection":  {"initial_connection      = full", "initial_connection = everything"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			require.Contains(t, base, tc.from)
			_, err := ParseConfig([]byte(strings.Replace(base, tc.from, tc.to, 1)))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestConfigureNewFull(t *testing.T) {
	config := testConfig(t, 1, true)
	g := NewGenome(1, &config.Genome)
	require.NoError(t, g.ConfigureNew())

	assert.Len(t, g.Nodes, 1)
	assert.Contains(t, g.Nodes, 0)
	assert.Len(t, g.Connections, 2)
	assert.Contains(t, g.Connections, ConnectionKey{-1, 0})
	assert.Contains(t, g.Connections, ConnectionKey{-2, 0})
	for _, c := range g.Connections {
		assert.True(t, c.Enabled)
	}
}

func TestConfigureNewRecurrentAddsSelfLoops(t *testing.T) {
	config := testConfig(t, 1, false)
	g := NewGenome(1, &config.Genome)
	require.NoError(t, g.ConfigureNew())

	assert.Len(t, g.Connections, 3)
	assert.Contains(t, g.Connections, ConnectionKey{0, 0})
}

func TestConfigureNewPartial(t *testing.T) {
	config := testConfig(t, 1, true)
	config.Genome.InitialConnection = "partial_nodirect 0.5"
	g := NewGenome(1, &config.Genome)
	require.NoError(t, g.ConfigureNew())
	assert.Len(t, g.Connections, 1)

	config.Genome.InitialConnection = "partial_nodirect"
	assert.Error(t, NewGenome(2, &config.Genome).ConfigureNew())
}

func TestMutateAddNodeSplitsConnection(t *testing.T) {
	config := testConfig(t, 1, true)
	g := NewGenome(1, &config.Genome)
	require.NoError(t, g.ConfigureNew())

	g.mutateAddNode()

	require.Len(t, g.Nodes, 2)
	assert.Contains(t, g.Nodes, 1, "new node takes the next free key")
	assert.Len(t, g.Connections, 4)
	disabled := 0
	for _, c := range g.Connections {
		if !c.Enabled {
			disabled++
		}
	}
	assert.Equal(t, 1, disabled)

	var split ConnectionKey
	for k, c := range g.Connections {
		if !c.Enabled {
			split = k
		}
	}
	in := g.Connections[ConnectionKey{split.InNodeID, 1}]
	out := g.Connections[ConnectionKey{1, 0}]
	require.NotNil(t, in)
	require.NotNil(t, out)
	assert.Equal(t, 1.0, in.Weight)
	assert.Equal(t, g.Connections[split].Weight, out.Weight)
}

func TestMutateKeepsFeedForwardAcyclic(t *testing.T) {
	config := testConfig(t, 1, true)
	config.Genome.ConnAddProb = 1
	config.Genome.NodeAddProb = 1
	config.Genome.NodeDeleteProb = 0
	config.Genome.ConnDeleteProb = 0
	g := NewGenome(1, &config.Genome)
	require.NoError(t, g.ConfigureNew())

	for i := 0; i < 50; i++ {
		g.Mutate()
	}
	for k := range g.Connections {
		assert.False(t, createsCycle(&Genome{Connections: withoutKey(g.Connections, k)}, k.InNodeID, k.OutNodeID),
			"connection %v closes a cycle", k)
	}
}

func withoutKey(m map[ConnectionKey]*ConnectionGene, skip ConnectionKey) map[ConnectionKey]*ConnectionGene {
	out := make(map[ConnectionKey]*ConnectionGene, len(m))
	for k, v := range m {
		if k != skip {
			out[k] = v
		}
	}
	return out
}

func TestCreatesCycle(t *testing.T) {
	g := &Genome{Connections: map[ConnectionKey]*ConnectionGene{
		{-1, 1}: {},
		{1, 2}:  {},
		{2, 0}:  {},
	}}
	assert.True(t, createsCycle(g, 2, 1))
	assert.True(t, createsCycle(g, 0, 1))
	assert.True(t, createsCycle(g, 1, 1))
	assert.False(t, createsCycle(g, 1, 0))
	assert.False(t, createsCycle(g, -2, 2))
}

func TestDistance(t *testing.T) {
	config := testConfig(t, 1, true)
	g := NewGenome(1, &config.Genome)
	require.NoError(t, g.ConfigureNew())

	assert.Zero(t, g.Distance(g.Clone()))

	other := g.Clone()
	delete(other.Connections, ConnectionKey{-1, 0})
	// One disjoint connection over two genes, weighted by the disjoint coefficient.
	assert.InDelta(t, 0.5, g.Distance(other), 1e-12)
}

func TestClone(t *testing.T) {
	config := testConfig(t, 1, true)
	g := NewGenome(1, &config.Genome)
	require.NoError(t, g.ConfigureNew())
	g.SetFitness(2)

	c := g.Clone()
	c.Nodes[0].Bias += 1
	assert.NotEqual(t, g.Nodes[0].Bias, c.Nodes[0].Bias)
	assert.Equal(t, 2.0, c.Fitness)
	assert.True(t, c.Evaluated)
}

func TestComputeSpawn(t *testing.T) {
	tests := []struct {
		name     string
		adjusted []float64
		previous []int
		popSize  int
		minSize  int
		want     []int
	}{
		{"steady", []float64{1, 1}, []int{5, 5}, 10, 2, []int{5, 5}},
		{"moves halfway", []float64{1, 0}, []int{5, 5}, 10, 2, []int{7, 3}},
		{"all zero", []float64{0, 0}, []int{6, 4}, 10, 2, []int{6, 4}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, computeSpawn(tc.adjusted, tc.previous, tc.popSize, tc.minSize))
		})
	}
}
