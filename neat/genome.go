package neat

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"strconv"
	"strings"
)

// Genome is one individual: node genes, connection genes and the fitness the
// last evaluation assigned to it.
type Genome struct {
	Key         int
	Nodes       map[int]*NodeGene
	Connections map[ConnectionKey]*ConnectionGene
	Fitness     float64
	// Evaluated is false until a fitness function has written Fitness.
	Evaluated bool
	Config    *GenomeConfig
}

// NewGenome creates an empty genome bound to config.
func NewGenome(key int, config *GenomeConfig) *Genome {
	return &Genome{
		Key:         key,
		Nodes:       make(map[int]*NodeGene),
		Connections: make(map[ConnectionKey]*ConnectionGene),
		Config:      config,
	}
}

// SetFitness records the evaluation result.
func (g *Genome) SetFitness(f float64) {
	g.Fitness = f
	g.Evaluated = true
}

// ConfigureNew creates the output and hidden nodes and the initial
// connections named by initial_connection.
func (g *Genome) ConfigureNew() error {
	for _, key := range g.Config.OutputKeys {
		g.Nodes[key] = NewNodeGene(key, g.Config)
	}
	for i := 0; i < g.Config.NumHidden; i++ {
		key := g.Config.GetNewNodeKey()
		if _, dup := g.Nodes[key]; dup {
			return fmt.Errorf("duplicate node key %d while configuring genome %d", key, g.Key)
		}
		g.Nodes[key] = NewNodeGene(key, g.Config)
	}
	return g.connectInitial()
}

func (g *Genome) connectInitial() error {
	fields := strings.Fields(g.Config.InitialConnection)
	kind := fields[0]
	fraction := 1.0
	if strings.HasPrefix(kind, "partial") {
		if len(fields) < 2 {
			return fmt.Errorf("initial_connection %q requires a connection fraction", kind)
		}
		f, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || f < 0 || f > 1 {
			return fmt.Errorf("invalid partial connection fraction %q", fields[1])
		}
		fraction = f
	}

	switch kind {
	case "unconnected":
	case "fs_neat", "fs_neat_nohidden":
		g.connectFSNeat(false)
	case "fs_neat_hidden":
		g.connectFSNeat(true)
	case "full", "full_nodirect":
		g.addConnections(g.fullConnections(false))
	case "full_direct":
		g.addConnections(g.fullConnections(true))
	case "partial", "partial_nodirect":
		g.addConnections(sampleConnections(g.fullConnections(false), fraction))
	case "partial_direct":
		g.addConnections(sampleConnections(g.fullConnections(true), fraction))
	default:
		return fmt.Errorf("invalid initial_connection type %q", kind)
	}
	return nil
}

func (g *Genome) addConnections(keys []ConnectionKey) {
	for _, k := range keys {
		g.Connections[k] = NewConnectionGene(k, g.Config)
	}
}

// connectFSNeat connects one randomly chosen input to every output, and to
// every hidden node when withHidden is set.
func (g *Genome) connectFSNeat(withHidden bool) {
	in := g.Config.InputKeys[rand.Intn(len(g.Config.InputKeys))]
	for _, out := range g.sortedNodeKeys() {
		if !withHidden && !g.isOutput(out) {
			continue
		}
		k := ConnectionKey{InNodeID: in, OutNodeID: out}
		g.Connections[k] = NewConnectionGene(k, g.Config)
	}
}

// fullConnections lists input->hidden and hidden->output pairs, plus
// input->output pairs when direct is set or there are no hidden nodes.
// Recurrent genomes also get a self-connection on every node.
func (g *Genome) fullConnections(direct bool) []ConnectionKey {
	var hidden, outputs []int
	for _, k := range g.sortedNodeKeys() {
		if g.isOutput(k) {
			outputs = append(outputs, k)
		} else {
			hidden = append(hidden, k)
		}
	}

	var keys []ConnectionKey
	for _, in := range g.Config.InputKeys {
		for _, h := range hidden {
			keys = append(keys, ConnectionKey{in, h})
		}
	}
	for _, h := range hidden {
		for _, out := range outputs {
			keys = append(keys, ConnectionKey{h, out})
		}
	}
	if direct || len(hidden) == 0 {
		for _, in := range g.Config.InputKeys {
			for _, out := range outputs {
				keys = append(keys, ConnectionKey{in, out})
			}
		}
	}
	if !g.Config.FeedForward {
		for _, k := range g.sortedNodeKeys() {
			keys = append(keys, ConnectionKey{k, k})
		}
	}
	return keys
}

func sampleConnections(all []ConnectionKey, fraction float64) []ConnectionKey {
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	n := int(math.Round(float64(len(all)) * fraction))
	return all[:n]
}

// ConfigureCrossover builds the genome from two parents. Matching genes mix
// attributes; disjoint and excess genes come from the fitter parent.
func (g *Genome) ConfigureCrossover(parent1, parent2 *Genome) {
	if parent1.Fitness < parent2.Fitness {
		parent1, parent2 = parent2, parent1
	}
	g.Config = parent1.Config

	for key, c1 := range parent1.Connections {
		if c2, ok := parent2.Connections[key]; ok {
			g.Connections[key] = c1.Crossover(c2)
		} else {
			g.Connections[key] = c1.Copy()
		}
	}
	for key, n1 := range parent1.Nodes {
		if n2, ok := parent2.Nodes[key]; ok {
			g.Nodes[key] = n1.Crossover(n2)
		} else {
			g.Nodes[key] = n1.Copy()
		}
	}
}

// Mutate applies structural mutations followed by attribute mutations on
// every gene.
func (g *Genome) Mutate() {
	cfg := g.Config
	if cfg.SingleStructuralMutation {
		div := math.Max(1, cfg.NodeAddProb+cfg.NodeDeleteProb+cfg.ConnAddProb+cfg.ConnDeleteProb)
		r := rand.Float64()
		switch {
		case r < cfg.NodeAddProb/div:
			g.mutateAddNode()
		case r < (cfg.NodeAddProb+cfg.NodeDeleteProb)/div:
			g.mutateDeleteNode()
		case r < (cfg.NodeAddProb+cfg.NodeDeleteProb+cfg.ConnAddProb)/div:
			g.mutateAddConnection()
		case r < (cfg.NodeAddProb+cfg.NodeDeleteProb+cfg.ConnAddProb+cfg.ConnDeleteProb)/div:
			g.mutateDeleteConnection()
		}
	} else {
		if rand.Float64() < cfg.NodeAddProb {
			g.mutateAddNode()
		}
		if rand.Float64() < cfg.NodeDeleteProb {
			g.mutateDeleteNode()
		}
		if rand.Float64() < cfg.ConnAddProb {
			g.mutateAddConnection()
		}
		if rand.Float64() < cfg.ConnDeleteProb {
			g.mutateDeleteConnection()
		}
	}

	for _, k := range g.sortedNodeKeys() {
		g.Nodes[k].Mutate(cfg)
	}
	for _, k := range g.sortedConnectionKeys() {
		g.Connections[k].Mutate(g, cfg)
	}
}

// mutateAddNode splits a random connection: the old edge is disabled, the
// incoming half gets weight 1 and the outgoing half keeps the old weight.
func (g *Genome) mutateAddNode() {
	keys := g.sortedConnectionKeys()
	if len(keys) == 0 {
		return
	}
	split := g.Connections[keys[rand.Intn(len(keys))]]
	split.Enabled = false

	nodeKey := g.Config.GetNewNodeKey()
	g.Nodes[nodeKey] = NewNodeGene(nodeKey, g.Config)

	in := &ConnectionGene{Key: ConnectionKey{split.Key.InNodeID, nodeKey}, Weight: 1, Enabled: true}
	out := &ConnectionGene{Key: ConnectionKey{nodeKey, split.Key.OutNodeID}, Weight: split.Weight, Enabled: true}
	g.Connections[in.Key] = in
	g.Connections[out.Key] = out
}

// mutateAddConnection tries once to add an edge between a random source
// (input or node) and a random node. Output-to-output edges, duplicates and,
// for feed-forward genomes, cycles are rejected.
func (g *Genome) mutateAddConnection() {
	nodes := g.sortedNodeKeys()
	if len(nodes) == 0 {
		return
	}
	out := nodes[rand.Intn(len(nodes))]
	sources := append(append([]int(nil), nodes...), g.Config.InputKeys...)
	in := sources[rand.Intn(len(sources))]

	key := ConnectionKey{in, out}
	if _, exists := g.Connections[key]; exists {
		return
	}
	if g.isOutput(in) && g.isOutput(out) {
		return
	}
	if g.Config.FeedForward && createsCycle(g, in, out) {
		return
	}
	g.Connections[key] = NewConnectionGene(key, g.Config)
}

// mutateDeleteNode removes a random hidden node and every connection touching it.
func (g *Genome) mutateDeleteNode() {
	var hidden []int
	for _, k := range g.sortedNodeKeys() {
		if !g.isOutput(k) {
			hidden = append(hidden, k)
		}
	}
	if len(hidden) == 0 {
		return
	}
	victim := hidden[rand.Intn(len(hidden))]
	for k := range g.Connections {
		if k.InNodeID == victim || k.OutNodeID == victim {
			delete(g.Connections, k)
		}
	}
	delete(g.Nodes, victim)
}

func (g *Genome) mutateDeleteConnection() {
	keys := g.sortedConnectionKeys()
	if len(keys) == 0 {
		return
	}
	delete(g.Connections, keys[rand.Intn(len(keys))])
}

// Distance is the neat-python compatibility distance: node and connection
// terms, each the sum of homologous attribute distances plus weighted
// disjoint counts, normalized by the larger gene count.
func (g *Genome) Distance(other *Genome) float64 {
	cfg := g.Config

	var nodeDist float64
	if len(g.Nodes) > 0 || len(other.Nodes) > 0 {
		disjoint := 0
		for k := range other.Nodes {
			if _, ok := g.Nodes[k]; !ok {
				disjoint++
			}
		}
		for k, n1 := range g.Nodes {
			if n2, ok := other.Nodes[k]; ok {
				nodeDist += n1.Distance(n2, cfg)
			} else {
				disjoint++
			}
		}
		n := float64(max(len(g.Nodes), len(other.Nodes)))
		nodeDist = (nodeDist + cfg.CompatibilityDisjointCoefficient*float64(disjoint)) / n
	}

	var connDist float64
	if len(g.Connections) > 0 || len(other.Connections) > 0 {
		disjoint := 0
		for k := range other.Connections {
			if _, ok := g.Connections[k]; !ok {
				disjoint++
			}
		}
		for k, c1 := range g.Connections {
			if c2, ok := other.Connections[k]; ok {
				connDist += c1.Distance(c2, cfg)
			} else {
				disjoint++
			}
		}
		n := float64(max(len(g.Connections), len(other.Connections)))
		connDist = (connDist + cfg.CompatibilityDisjointCoefficient*float64(disjoint)) / n
	}

	return nodeDist + connDist
}

// Clone returns a deep copy sharing the same config.
func (g *Genome) Clone() *Genome {
	c := NewGenome(g.Key, g.Config)
	c.Fitness, c.Evaluated = g.Fitness, g.Evaluated
	for k, n := range g.Nodes {
		c.Nodes[k] = n.Copy()
	}
	for k, cg := range g.Connections {
		c.Connections[k] = cg.Copy()
	}
	return c
}

// Size returns the number of nodes and enabled connections.
func (g *Genome) Size() (nodes, enabled int) {
	for _, c := range g.Connections {
		if c.Enabled {
			enabled++
		}
	}
	return len(g.Nodes), enabled
}

func (g *Genome) isOutput(key int) bool {
	return slices.Contains(g.Config.OutputKeys, key)
}

func (g *Genome) sortedNodeKeys() []int {
	keys := make([]int, 0, len(g.Nodes))
	for k := range g.Nodes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (g *Genome) sortedConnectionKeys() []ConnectionKey {
	keys := make([]ConnectionKey, 0, len(g.Connections))
	for k := range g.Connections {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareConnectionKeys)
	return keys
}

func compareConnectionKeys(a, b ConnectionKey) int {
	if a.InNodeID != b.InNodeID {
		return a.InNodeID - b.InNodeID
	}
	return a.OutNodeID - b.OutNodeID
}

// createsCycle reports whether adding in->out to the genome's connections
// (enabled or not) would close a cycle.
func createsCycle(g *Genome, in, out int) bool {
	if in == out {
		return true
	}
	visited := map[int]bool{out: true}
	for {
		added := 0
		for k := range g.Connections {
			if visited[k.InNodeID] && !visited[k.OutNodeID] {
				if k.OutNodeID == in {
					return true
				}
				visited[k.OutNodeID] = true
				added++
			}
		}
		if added == 0 {
			return false
		}
	}
}
