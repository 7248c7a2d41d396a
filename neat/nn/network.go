// Package nn turns genomes into networks that can be activated.
package nn

import (
	"fmt"
	"slices"

	"github.com/baldhumanity/aiai-go/neat"
)

// Network is the phenotype of a genome. Implementations keep activation
// state and are not safe for concurrent use.
type Network interface {
	Activate(inputs []float64) ([]float64, error)
	// Reset clears any state carried between activations.
	Reset()
}

// New builds the network type selected by feed_forward in the genome config.
func New(g *neat.Genome) (Network, error) {
	if g.Config.FeedForward {
		return CreateFeedForwardNetwork(g)
	}
	return CreateRecurrentNetwork(g)
}

type link struct {
	from   int
	weight float64
}

type evalNode struct {
	index    int
	bias     float64
	response float64
	act      neat.ActivationType
	agg      neat.AggregationType
	links    []link
}

func (n *evalNode) eval(values, scratch []float64) ([]float64, float64) {
	scratch = scratch[:0]
	for _, l := range n.links {
		scratch = append(scratch, values[l.from]*l.weight)
	}
	return scratch, n.act(n.bias + n.response*n.agg(scratch))
}

// layout maps node keys to dense value indices. Inputs occupy the first
// slots in InputKeys order. The last slot is never written and reads as 0
// for links whose source has no slot.
type layout struct {
	index   map[int]int
	inputs  int
	outputs []int
	zero    int
}

func newLayout(cfg *neat.GenomeConfig, nodes []int) layout {
	l := layout{index: make(map[int]int, len(cfg.InputKeys)+len(nodes)), inputs: len(cfg.InputKeys)}
	for i, k := range cfg.InputKeys {
		l.index[k] = i
	}
	for _, k := range cfg.OutputKeys {
		if _, ok := l.index[k]; !ok {
			l.index[k] = len(l.index)
		}
	}
	for _, k := range nodes {
		if _, ok := l.index[k]; !ok {
			l.index[k] = len(l.index)
		}
	}
	for _, k := range cfg.OutputKeys {
		l.outputs = append(l.outputs, l.index[k])
	}
	l.zero = len(l.index)
	return l
}

func (l layout) size() int { return l.zero + 1 }

func (l layout) collect(values []float64) []float64 {
	out := make([]float64, len(l.outputs))
	for i, idx := range l.outputs {
		out[i] = values[idx]
	}
	return out
}

func (l layout) checkInputs(inputs []float64) error {
	if len(inputs) != l.inputs {
		return fmt.Errorf("expected %d inputs, got %d", l.inputs, len(inputs))
	}
	return nil
}

// compileNode resolves the functions of node key and its incoming links.
func compileNode(g *neat.Genome, key int, l layout, incoming []neat.ConnectionKey) (evalNode, error) {
	ng, ok := g.Nodes[key]
	if !ok {
		return evalNode{}, fmt.Errorf("node %d has no gene", key)
	}
	act, err := neat.GetActivation(ng.Activation)
	if err != nil {
		return evalNode{}, fmt.Errorf("node %d: %w", key, err)
	}
	agg, err := neat.GetAggregation(ng.Aggregation)
	if err != nil {
		return evalNode{}, fmt.Errorf("node %d: %w", key, err)
	}
	n := evalNode{index: l.index[key], bias: ng.Bias, response: ng.Response, act: act, agg: agg}
	for _, ck := range incoming {
		from, ok := l.index[ck.InNodeID]
		if !ok {
			from = l.zero
		}
		n.links = append(n.links, link{from: from, weight: g.Connections[ck].Weight})
	}
	return n, nil
}

// enabledConnections returns the enabled connection keys in a stable order.
func enabledConnections(g *neat.Genome) []neat.ConnectionKey {
	keys := make([]neat.ConnectionKey, 0, len(g.Connections))
	for k, c := range g.Connections {
		if c.Enabled {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, b neat.ConnectionKey) int {
		if a.InNodeID != b.InNodeID {
			return a.InNodeID - b.InNodeID
		}
		return a.OutNodeID - b.OutNodeID
	})
	return keys
}

// RequiredForOutput returns the non-input nodes whose values can reach an
// output through conns. Outputs are always required.
func RequiredForOutput(inputs, outputs []int, conns []neat.ConnectionKey) map[int]bool {
	isInput := make(map[int]bool, len(inputs))
	for _, k := range inputs {
		isInput[k] = true
	}
	required := make(map[int]bool, len(outputs))
	seen := make(map[int]bool, len(outputs))
	for _, k := range outputs {
		required[k] = true
		seen[k] = true
	}
	for {
		var frontier []int
		for _, c := range conns {
			if seen[c.OutNodeID] && !seen[c.InNodeID] {
				frontier = append(frontier, c.InNodeID)
			}
		}
		grew := false
		for _, k := range frontier {
			if !isInput[k] && !required[k] {
				required[k] = true
				grew = true
			}
		}
		if !grew {
			return required
		}
		for _, k := range frontier {
			seen[k] = true
		}
	}
}

// FeedForwardLayers groups the required nodes into layers that can be
// evaluated in order: every node's inputs are produced by earlier layers.
func FeedForwardLayers(inputs, outputs []int, conns []neat.ConnectionKey) [][]int {
	required := RequiredForOutput(inputs, outputs, conns)
	ready := make(map[int]bool, len(inputs))
	for _, k := range inputs {
		ready[k] = true
	}
	var layers [][]int
	for {
		candidates := make(map[int]bool)
		for _, c := range conns {
			if ready[c.InNodeID] && !ready[c.OutNodeID] {
				candidates[c.OutNodeID] = true
			}
		}
		var layer []int
		for n := range candidates {
			if !required[n] {
				continue
			}
			all := true
			for _, c := range conns {
				if c.OutNodeID == n && !ready[c.InNodeID] {
					all = false
					break
				}
			}
			if all {
				layer = append(layer, n)
			}
		}
		if len(layer) == 0 {
			return layers
		}
		slices.Sort(layer)
		layers = append(layers, layer)
		for _, n := range layer {
			ready[n] = true
		}
	}
}
