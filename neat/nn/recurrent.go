package nn

import (
	"fmt"
	"slices"

	"github.com/baldhumanity/aiai-go/neat"
)

// RecurrentNetwork evaluates every node that has an enabled incoming
// connection once per Activate, reading the values produced by the previous
// call. Cycles are therefore allowed. Nodes without incoming connections,
// including unconnected outputs, stay at 0.
type RecurrentNetwork struct {
	layout  layout
	nodes   []evalNode
	prev    []float64
	cur     []float64
	scratch []float64
}

// CreateRecurrentNetwork builds the network for any genome. Only
// connections touching a node required for the outputs are kept.
func CreateRecurrentNetwork(g *neat.Genome) (*RecurrentNetwork, error) {
	all := enabledConnections(g)
	required := RequiredForOutput(g.Config.InputKeys, g.Config.OutputKeys, all)

	incoming := make(map[int][]neat.ConnectionKey)
	var sources []int
	for _, c := range all {
		if required[c.InNodeID] || required[c.OutNodeID] {
			incoming[c.OutNodeID] = append(incoming[c.OutNodeID], c)
			sources = append(sources, c.InNodeID)
		}
	}
	keys := make([]int, 0, len(incoming))
	for k := range incoming {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	slices.Sort(sources)
	l := newLayout(g.Config, append(slices.Clone(keys), sources...))

	net := &RecurrentNetwork{
		layout: l,
		prev:   make([]float64, l.size()),
		cur:    make([]float64, l.size()),
	}
	for _, key := range keys {
		n, err := compileNode(g, key, l, incoming[key])
		if err != nil {
			return nil, fmt.Errorf("genome %d: %w", g.Key, err)
		}
		net.nodes = append(net.nodes, n)
	}
	return net, nil
}

// Activate advances the network by one step.
func (net *RecurrentNetwork) Activate(inputs []float64) ([]float64, error) {
	if err := net.layout.checkInputs(inputs); err != nil {
		return nil, err
	}
	net.prev, net.cur = net.cur, net.prev
	copy(net.prev, inputs)
	copy(net.cur, inputs)
	for i := range net.nodes {
		var v float64
		net.scratch, v = net.nodes[i].eval(net.prev, net.scratch)
		net.cur[net.nodes[i].index] = v
	}
	return net.layout.collect(net.cur), nil
}

// Reset zeroes all node values.
func (net *RecurrentNetwork) Reset() {
	clear(net.prev)
	clear(net.cur)
}
