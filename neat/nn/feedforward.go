package nn

import (
	"fmt"

	"github.com/baldhumanity/aiai-go/neat"
)

// FeedForwardNetwork evaluates the nodes needed for the outputs layer by
// layer. Outputs that no input path reaches stay at 0.
type FeedForwardNetwork struct {
	layout  layout
	order   []evalNode
	values  []float64
	scratch []float64
}

// CreateFeedForwardNetwork builds the network for a genome configured with
// feed_forward = true. Disabled connections are ignored.
func CreateFeedForwardNetwork(g *neat.Genome) (*FeedForwardNetwork, error) {
	if !g.Config.FeedForward {
		return nil, fmt.Errorf("genome %d is not configured as feed-forward", g.Key)
	}
	conns := enabledConnections(g)
	layers := FeedForwardLayers(g.Config.InputKeys, g.Config.OutputKeys, conns)

	var ordered []int
	for _, layer := range layers {
		ordered = append(ordered, layer...)
	}
	l := newLayout(g.Config, ordered)

	incoming := make(map[int][]neat.ConnectionKey)
	for _, c := range conns {
		incoming[c.OutNodeID] = append(incoming[c.OutNodeID], c)
	}

	net := &FeedForwardNetwork{layout: l, values: make([]float64, l.size())}
	for _, key := range ordered {
		n, err := compileNode(g, key, l, incoming[key])
		if err != nil {
			return nil, fmt.Errorf("genome %d: %w", g.Key, err)
		}
		net.order = append(net.order, n)
	}
	return net, nil
}

// Activate feeds inputs through the network and returns one value per output.
func (net *FeedForwardNetwork) Activate(inputs []float64) ([]float64, error) {
	if err := net.layout.checkInputs(inputs); err != nil {
		return nil, err
	}
	copy(net.values, inputs)
	for i := range net.order {
		var v float64
		net.scratch, v = net.order[i].eval(net.values, net.scratch)
		net.values[net.order[i].index] = v
	}
	return net.layout.collect(net.values), nil
}

// Reset is a no-op; a feed-forward network holds no state between calls.
func (net *FeedForwardNetwork) Reset() {}
