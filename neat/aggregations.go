package neat

import (
	"fmt"
	"math"
)

// AggregationType combines the weighted inputs of a node into one value.
type AggregationType func(inputs []float64) float64

// AggregationFunctions holds every aggregation usable in aggregation_options.
var AggregationFunctions = map[string]AggregationType{
	"sum":     AggregateSum,
	"product": AggregateProduct,
	"min":     AggregateMin,
	"max":     AggregateMax,
	"maxabs":  AggregateMaxAbs,
	"mean":    AggregateMean,
	"median":  AggregateMedian,
}

// GetAggregation looks up an aggregation function by name.
func GetAggregation(name string) (AggregationType, error) {
	fn, ok := AggregationFunctions[name]
	if !ok {
		return nil, fmt.Errorf("unknown aggregation function: %s", name)
	}
	return fn, nil
}

// Nodes without enabled inputs aggregate to 0 for every function except
// product, which keeps its multiplicative identity.

func AggregateSum(inputs []float64) float64 {
	return Sum(inputs)
}

func AggregateProduct(inputs []float64) float64 {
	p := 1.0
	for _, v := range inputs {
		p *= v
	}
	return p
}

func AggregateMin(inputs []float64) float64 {
	if len(inputs) == 0 {
		return 0
	}
	return MinFloat(inputs)
}

func AggregateMax(inputs []float64) float64 {
	if len(inputs) == 0 {
		return 0
	}
	return MaxFloat(inputs)
}

// AggregateMaxAbs returns the input with the largest magnitude, keeping its sign.
func AggregateMaxAbs(inputs []float64) float64 {
	var best float64
	for _, v := range inputs {
		if math.Abs(v) > math.Abs(best) {
			best = v
		}
	}
	return best
}

func AggregateMean(inputs []float64) float64 {
	return Mean(inputs)
}

func AggregateMedian(inputs []float64) float64 {
	if len(inputs) == 0 {
		return 0
	}
	return Median(inputs)
}
