// Package aggregate implements the federated averager: a sample-weighted
// mean of per-device weight deltas, and the application of that average to
// the current global weights. See spec.md §4.2.
package aggregate

import (
	"math"

	"github.com/edgeorchestra/orchestra/pkg/codec"
)

// Submission is one device's decoded weight delta plus its sample count.
type Submission struct {
	Gradient   *codec.Gradient
	NumSamples int
}

// Average computes, per layer name present in any submission,
// sum_i (samples_i/S) * values_i, where S is the total sample count and
// missing layers contribute zero. If S == 0 it returns an empty map.
func Average(submissions []Submission) map[string][]float32 {
	total := 0
	for _, s := range submissions {
		total += s.NumSamples
	}
	if total == 0 {
		return map[string][]float32{}
	}

	out := make(map[string][]float32)
	for _, s := range submissions {
		if s.NumSamples <= 0 {
			continue
		}
		weight := float32(s.NumSamples) / float32(total)
		for _, layer := range s.Gradient.Layers {
			acc, ok := out[layer.Name]
			if !ok {
				acc = make([]float32, len(layer.Values))
				out[layer.Name] = acc
			}
			n := len(layer.Values)
			if len(acc) < n {
				n = len(acc)
			}
			for i := 0; i < n; i++ {
				acc[i] += weight * layer.Values[i]
			}
		}
	}
	return out
}

// ApplyDeltas implements the weight-delta semantics of spec.md §4.2:
// new_i = old_i + averaged_delta_i, per layer. Layers present in weights but
// absent from averaged are copied unchanged. The returned map always
// contains every layer name found in weights.
func ApplyDeltas(weights map[string][]float32, averaged map[string][]float32) map[string][]float32 {
	out := make(map[string][]float32, len(weights))
	for name, values := range weights {
		delta, ok := averaged[name]
		if !ok {
			copied := make([]float32, len(values))
			copy(copied, values)
			out[name] = copied
			continue
		}
		newValues := make([]float32, len(values))
		n := len(values)
		if len(delta) < n {
			n = len(delta)
		}
		for i := 0; i < n; i++ {
			newValues[i] = values[i] + delta[i]
		}
		for i := n; i < len(values); i++ {
			newValues[i] = values[i]
		}
		out[name] = newValues
	}
	return out
}

// CosineDecayLR implements the per-round learning-rate schedule from
// spec.md §4.2: lr(r) = lr_min + 0.5*(lr_max-lr_min)*(1+cos(pi*r/num_rounds))
// with lr_min = 0.01*lr_max.
func CosineDecayLR(lrMax float32, round, numRounds int) float32 {
	if numRounds <= 0 {
		return lrMax
	}
	lrMin := 0.01 * lrMax
	progress := float64(round) / float64(numRounds)
	return lrMin + float32(0.5)*(lrMax-lrMin)*float32(1+math.Cos(math.Pi*progress))
}
