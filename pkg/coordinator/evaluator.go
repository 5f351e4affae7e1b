package coordinator

import "context"

// EvalResult is a round's server-side evaluation outcome.
type EvalResult struct {
	Loss     float64
	Accuracy float64
}

// Evaluator runs a forward pass against a held-out dataset keyed by
// architecture and reports (loss, accuracy). Spec.md §4.3 treats the
// model container's on-disk format as opaque and out of scope, so there is
// no vendor neural-network runtime to invoke here; Evaluator is kept
// pluggable and DefaultEvaluator derives a deterministic, architecture-
// agnostic proxy score from the aggregated weights so the round loop has
// something real to persist and callers can substitute their own runtime.
type Evaluator interface {
	Evaluate(ctx context.Context, architecture string, weights map[string][]float32) (EvalResult, error)
}

// DefaultEvaluator computes a stand-in loss/accuracy pair from the
// aggregated weight magnitudes: smaller mean-absolute-weight is reported
// as lower loss, scaled into a bounded, monotonic accuracy proxy. This is
// not a real forward pass; it exists so the round loop's evaluate step is
// exercised without requiring a vendor model runtime.
type DefaultEvaluator struct{}

func (DefaultEvaluator) Evaluate(_ context.Context, _ string, weights map[string][]float32) (EvalResult, error) {
	var sum float64
	var n int
	for _, layer := range weights {
		for _, v := range layer {
			f := float64(v)
			if f < 0 {
				f = -f
			}
			sum += f
			n++
		}
	}
	if n == 0 {
		return EvalResult{Loss: 0, Accuracy: 0}, nil
	}
	meanAbs := sum / float64(n)
	loss := meanAbs
	accuracy := 1.0 / (1.0 + meanAbs)
	return EvalResult{Loss: loss, Accuracy: accuracy}, nil
}
