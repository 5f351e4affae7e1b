package aggregate

import (
	"fmt"
	"math"
)

// Algorithm is the pluggable server-side aggregation strategy. The
// coordinator's required behavior (spec.md §4.2) is FedAvg; FedOpt and
// FedProx are additive, selectable via job scheduler overrides, and are
// never invoked by any invariant in spec.md §8.
type Algorithm interface {
	Name() string
	Aggregate(weights map[string][]float32, averagedDelta map[string][]float32) map[string][]float32
}

// AlgorithmName identifies a supported aggregation algorithm.
type AlgorithmName string

const (
	FedAvg  AlgorithmName = "fedavg"
	FedOpt  AlgorithmName = "fedopt"
	FedProx AlgorithmName = "fedprox"
)

// NewAlgorithm constructs the named aggregation strategy.
func NewAlgorithm(name AlgorithmName, hyperparams map[string]float64) (Algorithm, error) {
	switch name {
	case "", FedAvg:
		return &fedAvgAlgorithm{}, nil
	case FedOpt:
		return newFedOpt(hyperparams), nil
	case FedProx:
		return newFedProx(hyperparams), nil
	default:
		return nil, fmt.Errorf("aggregate: unsupported algorithm %q", name)
	}
}

type fedAvgAlgorithm struct{}

func (f *fedAvgAlgorithm) Name() string { return string(FedAvg) }

func (f *fedAvgAlgorithm) Aggregate(weights, averagedDelta map[string][]float32) map[string][]float32 {
	return ApplyDeltas(weights, averagedDelta)
}

// fedOptAlgorithm applies an Adam-like server optimizer to the averaged
// pseudo-gradient instead of a plain additive update.
type fedOptAlgorithm struct {
	serverLR float32
	beta1    float32
	beta2    float32
	epsilon  float32
	round    int
	momentum map[string][]float32
	velocity map[string][]float32
}

func newFedOpt(hp map[string]float64) *fedOptAlgorithm {
	f := &fedOptAlgorithm{
		serverLR: 1.0,
		beta1:    0.9,
		beta2:    0.999,
		epsilon:  1e-7,
		momentum: make(map[string][]float32),
		velocity: make(map[string][]float32),
	}
	if v, ok := hp["server_learning_rate"]; ok {
		f.serverLR = float32(v)
	}
	if v, ok := hp["beta1"]; ok {
		f.beta1 = float32(v)
	}
	if v, ok := hp["beta2"]; ok {
		f.beta2 = float32(v)
	}
	if v, ok := hp["epsilon"]; ok {
		f.epsilon = float32(v)
	}
	return f
}

func (f *fedOptAlgorithm) Name() string { return string(FedOpt) }

func (f *fedOptAlgorithm) Aggregate(weights, averagedDelta map[string][]float32) map[string][]float32 {
	f.round++
	out := make(map[string][]float32, len(weights))
	for name, values := range weights {
		pseudoGrad, ok := averagedDelta[name]
		if !ok {
			copied := make([]float32, len(values))
			copy(copied, values)
			out[name] = copied
			continue
		}
		m := f.momentum[name]
		v := f.velocity[name]
		if m == nil {
			m = make([]float32, len(values))
		}
		if v == nil {
			v = make([]float32, len(values))
		}
		newValues := make([]float32, len(values))
		n := len(values)
		if len(pseudoGrad) < n {
			n = len(pseudoGrad)
		}
		for i := 0; i < n; i++ {
			m[i] = f.beta1*m[i] + (1-f.beta1)*pseudoGrad[i]
			v[i] = f.beta2*v[i] + (1-f.beta2)*pseudoGrad[i]*pseudoGrad[i]
			mCorrected := m[i] / (1 - float32(math.Pow(float64(f.beta1), float64(f.round))))
			vCorrected := v[i] / (1 - float32(math.Pow(float64(f.beta2), float64(f.round))))
			newValues[i] = values[i] + f.serverLR*mCorrected/(float32(math.Sqrt(float64(vCorrected)))+f.epsilon)
		}
		for i := n; i < len(values); i++ {
			newValues[i] = values[i]
		}
		f.momentum[name] = m
		f.velocity[name] = v
		out[name] = newValues
	}
	return out
}

// fedProxAlgorithm blends the additive update with the previous global
// weights, damped by a proximal coefficient.
type fedProxAlgorithm struct {
	mu float32
}

func newFedProx(hp map[string]float64) *fedProxAlgorithm {
	f := &fedProxAlgorithm{mu: 0.01}
	if v, ok := hp["mu"]; ok {
		f.mu = float32(v)
	}
	return f
}

func (f *fedProxAlgorithm) Name() string { return string(FedProx) }

func (f *fedProxAlgorithm) Aggregate(weights, averagedDelta map[string][]float32) map[string][]float32 {
	applied := ApplyDeltas(weights, averagedDelta)
	alpha := f.mu / (1.0 + f.mu)
	out := make(map[string][]float32, len(weights))
	for name, newValues := range applied {
		old := weights[name]
		blended := make([]float32, len(newValues))
		n := len(newValues)
		if len(old) < n {
			n = len(old)
		}
		for i := 0; i < n; i++ {
			blended[i] = (1-alpha)*newValues[i] + alpha*old[i]
		}
		for i := n; i < len(newValues); i++ {
			blended[i] = newValues[i]
		}
		out[name] = blended
	}
	return out
}
