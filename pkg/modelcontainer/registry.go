package modelcontainer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TensorShape describes one parameter tensor's shape.
type TensorShape struct {
	Name  string `yaml:"name"`
	Shape []int  `yaml:"shape"`
}

// ArchitectureDescriptor is the authoritative source for which tensor names
// are valid for a model, per spec.md §3. Per the REDESIGN FLAGS note,
// per-architecture behavior is dispatched from this registry rather than
// hard-coded switch-cases.
type ArchitectureDescriptor struct {
	Key         string        `yaml:"key"`
	InputShape  []int         `yaml:"input_shape"`
	ClassCount  int           `yaml:"class_count"`
	Parameters  []TensorShape `yaml:"parameters"`
}

// Registry holds the set of known architecture descriptors, keyed by
// architecture key.
type Registry struct {
	byKey map[string]*ArchitectureDescriptor
}

// NewRegistry builds a Registry from a list of descriptors.
func NewRegistry(descs []*ArchitectureDescriptor) *Registry {
	r := &Registry{byKey: make(map[string]*ArchitectureDescriptor, len(descs))}
	for _, d := range descs {
		r.byKey[d.Key] = d
	}
	return r
}

// LoadRegistry reads a YAML file of architecture descriptors, following the
// same load-then-unmarshal shape as pkg/federation's plan loader.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("modelcontainer: read registry file: %w", err)
	}
	var descs []*ArchitectureDescriptor
	if err := yaml.Unmarshal(data, &descs); err != nil {
		return nil, fmt.Errorf("modelcontainer: parse registry file: %w", err)
	}
	return NewRegistry(descs), nil
}

// Get returns the descriptor for key, or an error if unregistered.
func (r *Registry) Get(key string) (*ArchitectureDescriptor, error) {
	d, ok := r.byKey[key]
	if !ok {
		return nil, fmt.Errorf("modelcontainer: unknown architecture %q", key)
	}
	return d, nil
}

// ParameterNames returns the ordered list of parameter-tensor names for an
// architecture, the order serialization callers must pass to codec.Encode
// so layer order stays deterministic.
func (d *ArchitectureDescriptor) ParameterNames() []string {
	names := make([]string, len(d.Parameters))
	for i, p := range d.Parameters {
		names[i] = p.Name
	}
	return names
}

// DefaultRegistry returns a small built-in registry covering the
// architectures exercised by the bundled tests and examples, so a fresh
// deployment has something to register models against before an operator
// supplies their own registry YAML.
func DefaultRegistry() *Registry {
	return NewRegistry([]*ArchitectureDescriptor{
		{
			Key:        "mlp_tabular_small",
			InputShape: []int{16},
			ClassCount: 2,
			Parameters: []TensorShape{
				{Name: "hidden_weight", Shape: []int{16, 8}},
				{Name: "hidden_bias", Shape: []int{8}},
				{Name: "output_weight", Shape: []int{8, 2}},
				{Name: "output_bias", Shape: []int{2}},
			},
		},
		{
			Key:        "cnn_mnist",
			InputShape: []int{28, 28, 1},
			ClassCount: 10,
			Parameters: []TensorShape{
				{Name: "conv1_weight", Shape: []int{3, 3, 1, 8}},
				{Name: "conv1_bias", Shape: []int{8}},
				{Name: "fc_weight", Shape: []int{1352, 10}},
				{Name: "fc_bias", Shape: []int{10}},
			},
		},
	})
}
