// Package modelcontainer adapts the opaque on-disk model blob: extracting
// and injecting named weight tensors, and mutating the embedded optimizer's
// learning rate. Per spec.md §4.3 the on-disk neural-network container
// format itself is out of scope; this package only needs to satisfy the
// symmetry contract extract(inject(b, extract(b))) == extract(b) and
// lr(set_lr(b, x)) == x, so the blob is our own JSON envelope rather than a
// vendor-specific format.
package modelcontainer

import (
	"encoding/json"
	"fmt"
)

// Blob is the on-disk representation: named flat tensors plus the scalar
// optimizer learning rate, tagged with its architecture key. The functions
// in this file do not check tensor names against the architecture's
// descriptor.
type Blob struct {
	Architecture string               `json:"architecture"`
	Tensors      map[string][]float32 `json:"tensors"`
	LearningRate float32              `json:"learning_rate"`
}

// NewBlob builds an initial, zero-valued blob for the given architecture
// descriptor, with every registered parameter tensor present and zeroed.
func NewBlob(desc *ArchitectureDescriptor) *Blob {
	tensors := make(map[string][]float32, len(desc.Parameters))
	for _, p := range desc.Parameters {
		tensors[p.Name] = make([]float32, shapeSize(p.Shape))
	}
	return &Blob{Architecture: desc.Key, Tensors: tensors}
}

func shapeSize(shape []int) int {
	size := 1
	for _, d := range shape {
		size *= d
	}
	return size
}

// Marshal serializes the blob to its opaque wire representation.
func Marshal(b *Blob) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("modelcontainer: marshal: %w", err)
	}
	return data, nil
}

// Unmarshal parses the opaque wire representation back into a Blob.
func Unmarshal(data []byte) (*Blob, error) {
	var b Blob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("modelcontainer: unmarshal: %w", err)
	}
	return &b, nil
}

// ExtractWeights walks the container's tensor map and returns every
// updatable parameter tensor. Keys follow the architecture descriptor's
// <layer>_weight / <layer>_bias naming convention.
func ExtractWeights(blob []byte) (map[string][]float32, error) {
	b, err := Unmarshal(blob)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]float32, len(b.Tensors))
	for name, values := range b.Tensors {
		copied := make([]float32, len(values))
		copy(copied, values)
		out[name] = copied
	}
	return out, nil
}

// InjectWeights replaces matching tensors in blob with the provided values,
// leaving unmatched tensors untouched, and returns the new blob.
func InjectWeights(blob []byte, weights map[string][]float32) ([]byte, error) {
	b, err := Unmarshal(blob)
	if err != nil {
		return nil, err
	}
	if b.Tensors == nil {
		b.Tensors = make(map[string][]float32)
	}
	for name, values := range weights {
		copied := make([]float32, len(values))
		copy(copied, values)
		b.Tensors[name] = copied
	}
	return Marshal(b)
}

// SetLearningRate mutates the embedded optimizer's scalar LR.
func SetLearningRate(blob []byte, lr float32) ([]byte, error) {
	b, err := Unmarshal(blob)
	if err != nil {
		return nil, err
	}
	b.LearningRate = lr
	return Marshal(b)
}

// LearningRate reads back the embedded optimizer's scalar LR.
func LearningRate(blob []byte) (float32, error) {
	b, err := Unmarshal(blob)
	if err != nil {
		return 0, err
	}
	return b.LearningRate, nil
}
