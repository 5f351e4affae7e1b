// Package codec implements the layered tensor binary format used for
// gradient (weight-delta) blobs on the wire, and the float16 compression
// wrapper around it. See spec.md §4.1.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/x448/float16"
)

// MinEncodedSize is the smallest a well-formed layered blob can be: just the
// 4-byte layer_count header (zero layers).
const MinEncodedSize = 4

// CompressionMagic marks a block-compressed, float16-packed payload.
const CompressionMagic = 0x01

// Layer is one named parameter tensor, stored as a flat row-major slice.
type Layer struct {
	Name   string
	Values []float32
}

// Gradient is a decoded layered tensor blob: an ordered list of layers.
type Gradient struct {
	Layers []Layer
}

// ByName returns the layer with the given name, or nil if absent.
func (g *Gradient) ByName(name string) *Layer {
	for i := range g.Layers {
		if g.Layers[i].Name == name {
			return &g.Layers[i]
		}
	}
	return nil
}

// ToMap flattens the ordered layer list into a name->values map, as used by
// the federated averager.
func (g *Gradient) ToMap() map[string][]float32 {
	m := make(map[string][]float32, len(g.Layers))
	for _, l := range g.Layers {
		m[l.Name] = l.Values
	}
	return m
}

// Encode writes the layered tensor binary format: little-endian
// u32 layer_count, then per layer u32 name_length + name bytes + u32
// element_count + element_count*4 bytes of float32 values.
func Encode(g *Gradient) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(len(g.Layers)))
	for _, layer := range g.Layers {
		nameBytes := []byte(layer.Name)
		binary.Write(buf, binary.LittleEndian, uint32(len(nameBytes)))
		buf.Write(nameBytes)
		binary.Write(buf, binary.LittleEndian, uint32(len(layer.Values)))
		for _, v := range layer.Values {
			binary.Write(buf, binary.LittleEndian, math.Float32bits(v))
		}
	}
	return buf.Bytes()
}

// Decode parses the layered tensor binary format. Extra trailing bytes after
// the last declared layer are an error, per spec.md §4.1.
func Decode(data []byte) (*Gradient, error) {
	if len(data) < MinEncodedSize {
		return nil, fmt.Errorf("codec: buffer too small for layer_count header: %d bytes", len(data))
	}
	r := bytes.NewReader(data)
	var layerCount uint32
	if err := binary.Read(r, binary.LittleEndian, &layerCount); err != nil {
		return nil, fmt.Errorf("codec: read layer_count: %w", err)
	}

	g := &Gradient{Layers: make([]Layer, 0, layerCount)}
	for i := uint32(0); i < layerCount; i++ {
		var nameLen uint32
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, fmt.Errorf("codec: read name_length for layer %d: %w", i, err)
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBytes); err != nil {
			return nil, fmt.Errorf("codec: read name for layer %d: %w", i, err)
		}

		var elemCount uint32
		if err := binary.Read(r, binary.LittleEndian, &elemCount); err != nil {
			return nil, fmt.Errorf("codec: read element_count for layer %d: %w", i, err)
		}
		values := make([]float32, elemCount)
		for j := uint32(0); j < elemCount; j++ {
			var bits uint32
			if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
				return nil, fmt.Errorf("codec: read value %d of layer %d: %w", j, i, err)
			}
			values[j] = math.Float32frombits(bits)
		}
		g.Layers = append(g.Layers, Layer{Name: string(nameBytes), Values: values})
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("codec: %d trailing bytes after declared layers", r.Len())
	}
	return g, nil
}

// encodeFloat16 writes the layered format but with 2-byte float16 values
// instead of 4-byte float32, for the compressed wire path.
func encodeFloat16(g *Gradient) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(len(g.Layers)))
	for _, layer := range g.Layers {
		nameBytes := []byte(layer.Name)
		binary.Write(buf, binary.LittleEndian, uint32(len(nameBytes)))
		buf.Write(nameBytes)
		binary.Write(buf, binary.LittleEndian, uint32(len(layer.Values)))
		for _, v := range layer.Values {
			binary.Write(buf, binary.LittleEndian, uint16(float16.Fromfloat32(v)))
		}
	}
	return buf.Bytes()
}

// decodeFloat16 widens a float16-packed layered blob back to float32.
func decodeFloat16(data []byte) (*Gradient, error) {
	r := bytes.NewReader(data)
	var layerCount uint32
	if err := binary.Read(r, binary.LittleEndian, &layerCount); err != nil {
		return nil, fmt.Errorf("codec: read layer_count (f16): %w", err)
	}
	g := &Gradient{Layers: make([]Layer, 0, layerCount)}
	for i := uint32(0); i < layerCount; i++ {
		var nameLen uint32
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, fmt.Errorf("codec: read name_length (f16) for layer %d: %w", i, err)
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBytes); err != nil {
			return nil, fmt.Errorf("codec: read name (f16) for layer %d: %w", i, err)
		}
		var elemCount uint32
		if err := binary.Read(r, binary.LittleEndian, &elemCount); err != nil {
			return nil, fmt.Errorf("codec: read element_count (f16) for layer %d: %w", i, err)
		}
		values := make([]float32, elemCount)
		for j := uint32(0); j < elemCount; j++ {
			var bits uint16
			if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
				return nil, fmt.Errorf("codec: read value %d of layer %d (f16): %w", j, i, err)
			}
			values[j] = float16.Float16(bits).Float32()
		}
		g.Layers = append(g.Layers, Layer{Name: string(nameBytes), Values: values})
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("codec: %d trailing bytes after declared layers (f16)", r.Len())
	}
	return g, nil
}
