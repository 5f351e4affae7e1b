package codec

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
)

// Compress produces the wire-compression wrapper described in spec.md §4.1:
// magic byte 0x01, u32 original_size of the float16 payload, then the
// block-compressed body.
//
// No third-party block-compression library appears anywhere in the example
// pack (the teacher and its siblings transmit raw float32 bytes over gRPC);
// compress/flate is the standard library's only general-purpose block
// codec and is used here for exactly that reason — see DESIGN.md.
func Compress(g *Gradient) ([]byte, error) {
	f16 := encodeFloat16(g)

	var body bytes.Buffer
	w, err := flate.NewWriter(&body, flate.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("codec: new flate writer: %w", err)
	}
	if _, err := w.Write(f16); err != nil {
		return nil, fmt.Errorf("codec: flate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: flate close: %w", err)
	}

	out := make([]byte, 0, 1+4+body.Len())
	out = append(out, CompressionMagic)
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, uint32(len(f16)))
	out = append(out, sizeBuf...)
	out = append(out, body.Bytes()...)
	return out, nil
}

// Decompress detects the compression wrapper's magic byte. If absent, the
// input is treated as an uncompressed float32 blob (backward-compatible
// passthrough). If present, it block-decompresses and widens the float16
// payload back to float32, rejecting any input whose advertised
// original_size doesn't match what was actually decompressed.
func Decompress(data []byte) (*Gradient, error) {
	if len(data) == 0 || data[0] != CompressionMagic {
		return Decode(data)
	}
	if len(data) < 5 {
		return nil, fmt.Errorf("codec: compressed payload too short for header")
	}
	originalSize := binary.LittleEndian.Uint32(data[1:5])

	r := flate.NewReader(bytes.NewReader(data[5:]))
	defer r.Close()

	f16, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("codec: flate decompress: %w", err)
	}
	if uint32(len(f16)) != originalSize {
		return nil, fmt.Errorf("codec: advertised original_size %d does not match decompressed size %d", originalSize, len(f16))
	}
	return decodeFloat16(f16)
}
