// Package pb holds the wire messages and service descriptors for the
// streaming RPC surface (spec.md §4.9, §6 "RPC services"). No .proto
// definition ships with this module, so these are hand-written in the
// shape protoc-gen-go-grpc would emit: plain message structs, typed
// stream wrappers, and grpc.ServiceDesc tables, carried over gRPC using a
// JSON wire codec instead of the binary protobuf codec.
package pb

import "encoding/json"

// Codec is a grpc encoding.Codec that marshals messages as JSON. It is
// forced on both the server (grpc.ForceServerCodec) and the client
// (grpc.ForceCodec) so ordinary Go structs can ride the gRPC transport
// (framing, streaming, deadlines, interceptors) without a protoc step.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (Codec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (Codec) Name() string { return "json" }
