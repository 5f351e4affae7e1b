package rpcapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
	"github.com/edgeorchestra/orchestra/pkg/bus"
	"github.com/edgeorchestra/orchestra/pkg/codec"
	"github.com/edgeorchestra/orchestra/pkg/rpcapi/pb"
)

// DownloadModel implements the unary-request, server-stream RPC (spec.md
// §4.9): first chunk carries metadata, subsequent chunks carry 32 KiB
// slices of the model blob in order. No resume; the client reassembles
// in-memory.
func (s *Service) DownloadModel(req *pb.DownloadModelRequest, stream pb.ModelService_DownloadModelServer) error {
	if req.ModelID == "" {
		return apperrors.New(apperrors.InvalidArgument, "model_id is required")
	}
	ctx := stream.Context()
	blob, err := s.bus.GetModel(ctx, req.ModelID)
	if err != nil {
		return err
	}
	if blob == nil {
		return apperrors.New(apperrors.NotFound, "model blob not found")
	}
	meta, err := s.bus.GetModelMeta(ctx, req.ModelID)
	if err != nil {
		return err
	}
	metadata := &pb.ModelMetadata{ModelID: req.ModelID, SizeBytes: len(blob)}
	if meta != nil {
		metadata.Name = meta.Name
		metadata.Version = meta.Version
		metadata.Framework = meta.Framework
	}
	if err := stream.Send(&pb.ModelChunk{Metadata: metadata}); err != nil {
		return err
	}

	for offset := 0; offset < len(blob); offset += downloadChunkSize {
		end := offset + downloadChunkSize
		if end > len(blob) {
			end = len(blob)
		}
		chunk := make([]byte, end-offset)
		copy(chunk, blob[offset:end])
		if err := stream.Send(&pb.ModelChunk{Data: chunk}); err != nil {
			return err
		}
	}
	return nil
}

// UploadModel implements the client-stream RPC: first message must be
// metadata, empty uploads are rejected.
func (s *Service) UploadModel(stream pb.ModelService_UploadModelServer) error {
	first, err := stream.Recv()
	if err != nil {
		return err
	}
	if first.Metadata == nil {
		return apperrors.New(apperrors.InvalidArgument, "first upload message must carry metadata")
	}
	meta := first.Metadata

	var buf bytes.Buffer
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		buf.Write(chunk.Data)
	}
	if buf.Len() == 0 {
		return apperrors.New(apperrors.InvalidArgument, "empty model upload rejected")
	}

	if err := s.bus.PutModel(stream.Context(), meta.ModelID, buf.Bytes(), bus.ModelMeta{
		ModelID: meta.ModelID, Name: meta.Name, Version: meta.Version, Framework: meta.Framework, SizeBytes: buf.Len(),
	}); err != nil {
		return err
	}
	return stream.SendAndClose(&pb.UploadModelResponse{Accepted: true, ModelID: meta.ModelID, SizeBytes: buf.Len()})
}

// SubmitGradients implements the unary RPC: validate, decompress (§4.1),
// append a JSON envelope to the round's bucket.
func (s *Service) SubmitGradients(ctx context.Context, req *pb.SubmitGradientsRequest) (*pb.SubmitGradientsResponse, error) {
	if req.DeviceID == "" || req.ModelID == "" {
		return nil, apperrors.New(apperrors.InvalidArgument, "device_id and model_id are required")
	}
	if req.Round <= 0 {
		return nil, apperrors.New(apperrors.InvalidArgument, "round must be positive")
	}
	if req.NumSamples <= 0 {
		return nil, apperrors.New(apperrors.InvalidArgument, "num_samples must be positive")
	}
	if len(req.Gradients) < codec.MinEncodedSize {
		return nil, apperrors.New(apperrors.InvalidArgument, "gradients payload too short")
	}
	if _, err := codec.Decompress(req.Gradients); err != nil {
		return nil, apperrors.Wrap(apperrors.InvalidArgument, "malformed gradients payload", err)
	}

	sub := bus.GradientSubmission{
		DeviceID:   req.DeviceID,
		Gradients:  base64.StdEncoding.EncodeToString(req.Gradients),
		NumSamples: req.NumSamples,
		Metrics:    req.Metrics,
	}
	if err := s.bus.AppendGradient(ctx, req.ModelID, req.Round, sub); err != nil {
		return nil, err
	}
	return &pb.SubmitGradientsResponse{Accepted: true}, nil
}
