package apperrors

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GRPCStatus maps a Kind to the equivalent gRPC status code and wraps the
// error message. Unexpected (untyped) errors are reported as Internal
// without leaking their details, per spec.md §7's interceptor policy.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	var code codes.Code
	msg := err.Error()
	switch kind {
	case NotFound:
		code = codes.NotFound
	case InvalidArgument:
		code = codes.InvalidArgument
	case FailedPrecondition:
		code = codes.FailedPrecondition
	case Unauthenticated:
		code = codes.Unauthenticated
	case Unavailable:
		code = codes.Unavailable
	case DeadlineExceeded:
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
		msg = "internal error"
	}
	return status.Error(code, msg)
}
