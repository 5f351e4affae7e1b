package rpcapi

import "github.com/google/uuid"

// requestID returns a short id for correlating one call's interceptor log
// line with any errors it produced, per spec.md §7 ("all requests are
// logged with a short request id").
func requestID() string {
	return uuid.NewString()[:8]
}
