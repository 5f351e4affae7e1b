package apperrors

import "net/http"

// HTTPStatus maps a Kind to the conventional status code documented in
// spec.md §7.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case InvalidArgument:
		return http.StatusUnprocessableEntity
	case FailedPrecondition:
		return http.StatusConflict
	case Unauthenticated:
		return http.StatusUnauthorized
	case Unavailable:
		return http.StatusServiceUnavailable
	case DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
