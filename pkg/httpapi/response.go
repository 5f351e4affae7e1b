package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
)

// APIResponse is the uniform response envelope every handler writes,
// mirrored on the teacher's monitoring API.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) sendSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

// sendError maps err's apperrors.Kind to a status code and writes the
// envelope. Internal (and untyped) errors are logged here and reported to
// the client only as "internal error", never with a stack trace or wrapped
// driver error; other kinds return err's own message.
func (s *Server) sendError(w http.ResponseWriter, err error) {
	msg := err.Error()
	if apperrors.KindOf(err) == apperrors.Internal {
		log.Printf("httpapi: internal error: %v", err)
		msg = "internal error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatus(err))
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: msg})
}
