package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
	"github.com/edgeorchestra/orchestra/pkg/jobstore"
)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var status *jobstore.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := jobstore.JobStatus(raw)
		status = &st
	}
	jobs, err := s.jobs.ListAll(status)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendSuccess(w, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := s.jobs.Get(id)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendSuccess(w, job)
}

type createJobRequest struct {
	ID                string          `json:"id"`
	ModelID           string          `json:"model_id"`
	Architecture      string          `json:"architecture"`
	NumRounds         int             `json:"num_rounds"`
	MinDevices        int             `json:"min_devices"`
	BaseLearningRate  float32         `json:"base_learning_rate"`
	SchedulerOverride json.RawMessage `json:"scheduler_override,omitempty"`
}

// handleCreateJob creates and immediately starts a job, matching the
// original one-shot "submit a training job" control-plane action; stop/
// retry are the only post-creation lifecycle transitions an operator
// drives directly.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, apperrors.Wrap(apperrors.InvalidArgument, "invalid request body", err))
		return
	}
	if req.ID == "" {
		s.sendError(w, apperrors.New(apperrors.InvalidArgument, "id is required"))
		return
	}
	if req.NumRounds < 1 {
		s.sendError(w, apperrors.New(apperrors.InvalidArgument, "num_rounds must be >= 1"))
		return
	}
	job := &jobstore.Job{
		ID:                req.ID,
		ModelID:           req.ModelID,
		NumRounds:         req.NumRounds,
		MinDevices:        req.MinDevices,
		BaseLearningRate:  req.BaseLearningRate,
		SchedulerOverride: req.SchedulerOverride,
	}
	if err := s.coord.CreateJob(job, req.Architecture); err != nil {
		s.sendError(w, err)
		return
	}
	if err := s.coord.StartJob(r.Context(), job.ID); err != nil {
		s.sendError(w, err)
		return
	}
	s.sendSuccess(w, job)
}

func (s *Server) handleStopJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.coord.StopJob(r.Context(), id); err != nil {
		s.sendError(w, err)
		return
	}
	s.sendSuccess(w, map[string]any{"id": id, "stop_requested": true})
}

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	resumeFrom, err := s.coord.RetryJob(r.Context(), id)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendSuccess(w, map[string]any{"id": id, "resume_from_round": resumeFrom})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.models.ListAll()
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendSuccess(w, models)
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	model, err := s.models.Get(id)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendSuccess(w, model)
}
