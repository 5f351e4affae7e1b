package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
	"github.com/edgeorchestra/orchestra/pkg/devicestore"
)

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var status *devicestore.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := devicestore.Status(raw)
		status = &st
	}
	devices, err := s.devices.ListAll(status)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendSuccess(w, devices)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	device, err := s.devices.Get(id)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendSuccess(w, device)
}

type registerDeviceRequest struct {
	ID          string               `json:"id"`
	DisplayName string               `json:"display_name"`
	Hardware    devicestore.Hardware `json:"hardware"`
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, apperrors.Wrap(apperrors.InvalidArgument, "invalid request body", err))
		return
	}
	if req.ID == "" {
		s.sendError(w, apperrors.New(apperrors.InvalidArgument, "id is required"))
		return
	}
	now := time.Now().UTC()
	device := &devicestore.Device{
		ID:           req.ID,
		DisplayName:  req.DisplayName,
		Hardware:     req.Hardware,
		Status:       devicestore.StatusOnline,
		RegisteredAt: now,
		LastSeenAt:   now,
	}
	if err := s.devices.Register(device); err != nil {
		s.sendError(w, err)
		return
	}
	s.sendSuccess(w, device)
}

type updateDeviceRequest struct {
	DisplayName *string             `json:"display_name"`
	Status      *devicestore.Status `json:"status"`
}

func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, apperrors.Wrap(apperrors.InvalidArgument, "invalid request body", err))
		return
	}
	device, err := s.devices.Update(id, devicestore.Update{DisplayName: req.DisplayName, Status: req.Status})
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendSuccess(w, device)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.devices.Delete(id); err != nil {
		s.sendError(w, err)
		return
	}
	s.sendSuccess(w, map[string]any{"id": id, "deleted": true})
}
