// Package httpapi is the operator-facing HTTP surface: job/device/model
// CRUD plus the stop/retry control actions, grounded on the teacher's
// pkg/monitoring/api.go (gorilla/mux subrouters, rs/cors, a websocket feed
// of the latest round metrics).
package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/edgeorchestra/orchestra/pkg/auth"
	"github.com/edgeorchestra/orchestra/pkg/bus"
	"github.com/edgeorchestra/orchestra/pkg/coordinator"
	"github.com/edgeorchestra/orchestra/pkg/devicestore"
	"github.com/edgeorchestra/orchestra/pkg/jobstore"
	"github.com/edgeorchestra/orchestra/pkg/security"
)

// Config is the HTTP-surface section of the application config.
type Config struct {
	Port           int      `yaml:"port"`
	Production     bool     `yaml:"production"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

var devOrigins = []string{
	"http://localhost:3000", "http://localhost:8080",
	"http://127.0.0.1:3000", "http://127.0.0.1:8080",
}

// Server is the HTTP API server. One instance per orchestratord process.
type Server struct {
	coord    *coordinator.Coordinator
	devices  devicestore.Store
	jobs     jobstore.JobStore
	models   jobstore.ModelStore
	bus      bus.Interface
	authMgr  *auth.Manager
	tls      *security.TLSManager
	config   Config
	router   *mux.Router
	upgrader websocket.Upgrader
}

func New(coord *coordinator.Coordinator, devices devicestore.Store, jobs jobstore.JobStore, models jobstore.ModelStore, b bus.Interface, authMgr *auth.Manager, tm *security.TLSManager, cfg Config) *Server {
	s := &Server{
		coord:   coord,
		devices: devices,
		jobs:    jobs,
		models:  models,
		bus:     b,
		authMgr: authMgr,
		tls:     tm,
		config:  cfg,
		router:  mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				allowed := devOrigins
				if cfg.Production {
					allowed = cfg.AllowedOrigins
				}
				for _, o := range allowed {
					if origin == o {
						return true
					}
				}
				return false
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.setupRoutes()
	return s
}

// Handler returns the fully wrapped handler (routes, auth, CORS), suitable
// for http.ListenAndServe or httptest.
func (s *Server) Handler() http.Handler {
	allowed := devOrigins
	if s.config.Production {
		allowed = s.config.AllowedOrigins
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-API-Key", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return c.Handler(s.authMgr.Middleware(s.router))
}

// ListenAndServe starts the HTTP server on the configured port, serving
// HTTPS when the TLS manager has a server certificate loaded.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	if s.tls == nil {
		return http.ListenAndServe(addr, s.Handler())
	}
	tlsConfig, err := s.tls.GetHTTPServerTLSConfig()
	if err != nil {
		return fmt.Errorf("httpapi: load tls config: %w", err)
	}
	if tlsConfig == nil {
		return http.ListenAndServe(addr, s.Handler())
	}
	srv := &http.Server{Addr: addr, Handler: s.Handler(), TLSConfig: tlsConfig}
	return srv.ListenAndServeTLS("", "")
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	devices := api.PathPrefix("/devices").Subrouter()
	devices.HandleFunc("", s.handleListDevices).Methods("GET")
	devices.HandleFunc("", s.handleRegisterDevice).Methods("POST")
	devices.HandleFunc("/{id}", s.handleGetDevice).Methods("GET")
	devices.HandleFunc("/{id}", s.handleUpdateDevice).Methods("PATCH")
	devices.HandleFunc("/{id}", s.handleDeleteDevice).Methods("DELETE")

	models := api.PathPrefix("/models").Subrouter()
	models.HandleFunc("", s.handleListModels).Methods("GET")
	models.HandleFunc("/{id}", s.handleGetModel).Methods("GET")

	jobs := api.PathPrefix("/jobs").Subrouter()
	jobs.HandleFunc("", s.handleListJobs).Methods("GET")
	jobs.HandleFunc("", s.handleCreateJob).Methods("POST")
	jobs.HandleFunc("/{id}", s.handleGetJob).Methods("GET")
	jobs.HandleFunc("/{id}/stop", s.handleStopJob).Methods("POST")
	jobs.HandleFunc("/{id}/retry", s.handleRetryJob).Methods("POST")

	api.HandleFunc("/metrics/latest", s.handleLatestMetrics).Methods("GET")
	api.HandleFunc("/ws", s.handleWebSocket).Methods("GET")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, map[string]any{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleLatestMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.bus.GetLatestMetrics(r.Context())
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendSuccess(w, metrics)
}

// handleWebSocket pushes the latest cross-job metrics snapshot to the
// client every time it changes, the same poll-and-push shape the teacher's
// event subscription loop uses, but sourced from the bus's single
// "training:latest_metrics" key rather than a fan-out event bus.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	var lastPushed string
	for range ticker.C {
		metrics, err := s.bus.GetLatestMetrics(r.Context())
		if err != nil || metrics == nil {
			continue
		}
		marker := fmt.Sprintf("%v", metrics)
		if marker == lastPushed {
			continue
		}
		lastPushed = marker
		if err := conn.WriteJSON(metrics); err != nil {
			return
		}
	}
}
