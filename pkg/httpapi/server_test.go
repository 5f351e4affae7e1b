package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edgeorchestra/orchestra/pkg/auth"
	"github.com/edgeorchestra/orchestra/pkg/bus"
	"github.com/edgeorchestra/orchestra/pkg/coordinator"
	"github.com/edgeorchestra/orchestra/pkg/devicestore"
	"github.com/edgeorchestra/orchestra/pkg/httpapi"
	"github.com/edgeorchestra/orchestra/pkg/jobstore"
	"github.com/edgeorchestra/orchestra/pkg/modelcontainer"
)

func newTestServer(t *testing.T) (*httptest.Server, devicestore.Store) {
	t.Helper()
	jobs := jobstore.NewMemoryJobStore()
	models := jobstore.NewMemoryModelStore()
	devices := devicestore.NewMemoryStore()
	b := bus.NewMemoryBus()
	registry := modelcontainer.DefaultRegistry()
	coord := coordinator.New(jobs, models, devices, b, registry, nil, coordinator.DefaultConfig())

	authMgr, err := auth.New(auth.Config{Enabled: true, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("new auth manager: %v", err)
	}
	srv := httpapi.New(coord, devices, jobs, models, b, authMgr, nil, httpapi.Config{Port: 0})
	return httptest.NewServer(srv.Handler()), devices
}

func doRequest(t *testing.T, method, url, apiKey string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestHealthIsUnauthenticated(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/v1/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if success, _ := body["success"].(bool); !success {
		t.Fatalf("body = %+v, want success", body)
	}
}

func TestDeviceEndpointsRequireAPIKey(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, _ := doRequest(t, http.MethodGet, ts.URL+"/api/v1/devices", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/v1/devices", "wrong-key", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401, body = %+v", resp.StatusCode, body)
	}
}

func TestRegisterAndListDevices(t *testing.T) {
	ts, devices := newTestServer(t)
	defer ts.Close()

	reqBody := map[string]any{
		"id":           "dev-1",
		"display_name": "pixel",
		"hardware":     map[string]any{"chip_label": "soc", "memory_bytes": 4 << 30, "cpu_cores": 4},
	}
	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/v1/devices", "test-key", reqBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register status = %d, body = %+v", resp.StatusCode, body)
	}

	if _, err := devices.Get("dev-1"); err != nil {
		t.Fatalf("device not persisted: %v", err)
	}

	resp, body = doRequest(t, http.MethodGet, ts.URL+"/api/v1/devices", "test-key", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, body = %+v", resp.StatusCode, body)
	}
	listed, ok := body["data"].([]any)
	if !ok || len(listed) != 1 {
		t.Fatalf("data = %+v, want one device", body["data"])
	}
}

func TestCreateJobStartsRoundLoop(t *testing.T) {
	ts, devices := newTestServer(t)
	defer ts.Close()

	if err := devices.Register(&devicestore.Device{ID: "dev-1", Status: devicestore.StatusOnline}); err != nil {
		t.Fatalf("register device: %v", err)
	}

	reqBody := map[string]any{
		"id":                 "job-1",
		"architecture":       "mlp_tabular_small",
		"num_rounds":         1,
		"min_devices":        1,
		"base_learning_rate": 0.1,
	}
	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/v1/jobs", "test-key", reqBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create job status = %d, body = %+v", resp.StatusCode, body)
	}

	resp, body = doRequest(t, http.MethodGet, ts.URL+"/api/v1/jobs/job-1", "test-key", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get job status = %d, body = %+v", resp.StatusCode, body)
	}

	resp, body = doRequest(t, http.MethodPost, ts.URL+"/api/v1/jobs/job-1/stop", "test-key", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop job status = %d, body = %+v", resp.StatusCode, body)
	}
}
