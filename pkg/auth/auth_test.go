package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edgeorchestra/orchestra/pkg/auth"
)

func TestAuthenticateOperatorRejectsWrongKey(t *testing.T) {
	m, err := auth.New(auth.Config{Enabled: true, APIKey: "secret-key"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	if _, err := m.AuthenticateOperator(req); err == nil {
		t.Fatalf("expected error for missing api key")
	}

	req.Header.Set("X-API-Key", "wrong")
	if _, err := m.AuthenticateOperator(req); err == nil {
		t.Fatalf("expected error for wrong api key")
	}

	req.Header.Set("X-API-Key", "secret-key")
	identity, err := m.AuthenticateOperator(req)
	if err != nil {
		t.Fatalf("authenticate with correct key: %v", err)
	}
	if identity.Role != auth.RoleOperator {
		t.Fatalf("role = %s, want operator", identity.Role)
	}
}

func TestAuthenticateOperatorDisabledAllowsAll(t *testing.T) {
	m, err := auth.New(auth.Config{Enabled: false})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	if _, err := m.AuthenticateOperator(req); err != nil {
		t.Fatalf("expected auth disabled to allow request, got %v", err)
	}
}

func TestDeviceTokenRoundTrip(t *testing.T) {
	m, err := auth.New(auth.Config{Enabled: true, APIKey: "k", JWTSecret: "jwt-secret", TokenExpiry: time.Hour, Issuer: "edgeorchestra"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, err := m.IssueDeviceToken("dev-1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	identity, err := m.AuthenticateDevice("Bearer " + token)
	if err != nil {
		t.Fatalf("authenticate device: %v", err)
	}
	if identity.Subject != "dev-1" || identity.Role != auth.RoleDevice {
		t.Fatalf("identity = %+v, want dev-1/device", identity)
	}
}

func TestAuthenticateDeviceRejectsGarbage(t *testing.T) {
	m, err := auth.New(auth.Config{Enabled: true, APIKey: "k", JWTSecret: "jwt-secret"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.AuthenticateDevice("Bearer not-a-jwt"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
	if _, err := m.AuthenticateDevice(""); err == nil {
		t.Fatalf("expected error for empty bearer")
	}
}
