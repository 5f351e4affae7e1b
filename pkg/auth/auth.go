// Package auth is API key / JWT authentication for the HTTP and RPC
// surfaces. A single shared operator API key gates the control-plane HTTP
// API; devices authenticate the streaming RPCs with short-lived JWTs issued
// at registration time.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
)

// Role hierarchy: a device only ever holds RoleDevice, an operator request
// authenticated by API key holds RoleOperator.
const (
	RoleDevice   = "device"
	RoleOperator = "operator"
)

// Config is the authentication section of the application config (spec.md
// §6 "API key" plus the JWT fields the teacher's JWTConfig carries).
type Config struct {
	Enabled     bool          `yaml:"enabled"`
	APIKey      string        `yaml:"api_key"`
	HeaderName  string        `yaml:"header_name"`
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenExpiry time.Duration `yaml:"token_expiry"`
	Issuer      string        `yaml:"issuer"`
}

// Manager authenticates operator API requests and issues/validates device
// JWTs, the way the teacher's AuthManager does for its own two schemes.
type Manager struct {
	config    Config
	jwtSecret []byte
}

// Identity is the authenticated caller of a request.
type Identity struct {
	Subject string
	Role    string
	Claims  jwt.MapClaims
}

func New(cfg Config) (*Manager, error) {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-API-Key"
	}
	m := &Manager{config: cfg}
	if cfg.JWTSecret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("auth: generate jwt secret: %w", err)
		}
		m.jwtSecret = secret
	} else {
		m.jwtSecret = []byte(cfg.JWTSecret)
	}
	return m, nil
}

// AuthenticateOperator validates the X-API-Key header against the
// configured operator key using a constant-time comparison.
func (m *Manager) AuthenticateOperator(r *http.Request) (*Identity, error) {
	if !m.config.Enabled {
		return &Identity{Subject: "anonymous", Role: RoleOperator}, nil
	}
	provided := r.Header.Get(m.config.HeaderName)
	if provided == "" {
		return nil, apperrors.New(apperrors.Unauthenticated, "missing "+m.config.HeaderName+" header")
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(m.config.APIKey)) != 1 {
		return nil, apperrors.New(apperrors.Unauthenticated, "invalid api key")
	}
	return &Identity{Subject: "operator", Role: RoleOperator}, nil
}

// IssueDeviceToken mints a JWT scoped to one device, used by the device
// registry RPC to hand the device something to present on subsequent
// streaming calls.
func (m *Manager) IssueDeviceToken(deviceID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  deviceID,
		"role": RoleDevice,
		"iat":  now.Unix(),
		"iss":  m.config.Issuer,
	}
	if m.config.TokenExpiry > 0 {
		claims["exp"] = now.Add(m.config.TokenExpiry).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.jwtSecret)
}

// AuthenticateDevice validates a bearer JWT from the Authorization header
// or, for gRPC metadata callers, a raw token string.
func (m *Manager) AuthenticateDevice(bearer string) (*Identity, error) {
	if !m.config.Enabled {
		return &Identity{Subject: "anonymous", Role: RoleDevice}, nil
	}
	tokenString := strings.TrimPrefix(bearer, "Bearer ")
	if tokenString == "" {
		return nil, apperrors.New(apperrors.Unauthenticated, "missing bearer token")
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.Wrap(apperrors.Unauthenticated, "invalid device token", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.New(apperrors.Unauthenticated, "invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, apperrors.New(apperrors.Unauthenticated, "token missing subject")
	}
	return &Identity{Subject: sub, Role: RoleDevice, Claims: claims}, nil
}

// Middleware wraps an http.Handler, authenticating every request as an
// operator except the health check, which stays open for load balancer
// probes.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/health" {
			next.ServeHTTP(w, r)
			return
		}
		identity, err := m.AuthenticateOperator(r)
		if err != nil {
			http.Error(w, err.Error(), apperrors.HTTPStatus(err))
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type identityKey struct{}

// FromContext extracts the Identity a Middleware call placed on the
// request context.
func FromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok
}

// GenerateAPIKey returns a fresh random operator API key, for operators
// bootstrapping a deployment's configuration.
func GenerateAPIKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("auth: generate api key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}
