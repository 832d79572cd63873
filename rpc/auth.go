package rpc

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"creditvault/config"
	"creditvault/observability"
	"creditvault/observability/logging"
)

var (
	errAuthDisabled = errors.New("rpc: admin authentication is not configured")
	errNoToken      = errors.New("rpc: missing bearer token")
	errBadRole      = errors.New("rpc: token does not carry the admin role")
)

// authenticator validates HS256 bearer tokens on the admin method surface.
type authenticator struct {
	secret []byte
	ttl    time.Duration
}

type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func newAuthenticator(cfg config.AuthConfig) *authenticator {
	secret := strings.TrimSpace(cfg.AdminJWTSecret)
	if secret == "" {
		return &authenticator{}
	}
	ttl := time.Duration(cfg.TokenTTLSecs) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &authenticator{secret: []byte(secret), ttl: ttl}
}

// enabled reports whether a signing secret is configured.
func (a *authenticator) enabled() bool {
	return a != nil && len(a.secret) > 0
}

// IssueToken mints a short-lived admin token. Used by operator tooling and
// tests.
func (a *authenticator) IssueToken(subject string) (string, error) {
	if !a.enabled() {
		return "", errAuthDisabled
	}
	now := time.Now()
	claims := adminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// verify checks the Authorization header for a valid admin token.
func (a *authenticator) verify(r *http.Request) error {
	if !a.enabled() {
		return errAuthDisabled
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return errNoToken
	}
	claims := &adminClaims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return err
	}
	if !parsed.Valid || claims.Role != "admin" {
		return errBadRole
	}
	return nil
}

// requireAdmin rejects the request unless it carries a valid admin token.
// Returns false after writing the error response.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request, req *RPCRequest) bool {
	if err := s.auth.verify(r); err != nil {
		observability.ModuleMetrics().RecordThrottle("rpc", "auth")
		s.log.Warn("admin method rejected",
			slog.String("method", req.Method),
			slog.String("error", err.Error()),
			logging.MaskField("authorization", r.Header.Get("Authorization")))
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", err.Error())
		return false
	}
	return true
}
