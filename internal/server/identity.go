// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package server

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/genos-dev/genos/internal/tenant"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// Identity modes.
const (
	AuthModeHeaders = "headers"
	AuthModeJWT     = "jwt"
)

const (
	headerOrgID  = "X-Org-Id"
	headerUserID = "X-User-Id"
)

// AuthConfig selects how the caller identity is established.
type AuthConfig struct {
	// Mode is AuthModeHeaders (identity from X-Org-Id / X-User-Id, set by
	// an upstream gateway) or AuthModeJWT (HS256 bearer token).
	Mode      string
	JWTSecret string
	Issuer    string
	// TrustedProxies restricts header mode to requests whose connecting IP
	// is inside one of these CIDR ranges. Empty trusts every peer.
	TrustedProxies []string
}

// identityMiddleware installs the caller identity on the request context.
// Requests without credentials pass through unidentified; handlers that need
// an organization reject them through the tenant validator.
func identityMiddleware(cfg AuthConfig) (func(http.Handler) http.Handler, error) {
	switch cfg.Mode {
	case "", AuthModeHeaders:
		var trusted []*net.IPNet
		if len(cfg.TrustedProxies) > 0 {
			nets, err := parseTrustedProxies(cfg.TrustedProxies)
			if err != nil {
				return nil, err
			}
			trusted = nets
		}
		return headerIdentity(trusted), nil
	case AuthModeJWT:
		if cfg.JWTSecret == "" {
			return nil, genoserr.New(genoserr.CodeServerConfigInvalid, "jwt auth mode requires a secret")
		}
		return jwtIdentity([]byte(cfg.JWTSecret), cfg.Issuer), nil
	default:
		return nil, genoserr.Errorf(genoserr.CodeServerConfigInvalid, "unknown auth mode %q", cfg.Mode)
	}
}

func headerIdentity(trusted []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID := strings.TrimSpace(r.Header.Get(headerOrgID))
			if orgID == "" {
				next.ServeHTTP(w, r)
				return
			}

			if trusted != nil && !fromTrustedPeer(r, trusted) {
				slog.Warn("ignoring identity headers from untrusted peer",
					"remote_addr", r.RemoteAddr, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			id := tenant.Identity{
				OrgID:  orgID,
				UserID: strings.TrimSpace(r.Header.Get(headerUserID)),
			}
			next.ServeHTTP(w, r.WithContext(tenant.WithIdentity(r.Context(), id)))
		})
	}
}

func jwtIdentity(secret []byte, issuer string) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims := jwt.MapClaims{}
			if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil {
				slog.Debug("rejecting bearer token", "path", r.URL.Path, "error", err)
				writeProblem(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			id := tenant.Identity{
				OrgID:  claimString(claims, "org_id"),
				UserID: claimString(claims, "sub"),
			}
			if id.UserID == "" {
				id.UserID = claimString(claims, "user_id")
			}
			if id.OrgID == "" {
				writeProblem(w, http.StatusUnauthorized, "token has no org_id claim")
				return
			}
			next.ServeHTTP(w, r.WithContext(tenant.WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// parseTrustedProxies parses a list of CIDR strings into net.IPNet values.
// Returns an error if any CIDR is invalid.
func parseTrustedProxies(cidrs []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, genoserr.Errorf(genoserr.CodeServerConfigInvalid,
				"invalid trusted proxy CIDR %q: %w", cidr, err)
		}
		nets = append(nets, ipNet)
	}
	if len(nets) == 0 {
		return nil, genoserr.New(genoserr.CodeServerConfigInvalid,
			"trusted_proxies must contain at least one valid CIDR range")
	}
	return nets, nil
}

func fromTrustedPeer(r *http.Request, trusted []*net.IPNet) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr may not have a port
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// writeProblem writes an error body in the same shape huma uses, for
// rejections that happen before routing.
func writeProblem(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(huma.NewError(status, msg))
}
