// Package device derives a coarse client fingerprint from the User-Agent
// header. The fingerprint is attached to login audit events for contextual
// risk review; it gates nothing.
package device

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

type fingerprintKey struct{}

// WithFingerprint stores the computed fingerprint in the context.
func WithFingerprint(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, fingerprintKey{}, fingerprint)
}

// GetFingerprint retrieves the fingerprint, or "" when none was computed.
func GetFingerprint(ctx context.Context) string {
	if fp, ok := ctx.Value(fingerprintKey{}).(string); ok {
		return fp
	}
	return ""
}

// Middleware computes the fingerprint from the request's User-Agent and
// stores it in the context for audit logging downstream.
func Middleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithFingerprint(r.Context(), svc.ComputeFingerprint(r.UserAgent()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ComputeFingerprint hashes browser family, major version, OS, and platform.
// The IP address is not part of the fingerprint.
func (s *Service) ComputeFingerprint(userAgentString string) string {
	if !s.enabled || userAgentString == "" {
		return ""
	}

	ua := useragent.New(userAgentString)
	browser, version := ua.Browser()

	majorVersion := "unknown"
	if version != "" {
		parts := strings.Split(version, ".")
		if len(parts) > 0 && parts[0] != "" {
			majorVersion = parts[0]
		}
	}

	os := ua.OS()
	platform := "desktop"
	if ua.Mobile() {
		platform = "mobile"
	}

	browser = strings.ToLower(strings.TrimSpace(browser))
	if browser == "" {
		browser = "unknown"
	}
	os = strings.ToLower(strings.TrimSpace(os))
	if os == "" {
		os = "unknown"
	}

	data := fmt.Sprintf("%s|%s|%s|%s", browser, majorVersion, os, platform)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
