package server

import (
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CSRFConfig drives the double-submit cookie check. Mutating requests
// must echo the signed cookie value in the X-Csrf-Token header.
type CSRFConfig struct {
	Secret    string
	CookieTTL time.Duration
}

const csrfCookieName = "studio_csrf"

func (c CSRFConfig) ttl() time.Duration {
	if c.CookieTTL <= 0 {
		return 12 * time.Hour
	}
	return c.CookieTTL
}

func (c CSRFConfig) issueToken(now time.Time) (string, error) {
	if strings.TrimSpace(c.Secret) == "" {
		return "", errors.New("csrf secret not configured")
	}
	claims := jwt.RegisteredClaims{
		Subject:   uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl())),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.Secret))
}

func (c CSRFConfig) verifyToken(token string) error {
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("csrf secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return []byte(c.Secret), nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("invalid token")
	}
	return nil
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// newCSRFMiddleware issues the cookie on the token endpoint and enforces
// header-matches-cookie on every mutating request under the base path.
// Disabled entirely when no secret is set, which is the CLI's local mode.
func newCSRFMiddleware(basePath string, cfg CSRFConfig) func(http.Handler) http.Handler {
	tokenPath := path.Join(basePath, "csrf")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if cfg.Secret == "" {
				next.ServeHTTP(w, req)
				return
			}
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if req.URL.Path == tokenPath && req.Method == http.MethodGet {
				token, err := cfg.issueToken(time.Now())
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal_error", "csrf token issue failed", nil))
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: false,
					SameSite: http.SameSiteStrictMode,
					MaxAge:   int(cfg.ttl().Seconds()),
				})
				next.ServeHTTP(w, req)
				return
			}
			if safeMethod(req.Method) {
				next.ServeHTTP(w, req)
				return
			}
			cookie, err := req.Cookie(csrfCookieName)
			if err != nil || cookie.Value == "" {
				respondStatusError(w, newAPIError(http.StatusForbidden, "csrf_required", "csrf cookie missing", nil))
				return
			}
			header := strings.TrimSpace(req.Header.Get("X-Csrf-Token"))
			if header == "" || header != cookie.Value {
				respondStatusError(w, newAPIError(http.StatusForbidden, "csrf_mismatch", "csrf token mismatch", nil))
				return
			}
			if err := cfg.verifyToken(header); err != nil {
				respondStatusError(w, newAPIError(http.StatusForbidden, "csrf_invalid", "csrf token invalid", nil))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if ae, ok := err.(*apiError); ok {
		writeJSON(w, map[string]any{"error": ae.Body})
		return
	}
	writeJSON(w, map[string]any{"error": map[string]string{"message": err.Error()}})
}
