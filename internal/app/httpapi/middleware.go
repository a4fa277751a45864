package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/refit-labs/staking-engine/internal/app/auth"
	svcerrors "github.com/refit-labs/staking-engine/internal/errors"
	"github.com/refit-labs/staking-engine/internal/middleware"
)

type ctxKey string

const ctxPrincipalKey ctxKey = "principal"

// principal is a mutable carrier: the audit wrapper injects it before auth
// runs, and the auth wrapper fills it in once the request is authorized.
type principal struct {
	actor string
	role  string
}

func withPrincipal(ctx context.Context, actor, role string) context.Context {
	if p, ok := ctx.Value(ctxPrincipalKey).(*principal); ok {
		p.actor = actor
		p.role = role
		return ctx
	}
	return context.WithValue(ctx, ctxPrincipalKey, &principal{actor: actor, role: role})
}

func principalFrom(ctx context.Context) (actor, role string) {
	if p, ok := ctx.Value(ctxPrincipalKey).(*principal); ok {
		return p.actor, p.role
	}
	return "", ""
}

// WrapWithAuth guards the admin and cron path groups. Admin requests need a
// configured bearer token or an admin JWT; cron requests need the shared cron
// secret. Everything else passes through.
func WrapWithAuth(next http.Handler, adminTokens []string, cronSecret string, authMgr *auth.Manager) http.Handler {
	tokens := make(map[string]struct{}, len(adminTokens))
	for _, tok := range adminTokens {
		if trimmed := strings.TrimSpace(tok); trimmed != "" {
			tokens[trimmed] = struct{}{}
		}
	}
	cronSecret = strings.TrimSpace(cronSecret)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasPrefix(path, "/admin/"):
			actor, role, err := authorizeAdmin(r, tokens, authMgr)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), actor, role)))

		case strings.HasPrefix(path, "/cron/"):
			token := bearerToken(r)
			if !cronTokenValid(token, cronSecret, tokens) {
				writeServiceError(w, svcerrors.Unauthorized("invalid cron credentials"))
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), "cron", "cron")))

		default:
			next.ServeHTTP(w, r)
		}
	})
}

func authorizeAdmin(r *http.Request, tokens map[string]struct{}, authMgr *auth.Manager) (actor, role string, err error) {
	token := bearerToken(r)
	if token == "" {
		return "", "", svcerrors.Unauthorized("missing bearer token")
	}
	if _, ok := tokens[token]; ok {
		return "service-token", "admin", nil
	}
	if authMgr.Enabled() {
		claims, err := authMgr.Validate(token)
		if err != nil {
			return "", "", svcerrors.Unauthorized("invalid token")
		}
		if !authMgr.IsAdmin(claims) {
			return "", "", svcerrors.Forbidden("admin role required")
		}
		return claims.Username, claims.Role, nil
	}
	return "", "", svcerrors.Unauthorized("invalid token")
}

func cronTokenValid(token, cronSecret string, tokens map[string]struct{}) bool {
	if token == "" {
		return false
	}
	if cronSecret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cronSecret)) == 1 {
		return true
	}
	_, ok := tokens[token]
	return ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// WrapWithAudit records every admin and cron request in the audit buffer.
func WrapWithAudit(next http.Handler, buf *AuditLog) http.Handler {
	if buf == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if !strings.HasPrefix(path, "/admin/") && !strings.HasPrefix(path, "/cron/") {
			next.ServeHTTP(w, r)
			return
		}

		carrier := &principal{}
		r = r.WithContext(context.WithValue(r.Context(), ctxPrincipalKey, carrier))

		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		actor, role := carrier.actor, carrier.role
		buf.add(AuditEntry{
			Time:       time.Now().UTC(),
			Actor:      actor,
			Role:       role,
			Method:     r.Method,
			Path:       path,
			Status:     rec.status,
			RemoteAddr: r.RemoteAddr,
		})
	})
}

// WrapWithCORS applies the shared CORS policy around the mux.
func WrapWithCORS(next http.Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return middleware.NewCORSMiddleware(allowedOrigins).Handler(next)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
