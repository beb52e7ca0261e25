package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"reftracker.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/api/health",
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
}

// authenticate resolves the actor from a bearer token or, when trusted, the
// X-User header. Requests without credentials continue anonymously; routes
// that need an actor reject them with requireActor.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		if header := r.Header.Get(authHeader); header != "" && a.tokens != nil {
			token, err := extractBearerToken(header)
			if err != nil {
				respondUnauthorized(w, r, "invalid_token")
				return
			}
			actor, err := a.tokens.Parse(token)
			if err != nil {
				respondUnauthorized(w, r, "invalid_token")
				return
			}
			ctx = auth.ContextWithActor(ctx, actor)
		} else if raw := r.Header.Get(auth.UserHeader); raw != "" && a.trustHeader {
			actor, err := auth.ParseUserHeader(raw)
			if err != nil {
				a.logger.DebugContext(ctx, "ignoring malformed user header", slog.String("request_id", RequestIDFromContext(ctx)))
			} else {
				ctx = auth.ContextWithActor(ctx, actor)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireActor rejects requests without an authenticated actor.
func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ActorFromContext(r.Context()); !ok {
			respondUnauthorized(w, r, "auth_required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ScopeResolver derives the org scope a permission is checked against.
type ScopeResolver func(r *http.Request, actor *auth.Actor) auth.Scope

func actorOrgScope(_ *http.Request, actor *auth.Actor) auth.Scope {
	return auth.Scope{OrgID: actor.OrgID}
}

// RequirePermission allows the request only when the actor holds perm within
// the resolved scope. A nil resolver checks unscoped.
func RequirePermission(perm string, resolve ScopeResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := auth.ActorFromContext(r.Context())
			if !ok {
				respondUnauthorized(w, r, "auth_required")
				return
			}
			var scope auth.Scope
			if resolve != nil {
				scope = resolve(r, actor)
			}
			if !authorize(w, actor, perm, scope) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authorize writes a 403 and returns false when actor lacks perm.
func authorize(w http.ResponseWriter, actor *auth.Actor, perm string, scope auth.Scope) bool {
	if auth.Can(actor, perm, scope) {
		return true
	}
	writeJSON(w, http.StatusForbidden, map[string]any{
		"error":      "forbidden",
		"permission": perm,
	})
	return false
}

func respondUnauthorized(w http.ResponseWriter, r *http.Request, code string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="reftracker"`)
	writeError(w, r, http.StatusUnauthorized, code)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
