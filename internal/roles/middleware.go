package roles

import (
	"net/http"

	"log/slog"

	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// Middleware wires capability-based authorization for HTTP handlers.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// RequireCapability rejects requests whose session actor lacks every listed
// capability.
func (m Middleware) RequireCapability(capabilities ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(capabilities) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actorID := shared.SessionFromContext(r.Context()).Actor()
			if actorID == 0 {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			for _, capability := range capabilities {
				granted, err := m.Resolver.HasCapability(r.Context(), actorID, capability)
				if err != nil {
					if m.Logger != nil {
						m.Logger.Error("capability check", slog.Any("error", err))
					}
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				if granted {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireActor only checks that a session actor is present.
func (m Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.SessionFromContext(r.Context()).Actor() == 0 {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
