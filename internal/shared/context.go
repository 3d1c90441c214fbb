package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context. The session is boundary
// state only: handlers resolve the actor from it and pass the id explicitly
// into services, which never read it back out of the context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
