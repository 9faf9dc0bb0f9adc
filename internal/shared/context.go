package shared

import "context"

type sessionContextKey struct{}

type actorContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithActor records the acting user directly, for callers with
// no session, such as queue workers running a batch on a user's behalf.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the acting user ID for audit stamping. The
// session identity wins over a directly recorded actor; anonymous
// callers yield the "?" sentinel.
func ActorFromContext(ctx context.Context) string {
	if sess := SessionFromContext(ctx); sess != nil && sess.User() != "" {
		return sess.User()
	}
	if actor, _ := ctx.Value(actorContextKey{}).(string); actor != "" {
		return actor
	}
	return "?"
}
