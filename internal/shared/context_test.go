package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorFromContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "?", ActorFromContext(ctx))

	assert.Equal(t, "8", ActorFromContext(ContextWithActor(ctx, "8")))

	sess := &Session{ID: "s1", values: map[string]string{}}
	sess.SetUser("42")
	withSession := ContextWithSession(ContextWithActor(ctx, "8"), sess)
	assert.Equal(t, "42", ActorFromContext(withSession), "session identity wins over a recorded actor")

	anonymous := &Session{ID: "s2", values: map[string]string{}}
	withAnonymous := ContextWithSession(ContextWithActor(ctx, "8"), anonymous)
	assert.Equal(t, "8", ActorFromContext(withAnonymous))
}
