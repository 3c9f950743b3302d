package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActor(t *testing.T) {
	t.Run("anonymous context has no actor", func(t *testing.T) {
		_, ok := ActorFrom(context.Background())
		assert.False(t, ok)
	})

	t.Run("empty actor id counts as anonymous", func(t *testing.T) {
		ctx := WithActor(context.Background(), Actor{Name: "ghost"})
		_, ok := ActorFrom(ctx)
		assert.False(t, ok)
	})

	t.Run("actor round trips", func(t *testing.T) {
		ctx := WithActor(context.Background(), Actor{ID: "U2", Name: "Asha", Admin: true})
		actor, ok := ActorFrom(ctx)
		assert.True(t, ok)
		assert.Equal(t, "U2", actor.ID)
		assert.True(t, actor.Admin)
	})
}

func TestNow(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
	assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Second)
}
