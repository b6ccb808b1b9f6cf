package screens_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/tgscreens/core/screens"
)

type ctxKey struct{}

func TestContextCarriesParentContext(t *testing.T) {
	e, _, _ := newEngine(t)
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "rid-1"))
	c := e.NewContext(parent, screens.Update{ChatID: 1, UserID: 1})

	var ctx context.Context = c
	assert.Equal(t, "rid-1", ctx.Value(ctxKey{}))
	assert.NoError(t, ctx.Err())

	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
