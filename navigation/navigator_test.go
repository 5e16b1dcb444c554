package navigation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Redirect(context.Background(), "/login")
	})
}

func TestFunc(t *testing.T) {
	var got string
	nav := Func(func(_ context.Context, path string) { got = path })

	nav.Redirect(context.Background(), "/login")
	assert.Equal(t, "/login", got)

	var empty Func
	assert.NotPanics(t, func() { empty.Redirect(context.Background(), "/login") })
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	assert.Empty(t, rec.Paths())

	rec.Redirect(context.Background(), "/login")
	rec.Redirect(context.Background(), "/login?next=/items")

	paths := rec.Paths()
	assert.Equal(t, []string{"/login", "/login?next=/items"}, paths)

	paths[0] = "mutated"
	assert.Equal(t, "/login", rec.Paths()[0])
}
