// Package navigation abstracts "send the user to this path". Browser-less
// contexts use Nop; a CLI can print a hint, a desktop shell can open a URL.
package navigation

import (
	"context"
	"sync"
)

// Navigator moves the active UI context to path.
type Navigator interface {
	Redirect(ctx context.Context, path string)
}

type nop struct{}

func (nop) Redirect(context.Context, string) {}

// Nop returns a Navigator that does nothing.
func Nop() Navigator {
	return nop{}
}

// Func adapts a function to Navigator.
type Func func(ctx context.Context, path string)

func (f Func) Redirect(ctx context.Context, path string) {
	if f != nil {
		f(ctx, path)
	}
}

// Recorder remembers every redirect it receives.
type Recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *Recorder) Redirect(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

// Paths returns a copy of the recorded paths in call order.
func (r *Recorder) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}
