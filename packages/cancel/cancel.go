package cancel

import (
	"sync"
	"sync/atomic"
)

// Cancelable is a handle to an operation that can be told to stop.
// Cancel must be safe to call more than once and from any goroutine.
type Cancelable interface {
	Cancel()
}

// Func is a Cancelable backed by a closure. The closure runs at most once.
type Func struct {
	once sync.Once
	fn   func()
	done atomic.Bool
}

// NewFunc returns a Cancelable that calls fn on the first Cancel.
func NewFunc(fn func()) *Func {
	return &Func{fn: fn}
}

func (f *Func) Cancel() {
	f.once.Do(func() {
		f.done.Store(true)
		if f.fn != nil {
			f.fn()
		}
	})
}

// IsCanceled reports whether Cancel has been called.
func (f *Func) IsCanceled() bool {
	return f.done.Load()
}

// Nop is a Cancelable that does nothing.
var Nop Cancelable = nopCancelable{}

type nopCancelable struct{}

func (nopCancelable) Cancel() {}
