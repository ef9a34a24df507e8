package cancel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingCancelable struct {
	calls atomic.Int32
}

func (c *countingCancelable) Cancel() {
	c.calls.Add(1)
}

func TestFunc_CancelIsIdempotent(t *testing.T) {
	var calls int
	f := NewFunc(func() { calls++ })

	assert.False(t, f.IsCanceled())
	f.Cancel()
	f.Cancel()

	assert.True(t, f.IsCanceled())
	assert.Equal(t, 1, calls)
}

func TestFunc_NilClosure(t *testing.T) {
	f := NewFunc(nil)
	assert.NotPanics(t, f.Cancel)
	assert.True(t, f.IsCanceled())
}

func TestFunc_ConcurrentCancel(t *testing.T) {
	var calls atomic.Int32
	f := NewFunc(func() { calls.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Cancel()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestSerial_CancelForwardsToInner(t *testing.T) {
	s := NewSerial()
	inner := &countingCancelable{}
	s.Set(inner)

	s.Cancel()
	s.Cancel()

	assert.True(t, s.IsCanceled())
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestSerial_CanceledBeforeSet(t *testing.T) {
	s := NewSerial()
	s.Cancel()

	inner := &countingCancelable{}
	s.Set(inner)

	assert.Equal(t, int32(1), inner.calls.Load())
	assert.True(t, s.IsCanceled())
}

func TestSerial_SetCancelsPrevious(t *testing.T) {
	s := NewSerial()
	first := &countingCancelable{}
	second := &countingCancelable{}

	s.Set(first)
	assert.Equal(t, int32(0), first.calls.Load())

	s.Set(second)
	assert.Equal(t, int32(1), first.calls.Load())
	assert.Equal(t, int32(0), second.calls.Load())
	assert.Same(t, second, s.Inner())

	s.Cancel()
	assert.Equal(t, int32(1), first.calls.Load())
	assert.Equal(t, int32(1), second.calls.Load())
}

func TestSerial_SetNil(t *testing.T) {
	s := NewSerial()
	first := &countingCancelable{}
	s.Set(first)
	s.Set(nil)

	assert.Equal(t, int32(1), first.calls.Load())
	assert.NotPanics(t, s.Cancel)
}

func TestSerial_ZeroValue(t *testing.T) {
	var s Serial
	assert.NotPanics(t, s.Cancel)
	assert.True(t, s.IsCanceled())
}

func TestSerial_EveryInnerEventuallyCanceled(t *testing.T) {
	s := NewSerial()
	inners := make([]*countingCancelable, 20)
	for i := range inners {
		inners[i] = &countingCancelable{}
	}

	var wg sync.WaitGroup
	for _, c := range inners {
		wg.Add(1)
		go func(c *countingCancelable) {
			defer wg.Done()
			s.Set(c)
		}(c)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Cancel()
	}()
	wg.Wait()
	s.Cancel()

	for i, c := range inners {
		assert.GreaterOrEqual(t, c.calls.Load(), int32(1), "inner %d was never canceled", i)
	}
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, Nop.Cancel)
}
