package cancel

import "sync"

// Serial is a composite Cancelable holding one replaceable inner Cancelable.
//
// Assigning a new inner cancels the previous one. Once the Serial itself has
// been canceled the flag never clears, and any inner assigned afterwards is
// canceled as soon as it is set. The zero value is ready to use.
type Serial struct {
	mu       sync.Mutex
	canceled bool
	inner    Cancelable
}

// NewSerial returns an empty Serial.
func NewSerial() *Serial {
	return &Serial{}
}

// Set replaces the inner Cancelable. The previous inner is canceled before
// the swap becomes visible; if the Serial was already canceled, inner is
// canceled immediately.
func (s *Serial) Set(inner Cancelable) {
	s.mu.Lock()
	old := s.inner
	s.inner = inner
	canceled := s.canceled
	s.mu.Unlock()

	// Callbacks run outside the lock so an inner may call back into s.
	if old != nil {
		old.Cancel()
	}
	if canceled && inner != nil {
		inner.Cancel()
	}
}

// Inner returns the current inner Cancelable, or nil.
func (s *Serial) Inner() Cancelable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner
}

func (s *Serial) Cancel() {
	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		return
	}
	s.canceled = true
	inner := s.inner
	s.mu.Unlock()

	if inner != nil {
		inner.Cancel()
	}
}

// IsCanceled reports whether Cancel has been called.
func (s *Serial) IsCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}
