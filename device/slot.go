package device

import "sync"

// Slot is a process-wide mutable device-resolution point. The host's
// model-loading code resolves through the slot; installing a different
// Resolver changes where subsequent loads land.
//
// Swap and Current are safe to call from multiple goroutines, but the slot
// carries no notion of override ownership: if two callers override the same
// slot concurrently, the second restore wins. The wrapper nodes assume the
// host runs one node at a time; see Guard.
type Slot struct {
	mu      sync.Mutex
	current Resolver
}

// NewSlot creates a slot with the given initial resolver. A nil initial
// resolver falls back to the CPU.
func NewSlot(initial Resolver) *Slot {
	if initial == nil {
		initial = Fixed(CPU)
	}
	return &Slot{current: initial}
}

// Resolve answers with the currently installed resolver. Slot itself
// satisfies Resolver so model-loading code can hold the slot and stay
// oblivious to overrides.
func (s *Slot) Resolve() ID {
	return s.Current().Resolve()
}

// Current returns the currently installed resolver.
func (s *Slot) Current() Resolver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Swap installs r and returns the resolver it displaced. A nil r falls back
// to the CPU resolver.
func (s *Slot) Swap(r Resolver) Resolver {
	if r == nil {
		r = Fixed(CPU)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prior := s.current
	s.current = r
	return prior
}
