package device

// Guard pins a slot's device resolution to a fixed target for the duration
// of a unit of work. The prior resolver is reinstalled on every exit path,
// so the slot holds the exact same resolver after the guarded region as
// before it.
//
// The guard is not reentrant: nesting two guards over the same slot is safe
// only because each restores what it displaced, but interleaving guarded
// regions across goroutines can expose the override to concurrent readers.
// That race is inherited from the slot being shared state; the guard does
// not attempt to fence it.
type Guard struct {
	slot   *Slot
	target ID
}

// NewGuard binds slot and target. The guard installs nothing until Run.
func NewGuard(slot *Slot, target ID) *Guard {
	return &Guard{slot: slot, target: target}
}

// Target returns the device the guard pins to.
func (g *Guard) Target() ID {
	return g.target
}

// Run executes work with the slot pinned to the target device. Whatever
// error work returns propagates unchanged, after the prior resolver has
// been put back.
func (g *Guard) Run(work func() error) error {
	prior := g.slot.Swap(Fixed(g.target))
	defer g.slot.Swap(prior)
	return work()
}

// Pinned runs work with slot pinned to target and passes through its result.
// It is the value-returning form of Guard.Run.
func Pinned[T any](slot *Slot, target ID, work func() (T, error)) (T, error) {
	var result T
	err := NewGuard(slot, target).Run(func() error {
		var werr error
		result, werr = work()
		return werr
	})
	return result, err
}
