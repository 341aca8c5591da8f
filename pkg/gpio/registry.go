package gpio

import (
	"fmt"
	"sync"
)

// Registry enforces exclusive pin ownership. Each pin id can be claimed at
// most once for the life of the process; a second claim is an error rather
// than a silently shared line.
type Registry struct {
	mu     sync.Mutex
	chip   Chip
	owners map[PinID]string
}

// NewRegistry returns a registry handing out pins from the given chip.
func NewRegistry(chip Chip) *Registry {
	return &Registry{
		chip:   chip,
		owners: make(map[PinID]string),
	}
}

// Claim opens pin id for the named owner. It fails if the pin is already
// claimed. The NoPinID id is never tracked: any number of components may
// hold a no-op pin.
func (r *Registry) Claim(id PinID, owner string) (DigitalPin, error) {
	if id == NoPinID {
		return NopPin{}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owners[id]; ok {
		return nil, fmt.Errorf("gpio: pin %d already claimed by %q (requested by %q)", id, prev, owner)
	}

	pin, err := r.chip.Open(id)
	if err != nil {
		return nil, fmt.Errorf("gpio: open pin %d for %q: %w", id, owner, err)
	}
	r.owners[id] = owner
	return pin, nil
}

// Owner reports which component claimed the pin, if any.
func (r *Registry) Owner(id PinID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[id]
	return owner, ok
}
