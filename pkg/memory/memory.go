package memory

import (
	"errors"
	"fmt"
)

// Space identifies one of the two disjoint address spaces.
type Space int

const (
	None Space = iota // null pointer space, never allocated from
	Stack
	Global
)

// String returns the name of the space.
func (s Space) String() string {
	switch s {
	case Stack:
		return "stack"
	case Global:
		return "global"
	default:
		return "none"
	}
}

// Address is an opaque handle into exactly one address space.
// The zero Address is the null pointer.
type Address struct {
	Space  Space
	Offset uint64
}

// IsNull reports whether a is the null pointer.
func (a Address) IsNull() bool {
	return a.Space == None
}

// Add returns a moved by delta bytes inside the same space.
func (a Address) Add(delta int64) Address {
	return Address{Space: a.Space, Offset: uint64(int64(a.Offset) + delta)}
}

// String renders the address as space:offset.
func (a Address) String() string {
	if a.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%s:%#x", a.Space, a.Offset)
}

var (
	ErrForeignAddress = errors.New("address belongs to another address space")
	ErrInvalidAddress = errors.New("address was never allocated or has been released")
	ErrUnderflow      = errors.New("deallocation exceeds bytes in use")
	ErrOutOfMemory    = errors.New("address space exhausted")
)

// Arena is a bump allocator over a byte-addressed space. Values of type V
// are stored at the first byte of the region they were written to; only
// written bytes take host memory.
// Nothing is freed individually: Deallocate releases the most recently
// allocated bytes, so callers must release in reverse order of allocation.
type Arena[V any] struct {
	space Space
	mark  uint64       // bytes handed out, the next free offset
	cells map[uint64]V // written bytes below mark
	limit uint64       // 0 means unbounded
}

type ArenaOption[V any] func(*Arena[V])

// WithLimit caps the number of bytes the arena may hand out.
func WithLimit[V any](n uint64) ArenaOption[V] {
	return func(a *Arena[V]) { a.limit = n }
}

// NewArena creates an empty arena for the given space.
func NewArena[V any](space Space, opts ...ArenaOption[V]) *Arena[V] {
	a := &Arena[V]{
		space: space,
		cells: make(map[uint64]V),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Space returns the address space served by the arena.
func (a *Arena[V]) Space() Space {
	return a.space
}

// InUse returns the number of bytes currently allocated.
func (a *Arena[V]) InUse() uint64 {
	return a.mark
}

// Allocate carves size bytes and returns the address of the first one.
// A zero size still claims one byte so the address is unique.
func (a *Arena[V]) Allocate(size uint64) (Address, error) {
	if size == 0 {
		size = 1
	}

	end := a.mark + size
	if end < a.mark || (a.limit > 0 && end > a.limit) {
		return Address{}, fmt.Errorf("%s: allocating %d bytes with %d in use: %w", a.space, size, a.mark, ErrOutOfMemory)
	}

	addr := Address{Space: a.space, Offset: a.mark}
	a.mark = end
	return addr, nil
}

// Deallocate releases the most recently allocated total bytes.
func (a *Arena[V]) Deallocate(total uint64) error {
	if total > a.mark {
		return fmt.Errorf("%s: releasing %d bytes with %d in use: %w", a.space, total, a.mark, ErrUnderflow)
	}

	// drop stale values so a later allocation starts out zeroed
	mark := a.mark - total
	if total <= uint64(len(a.cells)) {
		for off := mark; off < a.mark; off++ {
			delete(a.cells, off)
		}
	} else {
		for off := range a.cells {
			if off >= mark {
				delete(a.cells, off)
			}
		}
	}
	a.mark = mark
	return nil
}

// Clear resets the arena, invalidating every address it ever issued.
func (a *Arena[V]) Clear() {
	clear(a.cells)
	a.mark = 0
}

// Written returns the number of bytes holding a stored value.
func (a *Arena[V]) Written() int {
	return len(a.cells)
}

// Write stores v at addr.
func (a *Arena[V]) Write(addr Address, v V) error {
	if err := a.check(addr); err != nil {
		return err
	}
	a.cells[addr.Offset] = v
	return nil
}

// Read returns the value stored at addr. Memory that was allocated but
// never written reads as the zero V.
func (a *Arena[V]) Read(addr Address) (V, error) {
	if err := a.check(addr); err != nil {
		var zero V
		return zero, err
	}
	return a.cells[addr.Offset], nil
}

// Contains reports whether addr points into live memory of this arena.
func (a *Arena[V]) Contains(addr Address) bool {
	return a.check(addr) == nil
}

func (a *Arena[V]) check(addr Address) error {
	if addr.Space != a.space {
		return fmt.Errorf("%s arena given %v: %w", a.space, addr, ErrForeignAddress)
	}
	if addr.Offset >= a.mark {
		return fmt.Errorf("%v: %w", addr, ErrInvalidAddress)
	}
	return nil
}
