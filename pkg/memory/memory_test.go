package memory_test

import (
	"errors"
	"irvm/pkg/memory"
	"math"
	"testing"
)

func TestAllocateIsLinear(t *testing.T) {
	a := memory.NewArena[int](memory.Stack)

	first, err := a.Allocate(8)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	second, err := a.Allocate(4)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if first.Offset != 0 || second.Offset != 8 {
		t.Errorf("expected offsets 0 and 8, got %d and %d", first.Offset, second.Offset)
	}
	if a.InUse() != 12 {
		t.Errorf("expected 12 bytes in use, got %d", a.InUse())
	}
}

func TestZeroSizeAllocationsAreDistinct(t *testing.T) {
	a := memory.NewArena[int](memory.Global)

	x, _ := a.Allocate(0)
	y, _ := a.Allocate(0)
	if x == y {
		t.Errorf("zero-size allocations share address %v", x)
	}
}

func TestReadWrite(t *testing.T) {
	a := memory.NewArena[string](memory.Global)
	addr, _ := a.Allocate(8)

	got, err := a.Read(addr)
	if err != nil || got != "" {
		t.Errorf("unwritten read: got %q, %v", got, err)
	}

	if err := a.Write(addr, "hello"); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err = a.Read(addr)
	if err != nil || got != "hello" {
		t.Errorf("expected hello, got %q, %v", got, err)
	}
}

func TestDeallocateReleasesMostRecent(t *testing.T) {
	a := memory.NewArena[int](memory.Stack)
	keep, _ := a.Allocate(4)
	gone, _ := a.Allocate(4)
	_ = a.Write(gone, 7)

	if err := a.Deallocate(4); err != nil {
		t.Fatalf("deallocate: %v", err)
	}

	if !a.Contains(keep) {
		t.Errorf("older allocation %v was released", keep)
	}
	if _, err := a.Read(gone); !errors.Is(err, memory.ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}

	// the same bytes come back zeroed
	again, _ := a.Allocate(4)
	if again != gone {
		t.Errorf("expected reuse of %v, got %v", gone, again)
	}
	if v, _ := a.Read(again); v != 0 {
		t.Errorf("expected zeroed cell, got %d", v)
	}
}

func TestDeallocateUnderflow(t *testing.T) {
	a := memory.NewArena[int](memory.Stack)
	_, _ = a.Allocate(2)

	if err := a.Deallocate(3); !errors.Is(err, memory.ErrUnderflow) {
		t.Errorf("expected ErrUnderflow, got %v", err)
	}
}

func TestForeignAndNullAddresses(t *testing.T) {
	stack := memory.NewArena[int](memory.Stack)
	global := memory.NewArena[int](memory.Global)

	s, _ := stack.Allocate(4)
	g, _ := global.Allocate(4)

	if s == g {
		t.Errorf("addresses from different spaces compare equal: %v", s)
	}

	tests := []struct {
		addr memory.Address
		desc string
	}{
		{s, "stack address in global arena"},
		{memory.Address{}, "null address"},
	}
	for _, test := range tests {
		if err := global.Write(test.addr, 1); !errors.Is(err, memory.ErrForeignAddress) {
			t.Errorf("%s: expected ErrForeignAddress, got %v", test.desc, err)
		}
	}
}

func TestLimit(t *testing.T) {
	a := memory.NewArena(memory.Stack, memory.WithLimit[int](16))

	if _, err := a.Allocate(16); err != nil {
		t.Fatalf("allocate within limit: %v", err)
	}
	if _, err := a.Allocate(1); !errors.Is(err, memory.ErrOutOfMemory) {
		t.Errorf("expected ErrOutOfMemory, got %v", err)
	}
}

func TestClear(t *testing.T) {
	a := memory.NewArena[int](memory.Global)
	addr, _ := a.Allocate(8)
	_ = a.Write(addr, 3)

	a.Clear()

	if a.InUse() != 0 {
		t.Errorf("expected empty arena, got %d bytes", a.InUse())
	}
	if _, err := a.Read(addr); !errors.Is(err, memory.ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress after clear, got %v", err)
	}
}

func TestLargeAllocationsAreSparse(t *testing.T) {
	a := memory.NewArena[int](memory.Global)

	addr, err := a.Allocate(1 << 62)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	last := addr.Add(1<<62 - 1)
	if err := a.Write(last, 7); err != nil {
		t.Fatalf("write last byte: %v", err)
	}
	if v, err := a.Read(last); err != nil || v != 7 {
		t.Errorf("read last byte: %v, %v", v, err)
	}
	if a.InUse() != 1<<62 || a.Written() != 1 {
		t.Errorf("expected 1<<62 bytes in use with one written, got %d and %d", a.InUse(), a.Written())
	}

	if err := a.Deallocate(1 << 62); err != nil {
		t.Fatalf("deallocate: %v", err)
	}
	if a.InUse() != 0 || a.Written() != 0 {
		t.Errorf("expected empty arena, got %d bytes and %d written", a.InUse(), a.Written())
	}
}

func TestAllocationOverflow(t *testing.T) {
	a := memory.NewArena[int](memory.Stack)

	if _, err := a.Allocate(16); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, err := a.Allocate(math.MaxUint64 - 8); !errors.Is(err, memory.ErrOutOfMemory) {
		t.Errorf("expected ErrOutOfMemory on wrap-around, got %v", err)
	}
	if a.InUse() != 16 {
		t.Errorf("failed allocation changed the arena: %d bytes", a.InUse())
	}
}
