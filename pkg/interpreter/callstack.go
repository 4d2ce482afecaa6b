package interpreter

import (
	"fmt"

	"irvm/pkg/ir"
	"irvm/pkg/memory"
	"irvm/pkg/stack"
	"irvm/pkg/value"
)

// callStack owns the live frames together with the stack address space they
// allocate from. A frame's bytes are released by the same stack that pushed
// it, when it is popped, so releases always happen in reverse order.
type callStack struct {
	frames   *stack.Stack[*Frame]
	mem      *memory.Arena[value.Value]
	maxDepth int // 0 = unlimited
}

func newCallStack(mem *memory.Arena[value.Value], maxDepth int) *callStack {
	return &callStack{
		frames:   stack.NewStack[*Frame](),
		mem:      mem,
		maxDepth: maxDepth,
	}
}

// current returns the current call frame, or nil if none
func (s *callStack) current() *Frame {
	f, _ := s.frames.Peek()
	return f
}

func (s *callStack) depth() int {
	return s.frames.Size()
}

// push creates a frame for fn and makes it current.
func (s *callStack) push(fn *ir.Function) (*Frame, error) {
	if s.maxDepth > 0 && s.frames.Size() >= s.maxDepth {
		return nil, fmt.Errorf("calling @%s at depth %d: %w", fn.Name, s.frames.Size(), ErrStackOverflow)
	}

	f := newFrame(fn)
	s.frames.Push(f)
	return f, nil
}

// pop releases everything the current frame allocated as one batch and
// removes it.
func (s *callStack) pop() error {
	f, ok := s.frames.Peek()
	if !ok {
		return fmt.Errorf("pop on empty call stack: %w", ErrNotCurrentFrame)
	}

	if err := s.mem.Deallocate(f.claimed); err != nil {
		return err
	}
	f.claimed = 0

	s.frames.Pop()
	return nil
}

// allocate carves size bytes of stack memory on behalf of f, which must be
// the current frame.
func (s *callStack) allocate(f *Frame, size uint64) (memory.Address, error) {
	if f == nil || f != s.current() {
		return memory.Address{}, ErrNotCurrentFrame
	}

	addr, err := s.mem.Allocate(size)
	if err != nil {
		return memory.Address{}, err
	}

	// the arena rounds empty allocations up to one byte
	f.claimed += max(size, 1)
	return addr, nil
}

// reset drops every frame and all stack memory.
func (s *callStack) reset() {
	s.frames.Reset()
	s.mem.Clear()
}
