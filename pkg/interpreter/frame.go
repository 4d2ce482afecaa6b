package interpreter

import (
	"irvm/pkg/ir"
	"irvm/pkg/value"
)

// Frame represents a function call frame.
type Frame struct {
	fn       *ir.Function           // function being executed
	block    *ir.Block              // block currently executing
	bindings map[string]value.Value // local values (name -> value)
	varargs  []value.Value          // arguments beyond the fixed parameters
	claimed  uint64                 // stack bytes allocated by this frame
}

func newFrame(fn *ir.Function) *Frame {
	return &Frame{
		fn:       fn,
		bindings: make(map[string]value.Value, len(fn.Params)),
	}
}

// Function returns the function the frame executes.
func (f *Frame) Function() *ir.Function {
	return f.fn
}

// Block returns the block the frame is executing.
func (f *Frame) Block() *ir.Block {
	return f.block
}

// Bind sets the value of a named local, overwriting any previous binding.
func (f *Frame) Bind(name string, v value.Value) {
	f.bindings[name] = v
}

// Lookup returns the value bound to a named local.
func (f *Frame) Lookup(name string) (value.Value, bool) {
	v, ok := f.bindings[name]
	return v, ok
}

// Bindings returns the number of bound locals.
func (f *Frame) Bindings() int {
	return len(f.bindings)
}

// Varargs returns the variadic overflow in call-site order.
func (f *Frame) Varargs() []value.Value {
	return f.varargs
}

// Claimed returns the number of stack bytes the frame has allocated.
func (f *Frame) Claimed() uint64 {
	return f.claimed
}
