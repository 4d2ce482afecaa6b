package interpreter

import (
	"irvm/pkg/ir"
	"irvm/pkg/memory"
	"irvm/pkg/value"
)

// Image is the program-lifetime state: global memory plus the tables that
// give every global variable and every function an address.
type Image struct {
	mem    *memory.Arena[value.Value]
	addrOf map[string]memory.Address       // global or function name -> address
	funcAt map[memory.Address]*ir.Function // synthesized address -> function
}

func newImage() *Image {
	return &Image{
		mem:    memory.NewArena[value.Value](memory.Global),
		addrOf: make(map[string]memory.Address),
		funcAt: make(map[memory.Address]*ir.Function),
	}
}

// reset discards all global state.
func (img *Image) reset() {
	img.mem.Clear()
	clear(img.addrOf)
	clear(img.funcAt)
}

func (img *Image) allocateGlobal(g *ir.Global) (memory.Address, error) {
	addr, err := img.mem.Allocate(g.Type.AllocSize())
	if err != nil {
		return memory.Address{}, err
	}
	img.addrOf[g.Name] = addr
	return addr, nil
}

// allocateFunction gives fn a pointer-sized cell whose only purpose is to
// have an address that names fn.
func (img *Image) allocateFunction(fn *ir.Function) (memory.Address, error) {
	addr, err := img.mem.Allocate(ir.PointerSize)
	if err != nil {
		return memory.Address{}, err
	}
	img.addrOf[fn.Name] = addr
	img.funcAt[addr] = fn
	return addr, nil
}

// Address returns the address of a global variable or function.
func (img *Image) Address(name string) (memory.Address, bool) {
	addr, ok := img.addrOf[name]
	return addr, ok
}

// Function resolves a function address back to the function.
func (img *Image) Function(addr memory.Address) (*ir.Function, bool) {
	fn, ok := img.funcAt[addr]
	return fn, ok
}

// InUse returns the number of bytes of global memory allocated.
func (img *Image) InUse() uint64 {
	return img.mem.InUse()
}
