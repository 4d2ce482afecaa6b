package interpreter

import (
	"fmt"
	"math"
	"math/bits"

	"irvm/pkg/ir"
	"irvm/pkg/memory"
	"irvm/pkg/value"
)

// coreEvaluator is the built-in instruction set.
type coreEvaluator struct{}

// DefaultEvaluator returns the evaluator installed when WithEvaluator is not
// given. Wrap it to observe or extend execution.
func DefaultEvaluator() Evaluator {
	return coreEvaluator{}
}

func (coreEvaluator) Operand(it *Interpreter, fr *Frame, op ir.Operand) (value.Value, error) {
	if op.Const != nil {
		return coreEvaluator{}.Constant(it, op.Const)
	}

	v, ok := fr.Lookup(op.Local)
	if !ok {
		return value.Value{}, fmt.Errorf("%%%s: %w", op.Local, ErrUnboundValue)
	}
	return v, nil
}

func (coreEvaluator) Constant(it *Interpreter, c *ir.Constant) (value.Value, error) {
	switch c.Kind {
	case ir.ConstInt:
		return value.Int(c.Type.Bits, c.Int), nil
	case ir.ConstFloat:
		return value.Float(c.Float), nil
	case ir.ConstNull:
		return value.Pointer(memory.Address{}), nil
	case ir.ConstGlobal:
		addr, ok := it.GlobalAddress(c.Global)
		if !ok {
			return value.Value{}, fmt.Errorf("@%s: %w", c.Global, ErrUnknownGlobal)
		}
		return value.Pointer(addr), nil
	default:
		return value.Undef(), nil
	}
}

func (e coreEvaluator) Execute(it *Interpreter, fr *Frame, in *ir.Instruction) error {
	var (
		res value.Value
		err error
	)

	switch in.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpUDiv, ir.OpSRem, ir.OpURem,
		ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpShl, ir.OpLShr, ir.OpAShr:
		res, err = e.binary(it, fr, in)

	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv:
		res, err = e.floatBinary(it, fr, in)

	case ir.OpICmp:
		res, err = e.compare(it, fr, in)

	case ir.OpSelect:
		res, err = e.selectValue(it, fr, in)

	case ir.OpZExt, ir.OpSExt, ir.OpTrunc, ir.OpBitcast:
		res, err = e.convert(it, fr, in)

	case ir.OpAlloca:
		res, err = e.alloca(it, fr, in)

	case ir.OpLoad:
		res, err = e.load(it, fr, in)

	case ir.OpStore:
		err = e.store(it, fr, in)

	case ir.OpGEP:
		res, err = e.gep(it, fr, in)

	case ir.OpCall:
		res, err = e.call(it, fr, in)

	case ir.OpVAArg:
		res, err = e.vaArg(it, fr, in)

	case ir.OpVACount:
		res = value.Int(32, int64(len(fr.Varargs())))

	default:
		return fmt.Errorf("%q: %w", in.Op, ErrUnknownOperation)
	}

	if err != nil {
		return err
	}

	if in.Result != "" {
		fr.Bind(in.Result, res)
	}
	return nil
}

// operands evaluates the first n operands of in.
func (e coreEvaluator) operands(it *Interpreter, fr *Frame, in *ir.Instruction, n int) ([]value.Value, error) {
	if len(in.Args) < n {
		return nil, fmt.Errorf("%s needs %d operands, has %d", in.Op, n, len(in.Args))
	}

	out := make([]value.Value, n)
	for k := range n {
		v, err := e.Operand(it, fr, in.Args[k])
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (e coreEvaluator) selectValue(it *Interpreter, fr *Frame, in *ir.Instruction) (value.Value, error) {
	ops, err := e.operands(it, fr, in, 3)
	if err != nil {
		return value.Value{}, err
	}
	truth, err := ops[0].Truth()
	if err != nil {
		return value.Value{}, err
	}
	if truth {
		return ops[1], nil
	}
	return ops[2], nil
}

func (e coreEvaluator) alloca(it *Interpreter, fr *Frame, in *ir.Instruction) (value.Value, error) {
	if in.Type.IsVector() {
		return value.Value{}, fmt.Errorf("alloca of %s: %w", in.Type, ErrUnsupportedType)
	}

	count := int64(1)
	if len(in.Args) > 0 {
		ops, err := e.operands(it, fr, in, 1)
		if err != nil {
			return value.Value{}, err
		}
		if count, err = ops[0].AsInt64(); err != nil {
			return value.Value{}, err
		}
		if count < 0 {
			return value.Value{}, fmt.Errorf("alloca with negative count %d", count)
		}
	}

	hi, size := bits.Mul64(in.Type.AllocSize(), uint64(count))
	if hi != 0 {
		return value.Value{}, fmt.Errorf("alloca of %d x %s: %w", count, in.Type, memory.ErrOutOfMemory)
	}

	addr, err := it.AllocateStack(fr, size)
	if err != nil {
		return value.Value{}, err
	}
	return value.Pointer(addr), nil
}

func (e coreEvaluator) load(it *Interpreter, fr *Frame, in *ir.Instruction) (value.Value, error) {
	ops, err := e.operands(it, fr, in, 1)
	if err != nil {
		return value.Value{}, err
	}
	addr, err := ops[0].AsAddress()
	if err != nil {
		return value.Value{}, err
	}
	return it.LoadAt(addr)
}

// store takes the value first and the pointer second.
func (e coreEvaluator) store(it *Interpreter, fr *Frame, in *ir.Instruction) error {
	ops, err := e.operands(it, fr, in, 2)
	if err != nil {
		return err
	}
	addr, err := ops[1].AsAddress()
	if err != nil {
		return err
	}
	return it.StoreAt(addr, ops[0])
}

// gep offsets a pointer: the first index strides over in.Type, every later
// index steps into an array element.
func (e coreEvaluator) gep(it *Interpreter, fr *Frame, in *ir.Instruction) (value.Value, error) {
	ops, err := e.operands(it, fr, in, len(in.Args))
	if err != nil {
		return value.Value{}, err
	}
	if len(ops) < 2 {
		return value.Value{}, fmt.Errorf("gep needs a base and an index")
	}

	base, err := ops[0].AsAddress()
	if err != nil {
		return value.Value{}, err
	}

	t := in.Type
	var offset int64
	for k, idx := range ops[1:] {
		n, err := idx.AsInt64()
		if err != nil {
			return value.Value{}, err
		}
		if k > 0 {
			if t.Kind != ir.ArrayType {
				return value.Value{}, fmt.Errorf("gep index %d steps into %s: %w", k, t, ErrUnsupportedType)
			}
			t = t.Elem
		}
		step, ok := mulOffset(n, t.AllocSize())
		if !ok {
			return value.Value{}, fmt.Errorf("gep index %d: %w", k, ErrOffsetOverflow)
		}
		if offset, ok = addOffset(offset, step); !ok {
			return value.Value{}, fmt.Errorf("gep index %d: %w", k, ErrOffsetOverflow)
		}
	}

	return value.Pointer(base.Add(offset)), nil
}

func (e coreEvaluator) call(it *Interpreter, fr *Frame, in *ir.Instruction) (value.Value, error) {
	if len(in.Args) == 0 {
		return value.Value{}, fmt.Errorf("call without callee")
	}

	fn, err := e.callee(it, fr, in.Args[0])
	if err != nil {
		return value.Value{}, err
	}

	args := make([]value.Value, 0, len(in.Args)-1)
	for _, op := range in.Args[1:] {
		v, err := e.Operand(it, fr, op)
		if err != nil {
			return value.Value{}, err
		}
		args = append(args, v)
	}

	return it.Invoke(fn, args)
}

// callee resolves a direct reference or a function address computed at run
// time.
func (e coreEvaluator) callee(it *Interpreter, fr *Frame, op ir.Operand) (*ir.Function, error) {
	if op.Const != nil && op.Const.Kind == ir.ConstGlobal {
		if fn, ok := it.Program().Function(op.Const.Global); ok {
			return fn, nil
		}
	}

	v, err := e.Operand(it, fr, op)
	if err != nil {
		return nil, err
	}
	addr, err := v.AsAddress()
	if err != nil {
		return nil, fmt.Errorf("callee %s: %w", op, ErrNotCallable)
	}
	fn, ok := it.FunctionAt(addr)
	if !ok {
		return nil, fmt.Errorf("callee %s at %v: %w", op, addr, ErrNotCallable)
	}
	return fn, nil
}

// vaArg returns the variadic argument at a constant index.
func (e coreEvaluator) vaArg(it *Interpreter, fr *Frame, in *ir.Instruction) (value.Value, error) {
	ops, err := e.operands(it, fr, in, 1)
	if err != nil {
		return value.Value{}, err
	}
	n, err := ops[0].AsInt64()
	if err != nil {
		return value.Value{}, err
	}

	varargs := fr.Varargs()
	if n < 0 || n >= int64(len(varargs)) {
		return value.Value{}, fmt.Errorf("va_arg %d with %d variadic arguments", n, len(varargs))
	}
	return varargs[n], nil
}

// mulOffset returns n*size as a signed byte offset, or false on overflow.
func mulOffset(n int64, size uint64) (int64, bool) {
	mag := uint64(n)
	if n < 0 {
		mag = -mag
	}
	hi, lo := bits.Mul64(mag, size)
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	if n < 0 {
		return -int64(lo), true
	}
	return int64(lo), true
}

// addOffset returns a+b, or false on overflow.
func addOffset(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}
