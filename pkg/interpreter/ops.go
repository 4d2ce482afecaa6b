package interpreter

import (
	"fmt"

	"irvm/pkg/ir"
	"irvm/pkg/value"
)

// resultBits picks the integer width of a result: the instruction type if it
// has one, else the width of the first operand.
func resultBits(in *ir.Instruction, a value.Value) int {
	if in.Type != nil && in.Type.Kind == ir.IntType {
		return in.Type.Bits
	}
	return a.Bits
}

// binary evaluates an integer arithmetic or bitwise operation
func (e coreEvaluator) binary(it *Interpreter, fr *Frame, in *ir.Instruction) (value.Value, error) {
	ops, err := e.operands(it, fr, in, 2)
	if err != nil {
		return value.Value{}, err
	}
	a, b := ops[0], ops[1]

	ai, err := a.AsInt64()
	if err != nil {
		return value.Value{}, err
	}
	bi, err := b.AsInt64()
	if err != nil {
		return value.Value{}, err
	}
	au, _ := a.AsUint64()
	bu, _ := b.AsUint64()

	bits := resultBits(in, a)
	var r int64

	switch in.Op {
	case ir.OpAdd:
		r = ai + bi
	case ir.OpSub:
		r = ai - bi
	case ir.OpMul:
		r = ai * bi
	case ir.OpSDiv:
		if bi == 0 {
			return value.Value{}, ErrDivisionByZero
		}
		r = ai / bi
	case ir.OpSRem:
		if bi == 0 {
			return value.Value{}, ErrDivisionByZero
		}
		r = ai % bi
	case ir.OpUDiv:
		if bu == 0 {
			return value.Value{}, ErrDivisionByZero
		}
		r = int64(au / bu)
	case ir.OpURem:
		if bu == 0 {
			return value.Value{}, ErrDivisionByZero
		}
		r = int64(au % bu)
	case ir.OpAnd:
		r = ai & bi
	case ir.OpOr:
		r = ai | bi
	case ir.OpXor:
		r = ai ^ bi
	case ir.OpShl:
		r = ai << bu
	case ir.OpLShr:
		r = int64(au >> bu)
	case ir.OpAShr:
		r = ai >> bu
	default:
		return value.Value{}, fmt.Errorf("%q: %w", in.Op, ErrUnknownOperation)
	}

	return value.Int(bits, r), nil
}

// floatBinary evaluates a floating point operation
func (e coreEvaluator) floatBinary(it *Interpreter, fr *Frame, in *ir.Instruction) (value.Value, error) {
	ops, err := e.operands(it, fr, in, 2)
	if err != nil {
		return value.Value{}, err
	}

	af, err := ops[0].AsFloat64()
	if err != nil {
		return value.Value{}, err
	}
	bf, err := ops[1].AsFloat64()
	if err != nil {
		return value.Value{}, err
	}

	switch in.Op {
	case ir.OpFAdd:
		return value.Float(af + bf), nil
	case ir.OpFSub:
		return value.Float(af - bf), nil
	case ir.OpFMul:
		return value.Float(af * bf), nil
	case ir.OpFDiv:
		return value.Float(af / bf), nil
	}

	return value.Value{}, fmt.Errorf("%q: %w", in.Op, ErrUnknownOperation)
}

// compare evaluates icmp. Pointers support only eq and ne.
func (e coreEvaluator) compare(it *Interpreter, fr *Frame, in *ir.Instruction) (value.Value, error) {
	ops, err := e.operands(it, fr, in, 2)
	if err != nil {
		return value.Value{}, err
	}
	a, b := ops[0], ops[1]

	if a.Kind == value.KindPointer || b.Kind == value.KindPointer {
		pa, err := a.AsAddress()
		if err != nil {
			return value.Value{}, err
		}
		pb, err := b.AsAddress()
		if err != nil {
			return value.Value{}, err
		}
		switch in.Pred {
		case "eq":
			return value.Bool(pa == pb), nil
		case "ne":
			return value.Bool(pa != pb), nil
		}
		return value.Value{}, fmt.Errorf("icmp %s on pointers: %w", in.Pred, ErrUnknownOperation)
	}

	ai, err := a.AsInt64()
	if err != nil {
		return value.Value{}, err
	}
	bi, err := b.AsInt64()
	if err != nil {
		return value.Value{}, err
	}
	au, _ := a.AsUint64()
	bu, _ := b.AsUint64()

	var r bool
	switch in.Pred {
	case "eq":
		r = ai == bi
	case "ne":
		r = ai != bi
	case "slt":
		r = ai < bi
	case "sle":
		r = ai <= bi
	case "sgt":
		r = ai > bi
	case "sge":
		r = ai >= bi
	case "ult":
		r = au < bu
	case "ule":
		r = au <= bu
	case "ugt":
		r = au > bu
	case "uge":
		r = au >= bu
	default:
		return value.Value{}, fmt.Errorf("icmp %q: %w", in.Pred, ErrUnknownOperation)
	}

	return value.Bool(r), nil
}

// convert evaluates the width changing casts. bitcast passes the value through.
func (e coreEvaluator) convert(it *Interpreter, fr *Frame, in *ir.Instruction) (value.Value, error) {
	ops, err := e.operands(it, fr, in, 1)
	if err != nil {
		return value.Value{}, err
	}
	v := ops[0]

	if in.Op == ir.OpBitcast {
		return v, nil
	}
	if in.Type == nil || in.Type.Kind != ir.IntType {
		return value.Value{}, fmt.Errorf("%s to %s: %w", in.Op, in.Type, ErrUnsupportedType)
	}

	switch in.Op {
	case ir.OpZExt:
		u, err := v.AsUint64()
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(in.Type.Bits, int64(u)), nil
	default: // sext and trunc keep the sign-extended payload
		i, err := v.AsInt64()
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(in.Type.Bits, i), nil
	}
}
