package value

import (
	"fmt"
	"strconv"

	"irvm/pkg/memory"
)

type Kind int

const (
	KindUndef Kind = iota
	KindInt
	KindFloat
	KindPointer
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindPointer:
		return "pointer"
	default:
		return "undef"
	}
}

// Value is a runtime value produced by evaluating an operand. The zero Value
// is undefined.
type Value struct {
	Kind Kind
	Bits int            // integer width, 1..64
	I64  int64          // integer payload, kept sign-extended to 64 bits
	F64  float64        // float payload
	Ptr  memory.Address // pointer payload
}

// Undef returns the undefined value.
func Undef() Value {
	return Value{}
}

// Int creates an integer Value of the given width. The payload is truncated
// to bits and sign-extended.
func Int(bits int, i int64) Value {
	if bits <= 0 || bits > 64 {
		bits = 64
	}
	return Value{Kind: KindInt, Bits: bits, I64: SignExtend(i, bits)}
}

// Bool creates an i1 Value.
func Bool(b bool) Value {
	if b {
		return Int(1, 1)
	}
	return Int(1, 0)
}

// Float creates a floating point Value.
func Float(f float64) Value {
	return Value{Kind: KindFloat, F64: f}
}

// Pointer creates a pointer Value.
func Pointer(addr memory.Address) Value {
	return Value{Kind: KindPointer, Ptr: addr}
}

// IsUndef reports whether v is the undefined value.
func (v Value) IsUndef() bool {
	return v.Kind == KindUndef
}

// String renders the value as a string.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("i%d %d", v.Bits, v.I64)
	case KindFloat:
		return "double " + strconv.FormatFloat(v.F64, 'g', -1, 64)
	case KindPointer:
		return "ptr " + v.Ptr.String()
	default:
		return "undef"
	}
}

// AsInt64 returns the sign-extended integer payload.
func (v Value) AsInt64() (int64, error) {
	if v.Kind != KindInt {
		return 0, fmt.Errorf("cannot use %v as integer", v.Kind)
	}
	return v.I64, nil
}

// AsUint64 returns the integer payload zero-extended from its width.
func (v Value) AsUint64() (uint64, error) {
	i, err := v.AsInt64()
	if err != nil {
		return 0, err
	}
	if v.Bits < 64 {
		return uint64(i) & (1<<uint(v.Bits) - 1), nil
	}
	return uint64(i), nil
}

// AsFloat64 converts the value to float64 if possible.
func (v Value) AsFloat64() (float64, error) {
	switch v.Kind {
	case KindFloat:
		return v.F64, nil
	case KindInt:
		return float64(v.I64), nil
	default:
		return 0, fmt.Errorf("cannot use %v as float", v.Kind)
	}
}

// Truth returns the truth value of an integer: nonzero is true regardless of
// the width.
func (v Value) Truth() (bool, error) {
	if v.Kind != KindInt {
		return false, fmt.Errorf("cannot use %v as condition", v.Kind)
	}
	return v.I64 != 0, nil
}

// AsAddress returns the pointer payload.
func (v Value) AsAddress() (memory.Address, error) {
	switch v.Kind {
	case KindPointer:
		return v.Ptr, nil
	case KindInt:
		if v.I64 == 0 {
			return memory.Address{}, nil
		}
	}
	return memory.Address{}, fmt.Errorf("cannot use %v as pointer", v.Kind)
}

// SignExtend truncates i to bits and sign-extends the result to 64 bits.
func SignExtend(i int64, bits int) int64 {
	if bits >= 64 {
		return i
	}
	shift := uint(64 - bits)
	return i << shift >> shift
}
