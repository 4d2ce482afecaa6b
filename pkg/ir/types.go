package ir

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// PointerSize is the allocation size of a pointer in bytes.
const PointerSize = 8

type TypeKind int

const (
	VoidType TypeKind = iota
	IntType
	FloatType
	DoubleType
	PointerType
	ArrayType
	VectorType
)

// Type is a first-class IR type.
type Type struct {
	Kind TypeKind
	Bits int   // width of IntType
	Len  int   // element count of ArrayType and VectorType
	Elem *Type // element type of ArrayType and VectorType
}

var (
	Void   = &Type{Kind: VoidType}
	I1     = &Type{Kind: IntType, Bits: 1}
	I8     = &Type{Kind: IntType, Bits: 8}
	I32    = &Type{Kind: IntType, Bits: 32}
	I64    = &Type{Kind: IntType, Bits: 64}
	Ptr    = &Type{Kind: PointerType}
	Double = &Type{Kind: DoubleType}
)

// IntN returns the integer type of the given width.
func IntN(bits int) *Type {
	return &Type{Kind: IntType, Bits: bits}
}

// IsVector reports whether t is a vector type.
func (t *Type) IsVector() bool {
	return t != nil && t.Kind == VectorType
}

// AllocSize returns the number of bytes needed to store a value of type t.
func (t *Type) AllocSize() uint64 {
	if t == nil {
		return 0
	}
	switch t.Kind {
	case IntType:
		return uint64((t.Bits + 7) / 8)
	case FloatType:
		return 4
	case DoubleType, PointerType:
		return 8
	case ArrayType, VectorType:
		return uint64(t.Len) * t.Elem.AllocSize()
	default:
		return 0
	}
}

// String renders the type in textual IR form.
func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case IntType:
		return "i" + strconv.Itoa(t.Bits)
	case FloatType:
		return "float"
	case DoubleType:
		return "double"
	case PointerType:
		return "ptr"
	case ArrayType:
		return fmt.Sprintf("[%d x %s]", t.Len, t.Elem)
	case VectorType:
		return fmt.Sprintf("<%d x %s>", t.Len, t.Elem)
	default:
		return "void"
	}
}

// ParseType parses types such as i32, ptr, double, [4 x i8] and <2 x i64>.
func ParseType(s string) (*Type, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "void":
		return Void, nil
	case "ptr":
		return Ptr, nil
	case "float":
		return &Type{Kind: FloatType}, nil
	case "double":
		return Double, nil
	}

	if lb, rb := s[0], s[len(s)-1]; (lb == '[' && rb == ']') || (lb == '<' && rb == '>') {
		n, elem, ok := strings.Cut(s[1:len(s)-1], " x ")
		if !ok {
			return nil, fmt.Errorf("malformed aggregate type %q", s)
		}
		count, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || count < 0 {
			return nil, fmt.Errorf("bad element count in %q", s)
		}
		et, err := ParseType(elem)
		if err != nil {
			return nil, err
		}
		if hi, _ := bits.Mul64(uint64(count), et.AllocSize()); hi != 0 {
			return nil, fmt.Errorf("type %q is too large", s)
		}
		kind := ArrayType
		if lb == '<' {
			kind = VectorType
		}
		return &Type{Kind: kind, Len: count, Elem: et}, nil
	}

	if s[0] == 'i' {
		width, err := strconv.Atoi(s[1:])
		if err == nil && width >= 1 && width <= 64 {
			return IntN(width), nil
		}
	}

	return nil, fmt.Errorf("unsupported type %q", s)
}
