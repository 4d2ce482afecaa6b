package ir

import (
	"fmt"
	"strconv"
	"strings"
)

type ConstKind int

const (
	ConstUndef ConstKind = iota
	ConstInt
	ConstFloat
	ConstNull
	ConstGlobal // address of a global variable or function
)

// Constant is a compile-time value. Evaluating one never needs a frame.
type Constant struct {
	Kind   ConstKind
	Type   *Type
	Int    int64
	Float  float64
	Global string // name of the referenced global for ConstGlobal
}

// String renders the constant in textual IR form.
func (c *Constant) String() string {
	switch c.Kind {
	case ConstInt:
		return fmt.Sprintf("%s %d", c.Type, c.Int)
	case ConstFloat:
		return fmt.Sprintf("%s %s", c.Type, strconv.FormatFloat(c.Float, 'g', -1, 64))
	case ConstNull:
		return "null"
	case ConstGlobal:
		return "@" + c.Global
	default:
		return "undef"
	}
}

// Operand is either a reference to a value computed in the current function
// (a parameter, phi or instruction result) or a constant.
type Operand struct {
	Local string
	Const *Constant
}

// Local returns an operand referring to a named local value.
func Local(name string) Operand {
	return Operand{Local: name}
}

// Const returns an operand wrapping c.
func Const(c *Constant) Operand {
	return Operand{Const: c}
}

// IntConst returns an integer constant operand.
func IntConst(t *Type, i int64) Operand {
	return Const(&Constant{Kind: ConstInt, Type: t, Int: i})
}

// GlobalRef returns an operand holding the address of the named global.
func GlobalRef(name string) Operand {
	return Const(&Constant{Kind: ConstGlobal, Type: Ptr, Global: name})
}

// IsConst reports whether o is a constant.
func (o Operand) IsConst() bool {
	return o.Const != nil
}

// String renders the operand in textual IR form.
func (o Operand) String() string {
	if o.Const != nil {
		return o.Const.String()
	}
	return "%" + o.Local
}

// ParseOperand parses %name, @name, null, undef, true, false and typed
// literals such as "i32 7" or "double 2.5".
func ParseOperand(s string) (Operand, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Operand{}, fmt.Errorf("empty operand")
	}

	switch {
	case s[0] == '%':
		if len(s) == 1 {
			return Operand{}, fmt.Errorf("unnamed local operand")
		}
		return Local(s[1:]), nil
	case s[0] == '@':
		if len(s) == 1 {
			return Operand{}, fmt.Errorf("unnamed global operand")
		}
		return GlobalRef(s[1:]), nil
	}

	c, err := ParseConstant(s)
	if err != nil {
		return Operand{}, err
	}
	return Const(c), nil
}

// ParseConstant parses a constant in operand syntax.
func ParseConstant(s string) (*Constant, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "null":
		return &Constant{Kind: ConstNull, Type: Ptr}, nil
	case "undef":
		return &Constant{Kind: ConstUndef}, nil
	case "true":
		return &Constant{Kind: ConstInt, Type: I1, Int: 1}, nil
	case "false":
		return &Constant{Kind: ConstInt, Type: I1, Int: 0}, nil
	}
	if strings.HasPrefix(s, "@") && len(s) > 1 {
		return &Constant{Kind: ConstGlobal, Type: Ptr, Global: s[1:]}, nil
	}

	i := strings.LastIndexByte(s, ' ')
	if i < 0 {
		return nil, fmt.Errorf("constant %q needs a type", s)
	}
	t, err := ParseType(s[:i])
	if err != nil {
		return nil, err
	}
	lit := s[i+1:]

	if lit == "undef" {
		return &Constant{Kind: ConstUndef, Type: t}, nil
	}

	switch t.Kind {
	case IntType:
		n, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer literal in %q: %w", s, err)
		}
		return &Constant{Kind: ConstInt, Type: t, Int: n}, nil
	case FloatType, DoubleType:
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, fmt.Errorf("bad float literal in %q: %w", s, err)
		}
		return &Constant{Kind: ConstFloat, Type: t, Float: f}, nil
	case PointerType:
		if lit == "null" {
			return &Constant{Kind: ConstNull, Type: Ptr}, nil
		}
	}

	return nil, fmt.Errorf("unsupported constant %q", s)
}
