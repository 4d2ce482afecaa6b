package ir

import (
	"fmt"
	"strings"
)

type Opcode string

// Non-terminal opcodes understood by the default evaluator
const (
	OpAdd  Opcode = "add"
	OpSub  Opcode = "sub"
	OpMul  Opcode = "mul"
	OpSDiv Opcode = "sdiv"
	OpUDiv Opcode = "udiv"
	OpSRem Opcode = "srem"
	OpURem Opcode = "urem"
	OpAnd  Opcode = "and"
	OpOr   Opcode = "or"
	OpXor  Opcode = "xor"
	OpShl  Opcode = "shl"
	OpLShr Opcode = "lshr"
	OpAShr Opcode = "ashr"

	OpFAdd Opcode = "fadd"
	OpFSub Opcode = "fsub"
	OpFMul Opcode = "fmul"
	OpFDiv Opcode = "fdiv"

	OpICmp   Opcode = "icmp"
	OpSelect Opcode = "select"

	OpAlloca Opcode = "alloca"
	OpLoad   Opcode = "load"
	OpStore  Opcode = "store"
	OpGEP    Opcode = "gep"

	OpZExt    Opcode = "zext"
	OpSExt    Opcode = "sext"
	OpTrunc   Opcode = "trunc"
	OpBitcast Opcode = "bitcast"

	OpCall    Opcode = "call"
	OpVAArg   Opcode = "va_arg"
	OpVACount Opcode = "va_count"
)

// Instruction is a non-terminal instruction. Its meaning is up to the
// evaluator; the engine only runs instructions in order.
type Instruction struct {
	Result string    // name bound by the instruction, empty if none
	Op     Opcode    // operation
	Type   *Type     // result type, or the allocated/loaded type
	Args   []Operand // operands; for call the callee comes first
	Pred   string    // icmp predicate
}

// String returns a string representation of the instruction
func (in *Instruction) String() string {
	var b strings.Builder
	if in.Result != "" {
		fmt.Fprintf(&b, "%%%s = ", in.Result)
	}
	b.WriteString(string(in.Op))
	if in.Pred != "" {
		b.WriteString(" " + in.Pred)
	}
	if in.Type != nil && in.Type.Kind != VoidType {
		b.WriteString(" " + in.Type.String())
	}
	for i, a := range in.Args {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(" " + a.String())
	}
	return b.String()
}

// Incoming pairs a predecessor block with the operand a phi takes when
// control arrives from it.
type Incoming struct {
	Block string
	Value Operand
}

// Phi is a merge instruction at the head of a block.
type Phi struct {
	Result   string
	Type     *Type
	Incoming []Incoming
}

// IncomingFor returns the operand for the given predecessor.
func (p *Phi) IncomingFor(pred string) (Operand, bool) {
	for _, in := range p.Incoming {
		if in.Block == pred {
			return in.Value, true
		}
	}
	return Operand{}, false
}

// String returns a string representation of the phi
func (p *Phi) String() string {
	edges := make([]string, len(p.Incoming))
	for i, in := range p.Incoming {
		edges[i] = fmt.Sprintf("[ %s, %%%s ]", in.Value, in.Block)
	}
	return fmt.Sprintf("%%%s = phi %s %s", p.Result, p.Type, strings.Join(edges, ", "))
}

// Terminator ends a basic block. The set of implementations is closed.
type Terminator interface {
	fmt.Stringer
	terminator()
}

// Br jumps unconditionally.
type Br struct {
	Dest string
}

// CondBr jumps to True when Cond is nonzero and to False otherwise.
type CondBr struct {
	Cond  Operand
	True  string
	False string
}

// Ret returns from the function, with a value unless Value is nil.
type Ret struct {
	Value *Operand
}

// SwitchCase is one arm of a Switch.
type SwitchCase struct {
	Value int64
	Dest  string
}

// Switch jumps to the first case equal to Selector, else to Default.
type Switch struct {
	Selector Operand
	Default  string
	Cases    []SwitchCase
}

// Unsupported is any terminator the engine refuses to run: unreachable,
// indirectbr, invoke and resume.
type Unsupported struct {
	Op string
}

func (Br) terminator()          {}
func (CondBr) terminator()      {}
func (Ret) terminator()         {}
func (Switch) terminator()      {}
func (Unsupported) terminator() {}

func (t Br) String() string { return "br label %" + t.Dest }

func (t CondBr) String() string {
	return fmt.Sprintf("br %s, label %%%s, label %%%s", t.Cond, t.True, t.False)
}

func (t Ret) String() string {
	if t.Value == nil {
		return "ret void"
	}
	return "ret " + t.Value.String()
}

func (t Switch) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "switch %s, label %%%s [", t.Selector, t.Default)
	for _, c := range t.Cases {
		fmt.Fprintf(&b, " %d: %%%s", c.Value, c.Dest)
	}
	b.WriteString(" ]")
	return b.String()
}

func (t Unsupported) String() string { return t.Op }

// Successors returns the blocks a terminator may transfer control to.
func Successors(t Terminator) []string {
	switch t := t.(type) {
	case Br:
		return []string{t.Dest}
	case CondBr:
		return []string{t.True, t.False}
	case Switch:
		out := []string{t.Default}
		for _, c := range t.Cases {
			out = append(out, c.Dest)
		}
		return out
	default:
		return nil
	}
}

// Block is a basic block: merge instructions, straight-line instructions and
// exactly one terminator.
type Block struct {
	Name   string
	Phis   []*Phi
	Instrs []*Instruction
	Term   Terminator
}

// Param is a formal parameter.
type Param struct {
	Name string
	Type *Type
}

// Function is a callable. A function without blocks is a declaration whose
// body is supplied by the host.
type Function struct {
	Name     string
	Params   []Param
	Variadic bool
	RetType  *Type
	Blocks   []*Block // Blocks[0] is the entry block

	blocks map[string]*Block
}

// IsDeclaration reports whether f has no body.
func (f *Function) IsDeclaration() bool {
	return len(f.Blocks) == 0
}

// Entry returns the entry block, or nil for a declaration.
func (f *Function) Entry() *Block {
	if f.IsDeclaration() {
		return nil
	}
	return f.Blocks[0]
}

// Block returns the named block.
func (f *Function) Block(name string) (*Block, bool) {
	if f.blocks == nil {
		f.indexBlocks()
	}
	b, ok := f.blocks[name]
	return b, ok
}

func (f *Function) indexBlocks() {
	f.blocks = make(map[string]*Block, len(f.Blocks))
	for _, b := range f.Blocks {
		f.blocks[b.Name] = b
	}
}

// Signature renders the function header.
func (f *Function) Signature() string {
	params := make([]string, 0, len(f.Params)+1)
	for _, p := range f.Params {
		params = append(params, fmt.Sprintf("%s %%%s", p.Type, p.Name))
	}
	if f.Variadic {
		params = append(params, "...")
	}
	kw := "define"
	if f.IsDeclaration() {
		kw = "declare"
	}
	return fmt.Sprintf("%s %s @%s(%s)", kw, f.RetType, f.Name, strings.Join(params, ", "))
}

// Global is a global variable.
type Global struct {
	Name string
	Type *Type
	Init *Constant // nil when the global has no initializer
}

// Program is a loaded module: its globals and functions in declaration order.
// Lookups by name go through an index built by Validate, or on first use;
// call Validate again after changing either slice.
type Program struct {
	Globals   []*Global
	Functions []*Function

	funcs   map[string]*Function
	globals map[string]*Global
}

// Function returns the named function.
func (p *Program) Function(name string) (*Function, bool) {
	if p.funcs == nil {
		p.index()
	}
	f, ok := p.funcs[name]
	return f, ok
}

// Global returns the named global variable.
func (p *Program) Global(name string) (*Global, bool) {
	if p.globals == nil {
		p.index()
	}
	g, ok := p.globals[name]
	return g, ok
}

// index maps names to entities; the first of duplicate names wins.
func (p *Program) index() {
	p.funcs = make(map[string]*Function, len(p.Functions))
	for _, f := range p.Functions {
		if _, dup := p.funcs[f.Name]; !dup {
			p.funcs[f.Name] = f
		}
	}
	p.globals = make(map[string]*Global, len(p.Globals))
	for _, g := range p.Globals {
		if _, dup := p.globals[g.Name]; !dup {
			p.globals[g.Name] = g
		}
	}
}

// Validate checks that names are unique and every branch target exists.
// It also builds the block indexes used during execution.
func (p *Program) Validate() error {
	p.index()

	seen := make(map[string]bool)
	for _, g := range p.Globals {
		if seen[g.Name] {
			return fmt.Errorf("duplicate global @%s", g.Name)
		}
		seen[g.Name] = true
	}

	for _, f := range p.Functions {
		if seen[f.Name] {
			return fmt.Errorf("duplicate global @%s", f.Name)
		}
		seen[f.Name] = true

		f.indexBlocks()
		if len(f.blocks) != len(f.Blocks) {
			return fmt.Errorf("@%s: duplicate block name", f.Name)
		}

		for _, b := range f.Blocks {
			if b.Term == nil {
				return fmt.Errorf("@%s: block %%%s has no terminator", f.Name, b.Name)
			}
			for _, dest := range Successors(b.Term) {
				if _, ok := f.blocks[dest]; !ok {
					return fmt.Errorf("@%s: block %%%s branches to unknown block %%%s", f.Name, b.Name, dest)
				}
			}
			for _, phi := range b.Phis {
				for _, in := range phi.Incoming {
					if _, ok := f.blocks[in.Block]; !ok {
						return fmt.Errorf("@%s: phi %%%s names unknown block %%%s", f.Name, phi.Result, in.Block)
					}
				}
			}
		}
	}

	return nil
}
