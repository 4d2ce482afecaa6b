// Package loader reads IR programs written as YAML documents.
//
// A program lists its globals and functions. Names of globals, functions,
// parameters, results and blocks are written bare; operands use IR syntax:
//
//	globals:
//	  - name: counter
//	    type: i64
//	    init: i64 5
//	functions:
//	  - name: main
//	    ret: i64
//	    blocks:
//	      - name: entry
//	        instrs:
//	          - {result: v, op: load, type: i64, args: ["@counter"]}
//	        term: {op: ret, value: "%v"}
//
// A function without blocks is a declaration implemented by the host.
package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"irvm/pkg/ir"
)

type programDisk struct {
	Globals   []globalDisk   `yaml:"globals"`
	Functions []functionDisk `yaml:"functions"`
}

type globalDisk struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Init string `yaml:"init,omitempty"`
}

type functionDisk struct {
	Name     string      `yaml:"name"`
	Ret      string      `yaml:"ret,omitempty"`
	Params   []paramDisk `yaml:"params,omitempty"`
	Variadic bool        `yaml:"variadic,omitempty"`
	Blocks   []blockDisk `yaml:"blocks,omitempty"`
}

type paramDisk struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type blockDisk struct {
	Name   string      `yaml:"name"`
	Phis   []phiDisk   `yaml:"phis,omitempty"`
	Instrs []instrDisk `yaml:"instrs,omitempty"`
	Term   termDisk    `yaml:"term"`
}

type phiDisk struct {
	Result   string         `yaml:"result"`
	Type     string         `yaml:"type"`
	Incoming []incomingDisk `yaml:"incoming"`
}

type incomingDisk struct {
	Block string `yaml:"block"`
	Value string `yaml:"value"`
}

type instrDisk struct {
	Result string   `yaml:"result,omitempty"`
	Op     string   `yaml:"op"`
	Type   string   `yaml:"type,omitempty"`
	Pred   string   `yaml:"pred,omitempty"`
	Args   []string `yaml:"args,omitempty"`
}

type termDisk struct {
	Op       string     `yaml:"op"`
	Dest     string     `yaml:"dest,omitempty"`
	Cond     string     `yaml:"cond,omitempty"`
	Then     string     `yaml:"then,omitempty"`
	Else     string     `yaml:"else,omitempty"`
	Value    string     `yaml:"value,omitempty"`
	Selector string     `yaml:"selector,omitempty"`
	Default  string     `yaml:"default,omitempty"`
	Cases    []caseDisk `yaml:"cases,omitempty"`
}

type caseDisk struct {
	Value int64  `yaml:"value"`
	Dest  string `yaml:"dest"`
}

// LoadFile parses the program stored at path.
func LoadFile(path string) (*ir.Program, error) {
	if path == "" {
		return nil, fmt.Errorf("loader: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("loader: resolve %s: %w", path, err)
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	prog, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", abs, err)
	}
	return prog, nil
}

// Parse decodes a program from YAML bytes.
func Parse(data []byte) (*ir.Program, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads one YAML document and builds a validated program. Unknown
// keys are rejected.
func Decode(r io.Reader) (*ir.Program, error) {
	var raw programDisk
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	prog, err := raw.toProgram()
	if err != nil {
		return nil, err
	}
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	return prog, nil
}

func (raw programDisk) toProgram() (*ir.Program, error) {
	prog := &ir.Program{}

	for _, g := range raw.Globals {
		if g.Name == "" {
			return nil, fmt.Errorf("global without a name")
		}
		t, err := ir.ParseType(g.Type)
		if err != nil {
			return nil, fmt.Errorf("global @%s: %w", g.Name, err)
		}
		global := &ir.Global{Name: g.Name, Type: t}
		if g.Init != "" {
			if global.Init, err = ir.ParseConstant(g.Init); err != nil {
				return nil, fmt.Errorf("global @%s: %w", g.Name, err)
			}
		}
		prog.Globals = append(prog.Globals, global)
	}

	for _, f := range raw.Functions {
		fn, err := f.toFunction()
		if err != nil {
			return nil, fmt.Errorf("function @%s: %w", f.Name, err)
		}
		prog.Functions = append(prog.Functions, fn)
	}

	return prog, nil
}

func (f functionDisk) toFunction() (*ir.Function, error) {
	if f.Name == "" {
		return nil, fmt.Errorf("missing name")
	}
	ret, err := ir.ParseType(f.Ret)
	if err != nil {
		return nil, err
	}

	fn := &ir.Function{Name: f.Name, RetType: ret, Variadic: f.Variadic}
	for _, p := range f.Params {
		t, err := ir.ParseType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("param %%%s: %w", p.Name, err)
		}
		fn.Params = append(fn.Params, ir.Param{Name: p.Name, Type: t})
	}

	for _, b := range f.Blocks {
		block, err := b.toBlock()
		if err != nil {
			return nil, fmt.Errorf("block %%%s: %w", b.Name, err)
		}
		fn.Blocks = append(fn.Blocks, block)
	}

	return fn, nil
}

func (b blockDisk) toBlock() (*ir.Block, error) {
	if b.Name == "" {
		return nil, fmt.Errorf("missing name")
	}
	block := &ir.Block{Name: b.Name}

	for _, p := range b.Phis {
		t, err := ir.ParseType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("phi %%%s: %w", p.Result, err)
		}
		phi := &ir.Phi{Result: p.Result, Type: t}
		for _, in := range p.Incoming {
			op, err := ir.ParseOperand(in.Value)
			if err != nil {
				return nil, fmt.Errorf("phi %%%s: %w", p.Result, err)
			}
			phi.Incoming = append(phi.Incoming, ir.Incoming{Block: in.Block, Value: op})
		}
		block.Phis = append(block.Phis, phi)
	}

	for k, in := range b.Instrs {
		instr, err := in.toInstruction()
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", k, err)
		}
		block.Instrs = append(block.Instrs, instr)
	}

	term, err := b.Term.toTerminator()
	if err != nil {
		return nil, err
	}
	block.Term = term

	return block, nil
}

func (in instrDisk) toInstruction() (*ir.Instruction, error) {
	if in.Op == "" {
		return nil, fmt.Errorf("missing op")
	}
	t, err := ir.ParseType(in.Type)
	if err != nil {
		return nil, err
	}

	instr := &ir.Instruction{Result: in.Result, Op: ir.Opcode(in.Op), Type: t, Pred: in.Pred}
	for _, a := range in.Args {
		op, err := ir.ParseOperand(a)
		if err != nil {
			return nil, err
		}
		instr.Args = append(instr.Args, op)
	}
	return instr, nil
}

func (t termDisk) toTerminator() (ir.Terminator, error) {
	switch t.Op {
	case "br":
		if t.Cond == "" {
			return ir.Br{Dest: t.Dest}, nil
		}
		cond, err := ir.ParseOperand(t.Cond)
		if err != nil {
			return nil, err
		}
		return ir.CondBr{Cond: cond, True: t.Then, False: t.Else}, nil

	case "ret":
		if t.Value == "" {
			return ir.Ret{}, nil
		}
		op, err := ir.ParseOperand(t.Value)
		if err != nil {
			return nil, err
		}
		return ir.Ret{Value: &op}, nil

	case "switch":
		sel, err := ir.ParseOperand(t.Selector)
		if err != nil {
			return nil, err
		}
		sw := ir.Switch{Selector: sel, Default: t.Default}
		for _, c := range t.Cases {
			sw.Cases = append(sw.Cases, ir.SwitchCase{Value: c.Value, Dest: c.Dest})
		}
		return sw, nil

	case "unreachable", "indirectbr", "invoke", "resume":
		return ir.Unsupported{Op: t.Op}, nil

	case "":
		return nil, fmt.Errorf("missing terminator")
	}

	return nil, fmt.Errorf("unknown terminator %q", t.Op)
}
