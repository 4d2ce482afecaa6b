package interpreter_test

import (
	"irvm/pkg/interpreter"
	"irvm/pkg/ir"
	"irvm/pkg/loader"
	"irvm/pkg/value"
	"testing"
)

// setup parses src, builds an interpreter and initializes the program.
func setup(t *testing.T, src string, opts ...interpreter.Option) *interpreter.Interpreter {
	t.Helper()

	prog, err := loader.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	it := interpreter.NewInterpreter(prog, opts...)
	if err := it.InitializeProgram(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return it
}

func function(t *testing.T, it *interpreter.Interpreter, name string) *ir.Function {
	t.Helper()

	fn, ok := it.Program().Function(name)
	if !ok {
		t.Fatalf("function @%s not found", name)
	}
	return fn
}

// call invokes a function with i32 arguments and returns the integer result.
func call(t *testing.T, it *interpreter.Interpreter, name string, args ...int64) int64 {
	t.Helper()

	vals := make([]value.Value, len(args))
	for k, a := range args {
		vals[k] = value.Int(32, a)
	}

	v, err := it.Invoke(function(t, it, name), vals)
	if err != nil {
		t.Fatalf("invoke @%s%v: %v", name, args, err)
	}
	n, err := v.AsInt64()
	if err != nil {
		t.Fatalf("result of @%s: %v", name, err)
	}
	return n
}

// observer wraps the default evaluator and records what it is asked to do.
type observer struct {
	interpreter.Evaluator

	operands  []string
	maxDepth  int
	maxStack  uint64
	onExecute func(fr *interpreter.Frame, in *ir.Instruction)
}

func newObserver() *observer {
	return &observer{Evaluator: interpreter.DefaultEvaluator()}
}

func (o *observer) Operand(it *interpreter.Interpreter, fr *interpreter.Frame, op ir.Operand) (value.Value, error) {
	o.operands = append(o.operands, op.String())
	return o.Evaluator.Operand(it, fr, op)
}

func (o *observer) Execute(it *interpreter.Interpreter, fr *interpreter.Frame, in *ir.Instruction) error {
	o.maxDepth = max(o.maxDepth, it.Depth())
	o.maxStack = max(o.maxStack, it.StackInUse())
	if o.onExecute != nil {
		o.onExecute(fr, in)
	}
	return o.Evaluator.Execute(it, fr, in)
}
