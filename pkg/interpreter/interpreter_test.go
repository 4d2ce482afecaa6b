package interpreter_test

import (
	"bytes"
	"errors"
	"irvm/pkg/host"
	"irvm/pkg/interpreter"
	"irvm/pkg/ir"
	"irvm/pkg/memory"
	"irvm/pkg/value"
	"testing"
)

const factorialSource = `
functions:
  - name: fact
    ret: i64
    params: [{name: n, type: i64}]
    blocks:
      - name: entry
        instrs:
          - {result: slot, op: alloca, type: i64}
          - {op: store, args: ["%n", "%slot"]}
          - {result: base, op: icmp, pred: sle, args: ["%n", "i64 1"]}
        term: {op: br, cond: "%base", then: done, else: recurse}
      - name: recurse
        instrs:
          - {result: m, op: sub, type: i64, args: ["%n", "i64 1"]}
          - {result: sub, op: call, type: i64, args: ["@fact", "%m"]}
          - {result: saved, op: load, type: i64, args: ["%slot"]}
          - {result: r, op: mul, type: i64, args: ["%saved", "%sub"]}
        term: {op: ret, value: "%r"}
      - name: done
        term: {op: ret, value: i64 1}
`

func TestFactorial(t *testing.T) {
	obs := newObserver()
	it := setup(t, factorialSource, interpreter.WithEvaluator(obs))

	v, err := it.Invoke(function(t, it, "fact"), []value.Value{value.Int(64, 5)})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if v.I64 != 120 {
		t.Errorf("expected 120, got %v", v)
	}

	if obs.maxDepth != 5 {
		t.Errorf("expected 5 nested frames, saw %d", obs.maxDepth)
	}
	if obs.maxStack != 5*8 {
		t.Errorf("expected 40 stack bytes at the deepest point, saw %d", obs.maxStack)
	}
	if it.Depth() != 0 || it.StackInUse() != 0 {
		t.Errorf("stack not restored: depth %d, %d bytes", it.Depth(), it.StackInUse())
	}
}

func TestStackDisciplineAcrossNestedCalls(t *testing.T) {
	obs := newObserver()
	it := setup(t, factorialSource, interpreter.WithEvaluator(obs))

	var depths []int
	var claimed []uint64
	obs.onExecute = func(fr *interpreter.Frame, in *ir.Instruction) {
		if in.Op == ir.OpLoad {
			// after the nested call returned: only this frame's slot remains
			depths = append(depths, it.Depth())
			claimed = append(claimed, fr.Claimed())
		}
	}

	v, err := it.Invoke(function(t, it, "fact"), []value.Value{value.Int(64, 4)})
	if err != nil || v.I64 != 24 {
		t.Fatalf("fact(4): %v, %v", v, err)
	}

	expected := []int{3, 2, 1}
	if len(depths) != len(expected) {
		t.Fatalf("expected %d loads, got %d", len(expected), len(depths))
	}
	for k := range expected {
		if depths[k] != expected[k] {
			t.Errorf("load %d: expected depth %d, got %d", k, expected[k], depths[k])
		}
		if claimed[k] != 8 {
			t.Errorf("load %d: frame claimed %d bytes, expected 8", k, claimed[k])
		}
	}
}

const variadicSource = `
functions:
  - name: vf
    ret: i32
    variadic: true
    params: [{name: a, type: i32}, {name: b, type: i32}]
    blocks:
      - name: entry
        instrs:
          - {result: n, op: va_count, type: i32}
          - {result: second, op: va_arg, type: i32, args: ["i32 1"]}
          - {result: r, op: mul, type: i32, args: ["%n", "%second"]}
        term: {op: ret, value: "%r"}
  - name: fixed
    ret: i32
    params: [{name: a, type: i32}]
    blocks:
      - name: entry
        term: {op: ret, value: "%a"}
  - name: extras
    ret: i32
    variadic: true
    params: [{name: a, type: i32}, {name: b, type: i32}]
    blocks:
      - name: entry
        instrs:
          - {result: n, op: va_count, type: i32}
        term: {op: ret, value: "%n"}
`

func TestVariadicSplit(t *testing.T) {
	obs := newObserver()
	it := setup(t, variadicSource, interpreter.WithEvaluator(obs))

	var bindings int
	var varargs []value.Value
	obs.onExecute = func(fr *interpreter.Frame, in *ir.Instruction) {
		if in.Result == "n" {
			bindings = fr.Bindings()
			varargs = append([]value.Value(nil), fr.Varargs()...)
		}
	}

	got := call(t, it, "vf", 1, 2, 30, 40, 50)
	if got != 3*40 {
		t.Errorf("expected 120, got %d", got)
	}
	if bindings != 2 {
		t.Errorf("expected 2 parameter bindings, got %d", bindings)
	}

	expected := []int64{30, 40, 50}
	if len(varargs) != len(expected) {
		t.Fatalf("expected %d varargs, got %d", len(expected), len(varargs))
	}
	for k, want := range expected {
		if varargs[k].I64 != want {
			t.Errorf("vararg %d: expected %d, got %v", k, want, varargs[k])
		}
	}
}

func TestArgumentCount(t *testing.T) {
	it := setup(t, variadicSource)

	tests := []struct {
		fn       string
		args     int
		ok       bool
		expected int64
	}{
		{"fixed", 1, true, 1},
		{"fixed", 0, false, 0},
		{"fixed", 2, false, 0},
		{"extras", 2, true, 0},
		{"extras", 5, true, 3},
		{"extras", 1, false, 0},
		{"extras", 0, false, 0},
	}

	for _, test := range tests {
		args := make([]value.Value, test.args)
		for k := range args {
			args[k] = value.Int(32, 1)
		}
		v, err := it.Invoke(function(t, it, test.fn), args)
		if test.ok {
			if err != nil {
				t.Errorf("%s with %d args: %v", test.fn, test.args, err)
			} else if v.I64 != test.expected {
				t.Errorf("%s with %d args: expected %d, got %v", test.fn, test.args, test.expected, v)
			}
		}
		if !test.ok && !errors.Is(err, interpreter.ErrArgCount) {
			t.Errorf("%s with %d args: expected ErrArgCount, got %v", test.fn, test.args, err)
		}
	}
}

type recordingExternals struct {
	calls map[string][]value.Value
}

func (r *recordingExternals) CallExternal(fn *ir.Function, args []value.Value) (value.Value, error) {
	r.calls[fn.Name] = args
	return value.Int(32, int64(len(args))), nil
}

const externalSource = `
functions:
  - name: main
    ret: i32
    blocks:
      - name: entry
        instrs:
          - {result: n, op: call, type: i32, args: ["@log_all", "i32 1", "i64 2", "double 0.5", "i32 4"]}
        term: {op: ret, value: "%n"}
  - name: log_all
    ret: i32
    variadic: true
    params: [{name: first, type: i32}]
`

func TestExternalCalls(t *testing.T) {
	ext := &recordingExternals{calls: make(map[string][]value.Value)}
	it := setup(t, externalSource, interpreter.WithExternals(ext))

	if got := call(t, it, "main"); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}

	args := ext.calls["log_all"]
	if len(args) != 4 {
		t.Fatalf("expected 4 arguments at the boundary, got %v", args)
	}
	if args[0].I64 != 1 || args[1].I64 != 2 || args[2].F64 != 0.5 || args[3].I64 != 4 {
		t.Errorf("arguments out of order: %v", args)
	}
	if it.Depth() != 0 {
		t.Errorf("external call left %d frames", it.Depth())
	}
}

func TestExternalCallsWithHostRegistry(t *testing.T) {
	src := `
functions:
  - name: main
    blocks:
      - name: entry
        instrs:
          - {op: call, args: ["@print_all", "i32 7", "i32 8"]}
          - {op: call, args: ["@missing"]}
        term: {op: ret}
  - name: print_all
    ret: i32
    variadic: true
  - name: missing
`
	var out bytes.Buffer
	it := setup(t, src, interpreter.WithExternals(host.NewRegistry(host.WithWriter(&out))))

	_, err := it.Invoke(function(t, it, "main"), nil)
	if !errors.Is(err, host.ErrUnknownFunction) {
		t.Errorf("expected ErrUnknownFunction, got %v", err)
	}
	if out.String() != "7 8\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestNoExternals(t *testing.T) {
	it := setup(t, externalSource)

	_, err := it.Invoke(function(t, it, "main"), nil)
	if !errors.Is(err, interpreter.ErrNotCallable) {
		t.Errorf("expected ErrNotCallable, got %v", err)
	}
}

const recursionSource = `
functions:
  - name: forever
    blocks:
      - name: entry
        instrs:
          - {result: p, op: alloca, type: "[4 x i64]"}
          - {op: call, args: ["@forever"]}
        term: {op: ret}
`

func TestStackOverflow(t *testing.T) {
	it := setup(t, recursionSource, interpreter.WithMaxDepth(50))

	_, err := it.Invoke(function(t, it, "forever"), nil)
	if !errors.Is(err, interpreter.ErrStackOverflow) {
		t.Errorf("expected ErrStackOverflow, got %v", err)
	}
	if it.Depth() != 0 || it.StackInUse() != 0 {
		t.Errorf("stack not unwound: depth %d, %d bytes", it.Depth(), it.StackInUse())
	}
}

func TestStackLimit(t *testing.T) {
	it := setup(t, recursionSource, interpreter.WithMaxDepth(0), interpreter.WithStackLimit(32*10))

	_, err := it.Invoke(function(t, it, "forever"), nil)
	if err == nil {
		t.Fatalf("expected stack exhaustion")
	}
	if errors.Is(err, interpreter.ErrStackOverflow) {
		t.Errorf("depth limit was disabled, got %v", err)
	}
}

const exitSource = `
functions:
  - name: void_main
    blocks:
      - name: entry
        term: {op: ret}
  - name: minus_one
    ret: i32
    blocks:
      - name: entry
        term: {op: ret, value: i32 -1}
  - name: byte_main
    ret: i8
    blocks:
      - name: entry
        term: {op: ret, value: i8 255}
  - name: forty_two
    ret: i32
    blocks:
      - name: entry
        term: {op: ret, value: i32 42}
`

func TestRunEntryPoint(t *testing.T) {
	it := setup(t, exitSource)

	tests := []struct {
		fn       string
		expected int
	}{
		{"void_main", 0},
		{"minus_one", -1},
		{"byte_main", -1},
		{"forty_two", 42},
	}

	for _, test := range tests {
		code, err := it.RunEntryPoint(function(t, it, test.fn), []string{"prog", "ignored"})
		if err != nil {
			t.Fatalf("%s: %v", test.fn, err)
		}
		if code != test.expected {
			t.Errorf("%s: expected exit code %d, got %d", test.fn, test.expected, code)
		}
	}
}

func TestInvokeBeforeInitialize(t *testing.T) {
	fn := &ir.Function{Name: "f", Blocks: []*ir.Block{{Name: "entry", Term: ir.Ret{}}}}
	it := interpreter.NewInterpreter(&ir.Program{Functions: []*ir.Function{fn}})

	if _, err := it.Invoke(fn, nil); !errors.Is(err, interpreter.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}

	if err := it.InitializeProgram(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if v, err := it.Invoke(fn, nil); err != nil || !v.IsUndef() {
		t.Errorf("expected undef result, got %v, %v", v, err)
	}
}

const oversizeSource = `
functions:
  - name: huge_alloca
    ret: i64
    blocks:
      - name: entry
        instrs:
          - {result: p, op: alloca, type: i64, args: ["i64 2305843009213693952"]}
          - {op: store, args: ["i64 42", "%p"]}
          - {result: v, op: load, type: i64, args: ["%p"]}
        term: {op: ret, value: "%v"}
  - name: sparse_alloca
    ret: i64
    blocks:
      - name: entry
        instrs:
          - {result: p, op: alloca, type: i64, args: ["i64 1048576"]}
          - {result: last, op: gep, type: i64, args: ["%p", "i64 1048575"]}
          - {op: store, args: ["i64 42", "%last"]}
          - {result: v, op: load, type: i64, args: ["%last"]}
        term: {op: ret, value: "%v"}
  - name: huge_gep
    blocks:
      - name: entry
        instrs:
          - {result: p, op: alloca, type: i64}
          - {result: q, op: gep, type: i64, args: ["%p", "i64 2305843009213693952"]}
        term: {op: ret}
  - name: gep_sum
    blocks:
      - name: entry
        instrs:
          - {result: p, op: alloca, type: "[2 x i64]"}
          - {result: q, op: gep, type: "[2 x i64]", args: ["%p", "i64 576460752303423487", "i64 2"]}
        term: {op: ret}
`

func TestAllocationSizes(t *testing.T) {
	it := setup(t, oversizeSource)

	_, err := it.Invoke(function(t, it, "huge_alloca"), nil)
	if !errors.Is(err, memory.ErrOutOfMemory) {
		t.Errorf("huge_alloca: expected ErrOutOfMemory, got %v", err)
	}

	v, err := it.Invoke(function(t, it, "sparse_alloca"), nil)
	if err != nil || v.I64 != 42 {
		t.Errorf("sparse_alloca: expected 42, got %v, %v", v, err)
	}

	for _, name := range []string{"huge_gep", "gep_sum"} {
		_, err := it.Invoke(function(t, it, name), nil)
		if !errors.Is(err, interpreter.ErrOffsetOverflow) {
			t.Errorf("%s: expected ErrOffsetOverflow, got %v", name, err)
		}
	}

	if it.Depth() != 0 || it.StackInUse() != 0 {
		t.Errorf("stack not unwound: depth %d, %d bytes", it.Depth(), it.StackInUse())
	}
}
