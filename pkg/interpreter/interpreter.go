package interpreter

import (
	"fmt"

	"github.com/charmbracelet/log"

	"irvm/pkg/ir"
	"irvm/pkg/memory"
	"irvm/pkg/value"
)

// DefaultMaxDepth bounds interpreted recursion unless WithMaxDepth says otherwise.
const DefaultMaxDepth = 4096

// Evaluator gives meaning to operands, constants and non-terminal
// instructions. The engine itself only moves values between bindings.
type Evaluator interface {
	// Operand evaluates an operand in the context of fr.
	Operand(it *Interpreter, fr *Frame, op ir.Operand) (value.Value, error)
	// Constant evaluates a constant; no frame is needed.
	Constant(it *Interpreter, c *ir.Constant) (value.Value, error)
	// Execute runs one non-terminal instruction against fr.
	Execute(it *Interpreter, fr *Frame, in *ir.Instruction) error
}

// Externals runs functions that have no body in the program.
type Externals interface {
	CallExternal(fn *ir.Function, args []value.Value) (value.Value, error)
}

// Interpreter executes a basic-block program
type Interpreter struct {
	prog *ir.Program

	image *Image     // global memory and function addresses
	calls *callStack // live frames and stack memory

	eval      Evaluator
	externals Externals
	log       *log.Logger

	trace       bool
	maxDepth    int    // maximum call depth (0 = unlimited)
	maxSteps    int    // maximum steps (0 = unlimited)
	stackLimit  uint64 // maximum stack bytes (0 = unlimited)
	steps       int    // steps executed
	initialized bool
}

type Option func(*Interpreter)

// WithEvaluator replaces the default instruction evaluator
func WithEvaluator(e Evaluator) Option {
	return func(i *Interpreter) { i.eval = e }
}

// WithExternals installs the implementation of bodyless functions
func WithExternals(x Externals) Option {
	return func(i *Interpreter) { i.externals = x }
}

// WithLogger sets the logger used for frame and block tracing
func WithLogger(l *log.Logger) Option {
	return func(i *Interpreter) { i.log = l }
}

// WithTrace logs every block transition at debug level
func WithTrace(on bool) Option {
	return func(i *Interpreter) { i.trace = on }
}

// WithMaxDepth sets the maximum number of live frames before returning ErrStackOverflow
func WithMaxDepth(n int) Option {
	return func(i *Interpreter) { i.maxDepth = n }
}

// WithMaxSteps sets a maximum number of executed instructions before returning ErrMaxStepsExceeded
func WithMaxSteps(n int) Option {
	return func(i *Interpreter) { i.maxSteps = n }
}

// WithStackLimit caps the bytes of stack memory all live frames may hold
func WithStackLimit(n uint64) Option {
	return func(i *Interpreter) { i.stackLimit = n }
}

// NewInterpreter creates a new Interpreter for prog. InitializeProgram must
// be called before the first Invoke.
func NewInterpreter(prog *ir.Program, opts ...Option) *Interpreter {
	it := &Interpreter{
		prog:     prog,
		image:    newImage(),
		maxDepth: DefaultMaxDepth,
	}

	for _, o := range opts {
		o(it)
	}

	if it.eval == nil {
		it.eval = coreEvaluator{}
	}
	if it.externals == nil {
		it.externals = noExternals{}
	}
	if it.log == nil {
		it.log = log.Default()
	}

	var arenaOpts []memory.ArenaOption[value.Value]
	if it.stackLimit > 0 {
		arenaOpts = append(arenaOpts, memory.WithLimit[value.Value](it.stackLimit))
	}
	it.calls = newCallStack(memory.NewArena(memory.Stack, arenaOpts...), it.maxDepth)

	return it
}

// Program returns the loaded program
func (i *Interpreter) Program() *ir.Program {
	return i.prog
}

// Load replaces the program and initializes it
func (i *Interpreter) Load(prog *ir.Program) error {
	i.prog = prog
	return i.InitializeProgram()
}

// Reset drops every frame and all stack memory, leaving globals untouched.
// It is how a host continues after a fatal error aborted an invocation.
func (i *Interpreter) Reset() {
	i.calls.reset()
	i.steps = 0
}

// InitializeProgram (re)builds global memory: storage for every global
// variable, an identity address for every function, then the initializers.
func (i *Interpreter) InitializeProgram() error {
	i.initialized = false
	i.Reset()
	i.image.reset()

	if i.prog == nil {
		return fmt.Errorf("no program loaded: %w", ErrNotInitialized)
	}

	// every address exists before any initializer runs, so initializers may
	// refer forward to other globals and to functions
	for _, g := range i.prog.Globals {
		if g.Type.IsVector() {
			return fmt.Errorf("global @%s of type %s: %w", g.Name, g.Type, ErrUnsupportedType)
		}
		if _, err := i.image.allocateGlobal(g); err != nil {
			return fmt.Errorf("global @%s: %w", g.Name, err)
		}
	}

	for _, fn := range i.prog.Functions {
		if _, err := i.image.allocateFunction(fn); err != nil {
			return fmt.Errorf("function @%s: %w", fn.Name, err)
		}
	}

	for _, g := range i.prog.Globals {
		if g.Init == nil {
			continue
		}
		v, err := i.eval.Constant(i, g.Init)
		if err != nil {
			return fmt.Errorf("initializer of @%s: %w", g.Name, err)
		}
		addr, _ := i.image.Address(g.Name)
		if err := i.image.mem.Write(addr, v); err != nil {
			return fmt.Errorf("initializer of @%s: %w", g.Name, err)
		}
	}

	i.initialized = true
	i.log.Debug("program initialized", "globals", len(i.prog.Globals), "functions", len(i.prog.Functions), "bytes", i.image.InUse())
	return nil
}

// Invoke calls fn with args and returns its result. A function without a body
// is handed to the externals. Any error aborts the whole chain of calls; when
// the outermost Invoke fails the call stack is emptied.
func (i *Interpreter) Invoke(fn *ir.Function, args []value.Value) (value.Value, error) {
	if fn == nil {
		return value.Value{}, fmt.Errorf("invoke of nil function: %w", ErrNotCallable)
	}
	if !i.initialized {
		return value.Value{}, fmt.Errorf("invoke of @%s: %w", fn.Name, ErrNotInitialized)
	}

	fixed := len(fn.Params)
	if len(args) != fixed && !(len(args) > fixed && fn.Variadic) {
		return value.Value{}, fmt.Errorf("@%s takes %d arguments, got %d: %w", fn.Name, fixed, len(args), ErrArgCount)
	}

	if fn.IsDeclaration() {
		v, err := i.externals.CallExternal(fn, args)
		if err != nil {
			return value.Value{}, fmt.Errorf("external @%s: %w", fn.Name, err)
		}
		return v, nil
	}

	outermost := i.calls.depth() == 0

	frame, err := i.calls.push(fn)
	if err != nil {
		if outermost {
			i.Reset()
		}
		return value.Value{}, err
	}

	for k, p := range fn.Params {
		frame.Bind(p.Name, args[k])
	}
	frame.varargs = append(frame.varargs, args[fixed:]...)

	i.log.Debug("push frame", "fn", fn.Name, "depth", i.calls.depth(), "varargs", len(frame.varargs))

	v, err := i.run(frame)
	if err != nil && outermost {
		i.Reset()
	}
	return v, err
}

// RunEntryPoint invokes entry with no arguments and maps its result to a
// process exit code: 0 for a void result, the sign-extended integer otherwise.
// Process arguments are accepted but not yet passed to the program.
func (i *Interpreter) RunEntryPoint(entry *ir.Function, args []string) (int, error) {
	if len(args) > 0 {
		i.log.Debug("entry point arguments are not passed through", "count", len(args))
	}

	v, err := i.Invoke(entry, nil)
	if err != nil {
		return 0, err
	}
	if v.IsUndef() {
		return 0, nil
	}

	code, err := v.AsInt64()
	if err != nil {
		return 0, fmt.Errorf("result of @%s: %w", entry.Name, err)
	}
	return int(code), nil
}

// AllocateStack carves size bytes of stack memory owned by fr, which must be
// the current frame. The bytes are released when fr returns.
func (i *Interpreter) AllocateStack(fr *Frame, size uint64) (memory.Address, error) {
	return i.calls.allocate(fr, size)
}

// LoadAt reads the value stored at addr in whichever space it belongs to.
func (i *Interpreter) LoadAt(addr memory.Address) (value.Value, error) {
	if addr.Space == memory.Global {
		return i.image.mem.Read(addr)
	}
	return i.calls.mem.Read(addr)
}

// StoreAt writes v at addr in whichever space it belongs to.
func (i *Interpreter) StoreAt(addr memory.Address, v value.Value) error {
	if addr.Space == memory.Global {
		return i.image.mem.Write(addr, v)
	}
	return i.calls.mem.Write(addr, v)
}

// GlobalAddress returns the address of a global variable or function.
func (i *Interpreter) GlobalAddress(name string) (memory.Address, bool) {
	return i.image.Address(name)
}

// FunctionAt resolves a function address.
func (i *Interpreter) FunctionAt(addr memory.Address) (*ir.Function, bool) {
	return i.image.Function(addr)
}

// ReadGlobal returns the value stored in a global variable.
func (i *Interpreter) ReadGlobal(name string) (value.Value, error) {
	addr, ok := i.image.Address(name)
	if !ok {
		return value.Value{}, fmt.Errorf("@%s: %w", name, ErrUnknownGlobal)
	}
	return i.image.mem.Read(addr)
}

// Depth returns the number of live frames.
func (i *Interpreter) Depth() int {
	return i.calls.depth()
}

// StackInUse returns the bytes of stack memory held by live frames.
func (i *Interpreter) StackInUse() uint64 {
	return i.calls.mem.InUse()
}

// Steps returns the number of instructions executed since the last reset.
func (i *Interpreter) Steps() int {
	return i.steps
}

type noExternals struct{}

func (noExternals) CallExternal(fn *ir.Function, _ []value.Value) (value.Value, error) {
	return value.Value{}, fmt.Errorf("no host implementation for @%s: %w", fn.Name, ErrNotCallable)
}
