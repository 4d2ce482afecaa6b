package runner

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"irvm/pkg/color"
	"irvm/pkg/host"
	"irvm/pkg/interpreter"
	"irvm/pkg/ir"
	"irvm/pkg/loader"
)

type Runner struct {
	Help        bool     // Show help message
	Verbose     bool     // Debug logs and a dump of the loaded program
	NoColor     bool     // Disable colored output
	Interactive bool     // Open a REPL instead of running the entry point
	Trace       bool     // Log every block transition
	Entry       string   // Name of the entry function
	MaxDepth    int      // Call depth limit (0 = unlimited)
	MaxSteps    int      // Executed instruction limit (0 = unlimited)
	ProgramFile string   // Path to the YAML program
	Args        []string // Arguments after the program file

	Out io.Writer // Program and dump output, stdout when nil
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

// Run loads the program, initializes it and either runs the entry function,
// returning its exit code, or hands control to the REPL.
func (r *Runner) Run() (int, error) {
	log.Info("Loading program", "file", r.ProgramFile)

	prog, err := loader.LoadFile(r.ProgramFile)
	if err != nil {
		return 0, err
	}

	if r.Verbose {
		fmt.Fprintln(r.out(), color.GreenText("=== Loaded Program ==="))
		Dump(r.out(), prog)
	}

	it := r.newInterpreter(prog)
	if err := it.InitializeProgram(); err != nil {
		return 0, fmt.Errorf("initialization failed: %w", err)
	}

	if r.Interactive {
		return 0, r.repl(it)
	}

	entry, ok := prog.Function(r.Entry)
	if !ok {
		return 0, fmt.Errorf("entry function @%s not found", r.Entry)
	}

	if r.Verbose {
		fmt.Fprintln(r.out(), color.GreenText("\n=== Program Output ==="))
	}

	code, err := it.RunEntryPoint(entry, append([]string{r.ProgramFile}, r.Args...))
	if err != nil {
		return 0, fmt.Errorf("execution failed: %w", err)
	}

	log.Debug("Program finished", "code", code, "steps", it.Steps())
	return code, nil
}

func (r *Runner) newInterpreter(prog *ir.Program) *interpreter.Interpreter {
	return interpreter.NewInterpreter(prog,
		interpreter.WithExternals(host.NewRegistry(host.WithWriter(r.out()))),
		interpreter.WithLogger(log.Default()),
		interpreter.WithTrace(r.Trace),
		interpreter.WithMaxDepth(r.MaxDepth),
		interpreter.WithMaxSteps(r.MaxSteps),
	)
}
