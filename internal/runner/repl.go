package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/peterh/liner"

	"irvm/pkg/color"
	"irvm/pkg/interpreter"
	"irvm/pkg/ir"
	"irvm/pkg/value"
)

const (
	historyFile = ".irvm_history"
	prompt      = "irvm> "
)

var commands = []string{":funcs", ":globals", ":help", ":quit", ":reset"}

var errUnknownCommand = errors.New("unknown command, type :help")

func (r *Runner) repl(it *interpreter.Interpreter) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	ln.SetCompleter(func(line string) []string {
		return complete(it.Program(), line)
	})

	fmt.Fprintln(r.out(), color.GreenText("irvm")+" "+color.GrayText(r.ProgramFile+", type :help for commands"))

	for {
		line, err := ln.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out())
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)

		quit, err := r.evalLine(it, line)
		if err != nil {
			fmt.Fprintln(os.Stderr, color.Error(err.Error()))
			continue
		}
		if quit {
			return nil
		}
	}
}

// evalLine runs one REPL line: a command or `fn arg...`.
func (r *Runner) evalLine(it *interpreter.Interpreter, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	out := r.out()
	prog := it.Program()

	switch fields[0] {
	case ":quit", ":q":
		return true, nil

	case ":help":
		fmt.Fprintln(out, "fn arg...   invoke a function, arguments typed by its parameters")
		fmt.Fprintln(out, ":funcs      list functions")
		fmt.Fprintln(out, ":globals    show global variables")
		fmt.Fprintln(out, ":reset      reinitialize globals")
		fmt.Fprintln(out, ":quit       exit")
		return false, nil

	case ":funcs":
		for _, fn := range prog.Functions {
			fmt.Fprintln(out, fn.Signature())
		}
		return false, nil

	case ":globals":
		for _, g := range prog.Globals {
			v, err := it.ReadGlobal(g.Name)
			if err != nil {
				return false, err
			}
			fmt.Fprintf(out, "%s = %s\n", color.YellowText("@"+g.Name), v)
		}
		return false, nil

	case ":reset":
		if err := it.InitializeProgram(); err != nil {
			return false, err
		}
		fmt.Fprintln(out, color.GrayText("globals reinitialized"))
		return false, nil
	}

	if strings.HasPrefix(fields[0], ":") {
		return false, fmt.Errorf("%s: %w", fields[0], errUnknownCommand)
	}

	fn, ok := prog.Function(strings.TrimPrefix(fields[0], "@"))
	if !ok {
		return false, fmt.Errorf("no function @%s", strings.TrimPrefix(fields[0], "@"))
	}

	args, err := parseArgs(it, fn, fields[1:])
	if err != nil {
		return false, err
	}

	v, err := it.Invoke(fn, args)
	if err != nil {
		return false, err
	}
	log.Debug("call finished", "fn", fn.Name, "steps", it.Steps())

	if fn.RetType != nil && fn.RetType.Kind != ir.VoidType {
		fmt.Fprintln(out, color.YellowText(v.String()))
	}
	return false, nil
}

// parseArgs types each literal by the matching parameter; variadic extras are
// i64 unless they look like a float.
func parseArgs(it *interpreter.Interpreter, fn *ir.Function, lits []string) ([]value.Value, error) {
	eval := interpreter.DefaultEvaluator()

	args := make([]value.Value, 0, len(lits))
	for k, lit := range lits {
		src := lit
		if lit != "null" && lit != "undef" && !strings.HasPrefix(lit, "@") {
			var t string
			switch {
			case k < len(fn.Params):
				t = fn.Params[k].Type.String()
			case isFloatLiteral(lit):
				t = "double"
			default:
				t = "i64"
			}
			src = t + " " + lit
		}

		c, err := ir.ParseConstant(src)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", k, err)
		}
		v, err := eval.Constant(it, c)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", k, err)
		}
		args = append(args, v)
	}
	return args, nil
}

func isFloatLiteral(lit string) bool {
	if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "-0x") {
		return false
	}
	return strings.ContainsAny(lit, ".eE") || lit == "inf" || lit == "nan"
}

// complete offers commands and function names for the word being typed.
func complete(prog *ir.Program, line string) []string {
	var out []string
	if strings.HasPrefix(line, ":") {
		for _, c := range commands {
			if strings.HasPrefix(c, line) {
				out = append(out, c)
			}
		}
		return out
	}
	for _, fn := range prog.Functions {
		if strings.HasPrefix(fn.Name, line) {
			out = append(out, fn.Name)
		}
	}
	return out
}
