package host

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"irvm/pkg/ir"
	"irvm/pkg/value"
)

var ErrUnknownFunction = errors.New("no host function with that name")

// Func implements a declared-only function. args holds every argument of the
// call in call-site order, variadic ones included.
type Func func(r *Registry, args []value.Value) (value.Value, error)

// Registry maps declared function names to Go implementations.
type Registry struct {
	funcs map[string]Func
	out   io.Writer
}

type Option func(*Registry)

// WithWriter sets the output writer for the printing builtins
func WithWriter(w io.Writer) Option {
	return func(r *Registry) { r.out = w }
}

// NewRegistry creates a registry preloaded with the builtins.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
		out:   os.Stdout,
	}
	for _, o := range opts {
		o(r)
	}

	r.Register("putchar", putchar)
	r.Register("print_i64", printInt)
	r.Register("print_f64", printFloat)
	r.Register("print_all", printAll)
	r.Register("abs", abs(32))
	r.Register("labs", abs(64))

	return r
}

// Register installs fn under name, replacing any previous implementation.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Output returns the writer used by the printing builtins.
func (r *Registry) Output() io.Writer {
	return r.out
}

// CallExternal runs the implementation registered for fn.
func (r *Registry) CallExternal(fn *ir.Function, args []value.Value) (value.Value, error) {
	impl, ok := r.funcs[fn.Name]
	if !ok {
		return value.Value{}, fmt.Errorf("@%s: %w", fn.Name, ErrUnknownFunction)
	}
	return impl(r, args)
}

func arg(args []value.Value, n int) (value.Value, error) {
	if n >= len(args) {
		return value.Value{}, fmt.Errorf("missing argument %d", n)
	}
	return args[n], nil
}

func putchar(r *Registry, args []value.Value) (value.Value, error) {
	v, err := arg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	c, err := v.AsInt64()
	if err != nil {
		return value.Value{}, err
	}
	if _, err := r.out.Write([]byte{byte(c)}); err != nil {
		return value.Value{}, err
	}
	return value.Int(32, c&0xff), nil
}

func printInt(r *Registry, args []value.Value) (value.Value, error) {
	v, err := arg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	i, err := v.AsInt64()
	if err != nil {
		return value.Value{}, err
	}
	fmt.Fprintf(r.out, "%d\n", i)
	return value.Undef(), nil
}

func printFloat(r *Registry, args []value.Value) (value.Value, error) {
	v, err := arg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	f, err := v.AsFloat64()
	if err != nil {
		return value.Value{}, err
	}
	fmt.Fprintf(r.out, "%g\n", f)
	return value.Undef(), nil
}

// printAll prints every argument on one line and returns how many it printed.
func printAll(r *Registry, args []value.Value) (value.Value, error) {
	parts := make([]string, len(args))
	for k, v := range args {
		switch v.Kind {
		case value.KindInt:
			parts[k] = fmt.Sprintf("%d", v.I64)
		case value.KindFloat:
			parts[k] = fmt.Sprintf("%g", v.F64)
		default:
			parts[k] = v.String()
		}
	}
	fmt.Fprintln(r.out, strings.Join(parts, " "))
	return value.Int(32, int64(len(args))), nil
}

func abs(bits int) Func {
	return func(_ *Registry, args []value.Value) (value.Value, error) {
		v, err := arg(args, 0)
		if err != nil {
			return value.Value{}, err
		}
		i, err := v.AsInt64()
		if err != nil {
			return value.Value{}, err
		}
		if i < 0 {
			i = -i
		}
		return value.Int(bits, i), nil
	}
}
