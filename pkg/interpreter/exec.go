package interpreter

import (
	"fmt"

	"irvm/pkg/ir"
	"irvm/pkg/value"
)

// phiUpdate is a merge result waiting to be committed.
type phiUpdate struct {
	name string
	v    value.Value
}

// run executes fr's function from its entry block until a return, which pops
// fr before run returns.
func (i *Interpreter) run(fr *Frame) (value.Value, error) {
	fr.block = fr.fn.Entry()

	for {
		block := fr.block

		for _, in := range block.Instrs {
			if err := i.step(); err != nil {
				return value.Value{}, i.fault(fr, err)
			}
			if err := i.eval.Execute(i, fr, in); err != nil {
				return value.Value{}, i.fault(fr, fmt.Errorf("%s: %w", in, err))
			}
		}

		if err := i.step(); err != nil {
			return value.Value{}, i.fault(fr, err)
		}

		next, ret, done, err := i.terminate(fr, block)
		if err != nil {
			return value.Value{}, i.fault(fr, err)
		}
		if done {
			return ret, nil
		}

		if err := i.enterBlock(fr, block, next); err != nil {
			return value.Value{}, i.fault(fr, err)
		}
	}
}

// terminate dispatches on the block's terminator. It returns either the next
// block, or done with the function's result after the frame has been popped.
func (i *Interpreter) terminate(fr *Frame, block *ir.Block) (next *ir.Block, ret value.Value, done bool, err error) {
	var dest string

	switch t := block.Term.(type) {
	case ir.Br:
		dest = t.Dest

	case ir.CondBr:
		cond, err := i.eval.Operand(i, fr, t.Cond)
		if err != nil {
			return nil, ret, false, err
		}
		truth, err := cond.Truth()
		if err != nil {
			return nil, ret, false, fmt.Errorf("%s: %w", t, err)
		}
		dest = t.False
		if truth {
			dest = t.True
		}

	case ir.Switch:
		sel, err := i.eval.Operand(i, fr, t.Selector)
		if err != nil {
			return nil, ret, false, err
		}
		n, err := sel.AsInt64()
		if err != nil {
			return nil, ret, false, fmt.Errorf("%s: %w", t, err)
		}
		dest = t.Default
		for _, c := range t.Cases {
			if caseMatches(c.Value, sel.Bits, n) {
				dest = c.Dest
				break
			}
		}

	case ir.Ret:
		// the returned operand may read the returning frame, so evaluate
		// before popping
		if t.Value != nil {
			ret, err = i.eval.Operand(i, fr, *t.Value)
			if err != nil {
				return nil, ret, false, err
			}
		}
		if err := i.calls.pop(); err != nil {
			return nil, ret, false, err
		}
		i.log.Debug("pop frame", "fn", fr.fn.Name, "depth", i.calls.depth(), "result", ret)
		return nil, ret, true, nil

	case ir.Unsupported:
		if t.Op == "unreachable" {
			return nil, ret, false, ErrUnreachable
		}
		return nil, ret, false, fmt.Errorf("%s: %w", t.Op, ErrUnsupportedTerminator)

	default:
		return nil, ret, false, fmt.Errorf("%T: %w", t, ErrUnsupportedTerminator)
	}

	next, ok := fr.fn.Block(dest)
	if !ok {
		return nil, ret, false, fmt.Errorf("%%%s: %w", dest, ErrUnknownBlock)
	}
	return next, ret, false, nil
}

// enterBlock moves fr from prev to next and resolves next's phis. All
// incoming values are evaluated against the bindings as they were on leaving
// prev, and only then committed, so sibling phis update simultaneously.
func (i *Interpreter) enterBlock(fr *Frame, prev, next *ir.Block) error {
	if i.trace {
		i.log.Debug("branch", "fn", fr.fn.Name, "from", prev.Name, "to", next.Name, "depth", i.calls.depth())
	}

	updates := make([]phiUpdate, 0, len(next.Phis))
	for _, phi := range next.Phis {
		op, ok := phi.IncomingFor(prev.Name)
		if !ok {
			return fmt.Errorf("%%%s from %%%s: %w", phi.Result, prev.Name, ErrMissingIncoming)
		}
		v, err := i.eval.Operand(i, fr, op)
		if err != nil {
			return fmt.Errorf("%s: %w", phi, err)
		}
		updates = append(updates, phiUpdate{name: phi.Result, v: v})
	}

	for _, u := range updates {
		fr.Bind(u.name, u.v)
	}

	fr.block = next
	return nil
}

// step counts one executed instruction against the step budget.
func (i *Interpreter) step() error {
	if i.maxSteps > 0 && i.steps >= i.maxSteps {
		return ErrMaxStepsExceeded
	}
	i.steps++
	return nil
}

// fault attaches the failing location to err.
func (i *Interpreter) fault(fr *Frame, err error) error {
	return fmt.Errorf("@%s %%%s: %w", fr.fn.Name, fr.block.Name, err)
}

// caseMatches compares a switch case constant with a selector of the given
// width. The constant may be written signed or unsigned (i8 255 is i8 -1); a
// constant outside the width never matches.
func caseMatches(c int64, bits int, sel int64) bool {
	if bits < 64 {
		lo, hi := -int64(1)<<(bits-1), int64(1)<<bits-1
		if c < lo || c > hi {
			return false
		}
	}
	return value.SignExtend(c, bits) == sel
}
