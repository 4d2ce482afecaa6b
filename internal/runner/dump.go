package runner

import (
	"fmt"
	"io"

	"irvm/pkg/color"
	"irvm/pkg/ir"
)

// Dump writes a colored listing of prog in textual IR form.
func Dump(w io.Writer, prog *ir.Program) {
	if len(prog.Globals) == 0 && len(prog.Functions) == 0 {
		fmt.Fprintln(w, color.GrayText("empty program"))
		return
	}

	for _, g := range prog.Globals {
		initial := "undef"
		if g.Init != nil {
			initial = g.Init.String()
		}
		fmt.Fprintf(w, "%s = global %s %s\n",
			color.YellowText("@"+g.Name),
			color.BlueText(g.Type.String()),
			initial)
	}
	if len(prog.Globals) > 0 {
		fmt.Fprintln(w)
	}

	for _, fn := range prog.Functions {
		if fn.IsDeclaration() {
			fmt.Fprintln(w, color.GrayText(fn.Signature()))
			continue
		}

		fmt.Fprintln(w, color.BoldText(fn.Signature())+" {")
		for _, b := range fn.Blocks {
			fmt.Fprintln(w, color.CyanText(b.Name+":"))
			for _, phi := range b.Phis {
				fmt.Fprintf(w, "  %s\n", phi)
			}
			for _, in := range b.Instrs {
				fmt.Fprintf(w, "  %s\n", in)
			}
			fmt.Fprintf(w, "  %s\n", color.MagentaText(b.Term.String()))
		}
		fmt.Fprintln(w, "}")
	}
}
