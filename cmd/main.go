package main

import (
	"flag"
	"fmt"
	"irvm/internal/logger"
	"irvm/internal/runner"
	"irvm/pkg/color"
	"irvm/pkg/interpreter"
	"os"

	"github.com/charmbracelet/log"
)

// Main entry point for the irvm interpreter.
func main() {
	options := runner.Runner{}

	flag.BoolVar(&options.Help, "h", false, "Show help")
	flag.BoolVar(&options.Verbose, "v", false, "Verbose mode")
	flag.BoolVar(&options.NoColor, "n", false, "No color")
	flag.StringVar(&options.Entry, "e", "main", "Entry function")
	flag.IntVar(&options.MaxDepth, "d", interpreter.DefaultMaxDepth, "Maximum call depth (0 = unlimited)")
	flag.IntVar(&options.MaxSteps, "s", 0, "Maximum executed instructions (0 = unlimited)")
	flag.BoolVar(&options.Trace, "t", false, "Trace block transitions (implies -v)")
	flag.BoolVar(&options.Interactive, "r", false, "Interactive REPL")

	flag.Parse()
	args := flag.Args()

	logger.Init(options.Verbose || options.Trace, options.NoColor)
	if options.Help {
		fmt.Printf("Usage: %s [options] <program.yaml> [args...]\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
		return
	}

	if options.NoColor {
		color.EnableColor(false)
	}

	if len(args) == 0 {
		log.Fatal("No program file provided", "help", fmt.Sprintf("%s -h", os.Args[0]))
	}

	options.ProgramFile = args[0]
	options.Args = args[1:]

	code, err := options.Run()
	if err != nil {
		log.Fatal("Run failed", "error", err)
	}
	os.Exit(code)
}
