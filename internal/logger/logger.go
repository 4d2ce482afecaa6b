package logger

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// Init configures the process-wide logger. Debug output (frame and block
// tracing included) is only shown when verbose is set.
func Init(verbose, noColor bool) {
	Setup(os.Stderr, verbose, noColor)
}

// Setup installs a default logger writing to w.
func Setup(w io.Writer, verbose, noColor bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportCaller:    verbose,
		ReportTimestamp: false,
		Prefix:          "IRVM",
	})

	l.SetLevel(log.WarnLevel)
	if verbose {
		l.SetLevel(log.DebugLevel)
	}

	l.SetColorProfile(termenv.ANSI256)
	if noColor {
		l.SetColorProfile(termenv.Ascii)
	}

	log.SetDefault(l)
	return l
}
