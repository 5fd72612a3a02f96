package snvindex

import (
	"fmt"
	"os"
)

// Verbose gates Vprint/Vprintf/Vprintln output, mirroring the donor's
// package-level verbosity switch rather than threading a logger handle
// through every call.
var Verbose = false

func Vprint(a ...any) {
	if !Verbose {
		return
	}
	fmt.Fprint(os.Stderr, a...)
}

func Vprintf(format string, a ...any) {
	if !Verbose {
		return
	}
	fmt.Fprintf(os.Stderr, format, a...)
}

func Vprintln(a ...any) {
	if !Verbose {
		return
	}
	fmt.Fprintln(os.Stderr, a...)
}
