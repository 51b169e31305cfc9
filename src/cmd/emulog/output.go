// FILE: src/cmd/emulog/output.go
package main

import (
	"fmt"
	"io"
	"os"
)

// Console output of the CLI itself, silenced by --quiet
type outputHandler struct {
	quiet  bool
	stdout io.Writer
	stderr io.Writer
}

var output = &outputHandler{stdout: os.Stdout, stderr: os.Stderr}

func initOutput(quiet bool) {
	output.quiet = quiet
}

func Print(format string, args ...any) {
	if !output.quiet {
		fmt.Fprintf(output.stdout, format, args...)
	}
}

func Error(format string, args ...any) {
	if !output.quiet {
		fmt.Fprintf(output.stderr, format, args...)
	}
}

func FatalError(code int, format string, args ...any) {
	Error(format, args...)
	os.Exit(code)
}
