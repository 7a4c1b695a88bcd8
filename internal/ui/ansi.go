package ui

import (
	"fmt"
	"io"
	"os"
)

var (
	reset = "\033[0m"
	bold  = "\033[1m"
	dim   = "\033[2m"

	fgGray    = "\033[90m"
	fgGreen   = "\033[32m"
	fgYellow  = "\033[33m"
	fgBlue    = "\033[34m"
	fgRed     = "\033[31m"
	fgMagenta = "\033[35m"

	symCheck = "✔"
	symCross = "✖"
	symInfo  = "•"
)

var (
	forceColor   bool
	disableColor bool

	// Out and Err receive one-shot output; tests swap them.
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr
)

func SetColorForcing(force, disable bool) {
	forceColor = force
	disableColor = disable
}

func isTTY() bool {
	f, ok := Out.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// C wraps s in color when the output is a terminal (or color is forced).
func C(color, s string) string {
	if disableColor || color == "" {
		return s
	}
	if forceColor || isTTY() {
		return color + s + reset
	}
	return s
}

func OK(msg string)   { fmt.Fprintln(Out, C(Current().Success, symCheck+" "+msg)) }
func Info(msg string) { fmt.Fprintln(Out, C(Current().Muted, symInfo+" "+msg)) }
func Fail(msg string) { fmt.Fprintln(Err, C(Current().Error, symCross+" "+msg)) }
