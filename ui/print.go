package ui

import (
	"fmt"
	"io"
)

// Greenf prints a light green message.
func Greenf(w io.Writer, format string, a ...interface{}) {
	fmt.Fprint(w, "\033[92m")
	fmt.Fprintf(w, format, a...)
	fmt.Fprint(w, "\033[0m")
}

// Warningf prints a bright yellow/orange warning.
func Warningf(w io.Writer, format string, a ...interface{}) {
	fmt.Fprint(w, "\033[93m")
	fmt.Fprintf(w, format, a...)
	fmt.Fprint(w, "\033[0m")
}

// ClearScreen clears the terminal screen.
func ClearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[2J\033[1;1H")
}
