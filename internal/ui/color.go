// Package ui provides colored console output for operators.
package ui

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

var (
	// Colors
	Red    = color.New(color.FgRed)
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Blue   = color.New(color.FgBlue)
	Bold   = color.New(color.Bold)
)

// DisableColor turns off color for all output.
func DisableColor() {
	color.NoColor = true
}

// Printer writes operator messages to one writer.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{out: w}
}

// Success prints a green success message with checkmark.
func (p *Printer) Success(format string, args ...any) {
	Green.Fprintf(p.out, "✓ "+format+"\n", args...)
}

// Error prints a red error message with X.
func (p *Printer) Error(format string, args ...any) {
	Red.Fprintf(p.out, "✗ "+format+"\n", args...)
}

// Warning prints a yellow warning message.
func (p *Printer) Warning(format string, args ...any) {
	Yellow.Fprintf(p.out, "⚠ "+format+"\n", args...)
}

// Info prints a blue info message.
func (p *Printer) Info(format string, args ...any) {
	Blue.Fprintf(p.out, format+"\n", args...)
}

// Header prints a bold header.
func (p *Printer) Header(format string, args ...any) {
	Bold.Fprintf(p.out, format+"\n", args...)
}

// Println prints plain text.
func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

// Printf prints plain formatted text.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// Size formats a byte count for humans, e.g. "1.2 kB".
func Size(n int) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
