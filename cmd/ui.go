package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	brand  = color.New(color.FgHiCyan, color.Bold)
	subtle = color.New(color.FgHiBlack)
	good   = color.New(color.FgGreen)
	bad    = color.New(color.FgRed)
)

// done prints a one-line success summary
func done(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", good.Sprint("✓"), fmt.Sprintf(format, args...))
}
