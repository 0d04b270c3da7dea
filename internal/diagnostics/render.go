package diagnostics

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	ansiRed   = "\x1b[31m"
	ansiBold  = "\x1b[1m"
	ansiReset = "\x1b[0m"
)

type fdWriter interface {
	Fd() uintptr
}

func useColor(w io.Writer) bool {
	f, ok := w.(fdWriter)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// Render writes the diagnostics to w in human-readable form, quoting the
// offending source line with a caret under the reported column. Headings
// are coloured when w is a terminal.
func Render(w io.Writer, src string, errs []*Error) {
	lines := strings.Split(src, "\n")
	color := useColor(w)

	for _, e := range errs {
		heading := fmt.Sprintf("error[%s]", e.Code)
		if color {
			heading = ansiBold + ansiRed + heading + ansiReset
		}
		fmt.Fprintf(w, "%s: %s\n", heading, e.Message)
		fmt.Fprintf(w, "  --> %d:%d\n", e.Line, e.Column)

		if e.Line >= 1 && e.Line <= len(lines) {
			srcLine := lines[e.Line-1]
			fmt.Fprintf(w, "   | %s\n", srcLine)
			if e.Column >= 1 {
				pad := caretPad(srcLine, e.Column)
				fmt.Fprintf(w, "   | %s^\n", pad)
			}
		}
	}
}

// caretPad builds the whitespace run preceding the caret, preserving tabs
// so the caret lines up under tab-indented code.
func caretPad(srcLine string, column int) string {
	var sb strings.Builder
	for i, r := range srcLine {
		if i >= column-1 {
			break
		}
		if r == '\t' {
			sb.WriteByte('\t')
		} else {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}
