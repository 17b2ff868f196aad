// Package output renders command results and errors for the depot CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format selects how results are written.
type Format string

// Output formats. Auto resolves to text on a terminal and JSON otherwise.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatAuto Format = "auto"
)

// Formatter writes results to one destination in one format.
type Formatter struct {
	format Format
	writer io.Writer
}

// NewFormatter returns a Formatter writing format to w.
func NewFormatter(format Format, w io.Writer) *Formatter {
	return &Formatter{format: format, writer: w}
}

// Format reports the resolved format.
func (f *Formatter) Format() Format { return f.format }

// IsJSON reports whether results are written as JSON.
func (f *Formatter) IsJSON() bool { return f.format == FormatJSON }

// TextRenderer is implemented by results with their own text layout.
type TextRenderer interface {
	RenderText(w io.Writer) error
}

// Print writes v as indented JSON or as text. In text mode a TextRenderer
// lays itself out and anything else is printed on one line.
func (f *Formatter) Print(v any) error {
	if f.IsJSON() {
		enc := json.NewEncoder(f.writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	if r, ok := v.(TextRenderer); ok {
		return r.RenderText(f.writer)
	}
	_, err := fmt.Fprintln(f.writer, v)
	return err
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w any) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd())) //nolint:gosec // G115: descriptor fits in int
}

// DetectFormat resolves FormatAuto (or an empty format) against w.
func DetectFormat(w io.Writer, explicit Format) Format {
	switch {
	case explicit != "" && explicit != FormatAuto:
		return explicit
	case IsTerminal(w):
		return FormatText
	default:
		return FormatJSON
	}
}

// ParseFormat maps a flag or config value to a Format. Unknown values are auto.
func ParseFormat(s string) Format {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatText:
		return f
	default:
		return FormatAuto
	}
}
