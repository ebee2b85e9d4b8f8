// Package render prints previews, batch results and verification reports.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/ukaji3/certissue-go/internal/config"
)

// NotUploaded marks a record without an attached image.
const NotUploaded = "未上传"

// Printer writes reports to one destination in one format.
type Printer struct {
	w      io.Writer
	format string
	width  int
	r      *lipgloss.Renderer

	title   lipgloss.Style
	ok      lipgloss.Style
	bad     lipgloss.Style
	muted   lipgloss.Style
	header  lipgloss.Style
	missing lipgloss.Style
}

// New creates a printer. An empty format means table output.
func New(w io.Writer, format string) (*Printer, error) {
	switch format {
	case "":
		format = config.FormatTable
	case config.FormatTable, config.FormatJSON, config.FormatYAML:
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}

	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		format:  format,
		width:   terminalWidth(w),
		r:       r,
		title:   r.NewStyle().Bold(true),
		ok:      r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		bad:     r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("245")),
		header:  r.NewStyle().Bold(true).Padding(0, 1),
		missing: r.NewStyle().Foreground(lipgloss.Color("214")),
	}, nil
}

// Format returns the output format.
func (p *Printer) Format() string {
	return p.format
}

// terminalWidth returns the width of w when it is a terminal, 0 otherwise.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// structured writes v as JSON or YAML.
func (p *Printer) structured(v any) error {
	switch p.format {
	case config.FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case config.FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("format %q is not structured", p.format)
}

func (p *Printer) println(s string) error {
	_, err := fmt.Fprintln(p.w, s)
	return err
}
