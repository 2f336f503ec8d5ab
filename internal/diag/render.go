package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"cinder/internal/source"
)

// ColorMode selects how the renderer colorizes output.
type ColorMode uint8

const (
	// ColorAuto enables color only when the writer is a terminal.
	ColorAuto ColorMode = iota
	ColorOn
	ColorOff
)

// Renderer prints diagnostics to a writer, resolving spans against a
// FileSet when one is available.
type Renderer struct {
	Files *source.FileSet
	Mode  ColorMode
	IsTTY bool
}

func (r *Renderer) useColor() bool {
	switch r.Mode {
	case ColorOn:
		return true
	case ColorOff:
		return false
	default:
		return r.IsTTY
	}
}

func (r *Renderer) severityPrinter(sev Severity) *color.Color {
	var c *color.Color
	switch sev {
	case SevInfo:
		c = color.New(color.FgCyan)
	case SevWarning:
		c = color.New(color.FgYellow, color.Bold)
	case SevError:
		c = color.New(color.FgRed, color.Bold)
	default:
		c = color.New(color.FgMagenta, color.Bold)
	}
	if !r.useColor() {
		c.DisableColor()
	}
	return c
}

// Render writes one diagnostic.
func (r *Renderer) Render(w io.Writer, d Diagnostic) {
	sev := r.severityPrinter(d.Severity)
	loc := r.location(d.Primary)
	if loc != "" {
		fmt.Fprintf(w, "%s: %s [%s] %s\n", loc, sev.Sprint(d.Severity.String()), d.Code, d.Message)
	} else {
		fmt.Fprintf(w, "%s [%s] %s\n", sev.Sprint(d.Severity.String()), d.Code, d.Message)
	}
	for _, n := range d.Notes {
		noteLoc := r.location(n.Span)
		if noteLoc != "" {
			fmt.Fprintf(w, "  note: %s: %s\n", noteLoc, n.Msg)
		} else {
			fmt.Fprintf(w, "  note: %s\n", n.Msg)
		}
	}
}

// RenderBag sorts, dedups, and writes every diagnostic in the bag.
func (r *Renderer) RenderBag(w io.Writer, bag *Bag) {
	if bag == nil {
		return
	}
	bag.Sort()
	bag.Dedup()
	for _, d := range bag.Items() {
		r.Render(w, d)
	}
}

func (r *Renderer) location(sp source.Span) string {
	if r.Files == nil || sp.Empty() && sp.File == 0 && sp.Start == 0 {
		return ""
	}
	f := r.Files.Get(sp.File)
	if f == nil {
		return ""
	}
	start, _ := r.Files.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", f.Path, start.Line, start.Col)
}
