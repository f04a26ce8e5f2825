package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/itsatony/go-blade"
	"golang.org/x/term"
)

// printer writes diagnostics, in colour when the target is a terminal.
type printer struct {
	w     io.Writer
	err   *color.Color
	path  *color.Color
	frame *color.Color
}

func newPrinter(w io.Writer) *printer {
	p := &printer{
		w:     w,
		err:   color.New(color.FgRed, color.Bold),
		path:  color.New(color.FgYellow, color.Bold),
		frame: color.New(color.Faint),
	}
	if isTerminal(w) {
		p.err.EnableColor()
		p.path.EnableColor()
		p.frame.EnableColor()
	} else {
		p.err.DisableColor()
		p.path.DisableColor()
		p.frame.DisableColor()
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printError prints err, expanding execution failures into their trace.
func (p *printer) printError(err error) {
	p.err.Fprint(p.w, FmtErrorPrefix)

	var execErr *blade.ExecutionError
	if !errors.As(err, &execErr) {
		fmt.Fprintln(p.w, err.Error())
		return
	}

	t := execErr.Trace
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		fmt.Fprintf(p.w, "%s: ", exitErr.msg)
	}
	p.path.Fprintf(p.w, "%s:%d", t.Path, t.Line)
	fmt.Fprintf(p.w, ": %s\n", t.Message)
	for _, f := range t.Frames {
		p.frame.Fprintf(p.w, FmtTraceFrame, f.Call, f.File, f.Line)
	}
}

// printLocation prints a resolved line followed by its enclosing blocks.
func (p *printer) printLocation(loc blade.Location) {
	path := loc.Path
	if path == "" {
		path = RootPathLabel
	}
	p.path.Fprintf(p.w, FmtLocation, path, loc.Line)
	for _, f := range loc.Frames {
		file := f.File
		if file == "" {
			file = RootPathLabel
		}
		p.frame.Fprintf(p.w, FmtLocationFrame, f.Call, file, f.Line)
	}
}
