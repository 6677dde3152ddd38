// Package logging provides leveled, colorized logging for the ingest
// engine's control-plane code. Hot-path (per-lcore) code should only log
// at V(2) or above, since formatting cost on the poll loop is the kind
// of allocation the engine is otherwise designed to avoid.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/viper"
)

var (
	Stderr = NewPrinter(os.Stderr)
	Stdout = NewPrinter(os.Stdout)
	Color  = aurora.NewAurora(true)
)

func Infof(f string, args ...interface{})    { Stderr.Infof(f, args...) }
func Warningf(f string, args ...interface{}) { Stderr.Warningf(f, args...) }
func Errorf(f string, args ...interface{})   { Stderr.Errorf(f, args...) }
func Debugf(f string, args ...interface{})   { Stderr.Debugf(f, args...) }
func V(level int) Printer                    { return Stderr.V(level) }

// Printer is the logging surface used throughout the engine. It mirrors
// the shape of fmt's formatted printers but tags each line with a level
// and gates debug/verbose output on viper-bound flags, so the same
// binary flags ("--debug", "--verbose-level") that cmd/ingestd exposes control
// every package's logging without plumbing a logger instance through
// every constructor.
type Printer interface {
	Infof(f string, args ...interface{})
	Warningf(f string, args ...interface{})
	Errorf(f string, args ...interface{})
	Debugf(f string, args ...interface{})
	V(level int) Printer
}

type printer struct {
	out io.Writer
}

func NewPrinter(out io.Writer) Printer {
	return printer{out: out}
}

func (p printer) Infof(f string, args ...interface{}) {
	fmt.Fprint(p.out, Color.Blue("[INFO] ").String())
	fmt.Fprintf(p.out, f, args...)
}

func (p printer) Warningf(f string, args ...interface{}) {
	fmt.Fprint(p.out, Color.Yellow("[WARN] ").String())
	fmt.Fprintf(p.out, f, args...)
}

func (p printer) Errorf(f string, args ...interface{}) {
	fmt.Fprint(p.out, Color.Red("[ERROR] ").String())
	fmt.Fprintf(p.out, f, args...)
}

func (p printer) Debugf(f string, args ...interface{}) {
	if viper.GetBool("debug") {
		fmt.Fprint(p.out, Color.Magenta("[DEBUG] ").String())
		fmt.Fprintf(p.out, f, args...)
	}
}

// V returns a Printer that only emits output when the configured
// "verbose-level" is at least level, matching the teacher's verbosity
// gating in printer.V.
func (p printer) V(level int) Printer {
	if l := viper.GetInt("verbose-level"); l > 0 && l >= level {
		return p
	}
	return noop{}
}

type noop struct{}

func (noop) Infof(string, ...interface{})    {}
func (noop) Warningf(string, ...interface{}) {}
func (noop) Errorf(string, ...interface{})   {}
func (noop) Debugf(string, ...interface{})   {}
func (n noop) V(int) Printer                 { return n }
