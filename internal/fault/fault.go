// Package fault carries unrecoverable invariant violations from the pipeline
// core to a single top-level handler.
//
// Code running in interrupt context cannot log, sleep or unwind. It builds a
// *Fault that records where the check failed and hands it to a Halter, which
// decides whether the process stops or only logs.
package fault

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// ErrRequire is wrapped by faults produced from a failed Require.
var ErrRequire = errors.New("requirement failed")

// Fault is a fatal invariant violation with the location that detected it.
type Fault struct {
	Op   string
	File string
	Line int
	Err  error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s at %s:%d: %v", f.Op, f.File, f.Line, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Location returns "file:line" of the failing check.
func (f *Fault) Location() string {
	return fmt.Sprintf("%s:%d", f.File, f.Line)
}

// Require returns nil when cond holds, otherwise a Fault located at the caller.
func Require(cond bool, op string) error {
	if cond {
		return nil
	}
	return newFault(op, ErrRequire, 2)
}

// Wrap turns a non-nil collaborator error into a Fault located at the caller.
// A nil err yields nil. An err that already is a Fault keeps its location.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return err
	}
	return newFault(op, err, 2)
}

func newFault(op string, err error, skip int) *Fault {
	f := &Fault{Op: op, Err: err, File: "???"}
	if _, file, line, ok := runtime.Caller(skip); ok {
		f.File = filepath.Base(file)
		f.Line = line
	}
	return f
}

// As extracts the Fault from err, if any.
func As(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
