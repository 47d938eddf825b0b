// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package errors provides a standard error definition for use in
// mfnet. Each error is assigned a class of error (kind) and an
// operation with optional arguments. Errors may be chained, and thus
// can be used to annotate upstream errors.
//
// The evaluation core distinguishes between two classes of failure.
// Contract violations (reading a value that was never computed,
// finishing an input twice, mismatched socket types) indicate a
// defect in the engine or in the graph builder; these are raised with
// Panic and are never returned. Everything else (invalid network
// descriptions, bad configuration, failing function bodies) is
// returned as an *Error constructed by E.
//
// Package errors provides functions Errorf and New as convenience
// constructors, so that users need import only one error package.
package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/grailbio/base/digest"
	"github.com/grailbio/mfnet/log"
)

// Separator is inserted between chained errors while rendering.
var Separator = ":\n\t"

// Kind denotes the type of the error. The error's kind is used to
// render the error message and also for interpretation.
type Kind int

const (
	// Other denotes an unknown error.
	Other Kind = iota
	// Canceled denotes a cancellation error.
	Canceled
	// NotExist denotes an error originating from a nonexistent resource,
	// such as an unknown function or socket name.
	NotExist
	// NotSupported indicates the operation was not supported.
	NotSupported
	// Invalid indicates an invalid state or data.
	Invalid
	// Eval denotes an evaluation error raised by a function body.
	Eval
	// Fatal denotes an unrecoverable error, typically a contract
	// violation.
	Fatal

	maxKind
)

var kinds = [maxKind]struct{ name, desc string }{
	Other:        {"Other", "unknown error"},
	Canceled:     {"Canceled", "canceled"},
	NotExist:     {"NotExist", "does not exist"},
	NotSupported: {"NotSupported", "operation not supported"},
	Invalid:      {"Invalid", "invalid"},
	Eval:         {"Eval", "evaluation error"},
	Fatal:        {"Fatal", "fatal"},
}

// String renders a human-readable description of kind k.
func (k Kind) String() string {
	if k < 0 || k >= maxKind {
		return kinds[Other].desc
	}
	return kinds[k].desc
}

// Name returns the identifier-style name of kind k, as used in
// configuration and test expectations.
func (k Kind) Name() string {
	if k < 0 || k >= maxKind {
		return kinds[Other].name
	}
	return kinds[k].name
}

// Error defines an mfnet error. It is used to indicate an error
// associated with an operation (and arguments), and may wrap another
// error.
//
// Errors should be constructed by errors.E.
type Error struct {
	// Kind is the error's type.
	Kind Kind
	// Op is a one-word description of the operation that errored.
	Op string
	// Arg is an (optional) list of arguments to the operation.
	Arg []string
	// Err is this error's underlying error: this error is caused
	// by Err.
	Err error
}

// E is used to construct errors. E constructs errors from a set of
// arguments; each of which must be one of the following types:
//
//	string
//		The first string argument is taken as the error's Op; subsequent
//		arguments are taken as the error's Arg.
//	fmt.Stringer
//		Taken as an Arg. Sockets, nodes and masks render this way.
//	digest.Digest
//		Taken as an Arg.
//	Kind
//		Taken as the error's Kind.
//	error
//		Taken as the error's underlying error.
//
// If a Kind is provided, there is no further processing. If not, and
// an underlying error is provided, E attempts to interpret it as
// follows: (1) If the underlying error is another *Error, and there
// is no Kind argument, the Kind is inherited from the *Error. (2) If
// the underlying error is context.Canceled, the error's kind is set
// to Canceled. (3) If the underlying error is an os.IsNotExist
// error, the error's kind is set to NotExist.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("no args")
	}
	e := new(Error)
	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			if e.Op == "" {
				e.Op = arg
			} else {
				e.Arg = append(e.Arg, arg)
			}
		case digest.Digest:
			e.Arg = append(e.Arg, arg.Short())
		case Kind:
			e.Kind = arg
		case *Error:
			copy := *arg
			e.Err = &copy
		case error:
			e.Err = arg
		case fmt.Stringer:
			e.Arg = append(e.Arg, arg.String())
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Printf("errors.E: bad call (type %T) from %s:%d: %v", arg, file, line, args)
			return Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}
	if e.Err == nil {
		return e
	}
	switch prev := e.Err.(type) {
	case *Error:
		if prev.Kind == e.Kind || e.Kind == Other {
			e.Kind = prev.Kind
			prev.Kind = Other
		}
		if prev.Op == "" && prev.Kind == Other {
			e.Err = prev.Err
		}
	default:
		if e.Kind != Other {
			break
		}
		switch {
		case goerrors.Is(prev, context.Canceled):
			e.Kind = Canceled
		case os.IsNotExist(prev):
			e.Kind = NotExist
		}
	}
	return e
}

// Panic constructs an error from args in the manner of E and panics
// with it. If no Kind is given, the error is of kind Fatal. Panic is
// reserved for contract violations: conditions that can only arise
// from a defect in the engine or in the code that built the network.
func Panic(args ...interface{}) {
	err := E(args...)
	if e, ok := err.(*Error); ok && e.Kind == Other {
		e.Kind = Fatal
	}
	panic(err)
}

// Error renders this error and its chain of underlying errors.
// Chained *Errors are separated by Separator.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Op)
	for _, arg := range e.Arg {
		b.WriteString(" ")
		b.WriteString(arg)
	}
	sep := func(s string) {
		if b.Len() > 0 {
			b.WriteString(s)
		}
	}
	if e.Kind != Other {
		sep(": ")
		b.WriteString(e.Kind.String())
	}
	switch err := e.Err.(type) {
	case nil:
	case *Error:
		sep(Separator)
		b.WriteString(err.Error())
	default:
		sep(": ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf is an alternate spelling of fmt.Errorf.
var Errorf = fmt.Errorf

// New is an alternate spelling of errors.New.
var New = goerrors.New

// Recover returns err as an *Error. Errors that are not already
// *Errors are wrapped, so that their kind is interpreted as in E.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return E(err).(*Error)
}

// Is tells whether err is of the given kind. The kind of an error is
// that of the outermost *Error in its chain; errors wrapped with
// fmt.Errorf's %w verb are thus looked through.
func Is(kind Kind, err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if !goerrors.As(err, &e) {
		e = Recover(err)
	}
	return e.Kind == kind
}

// Match tells whether err2 matches err1. If err1 is a Kind, only the
// kinds are compared. If err1 is an *Error, each of its nonempty
// fields must equal the corresponding field of err2, recursively
// along the chain of underlying errors.
func Match(err1 interface{}, err2 error) bool {
	e2 := Recover(err2)
	if e2 == nil {
		return false
	}
	switch e1 := err1.(type) {
	case Kind:
		return e1 == e2.Kind
	case *Error:
		switch {
		case e1.Op != "" && e1.Op != e2.Op,
			e1.Kind != Other && e1.Kind != e2.Kind,
			strings.Join(e1.Arg, "\x00") != strings.Join(e2.Arg, "\x00"):
			return false
		}
		switch prev := e1.Err.(type) {
		case nil:
			return true
		case *Error:
			return Match(prev, e2.Err)
		default:
			return e2.Err != nil && e2.Err.Error() == prev.Error()
		}
	}
	return false
}
