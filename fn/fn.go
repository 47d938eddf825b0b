// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package fn defines multi-functions: computations with a fixed
// signature of typed parameters that are invoked once for a whole
// batch of indices.
//
// A function is called with a mask and a Params value binding each
// signature parameter to a buffer or view. The function reads its
// inputs and writes its outputs only at the indices in the mask.
// Functions are free to parallelize internally over the mask; they
// must have finished writing by the time Call returns.
package fn

import (
	"context"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
)

// Function is a multi-function.
type Function interface {
	// Name returns the function's name.
	Name() string
	// Signature returns the function's parameters. A function must
	// always return the same signature.
	Signature() *Signature
	// Call computes the function over the indices in mask. Params
	// are bound in signature order.
	Call(ctx context.Context, mask mfnet.Mask, params *Params) error
}

// CallFunc is the type of function bodies that may be adapted to a
// Function by New.
type CallFunc func(ctx context.Context, mask mfnet.Mask, params *Params) error

type function struct {
	sig  *Signature
	call CallFunc
}

// New returns a Function with the provided signature whose body is
// call.
func New(sig *Signature, call CallFunc) Function {
	return &function{sig, call}
}

func (f *function) Name() string          { return f.sig.Name }
func (f *function) Signature() *Signature { return f.sig }

func (f *function) Call(ctx context.Context, mask mfnet.Mask, params *Params) error {
	if params.Signature() != f.sig {
		return errors.E("call", f.sig.Name, errors.Invalid,
			errors.Errorf("parameters bound for %s", params.Signature().Name))
	}
	return f.call(ctx, mask, params)
}

// String returns the function's signature.
func (f *function) String() string {
	return f.sig.String()
}
