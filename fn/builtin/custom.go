// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package builtin

import (
	"context"
	"fmt"
	"reflect"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/fn"
	"github.com/grailbio/mfnet/types"
	"github.com/grailbio/mfnet/values"
)

// Constant returns a function without inputs that produces v at
// every index. Constant returns an error if v is not of type t.
func Constant(t *types.T, v interface{}) (fn.Function, error) {
	if got, want := reflect.TypeOf(v), t.GoType(); got != want {
		return nil, errors.E("constant", t, errors.Invalid, errors.Errorf("value %v is a %v, not a %s", v, got, want))
	}
	sig := fn.NewSignature(fmt.Sprintf("constant %s %v", t, v)).
		SingleOutput("value", t).
		Build()
	return fn.New(sig, func(ctx context.Context, mask mfnet.Mask, params *fn.Params) error {
		out := params.SingleOutput(0)
		values.SingleRef(t, v, out.Len()).MaterializeTo(mask, out)
		return nil
	}), nil
}

// Custom1 lifts the Go function f to an element-wise function with
// one input.
func Custom1[A, R any](name string, ta, tr *types.T, f func(A) R) fn.Function {
	sig := fn.NewSignature(name).
		SingleInput("a", ta).
		SingleOutput("result", tr).
		Build()
	return fn.New(sig, func(ctx context.Context, mask mfnet.Mask, params *fn.Params) error {
		a := values.ViewOf[A](params.SingleInput(0))
		out := values.Slice[R](params.SingleOutput(1))
		return Each(ctx, mask, func(i int) {
			out[i] = f(a.At(i))
		})
	})
}

// Custom2 lifts the Go function f to an element-wise function with
// two inputs.
func Custom2[A, B, R any](name string, ta, tb, tr *types.T, f func(A, B) R) fn.Function {
	sig := fn.NewSignature(name).
		SingleInput("a", ta).
		SingleInput("b", tb).
		SingleOutput("result", tr).
		Build()
	return fn.New(sig, func(ctx context.Context, mask mfnet.Mask, params *fn.Params) error {
		a := values.ViewOf[A](params.SingleInput(0))
		b := values.ViewOf[B](params.SingleInput(1))
		out := values.Slice[R](params.SingleOutput(2))
		return Each(ctx, mask, func(i int) {
			out[i] = f(a.At(i), b.At(i))
		})
	})
}

// Mutate lifts the Go function f to an element-wise function that
// modifies its single parameter in place.
func Mutate[E any](name string, t *types.T, f func(*E)) fn.Function {
	sig := fn.NewSignature(name).
		MutableSingle("value", t).
		Build()
	return fn.New(sig, func(ctx context.Context, mask mfnet.Mask, params *fn.Params) error {
		data := values.Slice[E](params.MutableSingle(0))
		return Each(ctx, mask, func(i int) {
			f(&data[i])
		})
	})
}
