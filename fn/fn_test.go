// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package fn_test

import (
	"context"
	"testing"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/fn"
	"github.com/grailbio/mfnet/types"
	"github.com/grailbio/mfnet/values"
	"github.com/grailbio/testutil/assert"
)

func addSignature() *fn.Signature {
	return fn.NewSignature("add").
		SingleInput("a", types.Float32).
		SingleInput("b", types.Float32).
		SingleOutput("sum", types.Float32).
		Build()
}

func TestSignature(t *testing.T) {
	sig := addSignature()
	assert.EQ(t, sig.Len(), 3)
	assert.EQ(t, sig.String(), "add(in float a, in float b, out float sum)")
	assert.EQ(t, sig.Index("sum"), 2)
	assert.EQ(t, sig.Index("nope"), -1)
	assert.EQ(t, sig.Param(1).DataType(), mfnet.SingleType(types.Float32))

	other := fn.NewSignature("add").
		SingleInput("a", types.Float32).
		SingleInput("b", types.Float32).
		SingleOutput("sum", types.Float64).
		Build()
	if sig.Digest() == other.Digest() {
		t.Error("signatures with different types have equal digests")
	}
	if got, want := sig.Digest(), addSignature().Digest(); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	mut := fn.NewSignature("push").
		MutableVector("list", types.Int64).
		SingleInput("x", types.Int64).
		Build()
	assert.EQ(t, mut.String(), "push(inout int list list, in int x)")
}

func TestSignatureFamily(t *testing.T) {
	for _, c := range []struct{ name, want string }{
		{"add", "add"},
		{"constant float 3.5", "constant"},
		{"constant float 7", "constant"},
		{"pack list int 3", "pack"},
		{"", ""},
	} {
		if got := fn.NewSignature(c.name).Build().Family(); got != c.want {
			t.Errorf("%q: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestCall(t *testing.T) {
	sig := addSignature()
	add := fn.New(sig, func(ctx context.Context, mask mfnet.Mask, params *fn.Params) error {
		a, b := params.SingleInput(0), params.SingleInput(1)
		sum := values.Slice[float32](params.SingleOutput(2))
		for _, i := range mask.Indices() {
			sum[i] = a.Get(i).(float32) + b.Get(i).(float32)
		}
		return nil
	})
	assert.EQ(t, add.Name(), "add")

	out := values.NewArray(types.Float32, 3)
	params := fn.NewParamsBuilder(sig, 3).
		AddSingleInput(values.SliceRef(types.Float32, []float32{1, 2, 3})).
		AddSingleInput(values.SingleRef(types.Float32, float32(10), 3)).
		AddSingleOutput(out).
		Build()
	assert.NoError(t, add.Call(context.Background(), mfnet.NewMask([]int{0, 2}), params))
	assert.EQ(t, values.Slice[float32](out), []float32{11, 0, 13})
}

func TestCallWrongParams(t *testing.T) {
	add := fn.New(addSignature(), func(context.Context, mfnet.Mask, *fn.Params) error { return nil })
	params := fn.NewParamsBuilder(addSignature(), 0).
		AddSingleInput(values.SliceRef[float32](types.Float32, nil)).
		AddSingleInput(values.SliceRef[float32](types.Float32, nil)).
		AddSingleOutput(values.NewArray(types.Float32, 0)).
		Build()
	err := add.Call(context.Background(), mfnet.Mask{}, params)
	if !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want invalid", err)
	}
}

func expectPanic(t *testing.T, kind errors.Kind, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		err, ok := recover().(error)
		if !ok {
			t.Fatal("expected panic")
		}
		if !errors.Is(kind, err) {
			t.Errorf("got %v, want kind %v", err, kind)
		}
	}()
	f()
}

func TestParamsBuilderChecks(t *testing.T) {
	sig := addSignature()
	// Wrong kind.
	expectPanic(t, errors.Fatal, func() {
		fn.NewParamsBuilder(sig, 2).AddSingleOutput(values.NewArray(types.Float32, 2))
	})
	// Wrong type.
	expectPanic(t, errors.Invalid, func() {
		fn.NewParamsBuilder(sig, 2).AddSingleInput(values.SliceRef(types.Int32, []int32{1, 2}))
	})
	// Too small.
	expectPanic(t, errors.Fatal, func() {
		fn.NewParamsBuilder(sig, 4).AddSingleInput(values.SliceRef(types.Float32, []float32{1, 2}))
	})
	// Incomplete.
	expectPanic(t, errors.Fatal, func() {
		fn.NewParamsBuilder(sig, 2).AddSingleInput(values.SliceRef(types.Float32, []float32{1, 2})).Build()
	})
}

func TestParamsAccessorKind(t *testing.T) {
	sig := addSignature()
	params := fn.NewParamsBuilder(sig, 1).
		AddSingleInput(values.SingleRef(types.Float32, float32(1), 1)).
		AddSingleInput(values.SingleRef(types.Float32, float32(2), 1)).
		AddSingleOutput(values.NewArray(types.Float32, 1)).
		Build()
	assert.EQ(t, params.MinArraySize(), 1)
	expectPanic(t, errors.Fatal, func() { params.MutableSingle(2) })
	expectPanic(t, errors.Fatal, func() { params.SingleInput(3) })
}
