// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package builtin

import (
	"context"
	"fmt"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/fn"
	"github.com/grailbio/mfnet/types"
	"github.com/grailbio/mfnet/values"
)

// ListLength returns a function computing the length of lists with
// element type t.
func ListLength(t *types.T) fn.Function {
	sig := fn.NewSignature("list length " + t.String()).
		VectorInput("list", t).
		SingleOutput("length", types.Int64).
		Build()
	return fn.New(sig, func(ctx context.Context, mask mfnet.Mask, params *fn.Params) error {
		lists := params.VectorInput(0)
		out := values.Slice[int64](params.SingleOutput(1))
		return Each(ctx, mask, func(i int) {
			out[i] = int64(lists.ListLen(i))
		})
	})
}

// AppendToList returns a function that appends a value to a list in
// place.
func AppendToList(t *types.T) fn.Function {
	sig := fn.NewSignature("append to list " + t.String()).
		MutableVector("list", t).
		SingleInput("value", t).
		Build()
	return fn.New(sig, func(ctx context.Context, mask mfnet.Mask, params *fn.Params) error {
		lists := params.MutableVector(0)
		value := params.SingleInput(1)
		return Each(ctx, mask, func(i int) {
			lists.Append(i, value.Get(i))
		})
	})
}

// PackList returns a function that packs n single values into a list.
func PackList(t *types.T, n int) fn.Function {
	b := fn.NewSignature(fmt.Sprintf("pack list %s %d", t, n))
	for i := 0; i < n; i++ {
		b.SingleInput(fmt.Sprintf("value%d", i), t)
	}
	sig := b.VectorOutput("list", t).Build()
	return fn.New(sig, func(ctx context.Context, mask mfnet.Mask, params *fn.Params) error {
		inputs := make([]values.ListRef, n)
		for j := range inputs {
			inputs[j] = params.SingleInput(j)
		}
		lists := params.VectorOutput(n)
		return Each(ctx, mask, func(i int) {
			for _, in := range inputs {
				lists.Append(i, in.Get(i))
			}
		})
	})
}

// GetListElement returns a function that selects the element at an
// index from each list. Out of range indices select the fallback
// value.
func GetListElement(t *types.T) fn.Function {
	sig := fn.NewSignature("get list element " + t.String()).
		VectorInput("list", t).
		SingleInput("index", types.Int64).
		SingleInput("fallback", t).
		SingleOutput("value", t).
		Build()
	return fn.New(sig, func(ctx context.Context, mask mfnet.Mask, params *fn.Params) error {
		lists := params.VectorInput(0)
		index := values.ViewOf[int64](params.SingleInput(1))
		fallback := params.SingleInput(2)
		out := params.SingleOutput(3)
		return Each(ctx, mask, func(i int) {
			list, j := lists.List(i), index.At(i)
			if j >= 0 && j < int64(list.Len()) {
				out.Set(i, list.Get(int(j)))
			} else {
				out.Set(i, fallback.Get(i))
			}
		})
	})
}
