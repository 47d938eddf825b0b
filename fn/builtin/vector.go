// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package builtin

import (
	"context"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/fn"
	"github.com/grailbio/mfnet/types"
	"github.com/grailbio/mfnet/values"
)

// CombineVector returns a function that packs three floats into a
// vector.
func CombineVector() fn.Function {
	sig := fn.NewSignature("combine vector").
		SingleInput("x", types.Float32).
		SingleInput("y", types.Float32).
		SingleInput("z", types.Float32).
		SingleOutput("vector", types.Vector3).
		Build()
	return fn.New(sig, func(ctx context.Context, mask mfnet.Mask, params *fn.Params) error {
		x := values.ViewOf[float32](params.SingleInput(0))
		y := values.ViewOf[float32](params.SingleInput(1))
		z := values.ViewOf[float32](params.SingleInput(2))
		out := values.Slice[types.Vec3](params.SingleOutput(3))
		return Each(ctx, mask, func(i int) {
			out[i] = types.Vec3{X: x.At(i), Y: y.At(i), Z: z.At(i)}
		})
	})
}

// SeparateVector returns a function that unpacks a vector into its
// three components.
func SeparateVector() fn.Function {
	sig := fn.NewSignature("separate vector").
		SingleInput("vector", types.Vector3).
		SingleOutput("x", types.Float32).
		SingleOutput("y", types.Float32).
		SingleOutput("z", types.Float32).
		Build()
	return fn.New(sig, func(ctx context.Context, mask mfnet.Mask, params *fn.Params) error {
		v := values.ViewOf[types.Vec3](params.SingleInput(0))
		x := values.Slice[float32](params.SingleOutput(1))
		y := values.Slice[float32](params.SingleOutput(2))
		z := values.Slice[float32](params.SingleOutput(3))
		return Each(ctx, mask, func(i int) {
			vec := v.At(i)
			x[i], y[i], z[i] = vec.X, vec.Y, vec.Z
		})
	})
}
