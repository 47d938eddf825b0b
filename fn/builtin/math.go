// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package builtin

import (
	"github.com/grailbio/mfnet/fn"
	"github.com/grailbio/mfnet/types"
)

// AddFloats returns a function computing a + b.
func AddFloats() fn.Function {
	return Custom2("add", types.Float32, types.Float32, types.Float32,
		func(a, b float32) float32 { return a + b })
}

// SubtractFloats returns a function computing a - b.
func SubtractFloats() fn.Function {
	return Custom2("subtract", types.Float32, types.Float32, types.Float32,
		func(a, b float32) float32 { return a - b })
}

// MultiplyFloats returns a function computing a * b.
func MultiplyFloats() fn.Function {
	return Custom2("multiply", types.Float32, types.Float32, types.Float32,
		func(a, b float32) float32 { return a * b })
}

// DivideFloats returns a function computing a / b. Division by zero
// yields zero.
func DivideFloats() fn.Function {
	return Custom2("divide", types.Float32, types.Float32, types.Float32,
		func(a, b float32) float32 {
			if b == 0 {
				return 0
			}
			return a / b
		})
}
