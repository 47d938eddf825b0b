// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package builtin provides a library of commonly used multi-functions:
// constants, float arithmetic, vector packing, list manipulation and
// adapters that lift ordinary Go functions to element-wise
// multi-functions.
//
// Function bodies split large masks into shards that are processed
// in parallel. The minimum shard size is taken from the context (see
// WithGrain).
package builtin

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/grailbio/base/traverse"
	"github.com/grailbio/mfnet"
	mfcontext "github.com/grailbio/mfnet/context"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/fn"
	"github.com/grailbio/mfnet/types"
)

// DefaultGrain is the minimum number of indices per parallel shard
// used when the context does not specify one.
const DefaultGrain = 4096

// WithGrain returns a context in which function bodies process
// shards of at least grain indices in parallel. A non-positive grain
// disables parallelism.
func WithGrain(ctx context.Context, grain int) context.Context {
	return context.WithValue(ctx, mfcontext.GrainKey, grain)
}

// Grain returns the shard size configured in ctx.
func Grain(ctx context.Context) int {
	if grain, ok := ctx.Value(mfcontext.GrainKey).(int); ok {
		return grain
	}
	return DefaultGrain
}

// Each calls f for each index in mask. Masks larger than the
// context's grain are split into shards that are processed
// concurrently; f must therefore only write at index i.
func Each(ctx context.Context, mask mfnet.Mask, f func(i int)) error {
	grain := Grain(ctx)
	if grain <= 0 || mask.Len() <= grain {
		for _, i := range mask.Indices() {
			f(i)
		}
		return nil
	}
	shards := mask.Chunks(grain)
	return traverse.Limit(runtime.NumCPU()).Each(len(shards), func(s int) error {
		for _, i := range shards[s].Indices() {
			f(i)
		}
		return nil
	})
}

// Args parameterize the functions constructed by name through New.
type Args struct {
	// Type is the element type for generic functions.
	Type *types.T
	// Value is the value produced by constants.
	Value interface{}
	// N is the number of inputs of variadic functions.
	N int
}

// A Constructor builds a function from Args.
type Constructor func(args Args) (fn.Function, error)

var (
	mu           sync.Mutex
	constructors = map[string]Constructor{}
)

// Register makes a function constructor available to New under the
// given name. Register panics if the name is already taken.
func Register(name string, c Constructor) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := constructors[name]; ok {
		panic("builtin: function " + name + " registered twice")
	}
	constructors[name] = c
}

// New constructs the function registered under name.
func New(name string, args Args) (fn.Function, error) {
	mu.Lock()
	c, ok := constructors[name]
	mu.Unlock()
	if !ok {
		return nil, errors.E("new", name, errors.NotExist, errors.New("no such function"))
	}
	f, err := c(args)
	if err != nil {
		return nil, errors.E("new", name, err)
	}
	return f, nil
}

// Names returns the sorted names of all registered functions.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func needType(args Args) error {
	if args.Type == nil {
		return errors.E(errors.Invalid, errors.New("missing element type"))
	}
	return nil
}

func init() {
	Register("constant", func(args Args) (fn.Function, error) {
		if err := needType(args); err != nil {
			return nil, err
		}
		return Constant(args.Type, args.Value)
	})
	Register("add", func(Args) (fn.Function, error) { return AddFloats(), nil })
	Register("subtract", func(Args) (fn.Function, error) { return SubtractFloats(), nil })
	Register("multiply", func(Args) (fn.Function, error) { return MultiplyFloats(), nil })
	Register("divide", func(Args) (fn.Function, error) { return DivideFloats(), nil })
	Register("combine_vector", func(Args) (fn.Function, error) { return CombineVector(), nil })
	Register("separate_vector", func(Args) (fn.Function, error) { return SeparateVector(), nil })
	Register("list_length", func(args Args) (fn.Function, error) {
		if err := needType(args); err != nil {
			return nil, err
		}
		return ListLength(args.Type), nil
	})
	Register("append_to_list", func(args Args) (fn.Function, error) {
		if err := needType(args); err != nil {
			return nil, err
		}
		return AppendToList(args.Type), nil
	})
	Register("pack_list", func(args Args) (fn.Function, error) {
		if err := needType(args); err != nil {
			return nil, err
		}
		return PackList(args.Type, args.N), nil
	})
	Register("get_list_element", func(args Args) (fn.Function, error) {
		if err := needType(args); err != nil {
			return nil, err
		}
		return GetListElement(args.Type), nil
	})
}
