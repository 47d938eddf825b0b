// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package network_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/fn"
	"github.com/grailbio/mfnet/fn/builtin"
	"github.com/grailbio/mfnet/network"
	"github.com/grailbio/mfnet/types"
)

var float = mfnet.SingleType(types.Float32)

// counting wraps a function, counting its invocations and recording
// the order of invocations in a shared log.
type counting struct {
	fn.Function
	calls int32
	order *invocations

	mu    sync.Mutex
	masks []mfnet.Mask
}

func (c *counting) Call(ctx context.Context, mask mfnet.Mask, params *fn.Params) error {
	atomic.AddInt32(&c.calls, 1)
	if c.order != nil {
		c.order.add(c.Name())
	}
	c.mu.Lock()
	c.masks = append(c.masks, mask)
	c.mu.Unlock()
	return c.Function.Call(ctx, mask, params)
}

func (c *counting) Calls() int {
	return int(atomic.LoadInt32(&c.calls))
}

type invocations struct {
	mu    sync.Mutex
	names []string
}

func (i *invocations) add(name string) {
	i.mu.Lock()
	i.names = append(i.names, name)
	i.mu.Unlock()
}

func count(f fn.Function) *counting {
	return &counting{Function: f}
}

func failing(name string) fn.Function {
	sig := fn.NewSignature(name).
		SingleInput("a", types.Float32).
		SingleOutput("result", types.Float32).
		Build()
	return fn.New(sig, func(ctx context.Context, mask mfnet.Mask, params *fn.Params) error {
		return errors.New("no good")
	})
}

func double() fn.Function {
	return builtin.Custom1("double", types.Float32, types.Float32, func(x float32) float32 { return 2 * x })
}

func increment() fn.Function {
	return builtin.Mutate("increment", types.Float32, func(x *float32) { *x++ })
}

func scale() fn.Function {
	return builtin.Mutate("scale", types.Float32, func(x *float32) { *x *= 10 })
}

func decls(typ mfnet.DataType, names ...string) []network.SocketDecl {
	d := make([]network.SocketDecl, len(names))
	for i, name := range names {
		d[i] = network.SocketDecl{Name: name, Type: typ}
	}
	return d
}

// example builds the network y = (a + b) * c.
type example struct {
	net      *network.Network
	in, out  *network.Node
	add, mul *network.Node
	addFn    *counting
	mulFn    *counting
}

func newExample(t *testing.T) *example {
	t.Helper()
	x := &example{
		addFn: count(builtin.AddFloats()),
		mulFn: count(builtin.MultiplyFloats()),
	}
	b := network.NewBuilder()
	x.in = b.AddDummy("in", nil, decls(float, "a", "b", "c"))
	x.out = b.AddDummy("out", decls(float, "y"), nil)
	x.add = b.AddFunction("", x.addFn)
	x.mul = b.AddFunction("", x.mulFn)
	b.Link(x.in.Output(0), x.add.Input(0))
	b.Link(x.in.Output(1), x.add.Input(1))
	b.Link(x.add.Output(0), x.mul.Input(0))
	b.Link(x.in.Output(2), x.mul.Input(1))
	b.Link(x.mul.Output(0), x.out.Input(0))
	var err error
	x.net, err = b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return x
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
