// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package network_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/fn/builtin"
	"github.com/grailbio/mfnet/network"
	"github.com/grailbio/mfnet/types"
	"github.com/grailbio/testutil/assert"
)

func TestBuild(t *testing.T) {
	x := newExample(t)
	assert.EQ(t, len(x.net.Nodes()), 4)
	assert.EQ(t, len(x.net.FunctionNodes()), 2)
	assert.EQ(t, len(x.net.DummyNodes()), 2)
	// in: 3 outputs; out: 1 input; add and mul: 2 inputs, 1 output each.
	assert.EQ(t, x.net.NumSockets(), 10)
	for id := 0; id < x.net.NumSockets(); id++ {
		if got, want := x.net.Socket(id).ID(), id; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	assert.EQ(t, x.add.Network(), x.net)
	assert.EQ(t, x.add.Name(), "add")
	assert.True(t, x.add.IsFunction())
	assert.True(t, x.in.IsDummy())
	assert.EQ(t, x.add.InputNamed("b"), x.add.Input(1))
	assert.EQ(t, x.add.OutputNamed("result"), x.add.Output(0))
	assert.True(t, x.add.InputNamed("result") == nil)
	assert.EQ(t, x.add.InputForParam(1), x.add.Input(1))
	assert.True(t, x.add.OutputForParam(1) == nil)
	assert.EQ(t, x.add.OutputForParam(2), x.add.Output(0))
	assert.EQ(t, x.mul.Input(0).Origin(), x.add.Output(0))
	if got, want := x.in.Output(0).Targets(), []*network.InputSocket{x.add.Input(0)}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := x.add.Input(1).String(), "add#2.b"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := x.net.Depths(), []int{0, 0, 1, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	assert.EQ(t, x.net.Depth(x.mul), 2)
}

func TestMutableSockets(t *testing.T) {
	b := network.NewBuilder()
	inc := b.AddFunction("inc", increment())
	assert.EQ(t, len(inc.Inputs()), 1)
	assert.EQ(t, len(inc.Outputs()), 1)
	assert.EQ(t, inc.InputForParam(0), inc.Input(0))
	assert.EQ(t, inc.OutputForParam(0), inc.Output(0))
	assert.EQ(t, inc.Name(), "inc")
}

func TestBuildErrors(t *testing.T) {
	for _, c := range []struct {
		name  string
		build func(b *network.Builder)
	}{
		{"unlinked", func(b *network.Builder) {
			b.AddFunction("", double())
		}},
		{"cycle", func(b *network.Builder) {
			f := b.AddFunction("f", double())
			g := b.AddFunction("g", double())
			b.Link(f.Output(0), g.Input(0))
			b.Link(g.Output(0), f.Input(0))
		}},
		{"type mismatch", func(b *network.Builder) {
			in := b.AddDummy("in", nil, decls(mfnet.SingleType(types.Int64), "x"))
			f := b.AddFunction("", double())
			b.Link(in.Output(0), f.Input(0))
		}},
		{"category mismatch", func(b *network.Builder) {
			in := b.AddDummy("in", nil, decls(mfnet.VectorType(types.Float32), "x"))
			f := b.AddFunction("", double())
			b.Link(in.Output(0), f.Input(0))
		}},
		{"linked twice", func(b *network.Builder) {
			in := b.AddDummy("in", nil, decls(float, "x", "y"))
			f := b.AddFunction("", double())
			b.Link(in.Output(0), f.Input(0))
			b.Link(in.Output(1), f.Input(0))
		}},
		{"foreign socket", func(b *network.Builder) {
			other := network.NewBuilder().AddDummy("other", nil, decls(float, "x"))
			f := b.AddFunction("", double())
			b.Link(other.Output(0), f.Input(0))
		}},
	} {
		b := network.NewBuilder()
		c.build(b)
		if _, err := b.Build(); !errors.Is(errors.Invalid, err) {
			t.Errorf("%s: got %v, want invalid", c.name, err)
		}
	}
}

func TestBuilderReuse(t *testing.T) {
	b := network.NewBuilder()
	b.AddDummy("in", nil, decls(float, "x"))
	_, err := b.Build()
	assert.NoError(t, err)
	if _, err := b.Build(); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want invalid", err)
	}
	expectPanic(t, errors.Fatal, func() { b.AddDummy("again", nil, nil) })
}

func TestDigest(t *testing.T) {
	x, y := newExample(t), newExample(t)
	assert.EQ(t, x.net.Digest(), y.net.Digest())

	// The same nodes, linked differently.
	b := network.NewBuilder()
	in := b.AddDummy("in", nil, decls(float, "a", "b", "c"))
	out := b.AddDummy("out", decls(float, "y"), nil)
	add := b.AddFunction("", builtin.AddFloats())
	mul := b.AddFunction("", builtin.MultiplyFloats())
	b.Link(in.Output(0), add.Input(0))
	b.Link(in.Output(2), add.Input(1))
	b.Link(add.Output(0), mul.Input(0))
	b.Link(in.Output(1), mul.Input(1))
	b.Link(mul.Output(0), out.Input(0))
	z, err := b.Build()
	assert.NoError(t, err)
	if x.net.Digest() == z.Digest() {
		t.Error("differently linked networks have the same digest")
	}
	if !strings.Contains(z.String(), "2 functions, 2 dummies, 10 sockets") {
		t.Errorf("bad summary %s", z)
	}
}

func TestFindFunctionDependencies(t *testing.T) {
	var (
		b   = network.NewBuilder()
		in  = b.AddDummy("in", nil, decls(float, "x"))
		out = b.AddDummy("out", decls(float, "y", "z"), nil)
		f   = b.AddFunction("f", double())
		g   = b.AddFunction("g", double())
		h   = b.AddFunction("h", double())
	)
	b.Link(in.Output(0), f.Input(0))
	b.Link(f.Output(0), g.Input(0))
	b.Link(in.Output(0), h.Input(0))
	b.Link(g.Output(0), out.Input(0))
	b.Link(h.Output(0), out.Input(1))
	net, err := b.Build()
	assert.NoError(t, err)
	if got, want := net.FindFunctionDependencies(out.Inputs()[:1]), []*network.Node{f, g}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := net.FindFunctionDependencies(out.Inputs()), []*network.Node{f, g, h}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := net.FindFunctionDependencies(nil); len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestDot(t *testing.T) {
	x := newExample(t)
	b, err := x.net.Dot("example", x.net.FindFunctionDependencies(x.out.Inputs()))
	assert.NoError(t, err)
	s := string(b)
	for _, want := range []string{"example", "add#2", "mul", "result -> a", "fillcolor", "box"} {
		if !strings.Contains(s, want) {
			t.Errorf("dot output missing %q:\n%s", want, s)
		}
	}
}
