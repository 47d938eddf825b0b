// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package network_test

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/fn"
	"github.com/grailbio/mfnet/fn/builtin"
	"github.com/grailbio/mfnet/log"
	"github.com/grailbio/mfnet/metrics"
	"github.com/grailbio/mfnet/metrics/prometrics"
	"github.com/grailbio/mfnet/network"
	"github.com/grailbio/mfnet/types"
	"github.com/grailbio/mfnet/values"
	"github.com/grailbio/testutil/assert"
)

func TestExample(t *testing.T) {
	x := newExample(t)
	e, err := network.NewEvaluator(x.in.Outputs(), x.out.Inputs(), network.Config{})
	assert.NoError(t, err)
	if got, want := e.Signature().String(), "network(in float a, in float b, in float c, out float y)"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	y := values.NewArray(types.Float32, 3)
	params := fn.NewParamsBuilder(e.Signature(), 3).
		AddSingleInput(values.SliceRef(types.Float32, []float32{1, 2, 3})).
		AddSingleInput(values.SliceRef(types.Float32, []float32{10, 20, 30})).
		AddSingleInput(values.SliceRef(types.Float32, []float32{2, 2, 2})).
		AddSingleOutput(y).
		Build()
	assert.NoError(t, e.Call(context.Background(), mfnet.RangeMask(3), params))
	if got, want := values.Slice[float32](y), []float32{22, 44, 66}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	stats := e.LastStats()
	if got, want := stats, (network.StorageStats{
		Allocs:     2,
		Frees:      2,
		PeakLive:   2,
		ArrayBytes: 24,
	}); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	assert.EQ(t, x.addFn.Calls(), 1)
	assert.EQ(t, x.mulFn.Calls(), 1)
}

func TestMaskFidelity(t *testing.T) {
	x := newExample(t)
	e, err := network.NewEvaluator(x.in.Outputs(), x.out.Inputs(), network.Config{})
	assert.NoError(t, err)
	y := values.ArrayOf(types.Float32, []float32{-1, -1, -1, -1, -1})
	mask := mfnet.NewMask([]int{0, 3})
	params := fn.NewParamsBuilder(e.Signature(), mask.MinArraySize()).
		AddSingleInput(values.SliceRef(types.Float32, []float32{1, 2, 3, 4})).
		AddSingleInput(values.SingleRef(types.Float32, float32(1), 4)).
		AddSingleInput(values.SliceRef(types.Float32, []float32{2, 3, 4, 5})).
		AddSingleOutput(y).
		Build()
	assert.NoError(t, e.Call(context.Background(), mask, params))
	if got, want := values.Slice[float32](y), []float32{4, -1, -1, 25, -1}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	for _, f := range []*counting{x.addFn, x.mulFn} {
		if got, want := f.masks, []mfnet.Mask{mask}; !reflect.DeepEqual(got, want) {
			t.Errorf("%s: got %v, want %v", f.Name(), got, want)
		}
	}
}

func TestEmptyMask(t *testing.T) {
	x := newExample(t)
	e, err := network.NewEvaluator(x.in.Outputs(), x.out.Inputs(), network.Config{})
	assert.NoError(t, err)
	params := fn.NewParamsBuilder(e.Signature(), 0).
		AddSingleInput(values.SliceRef(types.Float32, []float32{})).
		AddSingleInput(values.SliceRef(types.Float32, []float32{})).
		AddSingleInput(values.SliceRef(types.Float32, []float32{})).
		AddSingleOutput(values.NewArray(types.Float32, 0)).
		Build()
	assert.NoError(t, e.Call(context.Background(), mfnet.NewMask(nil), params))
	assert.EQ(t, x.addFn.Calls(), 0)
}

func TestSingleEvaluation(t *testing.T) {
	// a -> double -> (add, sub) -> mul -> out.y; double -> out.d
	var (
		b        = network.NewBuilder()
		in       = b.AddDummy("in", nil, decls(float, "a"))
		out      = b.AddDummy("out", decls(float, "y", "d"), nil)
		doubleFn = count(double())
		addFn    = count(builtin.AddFloats())
		subFn    = count(builtin.SubtractFloats())
		mulFn    = count(builtin.MultiplyFloats())
		dbl      = b.AddFunction("", doubleFn)
		add      = b.AddFunction("", addFn)
		sub      = b.AddFunction("", subFn)
		mul      = b.AddFunction("", mulFn)
	)
	b.Link(in.Output(0), dbl.Input(0))
	b.Link(dbl.Output(0), add.Input(0))
	b.Link(dbl.Output(0), add.Input(1))
	b.Link(dbl.Output(0), sub.Input(0))
	b.Link(in.Output(0), sub.Input(1))
	b.Link(add.Output(0), mul.Input(0))
	b.Link(sub.Output(0), mul.Input(1))
	b.Link(mul.Output(0), out.Input(0))
	b.Link(dbl.Output(0), out.Input(1))
	net, err := b.Build()
	assert.NoError(t, err)
	assert.EQ(t, len(net.FindFunctionDependencies(out.Inputs())), 4)

	e, err := network.NewEvaluator(in.Outputs(), out.Inputs(), network.Config{})
	assert.NoError(t, err)
	y := values.NewArray(types.Float32, 2)
	d := values.NewArray(types.Float32, 2)
	params := fn.NewParamsBuilder(e.Signature(), 2).
		AddSingleInput(values.SliceRef(types.Float32, []float32{1, 3})).
		AddSingleOutput(y).
		AddSingleOutput(d).
		Build()
	assert.NoError(t, e.Call(context.Background(), mfnet.RangeMask(2), params))
	// (2a + 2a) * (2a - a) = 4a^2
	if got, want := values.Slice[float32](y), []float32{4, 36}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := values.Slice[float32](d), []float32{2, 6}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	for _, f := range []*counting{doubleFn, addFn, subFn, mulFn} {
		if got, want := f.Calls(), 1; got != want {
			t.Errorf("%s: got %v calls, want %v", f.Name(), got, want)
		}
	}
	stats := e.LastStats()
	assert.EQ(t, stats.Allocs, 4)
	assert.EQ(t, stats.Frees, 4)
	assert.EQ(t, stats.Residual, 0)
}

func TestMultipleOutputs(t *testing.T) {
	vec := mfnet.SingleType(types.Vector3)
	var (
		b     = network.NewBuilder()
		in    = b.AddDummy("in", nil, []network.SocketDecl{{Name: "v", Type: vec}})
		out   = b.AddDummy("out", decls(float, "sum"), nil)
		sepFn = count(builtin.SeparateVector())
		sep   = b.AddFunction("", sepFn)
		add   = b.AddFunction("", builtin.AddFloats())
	)
	b.Link(in.Output(0), sep.Input(0))
	b.Link(sep.Output(0), add.Input(0))
	b.Link(sep.Output(2), add.Input(1))
	b.Link(add.Output(0), out.Input(0))
	_, err := b.Build()
	assert.NoError(t, err)

	e, err := network.NewEvaluator(in.Outputs(), out.Inputs(), network.Config{})
	assert.NoError(t, err)
	sum := values.NewArray(types.Float32, 2)
	params := fn.NewParamsBuilder(e.Signature(), 2).
		AddSingleInput(values.SliceRef(types.Vector3, []types.Vec3{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}})).
		AddSingleOutput(sum).
		Build()
	assert.NoError(t, e.Call(context.Background(), mfnet.RangeMask(2), params))
	if got, want := values.Slice[float32](sum), []float32{4, 10}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	assert.EQ(t, sepFn.Calls(), 1)
	stats := e.LastStats()
	// The unused y output is freed right after the invocation.
	assert.EQ(t, stats.Allocs, 4)
	assert.EQ(t, stats.Frees, 4)
	assert.EQ(t, stats.Residual, 0)
}

func TestMoveChain(t *testing.T) {
	var (
		b   = network.NewBuilder()
		in  = b.AddDummy("in", nil, decls(float, "x"))
		out = b.AddDummy("out", decls(float, "y"), nil)
		a   = b.AddFunction("", double())
		inc = b.AddFunction("", increment())
		sc  = b.AddFunction("", scale())
	)
	b.Link(in.Output(0), a.Input(0))
	b.Link(a.Output(0), inc.Input(0))
	b.Link(inc.Output(0), sc.Input(0))
	b.Link(sc.Output(0), out.Input(0))
	_, err := b.Build()
	assert.NoError(t, err)

	e, err := network.NewEvaluator(in.Outputs(), out.Inputs(), network.Config{})
	assert.NoError(t, err)
	y := values.NewArray(types.Float32, 3)
	params := fn.NewParamsBuilder(e.Signature(), 3).
		AddSingleInput(values.SliceRef(types.Float32, []float32{1, 2, 3})).
		AddSingleOutput(y).
		Build()
	assert.NoError(t, e.Call(context.Background(), mfnet.RangeMask(3), params))
	if got, want := values.Slice[float32](y), []float32{30, 50, 70}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := e.LastStats(), (network.StorageStats{
		Allocs:     1,
		Moves:      2,
		Frees:      1,
		PeakLive:   1,
		ArrayBytes: 12,
	}); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMoveFanOut(t *testing.T) {
	var (
		b   = network.NewBuilder()
		in  = b.AddDummy("in", nil, decls(float, "x"))
		out = b.AddDummy("out", decls(float, "inc", "scale"), nil)
		a   = b.AddFunction("", double())
		inc = b.AddFunction("", increment())
		sc  = b.AddFunction("", scale())
	)
	b.Link(in.Output(0), a.Input(0))
	b.Link(a.Output(0), inc.Input(0))
	b.Link(a.Output(0), sc.Input(0))
	b.Link(inc.Output(0), out.Input(0))
	b.Link(sc.Output(0), out.Input(1))
	_, err := b.Build()
	assert.NoError(t, err)

	e, err := network.NewEvaluator(in.Outputs(), out.Inputs(), network.Config{})
	assert.NoError(t, err)
	incs := values.NewArray(types.Float32, 2)
	scales := values.NewArray(types.Float32, 2)
	params := fn.NewParamsBuilder(e.Signature(), 2).
		AddSingleInput(values.SliceRef(types.Float32, []float32{1, 2})).
		AddSingleOutput(incs).
		AddSingleOutput(scales).
		Build()
	assert.NoError(t, e.Call(context.Background(), mfnet.RangeMask(2), params))
	if got, want := values.Slice[float32](incs), []float32{3, 5}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := values.Slice[float32](scales), []float32{20, 40}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	stats := e.LastStats()
	assert.EQ(t, stats.Allocs, 2)
	assert.EQ(t, stats.Copies, 1)
	assert.EQ(t, stats.Moves, 1)
	assert.EQ(t, stats.Frees, 2)
	assert.EQ(t, stats.Residual, 0)
}

func TestCallerViewImmutable(t *testing.T) {
	var (
		b   = network.NewBuilder()
		in  = b.AddDummy("in", nil, decls(float, "x"))
		out = b.AddDummy("out", decls(float, "y"), nil)
		inc = b.AddFunction("", increment())
	)
	b.Link(in.Output(0), inc.Input(0))
	b.Link(inc.Output(0), out.Input(0))
	_, err := b.Build()
	assert.NoError(t, err)

	e, err := network.NewEvaluator(in.Outputs(), out.Inputs(), network.Config{})
	assert.NoError(t, err)
	x := []float32{1, 2, 3}
	y := values.NewArray(types.Float32, 3)
	params := fn.NewParamsBuilder(e.Signature(), 3).
		AddSingleInput(values.SliceRef(types.Float32, x)).
		AddSingleOutput(y).
		Build()
	assert.NoError(t, e.Call(context.Background(), mfnet.RangeMask(3), params))
	if got, want := x, []float32{1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("caller input modified: got %v, want %v", got, want)
	}
	if got, want := values.Slice[float32](y), []float32{2, 3, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	assert.EQ(t, e.LastStats().Copies, 1)
	assert.EQ(t, e.LastStats().Moves, 0)
}

func TestPassthrough(t *testing.T) {
	var (
		b      = network.NewBuilder()
		in     = b.AddDummy("in", nil, decls(float, "x"))
		out    = b.AddDummy("out", decls(float, "y"), nil)
		unused = count(double())
		node   = b.AddFunction("", unused)
		sink   = b.AddDummy("sink", decls(float, "z"), nil)
	)
	b.Link(in.Output(0), out.Input(0))
	b.Link(in.Output(0), node.Input(0))
	b.Link(node.Output(0), sink.Input(0))
	_, err := b.Build()
	assert.NoError(t, err)

	e, err := network.NewEvaluator(in.Outputs(), out.Inputs(), network.Config{})
	assert.NoError(t, err)
	y := values.ArrayOf(types.Float32, []float32{0, 0, 0})
	params := fn.NewParamsBuilder(e.Signature(), 3).
		AddSingleInput(values.SliceRef(types.Float32, []float32{7, 8, 9})).
		AddSingleOutput(y).
		Build()
	assert.NoError(t, e.Call(context.Background(), mfnet.NewMask([]int{0, 2}), params))
	if got, want := values.Slice[float32](y), []float32{7, 0, 9}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	assert.EQ(t, unused.Calls(), 0)
	assert.EQ(t, e.LastStats(), network.StorageStats{})
}

func TestVectorNetwork(t *testing.T) {
	list := mfnet.VectorType(types.Float32)
	var (
		b      = network.NewBuilder()
		in     = b.AddDummy("in", nil, []network.SocketDecl{{Name: "a", Type: float}, {Name: "b", Type: float}})
		out    = b.AddDummy("out", []network.SocketDecl{{Name: "list", Type: list}, {Name: "length", Type: mfnet.SingleType(types.Int64)}}, nil)
		pack   = b.AddFunction("", builtin.PackList(types.Float32, 2))
		push   = b.AddFunction("", builtin.AppendToList(types.Float32))
		length = b.AddFunction("", builtin.ListLength(types.Float32))
	)
	b.Link(in.Output(0), pack.Input(0))
	b.Link(in.Output(1), pack.Input(1))
	b.Link(pack.Output(0), push.Input(0))
	b.Link(in.Output(0), push.Input(1))
	b.Link(push.Output(0), out.Input(0))
	b.Link(push.Output(0), length.Input(0))
	b.Link(length.Output(0), out.Input(1))
	_, err := b.Build()
	assert.NoError(t, err)

	e, err := network.NewEvaluator(in.Outputs(), out.Inputs(), network.Config{})
	assert.NoError(t, err)
	lists := values.NewVectorArray(types.Float32, 2)
	lengths := values.NewArray(types.Int64, 2)
	params := fn.NewParamsBuilder(e.Signature(), 2).
		AddSingleInput(values.SliceRef(types.Float32, []float32{1, 2})).
		AddSingleInput(values.SingleRef(types.Float32, float32(9), 2)).
		AddVectorOutput(lists).
		AddSingleOutput(lengths).
		Build()
	assert.NoError(t, e.Call(context.Background(), mfnet.RangeMask(2), params))
	if got, want := values.List[float32](lists, 0), []float32{1, 9, 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := values.List[float32](lists, 1), []float32{2, 9, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := values.Slice[int64](lengths), []int64{3, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	stats := e.LastStats()
	assert.EQ(t, stats.Moves, 1)
	assert.EQ(t, stats.Residual, 0)
}

func TestVectorFromCaller(t *testing.T) {
	list := mfnet.VectorType(types.Int64)
	var (
		b      = network.NewBuilder()
		in     = b.AddDummy("in", nil, []network.SocketDecl{{Name: "list", Type: list}, {Name: "value", Type: mfnet.SingleType(types.Int64)}})
		out    = b.AddDummy("out", []network.SocketDecl{{Name: "list", Type: list}}, nil)
		push   = b.AddFunction("", builtin.AppendToList(types.Int64))
	)
	b.Link(in.Output(0), push.Input(0))
	b.Link(in.Output(1), push.Input(1))
	b.Link(push.Output(0), out.Input(0))
	_, err := b.Build()
	assert.NoError(t, err)

	e, err := network.NewEvaluator(in.Outputs(), out.Inputs(), network.Config{})
	assert.NoError(t, err)
	callerLists := [][]int64{{1}, {2, 3}}
	lists := values.NewVectorArray(types.Int64, 2)
	params := fn.NewParamsBuilder(e.Signature(), 2).
		AddVectorInput(values.SlicesRef(types.Int64, callerLists)).
		AddSingleInput(values.SingleRef(types.Int64, int64(0), 2)).
		AddVectorOutput(lists).
		Build()
	assert.NoError(t, e.Call(context.Background(), mfnet.RangeMask(2), params))
	if got, want := callerLists, [][]int64{{1}, {2, 3}}; !reflect.DeepEqual(got, want) {
		t.Errorf("caller lists modified: got %v, want %v", got, want)
	}
	if got, want := values.List[int64](lists, 1), []int64{2, 3, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	assert.EQ(t, e.LastStats().Copies, 1)
}

func TestDepthOrder(t *testing.T) {
	// join(deep, shallow) where deep = double(double(x)) and
	// shallow = double(x).
	for _, c := range []struct {
		declaration bool
		want        []string
	}{
		{false, []string{"deep1", "deep2", "shallow", "join"}},
		{true, []string{"shallow", "deep1", "deep2", "join"}},
	} {
		var (
			order   invocations
			wrap    = func(name string, f fn.Function) *counting { return &counting{Function: named{f, name}, order: &order} }
			b       = network.NewBuilder()
			in      = b.AddDummy("in", nil, decls(float, "x"))
			out     = b.AddDummy("out", decls(float, "y"), nil)
			deep1   = b.AddFunction("", wrap("deep1", double()))
			deep2   = b.AddFunction("", wrap("deep2", double()))
			shallow = b.AddFunction("", wrap("shallow", double()))
			join    = b.AddFunction("", wrap("join", builtin.AddFloats()))
		)
		b.Link(in.Output(0), deep1.Input(0))
		b.Link(deep1.Output(0), deep2.Input(0))
		b.Link(in.Output(0), shallow.Input(0))
		b.Link(deep2.Output(0), join.Input(0))
		b.Link(shallow.Output(0), join.Input(1))
		b.Link(join.Output(0), out.Input(0))
		net, err := b.Build()
		assert.NoError(t, err)
		if got, want := net.Depths(), []int{0, 0, 1, 2, 1, 3}; !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}

		e, err := network.NewEvaluator(in.Outputs(), out.Inputs(), network.Config{DeclarationOrder: c.declaration})
		assert.NoError(t, err)
		y := values.NewArray(types.Float32, 1)
		params := fn.NewParamsBuilder(e.Signature(), 1).
			AddSingleInput(values.SliceRef(types.Float32, []float32{1})).
			AddSingleOutput(y).
			Build()
		assert.NoError(t, e.Call(context.Background(), mfnet.RangeMask(1), params))
		assert.EQ(t, y.Get(0), float32(6))
		if got, want := order.names, c.want; !reflect.DeepEqual(got, want) {
			t.Errorf("declaration order %v: got %v, want %v", c.declaration, got, want)
		}
	}
}

// named renames a function.
type named struct {
	fn.Function
	name string
}

func (n named) Name() string { return n.name }

func TestFunctionError(t *testing.T) {
	var (
		b    = network.NewBuilder()
		in   = b.AddDummy("in", nil, decls(float, "x"))
		out  = b.AddDummy("out", decls(float, "y"), nil)
		a    = b.AddFunction("", double())
		fail = b.AddFunction("", failing("fail"))
	)
	b.Link(in.Output(0), a.Input(0))
	b.Link(a.Output(0), fail.Input(0))
	b.Link(fail.Output(0), out.Input(0))
	_, err := b.Build()
	assert.NoError(t, err)

	var buf bytes.Buffer
	e, err := network.NewEvaluator(in.Outputs(), out.Inputs(), network.Config{
		Log: log.New(log.WriterOutputter(&buf), log.DebugLevel),
	})
	assert.NoError(t, err)
	params := fn.NewParamsBuilder(e.Signature(), 1).
		AddSingleInput(values.SliceRef(types.Float32, []float32{1})).
		AddSingleOutput(values.NewArray(types.Float32, 1)).
		Build()
	err = e.Call(context.Background(), mfnet.RangeMask(1), params)
	if !errors.Is(errors.Eval, err) {
		t.Fatalf("got %v, want eval error", err)
	}
	if !strings.Contains(err.Error(), "fail#3") {
		t.Errorf("error %v does not name the failing node", err)
	}
	// The failing function's output is still held when storage closes.
	stats := e.LastStats()
	assert.EQ(t, stats.Allocs, 2)
	assert.EQ(t, stats.Frees, 1)
	assert.EQ(t, stats.Residual, 1)
	if !strings.Contains(buf.String(), "network: call over 1 indices failed") {
		t.Errorf("missing failure in log:\n%s", buf.String())
	}
}

func TestResidual(t *testing.T) {
	var (
		b   = network.NewBuilder()
		in  = b.AddDummy("in", nil, decls(float, "x"))
		out = b.AddDummy("out", decls(float, "y", "z"), nil)
		a   = b.AddFunction("", double())
	)
	b.Link(in.Output(0), a.Input(0))
	b.Link(a.Output(0), out.Input(0))
	b.Link(a.Output(0), out.Input(1))
	_, err := b.Build()
	assert.NoError(t, err)

	e, err := network.NewEvaluator(in.Outputs(), out.Inputs()[:1], network.Config{})
	assert.NoError(t, err)
	y := values.NewArray(types.Float32, 1)
	params := fn.NewParamsBuilder(e.Signature(), 1).
		AddSingleInput(values.SliceRef(types.Float32, []float32{4})).
		AddSingleOutput(y).
		Build()
	assert.NoError(t, e.Call(context.Background(), mfnet.RangeMask(1), params))
	assert.EQ(t, y.Get(0), float32(8))
	assert.EQ(t, e.LastStats().Residual, 1)
	assert.EQ(t, e.LastStats().Frees, 0)
}

func TestNewEvaluatorErrors(t *testing.T) {
	x := newExample(t)
	other := newExample(t)
	for _, c := range []struct {
		name    string
		inputs  []*network.OutputSocket
		outputs []*network.InputSocket
	}{
		{"empty", nil, nil},
		{"missing input", x.in.Outputs()[:2], x.out.Inputs()},
		{"function output", []*network.OutputSocket{x.add.Output(0)}, nil},
		{"function input", nil, []*network.InputSocket{x.add.Input(0)}},
		{"foreign", x.in.Outputs(), other.out.Inputs()},
		{"supplied twice", []*network.OutputSocket{x.in.Output(0), x.in.Output(1), x.in.Output(2), x.in.Output(0)}, x.out.Inputs()},
		{"requested twice", x.in.Outputs(), []*network.InputSocket{x.out.Input(0), x.out.Input(0)}},
	} {
		_, err := network.NewEvaluator(c.inputs, c.outputs, network.Config{})
		if !errors.Is(errors.Invalid, err) {
			t.Errorf("%s: got %v, want invalid", c.name, err)
		}
	}
}

func TestWrongParams(t *testing.T) {
	x := newExample(t)
	e, err := network.NewEvaluator(x.in.Outputs(), x.out.Inputs(), network.Config{})
	assert.NoError(t, err)
	f := builtin.AddFloats()
	params := fn.NewParamsBuilder(f.Signature(), 1).
		AddSingleInput(values.SliceRef(types.Float32, []float32{1})).
		AddSingleInput(values.SliceRef(types.Float32, []float32{1})).
		AddSingleOutput(values.NewArray(types.Float32, 1)).
		Build()
	if err := e.Call(context.Background(), mfnet.RangeMask(1), params); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want invalid", err)
	}
}

func TestNested(t *testing.T) {
	inner := newExample(t)
	ie, err := network.NewEvaluator(inner.in.Outputs(), inner.out.Inputs(), network.Config{Name: "inner"})
	assert.NoError(t, err)

	// out.z = inner(x, x, x) + x
	var (
		b    = network.NewBuilder()
		in   = b.AddDummy("in", nil, decls(float, "x"))
		out  = b.AddDummy("out", decls(float, "z"), nil)
		nest = b.AddFunction("", ie)
		add  = b.AddFunction("", builtin.AddFloats())
	)
	assert.EQ(t, nest.Name(), "inner")
	for i := 0; i < 3; i++ {
		b.Link(in.Output(0), nest.Input(i))
	}
	b.Link(nest.Output(0), add.Input(0))
	b.Link(in.Output(0), add.Input(1))
	b.Link(add.Output(0), out.Input(0))
	_, err = b.Build()
	assert.NoError(t, err)

	e, err := network.NewEvaluator(in.Outputs(), out.Inputs(), network.Config{})
	assert.NoError(t, err)
	z := values.NewArray(types.Float32, 3)
	params := fn.NewParamsBuilder(e.Signature(), 3).
		AddSingleInput(values.SliceRef(types.Float32, []float32{1, 2, 3})).
		AddSingleOutput(z).
		Build()
	assert.NoError(t, e.Call(context.Background(), mfnet.RangeMask(3), params))
	if got, want := values.Slice[float32](z), []float32{3, 10, 21}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	assert.EQ(t, inner.addFn.Calls(), 1)
	assert.EQ(t, ie.LastStats().Residual, 0)
}

func TestProfile(t *testing.T) {
	x := newExample(t)
	e, err := network.NewEvaluator(x.in.Outputs(), x.out.Inputs(), network.Config{})
	assert.NoError(t, err)
	for i := 0; i < 3; i++ {
		params := fn.NewParamsBuilder(e.Signature(), 1).
			AddSingleInput(values.SliceRef(types.Float32, []float32{1})).
			AddSingleInput(values.SliceRef(types.Float32, []float32{1})).
			AddSingleInput(values.SliceRef(types.Float32, []float32{1})).
			AddSingleOutput(values.NewArray(types.Float32, 1)).
			Build()
		assert.NoError(t, e.Call(context.Background(), mfnet.RangeMask(1), params))
	}
	p := e.Profile()
	if got, want := p.Names(), []string{"add", "multiply"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	assert.EQ(t, p.N("add"), 3)
	var b bytes.Buffer
	_, err = p.WriteTo(&b)
	assert.NoError(t, err)
	if got := strings.Count(b.String(), "\n"); got != 3 {
		t.Errorf("got %d lines, want 3:\n%s", got, b.String())
	}
}

func TestProfileReusedEvaluator(t *testing.T) {
	x := newExample(t)
	e, err := network.NewEvaluator(x.in.Outputs(), x.out.Inputs(), network.Config{})
	assert.NoError(t, err)
	a := values.SliceRef(types.Float32, []float32{1})
	out := values.NewArray(types.Float32, 1)
	const calls = 5000
	for i := 0; i < calls; i++ {
		params := fn.NewParamsBuilder(e.Signature(), 1).
			AddSingleInput(a).
			AddSingleInput(a).
			AddSingleInput(a).
			AddSingleOutput(out).
			Build()
		assert.NoError(t, e.Call(context.Background(), mfnet.RangeMask(1), params))
	}
	p := e.Profile()
	assert.EQ(t, p.N("add"), calls)
	assert.EQ(t, p.N("multiply"), calls)
	assert.EQ(t, len(p.Names()), 2)
	assert.True(t, p.Mean("add") >= 0)
}

func TestFunctionMetricLabels(t *testing.T) {
	b := network.NewBuilder()
	in := b.AddDummy("in", nil, decls(float, "a"))
	out := b.AddDummy("out", decls(float, "y", "z"), nil)
	by2 := b.AddFunction("", builtin.Custom1("scale by 2", types.Float32, types.Float32, func(x float32) float32 { return 2 * x }))
	by3 := b.AddFunction("", builtin.Custom1("scale by 3", types.Float32, types.Float32, func(x float32) float32 { return 3 * x }))
	b.Link(in.Output(0), by2.Input(0))
	b.Link(in.Output(0), by3.Input(0))
	b.Link(by2.Output(0), out.Input(0))
	b.Link(by3.Output(0), out.Input(1))
	_, err := b.Build()
	assert.NoError(t, err)
	e, err := network.NewEvaluator(in.Outputs(), out.Inputs(), network.Config{})
	assert.NoError(t, err)

	client, err := prometrics.NewClient(nil, "test")
	assert.NoError(t, err)
	ctx := metrics.WithClient(context.Background(), client)
	y, z := values.NewArray(types.Float32, 2), values.NewArray(types.Float32, 2)
	params := fn.NewParamsBuilder(e.Signature(), 2).
		AddSingleInput(values.SliceRef(types.Float32, []float32{1, 2})).
		AddSingleOutput(y).
		AddSingleOutput(z).
		Build()
	assert.NoError(t, e.Call(ctx, mfnet.RangeMask(2), params))
	if got, want := values.Slice[float32](z), []float32{3, 6}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	var buf bytes.Buffer
	assert.NoError(t, client.Dump(log.New(log.WriterOutputter(&buf), log.InfoLevel), map[string]bool{"functions_invoked_count": true}))
	dump := buf.String()
	if !strings.Contains(dump, "(function=scale)=2") {
		t.Errorf("missing family label in %q", dump)
	}
	if strings.Contains(dump, "scale by") {
		t.Errorf("function names leaked into labels: %q", dump)
	}
	assert.EQ(t, e.Profile().N("scale by 2"), 1)
}
