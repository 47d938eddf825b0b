// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package testutil provides utilities for testing network evaluation.
package testutil

import (
	"fmt"
	"math/rand"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/fn"
	"github.com/grailbio/mfnet/fn/builtin"
	"github.com/grailbio/mfnet/network"
	"github.com/grailbio/mfnet/types"
)

// Fuzz provides a simple deterministic fuzzer for masks, batched
// inputs and networks.
type Fuzz struct{ *rand.Rand }

// NewFuzz returns a new fuzzer based on the provided random number
// generator. If r is nil, NewFuzz creates one with a fixed seed.
func NewFuzz(r *rand.Rand) *Fuzz {
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}
	return &Fuzz{r}
}

// Mask returns a random non-empty mask of indices smaller than size.
func (f *Fuzz) Mask(size int) mfnet.Mask {
	if f.Intn(4) == 0 {
		return mfnet.RangeMask(size)
	}
	var indices []int
	for i := 0; i < size; i++ {
		if f.Intn(2) == 0 {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		indices = append(indices, f.Intn(size))
	}
	return mfnet.NewMask(indices)
}

// Floats returns n arrays of size small integral values.
func (f *Fuzz) Floats(n, size int) [][]float32 {
	vals := make([][]float32, n)
	for i := range vals {
		vals[i] = make([]float32, size)
		for j := range vals[i] {
			vals[i][j] = float32(f.Intn(7) - 3)
		}
	}
	return vals
}

var binaryOps = []string{"add", "subtract", "multiply"}

// Op is an operation of a random network. Args index the network's
// values: the first NumInputs values are the network's inputs, and
// the value of operation j has index NumInputs+j.
type Op struct {
	Name string
	Args []int
}

func (op Op) function() fn.Function {
	switch op.Name {
	case "add":
		return builtin.AddFloats()
	case "subtract":
		return builtin.SubtractFloats()
	case "multiply":
		return builtin.MultiplyFloats()
	case "negate":
		return builtin.Mutate("negate", types.Float32, func(x *float32) { *x = -*x })
	}
	panic(fmt.Sprintf("unknown op %s", op.Name))
}

// Network is a random network of float operations.
type Network struct {
	NumInputs int
	Ops       []Op
	// Outputs are the indices of the requested values.
	Outputs []int
}

// Network returns a random network with the given number of inputs
// and operations, numOps > 0. Every operation result that is not
// consumed by another operation is requested, so that every
// operation is required to compute the outputs. Inputs may be
// requested directly.
func (f *Fuzz) Network(numInputs, numOps int) *Network {
	n := &Network{NumInputs: numInputs}
	used := make([]bool, numInputs+numOps)
	for j := 0; j < numOps; j++ {
		var (
			nvals = numInputs + j
			op    = Op{Name: "negate", Args: []int{f.arg(nvals)}}
		)
		if f.Intn(4) != 0 {
			op = Op{Name: binaryOps[f.Intn(len(binaryOps))], Args: []int{f.arg(nvals), f.arg(nvals)}}
		}
		for _, a := range op.Args {
			used[a] = true
		}
		n.Ops = append(n.Ops, op)
	}
	for v := numInputs; v < numInputs+numOps; v++ {
		if !used[v] {
			n.Outputs = append(n.Outputs, v)
		}
	}
	if f.Intn(3) == 0 {
		n.Outputs = append(n.Outputs, f.Intn(numInputs))
	}
	return n
}

// arg picks one of nvals values, favoring recent ones so that
// networks are deep.
func (f *Fuzz) arg(nvals int) int {
	if nvals > 2 && f.Intn(2) == 0 {
		return nvals - 1 - f.Intn(2)
	}
	return f.Intn(nvals)
}

// Build builds the network. It returns the dummy node supplying the
// inputs and the dummy node receiving the outputs.
func (n *Network) Build() (in, out *network.Node, err error) {
	float := mfnet.SingleType(types.Float32)
	var (
		b       = network.NewBuilder()
		inDecls = make([]network.SocketDecl, n.NumInputs)
		outDecl = make([]network.SocketDecl, len(n.Outputs))
	)
	for i := range inDecls {
		inDecls[i] = network.SocketDecl{Name: fmt.Sprintf("in%d", i), Type: float}
	}
	for i := range outDecl {
		outDecl[i] = network.SocketDecl{Name: fmt.Sprintf("out%d", i), Type: float}
	}
	in = b.AddDummy("in", nil, inDecls)
	out = b.AddDummy("out", outDecl, nil)
	sockets := append([]*network.OutputSocket(nil), in.Outputs()...)
	for _, op := range n.Ops {
		node := b.AddFunction("", op.function())
		for i, a := range op.Args {
			b.Link(sockets[a], node.Input(i))
		}
		sockets = append(sockets, node.Output(0))
	}
	for i, v := range n.Outputs {
		b.Link(sockets[v], out.Input(i))
	}
	if _, err = b.Build(); err != nil {
		return nil, nil, err
	}
	return in, out, nil
}

// Eval computes the requested values at index i directly from the
// inputs.
func (n *Network) Eval(inputs [][]float32, i int) []float32 {
	vals := make([]float32, n.NumInputs, n.NumInputs+len(n.Ops))
	for k := range vals {
		vals[k] = inputs[k][i]
	}
	for _, op := range n.Ops {
		var v float32
		switch a := vals[op.Args[0]]; op.Name {
		case "add":
			v = a + vals[op.Args[1]]
		case "subtract":
			v = a - vals[op.Args[1]]
		case "multiply":
			v = a * vals[op.Args[1]]
		case "negate":
			v = -a
		}
		vals = append(vals, v)
	}
	out := make([]float32, len(n.Outputs))
	for j, v := range n.Outputs {
		out[j] = vals[v]
	}
	return out
}
