// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package netspec parses YAML network descriptions and builds them
// into evaluable networks. A description names the values supplied
// by the caller, the function nodes and how their inputs are linked,
// and the requested outputs:
//
//	name: example
//	size: 3
//	inputs:
//	  - {name: a, type: float, values: [1, 2, 3]}
//	  - {name: b, type: float, value: 10}
//	nodes:
//	  - name: sum
//	    function: add
//	    inputs: {a: in.a, b: in.b}
//	outputs:
//	  - {name: y, from: sum.result}
//
// Values supplied by the caller are outputs of the dummy node "in";
// requested values are inputs of the dummy node "out". Nodes either
// name a builtin function (see package builtin) or carry a Starlark
// script (see package starfn).
package netspec

import (
	"os"
	"strings"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/fn"
	"github.com/grailbio/mfnet/fn/builtin"
	"github.com/grailbio/mfnet/fn/starfn"
	"github.com/grailbio/mfnet/network"
	"github.com/grailbio/mfnet/types"
	yaml "gopkg.in/yaml.v2"
)

// The names of the dummy nodes of a described network.
const (
	InNode  = "in"
	OutNode = "out"
)

// Spec is a network description.
type Spec struct {
	// Name names the network's evaluator.
	Name string `yaml:"name"`
	// Size is the number of indices evaluated, [0, Size).
	Size int `yaml:"size"`
	// Mask lists the indices evaluated explicitly. It overrides Size.
	Mask []int `yaml:"mask"`
	// Inputs are the values supplied by the caller.
	Inputs []Input `yaml:"inputs"`
	// Nodes are the function nodes of the network.
	Nodes []Node `yaml:"nodes"`
	// Outputs are the requested values.
	Outputs []Output `yaml:"outputs"`
}

// Input is a value supplied by the caller. Exactly one of Value and
// Values is set.
type Input struct {
	Name string `yaml:"name"`
	// Type is the data type, e.g., "float" or "int list".
	Type string `yaml:"type"`
	// Value is broadcast to every index.
	Value interface{} `yaml:"value"`
	// Values holds the value of each index.
	Values []interface{} `yaml:"values"`
}

// Node is a function node. Exactly one of Function and Script is set.
type Node struct {
	Name string `yaml:"name"`
	// Function is the name of a builtin function.
	Function string `yaml:"function"`
	// Type, Value and N are the arguments of generic builtins.
	Type  string      `yaml:"type"`
	Value interface{} `yaml:"value"`
	N     int         `yaml:"n"`
	// Script is the body of a scripted function.
	Script *Script `yaml:"script"`
	// Inputs maps each input socket of the node to the output socket
	// it consumes, as "node.socket".
	Inputs map[string]string `yaml:"inputs"`
}

// Script is a Starlark function body with its parameters. Scripted
// functions have single parameters only.
type Script struct {
	Source string `yaml:"source"`
	// Entry is the name of the function defined by Source. It
	// defaults to "f".
	Entry   string  `yaml:"entry"`
	Inputs  []Param `yaml:"inputs"`
	Outputs []Param `yaml:"outputs"`
}

// Param is a parameter of a scripted function.
type Param struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Output is a requested value.
type Output struct {
	Name string `yaml:"name"`
	// From is the output socket whose value is requested, as
	// "node.socket".
	From string `yaml:"from"`
}

// Parse parses a network description from the YAML-formatted bytes b.
func Parse(b []byte) (*Spec, error) {
	spec := new(Spec)
	if err := yaml.UnmarshalStrict(b, spec); err != nil {
		return nil, errors.E("parse network", errors.Invalid, err)
	}
	return spec, nil
}

// ReadFile reads and parses the network description in the provided
// file.
func ReadFile(path string) (*Spec, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.E("read network", path, errors.NotExist, err)
	} else if err != nil {
		return nil, errors.E("read network", path, err)
	}
	spec, err := Parse(b)
	if err != nil {
		return nil, errors.E("read network", path, err)
	}
	return spec, nil
}

// ParseType parses a data type: an element type name, optionally
// followed by "list" for vector types.
func ParseType(s string) (mfnet.DataType, error) {
	name, category := strings.TrimSpace(s), mfnet.Single
	if base, ok := strings.CutSuffix(name, " list"); ok {
		name, category = strings.TrimSpace(base), mfnet.Vector
	}
	t, ok := types.Lookup(name)
	if !ok {
		return mfnet.DataType{}, errors.E("type", s, errors.NotExist, errors.New("no such element type"))
	}
	return mfnet.DataType{Category: category, Type: t}, nil
}

// Build builds the described network and binds its inputs.
func (s *Spec) Build() (*Program, error) {
	mask, err := s.mask()
	if err != nil {
		return nil, err
	}
	name := s.Name
	if name == "" {
		name = "network"
	}
	p := &Program{Name: name, Mask: mask}
	b := network.NewBuilder()

	decls := make([]network.SocketDecl, len(s.Inputs))
	for i, in := range s.Inputs {
		typ, err := ParseType(in.Type)
		if err != nil {
			return nil, errors.E("input", in.Name, err)
		}
		decls[i] = network.SocketDecl{Name: in.Name, Type: typ}
		v, err := bind(typ, in, mask.MinArraySize())
		if err != nil {
			return nil, errors.E("input", in.Name, err)
		}
		p.inputs = append(p.inputs, v)
	}
	p.In = b.AddDummy(InNode, nil, decls)

	nodes := map[string]*network.Node{InNode: p.In}
	for _, n := range s.Nodes {
		if n.Name == "" || strings.Contains(n.Name, ".") {
			return nil, errors.E("node", n.Name, errors.Invalid, errors.New("bad node name"))
		}
		if _, ok := nodes[n.Name]; ok || n.Name == OutNode {
			return nil, errors.E("node", n.Name, errors.Invalid, errors.New("duplicate node name"))
		}
		f, err := n.function()
		if err != nil {
			return nil, errors.E("node", n.Name, err)
		}
		nodes[n.Name] = b.AddFunction(n.Name, f)
	}
	for _, n := range s.Nodes {
		node := nodes[n.Name]
		for name := range n.Inputs {
			if node.InputNamed(name) == nil {
				return nil, errors.E("node", n.Name, name, errors.NotExist, errors.New("no such input"))
			}
		}
		for _, in := range node.Inputs() {
			ref, ok := n.Inputs[in.Name()]
			if !ok {
				return nil, errors.E("node", n.Name, in.Name(), errors.Invalid, errors.New("input is not linked"))
			}
			from, err := resolve(nodes, ref)
			if err != nil {
				return nil, errors.E("node", n.Name, in.Name(), err)
			}
			b.Link(from, in)
		}
	}

	var (
		froms = make([]*network.OutputSocket, len(s.Outputs))
		outs  = make([]network.SocketDecl, len(s.Outputs))
	)
	for i, out := range s.Outputs {
		from, err := resolve(nodes, out.From)
		if err != nil {
			return nil, errors.E("output", out.Name, err)
		}
		froms[i] = from
		outs[i] = network.SocketDecl{Name: out.Name, Type: from.DataType()}
	}
	p.Out = b.AddDummy(OutNode, outs, nil)
	for i, from := range froms {
		b.Link(from, p.Out.Input(i))
	}
	if p.Network, err = b.Build(); err != nil {
		return nil, errors.E("build", s.Name, err)
	}
	return p, nil
}

func (s *Spec) mask() (mfnet.Mask, error) {
	if len(s.Mask) == 0 {
		if s.Size < 0 {
			return mfnet.Mask{}, errors.E("mask", errors.Invalid, errors.Errorf("negative size %d", s.Size))
		}
		return mfnet.RangeMask(s.Size), nil
	}
	for i, index := range s.Mask {
		if index < 0 || (i > 0 && index <= s.Mask[i-1]) {
			return mfnet.Mask{}, errors.E("mask", errors.Invalid,
				errors.New("indices must be non-negative and strictly increasing"))
		}
	}
	return mfnet.NewMask(s.Mask), nil
}

func (n Node) function() (fn.Function, error) {
	switch {
	case n.Function != "" && n.Script != nil:
		return nil, errors.E(errors.Invalid, errors.New("node has both a function and a script"))
	case n.Script != nil:
		return n.Script.compile(n.Name)
	case n.Function == "":
		return nil, errors.E(errors.Invalid, errors.New("node has neither a function nor a script"))
	}
	args := builtin.Args{N: n.N}
	if n.Type != "" {
		t, ok := types.Lookup(n.Type)
		if !ok {
			return nil, errors.E("type", n.Type, errors.NotExist, errors.New("no such element type"))
		}
		args.Type = t
	}
	if n.Value != nil {
		if args.Type == nil {
			return nil, errors.E(errors.Invalid, errors.New("value given without a type"))
		}
		v, err := convert(args.Type, n.Value)
		if err != nil {
			return nil, err
		}
		args.Value = v
	}
	return builtin.New(n.Function, args)
}

func (s *Script) compile(name string) (fn.Function, error) {
	b := fn.NewSignature(name)
	for _, p := range s.Inputs {
		t, ok := types.Lookup(p.Type)
		if !ok {
			return nil, errors.E("type", p.Type, errors.NotExist, errors.New("no such element type"))
		}
		b.SingleInput(p.Name, t)
	}
	for _, p := range s.Outputs {
		t, ok := types.Lookup(p.Type)
		if !ok {
			return nil, errors.E("type", p.Type, errors.NotExist, errors.New("no such element type"))
		}
		b.SingleOutput(p.Name, t)
	}
	entry := s.Entry
	if entry == "" {
		entry = "f"
	}
	return starfn.New(b.Build(), s.Source, entry)
}

func resolve(nodes map[string]*network.Node, ref string) (*network.OutputSocket, error) {
	name, socket, ok := strings.Cut(ref, ".")
	if !ok {
		return nil, errors.E("link", ref, errors.Invalid, errors.New("reference is not of the form node.socket"))
	}
	node, ok := nodes[name]
	if !ok {
		return nil, errors.E("link", ref, errors.NotExist, errors.New("no such node"))
	}
	out := node.OutputNamed(socket)
	if out == nil {
		return nil, errors.E("link", ref, errors.NotExist, errors.New("no such output"))
	}
	return out, nil
}
