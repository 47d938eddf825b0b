// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package network

import (
	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/fn"
)

// SocketDecl declares a socket of a dummy node.
type SocketDecl struct {
	Name string
	Type mfnet.DataType
}

// Builder constructs networks. Errors in linking are sticky: they
// are reported by Build.
type Builder struct {
	net  *Network
	errs []error
}

// NewBuilder returns a new, empty network builder.
func NewBuilder() *Builder {
	return &Builder{net: new(Network)}
}

func (b *Builder) newNode(name string, f fn.Function) *Node {
	if b.net == nil {
		errors.Panic("build", errors.New("builder reused after Build"))
	}
	node := &Node{net: b.net, id: len(b.net.nodes), name: name, fn: f}
	b.net.nodes = append(b.net.nodes, node)
	return node
}

func (b *Builder) newInput(node *Node, name string, typ mfnet.DataType) *InputSocket {
	s := &InputSocket{socket: socket{
		id:    len(b.net.sockets),
		node:  node,
		index: len(node.inputs),
		name:  name,
		typ:   typ,
	}}
	b.net.sockets = append(b.net.sockets, s)
	node.inputs = append(node.inputs, s)
	return s
}

func (b *Builder) newOutput(node *Node, name string, typ mfnet.DataType) *OutputSocket {
	s := &OutputSocket{socket: socket{
		id:    len(b.net.sockets),
		node:  node,
		index: len(node.outputs),
		name:  name,
		typ:   typ,
	}}
	b.net.sockets = append(b.net.sockets, s)
	node.outputs = append(node.outputs, s)
	return s
}

// AddFunction adds a function node wrapping f. The node has an input
// socket for each parameter of f's signature that consumes a value
// and an output socket for each parameter that produces one; mutable
// parameters have both. Sockets are named after their parameters. If
// name is empty, the node is named after the function.
func (b *Builder) AddFunction(name string, f fn.Function) *Node {
	if name == "" {
		name = f.Name()
	}
	node := b.newNode(name, f)
	sig := f.Signature()
	node.paramInputs = make([]*InputSocket, sig.Len())
	node.paramOutputs = make([]*OutputSocket, sig.Len())
	for i, p := range sig.Params {
		if p.Kind.IsInput() {
			node.paramInputs[i] = b.newInput(node, p.Name, p.DataType())
		}
		if p.Kind.IsOutput() {
			node.paramOutputs[i] = b.newOutput(node, p.Name, p.DataType())
		}
	}
	b.net.functions = append(b.net.functions, node)
	return node
}

// AddDummy adds a dummy node with the declared sockets. Dummy nodes
// stand for values supplied by and returned to callers.
func (b *Builder) AddDummy(name string, inputs, outputs []SocketDecl) *Node {
	node := b.newNode(name, nil)
	for _, d := range inputs {
		b.newInput(node, d.Name, d.Type)
	}
	for _, d := range outputs {
		b.newOutput(node, d.Name, d.Type)
	}
	b.net.dummies = append(b.net.dummies, node)
	return node
}

// Link makes from the origin of to. Both sockets must belong to this
// builder's network and carry the same data type, and to must not
// already have an origin.
func (b *Builder) Link(from *OutputSocket, to *InputSocket) {
	switch {
	case !b.owns(from) || !b.owns(to):
		b.errs = append(b.errs, errors.E("link", from, to, errors.Invalid,
			errors.New("socket belongs to another network")))
	case from.typ != to.typ:
		b.errs = append(b.errs, errors.E("link", from, to, errors.Invalid,
			errors.Errorf("cannot link %s to %s", from.typ, to.typ)))
	case to.origin != nil:
		b.errs = append(b.errs, errors.E("link", from, to, errors.Invalid,
			errors.Errorf("input already linked to %s", to.origin)))
	default:
		to.origin = from
		from.targets = append(from.targets, to)
	}
}

func (b *Builder) owns(s Socket) bool {
	id := s.ID()
	return b.net != nil && id < len(b.net.sockets) && b.net.sockets[id] == s
}

// Build validates and returns the constructed network: every input
// socket must be linked and the network must be acyclic. The builder
// may not be used after Build.
func (b *Builder) Build() (*Network, error) {
	net := b.net
	if net == nil {
		return nil, errors.E("build", errors.Invalid, errors.New("builder reused after Build"))
	}
	b.net = nil
	if len(b.errs) > 0 {
		return nil, errors.E("build", b.errs[0])
	}
	for _, s := range net.sockets {
		if in, ok := s.(*InputSocket); ok && in.origin == nil {
			return nil, errors.E("build", in, errors.Invalid, errors.New("input socket is not linked"))
		}
	}
	depths, err := computeDepths(net)
	if err != nil {
		return nil, errors.E("build", errors.Invalid, err)
	}
	net.depths = depths
	return net, nil
}
