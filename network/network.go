// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package network implements networks of multi-functions and their
// batched evaluation.
//
// A Network is an immutable directed acyclic graph of nodes. Function
// nodes wrap an fn.Function; dummy nodes represent values supplied by
// or returned to a caller. Nodes own input and output sockets; each
// input socket consumes the value of exactly one output socket, its
// origin, and each output socket may fan out to any number of input
// sockets, its targets. Sockets are numbered densely across the whole
// network so that their ids may index tables.
//
// An Evaluator computes a set of requested sockets for a batch of
// indices. It walks the network on demand, invokes each required
// function node exactly once, and keeps intermediate values in a
// Storage that frees every buffer as soon as its last consumer is
// done and hands buffers over to sole remaining consumers instead of
// copying them.
package network

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/grailbio/base/digest"
	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/fn"
	"github.com/willf/bitset"
)

// Socket is implemented by *InputSocket and *OutputSocket.
type Socket interface {
	// ID returns the socket's network-wide id.
	ID() int
	// Node returns the node that owns the socket.
	Node() *Node
	// Index returns the socket's position among its node's inputs or
	// outputs.
	Index() int
	// Name returns the socket's name.
	Name() string
	// DataType returns the type of values carried by the socket.
	DataType() mfnet.DataType
	// IsInput tells whether this is an input socket.
	IsInput() bool

	String() string
}

type socket struct {
	id    int
	node  *Node
	index int
	name  string
	typ   mfnet.DataType
}

func (s *socket) ID() int                  { return s.id }
func (s *socket) Node() *Node              { return s.node }
func (s *socket) Index() int               { return s.index }
func (s *socket) Name() string             { return s.name }
func (s *socket) DataType() mfnet.DataType { return s.typ }

func (s *socket) String() string {
	return fmt.Sprintf("%s.%s", s.node, s.name)
}

// InputSocket is a socket that consumes a value.
type InputSocket struct {
	socket
	origin *OutputSocket
}

// IsInput returns true.
func (s *InputSocket) IsInput() bool { return true }

// Origin returns the output socket whose value s consumes.
func (s *InputSocket) Origin() *OutputSocket {
	return s.origin
}

// OutputSocket is a socket that produces a value.
type OutputSocket struct {
	socket
	targets []*InputSocket
}

// IsInput returns false.
func (s *OutputSocket) IsInput() bool { return false }

// Targets returns the input sockets that consume the value of s.
func (s *OutputSocket) Targets() []*InputSocket {
	return s.targets
}

// Node is a function node or a dummy node of a network.
type Node struct {
	net     *Network
	id      int
	name    string
	fn      fn.Function
	inputs  []*InputSocket
	outputs []*OutputSocket

	// paramInputs and paramOutputs map the parameters of a function
	// node's signature to its sockets.
	paramInputs  []*InputSocket
	paramOutputs []*OutputSocket
}

// ID returns the node's network-wide id.
func (n *Node) ID() int { return n.id }

// Network returns the network that contains the node.
func (n *Node) Network() *Network { return n.net }

// Name returns the node's name.
func (n *Node) Name() string { return n.name }

// Function returns the function wrapped by a function node, or nil
// for dummy nodes.
func (n *Node) Function() fn.Function { return n.fn }

// IsDummy tells whether n is a dummy node.
func (n *Node) IsDummy() bool { return n.fn == nil }

// IsFunction tells whether n is a function node.
func (n *Node) IsFunction() bool { return n.fn != nil }

// Inputs returns the node's input sockets.
func (n *Node) Inputs() []*InputSocket { return n.inputs }

// Outputs returns the node's output sockets.
func (n *Node) Outputs() []*OutputSocket { return n.outputs }

// Input returns the node's i'th input socket.
func (n *Node) Input(i int) *InputSocket { return n.inputs[i] }

// Output returns the node's i'th output socket.
func (n *Node) Output(i int) *OutputSocket { return n.outputs[i] }

// InputForParam returns the input socket bound to parameter i of a
// function node's signature. It returns nil for output parameters.
func (n *Node) InputForParam(i int) *InputSocket { return n.paramInputs[i] }

// OutputForParam returns the output socket bound to parameter i of a
// function node's signature. It returns nil for input parameters.
func (n *Node) OutputForParam(i int) *OutputSocket { return n.paramOutputs[i] }

// InputNamed returns the input socket with the given name, or nil.
func (n *Node) InputNamed(name string) *InputSocket {
	for _, s := range n.inputs {
		if s.name == name {
			return s
		}
	}
	return nil
}

// OutputNamed returns the output socket with the given name, or nil.
func (n *Node) OutputNamed(name string) *OutputSocket {
	for _, s := range n.outputs {
		if s.name == name {
			return s
		}
	}
	return nil
}

func (n *Node) String() string {
	return fmt.Sprintf("%s#%d", n.name, n.id)
}

// Network is an immutable network of nodes, constructed by a
// Builder. Derived data such as node depths and the network's digest
// are computed once and cached; a network with a different structure
// is a different Network.
type Network struct {
	nodes     []*Node
	sockets   []Socket
	functions []*Node
	dummies   []*Node

	depths []int

	digestOnce sync.Once
	digest     digest.Digest
}

// Nodes returns all nodes of the network, ordered by id.
func (n *Network) Nodes() []*Node { return n.nodes }

// Node returns the node with the given id.
func (n *Network) Node(id int) *Node { return n.nodes[id] }

// FunctionNodes returns the network's function nodes.
func (n *Network) FunctionNodes() []*Node { return n.functions }

// DummyNodes returns the network's dummy nodes.
func (n *Network) DummyNodes() []*Node { return n.dummies }

// NumSockets returns the number of socket ids in the network.
func (n *Network) NumSockets() int { return len(n.sockets) }

// Socket returns the socket with the given id.
func (n *Network) Socket(id int) Socket { return n.sockets[id] }

// Depths returns the depth of each node, indexed by node id. Dummy
// nodes have depth 0; function nodes have a depth one greater than
// the deepest origin of their inputs. The returned slice must not be
// modified.
func (n *Network) Depths() []int { return n.depths }

// Depth returns the depth of node x.
func (n *Network) Depth(x *Node) int { return n.depths[x.id] }

// Digest returns a digest of the network's structure: its nodes'
// signatures and the links between their sockets.
func (n *Network) Digest() digest.Digest {
	n.digestOnce.Do(func() {
		w := mfnet.Digester.NewWriter()
		for _, node := range n.nodes {
			if node.IsFunction() {
				io.WriteString(w, "function ")
				digest.WriteDigest(w, node.fn.Signature().Digest())
			} else {
				io.WriteString(w, "dummy "+node.name)
				for _, s := range node.inputs {
					io.WriteString(w, " in "+s.typ.String())
				}
				for _, s := range node.outputs {
					io.WriteString(w, " out "+s.typ.String())
				}
			}
			for _, s := range node.inputs {
				fmt.Fprintf(w, " %d<-%d", s.id, s.origin.id)
			}
			io.WriteString(w, "\n")
		}
		n.digest = w.Digest()
	})
	return n.digest
}

// FindFunctionDependencies returns the function nodes whose outputs
// are required, transitively, to compute the given input sockets,
// ordered by id.
func (n *Network) FindFunctionDependencies(sockets []*InputSocket) []*Node {
	var (
		seen  = bitset.New(uint(len(n.nodes)))
		stack []*Node
		found []*Node
	)
	for _, s := range sockets {
		stack = append(stack, s.origin.node)
	}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen.Test(uint(node.id)) {
			continue
		}
		seen.Set(uint(node.id))
		if node.IsDummy() {
			continue
		}
		found = append(found, node)
		for _, s := range node.inputs {
			stack = append(stack, s.origin.node)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].id < found[j].id })
	return found
}

// String returns a summary of the network.
func (n *Network) String() string {
	return fmt.Sprintf("network %s (%d functions, %d dummies, %d sockets)",
		n.Digest().Short(), len(n.functions), len(n.dummies), len(n.sockets))
}
