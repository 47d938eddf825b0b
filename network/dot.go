// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package network

import (
	"fmt"
	"strings"

	"github.com/grailbio/mfnet/errors"
	"github.com/willf/bitset"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// dotNode is a network node in the dot graph.
type dotNode struct {
	*Node
	highlight bool
}

// ID implements graph.Node.
func (n dotNode) ID() int64 { return int64(n.Node.id) }

// DOTID implements dot.Node.
func (n dotNode) DOTID() string { return n.Node.String() }

// Attributes implements encoding.Attributer. Dummy nodes are drawn as
// boxes; highlighted function nodes are filled.
func (n dotNode) Attributes() []encoding.Attribute {
	var attrs []encoding.Attribute
	if n.IsDummy() {
		attrs = append(attrs, encoding.Attribute{Key: "shape", Value: "box"})
	} else {
		attrs = append(attrs, encoding.Attribute{Key: "tooltip", Value: n.fn.Signature().String()})
	}
	if n.highlight {
		attrs = append(attrs,
			encoding.Attribute{Key: "style", Value: "filled"},
			encoding.Attribute{Key: "fillcolor", Value: "green"})
	}
	return attrs
}

// dotEdge represents the links from the outputs of one node to the
// inputs of another.
type dotEdge struct {
	graph.Edge
	links []string
}

// Attributes implements encoding.Attributer.
func (e dotEdge) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "label", Value: strings.Join(e.links, `\n`)}}
}

// Dot renders the network in Graphviz dot format. The function nodes
// in highlight, such as those returned by FindFunctionDependencies,
// are filled.
func (n *Network) Dot(name string, highlight []*Node) ([]byte, error) {
	marked := bitset.New(uint(len(n.nodes)))
	for _, node := range highlight {
		marked.Set(uint(node.id))
	}
	g := simple.NewDirectedGraph()
	for _, node := range n.nodes {
		g.AddNode(dotNode{node, marked.Test(uint(node.id))})
	}
	type pair struct{ from, to int }
	var (
		pairs []pair
		links = make(map[pair][]string)
	)
	for _, node := range n.nodes {
		for _, in := range node.inputs {
			p := pair{in.origin.node.id, node.id}
			if _, ok := links[p]; !ok {
				pairs = append(pairs, p)
			}
			links[p] = append(links[p], fmt.Sprintf("%s -> %s", in.origin.name, in.name))
		}
	}
	for _, p := range pairs {
		from, to := g.Node(int64(p.from)), g.Node(int64(p.to))
		g.SetEdge(dotEdge{g.NewEdge(from, to), links[p]})
	}
	b, err := dot.Marshal(g, name, "", "\t")
	if err != nil {
		return nil, errors.E("dot", name, err)
	}
	return b, nil
}
