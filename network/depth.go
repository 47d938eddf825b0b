// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package network

import "github.com/grailbio/mfnet/errors"

const (
	depthUnknown = iota
	depthExpanded
	depthDone
)

// computeDepths computes the depth of each node with an explicit
// worklist: a node is finalized only once the nodes of all of its
// input origins are; until then, those nodes are pushed above it.
// Returning to an expanded node whose origins are still unfinished
// is only possible on a cycle.
func computeDepths(net *Network) ([]int, error) {
	var (
		depths = make([]int, len(net.nodes))
		state  = make([]int, len(net.nodes))
		stack  = make([]*Node, 0, len(net.functions))
	)
	for _, node := range net.dummies {
		state[node.id] = depthDone
	}
	for i := len(net.functions) - 1; i >= 0; i-- {
		stack = append(stack, net.functions[i])
	}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		if state[node.id] == depthDone {
			stack = stack[:len(stack)-1]
			continue
		}
		var (
			ready   = true
			deepest int
		)
		for _, s := range node.inputs {
			origin := s.origin.node
			if state[origin.id] != depthDone {
				if state[node.id] == depthExpanded {
					return nil, errors.E("depth", node, errors.New("network contains a cycle"))
				}
				stack = append(stack, origin)
				ready = false
			} else if depths[origin.id] > deepest {
				deepest = depths[origin.id]
			}
		}
		if !ready {
			state[node.id] = depthExpanded
			continue
		}
		stack = stack[:len(stack)-1]
		depths[node.id] = deepest + 1
		state[node.id] = depthDone
	}
	return depths, nil
}
