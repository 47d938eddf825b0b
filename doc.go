// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package mfnet implements the core data structures for batched
// evaluation of multi-function networks.
//
// A multi-function is a computation that processes a whole batch of
// work items ("indices") per call: each single-valued parameter is a
// buffer with one element per index, and each vector-valued
// parameter holds an independently sized list per index. Which
// indices participate in a call is described by a Mask.
//
// Multi-functions are wired together into a network (package
// network): a directed acyclic graph of function nodes whose sockets
// carry a DataType. The network evaluator computes the values
// requested by a caller for all indices of a mask at once, evaluating
// each upstream function exactly once, and reusing buffers in place
// wherever a value has a single remaining consumer.
//
// Element types are described at runtime by package types; the
// type-erased buffers and read-only views passed to functions are
// defined by package values; the function contract is defined by
// package fn.
package mfnet
