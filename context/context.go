// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package context defines the keys under which evaluation-scoped
// values are stored in a context.Context.
package context

type key int

const (
	TracerKey key = 0
	SpanKey   key = 1

	MetricsClientKey key = 2

	// GrainKey holds the minimum number of indices per parallel shard
	// used by function bodies.
	GrainKey key = 3
)
