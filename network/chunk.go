// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package network

import (
	"context"
	"fmt"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/fn"
	"github.com/grailbio/mfnet/trace"
	"golang.org/x/sync/errgroup"
)

// CallChunked computes the requested values in the manner of Call,
// splitting mask into chunks of at most chunkSize indices that are
// evaluated concurrently, each in its own storage. Chunks write to
// disjoint indices of the output parameters. At most parallelism
// chunks run at once; parallelism <= 0 means no limit. LastStats
// reports the stats of all chunks combined.
func (e *Evaluator) CallChunked(ctx context.Context, mask mfnet.Mask, params *fn.Params, chunkSize, parallelism int) error {
	if params.Signature() != e.sig {
		return errors.E("call", e.sig.Name, errors.Invalid,
			errors.Errorf("parameters bound for %s", params.Signature().Name))
	}
	if mask.Len() == 0 {
		return nil
	}
	chunks := mask.Chunks(chunkSize)
	stats := make([]StorageStats, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			cctx, done := trace.Start(gctx, trace.Chunk, e.net.Digest(), fmt.Sprintf("%s chunk %d", e.sig.Name, i))
			defer done()
			var err error
			stats[i], err = e.call(cctx, chunk, params)
			return err
		})
	}
	err := g.Wait()
	var total StorageStats
	for _, s := range stats {
		total.Add(s)
	}
	e.mu.Lock()
	e.stats = total
	e.mu.Unlock()
	return err
}
