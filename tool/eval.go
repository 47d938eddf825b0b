// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package tool

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/grailbio/mfnet/config"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/internal/netspec"
	"github.com/grailbio/mfnet/log"
	"github.com/grailbio/mfnet/metrics"
	"github.com/grailbio/mfnet/network"
	"github.com/grailbio/mfnet/trace"
)

// evalOptions are the per-invocation options of the eval command.
type evalOptions struct {
	// DotFile, if set, receives the network in dot format with the
	// nodes required for the requested outputs highlighted.
	DotFile string
	// Profile prints a table of function timings.
	Profile bool
	// Stats prints the storage statistics of the evaluation.
	Stats bool
}

func (c *Cmd) eval(ctx context.Context, args ...string) {
	var (
		flags = flag.NewFlagSet("eval", flag.ExitOnError)
		help  = `Eval evaluates the network described by the given YAML file
over the file's mask and prints the requested outputs, one line per
output and index:

	name[index] = value

Evaluation is configured by the global configuration; for example
-chunksize splits the mask into concurrently evaluated chunks, and
-trace writes a trace of function invocations.`
		opts evalOptions
	)
	flags.StringVar(&opts.DotFile, "dot", "", "write the network in dot format to this file")
	flags.BoolVar(&opts.Profile, "profile", false, "print function timings")
	flags.BoolVar(&opts.Stats, "stats", false, "print storage statistics")
	c.Parse(flags, args, help, "eval [-dot file] [-profile] [-stats] network.yaml")
	if flags.NArg() != 1 {
		flags.Usage()
	}
	if err := evaluate(ctx, c.Config, c.Log, flags.Arg(0), opts, c.Stdout); err != nil {
		c.Fatal(err)
	}
}

// evaluate builds and evaluates the network described by the file at
// path, writing results and requested reports to w.
func evaluate(ctx context.Context, cfg *config.Config, l *log.Logger, path string, opts evalOptions, w io.Writer) error {
	spec, err := netspec.ReadFile(path)
	if err != nil {
		return err
	}
	prog, err := spec.Build()
	if err != nil {
		return err
	}

	client, err := cfg.MetricsClient()
	if err != nil {
		return err
	}
	ctx = metrics.WithClient(ctx, client)
	if cfg.Metrics != "" {
		sctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := client.Serve(sctx, cfg.Metrics, l); err != nil {
				l.Errorf("metrics server: %v", err)
			}
		}()
	}
	tracer, err := cfg.Tracer()
	if err != nil {
		return err
	}
	if tracer != nil {
		ctx = trace.WithTracer(ctx, tracer)
	}
	ctx = cfg.Context(ctx)

	e, err := prog.Evaluator(cfg.EvalConfig(prog.Name, l))
	if err != nil {
		return err
	}
	params, results := prog.Params(e)
	begin := time.Now()
	if cfg.ChunkSize > 0 {
		err = e.CallChunked(ctx, prog.Mask, params, cfg.ChunkSize, cfg.Parallelism)
	} else {
		err = e.Call(ctx, prog.Mask, params)
	}
	if tracer != nil {
		if ferr := tracer.Flush(); ferr != nil && err == nil {
			err = errors.E("flush trace", tracer.Path(), ferr)
		}
	}
	if err != nil {
		return err
	}
	l.Debugf("evaluated %s over %d indices in %s", e.Name(), prog.Mask.Len(), time.Since(begin))

	if err := results.Write(w, prog.Mask); err != nil {
		return err
	}
	if opts.Profile {
		if _, err := e.Profile().WriteTo(w); err != nil {
			return err
		}
	}
	if opts.Stats {
		writeStats(w, e.LastStats())
	}
	if opts.DotFile != "" {
		if err := writeDot(prog, opts.DotFile); err != nil {
			return err
		}
	}
	if cfg.DumpMetrics {
		if err := client.Dump(l, nil); err != nil {
			return err
		}
	}
	return nil
}

func writeStats(w io.Writer, s network.StorageStats) {
	fmt.Fprintf(w, "allocs %d moves %d copies %d frees %d residual %d peak %d bytes %s\n",
		s.Allocs, s.Moves, s.Copies, s.Frees, s.Residual, s.PeakLive, s.ArrayBytes)
}

func writeDot(prog *netspec.Program, path string) error {
	required := prog.Network.FindFunctionDependencies(prog.Out.Inputs())
	b, err := prog.Network.Dot(prog.Name, required)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return errors.E("write dot", path, err)
	}
	return nil
}

func (c *Cmd) dot(ctx context.Context, args ...string) {
	var (
		flags = flag.NewFlagSet("dot", flag.ExitOnError)
		help  = `Dot prints the network described by the given YAML file in
Graphviz dot format. Function nodes required to compute the network's
outputs are filled.`
	)
	c.Parse(flags, args, help, "dot network.yaml")
	if flags.NArg() != 1 {
		flags.Usage()
	}
	spec, err := netspec.ReadFile(flags.Arg(0))
	c.must(err)
	prog, err := spec.Build()
	c.must(err)
	required := prog.Network.FindFunctionDependencies(prog.Out.Inputs())
	b, err := prog.Network.Dot(prog.Name, required)
	c.must(err)
	_, err = c.Stdout.Write(b)
	c.must(err)
}
