// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package tool

import (
	"context"
	"flag"
	"runtime"
	"strings"

	"github.com/grailbio/mfnet/fn/builtin"
	"github.com/grailbio/mfnet/types"
)

func (c *Cmd) versionCmd(ctx context.Context, args ...string) {
	var (
		flags = flag.NewFlagSet("version", flag.ExitOnError)
		help  = "Version displays this binary's version and the Go version with which it was built."
	)
	c.Parse(flags, args, help, "version")
	if flags.NArg() != 0 {
		flags.Usage()
	}
	version := c.Version
	if version == "" {
		version = "broken"
	}
	c.Printf("%s (%s)\n", version, runtime.Version())
}

func (c *Cmd) functions(ctx context.Context, args ...string) {
	var (
		flags = flag.NewFlagSet("functions", flag.ExitOnError)
		help  = `Functions lists the builtin functions that may be named by the
nodes of a network description, and the element types that may be
used in type names. A type name may be suffixed by " list" to denote
a vector type.`
	)
	c.Parse(flags, args, help, "functions")
	if flags.NArg() != 0 {
		flags.Usage()
	}
	c.Println("functions:", strings.Join(builtin.Names(), " "))
	c.Println("types:", strings.Join(types.Names(), " "))
}
