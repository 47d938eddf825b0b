// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command mfnet evaluates networks of multi-functions described in
// YAML. See "mfnet -help" for details.
package main

import (
	"os"

	"github.com/grailbio/mfnet/tool"
)

// version is set by the linker, e.g.:
//
//	go build -ldflags "-X main.version=$(git describe)"
var version string

var configFile = os.ExpandEnv("$HOME/.mfnet/config.yaml")

const intro = `Evaluation of large batches

Masks with many indices may be evaluated in concurrent chunks, each
with its own intermediate storage:

	mfnet -chunksize 4096 -parallelism 8 eval network.yaml

Function timings and storage statistics of an evaluation are printed
by eval -profile and eval -stats.`

func main() {
	cmd := &tool.Cmd{
		DefaultConfigFile: configFile,
		Version:           version,
		Intro:             intro,
	}
	cmd.Flags().Parse(os.Args[1:])
	cmd.Main()
}
