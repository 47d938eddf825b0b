// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package tool

import (
	"bytes"
	"context"
	"flag"
	"fmt"

	"github.com/grailbio/mfnet/config"
)

func (c *Cmd) config(ctx context.Context, args ...string) {
	var (
		flags  = flag.NewFlagSet("config", flag.ExitOnError)
		header = `Config writes the current mfnet configuration to standard
output.

Mfnet's configuration is a YAML file with the following toplevel
keys:

`
		footer = `The default configuration may be modified and supplied
to subsequent invocations:

	$ mfnet config > myconfig
	<edit myconfig>
	$ mfnet -config myconfig ...`
	)
	b := new(bytes.Buffer)
	b.WriteString(header)
	for _, key := range config.AllKeys {
		fmt.Fprintf(b, "%s: %s\n", key, config.Usage(key))
	}
	b.WriteString("\n")
	b.WriteString(footer)

	c.Parse(flags, args, b.String(), "config")
	if flags.NArg() != 0 {
		flags.Usage()
	}
	data, err := config.Marshal(c.Config)
	c.must(err)
	_, err = c.Stdout.Write(data)
	c.must(err)
}
