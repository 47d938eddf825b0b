// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package tool implements the mfnet command.
package tool

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof" // Registers pprof handlers served by -http.
	"os"
	"os/signal"
	"runtime/pprof"
	"sort"

	"github.com/grailbio/mfnet/config"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/log"
)

// Func is a subcommand. It receives the subcommand's arguments,
// including its flags.
type Func func(*Cmd, context.Context, ...string)

// Cmd is a single invocation of the mfnet command: its configuration,
// its subcommands, and where it writes.
type Cmd struct {
	// Config is the evaluation configuration. When nil, Main starts
	// from config.Default. Either way the configuration file and the
	// override flags are applied on top.
	Config *config.Config
	// DefaultConfigFile is read when no -config flag is given. Its
	// absence is not an error.
	DefaultConfigFile string
	// Version is reported by the version subcommand.
	Version string
	// Commands adds to (or replaces) the builtin subcommands.
	Commands map[string]Func
	// ConfigFile is the configuration file in effect; set by -config.
	ConfigFile string
	// Intro is printed after the builtin introduction.
	Intro string

	Stdout, Stderr io.Writer

	// Log is the configured logger; it is also installed as log.Std.
	Log *log.Logger

	configFlags    config.Flags
	httpFlag       string
	cpuProfileFlag string

	onexits []func()

	flags *flag.FlagSet
}

var builtinCommands = map[string]Func{
	"eval":      (*Cmd).eval,
	"dot":       (*Cmd).dot,
	"config":    (*Cmd).config,
	"functions": (*Cmd).functions,
	"version":   (*Cmd).versionCmd,
}

var intro = `The mfnet command evaluates networks of multi-functions over
batches of indices.

A network is described by a YAML file that lists the values supplied
by the caller, the function nodes and their links, and the requested
outputs. Each subcommand prints its own usage when invoked with -help,
for example:

	mfnet eval -help

Configuration is read from a YAML file named by the -config flag. The
effective configuration, with the meaning of every key, is printed by

	mfnet config

Each key may also be overridden by a flag of the same name, e.g.:

	mfnet -log debug -chunksize 1024 eval network.yaml`

// Main runs the subcommand named by the first argument of the parsed
// flag set returned by Flags. Main does not return: it exits with the
// subcommand's status after running exit hooks.
func (c *Cmd) Main() {
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	flags := c.Flags()
	if flags.NArg() == 0 {
		fmt.Fprintln(c.Stderr, intro)
		if c.Intro != "" {
			fmt.Fprintf(c.Stderr, "\n%s\n", c.Intro)
		}
		c.Exit(2)
	}
	run, ok := c.commands()[flags.Arg(0)]
	if !ok {
		flags.Usage()
	}
	c.must(c.configure())
	c.startDiagnostics()
	ctx := c.interruptible(context.Background())
	// Flag parsing stopped at the subcommand name, so the remaining
	// arguments belong to the subcommand.
	run(c, ctx, flags.Args()[1:]...)
	c.Exit(0)
}

// startDiagnostics starts the pprof server and CPU profile requested
// by -http and -cpuprofile.
func (c *Cmd) startDiagnostics() {
	if addr := c.httpFlag; addr != "" {
		go func() {
			c.Fatal(http.ListenAndServe(addr, nil))
		}()
	}
	if path := c.cpuProfileFlag; path != "" {
		f, err := os.Create(path)
		c.must(err)
		c.must(pprof.StartCPUProfile(f))
		c.onexit(func() {
			pprof.StopCPUProfile()
			f.Close()
		})
	}
}

// interruptible returns a context that is canceled on the first
// interrupt. A second interrupt exits immediately.
func (c *Cmd) interruptible(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		<-sigc
		cancel()
		fmt.Fprintln(c.Stderr, "interrupted; canceling evaluation")
		<-sigc
		c.Exit(1)
	}()
	return ctx
}

// configure resolves the configuration (c.Config or the default, then
// the configuration file, then flags) and installs its logger.
func (c *Cmd) configure() error {
	cfg := c.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if c.ConfigFile != "" {
		fileCfg, err := config.ReadFile(c.ConfigFile)
		switch {
		case err == nil:
			cfg = fileCfg
		case errors.Is(errors.NotExist, err) && c.ConfigFile == c.DefaultConfigFile:
		default:
			return err
		}
	}
	cfg, err := c.configFlags.Apply(cfg)
	if err != nil {
		return err
	}
	c.Config = cfg
	if c.Log, err = cfg.Logger(); err != nil {
		return err
	}
	log.Std = c.Log
	return nil
}

// Fatal prints v to stderr and exits with status 1.
func (c *Cmd) Fatal(v ...interface{}) {
	fmt.Fprintln(c.Stderr, v...)
	c.Exit(1)
}

// Fatalf is Fatal with a format string.
func (c *Cmd) Fatalf(format string, v ...interface{}) {
	c.Fatal(fmt.Sprintf(format, v...))
}

// Println writes a line to stdout.
func (c *Cmd) Println(v ...interface{}) {
	fmt.Fprintln(c.Stdout, v...)
}

// Printf writes formatted output to stdout.
func (c *Cmd) Printf(format string, v ...interface{}) {
	fmt.Fprintf(c.Stdout, format, v...)
}

// Exit runs the registered exit hooks and exits with the given code.
func (c *Cmd) Exit(code int) {
	for _, fn := range c.onexits {
		fn()
	}
	os.Exit(code)
}

// Flags returns the command's global flag set: -config, -http,
// -cpuprofile and one override flag per configuration key. Callers
// parse it before calling Main:
//
//	cmd.Flags().Parse(os.Args[1:])
func (c *Cmd) Flags() *flag.FlagSet {
	if c.flags != nil {
		return c.flags
	}
	c.flags = flag.NewFlagSet("mfnet", flag.ExitOnError)
	c.flags.Usage = c.usage
	c.flags.StringVar(&c.ConfigFile, "config", c.DefaultConfigFile, "YAML configuration file; the builtin defaults are used if it is absent")
	c.flags.StringVar(&c.httpFlag, "http", "", "serve pprof diagnostics on this address")
	c.flags.StringVar(&c.cpuProfileFlag, "cpuprofile", "", "write a CPU profile of the run to this path")
	c.configFlags.Init(c.flags)
	return c.flags
}

func (c *Cmd) usage() {
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	fmt.Fprint(c.Stderr, "Usage: mfnet [flags] <command> [args]\n\nCommands:\n")
	names := make([]string, 0, len(builtinCommands)+len(c.Commands))
	for name := range c.commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.Stderr, "\t%s\n", name)
	}
	fmt.Fprintln(c.Stderr, "Global flags:")
	c.flags.SetOutput(c.Stderr)
	c.flags.PrintDefaults()
	c.Exit(2)
}

func (c *Cmd) commands() map[string]Func {
	m := make(map[string]Func, len(builtinCommands)+len(c.Commands))
	for name, f := range builtinCommands {
		m[name] = f
	}
	for name, f := range c.Commands {
		m[name] = f
	}
	return m
}

func (c *Cmd) onexit(fn func()) {
	c.onexits = append(c.onexits, fn)
}
