// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/fn/builtin"
	"github.com/grailbio/mfnet/log"
	"github.com/grailbio/testutil/assert"
)

func TestConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
log: debug
depthorder: false
chunksize: 128
trace: /tmp/x.trace
`))
	assert.NoError(t, err)
	want := Default()
	want.Log = "debug"
	want.DepthOrder = false
	want.ChunkSize = 128
	want.Trace = "/tmp/x.trace"
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("got %+v, want %+v", cfg, want)
	}
	b, err := Marshal(cfg)
	assert.NoError(t, err)
	cfg1, err := Parse(b)
	assert.NoError(t, err)
	if !reflect.DeepEqual(cfg, cfg1) {
		t.Error("cfg, cfg1 not equal after marshal roundtrip")
	}

	ecfg := cfg.EvalConfig("test", nil)
	assert.EQ(t, ecfg.Name, "test")
	assert.True(t, ecfg.DeclarationOrder)

	l, err := cfg.Logger()
	assert.NoError(t, err)
	assert.True(t, l.At(log.DebugLevel))
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		"unknown: 1",
		"log: verbose",
		"chunksize: -1",
		"chunksize: lots",
	} {
		if _, err := Parse([]byte(src)); !errors.Is(errors.Invalid, err) {
			t.Errorf("%q: got %v, want invalid", src, err)
		}
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mfnet.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("grain: 16\n"), 0644))
	cfg, err := ReadFile(path)
	assert.NoError(t, err)
	assert.EQ(t, cfg.Grain, 16)
	assert.EQ(t, builtin.Grain(cfg.Context(context.Background())), 16)

	_, err = ReadFile(filepath.Join(dir, "missing.yaml"))
	if !errors.Is(errors.NotExist, err) {
		t.Errorf("got %v, want not exist", err)
	}
}

func TestFlags(t *testing.T) {
	var (
		flags Flags
		fs    = flag.NewFlagSet("test", flag.ContinueOnError)
	)
	flags.Init(fs)
	assert.NoError(t, fs.Parse([]string{"-log", "off", "-depthorder=false", "-chunksize", "64", "-metrics", ":9090"}))
	cfg, err := flags.Apply(Default())
	assert.NoError(t, err)
	assert.EQ(t, cfg.Log, "off")
	assert.EQ(t, cfg.DepthOrder, false)
	assert.EQ(t, cfg.ChunkSize, 64)
	assert.EQ(t, cfg.Metrics, ":9090")
	assert.EQ(t, cfg.Grain, builtin.DefaultGrain)
	l, err := cfg.Logger()
	assert.NoError(t, err)
	assert.True(t, l == nil)

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	flags.Init(fs)
	assert.NoError(t, fs.Parse([]string{"-grain", "many"}))
	if _, err := flags.Apply(Default()); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want invalid", err)
	}
}

func TestTracer(t *testing.T) {
	cfg := Default()
	tr, err := cfg.Tracer()
	assert.NoError(t, err)
	assert.True(t, tr == nil)
	cfg.Trace = filepath.Join(t.TempDir(), "x.trace")
	tr, err = cfg.Tracer()
	assert.NoError(t, err)
	assert.EQ(t, tr.Path(), cfg.Trace)

	client, err := cfg.MetricsClient()
	assert.NoError(t, err)
	assert.True(t, client.Registry() != nil)
}
