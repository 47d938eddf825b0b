// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package config defines the configuration of an evaluation run. A
// configuration is a set of keys (corresponding to toplevel keys in
// a YAML document), for example:
//
//	log: debug
//	depthorder: true
//	chunksize: 1024
//	parallelism: 8
//	grain: 4096
//	trace: /tmp/mfnet.trace
//	metrics: ":9090"
//	namespace: mfnet
//
// Keys that are absent take their value from Default. Unknown keys
// are rejected. Individual keys may be overridden from the command
// line; see Flags.
package config

import (
	"context"
	golog "log"
	"os"

	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/fn/builtin"
	"github.com/grailbio/mfnet/log"
	"github.com/grailbio/mfnet/metrics/prometrics"
	"github.com/grailbio/mfnet/network"
	"github.com/grailbio/mfnet/trace/localtrace"
	"github.com/prometheus/client_golang/prometheus"
	yaml "gopkg.in/yaml.v2"
)

// The following are the set of keys of a configuration.
const (
	Log         = "log"
	DepthOrder  = "depthorder"
	ChunkSize   = "chunksize"
	Parallelism = "parallelism"
	Grain       = "grain"
	Trace       = "trace"
	Metrics     = "metrics"
	Namespace   = "namespace"
	DumpMetrics = "dumpmetrics"
)

// AllKeys lists the keys of a configuration, in the order in which
// they are documented and registered as flags.
var AllKeys = []string{
	Log,
	DepthOrder,
	ChunkSize,
	Parallelism,
	Grain,
	Trace,
	Metrics,
	Namespace,
	DumpMetrics,
}

var usage = map[string]string{
	Log:         "log level: off, error, info or debug",
	DepthOrder:  "compute the deepest missing input of a node first",
	ChunkSize:   "evaluate masks in chunks of this many indices; 0 evaluates in one call",
	Parallelism: "maximum number of chunks evaluated concurrently; 0 means no limit",
	Grain:       "minimum number of indices per parallel shard inside functions; 0 disables",
	Trace:       "write a chrome trace of the evaluation to this file",
	Metrics:     "serve prometheus metrics at this address",
	Namespace:   "prometheus metrics namespace",
	DumpMetrics: "log the collected metrics once evaluation completes",
}

// Usage returns the help text of the provided key.
func Usage(key string) string {
	return usage[key]
}

// Keys is a map of string keys to configuration values.
type Keys map[string]interface{}

// Config is the configuration of an evaluation run.
type Config struct {
	// Log is the name of the log level.
	Log string `yaml:"log"`
	// DepthOrder computes the deepest missing input of a node first.
	// It only affects how long intermediate values are held.
	DepthOrder bool `yaml:"depthorder"`
	// ChunkSize, when positive, splits masks into chunks of at most
	// that many indices that are evaluated concurrently.
	ChunkSize int `yaml:"chunksize"`
	// Parallelism limits the number of chunks evaluated at once.
	Parallelism int `yaml:"parallelism"`
	// Grain is the minimum number of indices per parallel shard in
	// builtin functions.
	Grain int `yaml:"grain"`
	// Trace is the path of the trace file, if any.
	Trace string `yaml:"trace"`
	// Metrics is the address at which metrics are served, if any.
	Metrics string `yaml:"metrics"`
	// Namespace is the namespace of the exported metrics.
	Namespace string `yaml:"namespace"`
	// DumpMetrics logs the collected metrics after evaluation.
	DumpMetrics bool `yaml:"dumpmetrics"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log:        log.InfoLevel.String(),
		DepthOrder: true,
		Grain:      builtin.DefaultGrain,
		Namespace:  prometrics.DefaultNamespace,
	}
}

// Parse parses a configuration from the YAML-formatted bytes b.
// Absent keys take their default values.
func Parse(b []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(b, cfg); err != nil {
		return nil, errors.E("parse config", errors.Invalid, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadFile reads and then parses the configuration from the provided
// file.
func ReadFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.E("read config", path, errors.NotExist, err)
	} else if err != nil {
		return nil, errors.E("read config", path, err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, errors.E("read config", path, err)
	}
	return cfg, nil
}

// Marshal marshals the configuration into YAML-formatted bytes.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Keys returns the configuration's keys.
func (c *Config) Keys() (Keys, error) {
	b, err := Marshal(c)
	if err != nil {
		return nil, err
	}
	keys := make(Keys)
	if err := yaml.Unmarshal(b, keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (c *Config) validate() error {
	if _, err := log.ParseLevel(c.Log); err != nil {
		return errors.E("config", Log, errors.Invalid, err)
	}
	for _, v := range []struct {
		key string
		val int
	}{{ChunkSize, c.ChunkSize}, {Parallelism, c.Parallelism}, {Grain, c.Grain}} {
		if v.val < 0 {
			return errors.E("config", v.key, errors.Invalid, errors.Errorf("negative value %d", v.val))
		}
	}
	return nil
}

// Logger returns a logger at the configured level that outputs to
// standard error. It returns nil if logging is off.
func (c *Config) Logger() (*log.Logger, error) {
	level, err := log.ParseLevel(c.Log)
	if err != nil {
		return nil, errors.E("config", Log, errors.Invalid, err)
	}
	return log.New(golog.New(os.Stderr, "", golog.LstdFlags), level), nil
}

// EvalConfig returns the evaluator configuration for an evaluator
// with the given name that logs to l.
func (c *Config) EvalConfig(name string, l *log.Logger) network.Config {
	return network.Config{
		Name:             name,
		Log:              l,
		DeclarationOrder: !c.DepthOrder,
	}
}

// Tracer returns a tracer that writes to the configured trace file,
// or nil if tracing is not configured.
func (c *Config) Tracer() (*localtrace.LocalTracer, error) {
	if c.Trace == "" {
		return nil, nil
	}
	return localtrace.New(c.Trace)
}

// MetricsClient returns a Prometheus metrics client over a fresh
// registry in the configured namespace.
func (c *Config) MetricsClient() (*prometrics.Client, error) {
	return prometrics.NewClient(prometheus.NewRegistry(), c.Namespace)
}

// Context returns a context carrying the configured function grain.
func (c *Config) Context(ctx context.Context) context.Context {
	return builtin.WithGrain(ctx, c.Grain)
}
