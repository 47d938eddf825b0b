// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package metrics declares the metrics emitted by network evaluation
// and provides typed accessors for them. The declarations in
// metrics.go are generated from metrics.yaml by cmd/genmetrics.
//
// Metrics are reported to a Client carried by a context; when no
// client is attached, every accessor returns a no-op metric.
package metrics

import (
	"context"

	mfcontext "github.com/grailbio/mfnet/context"
	"github.com/grailbio/mfnet/errors"
)

// Gauge is the subset of prometheus.Gauge used by the evaluator.
type Gauge interface {
	// Set updates the value of the gauge.
	Set(float64)
	// Add adds the given value, which may be negative, to the gauge.
	Add(float64)
}

// Counter wraps prometheus.Counter. Counters can only increase in value.
type Counter interface {
	// Inc adds one to the counter.
	Inc()
	// Add adds the given value to the counter. It panics if the value
	// is negative.
	Add(float64)
}

// Histogram wraps prometheus.Histogram. Histograms record
// observations and discretize them into preconfigured buckets.
type Histogram interface {
	// Observe adds a sample observation to the histogram.
	Observe(float64)
}

type labelSet []string

type gaugeOpts struct {
	Labels labelSet
	Help   string
}

type counterOpts struct {
	Labels labelSet
	Help   string
}

type histogramOpts struct {
	Labels  labelSet
	Help    string
	Buckets []float64
}

// complete tells whether labels provides exactly the labels in the set.
func (s labelSet) complete(labels map[string]string) bool {
	if len(labels) != len(s) {
		return false
	}
	for _, label := range s {
		if _, ok := labels[label]; !ok {
			return false
		}
	}
	return true
}

func check(typ, name string, declared bool, labels labelSet, given map[string]string) {
	if !declared {
		errors.Panic("metrics", name, errors.NotExist, errors.Errorf("undeclared %s", typ))
	}
	if !labels.complete(given) {
		errors.Panic("metrics", name, errors.Invalid,
			errors.Errorf("%s expects labels %v, got %v", typ, []string(labels), given))
	}
}

func getGauge(ctx context.Context, name string, labels map[string]string) Gauge {
	if !On(ctx) {
		return discard{}
	}
	opts, ok := Gauges[name]
	check("gauge", name, ok, opts.Labels, labels)
	return metricsClient(ctx).GetGauge(name, labels)
}

func getCounter(ctx context.Context, name string, labels map[string]string) Counter {
	if !On(ctx) {
		return discard{}
	}
	opts, ok := Counters[name]
	check("counter", name, ok, opts.Labels, labels)
	return metricsClient(ctx).GetCounter(name, labels)
}

func getHistogram(ctx context.Context, name string, labels map[string]string) Histogram {
	if !On(ctx) {
		return discard{}
	}
	opts, ok := Histograms[name]
	check("histogram", name, ok, opts.Labels, labels)
	return metricsClient(ctx).GetHistogram(name, labels)
}

// Client is a sink for metrics.
type Client interface {
	GetGauge(name string, labels map[string]string) Gauge
	GetCounter(name string, labels map[string]string) Counter
	GetHistogram(name string, labels map[string]string) Histogram
}

// NopClient is a metrics client that does nothing.
var NopClient Client = nopClient{}

// WithClient returns a context that reports metrics to the provided
// Client.
func WithClient(ctx context.Context, client Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, mfcontext.MetricsClientKey, client)
}

// On returns true if there is a current Client associated with the
// provided context.
func On(ctx context.Context) bool {
	_, ok := ctx.Value(mfcontext.MetricsClientKey).(Client)
	return ok
}

func metricsClient(ctx context.Context) Client {
	return ctx.Value(mfcontext.MetricsClientKey).(Client)
}
