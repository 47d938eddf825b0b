// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package prometrics implements a metrics.Client backed by a
// Prometheus registry.
package prometrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/log"
	"github.com/grailbio/mfnet/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace is the namespace given to metrics when none is
// configured.
const DefaultNamespace = "mfnet"

// Client is a metrics.Client that registers every declared metric
// with a Prometheus registry.
type Client struct {
	namespace  string
	reg        *prometheus.Registry
	gauges     map[string]*prometheus.GaugeVec
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewClient returns a Client that registers the declared metrics,
// prefixed by namespace, with reg. If reg is nil, a fresh registry is
// created.
func NewClient(reg *prometheus.Registry, namespace string) (*Client, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	c := &Client{
		namespace:  namespace,
		reg:        reg,
		gauges:     make(map[string]*prometheus.GaugeVec),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
	if err := c.initCollectors(); err != nil {
		return nil, err
	}
	return c, nil
}

// initCollectors initializes the backing stores of the declared
// counters, gauges, and histograms in the registry.
func (c *Client) initCollectors() error {
	for name, opts := range metrics.Gauges {
		gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Name:      name,
			Help:      opts.Help,
		}, opts.Labels)
		if err := c.reg.Register(gv); err != nil {
			return errors.E("register", name, err)
		}
		c.gauges[name] = gv
	}
	for name, opts := range metrics.Counters {
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      name,
			Help:      opts.Help,
		}, opts.Labels)
		if err := c.reg.Register(cv); err != nil {
			return errors.E("register", name, err)
		}
		c.counters[name] = cv
	}
	for name, opts := range metrics.Histograms {
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: c.namespace,
			Name:      name,
			Buckets:   opts.Buckets,
			Help:      opts.Help,
		}, opts.Labels)
		if err := c.reg.Register(hv); err != nil {
			return errors.E("register", name, err)
		}
		c.histograms[name] = hv
	}
	return nil
}

// Registry returns the client's registry.
func (c *Client) Registry() *prometheus.Registry {
	return c.reg
}

// GetGauge implements metrics.Client.
func (c *Client) GetGauge(name string, labels map[string]string) metrics.Gauge {
	gauge, err := c.gauges[name].GetMetricWith(labels)
	if err != nil {
		errors.Panic("gauge", name, errors.Invalid, err)
	}
	return gauge
}

// GetCounter implements metrics.Client.
func (c *Client) GetCounter(name string, labels map[string]string) metrics.Counter {
	counter, err := c.counters[name].GetMetricWith(labels)
	if err != nil {
		errors.Panic("counter", name, errors.Invalid, err)
	}
	return counter
}

// GetHistogram implements metrics.Client.
func (c *Client) GetHistogram(name string, labels map[string]string) metrics.Histogram {
	histogram, err := c.histograms[name].GetMetricWith(labels)
	if err != nil {
		errors.Panic("histogram", name, errors.Invalid, err)
	}
	return histogram
}

// Handler returns an HTTP handler that serves the client's metrics.
func (c *Client) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve serves the client's metrics at addr until ctx is done.
func (c *Client) Serve(ctx context.Context, addr string, log *log.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.E("serve", addr, err)
	}
	srv := &http.Server{Handler: c.Handler()}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()
	log.Printf("serving prometheus metrics at %s", lis.Addr())
	if err := srv.Serve(lis); err != http.ErrServerClosed {
		return errors.E("serve", addr, err)
	}
	return nil
}
