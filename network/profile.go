// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package network

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"
	"time"
)

// summary is a running summary of invocation durations, in seconds.
// It is fixed size regardless of the number of samples.
type summary struct {
	n             int
	sum, min, max float64
}

func (s *summary) add(v float64) {
	if s.n == 0 || v < s.min {
		s.min = v
	}
	if s.n == 0 || v > s.max {
		s.max = v
	}
	s.n++
	s.sum += v
}

func (s summary) mean() float64 {
	if s.n == 0 {
		return 0
	}
	return s.sum / float64(s.n)
}

// Profile summarizes the durations of function invocations, by
// function name, across the calls of an evaluator. Its size is bounded
// by the number of distinct functions in the network. It is safe for
// concurrent use.
type Profile struct {
	mu  sync.Mutex
	fns map[string]*summary
}

func newProfile() *Profile {
	return &Profile{fns: make(map[string]*summary)}
}

func (p *Profile) add(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.fns[name]
	if s == nil {
		s = new(summary)
		p.fns[name] = s
	}
	s.add(d.Seconds())
}

// N returns the number of recorded invocations of the named function.
func (p *Profile) N(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s := p.fns[name]; s != nil {
		return s.n
	}
	return 0
}

// Mean returns the mean invocation duration of the named function.
func (p *Profile) Mean(name string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s := p.fns[name]; s != nil {
		return time.Duration(s.mean() * float64(time.Second))
	}
	return 0
}

// Names returns the names of the functions invoked so far, sorted.
func (p *Profile) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.fns))
	for name := range p.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteTo writes a table of min/mean/max invocation durations, in
// milliseconds, per function.
func (p *Profile) WriteTo(w io.Writer) (int64, error) {
	names := p.Names()
	var cw countingWriter
	cw.w = w
	tw := tabwriter.NewWriter(&cw, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "function\tcalls\tmin/mean/max (ms)")
	p.mu.Lock()
	for _, name := range names {
		s := p.fns[name]
		fmt.Fprintf(tw, "%s\t%d\t%.3f/%.3f/%.3f\n", name, s.n, s.min*1e3, s.mean()*1e3, s.max*1e3)
	}
	p.mu.Unlock()
	err := tw.Flush()
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
