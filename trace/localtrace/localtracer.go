// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package localtrace implements a trace.Tracer that accumulates
// completed spans in memory and writes them in the Chrome tracing
// format, viewable with chrome://tracing or Perfetto.
package localtrace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/trace"
)

type key int

const (
	eventKey key = iota
	pidKey
)

func (k key) getEvent(ctx context.Context) (Event, error) {
	if event, ok := ctx.Value(k).(Event); ok {
		return event, nil
	}
	return Event{}, fmt.Errorf("no event found for key: %d", k)
}

// LocalTracer is a tracer that writes Chrome trace files.
type LocalTracer struct {
	mu         sync.Mutex
	pidCounter int32
	tidCounter int32
	tids       sync.Map
	trace      T

	path string
}

// New returns a new LocalTracer that writes its trace to the file at
// path when flushed.
func New(path string) (*LocalTracer, error) {
	// Validate path by trying to create it.
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.E("localtrace", path, err)
	}
	f.Close()
	return &LocalTracer{path: path}, nil
}

// getPid determines the "pid" of an event. It is not a real process
// id: each call span is given a fresh pid so that the function spans
// of a call, which inherit it through the context, are grouped
// together in the visualization.
func (lt *LocalTracer) getPid(ctx context.Context, e trace.Event) (context.Context, int) {
	if e.SpanKind != trace.Call {
		if pid, ok := ctx.Value(pidKey).(int); ok {
			return ctx, pid
		}
	}
	pid := int(atomic.AddInt32(&lt.pidCounter, 1))
	return context.WithValue(ctx, pidKey, pid), pid
}

// getTid returns a "tid" per span id, so that invocations of the same
// node share a row. getTid is safe for concurrent use.
func (lt *LocalTracer) getTid(id string) int {
	if tid, ok := lt.tids.Load(id); ok {
		return tid.(int)
	}
	tid, _ := lt.tids.LoadOrStore(id, int(atomic.AddInt32(&lt.tidCounter, 1)))
	return tid.(int)
}

// Emit emits a trace event and implements the trace.Tracer interface.
// It should not be used directly; use trace.Start and trace.Note.
func (lt *LocalTracer) Emit(ctx context.Context, e trace.Event) (context.Context, error) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	switch e.Kind {
	case trace.StartEvent:
		var pid int
		ctx, pid = lt.getPid(ctx, e)
		event := Event{
			Pid:  pid,
			Tid:  lt.getTid(e.Id.Short()),
			Ts:   e.Time.UnixNano() / 1000,
			Ph:   "X",
			Name: e.Name,
			Cat:  e.SpanKind.String(),
			Args: map[string]interface{}{
				"beginTime": e.Time.Format(time.RFC3339Nano),
			},
		}
		// The start event is completed by the span's end event.
		return context.WithValue(ctx, eventKey, event), nil
	case trace.EndEvent:
		if event, err := eventKey.getEvent(ctx); err == nil {
			lt.mu.Lock()
			event.Dur = e.Time.UnixNano()/1000 - event.Ts
			event.Args["endTime"] = e.Time.Format(time.RFC3339Nano)
			lt.trace.Events = append(lt.trace.Events, event)
			lt.mu.Unlock()
		}
		return nil, nil
	case trace.NoteEvent:
		if event, err := eventKey.getEvent(ctx); err == nil {
			lt.mu.Lock()
			event.Args[e.Key] = e.Value
			lt.mu.Unlock()
		}
		return ctx, nil
	default:
		return ctx, errors.E("emit", errors.Invalid, errors.Errorf("unsupported trace event kind %d", e.Kind))
	}
}

// Events returns the completed events recorded so far.
func (lt *LocalTracer) Events() []Event {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return append([]Event(nil), lt.trace.Events...)
}

// Flush writes the completed trace events to the tracer's file. It
// may be called repeatedly: each call rewrites the whole trace.
func (lt *LocalTracer) Flush() error {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	f, err := os.Create(lt.path)
	if err != nil {
		return errors.E("flush", lt.path, err)
	}
	if err := lt.trace.Encode(f); err != nil {
		f.Close()
		return errors.E("flush", lt.path, err)
	}
	return f.Close()
}

// Path returns the location of the output trace file.
func (lt *LocalTracer) Path() string {
	return lt.path
}

// Event is an event in the Chrome tracing format.
type Event struct {
	Pid  int                    `json:"pid"`
	Tid  int                    `json:"tid"`
	Ts   int64                  `json:"ts"`
	Ph   string                 `json:"ph"`
	Dur  int64                  `json:"dur,omitempty"`
	Name string                 `json:"name"`
	Cat  string                 `json:"cat,omitempty"`
	Args map[string]interface{} `json:"args"`
}

// T represents the JSON object format in the Chrome tracing format.
type T struct {
	Events []Event `json:"traceEvents"`
}

// Encode JSON encodes t into w.
func (t *T) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(t)
}

// Decode decodes the JSON object format read from r into t. Call this
// with a t zero value.
func (t *T) Decode(r io.Reader) error {
	return json.NewDecoder(r).Decode(t)
}
