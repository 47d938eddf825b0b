// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package trace provides a tracing system for network evaluations.
// Trace events are named by a span. Spans are coordinates in a tree
// of events, and each span is associated with a logical timeline: a
// whole evaluation call, or a single function invocation within one.
//
// Tracing metadata is propagated through Go's context mechanism:
// each operation that creates a new span is given a context that
// represents that span. Package functions are provided to emit trace
// events to the current span, as defined by a context. When no tracer
// is attached to a context, tracing is free.
package trace

import (
	"context"
	"time"

	"github.com/grailbio/base/digest"
	mfcontext "github.com/grailbio/mfnet/context"
)

// Kind is the type of spans.
type Kind int

const (
	// Call is the span type for an evaluation call.
	Call Kind = iota
	// Function is the span type for a single function invocation.
	Function
	// Chunk is the span type for one chunk of a chunked call.
	Chunk
)

var kinds = [...]string{
	Call:     "call",
	Function: "function",
	Chunk:    "chunk",
}

func (k Kind) String() string {
	if int(k) < len(kinds) {
		return kinds[k]
	}
	return "unknown"
}

var nopFunc = func() {}

// Start traces the beginning of a span of the indicated kind, with
// the given ID and name. Start returns a new context for this span:
// notes on the context are associated with the fresh span. The
// returned function ends the span.
func Start(ctx context.Context, kind Kind, id digest.Digest, name string) (outctx context.Context, done func()) {
	if !On(ctx) {
		return ctx, nopFunc
	}
	t := tracer(ctx)
	outctx, err := t.Emit(ctx, Event{
		Time:     time.Now(),
		Kind:     StartEvent,
		SpanKind: kind,
		Id:       id,
		Name:     name,
	})
	if err != nil || outctx == nil {
		outctx = ctx
	}
	outctx = context.WithValue(outctx, mfcontext.SpanKey, span{kind, id, name})
	return outctx, func() {
		_, _ = t.Emit(outctx, Event{
			Time:     time.Now(),
			Kind:     EndEvent,
			SpanKind: kind,
			Id:       id,
			Name:     name,
		})
	}
}

// Note emits the provided key and value as a trace event associated
// with the span of the provided context.
func Note(ctx context.Context, key string, value interface{}) {
	if !On(ctx) {
		return
	}
	s, _ := ctx.Value(mfcontext.SpanKey).(span)
	_, _ = tracer(ctx).Emit(ctx, Event{
		Time:     time.Now(),
		Kind:     NoteEvent,
		SpanKind: s.kind,
		Id:       s.id,
		Name:     s.name,
		Key:      key,
		Value:    value,
	})
}

type span struct {
	kind Kind
	id   digest.Digest
	name string
}
