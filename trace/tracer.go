// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package trace

import (
	"context"
	"time"

	"github.com/grailbio/base/digest"
	mfcontext "github.com/grailbio/mfnet/context"
)

// EventKind is the type of trace event.
type EventKind int

const (
	// StartEvent is the start of a trace span.
	StartEvent EventKind = iota
	// EndEvent is the end of a trace span.
	EndEvent
	// NoteEvent is a note on the current span.
	NoteEvent
)

// Event stores a single trace event. Each event must have at least a
// timestamp, span information, and an event kind. Other arguments
// depend on the event kind.
type Event struct {
	// Time is the timestamp of the event, generated at the source of
	// that event.
	Time time.Time
	// Kind is the type of event.
	Kind EventKind
	// SpanKind is the kind of the span to which the event belongs.
	SpanKind Kind
	// Id is the ID of the span to which the event belongs.
	Id digest.Digest
	// Name is the name of the span to which the event belongs.
	Name string
	// Key stores the key for NoteEvents.
	Key string
	// Value stores the value for NoteEvents.
	Value interface{}
}

// Tracers are sinks for trace events. Tracer implementations should
// not block: they are called synchronously, possibly from many
// goroutines at once.
type Tracer interface {
	// Emit is called to emit a new event to the tracer. For
	// StartEvents, the returned context is used for the span; the
	// tracer may use it to carry its own state.
	Emit(ctx context.Context, e Event) (context.Context, error)
}

// WithTracer returns a context that emits trace events to the
// provided tracer.
func WithTracer(ctx context.Context, tracer Tracer) context.Context {
	return context.WithValue(ctx, mfcontext.TracerKey, tracer)
}

// On returns true if there is a current tracer associated with the
// provided context.
func On(ctx context.Context) bool {
	_, ok := ctx.Value(mfcontext.TracerKey).(Tracer)
	return ok
}

func tracer(ctx context.Context) Tracer {
	return ctx.Value(mfcontext.TracerKey).(Tracer)
}
