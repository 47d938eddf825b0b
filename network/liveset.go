// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package network

import (
	"fmt"

	"github.com/grailbio/mfnet/errors"
)

// Liveset tracks the owned slots currently held by a storage, keyed
// by output socket id, together with their kinds.
type liveset struct {
	live map[int]slotKind
}

func newLiveset() *liveset {
	return &liveset{
		live: make(map[int]slotKind),
	}
}

// Add tracks the slot for socket id. Add panics if the slot is
// already tracked.
func (l *liveset) Add(id int, kind slotKind) {
	if l.Live(id) {
		errors.Panic("liveset", fmt.Sprintf("socket %d", id), errors.New("slot already live"))
	}
	l.live[id] = kind
}

// Live returns whether the slot for socket id is tracked.
func (l *liveset) Live(id int) bool {
	_, ok := l.live[id]
	return ok
}

// Move re-keys a tracked slot from socket from to socket to.
func (l *liveset) Move(from, to int) {
	kind := l.remove(from)
	l.Add(to, kind)
}

// Done stops tracking the slot for socket id.
func (l *liveset) Done(id int) {
	l.remove(id)
}

func (l *liveset) remove(id int) slotKind {
	kind, ok := l.live[id]
	if !ok {
		errors.Panic("liveset", fmt.Sprintf("socket %d", id), errors.New("slot not live"))
	}
	delete(l.live, id)
	return kind
}

// N returns the number of tracked slots.
func (l *liveset) N() int {
	return len(l.live)
}
