// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package network

import (
	"fmt"

	"github.com/grailbio/base/data"
	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/values"
	"github.com/willf/bitset"
)

type slotKind int

const (
	noSlot slotKind = iota
	singleFromCaller
	vectorFromCaller
	singleOwned
	vectorOwned
)

var slotKinds = [...]string{
	noSlot:           "none",
	singleFromCaller: "single from caller",
	vectorFromCaller: "vector from caller",
	singleOwned:      "single",
	vectorOwned:      "vector",
}

func (k slotKind) String() string { return slotKinds[k] }

func (k slotKind) owned() bool { return k == singleOwned || k == vectorOwned }

// A slot is the materialized value of an output socket. Borrowed
// slots hold a caller's view; owned slots hold a buffer together with
// the number of consumers that have yet to finish reading it.
type slot struct {
	kind   slotKind
	single values.ListRef
	vector values.ListListRef
	array  *values.Array
	lists  *values.VectorArray
	users  int
}

// StorageStats summarizes the buffer traffic of a storage.
type StorageStats struct {
	// Allocs is the number of owned buffers allocated.
	Allocs int
	// Moves is the number of owned buffers handed over to their last
	// consumer instead of being copied.
	Moves int
	// Copies is the number of buffers copied for in-place mutation.
	Copies int
	// Frees is the number of owned buffers freed after their last use.
	Frees int
	// Residual is the number of owned buffers that were still held
	// when the storage was closed.
	Residual int
	// PeakLive is the largest number of owned buffers held at once.
	PeakLive int
	// ArrayBytes is the total size of the single buffers allocated.
	ArrayBytes data.Size
}

// Add accumulates the stats t into s. Peaks are maximized.
func (s *StorageStats) Add(t StorageStats) {
	s.Allocs += t.Allocs
	s.Moves += t.Moves
	s.Copies += t.Copies
	s.Frees += t.Frees
	s.Residual += t.Residual
	if t.PeakLive > s.PeakLive {
		s.PeakLive = t.PeakLive
	}
	s.ArrayBytes += t.ArrayBytes
}

func (s StorageStats) String() string {
	return fmt.Sprintf("allocs:%d moves:%d copies:%d frees:%d residual:%d peak:%d bytes:%s",
		s.Allocs, s.Moves, s.Copies, s.Frees, s.Residual, s.PeakLive, s.ArrayBytes)
}

// Storage holds the values computed or supplied during one evaluation
// call, in a table of slots indexed by output socket id. Storage owns
// every buffer it allocates and frees each one as soon as its last
// consumer has finished with it; values supplied by the caller are
// borrowed and never modified or freed.
//
// A Storage is confined to a single call and is not safe for
// concurrent use. Misuse, such as reading a value that has not been
// computed, panics.
type Storage struct {
	mask  mfnet.Mask
	size  int
	slots []slot
	// moved marks the input sockets whose use of their origin's value
	// was consumed by handing the buffer over.
	moved  *bitset.BitSet
	live   *liveset
	stats  StorageStats
	closed bool
}

// NewStorage returns a storage for a call over the provided mask in a
// network with numSockets socket ids.
func NewStorage(mask mfnet.Mask, numSockets int) *Storage {
	return &Storage{
		mask:  mask,
		size:  mask.MinArraySize(),
		slots: make([]slot, numSockets),
		moved: bitset.New(uint(numSockets)),
		live:  newLiveset(),
	}
}

// Mask returns the mask of the call.
func (s *Storage) Mask() mfnet.Mask {
	return s.mask
}

// Stats returns the storage's buffer statistics.
func (s *Storage) Stats() StorageStats {
	return s.stats
}

// Live returns the number of owned buffers currently held.
func (s *Storage) Live() int {
	return s.live.N()
}

func (s *Storage) check(op string) {
	if s.closed {
		errors.Panic(op, errors.New("storage is closed"))
	}
}

func (s *Storage) empty(op string, out *OutputSocket) {
	s.check(op)
	if kind := s.slots[out.id].kind; kind != noSlot {
		errors.Panic(op, out, errors.Errorf("socket already holds a %s value", kind))
	}
}

func (s *Storage) origin(op string, in *InputSocket) *slot {
	s.check(op)
	sl := &s.slots[in.origin.id]
	if sl.kind == noSlot {
		errors.Panic(op, in, errors.Errorf("origin %s has not been computed", in.origin))
	}
	return sl
}

func (s *Storage) checkCategory(op string, sock Socket, c mfnet.Category) {
	if got := sock.DataType().Category; got != c {
		errors.Panic(op, sock, errors.Invalid, errors.Errorf("socket is %s, not %s", got, c))
	}
}

func (s *Storage) own(id int, sl slot) {
	s.slots[id] = sl
	s.live.Add(id, sl.kind)
	s.stats.Allocs++
	if sl.kind == singleOwned {
		s.stats.ArrayBytes += data.Size(int64(sl.array.Type().Size) * int64(s.size))
	}
	if n := s.live.N(); n > s.stats.PeakLive {
		s.stats.PeakLive = n
	}
}

// AddSingleFromCaller binds the caller's view r as the value of
// output socket out.
func (s *Storage) AddSingleFromCaller(out *OutputSocket, r values.ListRef) {
	s.empty("bind", out)
	s.checkCategory("bind", out, mfnet.Single)
	if r.Type() != out.typ.Type {
		errors.Panic("bind", out, errors.Invalid, errors.Errorf("cannot bind %s values", r.Type()))
	}
	if r.Len() < s.size {
		errors.Panic("bind", out, errors.Errorf("view of size %d is smaller than %d", r.Len(), s.size))
	}
	s.slots[out.id] = slot{kind: singleFromCaller, single: r}
}

// AddVectorFromCaller binds the caller's view r as the value of
// output socket out.
func (s *Storage) AddVectorFromCaller(out *OutputSocket, r values.ListListRef) {
	s.empty("bind", out)
	s.checkCategory("bind", out, mfnet.Vector)
	if r.Type() != out.typ.Type {
		errors.Panic("bind", out, errors.Invalid, errors.Errorf("cannot bind %s lists", r.Type()))
	}
	if r.Len() < s.size {
		errors.Panic("bind", out, errors.Errorf("view of size %d is smaller than %d", r.Len(), s.size))
	}
	s.slots[out.id] = slot{kind: vectorFromCaller, vector: r}
}

// AllocateSingleOutput allocates a buffer for the value of output
// socket out. The buffer is held until each of out's targets has
// finished with it.
func (s *Storage) AllocateSingleOutput(out *OutputSocket) *values.Array {
	s.empty("allocate", out)
	s.checkCategory("allocate", out, mfnet.Single)
	a := values.NewArray(out.typ.Type, s.size)
	s.own(out.id, slot{kind: singleOwned, array: a, users: len(out.targets)})
	return a
}

// AllocateVectorOutput allocates a vector array for the value of
// output socket out. The vector array is held until each of out's
// targets has finished with it.
func (s *Storage) AllocateVectorOutput(out *OutputSocket) *values.VectorArray {
	s.empty("allocate", out)
	s.checkCategory("allocate", out, mfnet.Vector)
	v := values.NewVectorArray(out.typ.Type, s.size)
	s.own(out.id, slot{kind: vectorOwned, lists: v, users: len(out.targets)})
	return v
}

// SingleInput returns a read-only view of the value consumed by
// input socket in.
func (s *Storage) SingleInput(in *InputSocket) values.ListRef {
	sl := s.origin("read", in)
	switch sl.kind {
	case singleOwned:
		return sl.array.Ref()
	case singleFromCaller:
		return sl.single
	}
	errors.Panic("read", in, errors.Invalid, errors.Errorf("origin holds a %s value", sl.kind))
	panic("not reached")
}

// VectorInput returns a read-only view of the value consumed by
// input socket in.
func (s *Storage) VectorInput(in *InputSocket) values.ListListRef {
	sl := s.origin("read", in)
	switch sl.kind {
	case vectorOwned:
		return sl.lists.Ref()
	case vectorFromCaller:
		return sl.vector
	}
	errors.Panic("read", in, errors.Invalid, errors.Errorf("origin holds a %s value", sl.kind))
	panic("not reached")
}

func (s *Storage) takeMutable(op string, in *InputSocket, out *OutputSocket, owned slotKind) (*slot, bool) {
	from := in.origin
	sl := s.origin(op, in)
	s.empty(op, out)
	if from.typ != out.typ {
		errors.Panic(op, in, out, errors.Invalid, errors.Errorf("cannot mutate %s as %s", from.typ, out.typ))
	}
	if sl.kind != owned || sl.users != 1 {
		return sl, false
	}
	// The sole remaining consumer takes over the buffer.
	moved := *sl
	moved.users = len(out.targets)
	*sl = slot{}
	s.slots[out.id] = moved
	s.live.Move(from.id, out.id)
	s.moved.Set(uint(in.id))
	s.stats.Moves++
	return &s.slots[out.id], true
}

// MutableSingle returns a buffer holding the value consumed by input
// socket in that may be modified in place and becomes the value of
// output socket out. If in is the last remaining consumer of an
// owned buffer, that buffer is handed over; otherwise the value is
// copied into a new buffer.
func (s *Storage) MutableSingle(in *InputSocket, out *OutputSocket) *values.Array {
	s.checkCategory("mutate", out, mfnet.Single)
	sl, moved := s.takeMutable("mutate", in, out, singleOwned)
	if moved {
		return sl.array
	}
	a := values.NewArray(out.typ.Type, s.size)
	switch sl.kind {
	case singleOwned:
		a.CopyFrom(s.mask, sl.array.Ref())
	case singleFromCaller:
		sl.single.MaterializeTo(s.mask, a)
	default:
		errors.Panic("mutate", in, errors.Invalid, errors.Errorf("origin holds a %s value", sl.kind))
	}
	s.own(out.id, slot{kind: singleOwned, array: a, users: len(out.targets)})
	s.stats.Copies++
	return a
}

// MutableVector returns a vector array holding the value consumed by
// input socket in that may be modified in place and becomes the value
// of output socket out. It hands over or copies in the manner of
// MutableSingle.
func (s *Storage) MutableVector(in *InputSocket, out *OutputSocket) *values.VectorArray {
	s.checkCategory("mutate", out, mfnet.Vector)
	sl, moved := s.takeMutable("mutate", in, out, vectorOwned)
	if moved {
		return sl.lists
	}
	v := values.NewVectorArray(out.typ.Type, s.size)
	switch sl.kind {
	case vectorOwned:
		v.ExtendMultipleCopy(s.mask, sl.lists.Ref())
	case vectorFromCaller:
		v.ExtendMultipleCopy(s.mask, sl.vector)
	default:
		errors.Panic("mutate", in, errors.Invalid, errors.Errorf("origin holds a %s value", sl.kind))
	}
	s.own(out.id, slot{kind: vectorOwned, lists: v, users: len(out.targets)})
	s.stats.Copies++
	return v
}

// FinishInput records that input socket in is done with the value of
// its origin. When the last consumer of an owned buffer finishes, the
// buffer is freed. Finishing an input whose buffer was handed over,
// or whose origin is borrowed from the caller, has no effect.
func (s *Storage) FinishInput(in *InputSocket) {
	s.check("finish")
	if s.moved.Test(uint(in.id)) {
		s.moved.Clear(uint(in.id))
		return
	}
	sl := s.origin("finish", in)
	if !sl.kind.owned() {
		return
	}
	if sl.users < 1 {
		errors.Panic("finish", in, errors.New("value has no remaining users"))
	}
	sl.users--
	if sl.users == 0 {
		s.free(in.origin.id)
		s.stats.Frees++
	}
}

// ReleaseUnused frees the value of output socket out if it is owned
// and has no consumers.
func (s *Storage) ReleaseUnused(out *OutputSocket) {
	s.check("release")
	if sl := s.slots[out.id]; sl.kind.owned() && len(out.targets) == 0 {
		s.free(out.id)
		s.stats.Frees++
	}
}

// IsComputed tells whether the value consumed by input socket in is
// available.
func (s *Storage) IsComputed(in *InputSocket) bool {
	return s.slots[in.origin.id].kind != noSlot
}

func (s *Storage) free(id int) {
	sl := &s.slots[id]
	switch sl.kind {
	case singleOwned:
		sl.array.Free(s.mask)
	case vectorOwned:
		sl.lists.Free(s.mask)
	}
	s.live.Done(id)
	*sl = slot{}
}

// Close frees every owned buffer still held. The storage may not be
// used afterwards.
func (s *Storage) Close() {
	if s.closed {
		return
	}
	for id := range s.slots {
		switch kind := s.slots[id].kind; {
		case kind.owned():
			s.free(id)
			s.stats.Residual++
		case kind != noSlot:
			s.slots[id] = slot{}
		}
	}
	s.closed = true
}
