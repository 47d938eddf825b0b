// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package values defines the type-erased buffers in which batched
// values are stored and passed to multi-functions, together with
// read-only views over them.
//
// There are two mutable buffer kinds: Array holds one element per
// index; VectorArray holds an independently sized list per index.
// Each has a read-only counterpart: ListRef and ListListRef. Views
// may also be constructed directly over caller-owned Go slices, or
// broadcast a single value (or list) to every index.
//
// Element values are represented by values.T, defined as
//
//	type T = interface{}
//
// whose dynamic type is always the Go element type of the buffer's
// type descriptor (see package types).
//
// Operations that take a mask touch only the indices in the mask.
// Misuse (indexing past a buffer, mixing element types, touching a
// freed buffer) is a contract violation and panics.
package values

import (
	"fmt"
	"reflect"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/types"
)

// T is the type of a single element value. It is just an alias to
// interface{}, but is used throughout code for clarity.
type T = interface{}

// Array is a mutable buffer of one element per index.
type Array struct {
	t     *types.T
	buf   interface{}
	size  int
	freed bool
}

// NewArray allocates a zeroed array of the given type and size.
func NewArray(t *types.T, size int) *Array {
	return &Array{t: t, buf: t.Alloc(size), size: size}
}

// ArrayOf wraps the caller-owned slice data as an array of type t.
// Writes to the array are visible in data.
func ArrayOf[E any](t *types.T, data []E) *Array {
	checkGoType(t, data)
	return &Array{t: t, buf: data, size: len(data)}
}

// Type returns the array's element type.
func (a *Array) Type() *types.T {
	return a.t
}

// Len returns the number of elements in the array.
func (a *Array) Len() int {
	return a.size
}

// Freed tells whether the array's buffer has been released.
func (a *Array) Freed() bool {
	return a.freed
}

// Buffer returns the underlying buffer, a []E for the array's element
// type E.
func (a *Array) Buffer() interface{} {
	a.check("buffer")
	return a.buf
}

// Get returns element i.
func (a *Array) Get(i int) T {
	a.checkIndex("get", i)
	return a.t.Get(a.buf, i)
}

// Set assigns element i.
func (a *Array) Set(i int, v T) {
	a.checkIndex("set", i)
	a.t.Set(a.buf, i, v)
}

// CopyFrom copy-constructs the elements at the mask's indices from
// the corresponding elements of src.
func (a *Array) CopyFrom(mask mfnet.Mask, src ListRef) {
	src.MaterializeTo(mask, a)
}

// Destruct resets the elements at the mask's indices.
func (a *Array) Destruct(mask mfnet.Mask) {
	a.checkMask("destruct", mask)
	a.t.DestructIndices(a.buf, mask.Indices())
}

// Free destructs the elements at the mask's indices and releases the
// buffer. Any further access to the array panics.
func (a *Array) Free(mask mfnet.Mask) {
	a.Destruct(mask)
	a.buf = nil
	a.freed = true
}

// Ref returns a read-only view of the array.
func (a *Array) Ref() ListRef {
	a.check("ref")
	return ListRef{t: a.t, buf: a.buf, size: a.size}
}

// String renders the array's type and size.
func (a *Array) String() string {
	return fmt.Sprintf("array<%s>[%d]", a.t, a.size)
}

func (a *Array) check(op string) {
	if a.freed {
		errors.Panic(op, a, errors.New("use of freed array"))
	}
}

func (a *Array) checkIndex(op string, i int) {
	a.check(op)
	if i < 0 || i >= a.size {
		errors.Panic(op, a, fmt.Sprintf("index %d", i), errors.New("index out of range"))
	}
}

func (a *Array) checkMask(op string, mask mfnet.Mask) {
	a.check(op)
	if mask.MinArraySize() > a.size {
		errors.Panic(op, a, mask, errors.New("mask exceeds array size"))
	}
}

// Slice returns the underlying slice of an array with Go element type E.
func Slice[E any](a *Array) []E {
	return a.Buffer().([]E)
}

// ListRef is a read-only view of one element per index. A ListRef is
// either backed by a buffer or broadcasts a single value to every
// index.
type ListRef struct {
	t      *types.T
	buf    interface{}
	single bool
	value  T
	size   int
}

// SliceRef returns a read-only view over the caller-owned slice data.
func SliceRef[E any](t *types.T, data []E) ListRef {
	checkGoType(t, data)
	return ListRef{t: t, buf: data, size: len(data)}
}

// SingleRef returns a read-only view that yields v for each of size
// indices.
func SingleRef(t *types.T, v T, size int) ListRef {
	if got, want := reflect.TypeOf(v), t.GoType(); got != want {
		errors.Panic("wrap", t, errors.Invalid, errors.Errorf("got %v, want %s", got, want))
	}
	return ListRef{t: t, single: true, value: v, size: size}
}

// Type returns the view's element type.
func (r ListRef) Type() *types.T {
	return r.t
}

// Len returns the number of elements in the view.
func (r ListRef) Len() int {
	return r.size
}

// IsSingle tells whether the view broadcasts a single value.
func (r ListRef) IsSingle() bool {
	return r.single
}

// Get returns element i.
func (r ListRef) Get(i int) T {
	if i < 0 || i >= r.size {
		errors.Panic("get", fmt.Sprintf("index %d of %d", i, r.size), errors.New("index out of range"))
	}
	if r.single {
		return r.value
	}
	return r.t.Get(r.buf, i)
}

// MaterializeTo copy-constructs dst's elements at the mask's indices
// from this view.
func (r ListRef) MaterializeTo(mask mfnet.Mask, dst *Array) {
	dst.checkMask("materialize", mask)
	if r.t != dst.t {
		errors.Panic("materialize", dst, errors.Invalid,
			errors.Errorf("cannot copy %s values into %s array", r.t, dst.t))
	}
	if mask.MinArraySize() > r.size {
		errors.Panic("materialize", mask, errors.Errorf("mask exceeds view of size %d", r.size))
	}
	if r.single {
		r.t.FillIndices(r.value, dst.buf, mask.Indices())
	} else {
		r.t.CopyIndices(r.buf, dst.buf, mask.Indices())
	}
}

// RefSlice returns the elements of view r as a slice of Go element
// type E. Broadcasting views are expanded into a fresh slice. The
// returned slice must not be modified: views are read-only.
func RefSlice[E any](r ListRef) []E {
	if r.single {
		s := make([]E, r.size)
		for i := range s {
			s[i] = r.value.(E)
		}
		return s
	}
	return r.buf.([]E)[:r.size]
}

func checkGoType(t *types.T, data interface{}) {
	if got, want := reflect.TypeOf(data), reflect.SliceOf(t.GoType()); got != want {
		errors.Panic("wrap", t, errors.Invalid, errors.Errorf("got %s, want %s", got, want))
	}
}

// View is a typed read-only view over the elements of a ListRef. It
// avoids interface conversions in the inner loops of function bodies.
type View[E any] struct {
	data   []E
	value  E
	single bool
}

// ViewOf returns a typed view of r. ViewOf panics if E is not r's Go
// element type.
func ViewOf[E any](r ListRef) View[E] {
	if r.single {
		v, ok := r.value.(E)
		if !ok {
			errors.Panic("view", r.t, errors.Invalid, errors.Errorf("value %v is not of type %T", r.value, v))
		}
		return View[E]{value: v, single: true}
	}
	data, ok := r.buf.([]E)
	if !ok {
		errors.Panic("view", r.t, errors.Invalid, errors.Errorf("buffer of %s is not a %T", r.t, data))
	}
	return View[E]{data: data[:r.size]}
}

// At returns element i.
func (v View[E]) At(i int) E {
	if v.single {
		return v.value
	}
	return v.data[i]
}
