// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package values

import (
	"fmt"
	"reflect"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/types"
)

// VectorArray is a mutable buffer of one list per index. Lists are
// independently sized and grow by appending.
type VectorArray struct {
	t     *types.T
	lists []interface{}
	freed bool
}

// NewVectorArray allocates a vector array of the given element type
// with size empty lists.
func NewVectorArray(t *types.T, size int) *VectorArray {
	return &VectorArray{t: t, lists: make([]interface{}, size)}
}

// Type returns the type of the list elements.
func (v *VectorArray) Type() *types.T {
	return v.t
}

// Len returns the number of lists.
func (v *VectorArray) Len() int {
	return len(v.lists)
}

// Freed tells whether the vector array has been released.
func (v *VectorArray) Freed() bool {
	return v.freed
}

// ListLen returns the length of list i.
func (v *VectorArray) ListLen(i int) int {
	v.checkIndex("listlen", i)
	return v.t.Len(v.lists[i])
}

// Append appends value x to list i.
func (v *VectorArray) Append(i int, x T) {
	v.checkIndex("append", i)
	v.lists[i] = v.t.Append(v.lists[i], x)
}

// ExtendSingleCopy appends copies of all of src's elements to list i.
func (v *VectorArray) ExtendSingleCopy(i int, src ListRef) {
	v.checkIndex("extend", i)
	if src.t != v.t {
		errors.Panic("extend", v, errors.Invalid,
			errors.Errorf("cannot append %s values to %s lists", src.t, v.t))
	}
	if !src.single {
		v.lists[i] = v.t.AppendList(v.lists[i], src.buf)
		return
	}
	for j := 0; j < src.size; j++ {
		v.lists[i] = v.t.Append(v.lists[i], src.value)
	}
}

// ExtendMultipleCopy appends, for each index i in the mask, copies
// of the elements of src's list i to list i.
func (v *VectorArray) ExtendMultipleCopy(mask mfnet.Mask, src ListListRef) {
	v.checkMask("extend", mask)
	if mask.MinArraySize() > src.Len() {
		errors.Panic("extend", mask, errors.Errorf("mask exceeds view of size %d", src.Len()))
	}
	for _, i := range mask.Indices() {
		v.ExtendSingleCopy(i, src.List(i))
	}
}

// List returns a read-only view of list i. The view is invalidated
// by subsequent appends to the list.
func (v *VectorArray) List(i int) ListRef {
	v.checkIndex("list", i)
	list := v.lists[i]
	if list == nil {
		list = v.t.Alloc(0)
	}
	return ListRef{t: v.t, buf: list, size: v.t.Len(list)}
}

// Clear empties the lists at the mask's indices.
func (v *VectorArray) Clear(mask mfnet.Mask) {
	v.checkMask("clear", mask)
	for _, i := range mask.Indices() {
		v.lists[i] = nil
	}
}

// Free empties the lists at the mask's indices and releases the
// vector array. Any further access panics.
func (v *VectorArray) Free(mask mfnet.Mask) {
	v.Clear(mask)
	v.lists = nil
	v.freed = true
}

// Ref returns a read-only view of the vector array.
func (v *VectorArray) Ref() ListListRef {
	v.check("ref")
	return ListListRef{t: v.t, vector: v, size: len(v.lists)}
}

// String renders the vector array's type and size.
func (v *VectorArray) String() string {
	return fmt.Sprintf("vector<%s>[%d]", v.t, len(v.lists))
}

func (v *VectorArray) check(op string) {
	if v.freed {
		errors.Panic(op, v, errors.New("use of freed vector array"))
	}
}

func (v *VectorArray) checkIndex(op string, i int) {
	v.check(op)
	if i < 0 || i >= len(v.lists) {
		errors.Panic(op, v, fmt.Sprintf("index %d", i), errors.New("index out of range"))
	}
}

func (v *VectorArray) checkMask(op string, mask mfnet.Mask) {
	v.check(op)
	if mask.MinArraySize() > len(v.lists) {
		errors.Panic(op, v, mask, errors.New("mask exceeds vector array size"))
	}
}

// List returns list i of a vector array with Go element type E.
// The returned slice aliases the vector array's storage.
func List[E any](v *VectorArray, i int) []E {
	v.checkIndex("list", i)
	if v.lists[i] == nil {
		return nil
	}
	return v.lists[i].([]E)
}

// ListListRef is a read-only view of one list per index. It is backed
// by a VectorArray, by caller-owned slices, or broadcasts a single
// list to every index.
type ListListRef struct {
	t      *types.T
	vector *VectorArray
	lists  []interface{}
	single bool
	list   interface{}
	size   int
}

// SlicesRef returns a read-only view over the caller-owned lists.
func SlicesRef[E any](t *types.T, lists [][]E) ListListRef {
	if got, want := reflect.TypeOf(lists).Elem(), reflect.SliceOf(t.GoType()); got != want {
		errors.Panic("wrap", t, errors.Invalid, errors.Errorf("got %s lists, want %s", got, want))
	}
	erased := make([]interface{}, len(lists))
	for i := range lists {
		erased[i] = lists[i]
	}
	return ListListRef{t: t, lists: erased, size: len(lists)}
}

// SingleListRef returns a read-only view that yields list for each of
// size indices.
func SingleListRef[E any](t *types.T, list []E, size int) ListListRef {
	checkGoType(t, list)
	return ListListRef{t: t, single: true, list: list, size: size}
}

// Type returns the type of the list elements.
func (r ListListRef) Type() *types.T {
	return r.t
}

// Len returns the number of lists in the view.
func (r ListListRef) Len() int {
	return r.size
}

// ListLen returns the length of list i.
func (r ListListRef) ListLen(i int) int {
	return r.List(i).Len()
}

// List returns a read-only view of list i.
func (r ListListRef) List(i int) ListRef {
	if i < 0 || i >= r.size {
		errors.Panic("list", fmt.Sprintf("index %d of %d", i, r.size), errors.New("index out of range"))
	}
	var list interface{}
	switch {
	case r.vector != nil:
		return r.vector.List(i)
	case r.single:
		list = r.list
	default:
		list = r.lists[i]
	}
	if list == nil {
		list = r.t.Alloc(0)
	}
	return ListRef{t: r.t, buf: list, size: r.t.Len(list)}
}
