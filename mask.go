// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package mfnet

import (
	"fmt"
	"strings"

	"github.com/grailbio/mfnet/errors"
	"github.com/willf/bitset"
)

// Mask is an explicit, strictly increasing set of indices over which
// a call operates. Buffers passed alongside a mask must have room for
// at least MinArraySize elements; only the elements at indices in the
// mask are read or written.
//
// The zero Mask is empty. Masks are immutable and may be shared
// between goroutines.
type Mask struct {
	indices []int
	set     *bitset.BitSet
}

// NewMask returns a mask over the provided indices, which must be
// non-negative and strictly increasing. NewMask panics otherwise.
// The mask retains the slice; callers must not modify it afterwards.
func NewMask(indices []int) Mask {
	for i, index := range indices {
		if index < 0 || (i > 0 && index <= indices[i-1]) {
			errors.Panic("mask", fmt.Sprint(indices), errors.Invalid,
				errors.New("indices must be non-negative and strictly increasing"))
		}
	}
	return newMask(indices)
}

func newMask(indices []int) Mask {
	if len(indices) == 0 {
		return Mask{}
	}
	set := bitset.New(uint(indices[len(indices)-1] + 1))
	for _, i := range indices {
		set.Set(uint(i))
	}
	return Mask{indices: indices, set: set}
}

// RangeMask returns the mask containing indices 0, 1, ..., n-1.
func RangeMask(n int) Mask {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return newMask(indices)
}

// Len returns the number of indices in the mask.
func (m Mask) Len() int {
	return len(m.indices)
}

// At returns the i'th index of the mask.
func (m Mask) At(i int) int {
	return m.indices[i]
}

// Indices returns the mask's indices. The returned slice must not be
// modified.
func (m Mask) Indices() []int {
	return m.indices
}

// Contains tells whether index i is in the mask.
func (m Mask) Contains(i int) bool {
	if m.set == nil || i < 0 {
		return false
	}
	return m.set.Test(uint(i))
}

// MinArraySize returns the minimum size of buffers that are indexed
// by this mask: the largest index plus one.
func (m Mask) MinArraySize() int {
	if len(m.indices) == 0 {
		return 0
	}
	return m.indices[len(m.indices)-1] + 1
}

// IsRange tells whether the mask is 0, 1, ..., Len()-1.
func (m Mask) IsRange() bool {
	return len(m.indices) == 0 || m.indices[len(m.indices)-1] == len(m.indices)-1
}

// Slice returns the sub-mask of indices at positions [start, end).
func (m Mask) Slice(start, end int) Mask {
	return newMask(m.indices[start:end])
}

// Chunks splits the mask into consecutive sub-masks of at most size
// indices each. A non-positive size returns the mask itself.
func (m Mask) Chunks(size int) []Mask {
	if size <= 0 || m.Len() <= size {
		return []Mask{m}
	}
	chunks := make([]Mask, 0, (m.Len()+size-1)/size)
	for start := 0; start < m.Len(); start += size {
		end := start + size
		if end > m.Len() {
			end = m.Len()
		}
		chunks = append(chunks, m.Slice(start, end))
	}
	return chunks
}

// String renders the mask: ranges render as [0..n), other masks list
// their indices.
func (m Mask) String() string {
	if m.IsRange() {
		return fmt.Sprintf("[0..%d)", m.Len())
	}
	var b strings.Builder
	b.WriteString("[")
	for i, index := range m.indices {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprint(&b, index)
	}
	b.WriteString("]")
	return b.String()
}
