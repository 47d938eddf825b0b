// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package fn

import (
	"io"
	"strings"
	"sync"

	"github.com/grailbio/base/digest"
	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/types"
)

// Param is a single parameter of a function signature.
type Param struct {
	// Name is the parameter's name, used in diagnostics and by
	// scripting front-ends.
	Name string
	// Kind determines how the parameter is bound.
	Kind mfnet.ParamKind
	// Type is the parameter's element type. For vector parameters
	// this is the type of the list elements.
	Type *types.T
}

// DataType returns the data type of the values bound to p.
func (p Param) DataType() mfnet.DataType {
	return mfnet.DataType{Category: p.Kind.Category(), Type: p.Type}
}

var paramPrefix = [...]string{
	mfnet.SingleInput:   "in",
	mfnet.VectorInput:   "in",
	mfnet.SingleOutput:  "out",
	mfnet.VectorOutput:  "out",
	mfnet.MutableSingle: "inout",
	mfnet.MutableVector: "inout",
}

// String renders the parameter, e.g., "in float a".
func (p Param) String() string {
	return paramPrefix[p.Kind] + " " + p.DataType().String() + " " + p.Name
}

// Signature describes the ordered parameters of a function. Signatures
// are immutable once built.
type Signature struct {
	Name   string
	Params []Param

	digestOnce sync.Once
	digest     digest.Digest
}

// Len returns the number of parameters.
func (s *Signature) Len() int {
	return len(s.Params)
}

// Param returns the i'th parameter.
func (s *Signature) Param(i int) Param {
	return s.Params[i]
}

// Index returns the index of the parameter with the given name, or
// -1 if there is none.
func (s *Signature) Index(name string) int {
	for i, p := range s.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// String renders the signature, e.g.,
// "add(in float a, in float b, out float sum)".
func (s *Signature) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteString("(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(")")
	return b.String()
}

// Family returns the leading word of the signature's name. Functions
// constructed with parameters, such as "constant float 3.5" or
// "pack list int 3", share the family of their constructor, which
// keeps it bounded for use as a metric label.
func (s *Signature) Family() string {
	family, _, _ := strings.Cut(s.Name, " ")
	return family
}

// Digest returns a digest of the signature's name, parameter kinds
// and types.
func (s *Signature) Digest() digest.Digest {
	s.digestOnce.Do(func() {
		w := mfnet.Digester.NewWriter()
		io.WriteString(w, s.String())
		s.digest = w.Digest()
	})
	return s.digest
}

// SignatureBuilder constructs signatures one parameter at a time.
type SignatureBuilder struct {
	sig *Signature
}

// NewSignature returns a builder for a signature with the given
// function name.
func NewSignature(name string) *SignatureBuilder {
	return &SignatureBuilder{sig: &Signature{Name: name}}
}

func (b *SignatureBuilder) add(name string, kind mfnet.ParamKind, t *types.T) *SignatureBuilder {
	b.sig.Params = append(b.sig.Params, Param{Name: name, Kind: kind, Type: t})
	return b
}

// SingleInput appends a read-only single parameter.
func (b *SignatureBuilder) SingleInput(name string, t *types.T) *SignatureBuilder {
	return b.add(name, mfnet.SingleInput, t)
}

// VectorInput appends a read-only vector parameter with element type t.
func (b *SignatureBuilder) VectorInput(name string, t *types.T) *SignatureBuilder {
	return b.add(name, mfnet.VectorInput, t)
}

// SingleOutput appends a single output parameter.
func (b *SignatureBuilder) SingleOutput(name string, t *types.T) *SignatureBuilder {
	return b.add(name, mfnet.SingleOutput, t)
}

// VectorOutput appends a vector output parameter with element type t.
func (b *SignatureBuilder) VectorOutput(name string, t *types.T) *SignatureBuilder {
	return b.add(name, mfnet.VectorOutput, t)
}

// MutableSingle appends a single parameter modified in place.
func (b *SignatureBuilder) MutableSingle(name string, t *types.T) *SignatureBuilder {
	return b.add(name, mfnet.MutableSingle, t)
}

// MutableVector appends a vector parameter modified in place.
func (b *SignatureBuilder) MutableVector(name string, t *types.T) *SignatureBuilder {
	return b.add(name, mfnet.MutableVector, t)
}

// Param appends a parameter of arbitrary kind.
func (b *SignatureBuilder) Param(name string, kind mfnet.ParamKind, t *types.T) *SignatureBuilder {
	return b.add(name, kind, t)
}

// Build returns the constructed signature. The builder should not be
// used afterwards.
func (b *SignatureBuilder) Build() *Signature {
	return b.sig
}
