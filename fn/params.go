// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package fn

import (
	"fmt"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/types"
	"github.com/grailbio/mfnet/values"
)

// Params binds each parameter of a signature to a buffer or view.
// Params are constructed by a ParamsBuilder.
type Params struct {
	sig          *Signature
	minArraySize int
	bound        []interface{}
}

// Signature returns the signature whose parameters are bound.
func (p *Params) Signature() *Signature {
	return p.sig
}

// MinArraySize returns the minimum size of every bound buffer.
func (p *Params) MinArraySize() int {
	return p.minArraySize
}

func (p *Params) check(i int, kind mfnet.ParamKind) {
	if i < 0 || i >= len(p.bound) {
		errors.Panic("param", p.sig.Name, fmt.Sprintf("index %d", i), errors.New("no such parameter"))
	}
	if got := p.sig.Params[i].Kind; got != kind {
		errors.Panic("param", p.sig.Name, p.sig.Params[i].Name,
			errors.Errorf("parameter is %s, not %s", got, kind))
	}
}

// SingleInput returns the view bound to single input parameter i.
func (p *Params) SingleInput(i int) values.ListRef {
	p.check(i, mfnet.SingleInput)
	return p.bound[i].(values.ListRef)
}

// VectorInput returns the view bound to vector input parameter i.
func (p *Params) VectorInput(i int) values.ListListRef {
	p.check(i, mfnet.VectorInput)
	return p.bound[i].(values.ListListRef)
}

// SingleOutput returns the uninitialized array bound to single output
// parameter i.
func (p *Params) SingleOutput(i int) *values.Array {
	p.check(i, mfnet.SingleOutput)
	return p.bound[i].(*values.Array)
}

// VectorOutput returns the vector array bound to vector output
// parameter i.
func (p *Params) VectorOutput(i int) *values.VectorArray {
	p.check(i, mfnet.VectorOutput)
	return p.bound[i].(*values.VectorArray)
}

// MutableSingle returns the array bound to mutable single parameter i.
func (p *Params) MutableSingle(i int) *values.Array {
	p.check(i, mfnet.MutableSingle)
	return p.bound[i].(*values.Array)
}

// MutableVector returns the vector array bound to mutable vector
// parameter i.
func (p *Params) MutableVector(i int) *values.VectorArray {
	p.check(i, mfnet.MutableVector)
	return p.bound[i].(*values.VectorArray)
}

// ParamsBuilder binds parameters in signature order.
type ParamsBuilder struct {
	params *Params
}

// NewParamsBuilder returns a builder for the parameters of sig. Every
// bound buffer must hold at least minArraySize elements.
func NewParamsBuilder(sig *Signature, minArraySize int) *ParamsBuilder {
	return &ParamsBuilder{&Params{
		sig:          sig,
		minArraySize: minArraySize,
		bound:        make([]interface{}, 0, len(sig.Params)),
	}}
}

func (b *ParamsBuilder) add(kind mfnet.ParamKind, t *types.T, size int, v interface{}) *ParamsBuilder {
	p := b.params
	i := len(p.bound)
	if i >= len(p.sig.Params) {
		errors.Panic("bind", p.sig.Name, errors.Errorf("too many parameters; signature has %d", len(p.sig.Params)))
	}
	param := p.sig.Params[i]
	if param.Kind != kind {
		errors.Panic("bind", p.sig.Name, param.Name, errors.Errorf("cannot bind %s to %s parameter", kind, param.Kind))
	}
	if param.Type != t {
		errors.Panic("bind", p.sig.Name, param.Name, errors.Invalid,
			errors.Errorf("cannot bind %s values to %s parameter", t, param.Type))
	}
	if size < p.minArraySize {
		errors.Panic("bind", p.sig.Name, param.Name,
			errors.Errorf("buffer of size %d is smaller than %d", size, p.minArraySize))
	}
	p.bound = append(p.bound, v)
	return b
}

// AddSingleInput binds the next parameter, a single input, to r.
func (b *ParamsBuilder) AddSingleInput(r values.ListRef) *ParamsBuilder {
	return b.add(mfnet.SingleInput, r.Type(), r.Len(), r)
}

// AddVectorInput binds the next parameter, a vector input, to r.
func (b *ParamsBuilder) AddVectorInput(r values.ListListRef) *ParamsBuilder {
	return b.add(mfnet.VectorInput, r.Type(), r.Len(), r)
}

// AddSingleOutput binds the next parameter, a single output, to a.
func (b *ParamsBuilder) AddSingleOutput(a *values.Array) *ParamsBuilder {
	return b.add(mfnet.SingleOutput, a.Type(), a.Len(), a)
}

// AddVectorOutput binds the next parameter, a vector output, to v.
func (b *ParamsBuilder) AddVectorOutput(v *values.VectorArray) *ParamsBuilder {
	return b.add(mfnet.VectorOutput, v.Type(), v.Len(), v)
}

// AddMutableSingle binds the next parameter, a mutable single, to a.
func (b *ParamsBuilder) AddMutableSingle(a *values.Array) *ParamsBuilder {
	return b.add(mfnet.MutableSingle, a.Type(), a.Len(), a)
}

// AddMutableVector binds the next parameter, a mutable vector, to v.
func (b *ParamsBuilder) AddMutableVector(v *values.VectorArray) *ParamsBuilder {
	return b.add(mfnet.MutableVector, v.Type(), v.Len(), v)
}

// Build returns the bound parameters. Build panics unless every
// parameter of the signature has been bound.
func (b *ParamsBuilder) Build() *Params {
	p := b.params
	if len(p.bound) != len(p.sig.Params) {
		errors.Panic("bind", p.sig.Name, errors.Errorf("bound %d of %d parameters", len(p.bound), len(p.sig.Params)))
	}
	return p
}
