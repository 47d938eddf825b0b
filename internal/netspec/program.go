// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package netspec

import (
	"fmt"
	"io"
	"reflect"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/fn"
	"github.com/grailbio/mfnet/network"
	"github.com/grailbio/mfnet/types"
	"github.com/grailbio/mfnet/values"
)

// Program is a built network description: the network, its dummy
// nodes, the mask to evaluate and the values supplied by the caller.
type Program struct {
	Name    string
	Network *network.Network
	In, Out *network.Node
	Mask    mfnet.Mask

	// inputs holds a values.ListRef or values.ListListRef for each
	// output socket of In.
	inputs []interface{}
}

// Evaluator returns an evaluator that computes every output of the
// program from its inputs.
func (p *Program) Evaluator(cfg network.Config) (*network.Evaluator, error) {
	if cfg.Name == "" {
		cfg.Name = p.Name
	}
	return network.NewEvaluator(p.In.Outputs(), p.Out.Inputs(), cfg)
}

// Params binds the program's inputs and fresh output buffers to the
// parameters of evaluator e, which must have been returned by
// Evaluator. The returned results hold the output buffers.
func (p *Program) Params(e *network.Evaluator) (*fn.Params, Results) {
	size := p.Mask.MinArraySize()
	b := fn.NewParamsBuilder(e.Signature(), size)
	for _, v := range p.inputs {
		switch v := v.(type) {
		case values.ListRef:
			b.AddSingleInput(v)
		case values.ListListRef:
			b.AddVectorInput(v)
		}
	}
	results := make(Results, len(p.Out.Inputs()))
	for i, s := range p.Out.Inputs() {
		r := Result{Name: s.Name(), Type: s.DataType()}
		if r.Type.Category == mfnet.Vector {
			r.Lists = values.NewVectorArray(r.Type.Type, size)
			b.AddVectorOutput(r.Lists)
		} else {
			r.Array = values.NewArray(r.Type.Type, size)
			b.AddSingleOutput(r.Array)
		}
		results[i] = r
	}
	return b.Build(), results
}

// Result is the buffer of one requested value.
type Result struct {
	Name  string
	Type  mfnet.DataType
	Array *values.Array
	Lists *values.VectorArray
}

// Value returns the value at index i: an element for single types and
// a []interface{} of elements for vector types.
func (r Result) Value(i int) interface{} {
	if r.Array != nil {
		return r.Array.Get(i)
	}
	list := r.Lists.List(i)
	vals := make([]interface{}, list.Len())
	for j := range vals {
		vals[j] = list.Get(j)
	}
	return vals
}

// Results are the requested values of a program.
type Results []Result

// Write writes one line per result and index in mask, of the form
// "name[index] = value".
func (rs Results) Write(w io.Writer, mask mfnet.Mask) error {
	for _, r := range rs {
		for _, i := range mask.Indices() {
			if _, err := fmt.Fprintf(w, "%s[%d] = %v\n", r.Name, i, r.Value(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// bind builds the caller view of input in of type typ over size
// indices.
func bind(typ mfnet.DataType, in Input, size int) (interface{}, error) {
	switch {
	case in.Value != nil && in.Values != nil:
		return nil, errors.E(errors.Invalid, errors.New("input has both a value and values"))
	case in.Value == nil && in.Values == nil:
		return nil, errors.E(errors.Invalid, errors.New("input has neither a value nor values"))
	case in.Values != nil && len(in.Values) < size:
		return nil, errors.E(errors.Invalid, errors.Errorf("got %d values, need at least %d", len(in.Values), size))
	}
	t := typ.Type
	if typ.Category == mfnet.Single {
		if in.Value != nil {
			v, err := convert(t, in.Value)
			if err != nil {
				return nil, err
			}
			return values.SingleRef(t, v, size), nil
		}
		a := values.NewArray(t, len(in.Values))
		for i, x := range in.Values {
			v, err := convert(t, x)
			if err != nil {
				return nil, errors.E(fmt.Sprintf("index %d", i), err)
			}
			a.Set(i, v)
		}
		return a.Ref(), nil
	}
	lists := in.Values
	if in.Value != nil {
		lists = make([]interface{}, size)
		for i := range lists {
			lists[i] = in.Value
		}
	}
	v := values.NewVectorArray(t, len(lists))
	for i, l := range lists {
		elems, ok := l.([]interface{})
		if !ok {
			return nil, errors.E(fmt.Sprintf("index %d", i), errors.Invalid, errors.Errorf("%v is not a list", l))
		}
		for _, x := range elems {
			e, err := convert(t, x)
			if err != nil {
				return nil, errors.E(fmt.Sprintf("index %d", i), err)
			}
			v.Append(i, e)
		}
	}
	return v.Ref(), nil
}

// convert converts the YAML-decoded value v to a value of element
// type t.
func convert(t *types.T, v interface{}) (interface{}, error) {
	goType := t.GoType()
	switch t.Kind {
	case types.IntKind, types.FloatKind:
		switch v.(type) {
		case int, float64:
			if t.Kind == types.IntKind {
				if f, ok := v.(float64); ok && f != float64(int64(f)) {
					return nil, errors.E(errors.Invalid, errors.Errorf("%v is not an integer", v))
				}
			}
			return reflect.ValueOf(v).Convert(goType).Interface(), nil
		}
	case types.StringKind, types.BoolKind:
		if reflect.TypeOf(v) == goType {
			return v, nil
		}
	case types.Vector3Kind:
		xyz, ok := v.([]interface{})
		if !ok || len(xyz) != 3 {
			break
		}
		var c [3]float32
		for i := range c {
			f, err := convert(types.Float32, xyz[i])
			if err != nil {
				return nil, err
			}
			c[i] = f.(float32)
		}
		return types.Vec3{X: c[0], Y: c[1], Z: c[2]}, nil
	default:
		return nil, errors.E(errors.NotSupported, errors.Errorf("values of type %s cannot be described", t))
	}
	return nil, errors.E(errors.Invalid, errors.Errorf("%v is not a %s", v, t))
}
