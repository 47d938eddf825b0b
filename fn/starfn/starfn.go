// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package starfn implements element-wise multi-functions whose bodies
// are written in Starlark.
//
// A script defines a Starlark function that is called once per index
// in the mask. It receives the function's single inputs and mutable
// parameters, in signature order, as positional arguments. It
// returns the value of the single output or mutable parameter; a
// function with more than one such parameter returns a tuple of
// values in signature order.
//
// Element values map to Starlark as follows: ints and floats to int
// and float, strings to string, bools to bool, and vectors to a
// tuple of three floats.
package starfn

import (
	"context"
	"fmt"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/fn"
	"github.com/grailbio/mfnet/log"
	"github.com/grailbio/mfnet/types"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

type function struct {
	sig     *fn.Signature
	body    starlark.Callable
	inputs  []int
	outputs []int
}

// New compiles the Starlark module src and returns a function with
// signature sig whose body is the module's global named entry. Only
// single parameters are supported.
func New(sig *fn.Signature, src, entry string) (fn.Function, error) {
	f := &function{sig: sig}
	for i, p := range sig.Params {
		if p.Kind.Category() != mfnet.Single {
			return nil, errors.E("compile", sig.Name, p.Name, errors.NotSupported,
				errors.Errorf("%s parameters cannot be scripted", p.Kind))
		}
		if p.Kind.IsInput() {
			f.inputs = append(f.inputs, i)
		}
		if p.Kind.IsOutput() {
			f.outputs = append(f.outputs, i)
		}
	}
	thread := &starlark.Thread{Name: "compile " + sig.Name}
	opts := &syntax.FileOptions{}
	globals, err := starlark.ExecFileOptions(opts, thread, sig.Name, src, nil)
	if err != nil {
		return nil, errors.E("compile", sig.Name, errors.Invalid, err)
	}
	body, ok := globals[entry].(starlark.Callable)
	if !ok {
		return nil, errors.E("compile", sig.Name, errors.NotExist,
			errors.Errorf("module does not define function %s", entry))
	}
	// Frozen globals may be shared by threads calling the function
	// concurrently.
	globals.Freeze()
	f.body = body
	return f, nil
}

func (f *function) Name() string             { return f.sig.Name }
func (f *function) Signature() *fn.Signature { return f.sig }
func (f *function) String() string           { return "starlark " + f.sig.String() }

func (f *function) Call(ctx context.Context, mask mfnet.Mask, params *fn.Params) error {
	thread := &starlark.Thread{
		Name: f.sig.Name,
		Print: func(_ *starlark.Thread, msg string) {
			log.Debugf("%s: %s", f.sig.Name, msg)
		},
	}
	stop := context.AfterFunc(ctx, func() { thread.Cancel(ctx.Err().Error()) })
	defer stop()

	var (
		ins  = make([]func(int) interface{}, len(f.inputs))
		outs = make([]func(int, interface{}), len(f.outputs))
	)
	for j, i := range f.inputs {
		switch f.sig.Params[i].Kind {
		case mfnet.SingleInput:
			ins[j] = params.SingleInput(i).Get
		case mfnet.MutableSingle:
			ins[j] = params.MutableSingle(i).Get
		}
	}
	for j, i := range f.outputs {
		switch f.sig.Params[i].Kind {
		case mfnet.SingleOutput:
			outs[j] = params.SingleOutput(i).Set
		case mfnet.MutableSingle:
			outs[j] = params.MutableSingle(i).Set
		}
	}
	args := make(starlark.Tuple, len(f.inputs))
	for _, index := range mask.Indices() {
		for j, i := range f.inputs {
			v, err := toStarlark(ins[j](index))
			if err != nil {
				return errors.E("call", f.sig.Name, f.sig.Params[i].Name, err)
			}
			args[j] = v
		}
		result, err := starlark.Call(thread, f.body, args, nil)
		if err != nil {
			return errors.E("call", f.sig.Name, fmt.Sprintf("index %d", index), errors.Eval, err)
		}
		results := starlark.Tuple{result}
		if len(f.outputs) != 1 {
			tuple, ok := result.(starlark.Tuple)
			if !ok || len(tuple) != len(f.outputs) {
				return errors.E("call", f.sig.Name, errors.Eval,
					errors.Errorf("script returned %s, want a tuple of %d values", result.Type(), len(f.outputs)))
			}
			results = tuple
		}
		for j, i := range f.outputs {
			p := f.sig.Params[i]
			v, err := fromStarlark(p.Type, results[j])
			if err != nil {
				return errors.E("call", f.sig.Name, p.Name, errors.Eval, err)
			}
			outs[j](index, v)
		}
	}
	return nil
}

func toStarlark(v interface{}) (starlark.Value, error) {
	switch v := v.(type) {
	case float32:
		return starlark.Float(v), nil
	case float64:
		return starlark.Float(v), nil
	case int32:
		return starlark.MakeInt(int(v)), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case bool:
		return starlark.Bool(v), nil
	case string:
		return starlark.String(v), nil
	case types.Vec3:
		return starlark.Tuple{starlark.Float(v.X), starlark.Float(v.Y), starlark.Float(v.Z)}, nil
	default:
		return nil, errors.E(errors.NotSupported, errors.Errorf("values of type %T cannot be scripted", v))
	}
}

func fromStarlark(t *types.T, v starlark.Value) (interface{}, error) {
	switch t.Get(t.Alloc(1), 0).(type) {
	case float32:
		f, ok := starlark.AsFloat(v)
		if !ok {
			return nil, errors.Errorf("got %s, want float", v.Type())
		}
		return float32(f), nil
	case float64:
		f, ok := starlark.AsFloat(v)
		if !ok {
			return nil, errors.Errorf("got %s, want float", v.Type())
		}
		return f, nil
	case int32:
		i, err := starlark.AsInt32(v)
		if err != nil {
			return nil, err
		}
		return int32(i), nil
	case int64:
		i, ok := v.(starlark.Int)
		if !ok {
			return nil, errors.Errorf("got %s, want int", v.Type())
		}
		n, ok := i.Int64()
		if !ok {
			return nil, errors.Errorf("int %s out of range", i)
		}
		return n, nil
	case bool:
		return bool(v.Truth()), nil
	case string:
		s, ok := starlark.AsString(v)
		if !ok {
			return nil, errors.Errorf("got %s, want string", v.Type())
		}
		return s, nil
	case types.Vec3:
		tuple, ok := v.(starlark.Tuple)
		if !ok || len(tuple) != 3 {
			return nil, errors.Errorf("got %s, want a tuple of 3 floats", v.Type())
		}
		var xyz [3]float32
		for i := range xyz {
			f, ok := starlark.AsFloat(tuple[i])
			if !ok {
				return nil, errors.Errorf("vector component %d is a %s", i, tuple[i].Type())
			}
			xyz[i] = float32(f)
		}
		return types.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
	default:
		return nil, errors.E(errors.NotSupported, errors.Errorf("values of type %s cannot be scripted", t))
	}
}
