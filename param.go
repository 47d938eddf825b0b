// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package mfnet

// ParamKind is the kind of a function parameter. It determines how
// an evaluator binds the parameter to the value of a socket.
type ParamKind int

const (
	// SingleInput is a read-only single value per index.
	SingleInput ParamKind = iota
	// VectorInput is a read-only list per index.
	VectorInput
	// SingleOutput is a freshly allocated single value per index,
	// written by the function.
	SingleOutput
	// VectorOutput is a freshly allocated, empty list per index,
	// extended by the function.
	VectorOutput
	// MutableSingle is a single value per index that the function
	// modifies in place.
	MutableSingle
	// MutableVector is a list per index that the function modifies
	// in place.
	MutableVector
)

var paramKinds = [...]string{
	SingleInput:   "single input",
	VectorInput:   "vector input",
	SingleOutput:  "single output",
	VectorOutput:  "vector output",
	MutableSingle: "mutable single",
	MutableVector: "mutable vector",
}

func (k ParamKind) String() string {
	if k < 0 || int(k) >= len(paramKinds) {
		return "unknown"
	}
	return paramKinds[k]
}

// Category returns the category of the values bound to parameters
// of this kind.
func (k ParamKind) Category() Category {
	switch k {
	case VectorInput, VectorOutput, MutableVector:
		return Vector
	default:
		return Single
	}
}

// IsInput tells whether parameters of this kind consume a value,
// that is, whether they are bound to an input socket.
func (k ParamKind) IsInput() bool {
	switch k {
	case SingleInput, VectorInput, MutableSingle, MutableVector:
		return true
	}
	return false
}

// IsOutput tells whether parameters of this kind produce a value,
// that is, whether they are bound to an output socket.
func (k ParamKind) IsOutput() bool {
	switch k {
	case SingleOutput, VectorOutput, MutableSingle, MutableVector:
		return true
	}
	return false
}

// IsMutable tells whether parameters of this kind are modified in
// place.
func (k ParamKind) IsMutable() bool {
	return k == MutableSingle || k == MutableVector
}
