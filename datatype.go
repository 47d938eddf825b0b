// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package mfnet

import "github.com/grailbio/mfnet/types"

// Category distinguishes single values from vector (list) values.
type Category int

const (
	// Single sockets carry one value per index.
	Single Category = iota
	// Vector sockets carry an independently sized list per index.
	Vector
)

func (c Category) String() string {
	switch c {
	case Single:
		return "single"
	case Vector:
		return "vector"
	default:
		return "unknown"
	}
}

// DataType is the type of the values carried by a socket: a category
// together with an element type.
type DataType struct {
	Category Category
	// Type is the element type. For vectors, it is the type of the
	// list elements.
	Type *types.T
}

// SingleType returns the single data type with element type t.
func SingleType(t *types.T) DataType {
	return DataType{Single, t}
}

// VectorType returns the vector data type with element type t.
func VectorType(t *types.T) DataType {
	return DataType{Vector, t}
}

// IsZero tells whether d is the zero DataType.
func (d DataType) IsZero() bool {
	return d.Type == nil
}

// String renders the data type, e.g., "float" or "float list".
func (d DataType) String() string {
	if d.Category == Vector {
		return d.Type.String() + " list"
	}
	return d.Type.String()
}
