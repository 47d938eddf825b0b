// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package types contains type descriptors for the element values
// flowing through a multi-function network.
//
// The evaluation engine never knows the Go types of the values it
// moves around. Instead, every buffer is accompanied by a *T, a
// descriptor carrying the element's name, size and alignment, and a
// set of type-erased operations (allocate, copy-construct, destruct,
// fill, get, set, append) built once from a Go type parameter by New.
// Buffers are represented as Go slices stored in interface values:
// a buffer of n float32 elements is a []float32, and a list in a
// vector buffer is likewise a []float32.
//
// All operations that take indices operate only on those indices;
// elements at other positions are left untouched.
package types

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"unsafe"
)

// Kind is a coarse classification of element types, used by
// scripting front-ends to convert values to and from their own
// representations.
type Kind int

const (
	// OtherKind is any type not covered below.
	OtherKind Kind = iota
	// IntKind is the kind of (fixed width) signed integers.
	IntKind
	// FloatKind is the kind of floating point numbers.
	FloatKind
	// StringKind is the kind of UTF-8 encoded strings.
	StringKind
	// BoolKind is the kind of booleans.
	BoolKind
	// Vector3Kind is the kind of three-component float vectors.
	Vector3Kind

	kindMax
)

var kindStrings = [kindMax]string{
	OtherKind:   "other",
	IntKind:     "int",
	FloatKind:   "float",
	StringKind:  "string",
	BoolKind:    "bool",
	Vector3Kind: "vector3",
}

func (k Kind) String() string {
	return kindStrings[k]
}

// Vec3 is the element type of Vector3.
type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// T is a type descriptor. Ts are created by New and compared by
// identity: two descriptors describe the same type only if they are
// the same pointer.
type T struct {
	// Name is the registered name of the type.
	Name string
	// Kind classifies the type.
	Kind Kind
	// Size is the size in bytes of one element.
	Size uintptr
	// Align is the alignment in bytes of one element.
	Align uintptr

	ops ops
}

// ops are the type-erased operations of a type. Buffers and lists
// are slices of the element type stored in interface values.
type ops interface {
	alloc(n int) interface{}
	length(buf interface{}) int
	get(buf interface{}, i int) interface{}
	set(buf interface{}, i int, v interface{})
	copyIndices(src, dst interface{}, indices []int)
	fillIndices(v interface{}, dst interface{}, indices []int)
	destructIndices(buf interface{}, indices []int)
	appendValue(list interface{}, v interface{}) interface{}
	appendList(list, src interface{}) interface{}
	goType() reflect.Type
}

type typed[E any] struct{}

func (typed[E]) alloc(n int) interface{} { return make([]E, n) }

func (typed[E]) length(buf interface{}) int { return len(buf.([]E)) }

func (typed[E]) get(buf interface{}, i int) interface{} { return buf.([]E)[i] }

func (typed[E]) set(buf interface{}, i int, v interface{}) { buf.([]E)[i] = v.(E) }

func (typed[E]) copyIndices(src, dst interface{}, indices []int) {
	s, d := src.([]E), dst.([]E)
	for _, i := range indices {
		d[i] = s[i]
	}
}

func (typed[E]) fillIndices(v interface{}, dst interface{}, indices []int) {
	e, d := v.(E), dst.([]E)
	for _, i := range indices {
		d[i] = e
	}
}

func (typed[E]) destructIndices(buf interface{}, indices []int) {
	var zero E
	b := buf.([]E)
	for _, i := range indices {
		b[i] = zero
	}
}

func (typed[E]) appendValue(list interface{}, v interface{}) interface{} {
	if list == nil {
		return []E{v.(E)}
	}
	return append(list.([]E), v.(E))
}

func (typed[E]) appendList(list, src interface{}) interface{} {
	s := src.([]E)
	if list == nil {
		return append([]E(nil), s...)
	}
	return append(list.([]E), s...)
}

func (typed[E]) goType() reflect.Type {
	return reflect.TypeOf((*E)(nil)).Elem()
}

// New creates a new type descriptor for element type E with the
// given name. The descriptor is not registered; see Register.
func New[E any](name string) *T {
	var e E
	return &T{
		Name:  name,
		Kind:  kindOf(reflect.TypeOf(&e).Elem()),
		Size:  unsafe.Sizeof(e),
		Align: unsafe.Alignof(e),
		ops:   typed[E]{},
	}
}

func kindOf(t reflect.Type) Kind {
	if t == reflect.TypeOf(Vec3{}) {
		return Vector3Kind
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntKind
	case reflect.Float32, reflect.Float64:
		return FloatKind
	case reflect.String:
		return StringKind
	case reflect.Bool:
		return BoolKind
	}
	return OtherKind
}

// String returns the type's name.
func (t *T) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}

// GoType returns the Go element type described by t.
func (t *T) GoType() reflect.Type {
	return t.ops.goType()
}

// Alloc allocates a zeroed buffer of n elements.
func (t *T) Alloc(n int) interface{} {
	return t.ops.alloc(n)
}

// Len returns the number of elements in buffer (or list) buf.
func (t *T) Len(buf interface{}) int {
	if buf == nil {
		return 0
	}
	return t.ops.length(buf)
}

// Get returns element i of buf.
func (t *T) Get(buf interface{}, i int) interface{} {
	return t.ops.get(buf, i)
}

// Set assigns element i of buf. Set panics if v is not of the
// described type.
func (t *T) Set(buf interface{}, i int, v interface{}) {
	t.ops.set(buf, i, v)
}

// CopyIndices copy-constructs dst[i] from src[i] for each index i.
func (t *T) CopyIndices(src, dst interface{}, indices []int) {
	t.ops.copyIndices(src, dst, indices)
}

// FillIndices assigns v to dst[i] for each index i.
func (t *T) FillIndices(v interface{}, dst interface{}, indices []int) {
	t.ops.fillIndices(v, dst, indices)
}

// DestructIndices resets buf[i] to the zero value for each index
// i, releasing any references held by the elements.
func (t *T) DestructIndices(buf interface{}, indices []int) {
	t.ops.destructIndices(buf, indices)
}

// Append appends value v to list, which may be nil, and returns the
// extended list.
func (t *T) Append(list interface{}, v interface{}) interface{} {
	return t.ops.appendValue(list, v)
}

// AppendList appends all elements of src to list, which may be nil,
// and returns the extended list. The result never aliases src.
func (t *T) AppendList(list, src interface{}) interface{} {
	return t.ops.appendList(list, src)
}

// Builtin element types.
var (
	Float32 = New[float32]("float")
	Float64 = New[float64]("double")
	Int32   = New[int32]("int32")
	Int64   = New[int64]("int")
	Bool    = New[bool]("bool")
	String  = New[string]("string")
	Vector3 = New[Vec3]("vector3")
)

var (
	mu       sync.RWMutex
	registry = map[string]*T{}
)

func init() {
	for _, t := range []*T{Float32, Float64, Int32, Int64, Bool, String, Vector3} {
		registry[t.Name] = t
	}
}

// Register makes type t available to Lookup under its name. Register
// returns an error if a different type is already registered under
// the same name.
func Register(t *T) error {
	mu.Lock()
	defer mu.Unlock()
	if u, ok := registry[t.Name]; ok && u != t {
		return fmt.Errorf("type %q already registered", t.Name)
	}
	registry[t.Name] = t
	return nil
}

// Lookup returns the type registered under the given name.
func Lookup(name string) (*T, bool) {
	mu.RLock()
	defer mu.RUnlock()
	t, ok := registry[name]
	return t, ok
}

// Names returns the sorted names of all registered types.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
