// Package ir defines the intermediate representation the device planner
// analyzes: static types, expressions, calls, and the registry of primitive
// memory/runtime operators. Expressions are compared by identity, never by
// structure; every expression carries the static type computed for it before
// planning starts.
package ir

import (
	"fmt"
	"strings"
)

// Type is the interface for all static types in the IR.
type Type interface {
	String() string
	typeNode()
}

// TensorType is the type of an n-dimensional tensor.
type TensorType struct {
	Shape []int64
	DType string
}

func (t *TensorType) typeNode() {}
func (t *TensorType) String() string {
	dims := make([]string, len(t.Shape))
	for i, d := range t.Shape {
		dims[i] = fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("Tensor[(%s), %s]", strings.Join(dims, ", "), t.DType)
}

// TupleType is the type of a fixed-width tuple.
type TupleType struct {
	Fields []Type
}

func (t *TupleType) typeNode() {}
func (t *TupleType) String() string {
	fields := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		fields[i] = f.String()
	}
	return "(" + strings.Join(fields, ", ") + ")"
}

// FuncType is the type of a function value.
type FuncType struct {
	Params []Type
	Ret    Type
}

func (t *FuncType) typeNode() {}
func (t *FuncType) String() string {
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.String()
	}
	return "fn(" + strings.Join(params, ", ") + ") -> " + t.Ret.String()
}

// PrimType is a scalar or runtime bookkeeping type (int64, bool, shape,
// storage, kernel handles).
type PrimType struct {
	Name string
}

func (t *PrimType) typeNode()      {}
func (t *PrimType) String() string { return t.Name }

// ADT is an algebraic data type with named constructors.
type ADT struct {
	Name         string
	Constructors []*Constructor
}

func (t *ADT) typeNode()      {}
func (t *ADT) String() string { return t.Name }

// Shared prim types.
var (
	Int64Type   = &PrimType{Name: "int64"}
	BoolType    = &PrimType{Name: "bool"}
	ShapeType   = &PrimType{Name: "shape"}
	StorageType = &PrimType{Name: "storage"}
	KernelType  = &PrimType{Name: "kernel"}
)
