package ir

import (
	"fmt"
	"strings"
)

// Expr is the base interface for all IR expressions. Expressions have
// reference identity: two structurally equal expressions are still distinct
// nodes and may end up with independent placements.
type Expr interface {
	// Checked returns the statically computed type of this expression.
	Checked() Type
	SetChecked(Type)
	String() string
	exprNode()
}

// typed is embedded by every expression node to carry its static type.
type typed struct {
	checked Type
}

func (t *typed) Checked() Type      { return t.checked }
func (t *typed) SetChecked(ty Type) { t.checked = ty }

// Var is a local variable.
type Var struct {
	typed
	Name string
}

func (v *Var) exprNode()      {}
func (v *Var) String() string { return "%" + v.Name }

// GlobalVar refers to a module-level function by name.
type GlobalVar struct {
	typed
	Name string
}

func (g *GlobalVar) exprNode()      {}
func (g *GlobalVar) String() string { return "@" + g.Name }

// Literal is a constant value (scalar, shape, kernel handle, ...).
type Literal struct {
	typed
	Value any
}

func (l *Literal) exprNode()      {}
func (l *Literal) String() string { return fmt.Sprintf("%v", l.Value) }

// Func is a function definition: named parameters and a body.
type Func struct {
	typed
	Name   string
	Params []*Var
	Body   Expr
}

func (f *Func) exprNode() {}
func (f *Func) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("fn %s(%s)", f.Name, strings.Join(params, ", "))
}

// Let binds a value to a variable within a body.
type Let struct {
	typed
	Var   *Var
	Value Expr
	Body  Expr
}

func (l *Let) exprNode()      {}
func (l *Let) String() string { return fmt.Sprintf("let %s = %s", l.Var, l.Value) }

// Tuple is a fixed-width tuple construction.
type Tuple struct {
	typed
	Fields []Expr
}

func (tp *Tuple) exprNode() {}
func (tp *Tuple) String() string {
	fields := make([]string, len(tp.Fields))
	for i, f := range tp.Fields {
		fields[i] = f.String()
	}
	return "(" + strings.Join(fields, ", ") + ")"
}

// TupleGet projects one field out of a tuple.
type TupleGet struct {
	typed
	Tuple Expr
	Index int
}

func (tg *TupleGet) exprNode()      {}
func (tg *TupleGet) String() string { return fmt.Sprintf("%s.%d", tg.Tuple, tg.Index) }

// Op is a primitive operator. Operators are singletons: every use of "add"
// in a module refers to the same *Op node.
type Op struct {
	typed
	Name string
}

func (o *Op) exprNode()      {}
func (o *Op) String() string { return o.Name }

// Constructor is a data constructor of an ADT. Constructors are
// function-typed and, like Op, have singleton identity per ADT.
type Constructor struct {
	typed
	Name    string
	Belongs *ADT
}

func (c *Constructor) exprNode()      {}
func (c *Constructor) String() string { return c.Name }

// Call applies an operator, constructor or function-valued expression to
// arguments. Attrs carries the operator-specific attributes, if any.
type Call struct {
	typed
	Op    Expr
	Args  []Expr
	Attrs any
}

func (c *Call) exprNode() {}
func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Op, strings.Join(args, ", "))
}
