package ir

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/devplan/internal/scope"
)

// The YAML program format. It is a direct serialization of the IR: a list of
// global functions whose bodies are nested expression nodes, each node keyed
// by its kind. The loader assigns static types as it builds expressions;
// full type validation is the job of an earlier compiler stage, not this
// package.

type fileModule struct {
	Main      string      `yaml:"main,omitempty"`
	ADTs      []*adtSpec  `yaml:"adts,omitempty"`
	Functions []*funcSpec `yaml:"functions"`
}

type adtSpec struct {
	Name         string     `yaml:"name"`
	Constructors []ctorSpec `yaml:"constructors"`
}

type ctorSpec struct {
	Name   string      `yaml:"name"`
	Params []*typeSpec `yaml:"params,omitempty"`
}

type funcSpec struct {
	Name   string      `yaml:"name"`
	Params []paramSpec `yaml:"params,omitempty"`
	Ret    *typeSpec   `yaml:"ret,omitempty"`
	Body   *exprSpec   `yaml:"body"`
}

type paramSpec struct {
	Name string    `yaml:"name"`
	Type *typeSpec `yaml:"type"`
}

type typeSpec struct {
	Tensor *tensorSpec `yaml:"tensor,omitempty"`
	Tuple  []*typeSpec `yaml:"tuple,omitempty"`
	Fn     *fnTypeSpec `yaml:"fn,omitempty"`
	Prim   string      `yaml:"prim,omitempty"`
	ADT    string      `yaml:"adt,omitempty"`
}

type tensorSpec struct {
	Shape []int64 `yaml:"shape"`
	DType string  `yaml:"dtype"`
}

type fnTypeSpec struct {
	Params []*typeSpec `yaml:"params,omitempty"`
	Ret    *typeSpec   `yaml:"ret"`
}

type scopeSpec struct {
	Device string `yaml:"device,omitempty"`
	ID     *int   `yaml:"id,omitempty"`
	Mem    string `yaml:"mem,omitempty"`
}

func (ss *scopeSpec) toScope() scope.Scope {
	s := scope.FullyUnconstrained()
	if ss == nil {
		return s
	}
	s.Device = scope.DeviceKind(ss.Device)
	if ss.ID != nil {
		s.VirtualID = *ss.ID
	}
	s.Mem = scope.MemScope(ss.Mem)
	return s
}

// exprSpec is one expression node; exactly one kind field must be set.
type exprSpec struct {
	Var    string       `yaml:"var,omitempty"`
	Global string       `yaml:"global,omitempty"`
	Lit    *literalSpec `yaml:"lit,omitempty"`

	Call *callSpec `yaml:"call,omitempty"`
	Ctor *ctorCall `yaml:"ctor,omitempty"`

	OnDevice     *onDeviceSpec     `yaml:"on_device,omitempty"`
	DeviceCopy   *deviceCopySpec   `yaml:"device_copy,omitempty"`
	AllocStorage *allocStorageSpec `yaml:"alloc_storage,omitempty"`
	AllocTensor  *allocTensorSpec  `yaml:"alloc_tensor,omitempty"`
	ShapeOf      *exprSpec         `yaml:"shape_of,omitempty"`
	InvokeKernel *invokeKernelSpec `yaml:"invoke_kernel,omitempty"`
	Reshape      *reshapeSpec      `yaml:"reshape,omitempty"`

	Let   *letSpec    `yaml:"let,omitempty"`
	Tuple []*exprSpec `yaml:"tuple,omitempty"`
	Get   *getSpec    `yaml:"get,omitempty"`
}

type literalSpec struct {
	Value any       `yaml:"value"`
	Type  *typeSpec `yaml:"type,omitempty"`
}

type callSpec struct {
	Op      string      `yaml:"op"`
	Args    []*exprSpec `yaml:"args,omitempty"`
	Type    *typeSpec   `yaml:"type,omitempty"`
	Lowered string      `yaml:"lowered,omitempty"`
}

type ctorCall struct {
	Name string      `yaml:"name"`
	Args []*exprSpec `yaml:"args,omitempty"`
}

type onDeviceSpec struct {
	Expr  *exprSpec `yaml:"expr"`
	Scope scopeSpec `yaml:",inline"`
	Fixed bool      `yaml:"fixed,omitempty"`
}

type deviceCopySpec struct {
	Expr *exprSpec  `yaml:"expr"`
	Src  *scopeSpec `yaml:"src"`
	Dst  *scopeSpec `yaml:"dst"`
}

type allocStorageSpec struct {
	Size      *exprSpec `yaml:"size"`
	Alignment *exprSpec `yaml:"alignment"`
	Scope     scopeSpec `yaml:",inline"`
}

type allocTensorSpec struct {
	Storage *exprSpec `yaml:"storage"`
	Offset  *exprSpec `yaml:"offset"`
	Shape   *exprSpec `yaml:"shape"`
	Type    *typeSpec `yaml:"type"`
}

type invokeKernelSpec struct {
	Kernel  *exprSpec `yaml:"kernel"`
	Inputs  *exprSpec `yaml:"inputs"`
	Outputs *exprSpec `yaml:"outputs"`
}

type reshapeSpec struct {
	Data  *exprSpec `yaml:"data"`
	Shape *exprSpec `yaml:"shape"`
	Type  *typeSpec `yaml:"type,omitempty"`
}

type letSpec struct {
	Var   string    `yaml:"var"`
	Value *exprSpec `yaml:"value"`
	Body  *exprSpec `yaml:"body"`
}

type getSpec struct {
	Tuple *exprSpec `yaml:"tuple"`
	Index int       `yaml:"index"`
}

// LoadModule reads and builds a module from a YAML program file.
func LoadModule(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading program %s: %w", path, err)
	}
	mod, err := ParseModule(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return mod, nil
}

// ParseModule builds a module from YAML program content.
func ParseModule(data []byte) (*Module, error) {
	var fm fileModule
	if err := yaml.Unmarshal(data, &fm); err != nil {
		return nil, err
	}
	if len(fm.Functions) == 0 {
		return nil, fmt.Errorf("program has no functions")
	}
	if fm.Main == "" {
		fm.Main = fm.Functions[0].Name
	}

	ld := &loader{
		mod:   NewModule(fm.Main),
		ctors: make(map[string]*Constructor),
	}
	if err := ld.declareADTs(fm.ADTs); err != nil {
		return nil, err
	}
	if err := ld.declareFunctions(fm.Functions); err != nil {
		return nil, err
	}
	for _, fs := range fm.Functions {
		if err := ld.buildFunction(fs); err != nil {
			return nil, fmt.Errorf("function %q: %w", fs.Name, err)
		}
	}
	if _, ok := ld.mod.Functions[fm.Main]; !ok {
		return nil, fmt.Errorf("entry function %q not defined", fm.Main)
	}
	return ld.mod, nil
}

type loader struct {
	mod   *Module
	ctors map[string]*Constructor
	vars  map[string]*Var
}

func (ld *loader) declareADTs(specs []*adtSpec) error {
	for _, as := range specs {
		adt := &ADT{Name: as.Name}
		for _, cs := range as.Constructors {
			if _, dup := ld.ctors[cs.Name]; dup {
				return fmt.Errorf("duplicate constructor %q", cs.Name)
			}
			params := make([]Type, len(cs.Params))
			for i, ps := range cs.Params {
				ty, err := ld.buildType(ps)
				if err != nil {
					return fmt.Errorf("constructor %q: %w", cs.Name, err)
				}
				params[i] = ty
			}
			ctor := &Constructor{Name: cs.Name, Belongs: adt}
			ctor.SetChecked(&FuncType{Params: params, Ret: adt})
			adt.Constructors = append(adt.Constructors, ctor)
			ld.ctors[cs.Name] = ctor
		}
	}
	return nil
}

// declareFunctions creates every Func node with its signature before bodies
// are built, so global references resolve regardless of definition order.
func (ld *loader) declareFunctions(specs []*funcSpec) error {
	for _, fs := range specs {
		fn := &Func{Name: fs.Name}
		for _, ps := range fs.Params {
			ty, err := ld.buildType(ps.Type)
			if err != nil {
				return fmt.Errorf("function %q param %q: %w", fs.Name, ps.Name, err)
			}
			v := &Var{Name: ps.Name}
			v.SetChecked(ty)
			fn.Params = append(fn.Params, v)
		}
		// A declared return type lets out-of-order global references
		// resolve; otherwise the signature is completed from the body.
		if fs.Ret != nil {
			ret, err := ld.buildType(fs.Ret)
			if err != nil {
				return fmt.Errorf("function %q ret: %w", fs.Name, err)
			}
			params := make([]Type, len(fn.Params))
			for i, p := range fn.Params {
				params[i] = p.Checked()
			}
			fn.SetChecked(&FuncType{Params: params, Ret: ret})
		}
		if err := ld.mod.Add(fn); err != nil {
			return err
		}
	}
	return nil
}

func (ld *loader) buildFunction(fs *funcSpec) error {
	fn := ld.mod.Functions[fs.Name]
	ld.vars = make(map[string]*Var, len(fn.Params))
	for _, p := range fn.Params {
		ld.vars[p.Name] = p
	}
	if fs.Body == nil {
		return fmt.Errorf("missing body")
	}
	body, err := ld.buildExpr(fs.Body)
	if err != nil {
		return err
	}
	fn.Body = body

	if fn.Checked() == nil {
		params := make([]Type, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = p.Checked()
		}
		fn.SetChecked(&FuncType{Params: params, Ret: body.Checked()})
	}
	return nil
}

func (ld *loader) buildType(ts *typeSpec) (Type, error) {
	if ts == nil {
		return nil, fmt.Errorf("missing type")
	}
	switch {
	case ts.Tensor != nil:
		return &TensorType{Shape: ts.Tensor.Shape, DType: ts.Tensor.DType}, nil
	case ts.Tuple != nil:
		fields := make([]Type, len(ts.Tuple))
		for i, f := range ts.Tuple {
			ty, err := ld.buildType(f)
			if err != nil {
				return nil, err
			}
			fields[i] = ty
		}
		return &TupleType{Fields: fields}, nil
	case ts.Fn != nil:
		params := make([]Type, len(ts.Fn.Params))
		for i, p := range ts.Fn.Params {
			ty, err := ld.buildType(p)
			if err != nil {
				return nil, err
			}
			params[i] = ty
		}
		ret, err := ld.buildType(ts.Fn.Ret)
		if err != nil {
			return nil, err
		}
		return &FuncType{Params: params, Ret: ret}, nil
	case ts.Prim != "":
		return &PrimType{Name: ts.Prim}, nil
	case ts.ADT != "":
		for _, c := range ld.ctors {
			if c.Belongs.Name == ts.ADT {
				return c.Belongs, nil
			}
		}
		return nil, fmt.Errorf("unknown adt %q", ts.ADT)
	default:
		return nil, fmt.Errorf("empty type spec")
	}
}

func (ld *loader) buildExprs(specs []*exprSpec) ([]Expr, error) {
	out := make([]Expr, len(specs))
	for i, es := range specs {
		e, err := ld.buildExpr(es)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (ld *loader) buildExpr(es *exprSpec) (Expr, error) {
	if es == nil {
		return nil, fmt.Errorf("missing expression")
	}
	switch {
	case es.Var != "":
		v, ok := ld.vars[es.Var]
		if !ok {
			return nil, fmt.Errorf("unbound variable %q", es.Var)
		}
		return v, nil

	case es.Global != "":
		fn, ok := ld.mod.Functions[es.Global]
		if !ok {
			return nil, fmt.Errorf("unknown global %q", es.Global)
		}
		if fn.Checked() == nil {
			return nil, fmt.Errorf("global %q referenced before its signature is known; declare ret: on it", es.Global)
		}
		g := &GlobalVar{Name: es.Global}
		g.SetChecked(fn.Checked())
		return g, nil

	case es.Lit != nil:
		l := &Literal{Value: es.Lit.Value}
		if es.Lit.Type != nil {
			ty, err := ld.buildType(es.Lit.Type)
			if err != nil {
				return nil, err
			}
			l.SetChecked(ty)
		} else {
			l.SetChecked(Int64Type)
		}
		return l, nil

	case es.Call != nil:
		return ld.buildCall(es.Call)

	case es.Ctor != nil:
		ctor, ok := ld.ctors[es.Ctor.Name]
		if !ok {
			return nil, fmt.Errorf("unknown constructor %q", es.Ctor.Name)
		}
		args, err := ld.buildExprs(es.Ctor.Args)
		if err != nil {
			return nil, err
		}
		ft := ctor.Checked().(*FuncType)
		if len(args) != len(ft.Params) {
			return nil, fmt.Errorf("constructor %q expects %d args, got %d", ctor.Name, len(ft.Params), len(args))
		}
		call := &Call{Op: ctor, Args: args}
		call.SetChecked(ft.Ret)
		return call, nil

	case es.OnDevice != nil:
		body, err := ld.buildExpr(es.OnDevice.Expr)
		if err != nil {
			return nil, err
		}
		call := &Call{
			Op:    OpOnDevice,
			Args:  []Expr{body},
			Attrs: OnDeviceAttrs{Scope: es.OnDevice.Scope.toScope(), Fixed: es.OnDevice.Fixed},
		}
		call.SetChecked(body.Checked())
		return call, nil

	case es.DeviceCopy != nil:
		body, err := ld.buildExpr(es.DeviceCopy.Expr)
		if err != nil {
			return nil, err
		}
		call := &Call{
			Op:   OpDeviceCopy,
			Args: []Expr{body},
			Attrs: DeviceCopyAttrs{
				Src: es.DeviceCopy.Src.toScope(),
				Dst: es.DeviceCopy.Dst.toScope(),
			},
		}
		call.SetChecked(body.Checked())
		return call, nil

	case es.AllocStorage != nil:
		size, err := ld.buildExpr(es.AllocStorage.Size)
		if err != nil {
			return nil, err
		}
		alignment, err := ld.buildExpr(es.AllocStorage.Alignment)
		if err != nil {
			return nil, err
		}
		call := &Call{
			Op:    OpAllocStorage,
			Args:  []Expr{size, alignment},
			Attrs: AllocStorageAttrs{Scope: es.AllocStorage.Scope.toScope()},
		}
		call.SetChecked(StorageType)
		return call, nil

	case es.AllocTensor != nil:
		storage, err := ld.buildExpr(es.AllocTensor.Storage)
		if err != nil {
			return nil, err
		}
		offset, err := ld.buildExpr(es.AllocTensor.Offset)
		if err != nil {
			return nil, err
		}
		shp, err := ld.buildExpr(es.AllocTensor.Shape)
		if err != nil {
			return nil, err
		}
		ty, err := ld.buildType(es.AllocTensor.Type)
		if err != nil {
			return nil, err
		}
		call := &Call{Op: OpAllocTensor, Args: []Expr{storage, offset, shp}}
		call.SetChecked(ty)
		return call, nil

	case es.ShapeOf != nil:
		arg, err := ld.buildExpr(es.ShapeOf)
		if err != nil {
			return nil, err
		}
		call := &Call{Op: OpShapeOf, Args: []Expr{arg}}
		call.SetChecked(ShapeType)
		return call, nil

	case es.InvokeKernel != nil:
		kernel, err := ld.buildExpr(es.InvokeKernel.Kernel)
		if err != nil {
			return nil, err
		}
		inputs, err := ld.buildExpr(es.InvokeKernel.Inputs)
		if err != nil {
			return nil, err
		}
		outputs, err := ld.buildExpr(es.InvokeKernel.Outputs)
		if err != nil {
			return nil, err
		}
		call := &Call{Op: OpInvokeKernel, Args: []Expr{kernel, inputs, outputs}}
		call.SetChecked(outputs.Checked())
		return call, nil

	case es.Reshape != nil:
		data, err := ld.buildExpr(es.Reshape.Data)
		if err != nil {
			return nil, err
		}
		shp, err := ld.buildExpr(es.Reshape.Shape)
		if err != nil {
			return nil, err
		}
		call := &Call{Op: OpReshapeTensor, Args: []Expr{data, shp}}
		if es.Reshape.Type != nil {
			ty, err := ld.buildType(es.Reshape.Type)
			if err != nil {
				return nil, err
			}
			call.SetChecked(ty)
		} else {
			call.SetChecked(data.Checked())
		}
		return call, nil

	case es.Let != nil:
		value, err := ld.buildExpr(es.Let.Value)
		if err != nil {
			return nil, err
		}
		v := &Var{Name: es.Let.Var}
		v.SetChecked(value.Checked())
		prev, shadowed := ld.vars[es.Let.Var]
		ld.vars[es.Let.Var] = v
		body, err := ld.buildExpr(es.Let.Body)
		if shadowed {
			ld.vars[es.Let.Var] = prev
		} else {
			delete(ld.vars, es.Let.Var)
		}
		if err != nil {
			return nil, err
		}
		let := &Let{Var: v, Value: value, Body: body}
		let.SetChecked(body.Checked())
		return let, nil

	case es.Tuple != nil:
		fields, err := ld.buildExprs(es.Tuple)
		if err != nil {
			return nil, err
		}
		types := make([]Type, len(fields))
		for i, f := range fields {
			types[i] = f.Checked()
		}
		tup := &Tuple{Fields: fields}
		tup.SetChecked(&TupleType{Fields: types})
		return tup, nil

	case es.Get != nil:
		tup, err := ld.buildExpr(es.Get.Tuple)
		if err != nil {
			return nil, err
		}
		tt, ok := tup.Checked().(*TupleType)
		if !ok {
			return nil, fmt.Errorf("get on non-tuple type %s", tup.Checked())
		}
		if es.Get.Index < 0 || es.Get.Index >= len(tt.Fields) {
			return nil, fmt.Errorf("tuple index %d out of range", es.Get.Index)
		}
		get := &TupleGet{Tuple: tup, Index: es.Get.Index}
		get.SetChecked(tt.Fields[es.Get.Index])
		return get, nil

	default:
		return nil, fmt.Errorf("empty expression spec")
	}
}

func (ld *loader) buildCall(cs *callSpec) (Expr, error) {
	args, err := ld.buildExprs(cs.Args)
	if err != nil {
		return nil, err
	}

	call := &Call{Args: args}
	if cs.Lowered != "" {
		fn, ok := ld.mod.Functions[cs.Lowered]
		if !ok {
			return nil, fmt.Errorf("unknown lowered function %q", cs.Lowered)
		}
		opName := cs.Op
		if opName == "" {
			opName = "vm.call_lowered"
		}
		call.Op = RegisterOp(opName)
		call.Attrs = CallLoweredAttrs{Func: fn}
	} else {
		if cs.Op == "" {
			return nil, fmt.Errorf("call needs an op name")
		}
		if isSpecialOp(cs.Op) {
			return nil, fmt.Errorf("operator %q requires its dedicated expression form", cs.Op)
		}
		call.Op = RegisterOp(cs.Op)
	}

	switch {
	case cs.Type != nil:
		ty, err := ld.buildType(cs.Type)
		if err != nil {
			return nil, err
		}
		call.SetChecked(ty)
	case len(args) > 0:
		// Generic primitives are elementwise by default.
		call.SetChecked(args[0].Checked())
	default:
		return nil, fmt.Errorf("call to %q needs an explicit type", cs.Op)
	}
	return call, nil
}
