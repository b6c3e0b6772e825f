package domain

import (
	"testing"

	"github.com/funvibe/devplan/internal/ir"
	"github.com/funvibe/devplan/internal/scope"
)

func typedVar(t *testing.T, name string, ty ir.Type) *ir.Var {
	t.Helper()
	v := &ir.Var{Name: name}
	v.SetChecked(ty)
	return v
}

func hostLit(t *testing.T) *ir.Literal {
	t.Helper()
	l := &ir.Literal{Value: int64(0)}
	l.SetChecked(ir.Int64Type)
	return l
}

func onDeviceCall(t *testing.T, body ir.Expr, sc scope.Scope, fixed bool) *ir.Call {
	t.Helper()
	call := &ir.Call{
		Op:    ir.OpOnDevice,
		Args:  []ir.Expr{body},
		Attrs: ir.OnDeviceAttrs{Scope: sc, Fixed: fixed},
	}
	call.SetChecked(body.Checked())
	return call
}

func TestDomainForMemoized(t *testing.T) {
	s := NewStore(testConfig(t))
	x := typedVar(t, "x", tensorType)

	first := s.DomainFor(x)
	if first == nil || first.IsHigherOrder() {
		t.Fatalf("tensor-typed expression should get a first-order domain")
	}
	if s.DomainFor(x) != s.Lookup(first) {
		t.Errorf("repeated DomainFor should return the same entry's root")
	}

	// Later unifications move the memoized entry's root.
	if s.UnifyOrNull(first, s.MakeFirstOrderDomain(cuda0)) == nil {
		t.Fatalf("constraining should succeed")
	}
	if got := s.DomainFor(x).Scope(); got != cuda0 {
		t.Errorf("DomainFor after unification = %s, want %s", got, cuda0)
	}

	// Function-typed expressions get higher-order domains.
	f := typedVar(t, "f", &ir.FuncType{Params: []ir.Type{tensorType}, Ret: tensorType})
	if d := s.DomainFor(f); !d.IsHigherOrder() || d.FunctionArity() != 1 {
		t.Errorf("function-typed expression should get a matching higher-order domain")
	}
}

func TestCalleeOnDevice(t *testing.T) {
	s := NewStore(testConfig(t))
	body := typedVar(t, "x", tensorType)

	// fixed=true: fn(<s>):<s> with one shared node.
	fixed := onDeviceCall(t, body, scope.ForDevice(scope.DeviceCUDA), true)
	d := s.DomainForCallee(fixed)
	if d.FunctionArity() != 1 {
		t.Fatalf("on_device callee arity = %d", d.FunctionArity())
	}
	if s.Lookup(d.FunctionParam(0)) != s.Lookup(d.FunctionResult()) {
		t.Errorf("fixed on_device should share the annotated domain across arg and result")
	}
	// The annotation was canonicalized to a concrete scope.
	if got := s.Lookup(d.FunctionParam(0)).Scope(); got != cuda0 {
		t.Errorf("annotated scope = %s, want %s", got, cuda0)
	}

	// fixed=false: fn(<s>):?x? with a free result.
	body2 := typedVar(t, "y", tensorType)
	unfixed := onDeviceCall(t, body2, scope.ForDevice(scope.DeviceCUDA), false)
	d2 := s.DomainForCallee(unfixed)
	if s.Lookup(d2.FunctionParam(0)) == s.Lookup(d2.FunctionResult()) {
		t.Errorf("unfixed on_device should leave the result free")
	}
	if s.IsFullyConstrained(d2.FunctionResult()) {
		t.Errorf("unfixed on_device result should be unconstrained")
	}
}

func TestCalleeDeviceCopy(t *testing.T) {
	s := NewStore(testConfig(t))
	body := typedVar(t, "x", tensorType)
	call := &ir.Call{
		Op:   ir.OpDeviceCopy,
		Args: []ir.Expr{body},
		Attrs: ir.DeviceCopyAttrs{
			Src: scope.ForDevice(scope.DeviceCPU),
			Dst: scope.ForDevice(scope.DeviceCUDA),
		},
	}
	call.SetChecked(tensorType)

	d := s.DomainForCallee(call)
	if got := s.Lookup(d.FunctionParam(0)).Scope(); got != cpu0 {
		t.Errorf("src = %s, want %s", got, cpu0)
	}
	if got := s.Lookup(d.FunctionResult()).Scope(); got != cuda0 {
		t.Errorf("dst = %s, want %s", got, cuda0)
	}
}

func TestCalleeAllocStorage(t *testing.T) {
	s := NewStore(testConfig(t))
	call := &ir.Call{
		Op:    ir.OpAllocStorage,
		Args:  []ir.Expr{hostLit(t), hostLit(t)},
		Attrs: ir.AllocStorageAttrs{Scope: scope.ForDevice(scope.DeviceCUDA)},
	}
	call.SetChecked(ir.StorageType)

	d := s.DomainForCallee(call)
	if d.FunctionArity() != 2 {
		t.Fatalf("alloc_storage callee arity = %d", d.FunctionArity())
	}
	for i := 0; i < 2; i++ {
		if s.Lookup(d.FunctionParam(i)) != s.Lookup(s.HostDomain()) {
			t.Errorf("size/alignment arg %d should be host-placed", i)
		}
	}
	if got := s.Lookup(d.FunctionResult()).Scope(); got != cuda0 {
		t.Errorf("result = %s, want %s", got, cuda0)
	}
}

func TestCalleeAllocTensorSharesStorageAndResult(t *testing.T) {
	s := NewStore(testConfig(t))
	storage := typedVar(t, "sto", ir.StorageType)
	call := &ir.Call{
		Op:   ir.OpAllocTensor,
		Args: []ir.Expr{storage, hostLit(t), hostLit(t)},
	}
	call.SetChecked(tensorType)

	d := s.DomainForCallee(call)
	if d.FunctionArity() != 3 {
		t.Fatalf("alloc_tensor callee arity = %d", d.FunctionArity())
	}
	// Storage argument and result share one node before any annotation.
	if s.Lookup(d.FunctionParam(0)) != s.Lookup(d.FunctionResult()) {
		t.Errorf("storage and result should be reference-identical")
	}
	if s.Lookup(d.FunctionParam(1)) != s.Lookup(s.HostDomain()) ||
		s.Lookup(d.FunctionParam(2)) != s.Lookup(s.HostDomain()) {
		t.Errorf("offset/shape args should be host-placed")
	}

	// Constraining the storage side is visible through the result.
	if s.UnifyOrNull(d.FunctionParam(0), s.MakeFirstOrderDomain(cuda0)) == nil {
		t.Fatalf("constraining storage should succeed")
	}
	if got := s.ResultScope(d); got != cuda0 {
		t.Errorf("result scope = %s, want %s", got, cuda0)
	}
}

func TestCalleeShapeOf(t *testing.T) {
	s := NewStore(testConfig(t))
	arg := typedVar(t, "x", tensorType)
	call := &ir.Call{Op: ir.OpShapeOf, Args: []ir.Expr{arg}}
	call.SetChecked(ir.ShapeType)

	d := s.DomainForCallee(call)
	if s.IsFullyConstrained(d.FunctionParam(0)) {
		t.Errorf("shape_of argument should start free")
	}
	if s.Lookup(d.FunctionResult()) != s.Lookup(s.HostDomain()) {
		t.Errorf("shape_of result should be host-placed")
	}
}

func TestCalleeInvokeKernel(t *testing.T) {
	s := NewStore(testConfig(t))
	kernel := typedVar(t, "k", ir.KernelType)
	inputs := typedVar(t, "ins", &ir.TupleType{Fields: []ir.Type{tensorType}})
	outputs := typedVar(t, "outs", &ir.TupleType{Fields: []ir.Type{tensorType}})
	call := &ir.Call{Op: ir.OpInvokeKernel, Args: []ir.Expr{kernel, inputs, outputs}}
	call.SetChecked(outputs.Checked())

	d := s.DomainForCallee(call)
	if d.FunctionArity() != 3 {
		t.Fatalf("invoke_kernel callee arity = %d", d.FunctionArity())
	}
	// Inputs, outputs and result share one node; the kernel handle does not.
	if s.Lookup(d.FunctionParam(1)) != s.Lookup(d.FunctionResult()) ||
		s.Lookup(d.FunctionParam(2)) != s.Lookup(d.FunctionResult()) {
		t.Errorf("inputs/outputs/result should share one domain")
	}
	if s.Lookup(d.FunctionParam(0)) == s.Lookup(d.FunctionResult()) {
		t.Errorf("the kernel handle should have its own domain")
	}
}

func TestCalleeReshape(t *testing.T) {
	s := NewStore(testConfig(t))
	data := typedVar(t, "x", tensorType)
	shp := typedVar(t, "shape", ir.ShapeType)
	call := &ir.Call{Op: ir.OpReshapeTensor, Args: []ir.Expr{data, shp}}
	call.SetChecked(tensorType)

	d := s.DomainForCallee(call)
	if s.Lookup(d.FunctionParam(0)) != s.Lookup(d.FunctionResult()) {
		t.Errorf("data and result should share one domain")
	}
	if s.Lookup(d.FunctionParam(1)) != s.Lookup(s.HostDomain()) {
		t.Errorf("shape argument should be host-placed")
	}
}

func TestCalleeGenericPrimitive(t *testing.T) {
	s := NewStore(testConfig(t))
	add := ir.RegisterOp("add")
	x := typedVar(t, "x", tensorType)
	y := typedVar(t, "y", tensorType)
	z := typedVar(t, "z", tensorType)
	call := &ir.Call{Op: add, Args: []ir.Expr{x, y, z}}
	call.SetChecked(tensorType)

	d := s.DomainForCallee(call)
	if d.FunctionArity() != 3 {
		t.Fatalf("generic callee arity = %d", d.FunctionArity())
	}
	result := s.Lookup(d.FunctionResult())
	for i := 0; i < 3; i++ {
		if s.Lookup(d.FunctionParam(i)) != result {
			t.Errorf("operand %d should be co-located with the result", i)
		}
	}
	if result.IsHigherOrder() || s.IsFullyConstrained(result) {
		t.Errorf("shared operand domain should start first-order and free")
	}
}

func TestCalleeConstructorCollapses(t *testing.T) {
	s := NewStore(testConfig(t))
	adt := &ir.ADT{Name: "Pair"}
	ctor := &ir.Constructor{Name: "MkPair", Belongs: adt}
	fnParam := &ir.FuncType{Params: []ir.Type{tensorType}, Ret: tensorType}
	ctor.SetChecked(&ir.FuncType{Params: []ir.Type{tensorType, fnParam}, Ret: adt})
	adt.Constructors = []*ir.Constructor{ctor}

	x := typedVar(t, "x", tensorType)
	f := typedVar(t, "f", fnParam)
	call := &ir.Call{Op: ctor, Args: []ir.Expr{x, f}}
	call.SetChecked(adt)

	d := s.DomainForCallee(call)
	if d.FunctionArity() != 2 {
		t.Fatalf("constructor callee arity = %d", d.FunctionArity())
	}
	result := s.ResultDomain(d)
	// The first-order field is unified with the result; the function-shaped
	// field is collapsed onto it slot by slot.
	if s.Lookup(d.FunctionParam(0)) != result {
		t.Errorf("first-order field should share the result domain")
	}
	p1 := s.Lookup(d.FunctionParam(1))
	if !p1.IsHigherOrder() {
		t.Fatalf("function-shaped field should keep its shape")
	}
	if s.Lookup(p1.FunctionParam(0)) != result || s.Lookup(p1.FunctionResult()) != result {
		t.Errorf("collapsed field slots should all reach the result domain")
	}
}

func TestCalleeLoweredCallDelegates(t *testing.T) {
	s := NewStore(testConfig(t))
	fn := &ir.Func{Name: "kernel_main"}
	fn.SetChecked(&ir.FuncType{Params: []ir.Type{tensorType}, Ret: tensorType})
	x := typedVar(t, "x", tensorType)
	call := &ir.Call{
		Op:    ir.RegisterOp("vm.call_lowered"),
		Args:  []ir.Expr{x},
		Attrs: ir.CallLoweredAttrs{Func: fn},
	}
	call.SetChecked(tensorType)

	if s.DomainForCallee(call) != s.Lookup(s.DomainFor(fn)) {
		t.Errorf("lowered call should delegate to the function's own domain")
	}
}

func TestCalleeFallthroughDelegates(t *testing.T) {
	s := NewStore(testConfig(t))
	f := typedVar(t, "f", &ir.FuncType{Params: []ir.Type{tensorType}, Ret: tensorType})
	x := typedVar(t, "x", tensorType)
	call := &ir.Call{Op: f, Args: []ir.Expr{x}}
	call.SetChecked(tensorType)

	if s.DomainForCallee(call) != s.Lookup(s.DomainFor(f)) {
		t.Errorf("higher-order callee should delegate to the operator expression")
	}
}

func TestCalleeMemoized(t *testing.T) {
	s := NewStore(testConfig(t))
	body := typedVar(t, "x", tensorType)
	call := onDeviceCall(t, body, scope.ForDevice(scope.DeviceCUDA), true)

	first := s.DomainForCallee(call)
	if s.DomainForCallee(call) != s.Lookup(first) {
		t.Errorf("repeated DomainForCallee should return the same entry's root")
	}
}
