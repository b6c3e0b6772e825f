package domain

import (
	"fmt"

	"github.com/funvibe/devplan/internal/ir"
	"github.com/funvibe/devplan/internal/scope"
)

// DomainFor returns the domain describing where expr itself is placed.
// The first access builds a free domain matching expr's static type;
// later accesses return the current equivalence root of that same entry,
// so constraints accumulated in between are visible.
func (s *Store) DomainFor(expr ir.Expr) *Domain {
	if expr == nil {
		panic("DomainFor on nil expression")
	}
	if d, ok := s.exprDomains[expr]; ok {
		return s.Lookup(d)
	}
	d := s.Free(expr.Checked())
	s.exprDomains[expr] = d
	s.exprOrder = append(s.exprOrder, expr)
	return d
}

// DomainForCallee returns the higher-order domain the callee of call must
// satisfy. The built-in memory/runtime primitives each impose a fixed
// placement signature; anything else takes its signature from the callee
// expression itself. Results are memoized per call site.
func (s *Store) DomainForCallee(call *ir.Call) *Domain {
	if d, ok := s.callDomains[call]; ok {
		return s.Lookup(d)
	}

	var argsAndResult []*Domain

	if body, attrs, ok := ir.OnDeviceProps(call); ok {
		// on_device(body, scope=<s>, fixed=false): fn(<s>):?x?
		// on_device(body, scope=<s>, fixed=true):  fn(<s>):<s>
		annotated := s.ForScope(body.Checked(), attrs.Scope)
		argsAndResult = append(argsAndResult, annotated)
		if attrs.Fixed {
			argsAndResult = append(argsAndResult, annotated)
		} else {
			argsAndResult = append(argsAndResult, s.Free(body.Checked()))
		}
	} else if body, attrs, ok := ir.DeviceCopyProps(call); ok {
		// device_copy(body, src=<s>, dst=<d>): fn(<s>):<d>
		argsAndResult = append(argsAndResult, s.ForScope(body.Checked(), attrs.Src))
		argsAndResult = append(argsAndResult, s.ForScope(body.Checked(), attrs.Dst))
	} else if call.Op == ir.Expr(ir.OpAllocStorage) {
		// alloc_storage(size, alignment, scope=<s>): fn(<host>, <host>):<s>
		s.checkArity(call, 2)
		attrs := call.Attrs.(ir.AllocStorageAttrs)
		argsAndResult = append(argsAndResult, s.hostDomain)
		argsAndResult = append(argsAndResult, s.hostDomain)
		argsAndResult = append(argsAndResult, s.ForScope(call.Checked(), attrs.Scope))
	} else if call.Op == ir.Expr(ir.OpAllocTensor) {
		// alloc_tensor(storage, offset, shape): fn(?x?, <host>, <host>):?x?
		// where storage and result share one free domain.
		s.checkArity(call, 3)
		free := s.Free(call.Checked())
		argsAndResult = append(argsAndResult, free)
		argsAndResult = append(argsAndResult, s.hostDomain)
		argsAndResult = append(argsAndResult, s.hostDomain)
		argsAndResult = append(argsAndResult, free)
	} else if call.Op == ir.Expr(ir.OpShapeOf) {
		// shape_of(tensor): fn(?x?):<host>
		s.checkArity(call, 1)
		argsAndResult = append(argsAndResult, s.Free(call.Args[0].Checked()))
		argsAndResult = append(argsAndResult, s.hostDomain)
	} else if call.Op == ir.Expr(ir.OpInvokeKernel) {
		// invoke_kernel(kernel, inputs, outputs): fn(?k?, ?x?, ?x?):?x?
		// where inputs, outputs and result share one free domain.
		s.checkArity(call, 3)
		free := s.Free(call.Checked())
		argsAndResult = append(argsAndResult, s.Free(call.Args[0].Checked()))
		argsAndResult = append(argsAndResult, free)
		argsAndResult = append(argsAndResult, free)
		argsAndResult = append(argsAndResult, free)
	} else if call.Op == ir.Expr(ir.OpReshapeTensor) {
		// reshape_tensor(data, shape): fn(?x?, <host>):?x?
		s.checkArity(call, 2)
		free := s.Free(call.Checked())
		argsAndResult = append(argsAndResult, free)
		argsAndResult = append(argsAndResult, s.hostDomain)
		argsAndResult = append(argsAndResult, free)
	} else if lowered := ir.LoweredFunc(call); lowered != nil {
		return s.DomainFor(lowered)
	} else if _, ok := call.Op.(*ir.Op); ok {
		// Generic primitive: fn(?x?, ..., ?x?):?x? with one shared
		// unconstrained domain; all operands are first-order and
		// co-located.
		free := s.MakeFirstOrderDomain(scope.FullyUnconstrained())
		for range call.Args {
			argsAndResult = append(argsAndResult, free)
		}
		argsAndResult = append(argsAndResult, free)
	} else if ctor, ok := call.Op.(*ir.Constructor); ok {
		// Data constructor: fn(?x1?, ..., ?xn?):?xr? where each possibly
		// higher-order parameter is collapsed onto the first-order result,
		// since a constructed value and all its fields live together.
		ft, ok := ctor.Checked().(*ir.FuncType)
		if !ok {
			panic(fmt.Sprintf("constructor %s has non-function type %s", ctor, ctor.Checked()))
		}
		if len(ft.Params) != len(call.Args) {
			panic(fmt.Sprintf("constructor %s expects %d args, call has %d", ctor, len(ft.Params), len(call.Args)))
		}
		result := s.Free(ft.Ret) // first-order
		for _, paramType := range ft.Params {
			param := s.Free(paramType) // possibly higher-order
			if !s.UnifyCollapsedOrFalse(result, param) {
				panic(fmt.Sprintf("constructor %s: cannot collapse parameter %s onto result %s",
					ctor, s.DomainString(param), s.DomainString(result)))
			}
			argsAndResult = append(argsAndResult, param)
		}
		argsAndResult = append(argsAndResult, result)
	} else {
		// The callee is an ordinary expression (a variable bound to a
		// function, a global, a not-yet-lowered call target): its own
		// domain is the signature.
		return s.DomainFor(call.Op)
	}

	d := s.newHigherOrderDomain(argsAndResult)
	s.callDomains[call] = d
	s.callOrder = append(s.callOrder, call)
	return d
}

func (s *Store) checkArity(call *ir.Call, want int) {
	if len(call.Args) != want {
		panic(fmt.Sprintf("%s expects %d args, call has %d", call.Op, want, len(call.Args)))
	}
}

// ForEachExprDomain visits every memoized expression domain in first-access
// order. The domain passed to f is the current equivalence root.
func (s *Store) ForEachExprDomain(f func(ir.Expr, *Domain)) {
	for _, e := range s.exprOrder {
		f(e, s.Lookup(s.exprDomains[e]))
	}
}
