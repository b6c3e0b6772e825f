package ir

import (
	"github.com/funvibe/devplan/internal/scope"
)

// Built-in primitive operators with placement-relevant semantics. Their
// identities are fixed package-wide so recognizers can compare by pointer.
var (
	// OpOnDevice wraps an expression with a placement annotation.
	// on_device(body, scope=<s>, fixed=<b>)
	OpOnDevice = &Op{Name: "on_device"}

	// OpDeviceCopy copies a tensor between placements.
	// device_copy(body, src=<s>, dst=<d>)
	OpDeviceCopy = &Op{Name: "device_copy"}

	// OpAllocStorage allocates a backing buffer on a given scope.
	// alloc_storage(size, alignment, scope=<s>)
	OpAllocStorage = &Op{Name: "memory.alloc_storage"}

	// OpAllocTensor carves a tensor out of previously allocated storage.
	// alloc_tensor(storage, offset, shape)
	OpAllocTensor = &Op{Name: "memory.alloc_tensor"}

	// OpShapeOf reads the shape of a tensor; shapes always live on the host.
	// shape_of(tensor)
	OpShapeOf = &Op{Name: "vm.shape_of"}

	// OpInvokeKernel invokes a compiled kernel over input/output tuples.
	// invoke_kernel(kernel, inputs, outputs)
	OpInvokeKernel = &Op{Name: "vm.invoke_kernel"}

	// OpReshapeTensor reinterprets a tensor with a new (host-resident) shape.
	// reshape_tensor(data, shape)
	OpReshapeTensor = &Op{Name: "vm.reshape_tensor"}
)

var opRegistry = map[string]*Op{
	OpOnDevice.Name:      OpOnDevice,
	OpDeviceCopy.Name:    OpDeviceCopy,
	OpAllocStorage.Name:  OpAllocStorage,
	OpAllocTensor.Name:   OpAllocTensor,
	OpShapeOf.Name:       OpShapeOf,
	OpInvokeKernel.Name:  OpInvokeKernel,
	OpReshapeTensor.Name: OpReshapeTensor,
}

// isSpecialOp reports whether name belongs to one of the built-in operators
// with dedicated placement rules.
func isSpecialOp(name string) bool {
	switch name {
	case OpOnDevice.Name, OpDeviceCopy.Name, OpAllocStorage.Name,
		OpAllocTensor.Name, OpShapeOf.Name, OpInvokeKernel.Name, OpReshapeTensor.Name:
		return true
	}
	return false
}

// RegisterOp returns the singleton operator with the given name, creating it
// on first use. Generic primitives (add, multiply, ...) are registered here.
func RegisterOp(name string) *Op {
	if op, ok := opRegistry[name]; ok {
		return op
	}
	op := &Op{Name: name}
	opRegistry[name] = op
	return op
}

// GetOp returns the registered operator with the given name, if any.
func GetOp(name string) (*Op, bool) {
	op, ok := opRegistry[name]
	return op, ok
}

// OnDeviceAttrs are the attributes of an OpOnDevice call.
type OnDeviceAttrs struct {
	Scope scope.Scope
	// Fixed pins the annotated expression's context to Scope as well: the
	// result of the wrapper is placed exactly like its body.
	Fixed bool
}

// DeviceCopyAttrs are the attributes of an OpDeviceCopy call.
type DeviceCopyAttrs struct {
	Src scope.Scope
	Dst scope.Scope
}

// AllocStorageAttrs are the attributes of an OpAllocStorage call.
type AllocStorageAttrs struct {
	Scope scope.Scope
}

// CallLoweredAttrs mark a call whose target has already been lowered to a
// compiled function.
type CallLoweredAttrs struct {
	Func *Func
}

// OnDeviceProps unpacks an on_device call. ok is false when the call is not
// an on_device wrapper.
func OnDeviceProps(call *Call) (body Expr, attrs OnDeviceAttrs, ok bool) {
	if call.Op != Expr(OpOnDevice) || len(call.Args) != 1 {
		return nil, OnDeviceAttrs{}, false
	}
	a, ok := call.Attrs.(OnDeviceAttrs)
	if !ok {
		return nil, OnDeviceAttrs{}, false
	}
	return call.Args[0], a, true
}

// DeviceCopyProps unpacks a device_copy call.
func DeviceCopyProps(call *Call) (body Expr, attrs DeviceCopyAttrs, ok bool) {
	if call.Op != Expr(OpDeviceCopy) || len(call.Args) != 1 {
		return nil, DeviceCopyAttrs{}, false
	}
	a, ok := call.Attrs.(DeviceCopyAttrs)
	if !ok {
		return nil, DeviceCopyAttrs{}, false
	}
	return call.Args[0], a, true
}

// LoweredFunc returns the compiled target of an already-lowered call, or nil.
func LoweredFunc(call *Call) *Func {
	if a, ok := call.Attrs.(CallLoweredAttrs); ok {
		return a.Func
	}
	return nil
}
