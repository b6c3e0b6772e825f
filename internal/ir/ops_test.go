package ir

import (
	"testing"

	"github.com/funvibe/devplan/internal/scope"
)

func TestRegisterOpSingleton(t *testing.T) {
	if RegisterOp("add") != RegisterOp("add") {
		t.Errorf("RegisterOp should return one singleton per name")
	}
	if RegisterOp("on_device") != OpOnDevice {
		t.Errorf("built-in names should resolve to the built-in identities")
	}
	if op, ok := GetOp("add"); !ok || op != RegisterOp("add") {
		t.Errorf("GetOp should find registered operators")
	}
	if _, ok := GetOp("never_registered"); ok {
		t.Errorf("GetOp should miss unknown operators")
	}
}

func TestOnDeviceProps(t *testing.T) {
	body := &Var{Name: "x"}
	body.SetChecked(&TensorType{Shape: []int64{2}, DType: "float32"})
	attrs := OnDeviceAttrs{Scope: scope.ForDevice(scope.DeviceCUDA), Fixed: true}
	call := &Call{Op: OpOnDevice, Args: []Expr{body}, Attrs: attrs}

	gotBody, gotAttrs, ok := OnDeviceProps(call)
	if !ok || gotBody != Expr(body) || gotAttrs != attrs {
		t.Errorf("OnDeviceProps failed to unpack the call")
	}

	// Other calls are not on_device wrappers.
	other := &Call{Op: RegisterOp("add"), Args: []Expr{body}}
	if _, _, ok := OnDeviceProps(other); ok {
		t.Errorf("OnDeviceProps should reject non-wrapper calls")
	}
}

func TestDeviceCopyProps(t *testing.T) {
	body := &Var{Name: "x"}
	attrs := DeviceCopyAttrs{Src: scope.ForDevice(scope.DeviceCPU), Dst: scope.ForDevice(scope.DeviceCUDA)}
	call := &Call{Op: OpDeviceCopy, Args: []Expr{body}, Attrs: attrs}

	_, gotAttrs, ok := DeviceCopyProps(call)
	if !ok || gotAttrs != attrs {
		t.Errorf("DeviceCopyProps failed to unpack the call")
	}
}

func TestLoweredFunc(t *testing.T) {
	fn := &Func{Name: "helper"}
	call := &Call{Op: RegisterOp("vm.call_lowered"), Attrs: CallLoweredAttrs{Func: fn}}
	if LoweredFunc(call) != fn {
		t.Errorf("LoweredFunc should return the lowered target")
	}
	if LoweredFunc(&Call{Op: RegisterOp("add")}) != nil {
		t.Errorf("LoweredFunc should be nil for ordinary calls")
	}
}
