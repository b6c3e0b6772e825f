// Package scope defines the placement value tracked by the device planner:
// which device a piece of data lives on and in which memory scope.
//
// A Scope may be fully unconstrained (nothing known yet), partially
// constrained (e.g. device kind known but not the concrete device), or fully
// constrained (device kind, virtual device id and memory scope all known).
// Scopes are immutable values and are safe to use as map keys.
package scope

import (
	"fmt"
	"strings"
)

// DeviceKind identifies a class of execution device.
type DeviceKind string

const (
	// DeviceUnknown is the unconstrained device kind.
	DeviceUnknown DeviceKind = ""

	DeviceCPU    DeviceKind = "cpu"
	DeviceCUDA   DeviceKind = "cuda"
	DeviceMetal  DeviceKind = "metal"
	DeviceVulkan DeviceKind = "vulkan"
)

// MemScope identifies a memory scope on a device. Empty means unconstrained.
type MemScope string

const (
	MemUnknown MemScope = ""

	MemGlobal  MemScope = "global"
	MemShared  MemScope = "shared"
	MemTexture MemScope = "texture"
)

// UnconstrainedID is the VirtualID value meaning "no particular device yet".
const UnconstrainedID = -1

// Scope is a placement value: a device kind, a virtual device id within that
// kind, and a memory scope. Any field may individually be unconstrained.
type Scope struct {
	Device    DeviceKind
	VirtualID int
	Mem       MemScope
}

// FullyUnconstrained returns the scope carrying no placement information.
func FullyUnconstrained() Scope {
	return Scope{Device: DeviceUnknown, VirtualID: UnconstrainedID, Mem: MemUnknown}
}

// ForDevice returns a scope constrained only in its device kind.
func ForDevice(kind DeviceKind) Scope {
	return Scope{Device: kind, VirtualID: UnconstrainedID, Mem: MemUnknown}
}

// New returns a scope with all three fields as given.
func New(kind DeviceKind, virtualID int, mem MemScope) Scope {
	return Scope{Device: kind, VirtualID: virtualID, Mem: mem}
}

// IsFullyUnconstrained reports whether no field carries any information.
func (s Scope) IsFullyUnconstrained() bool {
	return s.Device == DeviceUnknown && s.VirtualID == UnconstrainedID && s.Mem == MemUnknown
}

// IsFullyConstrained reports whether every field is known.
func (s Scope) IsFullyConstrained() bool {
	return s.Device != DeviceUnknown && s.VirtualID != UnconstrainedID && s.Mem != MemUnknown
}

// Join combines the information of a and b fieldwise. An unconstrained field
// yields to the other side; two constrained fields must agree. The second
// result is false when any field conflicts.
func Join(a, b Scope) (Scope, bool) {
	device, ok := joinDevice(a.Device, b.Device)
	if !ok {
		return Scope{}, false
	}
	id, ok := joinID(a.VirtualID, b.VirtualID)
	if !ok {
		return Scope{}, false
	}
	mem, ok := joinMem(a.Mem, b.Mem)
	if !ok {
		return Scope{}, false
	}
	return Scope{Device: device, VirtualID: id, Mem: mem}, true
}

// Default fills every unconstrained field of actual from fallback. Fields
// already constrained in actual are never overridden, so Default is a no-op
// on a fully constrained scope.
func Default(actual, fallback Scope) Scope {
	out := actual
	if out.Device == DeviceUnknown {
		out.Device = fallback.Device
	}
	if out.VirtualID == UnconstrainedID {
		out.VirtualID = fallback.VirtualID
	}
	if out.Mem == MemUnknown {
		out.Mem = fallback.Mem
	}
	return out
}

func joinDevice(a, b DeviceKind) (DeviceKind, bool) {
	if a == DeviceUnknown {
		return b, true
	}
	if b == DeviceUnknown || a == b {
		return a, true
	}
	return DeviceUnknown, false
}

func joinID(a, b int) (int, bool) {
	if a == UnconstrainedID {
		return b, true
	}
	if b == UnconstrainedID || a == b {
		return a, true
	}
	return UnconstrainedID, false
}

func joinMem(a, b MemScope) (MemScope, bool) {
	if a == MemUnknown {
		return b, true
	}
	if b == MemUnknown || a == b {
		return a, true
	}
	return MemUnknown, false
}

func (s Scope) String() string {
	if s.IsFullyUnconstrained() {
		return "?"
	}
	var sb strings.Builder
	sb.WriteString("(")
	if s.Device == DeviceUnknown {
		sb.WriteString("?")
	} else {
		sb.WriteString(string(s.Device))
	}
	sb.WriteString(", ")
	if s.VirtualID == UnconstrainedID {
		sb.WriteString("?")
	} else {
		fmt.Fprintf(&sb, "%d", s.VirtualID)
	}
	sb.WriteString(", ")
	if s.Mem == MemUnknown {
		sb.WriteString("?")
	} else {
		sb.WriteString(string(s.Mem))
	}
	sb.WriteString(")")
	return sb.String()
}
