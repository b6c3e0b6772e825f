// Package domain implements the unification engine behind device planning.
//
// A Domain captures what is known about the placement of one expression.
// First-order domains wrap a single scope; higher-order domains describe the
// placement signature of a function (one sub-domain per parameter plus one
// for the result). Domains have reference identity and are merged into
// equivalence classes by a union-find forest owned by the Store; only the
// root of a class carries authoritative placement information.
package domain

import (
	"fmt"
	"strings"

	"github.com/funvibe/devplan/internal/scope"
)

// Domain is one node of placement information. A domain's shape (first-order
// vs higher-order, and the arity if higher-order) is fixed at construction
// and never changes under unification.
type Domain struct {
	// id is a stable per-node identifier used only for diagnostics.
	id uint64

	// scope holds the placement of a first-order domain. Meaningless when
	// argsAndResult is non-nil.
	scope scope.Scope

	// argsAndResult holds the N parameter domains followed by the result
	// domain of a higher-order (function-shaped) domain. nil for
	// first-order domains.
	argsAndResult []*Domain
}

// IsHigherOrder reports whether d is function-shaped.
func (d *Domain) IsHigherOrder() bool { return len(d.argsAndResult) > 0 }

// FunctionArity returns the number of parameter slots of a higher-order
// domain.
func (d *Domain) FunctionArity() int { return len(d.argsAndResult) - 1 }

// FunctionParam returns the i-th parameter slot of a higher-order domain.
func (d *Domain) FunctionParam(i int) *Domain { return d.argsAndResult[i] }

// FunctionResult returns the result slot of a higher-order domain.
func (d *Domain) FunctionResult() *Domain { return d.argsAndResult[len(d.argsAndResult)-1] }

// Scope returns the scope of a first-order domain. Callers must root the
// domain through Store.Lookup first for an authoritative answer.
func (d *Domain) Scope() scope.Scope {
	if d.IsHigherOrder() {
		panic(fmt.Sprintf("placement domain %s is higher-order and has no single scope", rawString(d)))
	}
	return d.scope
}

// rawString renders a domain without consulting the equivalence forest.
// Unconstrained first-order domains render as a unique ?id? placeholder.
func rawString(d *Domain) string {
	if !d.IsHigherOrder() {
		var sb strings.Builder
		if !d.scope.IsFullyConstrained() {
			fmt.Fprintf(&sb, "?%d?", d.id)
		}
		if !d.scope.IsFullyUnconstrained() {
			sb.WriteString(d.scope.String())
		}
		return sb.String()
	}
	var sb strings.Builder
	sb.WriteString("fn(")
	for i := 0; i < d.FunctionArity(); i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(rawString(d.FunctionParam(i)))
	}
	sb.WriteString("):")
	sb.WriteString(rawString(d.FunctionResult()))
	return sb.String()
}
