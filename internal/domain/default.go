package domain

import (
	"fmt"

	"github.com/funvibe/devplan/internal/scope"
)

// IsFullyConstrained reports whether every scope reachable from d's root is
// fully constrained.
func (s *Store) IsFullyConstrained(d *Domain) bool {
	d = s.Lookup(d)
	if !d.IsHigherOrder() {
		return d.scope.IsFullyConstrained()
	}
	for _, sub := range d.argsAndResult {
		if !s.IsFullyConstrained(sub) {
			return false
		}
	}
	return true
}

// SetDefault fills every still-unconstrained part of d's scopes from
// fallback. Constrained parts are untouched, so defaulting a fully
// constrained domain is a no-op.
func (s *Store) SetDefault(d *Domain, fallback scope.Scope) {
	if fallback.IsFullyUnconstrained() {
		panic("defaulting fallback must carry some constraint")
	}
	d = s.Lookup(d)
	if !d.IsHigherOrder() {
		defaulted := s.MakeFirstOrderDomain(s.cfg.CanonicalScope(scope.Default(d.scope, fallback)))
		if s.UnifyOrNull(d, defaulted) == nil {
			// Default never overrides a constrained field, so the join
			// cannot conflict.
			panic(fmt.Sprintf("defaulting %s with %s failed", rawString(d), fallback))
		}
		return
	}
	for _, sub := range d.argsAndResult {
		s.SetDefault(sub, fallback)
	}
}

// SetResultDefaultThenParams defaults a function-shaped domain in two steps:
// the result slot gets fallback first, then the whole domain (parameters
// included) is defaulted with the now-constrained result scope. An argument
// thereby defaults to wherever the result runs, not to the program-wide
// default. First-order domains default directly.
func (s *Store) SetResultDefaultThenParams(d *Domain, fallback scope.Scope) {
	if !s.Lookup(d).IsHigherOrder() {
		s.SetDefault(d, fallback)
		return
	}
	s.SetDefault(s.ResultDomain(d), fallback)
	s.SetDefault(d, s.ResultScope(d))
}

// ResultDomain follows result slots down to the terminal first-order domain:
// for a first-order domain d itself, for a function the (possibly again
// function-shaped) result's terminal domain.
func (s *Store) ResultDomain(d *Domain) *Domain {
	d = s.Lookup(d)
	for d.IsHigherOrder() {
		d = s.Lookup(d.FunctionResult())
	}
	return d
}

// ResultScope returns the scope of d's terminal result domain.
func (s *Store) ResultScope(d *Domain) scope.Scope {
	return s.ResultDomain(d).scope
}

// ScopeFor extracts the final placement from a fully-constrained
// first-order domain. It is the readback primitive the driving pass uses
// after defaulting.
func (s *Store) ScopeFor(d *Domain) scope.Scope {
	d = s.Lookup(d)
	if d.IsHigherOrder() {
		panic(fmt.Sprintf("placement readback needs a first-order domain, got %s", s.DomainString(d)))
	}
	if !d.scope.IsFullyConstrained() {
		panic(fmt.Sprintf("placement readback before defaulting: %s", s.DomainString(d)))
	}
	return d.scope
}
