package domain

import (
	"fmt"

	"github.com/funvibe/devplan/internal/ir"
)

// The assertion helpers escalate a placement conflict (the nil/false results
// of the low-level primitives) into an error naming both sides. A returned
// error means the program's annotations are provably incompatible and no
// amount of defaulting can repair them.

// UnifyExprExact requires lhs and rhs to have the same placement.
func (s *Store) UnifyExprExact(lhs, rhs ir.Expr) error {
	lhsDomain := s.DomainFor(lhs)
	rhsDomain := s.DomainFor(rhs)
	if s.UnifyOrNull(lhsDomain, rhsDomain) == nil {
		return fmt.Errorf(
			"incompatible placements: expression %s with scope %s and expression %s with scope %s",
			lhs, s.DomainString(lhsDomain), rhs, s.DomainString(rhsDomain))
	}
	return nil
}

// UnifyExprDomain requires expr's placement to match an expected domain.
func (s *Store) UnifyExprDomain(expr ir.Expr, expected *Domain) error {
	actual := s.DomainFor(expr)
	if s.UnifyOrNull(actual, expected) == nil {
		return fmt.Errorf(
			"incompatible placements for expression %s: actual scope %s, expected scope %s",
			expr, s.DomainString(actual), s.DomainString(expected))
	}
	return nil
}

// UnifyExprCollapsed is UnifyExprDomain for a first-order expression against
// an expected domain that may be higher-order (which is then collapsed).
func (s *Store) UnifyExprCollapsed(expr ir.Expr, expected *Domain) error {
	actual := s.DomainFor(expr)
	if !s.UnifyCollapsedOrFalse(actual, expected) {
		return fmt.Errorf(
			"incompatible placements for expression %s: actual scope %s, expected scope %s",
			expr, s.DomainString(actual), s.DomainString(expected))
	}
	return nil
}
