package domain

import (
	"fmt"
	"strings"

	"github.com/funvibe/devplan/internal/config"
	"github.com/funvibe/devplan/internal/ir"
	"github.com/funvibe/devplan/internal/scope"
)

// Store owns every placement domain created during one planning run: the
// interning table for fully-constrained first-order domains, the union-find
// equivalence forest, and the memoized expression and callee domains.
//
// A Store is used for exactly one run over one module and is not safe for
// concurrent use. The forest only grows; nothing is ever rolled back. When a
// unification of higher-order domains fails partway through its slots, the
// slot unions already applied remain in effect; callers abort on failure and
// never read the partial state back.
type Store struct {
	cfg    *config.Config
	nextID uint64

	// hostDomain is the shared domain for host-resident data (shapes,
	// sizes, alignments).
	hostDomain *Domain

	// constrained interns first-order domains by fully-constrained scope,
	// so equal concrete placements share one node.
	constrained map[scope.Scope]*Domain

	// equiv is the union-find forest: a domain maps to the next domain on
	// the path toward its equivalence root. Roots have no entry.
	equiv map[*Domain]*Domain

	exprDomains map[ir.Expr]*Domain
	exprOrder   []ir.Expr

	callDomains map[*ir.Call]*Domain
	callOrder   []*ir.Call
}

// NewStore returns an empty store for one planning run.
func NewStore(cfg *config.Config) *Store {
	s := &Store{
		cfg:         cfg,
		constrained: make(map[scope.Scope]*Domain),
		equiv:       make(map[*Domain]*Domain),
		exprDomains: make(map[ir.Expr]*Domain),
		callDomains: make(map[*ir.Call]*Domain),
	}
	s.hostDomain = s.MakeFirstOrderDomain(cfg.HostScope)
	return s
}

// Config returns the compilation configuration the store was built with.
func (s *Store) Config() *config.Config { return s.cfg }

// HostDomain returns the shared domain for host-resident data.
func (s *Store) HostDomain() *Domain { return s.hostDomain }

func (s *Store) newDomain(sc scope.Scope) *Domain {
	s.nextID++
	return &Domain{id: s.nextID, scope: sc}
}

func (s *Store) newHigherOrderDomain(argsAndResult []*Domain) *Domain {
	s.nextID++
	return &Domain{id: s.nextID, argsAndResult: argsAndResult}
}

// MakeFirstOrderDomain returns a first-order domain for sc. Fully
// constrained scopes are interned so equal concrete placements always share
// identity; anything less constrained gets a fresh node, since each
// occurrence may unify differently.
func (s *Store) MakeFirstOrderDomain(sc scope.Scope) *Domain {
	if sc.IsFullyConstrained() {
		if d, ok := s.constrained[sc]; ok {
			return d
		}
		d := s.newDomain(sc)
		s.constrained[sc] = d
		return d
	}
	return s.newDomain(sc)
}

// MakeDomain builds the domain demanded by a static type. Function types
// become higher-order domains whose parameters start fully unconstrained
// (the function's own target scope says nothing about where its arguments
// live) and whose result carries sc. Everything else is first-order at sc.
func (s *Store) MakeDomain(ty ir.Type, sc scope.Scope) *Domain {
	if ft, ok := ty.(*ir.FuncType); ok {
		argsAndResult := make([]*Domain, 0, len(ft.Params)+1)
		for _, p := range ft.Params {
			argsAndResult = append(argsAndResult, s.MakeDomain(p, scope.FullyUnconstrained()))
		}
		argsAndResult = append(argsAndResult, s.MakeDomain(ft.Ret, sc))
		return s.newHigherOrderDomain(argsAndResult)
	}
	return s.MakeFirstOrderDomain(sc)
}

// ForScope builds the domain for an explicitly annotated placement.
// The scope is canonicalized first since annotations arrive raw.
func (s *Store) ForScope(ty ir.Type, nonCanonical scope.Scope) *Domain {
	sc := s.cfg.CanonicalScope(nonCanonical)
	if sc.IsFullyUnconstrained() {
		panic("annotated placement must carry some constraint")
	}
	return s.MakeDomain(ty, sc)
}

// Free builds a domain whose shape matches ty but which carries no
// placement information yet.
func (s *Store) Free(ty ir.Type) *Domain {
	return s.MakeDomain(ty, scope.FullyUnconstrained())
}

// Lookup returns the equivalence root of d, compressing every link on the
// visited path to point directly at the root.
func (s *Store) Lookup(d *Domain) *Domain {
	root := d
	for {
		next, ok := s.equiv[root]
		if !ok {
			break
		}
		root = next
	}
	// Path compression.
	for d != root {
		next := s.equiv[d]
		s.equiv[d] = root
		d = next
	}
	return root
}

// JoinOrNull joins two equivalence roots. For first-order domains an
// unconstrained side yields outright and constrained scopes are joined
// fieldwise; nil means the two placements conflict. For higher-order
// domains every slot pair is unified in order; the first failing slot fails
// the join, though slot unions already applied stay in the forest.
//
// Joining domains of different shapes is a contract violation upstream
// (the construction rules disagree with the program's types) and panics.
func (s *Store) JoinOrNull(lhs, rhs *Domain) *Domain {
	if lhs == rhs {
		return lhs
	}
	if len(lhs.argsAndResult) != len(rhs.argsAndResult) {
		panic(fmt.Sprintf(
			"placement domains %s and %s do not have the same shape and can't be unified",
			rawString(lhs), rawString(rhs)))
	}
	if !lhs.IsHigherOrder() {
		if rhs.scope.IsFullyUnconstrained() {
			return lhs
		}
		if lhs.scope.IsFullyUnconstrained() {
			return rhs
		}
		joined, ok := scope.Join(lhs.scope, rhs.scope)
		if !ok {
			return nil
		}
		return s.MakeFirstOrderDomain(s.cfg.CanonicalScope(joined))
	}
	argsAndResult := make([]*Domain, 0, len(lhs.argsAndResult))
	for i := range lhs.argsAndResult {
		joined := s.UnifyOrNull(lhs.argsAndResult[i], rhs.argsAndResult[i])
		if joined == nil {
			return nil
		}
		argsAndResult = append(argsAndResult, joined)
	}
	return s.newHigherOrderDomain(argsAndResult)
}

// UnifyOrNull merges the equivalence classes of lhs and rhs. On success both
// former roots point at the joined domain, which becomes the new root; nil
// means the placements conflict and the top-level pair was left unrelated.
func (s *Store) UnifyOrNull(lhs, rhs *Domain) *Domain {
	lhs = s.Lookup(lhs)
	rhs = s.Lookup(rhs)
	joined := s.JoinOrNull(lhs, rhs)
	if joined == nil {
		return nil
	}
	if lhs != joined {
		s.equiv[lhs] = joined
	}
	if rhs != joined {
		s.equiv[rhs] = joined
	}
	return joined
}

// CollapseOrFalse forces every parameter slot and the result slot of
// higherOrder to unify with the single first-order domain firstOrder. This
// models operators whose per-argument placement distinctions are not
// observable: a data constructor places its fields and its own value
// uniformly.
func (s *Store) CollapseOrFalse(firstOrder, higherOrder *Domain) bool {
	if firstOrder.IsHigherOrder() {
		panic(fmt.Sprintf("collapse target %s must be first-order", rawString(firstOrder)))
	}
	if !higherOrder.IsHigherOrder() {
		panic(fmt.Sprintf("collapse source %s must be higher-order", rawString(higherOrder)))
	}
	for i := 0; i < higherOrder.FunctionArity(); i++ {
		if s.UnifyOrNull(higherOrder.FunctionParam(i), firstOrder) == nil {
			return false
		}
	}
	return s.UnifyOrNull(higherOrder.FunctionResult(), firstOrder) != nil
}

// UnifyCollapsedOrFalse unifies a first-order lhs against an rhs that may be
// higher-order, collapsing rhs when it is.
func (s *Store) UnifyCollapsedOrFalse(lhsFirstOrder, rhsMaybeHigherOrder *Domain) bool {
	if lhsFirstOrder.IsHigherOrder() {
		panic(fmt.Sprintf("lhs %s must be first-order", rawString(lhsFirstOrder)))
	}
	if rhsMaybeHigherOrder.IsHigherOrder() {
		return s.CollapseOrFalse(lhsFirstOrder, rhsMaybeHigherOrder)
	}
	return s.UnifyOrNull(lhsFirstOrder, rhsMaybeHigherOrder) != nil
}

// DomainString renders the current root of d: unconstrained first-order
// domains as a per-node ?id? placeholder, higher-order domains as
// fn(d1,...,dn):dresult.
func (s *Store) DomainString(d *Domain) string {
	d = s.Lookup(d)
	if !d.IsHigherOrder() {
		return rawString(d)
	}
	var sb strings.Builder
	sb.WriteString("fn(")
	for i := 0; i < d.FunctionArity(); i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(s.DomainString(d.FunctionParam(i)))
	}
	sb.WriteString("):")
	sb.WriteString(s.DomainString(d.FunctionResult()))
	return sb.String()
}

// String dumps every memoized expression and callee domain, in first-access
// order, for diagnostics.
func (s *Store) String() string {
	var sb strings.Builder
	for _, e := range s.exprOrder {
		fmt.Fprintf(&sb, "expression %s domain %s\n", e, s.DomainString(s.exprDomains[e]))
	}
	for _, c := range s.callOrder {
		fmt.Fprintf(&sb, "call %s callee domain %s\n", c, s.DomainString(s.callDomains[c]))
	}
	return sb.String()
}
