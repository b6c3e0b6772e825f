// Package planner drives placement inference over a module: it walks every
// expression, feeds the constraints into the domain store, applies the
// defaulting policy to whatever is left open, and reads the final scopes
// back. It does not rewrite the IR; callers insert copies from the Result.
package planner

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/funvibe/devplan/internal/config"
	"github.com/funvibe/devplan/internal/domain"
	"github.com/funvibe/devplan/internal/ir"
	"github.com/funvibe/devplan/internal/scope"
)

// Planner owns one domain store for one run over one module.
type Planner struct {
	cfg   *config.Config
	store *domain.Store
	log   *zap.Logger
	mod   *ir.Module
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger enables debug tracing of constraint collection and defaulting.
func WithLogger(log *zap.Logger) Option {
	return func(p *Planner) { p.log = log }
}

// New returns a planner for one run.
func New(cfg *config.Config, opts ...Option) *Planner {
	p := &Planner{
		cfg:   cfg,
		store: domain.NewStore(cfg),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Store exposes the underlying domain store, mainly for diagnostics dumps.
func (p *Planner) Store() *domain.Store { return p.store }

// FuncPlacement holds the final placements of one global function.
type FuncPlacement struct {
	Params []scope.Scope
	Result scope.Scope
}

// Result maps every analyzed expression and function to its final placement.
type Result struct {
	// Exprs holds the terminal result scope of every expression visited
	// during planning, keyed by node identity.
	Exprs map[ir.Expr]scope.Scope

	// Functions holds per-function parameter and result placements.
	Functions map[string]*FuncPlacement
}

// ScopeOf returns the final scope of an expression, if it was analyzed.
func (r *Result) ScopeOf(e ir.Expr) (scope.Scope, bool) {
	sc, ok := r.Exprs[e]
	return sc, ok
}

// Plan runs constraint collection, defaulting and readback over mod.
func (p *Planner) Plan(mod *ir.Module) (*Result, error) {
	p.mod = mod

	for _, name := range mod.Names() {
		fn := mod.Functions[name]
		if err := p.collectFunc(fn); err != nil {
			return nil, fmt.Errorf("planning %q: %w", name, err)
		}
	}

	p.applyDefaults()
	return p.readback(mod), nil
}

// collectFunc constrains a function definition: its own higher-order domain
// binds its parameters and its body's placement.
func (p *Planner) collectFunc(fn *ir.Func) error {
	fnDomain := p.store.DomainFor(fn)
	if !fnDomain.IsHigherOrder() || fnDomain.FunctionArity() != len(fn.Params) {
		return fmt.Errorf("function %s has malformed placement signature %s",
			fn, p.store.DomainString(fnDomain))
	}
	for i, param := range fn.Params {
		if err := p.store.UnifyExprDomain(param, fnDomain.FunctionParam(i)); err != nil {
			return err
		}
	}
	if fn.Body == nil {
		return fmt.Errorf("function %s has no body", fn)
	}
	if err := p.store.UnifyExprDomain(fn.Body, fnDomain.FunctionResult()); err != nil {
		return err
	}
	return p.collect(fn.Body)
}

// collect walks an expression bottom-up, adding its placement constraints.
func (p *Planner) collect(e ir.Expr) error {
	switch e := e.(type) {
	case *ir.Var, *ir.Literal:
		p.store.DomainFor(e)
		return nil

	case *ir.GlobalVar:
		fn, ok := p.mod.Functions[e.Name]
		if !ok {
			return fmt.Errorf("unbound global %s", e)
		}
		return p.store.UnifyExprExact(e, fn)

	case *ir.Func:
		return p.collectFunc(e)

	case *ir.Let:
		if err := p.store.UnifyExprExact(e.Var, e.Value); err != nil {
			return err
		}
		if err := p.store.UnifyExprExact(e, e.Body); err != nil {
			return err
		}
		if err := p.collect(e.Value); err != nil {
			return err
		}
		return p.collect(e.Body)

	case *ir.Tuple:
		// A tuple and all its fields live together; function-valued
		// fields are collapsed onto the tuple's placement.
		for _, field := range e.Fields {
			if err := p.store.UnifyExprCollapsed(e, p.store.DomainFor(field)); err != nil {
				return err
			}
			if err := p.collect(field); err != nil {
				return err
			}
		}
		p.store.DomainFor(e)
		return nil

	case *ir.TupleGet:
		if err := p.store.UnifyExprExact(e, e.Tuple); err != nil {
			return err
		}
		return p.collect(e.Tuple)

	case *ir.Call:
		return p.collectCall(e)

	case *ir.Op, *ir.Constructor:
		// Operator identities carry no placement of their own; their
		// calls do.
		return nil

	default:
		return fmt.Errorf("unsupported expression %s", e)
	}
}

func (p *Planner) collectCall(call *ir.Call) error {
	callee := p.store.DomainForCallee(call)
	if callee.FunctionArity() != len(call.Args) {
		return fmt.Errorf("call %s: callee signature %s does not cover %d arguments",
			call, p.store.DomainString(callee), len(call.Args))
	}

	p.log.Debug("collecting call constraints",
		zap.String("call", call.String()),
		zap.String("callee", p.store.DomainString(callee)))

	for i, arg := range call.Args {
		// Function-valued arguments keep their shape; first-order
		// arguments collapse a function-shaped parameter slot.
		var err error
		if p.store.DomainFor(arg).IsHigherOrder() {
			err = p.store.UnifyExprDomain(arg, callee.FunctionParam(i))
		} else {
			err = p.store.UnifyExprCollapsed(arg, callee.FunctionParam(i))
		}
		if err != nil {
			return err
		}
	}
	if err := p.store.UnifyExprDomain(call, callee.FunctionResult()); err != nil {
		return err
	}

	for _, arg := range call.Args {
		if err := p.collect(arg); err != nil {
			return err
		}
	}
	// Walk into callee expressions that are not bare operator identities.
	switch call.Op.(type) {
	case *ir.Op, *ir.Constructor:
		return nil
	default:
		return p.collect(call.Op)
	}
}

// applyDefaults fills every still-open domain: results first, then their
// parameters follow the result's scope.
func (p *Planner) applyDefaults() {
	p.store.ForEachExprDomain(func(e ir.Expr, d *domain.Domain) {
		if p.store.IsFullyConstrained(d) {
			return
		}
		p.log.Debug("defaulting open domain",
			zap.String("expr", e.String()),
			zap.String("domain", p.store.DomainString(d)),
			zap.String("fallback", p.cfg.DefaultScope.String()))
		p.store.SetResultDefaultThenParams(d, p.cfg.DefaultScope)
	})
}

func (p *Planner) readback(mod *ir.Module) *Result {
	res := &Result{
		Exprs:     make(map[ir.Expr]scope.Scope),
		Functions: make(map[string]*FuncPlacement, len(mod.Functions)),
	}
	p.store.ForEachExprDomain(func(e ir.Expr, d *domain.Domain) {
		res.Exprs[e] = p.store.ScopeFor(p.store.ResultDomain(d))
	})
	for _, name := range mod.Names() {
		fn := mod.Functions[name]
		fnDomain := p.store.DomainFor(fn)
		fp := &FuncPlacement{Result: p.store.ScopeFor(p.store.ResultDomain(fnDomain))}
		for i := 0; i < fnDomain.FunctionArity(); i++ {
			param := p.store.ResultDomain(fnDomain.FunctionParam(i))
			fp.Params = append(fp.Params, p.store.ScopeFor(param))
		}
		res.Functions[name] = fp
	}
	return res
}
