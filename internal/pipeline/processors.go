package pipeline

import (
	"github.com/funvibe/devplan/internal/config"
	"github.com/funvibe/devplan/internal/ir"
	"github.com/funvibe/devplan/internal/planner"
)

// ConfigProcessor loads the compilation config, or installs the built-in
// default when no path was given.
type ConfigProcessor struct{}

func (p *ConfigProcessor) Process(ctx *Context) *Context {
	if ctx.ConfigPath == "" {
		ctx.Config = config.Default()
		return ctx
	}
	cfg, err := config.Load(ctx.ConfigPath)
	if err != nil {
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	ctx.Config = cfg
	return ctx
}

// ProgramProcessor loads and builds the IR module.
type ProgramProcessor struct{}

func (p *ProgramProcessor) Process(ctx *Context) *Context {
	if ctx.Failed() {
		return ctx
	}
	mod, err := ir.LoadModule(ctx.ProgramPath)
	if err != nil {
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	ctx.Module = mod
	return ctx
}

// PlanProcessor runs placement inference over the loaded module and captures
// the domain dump for diagnostics.
type PlanProcessor struct{}

func (p *PlanProcessor) Process(ctx *Context) *Context {
	if ctx.Failed() || ctx.Module == nil {
		return ctx
	}
	pl := planner.New(ctx.Config, planner.WithLogger(ctx.Logger))
	res, err := pl.Plan(ctx.Module)
	ctx.DomainDump = pl.Store().String()
	if err != nil {
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	ctx.Plan = res
	return ctx
}
