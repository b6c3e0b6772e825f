// Package pipeline wires the planning stages together: load the compilation
// config, load the program, run placement inference. Stages communicate
// through a shared Context and accumulate errors instead of aborting, so a
// caller can report everything at once.
package pipeline

import (
	"go.uber.org/zap"

	"github.com/funvibe/devplan/internal/config"
	"github.com/funvibe/devplan/internal/ir"
	"github.com/funvibe/devplan/internal/planner"
)

// Context carries the state shared by all pipeline stages.
type Context struct {
	// Inputs.
	ConfigPath  string
	ProgramPath string
	Logger      *zap.Logger

	// Stage outputs.
	Config *config.Config
	Module *ir.Module
	Plan   *planner.Result

	// DomainDump is the store's diagnostic dump, captured after planning.
	DomainDump string

	Errors []error
}

// NewContext returns a context for planning one program file.
func NewContext(programPath string) *Context {
	return &Context{ProgramPath: programPath, Logger: zap.NewNop()}
}

// Failed reports whether any stage recorded an error.
func (c *Context) Failed() bool { return len(c.Errors) > 0 }

// Processor is one pipeline stage.
type Processor interface {
	Process(ctx *Context) *Context
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline.
func (p *Pipeline) Run(initialCtx *Context) *Context {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
		// Continue on errors so diagnostics from every stage accumulate;
		// stages guard on earlier failures themselves.
	}
	return ctx
}
