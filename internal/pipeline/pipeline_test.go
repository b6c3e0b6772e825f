package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/funvibe/devplan/internal/scope"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "devices.yaml", `
targets:
  - device: cpu
  - device: cuda
host: cpu
default: cpu
`)
	progPath := writeFile(t, dir, "prog.yaml", `
main: main
functions:
  - name: main
    params:
      - name: x
        type: {tensor: {shape: [2], dtype: float32}}
    body:
      on_device: {expr: {var: x}, device: cuda, fixed: true}
`)

	ctx := NewContext(progPath)
	ctx.ConfigPath = cfgPath
	ctx = New(&ConfigProcessor{}, &ProgramProcessor{}, &PlanProcessor{}).Run(ctx)

	if ctx.Failed() {
		t.Fatalf("pipeline failed: %v", ctx.Errors)
	}
	cuda0 := scope.New(scope.DeviceCUDA, 0, scope.MemGlobal)
	fp := ctx.Plan.Functions["main"]
	if fp == nil || fp.Result != cuda0 || fp.Params[0] != cuda0 {
		t.Errorf("main placement = %+v, want everything on %s", fp, cuda0)
	}
	if !strings.Contains(ctx.DomainDump, cuda0.String()) {
		t.Errorf("domain dump should mention %s:\n%s", cuda0, ctx.DomainDump)
	}
}

func TestPipelineDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	progPath := writeFile(t, dir, "prog.yaml", `
main: main
functions:
  - name: main
    params:
      - name: x
        type: {tensor: {shape: [2], dtype: float32}}
    body: {var: x}
`)

	ctx := New(&ConfigProcessor{}, &ProgramProcessor{}, &PlanProcessor{}).Run(NewContext(progPath))
	if ctx.Failed() {
		t.Fatalf("pipeline failed: %v", ctx.Errors)
	}
	cpu0 := scope.New(scope.DeviceCPU, 0, scope.MemGlobal)
	if got := ctx.Plan.Functions["main"].Result; got != cpu0 {
		t.Errorf("default placement = %s, want %s", got, cpu0)
	}
}

func TestPipelineStageGuards(t *testing.T) {
	// A broken config stops later stages from running.
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "devices.yaml", "targets: []\n")
	progPath := writeFile(t, dir, "prog.yaml", "functions: []\n")

	ctx := NewContext(progPath)
	ctx.ConfigPath = cfgPath
	ctx = New(&ConfigProcessor{}, &ProgramProcessor{}, &PlanProcessor{}).Run(ctx)

	if !ctx.Failed() {
		t.Fatalf("pipeline should fail on an empty target list")
	}
	if ctx.Module != nil || ctx.Plan != nil {
		t.Errorf("later stages should not produce output after a config error")
	}
}
