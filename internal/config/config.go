// Package config holds the compilation configuration for device planning:
// the legal device targets, the host scope used for shape and size data, the
// default scope applied to anything left unconstrained, and the scope
// canonicalization table.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/devplan/internal/scope"
)

// DefaultVirtualID is the virtual device id assumed when a target declares a
// device kind without a count.
const DefaultVirtualID = 0

// Target describes one configured device target.
type Target struct {
	// Device is the device kind (cpu, cuda, metal, vulkan).
	Device string `yaml:"device"`

	// Count is the number of virtual devices of this kind. Defaults to 1.
	Count int `yaml:"count,omitempty"`

	// DefaultMem is the memory scope filled in during canonicalization when
	// a scope names this device but leaves the memory scope open.
	// Defaults to "global".
	DefaultMem string `yaml:"default_mem,omitempty"`
}

// fileConfig is the YAML shape of a devplan config file.
type fileConfig struct {
	Targets []Target `yaml:"targets"`

	// Host names the device kind that holds shapes, sizes and other
	// scalar bookkeeping data. Defaults to cpu.
	Host string `yaml:"host,omitempty"`

	// Default names the device kind unannotated code falls back to.
	// Defaults to the host.
	Default string `yaml:"default,omitempty"`
}

// Config is the planner's view of the compilation configuration.
type Config struct {
	// HostScope is where shape/size arguments always live.
	HostScope scope.Scope

	// DefaultScope is the fallback applied by the defaulting pass.
	DefaultScope scope.Scope

	Targets []Target

	targets   map[scope.DeviceKind]Target
	canonical map[scope.Scope]scope.Scope
}

// Default returns the configuration used when no config file is given:
// a single cpu target that is both host and default.
func Default() *Config {
	cfg, err := build(fileConfig{Targets: []Target{{Device: "cpu"}}})
	if err != nil {
		// Unreachable with the fixed input above.
		panic(err)
	}
	return cfg
}

// Load reads and parses a devplan config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses config content from bytes.
func Parse(data []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, err
	}
	return build(fc)
}

func build(fc fileConfig) (*Config, error) {
	if len(fc.Targets) == 0 {
		return nil, fmt.Errorf("config: no targets defined")
	}

	cfg := &Config{
		targets:   make(map[scope.DeviceKind]Target, len(fc.Targets)),
		canonical: make(map[scope.Scope]scope.Scope),
	}
	for i, tgt := range fc.Targets {
		if tgt.Device == "" {
			return nil, fmt.Errorf("config: targets[%d]: device is required", i)
		}
		kind := scope.DeviceKind(tgt.Device)
		if _, dup := cfg.targets[kind]; dup {
			return nil, fmt.Errorf("config: duplicate target %q", tgt.Device)
		}
		if tgt.Count == 0 {
			tgt.Count = 1
		}
		if tgt.DefaultMem == "" {
			tgt.DefaultMem = string(scope.MemGlobal)
		}
		cfg.targets[kind] = tgt
		cfg.Targets = append(cfg.Targets, tgt)
	}

	if fc.Host == "" {
		fc.Host = "cpu"
	}
	if _, ok := cfg.targets[scope.DeviceKind(fc.Host)]; !ok {
		return nil, fmt.Errorf("config: host device %q is not a configured target", fc.Host)
	}
	if fc.Default == "" {
		fc.Default = fc.Host
	}
	if _, ok := cfg.targets[scope.DeviceKind(fc.Default)]; !ok {
		return nil, fmt.Errorf("config: default device %q is not a configured target", fc.Default)
	}

	cfg.HostScope = cfg.CanonicalScope(scope.ForDevice(scope.DeviceKind(fc.Host)))
	cfg.DefaultScope = cfg.CanonicalScope(scope.ForDevice(scope.DeviceKind(fc.Default)))
	return cfg, nil
}

// CanonicalScope normalizes a scope against the configured targets and
// interns the result, so repeated canonicalizations of equal scopes return
// the same value. For a scope naming a configured device it fills in the
// default virtual id and memory scope; a scope naming no configured device
// is returned unchanged.
func (c *Config) CanonicalScope(s scope.Scope) scope.Scope {
	if canon, ok := c.canonical[s]; ok {
		return canon
	}
	canon := s
	if tgt, ok := c.targets[s.Device]; ok {
		if canon.VirtualID == scope.UnconstrainedID {
			canon.VirtualID = DefaultVirtualID
		}
		if canon.Mem == scope.MemUnknown {
			canon.Mem = scope.MemScope(tgt.DefaultMem)
		}
	}
	c.canonical[s] = canon
	return canon
}

// KnownDevice reports whether kind is one of the configured targets.
func (c *Config) KnownDevice(kind scope.DeviceKind) bool {
	_, ok := c.targets[kind]
	return ok
}
