package types

import (
	"fmt"
)

// InjectorKind selects how injected code charges gas.
type InjectorKind string

const (
	// InjectorMutableGlobal keeps the counter in an exported mutable i64
	// global and inlines the check at every block entry.
	InjectorMutableGlobal InjectorKind = "mutable_global"
	// InjectorHostFunction imports env.gas(i64) and calls it at every block
	// entry, leaving the accounting to the host.
	InjectorHostFunction InjectorKind = "host_function"
)

// Config defines the configuration of the instrumentation pipeline.
type Config struct {
	CostModel CostModelVersion `json:"cost_model"`
	Injector  InjectorKind     `json:"injector"`
	Features  Features         `json:"features"`
	// CollectAll makes validation type check every function and report all
	// failures instead of stopping at the first one.
	CollectAll bool `json:"collect_all,omitempty"`
}

// DefaultConfig returns the configuration matching the reference host.
func DefaultConfig() Config {
	return Config{
		CostModel: CurrentCostModel,
		Injector:  InjectorMutableGlobal,
		Features:  DefaultFeatures(),
	}
}

// Validate checks that every field names something this build supports.
// An empty CostModel or Injector selects CurrentCostModel or
// InjectorMutableGlobal, as it does in the pipeline.
func (c Config) Validate() error {
	switch c.CostModel {
	case "", CostModelV1:
	default:
		return fmt.Errorf("unknown cost model version %q", c.CostModel)
	}
	switch c.Injector {
	case "", InjectorMutableGlobal, InjectorHostFunction:
	default:
		return fmt.Errorf("unknown injector %q", c.Injector)
	}
	return c.Features.Validate()
}
