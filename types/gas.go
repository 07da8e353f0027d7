// Package types provides the configuration, constants and error types shared
// by the instrumentation pipeline, its host bindings and downstream hosts.
package types

import (
	"github.com/c2h5oh/datasize"
)

// Gas represents an amount of metered execution cost.
type Gas = uint64

// Reserved identifiers shared with the execution host. Renaming either one is
// a breaking protocol change.
const (
	// EntrypointExport is the export the implicit start function is moved to.
	EntrypointExport = "__aspect_start__"
	// GasCounterExport is the export name of the injected gas counter global.
	GasCounterExport = "__gas_counter__"
	// GasImportModule and GasImportField name the charging function imported
	// by the host-function injector.
	GasImportModule = "env"
	GasImportField  = "gas"
)

const (
	// GasPerSecond calibrates the cost model: 10 gas is roughly 1ns of execution.
	GasPerSecond Gas = 10_000_000_000
	// MaxGas bounds the total cost any single execution can be charged.
	MaxGas Gas = 1000 * GasPerSecond

	// PageSize is the size of one linear memory page.
	PageSize = 64 * datasize.KB
	// MaxPages is 12GiB worth of pages. A 32-bit module can never reach it
	// unless pages are also released, so it is an upper bound for pricing only.
	MaxPages = uint64(12 * datasize.GB / PageSize)

	// GasPerPage is charged for every page requested by memory.grow, so that
	// growing to MaxPages costs about the whole MaxGas budget.
	GasPerPage = MaxGas / MaxPages
)

// CostModelVersion identifies a calibration of the cost tables. Changing any
// weight changes the cost of every existing module and needs a new version.
type CostModelVersion string

const (
	CostModelV1 CostModelVersion = "v1"

	// CurrentCostModel is the version used when a Config does not name one.
	CurrentCostModel = CostModelV1
)
