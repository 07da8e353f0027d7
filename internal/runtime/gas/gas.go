// Package gas holds the cost model: the weight charged for each instruction
// and for each page requested by memory.grow.
package gas

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/aspect-vm/wasmmeter/internal/wasm"
	"github.com/aspect-vm/wasmmeter/types"
)

// Rules prices instructions for the injector.
type Rules interface {
	// InstructionCost returns the static weight of in, and false when the
	// instruction has no weight and must not be instrumented.
	InstructionCost(in *wasm.Instruction) (uint32, bool)
	// MemoryGrowCost is the charge per page requested by memory.grow. Zero
	// disables the dynamic charge.
	MemoryGrowCost() uint64
	// CallPerLocalCost is charged once per declared local at function entry.
	CallPerLocalCost() uint32
}

// Schedule is a versioned, table driven Rules implementation.
// A Schedule is immutable and safe for concurrent use.
type Schedule struct {
	version types.CostModelVersion
	weights map[wasm.Opcode]uint32
	// brTableBase is the br_table weight before adding one per target.
	brTableBase uint32
	perPage     uint64
	perLocal    uint32
}

var _ Rules = (*Schedule)(nil)

var schedules = map[types.CostModelVersion]*Schedule{
	types.CostModelV1: scheduleV1,
}

// NewRules returns the schedule for the given cost model version. An empty
// version selects types.CurrentCostModel.
func NewRules(version types.CostModelVersion) (*Schedule, error) {
	if version == "" {
		version = types.CurrentCostModel
	}
	s, ok := schedules[version]
	if !ok {
		return nil, fmt.Errorf("unknown cost model version %q", version)
	}
	return s, nil
}

// DefaultRules returns the schedule of the current cost model.
func DefaultRules() *Schedule {
	return schedules[types.CurrentCostModel]
}

// Versions lists the known cost model versions in sorted order.
func Versions() []types.CostModelVersion {
	vs := maps.Keys(schedules)
	slices.Sort(vs)
	return vs
}

func (s *Schedule) Version() types.CostModelVersion {
	return s.version
}

func (s *Schedule) InstructionCost(in *wasm.Instruction) (uint32, bool) {
	if in.Opcode == wasm.OpBrTable {
		return s.brTableBase + uint32(len(in.Targets)), true
	}
	w, ok := s.weights[in.Opcode]
	return w, ok
}

func (s *Schedule) MemoryGrowCost() uint64 {
	return s.perPage
}

func (s *Schedule) CallPerLocalCost() uint32 {
	return s.perLocal
}

// MemoryGrowthCost returns the dynamic charge for growing memory by pages.
func MemoryGrowthCost(r Rules, pages uint32) uint64 {
	return uint64(pages) * r.MemoryGrowCost()
}

// Weight is one row of a schedule, used for reporting.
type Weight struct {
	Opcode wasm.Opcode
	Cost   uint32
	// PerTarget is set for br_table, whose cost grows with its label count.
	PerTarget bool
}

// Weights returns the static weights of s ordered by opcode.
func (s *Schedule) Weights() []Weight {
	ops := maps.Keys(s.weights)
	ops = append(ops, wasm.OpBrTable)
	slices.Sort(ops)
	out := make([]Weight, 0, len(ops))
	for _, op := range ops {
		if op == wasm.OpBrTable {
			out = append(out, Weight{Opcode: op, Cost: s.brTableBase, PerTarget: true})
			continue
		}
		out = append(out, Weight{Opcode: op, Cost: s.weights[op]})
	}
	return out
}
