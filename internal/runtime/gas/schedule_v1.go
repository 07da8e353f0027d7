package gas

import (
	"github.com/aspect-vm/wasmmeter/internal/wasm"
	"github.com/aspect-vm/wasmmeter/types"
)

// scheduleV1 derives integer weights from the substrate wasm schedule, each
// decimal multiplied by 10. Float weights are a conservative flat 50.
var scheduleV1 = &Schedule{
	version:     types.CostModelV1,
	weights:     weightsV1(),
	brTableBase: 15,
	perPage:     types.GasPerPage,
	perLocal:    0,
}

const floatWeightV1 = 50

func weightsV1() map[wasm.Opcode]uint32 {
	w := map[wasm.Opcode]uint32{
		wasm.OpUnreachable:  1,
		wasm.OpNop:          1,
		wasm.OpBlock:        10,
		wasm.OpLoop:         10,
		wasm.OpIf:           10,
		wasm.OpElse:         10,
		wasm.OpEnd:          10,
		wasm.OpBr:           10,
		wasm.OpBrIf:         10,
		wasm.OpReturn:       10,
		wasm.OpCall:         95,
		wasm.OpCallIndirect: 200,
		wasm.OpDrop:         10,
		wasm.OpSelect:       10,

		wasm.OpLocalGet:  2,
		wasm.OpLocalSet:  2,
		wasm.OpLocalTee:  2,
		wasm.OpGlobalGet: 2,
		wasm.OpGlobalSet: 2,

		wasm.OpMemorySize: 23,
		wasm.OpMemoryGrow: 435000,

		wasm.OpI32Const: 1,
		wasm.OpI64Const: 2,
		wasm.OpF32Const: 1,
		wasm.OpF64Const: 1,

		wasm.OpI32Clz:    47,
		wasm.OpI32Ctz:    47,
		wasm.OpI32Popcnt: 54,
		wasm.OpI32Add:    1,
		wasm.OpI32Sub:    1,
		wasm.OpI32Mul:    2,
		wasm.OpI32DivS:   4,
		wasm.OpI32DivU:   4,
		wasm.OpI32RemS:   4,
		wasm.OpI32RemU:   4,
		wasm.OpI32And:    1,
		wasm.OpI32Or:     1,
		wasm.OpI32Xor:    1,
		wasm.OpI32Shl:    2,
		wasm.OpI32ShrS:   2,
		wasm.OpI32ShrU:   2,
		wasm.OpI32Rotl:   1,
		wasm.OpI32Rotr:   1,

		wasm.OpI64Clz:    85,
		wasm.OpI64Ctz:    85,
		wasm.OpI64Popcnt: 108,
		wasm.OpI64Add:    2,
		wasm.OpI64Sub:    2,
		wasm.OpI64Mul:    4,
		wasm.OpI64DivS:   8,
		wasm.OpI64DivU:   8,
		wasm.OpI64RemS:   8,
		wasm.OpI64RemU:   8,
		wasm.OpI64And:    2,
		wasm.OpI64Or:     2,
		wasm.OpI64Xor:    2,
		wasm.OpI64Shl:    4,
		wasm.OpI64ShrS:   4,
		wasm.OpI64ShrU:   4,
		wasm.OpI64Rotl:   2,
		wasm.OpI64Rotr:   2,

		wasm.OpI32WrapI64:    2,
		wasm.OpI64ExtendI32S: 2,
		wasm.OpI64ExtendI32U: 2,
	}
	for op := wasm.OpI32Load; op <= wasm.OpI64Load32U; op++ {
		w[op] = 2
	}
	for op := wasm.OpI32Store; op <= wasm.OpI64Store32; op++ {
		w[op] = 4
	}
	for op := wasm.OpI32Eqz; op <= wasm.OpI32GeU; op++ {
		w[op] = 1
	}
	for op := wasm.OpI64Eqz; op <= wasm.OpI64GeU; op++ {
		w[op] = 2
	}
	for op := wasm.OpI32Extend8S; op <= wasm.OpI64Extend32S; op++ {
		w[op] = 10
	}
	// every remaining opcode touching floats: comparisons, arithmetic,
	// conversions, reinterpretations and saturating truncations
	for op := wasm.OpF32Eq; op <= wasm.OpF64ReinterpretI64; op++ {
		if _, ok := w[op]; !ok {
			w[op] = floatWeightV1
		}
	}
	for op := wasm.OpI32TruncSatF32S; op <= wasm.OpI64TruncSatF64U; op++ {
		w[op] = floatWeightV1
	}
	return w
}
