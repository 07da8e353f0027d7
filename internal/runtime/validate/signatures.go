package validate

import (
	"github.com/aspect-vm/wasmmeter/internal/wasm"
)

// signature is the operand types an instruction pops, in stack order, and the
// types it pushes.
type signature struct {
	pops   []wasm.ValueType
	pushes []wasm.ValueType
}

var (
	i32 = wasm.ValueTypeI32
	i64 = wasm.ValueTypeI64
	f32 = wasm.ValueTypeF32
	f64 = wasm.ValueTypeF64
)

func sig(pops []wasm.ValueType, pushes ...wasm.ValueType) signature {
	return signature{pops: pops, pushes: pushes}
}

func unop(in, out wasm.ValueType) signature {
	return sig([]wasm.ValueType{in}, out)
}

func binop(in, out wasm.ValueType) signature {
	return sig([]wasm.ValueType{in, in}, out)
}

// numeric holds the stack effect of every instruction without immediates
// whose effect does not depend on the context.
var numeric = map[wasm.Opcode]signature{}

func reg(s signature, ops ...wasm.Opcode) {
	for _, op := range ops {
		numeric[op] = s
	}
}

func regRange(s signature, from, to wasm.Opcode) {
	for op := from; op <= to; op++ {
		numeric[op] = s
	}
}

func init() {
	reg(unop(i32, i32), wasm.OpI32Eqz, wasm.OpI32Clz, wasm.OpI32Ctz, wasm.OpI32Popcnt,
		wasm.OpI32Extend8S, wasm.OpI32Extend16S)
	regRange(binop(i32, i32), wasm.OpI32Eq, wasm.OpI32GeU)
	regRange(binop(i32, i32), wasm.OpI32Add, wasm.OpI32Rotr)

	reg(unop(i64, i32), wasm.OpI64Eqz)
	reg(unop(i64, i64), wasm.OpI64Clz, wasm.OpI64Ctz, wasm.OpI64Popcnt,
		wasm.OpI64Extend8S, wasm.OpI64Extend16S, wasm.OpI64Extend32S)
	regRange(binop(i64, i32), wasm.OpI64Eq, wasm.OpI64GeU)
	regRange(binop(i64, i64), wasm.OpI64Add, wasm.OpI64Rotr)

	regRange(binop(f32, i32), wasm.OpF32Eq, wasm.OpF32Ge)
	regRange(binop(f64, i32), wasm.OpF64Eq, wasm.OpF64Ge)
	regRange(unop(f32, f32), wasm.OpF32Abs, wasm.OpF32Sqrt)
	regRange(binop(f32, f32), wasm.OpF32Add, wasm.OpF32Copysign)
	regRange(unop(f64, f64), wasm.OpF64Abs, wasm.OpF64Sqrt)
	regRange(binop(f64, f64), wasm.OpF64Add, wasm.OpF64Copysign)

	reg(unop(i64, i32), wasm.OpI32WrapI64)
	reg(unop(f32, i32), wasm.OpI32TruncF32S, wasm.OpI32TruncF32U, wasm.OpI32ReinterpretF32,
		wasm.OpI32TruncSatF32S, wasm.OpI32TruncSatF32U)
	reg(unop(f64, i32), wasm.OpI32TruncF64S, wasm.OpI32TruncF64U,
		wasm.OpI32TruncSatF64S, wasm.OpI32TruncSatF64U)
	reg(unop(i32, i64), wasm.OpI64ExtendI32S, wasm.OpI64ExtendI32U)
	reg(unop(f32, i64), wasm.OpI64TruncF32S, wasm.OpI64TruncF32U,
		wasm.OpI64TruncSatF32S, wasm.OpI64TruncSatF32U)
	reg(unop(f64, i64), wasm.OpI64TruncF64S, wasm.OpI64TruncF64U, wasm.OpI64ReinterpretF64,
		wasm.OpI64TruncSatF64S, wasm.OpI64TruncSatF64U)
	reg(unop(i32, f32), wasm.OpF32ConvertI32S, wasm.OpF32ConvertI32U, wasm.OpF32ReinterpretI32)
	reg(unop(i64, f32), wasm.OpF32ConvertI64S, wasm.OpF32ConvertI64U)
	reg(unop(f64, f32), wasm.OpF32DemoteF64)
	reg(unop(i32, f64), wasm.OpF64ConvertI32S, wasm.OpF64ConvertI32U)
	reg(unop(i64, f64), wasm.OpF64ConvertI64S, wasm.OpF64ConvertI64U, wasm.OpF64ReinterpretI64)
	reg(unop(f32, f64), wasm.OpF64PromoteF32)

	reg(sig(nil, i32), wasm.OpI32Const)
	reg(sig(nil, i64), wasm.OpI64Const)
	reg(sig(nil, f32), wasm.OpF32Const)
	reg(sig(nil, f64), wasm.OpF64Const)

	reg(unop(i32, i32), wasm.OpI32Load, wasm.OpI32Load8S, wasm.OpI32Load8U, wasm.OpI32Load16S, wasm.OpI32Load16U)
	reg(unop(i32, i64), wasm.OpI64Load, wasm.OpI64Load8S, wasm.OpI64Load8U, wasm.OpI64Load16S,
		wasm.OpI64Load16U, wasm.OpI64Load32S, wasm.OpI64Load32U)
	reg(unop(i32, f32), wasm.OpF32Load)
	reg(unop(i32, f64), wasm.OpF64Load)
	reg(sig([]wasm.ValueType{i32, i32}), wasm.OpI32Store, wasm.OpI32Store8, wasm.OpI32Store16)
	reg(sig([]wasm.ValueType{i32, i64}), wasm.OpI64Store, wasm.OpI64Store8, wasm.OpI64Store16, wasm.OpI64Store32)
	reg(sig([]wasm.ValueType{i32, f32}), wasm.OpF32Store)
	reg(sig([]wasm.ValueType{i32, f64}), wasm.OpF64Store)
	reg(sig(nil, i32), wasm.OpMemorySize)
	reg(unop(i32, i32), wasm.OpMemoryGrow)
}
