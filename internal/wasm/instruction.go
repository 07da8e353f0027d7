package wasm

import (
	"math"
)

// BlockType is the signed 33 bit block type immediate as it is encoded:
// BlockEmpty, a negative value type code, or a non-negative type index.
type BlockType int64

// BlockEmpty is the block type of a block without results.
const BlockEmpty BlockType = -0x40

// BlockOf returns the block type producing a single value of type v.
func BlockOf(v ValueType) BlockType {
	return BlockType(int64(v) - 0x80)
}

// BlockFromType returns the block type referring to a function type index.
func BlockFromType(typeIndex uint32) BlockType {
	return BlockType(typeIndex)
}

// IsEmpty reports whether the block has neither params nor results.
func (b BlockType) IsEmpty() bool {
	return b == BlockEmpty
}

// Value returns the single result type, if b encodes one.
func (b BlockType) Value() (ValueType, bool) {
	if b >= 0 || b == BlockEmpty {
		return 0, false
	}
	return ValueType(byte(b) & 0x7f), true
}

// TypeIndex returns the function type index, if b refers to one.
func (b BlockType) TypeIndex() (uint32, bool) {
	if b < 0 {
		return 0, false
	}
	return uint32(b), true
}

// MemArg is the alignment hint and static offset of a load or store.
type MemArg struct {
	Align  uint32
	Offset uint32
}

// Instruction is a decoded instruction with its immediates. Only the fields
// relevant to Opcode are set.
type Instruction struct {
	Opcode Opcode
	// Block is the block type of block, loop and if.
	Block BlockType
	// Index is the label of br and br_if, the default label of br_table, the
	// callee of call, the type of call_indirect or the local/global index.
	Index uint32
	// Targets are the non-default labels of br_table.
	Targets []uint32
	Mem     MemArg
	// Value holds the bits of a constant. i32 constants are zero extended.
	Value uint64
}

// Op returns an instruction without immediates.
func Op(op Opcode) Instruction {
	return Instruction{Opcode: op}
}

func Block(op Opcode, bt BlockType) Instruction {
	return Instruction{Opcode: op, Block: bt}
}

func Call(funcIndex uint32) Instruction {
	return Instruction{Opcode: OpCall, Index: funcIndex}
}

func LocalGet(i uint32) Instruction {
	return Instruction{Opcode: OpLocalGet, Index: i}
}

func LocalSet(i uint32) Instruction {
	return Instruction{Opcode: OpLocalSet, Index: i}
}

func LocalTee(i uint32) Instruction {
	return Instruction{Opcode: OpLocalTee, Index: i}
}

func GlobalGet(i uint32) Instruction {
	return Instruction{Opcode: OpGlobalGet, Index: i}
}

func GlobalSet(i uint32) Instruction {
	return Instruction{Opcode: OpGlobalSet, Index: i}
}

func I32Const(v int32) Instruction {
	return Instruction{Opcode: OpI32Const, Value: uint64(uint32(v))}
}

func I64Const(v int64) Instruction {
	return Instruction{Opcode: OpI64Const, Value: uint64(v)}
}

func F32Const(v float32) Instruction {
	return Instruction{Opcode: OpF32Const, Value: uint64(math.Float32bits(v))}
}

func F64Const(v float64) Instruction {
	return Instruction{Opcode: OpF64Const, Value: math.Float64bits(v)}
}

// I32 returns the immediate of an i32.const.
func (in Instruction) I32() int32 {
	return int32(uint32(in.Value))
}

// I64 returns the immediate of an i64.const.
func (in Instruction) I64() int64 {
	return int64(in.Value)
}

// EndsBlock reports whether control leaves the straight line sequence after in.
func (in Instruction) EndsBlock() bool {
	switch in.Opcode {
	case OpBlock, OpLoop, OpIf, OpElse, OpEnd, OpBr, OpBrIf, OpBrTable,
		OpReturn, OpUnreachable, OpCall, OpCallIndirect:
		return true
	}
	return false
}

// clone returns a copy that does not share the Targets slice.
func (in Instruction) clone() Instruction {
	if in.Targets != nil {
		in.Targets = append([]uint32(nil), in.Targets...)
	}
	return in
}

// NaturalAlignment returns log2 of the access width of a load or store, and
// false for other opcodes.
func NaturalAlignment(op Opcode) (uint32, bool) {
	switch op {
	case OpI32Load8S, OpI32Load8U, OpI64Load8S, OpI64Load8U, OpI32Store8, OpI64Store8:
		return 0, true
	case OpI32Load16S, OpI32Load16U, OpI64Load16S, OpI64Load16U, OpI32Store16, OpI64Store16:
		return 1, true
	case OpI32Load, OpF32Load, OpI64Load32S, OpI64Load32U, OpI32Store, OpF32Store, OpI64Store32:
		return 2, true
	case OpI64Load, OpF64Load, OpI64Store, OpF64Store:
		return 3, true
	}
	return 0, false
}
