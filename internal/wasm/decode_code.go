package wasm

import (
	"github.com/aspect-vm/wasmmeter/types"
)

const (
	prefixGC      = 0xfb
	prefixSIMD    = 0xfd
	prefixThreads = 0xfe
)

// opcodeFeatures lists single byte opcodes that belong to proposals the
// Instruction type does not represent.
var opcodeFeatures = map[byte]types.Feature{
	0x06: types.FeatureExceptions, // try
	0x07: types.FeatureExceptions, // catch
	0x08: types.FeatureExceptions, // throw
	0x09: types.FeatureExceptions, // rethrow
	0x0a: types.FeatureExceptions, // throw_ref
	0x18: types.FeatureExceptions, // delegate
	0x19: types.FeatureExceptions, // catch_all
	0x1f: types.FeatureExceptions, // try_table

	0x12: types.FeatureTailCall, // return_call
	0x13: types.FeatureTailCall, // return_call_indirect

	0x14: types.FeatureFunctionReferences, // call_ref
	0x15: types.FeatureFunctionReferences, // return_call_ref
	0xd4: types.FeatureFunctionReferences, // ref.as_non_null
	0xd5: types.FeatureFunctionReferences, // br_on_null
	0xd6: types.FeatureFunctionReferences, // br_on_non_null

	0x1c: types.FeatureReferenceTypes, // select t*
	0x25: types.FeatureReferenceTypes, // table.get
	0x26: types.FeatureReferenceTypes, // table.set
	0xd0: types.FeatureReferenceTypes, // ref.null
	0xd1: types.FeatureReferenceTypes, // ref.is_null
	0xd2: types.FeatureReferenceTypes, // ref.func

	0xd3: types.FeatureGC, // ref.eq
}

// readExpr reads instructions up to and including the end that closes the
// outermost block.
func readExpr(r *reader, what string) ([]Instruction, error) {
	var code []Instruction
	depth := 0
	for {
		if r.eof() {
			return nil, r.errorf("unexpected end of %s", what)
		}
		in, err := readInstruction(r)
		if err != nil {
			return nil, err
		}
		code = append(code, in)
		switch in.Opcode {
		case OpBlock, OpLoop, OpIf:
			depth++
		case OpEnd:
			if depth == 0 {
				return code, nil
			}
			depth--
		}
	}
}

func readInstruction(r *reader) (Instruction, error) {
	off := r.offset()
	b, err := r.readByte()
	if err != nil {
		return Instruction{}, err
	}
	switch b {
	case prefixMisc:
		return readMiscInstruction(r, off)
	case prefixSIMD:
		sub, _ := r.readU32()
		if sub >= 0x100 && sub <= 0x113 {
			return Instruction{}, unsupported(types.FeatureRelaxedSIMD, "relaxed simd opcode 0xfd 0x%x", sub)
		}
		return Instruction{}, unsupported(types.FeatureSIMD, "simd opcode 0xfd 0x%x", sub)
	case prefixThreads:
		return Instruction{}, unsupported(types.FeatureThreads, "atomic opcode prefix 0xfe")
	case prefixGC:
		return Instruction{}, unsupported(types.FeatureGC, "gc opcode prefix 0xfb")
	}
	if f, ok := opcodeFeatures[b]; ok {
		return Instruction{}, unsupported(f, "opcode 0x%02x", b)
	}

	op := Opcode(b)
	if !op.Known() {
		return Instruction{}, formatErrorf(off, "illegal opcode 0x%02x", b)
	}
	in := Instruction{Opcode: op}
	switch op {
	case OpBlock, OpLoop, OpIf:
		in.Block, err = readBlockType(r)
	case OpBr, OpBrIf, OpCall, OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet:
		in.Index, err = r.readU32()
	case OpBrTable:
		if in.Targets, err = readVector(r, "br_table target", (*reader).readU32); err != nil {
			return in, err
		}
		in.Index, err = r.readU32()
	case OpCallIndirect:
		if in.Index, err = r.readU32(); err != nil {
			return in, err
		}
		var table uint32
		if table, err = r.readU32(); err == nil && table != 0 {
			return in, unsupported(types.FeatureReferenceTypes, "call_indirect on table %d", table)
		}
	case OpMemorySize, OpMemoryGrow:
		var mem byte
		if mem, err = r.readByte(); err == nil && mem != 0 {
			return in, unsupported(types.FeatureMultiMemory, "%s on memory %d", op, mem)
		}
	case OpI32Const:
		var v int32
		v, err = r.readS32()
		in.Value = uint64(uint32(v))
	case OpI64Const:
		var v int64
		v, err = r.readS64()
		in.Value = uint64(v)
	case OpF32Const:
		var v uint32
		v, err = r.readU32LE()
		in.Value = uint64(v)
	case OpF64Const:
		in.Value, err = r.readU64LE()
	default:
		if _, ok := NaturalAlignment(op); ok {
			in.Mem, err = readMemArg(r)
		}
	}
	return in, err
}

func readMiscInstruction(r *reader, off int) (Instruction, error) {
	sub, err := r.readU32()
	if err != nil {
		return Instruction{}, err
	}
	switch {
	case sub <= 7:
		return Op(Opcode(prefixMisc<<8 | sub)), nil
	case sub <= 14:
		return Instruction{}, unsupported(types.FeatureBulkMemory, "bulk memory opcode 0xfc %d", sub)
	case sub <= 17:
		return Instruction{}, unsupported(types.FeatureReferenceTypes, "table opcode 0xfc %d", sub)
	case sub == 18:
		return Instruction{}, unsupported(types.FeatureMemoryControl, "memory.discard")
	}
	return Instruction{}, formatErrorf(off, "illegal opcode 0xfc %d", sub)
}

func readMemArg(r *reader) (MemArg, error) {
	align, err := r.readU32()
	if err != nil {
		return MemArg{}, err
	}
	if align&0x40 != 0 {
		return MemArg{}, unsupported(types.FeatureMultiMemory, "memory index in memarg")
	}
	offset, err := r.readU32()
	return MemArg{Align: align, Offset: offset}, err
}

func readBlockType(r *reader) (BlockType, error) {
	b, err := r.peekByte()
	if err != nil {
		return 0, err
	}
	if b == 0x40 {
		r.pos++
		return BlockEmpty, nil
	}
	// single byte negative values are type codes
	if b&0xc0 == 0x40 {
		r.pos++
		switch v := ValueType(b); v {
		case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
			return BlockOf(v), nil
		}
		return 0, valueTypeError(r, b, "block")
	}
	idx, err := r.readSleb(33)
	if err != nil {
		return 0, err
	}
	if idx < 0 {
		return 0, r.errorf("invalid block type %d", idx)
	}
	return BlockType(idx), nil
}
