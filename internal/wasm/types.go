package wasm

import (
	"fmt"
	"strings"
)

// ValueType is the binary encoding of a value type.
type ValueType byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

func (v ValueType) String() string {
	switch v {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	default:
		return fmt.Sprintf("0x%02x", byte(v))
	}
}

// IsFloat reports whether v is f32 or f64.
func (v ValueType) IsFloat() bool {
	return v == ValueTypeF32 || v == ValueTypeF64
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

func (t FuncType) String() string {
	var b strings.Builder
	b.WriteString("(")
	for i, p := range t.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") -> (")
	for i, r := range t.Results {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.String())
	}
	b.WriteString(")")
	return b.String()
}

// Equal reports whether both signatures have the same params and results.
func (t FuncType) Equal(o FuncType) bool {
	if len(t.Params) != len(o.Params) || len(t.Results) != len(o.Results) {
		return false
	}
	for i := range t.Params {
		if t.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range t.Results {
		if t.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// ExternalKind is the kind of an import or export.
type ExternalKind byte

const (
	ExternalFunc   ExternalKind = 0
	ExternalTable  ExternalKind = 1
	ExternalMemory ExternalKind = 2
	ExternalGlobal ExternalKind = 3
)

func (k ExternalKind) String() string {
	switch k {
	case ExternalFunc:
		return "func"
	case ExternalTable:
		return "table"
	case ExternalMemory:
		return "memory"
	case ExternalGlobal:
		return "global"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Limits describes the size bounds of a table or memory.
type Limits struct {
	Min uint32
	Max *uint32
}

// ElemTypeFuncref is the only table element type the codec represents.
const ElemTypeFuncref byte = 0x70

// TableType describes a table of function references.
type TableType struct {
	Limits Limits
}

// MemoryType describes a linear memory in pages.
type MemoryType struct {
	Limits Limits
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	Type    ValueType
	Mutable bool
}

// Import is one entry of the import section. Exactly one of the descriptor
// fields is meaningful, selected by Kind.
type Import struct {
	Module string
	Field  string
	Kind   ExternalKind

	TypeIndex uint32
	Table     TableType
	Memory    MemoryType
	Global    GlobalType
}

// Export is one entry of the export section.
type Export struct {
	Name  string
	Kind  ExternalKind
	Index uint32
}

// ConstExpr is an initializer expression, including its final end.
type ConstExpr []Instruction

// Global is a module defined global variable.
type Global struct {
	Type GlobalType
	Init ConstExpr
}

// ElementSegment is an active segment initializing table 0 with function indices.
type ElementSegment struct {
	TableIndex uint32
	Offset     ConstExpr
	Funcs      []uint32
}

// DataSegment is an active segment initializing memory 0.
type DataSegment struct {
	MemoryIndex uint32
	Offset      ConstExpr
	Init        []byte
}

// LocalEntry declares Count locals of the same type.
type LocalEntry struct {
	Count uint32
	Type  ValueType
}

// FunctionBody is the code of a module defined function.
type FunctionBody struct {
	Locals []LocalEntry
	// Code is the instruction sequence, ending with the function's end.
	Code []Instruction
}

// NumLocals returns the number of declared locals, parameters excluded.
func (b FunctionBody) NumLocals() uint64 {
	var n uint64
	for _, l := range b.Locals {
		n += uint64(l.Count)
	}
	return n
}

// CustomSection is kept opaque. After is the id of the known section that
// preceded it in the input, or zero when it came before all of them.
type CustomSection struct {
	Name    string
	Payload []byte
	After   SectionID
}
