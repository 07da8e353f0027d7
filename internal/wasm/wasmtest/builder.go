// Package wasmtest builds small modules for tests.
package wasmtest

import (
	"github.com/aspect-vm/wasmmeter/internal/wasm"
	"github.com/aspect-vm/wasmmeter/types"
)

// Builder assembles a wasm.Module. Imports must be added before functions so
// that returned function indices stay valid.
type Builder struct {
	m *wasm.Module
}

func New() *Builder {
	return &Builder{m: &wasm.Module{}}
}

// Memory adds a memory with the given minimum and optional maximum pages.
func (b *Builder) Memory(min uint32, max ...uint32) *Builder {
	l := wasm.Limits{Min: min}
	if len(max) > 0 {
		l.Max = &max[0]
	}
	b.m.Memories = append(b.m.Memories, wasm.MemoryType{Limits: l})
	return b
}

// Table adds a funcref table holding funcs at offset 0.
func (b *Builder) Table(funcs ...uint32) *Builder {
	n := uint32(len(funcs))
	b.m.Tables = append(b.m.Tables, wasm.TableType{Limits: wasm.Limits{Min: n, Max: &n}})
	if len(funcs) > 0 {
		b.m.Elements = append(b.m.Elements, wasm.ElementSegment{
			Offset: wasm.ConstExpr{wasm.I32Const(0), wasm.Op(wasm.OpEnd)},
			Funcs:  funcs,
		})
	}
	return b
}

// ImportFunc adds a function import and returns its index.
func (b *Builder) ImportFunc(module, field string, ft wasm.FuncType) uint32 {
	if len(b.m.Functions) > 0 {
		panic("wasmtest: imports must be added before functions")
	}
	b.m.Imports = append(b.m.Imports, wasm.Import{
		Module:    module,
		Field:     field,
		Kind:      wasm.ExternalFunc,
		TypeIndex: b.m.TypeIndex(ft),
	})
	return b.m.NumImportedFuncs() - 1
}

// Global adds a module defined global initialised with init and returns its index.
func (b *Builder) Global(vt wasm.ValueType, mutable bool, init wasm.Instruction) uint32 {
	b.m.Globals = append(b.m.Globals, wasm.Global{
		Type: wasm.GlobalType{Type: vt, Mutable: mutable},
		Init: wasm.ConstExpr{init, wasm.Op(wasm.OpEnd)},
	})
	return b.m.NumGlobals() - 1
}

// Func adds a function with the given body and returns its index. The final
// end is appended. A non-empty name exports the function under that name.
func (b *Builder) Func(name string, ft wasm.FuncType, locals []wasm.LocalEntry, code ...wasm.Instruction) uint32 {
	b.m.Functions = append(b.m.Functions, b.m.TypeIndex(ft))
	body := append(append([]wasm.Instruction(nil), code...), wasm.Op(wasm.OpEnd))
	b.m.Code = append(b.m.Code, wasm.FunctionBody{Locals: locals, Code: body})
	idx := b.m.NumFuncs() - 1
	if name != "" {
		b.Export(name, wasm.ExternalFunc, idx)
	}
	return idx
}

// Entry adds an exported entrypoint function of type () -> ().
func (b *Builder) Entry(code ...wasm.Instruction) uint32 {
	return b.Func(types.EntrypointExport, wasm.FuncType{}, nil, code...)
}

func (b *Builder) Export(name string, kind wasm.ExternalKind, idx uint32) *Builder {
	b.m.Exports = append(b.m.Exports, wasm.Export{Name: name, Kind: kind, Index: idx})
	return b
}

func (b *Builder) Start(idx uint32) *Builder {
	b.m.Start = &idx
	return b
}

// Custom adds a custom section placed after the given section.
func (b *Builder) Custom(name string, payload []byte, after wasm.SectionID) *Builder {
	b.m.Customs = append(b.m.Customs, wasm.CustomSection{Name: name, Payload: payload, After: after})
	return b
}

func (b *Builder) Module() *wasm.Module {
	return b.m
}

func (b *Builder) Bytes() []byte {
	return b.m.Encode()
}

// Sig is shorthand for a function type.
func Sig(params []wasm.ValueType, results ...wasm.ValueType) wasm.FuncType {
	return wasm.FuncType{Params: params, Results: results}
}
