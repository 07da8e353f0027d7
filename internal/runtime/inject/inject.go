// Package inject rewrites function bodies so that every basic block charges
// its cost before it runs, trapping once the budget is exhausted.
package inject

import (
	"fmt"

	"github.com/aspect-vm/wasmmeter/internal/runtime/gas"
	"github.com/aspect-vm/wasmmeter/internal/wasm"
	"github.com/aspect-vm/wasmmeter/types"
)

// growHelperName is the debug name given to the synthesized memory.grow
// wrapper when the module carries a name section.
const growHelperName = "__gas_memory_grow"

var (
	growHelperType = wasm.FuncType{
		Params:  []wasm.ValueType{wasm.ValueTypeI32},
		Results: []wasm.ValueType{wasm.ValueTypeI32},
	}
	gasImportType = wasm.FuncType{
		Params: []wasm.ValueType{wasm.ValueTypeI64},
	}
)

type injector struct {
	m     *wasm.Module
	rules gas.Rules
	kind  types.InjectorKind

	// counter is the gas global of the mutable global backend.
	counter uint32
	// gasFunc is the imported charging function of the host backend.
	gasFunc uint32
	// growHelper is the function replacing memory.grow, if any.
	growHelper *uint32
}

// Inject returns an instrumented copy of m. With types.InjectorMutableGlobal
// the budget lives in an exported i64 global the host sets before a call;
// with types.InjectorHostFunction every charge calls the imported env.gas.
// m itself is left untouched and no module is returned on error.
func Inject(m *wasm.Module, rules gas.Rules, kind types.InjectorKind) (*wasm.Module, error) {
	inj := &injector{m: m.Clone(), rules: rules, kind: kind}

	switch kind {
	case types.InjectorMutableGlobal, "":
		inj.kind = types.InjectorMutableGlobal
		if err := inj.addCounter(); err != nil {
			return nil, err
		}
	case types.InjectorHostFunction:
		inj.addGasImport()
	default:
		return nil, types.InjectionError{Reason: fmt.Sprintf("unknown injector %q", kind)}
	}

	if rules.MemoryGrowCost() > 0 && usesMemoryGrow(inj.m) {
		idx := inj.m.NumFuncs()
		inj.growHelper = &idx
	}

	imported := inj.m.NumImportedFuncs()
	for i := range inj.m.Code {
		if err := inj.instrumentBody(imported+uint32(i), &inj.m.Code[i]); err != nil {
			return nil, err
		}
	}

	if inj.growHelper != nil {
		inj.addGrowHelper()
	}
	return inj.m, nil
}

func usesMemoryGrow(m *wasm.Module) bool {
	for _, body := range m.Code {
		for _, in := range body.Code {
			if in.Opcode == wasm.OpMemoryGrow {
				return true
			}
		}
	}
	return false
}

func (inj *injector) addCounter() error {
	if _, ok := inj.m.Export(types.GasCounterExport); ok {
		return types.InjectionError{Reason: fmt.Sprintf("export %q already exists", types.GasCounterExport)}
	}
	inj.counter = inj.m.NumGlobals()
	inj.m.Globals = append(inj.m.Globals, wasm.Global{
		Type: wasm.GlobalType{Type: wasm.ValueTypeI64, Mutable: true},
		Init: wasm.ConstExpr{wasm.I64Const(0), wasm.Op(wasm.OpEnd)},
	})
	inj.m.Exports = append(inj.m.Exports, wasm.Export{
		Name:  types.GasCounterExport,
		Kind:  wasm.ExternalGlobal,
		Index: inj.counter,
	})
	return nil
}

func (inj *injector) addGasImport() {
	inj.gasFunc = inj.m.NumImportedFuncs()
	shiftFuncIndices(inj.m, inj.gasFunc)
	inj.m.Imports = append(inj.m.Imports, wasm.Import{
		Module:    types.GasImportModule,
		Field:     types.GasImportField,
		Kind:      wasm.ExternalFunc,
		TypeIndex: inj.m.TypeIndex(gasImportType),
	})
}

func (inj *injector) instrumentBody(funcIdx uint32, body *wasm.FunctionBody) error {
	blocks, err := Blocks(body.Code, inj.rules)
	if err != nil {
		return types.InjectionError{FuncIndex: &funcIdx, Reason: err.Error()}
	}
	entry := uint64(inj.rules.CallPerLocalCost()) * body.NumLocals()

	out := make([]wasm.Instruction, 0, len(body.Code)+len(blocks)*10)
	next := 0
	for i, in := range body.Code {
		if next < len(blocks) && blocks[next].Start == i {
			cost := blocks[next].Cost
			if i == 0 {
				cost += entry
			}
			if cost > 0 {
				out = inj.charge(out, cost)
			}
			next++
		}
		switch {
		case in.Opcode == wasm.OpMemoryGrow && inj.growHelper != nil:
			out = append(out, wasm.Call(*inj.growHelper))
		case in.Opcode == wasm.OpCall && inj.kind == types.InjectorHostFunction && in.Index >= inj.gasFunc:
			out = append(out, wasm.Call(in.Index+1))
		default:
			out = append(out, in)
		}
	}
	body.Code = out
	return nil
}

// charge appends the instructions deducting a static cost.
func (inj *injector) charge(out []wasm.Instruction, cost uint64) []wasm.Instruction {
	if inj.kind == types.InjectorHostFunction {
		return append(out, wasm.I64Const(int64(cost)), wasm.Call(inj.gasFunc))
	}
	c := wasm.I64Const(int64(cost))
	return append(out,
		wasm.GlobalGet(inj.counter),
		c,
		wasm.Op(wasm.OpI64LtU),
		wasm.Block(wasm.OpIf, wasm.BlockEmpty),
		wasm.Op(wasm.OpUnreachable),
		wasm.Op(wasm.OpEnd),
		wasm.GlobalGet(inj.counter),
		c,
		wasm.Op(wasm.OpI64Sub),
		wasm.GlobalSet(inj.counter),
	)
}

// addGrowHelper appends the function that charges for the requested pages
// and then performs the original memory.grow.
func (inj *injector) addGrowHelper() {
	perPage := wasm.I64Const(int64(inj.rules.MemoryGrowCost()))
	var body wasm.FunctionBody
	if inj.kind == types.InjectorHostFunction {
		body.Code = []wasm.Instruction{
			wasm.LocalGet(0),
			wasm.Op(wasm.OpI64ExtendI32U),
			perPage,
			wasm.Op(wasm.OpI64Mul),
			wasm.Call(inj.gasFunc),
			wasm.LocalGet(0),
			wasm.Op(wasm.OpMemoryGrow),
			wasm.Op(wasm.OpEnd),
		}
	} else {
		body.Locals = []wasm.LocalEntry{{Count: 1, Type: wasm.ValueTypeI64}}
		body.Code = []wasm.Instruction{
			wasm.LocalGet(0),
			wasm.Op(wasm.OpI64ExtendI32U),
			perPage,
			wasm.Op(wasm.OpI64Mul),
			wasm.LocalSet(1),
			wasm.GlobalGet(inj.counter),
			wasm.LocalGet(1),
			wasm.Op(wasm.OpI64LtU),
			wasm.Block(wasm.OpIf, wasm.BlockEmpty),
			wasm.Op(wasm.OpUnreachable),
			wasm.Op(wasm.OpEnd),
			wasm.GlobalGet(inj.counter),
			wasm.LocalGet(1),
			wasm.Op(wasm.OpI64Sub),
			wasm.GlobalSet(inj.counter),
			wasm.LocalGet(0),
			wasm.Op(wasm.OpMemoryGrow),
			wasm.Op(wasm.OpEnd),
		}
	}
	inj.m.Functions = append(inj.m.Functions, inj.m.TypeIndex(growHelperType))
	inj.m.Code = append(inj.m.Code, body)
	if inj.m.Names != nil {
		inj.m.Names.Functions = append(inj.m.Names.Functions, wasm.NameAssoc{Index: *inj.growHelper, Name: growHelperName})
	}
}
