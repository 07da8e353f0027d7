package validate

import (
	"fmt"

	"github.com/aspect-vm/wasmmeter/internal/wasm"
	"github.com/aspect-vm/wasmmeter/types"
)

const (
	maxMemoryPages   = 65536
	maxTableElements = 10_000_000
)

func invalid(section wasm.SectionID, format string, args ...interface{}) error {
	return types.InvalidModuleError{Section: section.String(), Reason: fmt.Sprintf(format, args...)}
}

func unsupported(f types.Feature, format string, args ...interface{}) error {
	return types.UnsupportedFeatureError{Feature: f, Context: fmt.Sprintf(format, args...)}
}

func checkValueType(features types.Features, vt wasm.ValueType, format string, args ...interface{}) error {
	if vt.IsFloat() && !features.Enabled(types.FeatureFloats) {
		return unsupported(types.FeatureFloats, "%s of type %s", fmt.Sprintf(format, args...), vt)
	}
	return nil
}

// checkModule applies the module level rules in section order.
func checkModule(m *wasm.Module, features types.Features) error {
	checks := []func(*wasm.Module, types.Features) error{
		checkTypes,
		checkImports,
		checkFunctions,
		checkTables,
		checkMemories,
		checkGlobals,
		checkExports,
		checkStart,
		checkElements,
		checkData,
	}
	for _, check := range checks {
		if err := check(m, features); err != nil {
			return err
		}
	}
	return nil
}

func checkTypes(m *wasm.Module, features types.Features) error {
	for i, t := range m.Types {
		for _, p := range t.Params {
			if err := checkValueType(features, p, "type %d param", i); err != nil {
				return err
			}
		}
		for _, r := range t.Results {
			if err := checkValueType(features, r, "type %d result", i); err != nil {
				return err
			}
		}
		if len(t.Results) > 1 && !features.Enabled(types.FeatureMultiValue) {
			return unsupported(types.FeatureMultiValue, "type %d has %d results", i, len(t.Results))
		}
	}
	return nil
}

func checkImports(m *wasm.Module, features types.Features) error {
	for i, imp := range m.Imports {
		switch imp.Kind {
		case wasm.ExternalFunc:
			if int(imp.TypeIndex) >= len(m.Types) {
				return invalid(wasm.SectionImport, "import %d (%s.%s) refers to unknown type %d", i, imp.Module, imp.Field, imp.TypeIndex)
			}
		case wasm.ExternalTable:
			if err := checkLimits(wasm.SectionImport, imp.Table.Limits, maxTableElements); err != nil {
				return err
			}
		case wasm.ExternalMemory:
			if err := checkLimits(wasm.SectionImport, imp.Memory.Limits, maxMemoryPages); err != nil {
				return err
			}
		case wasm.ExternalGlobal:
			if err := checkValueType(features, imp.Global.Type, "imported global %s.%s", imp.Module, imp.Field); err != nil {
				return err
			}
			if imp.Global.Mutable && !features.Enabled(types.FeatureMutableGlobal) {
				return unsupported(types.FeatureMutableGlobal, "mutable global import %s.%s", imp.Module, imp.Field)
			}
		}
	}
	return nil
}

func checkFunctions(m *wasm.Module, _ types.Features) error {
	for i, ti := range m.Functions {
		if int(ti) >= len(m.Types) {
			return invalid(wasm.SectionFunction, "function %d refers to unknown type %d", m.NumImportedFuncs()+uint32(i), ti)
		}
	}
	return nil
}

func checkTables(m *wasm.Module, _ types.Features) error {
	for _, t := range m.Tables {
		if err := checkLimits(wasm.SectionTable, t.Limits, maxTableElements); err != nil {
			return err
		}
	}
	return nil
}

func checkMemories(m *wasm.Module, _ types.Features) error {
	for _, mem := range m.Memories {
		if err := checkLimits(wasm.SectionMemory, mem.Limits, maxMemoryPages); err != nil {
			return err
		}
	}
	return nil
}

func checkLimits(section wasm.SectionID, l wasm.Limits, bound uint32) error {
	if l.Min > bound {
		return invalid(section, "minimum %d exceeds the limit of %d", l.Min, bound)
	}
	if l.Max == nil {
		return nil
	}
	if *l.Max > bound {
		return invalid(section, "maximum %d exceeds the limit of %d", *l.Max, bound)
	}
	if l.Min > *l.Max {
		return invalid(section, "minimum %d is greater than maximum %d", l.Min, *l.Max)
	}
	return nil
}

func checkGlobals(m *wasm.Module, features types.Features) error {
	imported := m.NumImportedGlobals()
	for i, g := range m.Globals {
		idx := imported + uint32(i)
		if err := checkValueType(features, g.Type.Type, "global %d", idx); err != nil {
			return err
		}
		if err := checkConstExpr(m, features, wasm.SectionGlobal, g.Init, g.Type.Type); err != nil {
			return err
		}
	}
	return nil
}

func checkExports(m *wasm.Module, features types.Features) error {
	seen := make(map[string]struct{}, len(m.Exports))
	for _, e := range m.Exports {
		if _, dup := seen[e.Name]; dup {
			return invalid(wasm.SectionExport, "duplicate export name %q", e.Name)
		}
		seen[e.Name] = struct{}{}

		var size uint32
		switch e.Kind {
		case wasm.ExternalFunc:
			size = m.NumFuncs()
		case wasm.ExternalTable:
			size = m.NumTables()
		case wasm.ExternalMemory:
			size = m.NumMemories()
		case wasm.ExternalGlobal:
			size = m.NumGlobals()
		}
		if e.Index >= size {
			return invalid(wasm.SectionExport, "export %q refers to unknown %s %d", e.Name, e.Kind, e.Index)
		}
		if e.Kind == wasm.ExternalGlobal {
			gt, _ := m.GlobalType(e.Index)
			if gt.Mutable && !features.Enabled(types.FeatureMutableGlobal) {
				return unsupported(types.FeatureMutableGlobal, "mutable global export %q", e.Name)
			}
		}
	}
	return nil
}

func checkStart(m *wasm.Module, _ types.Features) error {
	if m.Start == nil {
		return nil
	}
	ft, ok := m.FuncType(*m.Start)
	if !ok {
		return invalid(wasm.SectionStart, "unknown function %d", *m.Start)
	}
	if len(ft.Params) != 0 || len(ft.Results) != 0 {
		return invalid(wasm.SectionStart, "start function %d has type %s", *m.Start, ft)
	}
	return nil
}

func checkElements(m *wasm.Module, features types.Features) error {
	for i, e := range m.Elements {
		if e.TableIndex >= m.NumTables() {
			return invalid(wasm.SectionElement, "segment %d refers to unknown table %d", i, e.TableIndex)
		}
		if err := checkConstExpr(m, features, wasm.SectionElement, e.Offset, wasm.ValueTypeI32); err != nil {
			return err
		}
		for _, f := range e.Funcs {
			if f >= m.NumFuncs() {
				return invalid(wasm.SectionElement, "segment %d refers to unknown function %d", i, f)
			}
		}
	}
	return nil
}

func checkData(m *wasm.Module, features types.Features) error {
	for i, d := range m.Data {
		if d.MemoryIndex >= m.NumMemories() {
			return invalid(wasm.SectionData, "segment %d refers to unknown memory %d", i, d.MemoryIndex)
		}
		if err := checkConstExpr(m, features, wasm.SectionData, d.Offset, wasm.ValueTypeI32); err != nil {
			return err
		}
	}
	return nil
}

// checkConstExpr checks that expr is a constant expression leaving exactly
// one value of type want. global.get may only read immutable imported globals.
func checkConstExpr(m *wasm.Module, features types.Features, section wasm.SectionID, expr wasm.ConstExpr, want wasm.ValueType) error {
	var stack []wasm.ValueType
	pop := func(vt wasm.ValueType, op wasm.Opcode) error {
		if len(stack) == 0 || stack[len(stack)-1] != vt {
			return invalid(section, "type mismatch in constant expression at %s", op)
		}
		stack = stack[:len(stack)-1]
		return nil
	}

	for i, in := range expr {
		if in.Opcode == wasm.OpEnd {
			if i != len(expr)-1 {
				return invalid(section, "unexpected end in constant expression")
			}
			break
		}
		if in.Opcode.TouchesFloats() && !features.Enabled(types.FeatureFloats) {
			return unsupported(types.FeatureFloats, "%s in constant expression", in.Opcode)
		}
		switch in.Opcode {
		case wasm.OpI32Const:
			stack = append(stack, wasm.ValueTypeI32)
		case wasm.OpI64Const:
			stack = append(stack, wasm.ValueTypeI64)
		case wasm.OpF32Const:
			stack = append(stack, wasm.ValueTypeF32)
		case wasm.OpF64Const:
			stack = append(stack, wasm.ValueTypeF64)
		case wasm.OpGlobalGet:
			if in.Index >= m.NumImportedGlobals() {
				return invalid(section, "constant expression reads global %d which is not imported", in.Index)
			}
			gt, _ := m.GlobalType(in.Index)
			if gt.Mutable {
				return invalid(section, "constant expression reads mutable global %d", in.Index)
			}
			stack = append(stack, gt.Type)
		case wasm.OpI32Add, wasm.OpI32Sub, wasm.OpI32Mul, wasm.OpI64Add, wasm.OpI64Sub, wasm.OpI64Mul:
			if !features.Enabled(types.FeatureExtendedConst) {
				return unsupported(types.FeatureExtendedConst, "%s in constant expression", in.Opcode)
			}
			vt := wasm.ValueTypeI32
			if in.Opcode >= wasm.OpI64Add {
				vt = wasm.ValueTypeI64
			}
			if err := pop(vt, in.Opcode); err != nil {
				return err
			}
			if err := pop(vt, in.Opcode); err != nil {
				return err
			}
			stack = append(stack, vt)
		default:
			return invalid(section, "%s is not allowed in a constant expression", in.Opcode)
		}
	}

	if len(stack) != 1 || stack[0] != want {
		return invalid(section, "constant expression must produce a single %s", want)
	}
	return nil
}
