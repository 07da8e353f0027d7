package wasm

// Module is a decoded module. Indices in the function and global index spaces
// count imports first, followed by module defined entries.
type Module struct {
	Types     []FuncType
	Imports   []Import
	Functions []uint32
	Tables    []TableType
	Memories  []MemoryType
	Globals   []Global
	Exports   []Export
	Start     *uint32
	Elements  []ElementSegment
	Code      []FunctionBody
	Data      []DataSegment
	Customs   []CustomSection

	// Names is set by ParseNames. When non-nil the name custom section is
	// re-encoded from it.
	Names *Names
}

// NumImportedFuncs returns the number of imported functions.
func (m *Module) NumImportedFuncs() uint32 {
	return m.numImported(ExternalFunc)
}

// NumImportedGlobals returns the number of imported globals.
func (m *Module) NumImportedGlobals() uint32 {
	return m.numImported(ExternalGlobal)
}

func (m *Module) numImported(kind ExternalKind) uint32 {
	var n uint32
	for _, imp := range m.Imports {
		if imp.Kind == kind {
			n++
		}
	}
	return n
}

// NumFuncs returns the size of the function index space.
func (m *Module) NumFuncs() uint32 {
	return m.NumImportedFuncs() + uint32(len(m.Functions))
}

// NumGlobals returns the size of the global index space.
func (m *Module) NumGlobals() uint32 {
	return m.NumImportedGlobals() + uint32(len(m.Globals))
}

// NumTables returns the size of the table index space.
func (m *Module) NumTables() uint32 {
	return m.numImported(ExternalTable) + uint32(len(m.Tables))
}

// NumMemories returns the size of the memory index space.
func (m *Module) NumMemories() uint32 {
	return m.numImported(ExternalMemory) + uint32(len(m.Memories))
}

// FuncTypeIndex returns the type index of function idx.
func (m *Module) FuncTypeIndex(idx uint32) (uint32, bool) {
	for _, imp := range m.Imports {
		if imp.Kind != ExternalFunc {
			continue
		}
		if idx == 0 {
			return imp.TypeIndex, true
		}
		idx--
	}
	if int(idx) < len(m.Functions) {
		return m.Functions[idx], true
	}
	return 0, false
}

// FuncType returns the signature of function idx.
func (m *Module) FuncType(idx uint32) (FuncType, bool) {
	ti, ok := m.FuncTypeIndex(idx)
	if !ok || int(ti) >= len(m.Types) {
		return FuncType{}, false
	}
	return m.Types[ti], true
}

// GlobalType returns the type of global idx.
func (m *Module) GlobalType(idx uint32) (GlobalType, bool) {
	for _, imp := range m.Imports {
		if imp.Kind != ExternalGlobal {
			continue
		}
		if idx == 0 {
			return imp.Global, true
		}
		idx--
	}
	if int(idx) < len(m.Globals) {
		return m.Globals[idx].Type, true
	}
	return GlobalType{}, false
}

// Export returns the export with the given name.
func (m *Module) Export(name string) (Export, bool) {
	for _, e := range m.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}

// TypeIndex returns the index of a type equal to ft, appending one if none exists.
func (m *Module) TypeIndex(ft FuncType) uint32 {
	for i, t := range m.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// Clone returns a copy that shares no mutable state with m.
func (m *Module) Clone() *Module {
	c := &Module{
		Types:     make([]FuncType, len(m.Types)),
		Imports:   append([]Import(nil), m.Imports...),
		Functions: append([]uint32(nil), m.Functions...),
		Tables:    append([]TableType(nil), m.Tables...),
		Memories:  append([]MemoryType(nil), m.Memories...),
		Globals:   make([]Global, len(m.Globals)),
		Exports:   append([]Export(nil), m.Exports...),
		Elements:  make([]ElementSegment, len(m.Elements)),
		Code:      make([]FunctionBody, len(m.Code)),
		Data:      make([]DataSegment, len(m.Data)),
		Customs:   make([]CustomSection, len(m.Customs)),
	}
	for i, t := range m.Types {
		c.Types[i] = FuncType{
			Params:  append([]ValueType(nil), t.Params...),
			Results: append([]ValueType(nil), t.Results...),
		}
	}
	for i, g := range m.Globals {
		c.Globals[i] = Global{Type: g.Type, Init: cloneCode(g.Init)}
	}
	if m.Start != nil {
		start := *m.Start
		c.Start = &start
	}
	for i, e := range m.Elements {
		c.Elements[i] = ElementSegment{
			TableIndex: e.TableIndex,
			Offset:     cloneCode(e.Offset),
			Funcs:      append([]uint32(nil), e.Funcs...),
		}
	}
	for i, b := range m.Code {
		c.Code[i] = FunctionBody{
			Locals: append([]LocalEntry(nil), b.Locals...),
			Code:   cloneCode(b.Code),
		}
	}
	for i, d := range m.Data {
		c.Data[i] = DataSegment{
			MemoryIndex: d.MemoryIndex,
			Offset:      cloneCode(d.Offset),
			Init:        append([]byte(nil), d.Init...),
		}
	}
	for i, cs := range m.Customs {
		cs.Payload = append([]byte(nil), cs.Payload...)
		c.Customs[i] = cs
	}
	if m.Names != nil {
		c.Names = m.Names.clone()
	}
	return c
}

func cloneCode(code []Instruction) []Instruction {
	if code == nil {
		return nil
	}
	out := make([]Instruction, len(code))
	for i, in := range code {
		out[i] = in.clone()
	}
	return out
}
