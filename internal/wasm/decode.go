package wasm

import (
	"bytes"

	"github.com/aspect-vm/wasmmeter/types"
)

var (
	magic            = []byte{0x00, 0x61, 0x73, 0x6d}
	version1         = []byte{0x01, 0x00, 0x00, 0x00}
	componentVersion = []byte{0x0d, 0x00, 0x01, 0x00}
)

// maxLocals bounds the number of locals a single function may declare.
const maxLocals = 50000

// Decode parses a binary module. Constructs the Module type cannot represent
// are reported as types.UnsupportedFeatureError naming the proposal they
// belong to; anything else that does not parse is a types.FormatError.
func Decode(bin []byte) (*Module, error) {
	r := newReader(bin, 0)
	head, err := r.readN(4)
	if err != nil || !bytes.Equal(head, magic) {
		return nil, formatErrorf(0, "magic header not detected")
	}
	ver, err := r.readN(4)
	if err != nil {
		return nil, formatErrorf(4, "missing binary version")
	}
	if bytes.Equal(ver, componentVersion) {
		return nil, unsupported(types.FeatureComponentModel, "component binary version %x", ver)
	}
	if !bytes.Equal(ver, version1) {
		return nil, formatErrorf(4, "unknown binary version %x", ver)
	}

	m := &Module{}
	last := SectionCustom
	lastRank := 0
	for !r.eof() {
		start := r.offset()
		idb, err := r.readByte()
		if err != nil {
			return nil, r.wrap(err, "section id")
		}
		id := SectionID(idb)
		size, err := r.readU32()
		if err != nil {
			return nil, r.wrap(err, "section size")
		}
		sr, err := r.sub(size)
		if err != nil {
			return nil, formatErrorf(start, "%s section size %d exceeds remaining input", id, size)
		}

		switch id {
		case SectionCustom:
			name, err := sr.readName()
			if err != nil {
				return nil, sr.wrap(err, "custom section name")
			}
			m.Customs = append(m.Customs, CustomSection{
				Name:    name,
				Payload: append([]byte(nil), sr.buf[sr.pos:]...),
				After:   last,
			})
			continue
		case SectionDataCount:
			return nil, unsupported(types.FeatureBulkMemory, "data count section")
		case SectionTag:
			return nil, unsupported(types.FeatureExceptions, "tag section")
		}

		rank := sectionRank(id)
		if rank == 0 {
			return nil, formatErrorf(start, "unknown section id %d", idb)
		}
		if rank <= lastRank {
			return nil, formatErrorf(start, "%s section out of order", id)
		}
		lastRank, last = rank, id

		if err := decodeSection(m, id, sr); err != nil {
			return nil, err
		}
		if !sr.eof() {
			return nil, formatErrorf(sr.offset(), "%s section has trailing bytes", id)
		}
	}
	if len(m.Functions) != len(m.Code) {
		return nil, formatErrorf(len(bin), "function and code section have inconsistent lengths (%d vs %d)", len(m.Functions), len(m.Code))
	}
	return m, nil
}

func decodeSection(m *Module, id SectionID, r *reader) error {
	var err error
	switch id {
	case SectionType:
		m.Types, err = readVector(r, "type", readFuncType)
	case SectionImport:
		m.Imports, err = readVector(r, "import", readImport)
		if err == nil {
			err = checkIndexSpaces(m)
		}
	case SectionFunction:
		m.Functions, err = readVector(r, "function", (*reader).readU32)
	case SectionTable:
		m.Tables, err = readVector(r, "table", readTableType)
		if err == nil {
			err = checkIndexSpaces(m)
		}
	case SectionMemory:
		m.Memories, err = readVector(r, "memory", readMemoryType)
		if err == nil {
			err = checkIndexSpaces(m)
		}
	case SectionGlobal:
		m.Globals, err = readVector(r, "global", readGlobal)
	case SectionExport:
		m.Exports, err = readVector(r, "export", readExport)
	case SectionStart:
		var idx uint32
		idx, err = r.readU32()
		if err == nil {
			m.Start = &idx
		}
	case SectionElement:
		m.Elements, err = readVector(r, "element segment", readElement)
	case SectionCode:
		m.Code, err = readVector(r, "function body", readFunctionBody)
	case SectionData:
		m.Data, err = readVector(r, "data segment", readData)
	}
	return r.wrap(err, id.String()+" section")
}

// checkIndexSpaces rejects a second table or memory, which need proposals
// beyond the supported profile.
func checkIndexSpaces(m *Module) error {
	if m.NumTables() > 1 {
		return unsupported(types.FeatureReferenceTypes, "multiple tables")
	}
	if m.NumMemories() > 1 {
		return unsupported(types.FeatureMultiMemory, "multiple memories")
	}
	return nil
}

// valueTypeFeature maps type codes of other proposals to the feature they need.
func valueTypeFeature(b byte) (types.Feature, bool) {
	switch b {
	case 0x7b:
		return types.FeatureSIMD, true
	case 0x70, 0x6f:
		return types.FeatureReferenceTypes, true
	case 0x64, 0x63:
		return types.FeatureFunctionReferences, true
	case 0x69, 0x74:
		return types.FeatureExceptions, true
	case 0x6e, 0x6d, 0x6c, 0x6b, 0x6a, 0x71, 0x72, 0x73:
		return types.FeatureGC, true
	}
	return "", false
}

func valueTypeError(r *reader, b byte, what string) error {
	if f, ok := valueTypeFeature(b); ok {
		return unsupported(f, "%s type 0x%02x", what, b)
	}
	return formatErrorf(r.offset()-1, "invalid %s type 0x%02x", what, b)
}

func readValueType(r *reader) (ValueType, error) {
	b, err := r.readByte()
	if err != nil {
		return 0, err
	}
	switch v := ValueType(b); v {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		return v, nil
	}
	return 0, valueTypeError(r, b, "value")
}

func readFuncType(r *reader) (FuncType, error) {
	form, err := r.readByte()
	if err != nil {
		return FuncType{}, err
	}
	switch form {
	case 0x60:
	case 0x5e, 0x5f, 0x4e, 0x50, 0x4f:
		return FuncType{}, unsupported(types.FeatureGC, "composite type form 0x%02x", form)
	default:
		return FuncType{}, r.errorf("invalid function type form 0x%02x", form)
	}
	params, err := readVector(r, "param", readValueType)
	if err != nil {
		return FuncType{}, err
	}
	results, err := readVector(r, "result", readValueType)
	if err != nil {
		return FuncType{}, err
	}
	return FuncType{Params: params, Results: results}, nil
}

func readLimits(r *reader) (Limits, error) {
	flag, err := r.readByte()
	if err != nil {
		return Limits{}, err
	}
	switch flag {
	case 0x00, 0x01:
	case 0x02, 0x03:
		return Limits{}, unsupported(types.FeatureThreads, "shared limits")
	case 0x04, 0x05, 0x06, 0x07:
		return Limits{}, unsupported(types.FeatureMemory64, "64-bit limits")
	default:
		return Limits{}, r.errorf("invalid limits flags 0x%02x", flag)
	}
	min, err := r.readU32()
	if err != nil {
		return Limits{}, err
	}
	l := Limits{Min: min}
	if flag == 0x01 {
		max, err := r.readU32()
		if err != nil {
			return Limits{}, err
		}
		l.Max = &max
	}
	return l, nil
}

func readTableType(r *reader) (TableType, error) {
	elem, err := r.readByte()
	if err != nil {
		return TableType{}, err
	}
	if elem != ElemTypeFuncref {
		return TableType{}, valueTypeError(r, elem, "table element")
	}
	l, err := readLimits(r)
	return TableType{Limits: l}, err
}

func readMemoryType(r *reader) (MemoryType, error) {
	l, err := readLimits(r)
	return MemoryType{Limits: l}, err
}

func readGlobalType(r *reader) (GlobalType, error) {
	vt, err := readValueType(r)
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.readByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, r.errorf("invalid mutability 0x%02x", mut)
	}
	return GlobalType{Type: vt, Mutable: mut == 1}, nil
}

func readExternalKind(r *reader) (ExternalKind, error) {
	b, err := r.readByte()
	if err != nil {
		return 0, err
	}
	switch k := ExternalKind(b); k {
	case ExternalFunc, ExternalTable, ExternalMemory, ExternalGlobal:
		return k, nil
	}
	if b == 0x04 {
		return 0, unsupported(types.FeatureExceptions, "tag import or export")
	}
	return 0, r.errorf("invalid external kind 0x%02x", b)
}

func readImport(r *reader) (Import, error) {
	var imp Import
	var err error
	if imp.Module, err = r.readName(); err != nil {
		return imp, err
	}
	if imp.Field, err = r.readName(); err != nil {
		return imp, err
	}
	if imp.Kind, err = readExternalKind(r); err != nil {
		return imp, err
	}
	switch imp.Kind {
	case ExternalFunc:
		imp.TypeIndex, err = r.readU32()
	case ExternalTable:
		imp.Table, err = readTableType(r)
	case ExternalMemory:
		imp.Memory, err = readMemoryType(r)
	case ExternalGlobal:
		imp.Global, err = readGlobalType(r)
	}
	return imp, err
}

func readExport(r *reader) (Export, error) {
	var e Export
	var err error
	if e.Name, err = r.readName(); err != nil {
		return e, err
	}
	if e.Kind, err = readExternalKind(r); err != nil {
		return e, err
	}
	e.Index, err = r.readU32()
	return e, err
}

func readGlobal(r *reader) (Global, error) {
	gt, err := readGlobalType(r)
	if err != nil {
		return Global{}, err
	}
	init, err := readExpr(r, "global initializer")
	if err != nil {
		return Global{}, err
	}
	return Global{Type: gt, Init: init}, nil
}

func readElement(r *reader) (ElementSegment, error) {
	flags, err := r.readU32()
	if err != nil {
		return ElementSegment{}, err
	}
	switch {
	case flags == 0:
	case flags <= 3:
		return ElementSegment{}, unsupported(types.FeatureBulkMemory, "element segment flags %d", flags)
	case flags <= 7:
		return ElementSegment{}, unsupported(types.FeatureReferenceTypes, "element segment flags %d", flags)
	default:
		return ElementSegment{}, r.errorf("invalid element segment flags %d", flags)
	}
	offset, err := readExpr(r, "element offset")
	if err != nil {
		return ElementSegment{}, err
	}
	funcs, err := readVector(r, "element function index", (*reader).readU32)
	if err != nil {
		return ElementSegment{}, err
	}
	return ElementSegment{Offset: offset, Funcs: funcs}, nil
}

func readData(r *reader) (DataSegment, error) {
	flags, err := r.readU32()
	if err != nil {
		return DataSegment{}, err
	}
	switch flags {
	case 0:
	case 1:
		return DataSegment{}, unsupported(types.FeatureBulkMemory, "passive data segment")
	case 2:
		mem, err := r.readU32()
		if err != nil {
			return DataSegment{}, err
		}
		if mem != 0 {
			return DataSegment{}, unsupported(types.FeatureMultiMemory, "data segment for memory %d", mem)
		}
		return DataSegment{}, unsupported(types.FeatureBulkMemory, "data segment with explicit memory index")
	default:
		return DataSegment{}, r.errorf("invalid data segment flags %d", flags)
	}
	offset, err := readExpr(r, "data offset")
	if err != nil {
		return DataSegment{}, err
	}
	n, err := r.readU32()
	if err != nil {
		return DataSegment{}, err
	}
	init, err := r.readN(int(n))
	if err != nil {
		return DataSegment{}, err
	}
	return DataSegment{Offset: offset, Init: append([]byte(nil), init...)}, nil
}

func readFunctionBody(r *reader) (FunctionBody, error) {
	size, err := r.readU32()
	if err != nil {
		return FunctionBody{}, err
	}
	br, err := r.sub(size)
	if err != nil {
		return FunctionBody{}, err
	}
	locals, err := readVector(br, "local", func(r *reader) (LocalEntry, error) {
		count, err := r.readU32()
		if err != nil {
			return LocalEntry{}, err
		}
		vt, err := readValueType(r)
		return LocalEntry{Count: count, Type: vt}, err
	})
	if err != nil {
		return FunctionBody{}, err
	}
	body := FunctionBody{Locals: locals}
	if body.NumLocals() > maxLocals {
		return FunctionBody{}, br.errorf("too many locals (%d)", body.NumLocals())
	}
	if body.Code, err = readExpr(br, "function body"); err != nil {
		return FunctionBody{}, err
	}
	if !br.eof() {
		return FunctionBody{}, br.errorf("function body has trailing bytes")
	}
	return body, nil
}
