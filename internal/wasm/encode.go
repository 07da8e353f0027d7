package wasm

import (
	"encoding/binary"
)

// Encode serializes m. Custom sections are written after the section they
// followed when decoded. Encoding a decoded module yields a module that
// decodes to the same value.
func (m *Module) Encode() []byte {
	out := make([]byte, 0, 1024)
	out = append(out, magic...)
	out = append(out, version1...)
	out = m.appendCustoms(out, SectionCustom)
	for _, id := range sectionOrder {
		if payload, ok := m.encodeSection(id); ok {
			out = append(out, byte(id))
			out = appendU32(out, uint32(len(payload)))
			out = append(out, payload...)
		}
		out = m.appendCustoms(out, id)
	}
	return out
}

func (m *Module) appendCustoms(b []byte, after SectionID) []byte {
	for _, cs := range m.Customs {
		if cs.After != after {
			continue
		}
		payload := cs.Payload
		if cs.Name == nameSectionName && m.Names != nil {
			payload = m.Names.encode()
		}
		body := appendName(nil, cs.Name)
		body = append(body, payload...)
		b = append(b, byte(SectionCustom))
		b = appendU32(b, uint32(len(body)))
		b = append(b, body...)
	}
	return b
}

func (m *Module) encodeSection(id SectionID) ([]byte, bool) {
	var b []byte
	switch id {
	case SectionType:
		if len(m.Types) == 0 {
			return nil, false
		}
		b = appendU32(b, uint32(len(m.Types)))
		for _, t := range m.Types {
			b = append(b, 0x60)
			b = appendValueTypes(b, t.Params)
			b = appendValueTypes(b, t.Results)
		}
	case SectionImport:
		if len(m.Imports) == 0 {
			return nil, false
		}
		b = appendU32(b, uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			b = appendName(b, imp.Module)
			b = appendName(b, imp.Field)
			b = append(b, byte(imp.Kind))
			switch imp.Kind {
			case ExternalFunc:
				b = appendU32(b, imp.TypeIndex)
			case ExternalTable:
				b = append(b, ElemTypeFuncref)
				b = appendLimits(b, imp.Table.Limits)
			case ExternalMemory:
				b = appendLimits(b, imp.Memory.Limits)
			case ExternalGlobal:
				b = appendGlobalType(b, imp.Global)
			}
		}
	case SectionFunction:
		if len(m.Functions) == 0 {
			return nil, false
		}
		b = appendU32(b, uint32(len(m.Functions)))
		for _, ti := range m.Functions {
			b = appendU32(b, ti)
		}
	case SectionTable:
		if len(m.Tables) == 0 {
			return nil, false
		}
		b = appendU32(b, uint32(len(m.Tables)))
		for _, t := range m.Tables {
			b = append(b, ElemTypeFuncref)
			b = appendLimits(b, t.Limits)
		}
	case SectionMemory:
		if len(m.Memories) == 0 {
			return nil, false
		}
		b = appendU32(b, uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			b = appendLimits(b, mem.Limits)
		}
	case SectionGlobal:
		if len(m.Globals) == 0 {
			return nil, false
		}
		b = appendU32(b, uint32(len(m.Globals)))
		for _, g := range m.Globals {
			b = appendGlobalType(b, g.Type)
			b = appendCode(b, g.Init)
		}
	case SectionExport:
		if len(m.Exports) == 0 {
			return nil, false
		}
		b = appendU32(b, uint32(len(m.Exports)))
		for _, e := range m.Exports {
			b = appendName(b, e.Name)
			b = append(b, byte(e.Kind))
			b = appendU32(b, e.Index)
		}
	case SectionStart:
		if m.Start == nil {
			return nil, false
		}
		b = appendU32(b, *m.Start)
	case SectionElement:
		if len(m.Elements) == 0 {
			return nil, false
		}
		b = appendU32(b, uint32(len(m.Elements)))
		for _, e := range m.Elements {
			b = appendU32(b, 0)
			b = appendCode(b, e.Offset)
			b = appendU32(b, uint32(len(e.Funcs)))
			for _, f := range e.Funcs {
				b = appendU32(b, f)
			}
		}
	case SectionCode:
		if len(m.Code) == 0 {
			return nil, false
		}
		b = appendU32(b, uint32(len(m.Code)))
		for _, body := range m.Code {
			fb := appendU32(nil, uint32(len(body.Locals)))
			for _, l := range body.Locals {
				fb = appendU32(fb, l.Count)
				fb = append(fb, byte(l.Type))
			}
			fb = appendCode(fb, body.Code)
			b = appendU32(b, uint32(len(fb)))
			b = append(b, fb...)
		}
	case SectionData:
		if len(m.Data) == 0 {
			return nil, false
		}
		b = appendU32(b, uint32(len(m.Data)))
		for _, d := range m.Data {
			b = appendU32(b, 0)
			b = appendCode(b, d.Offset)
			b = appendU32(b, uint32(len(d.Init)))
			b = append(b, d.Init...)
		}
	default:
		return nil, false
	}
	return b, true
}

func appendValueTypes(b []byte, vts []ValueType) []byte {
	b = appendU32(b, uint32(len(vts)))
	for _, v := range vts {
		b = append(b, byte(v))
	}
	return b
}

func appendLimits(b []byte, l Limits) []byte {
	if l.Max == nil {
		b = append(b, 0x00)
		return appendU32(b, l.Min)
	}
	b = append(b, 0x01)
	b = appendU32(b, l.Min)
	return appendU32(b, *l.Max)
}

func appendGlobalType(b []byte, gt GlobalType) []byte {
	b = append(b, byte(gt.Type))
	if gt.Mutable {
		return append(b, 0x01)
	}
	return append(b, 0x00)
}

func appendCode(b []byte, code []Instruction) []byte {
	for _, in := range code {
		b = AppendInstruction(b, in)
	}
	return b
}

// AppendInstruction appends the binary encoding of in to b.
func AppendInstruction(b []byte, in Instruction) []byte {
	if in.Opcode.Prefixed() {
		b = append(b, prefixMisc)
		return appendU32(b, uint32(byte(in.Opcode)))
	}
	b = append(b, byte(in.Opcode))
	switch in.Opcode {
	case OpBlock, OpLoop, OpIf:
		b = appendSleb(b, int64(in.Block))
	case OpBr, OpBrIf, OpCall, OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet:
		b = appendU32(b, in.Index)
	case OpBrTable:
		b = appendU32(b, uint32(len(in.Targets)))
		for _, t := range in.Targets {
			b = appendU32(b, t)
		}
		b = appendU32(b, in.Index)
	case OpCallIndirect:
		b = appendU32(b, in.Index)
		b = append(b, 0x00)
	case OpMemorySize, OpMemoryGrow:
		b = append(b, 0x00)
	case OpI32Const:
		b = appendSleb(b, int64(in.I32()))
	case OpI64Const:
		b = appendSleb(b, in.I64())
	case OpF32Const:
		b = binary.LittleEndian.AppendUint32(b, uint32(in.Value))
	case OpF64Const:
		b = binary.LittleEndian.AppendUint64(b, in.Value)
	default:
		if _, ok := NaturalAlignment(in.Opcode); ok {
			b = appendU32(b, in.Mem.Align)
			b = appendU32(b, in.Mem.Offset)
		}
	}
	return b
}
