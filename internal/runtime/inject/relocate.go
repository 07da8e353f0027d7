package inject

import (
	"github.com/aspect-vm/wasmmeter/internal/wasm"
)

const nameSection = "name"

// shiftFuncIndices makes room for a function import inserted at index at by
// incrementing every function reference outside code bodies. Calls inside
// bodies are rewritten while instrumenting.
func shiftFuncIndices(m *wasm.Module, at uint32) {
	shift := func(idx uint32) uint32 {
		if idx >= at {
			return idx + 1
		}
		return idx
	}
	for i, e := range m.Exports {
		if e.Kind == wasm.ExternalFunc {
			m.Exports[i].Index = shift(e.Index)
		}
	}
	if m.Start != nil {
		start := shift(*m.Start)
		m.Start = &start
	}
	for i := range m.Elements {
		for j, f := range m.Elements[i].Funcs {
			m.Elements[i].Funcs[j] = shift(f)
		}
	}
	if m.Names != nil {
		for i, a := range m.Names.Functions {
			m.Names.Functions[i].Index = shift(a.Index)
		}
		for i, l := range m.Names.Locals {
			m.Names.Locals[i].Index = shift(l.Index)
		}
		// Unknown subsections may hold function indices we cannot rewrite.
		m.Names.Other = nil
		return
	}
	// A name section that was never parsed cannot be renumbered.
	customs := m.Customs[:0]
	for _, cs := range m.Customs {
		if cs.Name != nameSection {
			customs = append(customs, cs)
		}
	}
	m.Customs = customs
}
