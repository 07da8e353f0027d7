package wasm

import (
	"fmt"
)

const nameSectionName = "name"

const (
	nameSubsectionModule   byte = 0
	nameSubsectionFunction byte = 1
	nameSubsectionLocal    byte = 2
)

// NameAssoc maps an index to a debug name.
type NameAssoc struct {
	Index uint32
	Name  string
}

// IndirectNameAssoc holds the local names of one function.
type IndirectNameAssoc struct {
	Index uint32
	Names []NameAssoc
}

// NameSubsection is a subsection of the name section that is kept verbatim.
type NameSubsection struct {
	ID      byte
	Payload []byte
}

// Names is the parsed content of the name custom section.
type Names struct {
	Module    *string
	Functions []NameAssoc
	Locals    []IndirectNameAssoc
	Other     []NameSubsection
}

func (n *Names) clone() *Names {
	c := &Names{
		Functions: append([]NameAssoc(nil), n.Functions...),
		Locals:    make([]IndirectNameAssoc, len(n.Locals)),
		Other:     make([]NameSubsection, len(n.Other)),
	}
	if n.Module != nil {
		name := *n.Module
		c.Module = &name
	}
	for i, l := range n.Locals {
		c.Locals[i] = IndirectNameAssoc{Index: l.Index, Names: append([]NameAssoc(nil), l.Names...)}
	}
	for i, o := range n.Other {
		c.Other[i] = NameSubsection{ID: o.ID, Payload: append([]byte(nil), o.Payload...)}
	}
	return c
}

// FunctionName returns the debug name of function idx.
func (n *Names) FunctionName(idx uint32) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Functions {
		if a.Index == idx {
			return a.Name, true
		}
	}
	return "", false
}

// NameError describes one entry of the name section that was dropped.
type NameError struct {
	Subsection byte
	Index      uint32
	Reason     string
}

func (e NameError) Error() string {
	return fmt.Sprintf("name section: subsection %d index %d: %s", e.Subsection, e.Index, e.Reason)
}

// ParseNames parses the name custom section of m into m.Names. Entries that
// refer to unknown functions or that break ordering are dropped and reported;
// parsing goes on past them. A name section that cannot be read at all is
// left as an opaque custom section and reported as a single error.
func ParseNames(m *Module) []NameError {
	var payload []byte
	found := false
	for _, cs := range m.Customs {
		if cs.Name == nameSectionName {
			payload, found = cs.Payload, true
			break
		}
	}
	if !found {
		return nil
	}
	names, errs, err := decodeNames(payload, m.NumFuncs())
	if err != nil {
		return []NameError{{Reason: err.Error()}}
	}
	m.Names = names
	return errs
}

func decodeNames(payload []byte, numFuncs uint32) (*Names, []NameError, error) {
	names := &Names{}
	var errs []NameError
	r := newReader(payload, 0)
	lastID := -1
	for !r.eof() {
		id, err := r.readByte()
		if err != nil {
			return nil, nil, err
		}
		size, err := r.readU32()
		if err != nil {
			return nil, nil, err
		}
		sr, err := r.sub(size)
		if err != nil {
			return nil, nil, err
		}
		if int(id) <= lastID {
			return nil, nil, fmt.Errorf("subsection %d out of order", id)
		}
		lastID = int(id)

		switch id {
		case nameSubsectionModule:
			name, err := sr.readName()
			if err != nil {
				return nil, nil, err
			}
			names.Module = &name
		case nameSubsectionFunction:
			assocs, err := readNameMap(sr)
			if err != nil {
				return nil, nil, err
			}
			names.Functions, errs = filterNameMap(assocs, id, numFuncs, errs)
		case nameSubsectionLocal:
			n, err := sr.readU32()
			if err != nil {
				return nil, nil, err
			}
			var prev *uint32
			for i := uint32(0); i < n; i++ {
				fidx, err := sr.readU32()
				if err != nil {
					return nil, nil, err
				}
				locals, err := readNameMap(sr)
				if err != nil {
					return nil, nil, err
				}
				switch {
				case fidx >= numFuncs:
					errs = append(errs, NameError{Subsection: id, Index: fidx, Reason: "function index out of bounds"})
					continue
				case prev != nil && fidx <= *prev:
					errs = append(errs, NameError{Subsection: id, Index: fidx, Reason: "function indices not in increasing order"})
					continue
				}
				p := fidx
				prev = &p
				names.Locals = append(names.Locals, IndirectNameAssoc{Index: fidx, Names: locals})
			}
		default:
			names.Other = append(names.Other, NameSubsection{ID: id, Payload: sr.buf})
			continue
		}
		if !sr.eof() {
			return nil, nil, fmt.Errorf("subsection %d has %d trailing bytes", id, len(sr.buf)-sr.pos)
		}
	}
	return names, errs, nil
}

func readNameMap(r *reader) ([]NameAssoc, error) {
	return readVector(r, "name map", func(r *reader) (NameAssoc, error) {
		idx, err := r.readU32()
		if err != nil {
			return NameAssoc{}, err
		}
		name, err := r.readName()
		if err != nil {
			return NameAssoc{}, err
		}
		return NameAssoc{Index: idx, Name: name}, nil
	})
}

func filterNameMap(assocs []NameAssoc, id byte, limit uint32, errs []NameError) ([]NameAssoc, []NameError) {
	var out []NameAssoc
	for _, a := range assocs {
		switch {
		case a.Index >= limit:
			errs = append(errs, NameError{Subsection: id, Index: a.Index, Reason: "function index out of bounds"})
		case len(out) > 0 && a.Index <= out[len(out)-1].Index:
			errs = append(errs, NameError{Subsection: id, Index: a.Index, Reason: "indices not in increasing order"})
		default:
			out = append(out, a)
		}
	}
	return out, errs
}

func (n *Names) encode() []byte {
	var out []byte
	if n.Module != nil {
		out = appendSubsection(out, nameSubsectionModule, appendName(nil, *n.Module))
	}
	if len(n.Functions) > 0 {
		out = appendSubsection(out, nameSubsectionFunction, appendNameMap(nil, n.Functions))
	}
	if len(n.Locals) > 0 {
		b := appendU32(nil, uint32(len(n.Locals)))
		for _, l := range n.Locals {
			b = appendU32(b, l.Index)
			b = appendNameMap(b, l.Names)
		}
		out = appendSubsection(out, nameSubsectionLocal, b)
	}
	for _, o := range n.Other {
		out = appendSubsection(out, o.ID, o.Payload)
	}
	return out
}

func appendSubsection(b []byte, id byte, payload []byte) []byte {
	b = append(b, id)
	b = appendU32(b, uint32(len(payload)))
	return append(b, payload...)
}

func appendName(b []byte, name string) []byte {
	b = appendU32(b, uint32(len(name)))
	return append(b, name...)
}

func appendNameMap(b []byte, assocs []NameAssoc) []byte {
	b = appendU32(b, uint32(len(assocs)))
	for _, a := range assocs {
		b = appendU32(b, a.Index)
		b = appendName(b, a.Name)
	}
	return b
}
