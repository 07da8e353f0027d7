package validate

import (
	"fmt"

	"github.com/aspect-vm/wasmmeter/internal/wasm"
	"github.com/aspect-vm/wasmmeter/types"
)

// unknown marks an operand of any type, produced after unreachable code.
const unknown wasm.ValueType = 0

type frame struct {
	opcode      wasm.Opcode
	params      []wasm.ValueType
	results     []wasm.ValueType
	height      int
	unreachable bool
}

// labelTypes are the operands a branch to this frame carries.
func (f *frame) labelTypes() []wasm.ValueType {
	if f.opcode == wasm.OpLoop {
		return f.params
	}
	return f.results
}

// funcChecker type checks one function body with an operand stack and a
// control stack.
type funcChecker struct {
	m        *wasm.Module
	features types.Features
	index    uint32
	sig      wasm.FuncType
	locals   []wasm.ValueType

	pc       int
	operands []wasm.ValueType
	controls []frame
}

type checkError struct {
	reason string
}

func (e checkError) Error() string {
	return e.reason
}

func failf(format string, args ...interface{}) error {
	return checkError{reason: fmt.Sprintf(format, args...)}
}

// checkFunction validates the body of the i-th module defined function.
func checkFunction(m *wasm.Module, features types.Features, i uint32) error {
	idx := m.NumImportedFuncs() + i
	ft, _ := m.FuncType(idx)
	body := m.Code[i]

	c := &funcChecker{m: m, features: features, index: idx, sig: ft}
	c.locals = append(c.locals, ft.Params...)
	for _, l := range body.Locals {
		if err := checkValueType(features, l.Type, "function %d local", idx); err != nil {
			return err
		}
		for n := uint32(0); n < l.Count; n++ {
			c.locals = append(c.locals, l.Type)
		}
	}

	c.pushFrame(wasm.OpBlock, nil, ft.Results)
	for pc, in := range body.Code {
		c.pc = pc
		if len(c.controls) == 0 {
			return c.typeError(failf("instructions after the function end"))
		}
		if err := c.step(in); err != nil {
			if _, ok := err.(checkError); ok {
				return c.typeError(err)
			}
			return err
		}
	}
	if len(c.controls) != 0 {
		return c.typeError(failf("function body must end with end"))
	}
	return nil
}

func (c *funcChecker) typeError(err error) error {
	return types.TypeCheckError{FuncIndex: c.index, Offset: c.pc, Reason: err.Error()}
}

func (c *funcChecker) unsupported(f types.Feature, format string, args ...interface{}) error {
	return types.UnsupportedFeatureError{
		Feature: f,
		Context: fmt.Sprintf("function %d at instruction %d: %s", c.index, c.pc, fmt.Sprintf(format, args...)),
	}
}

func (c *funcChecker) push(vts ...wasm.ValueType) {
	c.operands = append(c.operands, vts...)
}

func (c *funcChecker) pop() (wasm.ValueType, error) {
	top := &c.controls[len(c.controls)-1]
	if len(c.operands) == top.height {
		if top.unreachable {
			return unknown, nil
		}
		return 0, failf("type mismatch: expected a value but the stack is empty")
	}
	vt := c.operands[len(c.operands)-1]
	c.operands = c.operands[:len(c.operands)-1]
	return vt, nil
}

func (c *funcChecker) popExpect(want wasm.ValueType) (wasm.ValueType, error) {
	got, err := c.pop()
	if err != nil {
		return 0, failf("type mismatch: expected %s but the stack is empty", want)
	}
	if got != want && got != unknown && want != unknown {
		return 0, failf("type mismatch: expected %s, found %s", want, got)
	}
	if got == unknown {
		return want, nil
	}
	return got, nil
}

// popAll pops vts, given in stack order.
func (c *funcChecker) popAll(vts []wasm.ValueType) error {
	for i := len(vts) - 1; i >= 0; i-- {
		if _, err := c.popExpect(vts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *funcChecker) pushFrame(op wasm.Opcode, params, results []wasm.ValueType) {
	c.controls = append(c.controls, frame{
		opcode:  op,
		params:  params,
		results: results,
		height:  len(c.operands),
	})
	c.push(params...)
}

func (c *funcChecker) popFrame() (frame, error) {
	top := c.controls[len(c.controls)-1]
	if err := c.popAll(top.results); err != nil {
		return frame{}, err
	}
	if len(c.operands) != top.height {
		return frame{}, failf("type mismatch: %d values remaining at the end of the block", len(c.operands)-top.height)
	}
	c.controls = c.controls[:len(c.controls)-1]
	return top, nil
}

func (c *funcChecker) markUnreachable() {
	top := &c.controls[len(c.controls)-1]
	c.operands = c.operands[:top.height]
	top.unreachable = true
}

func (c *funcChecker) label(depth uint32) (*frame, error) {
	if int(depth) >= len(c.controls) {
		return nil, failf("unknown label %d", depth)
	}
	return &c.controls[len(c.controls)-1-int(depth)], nil
}

func (c *funcChecker) blockType(bt wasm.BlockType) (params, results []wasm.ValueType, err error) {
	if bt.IsEmpty() {
		return nil, nil, nil
	}
	if vt, ok := bt.Value(); ok {
		if err := checkValueType(c.features, vt, "function %d block result", c.index); err != nil {
			return nil, nil, err
		}
		return nil, []wasm.ValueType{vt}, nil
	}
	ti, _ := bt.TypeIndex()
	if !c.features.Enabled(types.FeatureMultiValue) {
		return nil, nil, c.unsupported(types.FeatureMultiValue, "block with type index %d", ti)
	}
	if int(ti) >= len(c.m.Types) {
		return nil, nil, failf("unknown type %d", ti)
	}
	ft := c.m.Types[ti]
	return ft.Params, ft.Results, nil
}

func (c *funcChecker) checkFeatures(op wasm.Opcode) error {
	switch {
	case op.IsSaturatingTrunc() && !c.features.Enabled(types.FeatureSaturatingFloatToInt):
		return c.unsupported(types.FeatureSaturatingFloatToInt, "%s", op)
	case op.TouchesFloats() && !c.features.Enabled(types.FeatureFloats):
		return c.unsupported(types.FeatureFloats, "%s", op)
	case op.IsSignExtension() && !c.features.Enabled(types.FeatureSignExtension):
		return c.unsupported(types.FeatureSignExtension, "%s", op)
	}
	return nil
}

func (c *funcChecker) checkMemory(in wasm.Instruction) error {
	if c.m.NumMemories() == 0 {
		return failf("%s requires a memory", in.Opcode)
	}
	if natural, ok := wasm.NaturalAlignment(in.Opcode); ok && in.Mem.Align > natural {
		return failf("alignment 2**%d of %s is larger than natural", in.Mem.Align, in.Opcode)
	}
	return nil
}

func (c *funcChecker) step(in wasm.Instruction) error {
	if err := c.checkFeatures(in.Opcode); err != nil {
		return err
	}

	switch in.Opcode {
	case wasm.OpUnreachable:
		c.markUnreachable()
	case wasm.OpNop:
	case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
		params, results, err := c.blockType(in.Block)
		if err != nil {
			return err
		}
		if in.Opcode == wasm.OpIf {
			if _, err := c.popExpect(i32); err != nil {
				return err
			}
		}
		if err := c.popAll(params); err != nil {
			return err
		}
		c.pushFrame(in.Opcode, params, results)
	case wasm.OpElse:
		f, err := c.popFrame()
		if err != nil {
			return err
		}
		if f.opcode != wasm.OpIf {
			return failf("else without a matching if")
		}
		c.pushFrame(wasm.OpElse, f.params, f.results)
	case wasm.OpEnd:
		f, err := c.popFrame()
		if err != nil {
			return err
		}
		if f.opcode == wasm.OpIf && !sameTypes(f.params, f.results) {
			return failf("if without else must leave its params unchanged")
		}
		c.push(f.results...)
	case wasm.OpBr:
		l, err := c.label(in.Index)
		if err != nil {
			return err
		}
		if err := c.popAll(l.labelTypes()); err != nil {
			return err
		}
		c.markUnreachable()
	case wasm.OpBrIf:
		if _, err := c.popExpect(i32); err != nil {
			return err
		}
		l, err := c.label(in.Index)
		if err != nil {
			return err
		}
		vts := l.labelTypes()
		if err := c.popAll(vts); err != nil {
			return err
		}
		c.push(vts...)
	case wasm.OpBrTable:
		return c.brTable(in)
	case wasm.OpReturn:
		if err := c.popAll(c.sig.Results); err != nil {
			return err
		}
		c.markUnreachable()
	case wasm.OpCall:
		ft, ok := c.m.FuncType(in.Index)
		if !ok {
			return failf("unknown function %d", in.Index)
		}
		if err := c.popAll(ft.Params); err != nil {
			return err
		}
		c.push(ft.Results...)
	case wasm.OpCallIndirect:
		if c.m.NumTables() == 0 {
			return failf("call_indirect requires a table")
		}
		if int(in.Index) >= len(c.m.Types) {
			return failf("unknown type %d", in.Index)
		}
		ft := c.m.Types[in.Index]
		if _, err := c.popExpect(i32); err != nil {
			return err
		}
		if err := c.popAll(ft.Params); err != nil {
			return err
		}
		c.push(ft.Results...)
	case wasm.OpDrop:
		if _, err := c.pop(); err != nil {
			return err
		}
	case wasm.OpSelect:
		return c.selectOp()
	case wasm.OpLocalGet, wasm.OpLocalSet, wasm.OpLocalTee:
		if int(in.Index) >= len(c.locals) {
			return failf("unknown local %d", in.Index)
		}
		vt := c.locals[in.Index]
		if in.Opcode != wasm.OpLocalGet {
			if _, err := c.popExpect(vt); err != nil {
				return err
			}
		}
		if in.Opcode != wasm.OpLocalSet {
			c.push(vt)
		}
	case wasm.OpGlobalGet, wasm.OpGlobalSet:
		gt, ok := c.m.GlobalType(in.Index)
		if !ok {
			return failf("unknown global %d", in.Index)
		}
		if in.Opcode == wasm.OpGlobalGet {
			c.push(gt.Type)
			return nil
		}
		if !gt.Mutable {
			return failf("global %d is immutable", in.Index)
		}
		if _, err := c.popExpect(gt.Type); err != nil {
			return err
		}
	default:
		s, ok := numeric[in.Opcode]
		if !ok {
			return failf("unknown instruction %s", in.Opcode)
		}
		if _, isMem := wasm.NaturalAlignment(in.Opcode); isMem || in.Opcode == wasm.OpMemorySize || in.Opcode == wasm.OpMemoryGrow {
			if err := c.checkMemory(in); err != nil {
				return err
			}
		}
		if err := c.popAll(s.pops); err != nil {
			return err
		}
		c.push(s.pushes...)
	}
	return nil
}

func (c *funcChecker) brTable(in wasm.Instruction) error {
	if _, err := c.popExpect(i32); err != nil {
		return err
	}
	def, err := c.label(in.Index)
	if err != nil {
		return err
	}
	arity := len(def.labelTypes())
	for _, t := range in.Targets {
		l, err := c.label(t)
		if err != nil {
			return err
		}
		vts := l.labelTypes()
		if len(vts) != arity {
			return failf("br_table target %d has arity %d, default has %d", t, len(vts), arity)
		}
		// Check the operands against each target without consuming them.
		saved := append([]wasm.ValueType(nil), c.operands...)
		if err := c.popAll(vts); err != nil {
			return err
		}
		c.operands = saved
	}
	if err := c.popAll(def.labelTypes()); err != nil {
		return err
	}
	c.markUnreachable()
	return nil
}

func (c *funcChecker) selectOp() error {
	if _, err := c.popExpect(i32); err != nil {
		return err
	}
	a, err := c.pop()
	if err != nil {
		return err
	}
	b, err := c.pop()
	if err != nil {
		return err
	}
	if a != b && a != unknown && b != unknown {
		return failf("type mismatch: select operands are %s and %s", b, a)
	}
	if a == unknown {
		a = b
	}
	c.push(a)
	return nil
}

func sameTypes(a, b []wasm.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
