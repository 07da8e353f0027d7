package wasm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspect-vm/wasmmeter/internal/wasm"
	"github.com/aspect-vm/wasmmeter/internal/wasm/wasmtest"
	"github.com/aspect-vm/wasmmeter/types"
)

var (
	i32 = wasm.ValueTypeI32
	i64 = wasm.ValueTypeI64
	f64 = wasm.ValueTypeF64
)

func sampleModule() *wasm.Module {
	b := wasmtest.New()
	log := b.ImportFunc("env", "log", wasmtest.Sig([]wasm.ValueType{i32}))
	b.Memory(1, 16)
	g := b.Global(i64, true, wasm.I64Const(-7))
	helper := b.Func("helper", wasmtest.Sig([]wasm.ValueType{i32}, i32), []wasm.LocalEntry{{Count: 2, Type: i64}},
		wasm.LocalGet(0),
		wasm.Instruction{Opcode: wasm.OpI32Load, Mem: wasm.MemArg{Align: 2, Offset: 16}},
		wasm.I32Const(-1),
		wasm.Op(wasm.OpI32Add),
		wasm.Block(wasm.OpBlock, wasm.BlockOf(i32)),
		wasm.LocalGet(0),
		wasm.Instruction{Opcode: wasm.OpBrTable, Targets: []uint32{0, 0}, Index: 0},
		wasm.Op(wasm.OpEnd),
		wasm.Op(wasm.OpI32Extend8S),
	)
	b.Table(helper)
	b.Entry(
		wasm.I32Const(3),
		wasm.Call(log),
		wasm.GlobalGet(g),
		wasm.Op(wasm.OpDrop),
		wasm.F64Const(1.5),
		wasm.Op(wasm.OpI32TruncSatF64S),
		wasm.Instruction{Opcode: wasm.OpCallIndirect, Index: 1},
		wasm.Op(wasm.OpDrop),
		wasm.I32Const(1),
		wasm.Op(wasm.OpMemoryGrow),
		wasm.Op(wasm.OpDrop),
	)
	b.Custom("producers", []byte{0x01, 0x02}, wasm.SectionCustom)
	b.Custom("middle", []byte{0x04}, wasm.SectionExport)
	b.Custom("trailer", []byte{0x03}, wasm.SectionData)
	m := b.Module()
	m.Data = []wasm.DataSegment{{Offset: wasm.ConstExpr{wasm.I32Const(8), wasm.Op(wasm.OpEnd)}, Init: []byte("hi")}}
	return m
}

func TestRoundTrip(t *testing.T) {
	m := sampleModule()
	bin := m.Encode()

	decoded, err := wasm.Decode(bin)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
	assert.Equal(t, bin, decoded.Encode())
}

func TestDecodeKeepsCustomSectionPosition(t *testing.T) {
	bin := sampleModule().Encode()
	decoded, err := wasm.Decode(bin)
	require.NoError(t, err)

	got := map[string]wasm.SectionID{}
	for _, cs := range decoded.Customs {
		got[cs.Name] = cs.After
	}
	assert.Equal(t, map[string]wasm.SectionID{
		"producers": wasm.SectionCustom,
		"middle":    wasm.SectionExport,
		"trailer":   wasm.SectionData,
	}, got)
}

func TestCloneIsIndependent(t *testing.T) {
	m := sampleModule()
	c := m.Clone()
	require.Equal(t, m, c)

	c.Code[0].Code[0] = wasm.Op(wasm.OpNop)
	c.Elements[0].Funcs[0] = 99
	c.Types[0].Params[0] = f64
	assert.Equal(t, wasm.OpLocalGet, m.Code[0].Code[0].Opcode)
	assert.Equal(t, uint32(1), m.Elements[0].Funcs[0])
	assert.Equal(t, i32, m.Types[0].Params[0])
}

func TestDecodeUnsupportedFeatures(t *testing.T) {
	body := func(instr ...byte) []byte {
		b := append([]byte{0x00}, instr...)
		return wasmtest.EntryWithBody(append(b, 0x0b))
	}
	cases := map[string]struct {
		bin  []byte
		want types.Feature
	}{
		"simd opcode":            {bin: body(0xfd, 0x00), want: types.FeatureSIMD},
		"relaxed simd opcode":    {bin: body(0xfd, 0x80, 0x02), want: types.FeatureRelaxedSIMD},
		"atomic opcode":          {bin: body(0xfe, 0x00), want: types.FeatureThreads},
		"gc opcode":              {bin: body(0xfb, 0x00), want: types.FeatureGC},
		"return_call":            {bin: body(0x12, 0x00), want: types.FeatureTailCall},
		"throw":                  {bin: body(0x08, 0x00), want: types.FeatureExceptions},
		"ref.null":               {bin: body(0xd0, 0x70), want: types.FeatureReferenceTypes},
		"call_ref":               {bin: body(0x14, 0x00), want: types.FeatureFunctionReferences},
		"memory.copy":            {bin: body(0xfc, 0x0a, 0x00, 0x00), want: types.FeatureBulkMemory},
		"table.grow":             {bin: body(0xfc, 0x0f, 0x00), want: types.FeatureReferenceTypes},
		"memory.discard":         {bin: body(0xfc, 0x12), want: types.FeatureMemoryControl},
		"memory.size index":      {bin: body(0x3f, 0x01), want: types.FeatureMultiMemory},
		"memarg memory index":    {bin: body(0x28, 0x42, 0x01, 0x00), want: types.FeatureMultiMemory},
		"externref block":        {bin: body(0x02, 0x6f, 0x0b), want: types.FeatureReferenceTypes},
		"component":              {bin: []byte{0x00, 0x61, 0x73, 0x6d, 0x0d, 0x00, 0x01, 0x00}, want: types.FeatureComponentModel},
		"memory64":               {bin: wasmtest.Raw(wasmtest.Section(5, 0x01, 0x04, 0x01)), want: types.FeatureMemory64},
		"shared memory":          {bin: wasmtest.Raw(wasmtest.Section(5, 0x01, 0x03, 0x01, 0x02)), want: types.FeatureThreads},
		"second memory":          {bin: wasmtest.Raw(wasmtest.Section(5, 0x02, 0x00, 0x01, 0x00, 0x01)), want: types.FeatureMultiMemory},
		"second table":           {bin: wasmtest.Raw(wasmtest.Section(4, 0x02, 0x70, 0x00, 0x00, 0x70, 0x00, 0x00)), want: types.FeatureReferenceTypes},
		"externref table":        {bin: wasmtest.Raw(wasmtest.Section(4, 0x01, 0x6f, 0x00, 0x00)), want: types.FeatureReferenceTypes},
		"v128 param":             {bin: wasmtest.Raw(wasmtest.Section(1, 0x01, 0x60, 0x01, 0x7b, 0x00)), want: types.FeatureSIMD},
		"struct type":            {bin: wasmtest.Raw(wasmtest.Section(1, 0x01, 0x5f, 0x00)), want: types.FeatureGC},
		"tag section":            {bin: wasmtest.Raw(wasmtest.Section(13, 0x00)), want: types.FeatureExceptions},
		"data count section":     {bin: wasmtest.Raw(wasmtest.Section(12, 0x00)), want: types.FeatureBulkMemory},
		"passive element":        {bin: wasmtest.Raw(wasmtest.Section(9, 0x01, 0x01, 0x00, 0x00)), want: types.FeatureBulkMemory},
		"declarative element":    {bin: wasmtest.Raw(wasmtest.Section(9, 0x01, 0x05, 0x70, 0x00)), want: types.FeatureReferenceTypes},
		"passive data":           {bin: wasmtest.Raw(wasmtest.Section(11, 0x01, 0x01, 0x00)), want: types.FeatureBulkMemory},
		"data for memory one":    {bin: wasmtest.Raw(wasmtest.Section(11, 0x01, 0x02, 0x01)), want: types.FeatureMultiMemory},
		"tag export":             {bin: wasmtest.Raw(wasmtest.Section(7, append(append([]byte{0x01}, wasmtest.Name("t")...), 0x04, 0x00)...)), want: types.FeatureExceptions},
		"exnref local":           {bin: wasmtest.EntryWithBody([]byte{0x01, 0x01, 0x69, 0x0b}), want: types.FeatureExceptions},
		"non-nullable ref local": {bin: wasmtest.EntryWithBody([]byte{0x01, 0x01, 0x64, 0x70, 0x0b}), want: types.FeatureFunctionReferences},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := wasm.Decode(tc.bin)
			var ufe types.UnsupportedFeatureError
			require.ErrorAs(t, err, &ufe)
			assert.Equal(t, tc.want, ufe.Feature)
		})
	}
}

func TestDecodeFormatErrors(t *testing.T) {
	cases := map[string]struct {
		bin    []byte
		offset int
	}{
		"empty":            {bin: nil, offset: 0},
		"bad magic":        {bin: []byte{0x00, 0x61, 0x73, 0x6e, 0x01, 0x00, 0x00, 0x00}, offset: 0},
		"bad version":      {bin: []byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00}, offset: 4},
		"section too long": {bin: wasmtest.Raw([]byte{0x01, 0x05, 0x00}), offset: 8},
		"unknown section":  {bin: wasmtest.Raw(wasmtest.Section(14)), offset: 8},
		"out of order": {
			bin:    wasmtest.Raw(wasmtest.Section(3, 0x00), wasmtest.Section(1, 0x00)),
			offset: 11,
		},
		"overlong count":    {bin: wasmtest.Raw(wasmtest.Section(1, 0x80, 0x80, 0x80, 0x80, 0x80, 0x00)), offset: 15},
		"illegal opcode":    {bin: wasmtest.EntryWithBody([]byte{0x00, 0xff, 0x0b}), offset: -1},
		"missing end":       {bin: wasmtest.EntryWithBody([]byte{0x00, 0x01}), offset: -1},
		"bad mutability":    {bin: wasmtest.Raw(wasmtest.Section(6, 0x01, 0x7f, 0x02, 0x41, 0x00, 0x0b)), offset: -1},
		"code without func": {bin: wasmtest.Raw(wasmtest.Section(10, 0x01, 0x02, 0x00, 0x0b)), offset: -1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := wasm.Decode(tc.bin)
			var fe types.FormatError
			require.ErrorAs(t, err, &fe)
			if tc.offset >= 0 {
				assert.Equal(t, tc.offset, fe.Offset)
			}
		})
	}
}

func TestDecodeAcceptsRepresentableProposals(t *testing.T) {
	b := wasmtest.New()
	b.Func("", wasmtest.Sig(nil, i32, i32), nil, wasm.I32Const(1), wasm.I32Const(2))
	b.Entry(
		wasm.F64Const(2.5),
		wasm.Op(wasm.OpI64TruncSatF64U),
		wasm.Op(wasm.OpI64Extend32S),
		wasm.Op(wasm.OpDrop),
	)
	_, err := wasm.Decode(b.Bytes())
	require.NoError(t, err)
}

func nameSection(funcs ...wasm.NameAssoc) []byte {
	var sub []byte
	sub = append(sub, wasmtest.Uleb(uint64(len(funcs)))...)
	for _, f := range funcs {
		sub = append(sub, wasmtest.Uleb(uint64(f.Index))...)
		sub = append(sub, wasmtest.Name(f.Name)...)
	}
	mod := wasmtest.Name("mod")
	payload := append([]byte{0x00}, wasmtest.Uleb(uint64(len(mod)))...)
	payload = append(payload, mod...)
	payload = append(payload, 0x01)
	payload = append(payload, wasmtest.Uleb(uint64(len(sub)))...)
	return append(payload, sub...)
}

func TestParseNames(t *testing.T) {
	b := wasmtest.New()
	b.Func("", wasm.FuncType{}, nil)
	b.Entry()
	b.Custom("name", nameSection(
		wasm.NameAssoc{Index: 0, Name: "first"},
		wasm.NameAssoc{Index: 1, Name: "entry"},
		wasm.NameAssoc{Index: 7, Name: "ghost"},
	), wasm.SectionData)

	m, err := wasm.Decode(b.Bytes())
	require.NoError(t, err)

	errs := wasm.ParseNames(m)
	require.Len(t, errs, 1)
	assert.Equal(t, uint32(7), errs[0].Index)
	require.NotNil(t, m.Names)
	require.NotNil(t, m.Names.Module)
	assert.Equal(t, "mod", *m.Names.Module)
	assert.Equal(t, []wasm.NameAssoc{{Index: 0, Name: "first"}, {Index: 1, Name: "entry"}}, m.Names.Functions)

	name, ok := m.Names.FunctionName(1)
	assert.True(t, ok)
	assert.Equal(t, "entry", name)

	// the dropped entry does not come back after encoding
	again, err := wasm.Decode(m.Encode())
	require.NoError(t, err)
	assert.Empty(t, wasm.ParseNames(again))
	assert.Equal(t, m.Names, again.Names)
}

func TestParseNamesMalformed(t *testing.T) {
	b := wasmtest.New()
	b.Entry()
	b.Custom("name", []byte{0x01, 0x05, 0x01}, wasm.SectionData)
	m := b.Module()

	errs := wasm.ParseNames(m)
	require.Len(t, errs, 1)
	assert.Nil(t, m.Names)
	// the section survives as an opaque payload
	assert.Equal(t, []byte{0x01, 0x05, 0x01}, m.Customs[0].Payload)
}

func TestParseNamesWithoutSection(t *testing.T) {
	m := wasmtest.New().Module()
	assert.Empty(t, wasm.ParseNames(m))
	assert.Nil(t, m.Names)
}

func TestOpcodesSortedAndNamed(t *testing.T) {
	ops := wasm.Opcodes()
	require.NotEmpty(t, ops)
	for i := 1; i < len(ops); i++ {
		assert.Less(t, ops[i-1], ops[i])
	}
	assert.Equal(t, wasm.OpUnreachable, ops[0])
	assert.Equal(t, "memory.grow", wasm.OpMemoryGrow.String())
}
