package entrypoint

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspect-vm/wasmmeter/internal/wasm"
	"github.com/aspect-vm/wasmmeter/internal/wasm/wasmtest"
	"github.com/aspect-vm/wasmmeter/types"
)

func testLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewConsoleWriter(zerolog.ConsoleTestWriter(t))).Level(zerolog.DebugLevel)
}

func TestNormalizeMovesStart(t *testing.T) {
	b := wasmtest.New()
	b.Func("other", wasm.FuncType{}, nil)
	start := b.Func("", wasm.FuncType{}, nil, wasm.Op(wasm.OpNop))
	b.Start(start)

	m, err := Normalize(b.Module(), testLogger(t))
	require.NoError(t, err)
	assert.Nil(t, m.Start)
	e, ok := m.Export(types.EntrypointExport)
	require.True(t, ok)
	assert.Equal(t, wasm.Export{Name: types.EntrypointExport, Kind: wasm.ExternalFunc, Index: start}, e)
	assert.Len(t, m.Exports, 2)
}

func TestNormalizeCreatesExportSection(t *testing.T) {
	b := wasmtest.New()
	start := b.Func("", wasm.FuncType{}, nil)
	b.Start(start)

	m, err := Normalize(b.Module(), testLogger(t))
	require.NoError(t, err)

	decoded, err := wasm.Decode(m.Encode())
	require.NoError(t, err)
	assert.Nil(t, decoded.Start)
	assert.Equal(t, []wasm.Export{{Name: types.EntrypointExport, Kind: wasm.ExternalFunc, Index: start}}, decoded.Exports)
}

func TestNormalizeWithoutStartIsUnchanged(t *testing.T) {
	b := wasmtest.New()
	b.Entry()
	before := b.Bytes()

	m, err := Normalize(b.Module(), testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, before, m.Encode())
}

func TestNormalizeIsIdempotent(t *testing.T) {
	b := wasmtest.New()
	start := b.Func("", wasm.FuncType{}, nil)
	b.Start(start)

	once, err := Normalize(b.Module(), testLogger(t))
	require.NoError(t, err)
	first := once.Encode()

	twice, err := Normalize(once, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, first, twice.Encode())
}

func TestNormalizeReusesMatchingExport(t *testing.T) {
	b := wasmtest.New()
	start := b.Entry()
	b.Start(start)

	m, err := Normalize(b.Module(), testLogger(t))
	require.NoError(t, err)
	assert.Nil(t, m.Start)
	assert.Len(t, m.Exports, 1)
}

func TestNormalizeConflictingExport(t *testing.T) {
	b := wasmtest.New()
	b.Entry()
	start := b.Func("", wasm.FuncType{}, nil)
	b.Start(start)

	_, err := Normalize(b.Module(), testLogger(t))
	var ie types.InjectionError
	require.ErrorAs(t, err, &ie)
	require.NotNil(t, ie.FuncIndex)
	assert.Equal(t, start, *ie.FuncIndex)
}

func TestNormalizeStartOutOfRange(t *testing.T) {
	b := wasmtest.New()
	b.Start(3)

	_, err := Normalize(b.Module(), testLogger(t))
	var ie types.InjectionError
	require.ErrorAs(t, err, &ie)
}

func TestNormalizeLogsBadNames(t *testing.T) {
	b := wasmtest.New()
	b.Entry()
	// function subsection naming function 9, which does not exist
	sub := append([]byte{0x01, 0x09}, wasmtest.Name("ghost")...)
	payload := append([]byte{0x01}, wasmtest.Uleb(uint64(len(sub)))...)
	payload = append(payload, sub...)
	b.Custom("name", payload, wasm.SectionCode)

	var buf bytes.Buffer
	m, err := Normalize(b.Module(), zerolog.New(&buf))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"func_index":9`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	require.NotNil(t, m.Names)
	assert.Empty(t, m.Names.Functions)
}
