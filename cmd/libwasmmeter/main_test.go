//go:build cgo

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspect-vm/wasmmeter/internal/wasm"
	"github.com/aspect-vm/wasmmeter/internal/wasm/wasmtest"
	"github.com/aspect-vm/wasmmeter/types"
)

func startModule() []byte {
	b := wasmtest.New()
	b.Memory(1)
	start := b.Func("", wasm.FuncType{}, nil,
		wasm.I32Const(7),
		wasm.I32Const(1),
		wasm.Op(wasm.OpMemoryGrow),
		wasm.Op(wasm.OpDrop),
		wasm.Op(wasm.OpDrop),
	)
	b.Start(start)
	return b.Bytes()
}

func TestInstrumentRoundTrip(t *testing.T) {
	out, ok := callInstrument(startModule())
	require.True(t, ok)

	m, err := wasm.Decode(out)
	require.NoError(t, err)
	_, ok = m.Export(types.EntrypointExport)
	assert.True(t, ok)
	_, ok = m.Export(types.GasCounterExport)
	assert.True(t, ok)

	msg, ok := callValidate(out)
	assert.True(t, ok, msg)
	assert.Empty(t, msg)
}

func TestInstrumentFailureReturnsNull(t *testing.T) {
	out, ok := callInstrument([]byte{0x00, 0x61, 0x73})
	assert.False(t, ok)
	assert.Nil(t, out)

	out, ok = callInstrument(nil)
	assert.False(t, ok)
	assert.Nil(t, out)
}

func TestValidateReturnsMessage(t *testing.T) {
	msg, ok := callValidate(startModule())
	assert.False(t, ok)
	assert.Equal(t, types.MissingEntrypointError{Name: types.EntrypointExport}.Error(), msg)

	b := wasmtest.New()
	b.Entry(wasm.F32Const(1), wasm.Op(wasm.OpDrop))
	msg, ok = callValidate(b.Bytes())
	assert.False(t, ok)
	assert.Contains(t, msg, `"floats"`)
}
