package api

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

func startModule() []byte {
	b := wasmtest.New()
	b.Memory(1)
	start := b.Func("", wasm.FuncType{}, nil,
		wasm.I32Const(1),
		wasm.I32Const(2),
		wasm.Op(wasm.OpI32Add),
		wasm.Op(wasm.OpDrop),
		wasm.I32Const(1),
		wasm.Op(wasm.OpMemoryGrow),
		wasm.Op(wasm.OpDrop),
	)
	b.Start(start)
	return b.Bytes()
}

func TestInstrument(t *testing.T) {
	out, err := Instrument(startModule(), types.DefaultConfig(), testLogger(t))
	require.NoError(t, err)

	m, err := wasm.Decode(out)
	require.NoError(t, err)
	assert.Nil(t, m.Start)
	_, ok := m.Export(types.EntrypointExport)
	assert.True(t, ok)
	counter, ok := m.Export(types.GasCounterExport)
	require.True(t, ok)
	assert.Equal(t, wasm.ExternalGlobal, counter.Kind)

	// the instrumented module satisfies the validator
	require.NoError(t, Validate(out, types.DefaultConfig()))
}

func TestInstrumentIsDeterministic(t *testing.T) {
	in := startModule()
	first, err := Instrument(in, types.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := Instrument(in, types.DefaultConfig(), zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestInstrumentHostFunction(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Injector = types.InjectorHostFunction

	out, err := Instrument(startModule(), cfg, zerolog.Nop())
	require.NoError(t, err)

	m, err := wasm.Decode(out)
	require.NoError(t, err)
	require.Len(t, m.Imports, 1)
	assert.Equal(t, types.GasImportModule, m.Imports[0].Module)
	assert.Equal(t, types.GasImportField, m.Imports[0].Field)
	_, ok := m.Export(types.GasCounterExport)
	assert.False(t, ok)
}

func TestInstrumentLogsChecksums(t *testing.T) {
	var buf bytes.Buffer
	in := startModule()

	out, err := Instrument(in, types.DefaultConfig(), zerolog.New(&buf).Level(zerolog.DebugLevel))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), types.NewChecksum(in).String())
	assert.Contains(t, buf.String(), types.NewChecksum(out).String())
}

func TestCorruptInputProducesNoOutput(t *testing.T) {
	in := startModule()
	for _, bad := range [][]byte{nil, in[:len(in)/2], append([]byte{0xff}, in[1:]...)} {
		out, err := Instrument(bad, types.DefaultConfig(), zerolog.Nop())
		assert.Nil(t, out)
		assert.ErrorAs(t, err, &types.FormatError{})
		me := types.ToMeterError(err)
		require.NotNil(t, me)
		assert.Equal(t, "format", me.Kind())

		err = Validate(bad, types.DefaultConfig())
		assert.ErrorAs(t, err, &types.FormatError{})
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.CostModel = "v0"
	_, err := Instrument(startModule(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown cost model")

	cfg = types.DefaultConfig()
	cfg.Features[types.FeatureSIMD] = true
	assert.ErrorContains(t, Validate(startModule(), cfg), "simd")
}

func TestValidateNeedsEntrypoint(t *testing.T) {
	err := Validate(startModule(), types.DefaultConfig())
	assert.ErrorAs(t, err, &types.MissingEntrypointError{})
}

func TestVersion(t *testing.T) {
	assert.Regexp(t, `^\d+\.\d+\.\d+$`, LibwasmmeterVersion())
}
