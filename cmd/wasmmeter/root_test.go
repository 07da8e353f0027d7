package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspect-vm/wasmmeter/internal/wasm"
	"github.com/aspect-vm/wasmmeter/internal/wasm/wasmtest"
	"github.com/aspect-vm/wasmmeter/types"
)

func writeModule(t *testing.T) string {
	t.Helper()
	b := wasmtest.New()
	start := b.Func("", wasm.FuncType{}, nil, wasm.I32Const(1), wasm.Op(wasm.OpDrop))
	b.Start(start)
	path := filepath.Join(t.TempDir(), "start.wasm")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	t.Log(errOut.String())
	return out.String(), err
}

func TestInstrumentCommand(t *testing.T) {
	in := writeModule(t)
	out := filepath.Join(t.TempDir(), "out.wasm")

	_, err := run(t, "instrument", in, "-o", out)
	require.NoError(t, err)

	_, err = run(t, "validate", out)
	require.NoError(t, err)

	code, err := os.ReadFile(out)
	require.NoError(t, err)
	m, err := wasm.Decode(code)
	require.NoError(t, err)
	_, ok := m.Export(types.GasCounterExport)
	assert.True(t, ok)
}

func TestInstrumentToStdout(t *testing.T) {
	stdout, err := run(t, "instrument", writeModule(t))
	require.NoError(t, err)
	_, err = wasm.Decode([]byte(stdout))
	assert.NoError(t, err)
}

func TestInjectorFromEnvironment(t *testing.T) {
	t.Setenv("WASMMETER_INJECTOR", string(types.InjectorHostFunction))

	stdout, err := run(t, "instrument", writeModule(t))
	require.NoError(t, err)
	m, err := wasm.Decode([]byte(stdout))
	require.NoError(t, err)
	require.Len(t, m.Imports, 1)
	assert.Equal(t, types.GasImportField, m.Imports[0].Field)
}

func TestInjectorFromConfigFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "wasmmeter.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("injector: host_function\n"), 0o644))

	stdout, err := run(t, "--config", cfg, "instrument", writeModule(t))
	require.NoError(t, err)
	m, err := wasm.Decode([]byte(stdout))
	require.NoError(t, err)
	assert.Len(t, m.Imports, 1)
}

func TestValidateCommand(t *testing.T) {
	in := writeModule(t)

	_, err := run(t, "validate", in)
	assert.ErrorAs(t, err, &types.MissingEntrypointError{})

	stdout, err := run(t, "validate", "--json", in)
	require.Error(t, err)
	assert.Contains(t, stdout, `"missing_entrypoint"`)
	assert.Contains(t, stdout, `"valid": false`)
}

func TestUnknownInjector(t *testing.T) {
	_, err := run(t, "--injector", "stack_height", "instrument", writeModule(t))
	assert.ErrorContains(t, err, "unknown injector")
}

func TestCostsCommand(t *testing.T) {
	stdout, err := run(t, "costs")
	require.NoError(t, err)
	assert.Contains(t, stdout, "cost model v1")
	assert.Contains(t, stdout, "i32.add")
	assert.Contains(t, stdout, "15 + targets")

	stdout, err = run(t, "costs", "--csv")
	require.NoError(t, err)
	assert.Contains(t, stdout, "memory.grow,435000")
}

func TestVersionCommand(t *testing.T) {
	stdout, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "wasmmeter ")
	assert.Contains(t, stdout, "v1")
}
