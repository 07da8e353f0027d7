package wazero

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	"github.com/aspect-vm/wasmmeter/internal/runtime/gas"
	"github.com/aspect-vm/wasmmeter/internal/runtime/inject"
	"github.com/aspect-vm/wasmmeter/internal/wasm"
	"github.com/aspect-vm/wasmmeter/internal/wasm/wasmtest"
	"github.com/aspect-vm/wasmmeter/types"
)

type tableRules struct {
	weights map[wasm.Opcode]uint32
	perPage uint64
}

func (r tableRules) InstructionCost(in *wasm.Instruction) (uint32, bool) {
	return r.weights[in.Opcode], true
}

func (r tableRules) MemoryGrowCost() uint64 { return r.perPage }

func (r tableRules) CallPerLocalCost() uint32 { return 0 }

func withRuntime(t *testing.T) *Runtime {
	t.Helper()
	ctx := context.Background()
	rt, err := NewRuntime(ctx, zerolog.New(zerolog.NewConsoleWriter(zerolog.ConsoleTestWriter(t))), DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })
	return rt
}

func instrument(t *testing.T, m *wasm.Module, rules gas.Rules, kind types.InjectorKind) []byte {
	t.Helper()
	out, err := inject.Inject(m, rules, kind)
	require.NoError(t, err)
	return out.Encode()
}

// countdown loops n times, with n as its only parameter.
func countdown() *wasm.Module {
	b := wasmtest.New().Memory(1)
	b.Func("count", wasmtest.Sig([]wasm.ValueType{wasm.ValueTypeI32}), nil,
		wasm.Block(wasm.OpBlock, wasm.BlockEmpty),
		wasm.Block(wasm.OpLoop, wasm.BlockEmpty),
		wasm.LocalGet(0),
		wasm.Op(wasm.OpI32Eqz),
		wasm.Instruction{Opcode: wasm.OpBrIf, Index: 1},
		wasm.LocalGet(0),
		wasm.I32Const(1),
		wasm.Op(wasm.OpI32Sub),
		wasm.LocalSet(0),
		wasm.Instruction{Opcode: wasm.OpBr, Index: 0},
		wasm.Op(wasm.OpEnd),
		wasm.Op(wasm.OpEnd),
	)
	return b.Module()
}

func TestCallChargesStaticAndDynamicCost(t *testing.T) {
	ctx := context.Background()
	rt := withRuntime(t)

	b := wasmtest.New().Memory(1)
	b.Func("run", wasmtest.Sig(nil, wasm.ValueTypeI32), nil,
		wasm.I32Const(1),
		wasm.I32Const(2),
		wasm.Op(wasm.OpI32Add),
		wasm.I32Const(3),
		wasm.Op(wasm.OpI32Add),
		wasm.I32Const(4),
		wasm.Op(wasm.OpI32Add),
		wasm.Op(wasm.OpDrop),
		wasm.I32Const(2),
		wasm.Op(wasm.OpMemoryGrow),
	)
	rules := tableRules{weights: map[wasm.Opcode]uint32{wasm.OpI32Add: 1}, perPage: 100}
	checksum, err := rt.Compile(ctx, instrument(t, b.Module(), rules, types.InjectorMutableGlobal))
	require.NoError(t, err)

	res, err := rt.Call(ctx, checksum, "run", 203)
	require.NoError(t, err)
	assert.Equal(t, types.Gas(203), res.GasUsed)
	assert.Equal(t, types.Gas(0), res.GasRemaining)
	// memory.grow returns the previous size
	assert.Equal(t, []uint64{1}, res.Values)

	// the static charge goes through, the dynamic one traps
	res, err = rt.Call(ctx, checksum, "run", 202)
	require.Error(t, err)
	assert.Equal(t, types.Gas(3), res.GasUsed)
	assert.Equal(t, types.Gas(199), res.GasRemaining)
}

func TestCallCostIsLinearInIterations(t *testing.T) {
	ctx := context.Background()
	rt := withRuntime(t)
	checksum, err := rt.Compile(ctx, instrument(t, countdown(), gas.DefaultRules(), types.InjectorMutableGlobal))
	require.NoError(t, err)

	used := make([]types.Gas, 6)
	for n := range used {
		res, err := rt.Call(ctx, checksum, "count", types.MaxGas, uint64(n))
		require.NoError(t, err)
		used[n] = res.GasUsed
	}
	step := used[1] - used[0]
	assert.Greater(t, step, uint64(0))
	for n := 1; n < len(used); n++ {
		assert.Equal(t, step, used[n]-used[n-1], "iteration %d", n)
	}
}

func TestCallTrapsExactlyAtBudget(t *testing.T) {
	ctx := context.Background()
	rt := withRuntime(t)
	checksum, err := rt.Compile(ctx, instrument(t, countdown(), gas.DefaultRules(), types.InjectorMutableGlobal))
	require.NoError(t, err)

	res, err := rt.Call(ctx, checksum, "count", types.MaxGas, 3)
	require.NoError(t, err)
	needed := res.GasUsed

	res, err = rt.Call(ctx, checksum, "count", needed, 3)
	require.NoError(t, err)
	assert.Equal(t, types.Gas(0), res.GasRemaining)

	res, err = rt.Call(ctx, checksum, "count", needed-1, 3)
	require.Error(t, err)
	assert.Less(t, res.GasUsed, needed)
}

func TestTrapHappensBeforeEffects(t *testing.T) {
	ctx := context.Background()
	b := wasmtest.New().Memory(1)
	b.Export("memory", wasm.ExternalMemory, 0)
	b.Func("store", wasm.FuncType{}, nil,
		wasm.I32Const(0),
		wasm.I32Const(42),
		wasm.Instruction{Opcode: wasm.OpI32Store, Mem: wasm.MemArg{Align: 2}},
	)
	bin := instrument(t, b.Module(), gas.DefaultRules(), types.InjectorMutableGlobal)

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)
	mod, err := r.Instantiate(ctx, bin)
	require.NoError(t, err)

	// i32.const 1 + i32.const 1 + i32.store 4 + end 10
	const cost = 16
	require.NoError(t, SetGasLimit(mod, cost-1))
	_, err = mod.ExportedFunction("store").Call(ctx)
	require.Error(t, err)
	word, ok := mod.Memory().ReadUint32Le(0)
	require.True(t, ok)
	assert.Equal(t, uint32(0), word)
	remaining, err := GasRemaining(mod)
	require.NoError(t, err)
	assert.Equal(t, types.Gas(cost-1), remaining)

	require.NoError(t, SetGasLimit(mod, cost))
	_, err = mod.ExportedFunction("store").Call(ctx)
	require.NoError(t, err)
	raw, ok := mod.Memory().Read(0, 4)
	require.True(t, ok)
	assert.Equal(t, uint32(42), binary.LittleEndian.Uint32(raw))
	remaining, err = GasRemaining(mod)
	require.NoError(t, err)
	assert.Equal(t, types.Gas(0), remaining)
}

func TestHostFunctionBackendChargesTheSame(t *testing.T) {
	ctx := context.Background()
	rt := withRuntime(t)
	global, err := rt.Compile(ctx, instrument(t, countdown(), gas.DefaultRules(), types.InjectorMutableGlobal))
	require.NoError(t, err)
	host, err := rt.Compile(ctx, instrument(t, countdown(), gas.DefaultRules(), types.InjectorHostFunction))
	require.NoError(t, err)

	for _, n := range []uint64{0, 1, 7} {
		g, err := rt.Call(ctx, global, "count", types.MaxGas, n)
		require.NoError(t, err)
		h, err := rt.Call(ctx, host, "count", types.MaxGas, n)
		require.NoError(t, err)
		assert.Equal(t, g.GasUsed, h.GasUsed, "n=%d", n)
	}
}

func TestHostFunctionBackendOutOfGas(t *testing.T) {
	ctx := context.Background()
	rt := withRuntime(t)
	checksum, err := rt.Compile(ctx, instrument(t, countdown(), gas.DefaultRules(), types.InjectorHostFunction))
	require.NoError(t, err)

	res, err := rt.Call(ctx, checksum, "count", 50, 100)
	var oog types.OutOfGasError
	require.ErrorAs(t, err, &oog)
	assert.LessOrEqual(t, res.GasUsed, types.Gas(50))
	assert.Greater(t, oog.Wanted, oog.Available)
}

func TestCallUnknownModuleAndExport(t *testing.T) {
	ctx := context.Background()
	rt := withRuntime(t)

	_, err := rt.Call(ctx, types.Checksum{1}, "count", 10)
	require.Error(t, err)

	checksum, err := rt.Compile(ctx, instrument(t, countdown(), gas.DefaultRules(), types.InjectorMutableGlobal))
	require.NoError(t, err)
	_, err = rt.Call(ctx, checksum, "missing", 10)
	require.Error(t, err)
	_, err = rt.CallEntrypoint(ctx, checksum, 10)
	require.Error(t, err)
}

func TestCompileIsCachedByChecksum(t *testing.T) {
	ctx := context.Background()
	rt := withRuntime(t)
	bin := instrument(t, countdown(), gas.DefaultRules(), types.InjectorMutableGlobal)

	first, err := rt.Compile(ctx, bin)
	require.NoError(t, err)
	second, err := rt.Compile(ctx, bin)
	require.NoError(t, err)
	assert.Equal(t, types.NewChecksum(bin), first)
	assert.Equal(t, first, second)
	assert.Len(t, rt.modules, 1)
}

func TestNewRuntimeRejectsTinyMemoryLimit(t *testing.T) {
	_, err := NewRuntime(context.Background(), zerolog.Nop(), Config{MemoryLimit: 1 * datasize.KB})
	require.Error(t, err)
}
