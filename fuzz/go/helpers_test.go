//go:build go1.18

package gofuzz

import (
	"github.com/aspect-vm/wasmmeter/internal/wasm"
	"github.com/aspect-vm/wasmmeter/internal/wasm/wasmtest"
	"github.com/aspect-vm/wasmmeter/types"
)

// countdown builds a module whose entrypoint loops n times.
func countdown(n int32) []byte {
	b := wasmtest.New()
	b.Func(types.EntrypointExport, wasm.FuncType{}, []wasm.LocalEntry{{Count: 1, Type: wasm.ValueTypeI32}},
		wasm.I32Const(n),
		wasm.LocalSet(0),
		wasm.Block(wasm.OpLoop, wasm.BlockEmpty),
		wasm.LocalGet(0),
		wasm.I32Const(1),
		wasm.Op(wasm.OpI32Sub),
		wasm.LocalTee(0),
		wasm.Instruction{Opcode: wasm.OpBrIf, Index: 0},
		wasm.Op(wasm.OpEnd),
	)
	return b.Bytes()
}

// startOnly builds a module that only has a start function.
func startOnly() []byte {
	b := wasmtest.New()
	b.Memory(1)
	start := b.Func("", wasm.FuncType{}, nil,
		wasm.I32Const(1),
		wasm.Op(wasm.OpMemoryGrow),
		wasm.Op(wasm.OpDrop),
	)
	b.Start(start)
	return b.Bytes()
}
