// Package wazero runs instrumented modules under the wazero runtime with a
// gas budget, for hosts and for tests of the instrumentation itself.
package wazero

import (
	"context"
	"fmt"
	"sync"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/aspect-vm/wasmmeter/internal/runtime/gas"
	"github.com/aspect-vm/wasmmeter/types"
)

// Config bounds the resources of every instance.
type Config struct {
	// MemoryLimit caps the linear memory of each instance.
	MemoryLimit datasize.ByteSize
}

// DefaultConfig returns the limits used when none are given.
func DefaultConfig() Config {
	return Config{MemoryLimit: 64 * datasize.MB}
}

// Runtime compiles instrumented modules once and instantiates them fresh
// for every call. It is safe for concurrent use.
type Runtime struct {
	runtime wazero.Runtime
	logger  zerolog.Logger

	mu      sync.Mutex
	modules map[types.Checksum]wazero.CompiledModule
}

// NewRuntime creates a wazero runtime and registers the env module that
// serves the charging function of host-function instrumented modules.
func NewRuntime(ctx context.Context, logger zerolog.Logger, cfg Config) (*Runtime, error) {
	pages := uint32(cfg.MemoryLimit / types.PageSize)
	if pages == 0 {
		return nil, fmt.Errorf("memory limit %s is smaller than one page", cfg.MemoryLimit.HR())
	}
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithMemoryLimitPages(pages))
	if err := registerHost(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, errors.Wrap(err, "registering host module")
	}
	return &Runtime{
		runtime: r,
		logger:  logger,
		modules: make(map[types.Checksum]wazero.CompiledModule),
	}, nil
}

// registerHost builds the env module exporting the charging function. The
// meter is taken from the context of the call.
func registerHost(ctx context.Context, r wazero.Runtime) error {
	_, err := r.NewHostModuleBuilder(types.GasImportModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
			m := meterFrom(ctx)
			if m == nil {
				panic(errors.New("no gas meter in context"))
			}
			if err := m.Consume(stack[0]); err != nil {
				panic(err)
			}
		}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
		Export(types.GasImportField).
		Instantiate(ctx)
	return err
}

// Compile compiles an instrumented module and returns the checksum it is
// stored under.
func (r *Runtime) Compile(ctx context.Context, code []byte) (types.Checksum, error) {
	checksum := types.NewChecksum(code)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[checksum]; ok {
		return checksum, nil
	}
	compiled, err := r.runtime.CompileModule(ctx, code)
	if err != nil {
		return types.Checksum{}, errors.Wrap(err, "compiling module")
	}
	r.modules[checksum] = compiled
	r.logger.Debug().Str("checksum", checksum.String()).Int("size", len(code)).Msg("module compiled")
	return checksum, nil
}

func (r *Runtime) getModule(checksum types.Checksum) (wazero.CompiledModule, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mod, ok := r.modules[checksum]
	return mod, ok
}

// Result is the outcome of a metered call.
type Result struct {
	Values       []uint64
	GasUsed      types.Gas
	GasRemaining types.Gas
}

// Call instantiates the module, gives it limit gas and calls the named
// export. The gas figures of the result are set even when the call fails.
// Running out of gas is reported as types.OutOfGasError for host-function
// instrumented modules and as a trap for mutable-global ones.
func (r *Runtime) Call(ctx context.Context, checksum types.Checksum, export string, limit types.Gas, params ...uint64) (*Result, error) {
	compiled, ok := r.getModule(checksum)
	if !ok {
		return nil, fmt.Errorf("module %s not found", checksum)
	}
	meter := &recordingMeter{LimitMeter: gas.NewLimitMeter(limit)}
	ctx = WithMeter(ctx, meter)

	cfg := wazero.NewModuleConfig().WithName("").WithStartFunctions()
	mod, err := r.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "instantiating module")
	}
	defer mod.Close(ctx)

	_, global := mod.ExportedGlobal(types.GasCounterExport).(api.MutableGlobal)
	if global {
		if err := SetGasLimit(mod, limit); err != nil {
			return nil, err
		}
	}

	fn := mod.ExportedFunction(export)
	if fn == nil {
		return nil, fmt.Errorf("function %q not exported", export)
	}
	values, callErr := fn.Call(ctx, params...)

	res := &Result{Values: values, GasRemaining: meter.Remaining()}
	if global {
		if res.GasRemaining, err = GasRemaining(mod); err != nil {
			return nil, err
		}
	}
	res.GasUsed = limit - res.GasRemaining

	r.logger.Debug().
		Str("checksum", checksum.String()).
		Str("export", export).
		Uint64("gas_used", res.GasUsed).
		Err(callErr).
		Msg("call finished")
	if callErr != nil {
		if oog := meter.failure(); oog != nil {
			return res, *oog
		}
		return res, errors.Wrapf(callErr, "calling %q", export)
	}
	return res, nil
}

// CallEntrypoint calls the function exported under types.EntrypointExport.
func (r *Runtime) CallEntrypoint(ctx context.Context, checksum types.Checksum, limit types.Gas) (*Result, error) {
	return r.Call(ctx, checksum, types.EntrypointExport, limit)
}

// Close releases the runtime and every compiled module.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	r.modules = map[types.Checksum]wazero.CompiledModule{}
	r.mu.Unlock()
	return r.runtime.Close(ctx)
}

// SetGasLimit sets the gas counter of a module instrumented with the mutable
// global backend.
func SetGasLimit(mod api.Module, limit types.Gas) error {
	g, ok := mod.ExportedGlobal(types.GasCounterExport).(api.MutableGlobal)
	if !ok {
		return fmt.Errorf("module does not export a mutable %q global", types.GasCounterExport)
	}
	g.Set(limit)
	return nil
}

// GasRemaining reads the gas counter of a module instrumented with the
// mutable global backend.
func GasRemaining(mod api.Module) (types.Gas, error) {
	g := mod.ExportedGlobal(types.GasCounterExport)
	if g == nil {
		return 0, fmt.Errorf("module does not export %q", types.GasCounterExport)
	}
	return g.Get(), nil
}

type meterKey struct{}

// WithMeter returns a context whose calls into env.gas charge m.
func WithMeter(ctx context.Context, m gas.Meter) context.Context {
	return context.WithValue(ctx, meterKey{}, m)
}

func meterFrom(ctx context.Context) gas.Meter {
	m, _ := ctx.Value(meterKey{}).(gas.Meter)
	return m
}

// recordingMeter remembers the charge that ran out, since the error does not
// survive the trip through the guest's stack unwinding.
type recordingMeter struct {
	*gas.LimitMeter
	mu  sync.Mutex
	oog *types.OutOfGasError
}

func (m *recordingMeter) Consume(amount types.Gas) error {
	err := m.LimitMeter.Consume(amount)
	if oog, ok := err.(types.OutOfGasError); ok {
		m.mu.Lock()
		m.oog = &oog
		m.mu.Unlock()
	}
	return err
}

func (m *recordingMeter) failure() *types.OutOfGasError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.oog
}
