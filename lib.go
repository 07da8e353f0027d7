// Package wasmmeter instruments WebAssembly modules with deterministic gas
// accounting and validates them against a restricted execution profile.
package wasmmeter

import (
	"github.com/rs/zerolog"

	"github.com/aspect-vm/wasmmeter/internal/api"
	"github.com/aspect-vm/wasmmeter/types"
)

// WasmCode is an alias for raw bytes of the wasm compiled code
type WasmCode []byte

// Checksum is the SHA-256 of a module blob.
type Checksum = types.Checksum

// Config is the pipeline configuration.
type Config = types.Config

// Meter is the main entry point to this library. It holds the configuration
// and logger every call runs with and keeps no other state between calls.
type Meter struct {
	config Config
	logger zerolog.Logger
}

// Option configures a Meter.
type Option func(*Meter)

// WithLogger sets the logger receiving diagnostics, such as malformed name
// section entries. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Meter) {
		m.logger = logger
	}
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(m *Meter) {
		m.config = cfg
	}
}

// NewMeter creates a new Meter. The configuration is checked up front so a
// bad cost model version or injector name fails here and not on first use.
func NewMeter(opts ...Option) (*Meter, error) {
	m := &Meter{
		config: types.DefaultConfig(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.config.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Config returns the configuration the meter runs with.
func (m *Meter) Config() Config {
	return m.config
}

// Instrument returns code with gas accounting injected. An implicit start
// function is exported as the entrypoint instead of running on instantiation.
// The result only depends on code and the configuration.
func (m *Meter) Instrument(code WasmCode) (WasmCode, error) {
	return api.Instrument(code, m.config, m.logger)
}

// Validate returns nil if code only uses allowed features and exports the
// entrypoint. Use types.ToMeterError to inspect the failure.
func (m *Meter) Validate(code WasmCode) error {
	return api.Validate(code, m.config)
}

// Instrument runs Meter.Instrument with the default configuration.
func Instrument(code WasmCode) (WasmCode, error) {
	return api.Instrument(code, types.DefaultConfig(), zerolog.Nop())
}

// Validate runs Meter.Validate with the default configuration.
func Validate(code WasmCode) error {
	return api.Validate(code, types.DefaultConfig())
}

// CreateChecksum performs the hashing of code the same way the host does.
func CreateChecksum(code WasmCode) Checksum {
	return types.NewChecksum(code)
}

// LibwasmmeterVersion returns the version of the library.
func LibwasmmeterVersion() string {
	return api.LibwasmmeterVersion()
}
