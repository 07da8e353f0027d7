package api

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/aspect-vm/wasmmeter/internal/runtime/entrypoint"
	"github.com/aspect-vm/wasmmeter/internal/runtime/gas"
	"github.com/aspect-vm/wasmmeter/internal/runtime/inject"
	"github.com/aspect-vm/wasmmeter/internal/runtime/validate"
	"github.com/aspect-vm/wasmmeter/internal/wasm"
	"github.com/aspect-vm/wasmmeter/types"
)

// Instrument decodes code, moves an implicit start function to the
// entrypoint export, injects gas charges and encodes the result. The output
// only depends on code and cfg.
func Instrument(code []byte, cfg types.Config, logger zerolog.Logger) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	rules, err := gas.NewRules(cfg.CostModel)
	if err != nil {
		return nil, err
	}

	m, err := wasm.Decode(code)
	if err != nil {
		return nil, errors.Wrap(err, "decode module")
	}
	m, err = entrypoint.Normalize(m, logger)
	if err != nil {
		return nil, errors.Wrap(err, "normalize entrypoint")
	}
	m, err = inject.Inject(m, rules, cfg.Injector)
	if err != nil {
		return nil, errors.Wrap(err, "inject gas metering")
	}
	out := m.Encode()

	logger.Debug().
		Stringer("checksum", types.NewChecksum(code)).
		Stringer("instrumented", types.NewChecksum(out)).
		Int("size", len(code)).
		Int("instrumented_size", len(out)).
		Str("cost_model", string(rules.Version())).
		Str("injector", string(cfg.Injector)).
		Msg("instrumented module")
	return out, nil
}

// Validate checks code against the feature allow-list of cfg and requires
// the entrypoint export.
func Validate(code []byte, cfg types.Config) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return validate.New(cfg).Validate(code)
}
