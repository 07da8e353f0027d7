// Package entrypoint moves a module's start function to a named export, so
// that the host decides when it runs instead of the instantiation step.
package entrypoint

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aspect-vm/wasmmeter/internal/wasm"
	"github.com/aspect-vm/wasmmeter/types"
)

// Normalize parses the name section and replaces the start section with an
// export of the start function under types.EntrypointExport. Name section
// entries that cannot be resolved are logged and dropped. A module without a
// start section is returned unchanged, so normalizing twice is a no-op.
func Normalize(m *wasm.Module, logger zerolog.Logger) (*wasm.Module, error) {
	for _, e := range wasm.ParseNames(m) {
		logger.Warn().
			Uint8("subsection", e.Subsection).
			Uint32("func_index", e.Index).
			Str("error", e.Reason).
			Msg("ignoring name section entry")
	}

	if m.Start == nil {
		return m, nil
	}
	start := *m.Start
	if start >= m.NumFuncs() {
		return nil, types.InjectionError{
			FuncIndex: &start,
			Reason:    fmt.Sprintf("start function index out of range (%d functions)", m.NumFuncs()),
		}
	}

	if existing, ok := m.Export(types.EntrypointExport); ok {
		if existing.Kind != wasm.ExternalFunc || existing.Index != start {
			return nil, types.InjectionError{
				FuncIndex: &start,
				Reason: fmt.Sprintf("export %q already bound to %s %d",
					types.EntrypointExport, existing.Kind, existing.Index),
			}
		}
	} else {
		m.Exports = append(m.Exports, wasm.Export{
			Name:  types.EntrypointExport,
			Kind:  wasm.ExternalFunc,
			Index: start,
		})
	}
	m.Start = nil

	logger.Debug().Uint32("func_index", start).Msg("start function exported as entrypoint")
	return m, nil
}
