// Package validate checks modules against the restricted execution profile.
//
// Checks run in a fixed order: decoding (malformed input and constructs the
// codec refuses), module level rules section by section, the entrypoint
// export, and finally every function body in index order.
package validate

import (
	"github.com/hashicorp/go-multierror"

	"github.com/aspect-vm/wasmmeter/internal/wasm"
	"github.com/aspect-vm/wasmmeter/types"
)

// Validator holds the feature allow-list a module is checked against.
type Validator struct {
	Features types.Features
	// CollectAll reports every failing function body instead of the first one.
	CollectAll bool
}

// New returns a Validator for cfg.
func New(cfg types.Config) *Validator {
	return &Validator{Features: cfg.Features, CollectAll: cfg.CollectAll}
}

// Validate decodes bin and checks it against features.
func Validate(bin []byte, features types.Features) error {
	return (&Validator{Features: features}).Validate(bin)
}

// ValidateModule checks an already decoded module against features.
func ValidateModule(m *wasm.Module, features types.Features) error {
	return (&Validator{Features: features}).ValidateModule(m)
}

func (v *Validator) Validate(bin []byte) error {
	m, err := wasm.Decode(bin)
	if err != nil {
		return err
	}
	return v.ValidateModule(m)
}

func (v *Validator) ValidateModule(m *wasm.Module) error {
	if err := checkModule(m, v.Features); err != nil {
		return err
	}
	if !hasEntrypoint(m) {
		return types.MissingEntrypointError{Name: types.EntrypointExport}
	}

	var result *multierror.Error
	for i := range m.Code {
		err := checkFunction(m, v.Features, uint32(i))
		if err == nil {
			continue
		}
		if !v.CollectAll {
			return err
		}
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func hasEntrypoint(m *wasm.Module) bool {
	for _, e := range m.Exports {
		if e.Name == types.EntrypointExport && e.Kind == wasm.ExternalFunc {
			return true
		}
	}
	return false
}
