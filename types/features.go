package types

import (
	"fmt"
)

// Feature names an optional WebAssembly proposal. The string values match the
// feature names used by wasmparser so diagnostics read the same on both sides.
type Feature string

const (
	FeatureMutableGlobal        Feature = "mutable_global"
	FeatureSaturatingFloatToInt Feature = "saturating_float_to_int"
	FeatureSignExtension        Feature = "sign_extension"
	FeatureReferenceTypes       Feature = "reference_types"
	FeatureMultiValue           Feature = "multi_value"
	FeatureBulkMemory           Feature = "bulk_memory"
	FeatureSIMD                 Feature = "simd"
	FeatureRelaxedSIMD          Feature = "relaxed_simd"
	FeatureThreads              Feature = "threads"
	FeatureTailCall             Feature = "tail_call"
	FeatureFloats               Feature = "floats"
	FeatureMultiMemory          Feature = "multi_memory"
	FeatureExceptions           Feature = "exceptions"
	FeatureMemory64             Feature = "memory64"
	FeatureExtendedConst        Feature = "extended_const"
	FeatureComponentModel       Feature = "component_model"
	FeatureFunctionReferences   Feature = "function_references"
	FeatureMemoryControl        Feature = "memory_control"
	FeatureGC                   Feature = "gc"
)

// AllFeatures lists every feature in a fixed order.
var AllFeatures = []Feature{
	FeatureMutableGlobal,
	FeatureSaturatingFloatToInt,
	FeatureSignExtension,
	FeatureReferenceTypes,
	FeatureMultiValue,
	FeatureBulkMemory,
	FeatureSIMD,
	FeatureRelaxedSIMD,
	FeatureThreads,
	FeatureTailCall,
	FeatureFloats,
	FeatureMultiMemory,
	FeatureExceptions,
	FeatureMemory64,
	FeatureExtendedConst,
	FeatureComponentModel,
	FeatureFunctionReferences,
	FeatureMemoryControl,
	FeatureGC,
}

// Representable reports whether the module codec can decode constructs of this
// feature at all. Constructs of other features are rejected while decoding,
// so enabling them in a Features set has no effect.
func (f Feature) Representable() bool {
	switch f {
	case FeatureMutableGlobal, FeatureSaturatingFloatToInt, FeatureSignExtension,
		FeatureMultiValue, FeatureFloats, FeatureExtendedConst:
		return true
	default:
		return false
	}
}

// Features is the allow-list a module is validated against.
type Features map[Feature]bool

// DefaultFeatures returns the restricted execution profile: mutable globals,
// sign extension and multi-value are allowed, everything else is rejected.
func DefaultFeatures() Features {
	return Features{
		FeatureMutableGlobal: true,
		FeatureSignExtension: true,
		FeatureMultiValue:    true,
	}
}

// Enabled reports whether f is allowed.
func (fs Features) Enabled(f Feature) bool {
	return fs[f]
}

// Validate rejects unknown feature names and features the codec cannot represent.
func (fs Features) Validate() error {
	for f, on := range fs {
		if !f.known() {
			return fmt.Errorf("unknown feature %q", f)
		}
		if on && !f.Representable() {
			return fmt.Errorf("feature %q cannot be enabled: the codec does not decode it", f)
		}
	}
	return nil
}

func (f Feature) known() bool {
	for _, k := range AllFeatures {
		if k == f {
			return true
		}
	}
	return false
}
