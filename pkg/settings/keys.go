package settings

import (
	"time"

	"github.com/spf13/cast"
)

// Render setting keys
const (
	KeyConvergedSamplesPerPixel     = "convergedSamplesPerPixel"
	KeyConvergedVariance            = "convergedVariance"
	KeyIntegratorName               = "integratorName"
	KeyInteractiveIntegrator        = "interactiveIntegrator"
	KeyInteractiveIntegratorTimeout = "interactiveIntegratorTimeout" // milliseconds
	KeyRenderSpec                   = "experimental:renderSpec"

	// OptionPrefix marks settings forwarded verbatim as backend options
	OptionPrefix = "ri:"
	// IntegratorParamPrefix marks settings forwarded as integrator parameters
	IntegratorParamPrefix = "integrator:"
)

// Defaults used when a setting is unset
const (
	DefaultMaxSamples                   = 64
	DefaultPixelVariance                = 0.001
	DefaultIntegrator                   = "pathTracer"
	DefaultInteractiveIntegrator        = "directLighting"
	DefaultInteractiveIntegratorTimeout = 200 * time.Millisecond
)

// IntOK returns the setting as an int and whether it was set and convertible
func IntOK(p Provider, key string) (int, bool) {
	value, ok := p.Lookup(key)
	if !ok {
		return 0, false
	}
	i, err := cast.ToIntE(value)
	return i, err == nil
}

// Int returns the setting as an int, or def
func Int(p Provider, key string, def int) int {
	if i, ok := IntOK(p, key); ok {
		return i
	}
	return def
}

// FloatOK returns the setting as a float64 and whether it was set and convertible
func FloatOK(p Provider, key string) (float64, bool) {
	value, ok := p.Lookup(key)
	if !ok {
		return 0, false
	}
	f, err := cast.ToFloat64E(value)
	return f, err == nil
}

// Bool returns the setting as a bool, or def
func Bool(p Provider, key string, def bool) bool {
	value, ok := p.Lookup(key)
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(value)
	if err != nil {
		return def
	}
	return b
}

// String returns the setting as a string, or def when unset or empty
func String(p Provider, key string, def string) string {
	value, ok := p.Lookup(key)
	if !ok {
		return def
	}
	s, err := cast.ToStringE(value)
	if err != nil || s == "" {
		return def
	}
	return s
}

// Map returns the setting as a string keyed map, or nil
func Map(p Provider, key string) map[string]any {
	value, ok := p.Lookup(key)
	if !ok {
		return nil
	}
	m, err := cast.ToStringMapE(value)
	if err != nil {
		return nil
	}
	return m
}

// Milliseconds returns an integer millisecond setting as a duration, or def
func Milliseconds(p Provider, key string, def time.Duration) time.Duration {
	if ms, ok := IntOK(p, key); ok {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
