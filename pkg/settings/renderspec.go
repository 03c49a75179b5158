package settings

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// RenderSpec describes the outputs rendered when no AOVs are bound
type RenderSpec struct {
	Camera   string          `mapstructure:"camera"`
	Products []RenderProduct `mapstructure:"renderProducts"`
}

// RenderProduct is one output written by a spec driven render
type RenderProduct struct {
	Name       string   `mapstructure:"name"`
	Path       string   `mapstructure:"path"`
	Driver     string   `mapstructure:"driver"`
	Resolution []int    `mapstructure:"resolution"`
	Aovs       []string `mapstructure:"aovs"`
}

// DecodeRenderSpec reads the render spec setting. An unset spec decodes to
// the zero RenderSpec.
func DecodeRenderSpec(p Provider) (RenderSpec, error) {
	var spec RenderSpec
	raw := Map(p, KeyRenderSpec)
	if raw == nil {
		return spec, nil
	}
	if err := mapstructure.WeakDecode(raw, &spec); err != nil {
		return RenderSpec{}, fmt.Errorf("invalid %s: %w", KeyRenderSpec, err)
	}
	return spec, nil
}
