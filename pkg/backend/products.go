package backend

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/df07/go-progressive-renderpass/pkg/core"
	"github.com/df07/go-progressive-renderpass/pkg/framebuffer"
)

// writeProducts writes every file display of the view. The first AOV of a
// display is written, color when it lists none.
func writeProducts(view *viewJob, logger core.Logger) error {
	for _, display := range view.desc.Displays {
		if display.Driver != DriverPNG {
			continue
		}
		if err := writePNG(view, display, logger); err != nil {
			return err
		}
	}
	return nil
}

func writePNG(view *viewJob, display Display, logger core.Logger) error {
	name := AovColor
	if len(display.Aovs) > 0 {
		name = display.Aovs[0]
	}
	format := framebuffer.DefaultFormat(name)
	size := view.size()

	fb := framebuffer.New([]framebuffer.AovDesc{{Name: name, Format: format}})
	fb.Resize(size.X, size.Y)
	fb.SetProjection(view.rays.projection())
	fb.Store(view.writeFrame)

	rb := framebuffer.NewRenderBuffer(display.Name)
	rb.Allocate(size.X, size.Y, format)
	fb.Blit([]framebuffer.AovBinding{{Name: name, Buffer: rb}}, nil, true, logger)

	if dir := filepath.Dir(display.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(display.Path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", display.Path, err)
	}
	if err := encodePNG(file, rb.Image()); err != nil {
		return fmt.Errorf("failed to write %s: %w", display.Path, err)
	}
	logger.Printf("Wrote %s (%s, %dx%d)\n", display.Path, name, size.X, size.Y)
	return nil
}

// encodePNG encodes img into w and closes it. A failed close is reported, the
// file may be truncated.
func encodePNG(w io.WriteCloser, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
