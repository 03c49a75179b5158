package renderview

import (
	"fmt"
	"image"

	"github.com/df07/go-progressive-renderpass/pkg/backend"
)

// Context owns the backend render view: what is being rendered and at which
// resolution. The view is either absent or fully created; topology changes
// replace it through Create, resolution changes go through SetResolution.
type Context struct {
	id         backend.RenderViewID
	resolution image.Point
}

// NewContext creates a context without a render view
func NewContext() *Context {
	return &Context{}
}

// ID returns the render view, or false when none exists
func (c *Context) ID() (backend.RenderViewID, bool) {
	return c.id, c.id != 0
}

// Resolution returns the resolution last pushed to the backend
func (c *Context) Resolution() image.Point {
	return c.resolution
}

// Create replaces the current render view with a new one built from desc
func (c *Context) Create(handle backend.Handle, desc backend.RenderViewDesc) error {
	c.Delete(handle)

	id, err := handle.CreateRenderView(desc)
	if err != nil {
		return fmt.Errorf("failed to create render view: %w", err)
	}
	c.id = id
	c.resolution = desc.Resolution
	return nil
}

// Delete removes the render view if one exists
func (c *Context) Delete(handle backend.Handle) {
	if c.id == 0 {
		return
	}
	handle.DeleteRenderView(c.id)
	c.id = 0
}

// SetResolution pushes a new resolution to the existing view without
// recreating it. Without a view only the stored resolution changes.
func (c *Context) SetResolution(handle backend.Handle, resolution image.Point) error {
	if c.id != 0 {
		if err := handle.ModifyRenderView(c.id, resolution); err != nil {
			return fmt.Errorf("failed to resize render view: %w", err)
		}
	}
	c.resolution = resolution
	return nil
}
