package backend

import (
	"fmt"
	"image"
)

// handle mutates the state of a Progressive session
type handle struct {
	p *Progressive
}

func (h *handle) SetOptions(opts Options) error {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	h.p.options = opts.Clone()
	return nil
}

func (h *handle) SetCamera(params CameraParams) error {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	params.ClipPlanes = append(params.ClipPlanes[:0:0], params.ClipPlanes...)
	h.p.camera = params
	return nil
}

func (h *handle) CreateRenderView(desc RenderViewDesc) (RenderViewID, error) {
	for _, display := range desc.Displays {
		switch display.Driver {
		case DriverFramebuffer:
			if desc.Framebuffer == nil {
				return 0, fmt.Errorf("display %q needs a framebuffer", display.Name)
			}
		case DriverPNG:
			if display.Path == "" {
				return 0, fmt.Errorf("display %q has no output path", display.Name)
			}
		default:
			return 0, fmt.Errorf("display %q: unknown driver %q", display.Name, display.Driver)
		}
	}

	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	h.p.nextID++
	id := RenderViewID(h.p.nextID)
	h.p.views[id] = desc
	return id, nil
}

func (h *handle) ModifyRenderView(id RenderViewID, resolution image.Point) error {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	desc, ok := h.p.views[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownRenderView, id)
	}
	desc.Resolution = resolution
	h.p.views[id] = desc
	return nil
}

func (h *handle) DeleteRenderView(id RenderViewID) {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	delete(h.p.views, id)
}

func (h *handle) CreateIntegrator(desc IntegratorDesc) (IntegratorID, error) {
	if !IsKnownIntegrator(desc.Name) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownIntegrator, desc.Name)
	}

	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	h.p.nextID++
	id := IntegratorID(h.p.nextID)
	h.p.integrators[id] = cloneIntegratorDesc(desc)
	return id, nil
}

func (h *handle) ModifyIntegrator(id IntegratorID, desc IntegratorDesc) error {
	if !IsKnownIntegrator(desc.Name) {
		return fmt.Errorf("%w: %q", ErrUnknownIntegrator, desc.Name)
	}

	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	if _, ok := h.p.integrators[id]; !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownIntegrator, id)
	}
	h.p.integrators[id] = cloneIntegratorDesc(desc)
	return nil
}

func cloneIntegratorDesc(desc IntegratorDesc) IntegratorDesc {
	params := make(map[string]any, len(desc.Params))
	for k, v := range desc.Params {
		params[k] = v
	}
	return IntegratorDesc{Name: desc.Name, Params: params}
}
