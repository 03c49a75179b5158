package renderpass

import (
	"fmt"
	"image"

	"github.com/df07/go-progressive-renderpass/pkg/backend"
)

// fakeSession is a stateful in-memory backend.Session that records calls.
// It is also its own Handle.
type fakeSession struct {
	interactive bool
	paused      bool
	version     int64
	sampling    bool
	active      backend.IntegratorID

	nextID      int64
	integrators map[backend.IntegratorID]backend.IntegratorDesc
	views       map[backend.RenderViewID]backend.RenderViewDesc
	options     backend.Options
	camera      backend.CameraParams

	acquires       int
	starts         int
	threadDeletes  int
	cameraPushes   int
	viewModifies   int
	renderOnce     []backend.Options
	renderOnceView []backend.RenderViewID

	// events lists mutating calls in order
	events []string

	startErr   error
	optionsErr error
}

func newFakeSession(interactive bool) *fakeSession {
	return &fakeSession{
		interactive: interactive,
		integrators: make(map[backend.IntegratorID]backend.IntegratorDesc),
		views:       make(map[backend.RenderViewID]backend.RenderViewDesc),
	}
}

func (f *fakeSession) IsInteractive() bool    { return f.interactive }
func (f *fakeSession) IsPauseRequested() bool { return f.paused }
func (f *fakeSession) DeleteRenderThread()    { f.threadDeletes++; f.sampling = false }
func (f *fakeSession) SceneVersion() int64    { return f.version }
func (f *fakeSession) IsSampling() bool       { return f.sampling }

func (f *fakeSession) Acquire() backend.Handle {
	f.acquires++
	f.events = append(f.events, "acquire")
	f.sampling = false
	f.version++
	return f
}

func (f *fakeSession) StartRender() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.events = append(f.events, "start")
	f.sampling = true
	return nil
}

func (f *fakeSession) RenderOnce(views []backend.RenderViewID, opts backend.Options) error {
	f.renderOnce = append(f.renderOnce, opts.Clone())
	f.renderOnceView = append(f.renderOnceView, views...)
	return nil
}

func (f *fakeSession) ActiveIntegrator() backend.IntegratorID { return f.active }

func (f *fakeSession) SetActiveIntegrator(id backend.IntegratorID) error {
	if _, ok := f.integrators[id]; !ok {
		return fmt.Errorf("%w: id %d", backend.ErrUnknownIntegrator, id)
	}
	f.sampling = false
	f.version++
	f.active = id
	f.events = append(f.events, "activate")
	return nil
}

func (f *fakeSession) activeName() string {
	return f.integrators[f.active].Name
}

func (f *fakeSession) SetOptions(opts backend.Options) error {
	if f.optionsErr != nil {
		return f.optionsErr
	}
	f.options = opts.Clone()
	f.events = append(f.events, "options")
	return nil
}

func (f *fakeSession) SetCamera(params backend.CameraParams) error {
	f.cameraPushes++
	f.events = append(f.events, "camera")
	f.camera = params
	return nil
}

func (f *fakeSession) CreateRenderView(desc backend.RenderViewDesc) (backend.RenderViewID, error) {
	f.nextID++
	id := backend.RenderViewID(f.nextID)
	f.views[id] = desc
	return id, nil
}

func (f *fakeSession) ModifyRenderView(id backend.RenderViewID, resolution image.Point) error {
	desc, ok := f.views[id]
	if !ok {
		return fmt.Errorf("%w: id %d", backend.ErrUnknownRenderView, id)
	}
	f.viewModifies++
	desc.Resolution = resolution
	f.views[id] = desc
	return nil
}

func (f *fakeSession) DeleteRenderView(id backend.RenderViewID) {
	delete(f.views, id)
}

func (f *fakeSession) CreateIntegrator(desc backend.IntegratorDesc) (backend.IntegratorID, error) {
	if !backend.IsKnownIntegrator(desc.Name) {
		return 0, fmt.Errorf("%w: %q", backend.ErrUnknownIntegrator, desc.Name)
	}
	f.nextID++
	id := backend.IntegratorID(f.nextID)
	f.integrators[id] = desc
	return id, nil
}

func (f *fakeSession) ModifyIntegrator(id backend.IntegratorID, desc backend.IntegratorDesc) error {
	if !backend.IsKnownIntegrator(desc.Name) {
		return fmt.Errorf("%w: %q", backend.ErrUnknownIntegrator, desc.Name)
	}
	if _, ok := f.integrators[id]; !ok {
		return fmt.Errorf("%w: id %d", backend.ErrUnknownIntegrator, id)
	}
	f.integrators[id] = desc
	return nil
}

// onlyView returns the single render view
func (f *fakeSession) onlyView() (backend.RenderViewID, backend.RenderViewDesc, bool) {
	for id, desc := range f.views {
		if len(f.views) == 1 {
			return id, desc, true
		}
	}
	return 0, backend.RenderViewDesc{}, false
}
