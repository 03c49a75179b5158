package framebuffer

import "sync"

// AovBinding binds a named renderer output to a client render buffer. The
// buffer is either bound directly or looked up by BufferID in an Index.
type AovBinding struct {
	Name       string
	Format     Format
	ClearValue [4]float64
	Buffer     *RenderBuffer
	BufferID   string
}

// Index looks render buffers up by identifier
type Index interface {
	RenderBuffer(id string) (*RenderBuffer, bool)
}

// Resolve returns the render buffer of a binding, or nil when it has none
func Resolve(binding AovBinding, index Index) *RenderBuffer {
	if binding.Buffer != nil {
		return binding.Buffer
	}
	if index == nil || binding.BufferID == "" {
		return nil
	}
	rb, ok := index.RenderBuffer(binding.BufferID)
	if !ok {
		return nil
	}
	return rb
}

// Registry is a concurrency safe Index
type Registry struct {
	mu      sync.RWMutex
	buffers map[string]*RenderBuffer
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{buffers: make(map[string]*RenderBuffer)}
}

// Insert adds or replaces a buffer under its ID
func (r *Registry) Insert(rb *RenderBuffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffers[rb.ID()] = rb
}

// RenderBuffer implements Index
func (r *Registry) RenderBuffer(id string) (*RenderBuffer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rb, ok := r.buffers[id]
	return rb, ok
}
