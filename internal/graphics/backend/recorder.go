package backend

import (
	"fmt"
	"sync"
)

// Call is one recorded backend request
type Call struct {
	Op   string
	Args []any
}

// Recorder is a Backend that keeps handle bookkeeping and a call log instead of
// talking to a GPU. Tests use it to check ordering and leaks.
type Recorder struct {
	mu    sync.Mutex
	next  Handle
	live  map[Handle]string
	calls []Call

	// Buffers keeps the last bytes written to each buffer
	Buffers map[Handle][]byte

	// Fail, when set, is consulted before every request and its error returned
	Fail func(op string) error
}

func NewRecorder() *Recorder {
	return &Recorder{
		live:    make(map[Handle]string),
		Buffers: make(map[Handle][]byte),
	}
}

// Live returns the number of handles created and not yet released
func (r *Recorder) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// LiveNames returns the names of the live handles
func (r *Recorder) LiveNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.live))
	for _, name := range r.live {
		out = append(out, name)
	}
	return out
}

// Calls returns a copy of the call log
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Ops returns only the operation names of the call log
func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Op
	}
	return out
}

// Count returns how many times op was called
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Writes returns every payload written to h, oldest first
func (r *Recorder) Writes(h Handle) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]byte
	for _, c := range r.calls {
		if c.Op == "WriteBuffer" && c.Args[0] == h {
			out = append(out, c.Args[2].([]byte))
		}
	}
	return out
}

// Reset clears the call log but keeps handle bookkeeping
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func (r *Recorder) record(op string, args ...any) error {
	if r.Fail != nil {
		if err := r.Fail(op); err != nil {
			return err
		}
	}
	r.calls = append(r.calls, Call{Op: op, Args: args})
	return nil
}

func (r *Recorder) create(op, name string) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(op, name); err != nil {
		return NoHandle, err
	}
	r.next++
	r.live[r.next] = name
	return r.next, nil
}

func (r *Recorder) CreateTexture(desc TextureDesc) (Handle, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return NoHandle, fmt.Errorf("texture %q: invalid size %dx%d", desc.Name, desc.Width, desc.Height)
	}
	return r.create("CreateTexture", desc.Name)
}

func (r *Recorder) CreateBuffer(desc BufferDesc) (Handle, error) {
	h, err := r.create("CreateBuffer", desc.Name)
	if err != nil {
		return h, err
	}
	r.mu.Lock()
	r.Buffers[h] = make([]byte, desc.Size)
	r.mu.Unlock()
	return h, nil
}

func (r *Recorder) CreateGeometry(desc GeometryDesc) (Handle, error) {
	if !SupportedIndex(desc.Indices.Type) {
		return NoHandle, fmt.Errorf("index type %d: %w", desc.Indices.Type, ErrUnsupported)
	}
	if !SupportedPrimitive(desc.Primitive) {
		return NoHandle, fmt.Errorf("primitive %d: %w", desc.Primitive, ErrUnsupported)
	}
	return r.create("CreateGeometry", desc.Name)
}

func (r *Recorder) WriteBuffer(h Handle, offset int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("WriteBuffer", h, offset, append([]byte(nil), data...)); err != nil {
		return err
	}
	buf, ok := r.Buffers[h]
	if !ok {
		return fmt.Errorf("write buffer %d: %w", h, ErrUnknownHandle)
	}
	if offset < 0 || offset+len(data) > len(buf) {
		return fmt.Errorf("write buffer %d: range [%d,%d) exceeds %d bytes", h, offset, offset+len(data), len(buf))
	}
	copy(buf[offset:], data)
	return nil
}

func (r *Recorder) Release(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("Release", h); err != nil {
		return err
	}
	if _, ok := r.live[h]; !ok {
		return fmt.Errorf("release %d: %w", h, ErrUnknownHandle)
	}
	delete(r.live, h)
	delete(r.Buffers, h)
	return nil
}

func (r *Recorder) simple(op string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record(op, args...)
}

func (r *Recorder) BeginFrame(slot int) error      { return r.simple("BeginFrame", slot) }
func (r *Recorder) EndFrame(slot int) error        { return r.simple("EndFrame", slot) }
func (r *Recorder) Present() error                 { return r.simple("Present") }
func (r *Recorder) BeginPass(name string) error    { return r.simple("BeginPass", name) }
func (r *Recorder) EndPass(name string) error      { return r.simple("EndPass", name) }
func (r *Recorder) BeginCompute(name string) error { return r.simple("BeginCompute", name) }
func (r *Recorder) EndCompute(name string) error   { return r.simple("EndCompute", name) }
func (r *Recorder) UsePipeline(p Pipeline) error   { return r.simple("UsePipeline", p) }
func (r *Recorder) BindFrame(b FrameBindings) error {
	return r.simple("BindFrame", b)
}

func (r *Recorder) SubmitDrawBatch(d Draw) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[d.Geometry]; !ok {
		return fmt.Errorf("draw geometry %d: %w", d.Geometry, ErrUnknownHandle)
	}
	return r.record("SubmitDrawBatch", d)
}

func (r *Recorder) DispatchCompute(target Handle, x, y, z int) error {
	return r.simple("DispatchCompute", target, x, y, z)
}

func (r *Recorder) BeginShadowMap(t ShadowTarget) error { return r.simple("BeginShadowMap", t) }
func (r *Recorder) EndShadowMap(t ShadowTarget) error   { return r.simple("EndShadowMap", t) }

func (r *Recorder) SetViewport(width, height int) {
	_ = r.simple("SetViewport", width, height)
}
