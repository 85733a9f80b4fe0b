package sim

import "github.com/NERVsystems/roadoverlay/pkg/scene"

// recorder is a scene.Renderer that only remembers where each handle was
// last placed. It is touched from the loop goroutine only.
type recorder struct {
	handles map[string]*recordHandle
}

type recordHandle struct {
	pos      scene.Vec3
	rotation float64
	released bool
}

func newRecorder() *recorder {
	return &recorder{handles: make(map[string]*recordHandle)}
}

func (r *recorder) NewHandle(id string) scene.Handle {
	h := &recordHandle{}
	r.handles[id] = h
	return h
}

func (r *recorder) position(id string) scene.Vec3 {
	if h, ok := r.handles[id]; ok {
		return h.pos
	}
	return scene.Vec3{}
}

func (h *recordHandle) SetPosition(v scene.Vec3)    { h.pos = v }
func (h *recordHandle) SetRotation(radians float64) { h.rotation = radians }
func (h *recordHandle) Release()                    { h.released = true }
