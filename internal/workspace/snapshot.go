package workspace

import "sync/atomic"

// Provider hands out the current workspace snapshot. Get returns false until
// a first snapshot has been published.
type Provider interface {
	Get() (Workspace, bool)
}

// Holder keeps the current snapshot behind an atomic pointer so readers never
// block while an externally-driven sync replaces the whole snapshot at once.
type Holder struct {
	current atomic.Pointer[snapshotBox]
}

type snapshotBox struct {
	ws Workspace
}

// NewHolder returns an empty snapshot holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Get returns the current snapshot, or false when none has been published.
func (h *Holder) Get() (Workspace, bool) {
	box := h.current.Load()
	if box == nil {
		return nil, false
	}
	return box.ws, true
}

// Update atomically replaces the current snapshot.
func (h *Holder) Update(ws Workspace) {
	h.current.Store(&snapshotBox{ws: ws})
}
