package canvas

import "github.com/ha1tch/erd-toolkit/pkg/erd"

// DefaultHistoryLimit is the number of snapshots kept by default.
const DefaultHistoryLimit = 20

// History is a bounded undo/redo list of position snapshots.
// The cursor points at the snapshot matching the current diagram, or is
// -1 when nothing has been pushed.
type History struct {
	states  []erd.Snapshot
	current int
	limit   int
}

// NewHistory creates a history that keeps at most limit snapshots.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{
		states:  make([]erd.Snapshot, 0, limit),
		current: -1,
		limit:   limit,
	}
}

// Push records s as the newest state. Anything after the cursor is
// discarded; the oldest entry is evicted once the limit is exceeded.
func (h *History) Push(s erd.Snapshot) {
	h.states = append(h.states[:h.current+1], s.Clone())
	if len(h.states) > h.limit {
		drop := len(h.states) - h.limit
		// Release evicted snapshots instead of reslicing over them
		h.states = append(h.states[:0:0], h.states[drop:]...)
	}
	h.current = len(h.states) - 1
}

// Undo steps back one snapshot. It reports false at the start of history.
func (h *History) Undo() (erd.Snapshot, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.current--
	return h.states[h.current].Clone(), true
}

// Redo steps forward one snapshot. It reports false at the end of history.
func (h *History) Redo() (erd.Snapshot, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.current++
	return h.states[h.current].Clone(), true
}

// CanUndo reports whether Undo would succeed.
func (h *History) CanUndo() bool { return h.current > 0 }

// CanRedo reports whether Redo would succeed.
func (h *History) CanRedo() bool { return h.current < len(h.states)-1 }

// Current returns a copy of the snapshot at the cursor.
func (h *History) Current() (erd.Snapshot, bool) {
	if h.current < 0 {
		return nil, false
	}
	return h.states[h.current].Clone(), true
}

// Reset clears all entries.
func (h *History) Reset() {
	h.states = h.states[:0:0]
	h.current = -1
}

// Len returns the number of stored snapshots.
func (h *History) Len() int { return len(h.states) }

// Cursor returns the current index, -1 when empty.
func (h *History) Cursor() int { return h.current }

// Limit returns the maximum number of stored snapshots.
func (h *History) Limit() int { return h.limit }
