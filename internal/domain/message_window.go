package domain

import "sort"

// MessageWindow is the ordered, duplicate-free set of messages materialized in
// an open conversation view, newest first.
type MessageWindow struct {
	byID     map[uint64]*Message
	ordered  []*Message
	forward  Cursor
	backward Cursor
	hasMore  bool

	// range already shown by the client when resumed from cursors
	seenFrom Cursor
	seenTo   Cursor
}

// NewMessageWindow returns an empty window
func NewMessageWindow() *MessageWindow {
	return &MessageWindow{byID: make(map[uint64]*Message)}
}

// ResumeWindow rebuilds a view from the cursors a client holds. Messages already
// inside [backward, forward] are treated as present.
func ResumeWindow(forward, backward Cursor, hasMore bool) *MessageWindow {
	w := NewMessageWindow()
	w.forward = forward
	w.backward = backward
	w.seenFrom = backward
	w.seenTo = forward
	w.hasMore = hasMore
	return w
}

// covers reports whether c lies inside the cursor range of a resumed window
func (w *MessageWindow) covers(c Cursor) bool {
	if w.seenTo.IsZero() || w.seenFrom.IsZero() {
		return false
	}
	return !c.Before(w.seenFrom) && !w.seenTo.Before(c)
}

// Merge unions msgs into the window keyed by id and re-sorts by (created_at, id) desc.
// Returns the messages that were not present before, newest first.
func (w *MessageWindow) Merge(msgs []*Message) []*Message {
	return w.merge(msgs, true, true)
}

// merge moves the forward cursor only when forward is set (or still empty), and
// the backward cursor likewise. A resumed forward cursor may carry only an id.
func (w *MessageWindow) merge(msgs []*Message, forward, backward bool) []*Message {
	var added []*Message
	for _, m := range msgs {
		if m == nil || m.ID == 0 {
			continue
		}
		if _, ok := w.byID[m.ID]; ok {
			continue
		}
		if w.covers(m.Cursor()) {
			continue
		}
		w.byID[m.ID] = m
		w.ordered = append(w.ordered, m)
		added = append(added, m)
	}
	if len(added) == 0 {
		return nil
	}
	newestFirst := func(list []*Message) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[j].Cursor().Before(list[i].Cursor())
		})
	}
	newestFirst(w.ordered)
	newestFirst(added)

	if head := added[0].Cursor(); w.forward.IsZero() || (forward && w.forward.Before(head)) {
		w.forward = head
	}
	if tail := added[len(added)-1].Cursor(); w.backward.IsZero() || (backward && tail.Before(w.backward)) {
		w.backward = tail
	}
	return added
}

// Prepend merges a forward (poll) fetch
func (w *MessageWindow) Prepend(msgs []*Message) []*Message {
	return w.merge(msgs, true, false)
}

// Append merges a backward (history) fetch and records whether older pages remain
func (w *MessageWindow) Append(msgs []*Message, hasMore bool) []*Message {
	added := w.merge(msgs, false, true)
	w.hasMore = hasMore
	return added
}

// Messages returns the window newest first
func (w *MessageWindow) Messages() []*Message {
	out := make([]*Message, len(w.ordered))
	copy(out, w.ordered)
	return out
}

// Len returns the number of messages in the window
func (w *MessageWindow) Len() int {
	return len(w.ordered)
}

// Contains reports whether a message id is in the window
func (w *MessageWindow) Contains(id uint64) bool {
	_, ok := w.byID[id]
	return ok
}

// ForwardCursor points at the newest message (poll from here)
func (w *MessageWindow) ForwardCursor() Cursor {
	return w.forward
}

// BackwardCursor points at the oldest message (load older from here)
func (w *MessageWindow) BackwardCursor() Cursor {
	return w.backward
}

// HasMore reports whether older history remains beyond the backward cursor
func (w *MessageWindow) HasMore() bool {
	return w.hasMore
}
