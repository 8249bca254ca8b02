// Package session tracks per-browser-session timeline pagination state: which
// notes a session has already been shown, and the publication-id bounds for
// "load new" and "load older" polling.
package session

// Window is the pagination aggregate for one browser session. LastPubIDSeen
// is the upper bound already delivered (polling for new starts above it);
// FirstPubIDDelivered is the lowest id delivered (loading older starts below
// it); Delivered is the dedup set of note ids already placed in the feed.
type Window struct {
	LastPubIDSeen       int64   `json:"last_pub_id_seen"`
	FirstPubIDDelivered int64   `json:"first_pub_id_delivered"`
	Delivered           []int64 `json:"delivered_note_ids"`
}

// Reset clears the window for a full feed recomputation (scope or filter
// changed, or the feed page was reopened).
func (w *Window) Reset() {
	w.LastPubIDSeen = 0
	w.FirstPubIDDelivered = 0
	w.Delivered = nil
}

// AdvanceNew raises the upper bound after a refresh and records newly
// delivered notes. maxPub is the log's max pub id at read time, so no
// publication is ever delivered twice by a later refresh even when fewer
// notes than the limit were picked.
func (w *Window) AdvanceNew(maxPub int64, noteIDs []int64) {
	if maxPub > w.LastPubIDSeen {
		w.LastPubIDSeen = maxPub
	}
	w.mark(noteIDs)
}

// AdvanceOld lowers the "oldest delivered" bound after a load-older page.
// lowestPub is the lowest publication id returned in that page.
func (w *Window) AdvanceOld(lowestPub int64, noteIDs []int64) {
	if lowestPub > 0 && (w.FirstPubIDDelivered == 0 || lowestPub < w.FirstPubIDDelivered) {
		w.FirstPubIDDelivered = lowestPub
	}
	w.mark(noteIDs)
}

// SeedFirst records the lower bound established by an initial page.
func (w *Window) SeedFirst(lowestPub int64) {
	if lowestPub > 0 {
		w.FirstPubIDDelivered = lowestPub
	}
}

// HasDelivered reports whether the session has already been shown a note.
func (w *Window) HasDelivered(noteID int64) bool {
	for _, id := range w.Delivered {
		if id == noteID {
			return true
		}
	}
	return false
}

func (w *Window) mark(noteIDs []int64) {
	for _, id := range noteIDs {
		if !w.HasDelivered(id) {
			w.Delivered = append(w.Delivered, id)
		}
	}
}
