// Package feed assembles ordered, deduplicated timeline pages out of the
// publication log, one publication pick at a time.
package feed

import (
	"context"
	"fmt"
	"sync"

	"timeline/api/internal/session"
	"timeline/api/internal/store"
)

// ScopeKind selects the visibility predicate for a page.
type ScopeKind int

const (
	// ScopeUser shows one user's own publications.
	ScopeUser ScopeKind = iota
	// ScopeFollowed shows publications acted by, or touching notes owned by,
	// the viewer and everyone the viewer follows. The owner half is what lets
	// a stranger's comment bump a followed author's note.
	ScopeFollowed
	// ScopeAll applies no restriction.
	ScopeAll
)

type Scope struct {
	Kind   ScopeKind
	UserID string // the subject user for ScopeUser
}

// Mode selects the pagination cursor behaviour.
type Mode int

const (
	// RecentPage rebuilds the window and returns the newest page. Used when
	// the feed is opened or its scope changes.
	RecentPage Mode = iota
	// FreshNew returns every publication newer than the session's last seen
	// id, unbounded.
	FreshNew
	// OlderPage returns the page strictly older than the oldest delivered
	// publication.
	OlderPage
)

// Entry is one feed slot: a distinct note and the most recent publication
// event that surfaced it.
type Entry struct {
	Note      store.Note
	Surfacing store.Publication
}

// ErrInvalidRange reports an OlderPage request against a session that has no
// established window, i.e. a cursor that cannot be interpreted.
type ErrInvalidRange struct {
	SessionID string
}

func (e *ErrInvalidRange) Error() string {
	return fmt.Sprintf("no pagination window for session %s", e.SessionID)
}

// Reader is one consistent snapshot of the publication log.
type Reader interface {
	MaxPubID(ctx context.Context) (int64, error)
	NextSurfacing(ctx context.Context, upper, lower int64, actors, owners []string, excludedNotes []int64) (*store.Publication, error)
	Note(ctx context.Context, noteID int64) (store.Note, error)
	Close() error
}

// Source is the slice of the durable store the assembler reads from.
type Source interface {
	BeginFeedRead(ctx context.Context) (Reader, error)
	FolloweeIDs(ctx context.Context, followerID string) ([]string, error)
	UserExists(ctx context.Context, userID string) (bool, error)
}

// WindowStore persists per-session pagination windows.
type WindowStore interface {
	Get(ctx context.Context, sessionID string) (session.Window, error)
	Put(ctx context.Context, sessionID string, window session.Window) error
}

type Assembler struct {
	source  Source
	windows WindowStore

	mu         sync.Mutex
	perSession map[string]*sync.Mutex
}

func NewAssembler(source Source, windows WindowStore) *Assembler {
	return &Assembler{
		source:     source,
		windows:    windows,
		perSession: make(map[string]*sync.Mutex),
	}
}

// sessionLock serializes concurrent page requests from the same browser
// session, the one place cross-request mutual exclusion is required: a
// double-click racing two OlderPage calls must not regress the window.
func (a *Assembler) sessionLock(sessionID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.perSession[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		a.perSession[sessionID] = lock
	}
	return lock
}

// Page assembles one feed page for a session. Each iteration picks the
// highest publication id in range whose note has not been delivered yet,
// records the note, and narrows the upper bound below the pick, so a note
// always surfaces through its most recent qualifying event and appears at
// most once per window.
func (a *Assembler) Page(ctx context.Context, sessionID, viewerID string, scope Scope, mode Mode, limit int) ([]Entry, error) {
	if limit <= 0 && mode != FreshNew {
		return []Entry{}, nil
	}

	lock := a.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	window, err := a.windows.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if mode == OlderPage && window.FirstPubIDDelivered == 0 {
		return nil, &ErrInvalidRange{SessionID: sessionID}
	}
	if mode == RecentPage {
		window.Reset()
	}

	actors, owners, known, err := a.scopeFilter(ctx, scope, viewerID)
	if err != nil {
		return nil, err
	}
	if !known {
		return []Entry{}, nil
	}

	reader, err := a.source.BeginFeedRead(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	maxPub, err := reader.MaxPubID(ctx)
	if err != nil {
		return nil, err
	}

	var upper, lower int64
	bounded := true
	switch mode {
	case FreshNew:
		lower = window.LastPubIDSeen + 1
		upper = maxPub
		bounded = false
	case RecentPage:
		lower = 1
		upper = maxPub
	case OlderPage:
		lower = 1
		upper = window.FirstPubIDDelivered - 1
	}

	// The dedup set. OlderPage walks below everything already delivered and
	// must never repeat a note the session is displaying. FreshNew and
	// RecentPage dedup only within the page being built: their ranges cannot
	// overlap previously delivered publications, and a note that gained a
	// newer publication is meant to re-surface at the top (the bump).
	var excluded []int64
	if mode == OlderPage {
		excluded = append(excluded, window.Delivered...)
	}

	entries := make([]Entry, 0)
	picked := make([]int64, 0)
	lowestPick := int64(0)
	for !bounded || len(entries) < limit {
		pick, err := reader.NextSurfacing(ctx, upper, lower, actors, owners, excluded)
		if err != nil {
			return nil, err
		}
		if pick == nil {
			break
		}
		upper = pick.ID - 1

		note, err := reader.Note(ctx, pick.NoteID)
		if err != nil {
			// One bad row must not break the page; skip the note and keep
			// assembling.
			excluded = append(excluded, pick.NoteID)
			continue
		}

		entries = append(entries, Entry{Note: note, Surfacing: *pick})
		excluded = append(excluded, pick.NoteID)
		picked = append(picked, pick.NoteID)
		lowestPick = pick.ID
	}

	switch mode {
	case FreshNew:
		window.AdvanceNew(maxPub, picked)
	case RecentPage:
		window.AdvanceNew(maxPub, picked)
		if lowestPick > 0 {
			window.SeedFirst(lowestPick)
		} else {
			// Empty initial page: older polling starts just past the log end.
			window.SeedFirst(maxPub + 1)
		}
	case OlderPage:
		window.AdvanceOld(lowestPick, picked)
	}

	if err := a.windows.Put(ctx, sessionID, window); err != nil {
		return nil, err
	}
	return entries, nil
}

// scopeFilter resolves the scope to an actor set and a note-owner set; a
// publication qualifies when either set admits it, and nil for both means no
// restriction. known=false means the scope names a user that does not exist
// and the page must be empty.
func (a *Assembler) scopeFilter(ctx context.Context, scope Scope, viewerID string) (actors, owners []string, known bool, err error) {
	switch scope.Kind {
	case ScopeUser:
		exists, err := a.source.UserExists(ctx, scope.UserID)
		if err != nil {
			return nil, nil, false, err
		}
		if !exists {
			return nil, nil, false, nil
		}
		return []string{scope.UserID}, nil, true, nil
	case ScopeFollowed:
		followees, err := a.source.FolloweeIDs(ctx, viewerID)
		if err != nil {
			return nil, nil, false, err
		}
		circle := append(followees, viewerID)
		return circle, circle, true, nil
	default:
		return nil, nil, true, nil
	}
}
