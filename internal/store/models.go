package store

import "time"

// Note kinds. A note is the durable unit that can surface in a timeline; the
// kind decides which collaborator owns the referenced content.
const (
	KindPost              = "POST"
	KindDocInstitution    = "DOC_INSTITUTION"
	KindDocCentre         = "DOC_CENTRE"
	KindDocDegree         = "DOC_DEGREE"
	KindDocCourse         = "DOC_COURSE"
	KindSharedInstitution = "SHARED_INSTITUTION"
	KindSharedCentre      = "SHARED_CENTRE"
	KindSharedDegree      = "SHARED_DEGREE"
	KindSharedCourse      = "SHARED_COURSE"
	KindExamAnnouncement  = "EXAM_ANNOUNCEMENT"
	KindForumPost         = "FORUM_POST"
	KindNotice            = "NOTICE"
)

// Publication types. All three draw ids from the same sequence so ordering is
// comparable across types.
const (
	PubOriginal = 0
	PubShared   = 1
	PubComment  = 2
)

// Reaction kinds accepted by the toggle and count queries.
const (
	ReactionNoteShare        = "NOTE_SHARE"
	ReactionNoteFavourite    = "NOTE_FAV"
	ReactionCommentFavourite = "COMMENT_FAV"
)

type User struct {
	ID          string
	Nickname    string
	Email       string
	NotifyInApp bool
	NotifyEmail bool
	CreatedAt   time.Time
}

type Note struct {
	ID            int64
	Kind          string
	OwnerID       string
	ScopeEntityID *string
	ContentID     *string
	Unavailable   bool
	CreatedAt     time.Time
}

type Publication struct {
	ID        int64
	NoteID    int64
	ActorID   string
	Type      int
	CreatedAt time.Time
}

type Comment struct {
	PubID     int64
	NoteID    int64
	ActorID   string
	Body      string
	MediaRef  string
	CreatedAt time.Time
}

// PostBody is the locally owned content record behind a plain POST note.
type PostBody struct {
	ID        int64
	Body      string
	MediaRef  string
	CreatedAt time.Time
}

type Notification struct {
	ID          int64
	Kind        string
	RecipientID string
	ActorID     string
	NoteID      int64
	PubID       int64
	Removed     bool
	CreatedAt   time.Time
}
