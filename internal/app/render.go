package app

import (
	"fmt"

	"timeline/api/internal/store"
)

// ActionRef points the rendering collaborator at the primary action for a
// note (open the file, jump to the forum thread, and so on).
type ActionRef struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// NoteRenderer describes one note kind for the feed. One implementation is
// registered per kind so nothing downstream branches on kind.
type NoteRenderer interface {
	Summarize(note store.Note) string
	DefaultAction(note store.Note) ActionRef
}

var renderers = map[string]NoteRenderer{
	store.KindPost:              postRenderer{},
	store.KindDocInstitution:    documentRenderer{area: "institution documents"},
	store.KindDocCentre:         documentRenderer{area: "centre documents"},
	store.KindDocDegree:         documentRenderer{area: "degree documents"},
	store.KindDocCourse:         documentRenderer{area: "course documents"},
	store.KindSharedInstitution: documentRenderer{area: "institution shared files"},
	store.KindSharedCentre:      documentRenderer{area: "centre shared files"},
	store.KindSharedDegree:      documentRenderer{area: "degree shared files"},
	store.KindSharedCourse:      documentRenderer{area: "course shared files"},
	store.KindExamAnnouncement:  examRenderer{},
	store.KindForumPost:         forumRenderer{},
	store.KindNotice:            noticeRenderer{},
}

// RendererFor never returns nil; unknown kinds get a generic renderer so a
// bad row cannot break page rendering.
func RendererFor(kind string) NoteRenderer {
	if r, ok := renderers[kind]; ok {
		return r
	}
	return genericRenderer{}
}

func KnownKind(kind string) bool {
	_, ok := renderers[kind]
	return ok
}

type postRenderer struct{}

func (postRenderer) Summarize(store.Note) string {
	return "shared a post"
}

func (postRenderer) DefaultAction(note store.Note) ActionRef {
	return ActionRef{Label: "View post", Path: fmt.Sprintf("/notes/%d", note.ID)}
}

type documentRenderer struct {
	area string
}

func (r documentRenderer) Summarize(store.Note) string {
	return "published a file in the " + r.area + " area"
}

func (r documentRenderer) DefaultAction(note store.Note) ActionRef {
	path := "/files"
	if note.ContentID != nil {
		path = "/files/" + *note.ContentID
	}
	return ActionRef{Label: "Open file", Path: path}
}

type examRenderer struct{}

func (examRenderer) Summarize(store.Note) string {
	return "published an exam announcement"
}

func (examRenderer) DefaultAction(note store.Note) ActionRef {
	path := "/exams"
	if note.ContentID != nil {
		path = "/exams/" + *note.ContentID
	}
	return ActionRef{Label: "View announcement", Path: path}
}

type forumRenderer struct{}

func (forumRenderer) Summarize(store.Note) string {
	return "posted in a forum thread"
}

func (forumRenderer) DefaultAction(note store.Note) ActionRef {
	path := "/forums"
	if note.ContentID != nil {
		path = "/forums/posts/" + *note.ContentID
	}
	return ActionRef{Label: "Go to thread", Path: path}
}

type noticeRenderer struct{}

func (noticeRenderer) Summarize(store.Note) string {
	return "posted a notice"
}

func (noticeRenderer) DefaultAction(note store.Note) ActionRef {
	path := "/notices"
	if note.ContentID != nil {
		path = "/notices/" + *note.ContentID
	}
	return ActionRef{Label: "View notice", Path: path}
}

type genericRenderer struct{}

func (genericRenderer) Summarize(store.Note) string {
	return "published an item"
}

func (genericRenderer) DefaultAction(note store.Note) ActionRef {
	return ActionRef{Label: "View", Path: fmt.Sprintf("/notes/%d", note.ID)}
}
