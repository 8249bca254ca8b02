package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"timeline/api/internal/config"
	"timeline/api/internal/feed"
	"timeline/api/internal/mention"
	"timeline/api/internal/notify"
	"timeline/api/internal/store"
)

// RequestContext carries the identity of one request: who is looking and
// which browser session the pagination window belongs to. It is passed
// explicitly into every call; no request state lives in package globals.
type RequestContext struct {
	ViewerID  string
	SessionID string
}

// FeedEntry is one rendered feed slot handed to the web collaborator.
type FeedEntry struct {
	Note         store.Note        `json:"note"`
	Surfacing    store.Publication `json:"surfacing"`
	Summary      string            `json:"summary"`
	Action       ActionRef         `json:"action"`
	Body         string            `json:"body,omitempty"`
	MediaRef     string            `json:"mediaRef,omitempty"`
	ViewerShared bool              `json:"viewerShared"`
	ShareCount   int               `json:"shareCount"`
	SharedBy     []string          `json:"sharedBy"`
	FavCount     int               `json:"favCount"`
	FavBy        []string          `json:"favBy"`
	Comments     []store.Comment   `json:"comments"`
}

type PublishInput struct {
	Kind          string `json:"kind"`
	Body          string `json:"body"`
	MediaRef      string `json:"mediaRef"`
	ScopeEntityID string `json:"scopeEntityId"`
	ContentID     string `json:"contentId"`
}

type CommentInput struct {
	Body     string `json:"body"`
	MediaRef string `json:"mediaRef"`
}

type ReactInput struct {
	Kind      string `json:"kind"`
	SubjectID int64  `json:"subjectId"`
}

type dataStore interface {
	UpsertUser(context.Context, store.User) error
	GetUser(context.Context, string) (store.User, error)
	UserExists(context.Context, string) (bool, error)
	UserIDByNickname(context.Context, string) (string, error)
	Follow(context.Context, string, string) error
	Unfollow(context.Context, string, string) error
	CreatePostBody(context.Context, string, string) (int64, error)
	GetPostBody(context.Context, int64) (store.PostBody, error)
	CreateNoteAndPublish(context.Context, string, *string, *string, string) (int64, int64, error)
	GetNote(context.Context, int64) (store.Note, error)
	MarkNoteUnavailable(context.Context, int64) error
	MarkContentUnavailable(context.Context, string, string) error
	DeleteNoteCascade(context.Context, int64) error
	InsertCommentPublication(context.Context, int64, string, string, string) (int64, error)
	GetComment(context.Context, int64) (store.Comment, error)
	ListRecentComments(context.Context, int64, int) ([]store.Comment, error)
	DeleteCommentCascade(context.Context, int64) error
	ToggleNoteShare(context.Context, int64, string) (bool, int64, error)
	ToggleNoteFavourite(context.Context, int64, string) (bool, error)
	ToggleCommentFavourite(context.Context, int64, string) (bool, error)
	HasNoteShare(context.Context, int64, string) (bool, error)
	CountAndSampleReactions(context.Context, string, int64, int) (int, []string, error)
	CommenterIDs(context.Context, int64) ([]string, error)
	ListNotifications(context.Context, string, int) ([]store.Notification, error)
	Ping(ctx context.Context) error
}

type feedPager interface {
	Page(ctx context.Context, sessionID, viewerID string, scope feed.Scope, mode feed.Mode, limit int) ([]feed.Entry, error)
}

type notifier interface {
	Dispatch(ctx context.Context, event notify.Event)
	Retract(ctx context.Context, kind, recipientID, actorID string, noteID int64)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	pager     feedPager
	notify    notifier
	scanner   mention.Scanner
	sanitizer *bluemonday.Policy
}

func New(cfg config.Config, dataStore *store.PostgresStore, pager *feed.Assembler, sink *notify.Service) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		pager:     pager,
		notify:    sink,
		scanner:   mention.NewScanner(cfg.MinNickLen, cfg.MaxNickLen),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) RegisterUser(ctx context.Context, user store.User) error {
	user.Nickname = strings.TrimSpace(user.Nickname)
	if user.ID == "" || user.Nickname == "" {
		return errValidation("user id and nickname are required")
	}
	if len(user.Nickname) < s.cfg.MinNickLen || len(user.Nickname) > s.cfg.MaxNickLen {
		return errValidation("nickname length out of bounds")
	}
	return s.store.UpsertUser(ctx, user)
}

func (s *Service) Follow(ctx context.Context, rc RequestContext, followeeID string) error {
	exists, err := s.store.UserExists(ctx, followeeID)
	if err != nil {
		return err
	}
	if !exists {
		return errNotFound("user")
	}
	if followeeID == rc.ViewerID {
		// Following yourself is a quiet no-op; the viewer's own
		// publications are always in the followed scope anyway.
		return nil
	}
	return s.store.Follow(ctx, rc.ViewerID, followeeID)
}

func (s *Service) Unfollow(ctx context.Context, rc RequestContext, followeeID string) error {
	return s.store.Unfollow(ctx, rc.ViewerID, followeeID)
}

// Publish stores a new note and its original publication. POST notes own
// their body locally; every other kind references content held by an
// external collaborator.
func (s *Service) Publish(ctx context.Context, rc RequestContext, input PublishInput) (int64, error) {
	kind := input.Kind
	if kind == "" {
		kind = store.KindPost
	}
	if !KnownKind(kind) {
		return 0, errValidation("unknown note kind")
	}

	if kind == store.KindPost {
		body := strings.TrimSpace(s.sanitizer.Sanitize(input.Body))
		if body == "" && input.MediaRef == "" {
			return 0, errValidation("post body is empty")
		}
		bodyID, err := s.store.CreatePostBody(ctx, body, input.MediaRef)
		if err != nil {
			return 0, err
		}
		contentID := strconv.FormatInt(bodyID, 10)
		noteID, pubID, err := s.store.CreateNoteAndPublish(ctx, kind, nil, &contentID, rc.ViewerID)
		if err != nil {
			return 0, err
		}
		s.notifyMentions(ctx, rc.ViewerID, body, noteID, pubID)
		return noteID, nil
	}

	// A non-post note must be anchored somewhere: in a hierarchy entity, in
	// external content, or both.
	if input.ScopeEntityID == "" && input.ContentID == "" {
		return 0, errValidation("non-post notes need a scope entity or content reference")
	}
	var scope, content *string
	if input.ScopeEntityID != "" {
		scope = &input.ScopeEntityID
	}
	if input.ContentID != "" {
		content = &input.ContentID
	}
	noteID, _, err := s.store.CreateNoteAndPublish(ctx, kind, scope, content, rc.ViewerID)
	if err != nil {
		return 0, err
	}
	return noteID, nil
}

// Comment attaches a comment publication to a note, fans notifications out
// to the thread participants, and dispatches one mention notification per
// resolved @nickname in the body.
func (s *Service) Comment(ctx context.Context, rc RequestContext, noteID int64, input CommentInput) (int64, error) {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		if store.IsNoRows(err) {
			return 0, errNotFound("note")
		}
		return 0, err
	}
	if note.Unavailable {
		return 0, errNoteUnavailable()
	}

	body := strings.TrimSpace(s.sanitizer.Sanitize(input.Body))
	if body == "" {
		return 0, errValidation("comment body is empty")
	}

	participants, err := s.store.CommenterIDs(ctx, noteID)
	if err != nil {
		return 0, err
	}

	pubID, err := s.store.InsertCommentPublication(ctx, noteID, rc.ViewerID, body, input.MediaRef)
	if err != nil {
		return 0, err
	}

	// Fan-out: the note's author plus everyone who commented before, minus
	// the actor. Preference bits are applied per recipient in the sink.
	notified := map[string]bool{rc.ViewerID: true}
	for _, recipient := range append(participants, note.OwnerID) {
		if notified[recipient] {
			continue
		}
		notified[recipient] = true
		s.notify.Dispatch(ctx, notify.Event{
			Kind:        notify.EventComment,
			RecipientID: recipient,
			ActorID:     rc.ViewerID,
			NoteID:      noteID,
			PubID:       pubID,
		})
	}

	s.notifyMentions(ctx, rc.ViewerID, body, noteID, pubID)
	return pubID, nil
}

// notifyMentions resolves @nickname tokens and dispatches one mention event
// per distinct resolved user, skipping the author and unknown nicknames.
func (s *Service) notifyMentions(ctx context.Context, actorID, body string, noteID, pubID int64) {
	seen := make(map[string]bool)
	for _, nick := range s.scanner.Scan(body) {
		if seen[nick] {
			continue
		}
		seen[nick] = true

		userID, err := s.store.UserIDByNickname(ctx, nick)
		if err != nil {
			continue
		}
		if userID == actorID {
			continue
		}
		s.notify.Dispatch(ctx, notify.Event{
			Kind:        notify.EventMention,
			RecipientID: userID,
			ActorID:     actorID,
			NoteID:      noteID,
			PubID:       pubID,
		})
	}
}

// React toggles a share or favourite edge. Self-reactions are quiet no-ops,
// never errors. A share gained inserts a SHARED publication so the note
// re-surfaces in follower feeds; a share retracted removes it again.
func (s *Service) React(ctx context.Context, rc RequestContext, input ReactInput) (added bool, err error) {
	switch input.Kind {
	case store.ReactionNoteShare:
		return s.reactOnNote(ctx, rc, input.SubjectID, true)
	case store.ReactionNoteFavourite:
		return s.reactOnNote(ctx, rc, input.SubjectID, false)
	case store.ReactionCommentFavourite:
		return s.reactOnComment(ctx, rc, input.SubjectID)
	default:
		return false, errValidation("unknown reaction kind")
	}
}

func (s *Service) reactOnNote(ctx context.Context, rc RequestContext, noteID int64, share bool) (bool, error) {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		if store.IsNoRows(err) {
			return false, errNotFound("note")
		}
		return false, err
	}
	if note.Unavailable {
		return false, errNoteUnavailable()
	}
	if note.OwnerID == rc.ViewerID {
		return false, nil
	}

	if share {
		added, pubID, err := s.store.ToggleNoteShare(ctx, noteID, rc.ViewerID)
		if err != nil {
			if store.IsUniqueViolation(err) {
				// A concurrent request won the race to add the share.
				return false, errAlreadyShared()
			}
			return false, fmt.Errorf("toggle note share: %w", err)
		}
		if added {
			s.notify.Dispatch(ctx, notify.Event{
				Kind:        notify.EventShare,
				RecipientID: note.OwnerID,
				ActorID:     rc.ViewerID,
				NoteID:      noteID,
				PubID:       pubID,
			})
			return true, nil
		}
		s.notify.Retract(ctx, notify.EventShare, note.OwnerID, rc.ViewerID, noteID)
		return false, nil
	}

	added, err := s.store.ToggleNoteFavourite(ctx, noteID, rc.ViewerID)
	if err != nil {
		return false, err
	}
	if added {
		s.notify.Dispatch(ctx, notify.Event{
			Kind:        notify.EventFavourite,
			RecipientID: note.OwnerID,
			ActorID:     rc.ViewerID,
			NoteID:      noteID,
		})
	} else {
		s.notify.Retract(ctx, notify.EventFavourite, note.OwnerID, rc.ViewerID, noteID)
	}
	return added, nil
}

func (s *Service) reactOnComment(ctx context.Context, rc RequestContext, pubID int64) (bool, error) {
	comment, err := s.store.GetComment(ctx, pubID)
	if err != nil {
		if store.IsNoRows(err) {
			return false, errNotFound("comment")
		}
		return false, err
	}
	note, err := s.store.GetNote(ctx, comment.NoteID)
	if err == nil && note.Unavailable {
		return false, errNoteUnavailable()
	}
	if comment.ActorID == rc.ViewerID {
		return false, nil
	}

	added, err := s.store.ToggleCommentFavourite(ctx, pubID, rc.ViewerID)
	if err != nil {
		return false, err
	}
	if added {
		s.notify.Dispatch(ctx, notify.Event{
			Kind:        notify.EventCommentFavourite,
			RecipientID: comment.ActorID,
			ActorID:     rc.ViewerID,
			NoteID:      comment.NoteID,
			PubID:       pubID,
		})
	} else {
		s.notify.Retract(ctx, notify.EventCommentFavourite, comment.ActorID, rc.ViewerID, comment.NoteID)
	}
	return added, nil
}

// RemoveNote deletes a note and everything referencing it. Only the author
// may do this.
func (s *Service) RemoveNote(ctx context.Context, rc RequestContext, noteID int64) error {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		if store.IsNoRows(err) {
			return errNotFound("note")
		}
		return err
	}
	if note.OwnerID != rc.ViewerID {
		return errPermissionDenied("only the author can remove a note")
	}
	return s.store.DeleteNoteCascade(ctx, noteID)
}

// RemoveComment deletes one comment, its favourites and its publication.
// Only the commenter may do this.
func (s *Service) RemoveComment(ctx context.Context, rc RequestContext, pubID int64) error {
	comment, err := s.store.GetComment(ctx, pubID)
	if err != nil {
		if store.IsNoRows(err) {
			return errNotFound("comment")
		}
		return err
	}
	if comment.ActorID != rc.ViewerID {
		return errPermissionDenied("only the commenter can remove a comment")
	}
	return s.store.DeleteCommentCascade(ctx, pubID)
}

// MarkContentUnavailable is the cascade hook the content-owning collaborator
// calls when a file, forum post or notice is deleted on its side. Idempotent.
func (s *Service) MarkContentUnavailable(ctx context.Context, kind, contentID string) error {
	if !KnownKind(kind) {
		return errValidation("unknown note kind")
	}
	return s.store.MarkContentUnavailable(ctx, kind, contentID)
}

// MarkNoteUnavailable is the same hook keyed by note id, for collaborators
// that track the note rather than the content reference.
func (s *Service) MarkNoteUnavailable(ctx context.Context, noteID int64) error {
	if _, err := s.store.GetNote(ctx, noteID); err != nil {
		if store.IsNoRows(err) {
			return errNotFound("note")
		}
		return err
	}
	return s.store.MarkNoteUnavailable(ctx, noteID)
}

// GetFeedPage assembles one timeline page and annotates each entry with
// reaction counts, recent comments and the renderer summary for its kind.
func (s *Service) GetFeedPage(ctx context.Context, rc RequestContext, scope feed.Scope, mode feed.Mode, limit int) ([]FeedEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = s.cfg.PageSize
	}

	entries, err := s.pager.Page(ctx, rc.SessionID, rc.ViewerID, scope, mode, limit)
	if err != nil {
		return nil, err
	}

	page := make([]FeedEntry, 0, len(entries))
	for _, entry := range entries {
		item := FeedEntry{Note: entry.Note, Surfacing: entry.Surfacing}

		renderer := RendererFor(entry.Note.Kind)
		if entry.Note.Unavailable {
			item.Summary = "this content is no longer available"
		} else {
			item.Summary = renderer.Summarize(entry.Note)
			item.Action = renderer.DefaultAction(entry.Note)
			if entry.Note.Kind == store.KindPost && entry.Note.ContentID != nil {
				if bodyID, convErr := strconv.ParseInt(*entry.Note.ContentID, 10, 64); convErr == nil {
					body, err := s.store.GetPostBody(ctx, bodyID)
					if err != nil && !store.IsNoRows(err) {
						return nil, err
					}
					item.Body = body.Body
					item.MediaRef = body.MediaRef
				}
			}
		}

		viewerShared, err := s.store.HasNoteShare(ctx, entry.Note.ID, rc.ViewerID)
		if err != nil {
			return nil, err
		}
		item.ViewerShared = viewerShared

		shareCount, sharedBy, err := s.store.CountAndSampleReactions(ctx, store.ReactionNoteShare, entry.Note.ID, s.cfg.CommentPreview)
		if err != nil {
			return nil, err
		}
		favCount, favBy, err := s.store.CountAndSampleReactions(ctx, store.ReactionNoteFavourite, entry.Note.ID, s.cfg.CommentPreview)
		if err != nil {
			return nil, err
		}
		item.ShareCount, item.SharedBy = shareCount, sharedBy
		item.FavCount, item.FavBy = favCount, favBy

		comments, err := s.store.ListRecentComments(ctx, entry.Note.ID, s.cfg.CommentPreview)
		if err != nil {
			return nil, err
		}
		item.Comments = comments

		page = append(page, item)
	}
	return page, nil
}

func (s *Service) Notifications(ctx context.Context, rc RequestContext, limit int) ([]store.Notification, error) {
	return s.store.ListNotifications(ctx, rc.ViewerID, limit)
}
