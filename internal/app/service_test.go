package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/microcosm-cc/bluemonday"

	"timeline/api/internal/config"
	"timeline/api/internal/feed"
	"timeline/api/internal/mention"
	"timeline/api/internal/notify"
	"timeline/api/internal/store"
)

type fakeStore struct {
	upsertUserFn               func(context.Context, store.User) error
	getUserFn                  func(context.Context, string) (store.User, error)
	userExistsFn               func(context.Context, string) (bool, error)
	userIDByNicknameFn         func(context.Context, string) (string, error)
	followFn                   func(context.Context, string, string) error
	createPostBodyFn           func(context.Context, string, string) (int64, error)
	getPostBodyFn              func(context.Context, int64) (store.PostBody, error)
	hasNoteShareFn             func(context.Context, int64, string) (bool, error)
	markNoteUnavailableFn      func(context.Context, int64) error
	createNoteAndPublishFn     func(context.Context, string, *string, *string, string) (int64, int64, error)
	getNoteFn                  func(context.Context, int64) (store.Note, error)
	markContentUnavailableFn   func(context.Context, string, string) error
	deleteNoteCascadeFn        func(context.Context, int64) error
	insertCommentPublicationFn func(context.Context, int64, string, string, string) (int64, error)
	getCommentFn               func(context.Context, int64) (store.Comment, error)
	listRecentCommentsFn       func(context.Context, int64, int) ([]store.Comment, error)
	deleteCommentCascadeFn     func(context.Context, int64) error
	toggleNoteShareFn          func(context.Context, int64, string) (bool, int64, error)
	toggleNoteFavouriteFn      func(context.Context, int64, string) (bool, error)
	toggleCommentFavouriteFn   func(context.Context, int64, string) (bool, error)
	countAndSampleReactionsFn  func(context.Context, string, int64, int) (int, []string, error)
	commenterIDsFn             func(context.Context, int64) ([]string, error)
}

func (f *fakeStore) UpsertUser(ctx context.Context, user store.User) error {
	if f.upsertUserFn != nil {
		return f.upsertUserFn(ctx, user)
	}
	return nil
}
func (f *fakeStore) GetUser(ctx context.Context, userID string) (store.User, error) {
	if f.getUserFn != nil {
		return f.getUserFn(ctx, userID)
	}
	return store.User{ID: userID, NotifyInApp: true}, nil
}
func (f *fakeStore) UserExists(ctx context.Context, userID string) (bool, error) {
	if f.userExistsFn != nil {
		return f.userExistsFn(ctx, userID)
	}
	return true, nil
}
func (f *fakeStore) UserIDByNickname(ctx context.Context, nickname string) (string, error) {
	if f.userIDByNicknameFn != nil {
		return f.userIDByNicknameFn(ctx, nickname)
	}
	return "", sql.ErrNoRows
}
func (f *fakeStore) Follow(ctx context.Context, followerID, followeeID string) error {
	if f.followFn != nil {
		return f.followFn(ctx, followerID, followeeID)
	}
	return nil
}
func (f *fakeStore) Unfollow(context.Context, string, string) error { return nil }
func (f *fakeStore) CreatePostBody(ctx context.Context, body, mediaRef string) (int64, error) {
	if f.createPostBodyFn != nil {
		return f.createPostBodyFn(ctx, body, mediaRef)
	}
	return 1, nil
}
func (f *fakeStore) GetPostBody(ctx context.Context, id int64) (store.PostBody, error) {
	if f.getPostBodyFn != nil {
		return f.getPostBodyFn(ctx, id)
	}
	return store.PostBody{}, sql.ErrNoRows
}
func (f *fakeStore) CreateNoteAndPublish(ctx context.Context, kind string, scope, content *string, ownerID string) (int64, int64, error) {
	if f.createNoteAndPublishFn != nil {
		return f.createNoteAndPublishFn(ctx, kind, scope, content, ownerID)
	}
	return 1, 1, nil
}
func (f *fakeStore) GetNote(ctx context.Context, noteID int64) (store.Note, error) {
	if f.getNoteFn != nil {
		return f.getNoteFn(ctx, noteID)
	}
	return store.Note{}, sql.ErrNoRows
}
func (f *fakeStore) MarkNoteUnavailable(ctx context.Context, noteID int64) error {
	if f.markNoteUnavailableFn != nil {
		return f.markNoteUnavailableFn(ctx, noteID)
	}
	return nil
}
func (f *fakeStore) MarkContentUnavailable(ctx context.Context, kind, contentID string) error {
	if f.markContentUnavailableFn != nil {
		return f.markContentUnavailableFn(ctx, kind, contentID)
	}
	return nil
}
func (f *fakeStore) DeleteNoteCascade(ctx context.Context, noteID int64) error {
	if f.deleteNoteCascadeFn != nil {
		return f.deleteNoteCascadeFn(ctx, noteID)
	}
	return nil
}
func (f *fakeStore) InsertCommentPublication(ctx context.Context, noteID int64, actorID, body, mediaRef string) (int64, error) {
	if f.insertCommentPublicationFn != nil {
		return f.insertCommentPublicationFn(ctx, noteID, actorID, body, mediaRef)
	}
	return 1, nil
}
func (f *fakeStore) GetComment(ctx context.Context, pubID int64) (store.Comment, error) {
	if f.getCommentFn != nil {
		return f.getCommentFn(ctx, pubID)
	}
	return store.Comment{}, sql.ErrNoRows
}
func (f *fakeStore) ListRecentComments(ctx context.Context, noteID int64, limit int) ([]store.Comment, error) {
	if f.listRecentCommentsFn != nil {
		return f.listRecentCommentsFn(ctx, noteID, limit)
	}
	return nil, nil
}
func (f *fakeStore) DeleteCommentCascade(ctx context.Context, pubID int64) error {
	if f.deleteCommentCascadeFn != nil {
		return f.deleteCommentCascadeFn(ctx, pubID)
	}
	return nil
}
func (f *fakeStore) ToggleNoteShare(ctx context.Context, noteID int64, userID string) (bool, int64, error) {
	if f.toggleNoteShareFn != nil {
		return f.toggleNoteShareFn(ctx, noteID, userID)
	}
	return true, 1, nil
}
func (f *fakeStore) ToggleNoteFavourite(ctx context.Context, noteID int64, userID string) (bool, error) {
	if f.toggleNoteFavouriteFn != nil {
		return f.toggleNoteFavouriteFn(ctx, noteID, userID)
	}
	return true, nil
}
func (f *fakeStore) ToggleCommentFavourite(ctx context.Context, pubID int64, userID string) (bool, error) {
	if f.toggleCommentFavouriteFn != nil {
		return f.toggleCommentFavouriteFn(ctx, pubID, userID)
	}
	return true, nil
}
func (f *fakeStore) HasNoteShare(ctx context.Context, noteID int64, userID string) (bool, error) {
	if f.hasNoteShareFn != nil {
		return f.hasNoteShareFn(ctx, noteID, userID)
	}
	return false, nil
}
func (f *fakeStore) CountAndSampleReactions(ctx context.Context, kind string, subjectID int64, sampleSize int) (int, []string, error) {
	if f.countAndSampleReactionsFn != nil {
		return f.countAndSampleReactionsFn(ctx, kind, subjectID, sampleSize)
	}
	return 0, nil, nil
}
func (f *fakeStore) CommenterIDs(ctx context.Context, noteID int64) ([]string, error) {
	if f.commenterIDsFn != nil {
		return f.commenterIDsFn(ctx, noteID)
	}
	return nil, nil
}
func (f *fakeStore) ListNotifications(context.Context, string, int) ([]store.Notification, error) {
	return nil, nil
}
func (f *fakeStore) Ping(context.Context) error { return nil }

type recordedRetract struct {
	kind        string
	recipientID string
	actorID     string
	noteID      int64
}

type fakeNotifier struct {
	dispatched []notify.Event
	retracted  []recordedRetract
}

func (f *fakeNotifier) Dispatch(_ context.Context, event notify.Event) {
	f.dispatched = append(f.dispatched, event)
}

func (f *fakeNotifier) Retract(_ context.Context, kind, recipientID, actorID string, noteID int64) {
	f.retracted = append(f.retracted, recordedRetract{kind, recipientID, actorID, noteID})
}

type fakePager struct {
	pageFn func(ctx context.Context, sessionID, viewerID string, scope feed.Scope, mode feed.Mode, limit int) ([]feed.Entry, error)
}

func (f *fakePager) Page(ctx context.Context, sessionID, viewerID string, scope feed.Scope, mode feed.Mode, limit int) ([]feed.Entry, error) {
	if f.pageFn != nil {
		return f.pageFn(ctx, sessionID, viewerID, scope, mode, limit)
	}
	return nil, nil
}

func newTestService(data dataStore, pager feedPager, sink notifier) *Service {
	cfg := config.Config{
		PageSize:       10,
		CommentPreview: 3,
		MinNickLen:     3,
		MaxNickLen:     16,
	}
	return &Service{
		cfg:       cfg,
		store:     data,
		pager:     pager,
		notify:    sink,
		scanner:   mention.NewScanner(cfg.MinNickLen, cfg.MaxNickLen),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func TestCommentNotifiesAuthorAndPriorCommentersOnce(t *testing.T) {
	data := &fakeStore{
		getNoteFn: func(_ context.Context, noteID int64) (store.Note, error) {
			return store.Note{ID: noteID, Kind: store.KindPost, OwnerID: "owner"}, nil
		},
		commenterIDsFn: func(context.Context, int64) ([]string, error) {
			return []string{"carol", "dave", "actor", "carol"}, nil
		},
	}
	sink := &fakeNotifier{}
	service := newTestService(data, &fakePager{}, sink)

	_, err := service.Comment(context.Background(), RequestContext{ViewerID: "actor"}, 7, CommentInput{Body: "nice one"})
	if err != nil {
		t.Fatalf("comment: %v", err)
	}

	recipients := map[string]int{}
	for _, event := range sink.dispatched {
		if event.Kind != notify.EventComment {
			t.Fatalf("unexpected event kind %s", event.Kind)
		}
		recipients[event.RecipientID]++
	}
	for _, want := range []string{"owner", "carol", "dave"} {
		if recipients[want] != 1 {
			t.Fatalf("recipient %s notified %d times, want 1", want, recipients[want])
		}
	}
	if recipients["actor"] != 0 {
		t.Fatalf("actor must not be notified about their own comment")
	}
}

func TestCommentMentionsResolveNicknamesAndSkipSelf(t *testing.T) {
	users := map[string]string{"ann": "user-ann", "actor_nick": "actor"}
	data := &fakeStore{
		getNoteFn: func(_ context.Context, noteID int64) (store.Note, error) {
			return store.Note{ID: noteID, Kind: store.KindPost, OwnerID: "actor"}, nil
		},
		userIDByNicknameFn: func(_ context.Context, nickname string) (string, error) {
			if id, ok := users[nickname]; ok {
				return id, nil
			}
			return "", sql.ErrNoRows
		},
	}
	sink := &fakeNotifier{}
	service := newTestService(data, &fakePager{}, sink)

	body := "pinging @ann and @actor_nick and @nobody and @ann again"
	if _, err := service.Comment(context.Background(), RequestContext{ViewerID: "actor"}, 3, CommentInput{Body: body}); err != nil {
		t.Fatalf("comment: %v", err)
	}

	var mentions []string
	for _, event := range sink.dispatched {
		if event.Kind == notify.EventMention {
			mentions = append(mentions, event.RecipientID)
		}
	}
	if len(mentions) != 1 || mentions[0] != "user-ann" {
		t.Fatalf("mentions = %v, want exactly [user-ann]", mentions)
	}
}

func TestCommentOnUnavailableNoteRejected(t *testing.T) {
	data := &fakeStore{
		getNoteFn: func(_ context.Context, noteID int64) (store.Note, error) {
			return store.Note{ID: noteID, Kind: store.KindForumPost, OwnerID: "owner", Unavailable: true}, nil
		},
	}
	service := newTestService(data, &fakePager{}, &fakeNotifier{})

	_, err := service.Comment(context.Background(), RequestContext{ViewerID: "actor"}, 3, CommentInput{Body: "hello"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOTE_UNAVAILABLE" {
		t.Fatalf("err = %v, want NOTE_UNAVAILABLE", err)
	}
}

func TestPublishSanitizesPostBody(t *testing.T) {
	var storedBody string
	data := &fakeStore{
		createPostBodyFn: func(_ context.Context, body, _ string) (int64, error) {
			storedBody = body
			return 42, nil
		},
	}
	service := newTestService(data, &fakePager{}, &fakeNotifier{})

	_, err := service.Publish(context.Background(), RequestContext{ViewerID: "actor"}, PublishInput{
		Body: `hello <script>alert("x")</script>world`,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if strings.Contains(storedBody, "<script>") || strings.Contains(storedBody, "alert") {
		t.Fatalf("stored body still contains markup: %q", storedBody)
	}
	if !strings.Contains(storedBody, "hello") {
		t.Fatalf("stored body lost its text: %q", storedBody)
	}
}

func TestPublishRejectsUnanchoredExternalKind(t *testing.T) {
	service := newTestService(&fakeStore{}, &fakePager{}, &fakeNotifier{})

	_, err := service.Publish(context.Background(), RequestContext{ViewerID: "actor"}, PublishInput{
		Kind: store.KindExamAnnouncement,
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION" {
		t.Fatalf("err = %v, want VALIDATION", err)
	}
}

func TestShareAddsPublicationAndNotifiesAuthor(t *testing.T) {
	data := &fakeStore{
		getNoteFn: func(_ context.Context, noteID int64) (store.Note, error) {
			return store.Note{ID: noteID, Kind: store.KindPost, OwnerID: "owner"}, nil
		},
		toggleNoteShareFn: func(context.Context, int64, string) (bool, int64, error) { return true, 99, nil },
	}
	sink := &fakeNotifier{}
	service := newTestService(data, &fakePager{}, sink)

	added, err := service.React(context.Background(), RequestContext{ViewerID: "actor"}, ReactInput{
		Kind: store.ReactionNoteShare, SubjectID: 5,
	})
	if err != nil || !added {
		t.Fatalf("react = (%v, %v), want (true, nil)", added, err)
	}
	if len(sink.dispatched) != 1 || sink.dispatched[0].Kind != notify.EventShare || sink.dispatched[0].RecipientID != "owner" {
		t.Fatalf("dispatched = %+v, want one SHARE to owner", sink.dispatched)
	}
	if sink.dispatched[0].PubID != 99 {
		t.Fatalf("dispatched PubID = %d, want the new SHARED publication 99", sink.dispatched[0].PubID)
	}
}

func TestUnshareRetracts(t *testing.T) {
	data := &fakeStore{
		getNoteFn: func(_ context.Context, noteID int64) (store.Note, error) {
			return store.Note{ID: noteID, Kind: store.KindPost, OwnerID: "owner"}, nil
		},
		toggleNoteShareFn: func(context.Context, int64, string) (bool, int64, error) { return false, 0, nil },
	}
	sink := &fakeNotifier{}
	service := newTestService(data, &fakePager{}, sink)

	added, err := service.React(context.Background(), RequestContext{ViewerID: "actor"}, ReactInput{
		Kind: store.ReactionNoteShare, SubjectID: 5,
	})
	if err != nil || added {
		t.Fatalf("react = (%v, %v), want (false, nil)", added, err)
	}
	if len(sink.retracted) != 1 || sink.retracted[0].kind != notify.EventShare {
		t.Fatalf("retracted = %+v, want one SHARE retraction", sink.retracted)
	}
}

func TestSelfReactionIsQuietNoOp(t *testing.T) {
	toggled := false
	data := &fakeStore{
		getNoteFn: func(_ context.Context, noteID int64) (store.Note, error) {
			return store.Note{ID: noteID, Kind: store.KindPost, OwnerID: "actor"}, nil
		},
		toggleNoteFavouriteFn: func(context.Context, int64, string) (bool, error) {
			toggled = true
			return true, nil
		},
	}
	sink := &fakeNotifier{}
	service := newTestService(data, &fakePager{}, sink)

	added, err := service.React(context.Background(), RequestContext{ViewerID: "actor"}, ReactInput{
		Kind: store.ReactionNoteFavourite, SubjectID: 5,
	})
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	if added || toggled || len(sink.dispatched) != 0 {
		t.Fatal("favouriting your own note must change nothing")
	}
}

func TestRemoveNoteRequiresAuthor(t *testing.T) {
	data := &fakeStore{
		getNoteFn: func(_ context.Context, noteID int64) (store.Note, error) {
			return store.Note{ID: noteID, Kind: store.KindPost, OwnerID: "owner"}, nil
		},
	}
	service := newTestService(data, &fakePager{}, &fakeNotifier{})

	err := service.RemoveNote(context.Background(), RequestContext{ViewerID: "intruder"}, 5)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "PERMISSION_DENIED" {
		t.Fatalf("err = %v, want PERMISSION_DENIED", err)
	}
}

func TestRegisterUserValidatesNickname(t *testing.T) {
	service := newTestService(&fakeStore{}, &fakePager{}, &fakeNotifier{})

	err := service.RegisterUser(context.Background(), store.User{ID: "u1", Nickname: "ab"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION" {
		t.Fatalf("err = %v, want VALIDATION for short nickname", err)
	}

	if err := service.RegisterUser(context.Background(), store.User{ID: "u1", Nickname: "abc"}); err != nil {
		t.Fatalf("valid nickname rejected: %v", err)
	}
}

func TestGetFeedPageAnnotatesEntries(t *testing.T) {
	bodyRef := "9"
	pager := &fakePager{
		pageFn: func(context.Context, string, string, feed.Scope, feed.Mode, int) ([]feed.Entry, error) {
			return []feed.Entry{
				{Note: store.Note{ID: 1, Kind: store.KindPost, OwnerID: "ann", ContentID: &bodyRef}, Surfacing: store.Publication{ID: 10, NoteID: 1}},
				{Note: store.Note{ID: 2, Kind: store.KindForumPost, OwnerID: "bob", Unavailable: true}, Surfacing: store.Publication{ID: 8, NoteID: 2}},
			}, nil
		},
	}
	data := &fakeStore{
		getPostBodyFn: func(_ context.Context, id int64) (store.PostBody, error) {
			if id != 9 {
				return store.PostBody{}, sql.ErrNoRows
			}
			return store.PostBody{ID: 9, Body: "first post"}, nil
		},
		hasNoteShareFn: func(_ context.Context, noteID int64, _ string) (bool, error) {
			return noteID == 1, nil
		},
		countAndSampleReactionsFn: func(_ context.Context, kind string, subjectID int64, _ int) (int, []string, error) {
			if kind == store.ReactionNoteShare && subjectID == 1 {
				return 2, []string{"carol", "dave"}, nil
			}
			return 0, nil, nil
		},
		listRecentCommentsFn: func(_ context.Context, noteID int64, _ int) ([]store.Comment, error) {
			if noteID == 1 {
				return []store.Comment{{PubID: 11, NoteID: 1, ActorID: "carol", Body: "hi"}}, nil
			}
			return nil, nil
		},
	}
	service := newTestService(data, pager, &fakeNotifier{})

	page, err := service.GetFeedPage(context.Background(), RequestContext{ViewerID: "viewer", SessionID: "sess"}, feed.Scope{Kind: feed.ScopeAll}, feed.RecentPage, 10)
	if err != nil {
		t.Fatalf("feed page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d entries, want 2", len(page))
	}
	if page[0].ShareCount != 2 || len(page[0].SharedBy) != 2 {
		t.Fatalf("entry 0 share annotation = (%d, %v)", page[0].ShareCount, page[0].SharedBy)
	}
	if len(page[0].Comments) != 1 {
		t.Fatalf("entry 0 comments = %v", page[0].Comments)
	}
	if page[0].Body != "first post" {
		t.Fatalf("entry 0 body = %q, want the stored post body", page[0].Body)
	}
	if !page[0].ViewerShared || page[1].ViewerShared {
		t.Fatalf("viewerShared flags = (%v, %v), want (true, false)", page[0].ViewerShared, page[1].ViewerShared)
	}
	if !strings.Contains(page[1].Summary, "no longer available") {
		t.Fatalf("unavailable note summary = %q", page[1].Summary)
	}
	if page[1].Body != "" {
		t.Fatalf("unavailable note must not carry a body, got %q", page[1].Body)
	}
}

func TestMarkNoteUnavailable(t *testing.T) {
	var marked int64
	data := &fakeStore{
		getNoteFn: func(_ context.Context, noteID int64) (store.Note, error) {
			if noteID == 4 {
				return store.Note{ID: 4, Kind: store.KindNotice, OwnerID: "owner"}, nil
			}
			return store.Note{}, sql.ErrNoRows
		},
		markNoteUnavailableFn: func(_ context.Context, noteID int64) error {
			marked = noteID
			return nil
		},
	}
	service := newTestService(data, &fakePager{}, &fakeNotifier{})

	if err := service.MarkNoteUnavailable(context.Background(), 4); err != nil {
		t.Fatalf("mark note unavailable: %v", err)
	}
	if marked != 4 {
		t.Fatalf("marked note %d, want 4", marked)
	}

	err := service.MarkNoteUnavailable(context.Background(), 999)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_FOUND" {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestGetFeedPagePropagatesInvalidRange(t *testing.T) {
	pager := &fakePager{
		pageFn: func(_ context.Context, sessionID string, _ string, _ feed.Scope, _ feed.Mode, _ int) ([]feed.Entry, error) {
			return nil, &feed.ErrInvalidRange{SessionID: sessionID}
		},
	}
	service := newTestService(&fakeStore{}, pager, &fakeNotifier{})

	_, err := service.GetFeedPage(context.Background(), RequestContext{ViewerID: "viewer", SessionID: "sess"}, feed.Scope{Kind: feed.ScopeAll}, feed.OlderPage, 10)
	var rangeErr *feed.ErrInvalidRange
	if !errors.As(err, &rangeErr) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
}

func TestFollowUnknownUser(t *testing.T) {
	data := &fakeStore{
		userExistsFn: func(context.Context, string) (bool, error) { return false, nil },
	}
	service := newTestService(data, &fakePager{}, &fakeNotifier{})

	err := service.Follow(context.Background(), RequestContext{ViewerID: "actor"}, "ghost")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_FOUND" {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestMarkContentUnavailableRejectsUnknownKind(t *testing.T) {
	service := newTestService(&fakeStore{}, &fakePager{}, &fakeNotifier{})

	err := service.MarkContentUnavailable(context.Background(), "BOGUS", "c1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION" {
		t.Fatalf("err = %v, want VALIDATION", err)
	}
	if err := service.MarkContentUnavailable(context.Background(), store.KindForumPost, "c1"); err != nil {
		t.Fatalf("known kind rejected: %v", err)
	}
}

func TestShareRaceMapsToAlreadyShared(t *testing.T) {
	data := &fakeStore{
		getNoteFn: func(_ context.Context, noteID int64) (store.Note, error) {
			return store.Note{ID: noteID, Kind: store.KindPost, OwnerID: "owner"}, nil
		},
		toggleNoteShareFn: func(context.Context, int64, string) (bool, int64, error) {
			return false, 0, fmt.Errorf("insert share publication: %w", &pgconn.PgError{Code: "23505"})
		},
	}
	service := newTestService(data, &fakePager{}, &fakeNotifier{})

	_, err := service.React(context.Background(), RequestContext{ViewerID: "actor"}, ReactInput{
		Kind: store.ReactionNoteShare, SubjectID: 5,
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "ALREADY_SHARED" {
		t.Fatalf("err = %v, want ALREADY_SHARED", err)
	}
}

func TestShareToggleFailurePropagates(t *testing.T) {
	// A transient store error must surface as an error, not masquerade as an
	// ALREADY_SHARED conflict.
	dbDown := fmt.Errorf("begin share toggle: connection refused")
	data := &fakeStore{
		getNoteFn: func(_ context.Context, noteID int64) (store.Note, error) {
			return store.Note{ID: noteID, Kind: store.KindPost, OwnerID: "owner"}, nil
		},
		toggleNoteShareFn: func(context.Context, int64, string) (bool, int64, error) {
			return false, 0, dbDown
		},
	}
	sink := &fakeNotifier{}
	service := newTestService(data, &fakePager{}, sink)

	_, err := service.React(context.Background(), RequestContext{ViewerID: "actor"}, ReactInput{
		Kind: store.ReactionNoteShare, SubjectID: 5,
	})
	if !errors.Is(err, dbDown) {
		t.Fatalf("err = %v, want wrapped %v", err, dbDown)
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		t.Fatalf("transient failure mapped to domain error %v", domainErr)
	}
	if len(sink.dispatched) != 0 {
		t.Fatalf("dispatched = %+v, want none on failure", sink.dispatched)
	}
}
