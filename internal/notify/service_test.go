package notify

import (
	"context"
	"database/sql"
	"testing"

	"timeline/api/internal/store"
)

type fakeDirectory struct {
	getUserFn func(context.Context, string) (store.User, error)
	inserted  []store.Notification
	removed   []string
	insertErr error
}

func (f *fakeDirectory) GetUser(ctx context.Context, userID string) (store.User, error) {
	if f.getUserFn != nil {
		return f.getUserFn(ctx, userID)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeDirectory) InsertNotification(_ context.Context, item store.Notification) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, item)
	return int64(len(f.inserted)), nil
}

func (f *fakeDirectory) MarkNotificationRemoved(_ context.Context, kind, recipientID, actorID string, noteID int64) error {
	f.removed = append(f.removed, kind+":"+recipientID)
	return nil
}

func TestDispatchHonoursInAppPreference(t *testing.T) {
	dir := &fakeDirectory{
		getUserFn: func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, NotifyInApp: true}, nil
		},
	}
	svc := NewService(dir, nil)

	svc.Dispatch(context.Background(), Event{
		Kind: EventComment, RecipientID: "ann", ActorID: "bob", NoteID: 7, PubID: 40,
	})

	if len(dir.inserted) != 1 {
		t.Fatalf("expected 1 in-app notification, got %d", len(dir.inserted))
	}
	got := dir.inserted[0]
	if got.Kind != EventComment || got.RecipientID != "ann" || got.ActorID != "bob" || got.NoteID != 7 || got.PubID != 40 {
		t.Errorf("unexpected notification row: %+v", got)
	}
}

func TestDispatchSkipsOptedOutRecipient(t *testing.T) {
	dir := &fakeDirectory{
		getUserFn: func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, NotifyInApp: false, NotifyEmail: false}, nil
		},
	}
	svc := NewService(dir, nil)

	svc.Dispatch(context.Background(), Event{Kind: EventShare, RecipientID: "ann", ActorID: "bob"})

	if len(dir.inserted) != 0 {
		t.Errorf("expected no notifications for opted-out recipient, got %d", len(dir.inserted))
	}
}

func TestDispatchUnknownRecipientIsQuiet(t *testing.T) {
	svc := NewService(&fakeDirectory{}, nil)

	// Must not panic or insert anything.
	svc.Dispatch(context.Background(), Event{Kind: EventMention, RecipientID: "ghost", ActorID: "bob"})
}

func TestRetractMarksRemoved(t *testing.T) {
	dir := &fakeDirectory{}
	svc := NewService(dir, nil)

	svc.Retract(context.Background(), EventShare, "ann", "bob", 7)

	if len(dir.removed) != 1 || dir.removed[0] != EventShare+":ann" {
		t.Errorf("expected one retraction for ann, got %v", dir.removed)
	}
}

func TestMailerUnconfigured(t *testing.T) {
	m := NewMailer(MailConfig{})
	if m.IsConfigured() {
		t.Error("empty mail config must report unconfigured")
	}
	if err := m.Send([]string{"a@b.c"}, "s", "b"); err == nil {
		t.Error("expected error sending with unconfigured mailer")
	}
}
