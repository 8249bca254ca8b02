// Package notify delivers timeline event notifications. Delivery is
// best-effort: a failed insert or email is logged and never rolls back the
// write that triggered it.
package notify

import (
	"context"
	"fmt"
	"log"

	"timeline/api/internal/store"
)

// Event kinds. Each recipient's own preference bits decide whether a kind
// reaches them in-app, by email, both or not at all.
const (
	EventComment          = "COMMENT"
	EventMention          = "MENTION"
	EventShare            = "SHARE"
	EventFavourite        = "FAVOURITE"
	EventCommentFavourite = "COMMENT_FAVOURITE"
)

// Event is one notification to one recipient, originating from a publication.
type Event struct {
	Kind        string
	RecipientID string
	ActorID     string
	NoteID      int64
	PubID       int64
}

type directory interface {
	GetUser(ctx context.Context, userID string) (store.User, error)
	InsertNotification(ctx context.Context, item store.Notification) (int64, error)
	MarkNotificationRemoved(ctx context.Context, kind, recipientID, actorID string, noteID int64) error
}

type Service struct {
	store  directory
	mailer *Mailer
}

func NewService(dir directory, mailer *Mailer) *Service {
	return &Service{store: dir, mailer: mailer}
}

// Dispatch delivers one event to one recipient, honouring the recipient's
// in-app and email preference bits independently. Errors are logged, not
// returned.
func (s *Service) Dispatch(ctx context.Context, event Event) {
	recipient, err := s.store.GetUser(ctx, event.RecipientID)
	if err != nil {
		log.Printf("notify: lookup recipient %s: %v", event.RecipientID, err)
		return
	}

	if recipient.NotifyInApp {
		_, err := s.store.InsertNotification(ctx, store.Notification{
			Kind:        event.Kind,
			RecipientID: event.RecipientID,
			ActorID:     event.ActorID,
			NoteID:      event.NoteID,
			PubID:       event.PubID,
		})
		if err != nil {
			log.Printf("notify: insert for %s: %v", event.RecipientID, err)
		}
	}

	if recipient.NotifyEmail && recipient.Email != "" && s.mailer != nil && s.mailer.IsConfigured() {
		subject, body := composeEmail(event)
		if err := s.mailer.Send([]string{recipient.Email}, subject, body); err != nil {
			log.Printf("notify: email to %s: %v", recipient.Email, err)
		}
	}
}

// Retract marks the in-app notification behind a withdrawn reaction as
// removed. The row is kept for the recipient's history.
func (s *Service) Retract(ctx context.Context, kind, recipientID, actorID string, noteID int64) {
	if err := s.store.MarkNotificationRemoved(ctx, kind, recipientID, actorID, noteID); err != nil {
		log.Printf("notify: retract %s for %s: %v", kind, recipientID, err)
	}
}

func composeEmail(event Event) (subject, body string) {
	switch event.Kind {
	case EventComment:
		subject = "New comment on a note in your timeline"
	case EventMention:
		subject = "You were mentioned in a post"
	case EventShare:
		subject = "Your note was shared"
	case EventFavourite:
		subject = "Your note was marked as a favourite"
	case EventCommentFavourite:
		subject = "Your comment was marked as a favourite"
	default:
		subject = "Timeline activity"
	}
	body = fmt.Sprintf("User %s triggered %s on note %d (publication %d).\r\n",
		event.ActorID, event.Kind, event.NoteID, event.PubID)
	return subject, body
}
