package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// FeedReader is a read-only repeatable-read snapshot over the publication
// log. One feed assembly runs entirely inside a single reader so the
// pick-highest iteration cannot see phantoms between steps.
type FeedReader struct {
	tx *sql.Tx
}

func (s *PostgresStore) BeginFeedRead(ctx context.Context) (*FeedReader, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("begin feed read: %w", err)
	}
	return &FeedReader{tx: tx}, nil
}

func (r *FeedReader) Close() error {
	return r.tx.Rollback()
}

func (r *FeedReader) MaxPubID(ctx context.Context) (int64, error) {
	var max int64
	err := r.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM publications`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("snapshot max pub id: %w", err)
	}
	return max, nil
}

// NextSurfacing picks the highest publication id within [lower, upper] that
// the visibility filter admits and whose note is not in the excluded set.
// A publication qualifies when its actor is in actors or when the note it
// touches is owned by someone in owners; activity on a visible note is itself
// visible, which is how a stranger's comment re-surfaces a followed author's
// note. nil for both sets means no restriction. Returns nil when nothing
// qualifies.
func (r *FeedReader) NextSurfacing(ctx context.Context, upper, lower int64, actors, owners []string, excludedNotes []int64) (*Publication, error) {
	if upper < lower {
		return nil, nil
	}

	var sb strings.Builder
	args := []any{upper, lower}
	sb.WriteString(`
		SELECT p.id, p.note_id, p.actor_id, p.type, p.created_at
		FROM publications p
		JOIN notes n ON n.id = p.note_id
		WHERE p.id <= $1 AND p.id >= $2`)

	if actors != nil || owners != nil {
		if len(actors) == 0 && len(owners) == 0 {
			return nil, nil
		}
		var terms []string
		if len(actors) > 0 {
			terms = append(terms, "p.actor_id IN ("+inPlaceholders(&args, actors)+")")
		}
		if len(owners) > 0 {
			terms = append(terms, "n.owner_id IN ("+inPlaceholders(&args, owners)+")")
		}
		sb.WriteString(" AND (" + strings.Join(terms, " OR ") + ")")
	}

	for _, noteID := range excludedNotes {
		args = append(args, noteID)
		sb.WriteString(" AND p.note_id <> $" + strconv.Itoa(len(args)))
	}

	sb.WriteString(" ORDER BY p.id DESC LIMIT 1")

	var item Publication
	err := r.tx.QueryRowContext(ctx, sb.String(), args...).Scan(
		&item.ID, &item.NoteID, &item.ActorID, &item.Type, &item.CreatedAt,
	)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next surfacing: %w", err)
	}
	return &item, nil
}

func inPlaceholders(args *[]any, values []string) string {
	var sb strings.Builder
	for i, value := range values {
		if i > 0 {
			sb.WriteString(", ")
		}
		*args = append(*args, value)
		sb.WriteString("$" + strconv.Itoa(len(*args)))
	}
	return sb.String()
}

// Note loads a note from the same snapshot the publications are read from.
func (r *FeedReader) Note(ctx context.Context, noteID int64) (Note, error) {
	var item Note
	var scope, content sql.NullString
	err := r.tx.QueryRowContext(ctx, `
		SELECT id, kind, owner_id, scope_entity_id, content_id, unavailable, created_at
		FROM notes
		WHERE id=$1
	`, noteID).Scan(&item.ID, &item.Kind, &item.OwnerID, &scope, &content, &item.Unavailable, &item.CreatedAt)
	if err != nil {
		return Note{}, err
	}
	item.ScopeEntityID = fromNullable(scope)
	item.ContentID = fromNullable(content)
	return item, nil
}
