package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreatePostBody stores the locally owned content record behind a plain POST
// note and returns its id.
func (s *PostgresStore) CreatePostBody(ctx context.Context, body, mediaRef string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO post_bodies (body, media_ref)
		VALUES ($1, $2)
		RETURNING id
	`, body, mediaRef).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert post body: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetPostBody(ctx context.Context, id int64) (PostBody, error) {
	var item PostBody
	err := s.db.QueryRowContext(ctx, `
		SELECT id, body, media_ref, created_at FROM post_bodies WHERE id=$1
	`, id).Scan(&item.ID, &item.Body, &item.MediaRef, &item.CreatedAt)
	if err != nil {
		return PostBody{}, err
	}
	return item, nil
}

// CreateNoteAndPublish inserts a note together with its single ORIGINAL
// publication in one transaction, so the two can never exist apart.
func (s *PostgresStore) CreateNoteAndPublish(ctx context.Context, kind string, scopeEntityID, contentID *string, ownerID string) (noteID, pubID int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO notes (kind, owner_id, scope_entity_id, content_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, kind, ownerID, nullable(scopeEntityID), nullable(contentID)).Scan(&noteID)
	if err != nil {
		return 0, 0, fmt.Errorf("insert note: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO publications (note_id, actor_id, type)
		VALUES ($1, $2, $3)
		RETURNING id
	`, noteID, ownerID, PubOriginal).Scan(&pubID)
	if err != nil {
		return 0, 0, fmt.Errorf("insert original publication: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit publish tx: %w", err)
	}
	return noteID, pubID, nil
}

func (s *PostgresStore) GetNote(ctx context.Context, noteID int64) (Note, error) {
	var item Note
	var scope, content sql.NullString
	err := s.db.QueryRowContext(ctx, `
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

// MarkNoteUnavailable is idempotent; there is no restore path.
func (s *PostgresStore) MarkNoteUnavailable(ctx context.Context, noteID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notes SET unavailable=TRUE WHERE id=$1`, noteID)
	if err != nil {
		return fmt.Errorf("mark note unavailable: %w", err)
	}
	return nil
}

// MarkContentUnavailable flags every note referencing an externally deleted
// piece of content. Used when the owning collaborator removes a file, forum
// post or notice out from under its notes.
func (s *PostgresStore) MarkContentUnavailable(ctx context.Context, kind, contentID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notes SET unavailable=TRUE WHERE kind=$1 AND content_id=$2
	`, kind, contentID)
	if err != nil {
		return fmt.Errorf("mark content unavailable: %w", err)
	}
	return nil
}

// DeleteNoteCascade removes a note and everything hanging off it in one
// transaction: comment favourites, comments, note reactions, publications,
// the post body for POST notes, then the note row. Ownership is checked by
// the caller.
func (s *PostgresStore) DeleteNoteCascade(ctx context.Context, noteID int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var kind string
	var content sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT kind, content_id FROM notes WHERE id=$1
	`, noteID).Scan(&kind, &content)
	if err != nil {
		return err
	}

	steps := []string{
		`DELETE FROM comment_favourites
		 WHERE pub_id IN (SELECT id FROM publications WHERE note_id=$1)`,
		`DELETE FROM comments WHERE note_id=$1`,
		`DELETE FROM note_favourites WHERE note_id=$1`,
		`DELETE FROM note_shares WHERE note_id=$1`,
		`DELETE FROM publications WHERE note_id=$1`,
		`DELETE FROM notes WHERE id=$1`,
	}
	for _, step := range steps {
		if _, err = tx.ExecContext(ctx, step, noteID); err != nil {
			return fmt.Errorf("cascade delete note: %w", err)
		}
	}

	if kind == KindPost && content.Valid {
		if _, err = tx.ExecContext(ctx, `DELETE FROM post_bodies WHERE id=$1::bigint`, content.String); err != nil {
			return fmt.Errorf("delete post body: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}
	return nil
}

// InsertCommentPublication creates the COMMENT publication and its 1:1 body
// row in one transaction.
func (s *PostgresStore) InsertCommentPublication(ctx context.Context, noteID int64, actorID, body, mediaRef string) (pubID int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin comment tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO publications (note_id, actor_id, type)
		VALUES ($1, $2, $3)
		RETURNING id
	`, noteID, actorID, PubComment).Scan(&pubID)
	if err != nil {
		return 0, fmt.Errorf("insert comment publication: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO comments (pub_id, note_id, body, media_ref)
		VALUES ($1, $2, $3, $4)
	`, pubID, noteID, body, mediaRef); err != nil {
		return 0, fmt.Errorf("insert comment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit comment tx: %w", err)
	}
	return pubID, nil
}

func (s *PostgresStore) GetComment(ctx context.Context, pubID int64) (Comment, error) {
	var item Comment
	err := s.db.QueryRowContext(ctx, `
		SELECT c.pub_id, c.note_id, p.actor_id, c.body, c.media_ref, c.created_at
		FROM comments c
		JOIN publications p ON p.id = c.pub_id
		WHERE c.pub_id=$1
	`, pubID).Scan(&item.PubID, &item.NoteID, &item.ActorID, &item.Body, &item.MediaRef, &item.CreatedAt)
	if err != nil {
		return Comment{}, err
	}
	return item, nil
}

// ListRecentComments returns the newest comments on a note, newest first.
// These are the initially visible ones; older comments stay behind a
// "show previous" action in the rendering collaborator.
func (s *PostgresStore) ListRecentComments(ctx context.Context, noteID int64, limit int) ([]Comment, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.pub_id, c.note_id, p.actor_id, c.body, c.media_ref, c.created_at
		FROM comments c
		JOIN publications p ON p.id = c.pub_id
		WHERE c.note_id=$1
		ORDER BY c.pub_id DESC
		LIMIT $2
	`, noteID, limit)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.PubID, &item.NoteID, &item.ActorID, &item.Body, &item.MediaRef, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

// DeleteCommentCascade removes a comment, its favourites and its publication.
func (s *PostgresStore) DeleteCommentCascade(ctx context.Context, pubID int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin comment delete tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, step := range []string{
		`DELETE FROM comment_favourites WHERE pub_id=$1`,
		`DELETE FROM comments WHERE pub_id=$1`,
		`DELETE FROM publications WHERE id=$1`,
	} {
		if _, err = tx.ExecContext(ctx, step, pubID); err != nil {
			return fmt.Errorf("cascade delete comment: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit comment delete tx: %w", err)
	}
	return nil
}
