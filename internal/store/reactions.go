package store

import (
	"context"
	"fmt"
)

// Toggle semantics follow a delete-then-insert round trip: if the delete hit a
// row the edge existed and the toggle removed it, otherwise the edge is
// inserted. Author self-reactions are rejected by the caller and additionally
// filtered out of every count query below.

// ToggleNoteShare flips the share edge and its SHARED publication in one
// transaction: either both exist afterwards or neither does. On add it
// returns the new publication id. A concurrent duplicate add trips the
// publications_one_share_per_actor index; callers detect that with
// IsUniqueViolation.
func (s *PostgresStore) ToggleNoteShare(ctx context.Context, noteID int64, userID string) (added bool, pubID int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("begin share toggle: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM note_shares WHERE note_id=$1 AND user_id=$2`, noteID, userID)
	if err != nil {
		return false, 0, fmt.Errorf("delete share edge: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("delete share edge rows: %w", err)
	}

	if affected > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM publications WHERE note_id=$1 AND actor_id=$2 AND type=$3
		`, noteID, userID, PubShared); err != nil {
			return false, 0, fmt.Errorf("delete share publication: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, 0, fmt.Errorf("commit share toggle: %w", err)
		}
		return false, 0, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO note_shares (note_id, user_id) VALUES ($1, $2)`, noteID, userID); err != nil {
		return false, 0, fmt.Errorf("insert share edge: %w", err)
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO publications (note_id, actor_id, type) VALUES ($1, $2, $3) RETURNING id
	`, noteID, userID, PubShared).Scan(&pubID)
	if err != nil {
		return false, 0, fmt.Errorf("insert share publication: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("commit share toggle: %w", err)
	}
	return true, pubID, nil
}

func (s *PostgresStore) ToggleNoteFavourite(ctx context.Context, noteID int64, userID string) (added bool, err error) {
	return s.toggleEdge(ctx,
		`DELETE FROM note_favourites WHERE note_id=$1 AND user_id=$2`,
		`INSERT INTO note_favourites (note_id, user_id) VALUES ($1, $2)`,
		noteID, userID)
}

func (s *PostgresStore) ToggleCommentFavourite(ctx context.Context, pubID int64, userID string) (added bool, err error) {
	return s.toggleEdge(ctx,
		`DELETE FROM comment_favourites WHERE pub_id=$1 AND user_id=$2`,
		`INSERT INTO comment_favourites (pub_id, user_id) VALUES ($1, $2)`,
		pubID, userID)
}

func (s *PostgresStore) toggleEdge(ctx context.Context, deleteSQL, insertSQL string, subjectID int64, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, deleteSQL, subjectID, userID)
	if err != nil {
		return false, fmt.Errorf("delete reaction edge: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete reaction edge rows: %w", err)
	}
	if affected > 0 {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx, insertSQL, subjectID, userID); err != nil {
		return false, fmt.Errorf("insert reaction edge: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) HasNoteShare(ctx context.Context, noteID int64, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM note_shares WHERE note_id=$1 AND user_id=$2)
	`, noteID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check note share: %w", err)
	}
	return exists, nil
}

// CountAndSampleReactions returns the author-excluding cardinality of a
// reaction edge set plus the first sampleSize actor ids, oldest first, for the
// "shared by N users, showing K" rendering. The author is filtered here even
// if a stray self-edge exists in the table.
func (s *PostgresStore) CountAndSampleReactions(ctx context.Context, kind string, subjectID int64, sampleSize int) (int, []string, error) {
	query, err := reactionQuery(kind)
	if err != nil {
		return 0, nil, err
	}
	if sampleSize < 0 {
		sampleSize = 0
	}

	rows, err := s.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return 0, nil, fmt.Errorf("count reactions: %w", err)
	}
	defer rows.Close()

	total := 0
	sample := make([]string, 0, sampleSize)
	for rows.Next() {
		var actorID string
		if err := rows.Scan(&actorID); err != nil {
			return 0, nil, fmt.Errorf("scan reaction actor: %w", err)
		}
		if total < sampleSize {
			sample = append(sample, actorID)
		}
		total++
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("iterate reaction actors: %w", err)
	}
	return total, sample, nil
}

func reactionQuery(kind string) (string, error) {
	switch kind {
	case ReactionNoteShare:
		return `
			SELECT r.user_id
			FROM note_shares r
			JOIN notes n ON n.id = r.note_id
			WHERE r.note_id=$1 AND r.user_id <> n.owner_id
			ORDER BY r.created_at ASC, r.user_id ASC
		`, nil
	case ReactionNoteFavourite:
		return `
			SELECT r.user_id
			FROM note_favourites r
			JOIN notes n ON n.id = r.note_id
			WHERE r.note_id=$1 AND r.user_id <> n.owner_id
			ORDER BY r.created_at ASC, r.user_id ASC
		`, nil
	case ReactionCommentFavourite:
		return `
			SELECT r.user_id
			FROM comment_favourites r
			JOIN publications p ON p.id = r.pub_id
			WHERE r.pub_id=$1 AND r.user_id <> p.actor_id
			ORDER BY r.created_at ASC, r.user_id ASC
		`, nil
	default:
		return "", fmt.Errorf("unknown reaction kind %q", kind)
	}
}
