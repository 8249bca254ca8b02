package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to Postgres through the pgx stdlib driver and verifies the
// connection. The pool is sized for a feed workload: page assembly holds a
// read transaction open per request, so open connections run higher than
// idle ones.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(2 * time.Minute)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) UpsertUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, nickname, email, notify_in_app, notify_email)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET nickname=EXCLUDED.nickname, email=EXCLUDED.email,
		    notify_in_app=EXCLUDED.notify_in_app, notify_email=EXCLUDED.notify_email
	`, user.ID, user.Nickname, user.Email, user.NotifyInApp, user.NotifyEmail)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nickname, email, notify_in_app, notify_email, created_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.Nickname, &user.Email, &user.NotifyInApp, &user.NotifyEmail, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

// UserIDByNickname resolves a mention token to a user id. Unknown nicknames
// return sql.ErrNoRows; the caller skips them.
func (s *PostgresStore) UserIDByNickname(ctx context.Context, nickname string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE nickname=$1`, nickname).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) Follow(ctx context.Context, followerID, followeeID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO follows (follower_id, followee_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, followee_id) DO NOTHING
	`, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("follow: %w", err)
	}
	return nil
}

func (s *PostgresStore) Unfollow(ctx context.Context, followerID, followeeID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM follows WHERE follower_id=$1 AND followee_id=$2
	`, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("unfollow: %w", err)
	}
	return nil
}

func (s *PostgresStore) FolloweeIDs(ctx context.Context, followerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT followee_id FROM follows WHERE follower_id=$1 ORDER BY followee_id ASC
	`, followerID)
	if err != nil {
		return nil, fmt.Errorf("list followees: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan followee: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate followees: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) InsertNotification(ctx context.Context, item Notification) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO notifications (kind, recipient_id, actor_id, note_id, pub_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, item.Kind, item.RecipientID, item.ActorID, item.NoteID, item.PubID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return id, nil
}

// MarkNotificationRemoved flags the notification left behind by a retracted
// reaction. The row stays; only the flag flips.
func (s *PostgresStore) MarkNotificationRemoved(ctx context.Context, kind, recipientID, actorID string, noteID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET removed=TRUE
		WHERE kind=$1 AND recipient_id=$2 AND actor_id=$3 AND note_id=$4 AND removed=FALSE
	`, kind, recipientID, actorID, noteID)
	if err != nil {
		return fmt.Errorf("mark notification removed: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, recipientID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, recipient_id, actor_id, note_id, pub_id, removed, created_at
		FROM notifications
		WHERE recipient_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var item Notification
		if err := rows.Scan(&item.ID, &item.Kind, &item.RecipientID, &item.ActorID, &item.NoteID, &item.PubID, &item.Removed, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

// CommenterIDs returns the distinct actors who have commented on a note, the
// fan-out set for comment notifications.
func (s *PostgresStore) CommenterIDs(ctx context.Context, noteID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT actor_id
		FROM publications
		WHERE note_id=$1 AND type=$2
	`, noteID, PubComment)
	if err != nil {
		return nil, fmt.Errorf("list commenters: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan commenter: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commenters: %w", err)
	}
	return ids, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// IsNoRows reports whether err is the store's not-found sentinel.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsUniqueViolation reports whether err wraps a Postgres unique-constraint
// violation (SQLSTATE 23505), the signal that a concurrent writer got there
// first.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}
