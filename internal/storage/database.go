package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/wordstage/internal/cardid"
	"github.com/conorfennell/wordstage/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

const savedAtKey = "saved_at"

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Load returns every card in insertion order. A database that was never saved
// to returns ErrNotFound.
func (db *DB) Load(ctx context.Context) ([]domain.Card, error) {
	var savedAt string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, savedAtKey).Scan(&savedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read card set metadata: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT english, target, stage, next_review, last_review_failures
		FROM cards ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var (
			c          domain.Card
			stage      int
			nextReview sql.NullTime
		)
		if err := rows.Scan(&c.English, &c.Target, &stage, &nextReview, &c.LastReviewFailures); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		c.Stage = domain.Stage(stage)
		if nextReview.Valid {
			t := nextReview.Time
			c.NextReview = &t
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards: %w", err)
	}
	return cards, nil
}

// Save replaces the whole card set in one transaction.
func (db *DB) Save(ctx context.Context, cards []domain.Card) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cards`); err != nil {
		return fmt.Errorf("failed to clear cards: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cards (id, position, english, target, stage, next_review, last_review_failures)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range cards {
		var nextReview sql.NullTime
		if c.NextReview != nil {
			nextReview = sql.NullTime{Time: *c.NextReview, Valid: true}
		}
		id := c.ID
		if id == "" {
			id = cardid.Of(c.English, c.Target)
		}
		if _, err := stmt.ExecContext(ctx, id, i, c.English, c.Target, int(c.Stage), nextReview, c.LastReviewFailures); err != nil {
			return fmt.Errorf("failed to insert card %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, savedAtKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record save time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cards: %w", err)
	}
	return nil
}
