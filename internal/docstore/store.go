// Package docstore layers a transactional document store over sqlite.
// Documents are JSON bodies keyed by (collection, id); RunTransaction gives
// the atomic read-modify-write cycle the approval workflow relies on, so two
// concurrent approval attempts on the same document cannot both commit.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/incaptta/crm-backend/pkg/database"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("document not found")

	// ErrExists is returned when creating a document that already exists
	ErrExists = errors.New("document already exists")
)

// Store provides document access outside of a transaction
type Store struct {
	db     *database.DB
	logger *zap.Logger
}

// New creates a document store backed by the given database
func New(db *database.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Get loads a document into out
func (s *Store) Get(ctx context.Context, collection, id string, out interface{}) error {
	var body string
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return json.Unmarshal([]byte(body), out)
}

// Create inserts a new document; it fails if the document already exists
func (s *Store) Create(ctx context.Context, collection, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)",
		collection, id, string(body),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%s", ErrExists, collection, id)
		}
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}

	s.logger.Debug("Document created",
		zap.String("collection", collection),
		zap.String("id", id))
	return nil
}

// List returns the raw bodies of all documents in a collection, ordered by
// creation time
func (s *Store) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT body FROM documents WHERE collection = ? ORDER BY created_at, id",
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		docs = append(docs, json.RawMessage(body))
	}
	return docs, rows.Err()
}

// Tx is a handle to document operations within an atomic transaction
type Tx struct {
	tx *sql.Tx
}

// RunTransaction executes fn atomically. All reads and writes made through
// the Tx commit together or not at all; fn returning an error aborts with no
// partial state persisted.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.WithTransaction(ctx, func(sqlTx *sql.Tx) error {
		return fn(&Tx{tx: sqlTx})
	})
}

// Get loads a document into out within the transaction
func (t *Tx) Get(collection, id string, out interface{}) error {
	var body string
	err := t.tx.QueryRow(
		"SELECT body FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return json.Unmarshal([]byte(body), out)
}

// Put upserts a document within the transaction
func (t *Tx) Put(collection, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}

	_, err = t.tx.Exec(`
		INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
		ON CONFLICT (collection, id)
		DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP`,
		collection, id, string(body),
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

// Create inserts a new document within the transaction; fails if it exists
func (t *Tx) Create(collection, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}

	_, err = t.tx.Exec(
		"INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)",
		collection, id, string(body),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%s", ErrExists, collection, id)
		}
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	// mattn/go-sqlite3 reports constraint violations in the error text
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
