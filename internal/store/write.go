package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrDuplicateID is returned when a collection already holds a document
// with the same _id.
var ErrDuplicateID = errors.New("document already exists")

// ErrMissingID is returned for documents without an _id field.
var ErrMissingID = errors.New("document has no _id")

// Insert appends body to collection after every existing document.
// body must carry an _id; a duplicate _id returns ErrDuplicateID and leaves
// the store unchanged.
func (s *Store) Insert(ctx context.Context, collection string, body map[string]any) (Record, error) {
	id, ok := body["_id"]
	if !ok {
		return Record{}, fmt.Errorf("insert: %w", ErrMissingID)
	}
	key, err := IDKey(id)
	if err != nil {
		return Record{}, fmt.Errorf("insert: %w", err)
	}
	text, hash, err := marshalBody(body)
	if err != nil {
		return Record{}, fmt.Errorf("insert: %w", err)
	}

	// ON CONFLICT DO NOTHING turns a duplicate id into zero affected rows.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id_key, seq, body, hash)
		SELECT ?, ?, COALESCE(MAX(seq), 0) + 1, ?, ?
		FROM documents WHERE collection = ?
		ON CONFLICT(collection, id_key) DO NOTHING
	`, collection, key, text, hash, collection)
	if err != nil {
		return Record{}, fmt.Errorf("insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, fmt.Errorf("insert: %w", err)
	}
	if n == 0 {
		return Record{}, fmt.Errorf("insert %s: %w", key, ErrDuplicateID)
	}

	rec, found, err := s.Get(ctx, collection, id)
	if err != nil {
		return Record{}, err
	}
	if !found {
		return Record{}, fmt.Errorf("insert %s: row vanished after write", key)
	}
	return rec, nil
}

// Replace overwrites the body of an existing document, keeping its
// position. The new body must keep the same _id. It reports whether the
// content actually changed.
func (s *Store) Replace(ctx context.Context, collection string, rec Record, body map[string]any) (bool, error) {
	key, err := IDKey(body["_id"])
	if err != nil {
		return false, fmt.Errorf("replace: %w", err)
	}
	if key != rec.IDKey {
		return false, fmt.Errorf("replace: _id changed from %s to %s", rec.IDKey, key)
	}
	text, hash, err := marshalBody(body)
	if err != nil {
		return false, fmt.Errorf("replace: %w", err)
	}
	if hash == rec.Hash {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE documents SET body = ?, hash = ?
		WHERE collection = ? AND id_key = ?
	`, text, hash, collection, key)
	if err != nil {
		return false, fmt.Errorf("replace: %w", err)
	}
	return true, nil
}

// Delete removes the documents with the given id keys and returns how many
// existed.
func (s *Store) Delete(ctx context.Context, collection string, idKeys ...string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for _, key := range idKeys {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM documents WHERE collection = ? AND id_key = ?
		`, collection, key)
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", key, err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("delete: commit: %w", err)
	}
	return total, nil
}

// Truncate removes every document of collection.
func (s *Store) Truncate(ctx context.Context, collection string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return 0, fmt.Errorf("truncate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("truncate: %w", err)
	}
	return n, nil
}
