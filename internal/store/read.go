package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Record is one stored document.
type Record struct {
	Collection string
	IDKey      string
	Seq        int64
	Body       map[string]any
	Hash       string
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec  Record
		body string
	)
	if err := row.Scan(&rec.Collection, &rec.IDKey, &rec.Seq, &body, &rec.Hash); err != nil {
		return Record{}, err
	}
	doc, err := unmarshalBody(body)
	if err != nil {
		return Record{}, fmt.Errorf("document %s: %w", rec.IDKey, err)
	}
	rec.Body = doc
	return rec, nil
}

// Get returns the document of collection whose _id equals id.
func (s *Store) Get(ctx context.Context, collection string, id any) (Record, bool, error) {
	key, err := IDKey(id)
	if err != nil {
		return Record{}, false, fmt.Errorf("get: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT collection, id_key, seq, body, hash
		FROM documents
		WHERE collection = ? AND id_key = ?
	`, collection, key)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get %s: %w", key, err)
	}
	return rec, true, nil
}

// Scan returns every document of collection in insertion order.
//
// Returns an empty slice (not nil) for an empty or unknown collection.
func (s *Store) Scan(ctx context.Context, collection string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, id_key, seq, body, hash
		FROM documents
		WHERE collection = ?
		ORDER BY seq ASC
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return records, nil
}

// Count returns the number of documents in collection.
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents WHERE collection = ?
	`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
