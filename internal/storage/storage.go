// Package storage provides the local execution journal. It uses BoltDB as
// the underlying storage engine and keeps one record per executed signal,
// keyed by symbol and execution time for efficient range queries.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joelsfoster/gizmo/internal/history"

	"go.etcd.io/bbolt"
)

const (
	dbFile            = "gizmo-journal.db"
	executionsBucket  = "executions" // Bucket name for execution records
	keyTimestampWidth = 20           // Zero padded so keys sort by time
)

// Store is the execution journal.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

var _ history.Sink = (*Store)(nil)

// New opens (or creates) the journal under dataPath.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data path: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(executionsBucket)); err != nil {
			return fmt.Errorf("create executions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Name() string { return "journal" }

// Write stores e; it lets the journal act as a history sink.
func (s *Store) Write(_ context.Context, e history.Entry) error {
	return s.StoreExecution(e)
}

// StoreExecution stores one execution record with a key of
// "symbol_timestamp".
func (s *Store) StoreExecution(e history.Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(executionsBucket))

		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal execution: %w", err)
		}

		key := recordKey(e.Symbol, e.ExecutedAt)
		// Two signals in the same nanosecond keep both records.
		for b.Get(key) != nil {
			key = append(key, '+')
		}
		return b.Put(key, data)
	})
}

// getRecordsInRange scans one bucket for symbol between start and end
// (inclusive) and decodes each value with unmarshalFunc.
func (s *Store) getRecordsInRange(bucketName, symbol string, start, end time.Time, unmarshalFunc func([]byte) (interface{}, error)) ([]interface{}, error) {
	var records []interface{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		c := b.Cursor()

		prefix := []byte(symbol + "_")
		startKey := recordKey(symbol, start)
		endKey := recordKey(symbol, end)

		for k, v := c.Seek(startKey); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if afterKey(k, endKey) {
				break
			}

			record, err := unmarshalFunc(v)
			if err != nil {
				continue // Skip malformed records
			}
			records = append(records, record)
		}

		return nil
	})

	return records, err
}

// GetExecutions returns the executions for symbol between start and end,
// oldest first.
func (s *Store) GetExecutions(symbol string, start, end time.Time) ([]history.Entry, error) {
	records, err := s.getRecordsInRange(executionsBucket, symbol, start, end, func(data []byte) (interface{}, error) {
		var e history.Entry
		err := json.Unmarshal(data, &e)
		return e, err
	})
	if err != nil {
		return nil, err
	}

	entries := make([]history.Entry, len(records))
	for i, record := range records {
		entries[i] = record.(history.Entry)
	}
	return entries, nil
}

// afterKey compares only the symbol and timestamp part of k, ignoring any
// collision suffix.
func afterKey(k, endKey []byte) bool {
	if len(k) > len(endKey) {
		k = k[:len(endKey)]
	}
	return bytes.Compare(k, endKey) > 0
}

func recordKey(symbol string, ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s_%0*d", symbol, keyTimestampWidth, ts.UnixNano()))
}
