// Package storage provides persistent storage for the classifier artifacts.
// It uses BoltDB as the underlying storage engine: one bucket holds the
// serialized bundles, overwritten in place per key, another keeps a JSON
// record of every completed training run.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"exoplanet-classifier/internal/bundle"

	"go.etcd.io/bbolt"
)

const (
	artifactsBucket = "artifacts" // Bucket name for serialized bundles
	runsBucket      = "runs"      // Bucket name for training run records

	dbFile = "artifacts.db"
)

// Store implements bundle.Store on top of BoltDB.
type Store struct {
	db *bbolt.DB
}

var _ bundle.Store = (*Store)(nil)

// New opens (or creates) the database under dataPath and makes sure the
// buckets exist.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data path: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(artifactsBucket)); err != nil {
			return fmt.Errorf("create artifacts bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put replaces the blob stored at key.
func (s *Store) Put(key string, blob []byte) error {
	if key == "" {
		return fmt.Errorf("empty artifact key")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(artifactsBucket)).Put([]byte(key), blob)
	})
}

// Get returns a copy of the blob at key, or bundle.ErrNotFound.
func (s *Store) Get(key string) ([]byte, error) {
	var blob []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(artifactsBucket)).Get([]byte(key))
		if v == nil {
			return bundle.ErrNotFound
		}
		// bbolt values are only valid inside the transaction
		blob = bytes.Clone(v)
		return nil
	})
	return blob, err
}

// RunRecord summarizes one successful training run.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	BundleKey  string    `json:"bundle_key"`
	Source     string    `json:"source"`
	Fetched    int       `json:"fetched"`
	Cleaned    int       `json:"cleaned"`
	TrainRows  int       `json:"train_rows"`
	TestRows   int       `json:"test_rows"`
	Accuracy   float64   `json:"accuracy"`
	MacroF1    float64   `json:"macro_f1"`
	Classes    []string  `json:"classes"`
}

// StoreRun appends a run record. Keys sort by start time.
func (s *Store) StoreRun(run RunRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}

		return b.Put(runKey(run.StartedAt, run.RunID), data)
	})
}

// ListRuns returns runs started within [start, end], oldest first. A zero
// start lists from the beginning. Malformed records are skipped.
func (s *Store) ListRuns(start, end time.Time) ([]RunRecord, error) {
	var runs []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()

		k, v := c.First()
		if !start.IsZero() {
			k, v = c.Seek(runKey(start, ""))
		}
		for ; k != nil; k, v = c.Next() {
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				continue
			}
			if run.StartedAt.After(end) {
				break
			}
			runs = append(runs, run)
		}
		return nil
	})

	return runs, err
}

// LatestRuns returns up to n most recent runs, newest first.
func (s *Store) LatestRuns(n int) ([]RunRecord, error) {
	var runs []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(runs) < n; k, v = c.Prev() {
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				continue
			}
			runs = append(runs, run)
		}
		return nil
	})

	return runs, err
}

// runKey is a fixed-width UTC nanosecond timestamp so byte order matches
// time order.
func runKey(ts time.Time, runID string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", ts.UTC().UnixNano(), runID))
}
