// Package storage provides a persistent cache of extracted indicators.
// It uses BoltDB as the underlying storage engine so that repeated runs over
// the same recordings skip reading and reducing unchanged signal files.
//
// Records are keyed by class and signal location and carry the file stamp
// they were computed from; a stamp mismatch is treated as a miss.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vibration-diag/internal/indicator"
	"vibration-diag/internal/signal"

	"go.etcd.io/bbolt"
)

const (
	indicatorsBucket = "indicators" // Bucket name for indicator records
	dbFileName       = "indicators.db"
	keySeparator     = "\x1f"
)

// IndicatorRecord is one cached extraction result.
type IndicatorRecord struct {
	Class      string               `json:"class"`
	Location   string               `json:"location"`
	Stamp      signal.Stamp         `json:"stamp"`
	Indicators indicator.Indicators `json:"indicators"`
	StoredAt   time.Time            `json:"stored_at"`
}

// Store provides persistent storage for indicator records using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the cache database inside dataPath.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(indicatorsBucket)); err != nil {
			return fmt.Errorf("create indicators bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreIndicators writes or replaces the record for its class and location.
func (s *Store) StoreIndicators(record IndicatorRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(indicatorsBucket))

		if record.StoredAt.IsZero() {
			record.StoredAt = time.Now()
		}
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal indicator record: %w", err)
		}

		return b.Put(recordKey(record.Class, record.Location), data)
	})
}

// GetIndicators returns the record for class and location, if any.
func (s *Store) GetIndicators(class, location string) (IndicatorRecord, bool, error) {
	var (
		record IndicatorRecord
		found  bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(indicatorsBucket)).Get(recordKey(class, location))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("unmarshal indicator record: %w", err)
		}
		found = true
		return nil
	})
	return record, found, err
}

// ClassRecords returns every cached record of a class in key order.
// Malformed records are skipped.
func (s *Store) ClassRecords(class string) ([]IndicatorRecord, error) {
	var records []IndicatorRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(indicatorsBucket)).Cursor()
		prefix := []byte(class + keySeparator)

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var record IndicatorRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}
			records = append(records, record)
		}
		return nil
	})

	return records, err
}

// Lookup returns cached indicators only when the stored stamp matches.
func (s *Store) Lookup(class, location string, stamp signal.Stamp) (indicator.Indicators, bool) {
	record, found, err := s.GetIndicators(class, location)
	if err != nil || !found {
		return indicator.Indicators{}, false
	}
	if record.Stamp.Size != stamp.Size || !record.Stamp.ModTime.Equal(stamp.ModTime) ||
		record.Stamp.Layout != stamp.Layout {
		return indicator.Indicators{}, false
	}
	return record.Indicators, true
}

// Save caches indicators computed from the given file version.
func (s *Store) Save(class, location string, stamp signal.Stamp, ind indicator.Indicators) error {
	return s.StoreIndicators(IndicatorRecord{
		Class:      class,
		Location:   location,
		Stamp:      stamp,
		Indicators: ind,
	})
}

func recordKey(class, location string) []byte {
	return []byte(class + keySeparator + location)
}
