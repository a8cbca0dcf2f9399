// Package store persists tracked download records across client restarts so
// pollers for unfinished downloads can be re-armed. The backend remains the
// owner of history and library data; only the client's own tracking state
// lives here.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"

	"vidtrack/internal/entity"
)

const recordsBucket = "records"

// Store is a bbolt-backed snapshot of the download registry.
type Store struct {
	log *slog.Logger
	db  *bbolt.DB
}

// Open opens (or creates) the state database at path.
func Open(log *slog.Logger, path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(recordsBucket))

		return err
	})
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &Store{
		log: log.With(slog.String("package", "store")),
		db:  db,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes one record, keyed by its identifier.
func (s *Store) Put(rec entity.DownloadRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(recordsBucket)).Put([]byte(rec.ID), data)
	})
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}

	return nil
}

// Delete removes one record.
func (s *Store) Delete(id string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(recordsBucket)).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	return nil
}

// All returns every stored record.
func (s *Store) All() ([]entity.DownloadRecord, error) {
	var out []entity.DownloadRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(recordsBucket)).ForEach(func(k, v []byte) error {
			var rec entity.DownloadRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				// Skip unreadable entries rather than failing the whole scan.
				s.log.Warn("skipping corrupt record", slog.String("id", string(k)), slog.Any("error", err))

				return nil
			}

			out = append(out, rec)

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}

	return out, nil
}

// Resumable returns stored records a restarted client should put back in
// view: unfinished downloads, plus failed ones that can still be retried.
func (s *Store) Resumable() ([]entity.DownloadRecord, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, rec := range all {
		if !rec.Status.Terminal() || (rec.Status == entity.StatusError && rec.CanRetry) {
			out = append(out, rec)
		}
	}

	return out, nil
}
