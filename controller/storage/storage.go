// Package storage is a small JSON-over-bbolt store with the bucket/record
// contract the controller subsystems program against.
package storage

import (
	"encoding/json"
	"fmt"
	"strconv"

	bolt "go.etcd.io/bbolt"
)

// Store persists JSON records in named buckets.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the database file.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// CreateBucket ensures the named bucket exists.
func (s *Store) CreateBucket(bucket string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
}

// Get unmarshals the record with the given id into out.
func (s *Store) Get(bucket, id string, out interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("storage: no bucket %q", bucket)
		}
		v := b.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("storage: no record %q in %q", id, bucket)
		}
		return json.Unmarshal(v, out)
	})
}

// Create stores a new record. fn receives the generated id and returns the
// value to persist.
func (s *Store) Create(bucket string, fn func(id string) interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("storage: no bucket %q", bucket)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id := strconv.FormatUint(seq, 10)
		data, err := json.Marshal(fn(id))
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
}

// Put stores the record under the given id, creating or overwriting it.
func (s *Store) Put(bucket, id string, v interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("storage: no bucket %q", bucket)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
}

// Update overwrites the record with the given id; it fails if the record
// does not exist.
func (s *Store) Update(bucket, id string, v interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("storage: no bucket %q", bucket)
		}
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("storage: no record %q in %q", id, bucket)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
}

// Delete removes a record.
func (s *Store) Delete(bucket, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("storage: no bucket %q", bucket)
		}
		return b.Delete([]byte(id))
	})
}

// List calls fn for every record in the bucket.
func (s *Store) List(bucket string, fn func(id string, v []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("storage: no bucket %q", bucket)
		}
		return b.ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	})
}
