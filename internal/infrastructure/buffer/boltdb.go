package buffer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	pendingBucket = []byte("pending")
	indexBucket   = []byte("index")
)

// ErrClosed is returned when the store has not been opened or was closed.
var ErrClosed = errors.New("buffer: store is closed")

// Store keeps buffered writes in a bbolt file ordered by enqueue time. A secondary
// index maps item ids to their ordered key.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open creates the bbolt file (and its directory) and both buckets.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{pendingBucket, indexBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Enqueue stores the item. Re-enqueueing an id replaces the earlier copy.
func (s *Store) Enqueue(item Item) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	item.prepare(s.now())

	return s.db.Update(func(tx *bolt.Tx) error {
		pending, index := tx.Bucket(pendingBucket), tx.Bucket(indexBucket)
		if old := index.Get([]byte(item.ID)); old != nil {
			if err := pending.Delete(old); err != nil {
				return err
			}
		}

		key := orderedKey(s.now(), item.ID)
		payload, err := json.Marshal(item)
		if err != nil {
			return err
		}
		if err := pending.Put(key, payload); err != nil {
			return err
		}
		return index.Put([]byte(item.ID), key)
	})
}

// Peek returns up to limit of the oldest items without removing them.
func (s *Store) Peek(limit int) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 100
	}

	items := make([]Item, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(pendingBucket).Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Ack removes a replayed item.
func (s *Store) Ack(item Item) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return remove(tx, item.ID)
	})
}

// Retry records a failed replay and moves the item to the back of the queue.
func (s *Store) Retry(item Item, cause error) error {
	item.Attempts++
	if cause != nil {
		item.LastError = cause.Error()
	}
	return s.Enqueue(item)
}

// Len returns the number of buffered items.
func (s *Store) Len() (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(pendingBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Purge drops items queued before the cutoff and reports how many were removed.
func (s *Store) Purge(cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		var stale []string
		c := tx.Bucket(pendingBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			if item.QueuedAt.Before(cutoff) {
				stale = append(stale, item.ID)
			}
		}
		for _, id := range stale {
			if err := remove(tx, id); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// Close closes the bbolt file.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func remove(tx *bolt.Tx, id string) error {
	index := tx.Bucket(indexBucket)
	key := index.Get([]byte(id))
	if key == nil {
		return nil
	}
	if err := tx.Bucket(pendingBucket).Delete(key); err != nil {
		return err
	}
	return index.Delete([]byte(id))
}

func orderedKey(at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", at.UnixNano(), id))
}
