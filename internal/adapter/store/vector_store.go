package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"vectorchat/internal/domain"
	"vectorchat/internal/port"
)

var bucketMeta = []byte("meta")

var errReadOnly = errors.New("vector store snapshot is read-only")

// BoltVectorStore implements VectorStore on a local BoltDB file.
// Each collection is a bucket; its vector size lives in the meta bucket.
// Search is a brute-force cosine scan over an in-memory copy.
type BoltVectorStore struct {
	db         *bbolt.DB
	collection string
	dimension  int
	mu         sync.RWMutex
	// In-memory cache for fast search
	vectors map[string]vectorEntry
}

type vectorEntry struct {
	vector  []float32
	payload domain.Payload
}

type storedVector struct {
	Vector  []float32      `json:"v"`
	Payload domain.Payload `json:"p"`
}

// OpenBoltVectorStore opens (or creates) the database file at path.
func OpenBoltVectorStore(path, collection string) (*BoltVectorStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	store, err := NewBoltVectorStore(db, collection)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// OpenBoltSnapshot loads the collection at path into memory and closes the
// file before returning, so the bbolt lock is not held while the snapshot is
// searched. A missing file yields an empty store. Upsert on a snapshot fails.
func OpenBoltSnapshot(path, collection string) (*BoltVectorStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection name is empty", domain.ErrInvalidInput)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return &BoltVectorStore{collection: collection, vectors: make(map[string]vectorEntry)}, nil
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer db.Close()

	store, err := NewBoltVectorStore(db, collection)
	if err != nil {
		return nil, err
	}
	store.db = nil
	return store, nil
}

// NewBoltVectorStore creates a new BoltDB-backed vector store.
func NewBoltVectorStore(db *bbolt.DB, collection string) (*BoltVectorStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection name is empty", domain.ErrInvalidInput)
	}

	store := &BoltVectorStore{
		db:         db,
		collection: collection,
		vectors:    make(map[string]vectorEntry),
	}

	// Load existing vectors into memory
	if err := store.loadVectors(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return store, nil
}

func (s *BoltVectorStore) bucket() []byte {
	return []byte("collection/" + s.collection)
}

// loadVectors loads the collection's vectors and size from BoltDB into memory.
func (s *BoltVectorStore) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if meta := tx.Bucket(bucketMeta); meta != nil {
			if raw := meta.Get([]byte(s.collection)); raw != nil {
				dim, err := strconv.Atoi(string(raw))
				if err != nil {
					return fmt.Errorf("corrupt size for collection %q: %w", s.collection, err)
				}
				s.dimension = dim
			}
		}

		b := tx.Bucket(s.bucket())
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			s.vectors[string(k)] = vectorEntry{
				vector:  stored.Vector,
				payload: stored.Payload,
			}
			return nil
		})
	})
}

// Upsert adds or updates vectors, creating the collection on first use.
func (s *BoltVectorStore) Upsert(ctx context.Context, items []port.VectorItem) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	dim, err := batchDimension(items)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, errReadOnly
	}
	if s.dimension != 0 && s.dimension != dim {
		return nil, dimensionMismatch(s.collection, s.dimension, dim)
	}

	ids := assignIDs(items)

	err = s.db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if err := meta.Put([]byte(s.collection), []byte(strconv.Itoa(dim))); err != nil {
			return err
		}

		b, err := tx.CreateBucketIfNotExists(s.bucket())
		if err != nil {
			return fmt.Errorf("failed to create collection bucket: %w", err)
		}

		for _, item := range items {
			data, err := json.Marshal(storedVector{Vector: item.Vector, Payload: item.Payload})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(item.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dimension = dim
	for _, item := range items {
		s.vectors[item.ID] = vectorEntry{vector: item.Vector, payload: item.Payload}
	}

	return ids, nil
}

// Search finds the k nearest vectors to the query using cosine similarity.
func (s *BoltVectorStore) Search(ctx context.Context, query []float32, k int) ([]port.VectorResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 {
		return nil, nil
	}
	if len(query) != s.dimension {
		return nil, dimensionMismatch(s.collection, s.dimension, len(query))
	}

	scores := make([]scored, 0, len(s.vectors))
	for id, entry := range s.vectors {
		scores = append(scores, scored{
			id:      id,
			score:   cosineSimilarity(query, entry.vector),
			payload: entry.payload,
		})
	}

	return topK(scores, k), nil
}

// Count returns the number of vectors in the collection.
func (s *BoltVectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

func (s *BoltVectorStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
