package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

const (
	entryPrefix = "e:"
	modelPrefix = "m:"
)

// Entry is one cached embedding.
type Entry struct {
	Vector    []float32 `json:"vector"`
	Dims      int       `json:"dims"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a Badger-backed fingerprint cache. It is safe for concurrent use
// by multiple workers; per-key operations are linearizable and bulk writes
// commit atomically.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// writeMu serializes write transactions; concurrent workers writing
	// distinct fingerprints would otherwise conflict on the shared
	// per-model dims key under Badger's SSI.
	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// Open opens (or creates) the cache at path. An empty path opens an
// in-memory store, used by tests and by deployments that opt out of
// persistence.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database. Further operations fail with
// ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Get returns the entry for a fingerprint, reporting whether it was found.
func (s *Store) Get(fingerprint string) (*Entry, bool, error) {
	if s.isClosed() {
		return nil, false, ErrClosed
	}

	var entry *Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(entryPrefix + fingerprint))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var e Entry
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("corrupt cache entry %s: %w", fingerprint, err)
			}
			entry = &e
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// BulkGet returns the cached entries for the given fingerprints, keyed by
// fingerprint. Missing fingerprints are simply absent from the result.
func (s *Store) BulkGet(fingerprints []string) (map[string]*Entry, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	if len(fingerprints) == 0 {
		return map[string]*Entry{}, nil
	}

	out := make(map[string]*Entry, len(fingerprints))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, fp := range fingerprints {
			item, err := txn.Get([]byte(entryPrefix + fp))
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var e Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("corrupt cache entry %s: %w", fp, err)
			}
			out[fp] = &e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("cache bulk get", "requested", len(fingerprints), "hits", len(out))
	return out, nil
}

// Put stores a single entry, enforcing the per-model dimensionality guard.
func (s *Store) Put(fingerprint string, entry *Entry) error {
	return s.BulkPut(map[string]*Entry{fingerprint: entry})
}

// BulkPut stores entries atomically: either every entry is committed or, on
// any failure (including a dimension mismatch), none are. Entries whose
// fingerprint already exists are left untouched.
func (s *Store) BulkPut(entries map[string]*Entry) error {
	if s.isClosed() {
		return ErrClosed
	}
	if len(entries) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		// Dims recorded for each model in this transaction, seeded from
		// what the store already knows.
		batchDims := make(map[string]int)

		for fp, entry := range entries {
			if entry.Dims == 0 {
				entry.Dims = len(entry.Vector)
			}
			if entry.Dims != len(entry.Vector) {
				return fmt.Errorf("entry %s: dims %d does not match vector length %d", fp, entry.Dims, len(entry.Vector))
			}

			known, ok := batchDims[entry.Model]
			if !ok {
				stored, found, err := modelDims(txn, entry.Model)
				if err != nil {
					return err
				}
				if found {
					known, ok = stored, true
				}
			}
			if ok && known != entry.Dims {
				return &DimensionMismatchError{Model: entry.Model, Expected: known, Got: entry.Dims}
			}
			batchDims[entry.Model] = entry.Dims

			if _, err := txn.Get([]byte(entryPrefix + fp)); err == nil {
				// Already cached, first write wins.
				continue
			} else if err != badger.ErrKeyNotFound {
				return err
			}

			if entry.CreatedAt.IsZero() {
				entry.CreatedAt = time.Now().UTC()
			}
			val, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(entryPrefix+fp), val); err != nil {
				return err
			}
		}

		for model, dims := range batchDims {
			if err := txn.Set([]byte(modelPrefix+model), []byte(strconv.Itoa(dims))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("cache bulk put", "stored", len(entries))
	return nil
}

// Dims returns the dimensionality recorded for a model, reporting whether
// the model has been seen before.
func (s *Store) Dims(model string) (int, bool, error) {
	if s.isClosed() {
		return 0, false, ErrClosed
	}

	var dims int
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		dims, found, err = modelDims(txn, model)
		return err
	})
	return dims, found, err
}

func modelDims(txn *badger.Txn, model string) (int, bool, error) {
	item, err := txn.Get([]byte(modelPrefix + model))
	if err == badger.ErrKeyNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	var dims int
	if err := item.Value(func(val []byte) error {
		var convErr error
		dims, convErr = strconv.Atoi(string(val))
		return convErr
	}); err != nil {
		return 0, false, fmt.Errorf("corrupt dims record for model %q: %w", model, err)
	}
	return dims, true, nil
}
