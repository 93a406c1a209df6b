package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"ongoing/pkg/fileutil"
	"ongoing/pkg/logger"
)

// FileStore is a JSON file backed key-value store.
//
// It keeps no in-memory copy: every read loads the whole file and every
// write replaces it atomically, so edits made by another process (the
// admin CLI against a running daemon) are visible on the next access.
//
// Writers hold an exclusive advisory lock on <file>.lock for the whole
// load-modify-save and readers hold a shared one, so two processes never
// lose each other's updates. The mutex orders goroutines of this process
// before they contend for the file lock.
type FileStore struct {
	log      *logger.Logger
	filePath string
	mu       sync.Mutex
	lock     *flock.Flock
}

// lockRetryDelay is how often a blocked caller polls the file lock.
const lockRetryDelay = 5 * time.Millisecond

// NewFileStore creates a file store. The directory is created on first use.
func NewFileStore(log *logger.Logger, filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &FileStore{
		log:      log,
		filePath: filePath,
		lock:     flock.New(filePath + ".lock"),
	}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.filePath
}

// withLock runs fn holding the process mutex and the file lock, exclusive
// for writers and shared for readers.
func (s *FileStore) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = s.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = s.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err == nil && !locked {
		err = ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("locking %s: %w", s.lock.Path(), err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.log.Warn("Failed to release state lock", zap.String("file", s.lock.Path()), zap.Error(err))
		}
	}()

	return fn()
}

// load reads the file. A missing or empty file is an empty store. So is a
// file that fails to decode; corrupt reports that case so writers can move
// the damaged file aside before replacing it.
func (s *FileStore) load() (data map[string]interface{}, corrupt bool, err error) {
	data = make(map[string]interface{})
	if _, err := fileutil.ReadJSON(s.filePath, &data); err != nil {
		if errors.Is(err, fileutil.ErrCorrupt) {
			s.log.Warn("State file is unreadable, treating as empty",
				zap.String("file", s.filePath), zap.Error(err))
			return make(map[string]interface{}), true, nil
		}
		return nil, false, fmt.Errorf("loading state: %w", err)
	}
	if data == nil {
		data = make(map[string]interface{})
	}
	return data, false, nil
}

func (s *FileStore) save(data map[string]interface{}, corrupt bool) error {
	if corrupt {
		aside := fmt.Sprintf("%s.corrupt-%d", s.filePath, time.Now().Unix())
		if err := os.Rename(s.filePath, aside); err != nil {
			return fmt.Errorf("moving corrupt state aside: %w", err)
		}
		s.log.Warn("Moved corrupt state file aside", zap.String("file", aside))
	}
	if err := fileutil.WriteJSONAtomic(s.filePath, data, 0644); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	s.log.Debug("Saved state", zap.String("file", s.filePath), zap.Int("keys", len(data)))
	return nil
}

// Get retrieves a value from the store.
func (s *FileStore) Get(ctx context.Context, key string) (value interface{}, exists bool, err error) {
	err = s.withLock(ctx, false, func() error {
		data, _, err := s.load()
		if err != nil {
			return err
		}
		value, exists = data[key]
		return nil
	})
	return value, exists, err
}

// Set stores a value.
func (s *FileStore) Set(ctx context.Context, key string, value interface{}) error {
	return s.SetMany(ctx, map[string]interface{}{key: value})
}

// SetMany stores all values in one save.
func (s *FileStore) SetMany(ctx context.Context, values map[string]interface{}) error {
	return s.withLock(ctx, true, func() error {
		data, corrupt, err := s.load()
		if err != nil {
			return err
		}
		for k, v := range values {
			data[k] = v
		}
		return s.save(data, corrupt)
	})
}

// Delete removes a value.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	return s.withLock(ctx, true, func() error {
		data, corrupt, err := s.load()
		if err != nil {
			return err
		}
		if _, ok := data[key]; !ok {
			return nil
		}
		delete(data, key)
		return s.save(data, corrupt)
	})
}

// Keys returns all keys in the store.
func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	data, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	return keys, nil
}

// GetAll returns a copy of all data.
func (s *FileStore) GetAll(ctx context.Context) (data map[string]interface{}, err error) {
	err = s.withLock(ctx, false, func() error {
		data, _, err = s.load()
		return err
	})
	return data, err
}

// GetMany reads keys from a single load of the file.
func (s *FileStore) GetMany(ctx context.Context, keys ...string) (map[string]interface{}, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		if v, ok := all[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}

// UpdateFunc atomically updates a value using a function.
func (s *FileStore) UpdateFunc(ctx context.Context, key string, updateFn func(current interface{}) (interface{}, error)) error {
	return s.withLock(ctx, true, func() error {
		data, corrupt, err := s.load()
		if err != nil {
			return err
		}
		next, err := updateFn(data[key])
		if err != nil {
			return err
		}
		data[key] = next
		return s.save(data, corrupt)
	})
}

// Close is a no-op; the lock is only held during a call.
func (s *FileStore) Close() error {
	return nil
}
