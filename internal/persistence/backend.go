package persistence

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

func noClose() error { return nil }

// OpenBackend opens the named storage backend: "sqlite" (a database file at
// path) or "file" (a directory of JSON files at path). The returned close
// function is never nil, even on error.
func OpenBackend(backend, path string) (Storage, func() error, error) {
	switch backend {
	case "sqlite":
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, noClose, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
			}
		}
		db, err := Open(path)
		if err != nil {
			return nil, noClose, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		return db, db.Close, nil
	case "file":
		fs, err := NewFileStorage(path)
		if err != nil {
			return nil, noClose, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		return fs, noClose, nil
	default:
		return nil, noClose, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// OpenOrMemory is OpenBackend that never fails: when the backend cannot be
// opened it logs a warning and returns in-process storage, so the game
// still runs but nothing outlives the process.
func OpenOrMemory(backend, path string) (Storage, func() error) {
	store, closeFn, err := OpenBackend(backend, path)
	if err != nil {
		slog.Warn("storage unavailable, progress will not be kept", "backend", backend, "path", path, "error", err)
		return NewMemoryStorage(), noClose
	}
	return store, closeFn
}
