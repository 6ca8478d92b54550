package mapstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/mitchelldurbincs/FogOfWarPreview/internal/retry"
)

// FileStoreConfig contains configuration for the file-backed store
type FileStoreConfig struct {
	Dir         string
	ReadPolicy  retry.Policy
	WritePolicy retry.Policy
}

// DefaultFileStoreConfig returns a default file store configuration
func DefaultFileStoreConfig() FileStoreConfig {
	return FileStoreConfig{
		Dir:         "data",
		ReadPolicy:  retry.ConstantPolicy(3, 25*time.Millisecond),
		WritePolicy: retry.LinearPolicy(3, 100*time.Millisecond),
	}
}

// FileStore keeps one <map>_data.json file per map. Writes go through a temp
// file and a rename so a concurrent reader sees either the old or the new
// document.
type FileStore struct {
	config FileStoreConfig
	fs     afero.Fs
	logger zerolog.Logger
	now    func() time.Time

	// writeMu serializes Save/Update/Delete across all maps
	writeMu sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// NewFileStore creates a store on the OS file system
func NewFileStore(config FileStoreConfig, logger zerolog.Logger) (*FileStore, error) {
	return NewFileStoreWithFs(afero.NewOsFs(), config, logger)
}

// NewMemoryStore creates a store that keeps documents in memory only
func NewMemoryStore(logger zerolog.Logger) *FileStore {
	config := DefaultFileStoreConfig()
	config.Dir = "/"
	store, _ := NewFileStoreWithFs(afero.NewMemMapFs(), config, logger)
	return store
}

// NewFileStoreWithFs creates a store on an arbitrary file system
func NewFileStoreWithFs(fsys afero.Fs, config FileStoreConfig, logger zerolog.Logger) (*FileStore, error) {
	if err := fsys.MkdirAll(config.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{
		config: config,
		fs:     fsys,
		logger: logger.With().Str("component", "map_store").Logger(),
		now:    time.Now,
	}, nil
}

func (s *FileStore) path(mapName string) string {
	return filepath.Join(s.config.Dir, mapName+"_data.json")
}

// Load reads and parses the document for mapName
func (s *FileStore) Load(ctx context.Context, mapName string) (Document, error) {
	if err := ValidateMapName(mapName); err != nil {
		return nil, err
	}
	path := s.path(mapName)

	data, err := retry.Do(ctx, s.config.ReadPolicy, func(attempt int, err error, wait time.Duration) {
		s.count(func(st *Stats) { st.ReadRetries++ })
		s.logger.Debug().Err(err).Str("map", mapName).Int("attempt", attempt).Dur("wait", wait).Msg("Retrying document read")
	}, func() ([]byte, error) {
		data, err := afero.ReadFile(s.fs, path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, retry.Permanent(ErrNotFound)
		}
		return data, err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, mapName)
		}
		s.count(func(st *Stats) { st.ReadErrors++ })
		return nil, fmt.Errorf("read document %s: %w", mapName, err)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		s.count(func(st *Stats) { st.ReadErrors++ })
		if qerr := s.quarantine(mapName, data, err); qerr != nil {
			return nil, fmt.Errorf("%w: %w: %v", err, ErrQuarantineFailed, qerr)
		}
		return nil, err
	}

	s.count(func(st *Stats) { st.Loads++ })
	return doc, nil
}

// quarantine moves an unparsable document aside so the next write starts
// fresh without destroying the old bytes. When the file cannot be renamed the
// bytes are copied to the backup name instead.
func (s *FileStore) quarantine(mapName string, data []byte, cause error) error {
	backup := filepath.Join(s.config.Dir, fmt.Sprintf("%s_data_backup_%d.json", mapName, s.now().UnixMilli()))
	if err := s.fs.Rename(s.path(mapName), backup); err != nil {
		s.logger.Warn().Err(err).Str("map", mapName).Msg("Rename of corrupt document failed, copying it aside")
		if werr := afero.WriteFile(s.fs, backup, data, 0o644); werr != nil {
			s.logger.Error().Err(werr).Str("map", mapName).Msg("Failed to back up corrupt document")
			return errors.Join(err, werr)
		}
	}
	s.count(func(st *Stats) { st.Quarantined++ })
	s.logger.Warn().
		Err(cause).
		Str("map", mapName).
		Int("size", len(data)).
		Str("backup", backup).
		Msg("Corrupt map document quarantined")
	return nil
}

// Save writes the whole document
func (s *FileStore) Save(ctx context.Context, mapName string, doc Document) error {
	if err := ValidateMapName(mapName); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.save(ctx, mapName, doc)
}

// Update loads, mutates and saves a document while holding the write lock
func (s *FileStore) Update(ctx context.Context, mapName string, fn func(doc Document) error) error {
	if err := ValidateMapName(mapName); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc, err := s.Load(ctx, mapName)
	if errors.Is(err, ErrQuarantineFailed) {
		s.count(func(st *Stats) { st.WriteErrors++ })
		return fmt.Errorf("%w: %s: %v", ErrPersistFailed, mapName, err)
	}
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Str("map", mapName).Msg("Starting from a default document")
		}
		doc = DefaultDocument()
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(ctx, mapName, doc)
}

func (s *FileStore) save(ctx context.Context, mapName string, doc Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("encode document %s: %w", mapName, err)
	}

	err = retry.Run(ctx, s.config.WritePolicy, func(attempt int, err error, wait time.Duration) {
		s.count(func(st *Stats) { st.WriteRetries++ })
		s.logger.Warn().Err(err).Str("map", mapName).Int("attempt", attempt).Dur("wait", wait).Msg("Retrying document write")
	}, func() error {
		return s.writeAtomic(s.path(mapName), data)
	})
	if err != nil {
		s.count(func(st *Stats) { st.WriteErrors++ })
		return fmt.Errorf("%w: %s: %v", ErrPersistFailed, mapName, err)
	}

	s.count(func(st *Stats) {
		st.Saves++
		st.BytesWritten += int64(len(data))
		st.LastWriteTime = s.now()
	})
	s.logger.Debug().Str("map", mapName).Int("bytes", len(data)).Msg("Document saved")
	return nil
}

func (s *FileStore) writeAtomic(path string, data []byte) error {
	tmp, err := afero.TempFile(s.fs, filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = s.fs.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// Delete removes the document for mapName
func (s *FileStore) Delete(ctx context.Context, mapName string) (bool, error) {
	if err := ValidateMapName(mapName); err != nil {
		return false, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.fs.Remove(s.path(mapName))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete document %s: %w", mapName, err)
	}
	s.count(func(st *Stats) { st.Deletes++ })
	return true, nil
}

// Stats returns a copy of the store statistics
func (s *FileStore) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *FileStore) count(fn func(*Stats)) {
	s.statsMu.Lock()
	fn(&s.stats)
	s.statsMu.Unlock()
}
