package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vessel-monitor/backend/internal/models"
)

// Store defines the interface for export file storage.
type Store interface {
	Save(name string, rows int, r io.Reader) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	GetFilePath(id string) (string, error)
	Prune(keep int) (int, error)
}

// LocalStore implements Store using the local filesystem.
type LocalStore struct {
	mu        sync.RWMutex
	exportDir string
	files     map[string]*models.FileInfo
	now       func() time.Time
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(exportDir string) (*LocalStore, error) {
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	return &LocalStore{
		exportDir: exportDir,
		files:     make(map[string]*models.FileInfo),
		now:       time.Now,
	}, nil
}

// Save writes r to a new file and records it under a fresh id.
func (s *LocalStore) Save(name string, rows int, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.exportDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.FileInfo{
		ID:        id,
		Name:      name,
		Size:      size,
		CreatedAt: s.now(),
		Rows:      rows,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info

	copied := *info
	return &copied, nil
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}

	copied := *info
	return &copied, nil
}

// List returns the most recent files.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.sortedLocked()
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	out := make([]*models.FileInfo, len(list))
	for i, info := range list {
		copied := *info
		out[i] = &copied
	}
	return out, nil
}

// Delete removes a file from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

// GetFilePath returns the absolute path to a file.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("file not found: %s", id)
	}

	return filepath.Join(s.exportDir, id), nil
}

// Prune deletes all but the keep most recent files and returns how many were removed.
// keep <= 0 keeps everything.
func (s *LocalStore) Prune(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.sortedLocked()
	removed := 0
	for _, info := range list[min(keep, len(list)):] {
		if err := s.deleteLocked(info.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// sortedLocked returns files newest first.
func (s *LocalStore) sortedLocked() []*models.FileInfo {
	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

func (s *LocalStore) deleteLocked(id string) error {
	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("file not found: %s", id)
	}

	path := filepath.Join(s.exportDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}
