// Package document implements the JSON file backend of the record store.
// The whole file is one Document; every access loads it, and a mutating
// access writes it back atomically. A Store serializes all accesses within
// the process, so concurrent requests cannot lose each other's updates.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/reembolsai/internal/server/models"
)

// Document is the persisted shape: three top-level collections.
type Document struct {
	Users          []*models.User          `json:"users"`
	Reimbursements []*models.Reimbursement `json:"reimbursements"`
	Logs           []*models.ActionLog     `json:"logs"`

	dirty bool
}

// Touch marks the document as modified so the store writes it back.
func (d *Document) Touch() {
	d.dirty = true
}

func (d *Document) Dirty() bool {
	return d.dirty
}

func empty() *Document {
	return &Document{
		Users:          []*models.User{},
		Reimbursements: []*models.Reimbursement{},
		Logs:           []*models.ActionLog{},
	}
}

// Store owns one document file.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Update runs fn against a freshly loaded document while holding the store
// lock. When fn returns nil and touched the document, it is persisted; on
// error nothing is written, so fn's changes are discarded as a whole.
func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, d *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	d, err := s.load()
	if err != nil {
		return err
	}

	if err := fn(ctx, d); err != nil {
		return err
	}

	if !d.dirty {
		return nil
	}
	return s.persist(d)
}

// Ping checks that the document can be read.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.load()
	return err
}

func (s *Store) load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return empty(), nil
		}
		return nil, fmt.Errorf("read document: %w", err)
	}

	d := empty()
	if len(data) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", s.path, err)
	}
	// null arrays in hand-edited files
	if d.Users == nil {
		d.Users = []*models.User{}
	}
	if d.Reimbursements == nil {
		d.Reimbursements = []*models.Reimbursement{}
	}
	if d.Logs == nil {
		d.Logs = []*models.ActionLog{}
	}
	return d, nil
}

func (s *Store) persist(d *Document) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace document: %w", err)
	}

	d.dirty = false
	return nil
}
