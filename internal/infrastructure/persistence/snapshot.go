package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/gatekeeper/domain"
)

// FileSnapshotStore implements domain.SnapshotStore as a single JSON
// document on disk, written via a temp file and rename.
type FileSnapshotStore struct {
	path string
}

// NewFileSnapshotStore creates a store writing to path.
func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

// Load implements domain.SnapshotStore. A missing file yields an empty
// document, not an error.
func (s *FileSnapshotStore) Load() (*domain.SnapshotDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &domain.SnapshotDocument{UserData: map[int64]domain.UserProfile{}}, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var doc domain.SnapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if doc.UserData == nil {
		doc.UserData = map[int64]domain.UserProfile{}
	}
	return &doc, nil
}

// Save implements domain.SnapshotStore.
func (s *FileSnapshotStore) Save(doc *domain.SnapshotDocument) error {
	doc.LastSaved = time.Now().UTC()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Saver serializes fire-and-forget snapshot writes. Requests arriving
// while a write is in flight coalesce into a single trailing write.
// In-memory state stays authoritative when a write fails; the failure
// is only logged.
type Saver struct {
	store   domain.SnapshotStore
	collect func() *domain.SnapshotDocument
	log     zerolog.Logger
	kick    chan struct{}
	done    chan struct{}
}

// NewSaver creates a Saver. collect builds the document to persist.
func NewSaver(store domain.SnapshotStore, collect func() *domain.SnapshotDocument, log zerolog.Logger) *Saver {
	s := &Saver{
		store:   store,
		collect: collect,
		log:     log.With().Str("component", "snapshot").Logger(),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go s.loop()
	return s
}

// Request schedules a snapshot write. Never blocks.
func (s *Saver) Request() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Close drains pending requests and stops the loop.
func (s *Saver) Close() {
	close(s.kick)
	<-s.done
}

func (s *Saver) loop() {
	defer close(s.done)
	for range s.kick {
		if err := s.store.Save(s.collect()); err != nil {
			s.log.Error().Err(err).Msg("snapshot save failed, in-memory state remains authoritative")
		}
	}
}
