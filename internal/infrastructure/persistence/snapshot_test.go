package persistence

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/gatekeeper/domain"
)

func TestFileSnapshotStore_RoundTrip(t *testing.T) {
	store := NewFileSnapshotStore(filepath.Join(t.TempDir(), "state", "data.json"))

	doc := &domain.SnapshotDocument{
		ApprovedUsers: []int64{100, 200},
		UserData: map[int64]domain.UserProfile{
			100: {ID: 100, Username: "alice", FirstSeen: time.Now().UTC().Truncate(time.Second)},
		},
	}
	if err := store.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if doc.LastSaved.IsZero() {
		t.Error("LastSaved not stamped")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.ApprovedUsers) != 2 {
		t.Errorf("approved = %v", loaded.ApprovedUsers)
	}
	if loaded.UserData[100].Username != "alice" {
		t.Errorf("user data = %+v", loaded.UserData)
	}
}

func TestFileSnapshotStore_MissingFile(t *testing.T) {
	store := NewFileSnapshotStore(filepath.Join(t.TempDir(), "absent.json"))

	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load of missing file: %v", err)
	}
	if len(doc.ApprovedUsers) != 0 || doc.UserData == nil {
		t.Errorf("expected empty document, got %+v", doc)
	}
}

type failingStore struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *failingStore) Load() (*domain.SnapshotDocument, error) {
	return &domain.SnapshotDocument{}, nil
}

func (f *failingStore) Save(*domain.SnapshotDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("disk full")
	}
	return nil
}

func (f *failingStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSaver_WritesAndToleratesFailure(t *testing.T) {
	store := &failingStore{fail: true}
	saver := NewSaver(store, func() *domain.SnapshotDocument {
		return &domain.SnapshotDocument{}
	}, zerolog.Nop())

	saver.Request()
	saver.Request()
	saver.Close()

	// A failed save is logged and dropped; the saver never panics or
	// blocks subsequent requests.
	if store.count() == 0 {
		t.Error("no save attempted")
	}
}
