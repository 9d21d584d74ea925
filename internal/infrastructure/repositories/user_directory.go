package repositories

import (
	"sync"
	"time"

	"github.com/you/gatekeeper/domain"
)

// UserDirectoryImpl implements domain.UserDirectory in memory. The
// directory feeds broadcast recipient snapshots and operator
// statistics; it is persisted through the snapshot document.
type UserDirectoryImpl struct {
	mu     sync.RWMutex
	users  map[int64]domain.UserProfile
	onSave func()
	now    func() time.Time
}

// NewUserDirectory creates a directory seeded from a snapshot.
func NewUserDirectory(seed map[int64]domain.UserProfile, onSave func()) *UserDirectoryImpl {
	users := make(map[int64]domain.UserProfile, len(seed))
	for id, profile := range seed {
		users[id] = profile
	}
	return &UserDirectoryImpl{users: users, onSave: onSave, now: time.Now}
}

// Upsert implements domain.UserDirectory.
func (d *UserDirectoryImpl) Upsert(profile domain.UserProfile) {
	now := d.now()

	d.mu.Lock()
	existing, ok := d.users[profile.ID]
	if ok {
		existing.Username = profile.Username
		existing.FullName = profile.FullName
		existing.LastSeen = now
		d.users[profile.ID] = existing
	} else {
		profile.FirstSeen = now
		profile.LastSeen = now
		d.users[profile.ID] = profile
	}
	d.mu.Unlock()

	if d.onSave != nil {
		d.onSave()
	}
}

// Get implements domain.UserDirectory.
func (d *UserDirectoryImpl) Get(userID int64) (domain.UserProfile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	profile, ok := d.users[userID]
	return profile, ok
}

// All implements domain.UserDirectory.
func (d *UserDirectoryImpl) All() []domain.UserProfile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.UserProfile, 0, len(d.users))
	for _, profile := range d.users {
		out = append(out, profile)
	}
	return out
}

// Count implements domain.UserDirectory.
func (d *UserDirectoryImpl) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}
