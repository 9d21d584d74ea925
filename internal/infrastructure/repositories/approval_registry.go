package repositories

import (
	"context"
	"sort"
	"sync"
)

// ApprovalRegistryImpl implements domain.ApprovalRegistry in memory.
// The onSave hook is invoked after every successful Add so the caller
// can trigger a fire-and-forget snapshot.
type ApprovalRegistryImpl struct {
	mu       sync.RWMutex
	approved map[int64]struct{}
	onSave   func()
}

// NewApprovalRegistry creates a registry seeded with the given ids.
func NewApprovalRegistry(seed []int64, onSave func()) *ApprovalRegistryImpl {
	approved := make(map[int64]struct{}, len(seed))
	for _, id := range seed {
		approved[id] = struct{}{}
	}
	return &ApprovalRegistryImpl{approved: approved, onSave: onSave}
}

// Add implements domain.ApprovalRegistry. Adding an already approved
// user is a no-op and does not trigger a save.
func (r *ApprovalRegistryImpl) Add(_ context.Context, userID int64) error {
	r.mu.Lock()
	_, exists := r.approved[userID]
	if !exists {
		r.approved[userID] = struct{}{}
	}
	r.mu.Unlock()

	if !exists && r.onSave != nil {
		r.onSave()
	}
	return nil
}

// Contains implements domain.ApprovalRegistry.
func (r *ApprovalRegistryImpl) Contains(_ context.Context, userID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.approved[userID]
	return ok, nil
}

// Members implements domain.ApprovalRegistry. Ids are returned sorted
// so snapshots are stable.
func (r *ApprovalRegistryImpl) Members(_ context.Context) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int64, 0, len(r.approved))
	for id := range r.approved {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Count implements domain.ApprovalRegistry.
func (r *ApprovalRegistryImpl) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.approved), nil
}
