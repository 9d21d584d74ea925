package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/gatekeeper/domain"
)

// AdminService is the privileged operation surface. Every method
// checks the gate before touching any state; denied callers get
// ErrPermissionDenied and zero side effects.
type AdminService struct {
	gate        domain.AdminGate
	sessions    domain.SessionStore
	registry    domain.ApprovalRegistry
	users       domain.UserDirectory
	broadcaster domain.Broadcaster
	verifyCfg   VerificationConfig
	log         zerolog.Logger
	now         func() time.Time

	mu      sync.Mutex
	staged  map[int64]domain.BroadcastPayload
	running bool
}

// NewAdminService wires the admin surface.
func NewAdminService(
	gate domain.AdminGate,
	sessions domain.SessionStore,
	registry domain.ApprovalRegistry,
	users domain.UserDirectory,
	broadcaster domain.Broadcaster,
	verifyCfg VerificationConfig,
	log zerolog.Logger,
) *AdminService {
	return &AdminService{
		gate:        gate,
		sessions:    sessions,
		registry:    registry,
		users:       users,
		broadcaster: broadcaster,
		verifyCfg:   verifyCfg,
		log:         log.With().Str("component", "admin").Logger(),
		now:         time.Now,
		staged:      make(map[int64]domain.BroadcastPayload),
	}
}

// Stats returns the read-only counter set.
func (a *AdminService) Stats(ctx context.Context, adminID int64) (*domain.Stats, error) {
	if err := a.gate.Require(adminID); err != nil {
		return nil, err
	}

	approved, err := a.registry.Count(ctx)
	if err != nil {
		return nil, err
	}

	now := a.now()
	stats := &domain.Stats{
		TotalUsers:     a.users.Count(),
		ApprovedUsers:  approved,
		ActiveSessions: a.sessions.Len(),
		GeneratedAt:    now,
	}
	for _, profile := range a.users.All() {
		age := now.Sub(profile.FirstSeen)
		if age <= 24*time.Hour {
			stats.NewLast24h++
		}
		if age <= 7*24*time.Hour {
			stats.NewLast7d++
		}
	}
	return stats, nil
}

// Pending lists the in-flight sessions, soonest to expire first.
func (a *AdminService) Pending(ctx context.Context, adminID int64) ([]domain.PendingEntry, error) {
	if err := a.gate.Require(adminID); err != nil {
		return nil, err
	}

	now := a.now()
	var entries []domain.PendingEntry
	for _, session := range a.sessions.List() {
		left := a.verifyCfg.SessionTTL - now.Sub(session.CreatedAt)
		if left < 0 {
			left = 0
		}
		entries = append(entries, domain.PendingEntry{
			UserID:       session.UserID,
			Prompt:       session.Prompt,
			AttemptsUsed: a.verifyCfg.Attempts - session.AttemptsRemaining,
			SecondsLeft:  int(left.Seconds()),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].SecondsLeft < entries[j].SecondsLeft })
	return entries, nil
}

// Export builds the full data-export document.
func (a *AdminService) Export(ctx context.Context, adminID int64) (*domain.ExportDocument, error) {
	if err := a.gate.Require(adminID); err != nil {
		return nil, err
	}

	approved, err := a.registry.Count(ctx)
	if err != nil {
		return nil, err
	}

	doc := &domain.ExportDocument{
		ExportedAt:    a.now(),
		TotalUsers:    a.users.Count(),
		ApprovedUsers: approved,
	}
	for _, profile := range a.users.All() {
		ok, err := a.registry.Contains(ctx, profile.ID)
		if err != nil {
			return nil, err
		}
		doc.Users = append(doc.Users, domain.ExportUser{UserProfile: profile, Approved: ok})
	}
	sort.Slice(doc.Users, func(i, j int) bool { return doc.Users[i].ID < doc.Users[j].ID })
	return doc, nil
}

// Clear empties the session store and returns how many sessions fell.
func (a *AdminService) Clear(ctx context.Context, adminID int64) (int, error) {
	if err := a.gate.Require(adminID); err != nil {
		return 0, err
	}
	n := a.sessions.Clear()
	a.log.Info().Int("cleared", n).Int64("admin_id", adminID).Msg("session store cleared")
	return n, nil
}

// StageBroadcast stores a payload awaiting explicit confirmation. Each
// operator has at most one staged payload; staging again replaces it.
func (a *AdminService) StageBroadcast(adminID int64, payload domain.BroadcastPayload) error {
	if err := a.gate.Require(adminID); err != nil {
		return err
	}
	a.mu.Lock()
	a.staged[adminID] = payload
	a.mu.Unlock()
	return nil
}

// Staged returns the operator's staged payload, if any.
func (a *AdminService) Staged(adminID int64) (domain.BroadcastPayload, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	payload, ok := a.staged[adminID]
	return payload, ok
}

// CancelBroadcast discards the operator's staged payload.
func (a *AdminService) CancelBroadcast(adminID int64) error {
	if err := a.gate.Require(adminID); err != nil {
		return err
	}
	a.mu.Lock()
	delete(a.staged, adminID)
	a.mu.Unlock()
	return nil
}

// ConfirmBroadcast consumes the staged payload and dispatches it to a
// snapshot of every known user. One job at a time.
func (a *AdminService) ConfirmBroadcast(ctx context.Context, adminID int64, progress func(domain.BroadcastProgress)) (*domain.BroadcastResult, error) {
	if err := a.gate.Require(adminID); err != nil {
		return nil, err
	}

	a.mu.Lock()
	payload, ok := a.staged[adminID]
	if !ok {
		a.mu.Unlock()
		return nil, domain.ErrNoStagedBroadcast
	}
	if a.running {
		a.mu.Unlock()
		return nil, domain.ErrBroadcastRunning
	}
	delete(a.staged, adminID)
	a.running = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	profiles := a.users.All()
	recipients := make([]int64, 0, len(profiles))
	for _, p := range profiles {
		recipients = append(recipients, p.ID)
	}
	sort.Slice(recipients, func(i, j int) bool { return recipients[i] < recipients[j] })

	return a.broadcaster.Dispatch(ctx, payload, recipients, progress)
}
