package domain

import (
	"context"
	"time"
)

// SessionStore holds all in-flight verification sessions. It is the
// single source of truth for them. Lock/Unlock provide per-user mutual
// exclusion: callers hold the user's lock for the whole operation,
// including any gateway I/O performed mid-operation, so a submit in
// flight cannot interleave with a timeout destroy or a duplicate press
// for the same user. Operations for different users are independent.
type SessionStore interface {
	// Create stores a new session. Returns ErrAlreadyPending if a
	// non-terminal session exists for the user.
	Create(session *Session) error
	// Get returns the session for userID, or ErrSessionNotFound.
	Get(userID int64) (*Session, error)
	// Update replaces the stored session for session.UserID.
	Update(session *Session) error
	// Delete removes the session for userID. Deleting an absent
	// session is a no-op.
	Delete(userID int64)
	// List returns a point-in-time copy of all sessions.
	List() []*Session
	// Len is the number of in-flight sessions.
	Len() int
	// Clear drops every session and returns how many were dropped.
	Clear() int

	// Lock acquires the per-user lock; Unlock releases it.
	Lock(userID int64)
	Unlock(userID int64)
}

// ApprovalRegistry is the durable set of user ids that passed
// verification at least once. Append-only during normal operation.
type ApprovalRegistry interface {
	Add(ctx context.Context, userID int64) error
	Contains(ctx context.Context, userID int64) (bool, error)
	Members(ctx context.Context) ([]int64, error)
	Count(ctx context.Context) (int, error)
}

// UserDirectory tracks every user the bot has interacted with.
type UserDirectory interface {
	// Upsert records the profile, setting FirstSeen on first sight and
	// bumping LastSeen otherwise.
	Upsert(profile UserProfile)
	Get(userID int64) (UserProfile, bool)
	All() []UserProfile
	Count() int
}

// ChallengeGenerator produces a prompt/answer pair from a fixed pool.
type ChallengeGenerator interface {
	Generate() Challenge
}

// ButtonSpec is one inline keyboard button. Exactly one of Data or URL
// is set.
type ButtonSpec struct {
	Text string
	Data string
	URL  string
}

// SendOptions carries optional message attributes.
type SendOptions struct {
	Keyboard [][]ButtonSpec
	Markdown bool
}

// Gateway is the messaging platform capability the core depends on but
// does not own. Every call can fail (user blocked the bot, network);
// callers handle each failure at the point of call.
type Gateway interface {
	SendMessage(ctx context.Context, userID int64, text string, opts *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, userID int64, fileID, caption string) error
	SendVideo(ctx context.Context, userID int64, fileID, caption string) error
	SendDocument(ctx context.Context, userID int64, filename string, data []byte, caption string) error
	EditMessage(ctx context.Context, userID int64, ref MessageRef, text string, opts *SendOptions) error
	DeleteMessage(ctx context.Context, userID int64, ref MessageRef) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	ApproveJoinRequest(ctx context.Context, userID int64) error
	DeclineJoinRequest(ctx context.Context, userID int64) error
	CreateInviteLink(ctx context.Context, expiry time.Duration, singleUse bool) (string, error)
}

// AdmissionStrategy is how a verified user actually enters the channel.
// Two deployments exist: the bot has admin rights on the channel and
// approves the join request directly, or it does not and hands out a
// time-limited single-use invite link instead.
type AdmissionStrategy interface {
	// Admit lets the user in. Called only after the user is recorded
	// in the approval registry.
	Admit(ctx context.Context, userID int64) error
	// Deny rejects the user's pending join request, best effort.
	Deny(ctx context.Context, userID int64) error
}

// AdminGate guards every privileged operation.
type AdminGate interface {
	IsAuthorized(userID int64) bool
	// Require returns ErrPermissionDenied for non-operators.
	Require(userID int64) error
}

// Broadcaster fans one payload out to a fixed recipient snapshot.
type Broadcaster interface {
	Dispatch(ctx context.Context, payload BroadcastPayload, recipients []int64, progress func(BroadcastProgress)) (*BroadcastResult, error)
}

// SnapshotStore persists the state document. Save is invoked fire and
// forget after mutations; a failed save never invalidates the
// in-memory state.
type SnapshotStore interface {
	Load() (*SnapshotDocument, error)
	Save(doc *SnapshotDocument) error
}
