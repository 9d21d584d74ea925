package domain

import "time"

// SessionState is the lifecycle state of a verification session.
// A session is removed from the store as soon as it reaches a
// terminal state; no transition ever leaves a terminal state.
type SessionState int

const (
	StateAwaitingInput SessionState = iota
	StateApproved
	StateDeclined
	StateExpired
)

func (s SessionState) Terminal() bool { return s != StateAwaitingInput }

func (s SessionState) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StateApproved:
		return "approved"
	case StateDeclined:
		return "declined"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// MessageRef is an opaque handle to a message the gateway delivered,
// kept so the challenge can be edited in place.
type MessageRef int64

// Challenge is a generated prompt/answer pair. Answer holds the
// normalized canonical form. Options is populated only for the
// multiple-choice family and contains the canonical answer exactly once.
type Challenge struct {
	Prompt  string
	Answer  string
	Options []string
}

// Session tracks one user's in-flight verification. At most one
// non-terminal session exists per user id.
type Session struct {
	UserID            int64
	Prompt            string
	Answer            string
	Options           []string
	AttemptsRemaining int
	InputBuffer       string
	CreatedAt         time.Time
	State             SessionState
	ChallengeMessage  MessageRef
}

// ExpiredAt reports whether the session has outlived ttl at the given time.
func (s *Session) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}

// ApplyChallenge swaps in a fresh challenge and clears the input buffer.
// AttemptsRemaining is left untouched.
func (s *Session) ApplyChallenge(ch Challenge) {
	s.Prompt = ch.Prompt
	s.Answer = ch.Answer
	s.Options = ch.Options
	s.InputBuffer = ""
}

// UserProfile describes a user the bot has seen at least once.
type UserProfile struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// BroadcastKind selects the payload content type.
type BroadcastKind string

const (
	BroadcastText  BroadcastKind = "text"
	BroadcastPhoto BroadcastKind = "photo"
	BroadcastVideo BroadcastKind = "video"
)

// BroadcastPayload is the message fanned out by a broadcast job.
// FileID references platform-hosted media for photo/video payloads.
type BroadcastPayload struct {
	Kind    BroadcastKind
	Text    string
	FileID  string
	Caption string
}

// BroadcastProgress is reported after every progress batch and after
// the final send. Sent+Failed is monotonically non-decreasing across
// successive reports of one job.
type BroadcastProgress struct {
	Sent    int
	Failed  int
	Total   int
	Percent float64
}

// BroadcastResult summarizes a completed job. Sent+Failed == Total.
type BroadcastResult struct {
	Sent      int
	Failed    int
	Total     int
	StartedAt time.Time
	Duration  time.Duration
}

// Stats is the read-only counter set served to operators.
type Stats struct {
	TotalUsers     int       `json:"total_users"`
	ApprovedUsers  int       `json:"approved_users"`
	ActiveSessions int       `json:"active_sessions"`
	NewLast24h     int       `json:"new_last_24h"`
	NewLast7d      int       `json:"new_last_7d"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// PendingEntry describes one in-flight session for the operator listing.
type PendingEntry struct {
	UserID       int64  `json:"user_id"`
	Prompt       string `json:"prompt"`
	AttemptsUsed int    `json:"attempts_used"`
	SecondsLeft  int    `json:"seconds_left"`
}

// ExportUser is one row of the operator data export.
type ExportUser struct {
	UserProfile
	Approved bool `json:"approved"`
}

// ExportDocument is the full data export sent to an operator.
type ExportDocument struct {
	ExportedAt    time.Time    `json:"exported_at"`
	TotalUsers    int          `json:"total_users"`
	ApprovedUsers int          `json:"approved_users"`
	Users         []ExportUser `json:"users"`
}

// SnapshotDocument is the persisted state layout: loaded at startup,
// rewritten (best effort) after every mutating operation.
type SnapshotDocument struct {
	ApprovedUsers []int64               `json:"approved_users"`
	UserData      map[int64]UserProfile `json:"user_data"`
	LastSaved     time.Time             `json:"last_saved"`
}
