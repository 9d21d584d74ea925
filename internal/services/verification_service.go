package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/gatekeeper/domain"
)

// VerificationConfig carries the retry/timeout policy.
type VerificationConfig struct {
	Attempts   int
	SessionTTL time.Duration
}

// SubmitOutcome reports what a submitted answer led to.
type SubmitOutcome int

const (
	OutcomeRetry SubmitOutcome = iota
	OutcomeApproved
	OutcomeDeclined
)

// VerificationService is the session state machine: it owns every
// session transition from join request to a terminal state. All
// per-user entry points take the user's lock for their whole duration,
// gateway I/O included, so transitions for one user never interleave.
type VerificationService struct {
	sessions   domain.SessionStore
	registry   domain.ApprovalRegistry
	users      domain.UserDirectory
	challenges domain.ChallengeGenerator
	gateway    domain.Gateway
	admission  domain.AdmissionStrategy
	adminIDs   []int64
	cfg        VerificationConfig
	log        zerolog.Logger
	now        func() time.Time
}

// NewVerificationService wires the state machine.
func NewVerificationService(
	sessions domain.SessionStore,
	registry domain.ApprovalRegistry,
	users domain.UserDirectory,
	challenges domain.ChallengeGenerator,
	gw domain.Gateway,
	admission domain.AdmissionStrategy,
	adminIDs []int64,
	cfg VerificationConfig,
	log zerolog.Logger,
) *VerificationService {
	return &VerificationService{
		sessions:   sessions,
		registry:   registry,
		users:      users,
		challenges: challenges,
		gateway:    gw,
		admission:  admission,
		adminIDs:   adminIDs,
		cfg:        cfg,
		log:        log.With().Str("component", "verification").Logger(),
		now:        time.Now,
	}
}

// OnJoinRequest handles an inbound join request. Already approved
// users are admitted immediately and idempotently, with no session. A
// user with a session in flight is left alone: the first challenge
// wins. Everyone else gets a fresh challenge.
func (s *VerificationService) OnJoinRequest(ctx context.Context, userID int64, profile domain.UserProfile) error {
	s.users.Upsert(profile)

	s.sessions.Lock(userID)
	defer s.sessions.Unlock(userID)

	approved, err := s.registry.Contains(ctx, userID)
	if err != nil {
		return err
	}
	if approved {
		if err := s.admission.Admit(ctx, userID); err != nil {
			s.log.Error().Err(err).Int64("user_id", userID).Msg("re-admit failed")
			return nil
		}
		s.notify(ctx, userID, msgAdmitted)
		return nil
	}

	if _, err := s.sessions.Get(userID); err == nil {
		// Duplicate join request while a challenge is pending.
		return nil
	}

	return s.issueChallengeLocked(ctx, userID, profile)
}

// StartVerification begins a challenge for a user who pressed the
// start button (the invite-link deployment, where no join request
// reaches the bot). Behavior mirrors OnJoinRequest.
func (s *VerificationService) StartVerification(ctx context.Context, userID int64, profile domain.UserProfile) error {
	return s.OnJoinRequest(ctx, userID, profile)
}

func (s *VerificationService) issueChallengeLocked(ctx context.Context, userID int64, profile domain.UserProfile) error {
	session := &domain.Session{
		UserID:            userID,
		AttemptsRemaining: s.cfg.Attempts,
		CreatedAt:         s.now(),
		State:             domain.StateAwaitingInput,
	}
	session.ApplyChallenge(s.challenges.Generate())

	ref, err := s.gateway.SendMessage(ctx, userID, renderChallenge(session), &domain.SendOptions{
		Keyboard: challengeKeyboard(session),
	})
	if err != nil {
		// No session is stored when the challenge cannot reach the
		// user; operators are told so they can reach out manually.
		s.log.Error().Err(err).Int64("user_id", userID).Msg("failed to send challenge")
		s.alertAdmins(ctx, userID, profile)
		return nil
	}

	session.ChallengeMessage = ref
	if err := s.sessions.Create(session); err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("failed to store session")
	}
	return nil
}

// OnAppend appends one token to the input buffer and refreshes the
// displayed state. ErrSessionNotFound signals the caller to show an
// expiry-style response.
func (s *VerificationService) OnAppend(ctx context.Context, userID int64, token string) error {
	s.sessions.Lock(userID)
	defer s.sessions.Unlock(userID)

	session, err := s.activeSessionLocked(ctx, userID)
	if err != nil {
		return err
	}

	session.InputBuffer += token
	if err := s.sessions.Update(session); err != nil {
		return err
	}
	s.refreshDisplay(ctx, session)
	return nil
}

// OnBackspace removes the last rune from the buffer. ErrEmptyBuffer
// when there is nothing to delete.
func (s *VerificationService) OnBackspace(ctx context.Context, userID int64) error {
	s.sessions.Lock(userID)
	defer s.sessions.Unlock(userID)

	session, err := s.activeSessionLocked(ctx, userID)
	if err != nil {
		return err
	}
	if session.InputBuffer == "" {
		return domain.ErrEmptyBuffer
	}

	runes := []rune(session.InputBuffer)
	session.InputBuffer = string(runes[:len(runes)-1])
	if err := s.sessions.Update(session); err != nil {
		return err
	}
	s.refreshDisplay(ctx, session)
	return nil
}

// OnRefresh swaps in a new challenge without spending an attempt.
func (s *VerificationService) OnRefresh(ctx context.Context, userID int64) error {
	s.sessions.Lock(userID)
	defer s.sessions.Unlock(userID)

	session, err := s.activeSessionLocked(ctx, userID)
	if err != nil {
		return err
	}

	session.ApplyChallenge(s.challenges.Generate())
	if err := s.sessions.Update(session); err != nil {
		return err
	}
	s.refreshDisplay(ctx, session)
	return nil
}

// OnSubmit evaluates the buffered answer.
func (s *VerificationService) OnSubmit(ctx context.Context, userID int64) (SubmitOutcome, error) {
	s.sessions.Lock(userID)
	defer s.sessions.Unlock(userID)

	session, err := s.activeSessionLocked(ctx, userID)
	if err != nil {
		return OutcomeRetry, err
	}
	if session.InputBuffer == "" {
		return OutcomeRetry, domain.ErrEmptyAnswer
	}
	return s.evaluateLocked(ctx, session)
}

// OnTextAnswer treats a plain text message as the full answer: the
// buffer is replaced and evaluated in one step.
func (s *VerificationService) OnTextAnswer(ctx context.Context, userID int64, text string) (SubmitOutcome, error) {
	s.sessions.Lock(userID)
	defer s.sessions.Unlock(userID)

	session, err := s.activeSessionLocked(ctx, userID)
	if err != nil {
		return OutcomeRetry, err
	}

	session.InputBuffer = text
	if Normalize(text) == "" {
		return OutcomeRetry, domain.ErrEmptyAnswer
	}
	return s.evaluateLocked(ctx, session)
}

// OnOption evaluates a pressed multiple-choice option directly.
func (s *VerificationService) OnOption(ctx context.Context, userID int64, option string) (SubmitOutcome, error) {
	return s.OnTextAnswer(ctx, userID, option)
}

func (s *VerificationService) evaluateLocked(ctx context.Context, session *domain.Session) (SubmitOutcome, error) {
	if Normalize(session.InputBuffer) == Normalize(session.Answer) {
		return OutcomeApproved, s.approveLocked(ctx, session)
	}

	session.AttemptsRemaining--
	if session.AttemptsRemaining > 0 {
		session.ApplyChallenge(s.challenges.Generate())
		if err := s.sessions.Update(session); err != nil {
			return OutcomeRetry, err
		}
		s.editChallenge(ctx, session, renderRetry(session))
		return OutcomeRetry, nil
	}

	s.declineLocked(ctx, session)
	return OutcomeDeclined, nil
}

// approveLocked records the approval, destroys the session and admits
// the user. Approval precedes the admit call: a gateway failure while
// admitting leaves the user approved, and a failure notice is sent
// instead of the success one.
func (s *VerificationService) approveLocked(ctx context.Context, session *domain.Session) error {
	if err := s.registry.Add(ctx, session.UserID); err != nil {
		return err
	}
	session.State = domain.StateApproved
	s.sessions.Delete(session.UserID)
	s.deleteChallenge(ctx, session)

	if err := s.admission.Admit(ctx, session.UserID); err != nil {
		s.log.Error().Err(err).Int64("user_id", session.UserID).Msg("admit failed after approval")
		s.notify(ctx, session.UserID, msgApproveFailed)
		return nil
	}

	s.notify(ctx, session.UserID, msgApproved)
	s.log.Info().Int64("user_id", session.UserID).Msg("user approved")
	return nil
}

func (s *VerificationService) declineLocked(ctx context.Context, session *domain.Session) {
	session.State = domain.StateDeclined
	s.sessions.Delete(session.UserID)
	s.deleteChallenge(ctx, session)

	if err := s.admission.Deny(ctx, session.UserID); err != nil {
		s.log.Error().Err(err).Int64("user_id", session.UserID).Msg("deny failed")
	}
	s.notify(ctx, session.UserID, msgDeclined)
	s.log.Info().Int64("user_id", session.UserID).Msg("user declined")
}

// OnTimeoutCheck destroys the session when it has outlived the TTL at
// the given time. Reports whether the session was terminated. Invoked
// both from inbound events and from the sweeper.
func (s *VerificationService) OnTimeoutCheck(ctx context.Context, userID int64, now time.Time) (bool, error) {
	s.sessions.Lock(userID)
	defer s.sessions.Unlock(userID)

	session, err := s.sessions.Get(userID)
	if err != nil {
		return false, nil
	}
	if !session.ExpiredAt(now, s.cfg.SessionTTL) {
		return false, nil
	}

	s.expireLocked(ctx, session)
	return true, nil
}

func (s *VerificationService) expireLocked(ctx context.Context, session *domain.Session) {
	session.State = domain.StateExpired
	s.sessions.Delete(session.UserID)
	s.deleteChallenge(ctx, session)

	if err := s.admission.Deny(ctx, session.UserID); err != nil {
		s.log.Warn().Err(err).Int64("user_id", session.UserID).Msg("deny on expiry failed")
	}
	s.notify(ctx, session.UserID, msgExpired)
	s.log.Info().Int64("user_id", session.UserID).Msg("session expired")
}

// activeSessionLocked loads the session, expiring it in place when the
// TTL has lapsed. Absent or just-expired sessions surface as
// ErrSessionNotFound, which callers turn into an expiry-style message.
func (s *VerificationService) activeSessionLocked(ctx context.Context, userID int64) (*domain.Session, error) {
	session, err := s.sessions.Get(userID)
	if err != nil {
		return nil, err
	}
	if session.ExpiredAt(s.now(), s.cfg.SessionTTL) {
		s.expireLocked(ctx, session)
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *VerificationService) refreshDisplay(ctx context.Context, session *domain.Session) {
	s.editChallenge(ctx, session, renderChallenge(session))
}

func (s *VerificationService) editChallenge(ctx context.Context, session *domain.Session, text string) {
	if session.ChallengeMessage == 0 {
		return
	}
	err := s.gateway.EditMessage(ctx, session.UserID, session.ChallengeMessage, text, &domain.SendOptions{
		Keyboard: challengeKeyboard(session),
	})
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", session.UserID).Msg("failed to update challenge message")
	}
}

func (s *VerificationService) deleteChallenge(ctx context.Context, session *domain.Session) {
	if session.ChallengeMessage == 0 {
		return
	}
	if err := s.gateway.DeleteMessage(ctx, session.UserID, session.ChallengeMessage); err != nil {
		s.log.Debug().Err(err).Int64("user_id", session.UserID).Msg("failed to delete challenge message")
	}
}

func (s *VerificationService) notify(ctx context.Context, userID int64, text string) {
	if _, err := s.gateway.SendMessage(ctx, userID, text, nil); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to notify user")
	}
}

func (s *VerificationService) alertAdmins(ctx context.Context, userID int64, profile domain.UserProfile) {
	text := "⚠️ Could not deliver a challenge to " + profile.FullName +
		". The user likely has to message the bot first."
	for _, adminID := range s.adminIDs {
		if _, err := s.gateway.SendMessage(ctx, adminID, text, nil); err != nil {
			s.log.Debug().Err(err).Int64("admin_id", adminID).Msg("failed to alert operator")
		}
	}
}
