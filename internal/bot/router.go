package bot

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/you/gatekeeper/domain"
	"github.com/you/gatekeeper/internal/services"
)

// Router dispatches decoded gateway events to the services. It is the
// only place that switches on event and button types; past it, every
// call is a typed service method. A handler failure is logged and
// answered where possible, and never takes the update loop down.
type Router struct {
	gateway      domain.Gateway
	verification *services.VerificationService
	admin        *services.AdminService
	gate         domain.AdminGate
	log          zerolog.Logger

	mu sync.Mutex
	// operators who pressed the broadcast button and owe us a payload
	awaitingBroadcast map[int64]bool
	jobs              sync.WaitGroup
}

// NewRouter wires the dispatch table.
func NewRouter(
	gw domain.Gateway,
	verification *services.VerificationService,
	admin *services.AdminService,
	gate domain.AdminGate,
	log zerolog.Logger,
) *Router {
	return &Router{
		gateway:           gw,
		verification:      verification,
		admin:             admin,
		gate:              gate,
		log:               log.With().Str("component", "router").Logger(),
		awaitingBroadcast: make(map[int64]bool),
	}
}

// HandleEvent routes one event. It never returns an error to the update
// loop; failures are logged here.
func (r *Router) HandleEvent(ctx context.Context, event domain.Event) {
	var err error
	switch e := event.(type) {
	case domain.JoinRequestEvent:
		err = r.verification.OnJoinRequest(ctx, e.UserID, e.Profile)
	case domain.ButtonEvent:
		err = r.handleButton(ctx, e)
	case domain.TextEvent:
		err = r.handleText(ctx, e)
	case domain.MediaEvent:
		err = r.handleMedia(ctx, e)
	case domain.CommandEvent:
		err = r.handleCommand(ctx, e)
	default:
		r.log.Warn().Type("event", event).Msg("unhandled event type")
		return
	}
	if err != nil {
		r.log.Error().Err(err).Int64("user_id", event.EventUserID()).Msg("event handler failed")
	}
}

func (r *Router) handleButton(ctx context.Context, e domain.ButtonEvent) error {
	switch e.Button {
	case domain.ButtonStartCaptcha:
		if err := r.verification.StartVerification(ctx, e.UserID, e.Profile); err != nil {
			return err
		}
		return r.answer(ctx, e.CallbackID, "", false)

	case domain.ButtonRules:
		return r.answer(ctx, e.CallbackID, rulesText, true)

	case domain.ButtonDigit:
		return r.feedback(ctx, e, r.verification.OnAppend(ctx, e.UserID, e.Arg), "")

	case domain.ButtonBackspace:
		err := r.verification.OnBackspace(ctx, e.UserID)
		if errors.Is(err, domain.ErrEmptyBuffer) {
			return r.answer(ctx, e.CallbackID, "Nothing to delete", false)
		}
		return r.feedback(ctx, e, err, "")

	case domain.ButtonSubmit:
		outcome, err := r.verification.OnSubmit(ctx, e.UserID)
		if errors.Is(err, domain.ErrEmptyAnswer) {
			return r.answer(ctx, e.CallbackID, "Enter your answer first", false)
		}
		return r.feedback(ctx, e, err, outcomeNote(outcome))

	case domain.ButtonRefresh:
		return r.feedback(ctx, e, r.verification.OnRefresh(ctx, e.UserID), "")

	case domain.ButtonOption:
		outcome, err := r.verification.OnOption(ctx, e.UserID, e.Arg)
		return r.feedback(ctx, e, err, outcomeNote(outcome))

	case domain.ButtonAdminStats:
		return r.adminStats(ctx, e)
	case domain.ButtonAdminUsers:
		return r.adminPending(ctx, e)
	case domain.ButtonAdminExport:
		return r.adminExport(ctx, e)
	case domain.ButtonAdminBroadcast:
		return r.adminBroadcastPrompt(ctx, e)
	case domain.ButtonBroadcastConfirm:
		return r.adminBroadcastConfirm(ctx, e)
	case domain.ButtonBroadcastCancel:
		return r.adminBroadcastCancel(ctx, e)
	}

	r.log.Warn().Str("button", string(e.Button)).Msg("unknown button")
	return r.answer(ctx, e.CallbackID, "", false)
}

// feedback acknowledges a verification button press. ErrSessionNotFound
// means the session expired or never existed; the user gets an alert
// telling them to start over.
func (r *Router) feedback(ctx context.Context, e domain.ButtonEvent, err error, note string) error {
	if errors.Is(err, domain.ErrSessionNotFound) {
		return r.answer(ctx, e.CallbackID, "Session expired. Send a new join request to retry.", true)
	}
	if err != nil {
		return err
	}
	return r.answer(ctx, e.CallbackID, note, false)
}

func outcomeNote(outcome services.SubmitOutcome) string {
	switch outcome {
	case services.OutcomeApproved:
		return "Correct!"
	case services.OutcomeDeclined:
		return "Out of attempts"
	default:
		return "Wrong answer"
	}
}

func (r *Router) handleText(ctx context.Context, e domain.TextEvent) error {
	if r.consumeAwaitingBroadcast(e.UserID) {
		payload := domain.BroadcastPayload{Kind: domain.BroadcastText, Text: e.Text}
		return r.stageBroadcast(ctx, e.UserID, payload, e.Text)
	}

	_, err := r.verification.OnTextAnswer(ctx, e.UserID, e.Text)
	if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrEmptyAnswer) {
		// Chatter from users with nothing in flight is ignored.
		return nil
	}
	return err
}

// handleMedia stages a photo or video broadcast when an operator owes
// one; media from anyone else is ignored.
func (r *Router) handleMedia(ctx context.Context, e domain.MediaEvent) error {
	if !r.consumeAwaitingBroadcast(e.UserID) {
		return nil
	}
	payload := domain.BroadcastPayload{Kind: e.Kind, FileID: e.FileID, Caption: e.Caption}
	preview := string(e.Kind)
	if e.Caption != "" {
		preview += ": " + e.Caption
	}
	return r.stageBroadcast(ctx, e.UserID, payload, preview)
}

func (r *Router) handleCommand(ctx context.Context, e domain.CommandEvent) error {
	switch e.Name {
	case "start":
		return r.sendWelcome(ctx, e)
	case "admin", "panel":
		return r.sendAdminPanel(ctx, e.UserID)
	case "stats":
		return r.adminStats(ctx, domain.ButtonEvent{UserID: e.UserID})
	case "pending", "users":
		return r.adminPending(ctx, domain.ButtonEvent{UserID: e.UserID})
	case "export":
		return r.adminExport(ctx, domain.ButtonEvent{UserID: e.UserID})
	case "clear":
		return r.adminClear(ctx, e.UserID)
	case "status":
		return r.sendStatus(ctx, e.UserID)
	}

	r.log.Debug().Str("command", e.Name).Int64("user_id", e.UserID).Msg("unknown command")
	return nil
}

func (r *Router) sendWelcome(ctx context.Context, e domain.CommandEvent) error {
	keyboard := [][]domain.ButtonSpec{
		{{Text: "🚀 Start verification", Data: string(domain.ButtonStartCaptcha)}},
		{{Text: "📜 Rules", Data: string(domain.ButtonRules)}},
	}
	_, err := r.gateway.SendMessage(ctx, e.UserID, welcomeText, &domain.SendOptions{Keyboard: keyboard})
	return err
}

func (r *Router) sendStatus(ctx context.Context, userID int64) error {
	_, err := r.gateway.SendMessage(ctx, userID, "✅ The bot is up.", nil)
	return err
}

func (r *Router) sendAdminPanel(ctx context.Context, userID int64) error {
	if err := r.gate.Require(userID); err != nil {
		r.log.Warn().Int64("user_id", userID).Msg("admin panel denied")
		return nil
	}
	keyboard := [][]domain.ButtonSpec{
		{
			{Text: "📊 Stats", Data: string(domain.ButtonAdminStats)},
			{Text: "👥 Pending", Data: string(domain.ButtonAdminUsers)},
		},
		{
			{Text: "💾 Export", Data: string(domain.ButtonAdminExport)},
			{Text: "📣 Broadcast", Data: string(domain.ButtonAdminBroadcast)},
		},
	}
	_, err := r.gateway.SendMessage(ctx, userID, "🛠 Operator panel", &domain.SendOptions{Keyboard: keyboard})
	return err
}

func (r *Router) adminStats(ctx context.Context, e domain.ButtonEvent) error {
	stats, err := r.admin.Stats(ctx, e.UserID)
	if err != nil {
		return r.denyOrFail(ctx, e, err)
	}
	if _, err := r.gateway.SendMessage(ctx, e.UserID, renderStats(stats), nil); err != nil {
		return err
	}
	return r.answer(ctx, e.CallbackID, "", false)
}

func (r *Router) adminPending(ctx context.Context, e domain.ButtonEvent) error {
	entries, err := r.admin.Pending(ctx, e.UserID)
	if err != nil {
		return r.denyOrFail(ctx, e, err)
	}
	if _, err := r.gateway.SendMessage(ctx, e.UserID, renderPending(entries), nil); err != nil {
		return err
	}
	return r.answer(ctx, e.CallbackID, "", false)
}

func (r *Router) adminExport(ctx context.Context, e domain.ButtonEvent) error {
	doc, err := r.admin.Export(ctx, e.UserID)
	if err != nil {
		return r.denyOrFail(ctx, e, err)
	}
	data, name, err := renderExport(doc)
	if err != nil {
		return err
	}
	if err := r.gateway.SendDocument(ctx, e.UserID, name, data, "Full user export"); err != nil {
		return err
	}
	return r.answer(ctx, e.CallbackID, "", false)
}

func (r *Router) adminClear(ctx context.Context, userID int64) error {
	n, err := r.admin.Clear(ctx, userID)
	if err != nil {
		return r.denyOrFail(ctx, domain.ButtonEvent{UserID: userID}, err)
	}
	_, err = r.gateway.SendMessage(ctx, userID, renderCleared(n), nil)
	return err
}

func (r *Router) adminBroadcastPrompt(ctx context.Context, e domain.ButtonEvent) error {
	if err := r.gate.Require(e.UserID); err != nil {
		return r.denyOrFail(ctx, e, err)
	}
	r.mu.Lock()
	r.awaitingBroadcast[e.UserID] = true
	r.mu.Unlock()

	if _, err := r.gateway.SendMessage(ctx, e.UserID, "Send the broadcast message as your next message.", nil); err != nil {
		return err
	}
	return r.answer(ctx, e.CallbackID, "", false)
}

func (r *Router) stageBroadcast(ctx context.Context, userID int64, payload domain.BroadcastPayload, preview string) error {
	if err := r.admin.StageBroadcast(userID, payload); err != nil {
		return err
	}

	keyboard := [][]domain.ButtonSpec{{
		{Text: "✅ Send", Data: string(domain.ButtonBroadcastConfirm)},
		{Text: "❌ Cancel", Data: string(domain.ButtonBroadcastCancel)},
	}}
	_, err := r.gateway.SendMessage(ctx, userID,
		"Preview:\n\n"+preview+"\n\nSend this to every known user?",
		&domain.SendOptions{Keyboard: keyboard})
	return err
}

// adminBroadcastConfirm launches the staged job detached from the
// update loop. A job takes delay × recipients to finish, so running it
// inline would stall all inbound traffic in polling mode and get
// killed by the request deadline in webhook mode. The running flag in
// AdminService guards double-starts; the outcome comes back as
// messages to the operator.
func (r *Router) adminBroadcastConfirm(ctx context.Context, e domain.ButtonEvent) error {
	if err := r.gate.Require(e.UserID); err != nil {
		return r.denyOrFail(ctx, e, err)
	}
	if _, ok := r.admin.Staged(e.UserID); !ok {
		return r.answer(ctx, e.CallbackID, "Nothing staged. Use the broadcast button first.", true)
	}
	if err := r.answer(ctx, e.CallbackID, "Broadcast started", false); err != nil {
		return err
	}

	jobCtx := context.WithoutCancel(ctx)
	r.jobs.Add(1)
	go func() {
		defer r.jobs.Done()
		r.runBroadcast(jobCtx, e.UserID)
	}()
	return nil
}

func (r *Router) runBroadcast(ctx context.Context, adminID int64) {
	var progressRef domain.MessageRef
	progress := func(p domain.BroadcastProgress) {
		text := renderProgress(p)
		if progressRef == 0 {
			ref, err := r.gateway.SendMessage(ctx, adminID, text, nil)
			if err == nil {
				progressRef = ref
			}
			return
		}
		if err := r.gateway.EditMessage(ctx, adminID, progressRef, text, nil); err != nil {
			r.log.Debug().Err(err).Msg("progress edit failed")
		}
	}

	result, err := r.admin.ConfirmBroadcast(ctx, adminID, progress)
	switch {
	case errors.Is(err, domain.ErrNoStagedBroadcast):
		r.send(ctx, adminID, "The staged payload is gone; stage a new one.")
	case errors.Is(err, domain.ErrBroadcastRunning):
		r.send(ctx, adminID, "A broadcast is already running; try again when it finishes.")
	case err != nil:
		r.log.Error().Err(err).Int64("admin_id", adminID).Msg("broadcast failed")
	default:
		r.send(ctx, adminID, renderResult(result))
	}
}

// Wait blocks until every detached broadcast job has finished. Called
// on shutdown so results are delivered before the process exits.
func (r *Router) Wait() {
	r.jobs.Wait()
}

func (r *Router) adminBroadcastCancel(ctx context.Context, e domain.ButtonEvent) error {
	if err := r.admin.CancelBroadcast(e.UserID); err != nil {
		return r.denyOrFail(ctx, e, err)
	}
	return r.answer(ctx, e.CallbackID, "Broadcast canceled", false)
}

// denyOrFail answers a permission denial on the callback; any other
// error is passed up to the handler log.
func (r *Router) denyOrFail(ctx context.Context, e domain.ButtonEvent, err error) error {
	if errors.Is(err, domain.ErrPermissionDenied) {
		r.log.Warn().Int64("user_id", e.UserID).Msg("privileged action denied")
		return r.answer(ctx, e.CallbackID, "Operators only", true)
	}
	return err
}

func (r *Router) send(ctx context.Context, userID int64, text string) {
	if _, err := r.gateway.SendMessage(ctx, userID, text, nil); err != nil {
		r.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to send message")
	}
}

func (r *Router) answer(ctx context.Context, callbackID, text string, alert bool) error {
	if callbackID == "" {
		return nil
	}
	if err := r.gateway.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		r.log.Debug().Err(err).Msg("callback answer failed")
	}
	return nil
}

func (r *Router) consumeAwaitingBroadcast(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.awaitingBroadcast[userID] {
		return false
	}
	delete(r.awaitingBroadcast, userID)
	return true
}
