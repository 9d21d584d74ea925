package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/gatekeeper/domain"
	"github.com/you/gatekeeper/internal/infrastructure/repositories"
	"github.com/you/gatekeeper/internal/mocks"
	"github.com/you/gatekeeper/internal/services"
)

const operatorID int64 = 900

type routerFixture struct {
	router      *Router
	gateway     *mocks.MockGateway
	store       *repositories.SessionStoreImpl
	registry    *repositories.ApprovalRegistryImpl
	users       *repositories.UserDirectoryImpl
	broadcaster *mocks.MockBroadcaster
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	f := &routerFixture{
		gateway:     mocks.NewMockGateway(),
		store:       repositories.NewSessionStore(),
		registry:    repositories.NewApprovalRegistry(nil, nil),
		users:       repositories.NewUserDirectory(nil, nil),
		broadcaster: mocks.NewMockBroadcaster(),
	}
	gate := mocks.NewMockAdminGate(operatorID)
	cfg := services.VerificationConfig{Attempts: 3, SessionTTL: 5 * time.Minute}

	verification := services.NewVerificationService(
		f.store, f.registry, f.users,
		mocks.NewMockChallengeGenerator(domain.Challenge{Prompt: "3 + 4", Answer: "7"}),
		f.gateway, mocks.NewMockAdmissionStrategy(),
		[]int64{operatorID}, cfg, zerolog.Nop(),
	)
	admin := services.NewAdminService(gate, f.store, f.registry, f.users, f.broadcaster, cfg, zerolog.Nop())

	f.router = NewRouter(f.gateway, verification, admin, gate, zerolog.Nop())
	return f
}

func (f *routerFixture) handle(e domain.Event) {
	f.router.HandleEvent(context.Background(), e)
}

func TestRouter_JoinRequestStartsVerification(t *testing.T) {
	f := newRouterFixture(t)
	f.handle(domain.JoinRequestEvent{UserID: 100, Profile: domain.UserProfile{ID: 100}})

	if f.store.Len() != 1 {
		t.Fatal("no session created")
	}
	if len(f.gateway.SentTo(100)) != 1 {
		t.Error("challenge not sent")
	}
}

func TestRouter_DigitSubmitFlow(t *testing.T) {
	f := newRouterFixture(t)
	f.handle(domain.JoinRequestEvent{UserID: 100, Profile: domain.UserProfile{ID: 100}})

	f.handle(domain.ButtonEvent{UserID: 100, Button: domain.ButtonDigit, Arg: "7", CallbackID: "cb1"})
	f.handle(domain.ButtonEvent{UserID: 100, Button: domain.ButtonSubmit, CallbackID: "cb2"})

	if f.store.Len() != 0 {
		t.Error("session survived a correct answer")
	}
	ok, _ := f.registry.Contains(context.Background(), 100)
	if !ok {
		t.Error("user not approved")
	}
	if len(f.gateway.Callbacks) != 2 {
		t.Errorf("callbacks answered = %d, want 2", len(f.gateway.Callbacks))
	}
}

func TestRouter_ButtonWithoutSessionAnswersCallback(t *testing.T) {
	f := newRouterFixture(t)

	f.handle(domain.ButtonEvent{UserID: 55, Button: domain.ButtonDigit, Arg: "1", CallbackID: "cb1"})

	// No session and no crash; the press is acknowledged so the client
	// spinner stops.
	if len(f.gateway.Callbacks) != 1 {
		t.Errorf("callbacks = %v", f.gateway.Callbacks)
	}
	if f.store.Len() != 0 {
		t.Error("phantom session appeared")
	}
}

func TestRouter_SubmitEmptyBufferAnswered(t *testing.T) {
	f := newRouterFixture(t)
	f.handle(domain.JoinRequestEvent{UserID: 100, Profile: domain.UserProfile{ID: 100}})

	f.handle(domain.ButtonEvent{UserID: 100, Button: domain.ButtonSubmit, CallbackID: "cb1"})

	if f.store.Len() != 1 {
		t.Error("empty submit terminated the session")
	}
	if len(f.gateway.Callbacks) != 1 {
		t.Error("empty submit not acknowledged")
	}
}

func TestRouter_TextAnswerApproves(t *testing.T) {
	f := newRouterFixture(t)
	f.handle(domain.JoinRequestEvent{UserID: 100, Profile: domain.UserProfile{ID: 100}})

	f.handle(domain.TextEvent{UserID: 100, Text: " 7 "})

	ok, _ := f.registry.Contains(context.Background(), 100)
	if !ok {
		t.Error("text answer not accepted")
	}
}

func TestRouter_StrayTextIgnored(t *testing.T) {
	f := newRouterFixture(t)
	f.handle(domain.TextEvent{UserID: 77, Text: "hello?"})

	if len(f.gateway.Sent) != 0 {
		t.Errorf("stray text produced output: %+v", f.gateway.Sent)
	}
}

func TestRouter_AdminCommandsDeniedSilently(t *testing.T) {
	f := newRouterFixture(t)

	f.handle(domain.CommandEvent{UserID: 42, Name: "stats"})
	f.handle(domain.CommandEvent{UserID: 42, Name: "clear"})
	f.handle(domain.CommandEvent{UserID: 42, Name: "admin"})

	if got := f.gateway.SentTo(42); len(got) != 0 {
		t.Errorf("non-operator got output: %v", got)
	}
}

func TestRouter_StatsCommand(t *testing.T) {
	f := newRouterFixture(t)
	f.users.Upsert(domain.UserProfile{ID: 1})

	f.handle(domain.CommandEvent{UserID: operatorID, Name: "stats"})

	got := f.gateway.SentTo(operatorID)
	if len(got) != 1 || !strings.Contains(got[0], "Users known: 1") {
		t.Errorf("stats output = %v", got)
	}
}

func TestRouter_BroadcastFlow(t *testing.T) {
	f := newRouterFixture(t)
	f.users.Upsert(domain.UserProfile{ID: 10})

	f.handle(domain.ButtonEvent{UserID: operatorID, Button: domain.ButtonAdminBroadcast, CallbackID: "cb1"})
	f.handle(domain.TextEvent{UserID: operatorID, Text: "big news"})
	f.handle(domain.ButtonEvent{UserID: operatorID, Button: domain.ButtonBroadcastConfirm, CallbackID: "cb2"})
	f.router.Wait()

	if len(f.broadcaster.Dispatched) != 1 {
		t.Fatalf("dispatched = %+v", f.broadcaster.Dispatched)
	}
	if f.broadcaster.Dispatched[0].Text != "big news" {
		t.Errorf("payload = %+v", f.broadcaster.Dispatched[0])
	}

	var sawPreview, sawResult bool
	for _, text := range f.gateway.SentTo(operatorID) {
		if strings.Contains(text, "big news") && strings.Contains(text, "every known user") {
			sawPreview = true
		}
		if strings.Contains(text, "Broadcast done") {
			sawResult = true
		}
	}
	if !sawPreview || !sawResult {
		t.Errorf("preview=%v result=%v, sent=%v", sawPreview, sawResult, f.gateway.SentTo(operatorID))
	}
}

func TestRouter_BroadcastCancel(t *testing.T) {
	f := newRouterFixture(t)

	f.handle(domain.ButtonEvent{UserID: operatorID, Button: domain.ButtonAdminBroadcast, CallbackID: "cb1"})
	f.handle(domain.TextEvent{UserID: operatorID, Text: "draft"})
	f.handle(domain.ButtonEvent{UserID: operatorID, Button: domain.ButtonBroadcastCancel, CallbackID: "cb2"})
	f.handle(domain.ButtonEvent{UserID: operatorID, Button: domain.ButtonBroadcastConfirm, CallbackID: "cb3"})
	f.router.Wait()

	if len(f.broadcaster.Dispatched) != 0 {
		t.Errorf("canceled broadcast was dispatched: %+v", f.broadcaster.Dispatched)
	}
}

func TestRouter_MediaBroadcastStaged(t *testing.T) {
	f := newRouterFixture(t)
	f.users.Upsert(domain.UserProfile{ID: 10})

	f.handle(domain.ButtonEvent{UserID: operatorID, Button: domain.ButtonAdminBroadcast, CallbackID: "cb1"})
	f.handle(domain.MediaEvent{UserID: operatorID, Kind: domain.BroadcastPhoto, FileID: "ph1", Caption: "look"})
	f.handle(domain.ButtonEvent{UserID: operatorID, Button: domain.ButtonBroadcastConfirm, CallbackID: "cb2"})
	f.router.Wait()

	if len(f.broadcaster.Dispatched) != 1 {
		t.Fatalf("dispatched = %+v", f.broadcaster.Dispatched)
	}
	got := f.broadcaster.Dispatched[0]
	if got.Kind != domain.BroadcastPhoto || got.FileID != "ph1" || got.Caption != "look" {
		t.Errorf("payload = %+v", got)
	}
}

func TestRouter_StrayMediaIgnored(t *testing.T) {
	f := newRouterFixture(t)

	f.handle(domain.MediaEvent{UserID: 77, Kind: domain.BroadcastPhoto, FileID: "ph1"})

	if len(f.gateway.Sent) != 0 {
		t.Errorf("stray media produced output: %+v", f.gateway.Sent)
	}
	if _, ok := f.router.admin.Staged(77); ok {
		t.Error("stray media staged a broadcast")
	}
}

func TestRouter_BroadcastRunsDetachedFromEventLoop(t *testing.T) {
	f := newRouterFixture(t)
	f.users.Upsert(domain.UserProfile{ID: 10})

	release := make(chan struct{})
	started := make(chan struct{})
	f.broadcaster.DispatchFunc = func(payload domain.BroadcastPayload, recipients []int64) (*domain.BroadcastResult, error) {
		close(started)
		<-release
		return &domain.BroadcastResult{Sent: len(recipients), Total: len(recipients)}, nil
	}

	f.handle(domain.ButtonEvent{UserID: operatorID, Button: domain.ButtonAdminBroadcast, CallbackID: "cb1"})
	f.handle(domain.TextEvent{UserID: operatorID, Text: "slow one"})

	// The confirm handler must return while the job is still sending.
	done := make(chan struct{})
	go func() {
		f.handle(domain.ButtonEvent{UserID: operatorID, Button: domain.ButtonBroadcastConfirm, CallbackID: "cb2"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("confirm handler blocked on the running job")
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("job never started")
	}

	// Verification traffic keeps flowing mid-broadcast.
	f.handle(domain.JoinRequestEvent{UserID: 100, Profile: domain.UserProfile{ID: 100}})
	if f.store.Len() != 1 {
		t.Error("event loop stalled while broadcasting")
	}

	close(release)
	f.router.Wait()

	var sawResult bool
	for _, text := range f.gateway.SentTo(operatorID) {
		if strings.Contains(text, "Broadcast done") {
			sawResult = true
		}
	}
	if !sawResult {
		t.Errorf("no completion report: %v", f.gateway.SentTo(operatorID))
	}
}

func TestRouter_BroadcastOutlivesHandlerContext(t *testing.T) {
	f := newRouterFixture(t)
	f.users.Upsert(domain.UserProfile{ID: 10})

	release := make(chan struct{})
	started := make(chan struct{})
	f.broadcaster.DispatchFunc = func(payload domain.BroadcastPayload, recipients []int64) (*domain.BroadcastResult, error) {
		close(started)
		<-release
		return &domain.BroadcastResult{Sent: len(recipients), Total: len(recipients)}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.router.HandleEvent(ctx, domain.ButtonEvent{UserID: operatorID, Button: domain.ButtonAdminBroadcast, CallbackID: "cb1"})
	f.router.HandleEvent(ctx, domain.TextEvent{UserID: operatorID, Text: "news"})
	f.router.HandleEvent(ctx, domain.ButtonEvent{UserID: operatorID, Button: domain.ButtonBroadcastConfirm, CallbackID: "cb2"})

	<-started
	// The webhook request (or poll iteration) that carried the confirm
	// press ends here; the job must not die with it.
	cancel()

	close(release)
	f.router.Wait()

	if len(f.broadcaster.Contexts) != 1 {
		t.Fatalf("dispatches = %d", len(f.broadcaster.Contexts))
	}
	if err := f.broadcaster.Contexts[0].Err(); err != nil {
		t.Errorf("job context died with the handler: %v", err)
	}
}

func TestRouter_AdminTextIsBroadcastOnlyWhenPrompted(t *testing.T) {
	f := newRouterFixture(t)
	f.handle(domain.JoinRequestEvent{UserID: operatorID, Profile: domain.UserProfile{ID: operatorID}})

	// An operator answering their own captcha must not stage anything.
	f.handle(domain.TextEvent{UserID: operatorID, Text: "7"})

	ok, _ := f.registry.Contains(context.Background(), operatorID)
	if !ok {
		t.Error("operator's captcha answer was swallowed")
	}
}

func TestRouter_StartCommandShowsKeyboard(t *testing.T) {
	f := newRouterFixture(t)
	f.handle(domain.CommandEvent{UserID: 100, Name: "start"})

	if len(f.gateway.Sent) != 1 {
		t.Fatalf("sent = %+v", f.gateway.Sent)
	}
	opts := f.gateway.Sent[0].Opts
	if opts == nil || len(opts.Keyboard) != 2 {
		t.Errorf("welcome keyboard = %+v", opts)
	}
}

func TestRouter_ExportSendsDocument(t *testing.T) {
	f := newRouterFixture(t)
	f.users.Upsert(domain.UserProfile{ID: 3, Username: "alice"})

	f.handle(domain.CommandEvent{UserID: operatorID, Name: "export"})

	var sawDoc bool
	for _, s := range f.gateway.Sent {
		if strings.HasPrefix(s.Text, "users_") && strings.HasSuffix(s.Text, ".json") {
			sawDoc = true
		}
	}
	if !sawDoc {
		t.Errorf("no export document sent: %+v", f.gateway.Sent)
	}
}
