package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/gatekeeper/domain"
	"github.com/you/gatekeeper/internal/bot"
	"github.com/you/gatekeeper/internal/infrastructure/repositories"
	"github.com/you/gatekeeper/internal/mocks"
	"github.com/you/gatekeeper/internal/services"
)

const testSecret = "hook-secret"

type serverFixture struct {
	server   *Server
	store    *repositories.SessionStoreImpl
	registry *repositories.ApprovalRegistryImpl
	users    *repositories.UserDirectoryImpl
	gateway  *mocks.MockGateway
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	f := &serverFixture{
		store:    repositories.NewSessionStore(),
		registry: repositories.NewApprovalRegistry(nil, nil),
		users:    repositories.NewUserDirectory(nil, nil),
		gateway:  mocks.NewMockGateway(),
	}
	gate := mocks.NewMockAdminGate(900)
	cfg := services.VerificationConfig{Attempts: 3, SessionTTL: 5 * time.Minute}

	verification := services.NewVerificationService(
		f.store, f.registry, f.users,
		mocks.NewMockChallengeGenerator(),
		f.gateway, mocks.NewMockAdmissionStrategy(),
		[]int64{900}, cfg, zerolog.Nop(),
	)
	admin := services.NewAdminService(gate, f.store, f.registry, f.users,
		mocks.NewMockBroadcaster(), cfg, zerolog.Nop())
	router := bot.NewRouter(f.gateway, verification, admin, gate, zerolog.Nop())

	f.server = NewServer(router, NewOpsHandler(admin), testSecret, zerolog.Nop())
	return f
}

func (f *serverFixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	f := newServerFixture(t)
	w := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhook_RejectsBadSecret(t *testing.T) {
	f := newServerFixture(t)

	body := `{"update_id":1,"chat_join_request":{"chat":{"id":-100},"from":{"id":5,"first_name":"Eve"}}}`

	w := f.do(t, http.MethodPost, "/webhook", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/webhook", body, map[string]string{secretHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, 0, f.store.Len(), "rejected update reached the router")
}

func TestWebhook_JoinRequestStartsSession(t *testing.T) {
	f := newServerFixture(t)

	body := `{"update_id":1,"chat_join_request":{"chat":{"id":-100},"from":{"id":5,"first_name":"Ann"}}}`
	w := f.do(t, http.MethodPost, "/webhook", body, map[string]string{secretHeader: testSecret})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.store.Len())
	assert.Len(t, f.gateway.SentTo(5), 1)
}

func TestWebhook_GarbageBodyAccepted(t *testing.T) {
	f := newServerFixture(t)

	// 200 even for undecodable bodies so Telegram stops redelivering.
	w := f.do(t, http.MethodPost, "/webhook", `{"update_id": "nope"`, map[string]string{secretHeader: testSecret})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, f.store.Len())
}

func TestAdminStats(t *testing.T) {
	f := newServerFixture(t)
	f.users.Upsert(domain.UserProfile{ID: 1})

	w := f.do(t, http.MethodGet, "/admin/stats", "", map[string]string{operatorHeader: "900"})
	require.Equal(t, http.StatusOK, w.Code)

	var stats domain.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalUsers)
}

func TestAdminEndpoints_AccessControl(t *testing.T) {
	f := newServerFixture(t)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"no header", nil, http.StatusUnauthorized},
		{"malformed header", map[string]string{operatorHeader: "abc"}, http.StatusUnauthorized},
		{"non-operator", map[string]string{operatorHeader: "42"}, http.StatusForbidden},
		{"operator", map[string]string{operatorHeader: "900"}, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, path := range []string{"/admin/stats", "/admin/pending", "/admin/export"} {
				w := f.do(t, http.MethodGet, path, "", tc.headers)
				assert.Equal(t, tc.want, w.Code, path)
			}
		})
	}
}
