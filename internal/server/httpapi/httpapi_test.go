package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/svieira1985/gpt-webassist-sam/internal/server/config"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/generator"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/repository/memory"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/service"
)

type mailbox struct {
	mu     sync.Mutex
	tokens map[string]string
	err    error
}

func (m *mailbox) SendLoginToken(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]string{}
	}
	m.tokens[email] = token
	return m.err
}

func (m *mailbox) token(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[email]
}

type scriptedGenerator struct {
	reply string
	err   error
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) Generate(context.Context, []generator.Turn) (generator.Turn, error) {
	if g.err != nil {
		return generator.Turn{}, g.err
	}
	return generator.Turn{Role: "assistant", Content: g.reply}, nil
}

type testEnv struct {
	handler http.Handler
	mail    *mailbox
	gen     *scriptedGenerator
}

func newTestServer(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{mail: &mailbox{}, gen: &scriptedGenerator{reply: "Hi **there**"}}
	cfg := config.Config{
		SessionSecret: "test",
		SessionTTL:    time.Hour,
		LoginTokenTTL: time.Hour,
		AllowedDomain: "teddydigital.io",
		ContextWindow: 10,
	}
	svcs, err := service.NewServices(memory.New(), cfg, service.Deps{Generator: env.gen, Notifier: env.mail})
	if err != nil {
		t.Fatal(err)
	}
	if opts.MaxRequestBytes == 0 {
		opts.MaxRequestBytes = 1 << 20
	}
	env.handler = NewRouter(svcs, nil, opts)
	return env
}

func doJSON(t *testing.T, ts http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewBuffer(b)
	} else {
		buf = &bytes.Buffer{}
	}
	req, _ := http.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	ts.ServeHTTP(rr, req)
	return rr
}

func detail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var e struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("error body is not json: %s", rr.Body.String())
	}
	return e.Detail
}

func (env *testEnv) login(t *testing.T, email string) map[string]string {
	t.Helper()
	rr := doJSON(t, env.handler, "POST", "/register", map[string]string{"email": email}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("register: %d %s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, env.handler, "POST", "/login", map[string]string{"email": email, "token": env.mail.token(email)}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rr.Code, rr.Body.String())
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &tok)
	return map[string]string{"Authorization": "Bearer " + tok.AccessToken}
}

func TestHealth(t *testing.T) {
	env := newTestServer(t, Options{})
	rr := doJSON(t, env.handler, "GET", "/healthz", nil, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Fatalf("health: %d %s", rr.Code, rr.Body.String())
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestServer(t, Options{})

	rr := doJSON(t, env.handler, "POST", "/register", map[string]string{"email": "a@gmail.com"}, nil)
	if rr.Code != http.StatusBadRequest || detail(t, rr) == "" {
		t.Fatalf("foreign domain: %d %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, env.handler, "POST", "/register", map[string]string{"email": "a@teddydigital.io"}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("register: %d %s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "debug_token") {
		t.Fatalf("debug token leaked: %s", rr.Body.String())
	}
	token := env.mail.token("a@teddydigital.io")

	rr = doJSON(t, env.handler, "POST", "/login", map[string]string{"email": "b@teddydigital.io", "token": token}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("mismatch: %d", rr.Code)
	}

	rr = doJSON(t, env.handler, "POST", "/login", map[string]string{"email": "a@teddydigital.io", "token": token}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		User        struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.AccessToken == "" || resp.TokenType != "bearer" || resp.User.Email != "a@teddydigital.io" {
		t.Fatalf("bad login response: %s", rr.Body.String())
	}

	rr = doJSON(t, env.handler, "POST", "/login", map[string]string{"email": "a@teddydigital.io", "token": token}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("replayed token: %d", rr.Code)
	}
}

func TestRegisterDeliveryFailure(t *testing.T) {
	env := newTestServer(t, Options{ExposeDebugToken: true})
	env.mail.err = errors.New("smtp down")
	rr := doJSON(t, env.handler, "POST", "/register", map[string]string{"email": "a@teddydigital.io"}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("register must succeed: %d %s", rr.Code, rr.Body.String())
	}
	var resp registerResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Message != msgTokenFallback || resp.DebugToken != env.mail.token("a@teddydigital.io") {
		t.Fatalf("bad fallback: %+v", resp)
	}
}

func TestChatFlow(t *testing.T) {
	env := newTestServer(t, Options{})
	authz := env.login(t, "a@teddydigital.io")

	rr := doJSON(t, env.handler, "POST", "/chat", map[string]string{"message": "hello"}, authz)
	if rr.Code != http.StatusOK {
		t.Fatalf("chat: %d %s", rr.Code, rr.Body.String())
	}
	var chat struct {
		ConversationID string `json:"conversation_id"`
		Message        string `json:"message"`
		Timestamp      string `json:"timestamp"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &chat)
	if chat.ConversationID == "" || chat.Message != "Hi <strong>there</strong>" || chat.Timestamp == "" {
		t.Fatalf("bad chat: %s", rr.Body.String())
	}

	rr = doJSON(t, env.handler, "POST", "/chat", map[string]string{"message": "again", "conversation_id": chat.ConversationID}, authz)
	if rr.Code != http.StatusOK {
		t.Fatalf("follow-up: %d", rr.Code)
	}

	rr = doJSON(t, env.handler, "GET", "/conversations", nil, authz)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d", rr.Code)
	}
	var list []struct {
		ID          string `json:"id"`
		LastMessage string `json:"last_message"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list) != 1 || list[0].ID != chat.ConversationID {
		t.Fatalf("bad list: %s", rr.Body.String())
	}

	rr = doJSON(t, env.handler, "GET", "/conversations/"+chat.ConversationID, nil, authz)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: %d", rr.Code)
	}
	var conv struct {
		UserEmail string `json:"user_email"`
		Messages  []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &conv)
	if conv.UserEmail != "a@teddydigital.io" || len(conv.Messages) != 4 {
		t.Fatalf("bad conversation: %s", rr.Body.String())
	}

	other := env.login(t, "b@teddydigital.io")
	rr = doJSON(t, env.handler, "GET", "/conversations/"+chat.ConversationID, nil, other)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("foreign get: %d", rr.Code)
	}
	rr = doJSON(t, env.handler, "DELETE", "/conversations/"+chat.ConversationID, nil, other)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("foreign delete: %d", rr.Code)
	}

	rr = doJSON(t, env.handler, "DELETE", "/conversations/"+chat.ConversationID, nil, authz)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: %d", rr.Code)
	}
	rr = doJSON(t, env.handler, "GET", "/conversations/"+chat.ConversationID, nil, authz)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", rr.Code)
	}
}

func TestChatGenerationFailure(t *testing.T) {
	env := newTestServer(t, Options{})
	authz := env.login(t, "a@teddydigital.io")
	env.gen.err = errors.New("upstream 429")
	rr := doJSON(t, env.handler, "POST", "/chat", map[string]string{"message": "hello"}, authz)
	if rr.Code != http.StatusInternalServerError || !strings.Contains(detail(t, rr), "upstream 429") {
		t.Fatalf("want 500 with upstream text: %d %s", rr.Code, rr.Body.String())
	}
}

func TestChatBadRequests(t *testing.T) {
	env := newTestServer(t, Options{MaxRequestBytes: 256})
	authz := env.login(t, "a@teddydigital.io")

	rr := doJSON(t, env.handler, "POST", "/chat", map[string]string{"message": ""}, authz)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty message: %d", rr.Code)
	}
	rr = doJSON(t, env.handler, "POST", "/chat", map[string]string{"message": strings.Repeat("x", 400)}, authz)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized: %d", rr.Code)
	}
	rr = doJSON(t, env.handler, "POST", "/chat", map[string]string{"message": "x", "conversation_id": "nope"}, authz)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown conversation: %d", rr.Code)
	}
}

func TestAuthMiddleware_Unauthorized(t *testing.T) {
	env := newTestServer(t, Options{})
	for _, h := range []map[string]string{
		nil,
		{"Authorization": "Basic abc"},
		{"Authorization": "Bearer not-a-jwt"},
	} {
		rr := doJSON(t, env.handler, "GET", "/conversations", nil, h)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("want 401 got %d for %v", rr.Code, h)
		}
	}
	rr := doJSON(t, env.handler, "POST", "/chat", map[string]string{"message": "x"}, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("chat without auth: %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestServer(t, Options{})
	req, _ := http.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("missing CORS headers: %v", rr.Header())
	}
}
