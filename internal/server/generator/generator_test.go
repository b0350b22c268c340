package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"
)

func TestOpenAI_Generate(t *testing.T) {
	var got chatCompletionRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("auth header: %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-4","choices":[{"message":{"role":"assistant","content":"**hi**"}}]}`))
	}))
	defer ts.Close()

	p := NewOpenAI(Config{BaseURL: ts.URL + "/", APIKey: "key"})
	out, err := p.Generate(context.Background(), []Turn{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatal(err)
	}
	if out.Role != "assistant" || out.Content != "**hi**" {
		t.Fatalf("turn: %+v", out)
	}
	if got.Model != "gpt-4" || len(got.Messages) != 1 || got.Messages[0].Content != "hello" {
		t.Fatalf("request: %+v", got)
	}
}

func TestOpenAI_UpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer ts.Close()

	p := NewOpenAI(Config{BaseURL: ts.URL, APIKey: "key"})
	_, err := p.Generate(context.Background(), []Turn{{Role: "user", Content: "x"}})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("want upstream text in error, got %v", err)
	}
}

func TestOpenAI_MalformedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer ts.Close()

	p := NewOpenAI(Config{BaseURL: ts.URL, APIKey: "key"})
	if _, err := p.Generate(context.Background(), nil); err == nil {
		t.Fatalf("want error on empty choices")
	}
}

func TestEcho(t *testing.T) {
	out, err := Echo{}.Generate(context.Background(), []Turn{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}})
	if err != nil || out.Content != "a" || out.Role != "assistant" {
		t.Fatalf("echo: %+v %v", out, err)
	}
	if _, err := (Echo{}).Generate(context.Background(), nil); err == nil {
		t.Fatalf("want error without user turn")
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	if g, err := New(ctx, Config{Provider: "echo"}); err != nil || g.Name() != ProviderEcho {
		t.Fatalf("echo: %v", err)
	}
	if _, err := New(ctx, Config{Provider: "openai"}); err == nil {
		t.Fatalf("want error without api key")
	}
	if g, err := New(ctx, Config{Provider: "OpenAI", APIKey: "k"}); err != nil || g.Name() != ProviderOpenAI {
		t.Fatalf("openai: %v", err)
	}
	if _, err := New(ctx, Config{Provider: "gemini"}); err == nil {
		t.Fatalf("want error without gemini key")
	}
	if _, err := New(ctx, Config{Provider: "nope"}); err == nil {
		t.Fatalf("want error on unknown provider")
	}
}

func TestToGenaiContents(t *testing.T) {
	out := toGenaiContents([]Turn{{Role: "user", Content: "q"}, {Role: "assistant", Content: "a"}})
	if len(out) != 2 {
		t.Fatalf("len: %d", len(out))
	}
	if out[0].Role != genai.RoleUser || out[1].Role != genai.RoleModel {
		t.Fatalf("roles: %v %v", out[0].Role, out[1].Role)
	}
	if out[1].Parts[0].Text != "a" {
		t.Fatalf("text: %q", out[1].Parts[0].Text)
	}
}
