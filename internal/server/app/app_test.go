package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/svieira1985/gpt-webassist-sam/internal/server/config"
)

func testConfig() config.Config {
	return config.Config{
		HTTPAddr:          "127.0.0.1:0",
		SessionSecret:     "test",
		SessionTTL:        time.Hour,
		LoginTokenTTL:     time.Hour,
		AllowedDomain:     "teddydigital.io",
		MaxRequestBytes:   1 << 20,
		GeneratorProvider: "echo",
		ContextWindow:     10,
	}
}

func TestNew_MemoryRepository(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), "test", "now", testConfig(), logger)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.repo.Close() }()

	rr := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rr.Code)
	}
}

func TestNew_SQLiteRepository(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseDSN = "file:" + filepath.Join(t.TempDir(), "webassist.db")
	a, err := New(context.Background(), "test", "now", cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.repo.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNew_UnknownGenerator(t *testing.T) {
	cfg := testConfig()
	cfg.GeneratorProvider = "nope"
	if _, err := New(context.Background(), "test", "now", cfg, slog.Default()); err == nil {
		t.Fatalf("want error for unknown generator")
	}
}

func TestPurgeTokensStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.TokenPurgeInterval = time.Millisecond
	a, err := New(context.Background(), "test", "now", cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.repo.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.purgeTokens(ctx)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("janitor did not stop")
	}
}
