// Package generator wraps the upstream text-generation providers behind one
// interface: a list of role/content turns in, one turn out.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces the next assistant turn for a conversation window.
// Implementations must not retry failed calls.
type Generator interface {
	Name() string
	Generate(ctx context.Context, turns []Turn) (Turn, error)
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderEcho   = "echo"
)

type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// New builds the generator selected by cfg.Provider.
func New(ctx context.Context, cfg Config) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai: api key is not set")
		}
		return NewOpenAI(cfg), nil
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	case ProviderEcho:
		return Echo{}, nil
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
}

// Echo answers with the last user turn. Used for local runs without a provider key.
type Echo struct{}

func (Echo) Name() string { return ProviderEcho }

func (Echo) Generate(_ context.Context, turns []Turn) (Turn, error) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == "user" {
			return Turn{Role: "assistant", Content: turns[i].Content}, nil
		}
	}
	return Turn{}, fmt.Errorf("echo: no user turn to answer")
}
