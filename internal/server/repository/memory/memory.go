// Package memory keeps identities, login tokens and conversations in process
// memory. State is lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/svieira1985/gpt-webassist-sam/internal/server/repository"
	"github.com/svieira1985/gpt-webassist-sam/internal/shared/models"
)

type Repository struct {
	identMu    sync.Mutex
	identities map[string]models.Identity

	tokenMu sync.Mutex
	tokens  map[string]models.LoginToken

	convMu        sync.RWMutex
	conversations map[string]*conversation
}

// conversation guards its own message slice so appends to different
// conversations never contend.
type conversation struct {
	mu   sync.Mutex
	data models.Conversation
}

func New() *Repository {
	return &Repository{
		identities:    map[string]models.Identity{},
		tokens:        map[string]models.LoginToken{},
		conversations: map[string]*conversation{},
	}
}

func (r *Repository) Close() error { return nil }

// Identities

func (r *Repository) PutIdentity(_ context.Context, email string) (models.Identity, error) {
	ident := models.Identity{Email: email, CreatedAt: time.Now().UTC()}
	r.identMu.Lock()
	r.identities[email] = ident
	r.identMu.Unlock()
	return ident, nil
}

func (r *Repository) GetIdentity(_ context.Context, email string) (models.Identity, error) {
	r.identMu.Lock()
	defer r.identMu.Unlock()
	ident, ok := r.identities[email]
	if !ok {
		return models.Identity{}, repository.ErrNotFound
	}
	return ident, nil
}

// Login tokens

func (r *Repository) SaveLoginToken(_ context.Context, tok models.LoginToken) error {
	r.tokenMu.Lock()
	r.tokens[tok.Digest] = tok
	r.tokenMu.Unlock()
	return nil
}

// RedeemLoginToken checks and consumes a token in one critical section, so
// concurrent redemptions of the same token see exactly one success.
func (r *Repository) RedeemLoginToken(_ context.Context, digest, email string, now time.Time) error {
	r.tokenMu.Lock()
	defer r.tokenMu.Unlock()
	tok, ok := r.tokens[digest]
	if !ok || tok.Used || !now.Before(tok.ExpiresAt) {
		return repository.ErrTokenInvalid
	}
	if tok.Email != email {
		return repository.ErrTokenEmailMismatch
	}
	tok.Used = true
	r.tokens[digest] = tok
	return nil
}

func (r *Repository) PurgeExpiredTokens(_ context.Context, now time.Time) (int, error) {
	r.tokenMu.Lock()
	defer r.tokenMu.Unlock()
	n := 0
	for k, tok := range r.tokens {
		if !now.Before(tok.ExpiresAt) {
			delete(r.tokens, k)
			n++
		}
	}
	return n, nil
}

// Conversations

func (r *Repository) AppendMessage(_ context.Context, id, owner string, msg models.Message) (models.Conversation, error) {
	c := r.lookup(id)
	if c == nil {
		c = r.create(owner)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Messages = append(c.data.Messages, msg)
	return snapshot(c.data), nil
}

func (r *Repository) GetConversation(_ context.Context, id string) (models.Conversation, error) {
	c := r.lookup(id)
	if c == nil {
		return models.Conversation{}, repository.ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(c.data), nil
}

func (r *Repository) ListConversations(_ context.Context, owner string) ([]models.ConversationSummary, error) {
	r.convMu.RLock()
	owned := make([]*conversation, 0, len(r.conversations))
	for _, c := range r.conversations {
		if c.data.OwnerEmail == owner {
			owned = append(owned, c)
		}
	}
	r.convMu.RUnlock()

	out := make([]models.ConversationSummary, 0, len(owned))
	for _, c := range owned {
		c.mu.Lock()
		out = append(out, repository.Summarize(c.data))
		c.mu.Unlock()
	}
	repository.SortSummaries(out)
	return out, nil
}

func (r *Repository) DeleteConversation(_ context.Context, id string) error {
	r.convMu.Lock()
	defer r.convMu.Unlock()
	if _, ok := r.conversations[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.conversations, id)
	return nil
}

func (r *Repository) lookup(id string) *conversation {
	if id == "" {
		return nil
	}
	r.convMu.RLock()
	defer r.convMu.RUnlock()
	return r.conversations[id]
}

func (r *Repository) create(owner string) *conversation {
	c := &conversation{data: models.Conversation{
		ID:         uuid.NewString(),
		OwnerEmail: owner,
		Messages:   []models.Message{},
		CreatedAt:  time.Now().UTC(),
	}}
	r.convMu.Lock()
	r.conversations[c.data.ID] = c
	r.convMu.Unlock()
	return c
}

func snapshot(c models.Conversation) models.Conversation {
	c.Messages = append([]models.Message(nil), c.Messages...)
	if c.Messages == nil {
		c.Messages = []models.Message{}
	}
	return c
}
