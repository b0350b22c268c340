package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/svieira1985/gpt-webassist-sam/internal/server/config"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/generator"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/history"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/notify"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/render"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/repository"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/telemetry"
	"github.com/svieira1985/gpt-webassist-sam/internal/shared/models"
	"github.com/svieira1985/gpt-webassist-sam/internal/shared/tokenhash"
)

type Repository interface {
	PutIdentity(ctx context.Context, email string) (models.Identity, error)
	GetIdentity(ctx context.Context, email string) (models.Identity, error)

	SaveLoginToken(ctx context.Context, tok models.LoginToken) error
	RedeemLoginToken(ctx context.Context, digest, email string, now time.Time) error
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int, error)

	AppendMessage(ctx context.Context, id, owner string, msg models.Message) (models.Conversation, error)
	GetConversation(ctx context.Context, id string) (models.Conversation, error)
	ListConversations(ctx context.Context, owner string) ([]models.ConversationSummary, error)
	DeleteConversation(ctx context.Context, id string) error
}

// Deps are the external collaborators of the services.
type Deps struct {
	Generator generator.Generator
	Notifier  notify.Notifier
	Telemetry *telemetry.Telemetry
	Logger    *slog.Logger
}

type Services struct {
	Auth     *AuthService
	Chat     *ChatService
	Sessions *SessionIssuer
}

func NewServices(repo Repository, cfg config.Config, deps Deps) (*Services, error) {
	hasher, err := tokenhash.New([]byte(cfg.SessionSecret))
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Telemetry == nil {
		deps.Telemetry = telemetry.Noop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.LogNotifier{Logger: deps.Logger}
	}
	if deps.Generator == nil {
		deps.Generator = generator.Echo{}
	}
	tokenTTL := cfg.LoginTokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	sessions := NewSessionIssuer([]byte(cfg.SessionSecret), cfg.SessionTTL)
	return &Services{
		Sessions: sessions,
		Auth: &AuthService{
			repo:     repo,
			sessions: sessions,
			hasher:   hasher,
			notifier: deps.Notifier,
			tel:      deps.Telemetry,
			logger:   deps.Logger,
			domain:   cfg.AllowedDomain,
			tokenTTL: tokenTTL,
			now:      time.Now,
		},
		Chat: &ChatService{
			repo:    repo,
			gen:     deps.Generator,
			tel:     deps.Telemetry,
			logger:  deps.Logger,
			window:  cfg.ContextWindow,
			timeout: cfg.GeneratorTimeout,
			now:     time.Now,
		},
	}, nil
}

// AuthService implements the passwordless handshake: registration issues a
// single-use login token, login redeems it for a session credential.
type AuthService struct {
	repo     Repository
	sessions *SessionIssuer
	hasher   *tokenhash.Hasher
	notifier notify.Notifier
	tel      *telemetry.Telemetry
	logger   *slog.Logger
	domain   string
	tokenTTL time.Duration
	now      func() time.Time
}

// RegisterResult describes an issued login token. Token is the plaintext
// value; Delivered is false when the notifier failed.
type RegisterResult struct {
	Email     string
	Token     string
	ExpiresAt time.Time
	Delivered bool
}

// AllowedEmail reports whether email belongs to the configured domain.
func (a *AuthService) AllowedEmail(email string) bool {
	return strings.HasSuffix(email, "@"+a.domain)
}

func (a *AuthService) Register(ctx context.Context, email string) (RegisterResult, error) {
	email = strings.TrimSpace(email)
	if !a.AllowedEmail(email) {
		return RegisterResult{}, ErrDomainNotAllowed
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return RegisterResult{}, ErrInvalidEmail
	}

	token, err := tokenhash.Generate()
	if err != nil {
		return RegisterResult{}, err
	}
	if _, err := a.repo.PutIdentity(ctx, email); err != nil {
		return RegisterResult{}, err
	}
	expires := a.now().Add(a.tokenTTL)
	if err := a.repo.SaveLoginToken(ctx, models.LoginToken{
		Digest:    a.hasher.Digest(token),
		Email:     email,
		ExpiresAt: expires,
	}); err != nil {
		return RegisterResult{}, err
	}
	a.tel.Registrations.Add(ctx, 1)

	res := RegisterResult{Email: email, Token: token, ExpiresAt: expires, Delivered: true}
	if err := a.notifier.SendLoginToken(ctx, email, token); err != nil {
		// The token exists regardless of delivery; the log line is the manual
		// recovery path.
		res.Delivered = false
		a.tel.NotificationFailures.Add(ctx, 1)
		a.logger.WarnContext(ctx, "login token delivery failed",
			"email", email, "token", token, "error", fmt.Errorf("%w: %v", ErrNotificationFailed, err))
	}
	return res, nil
}

// Login redeems a login token and issues a session credential. Other tokens
// still outstanding for the same email stay valid.
func (a *AuthService) Login(ctx context.Context, email, token string) (models.TokenResponse, error) {
	email = strings.TrimSpace(email)
	token = strings.TrimSpace(token)
	if token == "" {
		return models.TokenResponse{}, ErrTokenInvalidOrExpired
	}
	if err := a.repo.RedeemLoginToken(ctx, a.hasher.Digest(token), email, a.now()); err != nil {
		return models.TokenResponse{}, err
	}
	access, err := a.sessions.Issue(email)
	if err != nil {
		return models.TokenResponse{}, err
	}
	a.tel.Logins.Add(ctx, 1)
	return models.TokenResponse{
		AccessToken: access,
		TokenType:   "bearer",
		User:        models.UserInfo{Email: email},
	}, nil
}

// Authenticate verifies a session credential and returns its email.
func (a *AuthService) Authenticate(_ context.Context, credential string) (string, error) {
	return a.sessions.Verify(credential)
}

// PurgeExpiredTokens drops login tokens past their expiry.
func (a *AuthService) PurgeExpiredTokens(ctx context.Context) (int, error) {
	return a.repo.PurgeExpiredTokens(ctx, a.now())
}

// ChatService runs a chat turn and guards conversation ownership. Lookups of
// conversations owned by someone else fail with ErrNotFound so existence is
// not leaked.
type ChatService struct {
	repo    Repository
	gen     generator.Generator
	tel     *telemetry.Telemetry
	logger  *slog.Logger
	window  int
	timeout time.Duration
	now     func() time.Time
}

// Chat appends the user message, asks the generator for a reply over the
// trailing window and appends the rendered reply. The generator runs outside
// any store lock. When it fails the user message stays recorded.
func (c *ChatService) Chat(ctx context.Context, owner, conversationID, text string) (models.ChatResponse, error) {
	if strings.TrimSpace(text) == "" {
		return models.ChatResponse{}, ErrEmptyMessage
	}
	if conversationID != "" {
		if _, err := c.owned(ctx, owner, conversationID); err != nil {
			return models.ChatResponse{}, err
		}
	}

	conv, err := c.repo.AppendMessage(ctx, conversationID, owner, models.Message{
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: c.timestamp(),
	})
	if err != nil {
		return models.ChatResponse{}, err
	}

	reply, err := c.generate(ctx, history.Window(conv.Messages, c.window))
	if err != nil {
		c.logger.ErrorContext(ctx, "generation failed", "conversation_id", conv.ID, "error", err)
		return models.ChatResponse{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	assistant := models.Message{
		Role:      models.RoleAssistant,
		Content:   render.Render(reply.Content),
		Timestamp: c.timestamp(),
	}
	conv, err = c.repo.AppendMessage(ctx, conv.ID, owner, assistant)
	if err != nil {
		return models.ChatResponse{}, err
	}
	c.tel.Chats.Add(ctx, 1)
	return models.ChatResponse{
		ConversationID: conv.ID,
		Message:        assistant.Content,
		Timestamp:      assistant.Timestamp,
	}, nil
}

func (c *ChatService) generate(ctx context.Context, window []models.Message) (generator.Turn, error) {
	turns := make([]generator.Turn, 0, len(window))
	for _, m := range window {
		turns = append(turns, generator.Turn{Role: string(m.Role), Content: m.Content})
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	ctx, span := c.tel.Tracer.Start(ctx, "generator.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("generator.provider", c.gen.Name()),
		attribute.Int("generator.turns", len(turns)),
	)

	start := time.Now()
	reply, err := c.gen.Generate(ctx, turns)
	c.tel.GenerationLatency.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.Bool("error", err != nil)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.tel.GenerationFailures.Add(ctx, 1)
		return generator.Turn{}, err
	}
	return reply, nil
}

func (c *ChatService) List(ctx context.Context, owner string) ([]models.ConversationSummary, error) {
	return c.repo.ListConversations(ctx, owner)
}

func (c *ChatService) Get(ctx context.Context, owner, id string) (models.Conversation, error) {
	return c.owned(ctx, owner, id)
}

func (c *ChatService) Delete(ctx context.Context, owner, id string) error {
	if _, err := c.owned(ctx, owner, id); err != nil {
		return err
	}
	if err := c.repo.DeleteConversation(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (c *ChatService) owned(ctx context.Context, owner, id string) (models.Conversation, error) {
	conv, err := c.repo.GetConversation(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Conversation{}, ErrNotFound
		}
		return models.Conversation{}, err
	}
	if conv.OwnerEmail != owner {
		return models.Conversation{}, ErrNotFound
	}
	return conv, nil
}

func (c *ChatService) timestamp() string {
	return c.now().UTC().Format(time.RFC3339Nano)
}
