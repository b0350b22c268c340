package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/svieira1985/gpt-webassist-sam/internal/server/repository"
	"github.com/svieira1985/gpt-webassist-sam/internal/shared/models"
)

type Repository struct {
	db *sql.DB
}

func New(dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; one connection keeps in-memory DSNs
	// consistent and avoids SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS identities (
			email TEXT PRIMARY KEY,
			created_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS login_tokens (
			digest TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			used INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			owner_email TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(owner_email);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
	`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error { return r.db.Close() }

// Identities

func (r *Repository) PutIdentity(ctx context.Context, email string) (models.Identity, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities(email, created_at) VALUES(?, ?)
		ON CONFLICT(email) DO UPDATE SET created_at = excluded.created_at
	`, email, now)
	if err != nil {
		return models.Identity{}, err
	}
	return models.Identity{Email: email, CreatedAt: now}, nil
}

func (r *Repository) GetIdentity(ctx context.Context, email string) (models.Identity, error) {
	ident := models.Identity{Email: email}
	row := r.db.QueryRowContext(ctx, `SELECT created_at FROM identities WHERE email = ?`, email)
	if err := row.Scan(&ident.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Identity{}, repository.ErrNotFound
		}
		return models.Identity{}, err
	}
	return ident, nil
}

// Login tokens

func (r *Repository) SaveLoginToken(ctx context.Context, tok models.LoginToken) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO login_tokens(digest, email, expires_at, used, created_at) VALUES(?,?,?,?,?)`,
		tok.Digest, tok.Email, tok.ExpiresAt.UnixNano(), boolToInt(tok.Used), time.Now().UTC())
	return err
}

// RedeemLoginToken flips used with a single conditional UPDATE; the row is only
// inspected afterwards to report why nothing matched.
func (r *Repository) RedeemLoginToken(ctx context.Context, digest, email string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE login_tokens SET used = 1
		WHERE digest = ? AND email = ? AND used = 0 AND expires_at > ?
	`, digest, email, now.UnixNano())
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 1 {
		return nil
	}

	var (
		boundEmail string
		expiresAt  int64
		used       int
	)
	row := r.db.QueryRowContext(ctx, `SELECT email, expires_at, used FROM login_tokens WHERE digest = ?`, digest)
	if err := row.Scan(&boundEmail, &expiresAt, &used); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrTokenInvalid
		}
		return err
	}
	if used != 0 || now.UnixNano() >= expiresAt {
		return repository.ErrTokenInvalid
	}
	return repository.ErrTokenEmailMismatch
}

func (r *Repository) PurgeExpiredTokens(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM login_tokens WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Conversations

func (r *Repository) AppendMessage(ctx context.Context, id, owner string, msg models.Message) (models.Conversation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer func() { _ = tx.Rollback() }()

	exists := false
	if id != "" {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM conversations WHERE id = ?`, id).Scan(&n); err != nil {
			return models.Conversation{}, err
		}
		exists = n > 0
	}
	if !exists {
		id = uuid.NewString()
		if _, err := tx.ExecContext(ctx, `INSERT INTO conversations(id, owner_email, created_at) VALUES(?,?,?)`,
			id, owner, time.Now().UTC()); err != nil {
			return models.Conversation{}, err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO messages(conversation_id, role, content, timestamp) VALUES(?,?,?,?)`,
		id, string(msg.Role), msg.Content, msg.Timestamp); err != nil {
		return models.Conversation{}, err
	}
	conv, err := loadConversation(ctx, tx, id)
	if err != nil {
		return models.Conversation{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

func (r *Repository) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	return loadConversation(ctx, r.db, id)
}

func (r *Repository) ListConversations(ctx context.Context, owner string) ([]models.ConversationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.created_at,
			(SELECT m.content FROM messages m WHERE m.conversation_id = c.id ORDER BY m.id DESC LIMIT 1)
		FROM conversations c
		WHERE c.owner_email = ?
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.ConversationSummary{}
	for rows.Next() {
		var conv models.Conversation
		var last sql.NullString
		if err := rows.Scan(&conv.ID, &conv.CreatedAt, &last); err != nil {
			return nil, err
		}
		if last.Valid {
			conv.Messages = []models.Message{{Content: last.String}}
		}
		out = append(out, repository.Summarize(conv))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	repository.SortSummaries(out)
	return out, nil
}

func (r *Repository) DeleteConversation(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return repository.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadConversation(ctx context.Context, q queryer, id string) (models.Conversation, error) {
	conv := models.Conversation{ID: id, Messages: []models.Message{}}
	row := q.QueryRowContext(ctx, `SELECT owner_email, created_at FROM conversations WHERE id = ?`, id)
	if err := row.Scan(&conv.OwnerEmail, &conv.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Conversation{}, repository.ErrNotFound
		}
		return models.Conversation{}, err
	}
	rows, err := q.QueryContext(ctx, `SELECT role, content, timestamp FROM messages WHERE conversation_id = ? ORDER BY id`, id)
	if err != nil {
		return models.Conversation{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var m models.Message
		var role string
		if err := rows.Scan(&role, &m.Content, &m.Timestamp); err != nil {
			return models.Conversation{}, fmt.Errorf("scan message: %w", err)
		}
		m.Role = models.Role(role)
		conv.Messages = append(conv.Messages, m)
	}
	return conv, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
