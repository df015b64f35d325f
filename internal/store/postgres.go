package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	config.MaxConns = 20

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func parsePostgresUserID(id UserID) (uuid.UUID, error) {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return u, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanPostgresUser(row pgx.Row) (*User, error) {
	var (
		user User
		id   uuid.UUID
	)
	err := row.Scan(&id, &user.Email, &user.HashedPassword, &user.IsActive, &user.IsVerified, &user.IsSuperuser, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user.ID = UserID(id.String())
	return &user, nil
}

// CreateUser inserts a user with a fresh UUID.
func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	id := uuid.New()
	u.Email = normalizeEmail(u.Email)

	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, hashed_password, is_active, is_verified, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, id, u.Email, u.HashedPassword, u.IsActive, u.IsVerified, u.IsSuperuser).Scan(&u.CreatedAt)
	if err != nil {
		if isPgUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	u.ID = UserID(id.String())
	return nil
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanPostgresUser(s.pool.QueryRow(ctx, `
		SELECT id, email, hashed_password, is_active, is_verified, is_superuser, created_at
		FROM users WHERE email = $1
	`, normalizeEmail(email)))
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id UserID) (*User, error) {
	uid, err := parsePostgresUserID(id)
	if err != nil {
		return nil, err
	}
	return scanPostgresUser(s.pool.QueryRow(ctx, `
		SELECT id, email, hashed_password, is_active, is_verified, is_superuser, created_at
		FROM users WHERE id = $1
	`, uid))
}

// UpdateUser overwrites the mutable user fields.
func (s *PostgresStore) UpdateUser(ctx context.Context, u *User) error {
	uid, err := parsePostgresUserID(u.ID)
	if err != nil {
		return err
	}
	u.Email = normalizeEmail(u.Email)

	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET email = $2, hashed_password = $3, is_active = $4, is_verified = $5, is_superuser = $6
		WHERE id = $1
	`, uid, u.Email, u.HashedPassword, u.IsActive, u.IsVerified, u.IsSuperuser)
	if err != nil {
		if isPgUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateConversation inserts the conversation and its messages in one transaction.
func (s *PostgresStore) CreateConversation(ctx context.Context, c *Conversation) error {
	uid, err := parsePostgresUserID(c.UserID)
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	id := uuid.New()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO conversations (id, user_id, created_at) VALUES ($1, $2, $3)
	`, id, uid, c.CreatedAt); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, msg := range c.Messages {
		batch.Queue(`
			INSERT INTO messages (conversation_id, position, role, content, timestamp)
			VALUES ($1, $2, $3, $4, $5)
		`, id, i, string(msg.Role), msg.Content, msg.Timestamp)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	c.ID = id.String()
	return nil
}

// ListConversationsByUser retrieves the user's conversations oldest first.
func (s *PostgresStore) ListConversationsByUser(ctx context.Context, userID UserID) ([]Conversation, error) {
	uid, err := parsePostgresUserID(userID)
	if err != nil {
		return []Conversation{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.created_at, m.role, m.content, m.timestamp
		FROM conversations c
		JOIN messages m ON m.conversation_id = c.id
		WHERE c.user_id = $1
		ORDER BY c.created_at ASC, c.id ASC, m.position ASC
	`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := []Conversation{}
	for rows.Next() {
		var (
			convID    uuid.UUID
			createdAt time.Time
			role      string
			msg       Message
		)
		if err := rows.Scan(&convID, &createdAt, &role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.Role = Role(role)

		id := convID.String()
		last := len(conversations) - 1
		if last < 0 || conversations[last].ID != id {
			conversations = append(conversations, Conversation{ID: id, UserID: userID, CreatedAt: createdAt})
			last++
		}
		conversations[last].Messages = append(conversations[last].Messages, msg)
	}
	return conversations, rows.Err()
}
