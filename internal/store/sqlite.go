package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/oklog/ulid/v2"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "wisepal.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every new connection would see a fresh empty database.
		db.SetMaxOpenConns(1)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        email TEXT UNIQUE NOT NULL,
        hashed_password TEXT NOT NULL,
        is_active BOOLEAN NOT NULL DEFAULT TRUE,
        is_verified BOOLEAN NOT NULL DEFAULT FALSE,
        is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS conversations (
        id TEXT PRIMARY KEY, -- ULID
        user_id INTEGER NOT NULL,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS messages (
        conversation_id TEXT NOT NULL,
        position INTEGER NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
        content TEXT NOT NULL,
        timestamp DATETIME NOT NULL,
        PRIMARY KEY (conversation_id, position),
        FOREIGN KEY (conversation_id) REFERENCES conversations (id)
    );

    CREATE INDEX IF NOT EXISTS idx_conversations_user_created ON conversations(user_id, created_at);
    `
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func parseSQLiteUserID(id UserID) (int64, error) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, ErrNotFound
	}
	return n, nil
}

const sqliteUserColumns = "id, email, hashed_password, is_active, is_verified, is_superuser, created_at"

func scanSQLiteUser(row interface{ Scan(...any) error }) (*User, error) {
	var user User
	var id int64
	err := row.Scan(&id, &user.Email, &user.HashedPassword, &user.IsActive, &user.IsVerified, &user.IsSuperuser, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	user.ID = UserID(strconv.FormatInt(id, 10))
	return &user, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// User methods
func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	u.Email = normalizeEmail(u.Email)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (email, hashed_password, is_active, is_verified, is_superuser, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		u.Email, u.HashedPassword, u.IsActive, u.IsVerified, u.IsSuperuser, u.CreatedAt)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}
	u.ID = UserID(strconv.FormatInt(id, 10))
	return nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sqliteUserColumns+" FROM users WHERE email = ?", normalizeEmail(email))
	return scanSQLiteUser(row)
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id UserID) (*User, error) {
	n, err := parseSQLiteUserID(id)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+sqliteUserColumns+" FROM users WHERE id = ?", n)
	return scanSQLiteUser(row)
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u *User) error {
	n, err := parseSQLiteUserID(u.ID)
	if err != nil {
		return err
	}
	u.Email = normalizeEmail(u.Email)

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET email = ?, hashed_password = ?, is_active = ?, is_verified = ?, is_superuser = ? WHERE id = ?",
		u.Email, u.HashedPassword, u.IsActive, u.IsVerified, u.IsSuperuser, n)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to execute user update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Conversation methods
func (s *SQLiteStore) CreateConversation(ctx context.Context, c *Conversation) error {
	userID, err := parseSQLiteUserID(c.UserID)
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	id := ulid.Make().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin conversation insert: %w", err)
	}
	defer tx.Rollback() // No-op after Commit

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO conversations (id, user_id, created_at) VALUES (?, ?, ?)",
		id, userID, c.CreatedAt); err != nil {
		return fmt.Errorf("failed to execute conversation insert: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO messages (conversation_id, position, role, content, timestamp) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range c.Messages {
		if _, err := stmt.ExecContext(ctx, id, i, string(msg.Role), msg.Content, msg.Timestamp); err != nil {
			return fmt.Errorf("failed to execute message insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversation: %w", err)
	}
	c.ID = id
	return nil
}

func (s *SQLiteStore) ListConversationsByUser(ctx context.Context, userID UserID) ([]Conversation, error) {
	n, err := parseSQLiteUserID(userID)
	if err != nil {
		return []Conversation{}, nil
	}

	query := `
        SELECT c.id, c.created_at, m.role, m.content, m.timestamp
        FROM conversations c
        JOIN messages m ON m.conversation_id = c.id
        WHERE c.user_id = ?
        ORDER BY c.created_at ASC, c.id ASC, m.position ASC
    `
	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	conversations := []Conversation{}
	for rows.Next() {
		var (
			convID    string
			createdAt time.Time
			role      string
			msg       Message
		)
		if err := rows.Scan(&convID, &createdAt, &role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		msg.Role = Role(role)

		last := len(conversations) - 1
		if last < 0 || conversations[last].ID != convID {
			conversations = append(conversations, Conversation{
				ID:        convID,
				UserID:    userID,
				CreatedAt: createdAt,
			})
			last++
		}
		conversations[last].Messages = append(conversations[last].Messages, msg)
	}
	return conversations, rows.Err()
}
