package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Store is the persistence boundary for users and conversation history.
// SQLiteStore, PostgresStore and MongoStore implement it.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	// CreateUser assigns u.ID. Returns ErrDuplicateEmail when the email is taken.
	CreateUser(ctx context.Context, u *User) error
	// GetUserByEmail and GetUserByID return ErrNotFound for unknown users.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id UserID) (*User, error)
	UpdateUser(ctx context.Context, u *User) error

	// CreateConversation writes the conversation and its messages in one step
	// and assigns c.ID.
	CreateConversation(ctx context.Context, c *Conversation) error
	// ListConversationsByUser returns the user's conversations oldest first.
	ListConversationsByUser(ctx context.Context, userID UserID) ([]Conversation, error)
}

type backend int

const (
	backendSQLite backend = iota
	backendPostgres
	backendMongo
)

func (b backend) String() string {
	switch b {
	case backendPostgres:
		return "postgres"
	case backendMongo:
		return "mongodb"
	default:
		return "sqlite"
	}
}

// backendFor picks the adapter from the URL scheme and returns the adapter-specific DSN.
func backendFor(databaseURL string) (backend, string) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return backendPostgres, databaseURL
	case strings.HasPrefix(databaseURL, "mongodb://"), strings.HasPrefix(databaseURL, "mongodb+srv://"):
		return backendMongo, databaseURL
	case strings.HasPrefix(databaseURL, "sqlite3://"):
		return backendSQLite, strings.TrimPrefix(databaseURL, "sqlite3://")
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return backendSQLite, strings.TrimPrefix(databaseURL, "sqlite://")
	default:
		return backendSQLite, databaseURL
	}
}

// Open connects to the backend named by databaseURL. Postgres migrations run before
// the pool is opened.
func Open(ctx context.Context, databaseURL string, logger zerolog.Logger) (Store, error) {
	b, dsn := backendFor(databaseURL)
	logger = logger.With().Str("backend", b.String()).Logger()

	switch b {
	case backendPostgres:
		logger.Info().Msg("running database migrations...")
		if err := RunMigrations(dsn); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		s, err := NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("connected to PostgreSQL")
		return s, nil
	case backendMongo:
		s, err := NewMongoStore(ctx, dsn, "")
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("connected to MongoDB")
		return s, nil
	default:
		s, err := NewSQLiteStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", dsn).Msg("opened SQLite database")
		return s, nil
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
