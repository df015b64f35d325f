package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestBackendFor(t *testing.T) {
	tests := []struct {
		url     string
		backend backend
		dsn     string
	}{
		{"postgres://u:p@localhost/db", backendPostgres, "postgres://u:p@localhost/db"},
		{"postgresql://localhost/db", backendPostgres, "postgresql://localhost/db"},
		{"mongodb://localhost:27017/wisepal", backendMongo, "mongodb://localhost:27017/wisepal"},
		{"mongodb+srv://cluster.example.net", backendMongo, "mongodb+srv://cluster.example.net"},
		{"sqlite://data/app.db", backendSQLite, "data/app.db"},
		{"sqlite3:///tmp/app.db", backendSQLite, "/tmp/app.db"},
		{"wisepal.db", backendSQLite, "wisepal.db"},
	}
	for _, tt := range tests {
		b, dsn := backendFor(tt.url)
		if b != tt.backend || dsn != tt.dsn {
			t.Errorf("backendFor(%q) = %s, %q; want %s, %q", tt.url, b, dsn, tt.backend, tt.dsn)
		}
	}
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "open.db")
	s, err := Open(context.Background(), "sqlite://"+path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, ok := s.(*SQLiteStore); !ok {
		t.Fatalf("expected *SQLiteStore, got %T", s)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected up and down migrations, got %d files", len(entries))
	}
}
