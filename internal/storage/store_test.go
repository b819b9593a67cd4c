package storage

import (
	"context"
	"strings"
	"testing"

	"isucondition/internal/config"
)

func TestNewPoolRejectsSQLiteDriver(t *testing.T) {
	_, err := NewPool(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: "postgres://localhost/isu"})
	if err == nil || !strings.Contains(err.Error(), "sqlite") {
		t.Fatalf("expected sqlite driver error, got %v", err)
	}
}

func TestNewPoolRequiresDSN(t *testing.T) {
	_, err := NewPool(context.Background(), config.DatabaseConfig{Driver: "postgres"})
	if err == nil || !strings.Contains(err.Error(), "database.dsn") {
		t.Fatalf("expected dsn error, got %v", err)
	}
}

func TestOpenSQLiteDriver(t *testing.T) {
	repo, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()
	if _, ok := repo.(*SQLiteStore); !ok {
		t.Fatalf("expected *SQLiteStore, got %T", repo)
	}
}
