package db

import (
	"context"
	"testing"
)

func TestInitPostgresNoDSN(t *testing.T) {
	pool, err := InitPostgres(context.Background(), "")
	if err != nil || pool != nil {
		t.Fatalf("expected nil pool without error, got %v %v", pool, err)
	}
}

func TestInitPostgresInvalidDSN(t *testing.T) {
	if _, err := InitPostgres(context.Background(), "postgres://%zz"); err == nil {
		t.Fatal("expected parse error for malformed dsn")
	}
}
