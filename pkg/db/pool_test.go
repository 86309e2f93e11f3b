package db

import (
	"context"
	"strings"
	"testing"
)

const poolTestPrefix = "db:pool_test"

func TestNewPool_InvalidURL(t *testing.T) {
	for _, url := range []string{"invalid://not-a-valid-database-url", "postgres://%zz"} {
		pool, err := NewPool(context.Background(), url)
		if err == nil {
			if pool != nil {
				pool.Close()
			}
			t.Fatalf("%s - expected error for %q", poolTestPrefix, url)
		}
		if pool != nil {
			t.Errorf("%s - expected nil pool on error", poolTestPrefix)
		}
	}
}

func TestStatusLine(t *testing.T) {
	applied := statusLine(true, 1, "<embedded>")
	if !strings.Contains(applied, "applied (schema present, 1 migration files in <embedded>)") {
		t.Errorf("%s - applied line = %q", poolTestPrefix, applied)
	}
	pending := statusLine(false, 2, "migrations")
	if !strings.Contains(pending, "not applied") || !strings.Contains(pending, "gateway migrate up") {
		t.Errorf("%s - pending line = %q", poolTestPrefix, pending)
	}
}
