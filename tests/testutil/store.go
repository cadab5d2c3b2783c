package testutil

import (
	"testing"

	"github.com/nhle/project-planner/internal/kv"
)

// NewTestBackend creates an in-memory SQLite slot backend with all
// migrations applied. It automatically closes the backend when the test
// completes.
func NewTestBackend(t *testing.T) *kv.SQLite {
	t.Helper()

	b, err := kv.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("creating test backend: %v", err)
	}

	t.Cleanup(func() {
		if err := b.Close(); err != nil {
			t.Errorf("closing test backend: %v", err)
		}
	})

	return b
}
