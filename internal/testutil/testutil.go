// Package testutil provides shared test helpers for snscheduler.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TempAttachment writes an attachment fixture into a per-test temp
// directory and returns its path. The file disappears with the test.
func TempAttachment(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing attachment fixture %s: %v", name, err)
	}
	return path
}

// TestContext returns a context with a 5-second timeout.
// The context is cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
