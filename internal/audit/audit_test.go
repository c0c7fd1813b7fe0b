package audit

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestMemoryLoggerFillsDefaults(t *testing.T) {
	logger := NewMemoryLogger()
	meta := json.RawMessage(`{"corrections":1}`)
	if err := logger.Log(context.Background(), Entry{UserID: "u1", Action: ActionChartValidated, Metadata: meta}); err != nil {
		t.Fatalf("log: %v", err)
	}
	entries := logger.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	e := entries[0]
	if !strings.HasPrefix(e.ID, "audit-") || e.CreatedAt.IsZero() {
		t.Fatalf("defaults not filled: %+v", e)
	}
	if e.PayloadDigest != DigestJSON(meta) || len(e.PayloadDigest) != 64 {
		t.Fatalf("unexpected digest %q", e.PayloadDigest)
	}
}

func TestDigestJSONEmpty(t *testing.T) {
	if DigestJSON(nil) != "" {
		t.Fatalf("empty payload should have empty digest")
	}
}

func TestNilRepository(t *testing.T) {
	var repo *Repository
	if err := repo.Log(context.Background(), Entry{}); err == nil {
		t.Fatalf("expected error from nil repository")
	}
	if NewRepository(nil) != nil {
		t.Fatalf("expected nil repository for nil db")
	}
}
