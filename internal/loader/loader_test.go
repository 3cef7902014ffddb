package loader_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/amanuel-c/telepharm/internal/database"
	"github.com/amanuel-c/telepharm/internal/lake"
	"github.com/amanuel-c/telepharm/internal/loader"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	return database.NewStore(db, nil)
}

func writeLakeFile(t *testing.T, root string, parts []string, content string) {
	t.Helper()
	path := filepath.Join(append([]string{root}, parts...)...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestLoadMessages_RejectsMalformedKeepsRest(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeLakeFile(t, root, []string{"2025-07-14", "chemed", "messages.json"}, `[
        {"id": 1, "date": "2025-07-14T08:00:00Z", "message": "paracetamol 500mg in stock"},
        {"date": "2025-07-14T08:05:00Z", "message": "missing id"},
        {"id": 3, "date": null, "message": null}
    ]`)

	store := newTestStore(t)
	l := loader.New(lake.New(root), store, nil)

	stats, err := l.LoadMessages(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Loaded != 2 {
		t.Errorf("Loaded = %d, want 2", stats.Loaded)
	}
	if stats.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", stats.Rejected)
	}
	if stats.Failures != 0 {
		t.Errorf("Failures = %d, want 0", stats.Failures)
	}
}

func TestLoadMessages_Idempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeLakeFile(t, root, []string{"2025-07-14", "chemed", "messages.json"}, `[
        {"id": 1, "date": "2025-07-14T08:00:00Z", "message": "first"},
        {"id": 2, "date": "2025-07-14T09:00:00Z", "message": "second"}
    ]`)

	store := newTestStore(t)
	l := loader.New(lake.New(root), store, nil)
	ctx := context.Background()

	first, err := l.LoadMessages(ctx)
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	if first.Loaded != 2 {
		t.Fatalf("first load: Loaded = %d, want 2", first.Loaded)
	}

	second, err := l.LoadMessages(ctx)
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if second.Loaded != 0 {
		t.Errorf("second load: Loaded = %d, want 0", second.Loaded)
	}
	if second.Skipped != 2 {
		t.Errorf("second load: Skipped = %d, want 2", second.Skipped)
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.Messages != 2 {
		t.Errorf("stored messages = %d, want 2", summary.Messages)
	}
}

func TestLoadMessages_BadDateLabelFailsPartitionOnly(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeLakeFile(t, root, []string{"2025-07-14", "chemed", "messages.json"},
		`[{"id": 1, "date": "2025-07-14T08:00:00Z", "message": "ok"}]`)
	writeLakeFile(t, root, []string{"july-14", "chemed", "messages.json"},
		`[{"id": 2, "date": "2025-07-14T08:00:00Z", "message": "unreachable"}]`)

	store := newTestStore(t)
	stats, err := loader.New(lake.New(root), store, nil).LoadMessages(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Failures != 1 {
		t.Errorf("Failures = %d, want 1", stats.Failures)
	}
	if stats.Loaded != 1 {
		t.Errorf("Loaded = %d, want 1", stats.Loaded)
	}
}

func TestLoadImages_RejectsNonIntegerNames(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeLakeFile(t, root, []string{"2025-07-14", "lobelia4cosmetics", "42.jpg"}, "fake image")
	writeLakeFile(t, root, []string{"2025-07-14", "lobelia4cosmetics", "photo.jpg"}, "fake image")

	store := newTestStore(t)
	stats, err := loader.New(lake.New(root), store, nil).LoadImages(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Loaded != 1 {
		t.Errorf("Loaded = %d, want 1", stats.Loaded)
	}
	if stats.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", stats.Rejected)
	}

	images, err := store.ListImages(context.Background())
	if err != nil {
		t.Fatalf("list images failed: %v", err)
	}
	if len(images) != 1 || images[0].MessageID != 42 {
		t.Fatalf("unexpected stored images: %+v", images)
	}
}
