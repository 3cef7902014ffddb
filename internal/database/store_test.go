package database_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/amanuel-c/telepharm/internal/database"
)

var wordPattern = regexp.MustCompile("[A-Za-z]+")

func newTestStore(t *testing.T) database.Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	return database.NewStore(db, nil)
}

func msg(id int64, channel, text string, date time.Time, scraped time.Time, views int64) database.Message {
	return database.Message{
		MessageID:   id,
		ChannelName: channel,
		MessageText: text,
		MessageDate: sql.NullTime{Time: date, Valid: true},
		Views:       views,
		ScrapedDate: scraped,
	}
}

func TestInsertMessagePartition_SkipsDuplicates(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	scraped := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)

	rows := []database.Message{
		msg(1, "chemed", "first", scraped, scraped, 10),
		msg(2, "chemed", "second", scraped, scraped, 20),
	}

	inserted, err := store.InsertMessagePartition(ctx, rows)
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("first insert = %d rows, want 2", inserted)
	}

	inserted, err = store.InsertMessagePartition(ctx, rows)
	if err != nil {
		t.Fatalf("second insert failed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("second insert = %d rows, want 0", inserted)
	}

	// Same message scraped on another day is a new raw row.
	nextDay := scraped.AddDate(0, 0, 1)
	inserted, err = store.InsertMessagePartition(ctx, []database.Message{
		msg(1, "chemed", "first updated", scraped, nextDay, 15),
	})
	if err != nil {
		t.Fatalf("next-day insert failed: %v", err)
	}
	if inserted != 1 {
		t.Errorf("next-day insert = %d rows, want 1", inserted)
	}
}

func TestRefreshMarts_KeepsLatestScrape(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	date := time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC)
	day1 := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	if _, err := store.InsertMessagePartition(ctx, []database.Message{
		msg(1, "chemed", "old text", date, day1, 10),
	}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := store.InsertMessagePartition(ctx, []database.Message{
		msg(1, "chemed", "new text", date, day2, 25),
	}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := store.RefreshMarts(ctx); err != nil {
		t.Fatalf("mart refresh failed: %v", err)
	}

	results, err := store.SearchMessages(ctx, "text", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 mart row after dedup, got %d", len(results))
	}
	if results[0].MessageText != "new text" {
		t.Errorf("mart text = %q, want latest scrape %q", results[0].MessageText, "new text")
	}
	if results[0].Views != 25 {
		t.Errorf("mart views = %d, want 25", results[0].Views)
	}
}

func TestTopProducts_CountsAndTies(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	day := time.Now().UTC().Truncate(24 * time.Hour)

	rows := []database.Message{
		msg(1, "chemed", "Paracetamol 500mg available", day, day, 0),
		msg(2, "chemed", "paracetamol restock", day, day, 0),
		msg(3, "chemed", "bandage rolls", day, day, 0),
		msg(4, "chemed", "aspirin packs", day, day, 0),
		msg(5, "chemed", "", day, day, 0),
	}
	if _, err := store.InsertMessagePartition(ctx, rows); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.RefreshMarts(ctx); err != nil {
		t.Fatalf("mart refresh failed: %v", err)
	}

	products, err := store.TopProducts(ctx, 10, wordPattern)
	if err != nil {
		t.Fatalf("top products failed: %v", err)
	}

	if len(products) != 3 {
		t.Fatalf("expected 3 products, got %d: %+v", len(products), products)
	}
	if products[0].ProductName != "paracetamol" || products[0].Count != 2 {
		t.Errorf("products[0] = %+v, want paracetamol/2", products[0])
	}
	// Equal counts order lexicographically.
	if products[1].ProductName != "aspirin" || products[2].ProductName != "bandage" {
		t.Errorf("tie order = %s, %s; want aspirin, bandage",
			products[1].ProductName, products[2].ProductName)
	}
}

func TestChannelActivity(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	twoDaysAgo := time.Now().UTC().AddDate(0, 0, -2)
	day := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)

	rows := []database.Message{
		msg(1, "tikvahpharma", "a", yesterday, day, 100),
		msg(2, "tikvahpharma", "b", yesterday, day, 50),
		msg(3, "tikvahpharma", "c", twoDaysAgo, day, 25),
	}
	if _, err := store.InsertMessagePartition(ctx, rows); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.RefreshMarts(ctx); err != nil {
		t.Fatalf("mart refresh failed: %v", err)
	}

	activity, err := store.ChannelActivity(ctx, "tikvahpharma", 30)
	if err != nil {
		t.Fatalf("channel activity failed: %v", err)
	}

	if activity.TotalMessages != 3 {
		t.Errorf("TotalMessages = %d, want 3", activity.TotalMessages)
	}
	if activity.TotalViews != 175 {
		t.Errorf("TotalViews = %d, want 175", activity.TotalViews)
	}
	// Two distinct days; zero-message days are absent from the series.
	if len(activity.DailyActivity) != 2 {
		t.Fatalf("expected 2 daily entries, got %d: %+v", len(activity.DailyActivity), activity.DailyActivity)
	}
	if activity.DailyActivity[1].MessageCount != 2 {
		t.Errorf("yesterday count = %d, want 2", activity.DailyActivity[1].MessageCount)
	}
}

func TestChannelActivity_NotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.ChannelActivity(context.Background(), "nonexistent", 30)
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchMessages_CaseInsensitiveNewestFirst(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)

	rows := []database.Message{
		msg(1, "chemed", "Amoxicillin capsules", day.Add(8*time.Hour), day, 0),
		msg(2, "chemed", "amoxicillin syrup", day.Add(10*time.Hour), day, 0),
		msg(3, "chemed", "vitamin c", day.Add(9*time.Hour), day, 0),
	}
	if _, err := store.InsertMessagePartition(ctx, rows); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.RefreshMarts(ctx); err != nil {
		t.Fatalf("mart refresh failed: %v", err)
	}

	results, err := store.SearchMessages(ctx, "AMOXICILLIN", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(results))
	}
	if results[0].MessageText != "amoxicillin syrup" {
		t.Errorf("results[0] = %q, want newest message first", results[0].MessageText)
	}

	// Channel name matches count too.
	results, err = store.SearchMessages(ctx, "CHEMED", 10)
	if err != nil {
		t.Fatalf("channel search failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("channel search hits = %d, want 3", len(results))
	}
}

func TestInsertDetections_AppendOnly(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	row := database.Detection{
		ChannelName: "lobelia4cosmetics",
		MessageID:   42,
		ObjectClass: "bottle",
		Confidence:  0.9,
		ImagePath:   "data/2025-07-14/lobelia4cosmetics/42.jpg",
		DetectedAt:  time.Now().UTC(),
	}

	for i := 0; i < 2; i++ {
		if _, err := store.InsertDetections(ctx, []database.Detection{row}); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.Detections != 2 {
		t.Errorf("detections = %d, want 2 (no dedup)", summary.Detections)
	}
}
