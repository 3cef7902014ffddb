package detect_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/amanuel-c/telepharm/internal/database"
	"github.com/amanuel-c/telepharm/internal/detect"
)

type stubDetector struct {
	detections []detect.Detection
	err        error
}

func (d *stubDetector) Detect(ctx context.Context, imageData []byte) ([]detect.Detection, error) {
	return d.detections, d.err
}

// recordingStore captures detection inserts; the rest of the Store
// interface is unused by the sink.
type recordingStore struct {
	database.Store
	inserted []database.Detection
}

func (s *recordingStore) InsertDetections(ctx context.Context, rows []database.Detection) (int64, error) {
	s.inserted = append(s.inserted, rows...)
	return int64(len(rows)), nil
}

// testImage writes one fake image under a fresh data dir and returns the
// dir plus its database row with a root-relative path.
func testImage(t *testing.T) (string, database.Image) {
	t.Helper()
	dataDir := t.TempDir()
	rel := filepath.Join("2025-07-14", "chemed", "42.jpg")
	path := filepath.Join(dataDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create partition dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("fake image bytes"), 0o644); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
	return dataDir, database.Image{MessageID: 42, ChannelName: "chemed", ImagePath: rel}
}

func TestEnrichImages_ZeroDetectionsZeroRows(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	dataDir, image := testImage(t)
	sink := detect.NewSink(&stubDetector{}, store, dataDir, 0, nil)

	stats, err := sink.EnrichImages(context.Background(), []database.Image{image})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Images != 1 {
		t.Errorf("Images = %d, want 1", stats.Images)
	}
	if stats.Detections != 0 || len(store.inserted) != 0 {
		t.Errorf("expected zero rows, got %d stats / %d stored", stats.Detections, len(store.inserted))
	}
}

func TestEnrichImages_ConfidenceBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		confidence   float64
		wantInserted int
		wantRejected int
	}{
		{"lower bound inclusive", 0.0, 1, 0},
		{"upper bound inclusive", 1.0, 1, 0},
		{"below range", -0.1, 0, 1},
		{"above range", 1.1, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &recordingStore{}
			detector := &stubDetector{detections: []detect.Detection{
				{ObjectClass: "bottle", Confidence: tt.confidence},
			}}
			dataDir, image := testImage(t)
			sink := detect.NewSink(detector, store, dataDir, 0, nil)

			stats, err := sink.EnrichImages(context.Background(), []database.Image{image})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(store.inserted) != tt.wantInserted {
				t.Errorf("inserted = %d, want %d", len(store.inserted), tt.wantInserted)
			}
			if stats.Rejected != tt.wantRejected {
				t.Errorf("Rejected = %d, want %d", stats.Rejected, tt.wantRejected)
			}
		})
	}
}

func TestEnrichImages_RejectsRowNotImage(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	detector := &stubDetector{detections: []detect.Detection{
		{ObjectClass: "bottle", Confidence: 0.95},
		{ObjectClass: "label", Confidence: 1.5},
		{ObjectClass: "cap", Confidence: 0.4},
	}}
	dataDir, image := testImage(t)
	sink := detect.NewSink(detector, store, dataDir, 0, nil)

	stats, err := sink.EnrichImages(context.Background(), []database.Image{image})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.inserted) != 2 {
		t.Fatalf("inserted = %d, want 2 (bad row dropped, siblings kept)", len(store.inserted))
	}
	if stats.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", stats.Rejected)
	}
}

func TestEnrichImages_MinConfidenceFilter(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	detector := &stubDetector{detections: []detect.Detection{
		{ObjectClass: "bottle", Confidence: 0.9},
		{ObjectClass: "cap", Confidence: 0.2},
	}}
	dataDir, image := testImage(t)
	sink := detect.NewSink(detector, store, dataDir, 0.5, nil)

	stats, err := sink.EnrichImages(context.Background(), []database.Image{image})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.inserted) != 1 || store.inserted[0].ObjectClass != "bottle" {
		t.Fatalf("unexpected inserted rows: %+v", store.inserted)
	}
	// Below-threshold rows are filtered, not rejected.
	if stats.Rejected != 0 {
		t.Errorf("Rejected = %d, want 0", stats.Rejected)
	}
}
