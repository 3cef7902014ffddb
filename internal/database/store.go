package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the data access interface for the pipeline. Write methods
// are used by the incremental loader and the detection sink; read methods
// back the analytics query layer. Methods accept context.Context for
// cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// InsertMessagePartition inserts one partition's accepted message rows
	// inside a single transaction. Rows that collide on
	// (message_id, channel_name, scraped_date) are silently skipped, so
	// re-loading a partition never duplicates rows. Returns the number of
	// rows actually inserted.
	InsertMessagePartition(ctx context.Context, rows []Message) (int64, error)

	// InsertImagePartition behaves like InsertMessagePartition for image
	// metadata rows.
	InsertImagePartition(ctx context.Context, rows []Image) (int64, error)

	// InsertDetections appends detection rows. No deduplication is
	// performed: repeated enrichment runs over the same image append
	// duplicate rows, which is intentional because detection output varies
	// across model versions.
	InsertDetections(ctx context.Context, rows []Detection) (int64, error)

	// ListImages returns every stored image metadata row in insertion
	// order. Used by the detection enrichment run.
	ListImages(ctx context.Context) ([]Image, error)

	// RefreshMarts rebuilds dim_channels, fct_messages, and
	// fct_image_detections from the raw tables in one transaction.
	RefreshMarts(ctx context.Context) error

	// TopProducts returns the limit most frequent tokens extracted from
	// mart message texts using pattern, ties broken lexicographically.
	TopProducts(ctx context.Context, limit int, pattern *regexp.Regexp) ([]ProductCount, error)

	// ChannelActivity summarizes one channel's activity over a trailing
	// window of windowDays days. Returns ErrNotFound for an unknown channel.
	ChannelActivity(ctx context.Context, channelName string, windowDays int) (*ChannelActivity, error)

	// SearchMessages returns up to limit messages whose text or channel
	// name contains query, case-insensitively, newest message first.
	SearchMessages(ctx context.Context, query string, limit int) ([]MessageResult, error)

	// Summary reports row counts across the raw tables.
	Summary(ctx context.Context) (*Summary, error)
}

// sqlxStore implements Store using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store backed by sqlx. It requires a connected
// sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const insertMessageQuery = `
    INSERT INTO raw_telegram_messages
        (message_id, channel_name, message_text, message_date, views, forwards, has_media, scraped_date, created_at)
    VALUES
        (:message_id, :channel_name, :message_text, :message_date, :views, :forwards, :has_media, :scraped_date, :created_at)
    ON CONFLICT (message_id, channel_name, scraped_date) DO NOTHING;
`

func (s *sqlxStore) InsertMessagePartition(ctx context.Context, rows []Message) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for message partition", "error", err)
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	now := time.Now().UTC()

	var inserted int64
	for i := range rows {
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
		result, err := tx.NamedExecContext(ctx, insertMessageQuery, &rows[i])
		if err != nil {
			s.logger.ErrorContext(ctx, "Error inserting message row",
				"channel", rows[i].ChannelName, "message_id", rows[i].MessageID, "error", err)
			return 0, fmt.Errorf("failed to insert message %d for channel %s: %w",
				rows[i].MessageID, rows[i].ChannelName, err)
		}
		affected, err := result.RowsAffected()
		if err == nil {
			inserted += affected
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit message partition", "error", err)
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Message partition stored",
		"rows", len(rows), "inserted", inserted, "skipped", int64(len(rows))-inserted)
	return inserted, nil
}

const insertImageQuery = `
    INSERT INTO telegram_images
        (message_id, channel_name, image_path, image_date, scraped_date, created_at)
    VALUES
        (:message_id, :channel_name, :image_path, :image_date, :scraped_date, :created_at)
    ON CONFLICT (message_id, channel_name, scraped_date) DO NOTHING;
`

func (s *sqlxStore) InsertImagePartition(ctx context.Context, rows []Image) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for image partition", "error", err)
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	now := time.Now().UTC()

	var inserted int64
	for i := range rows {
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
		result, err := tx.NamedExecContext(ctx, insertImageQuery, &rows[i])
		if err != nil {
			s.logger.ErrorContext(ctx, "Error inserting image row",
				"channel", rows[i].ChannelName, "message_id", rows[i].MessageID, "error", err)
			return 0, fmt.Errorf("failed to insert image %d for channel %s: %w",
				rows[i].MessageID, rows[i].ChannelName, err)
		}
		affected, err := result.RowsAffected()
		if err == nil {
			inserted += affected
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit image partition", "error", err)
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Image partition stored",
		"rows", len(rows), "inserted", inserted, "skipped", int64(len(rows))-inserted)
	return inserted, nil
}

const insertDetectionQuery = `
    INSERT INTO raw_image_detections
        (channel_name, message_id, object_class, confidence, image_path, detected_at)
    VALUES
        (:channel_name, :message_id, :object_class, :confidence, :image_path, :detected_at);
`

func (s *sqlxStore) InsertDetections(ctx context.Context, rows []Detection) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for detections", "error", err)
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	for i := range rows {
		if _, err := tx.NamedExecContext(ctx, insertDetectionQuery, &rows[i]); err != nil {
			s.logger.ErrorContext(ctx, "Error inserting detection row",
				"channel", rows[i].ChannelName, "message_id", rows[i].MessageID, "error", err)
			return 0, fmt.Errorf("failed to insert detection for message %d: %w", rows[i].MessageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit detections", "error", err)
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Detections stored", "rows", len(rows))
	return int64(len(rows)), nil
}

func (s *sqlxStore) ListImages(ctx context.Context) ([]Image, error) {
	var images []Image
	err := s.db.SelectContext(ctx, &images, `
        SELECT id, message_id, channel_name, image_path, image_date, scraped_date, created_at
        FROM telegram_images
        ORDER BY id ASC;`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing images", "error", err)
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return images, nil
}

func (s *sqlxStore) Summary(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM raw_telegram_messages", &summary.Messages},
		{"SELECT COUNT(*) FROM telegram_images", &summary.Images},
		{"SELECT COUNT(*) FROM raw_image_detections", &summary.Detections},
		{"SELECT COUNT(DISTINCT channel_name) FROM raw_telegram_messages", &summary.Channels},
	}

	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dest, c.query); err != nil {
			s.logger.ErrorContext(ctx, "Error computing data summary", "error", err)
			return nil, fmt.Errorf("failed to compute data summary: %w", err)
		}
	}

	return summary, nil
}
