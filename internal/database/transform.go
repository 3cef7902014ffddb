package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// RefreshMarts rebuilds the analytics mart tables from the raw tables in a
// single transaction. Raw rows share a message across scraped dates; the
// mart keeps exactly one row per (channel, message id), preferring the most
// recently scraped version. An error leaves the previous marts intact.
func (s *sqlxStore) RefreshMarts(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.ErrorContext(ctx, "Error rolling back mart refresh", "error", rollbackErr)
			}
		}
	}()

	for _, table := range []string{"fct_image_detections", "fct_messages", "dim_channels"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	var rawMessages []Message
	err = tx.SelectContext(ctx, &rawMessages, `
        SELECT id, message_id, channel_name, message_text, message_date,
               views, forwards, has_media, scraped_date, created_at
        FROM raw_telegram_messages
        ORDER BY scraped_date ASC, id ASC;`)
	if err != nil {
		return fmt.Errorf("failed to fetch raw messages: %w", err)
	}

	// Later scraped rows overwrite earlier ones for the same message.
	type msgIdent struct {
		channel   string
		messageID int64
	}
	latest := make(map[msgIdent]Message, len(rawMessages))
	order := make([]msgIdent, 0, len(rawMessages))
	for _, m := range rawMessages {
		ident := msgIdent{channel: m.ChannelName, messageID: m.MessageID}
		if _, seen := latest[ident]; !seen {
			order = append(order, ident)
		}
		latest[ident] = m
	}

	now := time.Now().UTC()

	type channelAgg struct {
		count     int64
		firstSeen time.Time
	}
	channels := make(map[string]*channelAgg)

	insertMessage := `
        INSERT INTO fct_messages
            (message_key, channel_key, date_key, message_date, message_text,
             views, forwards, has_media, loaded_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`

	for _, ident := range order {
		m := latest[ident]

		messageKey := fmt.Sprintf("%s:%d", m.ChannelName, m.MessageID)

		var dateKey any
		var messageDate any
		if m.MessageDate.Valid {
			utc := m.MessageDate.Time.UTC()
			dateKey = utc.Format(dateLayout)
			messageDate = utc
		}

		_, err := tx.ExecContext(ctx, insertMessage,
			messageKey, m.ChannelName, dateKey, messageDate, m.MessageText,
			m.Views, m.Forwards, m.HasMedia, now)
		if err != nil {
			return fmt.Errorf("failed to insert mart message %s: %w", messageKey, err)
		}

		agg, ok := channels[m.ChannelName]
		if !ok {
			agg = &channelAgg{}
			channels[m.ChannelName] = agg
		}
		agg.count++

		seen := m.ScrapedDate
		if m.MessageDate.Valid {
			seen = m.MessageDate.Time.UTC()
		}
		if agg.firstSeen.IsZero() || seen.Before(agg.firstSeen) {
			agg.firstSeen = seen
		}
	}

	insertChannel := `
        INSERT INTO dim_channels
            (channel_key, channel_name, first_seen_date, message_count, loaded_at)
        VALUES (?, ?, ?, ?, ?);`

	for name, agg := range channels {
		_, err := tx.ExecContext(ctx, insertChannel,
			name, name, agg.firstSeen.Format(dateLayout), agg.count, now)
		if err != nil {
			return fmt.Errorf("failed to insert mart channel %s: %w", name, err)
		}
	}

	type rawDetection struct {
		ID          int64   `db:"id"`
		ChannelName string  `db:"channel_name"`
		MessageID   int64   `db:"message_id"`
		ObjectClass string  `db:"object_class"`
		Confidence  float64 `db:"confidence"`
		ImagePath   string  `db:"image_path"`
	}

	var detections []rawDetection
	err = tx.SelectContext(ctx, &detections, `
        SELECT id, channel_name, message_id, object_class, confidence, image_path
        FROM raw_image_detections
        ORDER BY id ASC;`)
	if err != nil {
		return fmt.Errorf("failed to fetch raw detections: %w", err)
	}

	insertDetection := `
        INSERT INTO fct_image_detections
            (detection_key, message_key, object_class, confidence, image_path, loaded_at)
        VALUES (?, ?, ?, ?, ?, ?);`

	for _, d := range detections {
		detectionKey := fmt.Sprintf("%s:%d:%d", d.ChannelName, d.MessageID, d.ID)
		messageKey := fmt.Sprintf("%s:%d", d.ChannelName, d.MessageID)

		_, err := tx.ExecContext(ctx, insertDetection,
			detectionKey, messageKey, d.ObjectClass, d.Confidence, d.ImagePath, now)
		if err != nil {
			return fmt.Errorf("failed to insert mart detection %s: %w", detectionKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mart refresh: %w", err)
	}
	tx = nil

	s.logger.InfoContext(ctx, "Mart refresh completed",
		"messages", len(order), "channels", len(channels), "detections", len(detections))
	return nil
}
