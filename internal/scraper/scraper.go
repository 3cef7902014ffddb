// Package scraper collects posts from public Telegram channels over the Bot
// API and writes them to the raw data lake as date/channel partitions. The
// Bot API does not expose channel statistics, so view and forward counts
// are recorded as null and normalized downstream.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/amanuel-c/telepharm/internal/config"
	"github.com/amanuel-c/telepharm/internal/lake"
)

const (
	photoDownloadTimeout = 30 * time.Second
	maxPhotoBytes        = 10 * 1024 * 1024
)

// record is one scraped post in the lake's messages.json shape. Views and
// forwards marshal as null when unknown.
type record struct {
	ID       int64  `json:"id"`
	Date     string `json:"date"`
	Message  string `json:"message"`
	Views    *int64 `json:"views"`
	Forwards *int64 `json:"forwards"`
	Media    bool   `json:"media"`
}

// Scraper buffers channel posts in memory and flushes them to the lake.
type Scraper struct {
	tgBot    *bot.Bot
	token    string
	lake     *lake.Lake
	channels map[string]bool
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string][]record
}

// New creates the scraper and its Telegram bot instance. The bot receives
// channel posts through a default handler; everything else is ignored.
func New(cfg config.TelegramConfig, lk *lake.Lake, logger *slog.Logger) (*Scraper, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scraper{
		token:    cfg.Token,
		lake:     lk,
		channels: make(map[string]bool, len(cfg.Channels)),
		logger:   logger.With("component", "scraper"),
		pending:  make(map[string][]record),
	}
	for _, channel := range cfg.Channels {
		s.channels[channel] = true
	}

	b, err := bot.New(cfg.Token, bot.WithDefaultHandler(s.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	s.tgBot = b

	s.logger.Info("Scraper initialized", "channels", len(cfg.Channels))
	return s, nil
}

// Run starts the Telegram update listener and blocks until ctx is
// cancelled. Buffered posts are flushed on the way out.
func (s *Scraper) Run(ctx context.Context) error {
	s.logger.Info("Starting Telegram channel listener...")
	s.tgBot.Start(ctx)
	s.logger.Info("Telegram channel listener stopped.")

	flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Flush(flushCtx); err != nil {
		return fmt.Errorf("final flush failed: %w", err)
	}
	return nil
}

func (s *Scraper) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	post := update.ChannelPost
	if post == nil {
		return
	}

	channel := post.Chat.Username
	if channel == "" {
		channel = post.Chat.Title
	}
	if channel == "" {
		return
	}
	if len(s.channels) > 0 && !s.channels[channel] {
		s.logger.DebugContext(ctx, "Ignoring post from unlisted channel", "channel", channel)
		return
	}

	text := post.Text
	if text == "" {
		text = post.Caption
	}

	rec := record{
		ID:      int64(post.ID),
		Date:    time.Unix(int64(post.Date), 0).UTC().Format(time.RFC3339),
		Message: text,
		Media:   len(post.Photo) > 0,
	}

	s.mu.Lock()
	s.pending[channel] = append(s.pending[channel], rec)
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "Buffered channel post",
		"channel", channel, "message_id", post.ID, "has_media", rec.Media)

	if len(post.Photo) > 0 {
		// The largest photo size is listed last.
		fileID := post.Photo[len(post.Photo)-1].FileID
		if err := s.downloadPhoto(ctx, b, channel, int64(post.ID), fileID); err != nil {
			s.logger.ErrorContext(ctx, "Failed to download post photo",
				"channel", channel, "message_id", post.ID, "error", err)
		}
	}
}

// downloadPhoto fetches the photo behind fileID and stores it in today's
// partition as {message_id}.jpg, the name the image loader keys on.
func (s *Scraper) downloadPhoto(ctx context.Context, b *bot.Bot, channel string, messageID int64, fileID string) error {
	downloadCtx, cancel := context.WithTimeout(ctx, photoDownloadTimeout)
	defer cancel()

	fileObj, err := b.GetFile(downloadCtx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}
	if fileObj.FilePath == "" {
		return fmt.Errorf("empty file path returned from Telegram")
	}

	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", s.token, fileObj.FilePath)
	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return fmt.Errorf("failed to read file data: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("received empty file data")
	}

	dir, err := s.lake.PartitionDir(time.Now().UTC(), channel)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.jpg", messageID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write photo %s: %w", path, err)
	}

	s.logger.DebugContext(ctx, "Stored post photo", "path", path, "bytes", len(data))
	return nil
}

// Flush appends the buffered posts to today's messages.json per channel.
// Records already in the partition file are kept; the loader's partition
// unique key absorbs any overlap.
func (s *Scraper) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string][]record)
	s.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	today := time.Now().UTC()
	for channel, records := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		dir, err := s.lake.PartitionDir(today, channel)
		if err != nil {
			return err
		}
		partition := lake.Partition{
			Date:    today,
			Label:   today.Format("2006-01-02"),
			Channel: channel,
			Dir:     dir,
		}

		existing, err := partition.ReadMessages()
		if err != nil {
			return fmt.Errorf("failed to read existing partition %s: %w", dir, err)
		}

		combined := make([]any, 0, len(existing)+len(records))
		for _, e := range existing {
			combined = append(combined, e)
		}
		for _, r := range records {
			combined = append(combined, r)
		}

		if err := partition.WriteMessages(combined); err != nil {
			return err
		}

		s.logger.InfoContext(ctx, "Flushed channel posts to lake",
			"channel", channel, "new", len(records), "total", len(combined))
	}

	return nil
}
