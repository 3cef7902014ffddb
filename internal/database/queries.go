package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// The read-only analytics operations below run against the mart tables
// (dim_channels, fct_messages, fct_image_detections), which RefreshMarts
// rebuilds from the raw tables. They never write.

// TopProducts extracts one token per mart message text using pattern
// (first match, lowercased) and returns the limit most frequent tokens.
// Ties are broken by lexicographic token order. The extraction rule is
// intentionally naive keyword matching, not product NLP.
func (s *sqlxStore) TopProducts(ctx context.Context, limit int, pattern *regexp.Regexp) ([]ProductCount, error) {
	if limit <= 0 {
		limit = 10
	}
	if pattern == nil {
		return nil, errors.New("nil token pattern")
	}

	var texts []string
	query := `SELECT message_text FROM fct_messages WHERE message_text <> ''`
	if err := s.db.SelectContext(ctx, &texts, query); err != nil {
		s.logger.ErrorContext(ctx, "Error fetching message texts for top products", "error", err)
		return nil, fmt.Errorf("failed to fetch message texts: %w", err)
	}

	counts := make(map[string]int64)
	for _, text := range texts {
		token := pattern.FindString(text)
		if token == "" {
			continue
		}
		counts[strings.ToLower(token)]++
	}

	products := make([]ProductCount, 0, len(counts))
	for token, count := range counts {
		products = append(products, ProductCount{ProductName: token, Count: count})
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Count != products[j].Count {
			return products[i].Count > products[j].Count
		}
		return products[i].ProductName < products[j].ProductName
	})

	if len(products) > limit {
		products = products[:limit]
	}

	s.logger.DebugContext(ctx, "Computed top products", "distinct_tokens", len(counts), "returned", len(products))
	return products, nil
}

// ChannelActivity returns the channel's message count, summed views, and a
// sparse daily message-count series for the trailing windowDays days ending
// at query time. Days with zero messages are omitted from the series.
// Returns ErrNotFound when the channel has no rows.
func (s *sqlxStore) ChannelActivity(ctx context.Context, channelName string, windowDays int) (*ChannelActivity, error) {
	if channelName == "" {
		return nil, fmt.Errorf("channel name cannot be empty")
	}
	if windowDays <= 0 {
		windowDays = 30
	}

	var row struct {
		ChannelName  string `db:"channel_name"`
		MessageCount int64  `db:"message_count"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT channel_name, message_count FROM dim_channels WHERE channel_key = ?`, channelName)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "Channel not found", "channel", channelName)
		return nil, ErrNotFound
	case err != nil:
		s.logger.ErrorContext(ctx, "Error fetching channel", "channel", channelName, "error", err)
		return nil, fmt.Errorf("failed to fetch channel %s: %w", channelName, err)
	}

	var totalViews int64
	err = s.db.GetContext(ctx, &totalViews,
		`SELECT COALESCE(SUM(views), 0) FROM fct_messages WHERE channel_key = ?`, channelName)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error summing channel views", "channel", channelName, "error", err)
		return nil, fmt.Errorf("failed to sum views for channel %s: %w", channelName, err)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -windowDays)

	var daily []DailyActivity
	err = s.db.SelectContext(ctx, &daily, `
        SELECT date_key AS date, COUNT(*) AS message_count
        FROM fct_messages
        WHERE channel_key = ?
          AND date_key IS NOT NULL
          AND date_key >= ?
          AND date_key <= ?
        GROUP BY date_key
        ORDER BY date_key;`,
		channelName, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error building daily activity series", "channel", channelName, "error", err)
		return nil, fmt.Errorf("failed to build daily activity for channel %s: %w", channelName, err)
	}

	return &ChannelActivity{
		ChannelName:   row.ChannelName,
		TotalMessages: row.MessageCount,
		TotalViews:    totalViews,
		DailyActivity: daily,
	}, nil
}

// SearchMessages returns up to limit messages whose text or channel name
// contains query, case-insensitively, ordered by message date descending.
func (s *sqlxStore) SearchMessages(ctx context.Context, query string, limit int) ([]MessageResult, error) {
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 {
		limit = 20
	} else if limit > 100 {
		limit = 100
	}

	type searchRow struct {
		MessageKey  string       `db:"message_key"`
		ChannelName string       `db:"channel_name"`
		MessageDate sql.NullTime `db:"message_date"`
		MessageText string       `db:"message_text"`
		Views       int64        `db:"views"`
	}

	var rows []searchRow
	err := s.db.SelectContext(ctx, &rows, `
        SELECT m.message_key, c.channel_name, m.message_date, m.message_text, m.views
        FROM fct_messages m
        JOIN dim_channels c ON c.channel_key = m.channel_key
        WHERE LOWER(m.message_text) LIKE '%' || LOWER(?) || '%'
           OR LOWER(c.channel_name) LIKE '%' || LOWER(?) || '%'
        ORDER BY m.message_date DESC
        LIMIT ?;`,
		query, query, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error searching messages", "query", query, "error", err)
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	results := make([]MessageResult, 0, len(rows))
	for _, r := range rows {
		var dateStr string
		if r.MessageDate.Valid {
			dateStr = r.MessageDate.Time.UTC().Format(time.RFC3339)
		}
		results = append(results, MessageResult{
			MessageKey:  r.MessageKey,
			ChannelName: r.ChannelName,
			MessageDate: dateStr,
			MessageText: r.MessageText,
			Views:       r.Views,
		})
	}

	s.logger.DebugContext(ctx, "Search completed", "query", query, "hits", len(results))
	return results, nil
}
