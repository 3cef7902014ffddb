package database

import (
	"database/sql"
	"time"
)

// Message is one row of raw_telegram_messages: a single scraped channel
// message tagged with the partition date it was read from. ScrapedDate is
// the partition's date label and is independent of MessageDate.
type Message struct {
	ID          int64        `db:"id"`
	MessageID   int64        `db:"message_id"`
	ChannelName string       `db:"channel_name"`
	MessageText string       `db:"message_text"`
	MessageDate sql.NullTime `db:"message_date"`
	Views       int64        `db:"views"`
	Forwards    int64        `db:"forwards"`
	HasMedia    bool         `db:"has_media"`
	ScrapedDate time.Time    `db:"scraped_date"`
	CreatedAt   time.Time    `db:"created_at"`
}

// Image is one row of telegram_images: metadata for a downloaded image
// file. ImageDate is derived solely from the partition directory, never
// from file metadata.
type Image struct {
	ID          int64     `db:"id"`
	MessageID   int64     `db:"message_id"`
	ChannelName string    `db:"channel_name"`
	ImagePath   string    `db:"image_path"`
	ImageDate   time.Time `db:"image_date"`
	ScrapedDate time.Time `db:"scraped_date"`
	CreatedAt   time.Time `db:"created_at"`
}

// Detection is one row of raw_image_detections: a single bounding-box
// classification result for one image. An image may yield zero or many.
type Detection struct {
	ID          int64     `db:"id"`
	ChannelName string    `db:"channel_name"`
	MessageID   int64     `db:"message_id"`
	ObjectClass string    `db:"object_class"`
	Confidence  float64   `db:"confidence"`
	ImagePath   string    `db:"image_path"`
	DetectedAt  time.Time `db:"detected_at"`
}

// ProductCount is one entry of the top-products report.
type ProductCount struct {
	ProductName string `json:"product_name"`
	Count       int64  `json:"count"`
}

// DailyActivity is one day of a channel's message-count series. Days with
// zero messages are omitted from the series.
type DailyActivity struct {
	Date         string `db:"date"          json:"date"`
	MessageCount int64  `db:"message_count" json:"message_count"`
}

// ChannelActivity summarizes one channel's posting activity. The summary
// attributes are always re-derived from the loaded rows, never stored as
// independent truths.
type ChannelActivity struct {
	ChannelName   string          `json:"channel_name"`
	TotalMessages int64           `json:"total_messages"`
	TotalViews    int64           `json:"total_views"`
	DailyActivity []DailyActivity `json:"daily_activity"`
}

// MessageResult is one keyword-search hit.
type MessageResult struct {
	MessageKey  string `json:"message_id"`
	ChannelName string `json:"channel_name"`
	MessageDate string `json:"message_date"`
	MessageText string `json:"message_text"`
	Views       int64  `json:"views"`
}

// Summary reports row counts across the stored data.
type Summary struct {
	Messages   int64 `json:"messages"`
	Images     int64 `json:"images"`
	Detections int64 `json:"detections"`
	Channels   int64 `json:"channels"`
}
