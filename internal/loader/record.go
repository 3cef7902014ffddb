package loader

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// The raw scrape records carry three required keys (id, date, message) and
// optional enrichment keys (views, forwards, media). A record missing a
// required key is rejected; a required key that is present but null is
// normalized instead. Presence must therefore survive decoding, which is
// why records arrive as key/raw-value maps rather than typed structs.

var nullLiteral = []byte("null")

// dateLayouts are tried in order when parsing a record's date value.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizedMessage is one raw record after validation and normalization,
// ready to insert into raw_telegram_messages.
type NormalizedMessage struct {
	MessageID   int64
	MessageText string
	MessageDate sql.NullTime
	Views       int64
	Forwards    int64
	HasMedia    bool
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), nullLiteral)
}

// NormalizeMessage validates one decoded record. The returned error marks
// the record as rejected; callers skip rejected records without failing
// the surrounding partition.
func NormalizeMessage(record map[string]json.RawMessage) (NormalizedMessage, error) {
	for _, key := range []string{"id", "date", "message"} {
		if _, ok := record[key]; !ok {
			return NormalizedMessage{}, fmt.Errorf("missing required key %q", key)
		}
	}

	var out NormalizedMessage

	if isNull(record["id"]) {
		return NormalizedMessage{}, fmt.Errorf("null message id")
	}
	if err := json.Unmarshal(record["id"], &out.MessageID); err != nil {
		return NormalizedMessage{}, fmt.Errorf("invalid message id: %w", err)
	}

	// A null or unparsable date normalizes to NULL rather than rejecting:
	// the message is still useful for text analytics without a timestamp.
	if !isNull(record["date"]) {
		var dateStr string
		if err := json.Unmarshal(record["date"], &dateStr); err == nil {
			if parsed, ok := parseDate(dateStr); ok {
				out.MessageDate = sql.NullTime{Time: parsed, Valid: true}
			}
		}
	}

	if !isNull(record["message"]) {
		if err := json.Unmarshal(record["message"], &out.MessageText); err != nil {
			return NormalizedMessage{}, fmt.Errorf("invalid message text: %w", err)
		}
	}

	out.Views = optionalInt(record, "views")
	out.Forwards = optionalInt(record, "forwards")
	out.HasMedia = optionalBool(record, "media")

	return out, nil
}

func parseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func optionalInt(record map[string]json.RawMessage, key string) int64 {
	raw, ok := record[key]
	if !ok || isNull(raw) {
		return 0
	}
	var value int64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0
	}
	return value
}

func optionalBool(record map[string]json.RawMessage, key string) bool {
	raw, ok := record[key]
	if !ok || isNull(raw) {
		return false
	}
	var value bool
	if err := json.Unmarshal(raw, &value); err != nil {
		return false
	}
	return value
}
