// Package lake reads and writes the raw data lake on the local filesystem.
// The layout is {root}/{YYYY-MM-DD}/{channel}/messages.json plus sibling
// {message_id}.jpg image files scraped alongside the messages.
package lake

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	dateLayout   = "2006-01-02"
	messagesFile = "messages.json"
)

// Partition is one {date}/{channel} directory of the lake.
type Partition struct {
	Date    time.Time
	Label   string
	Channel string
	Dir     string
}

// Lake locates and decodes partitions under a root directory.
type Lake struct {
	root string
}

func New(root string) *Lake {
	return &Lake{root: root}
}

func (l *Lake) Root() string { return l.root }

// PartitionDir returns the directory for one scrape date and channel,
// creating it if needed.
func (l *Lake) PartitionDir(date time.Time, channel string) (string, error) {
	dir := filepath.Join(l.root, date.Format(dateLayout), channel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create partition directory %s: %w", dir, err)
	}
	return dir, nil
}

// Walk enumerates every partition under the root in lexical order. A date
// directory whose name is not a valid YYYY-MM-DD label fails that directory
// alone; its error carries the offending label.
func (l *Lake) Walk() ([]Partition, []error) {
	dateEntries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("failed to read lake root %s: %w", l.root, err)}
	}

	var partitions []Partition
	var errs []error

	for _, dateEntry := range dateEntries {
		if !dateEntry.IsDir() {
			continue
		}
		label := dateEntry.Name()
		date, parseErr := time.Parse(dateLayout, label)
		if parseErr != nil {
			errs = append(errs, fmt.Errorf("invalid partition date label %q: %w", label, parseErr))
			continue
		}

		dateDir := filepath.Join(l.root, label)
		channelEntries, readErr := os.ReadDir(dateDir)
		if readErr != nil {
			errs = append(errs, fmt.Errorf("failed to read date directory %s: %w", dateDir, readErr))
			continue
		}

		for _, channelEntry := range channelEntries {
			if !channelEntry.IsDir() {
				continue
			}
			partitions = append(partitions, Partition{
				Date:    date,
				Label:   label,
				Channel: channelEntry.Name(),
				Dir:     filepath.Join(dateDir, channelEntry.Name()),
			})
		}
	}

	sort.Slice(partitions, func(i, j int) bool {
		if partitions[i].Label != partitions[j].Label {
			return partitions[i].Label < partitions[j].Label
		}
		return partitions[i].Channel < partitions[j].Channel
	})

	return partitions, errs
}

// ReadMessages decodes the partition's messages.json as a JSON array of
// objects, preserving which keys were present on each object. A partition
// without a messages.json yields no records and no error.
func (p Partition) ReadMessages() ([]map[string]json.RawMessage, error) {
	path := filepath.Join(p.Dir, messagesFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var records []map[string]json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return records, nil
}

// WriteMessages writes records as the partition's messages.json, replacing
// any previous file.
func (p Partition) WriteMessages(records any) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	path := filepath.Join(p.Dir, messagesFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ListImages returns the names of the partition's .jpg files in lexical
// order. The messages.json file and any other entries are ignored.
func (p Partition) ListImages() ([]string, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read partition %s: %w", p.Dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".jpg") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
