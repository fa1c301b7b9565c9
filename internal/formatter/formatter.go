// package formatter provides functions to export cache snapshots to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/desertthunder/hoardsync/internal/shared"
	"github.com/desertthunder/hoardsync/internal/tasks"
)

// Supported export formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
	FormatText     = "txt"
)

// Formats lists every accepted format name.
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// Entry kinds assigned by [Classify].
const (
	KindBookmark = "bookmark"
	KindURL      = "url"
	KindCursor   = "cursor"
	KindOther    = "other"
)

// Entry is one cache key with its decoded role.
type Entry struct {
	Key   string
	Kind  string
	Name  string // key without its prefix
	Value string // compact JSON
}

// Classify splits a cache key into its kind and name.
func Classify(key string) (kind, name string) {
	switch {
	case key == tasks.CursorKey:
		return KindCursor, key
	case strings.HasPrefix(key, tasks.IdentityKeyPrefix):
		return KindBookmark, strings.TrimPrefix(key, tasks.IdentityKeyPrefix)
	case strings.HasPrefix(key, tasks.URLKeyPrefix):
		return KindURL, strings.TrimPrefix(key, tasks.URLKeyPrefix)
	default:
		return KindOther, key
	}
}

// Entries returns the snapshot as entries sorted by key.
func Entries(snapshot map[string]json.RawMessage) []Entry {
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		kind, name := Classify(key)
		var buf bytes.Buffer
		value := string(snapshot[key])
		if err := json.Compact(&buf, snapshot[key]); err == nil {
			value = buf.String()
		}
		entries = append(entries, Entry{Key: key, Kind: kind, Name: name, Value: value})
	}
	return entries
}

// Counts tallies entries by kind.
func Counts(entries []Entry) map[string]int {
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Kind]++
	}
	return counts
}

// ExportToJSON renders the snapshot in the same shape as the backup file.
func ExportToJSON(snapshot map[string]json.RawMessage) ([]byte, error) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToCSV converts a snapshot to CSV format with columns: Key, Kind, Name, Value
func ExportToCSV(snapshot map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Key", "Kind", "Name", "Value"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range Entries(snapshot) {
		if err := writer.Write([]string{e.Key, e.Kind, e.Name, e.Value}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a summary and one section per entry kind.
func ExportToMarkdown(snapshot map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	entries := Entries(snapshot)
	counts := Counts(entries)

	buf.WriteString("# Sync Cache\n\n")
	buf.WriteString(fmt.Sprintf("**Entries**: %d\n", len(entries)))
	buf.WriteString(fmt.Sprintf("**Synced bookmarks**: %d\n", counts[KindBookmark]))
	buf.WriteString(fmt.Sprintf("**Synced URLs**: %d\n", counts[KindURL]))

	for _, section := range []struct{ kind, title string }{
		{KindCursor, "Cursor"},
		{KindBookmark, "Bookmarks"},
		{KindURL, "URLs"},
		{KindOther, "Other"},
	} {
		if counts[section.kind] == 0 {
			continue
		}
		buf.WriteString(fmt.Sprintf("\n## %s\n\n", section.title))
		for _, e := range entries {
			if e.Kind == section.kind {
				buf.WriteString(fmt.Sprintf("- `%s` = `%s`\n", e.Name, e.Value))
			}
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a snapshot to plain text format
func ExportToText(snapshot map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	entries := Entries(snapshot)

	buf.WriteString(fmt.Sprintf("Entries: %d\n\n", len(entries)))
	for i, e := range entries {
		buf.WriteString(fmt.Sprintf("%d. [%s] %s = %s\n", i+1, e.Kind, e.Name, e.Value))
	}

	return buf.Bytes(), nil
}

// Export renders snapshot in the named format.
func Export(snapshot map[string]json.RawMessage, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return ExportToJSON(snapshot)
	case FormatCSV:
		return ExportToCSV(snapshot)
	case FormatMarkdown, "markdown":
		return ExportToMarkdown(snapshot)
	case FormatText, "text":
		return ExportToText(snapshot)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (expected one of %s)", shared.ErrInvalidFlag, format, strings.Join(Formats, ", "))
	}
}

// WriteExport renders snapshot and writes it to path.
//
// Defaults to hoardsync_cache.{format} as the filename.
func WriteExport(snapshot map[string]json.RawMessage, format, path string) (string, error) {
	data, err := Export(snapshot, format)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = fmt.Sprintf("hoardsync_cache.%s", strings.ToLower(format))
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}
