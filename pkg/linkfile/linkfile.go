// Package linkfile reads and writes the CSV handoff between the search driver
// and the content aggregator.
package linkfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dtnitsch/lens-scraper/models"
)

// Header is the first row of every link file.
var Header = []string{"URL", "Description"}

// Write stores records as CSV with a URL,Description header, creating parent directories.
func Write(path string, records []models.LinkRecord) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create link file directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create link file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		if err := w.Write([]string{r.URL, r.Description}); err != nil {
			return fmt.Errorf("failed to write record %s: %w", r.URL, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush link file: %w", err)
	}
	return f.Close()
}

// Decode parses CSV link records from r, skipping the header row.
// At most maxCount records are returned; maxCount <= 0 means no limit.
// Rows with an empty URL are skipped but still count toward the limit.
func Decode(r io.Reader, maxCount int) ([]models.LinkRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var records []models.LinkRecord
	for row := 0; maxCount <= 0 || row < maxCount; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", row+1, err)
		}
		if len(fields) == 0 || fields[0] == "" {
			continue
		}
		rec := models.LinkRecord{URL: fields[0]}
		if len(fields) > 1 {
			rec.Description = fields[1]
		}
		records = append(records, rec)
	}
	return records, nil
}

// Read loads at most maxCount records from the link file at path, in file order.
// Unreadable or malformed files yield an empty list; the failure is logged.
func Read(logger *slog.Logger, path string, maxCount int) []models.LinkRecord {
	f, err := os.Open(path)
	if err != nil {
		logger.Error("Error reading link file", "path", path, "error", err)
		return nil
	}
	defer f.Close()

	records, err := Decode(f, maxCount)
	if err != nil {
		logger.Error("Error parsing link file", "path", path, "error", err)
		return nil
	}
	return records
}
