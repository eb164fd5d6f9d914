package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"venue-crawler/models"
)

var csvHeader = []string{
	"query", "place_id", "name", "address", "phone", "website", "category", "category_match",
	"rating", "review_count", "opening_hours", "latitude", "longitude", "map_url",
	"image_url", "image_path", "rooms", "reviews", "crawled_at",
}

// CSVWriter writes raw venues to a CSV file, one row per venue.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRaw appends one row per venue. Absent optional values are empty cells.
func (c *CSVWriter) WriteRaw(venues []*models.CrawledVenueData) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, v := range venues {
		row := []string{
			v.Query,
			v.PlaceID,
			v.Name,
			v.Address,
			v.Phone,
			v.Website,
			v.Category,
			strconv.FormatBool(v.CategoryMatch),
			formatFloat(v.Rating),
			formatInt(v.ReviewCount),
			v.OpeningHours,
			formatFloat(v.Latitude),
			formatFloat(v.Longitude),
			v.MapURL,
			v.ImageURL,
			v.ImagePath,
			strconv.Itoa(len(v.Rooms)),
			strconv.Itoa(len(v.Reviews)),
			v.CrawledAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func formatFloat(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func formatInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
