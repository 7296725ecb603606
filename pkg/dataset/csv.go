package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Column aliases accepted in the CSV header, English and Spanish.
var columnAliases = map[string][]string{
	"duration": {"duration_seconds", "duration", "duracion_seg", "duracion"},
	"type":     {"type", "tipo"},
	"platform": {"platform", "plataforma"},
	"day":      {"day", "weekday", "dia", "día"},
	"views":    {"views", "vistas"},
}

// CSVSource reads records from a delimited file with a header row.
type CSVSource struct {
	// Path is the file to read (required).
	Path string

	// Comma is the field delimiter. Defaults to ','.
	Comma rune
}

func (c *CSVSource) Name() string { return "csv" }

// Load implements Source.
func (c *CSVSource) Load(ctx context.Context) ([]Record, error) {
	if c.Path == "" {
		return nil, errors.New("csv source: path is required")
	}

	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("csv source: %w", err)
	}
	defer f.Close()

	return ReadCSV(ctx, f, c.Comma)
}

// ReadCSV parses records from r. comma == 0 means ','.
func ReadCSV(ctx context.Context, r io.Reader, comma rune) ([]Record, error) {
	reader := csv.NewReader(r)
	if comma != 0 {
		reader.Comma = comma
	}
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv source: empty file")
		}
		return nil, fmt.Errorf("csv source: read header: %w", err)
	}

	idx, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var records []Record
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv source: line %d: %w", line, err)
		}

		rec, err := parseRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("csv source: line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	if err := validateAll(records); err != nil {
		return nil, fmt.Errorf("csv source: %w", err)
	}
	return records, nil
}

func headerIndex(header []string) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		positions[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	idx := make(map[string]int, len(columnAliases))
	for field, aliases := range columnAliases {
		found := false
		for _, alias := range aliases {
			if pos, ok := positions[alias]; ok {
				idx[field] = pos
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("csv source: missing column %q (accepted: %s)", field, strings.Join(aliases, ", "))
		}
	}
	return idx, nil
}

func parseRow(row []string, idx map[string]int) (Record, error) {
	get := func(field string) string {
		pos := idx[field]
		if pos >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[pos])
	}

	duration, err := strconv.ParseFloat(get("duration"), 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: duration: %v", ErrInvalidRecord, err)
	}

	views, err := parseViews(get("views"))
	if err != nil {
		return Record{}, err
	}

	var rec Record
	rec.DurationSeconds = duration
	rec.Type = get("type")
	rec.Platform = get("platform")
	rec.Day = get("day")
	rec.Views = views
	return rec, nil
}

// parseViews accepts integers and integral floats such as "1200.0".
func parseViews(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: views %q is not a number", ErrInvalidRecord, s)
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("%w: views %q is not an integer", ErrInvalidRecord, s)
	}
	return int64(f), nil
}
