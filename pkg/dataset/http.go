package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// HTTPSource fetches the dataset from a JSON endpoint and extracts each
// column with a gjson path. All paths must yield arrays of equal length.
//
// Example configuration for a response shaped like
// {"records":[{"duration_seconds":120,"type":"short",...}]}:
//
//	src := &HTTPSource{
//	    URL:          "https://data.example.com/videos",
//	    DurationPath: "records.#.duration_seconds",
//	    TypePath:     "records.#.type",
//	    PlatformPath: "records.#.platform",
//	    DayPath:      "records.#.day",
//	    ViewsPath:    "records.#.views",
//	}
//
// Empty paths default to the layout above.
type HTTPSource struct {
	// URL is the endpoint to call (required).
	URL string

	// Headers are added to the GET request, e.g. Authorization.
	Headers map[string]string

	DurationPath string
	TypePath     string
	PlatformPath string
	DayPath      string
	ViewsPath    string

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

const (
	defaultDurationPath = "records.#.duration_seconds"
	defaultTypePath     = "records.#.type"
	defaultPlatformPath = "records.#.platform"
	defaultDayPath      = "records.#.day"
	defaultViewsPath    = "records.#.views"
)

func (h *HTTPSource) Name() string { return "http" }

// Load implements Source.
func (h *HTTPSource) Load(ctx context.Context) ([]Record, error) {
	if h.URL == "" {
		return nil, errors.New("http source: URL is required")
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("http source: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http source: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http source: status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http source: read response: %w", err)
	}

	records, err := h.extract(body)
	if err != nil {
		return nil, fmt.Errorf("http source: %w", err)
	}
	if err := validateAll(records); err != nil {
		return nil, fmt.Errorf("http source: %w", err)
	}
	return records, nil
}

func (h *HTTPSource) extract(body []byte) ([]Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("response is not valid JSON")
	}

	paths := []string{
		orDefault(h.DurationPath, defaultDurationPath),
		orDefault(h.TypePath, defaultTypePath),
		orDefault(h.PlatformPath, defaultPlatformPath),
		orDefault(h.DayPath, defaultDayPath),
		orDefault(h.ViewsPath, defaultViewsPath),
	}

	results := gjson.GetManyBytes(body, paths...)
	columns := make([][]gjson.Result, len(results))
	for i, res := range results {
		if !res.Exists() {
			return nil, fmt.Errorf("path %q not found in response", paths[i])
		}
		columns[i] = res.Array()
		if len(columns[i]) != len(columns[0]) {
			return nil, fmt.Errorf("path %q has %d values, want %d", paths[i], len(columns[i]), len(columns[0]))
		}
	}

	records := make([]Record, len(columns[0]))
	for i := range records {
		views := columns[4][i]
		if views.Type != gjson.Number {
			return nil, fmt.Errorf("record %d: %w: views %q is not a number", i, ErrInvalidRecord, views.Raw)
		}
		n, err := parseViews(views.Raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		duration := columns[0][i]
		if duration.Type != gjson.Number {
			return nil, fmt.Errorf("record %d: %w: duration %q is not a number", i, ErrInvalidRecord, duration.Raw)
		}

		records[i].DurationSeconds = duration.Float()
		records[i].Type = columns[1][i].String()
		records[i].Platform = columns[2][i].String()
		records[i].Day = columns[3][i].String()
		records[i].Views = n
	}
	return records, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
