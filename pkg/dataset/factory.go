package dataset

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// New creates a source based on kind and a generic configuration map.
//
// Supported kinds and keys:
//   - "csv":   path, comma
//   - "http":  url, headers (JSON object), durationPath, typePath,
//     platformPath, dayPath, viewsPath
//   - "redis": addr, password, db, key
//
// Returns error if kind is unknown or required fields are missing.
func New(kind string, config map[string]string) (Source, error) {
	switch kind {
	case "", "csv":
		return newCSV(config)
	case "http":
		return newHTTP(config)
	case "redis":
		return newRedis(config)
	default:
		return nil, fmt.Errorf("unknown dataset source: %s (must be csv, http, or redis)", kind)
	}
}

func newCSV(config map[string]string) (Source, error) {
	path := config["path"]
	if path == "" {
		return nil, fmt.Errorf("csv source requires 'path' config")
	}

	src := &CSVSource{Path: path}
	if comma := config["comma"]; comma != "" {
		r := []rune(comma)
		if len(r) != 1 {
			return nil, fmt.Errorf("csv source: 'comma' must be a single character, got %q", comma)
		}
		src.Comma = r[0]
	}
	return src, nil
}

func newHTTP(config map[string]string) (Source, error) {
	url := config["url"]
	if url == "" {
		return nil, fmt.Errorf("http source requires 'url' config")
	}

	var headers map[string]string
	if headersJSON := config["headers"]; headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
			return nil, fmt.Errorf("invalid 'headers' JSON: %w", err)
		}
	}

	return &HTTPSource{
		URL:          url,
		Headers:      headers,
		DurationPath: config["durationPath"],
		TypePath:     config["typePath"],
		PlatformPath: config["platformPath"],
		DayPath:      config["dayPath"],
		ViewsPath:    config["viewsPath"],
	}, nil
}

func newRedis(config map[string]string) (Source, error) {
	addr := config["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}

	db := 0
	if v := config["db"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid redis 'db': %w", err)
		}
		db = n
	}

	return NewRedisSource(addr, config["password"], db, config["key"])
}
