// Package dataset provides loaders for the historical video dataset the
// view model is fitted on.
//
// Every loader implements Source and returns validated Records. Available
// sources:
//   - CSVSource: a delimited file with a header row
//   - HTTPSource: any JSON endpoint, fields picked out with gjson paths
//   - RedisSource: a Redis list of JSON-encoded records
//
// The dataset is read once at process start; sources do no caching.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/HatiCode/viewcast/pkg/features"
)

// ErrInvalidRecord is returned for rows that are structurally unusable
// (missing fields, negative views, non-numeric values).
var ErrInvalidRecord = errors.New("invalid record")

// Record is one row of training data: a video and the views it received.
type Record struct {
	features.Video
	Views int64 `json:"views"`
}

// Validate checks the fields that do not depend on category encoding.
// Category names are checked later by the encoder so that training and
// inference reject the same inputs.
func (r Record) Validate() error {
	if math.IsNaN(r.DurationSeconds) || math.IsInf(r.DurationSeconds, 0) || r.DurationSeconds <= 0 {
		return fmt.Errorf("%w: duration %v must be > 0", ErrInvalidRecord, r.DurationSeconds)
	}
	if r.Views < 0 {
		return fmt.Errorf("%w: views %d must be >= 0", ErrInvalidRecord, r.Views)
	}
	if r.Day == "" {
		return fmt.Errorf("%w: day is empty", ErrInvalidRecord)
	}
	return nil
}

// Source loads the full historical dataset.
//
// Load is called once during startup and should respect context
// cancellation and deadlines.
type Source interface {
	Load(ctx context.Context) ([]Record, error)

	// Name returns a short identifier, e.g. "csv", "http", "redis".
	Name() string
}

func validateAll(records []Record) error {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}
