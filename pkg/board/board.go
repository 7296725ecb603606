// Package board generates the batches of scored candidate videos shown on
// the video idea board.
//
// A Board pulls candidates from a candidates.Source, scores them through the
// prediction engine and returns a Batch:
//
//	source.Next → engine.PredictBatch → Batch
//
// Batches are never stored; every request gets a fresh one.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/HatiCode/viewcast/pkg/candidates"
	"github.com/HatiCode/viewcast/pkg/engine"
	"github.com/HatiCode/viewcast/pkg/features"
)

// DefaultBatchSize is the number of candidates per batch.
const DefaultBatchSize = 20

// MaxBatchSize caps caller-requested batch sizes.
const MaxBatchSize = 100

// Predictor scores candidate videos.
type Predictor interface {
	PredictBatch(ctx context.Context, videos []features.Video) ([]engine.Result, error)
}

// Recorder receives board instrumentation. Implemented by the service metrics.
type Recorder interface {
	ObserveBatch(size int, seconds float64)
	RecordPrediction(platform, decision string)
	RecordError(component, reason string)
}

// Batch is one scored set of candidates.
type Batch struct {
	ID          string          `json:"id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Results     []engine.Result `json:"results"`
}

// Recommended counts results with DecisionRecord.
func (b Batch) Recommended() int {
	n := 0
	for _, r := range b.Results {
		if r.Record() {
			n++
		}
	}
	return n
}

// Board scores batches of candidates.
type Board struct {
	predictor Predictor
	source    candidates.Source
	batchSize int
	logger    *slog.Logger
	metrics   Recorder
}

// New creates a Board. batchSize <= 0 uses DefaultBatchSize; metrics may be nil.
func New(predictor Predictor, source candidates.Source, batchSize int, logger *slog.Logger, metrics Recorder) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Board{
		predictor: predictor,
		source:    source,
		batchSize: batchSize,
		logger:    logger,
		metrics:   metrics,
	}
}

// BatchSize returns the default number of candidates per batch.
func (b *Board) BatchSize() int {
	return b.batchSize
}

// Generate draws n candidates (the board default when n <= 0) and scores them.
func (b *Board) Generate(ctx context.Context, n int) (Batch, error) {
	start := time.Now()

	if n <= 0 {
		n = b.batchSize
	}
	if n > MaxBatchSize {
		return Batch{}, fmt.Errorf("batch size %d exceeds maximum %d", n, MaxBatchSize)
	}

	videos, err := b.source.Next(ctx, n)
	if err != nil {
		b.recordError("candidates", "next_failed")
		return Batch{}, fmt.Errorf("candidates: %w", err)
	}

	results, err := b.predictor.PredictBatch(ctx, videos)
	if err != nil {
		b.recordError("engine", "predict_failed")
		return Batch{}, fmt.Errorf("predict: %w", err)
	}

	batch := Batch{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Results:     results,
	}

	duration := time.Since(start)
	if b.metrics != nil {
		b.metrics.ObserveBatch(len(results), duration.Seconds())
		for _, r := range results {
			b.metrics.RecordPrediction(PlatformLabel(r.Vector.Platform), r.Decision)
		}
	}

	b.logger.Debug("generated batch",
		"batch_id", batch.ID,
		"candidates", len(results),
		"recommended", batch.Recommended(),
		"duration_ms", duration.Milliseconds(),
	)

	return batch, nil
}

func (b *Board) recordError(component, reason string) {
	if b.metrics != nil {
		b.metrics.RecordError(component, reason)
	}
}

// PlatformLabel is the metric label for an encoded platform.
func PlatformLabel(code int) string {
	if code == features.PlatformTikTok {
		return "tiktok"
	}
	return "youtube"
}
