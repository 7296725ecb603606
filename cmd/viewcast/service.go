package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/HatiCode/viewcast/cmd/viewcast/metrics"
	"github.com/HatiCode/viewcast/pkg/dataset"
	"github.com/HatiCode/viewcast/pkg/engine"
)

// loadTimeout bounds reading the training dataset at startup.
const loadTimeout = 30 * time.Second

// fitFromSource loads the dataset described by kind and opts and fits eng on
// it. Any failure here is fatal for the service.
func fitFromSource(ctx context.Context, eng *engine.Engine, kind string, opts map[string]string, m *metrics.Metrics, logger *slog.Logger) error {
	src, err := dataset.New(kind, opts)
	if err != nil {
		return fmt.Errorf("create dataset source: %w", err)
	}
	if closer, ok := src.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Error("failed to close dataset source", "error", err)
			}
		}()
	}

	loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	records, err := src.Load(loadCtx)
	if err != nil {
		m.RecordError("dataset", "load_failed")
		return fmt.Errorf("load dataset from %s: %w", src.Name(), err)
	}
	logger.Info("dataset loaded", "source", src.Name(), "records", len(records))

	start := time.Now()
	if err := eng.Fit(records); err != nil {
		m.RecordError("engine", "fit_failed")
		return err
	}
	m.RecordFit(time.Since(start).Seconds(), len(records))

	return nil
}
