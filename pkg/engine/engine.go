// Package engine implements the prediction-and-decision engine: it owns the
// view model fitted once at startup and turns candidate videos into view,
// revenue and record/skip estimates.
//
// The engine has two states. It starts Unfitted, where every prediction fails
// with ErrModelNotReady, and moves to Fitted after a single successful Fit.
// There is no way back and no refit. Once fitted the model is immutable and
// predictions may run from any number of goroutines without locking.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/HatiCode/viewcast/pkg/dataset"
	"github.com/HatiCode/viewcast/pkg/features"
	"github.com/HatiCode/viewcast/pkg/models"
)

var (
	// ErrModelNotReady is returned by predictions made before Fit succeeded.
	ErrModelNotReady = errors.New("model not ready")

	// ErrAlreadyFitted is returned by a second call to Fit.
	ErrAlreadyFitted = errors.New("model already fitted")

	// ErrInsufficientData is returned by Fit when the dataset cannot support
	// a least squares fit.
	ErrInsufficientData = models.ErrInsufficientData
)

// State is the engine lifecycle state.
type State int

const (
	Unfitted State = iota
	Fitted
)

func (s State) String() string {
	if s == Fitted {
		return "fitted"
	}
	return "unfitted"
}

// Result is the outcome of scoring one candidate video.
type Result struct {
	Video  features.Video
	Vector features.Vector

	// RawViews is the unconstrained model output before clamping.
	RawViews float64

	// Views is the estimate truncated toward zero.
	Views int64

	// Revenue is rounded to RevenueDecimals.
	Revenue decimal.Decimal

	Decision string
}

// Record reports whether the decision is DecisionRecord.
func (r Result) Record() bool {
	return r.Decision == DecisionRecord
}

// MarshalJSON renders revenue as a fixed two-decimal number.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		features.Video
		Views    int64       `json:"views"`
		Revenue  json.Number `json:"revenue"`
		Decision string      `json:"decision"`
	}{
		Video:    r.Video,
		Views:    r.Views,
		Revenue:  json.Number(r.Revenue.StringFixed(RevenueDecimals)),
		Decision: r.Decision,
	})
}

// Engine owns the fitted model and the monetization policy.
type Engine struct {
	encoder *features.Encoder
	policy  Policy
	logger  *slog.Logger

	fitMu sync.Mutex
	model atomic.Pointer[models.Linear]
}

// New creates an unfitted engine. A nil encoder means the permissive default.
func New(encoder *features.Encoder, policy Policy, logger *slog.Logger) *Engine {
	if encoder == nil {
		encoder = features.NewEncoder(false)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		encoder: encoder,
		policy:  policy,
		logger:  logger,
	}
}

// Fit encodes every record through the engine's encoder and fits the view
// model on (duration, type, platform, weekday) → views.
//
// Fit succeeds at most once. Afterwards it returns ErrAlreadyFitted.
func (e *Engine) Fit(records []dataset.Record) error {
	e.fitMu.Lock()
	defer e.fitMu.Unlock()

	if e.model.Load() != nil {
		return ErrAlreadyFitted
	}

	if need := models.MinSamples(features.NumFeatures); len(records) < need {
		return fmt.Errorf("%w: %d records, need at least %d", ErrInsufficientData, len(records), need)
	}

	x := make([][]float64, len(records))
	y := make([]float64, len(records))
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("training record %d: %w", i, err)
		}
		vec, err := e.encoder.Encode(rec.Video)
		if err != nil {
			return fmt.Errorf("training record %d: %w", i, err)
		}
		x[i] = vec.Values()
		y[i] = float64(rec.Views)
	}

	model, err := models.FitLinear(x, y)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	e.model.Store(model)

	e.logger.Info("view model fitted",
		"records", model.Samples,
		"rank", model.Rank,
		"r2", model.R2,
		"intercept", model.Intercept,
		"weights", model.Weights,
	)
	return nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	if e.model.Load() == nil {
		return Unfitted
	}
	return Fitted
}

// Ready reports whether predictions can be served.
func (e *Engine) Ready() bool {
	return e.State() == Fitted
}

// Model returns the fitted model. The returned value must not be modified.
func (e *Engine) Model() (*models.Linear, error) {
	m := e.model.Load()
	if m == nil {
		return nil, ErrModelNotReady
	}
	return m, nil
}

// Policy returns the monetization policy in effect.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Predict scores one candidate video. It has no side effects: the same
// candidate always yields the same Result for a given fitted model.
func (e *Engine) Predict(v features.Video) (Result, error) {
	m := e.model.Load()
	if m == nil {
		return Result{}, ErrModelNotReady
	}

	vec, err := e.encoder.Encode(v)
	if err != nil {
		return Result{}, err
	}

	res := Score(m, e.policy, vec)
	res.Video = v
	return res, nil
}

// PredictBatch scores candidates concurrently and returns results in input
// order. The first failure cancels the remaining work and is returned.
func (e *Engine) PredictBatch(ctx context.Context, videos []features.Video) ([]Result, error) {
	if !e.Ready() {
		return nil, ErrModelNotReady
	}

	results := make([]Result, len(videos))
	g, ctx := errgroup.WithContext(ctx)
	for i, v := range videos {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.Predict(v)
			if err != nil {
				return fmt.Errorf("candidate %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Score applies a fitted model and a policy to an encoded vector. It is the
// pure core of Predict and leaves Result.Video empty.
func Score(m *models.Linear, p Policy, vec features.Vector) Result {
	raw := m.Predict(vec.Values())

	views := raw
	if p.ClampNegative && views < 0 {
		views = 0
	}

	revenue := p.RawRevenue(views, vec.Platform)

	return Result{
		Vector:   vec,
		RawViews: raw,
		Views:    int64(views),
		Revenue:  revenue.Round(RevenueDecimals),
		Decision: p.Decide(revenue),
	}
}
