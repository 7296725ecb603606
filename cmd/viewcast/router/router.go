// Package router configures the HTTP routes of the board service.
//
// Routes configured:
//   - GET  /                 - HTML board with a fresh batch of scored ideas
//   - GET  /about            - HTML page describing the tool
//   - GET  /api/v1/board?n=N - the same batch as JSON (1 <= N <= 100)
//   - POST /api/v1/predict   - score one JSON video
//   - GET  /api/v1/model     - fitted coefficients and the policy in effect
//   - GET  /healthz          - 200 once the model is fitted, 503 before
//   - GET  /metrics          - Prometheus metrics
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/viewcast/pkg/board"
	"github.com/HatiCode/viewcast/pkg/engine"
	"github.com/HatiCode/viewcast/pkg/features"
	"github.com/HatiCode/viewcast/pkg/httpx"
)

// maxBodyBytes caps POST bodies; a single video is well under 1 KiB.
const maxBodyBytes = 64 << 10

// Recorder receives per-request instrumentation.
type Recorder interface {
	RecordPrediction(platform, decision string)
	RecordError(component, reason string)
}

// Deps are the collaborators the routes serve from.
type Deps struct {
	Engine   *engine.Engine
	Board    *board.Board
	Page     *board.Page
	Metrics  Recorder
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// SetupRoutes returns the service handler wrapped in logging and panic
// recovery middleware.
func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", handleBoardPage(d))
	mux.HandleFunc("GET /about", handleAboutPage(d))
	mux.HandleFunc("GET /api/v1/board", handleBoard(d))
	mux.HandleFunc("POST /api/v1/predict", handlePredict(d))
	mux.HandleFunc("GET /api/v1/model", handleModel(d))

	mux.Handle("GET /healthz", httpx.HealthHandlerWithCheck(func() error {
		if !d.Engine.Ready() {
			return engine.ErrModelNotReady
		}
		return nil
	}))
	mux.Handle("GET /metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	return httpx.Chain(mux,
		httpx.LoggingMiddleware(d.Logger),
		httpx.RecoveryMiddleware(d.Logger),
	)
}

func handleBoardPage(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batch, err := d.Board.Generate(r.Context(), 0)
		if err != nil {
			writeEngineError(w, d.Logger, err)
			return
		}

		if err := httpx.WriteHTML(w, http.StatusOK, func(out io.Writer) error {
			return d.Page.RenderBoard(out, batch)
		}); err != nil {
			d.Logger.Error("failed to render board page", "error", err)
		}
	}
}

func handleAboutPage(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := httpx.WriteHTML(w, http.StatusOK, d.Page.RenderAbout); err != nil {
			d.Logger.Error("failed to render about page", "error", err)
		}
	}
}

func handleBoard(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := 0
		if raw := r.URL.Query().Get("n"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 1 || v > board.MaxBatchSize {
				httpx.WriteErrorMessage(w, http.StatusBadRequest,
					fmt.Sprintf("n must be an integer between 1 and %d", board.MaxBatchSize))
				return
			}
			n = v
		}

		batch, err := d.Board.Generate(r.Context(), n)
		if err != nil {
			writeEngineError(w, d.Logger, err)
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, batch); err != nil {
			d.Logger.Error("failed to write JSON response", "error", err)
		}
	}
}

func handlePredict(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var video features.Video
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&video); err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		res, err := d.Engine.Predict(video)
		if err != nil {
			if d.Metrics != nil && features.IsInvalidInput(err) {
				d.Metrics.RecordError("engine", "invalid_input")
			}
			writeEngineError(w, d.Logger, err)
			return
		}

		if d.Metrics != nil {
			d.Metrics.RecordPrediction(board.PlatformLabel(res.Vector.Platform), res.Decision)
		}

		if err := httpx.WriteJSON(w, http.StatusOK, res); err != nil {
			d.Logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// ModelResponse describes the fitted model and the policy applied to it.
type ModelResponse struct {
	State     string             `json:"state"`
	Intercept float64            `json:"intercept"`
	Weights   map[string]float64 `json:"weights"`
	Rank      int                `json:"rank"`
	Samples   int                `json:"samples"`
	R2        float64            `json:"r2"`
	Policy    PolicyResponse     `json:"policy"`
}

// PolicyResponse is the JSON form of engine.Policy.
type PolicyResponse struct {
	CPMYouTube    float64 `json:"cpm_youtube"`
	CPMTikTok     float64 `json:"cpm_tiktok"`
	Threshold     float64 `json:"threshold"`
	ClampNegative bool    `json:"clamp_negative"`
}

func handleModel(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := d.Engine.Model()
		if err != nil {
			writeEngineError(w, d.Logger, err)
			return
		}

		weights := make(map[string]float64, len(m.Weights))
		for i, wt := range m.Weights {
			weights[features.Columns[i]] = wt
		}
		p := d.Engine.Policy()

		resp := ModelResponse{
			State:     d.Engine.State().String(),
			Intercept: m.Intercept,
			Weights:   weights,
			Rank:      m.Rank,
			Samples:   m.Samples,
			R2:        m.R2,
			Policy: PolicyResponse{
				CPMYouTube:    p.CPMYouTube,
				CPMTikTok:     p.CPMTikTok,
				Threshold:     p.Threshold,
				ClampNegative: p.ClampNegative,
			},
		}

		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			d.Logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// writeEngineError maps engine and encoder errors to HTTP statuses.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case features.IsInvalidInput(err):
		httpx.WriteError(w, http.StatusBadRequest, err)
	case errors.Is(err, engine.ErrModelNotReady):
		httpx.WriteError(w, http.StatusServiceUnavailable, err)
	default:
		logger.Error("request failed", "error", err)
		httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
