package router

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/HatiCode/viewcast/cmd/viewcast/metrics"
	"github.com/HatiCode/viewcast/pkg/board"
	"github.com/HatiCode/viewcast/pkg/candidates"
	"github.com/HatiCode/viewcast/pkg/dataset"
	"github.com/HatiCode/viewcast/pkg/engine"
	"github.com/HatiCode/viewcast/pkg/features"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// trainingRecords follow views = 50 × duration across varied attributes.
func trainingRecords() []dataset.Record {
	types := []string{"short", "long"}
	platforms := []string{"TikTok", "YouTube"}
	var recs []dataset.Record
	for i := range 21 {
		d := float64(20 + 29*i)
		recs = append(recs, dataset.Record{
			Video: features.Video{DurationSeconds: d, Type: types[i%2], Platform: platforms[(i/2)%2], Day: features.Weekdays[i%7]},
			Views: int64(50 * d),
		})
	}
	return recs
}

type fixture struct {
	handler http.Handler
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, fitted bool, locale string) fixture {
	t.Helper()
	logger := discardLogger()

	eng := engine.New(nil, engine.DefaultPolicy(), logger)
	if fitted {
		if err := eng.Fit(trainingRecords()); err != nil {
			t.Fatalf("Fit() error = %v", err)
		}
	}

	page, err := board.NewPage(locale)
	if err != nil {
		t.Fatalf("NewPage() error = %v", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	b := board.New(eng, candidates.NewRandom(11), 5, logger, m)

	return fixture{
		handler: SetupRoutes(Deps{
			Engine:   eng,
			Board:    b,
			Page:     page,
			Metrics:  m,
			Gatherer: reg,
			Logger:   logger,
		}),
		metrics: m,
	}
}

func (f fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	if w := newFixture(t, false, "en").do(http.MethodGet, "/healthz", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("unfitted status = %d, want 503", w.Code)
	}

	w := newFixture(t, true, "en").do(http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Errorf("fitted status = %d, want 200", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", w.Body.String())
	}
}

func TestBoardPage(t *testing.T) {
	w := newFixture(t, true, "es").do(http.MethodGet, "/", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Tablero de Ideas de Video Simuladas") {
		t.Error("missing localized heading")
	}
	if got := strings.Count(body, "<tr class="); got != 5 {
		t.Errorf("rows = %d, want 5", got)
	}
}

func TestBoardPage_NotReady(t *testing.T) {
	w := newFixture(t, false, "en").do(http.MethodGet, "/", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestAboutPage(t *testing.T) {
	w := newFixture(t, false, "en").do(http.MethodGet, "/about", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "About the video idea board") {
		t.Error("missing about title")
	}
}

func TestUnknownPath(t *testing.T) {
	w := newFixture(t, true, "en").do(http.MethodGet, "/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestBoardAPI(t *testing.T) {
	f := newFixture(t, true, "en")

	w := f.do(http.MethodGet, "/api/v1/board?n=7", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var batch struct {
		ID      string `json:"id"`
		Results []struct {
			DurationSeconds float64 `json:"duration_seconds"`
			Platform        string  `json:"platform"`
			Views           int64   `json:"views"`
			Revenue         float64 `json:"revenue"`
			Decision        string  `json:"decision"`
		} `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&batch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if batch.ID == "" {
		t.Error("missing batch id")
	}
	if len(batch.Results) != 7 {
		t.Fatalf("results = %d, want 7", len(batch.Results))
	}
	for i, r := range batch.Results {
		if r.Decision != engine.DecisionRecord && r.Decision != engine.DecisionSkip {
			t.Errorf("result %d: decision %q", i, r.Decision)
		}
	}

	if got := testutil.CollectAndCount(f.metrics.PredictionsTotal); got == 0 {
		t.Error("no predictions recorded")
	}

	if w := f.do(http.MethodGet, "/api/v1/board", ""); w.Code != http.StatusOK {
		t.Errorf("default n status = %d", w.Code)
	}
}

func TestBoardAPI_InvalidN(t *testing.T) {
	f := newFixture(t, true, "en")
	for _, q := range []string{"0", "101", "-3", "ten"} {
		if w := f.do(http.MethodGet, "/api/v1/board?n="+q, ""); w.Code != http.StatusBadRequest {
			t.Errorf("n=%s status = %d, want 400", q, w.Code)
		}
	}
}

func TestPredictAPI(t *testing.T) {
	f := newFixture(t, true, "en")

	w := f.do(http.MethodPost, "/api/v1/predict",
		`{"duration_seconds":600,"type":"long","platform":"YouTube","day":"friday"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["decision"] != engine.DecisionRecord {
		t.Errorf("decision = %v, want RECORD", got["decision"])
	}
	if rev, _ := got["revenue"].(float64); rev < 59.9 || rev > 60.1 {
		t.Errorf("revenue = %v, want about 60", got["revenue"])
	}
	if v := testutil.ToFloat64(f.metrics.PredictionsTotal.WithLabelValues("youtube", engine.DecisionRecord)); v != 1 {
		t.Errorf("predictions{youtube,RECORD} = %v, want 1", v)
	}
}

func TestPredictAPI_Errors(t *testing.T) {
	tests := []struct {
		name   string
		fitted bool
		body   string
		want   int
	}{
		{"unknown day", true, `{"duration_seconds":60,"type":"short","platform":"TikTok","day":"funday"}`, http.StatusBadRequest},
		{"zero duration", true, `{"duration_seconds":0,"type":"short","platform":"TikTok","day":"monday"}`, http.StatusBadRequest},
		{"unknown field", true, `{"duration":60}`, http.StatusBadRequest},
		{"malformed", true, `{`, http.StatusBadRequest},
		{"not ready", false, `{"duration_seconds":60,"type":"short","platform":"TikTok","day":"monday"}`, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newFixture(t, tt.fitted, "en").do(http.MethodPost, "/api/v1/predict", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
			var resp map[string]string
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil || resp["error"] == "" {
				t.Errorf("expected JSON error body, got %v (%v)", resp, err)
			}
		})
	}
}

func TestPredictAPI_MethodNotAllowed(t *testing.T) {
	w := newFixture(t, true, "en").do(http.MethodGet, "/api/v1/predict", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestModelAPI(t *testing.T) {
	if w := newFixture(t, false, "en").do(http.MethodGet, "/api/v1/model", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("unfitted status = %d, want 503", w.Code)
	}

	w := newFixture(t, true, "en").do(http.MethodGet, "/api/v1/model", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp ModelResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.State != "fitted" || resp.Samples != 21 {
		t.Errorf("state=%q samples=%d", resp.State, resp.Samples)
	}
	if d := resp.Weights["duration_seconds"]; d < 49.99 || d > 50.01 {
		t.Errorf("duration weight = %v, want 50", d)
	}
	if resp.Policy.CPMYouTube != engine.DefaultCPMYouTube || !resp.Policy.ClampNegative {
		t.Errorf("policy = %+v", resp.Policy)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, true, "en")
	f.metrics.RecordFit(0.01, 21)

	w := f.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "viewcast_model_ready 1") {
		t.Error("viewcast_model_ready not exposed")
	}
}
