package httpx

import (
	"log/slog"
	"net/http"
)

// HealthHandlerWithCheck responds 200 OK while check returns nil and 503 with
// the check error otherwise.
func HealthHandlerWithCheck(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := check(); err != nil {
			WriteError(w, http.StatusServiceUnavailable, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	}
}
