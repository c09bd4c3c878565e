package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kaosmaps/kaos-worker/internal/fetch"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeError(w, http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// unavailable is the worker-owned-key miss response.
func unavailable(w http.ResponseWriter, feed string) {
	writeError(w, http.StatusServiceUnavailable, feed+" data unavailable - worker may not be running")
}

// upstreamStatus maps a fetch error kind to the client-facing status.
func upstreamStatus(err error) int {
	switch fetch.KindOf(err) {
	case fetch.KindTimeout:
		return http.StatusGatewayTimeout
	case fetch.KindNetwork:
		return http.StatusBadGateway
	case fetch.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
