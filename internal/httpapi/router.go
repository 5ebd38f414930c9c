package httpapi

import (
	"net/http"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", app.healthHandler)
	mux.HandleFunc("/status", app.statusHandler)
	mux.HandleFunc("/extract", app.extractHandler)
	mux.HandleFunc("/extract/result", app.extractResultHandler)
	mux.HandleFunc("/preview", app.previewHandler)
	mux.HandleFunc("/sync", app.syncHandler)
	mux.HandleFunc("/cancel", app.cancelHandler)
	mux.HandleFunc("/result", app.resultHandler)
	mux.HandleFunc("/result/log", app.resultLogHandler)
	mux.HandleFunc("/snapshots", app.snapshotsHandler)
	mux.HandleFunc("/snapshots/latest", app.latestSnapshotHandler)
	mux.HandleFunc("/runs", app.runsHandler)
	return WithRequestID(WithLogging(app.Log, mux))
}
