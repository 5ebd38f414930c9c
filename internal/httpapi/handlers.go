package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"meli-inventory-sync/internal/adapters/spreadsheet"
	"meli-inventory-sync/internal/app/usecases"
	"meli-inventory-sync/internal/config"
	"meli-inventory-sync/internal/domain/model"
	"meli-inventory-sync/internal/history"
)

// HistoryReader is the part of the history store the API reads.
type HistoryReader interface {
	ListSnapshots(ctx context.Context) ([]history.Snapshot, error)
	LatestSnapshot(ctx context.Context) (history.Snapshot, error)
	LoadSnapshot(snap history.Snapshot) ([]model.ListingRecord, error)
	ListRuns(ctx context.Context, limit int) ([]history.RunRecord, error)
}

const runsPageSize = 50

type App struct {
	Cfg     config.Config
	Runner  *usecases.Runner
	Extract usecases.ExtractInventoryService
	Sync    usecases.SyncStockService
	History HistoryReader
	Log     *slog.Logger
	started time.Time
}

func NewApp(cfg config.Config, runner *usecases.Runner, extract usecases.ExtractInventoryService, sync usecases.SyncStockService, store HistoryReader, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{
		Cfg:     cfg,
		Runner:  runner,
		Extract: extract,
		Sync:    sync,
		History: store,
		Log:     log,
		started: time.Now(),
	}
}

const (
	formSupplier  = "supplier"
	formInventory = "inventory"
)

type startedResponse struct {
	Status    string           `json:"status"`
	Kind      usecases.JobKind `json:"kind"`
	RequestID string           `json:"request_id"`
}

type changeRow struct {
	ItemID      string `json:"item_id"`
	VariationID *int64 `json:"variation_id,omitempty"`
	SKU         string `json:"sku"`
	Title       string `json:"title"`
	Stock       int    `json:"stock"`
	NewStock    int    `json:"new_stock"`
}

// unresolvedRow is a listing unit that has no SKU and so cannot be matched.
type unresolvedRow struct {
	ItemID      string `json:"item_id"`
	VariationID *int64 `json:"variation_id,omitempty"`
	Title       string `json:"title"`
	Status      string `json:"status"`
}

func unresolvedRows(records []model.ListingRecord) []unresolvedRow {
	rows := make([]unresolvedRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, unresolvedRow{ItemID: r.ItemID, VariationID: r.VariationID, Title: r.Title, Status: r.Status})
	}
	return rows
}

type extractReport struct {
	Units      int             `json:"units"`
	SnapshotID string          `json:"snapshot_id,omitempty"`
	Unresolved []unresolvedRow `json:"unresolved"`
	Skipped    []string        `json:"skipped"`
}

type previewResponse struct {
	Units           int             `json:"units"`
	ChangedUnits    int             `json:"changed_units"`
	ChangedItems    int             `json:"changed_items"`
	UnchangedUnits  int             `json:"unchanged_units"`
	MatchedUnits    int             `json:"matched_units"`
	UnresolvedSKUs  int             `json:"unresolved_skus"`
	MalformedRows   int             `json:"malformed_rows"`
	DuplicateKeys   int             `json:"duplicate_keys"`
	PauseCandidates []string        `json:"pause_candidates"`
	Unresolved      []unresolvedRow `json:"unresolved"`
	Changes         []changeRow     `json:"changes"`
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(a.started).Seconds()),
	})
}

func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, a.Runner.Current())
}

func (a *App) extractHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	err := a.Runner.Start(usecases.JobExtract, func(ctx context.Context, progress *usecases.Progress) error {
		result, err := a.Extract.Run(ctx, progress)
		a.Runner.SetLastExtract(result)
		return err
	})
	a.writeStarted(w, r, usecases.JobExtract, err)
}

func (a *App) extractResultHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	result, ok := a.Runner.LastExtract()
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "not_found", "no extraction result")
		return
	}
	report := extractReport{
		Units:      len(result.Records),
		Unresolved: unresolvedRows(result.UnresolvedSKU),
		Skipped:    result.Skipped,
	}
	if report.Skipped == nil {
		report.Skipped = []string{}
	}
	if result.Snapshot != nil {
		report.SnapshotID = result.Snapshot.ID
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *App) previewHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	rec, ok := a.reconcileUpload(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="reconciled.xlsx"`)
		if err := spreadsheet.WriteReconciled(w, rec.Records); err != nil {
			a.Log.Error("preview_export_failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		}
		return
	}

	resp := previewResponse{
		Units:           len(rec.Records),
		ChangedUnits:    rec.ChangedUnits,
		ChangedItems:    rec.ChangedItems,
		UnchangedUnits:  rec.UnchangedUnits,
		MatchedUnits:    rec.MatchedUnits,
		UnresolvedSKUs:  len(rec.UnresolvedSKU),
		MalformedRows:   rec.MalformedRows,
		DuplicateKeys:   rec.DuplicateKeys,
		PauseCandidates: rec.PauseCandidates,
		Unresolved:      unresolvedRows(rec.UnresolvedSKU),
		Changes:         make([]changeRow, 0, rec.ChangedUnits),
	}
	if resp.PauseCandidates == nil {
		resp.PauseCandidates = []string{}
	}
	for _, c := range rec.Changed() {
		resp.Changes = append(resp.Changes, changeRow{
			ItemID:      c.ItemID,
			VariationID: c.VariationID,
			SKU:         c.SKU,
			Title:       c.Title,
			Stock:       c.Stock,
			NewStock:    c.NewStock,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) syncHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if a.Runner.Running() {
		WriteJSONError(w, http.StatusConflict, "run_in_progress", "")
		return
	}
	rec, ok := a.reconcileUpload(w, r)
	if !ok {
		return
	}
	err := a.Runner.Start(usecases.JobSync, func(ctx context.Context, progress *usecases.Progress) error {
		result, err := a.Sync.Run(ctx, progress, rec)
		a.Runner.SetLastResult(result)
		return err
	})
	a.writeStarted(w, r, usecases.JobSync, err)
}

func (a *App) cancelHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if !a.Runner.Cancel() {
		WriteJSONError(w, http.StatusConflict, "no_run_in_progress", "")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"cancel_requested": true})
}

func (a *App) resultHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		result, ok := a.Runner.LastResult()
		if !ok {
			WriteJSONError(w, http.StatusNotFound, "not_found", "no sync result")
			return
		}
		writeJSON(w, http.StatusOK, result)
	case http.MethodDelete:
		a.Runner.ClearLastResult()
		w.WriteHeader(http.StatusNoContent)
	default:
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

func (a *App) resultLogHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	result, ok := a.Runner.LastResult()
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "not_found", "no sync result")
		return
	}
	stamp := result.FinishedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="sync_%s.log"`, stamp.UTC().Format("20060102_150405")))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, result.Text())
}

func (a *App) snapshotsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	snapshots, err := a.History.ListSnapshots(r.Context())
	if err != nil {
		a.Log.Error("snapshot_list_failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		WriteJSONError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	if snapshots == nil {
		snapshots = []history.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (a *App) runsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	runs, err := a.History.ListRuns(r.Context(), runsPageSize)
	if err != nil {
		a.Log.Error("run_list_failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		WriteJSONError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	if runs == nil {
		runs = []history.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *App) latestSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	snap, err := a.History.LatestSnapshot(r.Context())
	if errors.Is(err, history.ErrNotFound) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "no inventory snapshot")
		return
	}
	if err != nil {
		a.Log.Error("snapshot_lookup_failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		WriteJSONError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	f, err := os.Open(snap.Path)
	if err != nil {
		WriteJSONError(w, http.StatusNotFound, "not_found", "snapshot file missing")
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(snap.Path)))
	http.ServeContent(w, r, filepath.Base(snap.Path), snap.CreatedAt, f)
}

// reconcileUpload reads the supplier workbook (and an optional inventory
// workbook, else the latest snapshot) and reconciles them. It writes the
// error response itself and reports false on failure.
func (a *App) reconcileUpload(w http.ResponseWriter, r *http.Request) (usecases.Reconciliation, bool) {
	maxBytes := a.Cfg.HTTP.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return usecases.Reconciliation{}, false
	}

	supplierFile, _, err := r.FormFile(formSupplier)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_upload", "supplier file is required")
		return usecases.Reconciliation{}, false
	}
	defer supplierFile.Close()

	rows, err := spreadsheet.ReadSupplierStock(supplierFile)
	if err != nil {
		writeFileError(w, err)
		return usecases.Reconciliation{}, false
	}

	listings, ok := a.loadListings(w, r)
	if !ok {
		return usecases.Reconciliation{}, false
	}

	rec := usecases.Reconcile(listings, rows, usecases.ReconcileOptions{SafetyFloor: a.Cfg.Sync.SafetyFloor})
	return rec, true
}

func (a *App) loadListings(w http.ResponseWriter, r *http.Request) ([]model.ListingRecord, bool) {
	if inventoryFile, _, err := r.FormFile(formInventory); err == nil {
		defer inventoryFile.Close()
		listings, err := spreadsheet.ReadInventory(inventoryFile)
		if err != nil {
			writeFileError(w, err)
			return nil, false
		}
		return listings, true
	}

	snap, err := a.History.LatestSnapshot(r.Context())
	if errors.Is(err, history.ErrNotFound) {
		WriteJSONError(w, http.StatusConflict, "no_inventory", "run an extraction or upload an inventory file first")
		return nil, false
	}
	if err != nil {
		a.Log.Error("snapshot_lookup_failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		WriteJSONError(w, http.StatusInternalServerError, "internal_error", "")
		return nil, false
	}
	listings, err := a.History.LoadSnapshot(snap)
	if err != nil {
		a.Log.Error("snapshot_load_failed", "error", err, "snapshot", snap.ID, "request_id", RequestIDFromContext(r.Context()))
		WriteJSONError(w, http.StatusInternalServerError, "internal_error", "")
		return nil, false
	}
	return listings, true
}

func (a *App) writeStarted(w http.ResponseWriter, r *http.Request, kind usecases.JobKind, err error) {
	if errors.Is(err, usecases.ErrRunInProgress) {
		WriteJSONError(w, http.StatusConflict, "run_in_progress", "")
		return
	}
	if err != nil {
		WriteJSONError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	reqID := RequestIDFromContext(r.Context())
	a.Log.Info("run_started", "kind", kind, "request_id", reqID)
	writeJSON(w, http.StatusAccepted, startedResponse{Status: "started", Kind: kind, RequestID: reqID})
}

func writeFileError(w http.ResponseWriter, err error) {
	var missing *spreadsheet.MissingColumnsError
	if errors.As(err, &missing) {
		WriteJSONError(w, http.StatusBadRequest, "missing_columns", missing.Error())
		return
	}
	WriteJSONError(w, http.StatusBadRequest, "invalid_file", err.Error())
}
