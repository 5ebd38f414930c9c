package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"meli-inventory-sync/internal/adapters/mercadolibre"
	"meli-inventory-sync/internal/adapters/mercadolibre/dto"
	"meli-inventory-sync/internal/config"
	"meli-inventory-sync/internal/domain/model"
	"meli-inventory-sync/internal/history"
)

type updateCall struct {
	itemID  string
	payload dto.StockUpdate
}

type fakeStockClient struct {
	mu        sync.Mutex
	updates   []updateCall
	pauses    []string
	updateErr map[string]error
	pauseErr  map[string]error
	onUpdate  func(calls int)
}

func (f *fakeStockClient) ApplyStockUpdate(_ context.Context, itemID string, update dto.StockUpdate) error {
	f.mu.Lock()
	f.updates = append(f.updates, updateCall{itemID: itemID, payload: update})
	calls := len(f.updates)
	err := f.updateErr[itemID]
	hook := f.onUpdate
	f.mu.Unlock()
	if hook != nil {
		hook(calls)
	}
	return err
}

func (f *fakeStockClient) PauseListing(_ context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses = append(f.pauses, itemID)
	return f.pauseErr[itemID]
}

type fakeRunLog struct {
	saved []model.SyncResult
	err   error
}

func (f *fakeRunLog) SaveRunLog(_ context.Context, result model.SyncResult) (history.RunRecord, error) {
	f.saved = append(f.saved, result)
	return history.RunRecord{ID: result.RunID, LogPath: "sync.log"}, f.err
}

type countingPacer struct {
	waits int
	err   error
}

func (p *countingPacer) Wait(context.Context) error {
	p.waits++
	return p.err
}

func newTestSync(client StockUpdater, runs RunLogSaver, cfg config.SyncConfig) (*ClientSync, *countingPacer) {
	s := NewSyncStock(client, runs, cfg, nil)
	pacer := &countingPacer{}
	s.pacer = pacer
	return s, pacer
}

func statusErr(code int, body string) error {
	return &mercadolibre.StatusError{StatusCode: code, Status: fmt.Sprintf("%d", code), Body: body}
}

func TestSyncSendsFullVariationPayload(t *testing.T) {
	listings := []model.ListingRecord{
		{ItemID: "A", SKU: "A1", VariationID: variationID(1), Stock: 5},
		{ItemID: "A", SKU: "A2", VariationID: variationID(2), Stock: 6},
		{ItemID: "A", SKU: "A3", VariationID: variationID(3), Stock: 7},
		{ItemID: "B", SKU: "B", Stock: 4},
	}
	rows := []model.SupplierRow{supplier("A1", 5), supplier("A2", 10), supplier("A3", 7), supplier("B", 4)}
	rec := Reconcile(listings, rows, ReconcileOptions{SafetyFloor: 3})

	client := &fakeStockClient{}
	runs := &fakeRunLog{}
	s, _ := newTestSync(client, runs, config.SyncConfig{})

	result, err := s.Run(context.Background(), NewProgress(), rec)
	require.NoError(t, err)

	require.Len(t, client.updates, 1, "only the listing with a changed unit is updated")
	call := client.updates[0]
	assert.Equal(t, "A", call.itemID)
	require.Len(t, call.payload.Variations, 3)
	assert.Equal(t, []dto.VariationStock{
		{ID: 1, AvailableQuantity: 5},
		{ID: 2, AvailableQuantity: 10},
		{ID: 3, AvailableQuantity: 7},
	}, call.payload.Variations)

	assert.Equal(t, 3, result.Successes)
	assert.Equal(t, 0, result.Failures)
	assert.Equal(t, model.RunDone, result.Status)
	assert.NotEmpty(t, result.RunID)
	require.Len(t, runs.saved, 1)
	assert.Equal(t, result.RunID, runs.saved[0].RunID)
}

func TestSyncAccumulatesFailuresWithoutStopping(t *testing.T) {
	listings := []model.ListingRecord{
		{ItemID: "A", SKU: "A", Stock: 0},
		{ItemID: "B", SKU: "B1", VariationID: variationID(1), Stock: 0},
		{ItemID: "B", SKU: "B2", VariationID: variationID(2), Stock: 0},
		{ItemID: "C", SKU: "C", Stock: 0},
		{ItemID: "D", SKU: "D", Stock: 0},
	}
	rows := []model.SupplierRow{supplier("A", 10), supplier("B1", 10), supplier("B2", 10), supplier("C", 10), supplier("D", 10)}
	rec := Reconcile(listings, rows, ReconcileOptions{SafetyFloor: 3})

	client := &fakeStockClient{updateErr: map[string]error{
		"B": statusErr(400, `{"message":"invalid quantity"}`),
		"D": statusErr(400, `{"message":"other"}`),
	}}
	s, _ := newTestSync(client, nil, config.SyncConfig{})

	result, err := s.Run(context.Background(), NewProgress(), rec)
	require.NoError(t, err)

	assert.Len(t, client.updates, 4)
	assert.Equal(t, 2, result.Successes)
	assert.Equal(t, 3, result.Failures)
	assert.Equal(t, []string{"server responded with status 400"}, result.ErrorKinds)
	assert.Contains(t, result.Text(), "❌ B: server responded with status 400: invalid quantity")
	assert.Contains(t, result.Text(), "✔️ C: stock set to 10")
}

func TestSyncStopsOnUnauthorized(t *testing.T) {
	listings := make([]model.ListingRecord, 0, 21)
	rows := make([]model.SupplierRow, 0, 20)
	updateErr := make(map[string]error)
	for i := 1; i <= 20; i++ {
		itemID := fmt.Sprintf("I%02d", i)
		listings = append(listings, model.ListingRecord{ItemID: itemID, SKU: itemID, Stock: 1})
		rows = append(rows, supplier(itemID, 10))
		updateErr[itemID] = fmt.Errorf("%w: token refresh: boom", mercadolibre.ErrUnauthorized)
	}
	listings = append(listings, model.ListingRecord{ItemID: "ZERO", SKU: "none", Stock: 4})
	rec := Reconcile(listings, rows, ReconcileOptions{SafetyFloor: 3})

	client := &fakeStockClient{updateErr: updateErr}
	runs := &fakeRunLog{}
	s, _ := newTestSync(client, runs, config.SyncConfig{})

	result, err := s.Run(context.Background(), NewProgress(), rec)
	require.ErrorIs(t, err, mercadolibre.ErrUnauthorized)

	assert.Len(t, client.updates, 1)
	assert.Empty(t, client.pauses)
	assert.Equal(t, model.RunError, result.Status)
	assert.Equal(t, 1, result.Failures)
	assert.Contains(t, result.Log, "run stopped: authorization failed")
	require.Len(t, runs.saved, 1)
	assert.Equal(t, model.RunError, runs.saved[0].Status)
}

func TestSyncPauseUnauthorizedStopsPausing(t *testing.T) {
	listings := []model.ListingRecord{
		{ItemID: "P1", SKU: "P1", Stock: 5},
		{ItemID: "P2", SKU: "P2", Stock: 2},
	}
	rec := Reconcile(listings, nil, ReconcileOptions{SafetyFloor: 3})
	client := &fakeStockClient{pauseErr: map[string]error{"P1": mercadolibre.ErrUnauthorized}}
	s, _ := newTestSync(client, nil, config.SyncConfig{})

	result, err := s.Run(context.Background(), NewProgress(), rec)
	require.ErrorIs(t, err, mercadolibre.ErrUnauthorized)
	assert.Equal(t, []string{"P1"}, client.pauses)
	assert.Equal(t, 1, result.PauseFailures)
	assert.Equal(t, model.RunError, result.Status)
}

func TestSyncPausesCandidatesAndTracksPauseFailures(t *testing.T) {
	listings := []model.ListingRecord{
		{ItemID: "P1", SKU: "P1", Stock: 5},
		{ItemID: "P2", SKU: "P2", Stock: 2},
		{ItemID: "OK", SKU: "OK", Stock: 0},
	}
	rows := []model.SupplierRow{supplier("OK", 8)}
	rec := Reconcile(listings, rows, ReconcileOptions{SafetyFloor: 3})
	require.Equal(t, []string{"P1", "P2"}, rec.PauseCandidates)

	client := &fakeStockClient{pauseErr: map[string]error{"P2": statusErr(403, `{"message":"forbidden"}`)}}
	s, _ := newTestSync(client, nil, config.SyncConfig{})

	result, err := s.Run(context.Background(), NewProgress(), rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"P1", "P2"}, client.pauses)
	assert.Equal(t, 1, result.Paused)
	assert.Equal(t, 1, result.PauseFailures)
	assert.Equal(t, 3, result.Successes)
	assert.Contains(t, result.ErrorKinds, "pause failed: server responded with status 403")
	assert.Contains(t, result.Log, pauseSectionHeader)
	assert.Contains(t, result.Text(), "⏸️ P1: paused, no stock left")
}

func TestSyncCancellationStopsAtItemBoundary(t *testing.T) {
	listings := make([]model.ListingRecord, 0, 20)
	rows := make([]model.SupplierRow, 0, 20)
	for i := 1; i <= 20; i++ {
		sku := fmt.Sprintf("S%02d", i)
		listings = append(listings, model.ListingRecord{ItemID: fmt.Sprintf("I%02d", i), SKU: sku, Stock: 1})
		rows = append(rows, supplier(sku, 10))
	}
	// a pause candidate that must not be touched after cancellation
	listings = append(listings, model.ListingRecord{ItemID: "ZERO", SKU: "none", Stock: 4})
	rec := Reconcile(listings, rows, ReconcileOptions{SafetyFloor: 3})

	progress := NewProgress()
	client := &fakeStockClient{}
	client.onUpdate = func(calls int) {
		if calls == 5 {
			progress.RequestCancel()
		}
	}
	runs := &fakeRunLog{}
	s, _ := newTestSync(client, runs, config.SyncConfig{})

	result, err := s.Run(context.Background(), progress, rec)
	require.ErrorIs(t, err, ErrCancelled)

	assert.Len(t, client.updates, 5)
	assert.Equal(t, "I05", client.updates[4].itemID)
	assert.Empty(t, client.pauses)
	assert.Equal(t, model.RunCancelled, result.Status)
	assert.Equal(t, 5, result.Successes)
	require.Len(t, runs.saved, 1, "partial runs are persisted")
	assert.Equal(t, model.RunCancelled, runs.saved[0].Status)
}

func TestSyncPacesEveryMarketplaceCall(t *testing.T) {
	listings := make([]model.ListingRecord, 0, 6)
	for i := 0; i < 5; i++ {
		listings = append(listings, model.ListingRecord{ItemID: fmt.Sprintf("I%d", i), SKU: "K", Stock: 0})
	}
	listings = append(listings, model.ListingRecord{ItemID: "EMPTY", SKU: "none", Stock: 4})
	rec := Reconcile(listings, []model.SupplierRow{supplier("K", 10)}, ReconcileOptions{SafetyFloor: 3})

	client := &fakeStockClient{}
	s, pacer := newTestSync(client, nil, config.SyncConfig{})
	_, err := s.Run(context.Background(), NewProgress(), rec)
	require.NoError(t, err)

	assert.Len(t, client.updates, 6, "EMPTY drops to zero and is updated too")
	assert.Equal(t, []string{"EMPTY"}, client.pauses)
	assert.Equal(t, 7, pacer.waits)
}

func TestSyncPacerErrorStopsRun(t *testing.T) {
	rec := Reconcile([]model.ListingRecord{{ItemID: "A", SKU: "A", Stock: 1}}, []model.SupplierRow{supplier("A", 9)}, ReconcileOptions{SafetyFloor: 3})
	client := &fakeStockClient{}
	s, pacer := newTestSync(client, nil, config.SyncConfig{})
	pacer.err = context.DeadlineExceeded

	result, err := s.Run(context.Background(), NewProgress(), rec)
	require.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, client.updates)
	assert.Equal(t, model.RunCancelled, result.Status)
}

func TestNewPacerFromSyncConfig(t *testing.T) {
	assert.Nil(t, NewPacer(config.SyncConfig{}))
	assert.Nil(t, NewPacer(config.SyncConfig{ThrottleEvery: 20}))
	assert.Nil(t, NewPacer(config.SyncConfig{ThrottlePause: time.Second}))

	pacer := NewPacer(config.SyncConfig{ThrottleEvery: 20, ThrottlePause: time.Second})
	limiter, ok := pacer.(*rate.Limiter)
	require.True(t, ok)
	assert.Equal(t, 20, limiter.Burst())
	assert.Equal(t, rate.Every(50*time.Millisecond), limiter.Limit())
}

func TestSyncRunLogFailureDoesNotFailRun(t *testing.T) {
	rec := Reconcile([]model.ListingRecord{{ItemID: "A", SKU: "A", Stock: 1}}, []model.SupplierRow{supplier("A", 9)}, ReconcileOptions{SafetyFloor: 3})
	s, _ := newTestSync(&fakeStockClient{}, &fakeRunLog{err: errors.New("disk full")}, config.SyncConfig{})

	result, err := s.Run(context.Background(), NewProgress(), rec)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Successes)
}

func TestSyncNothingChanged(t *testing.T) {
	rec := Reconcile([]model.ListingRecord{{ItemID: "A", SKU: "A", Stock: 9}}, []model.SupplierRow{supplier("A", 9)}, ReconcileOptions{SafetyFloor: 3})
	client := &fakeStockClient{}
	s, _ := newTestSync(client, nil, config.SyncConfig{})

	result, err := s.Run(context.Background(), NewProgress(), rec)
	require.NoError(t, err)
	assert.Empty(t, client.updates)
	assert.Empty(t, client.pauses)
	assert.Equal(t, model.RunDone, result.Status)
}
