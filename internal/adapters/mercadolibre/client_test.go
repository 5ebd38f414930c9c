package mercadolibre

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meli-inventory-sync/internal/adapters/mercadolibre/dto"
	"meli-inventory-sync/internal/config"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func (s *sleepRecorder) total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum time.Duration
	for _, d := range s.delays {
		sum += d
	}
	return sum
}

func newTestClient(t *testing.T, handler http.Handler, cfg config.MercadoLibreConfig) (*Client, *sleepRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseUrl = srv.URL
	if cfg.Token == "" {
		cfg.Token = "APP_USR-test"
	}
	rec := &sleepRecorder{}
	client := NewClient(cfg, srv.Client(), nil, nil, WithSleeper(rec.sleep))
	return client, rec
}

func TestListItemIDsPaginatesUntilShortPage(t *testing.T) {
	var offsets []int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/77/items/search", r.URL.Path)
		assert.Equal(t, "Bearer APP_USR-test", r.Header.Get("Authorization"))
		assert.Equal(t, "active", r.URL.Query().Get("status"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		offsets = append(offsets, offset)
		var results []string
		count := 2
		if offset == 4 {
			count = 1
		}
		for i := 0; i < count; i++ {
			results = append(results, fmt.Sprintf("MLM%d", offset+i))
		}
		_ = json.NewEncoder(w).Encode(dto.SearchResponse{Results: results})
	})
	client, _ := newTestClient(t, handler, config.MercadoLibreConfig{PageSize: 2})

	ids, err := client.ListItemIDs(context.Background(), 77, "active")
	require.NoError(t, err)
	assert.Equal(t, []string{"MLM0", "MLM1", "MLM2", "MLM3", "MLM4"}, ids)
	assert.Equal(t, []int{0, 2, 4}, offsets)
}

func TestListItemIDsReturnsPartialOnFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "2" {
			http.Error(w, `{"message":"internal"}`, http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(dto.SearchResponse{Results: []string{"MLM1", "MLM2"}})
	})
	client, _ := newTestClient(t, handler, config.MercadoLibreConfig{PageSize: 2})

	ids, err := client.ListItemIDs(context.Background(), 1, "paused")
	require.NoError(t, err)
	assert.Equal(t, []string{"MLM1", "MLM2"}, ids)
}

func TestListItemIDsSurfacesUnauthorized(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid access token"}`, http.StatusUnauthorized)
	})
	client, _ := newTestClient(t, handler, config.MercadoLibreConfig{PageSize: 2})

	_, err := client.ListItemIDs(context.Background(), 1, "active")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUserIDPrefersConfiguredSeller(t *testing.T) {
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"id":555,"nickname":"ESPAITEC"}`))
	})
	client, _ := newTestClient(t, handler, config.MercadoLibreConfig{SellerID: 999})
	id, err := client.UserID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(999), id)
	assert.Equal(t, 0, calls)

	client, _ = newTestClient(t, handler, config.MercadoLibreConfig{})
	id, err = client.UserID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(555), id)
}

func TestFetchItemBacksOffExponentiallyOn429(t *testing.T) {
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"MLM1","title":"Mochila","status":"active","available_quantity":4,"seller_custom_field":"MOC-1"}`))
	})
	client, rec := newTestClient(t, handler, config.MercadoLibreConfig{})

	item, err := client.FetchItem(context.Background(), "MLM1")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
	assert.Equal(t, "Mochila", item.Title)
	assert.Equal(t, "MOC-1", ResolveSKU(item.Raw))
}

func TestFetchItemGivesUpAfterRetryCap(t *testing.T) {
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	})
	client, rec := newTestClient(t, handler, config.MercadoLibreConfig{})

	item, err := client.FetchItem(context.Background(), "MLM1")
	require.Error(t, err)
	assert.Nil(t, item)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.delays)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestFetchItemRetriesTimeoutsWithFixedDelay(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			time.Sleep(200 * time.Millisecond)
		}
		_, _ = w.Write([]byte(`{"id":"MLM2","status":"paused","available_quantity":1}`))
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	rec := &sleepRecorder{}
	httpClient := &http.Client{Timeout: 50 * time.Millisecond}
	client := NewClient(config.MercadoLibreConfig{BaseUrl: srv.URL, Token: "t"}, httpClient, nil, nil,
		WithSleeper(rec.sleep), WithDetailPolicy(DetailPolicy(3, 750*time.Millisecond)))

	item, err := client.FetchItem(context.Background(), "MLM2")
	require.NoError(t, err)
	assert.Equal(t, "paused", item.Status)
	assert.Equal(t, []time.Duration{750 * time.Millisecond}, rec.delays)
}

func TestApplyStockUpdateRetries429ThenSucceeds(t *testing.T) {
	attempts := 0
	var lastBody map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/items/A1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &lastBody))
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"A1"}`))
	})
	client, rec := newTestClient(t, handler, config.MercadoLibreConfig{})

	update := dto.StockUpdate{Variations: []dto.VariationStock{{ID: 1, AvailableQuantity: 0}, {ID: 2, AvailableQuantity: 7}}}
	err := client.ApplyStockUpdate(context.Background(), "A1", update)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.delays)
	assert.GreaterOrEqual(t, rec.total(), 6*time.Second)

	variations, ok := lastBody["variations"].([]any)
	require.True(t, ok)
	assert.Len(t, variations, 2)
	_, hasQty := lastBody["available_quantity"]
	assert.False(t, hasQty)
}

func TestApplyStockUpdateReportsRemoteBody(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Validation error","error":"validation_error","status":400,"cause":[{"code":"item.variations.invalid","message":"Variation 9 does not exist"}]}`))
	})
	client, rec := newTestClient(t, handler, config.MercadoLibreConfig{})

	qty := 5
	err := client.ApplyStockUpdate(context.Background(), "MLM9", dto.StockUpdate{AvailableQuantity: &qty})
	require.Error(t, err)
	assert.Empty(t, rec.delays)

	kind, details := DescribeError(err)
	assert.Equal(t, "server responded with status 400", kind)
	assert.Equal(t, "Validation error; Variation 9 does not exist", details)
}

func TestApplyStockUpdateRejectsEmptyPayload(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler(), config.MercadoLibreConfig{})
	err := client.ApplyStockUpdate(context.Background(), "MLM1", dto.StockUpdate{})
	require.Error(t, err)
}

func TestPauseListingSingleAttempt(t *testing.T) {
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		var body dto.StatusUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "paused", body.Status)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	client, rec := newTestClient(t, handler, config.MercadoLibreConfig{})

	err := client.PauseListing(context.Background(), "MLM3")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, rec.delays)
}

func TestUnauthorizedTriggersSingleRefresh(t *testing.T) {
	var refreshes, calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "TG-old", r.PostForm.Get("refresh_token"))
		refreshes++
		_, _ = w.Write([]byte(`{"access_token":"APP_USR-new","refresh_token":"TG-new","expires_in":21600}`))
	})
	mux.HandleFunc("/items/MLM1", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") != "Bearer APP_USR-new" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"MLM1","status":"active"}`))
	})
	client, rec := newTestClient(t, mux, config.MercadoLibreConfig{
		Token:        "APP_USR-old",
		RefreshToken: "TG-old",
		ClientID:     "123",
		ClientSecret: "secret",
	})

	_, err := client.FetchItem(context.Background(), "MLM1")
	require.NoError(t, err)
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, 2, calls)
	assert.Empty(t, rec.delays)
	assert.Equal(t, "APP_USR-new", client.tokens.Token())
}

func TestUnauthorizedWithoutRefreshCredentials(t *testing.T) {
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	client, _ := newTestClient(t, handler, config.MercadoLibreConfig{})

	_, err := client.FetchItem(context.Background(), "MLM1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, calls)
}

func TestListingRecordsFlattensVariations(t *testing.T) {
	raw := `{
		"id":"A1","title":"Chamarra","status":"active","available_quantity":10,
		"variations":[
			{"id":101,"available_quantity":10,"seller_custom_field":"CH-M"},
			{"id":102,"available_quantity":0,"attributes":[{"id":"SELLER_SKU","value_name":"CH-L"}]},
			{"id":103,"available_quantity":-2}
		]
	}`
	var item dto.Item
	require.NoError(t, json.Unmarshal([]byte(raw), &item))

	records := ListingRecords(&item)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.Equal(t, "A1", r.ItemID)
		assert.Equal(t, "active", r.Status)
		assert.True(t, r.HasVariation())
	}
	assert.Equal(t, int64(101), *records[0].VariationID)
	assert.Equal(t, "CH-M", records[0].SKU)
	assert.Equal(t, "CH-L", records[1].SKU)
	assert.Equal(t, "", records[2].SKU)
	assert.Equal(t, 0, records[2].Stock)
}

func TestListingRecordsWithoutVariations(t *testing.T) {
	var item dto.Item
	require.NoError(t, json.Unmarshal([]byte(`{"id":"B2","title":"Linterna","status":"paused","available_quantity":6,"seller_custom_field":"LIN-1"}`), &item))

	records := ListingRecords(&item)
	require.Len(t, records, 1)
	assert.False(t, records[0].HasVariation())
	assert.Equal(t, "LIN-1", records[0].SKU)
	assert.Equal(t, 6, records[0].Stock)
}

func TestRequestClientCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "app", r.PostForm.Get("client_id"))
		_, _ = w.Write([]byte(`{"access_token":"APP_USR-cc","token_type":"bearer","expires_in":21600,"user_id":42}`))
	}))
	defer srv.Close()

	token, err := RequestClientCredentials(context.Background(), srv.Client(), srv.URL, "app", "secret")
	require.NoError(t, err)
	assert.Equal(t, "APP_USR-cc", token.AccessToken)
	assert.Equal(t, int64(42), token.UserID)

	_, err = RequestClientCredentials(context.Background(), srv.Client(), srv.URL, "", "secret")
	require.Error(t, err)
}
