package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrLims/discord-custom-product/internal/adapter/storage"
	"github.com/CrLims/discord-custom-product/internal/core/service"
)

func newTestServer(t *testing.T) (*httptest.Server, *service.Engine) {
	t.Helper()

	engine := service.NewEngine(
		storage.NewMemoryCatalog(),
		storage.NewMemoryLedger(),
		nil,
		nil,
		[]string{"operator-1"},
		slog.New(slog.DiscardHandler),
	)
	h := NewHTTPHandler(engine, slog.New(slog.DiscardHandler))

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, engine
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProductLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/products",
		map[string]any{"name": "Koi", "stock": 10, "price": 5000}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/products/Koi/stock",
		map[string]any{"stock": 7}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[map[string]any](t, resp)
	assert.Equal(t, float64(7), p["stock"])

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/products/Koi/availability", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	av := decode[map[string]int](t, resp)
	assert.Equal(t, 7, av["available"])

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/products/Koi", nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/products/Koi/availability", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateReservationValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	// Missing requester.
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/reservations",
		map[string]any{"product": "Koi", "quantity": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown product.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/reservations",
		map[string]any{"requester": "buyer", "product": "Ghost", "quantity": 1}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReservationSettlementFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/products",
		map[string]any{"name": "Koi", "stock": 10, "price": 5000}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/reservations",
		map[string]any{"requester": "buyer", "product": "Koi", "quantity": 4}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]any](t, resp)
	id := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, float64(20000), created["total_price"])

	// A non-operator may not settle.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/reservations/"+id+"/success",
		nil, map[string]string{"X-Operator-ID": "buyer"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/reservations/"+id+"/success",
		nil, map[string]string{"X-Operator-ID": "operator-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	settled := decode[map[string]any](t, resp)
	assert.Equal(t, "success", settled["status"])
	assert.Equal(t, "operator-1", settled["resolved_by"])

	// Settling twice conflicts.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/reservations/"+id+"/cancel",
		nil, map[string]string{"X-Operator-ID": "operator-1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/products/Koi/availability", nil, nil)
	av := decode[map[string]int](t, resp)
	assert.Equal(t, 6, av["stock"])
	assert.Equal(t, 0, av["pending"])
}

func TestInsufficientStockResponse(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/products",
		map[string]any{"name": "Koi", "stock": 10, "price": 5000}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/reservations",
		map[string]any{"requester": "buyer-a", "product": "Koi", "quantity": 4}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/reservations",
		map[string]any{"requester": "buyer-b", "product": "Koi", "quantity": 7}, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, float64(6), body["available"])
	assert.Equal(t, float64(4), body["pending"])
	assert.Equal(t, float64(7), body["requested"])
}
