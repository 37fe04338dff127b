package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/rocketshoes-cart/internal/domain"
	"github.com/fjod/rocketshoes-cart/internal/engine"
	"github.com/fjod/rocketshoes-cart/internal/notify"
	"github.com/fjod/rocketshoes-cart/internal/session"
	"github.com/fjod/rocketshoes-cart/internal/store"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendMock struct {
	stock map[int64]int
	err   error
}

func (b *backendMock) GetStock(_ context.Context, id int64) (domain.StockRecord, error) {
	if b.err != nil {
		return domain.StockRecord{}, b.err
	}
	return domain.StockRecord{ID: id, Amount: b.stock[id]}, nil
}

func (b *backendMock) GetProduct(_ context.Context, id int64) (domain.Product, error) {
	if b.err != nil {
		return domain.Product{}, b.err
	}
	return domain.Product{ID: id, Title: "Tênis", Price: 100, Image: "a.jpg"}, nil
}

type sessionsMock struct {
	err error
}

func (s sessionsMock) Get(context.Context, string) (*engine.CartEngine, error) {
	return nil, s.err
}

func setupRouter(t *testing.T, backend *backendMock) http.Handler {
	t.Helper()
	log, _ := test.NewNullLogger()
	registry := session.NewRegistry(backend, backend, store.NewMemoryStore(), notify.Discard{}, log)
	return NewRouter(NewCartHandler(registry, 5*time.Second, log), log)
}

func doRequest(t *testing.T, h http.Handler, method, path, sessionID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) CartResponse {
	t.Helper()
	var resp CartResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestGetCart_NewSessionIssuesCookie(t *testing.T) {
	h := setupRouter(t, &backendMock{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/cart", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(sessionHeader))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.Equal(t, rec.Header().Get(sessionHeader), cookies[0].Value)

	resp := decodeCart(t, rec)
	assert.Empty(t, resp.Items)
	assert.NotNil(t, resp.Items)
}

func TestAddItem_Success(t *testing.T) {
	h := setupRouter(t, &backendMock{stock: map[int64]int{1: 5}})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeCart(t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 2, resp.Items[0].Amount)
	assert.Equal(t, 2, resp.TotalItems)
	assert.InDelta(t, 200.0, resp.Subtotal, 1e-9)
}

func TestAddItem_CookieSession(t *testing.T) {
	h := setupRouter(t, &backendMock{stock: map[int64]int{1: 5}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewBufferString(`{"product_id":1}`))
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "from-cookie"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/cart", "from-cookie", nil)
	assert.Len(t, decodeCart(t, rec).Items, 1)
}

func TestAddItem_InvalidBody(t *testing.T) {
	h := setupRouter(t, &backendMock{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/cart/items", "s1", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Code)

	rec = doRequest(t, h, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_product_id", decodeError(t, rec).Code)
}

func TestAddItem_OutOfStock(t *testing.T) {
	h := setupRouter(t, &backendMock{stock: map[int64]int{1: 0}})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "out_of_stock", decodeError(t, rec).Code)
}

func TestAddItem_BackendDown(t *testing.T) {
	h := setupRouter(t, &backendMock{err: errors.New("connection refused")})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "operation_failed", decodeError(t, rec).Code)
}

func TestSetAmount(t *testing.T) {
	h := setupRouter(t, &backendMock{stock: map[int64]int{1: 3}})
	doRequest(t, h, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1})

	rec := doRequest(t, h, http.MethodPut, "/api/v1/cart/items/1", "s1", map[string]int{"amount": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decodeCart(t, rec).Items[0].Amount)

	rec = doRequest(t, h, http.MethodPut, "/api/v1/cart/items/1", "s1", map[string]int{"amount": 4})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, h, http.MethodPut, "/api/v1/cart/items/1", "s1", map[string]int{"amount": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decodeCart(t, rec).Items[0].Amount)

	rec = doRequest(t, h, http.MethodPut, "/api/v1/cart/items/2", "s1", map[string]int{"amount": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodPut, "/api/v1/cart/items/1", "s1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPut, "/api/v1/cart/items/abc", "s1", map[string]int{"amount": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveItem(t *testing.T) {
	h := setupRouter(t, &backendMock{stock: map[int64]int{1: 3}})
	doRequest(t, h, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1})

	rec := doRequest(t, h, http.MethodDelete, "/api/v1/cart/items/2", "s1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "item_not_found", decodeError(t, rec).Code)

	rec = doRequest(t, h, http.MethodDelete, "/api/v1/cart/items/1", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Items)
}

func TestClearCart(t *testing.T) {
	h := setupRouter(t, &backendMock{stock: map[int64]int{1: 3, 2: 3}})
	doRequest(t, h, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1})
	doRequest(t, h, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 2})

	rec := doRequest(t, h, http.MethodDelete, "/api/v1/cart", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Items)
}

func TestSessionUnavailable(t *testing.T) {
	log, _ := test.NewNullLogger()
	h := NewRouter(NewCartHandler(sessionsMock{err: errors.New("redis down")}, time.Second, log), log)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/cart", "s1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "session_unavailable", decodeError(t, rec).Code)
}

func TestHealth(t *testing.T) {
	h := setupRouter(t, &backendMock{})

	rec := doRequest(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestAnonymousRequestsDoNotAccumulateSessions(t *testing.T) {
	log, _ := test.NewNullLogger()
	backend := &backendMock{stock: map[int64]int{1: 5}}
	registry := session.NewRegistry(backend, backend, store.NewMemoryStore(), notify.Discard{}, log,
		session.WithMaxSessions(5))
	h := NewRouter(NewCartHandler(registry, 5*time.Second, log), log)

	for i := 0; i < 200; i++ {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/cart", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 0, registry.Len())

	for i := 0; i < 50; i++ {
		rec := doRequest(t, h, http.MethodPost, "/api/v1/cart/items", "", AddItemRequestDTO{ProductID: 1})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 5, registry.Len())
}
