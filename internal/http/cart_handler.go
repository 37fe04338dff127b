package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/rocketshoes-cart/internal/domain"
	"github.com/fjod/rocketshoes-cart/internal/engine"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type Sessions interface {
	Get(ctx context.Context, sessionID string) (*engine.CartEngine, error)
}

type CartHandler struct {
	sessions Sessions
	timeout  time.Duration
	log      *logrus.Logger
}

func NewCartHandler(sessions Sessions, timeout time.Duration, log *logrus.Logger) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		timeout:  timeout,
		log:      log,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
}

type SetAmountRequestDTO struct {
	Amount *int `json:"amount"`
}

type CartResponse struct {
	Items      domain.Cart `json:"items"`
	TotalItems int         `json:"total_items"`
	Subtotal   float64     `json:"subtotal"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func newCartResponse(cart domain.Cart) CartResponse {
	if cart == nil {
		cart = domain.Cart{}
	}
	return CartResponse{
		Items:      cart,
		TotalItems: cart.TotalItems(),
		Subtotal:   cart.Subtotal(),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if isNewSession(ctx) {
		h.respondJSON(w, http.StatusOK, newCartResponse(nil))
		return
	}

	e, ok := h.engine(ctx, w)
	if !ok {
		return
	}

	h.respondJSON(w, http.StatusOK, newCartResponse(e.Cart()))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	e, ok := h.engine(ctx, w)
	if !ok {
		return
	}

	if err := e.AddItem(ctx, req.ProductID); err != nil {
		h.handleEngineError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, newCartResponse(e.Cart()))
}

// SetAmount accepts any integer; amounts <= 0 leave the cart unchanged.
func (h *CartHandler) SetAmount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req SetAmountRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Amount == nil {
		h.respondError(w, http.StatusBadRequest, "invalid_amount", "amount is required")
		return
	}

	e, ok := h.engine(ctx, w)
	if !ok {
		return
	}

	if err := e.SetAmount(ctx, productID, *req.Amount); err != nil {
		h.handleEngineError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, newCartResponse(e.Cart()))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	e, ok := h.engine(ctx, w)
	if !ok {
		return
	}

	if err := e.RemoveItem(ctx, productID); err != nil {
		h.handleEngineError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, newCartResponse(e.Cart()))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	e, ok := h.engine(ctx, w)
	if !ok {
		return
	}

	if err := e.Clear(ctx); err != nil {
		h.handleEngineError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, newCartResponse(e.Cart()))
}

func (h *CartHandler) engine(ctx context.Context, w http.ResponseWriter) (*engine.CartEngine, bool) {
	sessionID := getSessionID(ctx)
	if sessionID == "" {
		h.respondError(w, http.StatusUnauthorized, "missing_session", "missing cart session")
		return nil, false
	}

	e, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		h.log.WithError(err).WithField("session_id", sessionID).Error("failed to load cart session")
		h.respondError(w, http.StatusServiceUnavailable, "session_unavailable", "cart is temporarily unavailable")
		return nil, false
	}
	return e, true
}

func (h *CartHandler) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}

func (h *CartHandler) handleEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrOutOfStock):
		h.respondError(w, http.StatusConflict, "out_of_stock", err.Error())
	case errors.Is(err, engine.ErrItemNotFound):
		h.respondError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, engine.ErrOperationFailed):
		h.respondError(w, http.StatusBadGateway, "operation_failed", "cart operation failed, try again")
	default:
		h.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (h *CartHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.WithError(err).Error("failed to encode response")
	}
}

func (h *CartHandler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
