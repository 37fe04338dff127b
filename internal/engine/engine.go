package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/rocketshoes-cart/internal/domain"
	"github.com/fjod/rocketshoes-cart/internal/notify"
	"github.com/sirupsen/logrus"
)

var (
	ErrOutOfStock      = errors.New("requested amount is out of stock")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrOperationFailed = errors.New("cart operation failed")
)

// StockService reports the current stock of a product. Results are never cached.
type StockService interface {
	GetStock(ctx context.Context, productID int64) (domain.StockRecord, error)
}

type ProductCatalog interface {
	GetProduct(ctx context.Context, productID int64) (domain.Product, error)
}

// Store persists whole cart snapshots. Load returns nil data when nothing was saved
// for the session. Save overwrites the previous value.
type Store interface {
	Load(ctx context.Context, sessionID string) ([]byte, error)
	Save(ctx context.Context, sessionID string, snapshot []byte) error
}

type Deps struct {
	SessionID string
	Stock     StockService
	Catalog   ProductCatalog
	Store     Store
	Sink      notify.Sink
	Log       *logrus.Logger
}

// CartEngine owns the cart of a single session. Every mutation computes the next cart
// on a copy, saves it and only then replaces the in-memory cart, so a failed save
// leaves memory and storage as they were.
type CartEngine struct {
	mu        sync.Mutex
	sessionID string
	cart      domain.Cart

	stock   StockService
	catalog ProductCatalog
	store   Store
	sink    notify.Sink
	log     *logrus.Logger
}

// New restores the session's cart from the store. A snapshot that fails validation is
// discarded and the engine starts empty; a store error fails construction.
func New(ctx context.Context, deps Deps) (*CartEngine, error) {
	if deps.Stock == nil || deps.Catalog == nil || deps.Store == nil {
		return nil, errors.New("engine: stock, catalog and store are required")
	}
	if deps.Sink == nil {
		deps.Sink = notify.Discard{}
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}

	e := &CartEngine{
		sessionID: deps.SessionID,
		stock:     deps.Stock,
		catalog:   deps.Catalog,
		store:     deps.Store,
		sink:      deps.Sink,
		log:       deps.Log,
	}

	data, err := deps.Store.Load(ctx, deps.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart snapshot: %w", err)
	}

	cart, err := DecodeSnapshot(data)
	if err != nil {
		e.log.WithError(err).WithField("session_id", e.sessionID).Warn("discarding stored cart")
		cart = domain.Cart{}
	}
	e.cart = cart

	return e, nil
}

func (e *CartEngine) SessionID() string {
	return e.sessionID
}

// Cart returns a copy of the current cart.
func (e *CartEngine) Cart() domain.Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Clone()
}

// AddItem puts one more unit of productID in the cart. A product already in the cart
// goes through the same stock bound as SetAmount.
func (e *CartEngine) AddItem(ctx context.Context, productID int64) error {
	return e.run(ctx, func() (*notify.Outcome, error) {
		return e.addItem(ctx, productID)
	})
}

// RemoveItem drops productID from the cart. It never consults stock.
func (e *CartEngine) RemoveItem(ctx context.Context, productID int64) error {
	return e.run(ctx, func() (*notify.Outcome, error) {
		if !e.cart.Contains(productID) {
			return e.fail(notify.MessageRemoveFailed, productID, ErrItemNotFound, nil)
		}
		if err := e.commit(ctx, e.cart.Without(productID)); err != nil {
			return e.fail(notify.MessageRemoveFailed, productID, ErrOperationFailed, err)
		}
		return nil, nil
	})
}

// SetAmount replaces the amount of productID. Amounts <= 0 are ignored; use RemoveItem
// to take a product out of the cart.
func (e *CartEngine) SetAmount(ctx context.Context, productID int64, amount int) error {
	return e.run(ctx, func() (*notify.Outcome, error) {
		return e.setAmount(ctx, productID, amount)
	})
}

// Clear empties the cart, e.g. after checkout completed.
func (e *CartEngine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.commit(ctx, domain.Cart{}); err != nil {
		e.log.WithError(err).WithField("session_id", e.sessionID).Error("clear cart failed")
		return fmt.Errorf("clear cart: %w: %w", ErrOperationFailed, err)
	}
	return nil
}

// run executes op under mu and hands its outcome to the sink once mu is released, so
// a slow sink never holds up the session.
func (e *CartEngine) run(ctx context.Context, op func() (*notify.Outcome, error)) error {
	e.mu.Lock()
	outcome, err := op()
	e.mu.Unlock()

	if outcome != nil {
		e.sink.Notify(ctx, *outcome)
	}
	return err
}

func (e *CartEngine) addItem(ctx context.Context, productID int64) (*notify.Outcome, error) {
	stock, err := e.stock.GetStock(ctx, productID)
	if err != nil {
		return e.fail(notify.MessageAddFailed, productID, ErrOperationFailed, err)
	}
	if stock.Amount <= 0 {
		return e.fail(notify.MessageOutOfStock, productID, ErrOutOfStock, nil)
	}

	if i := e.cart.Find(productID); i >= 0 {
		return e.setAmount(ctx, productID, e.cart[i].Amount+1)
	}

	product, err := e.catalog.GetProduct(ctx, productID)
	if err != nil {
		return e.fail(notify.MessageAddFailed, productID, ErrOperationFailed, err)
	}
	product.ID = productID

	next := append(e.cart.Clone(), domain.NewCartItem(product, 1))
	if err := e.commit(ctx, next); err != nil {
		return e.fail(notify.MessageAddFailed, productID, ErrOperationFailed, err)
	}

	e.log.WithFields(logrus.Fields{
		"session_id": e.sessionID,
		"product_id": productID,
	}).Debug("item added to cart")
	return nil, nil
}

func (e *CartEngine) setAmount(ctx context.Context, productID int64, amount int) (*notify.Outcome, error) {
	if amount <= 0 {
		return nil, nil
	}

	stock, err := e.stock.GetStock(ctx, productID)
	if err != nil {
		return e.fail(notify.MessageUpdateFailed, productID, ErrOperationFailed, err)
	}
	if amount > stock.Amount {
		return e.fail(notify.MessageOutOfStock, productID, ErrOutOfStock, nil)
	}

	if !e.cart.Contains(productID) {
		return e.fail(notify.MessageUpdateFailed, productID, ErrItemNotFound, nil)
	}

	if err := e.commit(ctx, e.cart.WithAmount(productID, amount)); err != nil {
		return e.fail(notify.MessageUpdateFailed, productID, ErrOperationFailed, err)
	}
	return nil, nil
}

// commit must be called with mu held.
func (e *CartEngine) commit(ctx context.Context, next domain.Cart) error {
	data, err := EncodeSnapshot(next)
	if err != nil {
		return err
	}
	if err := e.store.Save(ctx, e.sessionID, data); err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	e.cart = next
	return nil
}

// fail builds the single outcome of a failed operation and an error matching kind
// (and cause, when set) under errors.Is.
func (e *CartEngine) fail(msg notify.Message, productID int64, kind, cause error) (*notify.Outcome, error) {
	outcome := &notify.Outcome{
		SessionID:  e.sessionID,
		Message:    msg,
		Text:       msg.Text(),
		ProductID:  productID,
		OccurredAt: time.Now(),
	}

	if cause != nil {
		outcome.Reason = cause.Error()
		return outcome, fmt.Errorf("product %d: %w: %w", productID, kind, cause)
	}
	return outcome, fmt.Errorf("product %d: %w", productID, kind)
}
