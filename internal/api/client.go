package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/rocketshoes-cart/internal/domain"
	pkgerrors "github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnexpectedResponse = errors.New("unexpected response from api")

	// errCallerGone marks requests abandoned by their caller. They say nothing about
	// the backend's health.
	errCallerGone = errors.New("request abandoned by caller")
)

// Client talks to the store backend that owns products and stock.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	sfg     singleflight.Group // collapses concurrent lookups of the same product
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "store-api",
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// a missing product is an answer, not an outage
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, errCallerGone)
			},
		}),
	}
}

// GetStock returns the current stock record. It is never cached.
func (c *Client) GetStock(ctx context.Context, productID int64) (domain.StockRecord, error) {
	var stock domain.StockRecord
	if err := c.getJSON(ctx, fmt.Sprintf("/stock/%d", productID), &stock); err != nil {
		return domain.StockRecord{}, pkgerrors.Wrapf(err, "get stock %d", productID)
	}
	return stock, nil
}

// GetProduct looks up product details. Concurrent lookups of one id share a single
// request, which runs detached from any one caller and is bounded by the client
// timeout.
func (c *Client) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	ch := c.sfg.DoChan(strconv.FormatInt(productID, 10), func() (interface{}, error) {
		var product domain.Product
		if err := c.getJSON(context.WithoutCancel(ctx), fmt.Sprintf("/products/%d", productID), &product); err != nil {
			return nil, err
		}
		return product, nil
	})

	select {
	case <-ctx.Done():
		return domain.Product{}, pkgerrors.Wrapf(ctx.Err(), "get product %d", productID)
	case res := <-ch:
		if res.Err != nil {
			return domain.Product{}, pkgerrors.Wrapf(res.Err, "get product %d", productID)
		}
		return res.Val.(domain.Product), nil
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "build request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %w", errCallerGone, ctxErr)
			}
			return nil, pkgerrors.Wrap(err, "request failed")
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("%w: status %d: %s", ErrUnexpectedResponse, resp.StatusCode, strings.TrimSpace(string(body)))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %w", errCallerGone, ctxErr)
			}
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		return nil, nil
	})
	return err
}
