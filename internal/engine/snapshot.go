package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fjod/rocketshoes-cart/internal/domain"
)

var ErrMalformedSnapshot = errors.New("malformed cart snapshot")

// EncodeSnapshot serializes the whole cart as a JSON array in cart order.
func EncodeSnapshot(cart domain.Cart) ([]byte, error) {
	if cart == nil {
		cart = domain.Cart{}
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a snapshot written by EncodeSnapshot. Empty input and a JSON
// null both decode to an empty cart. Unknown fields, trailing data and carts that
// fail domain validation are rejected with ErrMalformedSnapshot.
func DecodeSnapshot(data []byte) (domain.Cart, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.Cart{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var cart domain.Cart
	if err := dec.Decode(&cart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after cart", ErrMalformedSnapshot)
	}
	if err := cart.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	if cart == nil {
		cart = domain.Cart{}
	}
	return cart, nil
}
