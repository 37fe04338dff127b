package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidItemID     = errors.New("item id must be greater than 0")
	ErrInvalidItemAmount = errors.New("item amount must be greater than 0")
	ErrDuplicateItem     = errors.New("duplicate item in cart")
)

// Product is the catalog view of a purchasable item.
type Product struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

// StockRecord is the remaining inventory for a product at the time it was fetched.
type StockRecord struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount"`
}

type CartItem struct {
	ID     int64   `json:"id"`
	Title  string  `json:"title"`
	Price  float64 `json:"price"`
	Image  string  `json:"image"`
	Amount int     `json:"amount"`
}

// NewCartItem builds a cart line for p with the given amount.
func NewCartItem(p Product, amount int) CartItem {
	return CartItem{
		ID:     p.ID,
		Title:  p.Title,
		Price:  p.Price,
		Image:  p.Image,
		Amount: amount,
	}
}

// Subtotal returns price times amount.
func (i CartItem) Subtotal() float64 {
	return i.Price * float64(i.Amount)
}

// Cart keeps items in insertion order.
type Cart []CartItem

// Find returns the index of the item with the given id, or -1.
func (c Cart) Find(id int64) int {
	for i, item := range c {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (c Cart) Contains(id int64) bool {
	return c.Find(id) >= 0
}

// Clone returns a copy that shares no backing array with c.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Without returns a copy of c with the item id filtered out.
func (c Cart) Without(id int64) Cart {
	out := make(Cart, 0, len(c))
	for _, item := range c {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}

// WithAmount returns a copy of c where the item id has the given amount.
func (c Cart) WithAmount(id int64, amount int) Cart {
	out := c.Clone()
	if i := out.Find(id); i >= 0 {
		out[i].Amount = amount
	}
	return out
}

// TotalItems sums the amounts of every line.
func (c Cart) TotalItems() int {
	total := 0
	for _, item := range c {
		total += item.Amount
	}
	return total
}

func (c Cart) Subtotal() float64 {
	var total float64
	for _, item := range c {
		total += item.Subtotal()
	}
	return total
}

// Validate checks that ids are positive and unique and that every amount is at least 1.
func (c Cart) Validate() error {
	seen := make(map[int64]struct{}, len(c))
	for i, item := range c {
		if item.ID <= 0 {
			return fmt.Errorf("item %d: %w", i, ErrInvalidItemID)
		}
		if item.Amount < 1 {
			return fmt.Errorf("item %d (id %d): %w", i, item.ID, ErrInvalidItemAmount)
		}
		if _, ok := seen[item.ID]; ok {
			return fmt.Errorf("item %d (id %d): %w", i, item.ID, ErrDuplicateItem)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}
