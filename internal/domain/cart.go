package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem holds a prospective purchase. Price is snapshotted when the item
// is added so the cart view stays stable until checkout re-reads products.
type CartItem struct {
	ProductID string    `bson:"product_id" json:"productId"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	Price     float64   `bson:"price" json:"price"`
	Images    []string  `bson:"images,omitempty" json:"images,omitempty"`
	AddedAt   time.Time `bson:"added_at" json:"addedAt"`
}

// Cart is the single mutable staging area per user. It is created lazily on
// first read and hard-deleted on successful checkout or explicit clear.
type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string     `bson:"user_id" json:"userId"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updatedAt"`
}

// Total sums price×quantity over all items, rounded to two decimal places
// half away from zero.
func (c *Cart) Total() float64 {
	total := decimal.Zero
	for _, item := range c.Items {
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total.Round(2).InexactFloat64()
}

// Item returns the cart line for productID, or nil.
func (c *Cart) Item(productID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}
