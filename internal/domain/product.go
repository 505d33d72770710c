package domain

import "time"

// Product is consumed read-only by the checkout pipeline except for the
// stock field, which the inventory ledger decrements and restores.
type Product struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description" json:"description"`
	Price       float64   `bson:"price" json:"price"`
	Category    string    `bson:"category" json:"category"`
	Stock       int       `bson:"stock" json:"stock"`
	Images      []string  `bson:"images" json:"images"`
	Featured    bool      `bson:"featured" json:"featured"`
	Brand       string    `bson:"brand" json:"brand"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updatedAt"`
}
