// Package inventory implements the stock reservation ledger over the
// product store. Reservations are all-or-nothing: a failure on any line
// rolls back every line already reserved.
package inventory

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ranntharath/ecomerce-backend/internal/repository"
)

// Line is a single product reservation within a reserve or restore call.
type Line struct {
	ProductID string
	Quantity  int
}

type Ledger struct {
	products repository.ProductStore
	log      *logrus.Logger
}

func NewLedger(products repository.ProductStore, log *logrus.Logger) *Ledger {
	return &Ledger{products: products, log: log}
}

// Reserve atomically decrements stock for every line. Each decrement is
// guarded against going negative; on the first failure all previously
// reserved lines are restored, so a partial reservation is never left
// behind.
func (l *Ledger) Reserve(ctx context.Context, lines []Line) error {
	for i, line := range lines {
		if err := l.products.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			l.rollback(ctx, lines[:i])
			return fmt.Errorf("reserve product %s: %w", line.ProductID, err)
		}
	}
	return nil
}

// Restore increments stock for every line. Used only to reverse a
// previously successful reservation (cancellation, refund, rollback); the
// caller is responsible for not restoring twice.
func (l *Ledger) Restore(ctx context.Context, lines []Line) {
	for _, line := range lines {
		if err := l.products.IncrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			l.log.WithFields(logrus.Fields{
				"product_id": line.ProductID,
				"quantity":   line.Quantity,
			}).WithError(err).Error("failed to restore stock")
		}
	}
}

func (l *Ledger) rollback(ctx context.Context, reserved []Line) {
	if len(reserved) == 0 {
		return
	}
	l.log.WithField("lines", len(reserved)).Warn("rolling back partial reservation")
	l.Restore(ctx, reserved)
}
