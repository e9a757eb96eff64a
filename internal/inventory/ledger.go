package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Reserve locks the product row, checks availability and decrements
// stock. It runs on the caller's transaction so the decrement commits
// or rolls back together with the order rows it accompanies. The row
// lock is held until that transaction finishes, serializing concurrent
// reservations against the same product.
func Reserve(ctx context.Context, tx pgx.Tx, productID uuid.UUID, quantity int) error {
	var stock int
	err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return fmt.Errorf("inventory: failed to lock product %s: %w", productID, err)
	}

	if stock < quantity {
		return fmt.Errorf("%w: product %s has %d, requested %d", ErrInsufficientStock, productID, stock, quantity)
	}

	_, err = tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1`, productID, quantity)
	if err != nil {
		return fmt.Errorf("inventory: failed to decrement stock for product %s: %w", productID, err)
	}
	return nil
}

// Release restores stock on cancellation. Increments commute, so no
// explicit row lock is needed, but the caller's transaction still ties
// the restock to the status change that triggered it.
func Release(ctx context.Context, tx pgx.Tx, productID uuid.UUID, quantity int) error {
	_, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, productID, quantity)
	if err != nil {
		return fmt.Errorf("inventory: failed to restore stock for product %s: %w", productID, err)
	}
	return nil
}
