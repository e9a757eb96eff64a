package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/arita10/greenart81-backend/internal/order"
	"github.com/arita10/greenart81-backend/internal/reconcile"
)

var ErrPaymentNotFound = errors.New("no payment found for this order")

type Repository interface {
	// RecordCallback appends the audit row and applies the outcome to
	// the order in one transaction. The returned bool reports whether
	// the order actually transitioned.
	RecordCallback(ctx context.Context, t *Transaction, outcome reconcile.Outcome) (bool, error)
	LatestByOrder(ctx context.Context, orderID uuid.UUID) (*Transaction, error)
	ProductNames(ctx context.Context, ids []uuid.UUID) (map[string]string, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) RecordCallback(ctx context.Context, t *Transaction, outcome reconcile.Outcome) (applied bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", t.OrderID).Msg("Failed to rollback callback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				applied = false
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	// Audit row is appended regardless of outcome, for dispute resolution.
	err = tx.QueryRow(ctx, `
		INSERT INTO payment_transactions (order_id, payment_gateway, transaction_id, status, amount, response_data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		t.OrderID, t.Gateway, t.TransactionID, t.Status, t.Amount, t.ResponseData).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return false, order.ErrOrderNotFound
		}
		return false, fmt.Errorf("repository: failed to insert payment transaction for order %s: %w", t.OrderID, err)
	}

	applied, err = reconcile.Apply(ctx, tx, t.OrderID, order.MethodCardGateway, outcome)
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *postgresRepository) LatestByOrder(ctx context.Context, orderID uuid.UUID) (*Transaction, error) {
	var t Transaction
	err := r.db.QueryRow(ctx, `
		SELECT id, order_id, payment_gateway, transaction_id, status, amount, response_data, created_at
		FROM payment_transactions
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, orderID).
		Scan(&t.ID, &t.OrderID, &t.Gateway, &t.TransactionID, &t.Status, &t.Amount, &t.ResponseData, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select latest payment for order %s: %w", orderID, err)
	}
	return &t, nil
}

func (r *postgresRepository) ProductNames(ctx context.Context, ids []uuid.UUID) (map[string]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query product names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product name: %w", err)
		}
		names[id.String()] = name
	}
	return names, rows.Err()
}
