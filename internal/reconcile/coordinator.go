// Package reconcile turns payment outcomes into order status
// transitions. Both confirmation paths (gateway callback and manual
// slip verification) feed the same guarded update, so the transition
// rules live in exactly one place.
package reconcile

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arita10/greenart81-backend/internal/order"
)

type Outcome int

const (
	// OutcomeUnknown covers gateway statuses the system does not
	// understand: the order is left untouched.
	OutcomeUnknown Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Apply records a payment outcome against an order on the caller's
// transaction.
//
// Success advances pending orders to processing and marks the payment
// completed. Failure marks the payment failed without moving the order
// backwards; cancellation stays a human decision.
//
// Both updates are guarded, so replays and races are no-ops: success
// only matches orders still pending, failure never downgrades a
// completed payment, and an order claimed by one payment method never
// accepts outcomes from the other (first method set wins).
//
// The returned bool reports whether a row was actually transitioned.
func Apply(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, method order.PaymentMethod, outcome Outcome) (bool, error) {
	switch outcome {
	case OutcomeSuccess:
		ct, err := tx.Exec(ctx, `
			UPDATE orders
			SET status = $2, payment_status = $3, payment_method = $4, updated_at = now()
			WHERE id = $1
			  AND status = $5
			  AND payment_method IN ('unset', $4)`,
			orderID, string(order.StatusProcessing), string(order.PaymentCompleted),
			string(method), string(order.StatusPending))
		if err != nil {
			return false, fmt.Errorf("reconcile: failed to apply success outcome for order %s: %w", orderID, err)
		}
		return ct.RowsAffected() > 0, nil

	case OutcomeFailure:
		ct, err := tx.Exec(ctx, `
			UPDATE orders
			SET payment_status = $2, payment_method = $3, updated_at = now()
			WHERE id = $1
			  AND payment_status <> $4
			  AND payment_method IN ('unset', $3)`,
			orderID, string(order.PaymentFailed), string(method), string(order.PaymentCompleted))
		if err != nil {
			return false, fmt.Errorf("reconcile: failed to apply failure outcome for order %s: %w", orderID, err)
		}
		return ct.RowsAffected() > 0, nil

	default:
		return false, nil
	}
}
