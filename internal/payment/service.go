package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/arita10/greenart81-backend/internal/order"
	"github.com/arita10/greenart81-backend/internal/reconcile"
)

var ErrInvalidSignature = errors.New("invalid signature")

const gatewayName = "shopier"

// OrderStore is the slice of the order repository this service needs.
type OrderStore interface {
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*order.Order, error)
}

// ReplayGuard short-circuits exact webhook replays. Implementations
// are best effort; errors are logged and treated as "not seen".
type ReplayGuard interface {
	Seen(ctx context.Context, transactionID string) (bool, error)
	Mark(ctx context.Context, transactionID string) error
}

// CallbackResult is what the webhook handler acknowledges. Replayed
// and already-reconciled callbacks still produce a success result so
// the gateway stops retrying.
type CallbackResult struct {
	OrderID uuid.UUID `json:"order_id"`
	Outcome string    `json:"outcome"`
	Applied bool      `json:"applied"`
}

type Service interface {
	Initialize(ctx context.Context, orderID, userID uuid.UUID, buyer Buyer) (*Form, error)
	HandleCallback(ctx context.Context, raw []byte) (*CallbackResult, error)
	StatusByOrder(ctx context.Context, orderID, userID uuid.UUID) (*Transaction, error)
}

type service struct {
	repo    Repository
	orders  OrderStore
	gateway *Gateway
	guard   ReplayGuard // nil when redis is not configured
}

func NewService(repo Repository, orders OrderStore, gateway *Gateway, guard ReplayGuard) Service {
	return &service{repo: repo, orders: orders, gateway: gateway, guard: guard}
}

func (s *service) Initialize(ctx context.Context, orderID, userID uuid.UUID, buyer Buyer) (*Form, error) {
	o, err := s.orders.GetByIDForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ProductID)
	}
	names, err := s.repo.ProductNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	form := s.gateway.BuildForm(o, buyer, names)
	log.Info().Stringer("order_id", orderID).Msg("service: payment form initialized")
	return &form, nil
}

// HandleCallback verifies the webhook signature, maps the gateway
// status vocabulary to an outcome and records it. Replays are no-ops,
// not errors: the gateway retries until it sees success.
func (s *service) HandleCallback(ctx context.Context, raw []byte) (*CallbackResult, error) {
	var cb Callback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, fmt.Errorf("%w: malformed payload", ErrInvalidSignature)
	}

	// Nothing mutates before this gate.
	if !s.gateway.VerifyCallback(cb) {
		log.Warn().Str("transaction_id", cb.PaymentID).Msg("service: callback signature mismatch")
		return nil, ErrInvalidSignature
	}

	outcome := mapOutcome(cb)

	// Past the signature gate everything is acknowledged so the
	// gateway stops retrying; a callback naming no known order is
	// logged and dropped rather than bounced.
	orderID, err := uuid.FromString(cb.PlatformOrderID)
	if err != nil {
		log.Warn().
			Str("platform_order_id", cb.PlatformOrderID).
			Str("transaction_id", cb.PaymentID).
			Msg("service: signed callback references an unparseable order id")
		return &CallbackResult{Outcome: outcome.String(), Applied: false}, nil
	}

	if s.guard != nil && cb.PaymentID != "" {
		seen, guardErr := s.guard.Seen(ctx, cb.PaymentID)
		if guardErr != nil {
			log.Warn().Err(guardErr).Str("transaction_id", cb.PaymentID).Msg("service: replay guard unavailable, falling through to database")
		} else if seen {
			log.Info().Stringer("order_id", orderID).Str("transaction_id", cb.PaymentID).Msg("service: callback replay suppressed")
			return &CallbackResult{OrderID: orderID, Outcome: outcome.String(), Applied: false}, nil
		}
	}

	amount, _ := strconv.ParseFloat(cb.TotalOrderValue, 64)
	t := &Transaction{
		OrderID:       orderID,
		Gateway:       gatewayName,
		TransactionID: cb.PaymentID,
		Status:        cb.PaymentStatus,
		Amount:        amount,
		ResponseData:  raw,
	}

	applied, err := s.repo.RecordCallback(ctx, t, outcome)
	if errors.Is(err, order.ErrOrderNotFound) {
		log.Warn().
			Stringer("order_id", orderID).
			Str("transaction_id", cb.PaymentID).
			Msg("service: signed callback references an unknown order")
		return &CallbackResult{OrderID: orderID, Outcome: outcome.String(), Applied: false}, nil
	}
	if err != nil {
		return nil, err
	}

	if s.guard != nil && cb.PaymentID != "" {
		// Marked only after commit so a failed attempt stays retryable.
		if guardErr := s.guard.Mark(ctx, cb.PaymentID); guardErr != nil {
			log.Warn().Err(guardErr).Str("transaction_id", cb.PaymentID).Msg("service: failed to mark callback as processed")
		}
	}

	log.Info().
		Stringer("order_id", orderID).
		Str("transaction_id", cb.PaymentID).
		Str("outcome", outcome.String()).
		Bool("applied", applied).
		Msg("service: gateway callback processed")

	return &CallbackResult{OrderID: orderID, Outcome: outcome.String(), Applied: applied}, nil
}

func (s *service) StatusByOrder(ctx context.Context, orderID, userID uuid.UUID) (*Transaction, error) {
	if _, err := s.orders.GetByIDForUser(ctx, orderID, userID); err != nil {
		return nil, err
	}
	return s.repo.LatestByOrder(ctx, orderID)
}

// mapOutcome translates the gateway status vocabulary. Anything
// unrecognized is deliberately ambiguous: the order stays pending.
func mapOutcome(cb Callback) reconcile.Outcome {
	switch {
	case cb.Status == "1" || cb.PaymentStatus == "success":
		return reconcile.OutcomeSuccess
	case cb.PaymentStatus == "failed":
		return reconcile.OutcomeFailure
	default:
		return reconcile.OutcomeUnknown
	}
}
