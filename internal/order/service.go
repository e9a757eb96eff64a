package order

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingFields           = errors.New("missing required fields")
	ErrTotalMismatch           = errors.New("total amount does not match order items")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusShipped: true,
	},
	StatusShipped: {
		StatusDelivered: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

// CanTransition reports whether the order status state machine allows
// moving from one status to another.
func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

type CreateItemInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
}

type CreateInput struct {
	Items           []CreateItemInput `json:"items"`
	ShippingAddress string            `json:"shipping_address"`
	PaymentMethod   PaymentMethod     `json:"payment_method"`
	TotalAmount     float64           `json:"total_amount"`
}

type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*Order, error)
	GetByID(ctx context.Context, id, userID uuid.UUID) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status Status, page, limit int) ([]Order, int, error)
	Cancel(ctx context.Context, id, userID uuid.UUID) (*Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, newStatus Status) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*Order, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: items are required", ErrMissingFields)
	}
	if input.ShippingAddress == "" {
		return nil, fmt.Errorf("%w: shipping address is required", ErrMissingFields)
	}
	if input.PaymentMethod != MethodCardGateway && input.PaymentMethod != MethodQRManual {
		return nil, fmt.Errorf("%w: payment method must be %s or %s", ErrMissingFields, MethodCardGateway, MethodQRManual)
	}
	if input.TotalAmount <= 0 {
		return nil, fmt.Errorf("%w: total amount is required", ErrMissingFields)
	}

	items := make([]OrderItem, 0, len(input.Items))
	var sum float64
	for i, in := range input.Items {
		if in.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: product id is required for item %d", ErrMissingFields, i)
		}
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for product %s must be positive", ErrMissingFields, in.ProductID)
		}
		if in.Price < 0 {
			return nil, fmt.Errorf("%w: price for product %s cannot be negative", ErrMissingFields, in.ProductID)
		}
		sum += float64(in.Quantity) * in.Price
		items = append(items, OrderItem{
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			UnitPrice: in.Price,
		})
	}

	// Unit prices are trusted as the price lock captured at cart time,
	// but the claimed total has to agree with the lines.
	if math.Abs(sum-input.TotalAmount) >= 0.005 {
		return nil, fmt.Errorf("%w: items sum to %.2f, got %.2f", ErrTotalMismatch, sum, input.TotalAmount)
	}

	o := &Order{
		UserID:          userID,
		Items:           items,
		TotalAmount:     input.TotalAmount,
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   input.PaymentMethod,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		log.Warn().Err(err).Stringer("user_id", userID).Msg("service: failed to create order")
		return nil, err
	}

	log.Info().Stringer("order_id", o.ID).Stringer("user_id", userID).Float64("total", o.TotalAmount).Msg("service: order created")
	return o, nil
}

func (s *service) GetByID(ctx context.Context, id, userID uuid.UUID) (*Order, error) {
	return s.repo.GetByIDForUser(ctx, id, userID)
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, status Status, page, limit int) ([]Order, int, error) {
	return s.repo.ListByUser(ctx, userID, status, page, limit)
}

func (s *service) Cancel(ctx context.Context, id, userID uuid.UUID) (*Order, error) {
	// Scope the lookup to the caller so a foreign order reads as absent.
	current, err := s.repo.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusPending {
		return nil, fmt.Errorf("%w: order %s is %s", ErrNotCancellable, id, current.Status)
	}

	cancelled, err := s.repo.Cancel(ctx, id)
	if err != nil {
		log.Warn().Err(err).Stringer("order_id", id).Msg("service: failed to cancel order")
		return nil, err
	}
	cancelled.Items = current.Items

	log.Info().Stringer("order_id", id).Stringer("user_id", userID).Msg("service: order cancelled, stock released")
	return cancelled, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus Status) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if current.Status == newStatus {
		log.Info().Stringer("order_id", id).Stringer("status", newStatus).Msg("service: order status already set, no update needed")
		return nil
	}

	if !CanTransition(current.Status, newStatus) {
		log.Warn().
			Stringer("order_id", id).
			Stringer("current_status", current.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, newStatus)
	}

	if newStatus == StatusCancelled {
		// Cancellation releases stock; it goes through the same
		// transactional path as the customer-initiated cancel.
		if _, err := s.repo.Cancel(ctx, id); err != nil {
			return err
		}
	} else if err := s.repo.UpdateStatus(ctx, id, current.Status, newStatus); err != nil {
		return err
	}

	log.Info().Stringer("order_id", id).Stringer("old_status", current.Status).Stringer("new_status", newStatus).Msg("service: order status updated")
	return nil
}
