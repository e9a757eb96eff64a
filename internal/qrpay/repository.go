package qrpay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/arita10/greenart81-backend/internal/order"
	"github.com/arita10/greenart81-backend/internal/reconcile"
)

var (
	ErrChannelNotFound     = errors.New("qr code not found")
	ErrSlipNotFound        = errors.New("payment slip not found")
	ErrSlipExists          = errors.New("payment slip already uploaded for this order")
	ErrSlipAlreadyVerified = errors.New("payment slip already verified")
	ErrMethodConflict      = errors.New("order is being paid through the card gateway")
	ErrOrderStateConflict  = errors.New("order can no longer accept this payment outcome")
)

// ChannelUpdate carries a partial update: nil fields keep the stored value.
type ChannelUpdate struct {
	BankName       *string
	AccountName    *string
	AccountNumber  *string
	QRCodeImageURL *string
	PaymentType    *string
	IsActive       *bool
}

type Repository interface {
	ListChannels(ctx context.Context) ([]Channel, error)
	ListActiveChannels(ctx context.Context) ([]Channel, error)
	CreateChannel(ctx context.Context, c *Channel) error
	UpdateChannel(ctx context.Context, id uuid.UUID, upd ChannelUpdate) (*Channel, error)
	DeleteChannel(ctx context.Context, id uuid.UUID) error

	CreateSlip(ctx context.Context, s *Slip) error
	GetSlip(ctx context.Context, id uuid.UUID) (*Slip, error)
	GetSlipByOrderForUser(ctx context.Context, orderID, userID uuid.UUID) (*Slip, error)
	ListSlipsByUser(ctx context.Context, userID uuid.UUID) ([]Slip, error)
	ListSlips(ctx context.Context, status SlipStatus) ([]Slip, error)
	Verify(ctx context.Context, slipID, adminID uuid.UUID, decision SlipStatus, notes string) (*Slip, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const channelColumns = `id, bank_name, account_name, COALESCE(account_number, ''), qr_code_image_url, payment_type, is_active, created_by, created_at, updated_at`

func scanChannel(row pgx.Row, c *Channel) error {
	return row.Scan(&c.ID, &c.BankName, &c.AccountName, &c.AccountNumber, &c.QRCodeImageURL,
		&c.PaymentType, &c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
}

func (r *postgresRepository) ListChannels(ctx context.Context) ([]Channel, error) {
	return r.listChannels(ctx, `SELECT `+channelColumns+` FROM payment_qr_codes ORDER BY created_at DESC`)
}

func (r *postgresRepository) ListActiveChannels(ctx context.Context) ([]Channel, error) {
	return r.listChannels(ctx, `SELECT `+channelColumns+` FROM payment_qr_codes WHERE is_active = TRUE ORDER BY created_at DESC`)
}

func (r *postgresRepository) listChannels(ctx context.Context, query string) ([]Channel, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query qr codes: %w", err)
	}
	defer rows.Close()

	channels := make([]Channel, 0)
	for rows.Next() {
		var c Channel
		if err := scanChannel(rows, &c); err != nil {
			return nil, fmt.Errorf("repository: failed to scan qr code: %w", err)
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

func (r *postgresRepository) CreateChannel(ctx context.Context, c *Channel) error {
	if c.ID == uuid.Nil {
		genID, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate qr code ID: %w", err)
		}
		c.ID = genID
	}
	if c.PaymentType == "" {
		c.PaymentType = "bank_transfer"
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO payment_qr_codes (id, bank_name, account_name, account_number, qr_code_image_url, payment_type, is_active, created_by)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, TRUE, $7)
		RETURNING created_at, updated_at, is_active`,
		c.ID, c.BankName, c.AccountName, c.AccountNumber, c.QRCodeImageURL, c.PaymentType, c.CreatedBy).
		Scan(&c.CreatedAt, &c.UpdatedAt, &c.IsActive)
	if err != nil {
		return fmt.Errorf("repository: failed to insert qr code: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateChannel(ctx context.Context, id uuid.UUID, upd ChannelUpdate) (*Channel, error) {
	var c Channel
	err := scanChannel(r.db.QueryRow(ctx, `
		UPDATE payment_qr_codes
		SET bank_name = COALESCE($1, bank_name),
		    account_name = COALESCE($2, account_name),
		    account_number = COALESCE($3, account_number),
		    qr_code_image_url = COALESCE($4, qr_code_image_url),
		    payment_type = COALESCE($5, payment_type),
		    is_active = COALESCE($6, is_active),
		    updated_at = now()
		WHERE id = $7
		RETURNING `+channelColumns,
		upd.BankName, upd.AccountName, upd.AccountNumber, upd.QRCodeImageURL, upd.PaymentType, upd.IsActive, id), &c)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: failed to update qr code %s: %w", id, err)
	}
	return &c, nil
}

func (r *postgresRepository) DeleteChannel(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM payment_qr_codes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete qr code %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrChannelNotFound
	}
	return nil
}

// CreateSlip inserts the slip and flips the order to
// pending_verification in one transaction. The order row is locked
// first: ownership, the single-active-slip rule and payment-method
// exclusivity are all checked under that lock.
func (r *postgresRepository) CreateSlip(ctx context.Context, s *Slip) (err error) {
	if s.ID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate slip ID: %w", genErr)
		}
		s.ID = genID
	}
	if s.PaymentDate.IsZero() {
		s.PaymentDate = time.Now().UTC()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", s.OrderID).Msg("Failed to rollback slip transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	var method string
	err = tx.QueryRow(ctx, `SELECT payment_method FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		s.OrderID, s.UserID).Scan(&method)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("repository: failed to lock order %s: %w", s.OrderID, err)
	}
	if order.PaymentMethod(method) == order.MethodCardGateway {
		return ErrMethodConflict
	}

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payment_slips WHERE order_id = $1 AND status <> $2)`,
		s.OrderID, string(SlipRejected)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("repository: failed to check existing slips for order %s: %w", s.OrderID, err)
	}
	if exists {
		return ErrSlipExists
	}

	s.Status = SlipPending
	err = tx.QueryRow(ctx, `
		INSERT INTO payment_slips (id, order_id, user_id, qr_code_id, slip_image_url, amount, payment_date, transaction_reference, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10)
		RETURNING created_at, updated_at`,
		s.ID, s.OrderID, s.UserID, s.ChannelID, s.SlipImageURL, s.Amount, s.PaymentDate,
		s.TransactionReference, s.Notes, string(s.Status)).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		// The partial unique index backs up the exists-check.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrSlipExists
		}
		return fmt.Errorf("repository: failed to insert slip for order %s: %w", s.OrderID, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET payment_status = $2, payment_method = $3, updated_at = now()
		WHERE id = $1`,
		s.OrderID, string(order.PaymentPendingVerification), string(order.MethodQRManual))
	if err != nil {
		return fmt.Errorf("repository: failed to update order %s for slip upload: %w", s.OrderID, err)
	}

	return nil
}

const slipColumns = `id, order_id, user_id, qr_code_id, slip_image_url, amount, payment_date,
	COALESCE(transaction_reference, ''), COALESCE(notes, ''), status, verified_by, verified_at,
	COALESCE(verification_notes, ''), created_at, updated_at`

func scanSlip(row pgx.Row, s *Slip) error {
	return row.Scan(&s.ID, &s.OrderID, &s.UserID, &s.ChannelID, &s.SlipImageURL, &s.Amount, &s.PaymentDate,
		&s.TransactionReference, &s.Notes, &s.Status, &s.VerifiedBy, &s.VerifiedAt,
		&s.VerificationNotes, &s.CreatedAt, &s.UpdatedAt)
}

func (r *postgresRepository) GetSlip(ctx context.Context, id uuid.UUID) (*Slip, error) {
	var s Slip
	err := scanSlip(r.db.QueryRow(ctx, `SELECT `+slipColumns+` FROM payment_slips WHERE id = $1`, id), &s)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select slip %s: %w", id, err)
	}
	return &s, nil
}

func (r *postgresRepository) GetSlipByOrderForUser(ctx context.Context, orderID, userID uuid.UUID) (*Slip, error) {
	var s Slip
	err := scanSlip(r.db.QueryRow(ctx, `
		SELECT `+slipColumns+` FROM payment_slips
		WHERE order_id = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT 1`, orderID, userID), &s)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select slip for order %s: %w", orderID, err)
	}
	return &s, nil
}

func (r *postgresRepository) ListSlipsByUser(ctx context.Context, userID uuid.UUID) ([]Slip, error) {
	return r.listSlips(ctx, `SELECT `+slipColumns+` FROM payment_slips WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *postgresRepository) ListSlips(ctx context.Context, status SlipStatus) ([]Slip, error) {
	if status == "" {
		return r.listSlips(ctx, `SELECT `+slipColumns+` FROM payment_slips ORDER BY created_at DESC`)
	}
	return r.listSlips(ctx, `SELECT `+slipColumns+` FROM payment_slips WHERE status = $1 ORDER BY created_at DESC`, string(status))
}

func (r *postgresRepository) listSlips(ctx context.Context, query string, args ...any) ([]Slip, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query slips: %w", err)
	}
	defer rows.Close()

	slips := make([]Slip, 0)
	for rows.Next() {
		var s Slip
		if err := scanSlip(rows, &s); err != nil {
			return nil, fmt.Errorf("repository: failed to scan slip: %w", err)
		}
		slips = append(slips, s)
	}
	return slips, rows.Err()
}

// Verify locks the slip, records the admin decision and applies the
// matching payment outcome to the order in the same transaction.
func (r *postgresRepository) Verify(ctx context.Context, slipID, adminID uuid.UUID, decision SlipStatus, notes string) (s *Slip, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("slip_id", slipID).Msg("Failed to rollback verify transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				s = nil
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	var status string
	var orderID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT status, order_id FROM payment_slips WHERE id = $1 FOR UPDATE`, slipID).
		Scan(&status, &orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: failed to lock slip %s: %w", slipID, err)
	}
	if SlipStatus(status) != SlipPending {
		return nil, fmt.Errorf("%w: slip %s is %s", ErrSlipAlreadyVerified, slipID, status)
	}

	updated := &Slip{}
	err = scanSlip(tx.QueryRow(ctx, `
		UPDATE payment_slips
		SET status = $2, verified_by = $3, verified_at = now(), verification_notes = NULLIF($4, ''), updated_at = now()
		WHERE id = $1
		RETURNING `+slipColumns,
		slipID, string(decision), adminID, notes), updated)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to update slip %s: %w", slipID, err)
	}

	outcome := reconcile.OutcomeFailure
	if decision == SlipApproved {
		outcome = reconcile.OutcomeSuccess
	}
	var applied bool
	applied, err = reconcile.Apply(ctx, tx, orderID, order.MethodQRManual, outcome)
	if err != nil {
		return nil, err
	}
	if !applied && decision == SlipApproved {
		// The order left pending while the slip waited (e.g. it was
		// cancelled). Rolling back keeps the slip pending so the admin
		// sees the conflict instead of a silently dangling approval.
		return nil, fmt.Errorf("%w: order %s", ErrOrderStateConflict, orderID)
	}

	return updated, nil
}
