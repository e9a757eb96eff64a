package qrpay_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arita10/greenart81-backend/internal/order"
	"github.com/arita10/greenart81-backend/internal/qrpay"
)

var db *pgxpool.Pool

func TestMain(m *testing.M) {
	host := envOr("DB_HOST", "localhost")
	port := envOr("DB_PORT", "5432")
	user := envOr("DB_USER", "postgres")
	password := envOr("DB_PASSWORD", "postgres")
	dbname := envOr("DB_NAME", "greenart81_test")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	pool, err := pgxpool.New(ctx, connStr)
	if err == nil {
		if pingErr := pool.Ping(ctx); pingErr == nil {
			db = pool
		} else {
			pool.Close()
		}
	}
	cancel()

	exitCode := m.Run()

	if db != nil {
		db.Close()
	}

	os.Exit(exitCode)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setup(t *testing.T) qrpay.Repository {
	if db == nil {
		t.Skip("test database is not available")
	}

	truncate := func() {
		_, err := db.Exec(context.Background(),
			"TRUNCATE TABLE payment_slips, payment_qr_codes, order_items, orders, products CASCADE")
		if err != nil {
			t.Fatalf("Failed to truncate tables: %v", err)
		}
	}
	truncate()
	t.Cleanup(truncate)

	return qrpay.NewRepository(db)
}

// seedOrder inserts an order row directly; slip tests only need the
// order's status fields, not its lines.
func seedOrder(t *testing.T, userID uuid.UUID, method order.PaymentMethod) uuid.UUID {
	t.Helper()
	id := uuid.Must(uuid.NewV4())
	_, err := db.Exec(context.Background(), `
		INSERT INTO orders (id, user_id, status, payment_status, payment_method, total_amount, shipping_address, created_at, updated_at)
		VALUES ($1, $2, 'pending', 'unset', $3, 100.00, '42 Garden Street', now(), now())`,
		id, userID, string(method))
	require.NoError(t, err, "Should be able to seed an order")
	return id
}

func orderState(t *testing.T, id uuid.UUID) (status, paymentStatus, method string) {
	t.Helper()
	err := db.QueryRow(context.Background(),
		`SELECT status, payment_status, payment_method FROM orders WHERE id = $1`, id).
		Scan(&status, &paymentStatus, &method)
	require.NoError(t, err)
	return status, paymentStatus, method
}

func pendingSlip(orderID, userID uuid.UUID) *qrpay.Slip {
	return &qrpay.Slip{
		OrderID:      orderID,
		UserID:       userID,
		SlipImageURL: "https://cdn.example.com/slips/1.jpg",
		Amount:       100.00,
	}
}

func TestRepository_CreateSlip(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	userID := uuid.Must(uuid.NewV4())
	orderID := seedOrder(t, userID, order.MethodUnset)

	slip := pendingSlip(orderID, userID)
	err := repo.CreateSlip(ctx, slip)
	assert.NoError(t, err, "CreateSlip should not return an error")
	assert.NotEqual(t, uuid.Nil, slip.ID)
	assert.Equal(t, qrpay.SlipPending, slip.Status)

	status, paymentStatus, method := orderState(t, orderID)
	assert.Equal(t, "pending", status, "Upload must not advance the order status")
	assert.Equal(t, "pending_verification", paymentStatus)
	assert.Equal(t, "qr_manual", method)
}

func TestRepository_CreateSlip_DuplicateRejected(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	userID := uuid.Must(uuid.NewV4())
	orderID := seedOrder(t, userID, order.MethodUnset)

	require.NoError(t, repo.CreateSlip(ctx, pendingSlip(orderID, userID)))

	err := repo.CreateSlip(ctx, pendingSlip(orderID, userID))
	assert.True(t, errors.Is(err, qrpay.ErrSlipExists), "got %v", err)
}

func TestRepository_CreateSlip_AllowsRetryAfterRejection(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	userID := uuid.Must(uuid.NewV4())
	adminID := uuid.Must(uuid.NewV4())
	orderID := seedOrder(t, userID, order.MethodUnset)

	first := pendingSlip(orderID, userID)
	require.NoError(t, repo.CreateSlip(ctx, first))

	_, err := repo.Verify(ctx, first.ID, adminID, qrpay.SlipRejected, "blurry image")
	require.NoError(t, err)

	// A rejected slip no longer blocks the order.
	err = repo.CreateSlip(ctx, pendingSlip(orderID, userID))
	assert.NoError(t, err, "A rejected slip must not block a new upload")
}

func TestRepository_CreateSlip_MethodConflict(t *testing.T) {
	repo := setup(t)

	userID := uuid.Must(uuid.NewV4())
	orderID := seedOrder(t, userID, order.MethodCardGateway)

	err := repo.CreateSlip(context.Background(), pendingSlip(orderID, userID))
	assert.True(t, errors.Is(err, qrpay.ErrMethodConflict), "got %v", err)
}

func TestRepository_CreateSlip_ForeignOrder(t *testing.T) {
	repo := setup(t)

	orderID := seedOrder(t, uuid.Must(uuid.NewV4()), order.MethodUnset)

	err := repo.CreateSlip(context.Background(), pendingSlip(orderID, uuid.Must(uuid.NewV4())))
	assert.True(t, errors.Is(err, order.ErrOrderNotFound), "A foreign order must read as absent")
}

func TestRepository_Verify_Approve(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	userID := uuid.Must(uuid.NewV4())
	adminID := uuid.Must(uuid.NewV4())
	orderID := seedOrder(t, userID, order.MethodUnset)

	slip := pendingSlip(orderID, userID)
	require.NoError(t, repo.CreateSlip(ctx, slip))

	verified, err := repo.Verify(ctx, slip.ID, adminID, qrpay.SlipApproved, "amount matches")
	assert.NoError(t, err, "Verify should not return an error")
	if assert.NotNil(t, verified) {
		assert.Equal(t, qrpay.SlipApproved, verified.Status)
		if assert.NotNil(t, verified.VerifiedBy) {
			assert.Equal(t, adminID, *verified.VerifiedBy)
		}
		assert.NotNil(t, verified.VerifiedAt)
		assert.Equal(t, "amount matches", verified.VerificationNotes)
	}

	status, paymentStatus, method := orderState(t, orderID)
	assert.Equal(t, "processing", status, "Approval must advance the order")
	assert.Equal(t, "completed", paymentStatus)
	assert.Equal(t, "qr_manual", method)
}

func TestRepository_Verify_Reject(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	userID := uuid.Must(uuid.NewV4())
	adminID := uuid.Must(uuid.NewV4())
	orderID := seedOrder(t, userID, order.MethodUnset)

	slip := pendingSlip(orderID, userID)
	require.NoError(t, repo.CreateSlip(ctx, slip))

	verified, err := repo.Verify(ctx, slip.ID, adminID, qrpay.SlipRejected, "wrong amount")
	assert.NoError(t, err)
	assert.Equal(t, qrpay.SlipRejected, verified.Status)

	status, paymentStatus, _ := orderState(t, orderID)
	assert.Equal(t, "pending", status, "Rejection must not cancel the order")
	assert.Equal(t, "failed", paymentStatus)
}

func TestRepository_Verify_ApproveAfterOrderCancelled(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	userID := uuid.Must(uuid.NewV4())
	adminID := uuid.Must(uuid.NewV4())
	orderID := seedOrder(t, userID, order.MethodUnset)

	slip := pendingSlip(orderID, userID)
	require.NoError(t, repo.CreateSlip(ctx, slip))

	// The customer cancelled while the slip waited in the queue.
	_, err := db.Exec(ctx, `UPDATE orders SET status = 'cancelled' WHERE id = $1`, orderID)
	require.NoError(t, err)

	verified, err := repo.Verify(ctx, slip.ID, adminID, qrpay.SlipApproved, "")
	assert.Nil(t, verified)
	assert.True(t, errors.Is(err, qrpay.ErrOrderStateConflict), "got %v", err)

	// The whole decision rolls back: the slip is still pending and the
	// order untouched.
	stored, err := repo.GetSlip(ctx, slip.ID)
	require.NoError(t, err)
	assert.Equal(t, qrpay.SlipPending, stored.Status)

	status, paymentStatus, _ := orderState(t, orderID)
	assert.Equal(t, "cancelled", status)
	assert.Equal(t, "pending_verification", paymentStatus)
}

func TestRepository_Verify_RejectAfterOrderCancelled(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	userID := uuid.Must(uuid.NewV4())
	adminID := uuid.Must(uuid.NewV4())
	orderID := seedOrder(t, userID, order.MethodUnset)

	slip := pendingSlip(orderID, userID)
	require.NoError(t, repo.CreateSlip(ctx, slip))

	_, err := db.Exec(ctx, `UPDATE orders SET status = 'cancelled' WHERE id = $1`, orderID)
	require.NoError(t, err)

	// Rejection carries no order-side promise, so it still goes through.
	verified, err := repo.Verify(ctx, slip.ID, adminID, qrpay.SlipRejected, "order was cancelled")
	assert.NoError(t, err)
	assert.Equal(t, qrpay.SlipRejected, verified.Status)
}

func TestRepository_Verify_OnlyOnce(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	userID := uuid.Must(uuid.NewV4())
	adminID := uuid.Must(uuid.NewV4())
	orderID := seedOrder(t, userID, order.MethodUnset)

	slip := pendingSlip(orderID, userID)
	require.NoError(t, repo.CreateSlip(ctx, slip))

	_, err := repo.Verify(ctx, slip.ID, adminID, qrpay.SlipApproved, "")
	require.NoError(t, err)

	_, err = repo.Verify(ctx, slip.ID, adminID, qrpay.SlipRejected, "changed my mind")
	assert.True(t, errors.Is(err, qrpay.ErrSlipAlreadyVerified), "got %v", err)

	status, paymentStatus, _ := orderState(t, orderID)
	assert.Equal(t, "processing", status, "The first decision must stand")
	assert.Equal(t, "completed", paymentStatus)
}

func TestRepository_ChannelCRUD(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	adminID := uuid.Must(uuid.NewV4())
	c := &qrpay.Channel{
		BankName:       "Ziraat",
		AccountName:    "GreenArt81",
		QRCodeImageURL: "https://cdn.example.com/qr/ziraat.png",
		CreatedBy:      adminID,
	}
	require.NoError(t, repo.CreateChannel(ctx, c))
	assert.True(t, c.IsActive)
	assert.Equal(t, "bank_transfer", c.PaymentType)

	inactive := false
	updated, err := repo.UpdateChannel(ctx, c.ID, qrpay.ChannelUpdate{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "Ziraat", updated.BankName, "Unset fields must keep their stored value")

	active, err := repo.ListActiveChannels(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := repo.ListChannels(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.DeleteChannel(ctx, c.ID))
	err = repo.DeleteChannel(ctx, c.ID)
	assert.True(t, errors.Is(err, qrpay.ErrChannelNotFound), "got %v", err)
}
