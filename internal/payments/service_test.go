package payments

import (
	"context"
	"testing"
	"time"

	"github.com/conecta-cl/marketplace/pkg/metrics"
	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// recordingConfirmer records the bookings it was asked to confirm
type recordingConfirmer struct{ confirmed []uuid.UUID }

func (c *recordingConfirmer) Confirm(ctx context.Context, id uuid.UUID) error {
	c.confirmed = append(c.confirmed, id)
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Booking{},
		&models.Payment{},
		&models.Payout{},
		&models.PayoutBooking{},
	))
	return db
}

func setupService(t *testing.T) (PaymentService, *gorm.DB, *recordingConfirmer) {
	db := setupTestDB(t)
	confirmer := &recordingConfirmer{}
	svc, err := NewService(zap.NewNop(), db, nil, confirmer)
	require.NoError(t, err)
	return svc, db, confirmer
}

func createBooking(t *testing.T, db *gorm.DB, status string, price int64) *models.Booking {
	commission := decimal.NewFromInt(price).Div(decimal.NewFromInt(10)).Round(2)
	paymentStatus := models.BookingPaymentPending
	if status == models.BookingCompleted || status == models.BookingConfirmed {
		paymentStatus = models.BookingPaymentCompleted
	}
	booking := &models.Booking{
		ID: uuid.New(), ClientID: uuid.New(), ServiceID: uuid.New(), ProfessionalID: uuid.New(),
		Date:      time.Now().AddDate(0, 0, 2),
		StartTime: "10:00", EndTime: "11:00",
		ClientName: "Carla", ClientEmail: "carla@example.com", ClientPhone: "+569",
		Status:               status,
		Price:                decimal.NewFromInt(price),
		CommissionPercentage: decimal.NewFromInt(10),
		CommissionAmount:     commission,
		PaymentStatus:        paymentStatus,
	}
	require.NoError(t, db.Create(booking).Error)
	return booking
}

func TestCreatePayment(t *testing.T) {
	svc, db, _ := setupService(t)
	booking := createBooking(t, db, models.BookingPendingPayment, 20000)
	ctx := context.Background()

	payment, err := svc.CreatePayment(ctx, booking.ID, "flow")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(20000)))
	assert.Equal(t, "CLP", payment.Currency)

	// one payment per booking
	_, err = svc.CreatePayment(ctx, booking.ID, "flow")
	assert.Error(t, err)

	// bookings not awaiting payment are rejected
	confirmed := createBooking(t, db, models.BookingConfirmed, 20000)
	_, err = svc.CreatePayment(ctx, confirmed.ID, "flow")
	assert.Error(t, err)

	_, err = svc.CreatePayment(ctx, uuid.New(), "flow")
	assert.Error(t, err)
}

func TestCompletePaymentConfirmsBooking(t *testing.T) {
	svc, db, confirmer := setupService(t)
	booking := createBooking(t, db, models.BookingPendingPayment, 20000)
	ctx := context.Background()

	payment, err := svc.CreatePayment(ctx, booking.ID, "flow")
	require.NoError(t, err)

	require.NoError(t, svc.MarkProcessing(ctx, payment.ID))
	assert.Error(t, svc.MarkProcessing(ctx, payment.ID))

	completed, err := svc.CompletePayment(ctx, payment.ID, &models.CompletePaymentRequest{
		GatewayTransactionID: "flow-tx-123",
		PaymentMethod:        "credit_card",
	})
	assert.NoError(t, err)
	assert.True(t, completed.IsSuccessful())
	assert.NotNil(t, completed.CompletedAt)
	assert.Equal(t, []uuid.UUID{booking.ID}, confirmer.confirmed)

	// cannot complete twice
	_, err = svc.CompletePayment(ctx, payment.ID, &models.CompletePaymentRequest{})
	assert.Error(t, err)
}

func TestFailPayment(t *testing.T) {
	svc, db, confirmer := setupService(t)
	booking := createBooking(t, db, models.BookingPendingPayment, 20000)
	ctx := context.Background()

	payment, err := svc.CreatePayment(ctx, booking.ID, "flow")
	require.NoError(t, err)

	failed, err := svc.FailPayment(ctx, payment.ID, "insufficient funds")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, failed.Status)
	assert.Equal(t, "insufficient funds", failed.ErrorMessage)
	assert.Empty(t, confirmer.confirmed)

	var got models.Booking
	require.NoError(t, db.First(&got, "id = ?", booking.ID).Error)
	assert.Equal(t, models.BookingPaymentFailed, got.PaymentStatus)
}

func TestPartialRefundsAccumulate(t *testing.T) {
	svc, db, _ := setupService(t)
	booking := createBooking(t, db, models.BookingPendingPayment, 20000)
	ctx := context.Background()

	payment, err := svc.CreatePayment(ctx, booking.ID, "flow")
	require.NoError(t, err)
	_, err = svc.CompletePayment(ctx, payment.ID, &models.CompletePaymentRequest{})
	require.NoError(t, err)

	refundedCounter := metrics.PaymentsProcessed.WithLabelValues("flow", models.PaymentRefunded)
	refundedBefore := testutil.ToFloat64(refundedCounter)

	five := decimal.NewFromInt(5000)
	refunded, err := svc.Refund(ctx, payment.ID, &models.RefundRequest{Amount: &five, Reason: "clase reducida"})
	assert.NoError(t, err)
	assert.True(t, refunded.RefundAmount.Equal(five))
	assert.Equal(t, models.PaymentCompleted, refunded.Status)

	// a partial refund leaves the payment completed, so the refunded
	// counter must not move yet
	assert.Equal(t, refundedBefore, testutil.ToFloat64(refundedCounter))

	// exceeding the outstanding amount is rejected
	tooMuch := decimal.NewFromInt(16000)
	_, err = svc.Refund(ctx, payment.ID, &models.RefundRequest{Amount: &tooMuch})
	assert.Error(t, err)

	// nil amount refunds the outstanding balance and closes the payment
	refunded, err = svc.Refund(ctx, payment.ID, &models.RefundRequest{})
	assert.NoError(t, err)
	assert.True(t, refunded.RefundAmount.Equal(decimal.NewFromInt(20000)))
	assert.Equal(t, models.PaymentRefunded, refunded.Status)
	assert.Equal(t, refundedBefore+1, testutil.ToFloat64(refundedCounter))

	var got models.Booking
	require.NoError(t, db.First(&got, "id = ?", booking.ID).Error)
	assert.Equal(t, models.BookingPaymentRefunded, got.PaymentStatus)

	// a refunded payment cannot be refunded again
	_, err = svc.Refund(ctx, payment.ID, &models.RefundRequest{})
	assert.Error(t, err)
}

func TestCreatePayout(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	professionalID := uuid.New()

	var bookingIDs []uuid.UUID
	for i := 0; i < 2; i++ {
		b := createBooking(t, db, models.BookingCompleted, 20000)
		require.NoError(t, db.Model(b).Update("professional_id", professionalID).Error)
		bookingIDs = append(bookingIDs, b.ID)
	}
	// not payable: still confirmed
	pending := createBooking(t, db, models.BookingConfirmed, 20000)
	require.NoError(t, db.Model(pending).Update("professional_id", professionalID).Error)

	payout, err := svc.CreatePayout(ctx, professionalID, "Banco de Chile", "123456789", "Ana Rojas")
	assert.NoError(t, err)
	// 2 × (20000 − 2000)
	assert.True(t, payout.Amount.Equal(decimal.NewFromInt(36000)), "got %s", payout.Amount)
	assert.Equal(t, models.PayoutPending, payout.Status)

	var links []models.PayoutBooking
	require.NoError(t, db.Where("payout_id = ?", payout.ID).Find(&links).Error)
	assert.Len(t, links, 2)

	// the same bookings cannot enter a second payout
	_, err = svc.CreatePayout(ctx, professionalID, "Banco de Chile", "123456789", "Ana Rojas")
	assert.Error(t, err)

	_ = bookingIDs
}

func TestPayoutLifecycle(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	professionalID := uuid.New()

	b := createBooking(t, db, models.BookingCompleted, 20000)
	require.NoError(t, db.Model(b).Update("professional_id", professionalID).Error)

	payout, err := svc.CreatePayout(ctx, professionalID, "Banco Estado", "987654321", "Ana Rojas")
	require.NoError(t, err)

	require.NoError(t, svc.CompletePayout(ctx, payout.ID, "transfer-555"))
	got, err := svc.GetPayout(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutCompleted, got.Status)
	assert.Equal(t, "transfer-555", got.TransactionReference)
	assert.NotNil(t, got.CompletedAt)

	// terminal payouts cannot transition again
	assert.Error(t, svc.CompletePayout(ctx, payout.ID, "transfer-556"))
	assert.Error(t, svc.FailPayout(ctx, payout.ID, ""))
}

func TestFailPayoutReleasesBookings(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	professionalID := uuid.New()

	b := createBooking(t, db, models.BookingCompleted, 20000)
	require.NoError(t, db.Model(b).Update("professional_id", professionalID).Error)

	payout, err := svc.CreatePayout(ctx, professionalID, "Banco Estado", "987654321", "Ana Rojas")
	require.NoError(t, err)

	require.NoError(t, svc.FailPayout(ctx, payout.ID, "cuenta inválida"))

	var links []models.PayoutBooking
	require.NoError(t, db.Where("payout_id = ?", payout.ID).Find(&links).Error)
	assert.Empty(t, links)

	// the released booking is payable again
	retry, err := svc.CreatePayout(ctx, professionalID, "Banco Estado", "111222333", "Ana Rojas")
	assert.NoError(t, err)
	assert.True(t, retry.Amount.Equal(decimal.NewFromInt(18000)))

	payouts, err := svc.ListPayouts(ctx, professionalID)
	require.NoError(t, err)
	assert.Len(t, payouts, 2)
}
