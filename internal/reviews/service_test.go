package reviews

import (
	"context"
	"testing"
	"time"

	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// recordingUpdater records stats refresh calls
type recordingUpdater struct{ ids []uuid.UUID }

func (u *recordingUpdater) UpdateStatistics(ctx context.Context, id uuid.UUID) error {
	u.ids = append(u.ids, id)
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Booking{},
		&models.Review{},
		&models.ReviewReport{},
	))
	return db
}

func setupService(t *testing.T) (ReviewService, *gorm.DB, *recordingUpdater) {
	db := setupTestDB(t)
	stats := &recordingUpdater{}
	svc, err := NewService(zap.NewNop(), db, nil, stats)
	require.NoError(t, err)
	return svc, db, stats
}

func completedBooking(t *testing.T, db *gorm.DB, clientID uuid.UUID) *models.Booking {
	now := time.Now()
	booking := &models.Booking{
		ID: uuid.New(), ClientID: clientID, ServiceID: uuid.New(), ProfessionalID: uuid.New(),
		Date:      now.AddDate(0, 0, -3),
		StartTime: "10:00", EndTime: "11:00",
		ClientName: "Carla Muñoz", ClientEmail: "carla@example.com", ClientPhone: "+569",
		Status: models.BookingCompleted, PaymentStatus: models.BookingPaymentCompleted,
		Price: decimal.NewFromInt(20000), CompletedAt: &now,
	}
	require.NoError(t, db.Create(booking).Error)
	return booking
}

func TestCreateReview(t *testing.T) {
	svc, db, stats := setupService(t)
	ctx := context.Background()
	clientID := uuid.New()
	booking := completedBooking(t, db, clientID)

	review, err := svc.Create(ctx, clientID, "Carla Muñoz", &models.CreateReviewRequest{
		BookingID: booking.ID,
		Rating:    5,
		Comment:   "Excelente clase <script>alert(1)</script>",
	})
	require.NoError(t, err)
	assert.Equal(t, booking.ProfessionalID, review.ProfessionalID)
	assert.Equal(t, "Carla", review.ClientDisplayName)
	assert.NotContains(t, review.Comment, "<script>")
	assert.True(t, review.IsApproved)
	assert.Equal(t, []uuid.UUID{booking.ProfessionalID}, stats.ids)

	// one review per booking
	_, err = svc.Create(ctx, clientID, "Carla Muñoz", &models.CreateReviewRequest{
		BookingID: booking.ID, Rating: 4,
	})
	assert.Error(t, err)
}

func TestCreateReviewGuards(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	clientID := uuid.New()
	booking := completedBooking(t, db, clientID)

	// someone else's booking
	_, err := svc.Create(ctx, uuid.New(), "Otro", &models.CreateReviewRequest{
		BookingID: booking.ID, Rating: 5,
	})
	assert.Error(t, err)

	// unknown booking
	_, err = svc.Create(ctx, clientID, "Carla", &models.CreateReviewRequest{
		BookingID: uuid.New(), Rating: 5,
	})
	assert.Error(t, err)

	// booking not completed
	confirmed := completedBooking(t, db, clientID)
	require.NoError(t, db.Model(confirmed).Update("status", models.BookingConfirmed).Error)
	_, err = svc.Create(ctx, clientID, "Carla", &models.CreateReviewRequest{
		BookingID: confirmed.ID, Rating: 5,
	})
	assert.Error(t, err)

	// rating out of range
	other := completedBooking(t, db, clientID)
	_, err = svc.Create(ctx, clientID, "Carla", &models.CreateReviewRequest{
		BookingID: other.ID, Rating: 6,
	})
	assert.Error(t, err)
}

func TestListByProfessional(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	professionalID := uuid.New()

	for i := 0; i < 3; i++ {
		clientID := uuid.New()
		booking := completedBooking(t, db, clientID)
		require.NoError(t, db.Model(booking).Update("professional_id", professionalID).Error)
		_, err := svc.Create(ctx, clientID, "Cliente", &models.CreateReviewRequest{
			BookingID: booking.ID, Rating: 4 + i%2,
		})
		require.NoError(t, err)
	}

	reviews, page, err := svc.ListByProfessional(ctx, professionalID, 1, 2)
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, int64(2), page.TotalPages)

	// hidden reviews drop out of the list
	require.NoError(t, svc.SetApproval(ctx, reviews[0].ID, false, "spam"))
	reviews, page, err = svc.ListByProfessional(ctx, professionalID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
	assert.Equal(t, int64(2), page.Total)
}

func TestRespond(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	clientID := uuid.New()
	booking := completedBooking(t, db, clientID)

	review, err := svc.Create(ctx, clientID, "Carla", &models.CreateReviewRequest{
		BookingID: booking.ID, Rating: 5, Comment: "Muy buena clase",
	})
	require.NoError(t, err)

	// only the reviewed professional can respond
	_, err = svc.Respond(ctx, review.ID, uuid.New(), "gracias")
	assert.Error(t, err)

	responded, err := svc.Respond(ctx, review.ID, booking.ProfessionalID, "¡Gracias Carla!")
	assert.NoError(t, err)
	assert.Equal(t, "¡Gracias Carla!", responded.ProfessionalResponse)
	assert.NotNil(t, responded.ProfessionalResponseAt)

	// a review takes a single response
	_, err = svc.Respond(ctx, review.ID, booking.ProfessionalID, "otra vez")
	assert.Error(t, err)
}

func TestReportsAndModeration(t *testing.T) {
	svc, db, stats := setupService(t)
	ctx := context.Background()
	clientID := uuid.New()
	booking := completedBooking(t, db, clientID)

	review, err := svc.Create(ctx, clientID, "Carla", &models.CreateReviewRequest{
		BookingID: booking.ID, Rating: 1, Comment: "contenido ofensivo",
	})
	require.NoError(t, err)

	reporter := uuid.New()
	report, err := svc.Report(ctx, review.ID, &reporter, &models.ReportReviewRequest{
		Reason: "offensive", Details: "lenguaje inapropiado",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportPending, report.Status)

	got, err := svc.Get(ctx, review.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFlagged)

	open, err := svc.ListOpenReports(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	assert.Error(t, svc.ResolveReport(ctx, report.ID, "bogus", ""))
	require.NoError(t, svc.ResolveReport(ctx, report.ID, models.ReportActionTaken, "review ocultada"))
	assert.Error(t, svc.ResolveReport(ctx, report.ID, models.ReportDismissed, ""))

	statsBefore := len(stats.ids)
	require.NoError(t, svc.SetApproval(ctx, review.ID, false, "offensive"))
	assert.Greater(t, len(stats.ids), statsBefore)

	got, err = svc.Get(ctx, review.ID)
	require.NoError(t, err)
	assert.False(t, got.IsApproved)

	open, err = svc.ListOpenReports(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}
