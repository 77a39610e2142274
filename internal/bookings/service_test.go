package bookings

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/conecta-cl/marketplace/internal/messaging"
	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// capturePublisher records published topics for assertions
type capturePublisher struct {
	mu     sync.Mutex
	topics []messaging.Topic
}

func (p *capturePublisher) Publish(ctx context.Context, topic messaging.Topic, key string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) count(topic messaging.Topic) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.topics {
		if t == topic {
			n++
		}
	}
	return n
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Professional{},
		&models.AvailabilityBlock{},
		&models.BlockedDate{},
		&models.Client{},
		&models.Service{},
		&models.Booking{},
		&models.BookingNote{},
	))
	return db
}

func setupService(t *testing.T) (BookingService, *gorm.DB, *capturePublisher) {
	db := setupTestDB(t)
	pub := &capturePublisher{}
	svc, err := NewService(zap.NewNop(), db, pub, DefaultConfig(), nil, nil, nil)
	require.NoError(t, err)
	return svc, db, pub
}

// seedListing creates a verified professional available every day of the week
// and one active 60-minute service.
func seedListing(t *testing.T, db *gorm.DB) (*models.Professional, *models.Service) {
	prof := &models.Professional{
		ID: uuid.New(), UserID: uuid.New(), FullName: "Ana Rojas",
		Phone: "+56911111111", PrimarySpecialty: "yoga", Comuna: "providencia",
		UsernameSlug:       "ana-rojas-" + uuid.NewString()[:8],
		VerificationStatus: models.VerificationVerified, IsActive: true,
	}
	require.NoError(t, db.Create(prof).Error)
	for day := 0; day < 7; day++ {
		require.NoError(t, db.Create(&models.AvailabilityBlock{
			ID: uuid.New(), ProfessionalID: prof.ID,
			DayOfWeek: day, StartTime: "08:00", EndTime: "20:00", IsActive: true,
		}).Error)
	}
	svc := &models.Service{
		ID: uuid.New(), ProfessionalID: prof.ID, Name: "Yoga Vinyasa",
		ServiceType: "individual", MaxParticipants: 1, Modality: "presencial",
		DurationMinutes: 60, Level: "todos",
		Price: decimal.NewFromInt(20000), IsActive: true,
	}
	require.NoError(t, db.Create(svc).Error)
	return prof, svc
}

// day returns midnight UTC of the local calendar day n days ahead, matching
// how request dates are parsed.
func day(n int) time.Time {
	d := time.Now().AddDate(0, 0, n)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func bookingRequest(serviceID uuid.UUID, daysAhead int, startTime string) *models.CreateBookingRequest {
	return &models.CreateBookingRequest{
		ServiceID:   serviceID,
		Date:        time.Now().AddDate(0, 0, daysAhead).Format("2006-01-02"),
		StartTime:   startTime,
		ClientName:  "Carla Muñoz",
		ClientEmail: "carla@example.com",
		ClientPhone: "+56944444444",
	}
}

func TestCreateBooking(t *testing.T) {
	svc, db, pub := setupService(t)
	_, listing := seedListing(t, db)
	ctx := context.Background()

	booking, err := svc.Create(ctx, uuid.New(), bookingRequest(listing.ID, 3, "10:00"))
	require.NoError(t, err)
	assert.Equal(t, models.BookingPendingPayment, booking.Status)
	assert.Equal(t, "11:00", booking.EndTime)
	assert.True(t, booking.Price.Equal(decimal.NewFromInt(20000)))
	assert.True(t, booking.CommissionAmount.Equal(decimal.NewFromInt(2000)), "got %s", booking.CommissionAmount)
	assert.Equal(t, 1, pub.count(messaging.TopicBookingCreated))
}

func TestCreateBookingRejectsPastSlot(t *testing.T) {
	svc, db, _ := setupService(t)
	_, listing := seedListing(t, db)

	_, err := svc.Create(context.Background(), uuid.New(), bookingRequest(listing.ID, -1, "10:00"))
	assert.Error(t, err)
}

func TestCreateBookingOutsideAvailability(t *testing.T) {
	svc, db, _ := setupService(t)
	_, listing := seedListing(t, db)

	// availability ends at 20:00; a 60-minute session at 19:30 runs past it
	_, err := svc.Create(context.Background(), uuid.New(), bookingRequest(listing.ID, 3, "19:30"))
	assert.Error(t, err)

	_, err = svc.Create(context.Background(), uuid.New(), bookingRequest(listing.ID, 3, "06:00"))
	assert.Error(t, err)
}

func TestCreateBookingOnBlockedDate(t *testing.T) {
	svc, db, _ := setupService(t)
	prof, listing := seedListing(t, db)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.BlockedDate{
		ID: uuid.New(), ProfessionalID: prof.ID,
		Date: day(4), AllDay: true, Reason: "vacaciones",
	}).Error)

	_, err := svc.Create(ctx, uuid.New(), bookingRequest(listing.ID, 4, "10:00"))
	assert.Error(t, err)

	// partial block only collides with overlapping slots
	start, end := "09:00", "12:00"
	require.NoError(t, db.Create(&models.BlockedDate{
		ID: uuid.New(), ProfessionalID: prof.ID,
		Date: day(5), AllDay: false, StartTime: &start, EndTime: &end,
	}).Error)

	_, err = svc.Create(ctx, uuid.New(), bookingRequest(listing.ID, 5, "10:00"))
	assert.Error(t, err)
	_, err = svc.Create(ctx, uuid.New(), bookingRequest(listing.ID, 5, "14:00"))
	assert.NoError(t, err)
}

func TestCreateBookingConflicts(t *testing.T) {
	svc, db, _ := setupService(t)
	_, listing := seedListing(t, db)
	ctx := context.Background()

	_, err := svc.Create(ctx, uuid.New(), bookingRequest(listing.ID, 3, "10:00"))
	require.NoError(t, err)

	// same slot
	_, err = svc.Create(ctx, uuid.New(), bookingRequest(listing.ID, 3, "10:00"))
	assert.Error(t, err)

	// overlapping slot
	_, err = svc.Create(ctx, uuid.New(), bookingRequest(listing.ID, 3, "10:30"))
	assert.Error(t, err)

	// adjacent slot is fine
	_, err = svc.Create(ctx, uuid.New(), bookingRequest(listing.ID, 3, "11:00"))
	assert.NoError(t, err)
}

func TestCreateBookingChecksCapacityAndListing(t *testing.T) {
	svc, db, _ := setupService(t)
	prof, listing := seedListing(t, db)
	ctx := context.Background()

	req := bookingRequest(listing.ID, 3, "10:00")
	req.Participants = 2
	_, err := svc.Create(ctx, uuid.New(), req)
	assert.Error(t, err)

	// inactive service
	require.NoError(t, db.Model(&models.Service{}).Where("id = ?", listing.ID).Update("is_active", false).Error)
	_, err = svc.Create(ctx, uuid.New(), bookingRequest(listing.ID, 3, "10:00"))
	assert.Error(t, err)
	require.NoError(t, db.Model(&models.Service{}).Where("id = ?", listing.ID).Update("is_active", true).Error)

	// unverified professional
	require.NoError(t, db.Model(&models.Professional{}).Where("id = ?", prof.ID).
		Update("verification_status", models.VerificationPending).Error)
	_, err = svc.Create(ctx, uuid.New(), bookingRequest(listing.ID, 3, "10:00"))
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	svc, db, _ := setupService(t)
	_, listing := seedListing(t, db)
	ctx := context.Background()

	booking, err := svc.Create(ctx, uuid.New(), bookingRequest(listing.ID, 3, "10:00"))
	require.NoError(t, err)

	require.NoError(t, svc.Confirm(ctx, booking.ID))

	got, err := svc.Get(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, got.Status)
	assert.Equal(t, models.BookingPaymentCompleted, got.PaymentStatus)

	// cannot confirm twice
	assert.Error(t, svc.Confirm(ctx, booking.ID))
}

func TestCancelWindow(t *testing.T) {
	svc, db, pub := setupService(t)
	prof, listing := seedListing(t, db)
	ctx := context.Background()

	// far in the future: client may cancel
	booking, err := svc.Create(ctx, uuid.New(), bookingRequest(listing.ID, 3, "10:00"))
	require.NoError(t, err)
	cancelled, err := svc.Cancel(ctx, booking.ID, false, "cambio de planes")
	assert.NoError(t, err)
	assert.Equal(t, models.BookingCancelledByClient, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 1, pub.count(messaging.TopicBookingCancelled))

	// inside the 24h window: client cannot, professional can
	nearBooking := bookingAt(t, db, prof.ID, listing.ID, time.Now().Add(3*time.Hour))

	_, err = svc.Cancel(ctx, nearBooking.ID, false, "")
	assert.Error(t, err)

	cancelled, err = svc.Cancel(ctx, nearBooking.ID, true, "emergencia")
	assert.NoError(t, err)
	assert.Equal(t, models.BookingCancelledByProfessional, cancelled.Status)

	// terminal bookings cannot be cancelled again
	_, err = svc.Cancel(ctx, nearBooking.ID, true, "")
	assert.Error(t, err)
}

// The window compares wall-clock instants, so a booking 14h out must fall
// inside the 24h window in every server timezone, not only UTC.
func TestCancelWindowWallClock(t *testing.T) {
	svc, db, _ := setupService(t)
	prof, listing := seedListing(t, db)
	ctx := context.Background()

	inside := bookingAt(t, db, prof.ID, listing.ID, time.Now().Add(14*time.Hour))
	_, err := svc.Cancel(ctx, inside.ID, false, "")
	assert.Error(t, err)

	outside := bookingAt(t, db, prof.ID, listing.ID, time.Now().Add(26*time.Hour))
	cancelled, err := svc.Cancel(ctx, outside.ID, false, "cambio de planes")
	assert.NoError(t, err)
	assert.Equal(t, models.BookingCancelledByClient, cancelled.Status)
}

// bookingAt inserts a confirmed booking starting at the given local instant,
// storing the date the way request parsing does (midnight UTC of the local
// calendar day) and the start time as a local "HH:MM" string.
func bookingAt(t *testing.T, db *gorm.DB, profID, serviceID uuid.UUID, start time.Time) *models.Booking {
	booking := &models.Booking{
		ID: uuid.New(), ClientID: uuid.New(), ServiceID: serviceID, ProfessionalID: profID,
		Date:      time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		StartTime: start.Format("15:04"), EndTime: start.Add(time.Hour).Format("15:04"),
		ClientName: "Carla", ClientEmail: "carla@example.com", ClientPhone: "+569",
		Status: models.BookingConfirmed, PaymentStatus: models.BookingPaymentCompleted,
		Price: decimal.NewFromInt(20000),
	}
	require.NoError(t, db.Create(booking).Error)
	return booking
}

// countingUpdater records which IDs had their stats refreshed
type countingUpdater struct{ ids []uuid.UUID }

func (u *countingUpdater) UpdateStatistics(ctx context.Context, id uuid.UUID) error {
	u.ids = append(u.ids, id)
	return nil
}

func TestCompleteRefreshesStats(t *testing.T) {
	db := setupTestDB(t)
	profStats := &countingUpdater{}
	clientStats := &countingUpdater{}
	serviceStats := &countingUpdater{}
	pub := &capturePublisher{}
	svc, err := NewService(zap.NewNop(), db, pub, DefaultConfig(), profStats, clientStats, serviceStats)
	require.NoError(t, err)

	prof, listing := seedListing(t, db)
	ctx := context.Background()
	clientID := uuid.New()

	booking, err := svc.Create(ctx, clientID, bookingRequest(listing.ID, 3, "10:00"))
	require.NoError(t, err)

	// only confirmed bookings complete
	_, err = svc.Complete(ctx, booking.ID)
	assert.Error(t, err)

	require.NoError(t, svc.Confirm(ctx, booking.ID))
	completed, err := svc.Complete(ctx, booking.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)

	assert.Equal(t, []uuid.UUID{prof.ID}, profStats.ids)
	assert.Equal(t, []uuid.UUID{clientID}, clientStats.ids)
	assert.Equal(t, []uuid.UUID{listing.ID}, serviceStats.ids)
	assert.Equal(t, 1, pub.count(messaging.TopicBookingCompleted))
}

func TestMarkNoShow(t *testing.T) {
	svc, db, _ := setupService(t)
	prof, listing := seedListing(t, db)
	ctx := context.Background()

	booking := bookingAt(t, db, prof.ID, listing.ID, time.Now().Add(-2*time.Hour))

	require.NoError(t, svc.MarkNoShow(ctx, booking.ID))
	got, err := svc.Get(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingNoShow, got.Status)

	// a future booking cannot be a no-show
	future, err := svc.Create(ctx, uuid.New(), bookingRequest(listing.ID, 3, "10:00"))
	require.NoError(t, err)
	require.NoError(t, svc.Confirm(ctx, future.ID))
	assert.Error(t, svc.MarkNoShow(ctx, future.ID))
}

func TestNotes(t *testing.T) {
	svc, db, _ := setupService(t)
	_, listing := seedListing(t, db)
	ctx := context.Background()

	booking, err := svc.Create(ctx, uuid.New(), bookingRequest(listing.ID, 3, "10:00"))
	require.NoError(t, err)

	_, err = svc.AddNote(ctx, booking.ID, "prefiere sesiones matinales")
	require.NoError(t, err)
	_, err = svc.AddNote(ctx, uuid.New(), "huérfana")
	assert.Error(t, err)

	notes, err := svc.ListNotes(ctx, booking.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestListBookings(t *testing.T) {
	svc, db, _ := setupService(t)
	prof, listing := seedListing(t, db)
	ctx := context.Background()
	clientID := uuid.New()

	first, err := svc.Create(ctx, clientID, bookingRequest(listing.ID, 2, "10:00"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, clientID, bookingRequest(listing.ID, 3, "10:00"))
	require.NoError(t, err)

	all, err := svc.ListByClient(ctx, clientID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	upcoming, err := svc.ListByClient(ctx, clientID, true)
	require.NoError(t, err)
	assert.Len(t, upcoming, 2)

	date := first.Date
	byDate, err := svc.ListByProfessional(ctx, prof.ID, &date)
	require.NoError(t, err)
	assert.Len(t, byDate, 1)

	allProf, err := svc.ListByProfessional(ctx, prof.ID, nil)
	require.NoError(t, err)
	assert.Len(t, allProf, 2)
}

func TestSendReminders(t *testing.T) {
	svc, db, pub := setupService(t)
	prof, listing := seedListing(t, db)
	ctx := context.Background()

	within24 := bookingAt(t, db, prof.ID, listing.ID, time.Now().Add(20*time.Hour))
	within2 := bookingAt(t, db, prof.ID, listing.ID, time.Now().Add(1*time.Hour))
	farOut := bookingAt(t, db, prof.ID, listing.ID, time.Now().Add(48*time.Hour))

	sent, err := svc.SendReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 2, pub.count(messaging.TopicBookingReminder))

	var got models.Booking
	require.NoError(t, db.First(&got, "id = ?", within24.ID).Error)
	assert.True(t, got.ReminderSent24h)
	assert.False(t, got.ReminderSent2h)

	got = models.Booking{}
	require.NoError(t, db.First(&got, "id = ?", within2.ID).Error)
	assert.True(t, got.ReminderSent2h)

	got = models.Booking{}
	require.NoError(t, db.First(&got, "id = ?", farOut.ID).Error)
	assert.False(t, got.ReminderSent24h)

	// a second scan sends nothing new for the same windows
	sent, err = svc.SendReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}
