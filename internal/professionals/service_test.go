package professionals

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

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Professional{},
		&models.Certification{},
		&models.AvailabilityBlock{},
		&models.BlockedDate{},
		&models.Service{},
		&models.ServiceTag{},
		&models.Booking{},
		&models.Review{},
	))
	return db
}

func setupService(t *testing.T) (ProfessionalService, *gorm.DB) {
	db := setupTestDB(t)
	svc, err := NewService(zap.NewNop(), db, nil, DefaultConfig())
	require.NoError(t, err)
	return svc, db
}

func createProfile(t *testing.T, svc ProfessionalService, fullName string) *models.Professional {
	prof, err := svc.CreateProfile(context.Background(), uuid.New(), fullName, &models.CreateProfessionalRequest{
		Phone:            "+56911111111",
		PrimarySpecialty: "yoga",
		Comuna:           "providencia",
	})
	require.NoError(t, err)
	return prof
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "maria-gonzalez", Slugify("María González"))
	assert.Equal(t, "nunez-fitness", Slugify("  Núñez  Fitness!  "))
	assert.Equal(t, "profesional", Slugify("---"))
}

func TestCreateProfileSlugCollision(t *testing.T) {
	svc, _ := setupService(t)

	first := createProfile(t, svc, "María González")
	assert.Equal(t, "maria-gonzalez", first.UsernameSlug)

	second := createProfile(t, svc, "Maria Gonzalez")
	assert.Equal(t, "maria-gonzalez-1", second.UsernameSlug)

	third := createProfile(t, svc, "maría gonzález")
	assert.Equal(t, "maria-gonzalez-2", third.UsernameSlug)
}

func TestCreateProfileRejectsDuplicateUser(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.CreateProfile(ctx, userID, "Ana Rojas", &models.CreateProfessionalRequest{
		Phone: "+56911111111", PrimarySpecialty: "yoga", Comuna: "providencia",
	})
	require.NoError(t, err)

	_, err = svc.CreateProfile(ctx, userID, "Ana Rojas", &models.CreateProfessionalRequest{
		Phone: "+56911111111", PrimarySpecialty: "yoga", Comuna: "providencia",
	})
	assert.Error(t, err)
}

func TestCreateProfileSanitizesBio(t *testing.T) {
	svc, _ := setupService(t)

	prof, err := svc.CreateProfile(context.Background(), uuid.New(), "Ana Rojas", &models.CreateProfessionalRequest{
		Bio:              `Hola <script>alert("x")</script>mundo`,
		Phone:            "+56911111111",
		PrimarySpecialty: "yoga",
		Comuna:           "providencia",
	})
	require.NoError(t, err)
	assert.NotContains(t, prof.Bio, "<script>")
	assert.Contains(t, prof.Bio, "Hola")
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := setupService(t)
	prof := createProfile(t, svc, "Ana Rojas")

	bio := "Entrenadora certificada"
	inactive := false
	updated, err := svc.UpdateProfile(context.Background(), prof.ID, &models.UpdateProfessionalRequest{
		Bio:      &bio,
		IsActive: &inactive,
	})
	assert.NoError(t, err)
	assert.Equal(t, bio, updated.Bio)
	assert.False(t, updated.IsActive)
	// untouched fields keep their values
	assert.Equal(t, "yoga", updated.PrimarySpecialty)
}

func TestSetVerificationStatus(t *testing.T) {
	svc, _ := setupService(t)
	prof := createProfile(t, svc, "Ana Rojas")
	ctx := context.Background()

	assert.Error(t, svc.SetVerificationStatus(ctx, prof.ID, "bogus"))
	assert.Error(t, svc.SetVerificationStatus(ctx, uuid.New(), models.VerificationVerified))

	require.NoError(t, svc.SetVerificationStatus(ctx, prof.ID, models.VerificationVerified))
	got, err := svc.GetProfile(ctx, prof.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVerified())
}

func TestCertificationReviewVerifiesProfile(t *testing.T) {
	svc, _ := setupService(t)
	prof := createProfile(t, svc, "Ana Rojas")
	ctx := context.Background()

	cert, err := svc.AddCertification(ctx, prof.ID, &models.CreateCertificationRequest{
		Name:        "Yoga Alliance RYT-200",
		Institution: "Yoga Alliance",
		Year:        2021,
	})
	require.NoError(t, err)
	assert.Equal(t, CertPendingReview, cert.VerificationStatus)

	reviewer := uuid.New()
	require.NoError(t, svc.ReviewCertification(ctx, cert.ID, reviewer, true, "documentation checks out"))

	certs, err := svc.ListCertifications(ctx, prof.ID)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, CertVerified, certs[0].VerificationStatus)
	assert.NotNil(t, certs[0].VerifiedAt)

	got, err := svc.GetProfile(ctx, prof.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVerified())

	// a certification cannot be reviewed twice
	assert.Error(t, svc.ReviewCertification(ctx, cert.ID, reviewer, false, ""))
}

func TestCertificationRejectionKeepsProfilePending(t *testing.T) {
	svc, _ := setupService(t)
	prof := createProfile(t, svc, "Ana Rojas")
	ctx := context.Background()

	cert, err := svc.AddCertification(ctx, prof.ID, &models.CreateCertificationRequest{
		Name: "Dubious Diploma", Institution: "Unknown", Year: 2020,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ReviewCertification(ctx, cert.ID, uuid.New(), false, "unverifiable"))

	got, err := svc.GetProfile(ctx, prof.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationPending, got.VerificationStatus)
}

func TestSetAvailability(t *testing.T) {
	svc, _ := setupService(t)
	prof := createProfile(t, svc, "Ana Rojas")
	ctx := context.Background()

	blocks, err := svc.SetAvailability(ctx, prof.ID, []models.AvailabilityBlockRequest{
		{DayOfWeek: 0, StartTime: "09:00", EndTime: "13:00"},
		{DayOfWeek: 0, StartTime: "15:00", EndTime: "19:00"},
		{DayOfWeek: 2, StartTime: "09:00", EndTime: "18:00"},
	})
	assert.NoError(t, err)
	assert.Len(t, blocks, 3)

	// end before start
	_, err = svc.SetAvailability(ctx, prof.ID, []models.AvailabilityBlockRequest{
		{DayOfWeek: 1, StartTime: "14:00", EndTime: "10:00"},
	})
	assert.Error(t, err)

	// overlapping blocks on the same day
	_, err = svc.SetAvailability(ctx, prof.ID, []models.AvailabilityBlockRequest{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00"},
		{DayOfWeek: 1, StartTime: "11:00", EndTime: "14:00"},
	})
	assert.Error(t, err)

	// replacement semantics: earlier blocks survive failed calls
	listed, err := svc.ListAvailability(ctx, prof.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	blocks, err = svc.SetAvailability(ctx, prof.ID, []models.AvailabilityBlockRequest{
		{DayOfWeek: 4, StartTime: "08:00", EndTime: "12:00"},
	})
	require.NoError(t, err)
	listed, err = svc.ListAvailability(ctx, prof.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestBlockedDates(t *testing.T) {
	svc, _ := setupService(t)
	prof := createProfile(t, svc, "Ana Rojas")
	ctx := context.Background()

	blocked, err := svc.AddBlockedDate(ctx, prof.ID, &models.BlockedDateRequest{
		Date: "2026-09-18", Reason: "fiestas patrias",
	})
	assert.NoError(t, err)
	assert.True(t, blocked.AllDay)

	allDay := false
	start, end := "09:00", "12:00"
	partial, err := svc.AddBlockedDate(ctx, prof.ID, &models.BlockedDateRequest{
		Date: "2026-09-21", AllDay: &allDay, StartTime: &start, EndTime: &end,
	})
	assert.NoError(t, err)
	assert.False(t, partial.AllDay)

	// partial block without times
	_, err = svc.AddBlockedDate(ctx, prof.ID, &models.BlockedDateRequest{
		Date: "2026-09-22", AllDay: &allDay,
	})
	assert.Error(t, err)

	from, _ := time.Parse("2006-01-02", "2026-09-01")
	dates, err := svc.ListBlockedDates(ctx, prof.ID, from)
	require.NoError(t, err)
	assert.Len(t, dates, 2)

	require.NoError(t, svc.RemoveBlockedDate(ctx, prof.ID, blocked.ID))
	assert.Error(t, svc.RemoveBlockedDate(ctx, prof.ID, blocked.ID))
}

func TestUpdateStatistics(t *testing.T) {
	svc, db := setupService(t)
	prof := createProfile(t, svc, "Ana Rojas")
	ctx := context.Background()

	for i, rating := range []int{5, 4} {
		booking := models.Booking{
			ID: uuid.New(), ClientID: uuid.New(), ServiceID: uuid.New(),
			ProfessionalID: prof.ID,
			Date:           time.Now().AddDate(0, 0, -7+i),
			StartTime:      "10:00", EndTime: "11:00",
			ClientName: "Cliente", ClientEmail: "c@example.com", ClientPhone: "+569",
			Status: models.BookingCompleted, PaymentStatus: models.BookingPaymentCompleted,
			Price: decimal.NewFromInt(20000),
		}
		require.NoError(t, db.Create(&booking).Error)
		require.NoError(t, db.Create(&models.Review{
			ID: uuid.New(), ClientID: booking.ClientID, ProfessionalID: prof.ID,
			BookingID: booking.ID, Rating: rating, IsApproved: true,
		}).Error)
	}
	// an unapproved review must not count
	require.NoError(t, db.Create(&models.Review{
		ID: uuid.New(), ClientID: uuid.New(), ProfessionalID: prof.ID,
		BookingID: uuid.New(), Rating: 1, IsApproved: false,
	}).Error)

	require.NoError(t, svc.UpdateStatistics(ctx, prof.ID))

	got, err := svc.GetProfile(ctx, prof.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.TotalBookings)
	assert.Equal(t, int64(2), got.TotalReviews)
	assert.True(t, got.AverageRating.Equal(decimal.NewFromFloat(4.5)), "got %s", got.AverageRating)
}

func seedSearchProfiles(t *testing.T, svc ProfessionalService, db *gorm.DB) (yoga, pilates *models.Professional) {
	ctx := context.Background()

	yoga = createProfile(t, svc, "María González")
	require.NoError(t, svc.SetVerificationStatus(ctx, yoga.ID, models.VerificationVerified))
	require.NoError(t, db.Model(&models.Professional{}).Where("id = ?", yoga.ID).
		Updates(map[string]interface{}{"average_rating": decimal.NewFromFloat(4.8), "total_reviews": 10}).Error)

	pilates, _ = func() (*models.Professional, error) {
		return svc.CreateProfile(ctx, uuid.New(), "Pedro Soto", &models.CreateProfessionalRequest{
			Phone: "+56922222222", PrimarySpecialty: "pilates", Comuna: "las_condes",
		})
	}()
	require.NoError(t, svc.SetVerificationStatus(ctx, pilates.ID, models.VerificationVerified))
	require.NoError(t, db.Model(&models.Professional{}).Where("id = ?", pilates.ID).
		Updates(map[string]interface{}{"average_rating": decimal.NewFromFloat(4.2), "total_reviews": 4}).Error)

	// pending professional must never surface
	createProfile(t, svc, "Oculto Pendiente")
	return yoga, pilates
}

func TestSearchFilters(t *testing.T) {
	svc, db := setupService(t)
	yoga, pilates := seedSearchProfiles(t, svc, db)
	ctx := context.Background()

	// no filters: verified professionals ordered by rating
	profs, page, err := svc.Search(ctx, &models.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, profs, 2)
	assert.Equal(t, yoga.ID, profs[0].ID)
	assert.Equal(t, pilates.ID, profs[1].ID)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 12, page.PageSize)

	// specialty filter
	profs, _, err = svc.Search(ctx, &models.SearchFilter{Specialty: "pilates"})
	require.NoError(t, err)
	require.Len(t, profs, 1)
	assert.Equal(t, pilates.ID, profs[0].ID)

	// comuna filter
	profs, _, err = svc.Search(ctx, &models.SearchFilter{Comuna: "providencia"})
	require.NoError(t, err)
	require.Len(t, profs, 1)
	assert.Equal(t, yoga.ID, profs[0].ID)

	// min rating filter
	profs, _, err = svc.Search(ctx, &models.SearchFilter{MinRating: "4.5"})
	require.NoError(t, err)
	require.Len(t, profs, 1)
	assert.Equal(t, yoga.ID, profs[0].ID)

	_, _, err = svc.Search(ctx, &models.SearchFilter{MinRating: "high"})
	assert.Error(t, err)
}

func TestSearchByServiceAttributes(t *testing.T) {
	svc, db := setupService(t)
	yoga, pilates := seedSearchProfiles(t, svc, db)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Service{
		ID: uuid.New(), ProfessionalID: yoga.ID, Name: "Yoga Online",
		ServiceType: "individual", Modality: "online", DurationMinutes: 60,
		Level: "todos", Price: decimal.NewFromInt(15000), IsActive: true, MaxParticipants: 1,
	}).Error)
	require.NoError(t, db.Create(&models.Service{
		ID: uuid.New(), ProfessionalID: pilates.ID, Name: "Pilates Grupal",
		ServiceType: "small_group", Modality: "presencial", DurationMinutes: 60,
		Level: "todos", Price: decimal.NewFromInt(12000), IsActive: true, MaxParticipants: 6,
	}).Error)

	profs, _, err := svc.Search(ctx, &models.SearchFilter{Modality: "online"})
	require.NoError(t, err)
	require.Len(t, profs, 1)
	assert.Equal(t, yoga.ID, profs[0].ID)

	profs, _, err = svc.Search(ctx, &models.SearchFilter{ServiceType: "small_group"})
	require.NoError(t, err)
	require.Len(t, profs, 1)
	assert.Equal(t, pilates.ID, profs[0].ID)
}

func TestSearchTextQueryRanking(t *testing.T) {
	svc, db := setupService(t)
	yoga, pilates := seedSearchProfiles(t, svc, db)
	ctx := context.Background()

	profs, _, err := svc.Search(ctx, &models.SearchFilter{Query: "pedro"})
	require.NoError(t, err)
	require.Len(t, profs, 1)
	assert.Equal(t, pilates.ID, profs[0].ID)

	// both match "o" in the name; the closer name wins despite lower rating
	profs, _, err = svc.Search(ctx, &models.SearchFilter{Query: "soto"})
	require.NoError(t, err)
	require.NotEmpty(t, profs)
	assert.Equal(t, pilates.ID, profs[0].ID)

	_ = yoga
}

func TestSearchPagination(t *testing.T) {
	svc, db := setupService(t)
	seedSearchProfiles(t, svc, db)
	ctx := context.Background()

	profs, page, err := svc.Search(ctx, &models.SearchFilter{Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Len(t, profs, 1)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, int64(2), page.TotalPages)

	profs2, _, err := svc.Search(ctx, &models.SearchFilter{Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, profs2, 1)
	assert.NotEqual(t, profs[0].ID, profs2[0].ID)
}

func TestFeatured(t *testing.T) {
	svc, db := setupService(t)
	yoga, pilates := seedSearchProfiles(t, svc, db)
	ctx := context.Background()

	// only the 4.8-rated professional clears the 4.5 bar
	profs, err := svc.Featured(ctx)
	require.NoError(t, err)
	require.Len(t, profs, 1)
	assert.Equal(t, yoga.ID, profs[0].ID)

	require.NoError(t, db.Model(&models.Professional{}).Where("id = ?", pilates.ID).
		Update("average_rating", decimal.NewFromFloat(4.9)).Error)

	profs, err = svc.Featured(ctx)
	require.NoError(t, err)
	require.Len(t, profs, 2)
	assert.Equal(t, pilates.ID, profs[0].ID)
}
