package professionals

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/conecta-cl/marketplace/pkg/errs"
	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProfessionalService defines professional profile operations.
type ProfessionalService interface {
	Start() error
	Stop() error

	CreateProfile(ctx context.Context, userID uuid.UUID, fullName string, req *models.CreateProfessionalRequest) (*models.Professional, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Professional, error)
	GetProfileByUser(ctx context.Context, userID uuid.UUID) (*models.Professional, error)
	GetProfileBySlug(ctx context.Context, slug string) (*models.Professional, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, req *models.UpdateProfessionalRequest) (*models.Professional, error)
	SetVerificationStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateStatistics(ctx context.Context, id uuid.UUID) error

	AddCertification(ctx context.Context, professionalID uuid.UUID, req *models.CreateCertificationRequest) (*models.Certification, error)
	ListCertifications(ctx context.Context, professionalID uuid.UUID) ([]models.Certification, error)
	ReviewCertification(ctx context.Context, certID, reviewerID uuid.UUID, approve bool, notes string) error

	SetAvailability(ctx context.Context, professionalID uuid.UUID, blocks []models.AvailabilityBlockRequest) ([]models.AvailabilityBlock, error)
	ListAvailability(ctx context.Context, professionalID uuid.UUID) ([]models.AvailabilityBlock, error)
	AddBlockedDate(ctx context.Context, professionalID uuid.UUID, req *models.BlockedDateRequest) (*models.BlockedDate, error)
	ListBlockedDates(ctx context.Context, professionalID uuid.UUID, from time.Time) ([]models.BlockedDate, error)
	RemoveBlockedDate(ctx context.Context, professionalID, blockedDateID uuid.UUID) error

	Search(ctx context.Context, filter *models.SearchFilter) ([]models.Professional, models.PageInfo, error)
	Featured(ctx context.Context) ([]models.Professional, error)
}

// Config carries the tunables for search and the featured list
type Config struct {
	SearchPageSize    int
	FeaturedMinRating float64
	CacheTTL          time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		SearchPageSize:    12,
		FeaturedMinRating: 4.5,
		CacheTTL:          5 * time.Minute,
	}
}

// Service implements ProfessionalService
type Service struct {
	logger    *zap.Logger
	db        *gorm.DB
	redis     *redis.Client
	config    Config
	sanitizer *bluemonday.Policy
}

// NewService creates a new ProfessionalService. redisClient may be nil; the
// search cache is then skipped.
func NewService(logger *zap.Logger, db *gorm.DB, redisClient *redis.Client, config Config) (ProfessionalService, error) {
	if config.SearchPageSize <= 0 {
		config.SearchPageSize = 12
	}
	if config.FeaturedMinRating <= 0 {
		config.FeaturedMinRating = 4.5
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	return &Service{
		logger:    logger,
		db:        db,
		redis:     redisClient,
		config:    config,
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

// Start starts the professionals service
func (s *Service) Start() error {
	s.logger.Info("Professionals service started")
	return nil
}

// Stop stops the professionals service
func (s *Service) Stop() error {
	s.logger.Info("Professionals service stopped")
	return nil
}

// CreateProfile creates a professional profile for a user. The slug is derived
// from the full name when the request does not provide one.
func (s *Service) CreateProfile(ctx context.Context, userID uuid.UUID, fullName string, req *models.CreateProfessionalRequest) (*models.Professional, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Professional{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing profile: %w", err)
	}
	if count > 0 {
		return nil, errs.Conflictf("professional profile already exists")
	}

	slug := req.UsernameSlug
	if slug == "" {
		slug = Slugify(fullName)
	}
	slug, err := s.uniqueSlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	prof := &models.Professional{
		ID:                 uuid.New(),
		UserID:             userID,
		FullName:           fullName,
		Bio:                s.sanitizer.Sanitize(req.Bio),
		Phone:              req.Phone,
		YearsOfExperience:  req.YearsOfExperience,
		PrimarySpecialty:   req.PrimarySpecialty,
		Comuna:             req.Comuna,
		Address:            req.Address,
		InstagramHandle:    strings.TrimPrefix(req.InstagramHandle, "@"),
		WhatsappNumber:     req.WhatsappNumber,
		UsernameSlug:       slug,
		VerificationStatus: models.VerificationPending,
		IsActive:           true,
		AverageRating:      decimal.Zero,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(prof).Error; err != nil {
		return nil, fmt.Errorf("failed to create professional: %w", err)
	}

	s.logger.Info("Professional profile created",
		zap.String("professional_id", prof.ID.String()),
		zap.String("slug", prof.UsernameSlug))
	return prof, nil
}

// GetProfile gets a professional by ID
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*models.Professional, error) {
	var prof models.Professional
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&prof).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("professional not found")
		}
		return nil, fmt.Errorf("failed to find professional: %w", err)
	}
	return &prof, nil
}

// GetProfileByUser gets a professional by owning user ID
func (s *Service) GetProfileByUser(ctx context.Context, userID uuid.UUID) (*models.Professional, error) {
	var prof models.Professional
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&prof).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("professional not found")
		}
		return nil, fmt.Errorf("failed to find professional: %w", err)
	}
	return &prof, nil
}

// GetProfileBySlug gets a professional by its public slug
func (s *Service) GetProfileBySlug(ctx context.Context, slug string) (*models.Professional, error) {
	var prof models.Professional
	if err := s.db.WithContext(ctx).Where("username_slug = ?", slug).First(&prof).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("professional not found")
		}
		return nil, fmt.Errorf("failed to find professional: %w", err)
	}
	return &prof, nil
}

// UpdateProfile applies the non-nil fields of the request
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, req *models.UpdateProfessionalRequest) (*models.Professional, error) {
	prof, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Bio != nil {
		prof.Bio = s.sanitizer.Sanitize(*req.Bio)
	}
	if req.Phone != nil {
		prof.Phone = *req.Phone
	}
	if req.YearsOfExperience != nil {
		prof.YearsOfExperience = *req.YearsOfExperience
	}
	if req.PrimarySpecialty != nil {
		prof.PrimarySpecialty = *req.PrimarySpecialty
	}
	if req.Comuna != nil {
		prof.Comuna = *req.Comuna
	}
	if req.Address != nil {
		prof.Address = *req.Address
	}
	if req.InstagramHandle != nil {
		prof.InstagramHandle = strings.TrimPrefix(*req.InstagramHandle, "@")
	}
	if req.WhatsappNumber != nil {
		prof.WhatsappNumber = *req.WhatsappNumber
	}
	if req.IsActive != nil {
		prof.IsActive = *req.IsActive
	}
	prof.UpdatedAt = time.Now()

	if err := s.db.WithContext(ctx).Save(prof).Error; err != nil {
		return nil, fmt.Errorf("failed to save professional: %w", err)
	}
	s.invalidateCaches(ctx)
	return prof, nil
}

// SetVerificationStatus sets the profile verification status (admin operation)
func (s *Service) SetVerificationStatus(ctx context.Context, id uuid.UUID, status string) error {
	switch status {
	case models.VerificationPending, models.VerificationVerified, models.VerificationRejected:
	default:
		return errs.Invalidf("invalid verification status: %s", status)
	}

	result := s.db.WithContext(ctx).Model(&models.Professional{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"verification_status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to update verification status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NotFoundf("professional not found")
	}

	s.invalidateCaches(ctx)
	s.logger.Info("Professional verification status updated",
		zap.String("professional_id", id.String()),
		zap.String("status", status))
	return nil
}

// UpdateStatistics recomputes the denormalized booking and review counters
// from their source tables.
func (s *Service) UpdateStatistics(ctx context.Context, id uuid.UUID) error {
	var totalBookings int64
	if err := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("professional_id = ? AND status = ?", id, models.BookingCompleted).
		Count(&totalBookings).Error; err != nil {
		return fmt.Errorf("failed to count bookings: %w", err)
	}

	var totalReviews int64
	var avg float64
	row := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("professional_id = ? AND is_approved = ?", id, true).
		Select("COUNT(*), COALESCE(AVG(rating), 0)").Row()
	if err := row.Scan(&totalReviews, &avg); err != nil {
		return fmt.Errorf("failed to aggregate reviews: %w", err)
	}

	updates := map[string]interface{}{
		"total_bookings": totalBookings,
		"total_reviews":  totalReviews,
		"average_rating": decimal.NewFromFloat(avg).Round(2),
		"updated_at":     time.Now(),
	}
	if err := s.db.WithContext(ctx).Model(&models.Professional{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update statistics: %w", err)
	}

	s.invalidateCaches(ctx)
	return nil
}

// uniqueSlug appends a numeric suffix until the slug is free
func (s *Service) uniqueSlug(ctx context.Context, base string) (string, error) {
	slug := base
	for i := 1; ; i++ {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Professional{}).Where("username_slug = ?", slug).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

var (
	slugInvalid  = regexp.MustCompile(`[^a-z0-9]+`)
	slugAccented = strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n", "ü", "u",
	)
)

// Slugify lowercases a name, folds Spanish accents, and replaces runs of
// non-alphanumerics with single hyphens.
func Slugify(name string) string {
	slug := slugAccented.Replace(strings.ToLower(name))
	slug = slugInvalid.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "profesional"
	}
	return slug
}
