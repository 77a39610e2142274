package reviews

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/conecta-cl/marketplace/internal/messaging"
	"github.com/conecta-cl/marketplace/pkg/errs"
	"github.com/conecta-cl/marketplace/pkg/metrics"
	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReviewService defines review and moderation operations.
type ReviewService interface {
	Start() error
	Stop() error

	Create(ctx context.Context, clientID uuid.UUID, displayName string, req *models.CreateReviewRequest) (*models.Review, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Review, error)
	ListByProfessional(ctx context.Context, professionalID uuid.UUID, page, pageSize int) ([]models.Review, models.PageInfo, error)
	Respond(ctx context.Context, id, professionalID uuid.UUID, response string) (*models.Review, error)

	Report(ctx context.Context, reviewID uuid.UUID, reportedBy *uuid.UUID, req *models.ReportReviewRequest) (*models.ReviewReport, error)
	ListOpenReports(ctx context.Context) ([]models.ReviewReport, error)
	ResolveReport(ctx context.Context, reportID uuid.UUID, status, notes string) error
	SetApproval(ctx context.Context, reviewID uuid.UUID, approved bool, reason string) error
}

// StatsUpdater refreshes a professional's denormalized rating counters
type StatsUpdater interface {
	UpdateStatistics(ctx context.Context, id uuid.UUID) error
}

// Service implements ReviewService
type Service struct {
	logger            *zap.Logger
	db                *gorm.DB
	publisher         messaging.Publisher
	professionalStats StatsUpdater
	sanitizer         *bluemonday.Policy
}

// NewService creates a new ReviewService. professionalStats may be nil.
func NewService(logger *zap.Logger, db *gorm.DB, publisher messaging.Publisher, professionalStats StatsUpdater) (ReviewService, error) {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return &Service{
		logger:            logger,
		db:                db,
		publisher:         publisher,
		professionalStats: professionalStats,
		sanitizer:         bluemonday.StrictPolicy(),
	}, nil
}

// Start starts the reviews service
func (s *Service) Start() error {
	s.logger.Info("Reviews service started")
	return nil
}

// Stop stops the reviews service
func (s *Service) Stop() error {
	s.logger.Info("Reviews service stopped")
	return nil
}

// Create creates a review for a completed booking. One review per booking;
// only the booking's client may write it. The display name is snapshotted so
// later account changes do not rewrite published reviews.
func (s *Service) Create(ctx context.Context, clientID uuid.UUID, displayName string, req *models.CreateReviewRequest) (*models.Review, error) {
	var booking models.Booking
	if err := s.db.WithContext(ctx).Where("id = ?", req.BookingID).First(&booking).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("booking not found")
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	if booking.ClientID != clientID {
		return nil, errs.Invalidf("booking does not belong to client")
	}
	if booking.Status != models.BookingCompleted {
		return nil, errs.Invalidf("only completed bookings can be reviewed")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Review{}).Where("booking_id = ?", req.BookingID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing review: %w", err)
	}
	if count > 0 {
		return nil, errs.Conflictf("booking already reviewed")
	}

	if req.Rating < 1 || req.Rating > 5 {
		return nil, errs.Invalidf("rating must be between 1 and 5")
	}

	review := &models.Review{
		ID:                uuid.New(),
		ClientID:          clientID,
		ProfessionalID:    booking.ProfessionalID,
		BookingID:         req.BookingID,
		Rating:            req.Rating,
		Comment:           s.sanitizer.Sanitize(req.Comment),
		ClientDisplayName: firstName(displayName),
		IsApproved:        true,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(review).Error; err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	s.refreshStats(ctx, review.ProfessionalID)
	metrics.ReviewsCreated.WithLabelValues(strconv.Itoa(req.Rating)).Inc()
	s.publishEvent(ctx, review)
	s.logger.Info("Review created",
		zap.String("review_id", review.ID.String()),
		zap.Int("rating", req.Rating))
	return review, nil
}

// Get gets a review by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&review).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("review not found")
		}
		return nil, fmt.Errorf("failed to find review: %w", err)
	}
	return &review, nil
}

// ListByProfessional lists approved reviews for a professional, newest first
func (s *Service) ListByProfessional(ctx context.Context, professionalID uuid.UUID, page, pageSize int) ([]models.Review, models.PageInfo, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 50 {
		pageSize = 10
	}

	query := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("professional_id = ? AND is_approved = ?", professionalID, true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, models.PageInfo{}, fmt.Errorf("failed to count reviews: %w", err)
	}

	var reviews []models.Review
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&reviews).Error; err != nil {
		return nil, models.PageInfo{}, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, models.NewPageInfo(page, pageSize, total), nil
}

// Respond records the professional's single public reply to a review
func (s *Service) Respond(ctx context.Context, id, professionalID uuid.UUID, response string) (*models.Review, error) {
	review, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if review.ProfessionalID != professionalID {
		return nil, errs.Invalidf("review does not belong to professional")
	}
	if review.ProfessionalResponse != "" {
		return nil, errs.Conflictf("review already has a response")
	}

	now := time.Now()
	review.ProfessionalResponse = s.sanitizer.Sanitize(response)
	review.ProfessionalResponseAt = &now
	review.UpdatedAt = now

	if err := s.db.WithContext(ctx).Save(review).Error; err != nil {
		return nil, fmt.Errorf("failed to save review: %w", err)
	}
	return review, nil
}

// Report files a moderation report against a review and flags it
func (s *Service) Report(ctx context.Context, reviewID uuid.UUID, reportedBy *uuid.UUID, req *models.ReportReviewRequest) (*models.ReviewReport, error) {
	review, err := s.Get(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	report := &models.ReviewReport{
		ID:         uuid.New(),
		ReviewID:   reviewID,
		ReportedBy: reportedBy,
		Reason:     req.Reason,
		Details:    req.Details,
		Status:     models.ReportPending,
		CreatedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	if !review.IsFlagged {
		if err := s.db.WithContext(ctx).Model(&models.Review{}).Where("id = ?", reviewID).
			Updates(map[string]interface{}{"is_flagged": true, "flagged_reason": req.Reason, "updated_at": time.Now()}).Error; err != nil {
			s.logger.Warn("Failed to flag review", zap.Error(err))
		}
	}
	return report, nil
}

// ListOpenReports lists pending moderation reports, oldest first
func (s *Service) ListOpenReports(ctx context.Context) ([]models.ReviewReport, error) {
	var reports []models.ReviewReport
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.ReportPending).
		Order("created_at").
		Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

// ResolveReport closes a report with a moderation outcome (admin operation)
func (s *Service) ResolveReport(ctx context.Context, reportID uuid.UUID, status, notes string) error {
	switch status {
	case models.ReportReviewed, models.ReportActionTaken, models.ReportDismissed:
	default:
		return errs.Invalidf("invalid report resolution: %s", status)
	}

	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.ReviewReport{}).
		Where("id = ? AND status = ?", reportID, models.ReportPending).
		Updates(map[string]interface{}{"status": status, "resolution_notes": notes, "resolved_at": now})
	if result.Error != nil {
		return fmt.Errorf("failed to resolve report: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.Conflictf("report not found or already resolved")
	}
	return nil
}

// SetApproval hides or restores a review and refreshes the professional's
// rating (admin operation).
func (s *Service) SetApproval(ctx context.Context, reviewID uuid.UUID, approved bool, reason string) error {
	review, err := s.Get(ctx, reviewID)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"is_approved": approved,
		"updated_at":  time.Now(),
	}
	if !approved {
		updates["is_flagged"] = true
		updates["flagged_reason"] = reason
	}
	if err := s.db.WithContext(ctx).Model(&models.Review{}).Where("id = ?", reviewID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update review approval: %w", err)
	}

	s.refreshStats(ctx, review.ProfessionalID)
	return nil
}

func (s *Service) refreshStats(ctx context.Context, professionalID uuid.UUID) {
	if s.professionalStats == nil {
		return
	}
	if err := s.professionalStats.UpdateStatistics(ctx, professionalID); err != nil {
		s.logger.Warn("Failed to refresh professional stats", zap.Error(err))
	}
}

func (s *Service) publishEvent(ctx context.Context, review *models.Review) {
	event := map[string]interface{}{
		"review_id":       review.ID,
		"professional_id": review.ProfessionalID,
		"booking_id":      review.BookingID,
		"rating":          review.Rating,
		"occurred_at":     time.Now(),
	}
	if err := s.publisher.Publish(ctx, messaging.TopicReviewCreated, review.ID.String(), event); err != nil {
		s.logger.Warn("Failed to publish review event", zap.Error(err))
	}
}

// firstName keeps only the first given name for public display
func firstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
