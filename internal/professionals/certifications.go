package professionals

import (
	"context"
	"fmt"
	"time"

	"github.com/conecta-cl/marketplace/pkg/errs"
	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Certification review statuses
const (
	CertPendingReview = "pending_review"
	CertVerified      = "verified"
	CertRejected      = "rejected"
)

// AddCertification registers a certification for review
func (s *Service) AddCertification(ctx context.Context, professionalID uuid.UUID, req *models.CreateCertificationRequest) (*models.Certification, error) {
	if _, err := s.GetProfile(ctx, professionalID); err != nil {
		return nil, err
	}

	cert := &models.Certification{
		ID:                 uuid.New(),
		ProfessionalID:     professionalID,
		Name:               req.Name,
		Institution:        req.Institution,
		Year:               req.Year,
		DocumentPath:       req.DocumentPath,
		VerificationStatus: CertPendingReview,
		CreatedAt:          time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(cert).Error; err != nil {
		return nil, fmt.Errorf("failed to create certification: %w", err)
	}
	return cert, nil
}

// ListCertifications lists a professional's certifications, newest first
func (s *Service) ListCertifications(ctx context.Context, professionalID uuid.UUID) ([]models.Certification, error) {
	var certs []models.Certification
	if err := s.db.WithContext(ctx).
		Where("professional_id = ?", professionalID).
		Order("created_at DESC").
		Find(&certs).Error; err != nil {
		return nil, fmt.Errorf("failed to list certifications: %w", err)
	}
	return certs, nil
}

// ReviewCertification approves or rejects a certification (admin operation).
// Approving the first certification of a pending professional also marks the
// profile verified.
func (s *Service) ReviewCertification(ctx context.Context, certID, reviewerID uuid.UUID, approve bool, notes string) error {
	var cert models.Certification
	if err := s.db.WithContext(ctx).Where("id = ?", certID).First(&cert).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return errs.NotFoundf("certification not found")
		}
		return fmt.Errorf("failed to find certification: %w", err)
	}

	if cert.VerificationStatus != CertPendingReview {
		return errs.Conflictf("certification already reviewed")
	}

	status := CertRejected
	if approve {
		status = CertVerified
	}
	now := time.Now()
	cert.VerificationStatus = status
	cert.VerificationNotes = notes
	cert.VerifiedBy = &reviewerID
	cert.VerifiedAt = &now

	if err := s.db.WithContext(ctx).Save(&cert).Error; err != nil {
		return fmt.Errorf("failed to save certification: %w", err)
	}

	if approve {
		if err := s.db.WithContext(ctx).Model(&models.Professional{}).
			Where("id = ? AND verification_status = ?", cert.ProfessionalID, models.VerificationPending).
			Updates(map[string]interface{}{"verification_status": models.VerificationVerified, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("failed to verify professional: %w", err)
		}
		s.invalidateCaches(ctx)
	}

	s.logger.Info("Certification reviewed",
		zap.String("certification_id", certID.String()),
		zap.String("status", status))
	return nil
}
