package clients

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

// ClientService defines client profile operations.
type ClientService interface {
	Start() error
	Stop() error

	CreateProfile(ctx context.Context, userID uuid.UUID, req *models.CreateClientRequest) (*models.Client, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Client, error)
	GetProfileByUser(ctx context.Context, userID uuid.UUID) (*models.Client, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, req *models.CreateClientRequest) (*models.Client, error)
	UpdateStatistics(ctx context.Context, id uuid.UUID) error

	AddFavorite(ctx context.Context, clientID, professionalID uuid.UUID) error
	RemoveFavorite(ctx context.Context, clientID, professionalID uuid.UUID) error
	ListFavorites(ctx context.Context, clientID uuid.UUID) ([]models.Professional, error)
}

// Service implements ClientService
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewService creates a new ClientService
func NewService(logger *zap.Logger, db *gorm.DB) (ClientService, error) {
	return &Service{logger: logger, db: db}, nil
}

// Start starts the clients service
func (s *Service) Start() error {
	s.logger.Info("Clients service started")
	return nil
}

// Stop stops the clients service
func (s *Service) Stop() error {
	s.logger.Info("Clients service stopped")
	return nil
}

// CreateProfile creates a client profile for a user
func (s *Service) CreateProfile(ctx context.Context, userID uuid.UUID, req *models.CreateClientRequest) (*models.Client, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Client{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing profile: %w", err)
	}
	if count > 0 {
		return nil, errs.Conflictf("client profile already exists")
	}

	client := &models.Client{
		ID:           uuid.New(),
		UserID:       userID,
		Phone:        req.Phone,
		FitnessLevel: req.FitnessLevel,
		Notes:        req.Notes,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(client).Error; err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// GetProfile gets a client by ID
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&client).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("client not found")
		}
		return nil, fmt.Errorf("failed to find client: %w", err)
	}
	return &client, nil
}

// GetProfileByUser gets a client by owning user ID
func (s *Service) GetProfileByUser(ctx context.Context, userID uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&client).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("client not found")
		}
		return nil, fmt.Errorf("failed to find client: %w", err)
	}
	return &client, nil
}

// UpdateProfile updates the client's contact and preference fields
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, req *models.CreateClientRequest) (*models.Client, error) {
	client, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Phone != "" {
		client.Phone = req.Phone
	}
	if req.FitnessLevel != "" {
		client.FitnessLevel = req.FitnessLevel
	}
	if req.Notes != "" {
		client.Notes = req.Notes
	}
	client.UpdatedAt = time.Now()

	if err := s.db.WithContext(ctx).Save(client).Error; err != nil {
		return nil, fmt.Errorf("failed to save client: %w", err)
	}
	return client, nil
}

// UpdateStatistics recomputes the denormalized booking counters
func (s *Service) UpdateStatistics(ctx context.Context, id uuid.UUID) error {
	var total, completed int64
	if err := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("client_id = ?", id).Count(&total).Error; err != nil {
		return fmt.Errorf("failed to count bookings: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("client_id = ? AND status = ?", id, models.BookingCompleted).
		Count(&completed).Error; err != nil {
		return fmt.Errorf("failed to count completed bookings: %w", err)
	}

	updates := map[string]interface{}{
		"total_bookings":           total,
		"total_completed_bookings": completed,
		"updated_at":               time.Now(),
	}
	if err := s.db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update statistics: %w", err)
	}
	return nil
}

// AddFavorite marks a professional as a favorite of the client
func (s *Service) AddFavorite(ctx context.Context, clientID, professionalID uuid.UUID) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Professional{}).Where("id = ?", professionalID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check professional: %w", err)
	}
	if count == 0 {
		return errs.NotFoundf("professional not found")
	}

	if err := s.db.WithContext(ctx).Model(&models.Favorite{}).
		Where("client_id = ? AND professional_id = ?", clientID, professionalID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check favorite: %w", err)
	}
	if count > 0 {
		return nil // already a favorite
	}

	fav := &models.Favorite{
		ID:             uuid.New(),
		ClientID:       clientID,
		ProfessionalID: professionalID,
		CreatedAt:      time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(fav).Error; err != nil {
		return fmt.Errorf("failed to create favorite: %w", err)
	}
	return nil
}

// RemoveFavorite removes a professional from the client's favorites
func (s *Service) RemoveFavorite(ctx context.Context, clientID, professionalID uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Where("client_id = ? AND professional_id = ?", clientID, professionalID).
		Delete(&models.Favorite{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove favorite: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NotFoundf("favorite not found")
	}
	return nil
}

// ListFavorites lists the client's favorite professionals, most recent first
func (s *Service) ListFavorites(ctx context.Context, clientID uuid.UUID) ([]models.Professional, error) {
	var profs []models.Professional
	if err := s.db.WithContext(ctx).Model(&models.Professional{}).
		Joins("JOIN favorites ON favorites.professional_id = professionals.id").
		Where("favorites.client_id = ?", clientID).
		Order("favorites.created_at DESC").
		Find(&profs).Error; err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return profs, nil
}
