package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/conecta-cl/marketplace/pkg/errs"
	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatalogService defines service listing operations.
type CatalogService interface {
	Start() error
	Stop() error

	CreateService(ctx context.Context, professionalID uuid.UUID, req *models.CreateServiceRequest) (*models.Service, error)
	GetService(ctx context.Context, id uuid.UUID) (*models.Service, error)
	UpdateService(ctx context.Context, id, professionalID uuid.UUID, req *models.CreateServiceRequest) (*models.Service, error)
	DeactivateService(ctx context.Context, id, professionalID uuid.UUID) error
	ListByProfessional(ctx context.Context, professionalID uuid.UUID, activeOnly bool) ([]models.Service, error)
	UpdateStatistics(ctx context.Context, id uuid.UUID) error

	ListCategories(ctx context.Context) ([]models.ServiceCategory, error)
	CreateCategory(ctx context.Context, name, description, icon string, sortOrder int) (*models.ServiceCategory, error)
	ListTags(ctx context.Context) ([]models.ServiceTag, error)
	EnsureTags(ctx context.Context, names []string) ([]models.ServiceTag, error)
}

// Service implements CatalogService
type Service struct {
	logger    *zap.Logger
	db        *gorm.DB
	sanitizer *bluemonday.Policy
}

// NewService creates a new CatalogService
func NewService(logger *zap.Logger, db *gorm.DB) (CatalogService, error) {
	return &Service{
		logger:    logger,
		db:        db,
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

// Start starts the catalog service
func (s *Service) Start() error {
	s.logger.Info("Catalog service started")
	return nil
}

// Stop stops the catalog service
func (s *Service) Stop() error {
	s.logger.Info("Catalog service stopped")
	return nil
}

// defaultMaxParticipants maps a service type to its participant ceiling
func defaultMaxParticipants(serviceType string) int {
	switch serviceType {
	case "duo":
		return 2
	case "small_group":
		return 6
	case "large_group":
		return 20
	default:
		return 1
	}
}

// CreateService creates a bookable service for a professional
func (s *Service) CreateService(ctx context.Context, professionalID uuid.UUID, req *models.CreateServiceRequest) (*models.Service, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Professional{}).Where("id = ?", professionalID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check professional: %w", err)
	}
	if count == 0 {
		return nil, errs.NotFoundf("professional not found")
	}

	if !req.Price.IsPositive() {
		return nil, errs.Invalidf("price must be positive")
	}

	serviceType := req.ServiceType
	if serviceType == "" {
		serviceType = "individual"
	}
	maxParticipants := req.MaxParticipants
	if maxParticipants == 0 {
		maxParticipants = defaultMaxParticipants(serviceType)
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = 60
	}
	level := req.Level
	if level == "" {
		level = "todos"
	}

	if req.CategoryID != nil {
		if err := s.db.WithContext(ctx).Model(&models.ServiceCategory{}).Where("id = ?", *req.CategoryID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check category: %w", err)
		}
		if count == 0 {
			return nil, errs.NotFoundf("category not found")
		}
	}

	svc := &models.Service{
		ID:              uuid.New(),
		ProfessionalID:  professionalID,
		CategoryID:      req.CategoryID,
		Name:            req.Name,
		Description:     s.sanitizer.Sanitize(req.Description),
		ServiceType:     serviceType,
		MaxParticipants: maxParticipants,
		Modality:        req.Modality,
		DurationMinutes: duration,
		Level:           level,
		Price:           req.Price,
		WhatToBring:     req.WhatToBring,
		WhatIncludes:    req.WhatIncludes,
		LocationDetails: req.LocationDetails,
		IsActive:        true,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	if len(req.TagSlugs) > 0 {
		tags, err := s.tagsBySlugs(ctx, req.TagSlugs)
		if err != nil {
			return nil, err
		}
		svc.Tags = tags
	}

	if err := s.db.WithContext(ctx).Create(svc).Error; err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return svc, nil
}

// GetService gets a service with its tags
func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var svc models.Service
	if err := s.db.WithContext(ctx).Preload("Tags").Where("id = ?", id).First(&svc).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("service not found")
		}
		return nil, fmt.Errorf("failed to find service: %w", err)
	}
	return &svc, nil
}

// UpdateService updates a service owned by the professional
func (s *Service) UpdateService(ctx context.Context, id, professionalID uuid.UUID, req *models.CreateServiceRequest) (*models.Service, error) {
	svc, err := s.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc.ProfessionalID != professionalID {
		return nil, errs.Invalidf("service does not belong to professional")
	}

	if req.Name != "" {
		svc.Name = req.Name
	}
	if req.Description != "" {
		svc.Description = s.sanitizer.Sanitize(req.Description)
	}
	if req.ServiceType != "" {
		svc.ServiceType = req.ServiceType
	}
	if req.MaxParticipants > 0 {
		svc.MaxParticipants = req.MaxParticipants
	}
	if req.Modality != "" {
		svc.Modality = req.Modality
	}
	if req.DurationMinutes > 0 {
		svc.DurationMinutes = req.DurationMinutes
	}
	if req.Level != "" {
		svc.Level = req.Level
	}
	if req.Price.IsPositive() {
		svc.Price = req.Price
	}
	if req.WhatToBring != "" {
		svc.WhatToBring = req.WhatToBring
	}
	if req.WhatIncludes != "" {
		svc.WhatIncludes = req.WhatIncludes
	}
	if req.LocationDetails != "" {
		svc.LocationDetails = req.LocationDetails
	}
	if req.CategoryID != nil {
		svc.CategoryID = req.CategoryID
	}
	svc.UpdatedAt = time.Now()

	if len(req.TagSlugs) > 0 {
		tags, err := s.tagsBySlugs(ctx, req.TagSlugs)
		if err != nil {
			return nil, err
		}
		if err := s.db.WithContext(ctx).Model(svc).Association("Tags").Replace(tags); err != nil {
			return nil, fmt.Errorf("failed to replace tags: %w", err)
		}
		svc.Tags = tags
	}

	if err := s.db.WithContext(ctx).Save(svc).Error; err != nil {
		return nil, fmt.Errorf("failed to save service: %w", err)
	}
	return svc, nil
}

// DeactivateService hides a service from booking without deleting its history
func (s *Service) DeactivateService(ctx context.Context, id, professionalID uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&models.Service{}).
		Where("id = ? AND professional_id = ?", id, professionalID).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate service: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NotFoundf("service not found")
	}
	return nil
}

// ListByProfessional lists a professional's services
func (s *Service) ListByProfessional(ctx context.Context, professionalID uuid.UUID, activeOnly bool) ([]models.Service, error) {
	query := s.db.WithContext(ctx).Preload("Tags").Where("professional_id = ?", professionalID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var services []models.Service
	if err := query.Order("created_at DESC").Find(&services).Error; err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

// UpdateStatistics recomputes the completed booking counter for a service
func (s *Service) UpdateStatistics(ctx context.Context, id uuid.UUID) error {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("service_id = ? AND status = ?", id, models.BookingCompleted).
		Count(&total).Error; err != nil {
		return fmt.Errorf("failed to count bookings: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.Service{}).Where("id = ?", id).
		Updates(map[string]interface{}{"total_bookings": total, "updated_at": time.Now()}).Error; err != nil {
		return fmt.Errorf("failed to update statistics: %w", err)
	}
	return nil
}

// ListCategories lists active categories in display order
func (s *Service) ListCategories(ctx context.Context) ([]models.ServiceCategory, error) {
	var categories []models.ServiceCategory
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order, name").
		Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// CreateCategory creates a service category (admin operation)
func (s *Service) CreateCategory(ctx context.Context, name, description, icon string, sortOrder int) (*models.ServiceCategory, error) {
	category := &models.ServiceCategory{
		ID:          uuid.New(),
		Name:        name,
		Slug:        slugify(name),
		Description: description,
		Icon:        icon,
		SortOrder:   sortOrder,
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

// ListTags lists all tags
func (s *Service) ListTags(ctx context.Context) ([]models.ServiceTag, error) {
	var tags []models.ServiceTag
	if err := s.db.WithContext(ctx).Order("name").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// EnsureTags creates any tags that do not yet exist and returns the full set
func (s *Service) EnsureTags(ctx context.Context, names []string) ([]models.ServiceTag, error) {
	tags := make([]models.ServiceTag, 0, len(names))
	for _, name := range names {
		slug := slugify(name)
		var tag models.ServiceTag
		err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&tag).Error
		if err == gorm.ErrRecordNotFound {
			tag = models.ServiceTag{ID: uuid.New(), Name: name, Slug: slug}
			if err := s.db.WithContext(ctx).Create(&tag).Error; err != nil {
				return nil, fmt.Errorf("failed to create tag: %w", err)
			}
		} else if err != nil {
			return nil, fmt.Errorf("failed to find tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// tagsBySlugs resolves tag slugs, failing on unknown ones
func (s *Service) tagsBySlugs(ctx context.Context, slugs []string) ([]models.ServiceTag, error) {
	var tags []models.ServiceTag
	if err := s.db.WithContext(ctx).Where("slug IN ?", slugs).Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve tags: %w", err)
	}
	if len(tags) != len(slugs) {
		return nil, errs.Invalidf("unknown tag slug")
	}
	return tags, nil
}
