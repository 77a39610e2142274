package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email" validate:"required,email,max=254"`
	Username  string `json:"username" binding:"required,min=3,max=30" validate:"required,min=3,max=30,alphanum"`
	Password  string `json:"password" binding:"required,min=8" validate:"required,min=8,max=128"`
	FirstName string `json:"first_name" binding:"required" validate:"required,min=1,max=50"`
	LastName  string `json:"last_name" binding:"required" validate:"required,min=1,max=50"`
}

// LoginRequest represents a user login request
type LoginRequest struct {
	Login    string `json:"login" binding:"required" validate:"required,max=254"` // email or username
	Password string `json:"password" binding:"required" validate:"required,min=8,max=128"`
}

// LoginResponse represents a user login response
type LoginResponse struct {
	User        *User     `json:"user,omitempty"`
	Token       string    `json:"token,omitempty"`
	Requires2FA bool      `json:"requires_2fa"`
	UserID      uuid.UUID `json:"user_id,omitempty"`
}

// CreateProfessionalRequest creates a professional profile for the authenticated user
type CreateProfessionalRequest struct {
	Bio               string `json:"bio" validate:"omitempty,max=500"`
	Phone             string `json:"phone" binding:"required" validate:"required,max=20"`
	YearsOfExperience int    `json:"years_of_experience" validate:"min=0,max=50"`
	PrimarySpecialty  string `json:"primary_specialty" binding:"required" validate:"required,oneof=yoga pilates personal_training functional hiit trx animal_flow calisthenics crossfit barre zumba running cycling other"`
	Comuna            string `json:"comuna" binding:"required" validate:"required,oneof=las_condes vitacura lo_barnechea providencia nunoa la_reina penalolen other"`
	Address           string `json:"address" validate:"omitempty,max=255"`
	InstagramHandle   string `json:"instagram_handle" validate:"omitempty,max=100"`
	WhatsappNumber    string `json:"whatsapp_number" validate:"omitempty,max=20"`
	UsernameSlug      string `json:"username_slug" validate:"omitempty,max=100"` // auto-generated when empty
}

// UpdateProfessionalRequest updates mutable profile fields
type UpdateProfessionalRequest struct {
	Bio               *string `json:"bio" validate:"omitempty,max=500"`
	Phone             *string `json:"phone" validate:"omitempty,max=20"`
	YearsOfExperience *int    `json:"years_of_experience" validate:"omitempty,min=0,max=50"`
	PrimarySpecialty  *string `json:"primary_specialty" validate:"omitempty,oneof=yoga pilates personal_training functional hiit trx animal_flow calisthenics crossfit barre zumba running cycling other"`
	Comuna            *string `json:"comuna" validate:"omitempty,oneof=las_condes vitacura lo_barnechea providencia nunoa la_reina penalolen other"`
	Address           *string `json:"address" validate:"omitempty,max=255"`
	InstagramHandle   *string `json:"instagram_handle" validate:"omitempty,max=100"`
	WhatsappNumber    *string `json:"whatsapp_number" validate:"omitempty,max=20"`
	IsActive          *bool   `json:"is_active"`
}

// SearchFilter represents query parameters for professional search
type SearchFilter struct {
	Query       string `form:"q" json:"q"`
	Specialty   string `form:"specialty" json:"specialty"`
	Comuna      string `form:"comuna" json:"comuna"`
	Modality    string `form:"modality" json:"modality"`
	ServiceType string `form:"service_type" json:"service_type"`
	MinRating   string `form:"min_rating" json:"min_rating"`
	Page        int    `form:"page" json:"page"`
	PageSize    int    `form:"page_size" json:"page_size"`
}

// CreateCertificationRequest adds a certification to a professional
type CreateCertificationRequest struct {
	Name         string `json:"name" binding:"required" validate:"required,max=200"`
	Institution  string `json:"institution" binding:"required" validate:"required,max=200"`
	Year         int    `json:"year" binding:"required" validate:"required,min=1950,max=2100"`
	DocumentPath string `json:"document_path" validate:"omitempty,max=255"`
}

// CreateClientRequest creates a client profile for the authenticated user
type CreateClientRequest struct {
	Phone        string `json:"phone" binding:"required" validate:"required,max=20"`
	FitnessLevel string `json:"fitness_level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Notes        string `json:"notes" validate:"omitempty,max=1000"`
}

// CreateServiceRequest creates a service listing for a professional
type CreateServiceRequest struct {
	Name            string          `json:"name" binding:"required" validate:"required,max=200"`
	Description     string          `json:"description" validate:"omitempty,max=1000"`
	ServiceType     string          `json:"service_type" validate:"omitempty,oneof=individual duo small_group large_group"`
	MaxParticipants int             `json:"max_participants" validate:"omitempty,min=1,max=50"`
	Modality        string          `json:"modality" binding:"required" validate:"required,oneof=presencial online a_domicilio hibrido"`
	DurationMinutes int             `json:"duration_minutes" validate:"omitempty,oneof=30 45 60 90 120"`
	Level           string          `json:"level" validate:"omitempty,oneof=todos principiante intermedio avanzado"`
	Price           decimal.Decimal `json:"price" binding:"required"`
	WhatToBring     string          `json:"what_to_bring" validate:"omitempty,max=500"`
	WhatIncludes    string          `json:"what_includes" validate:"omitempty,max=500"`
	LocationDetails string          `json:"location_details" validate:"omitempty,max=500"`
	CategoryID      *uuid.UUID      `json:"category_id" validate:"omitempty"`
	TagSlugs        []string        `json:"tag_slugs"`
}

// CreateBookingRequest books a slot on a service
type CreateBookingRequest struct {
	ServiceID    uuid.UUID `json:"service_id" binding:"required" validate:"required"`
	Date         string    `json:"date" binding:"required" validate:"required"` // "2006-01-02"
	StartTime    string    `json:"start_time" binding:"required" validate:"required,len=5"`
	Participants int       `json:"participants" validate:"omitempty,min=1"`
	ClientName   string    `json:"client_name" binding:"required" validate:"required,max=200"`
	ClientEmail  string    `json:"client_email" binding:"required,email" validate:"required,email"`
	ClientPhone  string    `json:"client_phone" binding:"required" validate:"required,max=20"`
	IsFirstTime  bool      `json:"is_first_time"`
	ClientNotes  string    `json:"client_notes" validate:"omitempty,max=500"`
}

// CancelBookingRequest cancels a booking with an optional reason
type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// CompletePaymentRequest marks a payment completed with gateway details
type CompletePaymentRequest struct {
	GatewayTransactionID string `json:"gateway_transaction_id" validate:"omitempty,max=255"`
	PaymentMethod        string `json:"payment_method" validate:"omitempty,oneof=credit_card debit_card bank_transfer other"`
	GatewayResponse      string `json:"gateway_response" validate:"omitempty,json"`
}

// RefundRequest refunds part or all of a completed payment
type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount"` // nil refunds the outstanding amount
	Reason string           `json:"reason" validate:"omitempty,max=500"`
}

// CreateReviewRequest creates a review for a completed booking
type CreateReviewRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required" validate:"required"`
	Rating    int       `json:"rating" binding:"required,min=1,max=5" validate:"required,min=1,max=5"`
	Comment   string    `json:"comment" validate:"omitempty,max=1000"`
}

// ReviewResponseRequest adds the professional's reply to a review
type ReviewResponseRequest struct {
	Response string `json:"response" binding:"required" validate:"required,max=500"`
}

// ReportReviewRequest reports a review for moderation
type ReportReviewRequest struct {
	Reason  string `json:"reason" binding:"required" validate:"required,oneof=inappropriate offensive spam fake harassment other"`
	Details string `json:"details" validate:"omitempty,max=500"`
}

// AvailabilityBlockRequest creates a recurring availability block
type AvailabilityBlockRequest struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" binding:"required" validate:"required,len=5"`
	EndTime   string `json:"end_time" binding:"required" validate:"required,len=5"`
}

// BlockedDateRequest blocks a date or a time range within it
type BlockedDateRequest struct {
	Date      string  `json:"date" binding:"required" validate:"required"` // "2006-01-02"
	AllDay    *bool   `json:"all_day"`
	StartTime *string `json:"start_time" validate:"omitempty,len=5"`
	EndTime   *string `json:"end_time" validate:"omitempty,len=5"`
	Reason    string  `json:"reason" validate:"omitempty,max=200"`
}

// PageInfo describes offset pagination in list responses
type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// NewPageInfo computes pagination metadata for a result set.
func NewPageInfo(page, pageSize int, total int64) PageInfo {
	pages := (total + int64(pageSize) - 1) / int64(pageSize)
	return PageInfo{Page: page, PageSize: pageSize, Total: total, TotalPages: pages}
}

// BookingEvent is the payload published on booking lifecycle changes
type BookingEvent struct {
	BookingID      uuid.UUID `json:"booking_id"`
	ClientID       uuid.UUID `json:"client_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	ServiceID      uuid.UUID `json:"service_id"`
	Status         string    `json:"status"`
	Date           string    `json:"date"`
	StartTime      string    `json:"start_time"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// PaymentEvent is the payload published on payment lifecycle changes
type PaymentEvent struct {
	PaymentID  uuid.UUID       `json:"payment_id"`
	BookingID  uuid.UUID       `json:"booking_id"`
	Gateway    string          `json:"gateway"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// ReminderEvent is the payload published when a booking reminder is due
type ReminderEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	ClientEmail string    `json:"client_email"`
	ClientPhone string    `json:"client_phone"`
	Window      string    `json:"window"` // "24h" or "2h"
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	OccurredAt  time.Time `json:"occurred_at"`
}
