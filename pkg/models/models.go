package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User represents a user account, shared by clients and professionals
type User struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	Email        string    `json:"email" gorm:"uniqueIndex" validate:"required,email,max=254"`
	Username     string    `json:"username" gorm:"uniqueIndex" validate:"required,min=3,max=30,alphanum"`
	PasswordHash string    `json:"-" gorm:"column:password_hash" validate:"required,min=60"`
	FirstName    string    `json:"first_name" validate:"required,min=1,max=50"`
	LastName     string    `json:"last_name" validate:"required,min=1,max=50"`
	Role         string    `json:"role" gorm:"default:user" validate:"required,oneof=user admin"` // user, admin
	MFAEnabled   bool      `json:"mfa_enabled"`
	TOTPSecret   string    `json:"-" gorm:"column:totp_secret"`
	LastLogin    time.Time `json:"last_login"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Verification states shared by professionals and certifications
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// Professional represents a professional profile attached to a user
type Professional struct {
	ID                 uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	UserID             uuid.UUID       `json:"user_id" gorm:"type:uuid;uniqueIndex" validate:"required,uuid"`
	FullName           string          `json:"full_name" validate:"required,min=1,max=120"` // snapshot of user name, used for search and slugs
	PhotoPath          string          `json:"photo_path" validate:"omitempty,max=255"`
	Bio                string          `json:"bio" gorm:"type:text" validate:"omitempty,max=500"`
	Phone              string          `json:"phone" validate:"required,max=20"`
	YearsOfExperience  int             `json:"years_of_experience" validate:"min=0,max=50"`
	PrimarySpecialty   string          `json:"primary_specialty" gorm:"index:idx_specialty_comuna" validate:"required,oneof=yoga pilates personal_training functional hiit trx animal_flow calisthenics crossfit barre zumba running cycling other"`
	Comuna             string          `json:"comuna" gorm:"index:idx_specialty_comuna" validate:"required,oneof=las_condes vitacura lo_barnechea providencia nunoa la_reina penalolen other"`
	Address            string          `json:"address" validate:"omitempty,max=255"`
	InstagramHandle    string          `json:"instagram_handle" validate:"omitempty,max=100"`
	WhatsappNumber     string          `json:"whatsapp_number" validate:"omitempty,max=20"`
	UsernameSlug       string          `json:"username_slug" gorm:"uniqueIndex" validate:"required,max=100"`
	VerificationStatus string          `json:"verification_status" gorm:"default:pending;index" validate:"required,oneof=pending verified rejected"`
	IsActive           bool            `json:"is_active" gorm:"default:true;index"`
	TotalBookings      int64           `json:"total_bookings" validate:"min=0"`
	AverageRating      decimal.Decimal `json:"average_rating" gorm:"type:numeric(3,2)"`
	TotalReviews       int64           `json:"total_reviews" validate:"min=0"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsVerified reports whether the professional passed verification.
func (p *Professional) IsVerified() bool {
	return p.VerificationStatus == VerificationVerified
}

// Certification represents a professional qualification with its review workflow
type Certification struct {
	ID                 uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	ProfessionalID     uuid.UUID  `json:"professional_id" gorm:"type:uuid;index:idx_cert_prof_status" validate:"required,uuid"`
	Name               string     `json:"name" validate:"required,max=200"`
	Institution        string     `json:"institution" validate:"required,max=200"`
	Year               int        `json:"year" validate:"min=1950,max=2100"`
	DocumentPath       string     `json:"document_path" validate:"omitempty,max=255"`
	VerificationStatus string     `json:"verification_status" gorm:"default:pending_review;index:idx_cert_prof_status" validate:"required,oneof=pending_review verified rejected"`
	VerificationNotes  string     `json:"verification_notes" gorm:"type:text"`
	VerifiedBy         *uuid.UUID `json:"verified_by" gorm:"type:uuid" validate:"omitempty,uuid"`
	VerifiedAt         *time.Time `json:"verified_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

// AvailabilityBlock represents a recurring weekly availability window.
// DayOfWeek follows 0=Monday .. 6=Sunday. Times are "HH:MM".
type AvailabilityBlock struct {
	ID             uuid.UUID `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	ProfessionalID uuid.UUID `json:"professional_id" gorm:"type:uuid;index:idx_avail_prof_day" validate:"required,uuid"`
	DayOfWeek      int       `json:"day_of_week" gorm:"index:idx_avail_prof_day" validate:"min=0,max=6"`
	StartTime      string    `json:"start_time" validate:"required,len=5"`
	EndTime        string    `json:"end_time" validate:"required,len=5"`
	IsActive       bool      `json:"is_active" gorm:"default:true"`
}

// BlockedDate represents a specific date (or time range) the professional is unavailable
type BlockedDate struct {
	ID             uuid.UUID `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	ProfessionalID uuid.UUID `json:"professional_id" gorm:"type:uuid;index:idx_blocked_prof_date" validate:"required,uuid"`
	Date           time.Time `json:"date" gorm:"type:date;index:idx_blocked_prof_date" validate:"required"`
	AllDay         bool      `json:"all_day" gorm:"default:true"`
	StartTime      *string   `json:"start_time" validate:"omitempty,len=5"`
	EndTime        *string   `json:"end_time" validate:"omitempty,len=5"`
	Reason         string    `json:"reason" validate:"omitempty,max=200"`
	CreatedAt      time.Time `json:"created_at"`
}

// Client represents a client profile attached to a user
type Client struct {
	ID                     uuid.UUID `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	UserID                 uuid.UUID `json:"user_id" gorm:"type:uuid;uniqueIndex" validate:"required,uuid"`
	Phone                  string    `json:"phone" validate:"required,max=20"`
	FitnessLevel           string    `json:"fitness_level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Notes                  string    `json:"notes" gorm:"type:text" validate:"omitempty,max=1000"`
	TotalBookings          int64     `json:"total_bookings" validate:"min=0"`
	TotalCompletedBookings int64     `json:"total_completed_bookings" validate:"min=0"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Favorite represents a client's favorite professional
type Favorite struct {
	ID             uuid.UUID `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	ClientID       uuid.UUID `json:"client_id" gorm:"type:uuid;uniqueIndex:idx_fav_client_prof" validate:"required,uuid"`
	ProfessionalID uuid.UUID `json:"professional_id" gorm:"type:uuid;uniqueIndex:idx_fav_client_prof" validate:"required,uuid"`
	CreatedAt      time.Time `json:"created_at"`
}

// Service represents a bookable service offered by a professional
type Service struct {
	ID              uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	ProfessionalID  uuid.UUID       `json:"professional_id" gorm:"type:uuid;index" validate:"required,uuid"`
	CategoryID      *uuid.UUID      `json:"category_id" gorm:"type:uuid;index" validate:"omitempty,uuid"`
	Name            string          `json:"name" validate:"required,max=200"`
	Description     string          `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	ServiceType     string          `json:"service_type" gorm:"default:individual;index:idx_svc_type_modality" validate:"required,oneof=individual duo small_group large_group"`
	MaxParticipants int             `json:"max_participants" gorm:"default:1" validate:"min=1,max=50"`
	Modality        string          `json:"modality" gorm:"index:idx_svc_type_modality" validate:"required,oneof=presencial online a_domicilio hibrido"`
	DurationMinutes int             `json:"duration_minutes" gorm:"default:60" validate:"required,oneof=30 45 60 90 120"`
	Level           string          `json:"level" gorm:"default:todos" validate:"required,oneof=todos principiante intermedio avanzado"`
	Price           decimal.Decimal `json:"price" gorm:"type:numeric(10,2)" validate:"required"`
	WhatToBring     string          `json:"what_to_bring" gorm:"type:text" validate:"omitempty,max=500"`
	WhatIncludes    string          `json:"what_includes" gorm:"type:text" validate:"omitempty,max=500"`
	LocationDetails string          `json:"location_details" gorm:"type:text" validate:"omitempty,max=500"`
	IsActive        bool            `json:"is_active" gorm:"default:true;index"`
	TotalBookings   int64           `json:"total_bookings" validate:"min=0"`
	Tags            []ServiceTag    `json:"tags,omitempty" gorm:"many2many:service_tag_links"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ServiceCategory groups services for navigation and filtering
type ServiceCategory struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	Name        string    `json:"name" gorm:"uniqueIndex" validate:"required,max=100"`
	Slug        string    `json:"slug" gorm:"uniqueIndex" validate:"required,max=100"`
	Description string    `json:"description" gorm:"type:text" validate:"omitempty,max=500"`
	Icon        string    `json:"icon" validate:"omitempty,max=50"`
	SortOrder   int       `json:"sort_order" gorm:"column:sort_order"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
}

// ServiceTag labels services for filtering ("flexibility", "strength", ...)
type ServiceTag struct {
	ID   uuid.UUID `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	Name string    `json:"name" gorm:"uniqueIndex" validate:"required,max=50"`
	Slug string    `json:"slug" gorm:"uniqueIndex" validate:"required,max=50"`
}

// Booking statuses
const (
	BookingPendingPayment          = "pending_payment"
	BookingConfirmed               = "confirmed"
	BookingCompleted               = "completed"
	BookingCancelledByClient       = "cancelled_by_client"
	BookingCancelledByProfessional = "cancelled_by_professional"
	BookingNoShow                  = "no_show"
)

// Booking payment statuses
const (
	BookingPaymentPending   = "pending"
	BookingPaymentCompleted = "completed"
	BookingPaymentFailed    = "failed"
	BookingPaymentRefunded  = "refunded"
)

// Booking represents a scheduled session between a client and a professional.
// Date is the calendar day; StartTime/EndTime are "HH:MM" wall-clock times.
// Contact fields and price are snapshots taken at booking time.
type Booking struct {
	ID                   uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	ClientID             uuid.UUID       `json:"client_id" gorm:"type:uuid;index:idx_booking_client_date" validate:"required,uuid"`
	ServiceID            uuid.UUID       `json:"service_id" gorm:"type:uuid;uniqueIndex:idx_booking_slot;index:idx_booking_service_date" validate:"required,uuid"`
	ProfessionalID       uuid.UUID       `json:"professional_id" gorm:"type:uuid;index" validate:"required,uuid"`
	Date                 time.Time       `json:"date" gorm:"type:date;uniqueIndex:idx_booking_slot;index:idx_booking_client_date;index:idx_booking_service_date" validate:"required"`
	StartTime            string          `json:"start_time" gorm:"uniqueIndex:idx_booking_slot" validate:"required,len=5"`
	EndTime              string          `json:"end_time" validate:"required,len=5"`
	Participants         int             `json:"participants" gorm:"default:1" validate:"min=1"`
	ClientName           string          `json:"client_name" validate:"required,max=200"`
	ClientEmail          string          `json:"client_email" validate:"required,email"`
	ClientPhone          string          `json:"client_phone" validate:"required,max=20"`
	IsFirstTime          bool            `json:"is_first_time"`
	ClientNotes          string          `json:"client_notes" gorm:"type:text" validate:"omitempty,max=500"`
	Status               string          `json:"status" gorm:"default:pending_payment;index" validate:"required,oneof=pending_payment confirmed completed cancelled_by_client cancelled_by_professional no_show"`
	CancellationReason   string          `json:"cancellation_reason" gorm:"type:text" validate:"omitempty,max=500"`
	CancelledAt          *time.Time      `json:"cancelled_at"`
	Price                decimal.Decimal `json:"price" gorm:"type:numeric(10,2)" validate:"required"`
	CommissionPercentage decimal.Decimal `json:"commission_percentage" gorm:"type:numeric(5,2)"`
	CommissionAmount     decimal.Decimal `json:"commission_amount" gorm:"type:numeric(10,2)"`
	PaymentStatus        string          `json:"payment_status" gorm:"default:pending" validate:"required,oneof=pending completed failed refunded"`
	ReminderSent24h      bool            `json:"reminder_sent_24h" gorm:"column:reminder_sent_24h"`
	ReminderSent2h       bool            `json:"reminder_sent_2h" gorm:"column:reminder_sent_2h"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	CompletedAt          *time.Time      `json:"completed_at"`
}

// StartsAt combines Date and StartTime into a single instant. StartTime is a
// wall-clock time in the server's location, so the instant is built in
// time.Local regardless of the location Date was stored with.
func (b *Booking) StartsAt() time.Time {
	t, err := time.Parse("15:04", b.StartTime)
	if err != nil {
		return b.Date
	}
	return time.Date(b.Date.Year(), b.Date.Month(), b.Date.Day(), t.Hour(), t.Minute(), 0, 0, time.Local)
}

// IsPast reports whether the booking start time has already passed.
func (b *Booking) IsPast() bool {
	return b.StartsAt().Before(time.Now())
}

// BookingNote is a private note a professional keeps about a booking
type BookingNote struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	BookingID uuid.UUID `json:"booking_id" gorm:"type:uuid;index" validate:"required,uuid"`
	Note      string    `json:"note" gorm:"type:text" validate:"required,max=1000"`
	CreatedAt time.Time `json:"created_at"`
}

// Payment statuses
const (
	PaymentPending    = "pending"
	PaymentProcessing = "processing"
	PaymentCompleted  = "completed"
	PaymentFailed     = "failed"
	PaymentCancelled  = "cancelled"
	PaymentRefunded   = "refunded"
)

// Payment represents a gateway payment transaction for a booking
type Payment struct {
	ID                   uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	BookingID            uuid.UUID       `json:"booking_id" gorm:"type:uuid;uniqueIndex" validate:"required,uuid"`
	Gateway              string          `json:"gateway" gorm:"default:flow;index:idx_payment_status_gateway" validate:"required,oneof=flow mercadopago stripe manual"`
	GatewayTransactionID string          `json:"gateway_transaction_id" gorm:"index" validate:"omitempty,max=255"`
	Amount               decimal.Decimal `json:"amount" gorm:"type:numeric(10,2)" validate:"required"`
	Currency             string          `json:"currency" gorm:"default:CLP" validate:"required,len=3"`
	Status               string          `json:"status" gorm:"default:pending;index:idx_payment_status_gateway" validate:"required,oneof=pending processing completed failed cancelled refunded"`
	PaymentMethod        string          `json:"payment_method" validate:"omitempty,oneof=credit_card debit_card bank_transfer other"`
	GatewayResponse      string          `json:"gateway_response" gorm:"type:text" validate:"omitempty,json"` // raw gateway response JSON
	ErrorMessage         string          `json:"error_message" gorm:"type:text"`
	RefundAmount         decimal.Decimal `json:"refund_amount" gorm:"type:numeric(10,2)"`
	RefundReason         string          `json:"refund_reason" gorm:"type:text"`
	RefundedAt           *time.Time      `json:"refunded_at"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	CompletedAt          *time.Time      `json:"completed_at"`
}

// IsSuccessful reports whether the payment completed.
func (p *Payment) IsSuccessful() bool {
	return p.Status == PaymentCompleted
}

// CanBeRefunded reports whether any refundable amount remains.
func (p *Payment) CanBeRefunded() bool {
	return p.Status == PaymentCompleted && p.RefundAmount.LessThan(p.Amount)
}

// Payout statuses
const (
	PayoutPending    = "pending"
	PayoutProcessing = "processing"
	PayoutCompleted  = "completed"
	PayoutFailed     = "failed"
	PayoutCancelled  = "cancelled"
)

// Payout represents a money transfer to a professional for completed bookings
type Payout struct {
	ID                   uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	ProfessionalID       uuid.UUID       `json:"professional_id" gorm:"type:uuid;index:idx_payout_prof_status" validate:"required,uuid"`
	Amount               decimal.Decimal `json:"amount" gorm:"type:numeric(10,2)" validate:"required"`
	Status               string          `json:"status" gorm:"default:pending;index:idx_payout_prof_status" validate:"required,oneof=pending processing completed failed cancelled"`
	BankName             string          `json:"bank_name" validate:"omitempty,max=100"`
	AccountNumber        string          `json:"account_number" validate:"omitempty,max=50"`
	AccountHolder        string          `json:"account_holder" validate:"omitempty,max=200"`
	TransactionReference string          `json:"transaction_reference" validate:"omitempty,max=255"`
	Notes                string          `json:"notes" gorm:"type:text"`
	CreatedAt            time.Time       `json:"created_at"`
	CompletedAt          *time.Time      `json:"completed_at"`
}

// PayoutBooking links a payout to one of the bookings it covers
type PayoutBooking struct {
	ID        uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	PayoutID  uuid.UUID       `json:"payout_id" gorm:"type:uuid;uniqueIndex:idx_payout_booking" validate:"required,uuid"`
	BookingID uuid.UUID       `json:"booking_id" gorm:"type:uuid;uniqueIndex:idx_payout_booking" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(10,2)" validate:"required"`
}

// Review represents a client rating for a professional after a completed booking
type Review struct {
	ID                     uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	ClientID               uuid.UUID  `json:"client_id" gorm:"type:uuid;index" validate:"required,uuid"`
	ProfessionalID         uuid.UUID  `json:"professional_id" gorm:"type:uuid;index:idx_review_prof_approved" validate:"required,uuid"`
	BookingID              uuid.UUID  `json:"booking_id" gorm:"type:uuid;uniqueIndex" validate:"required,uuid"`
	Rating                 int        `json:"rating" validate:"min=1,max=5"`
	Comment                string     `json:"comment" gorm:"type:text" validate:"omitempty,max=1000"`
	ClientDisplayName      string     `json:"client_display_name" validate:"omitempty,max=50"` // first name only, for privacy
	ProfessionalResponse   string     `json:"professional_response" gorm:"type:text" validate:"omitempty,max=500"`
	ProfessionalResponseAt *time.Time `json:"professional_response_at"`
	IsApproved             bool       `json:"is_approved" gorm:"default:true;index:idx_review_prof_approved"`
	IsFlagged              bool       `json:"is_flagged" gorm:"default:false"`
	FlaggedReason          string     `json:"flagged_reason" gorm:"type:text" validate:"omitempty,max=500"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// ReviewReport statuses
const (
	ReportPending     = "pending"
	ReportReviewed    = "reviewed"
	ReportActionTaken = "action_taken"
	ReportDismissed   = "dismissed"
)

// ReviewReport represents a user report of an inappropriate review
type ReviewReport struct {
	ID              uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	ReviewID        uuid.UUID  `json:"review_id" gorm:"type:uuid;index" validate:"required,uuid"`
	ReportedBy      *uuid.UUID `json:"reported_by" gorm:"type:uuid" validate:"omitempty,uuid"`
	Reason          string     `json:"reason" validate:"required,oneof=inappropriate offensive spam fake harassment other"`
	Details         string     `json:"details" gorm:"type:text" validate:"omitempty,max=500"`
	Status          string     `json:"status" gorm:"default:pending;index" validate:"required,oneof=pending reviewed action_taken dismissed"`
	ResolutionNotes string     `json:"resolution_notes" gorm:"type:text" validate:"omitempty,max=500"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
}
