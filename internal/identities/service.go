package identities

import (
	"context"
	"fmt"
	"time"

	"github.com/conecta-cl/marketplace/pkg/errs"
	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// IdentityService defines user identity operations.
type IdentityService interface {
	Start() error
	Stop() error
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	Verify2FA(ctx context.Context, userID, code string) (*models.LoginResponse, error)
	Enable2FA(ctx context.Context, userID string) (string, string, error)
	Confirm2FA(ctx context.Context, userID, code string) error
	Disable2FA(ctx context.Context, userID, code string) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateUser(ctx context.Context, userID, firstName, lastName string) (*models.User, error)
	ValidateToken(token string) (string, error)
	IsAdmin(userID string) (bool, error)
}

// Service implements IdentityService
type Service struct {
	logger             *zap.Logger
	db                 *gorm.DB
	jwtSecret          string
	jwtExpirationHours int
}

// NewService creates a new IdentityService
func NewService(logger *zap.Logger, db *gorm.DB, jwtSecret string, jwtExpirationHours int) (IdentityService, error) {
	if jwtSecret == "" {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}
	if jwtExpirationHours <= 0 {
		jwtExpirationHours = 24
	}
	return &Service{
		logger:             logger,
		db:                 db,
		jwtSecret:          jwtSecret,
		jwtExpirationHours: jwtExpirationHours,
	}, nil
}

// Start starts the identities service
func (s *Service) Start() error {
	s.logger.Info("Identities service started")
	return nil
}

// Stop stops the identities service
func (s *Service) Stop() error {
	s.logger.Info("Identities service stopped")
	return nil
}

// Register registers a new user
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return nil, errs.Conflictf("email already exists")
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		return nil, errs.Conflictf("username already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         "user",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login logs in a user by email or username
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ? OR username = ?", req.Login, req.Login).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("invalid credentials")
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	if user.MFAEnabled {
		return &models.LoginResponse{
			Requires2FA: true,
			UserID:      user.ID,
		}, nil
	}

	token, err := s.generateToken(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	user.LastLogin = time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", user.LastLogin).Error; err != nil {
		s.logger.Warn("Failed to record last login", zap.Error(err))
	}

	return &models.LoginResponse{
		User:  &user,
		Token: token,
	}, nil
}

// Verify2FA completes a login for a user with 2FA enabled
func (s *Service) Verify2FA(ctx context.Context, userID, code string) (*models.LoginResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("user not found")
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !user.MFAEnabled || user.TOTPSecret == "" {
		return nil, errs.Invalidf("2FA not enabled")
	}
	if !totp.Validate(code, user.TOTPSecret) {
		return nil, errs.Invalidf("invalid 2FA code")
	}

	token, err := s.generateToken(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &models.LoginResponse{
		User:  &user,
		Token: token,
	}, nil
}

// Enable2FA generates a TOTP secret for the user. The secret and provisioning
// URL are returned; 2FA becomes active once Confirm2FA succeeds.
func (s *Service) Enable2FA(ctx context.Context, userID string) (string, string, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", "", errs.NotFoundf("user not found")
		}
		return "", "", fmt.Errorf("failed to find user: %w", err)
	}

	if user.MFAEnabled {
		return "", "", errs.Conflictf("2FA already enabled")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "Conecta",
		AccountName: user.Email,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	user.TOTPSecret = key.Secret()
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return "", "", fmt.Errorf("failed to save user: %w", err)
	}

	return key.Secret(), key.URL(), nil
}

// Confirm2FA verifies the first TOTP code and activates 2FA
func (s *Service) Confirm2FA(ctx context.Context, userID, code string) error {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return errs.NotFoundf("user not found")
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	if user.MFAEnabled {
		return errs.Conflictf("2FA already enabled")
	}
	if user.TOTPSecret == "" {
		return errs.Invalidf("2FA setup not started")
	}
	if !totp.Validate(code, user.TOTPSecret) {
		return errs.Invalidf("invalid 2FA code")
	}

	user.MFAEnabled = true
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// Disable2FA disables 2FA after verifying a current code
func (s *Service) Disable2FA(ctx context.Context, userID, code string) error {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return errs.NotFoundf("user not found")
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	if !user.MFAEnabled {
		return errs.Invalidf("2FA not enabled")
	}
	if !totp.Validate(code, user.TOTPSecret) {
		return errs.Invalidf("invalid 2FA code")
	}

	user.MFAEnabled = false
	user.TOTPSecret = ""
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUser gets a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("user not found")
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// UpdateUser updates a user's name
func (s *Service) UpdateUser(ctx context.Context, userID, firstName, lastName string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("user not found")
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user.FirstName = firstName
	user.LastName = lastName
	user.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	return &user, nil
}

// ValidateToken validates a JWT token and returns the user ID
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("invalid user ID")
	}

	return userID, nil
}

// IsAdmin checks if a user has the admin role
func (s *Service) IsAdmin(userID string) (bool, error) {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, errs.NotFoundf("user not found")
		}
		return false, fmt.Errorf("failed to find user: %w", err)
	}
	return user.Role == "admin", nil
}

// generateToken generates a signed JWT for a user
func (s *Service) generateToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  time.Now().Add(time.Hour * time.Duration(s.jwtExpirationHours)).Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
