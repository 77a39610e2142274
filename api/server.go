package api

import (
	"net/http"
	"time"

	"github.com/conecta-cl/marketplace/internal/bookings"
	"github.com/conecta-cl/marketplace/internal/catalog"
	"github.com/conecta-cl/marketplace/internal/clients"
	"github.com/conecta-cl/marketplace/internal/identities"
	"github.com/conecta-cl/marketplace/internal/payments"
	"github.com/conecta-cl/marketplace/internal/professionals"
	"github.com/conecta-cl/marketplace/internal/reviews"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	limiter "github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Server represents the API server
type Server struct {
	router        *gin.Engine
	logger        *zap.Logger
	identities    identities.IdentityService
	professionals professionals.ProfessionalService
	clients       clients.ClientService
	catalog       catalog.CatalogService
	bookings      bookings.BookingService
	payments      payments.PaymentService
	reviews       reviews.ReviewService
	validator     *validator.Validate
	rateLimiter   gin.HandlerFunc
}

// NewServer creates a new API server with injected service interfaces
func NewServer(
	logger *zap.Logger,
	identitySvc identities.IdentityService,
	professionalSvc professionals.ProfessionalService,
	clientSvc clients.ClientService,
	catalogSvc catalog.CatalogService,
	bookingSvc bookings.BookingService,
	paymentSvc payments.PaymentService,
	reviewSvc reviews.ReviewService,
) *Server {
	server := &Server{
		logger:        logger,
		identities:    identitySvc,
		professionals: professionalSvc,
		clients:       clientSvc,
		catalog:       catalogSvc,
		bookings:      bookingSvc,
		payments:      paymentSvc,
		reviews:       reviewSvc,
		validator:     validator.New(),
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware("conecta-api"))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 100 req/min per IP
	store := memory.NewStore()
	rate, _ := limiter.NewRateFromFormatted("100-M")
	server.rateLimiter = ginlimiter.NewMiddleware(limiter.New(store, rate))

	server.router = router
	server.registerRoutes()
	return server
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	public := s.router.Group("/api/v1")
	public.Use(s.rateLimiter)
	{
		public.GET("/metrics", gin.WrapH(promhttp.Handler()))
		public.GET("/health", s.healthCheck)

		// Accounts
		public.POST("/register", s.register)
		public.POST("/login", s.login)
		public.POST("/login/2fa", s.verify2FALogin)

		// Discovery
		public.GET("/professionals", s.searchProfessionals)
		public.GET("/professionals/featured", s.featuredProfessionals)
		public.GET("/professionals/:slug", s.getProfessionalBySlug)
		public.GET("/professionals/:slug/services", s.listProfessionalServices)
		public.GET("/professionals/:slug/reviews", s.listProfessionalReviews)
		public.GET("/categories", s.listCategories)
		public.GET("/tags", s.listTags)
	}

	auth := s.router.Group("/api/v1")
	auth.Use(s.rateLimiter, s.authMiddleware())
	{
		// Account
		auth.GET("/me", s.getMe)
		auth.PUT("/me", s.updateMe)
		auth.POST("/me/2fa/enable", s.enable2FA)
		auth.POST("/me/2fa/confirm", s.confirm2FA)
		auth.POST("/me/2fa/disable", s.disable2FA)

		// Professional profile management
		auth.POST("/professionals", s.createProfessionalProfile)
		auth.GET("/professionals/me", s.getMyProfessionalProfile)
		auth.PUT("/professionals/me", s.updateProfessionalProfile)
		auth.POST("/professionals/me/certifications", s.addCertification)
		auth.GET("/professionals/me/certifications", s.listMyCertifications)
		auth.PUT("/professionals/me/availability", s.setAvailability)
		auth.GET("/professionals/me/availability", s.listAvailability)
		auth.POST("/professionals/me/blocked-dates", s.addBlockedDate)
		auth.GET("/professionals/me/blocked-dates", s.listBlockedDates)
		auth.DELETE("/professionals/me/blocked-dates/:id", s.removeBlockedDate)
		auth.GET("/professionals/me/bookings", s.listProfessionalBookings)
		auth.GET("/professionals/me/payouts", s.listMyPayouts)

		// Services
		auth.POST("/services", s.createService)
		auth.PUT("/services/:id", s.updateService)
		auth.DELETE("/services/:id", s.deactivateService)

		// Client profile
		auth.POST("/clients", s.createClientProfile)
		auth.GET("/clients/me", s.getMyClientProfile)
		auth.PUT("/clients/me", s.updateClientProfile)
		auth.POST("/clients/me/favorites/:professionalID", s.addFavorite)
		auth.DELETE("/clients/me/favorites/:professionalID", s.removeFavorite)
		auth.GET("/clients/me/favorites", s.listFavorites)

		// Bookings
		auth.POST("/bookings", s.createBooking)
		auth.GET("/bookings", s.listMyBookings)
		auth.GET("/bookings/:id", s.getBooking)
		auth.POST("/bookings/:id/cancel", s.cancelBooking)
		auth.POST("/bookings/:id/complete", s.completeBooking)
		auth.POST("/bookings/:id/no-show", s.markNoShow)
		auth.POST("/bookings/:id/notes", s.addBookingNote)
		auth.GET("/bookings/:id/notes", s.listBookingNotes)

		// Payments
		auth.POST("/bookings/:id/payments", s.createPayment)
		auth.GET("/bookings/:id/payments", s.getBookingPayment)
		auth.POST("/payments/:id/complete", s.completePayment)
		auth.POST("/payments/:id/fail", s.failPayment)

		// Reviews
		auth.POST("/reviews", s.createReview)
		auth.POST("/reviews/:id/respond", s.respondToReview)
		auth.POST("/reviews/:id/report", s.reportReview)
	}

	admin := s.router.Group("/api/v1/admin")
	admin.Use(s.rateLimiter, s.authMiddleware(), s.adminMiddleware())
	{
		admin.PUT("/professionals/:id/verification", s.setVerificationStatus)
		admin.POST("/certifications/:id/review", s.reviewCertification)
		admin.POST("/categories", s.createCategory)
		admin.POST("/payments/:id/refund", s.refundPayment)
		admin.POST("/payouts", s.createPayout)
		admin.POST("/payouts/:id/complete", s.completePayout)
		admin.POST("/payouts/:id/fail", s.failPayout)
		admin.GET("/reports", s.listOpenReports)
		admin.POST("/reports/:id/resolve", s.resolveReport)
		admin.PUT("/reviews/:id/approval", s.setReviewApproval)
	}
}

// healthCheck handles the health check endpoint
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}
