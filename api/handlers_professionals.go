package api

import (
	"net/http"
	"time"

	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/gin-gonic/gin"
)

// searchProfessionals handles the public professional search
func (s *Server) searchProfessionals(c *gin.Context) {
	var filter models.SearchFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profs, page, err := s.professionals.Search(c.Request.Context(), &filter)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"professionals": profs, "page_info": page})
}

// featuredProfessionals returns the home page featured list
func (s *Server) featuredProfessionals(c *gin.Context) {
	profs, err := s.professionals.Featured(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"professionals": profs})
}

// getProfessionalBySlug returns a public professional profile
func (s *Server) getProfessionalBySlug(c *gin.Context) {
	prof, err := s.professionals.GetProfileBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, prof)
}

// listProfessionalServices lists a professional's active services
func (s *Server) listProfessionalServices(c *gin.Context) {
	prof, err := s.professionals.GetProfileBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	services, err := s.catalog.ListByProfessional(c.Request.Context(), prof.ID, true)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}

// listProfessionalReviews lists a professional's approved reviews
func (s *Server) listProfessionalReviews(c *gin.Context) {
	prof, err := s.professionals.GetProfileBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	var query struct {
		Page     int `form:"page"`
		PageSize int `form:"page_size"`
	}
	_ = c.ShouldBindQuery(&query)

	list, page, err := s.reviews.ListByProfessional(c.Request.Context(), prof.ID, query.Page, query.PageSize)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": list, "page_info": page})
}

// createProfessionalProfile creates a professional profile for the user
func (s *Server) createProfessionalProfile(c *gin.Context) {
	userID, ok := s.currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateProfessionalRequest
	if !s.bindJSON(c, &req) {
		return
	}

	user, err := s.identities.GetUser(c.Request.Context(), userID.String())
	if err != nil {
		s.writeError(c, err)
		return
	}

	prof, err := s.professionals.CreateProfile(c.Request.Context(), userID, user.FirstName+" "+user.LastName, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, prof)
}

// getMyProfessionalProfile returns the user's professional profile
func (s *Server) getMyProfessionalProfile(c *gin.Context) {
	userID, ok := s.currentUserID(c)
	if !ok {
		return
	}

	prof, err := s.professionals.GetProfileByUser(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, prof)
}

// updateProfessionalProfile updates the user's professional profile
func (s *Server) updateProfessionalProfile(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}

	var req models.UpdateProfessionalRequest
	if !s.bindJSON(c, &req) {
		return
	}

	updated, err := s.professionals.UpdateProfile(c.Request.Context(), prof.ID, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// addCertification submits a certification for review
func (s *Server) addCertification(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}

	var req models.CreateCertificationRequest
	if !s.bindJSON(c, &req) {
		return
	}

	cert, err := s.professionals.AddCertification(c.Request.Context(), prof.ID, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cert)
}

// listMyCertifications lists the user's certifications
func (s *Server) listMyCertifications(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}

	certs, err := s.professionals.ListCertifications(c.Request.Context(), prof.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"certifications": certs})
}

// setAvailability replaces the weekly availability schedule
func (s *Server) setAvailability(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}

	var req struct {
		Blocks []models.AvailabilityBlockRequest `json:"blocks" binding:"required" validate:"dive"`
	}
	if !s.bindJSON(c, &req) {
		return
	}

	blocks, err := s.professionals.SetAvailability(c.Request.Context(), prof.ID, req.Blocks)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": blocks})
}

// listAvailability lists the weekly availability schedule
func (s *Server) listAvailability(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}

	blocks, err := s.professionals.ListAvailability(c.Request.Context(), prof.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": blocks})
}

// addBlockedDate blocks a date or time range
func (s *Server) addBlockedDate(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}

	var req models.BlockedDateRequest
	if !s.bindJSON(c, &req) {
		return
	}

	blocked, err := s.professionals.AddBlockedDate(c.Request.Context(), prof.ID, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, blocked)
}

// listBlockedDates lists upcoming blocked dates
func (s *Server) listBlockedDates(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}

	dates, err := s.professionals.ListBlockedDates(c.Request.Context(), prof.ID, time.Now())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked_dates": dates})
}

// removeBlockedDate removes a blocked date
func (s *Server) removeBlockedDate(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := s.professionals.RemoveBlockedDate(c.Request.Context(), prof.ID, id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// setVerificationStatus sets a professional's verification status (admin)
func (s *Server) setVerificationStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if !s.bindJSON(c, &req) {
		return
	}

	if err := s.professionals.SetVerificationStatus(c.Request.Context(), id, req.Status); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

// reviewCertification approves or rejects a certification (admin)
func (s *Server) reviewCertification(c *gin.Context) {
	certID, ok := pathID(c, "id")
	if !ok {
		return
	}
	reviewerID, ok := s.currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		Approve bool   `json:"approve"`
		Notes   string `json:"notes"`
	}
	if !s.bindJSON(c, &req) {
		return
	}

	if err := s.professionals.ReviewCertification(c.Request.Context(), certID, reviewerID, req.Approve, req.Notes); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reviewed"})
}

// myProfessional resolves the authenticated user's professional profile
func (s *Server) myProfessional(c *gin.Context) (*models.Professional, bool) {
	userID, ok := s.currentUserID(c)
	if !ok {
		return nil, false
	}
	prof, err := s.professionals.GetProfileByUser(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	return prof, true
}
