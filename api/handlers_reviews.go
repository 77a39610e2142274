package api

import (
	"net/http"

	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/gin-gonic/gin"
)

// createReview publishes a review for one of the client's completed bookings
func (s *Server) createReview(c *gin.Context) {
	userID, ok := s.currentUserID(c)
	if !ok {
		return
	}
	client, ok := s.myClient(c)
	if !ok {
		return
	}

	var req models.CreateReviewRequest
	if !s.bindJSON(c, &req) {
		return
	}

	user, err := s.identities.GetUser(c.Request.Context(), userID.String())
	if err != nil {
		s.writeError(c, err)
		return
	}

	review, err := s.reviews.Create(c.Request.Context(), client.ID, user.FirstName+" "+user.LastName, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

// respondToReview adds the professional's public reply
func (s *Server) respondToReview(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.ReviewResponseRequest
	if !s.bindJSON(c, &req) {
		return
	}

	review, err := s.reviews.Respond(c.Request.Context(), id, prof.ID, req.Response)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// reportReview flags a review for moderation
func (s *Server) reportReview(c *gin.Context) {
	userID, ok := s.currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.ReportReviewRequest
	if !s.bindJSON(c, &req) {
		return
	}

	report, err := s.reviews.Report(c.Request.Context(), id, &userID, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

// listOpenReports lists pending moderation reports (admin)
func (s *Server) listOpenReports(c *gin.Context) {
	reports, err := s.reviews.ListOpenReports(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// resolveReport closes a moderation report (admin)
func (s *Server) resolveReport(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
		Notes  string `json:"notes"`
	}
	if !s.bindJSON(c, &req) {
		return
	}

	if err := s.reviews.ResolveReport(c.Request.Context(), id, req.Status, req.Notes); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

// setReviewApproval hides or restores a review (admin)
func (s *Server) setReviewApproval(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Approved bool   `json:"approved"`
		Reason   string `json:"reason"`
	}
	if !s.bindJSON(c, &req) {
		return
	}

	if err := s.reviews.SetApproval(c.Request.Context(), id, req.Approved, req.Reason); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approved": req.Approved})
}
