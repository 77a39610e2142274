package api

import (
	"net/http"

	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// createPayment opens a payment for the client's booking
func (s *Server) createPayment(c *gin.Context) {
	client, ok := s.myClient(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := s.bookings.Get(c.Request.Context(), bookingID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if booking.ClientID != client.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your booking"})
		return
	}

	var req struct {
		Gateway string `json:"gateway" validate:"omitempty,oneof=flow mercadopago stripe manual"`
	}
	if !s.bindOptionalJSON(c, &req) {
		return
	}

	payment, err := s.payments.CreatePayment(c.Request.Context(), bookingID, req.Gateway)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

// getBookingPayment returns the payment attached to a booking
func (s *Server) getBookingPayment(c *gin.Context) {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := s.bookings.Get(c.Request.Context(), bookingID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !s.canSeeBooking(c, booking) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your booking"})
		return
	}

	payment, err := s.payments.GetPaymentByBooking(c.Request.Context(), bookingID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// completePayment records a successful gateway payment
func (s *Server) completePayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.CompletePaymentRequest
	if !s.bindOptionalJSON(c, &req) {
		return
	}

	payment, err := s.payments.CompletePayment(c.Request.Context(), id, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// failPayment records a gateway failure
func (s *Server) failPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Error string `json:"error"`
	}
	if !s.bindOptionalJSON(c, &req) {
		return
	}

	payment, err := s.payments.FailPayment(c.Request.Context(), id, req.Error)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// refundPayment refunds part or all of a payment (admin)
func (s *Server) refundPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.RefundRequest
	if !s.bindOptionalJSON(c, &req) {
		return
	}

	payment, err := s.payments.Refund(c.Request.Context(), id, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// createPayout opens a payout for a professional (admin)
func (s *Server) createPayout(c *gin.Context) {
	var req struct {
		ProfessionalID string `json:"professional_id" binding:"required"`
		BankName       string `json:"bank_name"`
		AccountNumber  string `json:"account_number"`
		AccountHolder  string `json:"account_holder"`
	}
	if !s.bindJSON(c, &req) {
		return
	}

	professionalID, err := uuid.Parse(req.ProfessionalID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid professional_id"})
		return
	}

	payout, err := s.payments.CreatePayout(c.Request.Context(), professionalID, req.BankName, req.AccountNumber, req.AccountHolder)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payout)
}

// completePayout records a successful transfer (admin)
func (s *Server) completePayout(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		TransactionReference string `json:"transaction_reference"`
	}
	if !s.bindOptionalJSON(c, &req) {
		return
	}

	if err := s.payments.CompletePayout(c.Request.Context(), id, req.TransactionReference); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.PayoutCompleted})
}

// failPayout records a failed transfer (admin)
func (s *Server) failPayout(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if !s.bindOptionalJSON(c, &req) {
		return
	}

	if err := s.payments.FailPayout(c.Request.Context(), id, req.Notes); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.PayoutFailed})
}

// listMyPayouts lists the authenticated professional's payouts
func (s *Server) listMyPayouts(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}

	payouts, err := s.payments.ListPayouts(c.Request.Context(), prof.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": payouts})
}
