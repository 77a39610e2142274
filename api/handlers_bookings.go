package api

import (
	"net/http"
	"time"

	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/gin-gonic/gin"
)

// createBooking books a slot for the authenticated client
func (s *Server) createBooking(c *gin.Context) {
	client, ok := s.myClient(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if !s.bindJSON(c, &req) {
		return
	}

	booking, err := s.bookings.Create(c.Request.Context(), client.ID, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// listMyBookings lists the authenticated client's bookings
func (s *Server) listMyBookings(c *gin.Context) {
	client, ok := s.myClient(c)
	if !ok {
		return
	}

	upcoming := c.Query("upcoming") == "true"
	list, err := s.bookings.ListByClient(c.Request.Context(), client.ID, upcoming)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list})
}

// listProfessionalBookings lists the professional's agenda
func (s *Server) listProfessionalBookings(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}

	var date *time.Time
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date"})
			return
		}
		date = &parsed
	}

	list, err := s.bookings.ListByProfessional(c.Request.Context(), prof.ID, date)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list})
}

// getBooking returns a booking visible to its client or professional
func (s *Server) getBooking(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := s.bookings.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !s.canSeeBooking(c, booking) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your booking"})
		return
	}
	c.JSON(http.StatusOK, booking)
}

// cancelBooking cancels a booking for its client or professional
func (s *Server) cancelBooking(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.CancelBookingRequest
	if !s.bindOptionalJSON(c, &req) {
		return
	}

	booking, err := s.bookings.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	byProfessional, owns := s.bookingRole(c, booking)
	if !owns {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your booking"})
		return
	}

	cancelled, err := s.bookings.Cancel(c.Request.Context(), id, byProfessional, req.Reason)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cancelled)
}

// completeBooking marks a booking completed (professional only)
func (s *Server) completeBooking(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := s.bookings.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if booking.ProfessionalID != prof.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your booking"})
		return
	}

	completed, err := s.bookings.Complete(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, completed)
}

// markNoShow marks a booking as a no-show (professional only)
func (s *Server) markNoShow(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := s.bookings.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if booking.ProfessionalID != prof.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your booking"})
		return
	}

	if err := s.bookings.MarkNoShow(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.BookingNoShow})
}

// addBookingNote attaches a private note (professional only)
func (s *Server) addBookingNote(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := s.bookings.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if booking.ProfessionalID != prof.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your booking"})
		return
	}

	var req struct {
		Note string `json:"note" binding:"required,max=1000"`
	}
	if !s.bindJSON(c, &req) {
		return
	}

	note, err := s.bookings.AddNote(c.Request.Context(), id, req.Note)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

// listBookingNotes lists a booking's private notes (professional only)
func (s *Server) listBookingNotes(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := s.bookings.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if booking.ProfessionalID != prof.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your booking"})
		return
	}

	notes, err := s.bookings.ListNotes(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

// canSeeBooking reports whether the authenticated user is the booking's
// client or professional.
func (s *Server) canSeeBooking(c *gin.Context, booking *models.Booking) bool {
	_, owns := s.bookingRole(c, booking)
	return owns
}

// bookingRole resolves whether the user acts as the booking's professional
// (true) or client (false); the second return is false when neither.
func (s *Server) bookingRole(c *gin.Context, booking *models.Booking) (bool, bool) {
	userID, ok := s.currentUserID(c)
	if !ok {
		return false, false
	}

	if prof, err := s.professionals.GetProfileByUser(c.Request.Context(), userID); err == nil && prof.ID == booking.ProfessionalID {
		return true, true
	}
	if client, err := s.clients.GetProfileByUser(c.Request.Context(), userID); err == nil && client.ID == booking.ClientID {
		return false, true
	}
	return false, false
}
