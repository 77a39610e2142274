package api

import (
	"net/http"

	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/gin-gonic/gin"
)

// register handles user registration
func (s *Server) register(c *gin.Context) {
	var req models.RegisterRequest
	if !s.bindJSON(c, &req) {
		return
	}

	user, err := s.identities.Register(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// login handles user login, returning a token or a 2FA challenge
func (s *Server) login(c *gin.Context) {
	var req models.LoginRequest
	if !s.bindJSON(c, &req) {
		return
	}

	resp, err := s.identities.Login(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// verify2FALogin completes a 2FA login challenge
func (s *Server) verify2FALogin(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Code   string `json:"code" binding:"required"`
	}
	if !s.bindJSON(c, &req) {
		return
	}

	resp, err := s.identities.Verify2FA(c.Request.Context(), req.UserID, req.Code)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid 2FA code"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getMe returns the authenticated user
func (s *Server) getMe(c *gin.Context) {
	user, err := s.identities.GetUser(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// updateMe updates the authenticated user's name
func (s *Server) updateMe(c *gin.Context) {
	var req struct {
		FirstName string `json:"first_name" binding:"required"`
		LastName  string `json:"last_name" binding:"required"`
	}
	if !s.bindJSON(c, &req) {
		return
	}

	user, err := s.identities.UpdateUser(c.Request.Context(), c.GetString("userID"), req.FirstName, req.LastName)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// enable2FA starts TOTP setup for the authenticated user
func (s *Server) enable2FA(c *gin.Context) {
	secret, url, err := s.identities.Enable2FA(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret, "url": url})
}

// confirm2FA activates 2FA after verifying the first code
func (s *Server) confirm2FA(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if !s.bindJSON(c, &req) {
		return
	}

	if err := s.identities.Confirm2FA(c.Request.Context(), c.GetString("userID"), req.Code); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "2fa enabled"})
}

// disable2FA disables 2FA for the authenticated user
func (s *Server) disable2FA(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if !s.bindJSON(c, &req) {
		return
	}

	if err := s.identities.Disable2FA(c.Request.Context(), c.GetString("userID"), req.Code); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "2fa disabled"})
}
