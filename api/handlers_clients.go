package api

import (
	"net/http"

	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/gin-gonic/gin"
)

// createClientProfile creates a client profile for the user
func (s *Server) createClientProfile(c *gin.Context) {
	userID, ok := s.currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateClientRequest
	if !s.bindJSON(c, &req) {
		return
	}

	client, err := s.clients.CreateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

// getMyClientProfile returns the user's client profile
func (s *Server) getMyClientProfile(c *gin.Context) {
	client, ok := s.myClient(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, client)
}

// updateClientProfile updates the user's client profile
func (s *Server) updateClientProfile(c *gin.Context) {
	client, ok := s.myClient(c)
	if !ok {
		return
	}

	var req models.CreateClientRequest
	if !s.bindJSON(c, &req) {
		return
	}

	updated, err := s.clients.UpdateProfile(c.Request.Context(), client.ID, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// addFavorite adds a professional to the client's favorites
func (s *Server) addFavorite(c *gin.Context) {
	client, ok := s.myClient(c)
	if !ok {
		return
	}
	professionalID, ok := pathID(c, "professionalID")
	if !ok {
		return
	}

	if err := s.clients.AddFavorite(c.Request.Context(), client.ID, professionalID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "favorited"})
}

// removeFavorite removes a professional from the client's favorites
func (s *Server) removeFavorite(c *gin.Context) {
	client, ok := s.myClient(c)
	if !ok {
		return
	}
	professionalID, ok := pathID(c, "professionalID")
	if !ok {
		return
	}

	if err := s.clients.RemoveFavorite(c.Request.Context(), client.ID, professionalID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// listFavorites lists the client's favorite professionals
func (s *Server) listFavorites(c *gin.Context) {
	client, ok := s.myClient(c)
	if !ok {
		return
	}

	profs, err := s.clients.ListFavorites(c.Request.Context(), client.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": profs})
}

// myClient resolves the authenticated user's client profile
func (s *Server) myClient(c *gin.Context) (*models.Client, bool) {
	userID, ok := s.currentUserID(c)
	if !ok {
		return nil, false
	}
	client, err := s.clients.GetProfileByUser(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	return client, true
}
