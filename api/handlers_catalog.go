package api

import (
	"net/http"

	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/gin-gonic/gin"
)

// createService creates a service listing for the user's professional profile
func (s *Server) createService(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}

	var req models.CreateServiceRequest
	if !s.bindJSON(c, &req) {
		return
	}

	svc, err := s.catalog.CreateService(c.Request.Context(), prof.ID, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, svc)
}

// updateService updates a service owned by the user
func (s *Server) updateService(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.CreateServiceRequest
	if !s.bindJSON(c, &req) {
		return
	}

	svc, err := s.catalog.UpdateService(c.Request.Context(), id, prof.ID, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

// deactivateService hides a service from booking
func (s *Server) deactivateService(c *gin.Context) {
	prof, ok := s.myProfessional(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := s.catalog.DeactivateService(c.Request.Context(), id, prof.ID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

// listCategories lists active service categories
func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.catalog.ListCategories(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// listTags lists all service tags
func (s *Server) listTags(c *gin.Context) {
	tags, err := s.catalog.ListTags(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// createCategory creates a service category (admin)
func (s *Server) createCategory(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
		SortOrder   int    `json:"sort_order"`
	}
	if !s.bindJSON(c, &req) {
		return
	}

	category, err := s.catalog.CreateCategory(c.Request.Context(), req.Name, req.Description, req.Icon, req.SortOrder)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}
