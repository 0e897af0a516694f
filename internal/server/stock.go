package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	inventorydomain "github.com/smallbiznis/kitstock/internal/inventory/domain"
	"github.com/smallbiznis/kitstock/pkg/db/pagination"
)

func (s *Server) GetKitAvailability(c *gin.Context) {
	resp, err := s.inventorySvc.KitAvailability(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListKitAvailability(c *gin.Context) {
	onlyActive := true
	if raw := c.Query("active"); raw != "" {
		active, err := parseOptionalBool(raw)
		if err != nil {
			AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
			return
		}
		onlyActive = *active
	}

	resp, err := s.inventorySvc.ListKitAvailability(c.Request.Context(), onlyActive)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListStockMovements(c *gin.Context) {
	var query struct {
		pagination.Pagination
		ProductID     string `form:"product_id"`
		ReferenceType string `form:"reference_type"`
		ReferenceID   string `form:"reference_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.inventorySvc.ListMovements(c.Request.Context(), inventorydomain.ListMovementsRequest{
		Pagination:    query.Pagination,
		ProductID:     strings.TrimSpace(query.ProductID),
		ReferenceType: strings.TrimSpace(query.ReferenceType),
		ReferenceID:   strings.TrimSpace(query.ReferenceID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Movements, "page_info": resp.PageInfo})
}
