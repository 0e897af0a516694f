package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	kitdomain "github.com/smallbiznis/kitstock/internal/kit/domain"
	orderdomain "github.com/smallbiznis/kitstock/internal/order/domain"
)

type catalogKit struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Description    *string `json:"description,omitempty"`
	SalePrice      string  `json:"sale_price"`
	AvailableCount int64   `json:"available_count"`
}

// ListCatalogKits exposes active kits with their current availability and
// without component details.
func (s *Server) ListCatalogKits(c *gin.Context) {
	active := true
	kits, err := s.kitSvc.List(c.Request.Context(), kitdomain.ListRequest{Active: &active})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]catalogKit, 0, len(kits))
	for _, k := range kits {
		resp = append(resp, catalogKit{
			ID:             k.ID,
			Code:           k.Code,
			Name:           k.Name,
			Description:    k.Description,
			SalePrice:      k.SalePrice.StringFixed(2),
			AvailableCount: k.AvailableCount,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SubmitCatalogOrder(c *gin.Context) {
	var req orderdomain.CatalogOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ClientKey = c.ClientIP()

	resp, err := s.orderSvc.SubmitCatalogOrder(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}
