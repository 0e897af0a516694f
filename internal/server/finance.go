package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	financedomain "github.com/smallbiznis/kitstock/internal/finance/domain"
	"github.com/smallbiznis/kitstock/pkg/db/pagination"
)

type financeRangeQuery struct {
	From string `form:"from"`
	To   string `form:"to"`
}

func (q financeRangeQuery) parse() (*time.Time, *time.Time, error) {
	from, err := parseOptionalTime(q.From, false)
	if err != nil {
		return nil, nil, newValidationError("from", "invalid_from", "invalid from")
	}
	to, err := parseOptionalTime(q.To, true)
	if err != nil {
		return nil, nil, newValidationError("to", "invalid_to", "invalid to")
	}
	return from, to, nil
}

func (s *Server) CreateTransaction(c *gin.Context) {
	var req financedomain.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.financeSvc.CreateTransaction(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) SettleTransaction(c *gin.Context) {
	resp, err := s.financeSvc.SettleTransaction(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTransactions(c *gin.Context) {
	var query struct {
		pagination.Pagination
		financeRangeQuery
		Type   string `form:"type"`
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	from, to, err := query.parse()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.financeSvc.ListTransactions(c.Request.Context(), financedomain.ListTransactionsRequest{
		Pagination: query.Pagination,
		Type:       strings.TrimSpace(query.Type),
		Status:     strings.TrimSpace(query.Status),
		From:       from,
		To:         to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Transactions, "page_info": resp.PageInfo})
}

func (s *Server) ListSales(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.financeSvc.ListSales(c.Request.Context(), financedomain.ListSalesRequest{Pagination: query})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Sales, "page_info": resp.PageInfo})
}

func (s *Server) FinanceSummary(c *gin.Context) {
	var query financeRangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	from, to, err := query.parse()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.financeSvc.Summary(c.Request.Context(), financedomain.SummaryRequest{
		From: from,
		To:   to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
