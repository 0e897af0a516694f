package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/kitstock/internal/audit/domain"
	"github.com/smallbiznis/kitstock/internal/authorization"
	customerdomain "github.com/smallbiznis/kitstock/internal/customer/domain"
	dashboarddomain "github.com/smallbiznis/kitstock/internal/dashboard/domain"
	"github.com/smallbiznis/kitstock/internal/document"
	financedomain "github.com/smallbiznis/kitstock/internal/finance/domain"
	inventorydomain "github.com/smallbiznis/kitstock/internal/inventory/domain"
	kitdomain "github.com/smallbiznis/kitstock/internal/kit/domain"
	orderdomain "github.com/smallbiznis/kitstock/internal/order/domain"
	productdomain "github.com/smallbiznis/kitstock/internal/product/domain"
	quotedomain "github.com/smallbiznis/kitstock/internal/quote/domain"
	supplierdomain "github.com/smallbiznis/kitstock/internal/supplier/domain"
	"github.com/smallbiznis/kitstock/pkg/db"
	"github.com/smallbiznis/kitstock/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    err.Error(),
			Message: humanize(err.Error()),
		}
	case db.IsLockConflictErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    "lock_conflict",
			Message: "concurrent update, retry the request",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, orderdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog gives request logs the same type and code clients see.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if code == "" {
		code = payload.Type
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken):
		return true
	case isProductValidationError(err),
		isKitValidationError(err),
		isInventoryValidationError(err),
		isDocumentValidationError(err),
		isOrderValidationError(err),
		isQuoteValidationError(err),
		isCustomerValidationError(err),
		isSupplierValidationError(err),
		isFinanceValidationError(err),
		isAuditValidationError(err),
		errors.Is(err, dashboarddomain.ErrInvalidOrganization):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, productdomain.ErrDuplicateCode),
		errors.Is(err, kitdomain.ErrDuplicateCode),
		errors.Is(err, customerdomain.ErrDuplicateDocument),
		errors.Is(err, inventorydomain.ErrInsufficientStock),
		errors.Is(err, inventorydomain.ErrStockConflict),
		errors.Is(err, orderdomain.ErrAlreadyApproved),
		errors.Is(err, orderdomain.ErrInvalidTransition),
		errors.Is(err, orderdomain.ErrConcurrentUpdate),
		errors.Is(err, orderdomain.ErrDuplicateSubmission),
		errors.Is(err, quotedomain.ErrAlreadyApproved),
		errors.Is(err, quotedomain.ErrInvalidTransition),
		errors.Is(err, quotedomain.ErrConcurrentUpdate),
		errors.Is(err, financedomain.ErrAlreadyPaid):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, kitdomain.ErrNotFound),
		errors.Is(err, inventorydomain.ErrKitNotFound),
		errors.Is(err, inventorydomain.ErrProductNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, quotedomain.ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, supplierdomain.ErrNotFound),
		errors.Is(err, financedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isProductValidationError(err error) bool {
	switch err {
	case productdomain.ErrInvalidOrganization,
		productdomain.ErrInvalidCode,
		productdomain.ErrInvalidName,
		productdomain.ErrInvalidPrice,
		productdomain.ErrInvalidQuantity,
		productdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}

func isKitValidationError(err error) bool {
	switch err {
	case kitdomain.ErrInvalidOrganization,
		kitdomain.ErrInvalidID,
		kitdomain.ErrInvalidCode,
		kitdomain.ErrInvalidName,
		kitdomain.ErrInvalidPrice,
		kitdomain.ErrNoComponents,
		kitdomain.ErrDuplicateComponent,
		kitdomain.ErrInvalidComponentQuantity,
		kitdomain.ErrProductNotFound:
		return true
	default:
		return false
	}
}

func isInventoryValidationError(err error) bool {
	switch err {
	case inventorydomain.ErrInvalidOrganization,
		inventorydomain.ErrInvalidID,
		inventorydomain.ErrEmptyDocument,
		inventorydomain.ErrInvalidLine,
		inventorydomain.ErrInvalidQuantity,
		inventorydomain.ErrInvalidComponentQuantity,
		inventorydomain.ErrKitWithoutComponents,
		inventorydomain.ErrQuantityOverflow,
		inventorydomain.ErrInvalidMovementType:
		return true
	default:
		return false
	}
}

// Catalog references inside a request body are a bad request, not a missing route.
func isDocumentValidationError(err error) bool {
	switch err {
	case document.ErrEmptyItems,
		document.ErrTooManyItems,
		document.ErrInvalidItem,
		document.ErrInvalidQuantity,
		document.ErrInvalidPrice,
		document.ErrProductNotFound,
		document.ErrKitNotFound,
		document.ErrInactiveItem,
		document.ErrInvalidDiscount,
		document.ErrNegativeSubtotal:
		return true
	default:
		return false
	}
}

func isOrderValidationError(err error) bool {
	switch err {
	case orderdomain.ErrInvalidOrganization,
		orderdomain.ErrInvalidID,
		orderdomain.ErrInvalidStatus,
		orderdomain.ErrInvalidOrigin,
		orderdomain.ErrCustomerNotFound:
		return true
	default:
		return false
	}
}

func isQuoteValidationError(err error) bool {
	switch err {
	case quotedomain.ErrInvalidOrganization,
		quotedomain.ErrInvalidID,
		quotedomain.ErrInvalidStatus,
		quotedomain.ErrCustomerNotFound:
		return true
	default:
		return false
	}
}

func isCustomerValidationError(err error) bool {
	switch err {
	case customerdomain.ErrInvalidOrganization,
		customerdomain.ErrInvalidName,
		customerdomain.ErrInvalidEmail,
		customerdomain.ErrInvalidDocument,
		customerdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}

func isSupplierValidationError(err error) bool {
	switch err {
	case supplierdomain.ErrInvalidOrganization,
		supplierdomain.ErrInvalidName,
		supplierdomain.ErrInvalidEmail,
		supplierdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}

func isFinanceValidationError(err error) bool {
	switch err {
	case financedomain.ErrInvalidOrganization,
		financedomain.ErrInvalidID,
		financedomain.ErrInvalidType,
		financedomain.ErrInvalidStatus,
		financedomain.ErrInvalidAmount,
		financedomain.ErrInvalidCategory,
		financedomain.ErrInvalidTimeRange:
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch err {
	case auditdomain.ErrInvalidOrganization,
		auditdomain.ErrInvalidPageToken,
		auditdomain.ErrInvalidTimeRange,
		auditdomain.ErrInvalidAction:
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return humanize(code)
	}
}

func humanize(code string) string {
	return strings.ReplaceAll(code, "_", " ")
}
