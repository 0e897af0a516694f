package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/kitstock/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListCustomerRequest struct {
	pagination.Pagination
	Search string
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type CreateCustomerRequest struct {
	Name     string         `json:"name"`
	Document string         `json:"document"`
	Email    string         `json:"email"`
	Phone    string         `json:"phone"`
	Address  string         `json:"address"`
	City     string         `json:"city"`
	State    string         `json:"state"`
	ZipCode  string         `json:"zip_code"`
	Notes    string         `json:"notes"`
	Metadata map[string]any `json:"metadata"`
}

type UpdateCustomerRequest struct {
	ID       string         `json:"-"`
	Name     *string        `json:"name"`
	Document *string        `json:"document"`
	Email    *string        `json:"email"`
	Phone    *string        `json:"phone"`
	Address  *string        `json:"address"`
	City     *string        `json:"city"`
	State    *string        `json:"state"`
	ZipCode  *string        `json:"zip_code"`
	Notes    *string        `json:"notes"`
	Metadata map[string]any `json:"metadata"`
}

type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error)
	List(ctx context.Context, req ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(ctx context.Context, id string) (*Customer, error)
	Update(ctx context.Context, req UpdateCustomerRequest) (*Customer, error)
	// UpsertContact finds the customer with the same document (or email when
	// no document is given) inside tx and refreshes its contact data, or
	// creates it.
	UpsertContact(ctx context.Context, tx *gorm.DB, orgID int64, req CreateCustomerRequest) (*Customer, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidDocument     = errors.New("invalid_document")
	ErrDuplicateDocument   = errors.New("duplicate_document")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
)
