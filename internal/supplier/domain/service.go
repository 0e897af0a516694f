package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/kitstock/pkg/db/pagination"
)

type ListSupplierRequest struct {
	pagination.Pagination
	Search string
}

type ListSupplierResponse struct {
	pagination.PageInfo
	Suppliers []Supplier `json:"suppliers"`
}

type CreateSupplierRequest struct {
	Name        string `json:"name"`
	Document    string `json:"document"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Notes       string `json:"notes"`
}

type UpdateSupplierRequest struct {
	ID          string  `json:"-"`
	Name        *string `json:"name"`
	Document    *string `json:"document"`
	ContactName *string `json:"contact_name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	Notes       *string `json:"notes"`
}

type Service interface {
	Create(ctx context.Context, req CreateSupplierRequest) (*Supplier, error)
	List(ctx context.Context, req ListSupplierRequest) (ListSupplierResponse, error)
	GetByID(ctx context.Context, id string) (*Supplier, error)
	Update(ctx context.Context, req UpdateSupplierRequest) (*Supplier, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
)
