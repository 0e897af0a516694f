package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kitstock/internal/clock"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
	"github.com/smallbiznis/kitstock/internal/supplier/domain"
	"github.com/smallbiznis/kitstock/pkg/db/option"
	"github.com/smallbiznis/kitstock/pkg/db/pagination"
	"github.com/smallbiznis/kitstock/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  repository.Repository[domain.Supplier]
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  repository.Repository[domain.Supplier]
}

func New(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("supplier.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateSupplierRequest) (*domain.Supplier, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}

	now := s.clock.Now().UTC()
	supplier := &domain.Supplier{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Name:        name,
		Document:    optional(req.Document),
		ContactName: optional(req.ContactName),
		Email:       optional(email),
		Phone:       optional(req.Phone),
		Address:     optional(req.Address),
		Notes:       optional(req.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, supplier); err != nil {
		return nil, err
	}
	return supplier, nil
}

func (s *Service) List(ctx context.Context, req domain.ListSupplierRequest) (domain.ListSupplierResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListSupplierResponse{}, domain.ErrInvalidOrganization
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListSupplierResponse{}, err
	}
	limit := req.Size()

	items, err := s.repo.Find(ctx, &domain.Supplier{OrgID: orgID},
		option.WithSearch(req.Search, "name", "contact_name", "document"),
		option.WithAfterID(cursor.ID),
		option.WithSortBy("id", false),
		option.WithLimit(limit+1),
	)
	if err != nil {
		return domain.ListSupplierResponse{}, err
	}

	page, info := pagination.BuildCursorPage(items, limit, func(v *domain.Supplier) int64 { return v.ID.Int64() })
	suppliers := make([]domain.Supplier, 0, len(page))
	for _, item := range page {
		suppliers = append(suppliers, *item)
	}
	return domain.ListSupplierResponse{PageInfo: info, Suppliers: suppliers}, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (*domain.Supplier, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindOne(ctx, &domain.Supplier{ID: id, OrgID: orgID})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateSupplierRequest) (*domain.Supplier, error) {
	current, err := s.GetByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	values := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		values["name"] = name
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != "" && !strings.Contains(email, "@") {
			return nil, domain.ErrInvalidEmail
		}
		values["email"] = optional(email)
	}
	for column, value := range map[string]*string{
		"document":     req.Document,
		"contact_name": req.ContactName,
		"phone":        req.Phone,
		"address":      req.Address,
		"notes":        req.Notes,
	} {
		if value != nil {
			values[column] = optional(*value)
		}
	}
	if len(values) == 0 {
		return current, nil
	}
	values["updated_at"] = s.clock.Now().UTC()

	if _, err := s.repo.Update(ctx, current.OrgID.Int64(), current.ID.Int64(), values); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, req.ID)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
