package service

import (
	"context"
	"strings"
	"unicode"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kitstock/internal/clock"
	"github.com/smallbiznis/kitstock/internal/customer/domain"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
	"github.com/smallbiznis/kitstock/pkg/db"
	"github.com/smallbiznis/kitstock/pkg/db/option"
	"github.com/smallbiznis/kitstock/pkg/db/pagination"
	"github.com/smallbiznis/kitstock/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  repository.Repository[domain.Customer]
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  repository.Repository[domain.Customer]
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (*domain.Customer, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	customer, err := s.build(orgID, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateDocument
		}
		return nil, err
	}
	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListCustomerResponse{}, domain.ErrInvalidOrganization
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}
	limit := req.Size()

	items, err := s.repo.Find(ctx, &domain.Customer{OrgID: orgID},
		option.WithSearch(req.Search, "name", "email", "document"),
		option.WithAfterID(cursor.ID),
		option.WithSortBy("id", false),
		option.WithLimit(limit+1),
	)
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	page, info := pagination.BuildCursorPage(items, limit, func(c *domain.Customer) int64 { return c.ID.Int64() })
	customers := make([]domain.Customer, 0, len(page))
	for _, item := range page {
		customers = append(customers, *item)
	}
	return domain.ListCustomerResponse{PageInfo: info, Customers: customers}, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (*domain.Customer, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := s.parseID(rawID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindOne(ctx, &domain.Customer{ID: id, OrgID: orgID})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateCustomerRequest) (*domain.Customer, error) {
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
	if req.Document != nil {
		values["document"] = optional(normalizeDocument(*req.Document))
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != "" && !strings.Contains(email, "@") {
			return nil, domain.ErrInvalidEmail
		}
		values["email"] = optional(email)
	}
	for column, value := range map[string]*string{
		"phone":    req.Phone,
		"address":  req.Address,
		"city":     req.City,
		"state":    req.State,
		"zip_code": req.ZipCode,
		"notes":    req.Notes,
	} {
		if value != nil {
			values[column] = optional(*value)
		}
	}
	if req.Metadata != nil {
		values["metadata"] = datatypes.JSONMap(req.Metadata)
	}
	if len(values) == 0 {
		return current, nil
	}
	values["updated_at"] = s.clock.Now().UTC()

	if _, err := s.repo.Update(ctx, current.OrgID.Int64(), current.ID.Int64(), values); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateDocument
		}
		return nil, err
	}
	return s.GetByID(ctx, req.ID)
}

func (s *Service) UpsertContact(ctx context.Context, tx *gorm.DB, orgID int64, req domain.CreateCustomerRequest) (*domain.Customer, error) {
	candidate, err := s.build(snowflake.ID(orgID), req)
	if err != nil {
		return nil, err
	}

	repo := s.repo.WithTrx(tx)
	query := &domain.Customer{OrgID: candidate.OrgID}
	switch {
	case candidate.Document != nil:
		query.Document = candidate.Document
	case candidate.Email != nil:
		query.Email = candidate.Email
	default:
		return nil, domain.ErrInvalidDocument
	}

	existing, err := repo.FindOne(ctx, query)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := repo.Create(ctx, candidate); err != nil {
			return nil, err
		}
		return candidate, nil
	}

	values := map[string]any{
		"name":       candidate.Name,
		"updated_at": candidate.UpdatedAt,
	}
	if candidate.Email != nil {
		values["email"] = candidate.Email
	}
	if candidate.Phone != nil {
		values["phone"] = candidate.Phone
	}
	if candidate.Address != nil {
		values["address"] = candidate.Address
	}
	if _, err := repo.Update(ctx, orgID, existing.ID.Int64(), values); err != nil {
		return nil, err
	}
	return repo.FindOne(ctx, &domain.Customer{ID: existing.ID, OrgID: existing.OrgID})
}

func (s *Service) build(orgID snowflake.ID, req domain.CreateCustomerRequest) (*domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}
	document := normalizeDocument(req.Document)
	if strings.TrimSpace(req.Document) != "" && document == "" {
		return nil, domain.ErrInvalidDocument
	}

	now := s.clock.Now().UTC()
	customer := &domain.Customer{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Name:      name,
		Document:  optional(document),
		Email:     optional(email),
		Phone:     optional(req.Phone),
		Address:   optional(req.Address),
		City:      optional(req.City),
		State:     optional(req.State),
		ZipCode:   optional(req.ZipCode),
		Notes:     optional(req.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Metadata != nil {
		customer.Metadata = datatypes.JSONMap(req.Metadata)
	}
	return customer, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

// normalizeDocument keeps only the digits of a CPF/CNPJ.
func normalizeDocument(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, value)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
