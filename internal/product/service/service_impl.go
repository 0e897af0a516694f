package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/kitstock/internal/clock"
	"github.com/smallbiznis/kitstock/internal/config"
	inventorydomain "github.com/smallbiznis/kitstock/internal/inventory/domain"
	obscontext "github.com/smallbiznis/kitstock/internal/observability/context"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
	"github.com/smallbiznis/kitstock/internal/product/domain"
	"github.com/smallbiznis/kitstock/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Policy    *config.InventoryPolicyHolder
	Repo      domain.Repository
	Inventory inventorydomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	genID     *snowflake.Node
	clock     clock.Clock
	policy    *config.InventoryPolicyHolder
	inventory inventorydomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("product.service"),
		repo:      p.Repo,
		genID:     p.GenID,
		clock:     p.Clock,
		policy:    p.Policy,
		inventory: p.Inventory,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		OrgID:   int64(orgID),
		Search:  strings.TrimSpace(req.Search),
		Active:  req.Active,
		SortBy:  strings.TrimSpace(req.SortBy),
		OrderBy: strings.TrimSpace(req.OrderBy),
	})
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) ListLowStock(ctx context.Context) ([]domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	active := true
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		OrgID:    int64(orgID),
		Active:   &active,
		LowStock: true,
		SortBy:   "quantity",
	})
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = slug.Make(name)
	}
	if code == "" {
		return nil, domain.ErrInvalidCode
	}
	if req.UnitPrice.IsNegative() || req.Cost.IsNegative() || (req.Weight != nil && req.Weight.IsNegative()) {
		return nil, domain.ErrInvalidPrice
	}
	if req.InitialQuantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	minQuantity := s.policy.Get().LowStockDefault
	if req.MinQuantity != nil {
		minQuantity = *req.MinQuantity
	}
	if minQuantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}

	unit := strings.TrimSpace(req.Unit)
	if unit == "" {
		unit = "un"
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := s.clock.Now().UTC()
	p := &domain.Product{
		ID:          s.genID.Generate().Int64(),
		OrgID:       int64(orgID),
		Code:        code,
		Name:        name,
		Description: trimmedPtr(req.Description),
		Unit:        unit,
		UnitPrice:   req.UnitPrice.Round(2),
		Cost:        req.Cost.Round(2),
		Weight:      req.Weight,
		Quantity:    req.InitialQuantity,
		MinQuantity: minQuantity,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Metadata != nil {
		p.Metadata = datatypes.JSONMap(req.Metadata)
	}

	_, actorID := obscontext.ActorFromContext(ctx)
	err := db.TenantTx(ctx, s.db, orgID, func(tx *gorm.DB) error {
		if err := s.repo.Create(ctx, tx, p); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateCode
			}
			return err
		}
		return s.inventory.RecordOpeningBalance(ctx, tx, p, actorID)
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(p)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(p)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	p, err := s.find(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		p.Name = name
	}
	if req.Description != nil {
		p.Description = trimmedPtr(req.Description)
	}
	if req.Unit != nil {
		if unit := strings.TrimSpace(*req.Unit); unit != "" {
			p.Unit = unit
		}
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.IsNegative() {
			return nil, domain.ErrInvalidPrice
		}
		p.UnitPrice = req.UnitPrice.Round(2)
	}
	if req.Cost != nil {
		if req.Cost.IsNegative() {
			return nil, domain.ErrInvalidPrice
		}
		p.Cost = req.Cost.Round(2)
	}
	if req.Weight != nil {
		if req.Weight.IsNegative() {
			return nil, domain.ErrInvalidPrice
		}
		p.Weight = req.Weight
	}
	if req.MinQuantity != nil {
		if *req.MinQuantity < 0 {
			return nil, domain.ErrInvalidQuantity
		}
		p.MinQuantity = *req.MinQuantity
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if req.Metadata != nil {
		p.Metadata = datatypes.JSONMap(req.Metadata)
	}
	p.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Update(ctx, s.db, p); err != nil {
		return nil, err
	}
	resp := toResponse(p)
	return &resp, nil
}

// Archive hides a product from the catalog. Kits and historical documents
// keep referencing it.
func (s *Service) Archive(ctx context.Context, id string) (*domain.Response, error) {
	inactive := false
	return s.Update(ctx, domain.UpdateRequest{ID: id, Active: &inactive})
}

func (s *Service) AdjustStock(ctx context.Context, actor string, req domain.AdjustStockRequest) (*domain.Response, error) {
	_, err := s.inventory.Adjust(ctx, actor, inventorydomain.AdjustRequest{
		ProductID: req.ProductID,
		Type:      inventorydomain.MovementType(strings.ToLower(strings.TrimSpace(req.Type))),
		Quantity:  req.Quantity,
		Note:      req.Note,
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, req.ProductID)
}

func (s *Service) find(ctx context.Context, rawID string) (*domain.Product, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidID
	}

	p, err := s.repo.FindByID(ctx, s.db, int64(orgID), id.Int64())
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func toResponse(p *domain.Product) domain.Response {
	var metadata map[string]any
	if p.Metadata != nil {
		metadata = map[string]any(p.Metadata)
	}
	return domain.Response{
		ID:             strconv.FormatInt(p.ID, 10),
		OrganizationID: strconv.FormatInt(p.OrgID, 10),
		Code:           p.Code,
		Name:           p.Name,
		Description:    p.Description,
		Unit:           p.Unit,
		UnitPrice:      p.UnitPrice,
		Cost:           p.Cost,
		Weight:         p.Weight,
		Quantity:       p.Quantity,
		MinQuantity:    p.MinQuantity,
		LowStock:       p.LowStock(),
		Active:         p.Active,
		Metadata:       metadata,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
