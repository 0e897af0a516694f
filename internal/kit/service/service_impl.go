package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/kitstock/internal/clock"
	inventorydomain "github.com/smallbiznis/kitstock/internal/inventory/domain"
	"github.com/smallbiznis/kitstock/internal/kit/domain"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
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
	Repo      domain.Repository
	Inventory inventorydomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	inventory inventorydomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("kit.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		inventory: p.Inventory,
	}
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
	if req.SalePrice.IsNegative() {
		return nil, domain.ErrInvalidPrice
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := s.clock.Now().UTC()
	kit := &domain.Kit{
		ID:          s.genID.Generate().Int64(),
		OrgID:       int64(orgID),
		Code:        code,
		Name:        name,
		Description: trimmedPtr(req.Description),
		SalePrice:   req.SalePrice.Round(2),
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Metadata != nil {
		kit.Metadata = datatypes.JSONMap(req.Metadata)
	}

	components, err := s.buildComponents(kit, req.Components)
	if err != nil {
		return nil, err
	}

	err = db.TenantTx(ctx, s.db, orgID, func(tx *gorm.DB) error {
		if err := s.ensureProductsExist(ctx, tx, kit.OrgID, components); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, tx, kit); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateCode
			}
			return err
		}
		return s.repo.ReplaceComponents(ctx, tx, kit.OrgID, kit.ID, components)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("kit created",
		zap.Int64("org_id", kit.OrgID),
		zap.Int64("kit_id", kit.ID),
		zap.Int("components", len(components)),
	)
	return s.Get(ctx, strconv.FormatInt(kit.ID, 10))
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	kit, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	availability, err := s.inventory.KitAvailability(ctx, strconv.FormatInt(kit.ID, 10))
	if err != nil {
		return nil, err
	}
	resp := toResponse(kit, availability)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	kits, err := s.repo.List(ctx, s.db, domain.ListFilter{
		OrgID:  int64(orgID),
		Search: strings.TrimSpace(req.Search),
		Active: req.Active,
	})
	if err != nil {
		return nil, err
	}
	if len(kits) == 0 {
		return []domain.Response{}, nil
	}

	onlyActive := req.Active != nil && *req.Active
	availability, err := s.inventory.ListKitAvailability(ctx, onlyActive)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*inventorydomain.KitAvailability, len(availability))
	for i := range availability {
		byID[availability[i].KitID] = &availability[i]
	}

	resp := make([]domain.Response, 0, len(kits))
	for i := range kits {
		resp = append(resp, toResponse(&kits[i], byID[strconv.FormatInt(kits[i].ID, 10)]))
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	kit, err := s.find(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		kit.Name = name
	}
	if req.Description != nil {
		kit.Description = trimmedPtr(req.Description)
	}
	if req.SalePrice != nil {
		if req.SalePrice.IsNegative() {
			return nil, domain.ErrInvalidPrice
		}
		kit.SalePrice = req.SalePrice.Round(2)
	}
	if req.Active != nil {
		kit.Active = *req.Active
	}
	if req.Metadata != nil {
		kit.Metadata = datatypes.JSONMap(req.Metadata)
	}
	kit.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Update(ctx, s.db, kit); err != nil {
		return nil, err
	}
	return s.Get(ctx, strconv.FormatInt(kit.ID, 10))
}

// ReplaceComponents swaps the whole bill of materials in one transaction.
// Documents already approved are unaffected; pending ones use the new
// components when they are approved.
func (s *Service) ReplaceComponents(ctx context.Context, id string, inputs []domain.ComponentInput) (*domain.Response, error) {
	kit, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	components, err := s.buildComponents(kit, inputs)
	if err != nil {
		return nil, err
	}

	err = db.TenantTx(ctx, s.db, snowflake.ID(kit.OrgID), func(tx *gorm.DB) error {
		if err := s.ensureProductsExist(ctx, tx, kit.OrgID, components); err != nil {
			return err
		}
		if err := s.repo.ReplaceComponents(ctx, tx, kit.OrgID, kit.ID, components); err != nil {
			return err
		}
		kit.UpdatedAt = s.clock.Now().UTC()
		return s.repo.Update(ctx, tx, kit)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, strconv.FormatInt(kit.ID, 10))
}

func (s *Service) Archive(ctx context.Context, id string) (*domain.Response, error) {
	inactive := false
	return s.Update(ctx, domain.UpdateRequest{ID: id, Active: &inactive})
}

func (s *Service) buildComponents(kit *domain.Kit, inputs []domain.ComponentInput) ([]domain.Component, error) {
	if len(inputs) == 0 {
		return nil, domain.ErrNoComponents
	}

	seen := make(map[int64]struct{}, len(inputs))
	now := s.clock.Now().UTC()
	components := make([]domain.Component, 0, len(inputs))
	for _, input := range inputs {
		productID, err := snowflake.ParseString(strings.TrimSpace(input.ProductID))
		if err != nil || productID == 0 {
			return nil, domain.ErrInvalidID
		}
		if input.Quantity <= 0 {
			return nil, domain.ErrInvalidComponentQuantity
		}
		if _, dup := seen[productID.Int64()]; dup {
			return nil, domain.ErrDuplicateComponent
		}
		seen[productID.Int64()] = struct{}{}

		components = append(components, domain.Component{
			ID:        s.genID.Generate().Int64(),
			OrgID:     kit.OrgID,
			KitID:     kit.ID,
			ProductID: productID.Int64(),
			Quantity:  input.Quantity,
			CreatedAt: now,
		})
	}
	return components, nil
}

func (s *Service) ensureProductsExist(ctx context.Context, tx *gorm.DB, orgID int64, components []domain.Component) error {
	ids := make([]int64, 0, len(components))
	for _, c := range components {
		ids = append(ids, c.ProductID)
	}
	found, err := s.repo.ExistingProductIDs(ctx, tx, orgID, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return domain.ErrProductNotFound
	}
	return nil
}

func (s *Service) find(ctx context.Context, rawID string) (*domain.Kit, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidID
	}
	kit, err := s.repo.FindByID(ctx, s.db, int64(orgID), id.Int64())
	if err != nil {
		return nil, err
	}
	if kit == nil {
		return nil, domain.ErrNotFound
	}
	return kit, nil
}

func toResponse(kit *domain.Kit, availability *inventorydomain.KitAvailability) domain.Response {
	resp := domain.Response{
		ID:                 strconv.FormatInt(kit.ID, 10),
		OrganizationID:     strconv.FormatInt(kit.OrgID, 10),
		Code:               kit.Code,
		Name:               kit.Name,
		Description:        kit.Description,
		SalePrice:          kit.SalePrice,
		Active:             kit.Active,
		LimitingComponents: []string{},
		Components:         []inventorydomain.ComponentResponse{},
		CreatedAt:          kit.CreatedAt,
		UpdatedAt:          kit.UpdatedAt,
	}
	if kit.Metadata != nil {
		resp.Metadata = map[string]any(kit.Metadata)
	}
	if availability != nil {
		resp.AvailableCount = availability.AvailableCount
		resp.LimitingComponents = availability.LimitingComponents
		resp.Components = availability.Components
	}
	return resp
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
