package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/kitstock/internal/audit/domain"
	"github.com/smallbiznis/kitstock/internal/authorization"
	"github.com/smallbiznis/kitstock/internal/clock"
	"github.com/smallbiznis/kitstock/internal/inventory/domain"
	"github.com/smallbiznis/kitstock/internal/observability/metrics"
	"github.com/smallbiznis/kitstock/internal/observability/tracing"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
	productdomain "github.com/smallbiznis/kitstock/internal/product/domain"
	"github.com/smallbiznis/kitstock/pkg/db"
	"github.com/smallbiznis/kitstock/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Authz    authorization.Service
	AuditSvc auditdomain.Service `optional:"true"`
	Metrics  *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	authz    authorization.Service
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("inventory.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		authz:    p.Authz,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) KitAvailability(ctx context.Context, kitID string) (*domain.KitAvailability, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(kitID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidID
	}

	kits, err := s.repo.FindKits(ctx, s.db, int64(orgID), []int64{id.Int64()}, false)
	if err != nil {
		return nil, err
	}
	if len(kits) == 0 {
		return nil, domain.ErrKitNotFound
	}

	rows, err := s.repo.KitComponentStock(ctx, s.db, int64(orgID), []int64{id.Int64()})
	if err != nil {
		return nil, err
	}

	resp := toKitAvailability(kits[0], rows)
	return &resp, nil
}

func (s *Service) ListKitAvailability(ctx context.Context, onlyActive bool) ([]domain.KitAvailability, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	kits, err := s.repo.FindKits(ctx, s.db, int64(orgID), nil, onlyActive)
	if err != nil {
		return nil, err
	}
	if len(kits) == 0 {
		return []domain.KitAvailability{}, nil
	}

	ids := make([]int64, 0, len(kits))
	for _, k := range kits {
		ids = append(ids, k.ID)
	}
	rows, err := s.repo.KitComponentStock(ctx, s.db, int64(orgID), ids)
	if err != nil {
		return nil, err
	}

	byKit := make(map[int64][]domain.KitComponentRow, len(kits))
	for _, row := range rows {
		byKit[row.KitID] = append(byKit[row.KitID], row)
	}

	out := make([]domain.KitAvailability, 0, len(kits))
	for _, k := range kits {
		out = append(out, toKitAvailability(k, byKit[k.ID]))
	}
	return out, nil
}

func (s *Service) Check(ctx context.Context, orgID int64, lines []domain.Line) ([]domain.Shortage, error) {
	reqs, err := s.requirements(ctx, s.db, orgID, lines)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.FindProducts(ctx, s.db, orgID, requirementIDs(reqs))
	if err != nil {
		return nil, err
	}
	byID, err := indexProducts(products, reqs)
	if err != nil {
		return nil, err
	}
	return shortages(reqs, byID), nil
}

func (s *Service) Debit(ctx context.Context, tx *gorm.DB, req domain.DebitRequest) (*domain.DebitResult, error) {
	ctx, span := tracing.StartSpan(ctx, "inventory.debit",
		attribute.String("reference_type", req.ReferenceType),
		attribute.Int("lines", len(req.Lines)),
	)
	defer span.End()

	reqs, err := s.requirements(ctx, tx, req.OrgID, req.Lines)
	if err != nil {
		return nil, err
	}

	// Rows are locked in id order so overlapping debits cannot deadlock.
	products, err := s.repo.LockProducts(ctx, tx, req.OrgID, requirementIDs(reqs))
	if err != nil {
		return nil, err
	}
	byID, err := indexProducts(products, reqs)
	if err != nil {
		return nil, err
	}

	if missing := shortages(reqs, byID); len(missing) > 0 {
		return &domain.DebitResult{Shortages: missing}, nil
	}

	now := s.clock.Now()
	result := &domain.DebitResult{Debited: make([]domain.DebitedProduct, 0, len(reqs))}
	movements := make([]domain.StockMovement, 0, len(reqs))
	for _, r := range reqs {
		affected, err := s.repo.DecrementIfAvailable(ctx, tx, req.OrgID, r.ProductID, r.Quantity, now)
		if err != nil {
			return nil, err
		}
		if affected != 1 {
			s.metrics.RecordStockConflict(ctx, req.ReferenceType)
			return nil, domain.ErrStockConflict
		}

		balance := byID[r.ProductID].Quantity - r.Quantity
		result.Debited = append(result.Debited, domain.DebitedProduct{
			ProductID:    r.ProductID,
			Quantity:     r.Quantity,
			BalanceAfter: balance,
		})
		movements = append(movements, s.newMovement(req.OrgID, r.ProductID, domain.MovementOut, r.Quantity, balance,
			req.ReferenceType, &req.ReferenceID, req.Note, req.ActorID, now))
	}

	if err := s.repo.InsertMovements(ctx, tx, movements); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) Adjust(ctx context.Context, actor string, req domain.AdjustRequest) (*domain.StockMovement, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	productID, err := snowflake.ParseString(strings.TrimSpace(req.ProductID))
	if err != nil || productID == 0 {
		return nil, domain.ErrInvalidID
	}
	if !req.Type.Valid() {
		return nil, domain.ErrInvalidMovementType
	}
	if req.Quantity < 0 || (req.Quantity == 0 && req.Type != domain.MovementAdjust) {
		return nil, domain.ErrInvalidQuantity
	}
	if err := s.authz.Authorize(ctx, actor, orgID.String(), authorization.ObjectStock, authorization.ActionStockAdjust); err != nil {
		return nil, err
	}

	_, actorID := authorization.SplitActor(actor)
	var movement domain.StockMovement
	err = db.TenantTx(ctx, s.db, orgID, func(tx *gorm.DB) error {
		locked, err := s.repo.LockProducts(ctx, tx, int64(orgID), []int64{productID.Int64()})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return domain.ErrProductNotFound
		}
		current := locked[0].Quantity

		next, delta, err := applyMovement(current, req.Type, req.Quantity)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		affected, err := s.repo.SetQuantity(ctx, tx, int64(orgID), productID.Int64(), current, next, now)
		if err != nil {
			return err
		}
		if affected != 1 {
			return domain.ErrStockConflict
		}

		movement = s.newMovement(int64(orgID), productID.Int64(), req.Type, delta, next,
			domain.ReferenceManual, nil, req.Note, derefString(actorID), now)
		return s.repo.InsertMovements(ctx, tx, []domain.StockMovement{movement})
	})
	if err != nil {
		if errors.Is(err, domain.ErrStockConflict) {
			s.metrics.RecordStockConflict(ctx, domain.ReferenceManual)
		}
		return nil, err
	}

	s.log.Info("stock adjusted",
		zap.String("org_id", orgID.String()),
		zap.String("product_id", productID.String()),
		zap.String("type", string(req.Type)),
		zap.Int64("quantity", movement.Quantity),
		zap.Int64("balance_after", movement.BalanceAfter),
	)
	s.emitAudit(ctx, orgID, actor, "stock.adjusted", productID.String(), map[string]any{
		"type":          string(req.Type),
		"quantity":      movement.Quantity,
		"balance_after": movement.BalanceAfter,
		"note":          strings.TrimSpace(req.Note),
	})
	return &movement, nil
}

func (s *Service) RecordOpeningBalance(ctx context.Context, tx *gorm.DB, product *productdomain.Product, actorID string) error {
	if product == nil || product.Quantity <= 0 {
		return nil
	}
	movement := s.newMovement(product.OrgID, product.ID, domain.MovementIn, product.Quantity, product.Quantity,
		domain.ReferenceProduct, &product.ID, "opening balance", actorID, s.clock.Now())
	return s.repo.InsertMovements(ctx, tx, []domain.StockMovement{movement})
}

func (s *Service) ListMovements(ctx context.Context, req domain.ListMovementsRequest) (domain.ListMovementsResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListMovementsResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.MovementFilter{
		OrgID:         int64(orgID),
		ReferenceType: strings.TrimSpace(req.ReferenceType),
		Limit:         req.Size(),
	}
	if raw := strings.TrimSpace(req.ProductID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return domain.ListMovementsResponse{}, domain.ErrInvalidID
		}
		value := id.Int64()
		filter.ProductID = &value
	}
	if raw := strings.TrimSpace(req.ReferenceID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return domain.ListMovementsResponse{}, domain.ErrInvalidID
		}
		value := id.Int64()
		filter.ReferenceID = &value
	}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListMovementsResponse{}, err
	}
	filter.AfterID = cursor.ID

	rows, err := s.repo.ListMovements(ctx, s.db, filter)
	if err != nil {
		return domain.ListMovementsResponse{}, err
	}

	ptrs := make([]*domain.StockMovement, 0, len(rows))
	for i := range rows {
		ptrs = append(ptrs, &rows[i])
	}
	page, info := pagination.BuildCursorPage(ptrs, filter.Limit, func(m *domain.StockMovement) int64 { return m.ID })

	out := make([]domain.MovementResponse, 0, len(page))
	for _, m := range page {
		out = append(out, toMovementResponse(m))
	}
	return domain.ListMovementsResponse{PageInfo: info, Movements: out}, nil
}

func (s *Service) requirements(ctx context.Context, conn *gorm.DB, orgID int64, lines []domain.Line) ([]domain.Requirement, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	bom, err := s.repo.LoadBOM(ctx, conn, orgID, domain.KitIDs(lines))
	if err != nil {
		return nil, err
	}
	return domain.ExpandRequirements(lines, bom)
}

func (s *Service) newMovement(orgID, productID int64, kind domain.MovementType, qty, balance int64, refType string, refID *int64, note, actorID string, at time.Time) domain.StockMovement {
	m := domain.StockMovement{
		ID:            s.genID.Generate().Int64(),
		OrgID:         orgID,
		ProductID:     productID,
		Type:          kind,
		Quantity:      qty,
		BalanceAfter:  balance,
		ReferenceType: refType,
		ReferenceID:   refID,
		CreatedAt:     at,
	}
	if note = strings.TrimSpace(note); note != "" {
		m.Note = &note
	}
	if actorID = strings.TrimSpace(actorID); actorID != "" {
		m.ActorID = &actorID
	}
	return m
}

func (s *Service) emitAudit(ctx context.Context, orgID snowflake.ID, actor, action, productID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	actorType, actorID := authorization.SplitActor(actor)
	if err := s.auditSvc.AuditLog(ctx, &orgID, actorType, actorID, action, "product", &productID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

// applyMovement returns the new on-hand quantity and the signed ledger delta.
func applyMovement(current int64, kind domain.MovementType, qty int64) (int64, int64, error) {
	switch kind {
	case domain.MovementIn:
		if current > math.MaxInt64-qty {
			return 0, 0, domain.ErrQuantityOverflow
		}
		return current + qty, qty, nil
	case domain.MovementOut:
		if qty > current {
			return 0, 0, domain.ErrInsufficientStock
		}
		return current - qty, qty, nil
	case domain.MovementAdjust:
		return qty, qty - current, nil
	default:
		return 0, 0, domain.ErrInvalidMovementType
	}
}

func requirementIDs(reqs []domain.Requirement) []int64 {
	ids := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ProductID)
	}
	return ids
}

func indexProducts(products []productdomain.Product, reqs []domain.Requirement) (map[int64]productdomain.Product, error) {
	byID := make(map[int64]productdomain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, r := range reqs {
		if _, ok := byID[r.ProductID]; !ok {
			return nil, domain.ErrProductNotFound
		}
	}
	return byID, nil
}

func shortages(reqs []domain.Requirement, byID map[int64]productdomain.Product) []domain.Shortage {
	var out []domain.Shortage
	for _, r := range reqs {
		p := byID[r.ProductID]
		if p.Quantity >= r.Quantity {
			continue
		}
		out = append(out, domain.Shortage{
			ProductID: strconv.FormatInt(p.ID, 10),
			Code:      p.Code,
			Name:      p.Name,
			Required:  r.Quantity,
			Available: p.Quantity,
			Missing:   r.Quantity - p.Quantity,
		})
	}
	return out
}

func toKitAvailability(k domain.KitRow, rows []domain.KitComponentRow) domain.KitAvailability {
	components := make([]domain.ComponentStock, 0, len(rows))
	for _, row := range rows {
		components = append(components, domain.ComponentStock{
			ProductID:      row.ProductID,
			Code:           row.Code,
			Name:           row.Name,
			RequiredPerKit: row.RequiredPerKit,
			OnHand:         row.OnHand,
		})
	}
	availability := domain.Calculate(components)

	resp := domain.KitAvailability{
		KitID:              strconv.FormatInt(k.ID, 10),
		Code:               k.Code,
		Name:               k.Name,
		Active:             k.Active,
		AvailableCount:     availability.AvailableCount,
		LimitingComponents: []string{},
		Components:         make([]domain.ComponentResponse, 0, len(availability.Components)),
	}
	for _, c := range availability.Components {
		id := strconv.FormatInt(c.ProductID, 10)
		if c.Limiting {
			resp.LimitingComponents = append(resp.LimitingComponents, id)
		}
		resp.Components = append(resp.Components, domain.ComponentResponse{
			ProductID:      id,
			Code:           c.Code,
			Name:           c.Name,
			RequiredPerKit: c.RequiredPerKit,
			OnHand:         c.OnHand,
			Possible:       c.Possible,
			Limiting:       c.Limiting,
		})
	}
	return resp
}

func toMovementResponse(m *domain.StockMovement) domain.MovementResponse {
	resp := domain.MovementResponse{
		ID:            strconv.FormatInt(m.ID, 10),
		ProductID:     strconv.FormatInt(m.ProductID, 10),
		Type:          m.Type,
		Quantity:      m.Quantity,
		BalanceAfter:  m.BalanceAfter,
		ReferenceType: m.ReferenceType,
		Note:          m.Note,
		ActorID:       m.ActorID,
		CreatedAt:     m.CreatedAt,
	}
	if m.ReferenceID != nil {
		ref := strconv.FormatInt(*m.ReferenceID, 10)
		resp.ReferenceID = &ref
	}
	return resp
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
