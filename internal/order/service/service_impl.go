package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/kitstock/internal/audit/domain"
	"github.com/smallbiznis/kitstock/internal/authorization"
	"github.com/smallbiznis/kitstock/internal/clock"
	"github.com/smallbiznis/kitstock/internal/config"
	customerdomain "github.com/smallbiznis/kitstock/internal/customer/domain"
	"github.com/smallbiznis/kitstock/internal/document"
	inventorydomain "github.com/smallbiznis/kitstock/internal/inventory/domain"
	"github.com/smallbiznis/kitstock/internal/observability/metrics"
	"github.com/smallbiznis/kitstock/internal/observability/tracing"
	"github.com/smallbiznis/kitstock/internal/order/domain"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
	"github.com/smallbiznis/kitstock/internal/ratelimit"
	"github.com/smallbiznis/kitstock/internal/sequence"
	"github.com/smallbiznis/kitstock/pkg/db"
	"github.com/smallbiznis/kitstock/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	documentType = "order"
	publicActor  = "public"
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
	Customers customerdomain.Service
	Sequences *sequence.Generator
	Authz     authorization.Service
	AuditSvc  auditdomain.Service             `optional:"true"`
	Metrics   *metrics.Metrics                `optional:"true"`
	Limiter   *ratelimit.CatalogIntakeLimiter `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	policy    *config.InventoryPolicyHolder
	repo      domain.Repository
	inventory inventorydomain.Service
	customers customerdomain.Service
	sequences *sequence.Generator
	authz     authorization.Service
	auditSvc  auditdomain.Service
	metrics   *metrics.Metrics
	limiter   *ratelimit.CatalogIntakeLimiter
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("order.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		policy:    p.Policy,
		repo:      p.Repo,
		inventory: p.Inventory,
		customers: p.Customers,
		sequences: p.Sequences,
		authz:     p.Authz,
		auditSvc:  p.AuditSvc,
		metrics:   p.Metrics,
		limiter:   p.Limiter,
	}
}

func (s *Service) Create(ctx context.Context, actor string, req domain.CreateRequest) (*domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	if err := s.authz.Authorize(ctx, actor, orgID.String(), authorization.ObjectOrder, authorization.ActionOrderCreate); err != nil {
		return nil, err
	}

	var customerID *int64
	if req.CustomerID != nil && strings.TrimSpace(*req.CustomerID) != "" {
		id, err := snowflake.ParseString(strings.TrimSpace(*req.CustomerID))
		if err != nil || id == 0 {
			return nil, domain.ErrInvalidID
		}
		value := id.Int64()
		customerID = &value
	}

	var order *domain.Order
	err := db.TenantTx(ctx, s.db, orgID, func(tx *gorm.DB) error {
		if customerID != nil {
			exists, err := s.repo.CustomerExists(ctx, tx, int64(orgID), *customerID)
			if err != nil {
				return err
			}
			if !exists {
				return domain.ErrCustomerNotFound
			}
		}
		var err error
		order, err = s.insert(ctx, tx, int64(orgID), customerID, domain.OriginInternal, actor, req.Notes, req.Items)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order created",
		zap.String("org_id", orgID.String()),
		zap.Int64("order_id", order.ID),
		zap.String("number", order.Number),
	)
	s.emitAudit(ctx, orgID, actor, "order.created", order, nil)
	return s.Get(ctx, strconv.FormatInt(order.ID, 10))
}

func (s *Service) SubmitCatalogOrder(ctx context.Context, req domain.CatalogOrderRequest) (*domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	decision := s.limiter.Allow(ctx, orgID.String(), req.ClientKey)
	if !decision.Allowed {
		return nil, domain.ErrRateLimited
	}
	contact := strings.TrimSpace(req.Customer.Document)
	if contact == "" {
		contact = strings.ToLower(strings.TrimSpace(req.Customer.Email))
	}
	release, acquired := s.limiter.LockSubmission(ctx, orgID.String(), contact)
	defer release()
	if !acquired {
		return nil, domain.ErrDuplicateSubmission
	}

	var order *domain.Order
	err := db.TenantTx(ctx, s.db, orgID, func(tx *gorm.DB) error {
		customer, err := s.customers.UpsertContact(ctx, tx, int64(orgID), req.Customer)
		if err != nil {
			return err
		}
		customerID := customer.ID.Int64()
		order, err = s.insert(ctx, tx, int64(orgID), &customerID, domain.OriginCatalog, publicActor, req.Notes, req.Items)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("catalog order submitted",
		zap.String("org_id", orgID.String()),
		zap.Int64("order_id", order.ID),
		zap.String("number", order.Number),
	)
	s.emitAudit(ctx, orgID, publicActor, "order.submitted", order, nil)
	return s.Get(ctx, strconv.FormatInt(order.ID, 10))
}

func (s *Service) insert(ctx context.Context, tx *gorm.DB, orgID int64, customerID *int64, origin domain.Origin, actor, notes string, inputs []document.ItemInput) (*domain.Order, error) {
	lines, total, err := document.Price(ctx, tx, orgID, inputs, s.policy.Get().MaxItemsPerOrder)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	number, err := s.sequences.Next(ctx, tx, orgID, sequence.ScopeOrder, now)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:         s.genID.Generate().Int64(),
		OrgID:      orgID,
		Number:     number,
		CustomerID: customerID,
		Status:     domain.StatusPending,
		Origin:     origin,
		Total:      total,
		Notes:      optional(notes),
		CreatedBy:  optional(actor),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	items := make([]domain.Item, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.Item{
			ID:        s.genID.Generate().Int64(),
			OrgID:     orgID,
			OrderID:   order.ID,
			ProductID: line.ProductID,
			KitID:     line.KitID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Discount:  line.Discount,
			Subtotal:  line.Subtotal,
			CreatedAt: now,
		})
	}
	if err := s.repo.Create(ctx, tx, order, items); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	orgID, orderID, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, s.db, int64(orgID), orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	items, err := s.repo.Items(ctx, s.db, int64(orgID), orderID)
	if err != nil {
		return nil, err
	}
	resp := toResponse(order, items)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListFilter{OrgID: int64(orgID), Limit: req.Size()}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		filter.Status = domain.Status(raw)
		if !filter.Status.Valid() {
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
	}
	if raw := strings.TrimSpace(req.Origin); raw != "" {
		filter.Origin = domain.Origin(raw)
		if filter.Origin != domain.OriginInternal && filter.Origin != domain.OriginCatalog {
			return domain.ListResponse{}, domain.ErrInvalidOrigin
		}
	}
	if raw := strings.TrimSpace(req.CustomerID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return domain.ListResponse{}, domain.ErrInvalidID
		}
		value := id.Int64()
		filter.CustomerID = &value
	}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, err
	}
	filter.AfterID = cursor.ID

	orders, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}
	page, info := pagination.BuildCursorPage(orders, filter.Limit, func(o *domain.Order) int64 { return o.ID })

	out := make([]domain.Response, 0, len(page))
	for _, order := range page {
		out = append(out, toResponse(order, nil))
	}
	return domain.ListResponse{PageInfo: info, Orders: out}, nil
}

func (s *Service) CheckAvailability(ctx context.Context, id string) (*document.AvailabilityResult, error) {
	orgID, orderID, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, s.db, int64(orgID), orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	items, err := s.repo.Items(ctx, s.db, int64(orgID), orderID)
	if err != nil {
		return nil, err
	}

	shortages, err := s.inventory.Check(ctx, int64(orgID), toLines(items))
	if err != nil {
		return nil, err
	}
	if shortages == nil {
		shortages = []inventorydomain.Shortage{}
	}
	return &document.AvailabilityResult{Available: len(shortages) == 0, Insufficient: shortages}, nil
}

// Approve debits the aggregated stock of every line and confirms the order
// in one transaction. When stock is short nothing is written and the result
// lists the missing products.
func (s *Service) Approve(ctx context.Context, actor string, id string) (*document.ApprovalResult, error) {
	orgID, orderID, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, actor, orgID.String(), authorization.ObjectOrder, authorization.ActionOrderApprove); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "order.approve",
		attribute.String("org_id", orgID.String()),
		attribute.Int64("order_id", orderID),
	)
	defer span.End()

	_, actorID := authorization.SplitActor(actor)
	var (
		order  *domain.Order
		debit  *inventorydomain.DebitResult
		result *document.ApprovalResult
	)
	err = db.TenantTx(ctx, s.db, orgID, func(tx *gorm.DB) error {
		var err error
		order, err = s.repo.LockByID(ctx, tx, int64(orgID), orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}
		switch {
		case order.Status == domain.StatusPending:
		case order.Status.Approved():
			return domain.ErrAlreadyApproved
		default:
			return domain.ErrInvalidTransition
		}

		items, err := s.repo.Items(ctx, tx, int64(orgID), orderID)
		if err != nil {
			return err
		}
		debit, err = s.inventory.Debit(ctx, tx, inventorydomain.DebitRequest{
			OrgID:         int64(orgID),
			Lines:         toLines(items),
			ReferenceType: inventorydomain.ReferenceOrder,
			ReferenceID:   orderID,
			ActorID:       derefString(actorID),
			Note:          "order " + order.Number,
		})
		if err != nil {
			return err
		}
		if !debit.OK() {
			result = &document.ApprovalResult{
				Success:      false,
				Status:       string(order.Status),
				Number:       order.Number,
				Insufficient: debit.Shortages,
			}
			return nil
		}

		now := s.clock.Now().UTC()
		affected, err := s.repo.Transition(ctx, tx, int64(orgID), orderID, domain.StatusPending, domain.StatusConfirmed, map[string]any{
			"confirmed_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return err
		}
		if affected != 1 {
			return domain.ErrConcurrentUpdate
		}
		order.Status = domain.StatusConfirmed
		order.ConfirmedAt = &now
		result = &document.ApprovalResult{Success: true, Status: string(order.Status), Number: order.Number}
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, err
	}

	if !result.Success {
		s.metrics.RecordApproval(ctx, documentType, "insufficient_stock")
		s.metrics.RecordShortage(ctx, documentType, len(result.Insufficient))
		s.log.Info("order approval blocked by stock",
			zap.String("org_id", orgID.String()),
			zap.Int64("order_id", orderID),
			zap.Int("short_products", len(result.Insufficient)),
		)
		s.emitAudit(ctx, orgID, actor, "order.approval_blocked", order, map[string]any{
			"insufficient": result.Insufficient,
		})
		return result, nil
	}

	s.metrics.RecordApproval(ctx, documentType, "approved")
	s.metrics.RecordStockDebit(ctx, documentType, debit.Units())
	s.log.Info("order approved",
		zap.String("org_id", orgID.String()),
		zap.Int64("order_id", orderID),
		zap.String("number", order.Number),
		zap.Int64("units_debited", debit.Units()),
	)
	s.emitAudit(ctx, orgID, actor, "order.approved", order, map[string]any{
		"units_debited": debit.Units(),
		"products":      len(debit.Debited),
	})
	return result, nil
}

func (s *Service) Reject(ctx context.Context, actor string, id string) (*domain.Response, error) {
	return s.close(ctx, actor, id, authorization.ActionOrderReject, domain.StatusRejected, "rejected_at")
}

func (s *Service) Cancel(ctx context.Context, actor string, id string) (*domain.Response, error) {
	return s.close(ctx, actor, id, authorization.ActionOrderCancel, domain.StatusCancelled, "cancelled_at")
}

// close moves a pending order to a terminal status without touching stock.
// Repeating the same close is a no-op.
func (s *Service) close(ctx context.Context, actor, id, action string, target domain.Status, stampColumn string) (*domain.Response, error) {
	orgID, orderID, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, actor, orgID.String(), authorization.ObjectOrder, action); err != nil {
		return nil, err
	}

	var (
		order   *domain.Order
		changed bool
	)
	err = db.TenantTx(ctx, s.db, orgID, func(tx *gorm.DB) error {
		var err error
		order, err = s.repo.LockByID(ctx, tx, int64(orgID), orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}
		if order.Status == target {
			return nil
		}
		if order.Status != domain.StatusPending {
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now().UTC()
		affected, err := s.repo.Transition(ctx, tx, int64(orgID), orderID, domain.StatusPending, target, map[string]any{
			stampColumn:  now,
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		if affected != 1 {
			return domain.ErrConcurrentUpdate
		}
		order.Status = target
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.RecordApproval(ctx, documentType, string(target))
		s.log.Info("order closed",
			zap.String("org_id", orgID.String()),
			zap.Int64("order_id", orderID),
			zap.String("status", string(target)),
		)
		s.emitAudit(ctx, orgID, actor, "order."+string(target), order, nil)
	}
	return s.Get(ctx, id)
}

func (s *Service) Advance(ctx context.Context, actor string, id string, target domain.Status) (*domain.Response, error) {
	orgID, orderID, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if err := s.authz.Authorize(ctx, actor, orgID.String(), authorization.ObjectOrder, authorization.ActionOrderFulfill); err != nil {
		return nil, err
	}

	var (
		order   *domain.Order
		from    domain.Status
		changed bool
	)
	err = db.TenantTx(ctx, s.db, orgID, func(tx *gorm.DB) error {
		var err error
		order, err = s.repo.LockByID(ctx, tx, int64(orgID), orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}
		from = order.Status
		if from == target && from.Approved() {
			return nil
		}
		if !domain.CanAdvance(from, target) {
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now().UTC()
		values := map[string]any{"updated_at": now}
		switch target {
		case domain.StatusShipped:
			values["shipped_at"] = now
		case domain.StatusDelivered:
			values["delivered_at"] = now
			if order.ShippedAt == nil {
				values["shipped_at"] = now
			}
		}
		affected, err := s.repo.Transition(ctx, tx, int64(orgID), orderID, from, target, values)
		if err != nil {
			return err
		}
		if affected != 1 {
			return domain.ErrConcurrentUpdate
		}
		order.Status = target
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.emitAudit(ctx, orgID, actor, "order.advanced", order, map[string]any{
			"from": string(from),
			"to":   string(target),
		})
	}
	return s.Get(ctx, id)
}

func (s *Service) resolve(ctx context.Context, rawID string) (snowflake.ID, int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, 0, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return 0, 0, domain.ErrInvalidID
	}
	return orgID, id.Int64(), nil
}

func (s *Service) recordFailure(ctx context.Context, err error) {
	switch {
	case errors.Is(err, inventorydomain.ErrStockConflict), errors.Is(err, domain.ErrConcurrentUpdate), db.IsLockConflictErr(err):
		s.metrics.RecordApproval(ctx, documentType, "conflict")
	case errors.Is(err, domain.ErrAlreadyApproved), errors.Is(err, domain.ErrInvalidTransition):
		s.metrics.RecordApproval(ctx, documentType, "invalid_state")
	case errors.Is(err, domain.ErrNotFound):
	default:
		s.metrics.RecordApproval(ctx, documentType, "error")
	}
}

func (s *Service) emitAudit(ctx context.Context, orgID snowflake.ID, actor, action string, order *domain.Order, extra map[string]any) {
	if s.auditSvc == nil || order == nil {
		return
	}
	metadata := map[string]any{
		"number": order.Number,
		"status": string(order.Status),
		"origin": string(order.Origin),
		"total":  order.Total.StringFixed(2),
	}
	for k, v := range extra {
		metadata[k] = v
	}
	actorType, actorID := authorization.SplitActor(actor)
	targetID := strconv.FormatInt(order.ID, 10)
	if err := s.auditSvc.AuditLog(ctx, &orgID, actorType, actorID, action, "order", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func toLines(items []domain.Item) []inventorydomain.Line {
	lines := make([]inventorydomain.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, document.StockLine(item.ProductID, item.KitID, item.Quantity))
	}
	return lines
}

func toResponse(order *domain.Order, items []domain.Item) domain.Response {
	resp := domain.Response{
		ID:          strconv.FormatInt(order.ID, 10),
		Number:      order.Number,
		CustomerID:  document.FormatID(order.CustomerID),
		Status:      order.Status,
		Origin:      order.Origin,
		Total:       order.Total,
		Notes:       order.Notes,
		CreatedBy:   order.CreatedBy,
		ConfirmedAt: order.ConfirmedAt,
		RejectedAt:  order.RejectedAt,
		CancelledAt: order.CancelledAt,
		ShippedAt:   order.ShippedAt,
		DeliveredAt: order.DeliveredAt,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
	if items != nil {
		resp.Items = make([]domain.ItemResponse, 0, len(items))
		for _, item := range items {
			resp.Items = append(resp.Items, domain.ItemResponse{
				ID:        strconv.FormatInt(item.ID, 10),
				ProductID: document.FormatID(item.ProductID),
				KitID:     document.FormatID(item.KitID),
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				Discount:  item.Discount,
				Subtotal:  item.Subtotal,
			})
		}
	}
	return resp
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
