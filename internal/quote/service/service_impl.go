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
	"github.com/smallbiznis/kitstock/internal/document"
	financedomain "github.com/smallbiznis/kitstock/internal/finance/domain"
	inventorydomain "github.com/smallbiznis/kitstock/internal/inventory/domain"
	"github.com/smallbiznis/kitstock/internal/observability/metrics"
	"github.com/smallbiznis/kitstock/internal/observability/tracing"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
	"github.com/smallbiznis/kitstock/internal/quote/domain"
	"github.com/smallbiznis/kitstock/internal/sequence"
	"github.com/smallbiznis/kitstock/pkg/db"
	"github.com/smallbiznis/kitstock/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const documentType = "quote"

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Policy    *config.InventoryPolicyHolder
	Repo      domain.Repository
	Inventory inventorydomain.Service
	Finance   financedomain.Service
	Sequences *sequence.Generator
	Authz     authorization.Service
	AuditSvc  auditdomain.Service `optional:"true"`
	Metrics   *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	policy    *config.InventoryPolicyHolder
	repo      domain.Repository
	inventory inventorydomain.Service
	finance   financedomain.Service
	sequences *sequence.Generator
	authz     authorization.Service
	auditSvc  auditdomain.Service
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("quote.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		policy:    p.Policy,
		repo:      p.Repo,
		inventory: p.Inventory,
		finance:   p.Finance,
		sequences: p.Sequences,
		authz:     p.Authz,
		auditSvc:  p.AuditSvc,
		metrics:   p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, actor string, req domain.CreateRequest) (*domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	if err := s.authz.Authorize(ctx, actor, orgID.String(), authorization.ObjectQuote, authorization.ActionQuoteCreate); err != nil {
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

	var quote *domain.Quote
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

		lines, total, err := document.Price(ctx, tx, int64(orgID), req.Items, s.policy.Get().MaxItemsPerOrder)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		number, err := s.sequences.Next(ctx, tx, int64(orgID), sequence.ScopeQuote, now)
		if err != nil {
			return err
		}

		quote = &domain.Quote{
			ID:         s.genID.Generate().Int64(),
			OrgID:      int64(orgID),
			Number:     number,
			CustomerID: customerID,
			Status:     domain.StatusPending,
			Total:      total,
			Notes:      optional(req.Notes),
			ValidUntil: req.ValidUntil,
			CreatedBy:  optional(actor),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		items := make([]domain.Item, 0, len(lines))
		for _, line := range lines {
			items = append(items, domain.Item{
				ID:        s.genID.Generate().Int64(),
				OrgID:     quote.OrgID,
				QuoteID:   quote.ID,
				ProductID: line.ProductID,
				KitID:     line.KitID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				Discount:  line.Discount,
				Subtotal:  line.Subtotal,
				CreatedAt: now,
			})
		}
		return s.repo.Create(ctx, tx, quote, items)
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, orgID, actor, "quote.created", quote, nil)
	return s.Get(ctx, strconv.FormatInt(quote.ID, 10))
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	orgID, quoteID, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	quote, err := s.repo.FindByID(ctx, s.db, int64(orgID), quoteID)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, domain.ErrNotFound
	}
	items, err := s.repo.Items(ctx, s.db, int64(orgID), quoteID)
	if err != nil {
		return nil, err
	}
	resp := toResponse(quote, items)
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

	quotes, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}
	page, info := pagination.BuildCursorPage(quotes, filter.Limit, func(q *domain.Quote) int64 { return q.ID })

	out := make([]domain.Response, 0, len(page))
	for _, quote := range page {
		out = append(out, toResponse(quote, nil))
	}
	return domain.ListResponse{PageInfo: info, Quotes: out}, nil
}

func (s *Service) CheckAvailability(ctx context.Context, id string) (*document.AvailabilityResult, error) {
	orgID, quoteID, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	quote, err := s.repo.FindByID(ctx, s.db, int64(orgID), quoteID)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, domain.ErrNotFound
	}
	items, err := s.repo.Items(ctx, s.db, int64(orgID), quoteID)
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

func (s *Service) Approve(ctx context.Context, actor string, id string) (*document.ApprovalResult, error) {
	orgID, quoteID, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, actor, orgID.String(), authorization.ObjectQuote, authorization.ActionQuoteApprove); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "quote.approve",
		attribute.String("org_id", orgID.String()),
		attribute.Int64("quote_id", quoteID),
	)
	defer span.End()

	_, actorID := authorization.SplitActor(actor)
	var (
		quote  *domain.Quote
		debit  *inventorydomain.DebitResult
		result *document.ApprovalResult
	)
	err = db.TenantTx(ctx, s.db, orgID, func(tx *gorm.DB) error {
		var err error
		quote, err = s.repo.LockByID(ctx, tx, int64(orgID), quoteID)
		if err != nil {
			return err
		}
		if quote == nil {
			return domain.ErrNotFound
		}
		switch quote.Status {
		case domain.StatusPending:
		case domain.StatusApproved:
			return domain.ErrAlreadyApproved
		default:
			return domain.ErrInvalidTransition
		}

		items, err := s.repo.Items(ctx, tx, int64(orgID), quoteID)
		if err != nil {
			return err
		}
		debit, err = s.inventory.Debit(ctx, tx, inventorydomain.DebitRequest{
			OrgID:         int64(orgID),
			Lines:         toLines(items),
			ReferenceType: inventorydomain.ReferenceQuote,
			ReferenceID:   quoteID,
			ActorID:       derefString(actorID),
			Note:          "quote " + quote.Number,
		})
		if err != nil {
			return err
		}
		if !debit.OK() {
			result = &document.ApprovalResult{
				Success:      false,
				Status:       string(quote.Status),
				Number:       quote.Number,
				Insufficient: debit.Shortages,
			}
			return nil
		}

		now := s.clock.Now().UTC()
		sourceID := snowflake.ID(quoteID)
		var customerID *snowflake.ID
		if quote.CustomerID != nil {
			v := snowflake.ID(*quote.CustomerID)
			customerID = &v
		}
		sale, err := s.finance.RecordSale(ctx, tx, financedomain.RecordSaleRequest{
			OrgID:       int64(orgID),
			QuoteID:     &sourceID,
			CustomerID:  customerID,
			Total:       quote.Total,
			Description: "Quote " + quote.Number,
			At:          now,
		})
		if err != nil {
			return err
		}

		saleID := sale.ID.Int64()
		affected, err := s.repo.Transition(ctx, tx, int64(orgID), quoteID, domain.StatusPending, domain.StatusApproved, map[string]any{
			"approved_at": now,
			"sale_id":     saleID,
			"updated_at":  now,
		})
		if err != nil {
			return err
		}
		if affected != 1 {
			return domain.ErrConcurrentUpdate
		}
		quote.Status = domain.StatusApproved
		quote.SaleID = &saleID
		saleRef := sale.ID.String()
		result = &document.ApprovalResult{
			Success: true,
			Status:  string(quote.Status),
			Number:  quote.Number,
			SaleID:  &saleRef,
		}
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, err
	}

	if !result.Success {
		s.metrics.RecordApproval(ctx, documentType, "insufficient_stock")
		s.metrics.RecordShortage(ctx, documentType, len(result.Insufficient))
		s.emitAudit(ctx, orgID, actor, "quote.approval_blocked", quote, map[string]any{
			"insufficient": result.Insufficient,
		})
		return result, nil
	}

	s.metrics.RecordApproval(ctx, documentType, "approved")
	s.metrics.RecordStockDebit(ctx, documentType, debit.Units())
	s.log.Info("quote approved",
		zap.String("org_id", orgID.String()),
		zap.Int64("quote_id", quoteID),
		zap.String("number", quote.Number),
		zap.Int64("units_debited", debit.Units()),
	)
	s.emitAudit(ctx, orgID, actor, "quote.approved", quote, map[string]any{
		"units_debited": debit.Units(),
		"sale_id":       derefString(result.SaleID),
	})
	return result, nil
}

func (s *Service) Reject(ctx context.Context, actor string, id string) (*domain.Response, error) {
	return s.close(ctx, actor, id, authorization.ActionQuoteReject, domain.StatusRejected, "rejected_at")
}

func (s *Service) Cancel(ctx context.Context, actor string, id string) (*domain.Response, error) {
	return s.close(ctx, actor, id, authorization.ActionQuoteCancel, domain.StatusCancelled, "cancelled_at")
}

func (s *Service) close(ctx context.Context, actor, id, action string, target domain.Status, stampColumn string) (*domain.Response, error) {
	orgID, quoteID, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, actor, orgID.String(), authorization.ObjectQuote, action); err != nil {
		return nil, err
	}

	var (
		quote   *domain.Quote
		changed bool
	)
	err = db.TenantTx(ctx, s.db, orgID, func(tx *gorm.DB) error {
		var err error
		quote, err = s.repo.LockByID(ctx, tx, int64(orgID), quoteID)
		if err != nil {
			return err
		}
		if quote == nil {
			return domain.ErrNotFound
		}
		if quote.Status == target {
			return nil
		}
		if quote.Status != domain.StatusPending {
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now().UTC()
		affected, err := s.repo.Transition(ctx, tx, int64(orgID), quoteID, domain.StatusPending, target, map[string]any{
			stampColumn:  now,
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		if affected != 1 {
			return domain.ErrConcurrentUpdate
		}
		quote.Status = target
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.RecordApproval(ctx, documentType, string(target))
		s.emitAudit(ctx, orgID, actor, "quote."+string(target), quote, nil)
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

func (s *Service) emitAudit(ctx context.Context, orgID snowflake.ID, actor, action string, quote *domain.Quote, extra map[string]any) {
	if s.auditSvc == nil || quote == nil {
		return
	}
	metadata := map[string]any{
		"number": quote.Number,
		"status": string(quote.Status),
		"total":  quote.Total.StringFixed(2),
	}
	for k, v := range extra {
		metadata[k] = v
	}
	actorType, actorID := authorization.SplitActor(actor)
	targetID := strconv.FormatInt(quote.ID, 10)
	if err := s.auditSvc.AuditLog(ctx, &orgID, actorType, actorID, action, "quote", &targetID, metadata); err != nil {
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

func toResponse(quote *domain.Quote, items []domain.Item) domain.Response {
	resp := domain.Response{
		ID:          strconv.FormatInt(quote.ID, 10),
		Number:      quote.Number,
		CustomerID:  document.FormatID(quote.CustomerID),
		Status:      quote.Status,
		Total:       quote.Total,
		Notes:       quote.Notes,
		ValidUntil:  quote.ValidUntil,
		CreatedBy:   quote.CreatedBy,
		SaleID:      document.FormatID(quote.SaleID),
		ApprovedAt:  quote.ApprovedAt,
		RejectedAt:  quote.RejectedAt,
		CancelledAt: quote.CancelledAt,
		CreatedAt:   quote.CreatedAt,
		UpdatedAt:   quote.UpdatedAt,
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
