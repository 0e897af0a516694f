package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kitstock/internal/clock"
	"github.com/smallbiznis/kitstock/internal/config"
	"github.com/smallbiznis/kitstock/internal/finance/domain"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
	"github.com/smallbiznis/kitstock/internal/sequence"
	"github.com/smallbiznis/kitstock/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Policy    *config.InventoryPolicyHolder
	Sequences *sequence.Generator
	Repo      domain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	policy    *config.InventoryPolicyHolder
	sequences *sequence.Generator
	repo      domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("finance.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		policy:    p.Policy,
		sequences: p.Sequences,
		repo:      p.Repo,
	}
}

func (s *Service) CreateTransaction(ctx context.Context, req domain.CreateTransactionRequest) (*domain.Transaction, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	if !req.Type.Valid() {
		return nil, domain.ErrInvalidType
	}
	status := req.Status
	if status == "" {
		status = domain.TransactionPending
	}
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		return nil, domain.ErrInvalidCategory
	}

	now := s.clock.Now().UTC()
	occurredOn := now
	if req.OccurredOn != nil {
		occurredOn = req.OccurredOn.UTC()
	}
	txn := &domain.Transaction{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Type:        req.Type,
		Category:    category,
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount.Round(2),
		Status:      status,
		OccurredOn:  occurredOn,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if status == domain.TransactionPaid {
		txn.PaidAt = &now
	}

	if err := s.repo.InsertTransaction(ctx, s.db, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) SettleTransaction(ctx context.Context, rawID string) (*domain.Transaction, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidID
	}

	affected, err := s.repo.MarkPaid(ctx, s.db, int64(orgID), id.Int64(), s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	txn, err := s.repo.FindTransaction(ctx, s.db, int64(orgID), id.Int64())
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, domain.ErrNotFound
	}
	if affected == 0 {
		return nil, domain.ErrAlreadyPaid
	}
	return txn, nil
}

func (s *Service) ListTransactions(ctx context.Context, req domain.ListTransactionsRequest) (domain.ListTransactionsResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListTransactionsResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.TransactionFilter{
		OrgID: int64(orgID),
		From:  req.From,
		To:    req.To,
		Limit: req.Size(),
	}
	if raw := strings.TrimSpace(req.Type); raw != "" {
		filter.Type = domain.TransactionType(raw)
		if !filter.Type.Valid() {
			return domain.ListTransactionsResponse{}, domain.ErrInvalidType
		}
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		filter.Status = domain.TransactionStatus(raw)
		if !filter.Status.Valid() {
			return domain.ListTransactionsResponse{}, domain.ErrInvalidStatus
		}
	}
	if req.From != nil && req.To != nil && !req.From.Before(*req.To) {
		return domain.ListTransactionsResponse{}, domain.ErrInvalidTimeRange
	}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListTransactionsResponse{}, err
	}
	filter.AfterID = cursor.ID

	items, err := s.repo.ListTransactions(ctx, s.db, filter)
	if err != nil {
		return domain.ListTransactionsResponse{}, err
	}
	page, info := pagination.BuildCursorPage(items, filter.Limit, func(t *domain.Transaction) int64 { return t.ID.Int64() })

	out := make([]domain.Transaction, 0, len(page))
	for _, item := range page {
		out = append(out, *item)
	}
	return domain.ListTransactionsResponse{PageInfo: info, Transactions: out}, nil
}

func (s *Service) ListSales(ctx context.Context, req domain.ListSalesRequest) (domain.ListSalesResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListSalesResponse{}, domain.ErrInvalidOrganization
	}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListSalesResponse{}, err
	}

	filter := domain.SaleFilter{OrgID: int64(orgID), AfterID: cursor.ID, Limit: req.Size()}
	items, err := s.repo.ListSales(ctx, s.db, filter)
	if err != nil {
		return domain.ListSalesResponse{}, err
	}
	page, info := pagination.BuildCursorPage(items, filter.Limit, func(v *domain.Sale) int64 { return v.ID.Int64() })

	out := make([]domain.Sale, 0, len(page))
	for _, item := range page {
		out = append(out, *item)
	}
	return domain.ListSalesResponse{PageInfo: info, Sales: out}, nil
}

func (s *Service) Summary(ctx context.Context, req domain.SummaryRequest) (*domain.Summary, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	if req.From != nil && req.To != nil && !req.From.Before(*req.To) {
		return nil, domain.ErrInvalidTimeRange
	}

	totals, err := s.repo.Totals(ctx, s.db, int64(orgID), req.From, req.To)
	if err != nil {
		return nil, err
	}

	summary := &domain.Summary{
		Income:             decimal.Zero,
		Expense:            decimal.Zero,
		PendingReceivables: decimal.Zero,
		PendingPayables:    decimal.Zero,
	}
	for _, t := range totals {
		switch {
		case t.Type == domain.TransactionIncome && t.Status == domain.TransactionPaid:
			summary.Income = summary.Income.Add(t.Amount)
		case t.Type == domain.TransactionExpense && t.Status == domain.TransactionPaid:
			summary.Expense = summary.Expense.Add(t.Amount)
		case t.Type == domain.TransactionIncome:
			summary.PendingReceivables = summary.PendingReceivables.Add(t.Amount)
		case t.Type == domain.TransactionExpense:
			summary.PendingPayables = summary.PendingPayables.Add(t.Amount)
		}
	}
	summary.Balance = summary.Income.Sub(summary.Expense)
	return summary, nil
}

func (s *Service) RecordSale(ctx context.Context, tx *gorm.DB, req domain.RecordSaleRequest) (*domain.Sale, error) {
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if req.Total.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}

	number, err := s.sequences.Next(ctx, tx, req.OrgID, sequence.ScopeSale, req.At)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	sale := &domain.Sale{
		ID:         s.genID.Generate(),
		OrgID:      snowflake.ID(req.OrgID),
		Number:     number,
		QuoteID:    req.QuoteID,
		CustomerID: req.CustomerID,
		Total:      req.Total.Round(2),
		Status:     domain.SaleCompleted,
		SoldAt:     req.At.UTC(),
		CreatedAt:  now,
	}
	if err := s.repo.InsertSale(ctx, tx, sale); err != nil {
		return nil, err
	}

	// A zero-value sale has nothing to receive.
	if !sale.Total.IsPositive() {
		return sale, nil
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = fmt.Sprintf("Sale %s", number)
	}
	saleID := sale.ID
	income := &domain.Transaction{
		ID:          s.genID.Generate(),
		OrgID:       sale.OrgID,
		Type:        domain.TransactionIncome,
		Category:    s.policy.Get().IncomeCategory,
		Description: description,
		Amount:      sale.Total,
		Status:      domain.TransactionPending,
		SaleID:      &saleID,
		OccurredOn:  sale.SoldAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertTransaction(ctx, tx, income); err != nil {
		return nil, err
	}
	return sale, nil
}
