package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/kitstock/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed model.conf
var modelText string

const (
	ObjectProduct   = "product"
	ObjectKit       = "kit"
	ObjectStock     = "stock"
	ObjectOrder     = "order"
	ObjectQuote     = "quote"
	ObjectCustomer  = "customer"
	ObjectSupplier  = "supplier"
	ObjectFinance   = "finance"
	ObjectDashboard = "dashboard"
	ObjectAuditLog  = "audit_log"
)

const (
	ActionProductView   = "product.view"
	ActionProductCreate = "product.create"
	ActionProductUpdate = "product.update"
	ActionProductDelete = "product.delete"

	ActionKitView   = "kit.view"
	ActionKitCreate = "kit.create"
	ActionKitUpdate = "kit.update"
	ActionKitDelete = "kit.delete"

	ActionStockView   = "stock.view"
	ActionStockAdjust = "stock.adjust"

	ActionOrderView    = "order.view"
	ActionOrderCreate  = "order.create"
	ActionOrderApprove = "order.approve"
	ActionOrderReject  = "order.reject"
	ActionOrderCancel  = "order.cancel"
	ActionOrderFulfill = "order.fulfill"

	ActionQuoteView    = "quote.view"
	ActionQuoteCreate  = "quote.create"
	ActionQuoteApprove = "quote.approve"
	ActionQuoteReject  = "quote.reject"
	ActionQuoteCancel  = "quote.cancel"

	ActionCustomerView   = "customer.view"
	ActionCustomerCreate = "customer.create"
	ActionCustomerUpdate = "customer.update"

	ActionSupplierView   = "supplier.view"
	ActionSupplierCreate = "supplier.create"
	ActionSupplierUpdate = "supplier.update"

	ActionFinanceView   = "finance.view"
	ActionFinanceCreate = "finance.create"

	ActionDashboardView = "dashboard.view"
	ActionAuditLogView  = "audit_log.view"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, orgID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, actorType, actorID, err := s.resolveActor(ctx, actor, orgID)
	if err != nil {
		s.auditDenied(ctx, actorType, actorID, orgID, object, action)
		return err
	}

	domain := fmt.Sprintf("org:%s", orgID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actorType, actorID, orgID, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.auditGranted(ctx, actorType, actorID, orgID, object, action)
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string, orgID string) (string, string, string, *string, error) {
	if actor == "system" {
		roleName := "role:system"
		return actor, roleName, "system", nil, nil
	}
	if strings.HasPrefix(actor, "user:") {
		userIDRaw := strings.TrimPrefix(actor, "user:")
		userID, err := snowflake.ParseString(userIDRaw)
		if err != nil || userID == 0 {
			return "", "", "", nil, ErrInvalidActor
		}
		parsedOrgID, err := snowflake.ParseString(orgID)
		userIDStr := userID.String()
		if err != nil || parsedOrgID == 0 {
			return actor, "", "user", &userIDStr, ErrInvalidOrganization
		}
		role, err := s.roleForUser(ctx, parsedOrgID, userID)
		if err != nil {
			return actor, "", "user", &userIDStr, err
		}
		roleName := fmt.Sprintf("role:%s", strings.ToLower(role))
		return actor, roleName, "user", &userIDStr, nil
	}
	return "", "", "", nil, ErrInvalidActor
}

func (s *ServiceImpl) roleForUser(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM organization_members
		 WHERE org_id = ? AND user_id = ?
		 LIMIT 1`,
		orgID,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

func (s *ServiceImpl) AssignRole(ctx context.Context, orgID int64, userID int64, role string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != RoleAdmin && role != RoleUser {
		return ErrInvalidRole
	}
	if orgID == 0 {
		return ErrInvalidOrganization
	}
	if userID == 0 {
		return ErrInvalidActor
	}

	member := Member{OrgID: orgID, UserID: userID, Role: role, CreatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "org_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(&member).Error
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorType string, actorID *string, orgID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	parsedOrgID, err := snowflake.ParseString(orgID)
	if err != nil || parsedOrgID == 0 {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, &parsedOrgID, actorType, actorID, "authorization.denied", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"actor":   actorType,
		"org_id":  orgID,
		"subject": actorSubject(actorType, actorID),
	})
}

func (s *ServiceImpl) auditGranted(ctx context.Context, actorType string, actorID *string, orgID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	parsedOrgID, err := snowflake.ParseString(orgID)
	if err != nil || parsedOrgID == 0 {
		return
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, &parsedOrgID, actorType, actorID, "authorization.granted", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"actor":   actorType,
		"org_id":  orgID,
		"subject": actorSubject(actorType, actorID),
	})
}

func actorSubject(actorType string, actorID *string) string {
	switch actorType {
	case "system":
		return "system"
	case "user":
		if actorID != nil && strings.TrimSpace(*actorID) != "" {
			return fmt.Sprintf("user:%s", strings.TrimSpace(*actorID))
		}
	}
	return ""
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionStockAdjust, ActionOrderApprove, ActionQuoteApprove:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	// Regular users run the day-to-day catalog and draft documents.
	userPolicies := [][]string{
		{ObjectProduct, ActionProductView},
		{ObjectKit, ActionKitView},
		{ObjectStock, ActionStockView},
		{ObjectOrder, ActionOrderView},
		{ObjectOrder, ActionOrderCreate},
		{ObjectOrder, ActionOrderCancel},
		{ObjectQuote, ActionQuoteView},
		{ObjectQuote, ActionQuoteCreate},
		{ObjectQuote, ActionQuoteCancel},
		{ObjectCustomer, ActionCustomerView},
		{ObjectCustomer, ActionCustomerCreate},
		{ObjectCustomer, ActionCustomerUpdate},
		{ObjectSupplier, ActionSupplierView},
		{ObjectDashboard, ActionDashboardView},
	}

	// Admins additionally own every stock-mutating decision.
	adminPolicies := append([][]string{
		{ObjectProduct, ActionProductCreate},
		{ObjectProduct, ActionProductUpdate},
		{ObjectProduct, ActionProductDelete},
		{ObjectKit, ActionKitCreate},
		{ObjectKit, ActionKitUpdate},
		{ObjectKit, ActionKitDelete},
		{ObjectStock, ActionStockAdjust},
		{ObjectOrder, ActionOrderApprove},
		{ObjectOrder, ActionOrderReject},
		{ObjectOrder, ActionOrderFulfill},
		{ObjectQuote, ActionQuoteApprove},
		{ObjectQuote, ActionQuoteReject},
		{ObjectSupplier, ActionSupplierCreate},
		{ObjectSupplier, ActionSupplierUpdate},
		{ObjectFinance, ActionFinanceView},
		{ObjectFinance, ActionFinanceCreate},
		{ObjectAuditLog, ActionAuditLogView},
	}, userPolicies...)

	policies := make([][]string, 0, len(userPolicies)+2*len(adminPolicies))
	for _, p := range userPolicies {
		policies = append(policies, []string{"role:user", p[0], p[1]})
	}
	for _, p := range adminPolicies {
		policies = append(policies, []string{"role:admin", p[0], p[1]})
		policies = append(policies, []string{"role:system", p[0], p[1]})
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
