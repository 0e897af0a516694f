package authorization

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Service answers whether an actor may perform an action inside an organization.
type Service interface {
	Authorize(ctx context.Context, actor string, orgID string, object string, action string) error
	AssignRole(ctx context.Context, orgID int64, userID int64, role string) error
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Member binds a user to an organization with a role.
type Member struct {
	OrgID     int64     `gorm:"column:org_id;primaryKey"`
	UserID    int64     `gorm:"column:user_id;primaryKey"`
	Role      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Member) TableName() string { return "organization_members" }

var (
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrForbidden           = errors.New("forbidden")
)

// SplitActor turns "user:42" into ("user", "42") for audit entries.
func SplitActor(actor string) (string, *string) {
	actor = strings.TrimSpace(actor)
	kind, id, found := strings.Cut(actor, ":")
	if !found {
		return kind, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return kind, nil
	}
	return kind, &id
}
