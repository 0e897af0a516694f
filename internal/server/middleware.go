package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/kitstock/internal/observability/context"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
)

const (
	HeaderOrg   = "X-Org-ID"
	HeaderActor = "X-Actor-ID"

	contextActorKey = "actor"
)

// OrgContext resolves the organization from the X-Org-ID header, falling
// back to the configured default organization.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := s.orgIDFromRequest(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), int64(orgID))
		ctx = obscontext.WithOrgID(ctx, orgID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ActorRequired reads the user id forwarded by the gateway in X-Actor-ID.
// Session handling lives in front of this service.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderActor))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		userID, err := snowflake.ParseString(raw)
		if err != nil || userID <= 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor := Actor{Type: ActorUser, ID: userID.String()}
		c.Set(contextActorKey, actor)
		ctx := obscontext.WithActor(c.Request.Context(), string(actor.Type), actor.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) orgIDFromRequest(c *gin.Context) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.GetHeader(HeaderOrg))
	if raw == "" {
		if s.cfg.DefaultOrgID > 0 {
			return snowflake.ID(s.cfg.DefaultOrgID), nil
		}
		return 0, newValidationError("organization", "invalid_organization", "organization is required")
	}
	orgID, err := snowflake.ParseString(raw)
	if err != nil || orgID <= 0 {
		return 0, newValidationError("organization", "invalid_organization", "invalid organization")
	}
	return orgID, nil
}
