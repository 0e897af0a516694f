package server

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
)

type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorPublic ActorType = "public"
)

type Actor struct {
	Type ActorType
	ID   string
}

func (a Actor) subject() string {
	switch a.Type {
	case ActorUser:
		return fmt.Sprintf("user:%s", a.ID)
	case ActorPublic:
		return "public"
	default:
		return ""
	}
}

func (s *Server) authorizeOrgAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeOrgActionWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeOrgActionWithContext(c *gin.Context, object string, action string) error {
	actor, ok := actorFromContext(c)
	if !ok || actor.Type != ActorUser {
		return ErrUnauthorized
	}
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), actor.subject(), orgID.String(), strings.TrimSpace(object), strings.TrimSpace(action))
}

func actorFromContext(c *gin.Context) (Actor, bool) {
	if c == nil {
		return Actor{}, false
	}
	value, ok := c.Get(contextActorKey)
	if !ok {
		return Actor{}, false
	}
	actor, ok := value.(Actor)
	return actor, ok
}

// actorSubject is the "user:<id>" string services authorize and audit with.
func actorSubject(c *gin.Context) string {
	actor, ok := actorFromContext(c)
	if !ok {
		return ""
	}
	return actor.subject()
}
