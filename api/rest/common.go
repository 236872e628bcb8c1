package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skipmechanics/guildpanel/audit"
	"github.com/skipmechanics/guildpanel/loot"
	mw "github.com/skipmechanics/guildpanel/middleware"
	"gorm.io/gorm"
)

// requestContext carries the trace ID into the service layer so audit
// entries line up with the request log.
func requestContext(c *gin.Context) context.Context {
	return audit.WithTraceID(c.Request.Context(), mw.GetTraceID(c))
}

// resolveSession turns the authenticated user ID (or its absence) into an
// explicit Session for the service layer.
func resolveSession(c *gin.Context, db *gorm.DB) (loot.Session, bool) {
	sess, err := loot.LoadSession(db, mw.GetUserID(c))
	if err != nil {
		if errors.Is(err, loot.ErrPermissionDenied) {
			c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return loot.Session{}, false
	}
	return sess, true
}

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	if ve, ok := loot.AsValidation(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"reason": string(ve.Reason),
			"item":   ve.Item,
		})
		return
	}
	switch {
	case errors.Is(err, loot.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	case errors.Is(err, loot.ErrRecordLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "record is locked"})
	case errors.Is(err, loot.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, loot.ErrDuplicateItem):
		c.JSON(http.StatusConflict, gin.H{"error": "item already hard reserved"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
