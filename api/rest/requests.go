package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skipmechanics/guildpanel/loot"
	"gorm.io/gorm"
)

// RequestHandler exposes the loot-request lifecycle over REST.
type RequestHandler struct {
	db  *gorm.DB
	svc *loot.Service
}

func NewRequestHandler(db *gorm.DB, svc *loot.Service) *RequestHandler {
	return &RequestHandler{db: db, svc: svc}
}

// Submit handles POST /api/requests. The body is one multi-raid form
// submission; all rows are validated and inserted atomically.
func (h *RequestHandler) Submit(c *gin.Context) {
	sess, ok := resolveSession(c, h.db)
	if !ok {
		return
	}
	var sub loot.BatchSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.svc.SubmitBatch(requestContext(c), sess, sub)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"requests": created})
}

// List handles GET /api/requests with optional raid, status and character
// query filters. Anonymous callers only see decided requests.
func (h *RequestHandler) List(c *gin.Context) {
	sess, ok := resolveSession(c, h.db)
	if !ok {
		return
	}
	filter := loot.Filter{
		Raid:      c.Query("raid"),
		Status:    c.Query("status"),
		Character: c.Query("character"),
	}
	requests, err := h.svc.List(requestContext(c), sess, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// Mine handles GET /api/requests/mine, returning the caller's requests
// grouped into submission batches.
func (h *RequestHandler) Mine(c *gin.Context) {
	sess, ok := resolveSession(c, h.db)
	if !ok {
		return
	}
	batches, err := h.svc.ListMine(requestContext(c), sess)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

// Detail handles GET /api/requests/:id.
func (h *RequestHandler) Detail(c *gin.Context) {
	sess, ok := resolveSession(c, h.db)
	if !ok {
		return
	}
	req, err := h.svc.Get(requestContext(c), sess, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type decideRequest struct {
	Status string `json:"status" binding:"required"`
}

// Decide handles POST /api/requests/:id/decide.
func (h *RequestHandler) Decide(c *gin.Context) {
	sess, ok := resolveSession(c, h.db)
	if !ok {
		return
	}
	var body decideRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.svc.Decide(requestContext(c), sess, c.Param("id"), body.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// Resubmit handles POST /api/requests/:id/resubmit.
func (h *RequestHandler) Resubmit(c *gin.Context) {
	sess, ok := resolveSession(c, h.db)
	if !ok {
		return
	}
	req, err := h.svc.Resubmit(requestContext(c), sess, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type editRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// Edit handles PATCH /api/requests/:id. One field per call; the service
// decides who may touch which field.
func (h *RequestHandler) Edit(c *gin.Context) {
	sess, ok := resolveSession(c, h.db)
	if !ok {
		return
	}
	var body editRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.svc.EditField(requestContext(c), sess, c.Param("id"), body.Field, body.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// ToggleLock handles POST /api/requests/:id/lock.
func (h *RequestHandler) ToggleLock(c *gin.Context) {
	sess, ok := resolveSession(c, h.db)
	if !ok {
		return
	}
	req, err := h.svc.ToggleLock(requestContext(c), sess, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// Delete handles DELETE /api/requests/:id.
func (h *RequestHandler) Delete(c *gin.Context) {
	sess, ok := resolveSession(c, h.db)
	if !ok {
		return
	}
	if err := h.svc.Delete(requestContext(c), sess, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
