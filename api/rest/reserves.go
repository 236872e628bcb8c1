package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/skipmechanics/guildpanel/loot"
	"gorm.io/gorm"
)

// ReserveHandler exposes the hard-reserve registry over REST. Reads are
// open so clients can warn before submitting; mutations are officer-only
// and the service enforces that server-side.
type ReserveHandler struct {
	db       *gorm.DB
	registry *loot.Registry
}

func NewReserveHandler(db *gorm.DB, registry *loot.Registry) *ReserveHandler {
	return &ReserveHandler{db: db, registry: registry}
}

// List handles GET /api/reserves with an optional search query.
func (h *ReserveHandler) List(c *gin.Context) {
	reserves, err := h.registry.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reserves": reserves})
}

type reserveRequest struct {
	ItemName string `json:"item_name" binding:"required,max=128"`
	Note     string `json:"note" binding:"max=1024"`
}

// Add handles POST /api/reserves.
func (h *ReserveHandler) Add(c *gin.Context) {
	sess, ok := resolveSession(c, h.db)
	if !ok {
		return
	}
	var body reserveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reserve, err := h.registry.Add(requestContext(c), sess, body.ItemName, body.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reserve)
}

type reserveUpdateRequest struct {
	ItemName *string `json:"item_name"`
	Note     *string `json:"note"`
}

// Update handles PATCH /api/reserves/:id.
func (h *ReserveHandler) Update(c *gin.Context) {
	sess, ok := resolveSession(c, h.db)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body reserveUpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reserve, err := h.registry.Update(requestContext(c), sess, id, body.ItemName, body.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reserve)
}

// Remove handles DELETE /api/reserves/:id.
func (h *ReserveHandler) Remove(c *gin.Context) {
	sess, ok := resolveSession(c, h.db)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.registry.Remove(requestContext(c), sess, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed"})
}
