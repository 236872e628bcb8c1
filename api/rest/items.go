package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skipmechanics/guildpanel/itemdb"
)

// ItemHandler proxies item-name lookups to the external item database so
// browser clients avoid cross-origin calls.
type ItemHandler struct {
	client *itemdb.Client
}

func NewItemHandler(client *itemdb.Client) *ItemHandler {
	return &ItemHandler{client: client}
}

// Lookup handles GET /api/items/:id. Lookups never fail hard; a bad ID
// just yields the placeholder name.
func (h *ItemHandler) Lookup(c *gin.Context) {
	name := h.client.ItemName(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"name": name})
}
