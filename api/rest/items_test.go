package rest_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skipmechanics/guildpanel/api/rest"
	"github.com/skipmechanics/guildpanel/config"
	"github.com/skipmechanics/guildpanel/itemdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestItemLookupProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/item/19364" {
			w.Write([]byte(`{"name":"Ashkandi, Greatsword of the Brotherhood"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	client := itemdb.New(config.ItemDBConfig{BaseURL: upstream.URL, Timeout: time.Second}, zap.NewNop())
	r := gin.New()
	r.GET("/api/items/:id", rest.NewItemHandler(client).Lookup)

	w := getReq(r, "/api/items/19364")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ashkandi, Greatsword of the Brotherhood", decodeBody(t, w)["name"])

	w = getReq(r, "/api/items/999999")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, itemdb.UnknownItem, decodeBody(t, w)["name"], "lookup failures degrade, never error")
}
