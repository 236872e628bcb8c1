package itemdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skipmechanics/guildpanel/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	return New(config.ItemDBConfig{BaseURL: baseURL, Timeout: time.Second}, zap.NewNop())
}

func TestItemNameOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/item/19364", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Ashkandi, Greatsword of the Brotherhood"}`))
	}))
	defer srv.Close()

	name := newTestClient(srv.URL).ItemName(context.Background(), "19364")
	assert.Equal(t, "Ashkandi, Greatsword of the Brotherhood", name)
}

func TestItemNameDegradesToPlaceholder(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFound.Close()
	assert.Equal(t, UnknownItem, newTestClient(notFound.URL).ItemName(context.Background(), "1"))

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>nope</html>"))
	}))
	defer garbage.Close()
	assert.Equal(t, UnknownItem, newTestClient(garbage.URL).ItemName(context.Background(), "1"))

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":""}`))
	}))
	defer empty.Close()
	assert.Equal(t, UnknownItem, newTestClient(empty.URL).ItemName(context.Background(), "1"))

	// Unreachable server.
	assert.Equal(t, UnknownItem, newTestClient("http://127.0.0.1:1").ItemName(context.Background(), "1"))
}
