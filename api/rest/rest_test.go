package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skipmechanics/guildpanel/api/rest"
	"github.com/skipmechanics/guildpanel/audit"
	"github.com/skipmechanics/guildpanel/config"
	"github.com/skipmechanics/guildpanel/loot"
	mw "github.com/skipmechanics/guildpanel/middleware"
	"github.com/skipmechanics/guildpanel/model"
	"github.com/skipmechanics/guildpanel/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newPanelSetup wires the full REST surface the way main does and logs in
// a member and an officer.
func newPanelSetup(t *testing.T) (r *gin.Engine, db *gorm.DB, memberToken, officerToken string) {
	db = testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: 72 * time.Hour}

	auditSvc := audit.New(db, zap.NewNop())
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })
	registry := loot.NewRegistry(db, auditSvc, zap.NewNop())
	svc := loot.NewService(db, loot.NewValidator(registry), auditSvc, zap.NewNop(), 64)

	authH := rest.NewAuthHandler(db, c, sec)
	reqH := rest.NewRequestHandler(db, svc)
	resH := rest.NewReserveHandler(db, registry)

	r = gin.New()
	r.Use(mw.TraceID())
	r.POST("/api/auth/login", authH.Login)
	r.POST("/api/auth/logout", authH.Logout)

	open := r.Group("/api", mw.OptionalAuth(sec, c))
	open.GET("/requests", reqH.List)
	open.GET("/requests/:id", reqH.Detail)
	open.GET("/reserves", resH.List)

	authed := r.Group("/api", mw.Auth(sec, c))
	authed.POST("/auth/refresh", authH.Refresh)
	authed.GET("/auth/me", authH.Me)
	authed.GET("/requests/mine", reqH.Mine)
	authed.POST("/requests", reqH.Submit)
	authed.POST("/requests/:id/resubmit", reqH.Resubmit)
	authed.POST("/requests/:id/decide", reqH.Decide)
	authed.POST("/requests/:id/lock", reqH.ToggleLock)
	authed.PATCH("/requests/:id", reqH.Edit)
	authed.DELETE("/requests/:id", reqH.Delete)
	authed.POST("/reserves", resH.Add)
	authed.PATCH("/reserves/:id", resH.Update)
	authed.DELETE("/reserves/:id", resH.Remove)

	memberToken = login(t, r, "grunty", "pass1234")
	officerToken = login(t, r, "thrall", "pass1234")
	require.NoError(t, db.Model(&model.Profile{}).
		Where("username = ?", "thrall").
		Update("is_officer", true).Error)

	return r, db, memberToken, officerToken
}

func login(t *testing.T, r *gin.Engine, username, password string) string {
	t.Helper()
	w := postJSON(r, "/api/auth/login", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["token"].(string)
}

func doJSON(r *gin.Engine, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodPost, path, body, headers...)
}

func patchJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodPatch, path, body, headers...)
}

func getReq(r *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodGet, path, nil, headers...)
}

func deleteReq(r *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodDelete, path, nil, headers...)
}

func bearer(token string) []string {
	return []string{"Authorization", "Bearer " + token}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
