package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorium-sh/thorium/pkg/artifacts"
	"github.com/thorium-sh/thorium/pkg/events"
	"github.com/thorium-sh/thorium/pkg/identity"
	"github.com/thorium-sh/thorium/pkg/jobs"
	"github.com/thorium-sh/thorium/pkg/netpolicy"
	"github.com/thorium-sh/thorium/pkg/output"
	"github.com/thorium-sh/thorium/pkg/reactions"
	"github.com/thorium-sh/thorium/pkg/registry"
	"github.com/thorium-sh/thorium/pkg/storage/memstore"
	"github.com/thorium-sh/thorium/pkg/tags"
)

func testRouter(t *testing.T) (*gin.Engine, *memstore.MemStore) {
	gin.SetMode(gin.TestMode)
	store := memstore.New()
	idReg := identity.NewRegistry(store)
	reg := registry.New(store, idReg)
	jobEngine := jobs.New(store)
	reactionEngine := reactions.New(store, jobEngine, reg)
	bus := events.New(store)
	tagSvc := tags.New(store, time.Hour, bus)
	router := NewRouter(Deps{
		Users:     NewUserService(store, "bootstrap-secret"),
		Registry:  reg,
		Identity:  idReg,
		Jobs:      jobEngine,
		Reactions: reactionEngine,
		Output:    output.New(store, tagSvc),
		Artifacts: artifacts.New(store, bus),
		Tags:      tagSvc,
		Events:    bus,
		Policies:  netpolicy.New(store),
		Banner:    "test",
	})
	return router, store
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func bootstrapAdmin(t *testing.T, router *gin.Engine) string {
	rec := doJSON(t, router, http.MethodPost, "/users/bootstrap", "", map[string]string{
		"secret_key": "bootstrap-secret",
		"username":   "admin",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealthIsPublic(t *testing.T) {
	router, _ := testRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthedRouteRejectsMissingToken(t *testing.T) {
	router, _ := testRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/identify", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBootstrapRejectsWrongSecret(t *testing.T) {
	router, _ := testRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/users/bootstrap", "", map[string]string{
		"secret_key": "wrong",
		"username":   "admin",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBootstrapThenCreateGroupAndNetworkPolicy(t *testing.T) {
	router, _ := testRouter(t)
	token := bootstrapAdmin(t, router)

	rec := doJSON(t, router, http.MethodGet, "/identify", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/groups", token, map[string]string{"name": "corn"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/groups/corn/network-policies", token, map[string]interface{}{
		"Name":          "default",
		"InternalHosts": []string{"10.0.0.0/8"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/groups/corn/network-policies/default", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p netpolicy.Policy
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, []string{"10.0.0.0/8"}, p.InternalHosts)

	rec = doJSON(t, router, http.MethodGet, "/groups/corn/network-policies/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNetworkPoliciesDefaultAndVerify(t *testing.T) {
	router, _ := testRouter(t)
	token := bootstrapAdmin(t, router)

	rec := doJSON(t, router, http.MethodGet, "/network-policies/default", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/network-policies/verify", token, map[string]interface{}{
		"InternalHosts": []string{"not-a-cidr-but-a-host"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/network-policies/verify", token, map[string]interface{}{
		"InternalHosts": []string{""},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
