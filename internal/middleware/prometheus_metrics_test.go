package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/metrics"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/util"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, labels ...string) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, metrics.Get().HTTPRequestsTotal.WithLabelValues(labels...).Write(&out))
	return out.GetCounter().GetValue()
}

func TestMetricsUsesRouteTemplateAndNumericStatus(t *testing.T) {
	m := metrics.Initialize()
	m.HTTPRequestsTotal.Reset()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Metrics())
	router.GET("/posts/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/posts/1", "/posts/2", "/boom", "/nope"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	assert.Equal(t, 2.0, counterValue(t, "GET", "/posts/:id", "200"))
	assert.Equal(t, 1.0, counterValue(t, "GET", "/boom", "500"))
	assert.Equal(t, 1.0, counterValue(t, "GET", "unmatched", "404"))
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Logger())
	router.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/id", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/id", nil))
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	newRouter := func(user *models.User) *gin.Engine {
		router := gin.New()
		router.Use(func(c *gin.Context) {
			if user != nil {
				util.SetUser(c, user)
			}
		}, RequireAdmin())
		router.GET("/admin", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return router
	}

	cases := []struct {
		name string
		user *models.User
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"member", &models.User{ID: "u1"}, http.StatusForbidden},
		{"admin", &models.User{ID: "u2", IsAdmin: true}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(tc.user).ServeHTTP(w, httptest.NewRequest("GET", "/admin", nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
