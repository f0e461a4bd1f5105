package util

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/repository"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"casual", "5v5"}, NormalizeTags([]string{" Casual ", "#5v5", "casual", ""}))
	assert.NotNil(t, NormalizeTags(nil))
}

func TestParseCSV(t *testing.T) {
	assert.Equal(t, []string{"football", "tennis"}, ParseCSV("football, ,tennis"))
	assert.Empty(t, ParseCSV(""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hel…", Truncate("hello", 4))
}

func TestHandleDBErrorMapsSentinels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[error]int{
		repository.ErrNotFound:     http.StatusNotFound,
		repository.ErrDuplicate:    http.StatusBadRequest,
		repository.ErrInvalidInput: http.StatusBadRequest,
		repository.ErrAdminMember:  http.StatusForbidden,
	}
	for err, status := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		assert.True(t, HandleDBError(c, err, "Post"))
		assert.Equal(t, status, w.Code, err.Error())
	}
}

func TestParsePageClamps(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?limit=1000&offset=-3", nil)
	page := ParsePage(c)
	assert.Equal(t, repository.MaxPageSize, page.Limit)
	assert.Equal(t, 0, page.Offset)
}
