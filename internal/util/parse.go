package util

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/repository"
)

// ParseInt parses a string to an integer, returning defaultValue if parsing fails
func ParseInt(s string, defaultValue int) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultValue
}

// ParseFloatParam parses a required float query value.
func ParseFloatParam(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// ParseBoolQuery returns nil when the query key is absent or unparsable.
func ParseBoolQuery(c *gin.Context, key string) *bool {
	raw, ok := c.GetQuery(key)
	if !ok {
		return nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &val
}

// ParsePage reads limit/offset query parameters. Out-of-range values are
// clamped by Page.Normalize.
func ParsePage(c *gin.Context) repository.Page {
	page := repository.Page{
		Limit:  ParseInt(c.Query("limit"), repository.DefaultPageSize),
		Offset: ParseInt(c.Query("offset"), 0),
	}
	return page.Normalize()
}

// ParseCSV splits a comma-separated query value, dropping blanks.
func ParseCSV(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
