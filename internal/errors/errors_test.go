package errors

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorIsBadRequest(t *testing.T) {
	err := ValidationError("location", "location is required")

	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, http.StatusBadRequest, ErrValidation.StatusCode())
	assert.Equal(t, "VALIDATION_ERROR: location is required (field: location)", err.Error())
}

func TestUnknownCodeMapsTo500(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, ErrorCode("SOMETHING_ELSE").StatusCode())
}

func TestAPIErrorJSON(t *testing.T) {
	data, err := json.Marshal(NotFound("Post").WithDetails(map[string]string{"id": "p1"}))
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Equal(t, "Post not found", body["message"])
	assert.NotContains(t, body, "field")
	assert.NotContains(t, body, "Status")
	assert.Equal(t, map[string]any{"id": "p1"}, body["details"])
}
