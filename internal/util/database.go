package util

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/repository"
)

// HandleDBError translates repository errors into responses. It returns
// true when a response was written.
func HandleDBError(c *gin.Context, err error, resourceName string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, repository.ErrNotFound):
		RespondNotFound(c, resourceName)
	case errors.Is(err, repository.ErrDuplicate):
		RespondBadRequest(c, resourceName+" already exists")
	case errors.Is(err, repository.ErrInvalidInput):
		RespondBadRequest(c, "Invalid "+resourceName)
	case errors.Is(err, repository.ErrAdminMember):
		RespondForbidden(c, "The group admin cannot leave the chat")
	default:
		// Already logged by the repository.
		RespondInternalError(c)
	}
	return true
}

// IsNotFound reports whether err is a repository miss.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
