// Package handlers implements the REST API under /api. Every handler reads
// the authenticated user from the gin context, calls a repository or
// service, and maps errors to the shared JSON error body.
package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/auth"
	"github.com/sportsocial/backend/internal/messaging"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/notifications"
	"github.com/sportsocial/backend/internal/repository"
	"github.com/sportsocial/backend/internal/storage"
	"github.com/sportsocial/backend/internal/util"
	"github.com/sportsocial/backend/internal/validation"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	store     *repository.Store
	auth      auth.AuthServiceInterface
	messaging *messaging.Service
	notifier  *notifications.Dispatcher
	avatars   storage.AvatarUploader

	background sync.WaitGroup
}

// backgroundTimeout bounds work that outlives its request, such as the
// nearby-post fan-out.
const backgroundTimeout = 30 * time.Second

// NewHandlers creates a new handlers instance
func NewHandlers(store *repository.Store, authService auth.AuthServiceInterface, messagingService *messaging.Service, notifier *notifications.Dispatcher) *Handlers {
	return &Handlers{
		store:     store,
		auth:      authService,
		messaging: messagingService,
		notifier:  notifier,
	}
}

// SetAvatarUploader enables POST /api/settings/avatar.
func (h *Handlers) SetAvatarUploader(uploader storage.AvatarUploader) {
	h.avatars = uploader
}

// runBackground runs fn after the response is written. The context keeps
// the request's values but not its cancellation.
func (h *Handlers) runBackground(c *gin.Context, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), backgroundTimeout)
	h.background.Add(1)
	go func() {
		defer h.background.Done()
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until background work started by handlers has finished.
func (h *Handlers) Wait() {
	h.background.Wait()
}

// bindJSON binds and validates the body, answering 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		util.RespondWithAPIError(c, validation.ToAPIError(err))
		return false
	}
	return true
}

// currentUser is a shorthand for handlers that need the full user.
func currentUser(c *gin.Context) (*models.User, bool) {
	return util.GetUserFromContext(c)
}

// respondMessagingError maps messaging errors shared by the direct and
// group send endpoints.
func respondMessagingError(c *gin.Context, err error, resource string) {
	switch {
	case errors.Is(err, messaging.ErrNotMember):
		util.RespondForbidden(c, "You are not a member of this group chat")
	case errors.Is(err, messaging.ErrRecipientAbsent):
		util.RespondNotFound(c, "recipient")
	case errors.Is(err, messaging.ErrEmptyContent):
		util.RespondValidationError(c, "content", "content is required")
	case errors.Is(err, messaging.ErrContentTooLong):
		util.RespondValidationError(c, "content", "content is too long")
	case errors.Is(err, messaging.ErrSelfMessage):
		util.RespondBadRequest(c, "You cannot message yourself")
	default:
		util.HandleDBError(c, err, resource)
	}
}

func publicUsers(users []models.User) []models.PublicUser {
	result := make([]models.PublicUser, 0, len(users))
	for i := range users {
		result = append(result, users[i].Public())
	}
	return result
}
