// Package kernel holds the application's dependencies and their lifecycle.
// The server builds one Kernel at startup and reads every service from it.
package kernel

import (
	"context"
	"sync"

	"github.com/sportsocial/backend/internal/auth"
	"github.com/sportsocial/backend/internal/cache"
	"github.com/sportsocial/backend/internal/email"
	"github.com/sportsocial/backend/internal/handlers"
	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/messaging"
	"github.com/sportsocial/backend/internal/notifications"
	"github.com/sportsocial/backend/internal/otp"
	"github.com/sportsocial/backend/internal/repository"
	"github.com/sportsocial/backend/internal/storage"
	"github.com/sportsocial/backend/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Kernel holds all application dependencies and provides type-safe access.
type Kernel struct {
	// Core infrastructure
	db     *gorm.DB
	logger *zap.Logger
	cache  *cache.RedisClient
	store  *repository.Store

	// Services
	auth      *auth.Service
	mailer    email.Mailer
	otps      *otp.Manager
	notifier  *notifications.Dispatcher
	messaging *messaging.Service
	avatars   storage.AvatarUploader

	// Realtime
	hub       *websocket.Hub
	wsHandler *websocket.Handler

	handlers *handlers.Handlers

	// Lifecycle hooks
	cleanupFuncs []func(context.Context) error
	mu           sync.RWMutex
}

// New creates an empty kernel. Services are registered with the Set methods.
func New() *Kernel {
	return &Kernel{
		cleanupFuncs: make([]func(context.Context) error, 0),
	}
}

// ============================================================================
// CORE INFRASTRUCTURE
// ============================================================================

// SetDB registers the database connection
func (c *Kernel) SetDB(db *gorm.DB) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.db = db
	return c
}

// DB returns the database connection
func (c *Kernel) DB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// SetLogger registers the logger
func (c *Kernel) SetLogger(l *zap.Logger) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l
	return c
}

// Logger returns the registered logger, falling back to the global one.
func (c *Kernel) Logger() *zap.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loggerLocked()
}

func (c *Kernel) loggerLocked() *zap.Logger {
	if c.logger == nil {
		return logger.Log
	}
	return c.logger
}

// SetCache registers the Redis client. Nil means Redis is not configured.
func (c *Kernel) SetCache(client *cache.RedisClient) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = client
	return c
}

func (c *Kernel) Cache() *cache.RedisClient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache
}

// SetStore registers the repositories.
func (c *Kernel) SetStore(store *repository.Store) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = store
	return c
}

func (c *Kernel) Store() *repository.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}

// ============================================================================
// SERVICES
// ============================================================================

func (c *Kernel) SetAuthService(service *auth.Service) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = service
	return c
}

func (c *Kernel) Auth() *auth.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

func (c *Kernel) SetMailer(mailer email.Mailer) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mailer = mailer
	return c
}

func (c *Kernel) Mailer() email.Mailer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mailer
}

func (c *Kernel) SetOTPManager(manager *otp.Manager) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.otps = manager
	return c
}

func (c *Kernel) OTPManager() *otp.Manager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.otps
}

func (c *Kernel) SetNotifier(dispatcher *notifications.Dispatcher) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifier = dispatcher
	return c
}

func (c *Kernel) Notifier() *notifications.Dispatcher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notifier
}

func (c *Kernel) SetMessaging(service *messaging.Service) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messaging = service
	return c
}

func (c *Kernel) Messaging() *messaging.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.messaging
}

// SetAvatarUploader registers avatar storage. Without it avatar uploads
// answer 503.
func (c *Kernel) SetAvatarUploader(uploader storage.AvatarUploader) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.avatars = uploader
	return c
}

func (c *Kernel) AvatarUploader() storage.AvatarUploader {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.avatars
}

// ============================================================================
// REALTIME AND HTTP
// ============================================================================

func (c *Kernel) SetHub(hub *websocket.Hub) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hub = hub
	return c
}

func (c *Kernel) Hub() *websocket.Hub {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hub
}

// SetWebSocketHandler registers the socket handler
func (c *Kernel) SetWebSocketHandler(handler *websocket.Handler) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wsHandler = handler
	return c
}

// WebSocket returns the socket handler
func (c *Kernel) WebSocket() *websocket.Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wsHandler
}

func (c *Kernel) SetHandlers(h *handlers.Handlers) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
	return c
}

func (c *Kernel) Handlers() *handlers.Handlers {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handlers
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// OnCleanup registers a function to run during shutdown. Functions run in
// LIFO order, so later services close before the ones they depend on.
func (c *Kernel) OnCleanup(fn func(context.Context) error) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
	return c
}

// Cleanup runs every registered cleanup function. A failing function is
// logged and the rest still run; the first error is returned.
func (c *Kernel) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	log := c.loggerLocked()
	c.mu.Unlock()

	var firstErr error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			log.Error("Cleanup function failed", zap.Int("index", i), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ============================================================================
// VALIDATION
// ============================================================================

// Validate checks that the required dependencies are registered and logs
// the optional ones that are not.
func (c *Kernel) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var missing []string
	if c.db == nil {
		missing = append(missing, "database (DB)")
	}
	if c.store == nil {
		missing = append(missing, "repository store")
	}
	if c.auth == nil {
		missing = append(missing, "auth service")
	}
	if c.notifier == nil {
		missing = append(missing, "notification dispatcher")
	}
	if c.messaging == nil {
		missing = append(missing, "messaging service")
	}
	if c.handlers == nil {
		missing = append(missing, "HTTP handlers")
	}
	if len(missing) > 0 {
		return NewInitializationError("Missing required dependencies", missing)
	}

	optional := []struct {
		name    string
		present bool
	}{
		{"Redis cache", c.cache != nil},
		{"avatar storage", c.avatars != nil},
		{"websocket handler", c.wsHandler != nil},
	}
	for _, dep := range optional {
		if !dep.present {
			c.loggerLocked().Warn("Optional dependency not configured", zap.String("dependency", dep.name))
		}
	}
	return nil
}

// ============================================================================
// FLUENT API
// ============================================================================

func (c *Kernel) WithDB(db *gorm.DB) *Kernel {
	return c.SetDB(db)
}

func (c *Kernel) WithLogger(l *zap.Logger) *Kernel {
	return c.SetLogger(l)
}
