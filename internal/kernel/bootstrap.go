package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/auth"
	"github.com/sportsocial/backend/internal/cache"
	"github.com/sportsocial/backend/internal/config"
	"github.com/sportsocial/backend/internal/database"
	"github.com/sportsocial/backend/internal/email"
	"github.com/sportsocial/backend/internal/handlers"
	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/messaging"
	"github.com/sportsocial/backend/internal/notifications"
	"github.com/sportsocial/backend/internal/otp"
	"github.com/sportsocial/backend/internal/repository"
	"github.com/sportsocial/backend/internal/storage"
	"github.com/sportsocial/backend/internal/validation"
	"github.com/sportsocial/backend/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ServiceName identifies the API in traces and health output.
const ServiceName = "sports-social-backend"

const otpSweepInterval = time.Minute

// Build connects the store and the optional backends described by cfg and
// wires every service. ctx bounds background sweepers. The caller owns the
// returned kernel and must call Cleanup.
func Build(ctx context.Context, cfg *config.Config) (*Kernel, error) {
	k := New().WithLogger(logger.Log)

	db, err := database.Initialize(database.Options{
		Driver:  cfg.DatabaseDriver,
		DSN:     cfg.DatabaseURL,
		Verbose: !cfg.IsProduction() && cfg.LogLevel == "debug",
		Tracing: cfg.OTelEnabled,
	})
	if err != nil {
		return nil, err
	}
	k.OnCleanup(func(context.Context) error { return database.Close() })
	if err := database.Migrate(db); err != nil {
		_ = k.Cleanup(ctx)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	k.SetDB(db)

	if cfg.RedisEnabled() {
		rc, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			logger.WarnWithFields("Redis unavailable - using in-memory OTP store and rate limits", err)
		} else {
			k.SetCache(rc)
			k.OnCleanup(func(context.Context) error { return rc.Close() })
		}
	}

	mailer := email.Mailer(email.NewLogMailer())
	if cfg.SESEnabled() {
		ses, err := email.NewSESMailer(cfg.AWSRegion, cfg.EmailFrom, cfg.EmailFromName, cfg.FrontendURL)
		if err != nil {
			logger.WarnWithFields("SES unavailable - OTP codes will be logged", err)
		} else {
			mailer = ses
		}
	} else {
		logger.Log.Warn("SES not configured - OTP codes will be logged")
	}

	var s3 *storage.S3Uploader
	if cfg.S3Enabled() {
		s3, err = storage.NewS3Uploader(cfg.AWSRegion, cfg.AWSBucket, cfg.CDNBaseURL)
		if err != nil {
			logger.WarnWithFields("S3 unavailable - avatar uploads disabled", err)
			s3 = nil
		} else {
			k.SetAvatarUploader(s3)
		}
	}

	if err := checkRequiredServices(ctx, cfg, k.Cache(), s3, mailer); err != nil {
		_ = k.Cleanup(ctx)
		return nil, err
	}

	wire(ctx, k, db, []byte(cfg.JWTSecret), mailer, cfg.FrontendURL)
	if err := k.Validate(); err != nil {
		_ = k.Cleanup(ctx)
		return nil, err
	}
	return k, nil
}

// wire builds the services over db. It is shared by Build and NewMock.
func wire(ctx context.Context, k *Kernel, db *gorm.DB, jwtSecret []byte, mailer email.Mailer, allowedOrigins ...string) {
	store := repository.NewStore(db)
	k.SetStore(store)
	k.SetMailer(mailer)

	var otpStore otp.Store
	if rc := k.Cache(); rc != nil {
		otpStore = otp.NewRedisStore(rc)
	} else {
		memory := otp.NewMemoryStore()
		memory.StartSweeper(ctx, otpSweepInterval)
		otpStore = memory
	}
	otps := otp.NewManager(otpStore)
	k.SetOTPManager(otps)

	authService := auth.NewService(jwtSecret, store.Users, otps, mailer)
	k.SetAuthService(authService)

	hub := websocket.NewHub()
	hub.OnPresence(func(ctx context.Context, userID string, online bool) error {
		return store.Users.SetOnline(ctx, userID, online)
	})
	k.SetHub(hub)

	notifier := notifications.NewDispatcher(store.Notifications, store.Settings, hub)
	k.SetNotifier(notifier)
	messages := messaging.NewService(store, notifier, hub)
	k.SetMessaging(messages)

	socket := websocket.NewHandler(hub, authService, messages, allowedOrigins...)
	k.SetWebSocketHandler(socket)

	h := handlers.NewHandlers(store, authService, messages, notifier)
	if avatars := k.AvatarUploader(); avatars != nil {
		h.SetAvatarUploader(avatars)
	}
	k.SetHandlers(h)

	// Runs first on shutdown: sockets close, then in-flight fan-out drains.
	k.OnCleanup(func(ctx context.Context) error {
		err := socket.Shutdown(ctx)
		h.Wait()
		return err
	})
}

func checkRequiredServices(ctx context.Context, cfg *config.Config, rc *cache.RedisClient, s3 *storage.S3Uploader, mailer email.Mailer) error {
	validator := validation.NewServiceValidator(cfg.RequiredServices)

	if rc != nil {
		validator.Register("redis", rc.Ping)
	} else {
		validator.Register("redis", nil)
	}
	if s3 != nil {
		validator.Register("s3", s3.CheckBucketAccess)
	} else {
		validator.Register("s3", nil)
	}
	if _, ok := mailer.(*email.SESMailer); ok {
		validator.Register("ses", func(context.Context) error { return nil })
	} else {
		validator.Register("ses", nil)
	}

	return validator.ValidateServices(ctx)
}

// Start runs the realtime hub in the background. Cleanup stops it.
func (c *Kernel) Start() {
	if hub := c.Hub(); hub != nil {
		go hub.Run()
	}
}

// Router builds the HTTP engine over the kernel's services. ctx bounds the
// in-memory rate limiter sweepers.
func (c *Kernel) Router(ctx context.Context, allowedOrigins []string, tracing bool) *gin.Engine {
	serviceName := ""
	if tracing {
		serviceName = ServiceName
	}
	router := handlers.NewRouter(ctx, handlers.RouterConfig{
		Handlers:       c.Handlers(),
		RequireAuth:    c.Auth().Middleware(),
		Socket:         c.WebSocket(),
		Redis:          c.Cache(),
		AllowedOrigins: allowedOrigins,
		ServiceName:    serviceName,
	})
	c.Logger().Info("Router ready",
		zap.Int("routes", len(router.Routes())),
		zap.Bool("redis", c.Cache() != nil),
		zap.Bool("avatars", c.AvatarUploader() != nil),
	)
	return router
}
