package database

import (
	"fmt"
	"time"

	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/metrics"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds the process-wide connection opened by Initialize.
var DB *gorm.DB

// Options selects the driver and connection string.
type Options struct {
	Driver  string // "postgres" or "sqlite"
	DSN     string
	Verbose bool // log every statement
	Tracing bool // install the OpenTelemetry GORM plugin
}

// Initialize opens the configured store and stores it in DB.
func Initialize(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "", "postgres":
		dialector = postgres.Open(opts.DSN)
	case "sqlite":
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	level := gormlogger.Warn
	if opts.Verbose {
		level = gormlogger.Info
	}

	db, err := open(dialector, level)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if opts.Driver == "sqlite" {
		// SQLite serializes writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if opts.Tracing {
		if err := db.Use(telemetry.GORMTracingPlugin()); err != nil {
			return nil, fmt.Errorf("failed to install tracing plugin: %w", err)
		}
	}

	if err := metrics.RegisterDBStats(sqlDB, db.Dialector.Name()); err != nil {
		logger.Log.Warn("Database pool metrics not registered", zap.Error(err))
	}

	DB = db
	logger.Log.Info("Database connected", zap.String("driver", db.Dialector.Name()))
	return db, nil
}

// OpenSQLite opens a SQLite database (":memory:" works) with the schema migrated.
// Tests and the local development driver use it.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := open(sqlite.Open(dsn), gormlogger.Silent)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func open(dialector gorm.Dialector, level gormlogger.LogLevel) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// Migrate creates or updates every table and the secondary indexes.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.UserFollower{},
		&models.UserSettings{},
		&models.UserPreferences{},
		&models.Post{},
		&models.PostInterest{},
		&models.EventRegistration{},
		&models.DirectConversation{},
		&models.GroupChat{},
		&models.GroupChatMember{},
		&models.Message{},
		&models.Notification{},
		&models.Review{},
		&models.ReviewVote{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Log.Info("Database migrations completed")
	return nil
}

// createIndexes adds indexes AutoMigrate cannot express from struct tags.
func createIndexes(db *gorm.DB) error {
	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))",
		"CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))",
		"CREATE INDEX IF NOT EXISTS idx_posts_author_created ON posts (author_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_posts_lat_lng ON posts (latitude, longitude)",
		"CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages (conversation_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_messages_group_created ON messages (group_chat_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications (user_id, created_at DESC)",
	}
	if db.Dialector.Name() == "postgres" {
		statements = append(statements,
			"CREATE INDEX IF NOT EXISTS idx_posts_tags ON posts USING GIN (tags)",
			"CREATE INDEX IF NOT EXISTS idx_posts_active_created ON posts (created_at DESC) WHERE is_active = true",
		)
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

// Close closes the connection held in DB.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health pings the store.
func Health(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
