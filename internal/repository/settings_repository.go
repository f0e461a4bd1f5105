package repository

import (
	"context"
	"math"

	"github.com/sportsocial/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxPreferenceRadiusKm bounds the candidate search for nearby fan-out.
const maxPreferenceRadiusKm = 500.0

// SettingsRepository stores UserSettings and UserPreferences. Both are
// created with defaults on first read.
type SettingsRepository interface {
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	UpdateSettings(ctx context.Context, settings *models.UserSettings) error
	// HiddenOnlineStatus returns the subset of userIDs that turned
	// show_online_status off.
	HiddenOnlineStatus(ctx context.Context, userIDs []string) (map[string]bool, error)
	GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error)
	UpdatePreferences(ctx context.Context, prefs *models.UserPreferences) error
	// NearbyPreferenceCandidates returns preferences with nearby-post
	// notifications on and a home location roughly near lat/lng. Callers
	// apply the exact per-user distance.
	NearbyPreferenceCandidates(ctx context.Context, lat, lng float64) ([]models.UserPreferences, error)
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	db := r.db.WithContext(ctx)
	defaults := models.DefaultSettings(userID)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults).Error; err != nil {
		return nil, storeError("settings.get", err)
	}
	var settings models.UserSettings
	if err := db.Where("user_id = ?", userID).First(&settings).Error; err != nil {
		return nil, storeError("settings.get", err)
	}
	return &settings, nil
}

func (r *settingsRepository) UpdateSettings(ctx context.Context, settings *models.UserSettings) error {
	if settings == nil || settings.UserID == "" {
		return storeError("settings.update", ErrInvalidInput)
	}
	return storeError("settings.update", r.db.WithContext(ctx).Save(settings).Error)
}

func (r *settingsRepository) HiddenOnlineStatus(ctx context.Context, userIDs []string) (map[string]bool, error) {
	hidden := make(map[string]bool)
	if len(userIDs) == 0 {
		return hidden, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.UserSettings{}).
		Where("user_id IN ? AND show_online_status = ?", userIDs, false).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, storeError("settings.online_status", err)
	}
	for _, id := range ids {
		hidden[id] = true
	}
	return hidden, nil
}

func (r *settingsRepository) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	db := r.db.WithContext(ctx)
	defaults := models.DefaultPreferences(userID)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults).Error; err != nil {
		return nil, storeError("preferences.get", err)
	}
	var prefs models.UserPreferences
	if err := db.Where("user_id = ?", userID).First(&prefs).Error; err != nil {
		return nil, storeError("preferences.get", err)
	}
	return &prefs, nil
}

func (r *settingsRepository) UpdatePreferences(ctx context.Context, prefs *models.UserPreferences) error {
	if prefs == nil || prefs.UserID == "" || prefs.MaxDistanceKm <= 0 {
		return storeError("preferences.update", ErrInvalidInput)
	}
	if prefs.PreferredSports == nil {
		prefs.PreferredSports = []string{}
	}
	return storeError("preferences.update", r.db.WithContext(ctx).Save(prefs).Error)
}

func (r *settingsRepository) NearbyPreferenceCandidates(ctx context.Context, lat, lng float64) ([]models.UserPreferences, error) {
	box := newBoundingBox(lat, lng, maxPreferenceRadiusKm)
	query := r.db.WithContext(ctx).
		Where("notification_nearby_posts = ?", true).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat)
	if box.MinLng >= -180 && box.MaxLng <= 180 {
		query = query.Where("longitude BETWEEN ? AND ?", box.MinLng, box.MaxLng)
	}

	prefs := []models.UserPreferences{}
	if err := query.Find(&prefs).Error; err != nil {
		return nil, storeError("preferences.nearby_candidates", err)
	}
	return prefs, nil
}

// WithinReach reports whether a point lies inside the user's own radius.
func WithinReach(prefs *models.UserPreferences, lat, lng float64) bool {
	if !prefs.HasHomeLocation() {
		return false
	}
	radius := math.Min(prefs.MaxDistanceKm, maxPreferenceRadiusKm)
	return HaversineKm(*prefs.Latitude, *prefs.Longitude, lat, lng) <= radius
}
