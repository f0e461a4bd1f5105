// Package notifications persists inbox entries and pushes them to the
// recipient's realtime room.
package notifications

import (
	"context"
	"fmt"

	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/metrics"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/realtime"
	"github.com/sportsocial/backend/internal/repository"
	"github.com/sportsocial/backend/internal/telemetry"
	"go.uber.org/zap"
)

// Dispatcher creates notifications and delivers them live.
type Dispatcher struct {
	notifications repository.NotificationRepository
	settings      repository.SettingsRepository
	publisher     realtime.Publisher
}

func NewDispatcher(notifications repository.NotificationRepository, settings repository.SettingsRepository, publisher realtime.Publisher) *Dispatcher {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &Dispatcher{
		notifications: notifications,
		settings:      settings,
		publisher:     publisher,
	}
}

// Notify stores the notification and pushes it to the user's room. It
// returns nil without error when the user's preferences turn the type off.
func (d *Dispatcher) Notify(ctx context.Context, input repository.CreateNotificationInput) (notification *models.Notification, err error) {
	ctx, span := telemetry.StartNotificationSpan(ctx, input.Type, input.UserID)
	defer func() { telemetry.EndSpan(span, err) }()

	n, created, err := d.notifications.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	metrics.RecordNotification(input.Type, created)
	if !created {
		logger.Log.Debug("Notification suppressed by preferences",
			logger.WithUserID(input.UserID),
			zap.String("type", input.Type),
		)
		return nil, nil
	}

	d.publisher.PublishToUser(input.UserID, realtime.EventNotification, n)
	return n, nil
}

// NotifyNearbyPost tells users whose home is within their own reach of the
// post, and who follow its sport, that a new game was posted. The author is
// skipped. It returns the number of notifications created.
func (d *Dispatcher) NotifyNearbyPost(ctx context.Context, post *models.Post) (sent int, err error) {
	ctx, span := telemetry.StartFanOutSpan(ctx, post.ID, post.Sport)
	defer func() { telemetry.EndSpan(span, err) }()

	candidates, err := d.settings.NearbyPreferenceCandidates(ctx, post.Latitude, post.Longitude)
	if err != nil {
		return 0, err
	}

	for i := range candidates {
		prefs := &candidates[i]
		if prefs.UserID == post.AuthorID || !prefs.WantsSport(post.Sport) {
			continue
		}
		if !repository.WithinReach(prefs, post.Latitude, post.Longitude) {
			continue
		}

		n, err := d.Notify(ctx, repository.CreateNotificationInput{
			UserID:  prefs.UserID,
			Type:    models.NotificationTypeNearbyPost,
			Title:   fmt.Sprintf("New %s game near you", post.Sport),
			Message: post.Heading,
			Data: map[string]any{
				"post_id":       post.ID,
				"sport":         post.Sport,
				"location_name": post.LocationName,
			},
		})
		if err != nil {
			// One bad recipient must not stop the fan-out.
			logger.Log.Warn("Nearby post notification failed",
				logger.WithUserID(prefs.UserID),
				logger.WithPostID(post.ID),
				zap.Error(err),
			)
			continue
		}
		if n != nil {
			sent++
		}
	}

	logger.Log.Info("Nearby post fan-out finished",
		logger.WithPostID(post.ID),
		zap.Int("candidates", len(candidates)),
		zap.Int("sent", sent),
	)
	return sent, nil
}
