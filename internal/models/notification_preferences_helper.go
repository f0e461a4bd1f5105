package models

import "strings"

// Allows reports whether the user wants notifications of the given type.
// Types without a toggle (system, event_registration) are always delivered.
func (p *UserPreferences) Allows(notificationType string) bool {
	switch notificationType {
	case NotificationTypeMessage, NotificationTypeGroupMessage:
		return p.NotificationMessages
	case NotificationTypeFollow:
		return p.NotificationFollows
	case NotificationTypeInterest:
		return p.NotificationInterests
	case NotificationTypeNearbyPost:
		return p.NotificationNearbyPosts
	case NotificationTypeReview:
		return p.NotificationReviews
	default:
		return true
	}
}

// WantsSport reports whether a post for sport matches the preferred sports.
// An empty preference list matches every sport.
func (p *UserPreferences) WantsSport(sport string) bool {
	if len(p.PreferredSports) == 0 {
		return true
	}
	for _, s := range p.PreferredSports {
		if strings.EqualFold(s, sport) {
			return true
		}
	}
	return false
}

// HasHomeLocation reports whether both home coordinates are set.
func (p *UserPreferences) HasHomeLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}
