package notifications

import (
	"context"
	"sync"
	"testing"

	"github.com/sportsocial/backend/internal/database"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/realtime"
	"github.com/sportsocial/backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type published struct {
	room  string
	event string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) PublishToUser(userID, event string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{room: "user:" + userID, event: event})
}

func (p *recordingPublisher) PublishToGroup(chatID, event string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{room: "group:" + chatID, event: event})
}

func (p *recordingPublisher) EvictFromGroup(chatID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{room: "group:" + chatID, event: "evict:" + userID})
}

func (p *recordingPublisher) rooms() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.room)
	}
	return out
}

type DispatcherTestSuite struct {
	suite.Suite
	db         *gorm.DB
	store      *repository.Store
	publisher  *recordingPublisher
	dispatcher *Dispatcher
	ctx        context.Context
}

func (suite *DispatcherTestSuite) SetupTest() {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(suite.T(), err)
	suite.db = db
	suite.store = repository.NewStore(db)
	suite.publisher = &recordingPublisher{}
	suite.dispatcher = NewDispatcher(suite.store.Notifications, suite.store.Settings, suite.publisher)
	suite.ctx = context.Background()
}

func (suite *DispatcherTestSuite) TearDownTest() {
	if sqlDB, err := suite.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (suite *DispatcherTestSuite) createUser(username string) *models.User {
	user := &models.User{Username: username, Email: username + "@example.com", PasswordHash: "hash"}
	require.NoError(suite.T(), suite.store.Users.Create(suite.ctx, user))
	return user
}

func (suite *DispatcherTestSuite) setHome(user *models.User, lat, lng float64, sports []string, nearby bool) {
	prefs, err := suite.store.Settings.GetPreferences(suite.ctx, user.ID)
	require.NoError(suite.T(), err)
	prefs.Latitude = &lat
	prefs.Longitude = &lng
	prefs.PreferredSports = sports
	prefs.NotificationNearbyPosts = nearby
	require.NoError(suite.T(), suite.store.Settings.UpdatePreferences(suite.ctx, prefs))
}

func (suite *DispatcherTestSuite) TestNotifyPersistsAndPublishes() {
	t := suite.T()
	user := suite.createUser("alice")

	n, err := suite.dispatcher.Notify(suite.ctx, repository.CreateNotificationInput{
		UserID: user.ID, Type: models.NotificationTypeSystem, Title: "Welcome",
	})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, []string{"user:" + user.ID}, suite.publisher.rooms())

	count, err := suite.store.Notifications.UnreadCount(suite.ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func (suite *DispatcherTestSuite) TestNotifyHonorsPreferences() {
	t := suite.T()
	user := suite.createUser("bob")
	prefs, err := suite.store.Settings.GetPreferences(suite.ctx, user.ID)
	require.NoError(t, err)
	prefs.NotificationFollows = false
	require.NoError(t, suite.store.Settings.UpdatePreferences(suite.ctx, prefs))

	n, err := suite.dispatcher.Notify(suite.ctx, repository.CreateNotificationInput{
		UserID: user.ID, Type: models.NotificationTypeFollow, Title: "New follower",
	})
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.Empty(t, suite.publisher.rooms())
}

func (suite *DispatcherTestSuite) TestNotifyNearbyPostFanOut() {
	t := suite.T()
	author := suite.createUser("author")
	near := suite.createUser("near")
	tennis := suite.createUser("tennis")
	far := suite.createUser("far")
	optedOut := suite.createUser("optedout")

	suite.setHome(author, 51.5074, -0.1278, nil, true)
	suite.setHome(near, 51.52, -0.10, []string{"Football"}, true)
	suite.setHome(tennis, 51.51, -0.12, []string{"tennis"}, true)
	suite.setHome(far, 53.48, -2.24, nil, true)
	suite.setHome(optedOut, 51.50, -0.13, nil, false)

	post := &models.Post{
		AuthorID: author.ID, Sport: "football", Heading: "Five-a-side",
		Latitude: 51.5074, Longitude: -0.1278, PlayersNeeded: 3, IsActive: true,
	}
	require.NoError(t, suite.store.Posts.Create(suite.ctx, post))

	sent, err := suite.dispatcher.NotifyNearbyPost(suite.ctx, post)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"user:" + near.ID}, suite.publisher.rooms())
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}

func TestNilPublisherFallsBackToNop(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	assert.IsType(t, realtime.NopPublisher{}, d.publisher)
}
