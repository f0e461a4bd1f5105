package messaging

import (
	"context"
	"sync"
	"testing"

	"github.com/sportsocial/backend/internal/database"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/notifications"
	"github.com/sportsocial/backend/internal/realtime"
	"github.com/sportsocial/backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type event struct {
	room  string
	event string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event
}

func (p *recordingPublisher) PublishToUser(userID, name string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event{room: "user:" + userID, event: name})
}

func (p *recordingPublisher) PublishToGroup(chatID, name string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event{room: "group:" + chatID, event: name})
}

func (p *recordingPublisher) EvictFromGroup(chatID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event{room: "group:" + chatID, event: "evict:" + userID})
}

func (p *recordingPublisher) named(name string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var rooms []string
	for _, e := range p.events {
		if e.event == name {
			rooms = append(rooms, e.room)
		}
	}
	return rooms
}

type MessagingTestSuite struct {
	suite.Suite
	db        *gorm.DB
	store     *repository.Store
	publisher *recordingPublisher
	service   *Service
	ctx       context.Context
}

func (suite *MessagingTestSuite) SetupTest() {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(suite.T(), err)
	suite.db = db
	suite.store = repository.NewStore(db)
	suite.publisher = &recordingPublisher{}
	dispatcher := notifications.NewDispatcher(suite.store.Notifications, suite.store.Settings, suite.publisher)
	suite.service = NewService(suite.store, dispatcher, suite.publisher)
	suite.ctx = context.Background()
}

func (suite *MessagingTestSuite) TearDownTest() {
	if sqlDB, err := suite.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (suite *MessagingTestSuite) createUser(username string) *models.User {
	user := &models.User{Username: username, Email: username + "@example.com", PasswordHash: "hash"}
	require.NoError(suite.T(), suite.store.Users.Create(suite.ctx, user))
	return user
}

func (suite *MessagingTestSuite) TestSendDirectPublishesAndNotifies() {
	t := suite.T()
	alice := suite.createUser("alice")
	bob := suite.createUser("bob")

	msg, err := suite.service.SendDirect(suite.ctx, alice.ID, bob.ID, "  see you at the pitch  ")
	require.NoError(t, err)
	assert.Equal(t, "see you at the pitch", msg.Content)
	assert.Equal(t, models.MessageTypeDirect, msg.MessageType)
	require.NotNil(t, msg.ConversationID)

	assert.ElementsMatch(t, []string{"user:" + bob.ID, "user:" + alice.ID}, suite.publisher.named(realtime.EventNewDirectMessage))
	assert.Equal(t, []string{"user:" + bob.ID}, suite.publisher.named(realtime.EventNotification))

	counts, err := suite.store.Messages.CountUnread(suite.ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Direct)
}

func (suite *MessagingTestSuite) TestSendDirectValidation() {
	t := suite.T()
	alice := suite.createUser("alice")

	_, err := suite.service.SendDirect(suite.ctx, alice.ID, alice.ID, "hi")
	assert.ErrorIs(t, err, ErrSelfMessage)

	_, err = suite.service.SendDirect(suite.ctx, alice.ID, "missing", "hi")
	assert.ErrorIs(t, err, ErrRecipientAbsent)

	_, err = suite.service.SendDirect(suite.ctx, alice.ID, "missing", "   ")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func (suite *MessagingTestSuite) TestSendGroupRequiresMembership() {
	t := suite.T()
	author := suite.createUser("author")
	joiner := suite.createUser("joiner")
	outsider := suite.createUser("outsider")

	post := &models.Post{AuthorID: author.ID, Sport: "football", Heading: "Kickabout", Latitude: 51.5, Longitude: -0.1, IsActive: true}
	require.NoError(t, suite.store.Posts.Create(suite.ctx, post))
	result, err := suite.store.Posts.ExpressInterest(suite.ctx, post.ID, joiner.ID)
	require.NoError(t, err)
	chatID := result.GroupChat.ID

	_, err = suite.service.SendGroup(suite.ctx, outsider.ID, chatID, "let me in")
	assert.ErrorIs(t, err, ErrNotMember)
	msgs, err := suite.store.Messages.GroupMessages(suite.ctx, chatID, repository.Page{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msg, err := suite.service.SendGroup(suite.ctx, joiner.ID, chatID, "count me in")
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeGroup, msg.MessageType)
	assert.Equal(t, []string{"group:" + chatID}, suite.publisher.named(realtime.EventNewGroupMessage))

	_, err = suite.service.SendGroup(suite.ctx, joiner.ID, "missing-chat", "hello")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	ok, err := suite.service.CanJoinGroup(suite.ctx, chatID, author.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func (suite *MessagingTestSuite) TestRemoveGroupMemberEvictsSockets() {
	t := suite.T()
	author := suite.createUser("author")
	joiner := suite.createUser("joiner")

	post := &models.Post{AuthorID: author.ID, Sport: "padel", Heading: "Doubles", Latitude: 51.5, Longitude: -0.1, IsActive: true}
	require.NoError(t, suite.store.Posts.Create(suite.ctx, post))
	result, err := suite.store.Posts.ExpressInterest(suite.ctx, post.ID, joiner.ID)
	require.NoError(t, err)
	chatID := result.GroupChat.ID

	removed, err := suite.service.RemoveGroupMember(suite.ctx, chatID, joiner.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"group:" + chatID}, suite.publisher.named("evict:"+joiner.ID))

	_, err = suite.service.SendGroup(suite.ctx, joiner.ID, chatID, "still here?")
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestMessagingSuite(t *testing.T) {
	suite.Run(t, new(MessagingTestSuite))
}

func TestCleanContent(t *testing.T) {
	_, err := cleanContent(string(make([]rune, MaxContentLength+1)))
	assert.Error(t, err)

	got, err := cleanContent(" ok ")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
