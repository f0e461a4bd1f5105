package repository

import (
	"context"
	"testing"
	"time"

	"github.com/sportsocial/backend/internal/database"
	"github.com/sportsocial/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// RepositoryTestSuite runs every repository against a fresh in-memory store.
type RepositoryTestSuite struct {
	suite.Suite
	db    *gorm.DB
	store *Store
	ctx   context.Context
}

func (suite *RepositoryTestSuite) SetupTest() {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(suite.T(), err)
	suite.db = db
	suite.store = NewStore(db)
	suite.ctx = context.Background()
}

func (suite *RepositoryTestSuite) TearDownTest() {
	if sqlDB, err := suite.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (suite *RepositoryTestSuite) createUser(username string) *models.User {
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Sports:       []string{"football"},
		Tags:         []string{},
	}
	require.NoError(suite.T(), suite.store.Users.Create(suite.ctx, user))
	return user
}

func (suite *RepositoryTestSuite) createPost(author *models.User, lat, lng float64) *models.Post {
	post := &models.Post{
		AuthorID:      author.ID,
		Sport:         "football",
		Heading:       "Sunday kickabout",
		Description:   "Casual five-a-side",
		Tags:          []string{"casual", "5v5"},
		Latitude:      lat,
		Longitude:     lng,
		PlayersNeeded: 4,
		IsActive:      true,
	}
	require.NoError(suite.T(), suite.store.Posts.Create(suite.ctx, post))
	return post
}

func (suite *RepositoryTestSuite) TestUserDuplicateEmailIsRejected() {
	suite.createUser("alice")

	err := suite.store.Users.Create(suite.ctx, &models.User{
		Username:     "alice2",
		Email:        "alice@example.com",
		PasswordHash: "hash",
	})
	assert.ErrorIs(suite.T(), err, ErrDuplicate)

	count, err := suite.store.Users.Count(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), count)
}

func (suite *RepositoryTestSuite) TestUserLookupIsCaseInsensitive() {
	alice := suite.createUser("alice")

	byEmail, err := suite.store.Users.GetByEmail(suite.ctx, "ALICE@example.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), alice.ID, byEmail.ID)

	exists, err := suite.store.Users.ExistsByEmailOrUsername(suite.ctx, "other@example.com", "Alice")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), exists)

	_, err = suite.store.Users.GetByID(suite.ctx, "missing")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *RepositoryTestSuite) TestSetOnlineStampsLastSeenWhenGoingOffline() {
	alice := suite.createUser("alice")

	require.NoError(suite.T(), suite.store.Users.SetOnline(suite.ctx, alice.ID, true))
	user, err := suite.store.Users.GetByID(suite.ctx, alice.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), user.IsOnline)
	assert.Nil(suite.T(), user.LastSeen)

	require.NoError(suite.T(), suite.store.Users.SetOnline(suite.ctx, alice.ID, false))
	user, err = suite.store.Users.GetByID(suite.ctx, alice.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), user.IsOnline)
	assert.NotNil(suite.T(), user.LastSeen)
}

func (suite *RepositoryTestSuite) TestFollowIsIdempotent() {
	alice := suite.createUser("alice")
	bob := suite.createUser("bob")

	created, err := suite.store.Follows.Follow(suite.ctx, alice.ID, bob.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), created)

	created, err = suite.store.Follows.Follow(suite.ctx, alice.ID, bob.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), created)

	followers, err := suite.store.Follows.FollowerIDs(suite.ctx, bob.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{alice.ID}, followers)

	_, err = suite.store.Follows.Follow(suite.ctx, alice.ID, alice.ID)
	assert.ErrorIs(suite.T(), err, ErrInvalidInput)

	removed, err := suite.store.Follows.Unfollow(suite.ctx, alice.ID, bob.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), removed)

	following, err := suite.store.Follows.IsFollowing(suite.ctx, alice.ID, bob.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), following)
}

func (suite *RepositoryTestSuite) TestExpressInterestTwiceYieldsOneChatAndMembership() {
	author := suite.createUser("author")
	fan := suite.createUser("fan")
	post := suite.createPost(author, 51.5, -0.12)

	first, err := suite.store.Posts.ExpressInterest(suite.ctx, post.ID, fan.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), first.InterestCreated)
	assert.True(suite.T(), first.MemberAdded)
	assert.Equal(suite.T(), author.ID, first.GroupChat.AdminID)

	second, err := suite.store.Posts.ExpressInterest(suite.ctx, post.ID, fan.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), second.InterestCreated)
	assert.False(suite.T(), second.MemberAdded)
	assert.Equal(suite.T(), first.GroupChat.ID, second.GroupChat.ID)

	var chats int64
	suite.db.Model(&models.GroupChat{}).Where("post_id = ?", post.ID).Count(&chats)
	assert.Equal(suite.T(), int64(1), chats)

	members, err := suite.store.GroupChats.MemberIDs(suite.ctx, first.GroupChat.ID)
	require.NoError(suite.T(), err)
	assert.ElementsMatch(suite.T(), []string{author.ID, fan.ID}, members)
}

func (suite *RepositoryTestSuite) TestRemoveInterestKeepsAdmin() {
	author := suite.createUser("author")
	fan := suite.createUser("fan")
	post := suite.createPost(author, 51.5, -0.12)

	result, err := suite.store.Posts.ExpressInterest(suite.ctx, post.ID, fan.ID)
	require.NoError(suite.T(), err)

	removed, err := suite.store.Posts.RemoveInterest(suite.ctx, post.ID, fan.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), removed)

	members, err := suite.store.GroupChats.MemberIDs(suite.ctx, result.GroupChat.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{author.ID}, members)

	_, err = suite.store.GroupChats.RemoveMember(suite.ctx, result.GroupChat.ID, author.ID)
	assert.ErrorIs(suite.T(), err, ErrAdminMember)
}

func (suite *RepositoryTestSuite) TestDeletePostCascades() {
	author := suite.createUser("author")
	fan := suite.createUser("fan")
	post := suite.createPost(author, 51.5, -0.12)

	result, err := suite.store.Posts.ExpressInterest(suite.ctx, post.ID, fan.ID)
	require.NoError(suite.T(), err)
	_, err = suite.store.Messages.CreateGroupMessage(suite.ctx, result.GroupChat.ID, fan.ID, "count me in")
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.store.Posts.Delete(suite.ctx, post.ID))

	_, err = suite.store.Posts.GetByID(suite.ctx, post.ID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
	_, err = suite.store.GroupChats.GetByID(suite.ctx, result.GroupChat.ID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)

	var messages int64
	suite.db.Model(&models.Message{}).Where("group_chat_id = ?", result.GroupChat.ID).Count(&messages)
	assert.Zero(suite.T(), messages)

	err = suite.store.Posts.Delete(suite.ctx, post.ID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *RepositoryTestSuite) TestPostFilters() {
	author := suite.createUser("author")
	suite.createPost(author, 51.5, -0.12)
	tennis := &models.Post{
		AuthorID: author.ID, Sport: "tennis", Heading: "Doubles partner wanted",
		Tags: []string{"doubles"}, Latitude: 51.5, Longitude: -0.12, IsActive: true,
	}
	require.NoError(suite.T(), suite.store.Posts.Create(suite.ctx, tennis))

	posts, err := suite.store.Posts.List(suite.ctx, PostFilter{Sport: "Tennis"})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), posts, 1)
	assert.Equal(suite.T(), tennis.ID, posts[0].ID)

	posts, err = suite.store.Posts.List(suite.ctx, PostFilter{Tag: "5v5"})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), posts, 1)
	assert.Equal(suite.T(), "football", posts[0].Sport)

	posts, err = suite.store.Posts.List(suite.ctx, PostFilter{Query: "doubles"})
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), posts, 1)
}

func (suite *RepositoryTestSuite) TestNearbySortsByDistance() {
	author := suite.createUser("author")
	far := suite.createPost(author, 51.60, -0.12)  // about 11 km north
	near := suite.createPost(author, 51.51, -0.12) // about 1 km north
	suite.createPost(author, 48.85, 2.35)          // Paris

	results, err := suite.store.Posts.Nearby(suite.ctx, 51.50, -0.12, 20, PostFilter{})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), results, 2)
	assert.Equal(suite.T(), near.ID, results[0].ID)
	assert.Equal(suite.T(), far.ID, results[1].ID)
	assert.Less(suite.T(), results[0].DistanceKm, results[1].DistanceKm)

	_, err = suite.store.Posts.Nearby(suite.ctx, 120, 0, 10, PostFilter{})
	assert.ErrorIs(suite.T(), err, ErrInvalidInput)
}

func (suite *RepositoryTestSuite) TestGroupMessageUnreadTracking() {
	author := suite.createUser("author")
	fan := suite.createUser("fan")
	post := suite.createPost(author, 51.5, -0.12)
	result, err := suite.store.Posts.ExpressInterest(suite.ctx, post.ID, fan.ID)
	require.NoError(suite.T(), err)
	chatID := result.GroupChat.ID

	_, err = suite.store.Messages.CreateGroupMessage(suite.ctx, chatID, fan.ID, "hello")
	require.NoError(suite.T(), err)
	_, err = suite.store.Messages.CreateGroupMessage(suite.ctx, chatID, fan.ID, "anyone?")
	require.NoError(suite.T(), err)

	counts, err := suite.store.Messages.CountUnread(suite.ctx, author.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), counts.Group)

	senderCounts, err := suite.store.Messages.CountUnread(suite.ctx, fan.ID)
	require.NoError(suite.T(), err)
	assert.Zero(suite.T(), senderCounts.Group)

	require.NoError(suite.T(), suite.store.GroupChats.MarkRead(suite.ctx, chatID, author.ID, time.Now().Add(time.Second)))
	counts, err = suite.store.Messages.CountUnread(suite.ctx, author.ID)
	require.NoError(suite.T(), err)
	assert.Zero(suite.T(), counts.Group)

	summaries, err := suite.store.GroupChats.ListForUser(suite.ctx, author.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), summaries, 1)
	assert.Equal(suite.T(), int64(2), summaries[0].MemberCount)
	require.NotNil(suite.T(), summaries[0].LastMessage)
	assert.Equal(suite.T(), "anyone?", summaries[0].LastMessage.Content)

	messages, err := suite.store.Messages.GroupMessages(suite.ctx, chatID, Page{})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), messages, 2)
	assert.Equal(suite.T(), "hello", messages[0].Content)
}

func (suite *RepositoryTestSuite) TestMarkConversationReadOnlyAffectsThatConversation() {
	alice := suite.createUser("alice")
	bob := suite.createUser("bob")
	carol := suite.createUser("carol")

	_, err := suite.store.DirectMessages.Send(suite.ctx, SendDirectMessageInput{SenderID: bob.ID, RecipientID: alice.ID, Content: "hi from bob"})
	require.NoError(suite.T(), err)
	_, err = suite.store.DirectMessages.Send(suite.ctx, SendDirectMessageInput{SenderID: carol.ID, RecipientID: alice.ID, Content: "hi from carol"})
	require.NoError(suite.T(), err)

	withBob, err := suite.store.DirectMessages.GetOrCreateConversation(suite.ctx, alice.ID, bob.ID)
	require.NoError(suite.T(), err)

	changed, err := suite.store.DirectMessages.MarkConversationRead(suite.ctx, withBob.ID, alice.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), changed)

	summaries, err := suite.store.DirectMessages.ConversationsWithUnread(suite.ctx, alice.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), summaries, 2)

	unread := map[string]int64{}
	for _, s := range summaries {
		require.NotNil(suite.T(), s.OtherUser)
		require.NotNil(suite.T(), s.LastMessage)
		unread[s.OtherUser.ID] = s.UnreadCount
	}
	assert.Equal(suite.T(), int64(0), unread[bob.ID])
	assert.Equal(suite.T(), int64(1), unread[carol.ID])
}

func (suite *RepositoryTestSuite) TestConversationIdentityIsTheUnorderedPair() {
	alice := suite.createUser("alice")
	bob := suite.createUser("bob")

	ab, err := suite.store.DirectMessages.GetOrCreateConversation(suite.ctx, alice.ID, bob.ID)
	require.NoError(suite.T(), err)
	ba, err := suite.store.DirectMessages.GetOrCreateConversation(suite.ctx, bob.ID, alice.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), ab.ID, ba.ID)

	carol := suite.createUser("carol")
	_, err = suite.store.DirectMessages.Messages(suite.ctx, ab.ID, carol.ID, Page{})
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *RepositoryTestSuite) TestNotificationPreferencesAreEnforced() {
	alice := suite.createUser("alice")

	prefs, err := suite.store.Settings.GetPreferences(suite.ctx, alice.ID)
	require.NoError(suite.T(), err)
	prefs.NotificationFollows = false
	require.NoError(suite.T(), suite.store.Settings.UpdatePreferences(suite.ctx, prefs))

	_, created, err := suite.store.Notifications.Create(suite.ctx, CreateNotificationInput{
		UserID: alice.ID, Type: models.NotificationTypeFollow, Title: "New follower",
	})
	require.NoError(suite.T(), err)
	assert.False(suite.T(), created)

	n, created, err := suite.store.Notifications.Create(suite.ctx, CreateNotificationInput{
		UserID: alice.ID, Type: models.NotificationTypeSystem, Title: "Welcome",
	})
	require.NoError(suite.T(), err)
	assert.True(suite.T(), created)

	count, err := suite.store.Notifications.UnreadCount(suite.ctx, alice.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), count)

	changed, err := suite.store.Notifications.MarkAsRead(suite.ctx, alice.ID, nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), changed)

	require.NoError(suite.T(), suite.store.Notifications.Delete(suite.ctx, alice.ID, n.ID))
	assert.ErrorIs(suite.T(), suite.store.Notifications.Delete(suite.ctx, alice.ID, n.ID), ErrNotFound)
}

func (suite *RepositoryTestSuite) TestReviewVoteRecomputesCounts() {
	alice := suite.createUser("alice")
	bob := suite.createUser("bob")
	review := &models.Review{AuthorID: alice.ID, Title: "Great pitch", Content: "Lovely grass", Rating: 5}
	require.NoError(suite.T(), suite.store.Reviews.Create(suite.ctx, review))

	updated, err := suite.store.Reviews.Vote(suite.ctx, review.ID, bob.ID, true)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, updated.HelpfulCount)

	updated, err = suite.store.Reviews.Vote(suite.ctx, review.ID, bob.ID, false)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 0, updated.HelpfulCount)
	assert.Equal(suite.T(), 1, updated.NotHelpfulCount)

	withVote, err := suite.store.Reviews.GetWithVote(suite.ctx, review.ID, bob.ID)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), withVote.UserVote)
	assert.False(suite.T(), *withVote.UserVote)

	list, err := suite.store.Reviews.ListWithVotes(suite.ctx, ReviewFilter{}, alice.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), list, 1)
	assert.Nil(suite.T(), list[0].UserVote)

	err = suite.store.Reviews.Create(suite.ctx, &models.Review{AuthorID: alice.ID, Title: "x", Content: "y", Rating: 6})
	assert.ErrorIs(suite.T(), err, ErrInvalidInput)
}

func (suite *RepositoryTestSuite) TestEventRegistrationUpsertAndCancel() {
	author := suite.createUser("author")
	fan := suite.createUser("fan")
	post := suite.createPost(author, 51.5, -0.12)

	reg, err := suite.store.EventRegistrations.Register(suite.ctx, &models.EventRegistration{
		PostID: post.ID, UserID: fan.ID, FullName: "Fan One", Email: "fan@example.com",
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.RegistrationStatusRegistered, reg.Status)

	require.NoError(suite.T(), suite.store.EventRegistrations.Cancel(suite.ctx, reg.ID, fan.ID))
	forPost, err := suite.store.EventRegistrations.ListForPost(suite.ctx, post.ID)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), forPost)

	again, err := suite.store.EventRegistrations.Register(suite.ctx, &models.EventRegistration{
		PostID: post.ID, UserID: fan.ID, FullName: "Fan One", Email: "fan@example.com", Phone: "555",
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), reg.ID, again.ID)
	assert.Equal(suite.T(), models.RegistrationStatusRegistered, again.Status)
	assert.Equal(suite.T(), "555", again.Phone)
}

func (suite *RepositoryTestSuite) TestNearbyPreferenceCandidates() {
	near := suite.createUser("near")
	far := suite.createUser("far")

	lat, lng := 51.5, -0.12
	prefs, err := suite.store.Settings.GetPreferences(suite.ctx, near.ID)
	require.NoError(suite.T(), err)
	prefs.Latitude, prefs.Longitude = &lat, &lng
	require.NoError(suite.T(), suite.store.Settings.UpdatePreferences(suite.ctx, prefs))

	farLat, farLng := 40.7, -74.0
	farPrefs, err := suite.store.Settings.GetPreferences(suite.ctx, far.ID)
	require.NoError(suite.T(), err)
	farPrefs.Latitude, farPrefs.Longitude = &farLat, &farLng
	require.NoError(suite.T(), suite.store.Settings.UpdatePreferences(suite.ctx, farPrefs))

	candidates, err := suite.store.Settings.NearbyPreferenceCandidates(suite.ctx, 51.51, -0.12)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), candidates, 1)
	assert.Equal(suite.T(), near.ID, candidates[0].UserID)
	assert.True(suite.T(), WithinReach(&candidates[0], 51.51, -0.12))
	assert.False(suite.T(), WithinReach(&candidates[0], 52.5, -0.12))
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Limit: DefaultPageSize}, Page{}.Normalize())
	assert.Equal(t, Page{Limit: MaxPageSize, Offset: 0}, Page{Limit: 1000, Offset: -5}.Normalize())
}

func TestHaversineKm(t *testing.T) {
	// London to Paris is roughly 344 km.
	d := HaversineKm(51.5074, -0.1278, 48.8566, 2.3522)
	assert.InDelta(t, 344, d, 5)
	assert.Zero(t, HaversineKm(10, 10, 10, 10))
}
