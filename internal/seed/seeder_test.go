package seed

import (
	"context"
	"testing"

	"github.com/sportsocial/backend/internal/database"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type SeederTestSuite struct {
	suite.Suite
	db     *gorm.DB
	store  *repository.Store
	seeder *Seeder
	ctx    context.Context
}

func (suite *SeederTestSuite) SetupTest() {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(suite.T(), err)
	suite.db = db
	suite.store = repository.NewStore(db)
	suite.seeder = NewSeeder(suite.store)
	suite.ctx = context.Background()
}

func (suite *SeederTestSuite) TearDownTest() {
	if sqlDB, err := suite.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (suite *SeederTestSuite) count(model any) int64 {
	var n int64
	require.NoError(suite.T(), suite.db.Model(model).Count(&n).Error)
	return n
}

func (suite *SeederTestSuite) TestSeedDevCreatesConsistentData() {
	opts := DefaultOptions()
	opts.Users = 8
	opts.Posts = 12
	opts.Seed = 42

	summary, err := suite.seeder.SeedDev(suite.ctx, opts)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), 8, summary.Users)
	assert.Equal(suite.T(), 12, summary.Posts)
	assert.Equal(suite.T(), int64(summary.Users), suite.count(&models.User{}))
	assert.Equal(suite.T(), int64(summary.Posts), suite.count(&models.Post{}))
	assert.Equal(suite.T(), int64(summary.Follows), suite.count(&models.UserFollower{}))
	assert.Equal(suite.T(), int64(summary.Interests), suite.count(&models.PostInterest{}))
	assert.Equal(suite.T(), int64(summary.Reviews), suite.count(&models.Review{}))

	var posts []models.Post
	require.NoError(suite.T(), suite.db.Find(&posts).Error)
	for _, post := range posts {
		dist := repository.HaversineKm(opts.CenterLat, opts.CenterLng, post.Latitude, post.Longitude)
		assert.LessOrEqual(suite.T(), dist, opts.RadiusKm+0.5, "post %s outside the seeding radius", post.ID)
	}

	// Every interested user is a member of the post's chat.
	var interests []models.PostInterest
	require.NoError(suite.T(), suite.db.Find(&interests).Error)
	for _, interest := range interests {
		chat, err := suite.store.GroupChats.GetByPostID(suite.ctx, interest.PostID)
		require.NoError(suite.T(), err)
		member, err := suite.store.GroupChats.IsMember(suite.ctx, chat.ID, interest.UserID)
		require.NoError(suite.T(), err)
		assert.True(suite.T(), member)
	}
}

func (suite *SeederTestSuite) TestSeedTestIsRepeatable() {
	first, err := suite.seeder.SeedTest(suite.ctx)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), first, 5)

	second, err := suite.seeder.SeedTest(suite.ctx)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), second, 5)

	assert.Equal(suite.T(), first[0].ID, second[0].ID)
	assert.Equal(suite.T(), int64(5), suite.count(&models.User{}))
	assert.Equal(suite.T(), int64(5), suite.count(&models.Post{}))
}

func TestSeederTestSuite(t *testing.T) {
	suite.Run(t, new(SeederTestSuite))
}

func TestOffsetStaysNearDistance(t *testing.T) {
	lat, lng := offset(51.5, -0.12, 5, 90)
	assert.InDelta(t, 5, repository.HaversineKm(51.5, -0.12, lat, lng), 0.1)
}

func TestFakeUsernameFitsColumn(t *testing.T) {
	for i := 0; i < 50; i++ {
		name := fakeUsername(i * 1000)
		assert.LessOrEqual(t, len(name), 30)
		assert.GreaterOrEqual(t, len(name), 3)
	}
}
