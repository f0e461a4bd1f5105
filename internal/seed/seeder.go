// Package seed fills a database with fake users, games, follows and
// reviews for local development and demos.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

var (
	sports     = []string{"Football", "Basketball", "Tennis", "Volleyball", "Cricket", "Badminton", "Running", "Cycling", "Padel", "Valorant"}
	skillTags  = []string{"beginner", "casual", "intermediate", "competitive", "friendly", "weekend", "evening", "indoor", "outdoor", "mixed"}
	gameVerbs  = []string{"Pickup", "Friendly", "Weekly", "Casual", "Competitive", "Morning", "After-work"}
	reviewCats = []string{"venue", "coach", "equipment", "league", "app"}
)

// Options control the size and placement of the dev data set.
type Options struct {
	Users     int
	Posts     int
	CenterLat float64
	CenterLng float64
	RadiusKm  float64
	// Seed makes a run reproducible; zero seeds from the clock.
	Seed uint64
}

// DefaultOptions centers the data on London.
func DefaultOptions() Options {
	return Options{
		Users:     50,
		Posts:     150,
		CenterLat: 51.5074,
		CenterLng: -0.1278,
		RadiusKm:  15,
	}
}

// Summary counts what a run created.
type Summary struct {
	Users     int `json:"users"`
	Posts     int `json:"posts"`
	Follows   int `json:"follows"`
	Interests int `json:"interests"`
	Reviews   int `json:"reviews"`
}

// Seeder handles database seeding operations
type Seeder struct {
	store *repository.Store
}

// NewSeeder creates a new seeder instance
func NewSeeder(store *repository.Store) *Seeder {
	return &Seeder{store: store}
}

// SeedDev seeds the development database with a realistic data set.
func (s *Seeder) SeedDev(ctx context.Context, opts Options) (*Summary, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	// Seed only fails for invalid sources.
	_ = gofakeit.Seed(seed)

	summary := &Summary{}

	logger.Log.Info("Creating users...", zap.Int("count", opts.Users))
	users, err := s.seedUsers(ctx, opts.Users)
	if err != nil {
		return nil, fmt.Errorf("failed to seed users: %w", err)
	}
	summary.Users = len(users)
	if len(users) < 2 {
		return summary, nil
	}

	logger.Log.Info("Creating posts...", zap.Int("count", opts.Posts))
	posts, err := s.seedPosts(ctx, users, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to seed posts: %w", err)
	}
	summary.Posts = len(posts)

	logger.Log.Info("Creating follows...")
	if summary.Follows, err = s.seedFollows(ctx, users); err != nil {
		return nil, fmt.Errorf("failed to seed follows: %w", err)
	}

	logger.Log.Info("Creating interests and group chats...")
	if summary.Interests, err = s.seedInterests(ctx, users, posts); err != nil {
		return nil, fmt.Errorf("failed to seed interests: %w", err)
	}

	logger.Log.Info("Creating reviews...")
	if summary.Reviews, err = s.seedReviews(ctx, users, len(users)); err != nil {
		return nil, fmt.Errorf("failed to seed reviews: %w", err)
	}

	logger.Log.Info("Seeding complete",
		zap.Int("users", summary.Users),
		zap.Int("posts", summary.Posts),
		zap.Int("follows", summary.Follows),
		zap.Int("interests", summary.Interests),
		zap.Int("reviews", summary.Reviews),
	)
	return summary, nil
}

// SeedTest creates the fixed accounts end-to-end tests log in with, plus
// one game each. Existing accounts are reused.
func (s *Seeder) SeedTest(ctx context.Context) ([]models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	accounts := []struct {
		username string
		sport    string
	}{
		{"alice", "Football"},
		{"bob", "Basketball"},
		{"charlie", "Tennis"},
		{"diana", "Volleyball"},
		{"eve", "Running"},
	}

	var users []models.User
	for i, account := range accounts {
		addr := account.username + "@example.com"
		user, err := s.store.Users.GetByEmail(ctx, addr)
		if err == nil {
			users = append(users, *user)
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}

		user = &models.User{
			Username:     account.username,
			Email:        addr,
			PasswordHash: string(hash),
			Bio:          fmt.Sprintf("Test account who plays %s.", strings.ToLower(account.sport)),
			Sports:       []string{account.sport},
			Tags:         []string{"test"},
		}
		if err := s.store.Users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create test user %s: %w", account.username, err)
		}

		lat, lng := offset(51.5074, -0.1278, float64(i+1), float64(i)*72)
		post := &models.Post{
			AuthorID:      user.ID,
			Sport:         account.sport,
			Heading:       fmt.Sprintf("%s with %s", account.sport, account.username),
			Description:   "Seeded test game.",
			Tags:          []string{"test"},
			Latitude:      lat,
			Longitude:     lng,
			PlayersNeeded: 4,
			IsActive:      true,
		}
		if err := s.store.Posts.Create(ctx, post); err != nil {
			return nil, fmt.Errorf("failed to create test post for %s: %w", account.username, err)
		}
		users = append(users, *user)
	}
	return users, nil
}

func (s *Seeder) seedUsers(ctx context.Context, count int) ([]models.User, error) {
	// One hash for everyone keeps large runs fast.
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		username := fakeUsername(i)
		addr := fmt.Sprintf("%s@%s", username, gofakeit.DomainName())

		exists, err := s.store.Users.ExistsByEmailOrUsername(ctx, addr, username)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		user := models.User{
			Username:     username,
			Email:        addr,
			PasswordHash: string(hash),
			Bio:          gofakeit.HipsterSentence(),
			Sports:       pickN(sports, gofakeit.Number(1, 3)),
			Tags:         pickN(skillTags, gofakeit.Number(1, 3)),
			AvatarURL:    fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s", username),
		}
		if err := s.store.Users.Create(ctx, &user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				continue
			}
			return nil, fmt.Errorf("failed to create user %s: %w", username, err)
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) seedPosts(ctx context.Context, users []models.User, opts Options) ([]models.Post, error) {
	now := time.Now()
	posts := make([]models.Post, 0, opts.Posts)
	for i := 0; i < opts.Posts; i++ {
		author := users[gofakeit.Number(0, len(users)-1)]
		sport := gofakeit.RandomString(sports)
		lat, lng := offset(opts.CenterLat, opts.CenterLng,
			gofakeit.Float64Range(0, opts.RadiusKm), gofakeit.Float64Range(0, 360))
		eventTime := gofakeit.DateRange(now.Add(time.Hour), now.Add(14*24*time.Hour))

		post := models.Post{
			AuthorID:      author.ID,
			Sport:         sport,
			Heading:       fmt.Sprintf("%s %s at %s", gofakeit.RandomString(gameVerbs), strings.ToLower(sport), gofakeit.Street()),
			Description:   gofakeit.HipsterSentence(),
			Tags:          pickN(skillTags, gofakeit.Number(0, 3)),
			Latitude:      lat,
			Longitude:     lng,
			LocationName:  gofakeit.City(),
			EventTime:     &eventTime,
			PlayersNeeded: gofakeit.Number(1, 12),
			IsActive:      gofakeit.Number(0, 9) > 0,
		}
		if err := s.store.Posts.Create(ctx, &post); err != nil {
			return nil, fmt.Errorf("failed to create post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *Seeder) seedFollows(ctx context.Context, users []models.User) (int, error) {
	created := 0
	for _, follower := range users {
		for n := gofakeit.Number(0, 5); n > 0; n-- {
			target := users[gofakeit.Number(0, len(users)-1)]
			if target.ID == follower.ID {
				continue
			}
			ok, err := s.store.Follows.Follow(ctx, follower.ID, target.ID)
			if err != nil {
				return created, err
			}
			if ok {
				created++
			}
		}
	}
	return created, nil
}

// seedInterests goes through ExpressInterest so every interest comes with
// its group chat membership.
func (s *Seeder) seedInterests(ctx context.Context, users []models.User, posts []models.Post) (int, error) {
	created := 0
	for _, post := range posts {
		for n := gofakeit.Number(0, 4); n > 0; n-- {
			user := users[gofakeit.Number(0, len(users)-1)]
			if user.ID == post.AuthorID {
				continue
			}
			result, err := s.store.Posts.ExpressInterest(ctx, post.ID, user.ID)
			if err != nil {
				return created, err
			}
			if result.InterestCreated {
				created++
			}
		}
	}
	return created, nil
}

func (s *Seeder) seedReviews(ctx context.Context, users []models.User, count int) (int, error) {
	for i := 0; i < count; i++ {
		author := users[gofakeit.Number(0, len(users)-1)]
		review := models.Review{
			AuthorID: author.ID,
			Title:    gofakeit.HipsterSentence(),
			Content:  gofakeit.HipsterSentence() + " " + gofakeit.HipsterSentence(),
			Rating:   gofakeit.Number(models.MinReviewRating, models.MaxReviewRating),
			Category: gofakeit.RandomString(reviewCats),
			Tags:     pickN(sports, gofakeit.Number(0, 2)),
		}
		if err := s.store.Reviews.Create(ctx, &review); err != nil {
			return i, fmt.Errorf("failed to create review: %w", err)
		}
	}
	return count, nil
}

func fakeUsername(i int) string {
	base := strings.ToLower(gofakeit.Username())
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return -1
	}, base)
	if len(base) > 20 {
		base = base[:20]
	}
	if base == "" {
		base = "player"
	}
	return fmt.Sprintf("%s_%d", base, i)
}

// pickN returns up to n distinct values from options.
func pickN(options []string, n int) []string {
	out := []string{}
	seen := map[string]bool{}
	for tries := 0; len(out) < n && tries < n*4; tries++ {
		v := gofakeit.RandomString(options)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// offset moves distKm from (lat, lng) along bearingDeg on a flat-earth
// approximation, which is fine for a few kilometers.
func offset(lat, lng, distKm, bearingDeg float64) (float64, float64) {
	const kmPerDegree = 111.32
	bearing := bearingDeg * math.Pi / 180
	dLat := distKm * math.Cos(bearing) / kmPerDegree
	dLng := distKm * math.Sin(bearing) / (kmPerDegree * math.Cos(lat*math.Pi/180))
	return lat + dLat, lng + dLng
}
