package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sportsocial/backend/internal/database"
	"github.com/sportsocial/backend/internal/models"
	"github.com/sportsocial/backend/internal/seed"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update every table and index",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, _, err := openStore(); err != nil {
			return err
		}
		defer database.Close()
		fmt.Println("Migrations complete")
		return nil
	},
}

var seedOpts = seed.DefaultOptions()

var seedCmd = &cobra.Command{
	Use:   "seed [dev|test]",
	Short: "Fill the database with fake data",
	Long: `dev  - users, games around --lat/--lng, follows, interests and reviews
test - the fixed accounts alice, bob, charlie, diana and eve (password "` + seed.DefaultPassword + `")`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"dev", "test"},
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := "dev"
		if len(args) == 1 {
			mode = args[0]
		}

		_, store, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()
		seeder := seed.NewSeeder(store)

		switch mode {
		case "dev":
			summary, err := seeder.SeedDev(cmd.Context(), seedOpts)
			if err != nil {
				return err
			}
			return render(summary, func() {
				fmt.Printf("Seeded %d users, %d posts, %d follows, %d interests, %d reviews\n",
					summary.Users, summary.Posts, summary.Follows, summary.Interests, summary.Reviews)
			})
		case "test":
			users, err := seeder.SeedTest(cmd.Context())
			if err != nil {
				return err
			}
			return render(publicUsers(users), func() {
				for _, u := range users {
					fmt.Printf("%s\t%s\n", u.Username, u.Email)
				}
			})
		default:
			return fmt.Errorf("unknown seed mode %q (want dev or test)", mode)
		}
	},
}

var revokeAdmin bool

var promoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant (or with --revoke, remove) admin rights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		if err := store.Users.SetAdmin(cmd.Context(), args[0], !revokeAdmin); err != nil {
			return fmt.Errorf("failed to update %s: %w", args[0], err)
		}
		action := "granted to"
		if revokeAdmin {
			action = "revoked from"
		}
		fmt.Printf("Admin rights %s %s\n", action, args[0])
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print row counts for the main tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		tables := []struct {
			name  string
			model any
		}{
			{"users", &models.User{}},
			{"posts", &models.Post{}},
			{"group_chats", &models.GroupChat{}},
			{"messages", &models.Message{}},
			{"notifications", &models.Notification{}},
			{"reviews", &models.Review{}},
			{"event_registrations", &models.EventRegistration{}},
		}
		counts := make(map[string]int64, len(tables))
		for _, t := range tables {
			var n int64
			if err := db.WithContext(cmd.Context()).Model(t.model).Count(&n).Error; err != nil {
				return fmt.Errorf("failed to count %s: %w", t.name, err)
			}
			counts[t.name] = n
		}
		return render(counts, func() {
			for _, t := range tables {
				fmt.Printf("%-20s %d\n", t.name, counts[t.name])
			}
		})
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedOpts.Users, "users", seedOpts.Users, "Number of users to create")
	seedCmd.Flags().IntVar(&seedOpts.Posts, "posts", seedOpts.Posts, "Number of posts to create")
	seedCmd.Flags().Float64Var(&seedOpts.CenterLat, "lat", seedOpts.CenterLat, "Latitude the posts cluster around")
	seedCmd.Flags().Float64Var(&seedOpts.CenterLng, "lng", seedOpts.CenterLng, "Longitude the posts cluster around")
	seedCmd.Flags().Float64Var(&seedOpts.RadiusKm, "radius", seedOpts.RadiusKm, "Radius in km the posts spread over")
	seedCmd.Flags().Uint64Var(&seedOpts.Seed, "seed", 0, "Random seed; 0 uses the clock")

	promoteCmd.Flags().BoolVar(&revokeAdmin, "revoke", false, "Revoke admin privileges instead of granting")
}

func publicUsers(users []models.User) []models.PublicUser {
	out := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}

func render(v any, text func()) error {
	if output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}
