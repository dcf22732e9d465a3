package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/redrace/tournament-system/models"
	"github.com/redrace/tournament-system/repositories"
	"github.com/redrace/tournament-system/services"
)

type seedOptions struct {
	runners      int
	commentators int
	pastYears    int
	seed         uint64
}

func newSeedCmd() *cobra.Command {
	opts := seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill an empty database with generated runners, groups and past results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.runners < 2 {
				return errors.New("at least 2 runners are required")
			}
			return withApp(cmd, func(ctx context.Context, a *app) (any, error) {
				return runSeed(ctx, a, newSeedGenerator(opts.seed).generate(opts))
			})
		},
	}
	cmd.Flags().IntVar(&opts.runners, "runners", 54, "number of runners")
	cmd.Flags().IntVar(&opts.commentators, "commentators", 6, "number of commentators")
	cmd.Flags().IntVar(&opts.pastYears, "past-years", 3, "number of past tournaments")
	cmd.Flags().Uint64Var(&opts.seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	return cmd
}

type seedData struct {
	Users       []services.UpsertUserInput
	PastResults []models.PastResult
}

type seedSummary struct {
	UsersCreated       int `json:"users_created"`
	GroupsCreated      int `json:"groups_created"`
	PastResultsCreated int `json:"past_results_created"`
}

type seedGenerator struct {
	faker *gofakeit.Faker
	used  map[string]bool
}

func newSeedGenerator(seed uint64) *seedGenerator {
	return &seedGenerator{faker: gofakeit.New(seed), used: make(map[string]bool)}
}

func (g *seedGenerator) username() string {
	base := strings.ToLower(g.faker.Username())
	name := base
	for i := 2; g.used[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	g.used[name] = true
	return name
}

func (g *seedGenerator) user(role models.UserRole) services.UpsertUserInput {
	country := g.faker.Country()
	display := g.faker.Gamertag()
	if len(display) > 32 {
		display = display[:32]
	}
	return services.UpsertUserInput{
		DiscordUsername: g.username(),
		DisplayName:     display,
		Role:            role,
		Country:         &country,
	}
}

func (g *seedGenerator) generate(opts seedOptions) seedData {
	var data seedData
	for i := 0; i < opts.runners; i++ {
		data.Users = append(data.Users, g.user(models.RoleRunner))
	}
	for i := 0; i < opts.commentators; i++ {
		data.Users = append(data.Users, g.user(models.RoleCommentator))
	}
	if len(data.Users) > 0 {
		data.Users[len(data.Users)-1].IsAdmin = true
	}

	year := time.Now().Year()
	for i := 1; i <= opts.pastYears; i++ {
		data.PastResults = append(data.PastResults, models.PastResult{
			TournamentYear:  year - i,
			Gold:            models.Medalist{Name: g.faker.Gamertag()},
			Silver:          models.Medalist{Name: g.faker.Gamertag()},
			Bronze:          models.Medalist{Name: g.faker.Gamertag()},
			SpotlightVideos: []string{g.faker.URL()},
		})
	}
	return data
}

// groupsOf делит раннеров на группы по 3, последние группы по 2 если не делится.
func groupsOf(ids []int) [][]int {
	if len(ids) < 2 {
		return nil
	}
	n := len(ids) / 3
	if len(ids)%3 != 0 {
		n++
	}
	groups := make([][]int, n)
	for i, id := range ids {
		groups[i%n] = append(groups[i%n], id)
	}
	return groups
}

func runSeed(ctx context.Context, a *app, data seedData) (*seedSummary, error) {
	summary := &seedSummary{}

	err := a.tournamentRepo.Create(ctx, &models.Tournament{Name: a.cfg.TournamentName, CurrentRound: models.RoundOne})
	if err != nil && !errors.Is(err, repositories.ErrTournamentNameConflict) {
		return nil, err
	}

	var runnerIDs []int
	for _, input := range data.Users {
		u, created, err := a.userService.Upsert(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to seed user %s: %w", input.DiscordUsername, err)
		}
		if created {
			summary.UsersCreated++
		}
		if u.Role == models.RoleRunner {
			runnerIDs = append(runnerIDs, u.ID)
		}
	}

	groups := groupsOf(runnerIDs)
	for _, members := range groups {
		if _, err := a.groupService.Create(ctx, services.CreateGroupInput{Members: members}); err != nil {
			return nil, fmt.Errorf("failed to seed group: %w", err)
		}
		summary.GroupsCreated++
	}
	if len(groups) > 0 {
		if _, err := a.groupService.AssignBrackets(ctx, models.RoundOne); err != nil {
			return nil, err
		}
	}

	existing, err := a.pastResultService.List(ctx)
	if err != nil {
		return nil, err
	}
	years := lo.SliceToMap(existing, func(r models.PastResult) (int, bool) { return r.TournamentYear, true })
	for _, result := range data.PastResults {
		if years[result.TournamentYear] {
			continue
		}
		if err := a.pastResultService.Create(ctx, &result); err != nil {
			return nil, err
		}
		summary.PastResultsCreated++
	}

	a.logger.Info("seed complete",
		slog.Int("users", summary.UsersCreated),
		slog.Int("groups", summary.GroupsCreated),
		slog.Int("past_results", summary.PastResultsCreated),
	)
	return summary, nil
}
