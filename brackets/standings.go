package brackets

import (
	"sort"

	"github.com/redrace/tournament-system/models"
)

// ComputeStandings ranks runners by points, then DNF flag, tie-breaker, best time and id.
// Комментаторы в таблицу не попадают.
func ComputeStandings(users []models.User) []models.Standing {
	runners := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.Role == models.RoleRunner {
			runners = append(runners, u)
		}
	}

	sort.Slice(runners, func(i, j int) bool {
		a, b := runners[i], runners[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.HasDNF != b.HasDNF {
			return !a.HasDNF
		}
		if a.TieBreaker != b.TieBreaker {
			return a.TieBreaker > b.TieBreaker
		}
		if a.BestTimeMs != b.BestTimeMs {
			return a.BestTimeMs < b.BestTimeMs
		}
		return a.ID < b.ID
	})

	standings := make([]models.Standing, len(runners))
	for i, u := range runners {
		standings[i] = models.Standing{
			Rank:        i + 1,
			UserID:      u.ID,
			DisplayName: u.Name(),
			Bracket:     u.CurrentBracket,
			Points:      u.Points,
			TieBreaker:  u.TieBreaker,
			HasDNF:      u.HasDNF,
			BestTimeMs:  u.BestTimeMs,
		}
	}
	return standings
}

// ComputeCut takes the first n standings. When the points of the n-th entry are shared
// with someone outside the cut, every runner on those points is reported in Tied.
func ComputeCut(standings []models.Standing, n int) models.Cut {
	cut := models.Cut{Size: n, Qualified: []models.Standing{}, Tied: []models.Standing{}}
	if n <= 0 || len(standings) == 0 {
		return cut
	}
	if n >= len(standings) {
		cut.Qualified = append(cut.Qualified, standings...)
		return cut
	}

	cut.Qualified = append(cut.Qualified, standings[:n]...)
	boundary := standings[n-1].Points
	if standings[n].Points != boundary {
		return cut
	}
	for _, s := range standings {
		if s.Points == boundary {
			cut.Tied = append(cut.Tied, s)
		}
	}
	return cut
}
