package stats

import (
	"github.com/samber/lo"

	"github.com/redrace/tournament-system/models"
)

type GroupFavourite struct {
	GroupNumber int     `json:"group_number"`
	Members     []int   `json:"members"`
	Favourites  []Count `json:"favourites"`
}

// TopPicked returns the n most picked runners among top picks.
// Entries sharing the n-th count are included.
func TopPicked(entries []models.Pickems, names Names, n int) []Count {
	picks := lo.FlatMap(entries, func(p models.Pickems, _ int) []int { return p.TopPicks })
	counts := countsOf(lo.CountValues(picks), names)
	if n <= 0 || len(counts) <= n {
		return counts
	}
	boundary := counts[n-1].Count
	end := n
	for end < len(counts) && counts[end].Count == boundary {
		end++
	}
	return counts[:end]
}

// FavouritesPerGroup returns, for each group of round, every member picked the most often.
func FavouritesPerGroup(entries []models.Pickems, groups []models.Group, round models.Round, names Names) []GroupFavourite {
	picks := lo.FlatMap(entries, func(p models.Pickems, _ int) []int { return p.PicksFor(round) })
	counts := lo.CountValues(picks)

	roundGroups := lo.Filter(groups, func(g models.Group, _ int) bool { return g.Round == round })
	return lo.Map(roundGroups, func(g models.Group, _ int) GroupFavourite {
		fav := GroupFavourite{GroupNumber: g.GroupNumber, Members: g.Members, Favourites: []Count{}}
		top := lo.Max(lo.Map(g.Members, func(id int, _ int) int { return counts[id] }))
		if top == 0 {
			return fav
		}
		for _, id := range g.Members {
			if counts[id] == top {
				fav.Favourites = append(fav.Favourites, Count{UserID: id, DisplayName: names[id], Count: top})
			}
		}
		return fav
	})
}
